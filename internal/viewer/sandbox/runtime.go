package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// Runtime wraps goja VM with security controls
type Runtime struct {
	vm     *goja.Runtime
	config Config
	mu     sync.Mutex

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex

	// Page state, reset between loads
	dom       *DOM
	proxies   map[*Element]*goja.Object
	listeners map[string][]Listener
	scenes    []Scene
	loaded    bool
}

// New creates a new sandboxed runtime
func New(config Config) (*Runtime, error) {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}

	r := &Runtime{config: config}
	if err := r.reset(); err != nil {
		return nil, err
	}
	return r, nil
}

// Load instantiates a page: globals are bound first, then scripts run in
// document order, then the window load event fires. An uncaught error stops
// only the script that raised it, as in a browser.
func (r *Runtime) Load(ctx context.Context, page Page) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()

	if r.dom != nil {
		if err := r.reset(); err != nil {
			return nil, err
		}
	}

	dom, err := ParseDOM(page.HTML)
	if err != nil {
		return nil, err
	}
	r.dom = dom
	r.injectDOM()
	r.injectBridge(page.Poster)

	for name, value := range page.Globals {
		if err := r.vm.Set(name, value); err != nil {
			return nil, fmt.Errorf("bind global %s: %w", name, err)
		}
	}

	result := &Result{}
	for i, script := range dom.Scripts() {
		err := r.guard(ctx, func() error { return r.runScript(i, script) })
		if err == nil {
			continue
		}
		if isFatal(err) {
			return r.collect(result, start), err
		}
		result.Errors = append(result.Errors, err)
	}

	r.loaded = true
	for _, l := range r.listeners["load"] {
		err := r.guard(ctx, l)
		if err == nil {
			continue
		}
		if isFatal(err) {
			return r.collect(result, start), err
		}
		result.Errors = append(result.Errors, err)
	}

	return r.collect(result, start), nil
}

func (r *Runtime) runScript(index int, script Script) error {
	if script.Src != "" {
		if script.Src == r.config.LibraryURL && r.config.Capability {
			return r.installCapability()
		}
		r.appendConsole("error", "failed to load script "+script.Src)
		return nil
	}
	_, err := r.vm.RunScript(fmt.Sprintf("inline-%d.js", index), script.Text)
	return err
}

func (r *Runtime) collect(result *Result, start time.Time) *Result {
	result.Duration = time.Since(start)
	result.Console = r.Console()
	result.Scenes = append([]Scene{}, r.scenes...)
	if r.dom != nil {
		result.DOMChanges = r.dom.GetChanges()
	}
	return result
}

// Dispatch fires an event on the element with the given id
func (r *Runtime) Dispatch(ctx context.Context, id, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return ErrNotLoaded
	}
	el := r.dom.ByID(id)
	if el == nil {
		return fmt.Errorf("%w: #%s", ErrNoElement, id)
	}

	var errs []error
	for _, l := range el.Listeners(event) {
		if err := r.guard(ctx, l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Call invokes a global function with no arguments
func (r *Runtime) Call(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.loaded {
		return ErrNotLoaded
	}
	fn, ok := goja.AssertFunction(r.vm.Get(name))
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCallable, name)
	}
	return r.guard(ctx, func() error {
		_, err := fn(goja.Undefined())
		return err
	})
}

// Element snapshots the element with the given id
func (r *Runtime) Element(id string) (ElementState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.dom == nil {
		return ElementState{}, false
	}
	el := r.dom.ByID(id)
	if el == nil {
		return ElementState{}, false
	}
	return el.State(), true
}

// Scenes returns every scene the page switched to
func (r *Runtime) Scenes() []Scene {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Scene{}, r.scenes...)
}

// Global exports a global value
func (r *Runtime) Global(name string) any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exportValue(r.vm.Get(name))
}

// Console returns the console output so far
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry{}, r.console...)
}

// guard runs fn under the execution timeout and ctx
func (r *Runtime) guard(ctx context.Context, fn func() error) error {
	timer := time.NewTimer(r.config.Timeout)
	defer timer.Stop()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-timer.C:
			r.vm.Interrupt(ErrScriptTimeout)
		case <-ctx.Done():
			r.vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()

	err := fn()

	close(stop)
	wg.Wait()
	r.vm.ClearInterrupt()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if cause, ok := interrupted.Value().(error); ok {
			return cause
		}
		return ErrScriptTimeout
	}
	return err
}

func isFatal(err error) bool {
	return errors.Is(err, ErrScriptTimeout) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	if r.config.MaxCallStackSize > 0 {
		r.vm.SetMaxCallStackSize(r.config.MaxCallStackSize)
	}

	// Remove dangerous globals
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	window := r.vm.GlobalObject()
	if err := r.vm.Set("window", window); err != nil {
		return err
	}
	if err := window.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		event := call.Argument(0).String()
		if fn, ok := goja.AssertFunction(call.Argument(1)); ok {
			r.listeners[event] = append(r.listeners[event], r.listener(fn, window, event))
		}
		return goja.Undefined()
	}); err != nil {
		return err
	}

	// Setup console if enabled
	if r.config.EnableConsole {
		console := r.vm.NewObject()
		for _, level := range []string{"log", "warn", "error", "info"} {
			if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
				return err
			}
		}
		if err := r.vm.Set("console", console); err != nil {
			return err
		}
	}

	// Timers never fire inside the sandbox
	noop := func(call goja.FunctionCall) goja.Value { return r.vm.ToValue(0) }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		if err := r.vm.Set(name, noop); err != nil {
			return err
		}
	}

	return nil
}

func (r *Runtime) listener(fn goja.Callable, this goja.Value, event string) Listener {
	return func() error {
		ev := r.vm.NewObject()
		ev.Set("type", event)
		ev.Set("target", this)
		_, err := fn(this, ev)
		return err
	}
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, arg.String())
		}
		r.appendConsole(level, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (r *Runtime) appendConsole(level, msg string) {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	r.console = append(r.console, LogEntry{Level: level, Message: msg, Time: time.Now()})
}

// injectBridge exposes the native message channel the document posts to
func (r *Runtime) injectBridge(poster Poster) {
	if poster == nil {
		return
	}
	channel := r.vm.NewObject()
	channel.Set("postMessage", func(call goja.FunctionCall) goja.Value {
		poster.Post(call.Argument(0).String())
		return goja.Undefined()
	})
	r.vm.Set("ReactNativeWebView", channel)
}

// exportValue converts goja value to Go value
func (r *Runtime) exportValue(val goja.Value) any {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

// Reset clears the runtime state
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reset()
}

func (r *Runtime) reset() error {
	r.vm = goja.New()
	r.dom = nil
	r.proxies = make(map[*Element]*goja.Object)
	r.listeners = make(map[string][]Listener)
	r.scenes = nil
	r.loaded = false

	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()

	return r.setupGlobals()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.vm = nil
	r.dom = nil
	r.proxies = nil
	r.listeners = nil

	r.consoleMu.Lock()
	r.console = nil
	r.consoleMu.Unlock()
	return nil
}
