package surface

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/photosphere/internal/viewer"
	"github.com/GriffinCanCode/photosphere/internal/viewer/document"
	"github.com/GriffinCanCode/photosphere/internal/viewer/sandbox"
)

// ErrClosed is returned by instances after Close
var ErrClosed = errors.New("sandbox instance closed")

const headlessName = "headless"

// HeadlessOptions configure the sandbox surface
type HeadlessOptions struct {
	Document document.Options
	Sandbox  sandbox.Config
	PoolSize int
}

// Headless mounts sessions in pooled goja runtimes
type Headless struct {
	pool    *sandbox.Pool
	base    document.Options
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewHeadless builds the pool. The sandbox is told which script source
// stands for the rendering library.
func NewHeadless(opts HeadlessOptions, log *logging.Logger, metrics *monitoring.Metrics) (*Headless, error) {
	if log == nil {
		log = logging.NewNop()
	}
	if err := opts.Document.Validate(); err != nil {
		return nil, err
	}
	opts.Sandbox.LibraryURL = opts.Document.LibraryURL

	pool, err := sandbox.NewPool(opts.Sandbox, opts.PoolSize)
	if err != nil {
		return nil, err
	}
	return &Headless{
		pool:    pool,
		base:    opts.Document,
		log:     log.Named(headlessName),
		metrics: metrics,
	}, nil
}

// Name implements viewer.Surface
func (h *Headless) Name() string { return headlessName }

// Mount takes the injection, binds it as globals and loads the document
func (h *Headless) Mount(ctx context.Context, m viewer.Mount) (viewer.Instance, error) {
	injection, err := m.Inbound.Take()
	if err != nil {
		return nil, err
	}
	doc, err := newDocument(h.base, m.Title)
	if err != nil {
		return nil, err
	}

	rt, err := h.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := rt.Load(ctx, sandbox.Page{
		HTML:    doc.HTML(),
		Globals: injection.Globals(),
		Poster:  m.Outbound,
	})
	h.metrics.ObserveScript("load", time.Since(start))
	if err != nil {
		h.pool.Release(rt)
		return nil, err
	}
	for _, scriptErr := range result.Errors {
		h.log.Debug("Document script failed",
			zap.String("session_id", m.SessionID.String()),
			zap.Error(scriptErr))
	}

	h.metrics.AddSandboxInstances(headlessName, 1)
	return &HeadlessInstance{surface: h, rt: rt}, nil
}

// Stats reports pool occupancy
func (h *Headless) Stats() sandbox.PoolStats {
	return h.pool.Stats()
}

// Close shuts the pool down
func (h *Headless) Close() error {
	return h.pool.Close()
}

// HeadlessInstance is a mounted sandbox
type HeadlessInstance struct {
	surface *Headless

	mu     sync.Mutex
	rt     *sandbox.Runtime
	closed bool
}

// Trigger calls loadImageUrl in the sandbox
func (i *HeadlessInstance) Trigger(ctx context.Context) error {
	return i.with(func(rt *sandbox.Runtime) error {
		start := time.Now()
		err := rt.Call(ctx, "loadImageUrl")
		i.surface.metrics.ObserveScript("trigger", time.Since(start))
		return err
	})
}

// Click dispatches a click on the element with the given id
func (i *HeadlessInstance) Click(ctx context.Context, elementID string) error {
	return i.with(func(rt *sandbox.Runtime) error {
		return rt.Dispatch(ctx, elementID, "click")
	})
}

// Element snapshots a document element
func (i *HeadlessInstance) Element(elementID string) (state sandbox.ElementState, ok bool) {
	i.with(func(rt *sandbox.Runtime) error {
		state, ok = rt.Element(elementID)
		return nil
	})
	return state, ok
}

// Scenes returns the scenes the document switched to
func (i *HeadlessInstance) Scenes() (scenes []sandbox.Scene) {
	i.with(func(rt *sandbox.Runtime) error {
		scenes = rt.Scenes()
		return nil
	})
	return scenes
}

// Close returns the runtime to the pool. Safe to call twice.
func (i *HeadlessInstance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	rt := i.rt
	i.rt = nil
	i.surface.metrics.AddSandboxInstances(headlessName, -1)
	return i.surface.pool.Release(rt)
}

// with runs fn while the runtime cannot be released
func (i *HeadlessInstance) with(fn func(rt *sandbox.Runtime) error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return ErrClosed
	}
	return fn(i.rt)
}

// newDocument builds the document for one mount; the title defaults to base
func newDocument(base document.Options, title string) (*document.Document, error) {
	opts := base
	if title != "" {
		opts.Title = title
	}
	return document.New(opts)
}
