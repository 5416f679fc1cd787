package viewer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/photosphere/internal/provisioning"
	"github.com/GriffinCanCode/photosphere/internal/shared/id"
	"github.com/GriffinCanCode/photosphere/internal/viewer/bridge"
)

// Options configure a Controller
type Options struct {
	Surface     Surface
	Provisioner Provisioner // nil disables provisioning
	Navigator   Navigator
	Logger      *logging.Logger
	Metrics     *monitoring.Metrics
	StopTimeout time.Duration
	EventBuffer int
}

const defaultStopTimeout = 5 * time.Second

// session is one embedding for one reference
type session struct {
	id   id.SessionID
	item Item

	ctx    context.Context
	cancel context.CancelFunc

	// guarded by Controller.mu
	phase      Phase
	history    []Transition
	resolved   bridge.Injection
	title      string
	titled     bool
	loaded     bool
	diagnostic string
	err        error
	updated    time.Time

	// written by run, read by teardown after done
	provision provisioning.Provision
	instance  Instance
	outbound  *bridge.Outbound

	prev     *session
	done     chan struct{}
	released chan struct{}
}

// Controller drives one screen. All methods are safe for concurrent use.
type Controller struct {
	screen  id.ScreenID
	opts    Options
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu        sync.Mutex
	current   *session
	unmounted bool
}

// NewController creates an idle controller for screen
func NewController(screen id.ScreenID, opts Options) (*Controller, error) {
	if opts.Surface == nil {
		return nil, ErrNoSurface
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Navigator == nil {
		opts.Navigator = NavigatorFunc(func(string) {})
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = defaultStopTimeout
	}

	return &Controller{
		screen:  screen,
		opts:    opts,
		log:     opts.Logger.With(zap.String("screen_id", screen.String())),
		metrics: opts.Metrics,
	}, nil
}

// ScreenID returns the screen this controller drives
func (c *Controller) ScreenID() id.ScreenID {
	return c.screen
}

// Show hands the screen a new item. It returns without waiting for
// provisioning or the sandbox. Showing the current reference again only
// refreshes the title, unless the current session failed, in which case a
// fresh session retries it.
func (c *Controller) Show(ctx context.Context, item Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return ErrUnmounted
	}

	prev := c.current
	if prev != nil && prev.item.FileURL == item.FileURL && !prev.failed() {
		prev.item.Name = item.Name
		retitle := prev.titled && prev.title != item.Name
		if retitle {
			prev.title = item.Name
		}
		c.mu.Unlock()

		if retitle {
			c.opts.Navigator.SetTitle(item.Name)
		}
		return nil
	}

	next := c.newSession(item, prev)
	c.current = next
	if prev != nil {
		reason := "reference changed"
		if prev.item.FileURL == item.FileURL {
			reason = "retrying failed session"
		}
		c.retire(prev, reason)
	}
	c.mu.Unlock()

	go c.run(next)
	return nil
}

// Trigger asks the sandbox to load the image (manual mode)
func (c *Controller) Trigger(ctx context.Context) error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return ErrUnmounted
	}
	s := c.current
	if s == nil || s.phase != PhaseRendering || s.instance == nil {
		c.mu.Unlock()
		return ErrNotRendering
	}
	inst := s.instance
	c.mu.Unlock()

	return inst.Trigger(ctx)
}

// Unmount tears the screen down and waits until every resource is released
// or ctx ends. Further Show calls fail with ErrUnmounted.
func (c *Controller) Unmount(ctx context.Context) error {
	c.mu.Lock()
	s := c.current
	if !c.unmounted {
		c.unmounted = true
		if s != nil {
			c.retire(s, "unmounted")
		}
	}
	c.mu.Unlock()

	if s == nil {
		return nil
	}
	select {
	case <-s.released:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the observable screen state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		ScreenID: c.screen,
		Phase:    PhaseIdle,
		View:     ViewIndicator,
		Loading:  true,
		History:  []Transition{},
	}
	if c.unmounted {
		snap.Phase = PhaseTornDown
		snap.Loading = false
	}

	s := c.current
	if s == nil {
		return snap
	}

	snap.SessionID = s.id
	snap.Phase = s.phase
	snap.Reference = s.item.FileURL
	snap.ResolvedURL = s.resolved.ImageURL
	snap.Width = s.resolved.GeometryWidth
	snap.Title = s.title
	snap.Loaded = s.loaded
	snap.Diagnostic = s.diagnostic
	snap.History = append(snap.History, s.history...)
	snap.UpdatedAt = s.updated
	if s.err != nil {
		snap.Error = s.err.Error()
	}

	switch s.phase {
	case PhaseRendering:
		snap.View = ViewSandbox
		snap.Loading = !s.loaded
	case PhaseIdle:
		snap.Loading = s.err == nil
	default:
		snap.Loading = s.phase == PhaseProvisioning
	}
	return snap
}

func (c *Controller) newSession(item Item, prev *session) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		id:       id.NewSessionID(),
		item:     item,
		ctx:      ctx,
		cancel:   cancel,
		phase:    PhaseIdle,
		updated:  time.Now(),
		prev:     prev,
		done:     make(chan struct{}),
		released: make(chan struct{}),
	}
}

// failed reports a session that resolution or mount returned to idle
func (s *session) failed() bool {
	return s.err != nil && s.phase == PhaseIdle
}

// run provisions and mounts one session. Must not hold c.mu across calls
// into the provisioner, the surface or the navigator.
func (c *Controller) run(s *session) {
	defer close(s.done)

	if s.prev != nil {
		<-s.prev.released
		s.prev = nil
	}
	ref := s.item.FileURL
	if ref == "" {
		return
	}
	if s.ctx.Err() != nil {
		c.stale(s, "superseded before start")
		return
	}

	c.metrics.IncSessions()
	log := c.log.With(zap.String("session_id", s.id.String()), zap.String("reference", ref))
	injection := bridge.Injection{ImageURL: ref}

	if c.opts.Provisioner != nil && c.opts.Provisioner.Required(ref) {
		p := c.opts.Provisioner.Open()
		if !c.enterProvisioning(s, p) {
			return
		}

		res, err := p.Resolve(s.ctx, ref)
		if s.ctx.Err() != nil {
			c.stale(s, "provisioning superseded")
			return
		}
		if err != nil {
			log.Warn("Provisioning failed", zap.Error(err))
			c.fail(s, fmt.Errorf("provision %s: %w", ref, err))
			return
		}
		injection = bridge.Injection{ImageURL: res.URL, GeometryWidth: res.Width}
		log.Debug("Reference resolved",
			zap.String("resolved", res.URL),
			zap.Int("width", res.Width),
			zap.Bool("served", res.Served),
			zap.Bool("resized", res.Resized))
	}

	out := bridge.NewOutbound(func(ev bridge.Event) { c.onEvent(s, ev) }, c.opts.EventBuffer)
	title, ok := c.prepareMount(s, injection, out)
	if !ok {
		return
	}
	mount := Mount{
		SessionID: s.id,
		Inbound:   bridge.NewInbound(injection),
		Outbound:  out,
		Title:     title,
	}

	inst, err := c.opts.Surface.Mount(s.ctx, mount)

	c.mu.Lock()
	s.instance = inst
	if c.current != s || s.phase.Terminal() {
		c.mu.Unlock()
		c.stale(s, "mount superseded")
		return
	}
	if err != nil {
		c.mu.Unlock()
		log.Warn("Sandbox mount failed", zap.Error(err), zap.String("surface", c.opts.Surface.Name()))
		c.fail(s, fmt.Errorf("mount %s: %w", c.opts.Surface.Name(), err))
		return
	}
	// Show may have renamed the item while the surface was mounting
	title = s.item.Name
	s.title = title
	s.titled = true
	c.mu.Unlock()

	// The title is in place before the rendering phase becomes observable
	c.opts.Navigator.SetTitle(title)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current != s || s.phase.Terminal() {
		c.stale(s, "mount superseded")
		return
	}
	c.transition(s, PhaseRendering, "sandbox mounted")
	log.Info("Viewer rendering", zap.String("resolved", injection.ImageURL))
}

// enterProvisioning attaches p to s so teardown stops it even when s is
// superseded while resolving.
func (c *Controller) enterProvisioning(s *session, p provisioning.Provision) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	s.provision = p
	if c.current != s || s.phase.Terminal() {
		c.stale(s, "superseded before provisioning")
		return false
	}
	c.transition(s, PhaseProvisioning, "provisioning required")
	return true
}

func (c *Controller) prepareMount(s *session, injection bridge.Injection, out *bridge.Outbound) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s.outbound = out
	if c.current != s || s.phase.Terminal() {
		c.stale(s, "superseded before mount")
		return "", false
	}
	s.resolved = injection
	return s.item.Name, true
}

// fail records err and returns the session to idle
func (c *Controller) fail(s *session, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != s || s.phase.Terminal() {
		c.stale(s, "failure superseded")
		return
	}
	s.err = err
	s.updated = time.Now()
	if s.phase != PhaseIdle {
		c.transition(s, PhaseIdle, "resolution failed")
	}
}

// onEvent runs on the session's outbound pump
func (c *Controller) onEvent(s *session, ev bridge.Event) {
	c.metrics.RecordBridgeEvent(string(ev.Kind))

	fields := []zap.Field{
		zap.String("session_id", s.id.String()),
		zap.String("kind", string(ev.Kind)),
		zap.String("message", ev.Message),
	}
	if ev.Kind == bridge.KindError {
		c.log.Warn("Sandbox event", fields...)
	} else {
		c.log.Info("Sandbox event", fields...)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != s || s.phase.Terminal() {
		c.stale(s, "event from superseded session")
		return
	}
	switch ev.Kind {
	case bridge.KindLoaded:
		s.loaded = true
	case bridge.KindError:
		s.diagnostic = ev.Message
	}
	s.updated = time.Now()
}

// transition moves s to phase to. Caller holds c.mu.
func (c *Controller) transition(s *session, to Phase, reason string) {
	from := s.phase
	if !CanTransition(from, to) {
		c.log.Error("Illegal phase transition",
			zap.String("session_id", s.id.String()),
			zap.String("from", string(from)),
			zap.String("to", string(to)))
		return
	}

	now := time.Now()
	s.phase = to
	s.updated = now
	s.history = append(s.history, Transition{From: from, To: to, At: now, Reason: reason})
	c.metrics.RecordTransition(string(from), string(to))

	c.log.Debug("Phase transition",
		zap.String("session_id", s.id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("reason", reason))
}

// retire cancels s and schedules its teardown. Caller holds c.mu.
func (c *Controller) retire(s *session, reason string) {
	s.cancel()
	c.transition(s, PhaseTornDown, reason)
	go c.teardown(s)
}

// teardown releases provisioning first, then the sandbox
func (c *Controller) teardown(s *session) {
	<-s.done

	log := c.log.With(zap.String("session_id", s.id.String()))
	if s.provision != nil {
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.StopTimeout)
		if err := s.provision.Stop(ctx); err != nil {
			log.Warn("Failed to stop provisioning", zap.Error(err))
		}
		cancel()
	}
	if s.instance != nil {
		if err := s.instance.Close(); err != nil {
			log.Warn("Failed to close sandbox", zap.Error(err))
		}
	}
	if s.outbound != nil {
		s.outbound.Close()
		if dropped := s.outbound.Dropped(); dropped > 0 {
			log.Debug("Outbound events dropped after close", zap.Uint64("dropped", dropped))
		}
	}
	close(s.released)
}

// stale discards a result of a superseded session
func (c *Controller) stale(s *session, what string) {
	c.metrics.IncStale()
	c.log.Debug("Discarding stale result",
		zap.String("session_id", s.id.String()),
		zap.String("result", what))
}
