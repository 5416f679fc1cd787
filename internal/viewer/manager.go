package viewer

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/shared/id"
)

// Manager tracks the mounted screens of a host
type Manager struct {
	opts Options

	mu      sync.RWMutex
	screens map[id.ScreenID]*Controller
}

// NewManager creates a manager whose screens share opts. Without a
// navigator, titles are logged.
func NewManager(opts Options) *Manager {
	return &Manager{
		opts:    opts,
		screens: make(map[id.ScreenID]*Controller),
	}
}

// Open mounts a new screen and shows item on it
func (m *Manager) Open(ctx context.Context, item Item) (*Controller, error) {
	screen := id.NewScreenID()

	opts := m.opts
	if opts.Navigator == nil && opts.Logger != nil {
		opts.Navigator = logNavigator{log: opts.Logger.With(zap.String("screen_id", screen.String()))}
	}
	c, err := NewController(screen, opts)
	if err != nil {
		return nil, err
	}
	if err := c.Show(ctx, item); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.screens[screen] = c
	count := len(m.screens)
	m.mu.Unlock()

	m.opts.Metrics.SetScreensActive(count)
	return c, nil
}

// Get returns a mounted screen
func (m *Manager) Get(screen id.ScreenID) (*Controller, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.screens[screen]
	return c, ok
}

// Close unmounts a screen and forgets it
func (m *Manager) Close(ctx context.Context, screen id.ScreenID) error {
	m.mu.Lock()
	c, ok := m.screens[screen]
	delete(m.screens, screen)
	count := len(m.screens)
	m.mu.Unlock()

	if !ok {
		return ErrScreenNotFound
	}
	m.opts.Metrics.SetScreensActive(count)
	return c.Unmount(ctx)
}

// CloseAll unmounts every screen concurrently
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	screens := m.screens
	m.screens = make(map[id.ScreenID]*Controller)
	m.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range screens {
		g.Go(func() error {
			return c.Unmount(ctx)
		})
	}
	err := g.Wait()
	m.opts.Metrics.SetScreensActive(0)
	return err
}

// Len returns the number of mounted screens
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.screens)
}

type logNavigator struct {
	log *logging.Logger
}

func (n logNavigator) SetTitle(title string) {
	n.log.Info("Screen title set", zap.String("title", title))
}
