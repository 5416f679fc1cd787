package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/photosphere/internal/api/http"
	"github.com/GriffinCanCode/photosphere/internal/api/middleware"
	"github.com/GriffinCanCode/photosphere/internal/api/ws"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/config"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/photosphere/internal/provisioning"
	"github.com/GriffinCanCode/photosphere/internal/viewer"
	"github.com/GriffinCanCode/photosphere/internal/viewer/document"
	"github.com/GriffinCanCode/photosphere/internal/viewer/sandbox"
	"github.com/GriffinCanCode/photosphere/internal/viewer/surface"
)

const (
	shutdownTimeout = 10 * time.Second
	pruneInterval   = time.Hour
	pruneMaxAge     = 24 * time.Hour
)

// Server wraps the HTTP server and dependencies
type Server struct {
	config   *config.Config
	logger   *logging.Logger
	metrics  *monitoring.Metrics
	tracer   *tracing.Tracer
	pipeline *provisioning.Pipeline
	screens  *viewer.Manager
	surface  viewer.Surface
	closer   func() error
	router   *gin.Engine
	http     *http.Server

	closeOnce sync.Once
	closeErr  error
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewFromConfig(cfg.Logging.Level, cfg.Logging.Development)
	}
	logger.Info("Initializing viewer host",
		zap.String("port", cfg.Server.Port),
		zap.String("surface", cfg.Viewer.Surface),
		zap.String("load_mode", cfg.Viewer.LoadMode),
		zap.Bool("provisioning", cfg.Provisioning.Enabled),
	)

	metrics := monitoring.NewMetrics()
	tracer := tracing.New("photosphere", logger.Named("trace").Logger)

	docOpts, err := DocumentOptions(cfg.Viewer)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	provOpts, err := provisioning.OptionsFromConfig(cfg.Provisioning)
	if err != nil {
		tracer.Close()
		return nil, fmt.Errorf("provisioning config: %w", err)
	}
	pipeline, err := provisioning.NewPipeline(provOpts, logger, metrics)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	s := &Server{
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
		tracer:   tracer,
		pipeline: pipeline,
	}

	var documents apihttp.Documents
	switch cfg.Viewer.Surface {
	case "headless":
		sb := sandbox.DefaultConfig()
		sb.Timeout = cfg.Viewer.ScriptTimeout.Std()
		sb.Capability = cfg.Viewer.Capability
		h, err := surface.NewHeadless(surface.HeadlessOptions{
			Document: docOpts,
			Sandbox:  sb,
			PoolSize: cfg.Viewer.PoolSize,
		}, logger, metrics)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("headless surface: %w", err)
		}
		s.surface, s.closer = h, h.Close
	default:
		w, err := surface.NewWeb(surface.WebOptions{Document: docOpts}, logger, metrics)
		if err != nil {
			tracer.Close()
			return nil, fmt.Errorf("web surface: %w", err)
		}
		s.surface, documents = w, w
	}
	logger.Info("Viewer surface ready", zap.String("surface", s.surface.Name()))

	s.screens = viewer.NewManager(viewer.Options{
		Surface:     s.surface,
		Provisioner: pipeline,
		Logger:      logger,
		Metrics:     metrics,
	})

	handlers, err := apihttp.NewHandlers(s.screens, documents, s.surface.Name(), metrics, logger)
	if err != nil {
		s.release()
		return nil, err
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(tracing.Middleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.RateLimit.RequestsPerSecond
		rl.Burst = cfg.RateLimit.Burst
		router.Use(middleware.RateLimit(rl))
	}

	handlers.Register(router)
	if web, ok := s.surface.(*surface.Web); ok {
		ws.NewHandler(web, logger).Register(router)
	}

	s.router = router
	s.http = &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// DocumentOptions maps viewer configuration onto document options
func DocumentOptions(cfg config.ViewerConfig) (document.Options, error) {
	mode, err := document.ParseLoadMode(cfg.LoadMode)
	if err != nil {
		return document.Options{}, err
	}
	opts := document.DefaultOptions()
	opts.LibraryURL = cfg.LibraryURL
	opts.GeometryWidth = cfg.GeometryWidth
	opts.MaxResolution = cfg.MaxResolution
	opts.MaxFOVDegrees = cfg.MaxFOVDegrees
	opts.PinFirstLevel = cfg.PinFirstLevel
	opts.LoadMode = mode
	if err := opts.Validate(); err != nil {
		return document.Options{}, fmt.Errorf("viewer config: %w", err)
	}
	return opts, nil
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Screens returns the screen registry
func (s *Server) Screens() *viewer.Manager {
	return s.screens
}

// Run serves until ctx is done, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.logger.Info("Starting HTTP server", zap.String("addr", ln.Addr().String()))

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go s.pruneLoop(pruneCtx)

	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, then unmounts every screen
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	var errs []error
	if err := s.http.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := s.screens.CloseAll(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unmount screens: %w", err))
	}
	if err := s.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the surface and flushes spans and logs
func (s *Server) Close() error {
	s.closeOnce.Do(func() { s.closeErr = s.release() })
	return s.closeErr
}

func (s *Server) release() error {
	var err error
	if s.closer != nil {
		if err = s.closer(); err != nil {
			s.logger.Error("Failed to close surface", zap.Error(err))
		}
	}
	s.tracer.Close()
	s.logger.Sync()
	return err
}

// pruneLoop drops stale cached assets
func (s *Server) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.pipeline.Cache().Prune(ctx, pruneMaxAge)
			if err != nil {
				s.logger.Warn("Cache prune failed", zap.Error(err))
				continue
			}
			if n > 0 {
				s.logger.Info("Pruned cached assets", zap.Int("removed", n))
			}
		}
	}
}
