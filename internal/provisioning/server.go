package provisioning

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/monitoring"
)

// DefaultInclude limits directory listeners to image files
var DefaultInclude = []string{"**/*.{jpg,jpeg,png,webp,gif}"}

// ServerOptions configure the asset listener
type ServerOptions struct {
	BindHost string
	PortBase int
	PortSpan int
	Attempts int
	Include  []string
}

// DefaultServerOptions reserve 8080-9079 on loopback
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		BindHost: "127.0.0.1",
		PortBase: 8080,
		PortSpan: 1000,
		Attempts: 16,
		Include:  DefaultInclude,
	}
}

// Handle describes a running listener
type Handle struct {
	Port     int
	BaseURL  string
	AssetURL string
	Root     string

	srv     *http.Server
	done    chan struct{}
	running atomic.Bool
}

// Running reports whether the listener still accepts connections
func (h *Handle) Running() bool {
	return h != nil && h.running.Load()
}

// Server owns at most one asset listener
type Server struct {
	opts    ServerOptions
	log     *logging.Logger
	metrics *monitoring.Metrics

	mu     sync.Mutex
	handle *Handle
}

// NewServer creates an idle server
func NewServer(opts ServerOptions, log *logging.Logger, metrics *monitoring.Metrics) *Server {
	defaults := DefaultServerOptions()
	if opts.BindHost == "" {
		opts.BindHost = defaults.BindHost
	}
	if opts.PortBase <= 0 {
		opts.PortBase = defaults.PortBase
	}
	if opts.PortSpan <= 0 {
		opts.PortSpan = defaults.PortSpan
	}
	if opts.Attempts <= 0 {
		opts.Attempts = defaults.Attempts
	}
	if opts.Include == nil {
		opts.Include = defaults.Include
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Server{opts: opts, log: log, metrics: metrics}
}

// Serve stops any running listener, then serves path (a file or a
// directory) on a random port in the reserved range. It returns once the
// listener is accepting.
func (s *Server) Serve(ctx context.Context, path string) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.stopLocked(ctx); err != nil {
		return nil, &ServeError{Path: path, Err: err}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, &ServeError{Path: path, Err: err}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, &ServeError{Path: path, Err: err}
	}

	ln, port, err := s.listen(ctx)
	if err != nil {
		return nil, &ServeError{Path: path, Err: err}
	}

	host := s.opts.BindHost
	if host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	base := "http://" + net.JoinHostPort(host, strconv.Itoa(port))

	h := &Handle{
		Port:     port,
		BaseURL:  base,
		AssetURL: base + "/",
		Root:     abs,
		done:     make(chan struct{}),
	}

	var router *gin.Engine
	if info.IsDir() {
		router = s.directoryRouter(abs)
	} else {
		route := "/" + routeName(filepath.Base(abs))
		router = s.fileRouter(route, abs)
		h.AssetURL = base + route
	}

	h.srv = &http.Server{Handler: router, ReadHeaderTimeout: 10 * time.Second}
	h.running.Store(true)

	go func() {
		defer close(h.done)
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Warn("Asset listener stopped", zap.Int("port", port), zap.Error(err))
		}
		h.running.Store(false)
	}()

	s.handle = h
	s.metrics.AddListeners(1)
	s.log.Debug("Asset listener started", zap.Int("port", port), zap.String("root", abs))
	return h, nil
}

// Stop releases the listener. It is a no-op when nothing is running.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked(ctx)
}

// Handle returns the running listener, or nil
func (s *Server) Handle() *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *Server) stopLocked(ctx context.Context) error {
	h := s.handle
	if h == nil {
		return nil
	}
	s.handle = nil

	err := h.srv.Shutdown(ctx)
	if err != nil {
		h.srv.Close()
	}
	<-h.done
	h.running.Store(false)

	s.metrics.AddListeners(-1)
	s.log.Debug("Asset listener stopped", zap.Int("port", h.Port))
	if err != nil {
		return fmt.Errorf("shutdown listener on %d: %w", h.Port, err)
	}
	return nil
}

func (s *Server) listen(ctx context.Context) (net.Listener, int, error) {
	var lc net.ListenConfig
	var last error
	for i := 0; i < s.opts.Attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		port := s.opts.PortBase + rand.IntN(s.opts.PortSpan)
		ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(s.opts.BindHost, strconv.Itoa(port)))
		if err == nil {
			return ln, port, nil
		}
		last = err
	}
	return nil, 0, fmt.Errorf("%w in [%d, %d) after %d attempts: %v",
		ErrNoListener, s.opts.PortBase, s.opts.PortBase+s.opts.PortSpan, s.opts.Attempts, last)
}

func (s *Server) engine() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "HEAD", "OPTIONS"},
		MaxAge:          12 * time.Hour,
	}))
	return router
}

func (s *Server) fileRouter(route, path string) *gin.Engine {
	router := s.engine()
	serve := func(c *gin.Context) { c.File(path) }
	router.GET(route, serve)
	router.HEAD(route, serve)
	return router
}

func (s *Server) directoryRouter(root string) *gin.Engine {
	router := s.engine()
	serve := func(c *gin.Context) {
		rel := strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+c.Param("filepath"))), "/")
		if !s.allowed(rel) {
			c.Status(http.StatusNotFound)
			return
		}
		c.File(filepath.Join(root, filepath.FromSlash(rel)))
	}
	router.GET("/*filepath", serve)
	router.HEAD("/*filepath", serve)
	return router
}

func (s *Server) allowed(rel string) bool {
	name := strings.ToLower(rel)
	for _, pattern := range s.opts.Include {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// routeName keeps a file name safe for use as a route segment
func routeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "asset"
	}
	return b.String()
}
