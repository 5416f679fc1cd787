package provisioning

import (
	"context"
	"fmt"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/config"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/monitoring"
)

// Resolved is the outcome of provisioning one reference
type Resolved struct {
	URL      string `json:"url"`
	Original string `json:"original"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Fetched  bool   `json:"fetched,omitempty"`
	Resized  bool   `json:"resized,omitempty"`
	Served   bool   `json:"served,omitempty"`
}

// Provision is the per-session provisioning lifecycle
type Provision interface {
	Resolve(ctx context.Context, ref string) (Resolved, error)
	Stop(ctx context.Context) error
}

// Options configure the pipeline
type Options struct {
	Enabled          bool
	FetchRemote      bool
	ResizeAboveBytes int64
	Resize           ResizeOptions
	Serve            bool
	Server           ServerOptions
	Fetcher          FetcherOptions
	CacheDir         string
	AllowFileScheme  bool
}

// OptionsFromConfig maps the environment configuration
func OptionsFromConfig(cfg config.ProvisioningConfig) (Options, error) {
	format, err := ParseFormat(cfg.Format)
	if err != nil {
		return Options{}, err
	}

	server := DefaultServerOptions()
	server.BindHost = cfg.BindHost
	server.PortBase = cfg.PortBase
	server.PortSpan = cfg.PortSpan

	opts := Options{
		Enabled:          cfg.Enabled,
		FetchRemote:      cfg.FetchRemote,
		ResizeAboveBytes: cfg.ResizeAboveBytes,
		Resize: ResizeOptions{
			MaxWidth:  cfg.MaxWidth,
			MaxHeight: cfg.MaxHeight,
			Format:    format,
			Quality:   cfg.Quality,
		},
		Serve:           cfg.Serve,
		Server:          server,
		Fetcher:         DefaultFetcherOptions(),
		CacheDir:        cfg.CacheDir,
		AllowFileScheme: cfg.AllowFileScheme,
	}
	if err := opts.Resize.Validate(); err != nil {
		return Options{}, err
	}
	return opts, nil
}

// Pipeline decides whether a reference needs provisioning and opens one
// Adapter per session. The cache and fetcher are shared.
type Pipeline struct {
	opts    Options
	cache   *Cache
	resizer *Resizer
	fetcher *Fetcher
	log     *logging.Logger
	metrics *monitoring.Metrics
}

// NewPipeline prepares the cache directory
func NewPipeline(opts Options, log *logging.Logger, metrics *monitoring.Metrics) (*Pipeline, error) {
	if log == nil {
		log = logging.NewNop()
	}
	cache, err := NewCache(opts.CacheDir)
	if err != nil {
		return nil, fmt.Errorf("provisioning: %w", err)
	}
	log = log.Named("provisioning")
	return &Pipeline{
		opts:    opts,
		cache:   cache,
		resizer: NewResizer(cache),
		fetcher: NewFetcher(cache, opts.Fetcher, log),
		log:     log,
		metrics: metrics,
	}, nil
}

// Required reports whether ref should go through provisioning
func (p *Pipeline) Required(ref string) bool {
	if !p.opts.Enabled {
		return false
	}
	switch Classify(ref) {
	case KindLocal, KindFile:
		return true
	case KindRemote:
		return p.opts.FetchRemote
	}
	return false
}

// Open starts a fresh per-session adapter
func (p *Pipeline) Open() Provision {
	return p.NewAdapter()
}

// NewAdapter returns a concrete adapter with its own listener
func (p *Pipeline) NewAdapter() *Adapter {
	return &Adapter{
		pipeline: p,
		server:   NewServer(p.opts.Server, p.log, p.metrics),
	}
}

// Cache exposes the shared asset cache
func (p *Pipeline) Cache() *Cache {
	return p.cache
}

// Options returns the pipeline settings
func (p *Pipeline) Options() Options {
	return p.opts
}
