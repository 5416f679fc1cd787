package provisioning

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/monitoring"
)

// Adapter provisions assets for one viewer session. It owns at most one
// asset listener.
type Adapter struct {
	pipeline *Pipeline
	server   *Server
}

// Resize scales ref into the cache
func (a *Adapter) Resize(ctx context.Context, ref string, opts ResizeOptions) (path string, err error) {
	timer := monitoring.NewTimer(a.pipeline.metrics, "resize")
	defer func() { timer.Stop(err) }()

	src, ok := LocalPath(ref)
	if !ok {
		return "", &ResizeError{Source: ref, Err: ErrUnsupportedSource}
	}
	return a.pipeline.resizer.Resize(ctx, src, opts)
}

// Serve starts the listener for path, replacing any running one, and
// returns the asset URL
func (a *Adapter) Serve(ctx context.Context, path string) (assetURL string, err error) {
	timer := monitoring.NewTimer(a.pipeline.metrics, "serve")
	defer func() { timer.Stop(err) }()

	if local, ok := LocalPath(path); ok {
		path = local
	}
	h, err := a.server.Serve(ctx, path)
	if err != nil {
		return "", err
	}
	return h.AssetURL, nil
}

// Stop releases the listener; safe when nothing runs
func (a *Adapter) Stop(ctx context.Context) error {
	return a.server.Stop(ctx)
}

// Handle returns the running listener, or nil
func (a *Adapter) Handle() *Handle {
	return a.server.Handle()
}

// Resolve runs the pipeline for ref: fetch, resize, probe, serve. Failures
// of individual steps fall back to the unmodified reference; only a local
// reference that can be neither served nor passed as file:// is an error.
func (a *Adapter) Resolve(ctx context.Context, ref string) (Resolved, error) {
	opts := a.pipeline.opts
	log := a.pipeline.log.With(zap.String("reference", ref))
	res := Resolved{URL: ref, Original: ref}

	path, local := LocalPath(ref)
	if Classify(ref) == KindRemote && opts.FetchRemote {
		fetched, err := a.fetch(ctx, ref)
		if err == nil {
			path, local = fetched, true
			res.Fetched = true
		} else if ctx.Err() == nil {
			log.Warn("Fetch failed, using remote reference", zap.Error(err))
		}
	}
	if err := ctx.Err(); err != nil {
		return Resolved{}, err
	}
	if !local {
		return res, nil
	}

	source := path
	sourceDims, probeErr := Probe(source)

	if a.needsResize(source, sourceDims, probeErr) {
		resized, err := a.Resize(ctx, source, opts.Resize)
		switch {
		case err == nil:
			path = resized
			res.Resized = true
		case ctx.Err() != nil:
			return Resolved{}, ctx.Err()
		default:
			log.Warn("Resize failed, using original asset", zap.Error(err))
		}
	}

	dims := sourceDims
	if res.Resized {
		if d, err := Probe(path); err == nil {
			dims = d
		}
	}
	res.Width, res.Height = dims.Width, dims.Height

	if err := ctx.Err(); err != nil {
		return Resolved{}, err
	}

	if opts.Serve {
		url, err := a.Serve(ctx, path)
		if err == nil {
			res.URL = url
			res.Served = true
			return res, nil
		}
		if ctx.Err() != nil {
			return Resolved{}, ctx.Err()
		}
		log.Warn("Serve failed", zap.Error(err))
	}

	// Fallbacks
	if res.Fetched {
		res.URL = ref
		res.Width, res.Height = sourceDims.Width, sourceDims.Height
		res.Resized = false
		return res, nil
	}
	if opts.AllowFileScheme {
		if _, err := os.Stat(path); err == nil {
			res.URL = FileURL(path)
			return res, nil
		}
	}
	return Resolved{}, fmt.Errorf("%w: %s", ErrUnusableReference, ref)
}

func (a *Adapter) fetch(ctx context.Context, ref string) (path string, err error) {
	timer := monitoring.NewTimer(a.pipeline.metrics, "fetch")
	defer func() { timer.Stop(err) }()
	return a.pipeline.fetcher.Fetch(ctx, ref)
}

func (a *Adapter) needsResize(path string, dims Dimensions, probeErr error) bool {
	opts := a.pipeline.opts
	if probeErr != nil {
		// Undecodable headers are left to the resizer to reject
		return !errors.Is(probeErr, os.ErrNotExist)
	}
	if opts.Resize.Exceeds(dims.Width, dims.Height) {
		return true
	}
	if opts.ResizeAboveBytes > 0 {
		if info, err := os.Stat(path); err == nil && info.Size() > opts.ResizeAboveBytes {
			return true
		}
	}
	return false
}
