package provisioning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/GriffinCanCode/photosphere/internal/infrastructure/logging"
	"github.com/GriffinCanCode/photosphere/internal/infrastructure/resilience"
)

// FetcherOptions configure remote downloads
type FetcherOptions struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	RateLimit    float64 // requests per second, <= 0 for unlimited
	UserAgent    string
}

// DefaultFetcherOptions are tuned for large panorama downloads
func DefaultFetcherOptions() FetcherOptions {
	return FetcherOptions{
		Timeout:      2 * time.Minute,
		RetryMax:     3,
		RetryWaitMin: 1 * time.Second,
		RetryWaitMax: 30 * time.Second,
		RateLimit:    0,
		UserAgent:    "Photosphere/1.0",
	}
}

// Fetcher downloads remote sources into the cache with retries, a circuit
// breaker and rate limiting
type Fetcher struct {
	resty   *resty.Client
	limiter *rate.Limiter
	breaker *resilience.Breaker
	cache   *Cache
	log     *logging.Logger
}

// NewFetcher builds a fetcher writing into cache
func NewFetcher(cache *Cache, opts FetcherOptions, log *logging.Logger) *Fetcher {
	if log == nil {
		log = logging.NewNop()
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.RetryMax
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = retryLogger{log.Named("fetch").Sugar()}

	client := resty.NewWithClient(retryClient.StandardClient()).
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent)

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), max(1, int(opts.RateLimit)))
	}

	breaker := resilience.New("provision-fetch", resilience.Settings{
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var fe *FetchError
			return err == nil || (errors.As(err, &fe) && fe.ClientError())
		},
		OnStateChange: func(name string, from, to resilience.State) {
			log.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Fetcher{
		resty:   client,
		limiter: limiter,
		breaker: breaker,
		cache:   cache,
		log:     log,
	}
}

// Breaker exposes the fetch circuit breaker
func (f *Fetcher) Breaker() *resilience.Breaker {
	return f.breaker
}

// Fetch downloads rawURL into the cache, reusing an earlier download
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	name := "source-" + f.cache.Key(rawURL) + sourceExt(rawURL)
	if cached, ok := f.cache.Lookup(name); ok {
		return cached, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return "", &FetchError{URL: rawURL, Err: fmt.Errorf("rate limit: %w", err)}
	}

	return resilience.Do(ctx, f.breaker, func(ctx context.Context) (string, error) {
		return f.download(ctx, rawURL, name)
	})
}

func (f *Fetcher) download(ctx context.Context, rawURL, name string) (string, error) {
	resp, err := f.resty.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		return "", &FetchError{URL: rawURL, Status: resp.StatusCode()}
	}

	path, err := f.cache.Write(name, func(w io.Writer) error {
		_, err := io.Copy(w, body)
		return err
	})
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}

	if info, err := os.Stat(path); err == nil {
		f.log.Debug("Fetched remote source", zap.String("url", rawURL), zap.Int64("bytes", info.Size()))
	}
	return path, nil
}

func sourceExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".img"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	}
	return ".img"
}

// retryLogger adapts zap to retryablehttp.LeveledLogger
type retryLogger struct {
	s *zap.SugaredLogger
}

func (l retryLogger) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l retryLogger) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
func (l retryLogger) Info(msg string, kv ...interface{})  { l.s.Debugw(msg, kv...) }
func (l retryLogger) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
