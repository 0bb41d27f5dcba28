// Package fetch downloads raw provider CSVs and keeps the latest copy per hour
// on disk.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/covid-trends-etl/internal/config"
	"github.com/couchcryptid/covid-trends-etl/internal/domain"
	"github.com/couchcryptid/covid-trends-etl/internal/observability"
	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"
)

// hourLayout names cache files after the UTC hour they were downloaded in.
const hourLayout = "2006-01-02:15"

// maxErrorBody caps how much of a failed response is kept on the error.
const maxErrorBody = 1024

var (
	errUnknownProvider = errors.New("unknown provider")
	errInvalidKey      = errors.New("invalid cache key")
)

// Options configures a Fetcher.
type Options struct {
	CacheRoot      string
	Client         *http.Client
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Clock          clockwork.Clock
}

// OptionsFromConfig derives fetcher options from service configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		CacheRoot:      cfg.CacheRoot,
		Client:         &http.Client{Timeout: cfg.HTTPTimeout},
		MaxRetries:     cfg.FetchMaxRetries,
		InitialBackoff: cfg.FetchInitialBackoff,
		MaxBackoff:     30 * time.Second,
	}
}

// Fetcher implements domain.CSVFetcher over HTTP with an hourly disk cache.
// Each provider gets its own circuit breaker.
type Fetcher struct {
	urls     map[string]string
	breakers map[string]*gobreaker.CircuitBreaker
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Fetcher. urls maps provider names to their download URL; a
// "{key}" placeholder in a URL is replaced with the requested key.
func New(opts Options, urls map[string]string, logger *slog.Logger, metrics *observability.Metrics) *Fetcher {
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 30 * time.Second}
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff < opts.InitialBackoff {
		opts.MaxBackoff = opts.InitialBackoff
	}

	breakers := make(map[string]*gobreaker.CircuitBreaker, len(urls))
	for provider := range urls {
		breakers[provider] = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        provider,
			MaxRequests: 5,
			Interval:    1 * time.Minute,
			Timeout:     2 * time.Minute,
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())
			},
		})
	}

	return &Fetcher{
		urls:     urls,
		breakers: breakers,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// FetchCSV returns the provider's payload for key, served from the cache when
// a copy was already downloaded during the current UTC hour.
func (f *Fetcher) FetchCSV(ctx context.Context, provider, key string) ([]byte, error) {
	rawURL, ok := f.urls[provider]
	if !ok {
		return nil, &domain.FetchError{Provider: provider, Key: key, Err: errUnknownProvider}
	}
	if key == "" || key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return nil, &domain.FetchError{Provider: provider, Key: key, Err: errInvalidKey}
	}

	path := f.CachePath(provider, key)
	if data, err := os.ReadFile(path); err == nil {
		f.metrics.FetchCache.WithLabelValues(provider, "hit").Inc()
		f.logger.Debug("fetch cache hit", "provider", provider, "key", key, "path", path)
		return data, nil
	}
	f.metrics.FetchCache.WithLabelValues(provider, "miss").Inc()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.ReplaceAll(rawURL, "{key}", key), nil)
	if err != nil {
		return nil, &domain.FetchError{Provider: provider, Key: key, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Accept", "text/csv")

	start := time.Now()
	data, err := f.download(ctx, provider, key, req)
	f.metrics.FetchDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		f.metrics.FetchRequests.WithLabelValues(provider, "error").Inc()
		return nil, err
	}
	f.metrics.FetchRequests.WithLabelValues(provider, "success").Inc()

	if err := writeAtomic(path, data); err != nil {
		f.logger.Warn("fetch cache write failed", "provider", provider, "path", path, "error", err)
	}
	f.logger.Info("fetched upstream csv", "provider", provider, "key", key, "bytes", len(data))
	return data, nil
}

// CachePath returns <cache_root>/<provider>/<key>/<YYYY-MM-DD:HH>.csv for the
// current UTC hour.
func (f *Fetcher) CachePath(provider, key string) string {
	hour := f.opts.Clock.Now().UTC().Format(hourLayout)
	return filepath.Join(f.opts.CacheRoot, provider, key, hour+".csv")
}

// download performs the request with retries, exponential backoff, and the
// provider's circuit breaker. Only temporary failures are retried.
func (f *Fetcher) download(ctx context.Context, provider, key string, req *http.Request) ([]byte, error) {
	cb := f.breakers[provider]
	backoff := f.opts.InitialBackoff

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &domain.FetchError{Provider: provider, Key: key, Err: err}
		}

		result, err := cb.Execute(func() (interface{}, error) {
			return f.get(req.Clone(ctx), provider, key)
		})
		if err == nil {
			data, ok := result.([]byte)
			if !ok {
				return nil, &domain.FetchError{Provider: provider, Key: key, Err: errors.New("unexpected result type from circuit breaker")}
			}
			return data, nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &domain.FetchError{Provider: provider, Key: key, Err: fmt.Errorf("circuit breaker open: %w", err)}
		}

		var fe *domain.FetchError
		if !errors.As(err, &fe) {
			fe = &domain.FetchError{Provider: provider, Key: key, Err: err}
		}
		if !fe.Temporary() || attempt >= f.opts.MaxRetries {
			return nil, fe
		}

		f.logger.Warn("fetch attempt failed, retrying",
			"provider", provider,
			"attempt", attempt+1,
			"backoff", backoff,
			"error", fe,
		)
		if !retry.SleepWithContext(ctx, backoff) {
			return nil, &domain.FetchError{Provider: provider, Key: key, Err: ctx.Err()}
		}
		backoff = retry.NextBackoff(backoff, f.opts.MaxBackoff)
	}
}

func (f *Fetcher) get(req *http.Request, provider, key string) ([]byte, error) {
	resp, err := f.opts.Client.Do(req)
	if err != nil {
		return nil, &domain.FetchError{Provider: provider, Key: key, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &domain.FetchError{
			Provider:   provider,
			Key:        key,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FetchError{Provider: provider, Key: key, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

// writeAtomic writes data next to path and renames it into place so readers
// never observe a partial file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename cache file: %w", err)
	}
	return nil
}
