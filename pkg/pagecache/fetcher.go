package pagecache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/cristalhq/hedgedhttp"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"

	"github.com/grafana/kvcache/pkg/hedgedmetrics"
)

// ErrFetchFailed is wrapped by every error returned from a failed page fetch.
var ErrFetchFailed = errors.New("page fetch failed")

// FetchError is returned when the upstream answers with a non-success status.
type FetchError struct {
	URL        string
	StatusCode int
	Body       []byte
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("GET request to %s failed with response: %d body: %s", e.URL, e.StatusCode, string(e.Body))
}

func (e *FetchError) Unwrap() error { return ErrFetchFailed }

// Fetcher retrieves the body of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetcherFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

// HTTPFetcher fetches pages with a GET request.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	breaker   *gobreaker.CircuitBreaker
	logger    log.Logger
	done      chan struct{}
	stopOnce  sync.Once
}

var _ Fetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher builds the fetcher's transport: gzip aware, hedged when
// HedgeRequestsAt is set, and guarded by a circuit breaker when
// BreakerFailures is set.
func NewHTTPFetcher(cfg *FetchConfig, reg prometheus.Registerer, logger log.Logger) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		userAgent: cfg.UserAgent,
		logger:    logger,
		done:      make(chan struct{}),
	}

	transport := gzhttp.Transport(http.DefaultTransport.(*http.Transport).Clone())

	// hedge if desired (0 means disabled)
	if cfg.HedgeRequestsAt != 0 {
		var (
			stats *hedgedhttp.Stats
			err   error
		)
		transport, stats, err = hedgedhttp.NewRoundTripperAndStats(cfg.HedgeRequestsAt, cfg.HedgeRequestsUpTo, transport)
		if err != nil {
			return nil, err
		}
		hedgedmetrics.Publish(stats, promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "kvcache",
			Name:      "pagecache_hedged_roundtrips_total",
			Help:      "Total number of hedged page fetches.",
		}), f.done)
	}

	if cfg.BreakerFailures > 0 {
		f.breaker = newBreaker(cfg, logger)
	}

	f.client = &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}
	return f, nil
}

func newBreaker(cfg *FetchConfig, logger log.Logger) *gobreaker.CircuitBreaker {
	failures := uint32(cfg.BreakerFailures)
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "pagecache-fetch",
		Timeout: cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// client errors are the caller's fault, not the upstream's
		IsSuccessful: func(err error) bool {
			var fetchErr *FetchError
			if errors.As(err, &fetchErr) {
				return fetchErr.StatusCode < http.StatusInternalServerError
			}
			return err == nil
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			level.Warn(logger).Log("msg", "circuit breaker changed state", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

// WithTransport replaces the round tripper. Hedging and gzip handling
// configured by NewHTTPFetcher are dropped.
func (f *HTTPFetcher) WithTransport(t http.RoundTripper) {
	f.client.Transport = t
}

// Fetch returns the body of url. Non-2xx responses return a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.breaker == nil {
		return f.fetch(ctx, url)
	}

	body, err := f.breaker.Execute(func() (interface{}, error) {
		return f.fetch(ctx, url)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrFetchFailed, url, err)
	}
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrFetchFailed, url, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(resp.Body)
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode, Body: body}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: error reading response body: %w", ErrFetchFailed, err)
	}
	return body, nil
}

// Stop releases background resources. It is safe to call more than once.
func (f *HTTPFetcher) Stop() {
	f.stopOnce.Do(func() {
		close(f.done)
	})
}
