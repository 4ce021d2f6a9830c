package pagecache

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/grafana/kvcache/pkg/kv"
	"github.com/grafana/kvcache/pkg/kv/kvtest"
)

type countingFetcher struct {
	calls atomic.Int32
	body  string
	err   error
}

func (f *countingFetcher) Fetch(context.Context, string) ([]byte, error) {
	f.calls.Inc()
	if f.err != nil {
		return nil, f.err
	}
	return []byte(f.body), nil
}

func newTestPageCache(t *testing.T, fetcher Fetcher) (*PageCache, *miniredis.Miniredis) {
	t.Helper()

	s, mr := kvtest.NewStore(t)
	return New(&Config{TTL: DefaultTTL}, s, fetcher, prometheus.NewRegistry(), log.NewNopLogger()), mr
}

func TestGetPageHitAndExpiry(t *testing.T) {
	ctx := context.Background()
	const url = "http://example.com/"

	fetcher := &countingFetcher{body: "<html>hello</html>"}
	p, mr := newTestPageCache(t, fetcher)

	// first read fetches
	page, err := p.GetPage(ctx, url)
	require.NoError(t, err)
	require.Equal(t, "<html>hello</html>", page)
	require.Equal(t, int32(1), fetcher.calls.Load())
	requireAccesses(t, p, url, 1)
	require.Equal(t, DefaultTTL, mr.TTL(url))

	// second read within the ttl is served from the store
	mr.FastForward(5 * time.Second)
	page, err = p.GetPage(ctx, url)
	require.NoError(t, err)
	require.Equal(t, "<html>hello</html>", page)
	require.Equal(t, int32(1), fetcher.calls.Load())
	requireAccesses(t, p, url, 2)

	// a hit does not refresh the ttl
	require.Equal(t, 5*time.Second, mr.TTL(url))

	// after the ttl the page is fetched again
	fetcher.body = "<html>changed</html>"
	mr.FastForward(5 * time.Second)
	page, err = p.GetPage(ctx, url)
	require.NoError(t, err)
	require.Equal(t, "<html>changed</html>", page)
	require.Equal(t, int32(2), fetcher.calls.Load())
	requireAccesses(t, p, url, 3)

	// the access counter never expires
	assert.Equal(t, time.Duration(0), mr.TTL(CountKey(url)))

	require.Equal(t, 1.0, testutil.ToFloat64(p.metricRequests.WithLabelValues("hit")))
	require.Equal(t, 2.0, testutil.ToFloat64(p.metricRequests.WithLabelValues("miss")))
}

func TestGetPageFetchFailure(t *testing.T) {
	ctx := context.Background()
	const url = "http://example.com/broken"

	fetcher := &countingFetcher{err: &FetchError{URL: url, StatusCode: http.StatusNotFound}}
	p, mr := newTestPageCache(t, fetcher)

	_, err := p.GetPage(ctx, url)
	require.ErrorIs(t, err, ErrFetchFailed)

	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	require.Equal(t, http.StatusNotFound, fetchErr.StatusCode)

	require.False(t, mr.Exists(url))
	requireAccesses(t, p, url, 0)
	require.Equal(t, 1.0, testutil.ToFloat64(p.metricFetchFailures))

	// failures are not cached, the next read fetches again
	_, err = p.GetPage(ctx, url)
	require.Error(t, err)
	require.Equal(t, int32(2), fetcher.calls.Load())
}

func TestGetPageStoreUnavailable(t *testing.T) {
	fetcher := &countingFetcher{body: "x"}
	p, mr := newTestPageCache(t, fetcher)

	mr.SetError("ERR down")
	_, err := p.GetPage(context.Background(), "http://example.com/")
	require.ErrorIs(t, err, kv.ErrStoreUnavailable)
	require.Equal(t, int32(0), fetcher.calls.Load())
}

func TestGetPageOverHTTP(t *testing.T) {
	requests := atomic.NewInt32(0)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Inc()
		_, _ = w.Write([]byte("served"))
	}))
	defer srv.Close()

	fetcher, err := NewHTTPFetcher(&FetchConfig{Timeout: time.Second}, prometheus.NewRegistry(), log.NewNopLogger())
	require.NoError(t, err)
	defer fetcher.Stop()

	p, _ := newTestPageCache(t, fetcher)

	for i := 0; i < 3; i++ {
		page, err := p.GetPage(context.Background(), srv.URL)
		require.NoError(t, err)
		require.Equal(t, "served", page)
	}
	require.Equal(t, int32(1), requests.Load())
	requireAccesses(t, p, srv.URL, 3)
}

func TestNewDefaultsTTL(t *testing.T) {
	s, _ := kvtest.NewStore(t)
	p := New(&Config{}, s, FetcherFunc(func(context.Context, string) ([]byte, error) { return nil, nil }), prometheus.NewRegistry(), log.NewNopLogger())
	require.Equal(t, DefaultTTL, p.ttl)
}

func requireAccesses(t *testing.T, p *PageCache, url string, expected int64) {
	t.Helper()

	n, err := p.Accesses(context.Background(), url)
	require.NoError(t, err)
	require.Equal(t, expected, n)
}
