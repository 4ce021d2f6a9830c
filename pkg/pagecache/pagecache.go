package pagecache

import (
	"context"
	"strconv"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grafana/kvcache/pkg/kv"
)

// CountKey is the key counting reads of url.
func CountKey(url string) string {
	return "count:" + url
}

// PageCache serves fetched pages from the store for a fixed TTL and counts
// every read of a URL, hits and misses alike.
//
// Storing a page and bumping its counter are two commands; a failure between
// them leaves the page cached without the read counted.
type PageCache struct {
	kv      kv.Store
	fetcher Fetcher
	ttl     time.Duration
	logger  log.Logger

	metricRequests      *prometheus.CounterVec
	metricFetchFailures prometheus.Counter
}

func New(cfg *Config, store kv.Store, fetcher Fetcher, reg prometheus.Registerer, logger log.Logger) *PageCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &PageCache{
		kv:      store,
		fetcher: fetcher,
		ttl:     ttl,
		logger:  logger,
		metricRequests: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvcache",
			Name:      "pagecache_requests_total",
			Help:      "Total number of page reads by result.",
		}, []string{"result"}),
		metricFetchFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "kvcache",
			Name:      "pagecache_fetch_failures_total",
			Help:      "Total number of page fetches that failed.",
		}),
	}
}

// GetPage returns the page at url, from the store if it was fetched less than
// the TTL ago. A hit does not extend the TTL. A failed fetch caches nothing.
func (p *PageCache) GetPage(ctx context.Context, url string) (string, error) {
	cached, found, err := p.kv.Get(ctx, url)
	if err != nil {
		return "", err
	}

	if found {
		p.metricRequests.WithLabelValues("hit").Inc()
		if _, err := p.kv.Incr(ctx, CountKey(url)); err != nil {
			return "", err
		}
		return string(cached), nil
	}

	p.metricRequests.WithLabelValues("miss").Inc()
	body, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		p.metricFetchFailures.Inc()
		level.Warn(p.logger).Log("msg", "failed to fetch page", "url", url, "err", err)
		return "", err
	}

	if err := p.kv.SetEX(ctx, url, p.ttl, body); err != nil {
		return "", err
	}
	if _, err := p.kv.Incr(ctx, CountKey(url)); err != nil {
		return "", err
	}

	level.Debug(p.logger).Log("msg", "cached page", "url", url, "bytes", len(body), "ttl", p.ttl)
	return string(body), nil
}

// Accesses returns how many times url was read through GetPage.
func (p *PageCache) Accesses(ctx context.Context, url string) (int64, error) {
	buf, found, err := p.kv.Get(ctx, CountKey(url))
	if err != nil || !found {
		return 0, err
	}

	n, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
