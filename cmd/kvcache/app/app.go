package app

import (
	"context"
	"fmt"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/kvcache/pkg/cache"
	"github.com/grafana/kvcache/pkg/kv"
	"github.com/grafana/kvcache/pkg/pagecache"
)

// App owns the store connection and every component built on it.
type App struct {
	cfg    Config
	logger log.Logger

	Store     kv.Store
	Cache     *cache.Cache
	PageCache *pagecache.PageCache

	fetcher *pagecache.HTTPFetcher
}

// New connects to redis and builds the components.
func New(ctx context.Context, cfg Config, reg prometheus.Registerer, logger log.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store := kv.NewRedisStore(&cfg.Redis, reg, log.With(logger, "component", "kv"))
	return NewWithStore(ctx, cfg, store, reg, logger)
}

// NewWithStore builds the components on top of an existing store. The App
// takes ownership of store.
func NewWithStore(ctx context.Context, cfg Config, store kv.Store, reg prometheus.Registerer, logger log.Logger) (*App, error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
		Store:  store,
	}

	var err error
	a.Cache, err = cache.New(ctx, &cfg.Cache, store, reg, log.With(logger, "component", "cache"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}

	a.fetcher, err = pagecache.NewHTTPFetcher(&cfg.PageCache.Fetch, reg, log.With(logger, "component", "fetcher"))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create page fetcher: %w", err)
	}
	a.PageCache = pagecache.New(&cfg.PageCache, store, a.fetcher, reg, log.With(logger, "component", "pagecache"))

	level.Debug(logger).Log("msg", "app initialised", "redis", cfg.Redis.Endpoint)
	return a, nil
}

// Stop closes the store connection and releases background resources.
func (a *App) Stop() error {
	a.fetcher.Stop()
	return a.Store.Close()
}

// Config returns the config the App was built with.
func (a *App) Config() Config {
	return a.cfg
}
