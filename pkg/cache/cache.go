package cache

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/grafana/kvcache/pkg/callhistory"
	"github.com/grafana/kvcache/pkg/kv"
	"github.com/grafana/kvcache/pkg/util"
)

// StoreOperation is the qualified name Cache.Store is counted and recorded under.
const StoreOperation = "Cache.Store"

// Config is the Cache configuration.
type Config struct {
	FlushOnStart bool `yaml:"flush_on_start"`
}

// RegisterFlagsAndApplyDefaults registers flags and applies defaults
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.FlushOnStart, util.PrefixConfig(prefix, "flush-on-start"), false, "Flush the whole redis db when the cache is created.")
}

// DecodeFunc converts the raw stored bytes of a key. raw is nil when the key
// is absent.
type DecodeFunc[T any] func(raw []byte) (T, error)

// Cache stores values under generated keys. It keeps no local copy of what it
// stores.
type Cache struct {
	kv     kv.Store
	store  callhistory.Func
	logger log.Logger

	metricGets *prometheus.CounterVec
}

// New makes a new Cache on top of store.
func New(ctx context.Context, cfg *Config, store kv.Store, reg prometheus.Registerer, logger log.Logger) (*Cache, error) {
	c := &Cache{
		kv:     store,
		logger: logger,
		metricGets: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "kvcache",
			Name:      "cache_gets_total",
			Help:      "Total number of cache reads by result.",
		}, []string{"result"}),
	}
	c.store = callhistory.Instrument(store, StoreOperation, c.storeValue)

	if cfg.FlushOnStart {
		level.Info(logger).Log("msg", "flushing redis db on start")
		if err := store.FlushDB(ctx); err != nil {
			return nil, fmt.Errorf("failed to flush store: %w", err)
		}
	}

	return c, nil
}

// Store persists data under a fresh random key and returns the key. Every call
// is counted and recorded under StoreOperation.
func (c *Cache) Store(ctx context.Context, data kv.Value) (string, error) {
	key, err := c.store(ctx, data)
	if err != nil {
		return "", err
	}
	return key.String(), nil
}

func (c *Cache) storeValue(ctx context.Context, args ...kv.Value) (kv.Value, error) {
	if len(args) != 1 {
		return kv.Value{}, fmt.Errorf("store takes exactly one value, got %d", len(args))
	}

	key := uuid.NewString()
	if err := c.kv.Set(ctx, key, args[0].Bytes()); err != nil {
		return kv.Value{}, err
	}

	level.Debug(c.logger).Log("msg", "stored value", "key", key, "kind", args[0].Kind())
	return kv.String(key), nil
}

// Get returns the raw bytes stored at key, or nil if the key is absent or expired.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	buf, found, err := c.kv.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if !found {
		c.metricGets.WithLabelValues("miss").Inc()
		return nil, nil
	}
	c.metricGets.WithLabelValues("hit").Inc()
	return buf, nil
}

// GetWith applies decode to the raw bytes stored at key, absent keys included,
// and returns whatever decode returns.
func GetWith[T any](ctx context.Context, c *Cache, key string, decode DecodeFunc[T]) (T, error) {
	buf, err := c.Get(ctx, key)
	if err != nil {
		var zero T
		return zero, err
	}
	return decode(buf)
}

// GetStr returns the text stored at key. Absent keys and bytes that are not
// valid UTF-8 read as "".
func (c *Cache) GetStr(ctx context.Context, key string) (string, error) {
	return GetWith(ctx, c, key, func(raw []byte) (string, error) {
		s, err := DecodeString(raw)
		if err != nil {
			level.Debug(c.logger).Log("msg", "value is not text", "key", key, "err", err)
			return "", nil
		}
		return s, nil
	})
}

// GetInt returns the integer stored at key. Absent keys and values that are
// not a base 10 integer read as 0.
func (c *Cache) GetInt(ctx context.Context, key string) (int64, error) {
	return GetWith(ctx, c, key, func(raw []byte) (int64, error) {
		i, err := DecodeInt(raw)
		if err != nil {
			level.Debug(c.logger).Log("msg", "value is not an integer", "key", key, "err", err)
			return 0, nil
		}
		return i, nil
	})
}

// DecodeString is a strict DecodeFunc for UTF-8 text. Absent keys decode to "".
func DecodeString(raw []byte) (string, error) {
	if !utf8.Valid(raw) {
		return "", fmt.Errorf("value is not valid utf-8")
	}
	return string(raw), nil
}

// DecodeInt is a strict DecodeFunc for base 10 integers. Absent keys decode to 0.
func DecodeInt(raw []byte) (int64, error) {
	if raw == nil {
		return 0, nil
	}
	s, err := DecodeString(raw)
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(strings.TrimSpace(s), 10, 64)
}

// Flush removes every key of the underlying store, counters and history included.
func (c *Cache) Flush(ctx context.Context) error {
	return c.kv.FlushDB(ctx)
}
