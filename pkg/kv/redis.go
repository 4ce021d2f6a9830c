package kv

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis/v8"
	instr "github.com/grafana/dskit/instrument"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RedisStore is a Store backed by a redis server.
type RedisStore struct {
	client          *redis.Client
	requestDuration *instr.HistogramCollector
	logger          log.Logger
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore makes a new RedisStore from the config.
func NewRedisStore(cfg *Config, reg prometheus.Registerer, logger log.Logger) *RedisStore {
	opts := &redis.Options{
		Addr:         cfg.Endpoint,
		Username:     cfg.Username,
		Password:     cfg.Password.String(),
		DB:           cfg.DB,
		DialTimeout:  cfg.Timeout,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		PoolSize:     cfg.PoolSize,
		IdleTimeout:  cfg.IdleTimeout,
		MaxRetries:   cfg.MaxRetries,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.TLSInsecure} //nolint:gosec
	}

	return NewRedisStoreWithClient(redis.NewClient(opts), reg, logger)
}

// NewRedisStoreWithClient wraps an existing client.
func NewRedisStoreWithClient(client *redis.Client, reg prometheus.Registerer, logger log.Logger) *RedisStore {
	return &RedisStore{
		client: client,
		logger: logger,
		requestDuration: instr.NewHistogramCollector(
			promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "kvcache",
				Name:      "kv_request_duration_seconds",
				Help:      "Total time spent in seconds doing redis requests.",
				// Redis requests are very quick: smallest bucket is 16us, biggest is 1s
				Buckets:                         prometheus.ExponentialBuckets(0.000016, 4, 8),
				NativeHistogramBucketFactor:     1.1,
				NativeHistogramMaxBucketNumber:  100,
				NativeHistogramMinResetDuration: 1 * time.Hour,
			}, []string{"method", "status_code"}),
		),
	}
}

func redisStatusCode(err error) string {
	switch {
	case err == nil:
		return "200"
	case errors.Is(err, redis.Nil):
		return "404"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancel"
	}
	return "500"
}

func (s *RedisStore) measureRequest(ctx context.Context, method string, f func(context.Context) error) error {
	return instr.CollectedRequest(ctx, method, s.requestDuration, redisStatusCode, f)
}

// unavailable logs and wraps a failed command.
func (s *RedisStore) unavailable(method, key string, err error) error {
	level.Error(s.logger).Log("msg", "redis request failed", "method", method, "key", key, "err", err)
	return fmt.Errorf("%w: %s %q: %w", ErrStoreUnavailable, method, key, err)
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	const method = "Redis.Set"
	err := s.measureRequest(ctx, method, func(ctx context.Context) error {
		return s.client.Set(ctx, key, value, 0).Err()
	})
	if err != nil {
		return s.unavailable(method, key, err)
	}
	return nil
}

func (s *RedisStore) SetEX(ctx context.Context, key string, ttl time.Duration, value []byte) error {
	const method = "Redis.SetEX"
	err := s.measureRequest(ctx, method, func(ctx context.Context) error {
		return s.client.SetEX(ctx, key, value, ttl).Err()
	})
	if err != nil {
		return s.unavailable(method, key, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const method = "Redis.Get"
	var val []byte
	err := s.measureRequest(ctx, method, func(ctx context.Context) error {
		var err error
		val, err = s.client.Get(ctx, key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		level.Debug(s.logger).Log("msg", "key not found in redis", "key", key)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, s.unavailable(method, key, err)
	}
	return val, true, nil
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	const method = "Redis.Incr"
	var n int64
	err := s.measureRequest(ctx, method, func(ctx context.Context) error {
		var err error
		n, err = s.client.Incr(ctx, key).Result()
		return err
	})
	if err != nil {
		return 0, s.unavailable(method, key, err)
	}
	return n, nil
}

func (s *RedisStore) RPush(ctx context.Context, key string, value []byte) error {
	const method = "Redis.RPush"
	err := s.measureRequest(ctx, method, func(ctx context.Context) error {
		return s.client.RPush(ctx, key, value).Err()
	})
	if err != nil {
		return s.unavailable(method, key, err)
	}
	return nil
}

func (s *RedisStore) LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error) {
	const method = "Redis.LRange"
	var vals []string
	err := s.measureRequest(ctx, method, func(ctx context.Context) error {
		var err error
		vals, err = s.client.LRange(ctx, key, start, stop).Result()
		return err
	})
	if err != nil {
		return nil, s.unavailable(method, key, err)
	}

	bufs := make([][]byte, 0, len(vals))
	for _, v := range vals {
		bufs = append(bufs, []byte(v))
	}
	return bufs, nil
}

func (s *RedisStore) FlushDB(ctx context.Context) error {
	const method = "Redis.FlushDB"
	err := s.measureRequest(ctx, method, func(ctx context.Context) error {
		return s.client.FlushDB(ctx).Err()
	})
	if err != nil {
		return s.unavailable(method, "", err)
	}
	level.Info(s.logger).Log("msg", "flushed redis db")
	return nil
}

// Ping checks that the store is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	const method = "Redis.Ping"
	err := s.measureRequest(ctx, method, func(ctx context.Context) error {
		return s.client.Ping(ctx).Err()
	})
	if err != nil {
		return s.unavailable(method, "", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
