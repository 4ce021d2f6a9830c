package kv

import (
	"context"
	"errors"
	"time"
)

// ErrStoreUnavailable is wrapped by every error caused by a failed command or
// an unreachable store.
var ErrStoreUnavailable = errors.New("key-value store unavailable")

// Store is the subset of a networked key-value service used by the caches.
// Each method is a single command against the store.
type Store interface {
	Set(ctx context.Context, key string, value []byte) error
	SetEX(ctx context.Context, key string, ttl time.Duration, value []byte) error
	// Get returns found == false and a nil error for absent or expired keys.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Incr(ctx context.Context, key string) (int64, error)
	RPush(ctx context.Context, key string, value []byte) error
	LRange(ctx context.Context, key string, start, stop int64) ([][]byte, error)
	FlushDB(ctx context.Context) error
	Close() error
}
