// Package kvtest provides a redis backed kv.Store for tests.
package kvtest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-kit/log"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/grafana/kvcache/pkg/kv"
)

// NewStore starts an in-process redis server and returns a store connected to
// it. Both are torn down when the test ends.
func NewStore(t testing.TB) (*kv.RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := kv.NewRedisStoreWithClient(client, prometheus.NewRegistry(), log.NewNopLogger())
	t.Cleanup(func() { _ = s.Close() })

	return s, mr
}
