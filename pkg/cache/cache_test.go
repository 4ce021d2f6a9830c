package cache

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"strconv"
	"testing"

	"github.com/go-kit/log"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grafana/kvcache/pkg/callhistory"
	"github.com/grafana/kvcache/pkg/kv"
	"github.com/grafana/kvcache/pkg/kv/kvtest"
)

func newTestCache(t *testing.T, store kv.Store) *Cache {
	t.Helper()

	c, err := New(context.Background(), &Config{}, store, prometheus.NewRegistry(), log.NewNopLogger())
	require.NoError(t, err)
	return c
}

func TestStoreGet(t *testing.T) {
	tcs := []struct {
		name     string
		val      kv.Value
		expected []byte
	}{
		{name: "string", val: kv.String("foo"), expected: []byte("foo")},
		{name: "empty string", val: kv.String(""), expected: []byte{}},
		{name: "bytes", val: kv.Bytes([]byte{0xde, 0xad, 0xbe, 0xef}), expected: []byte{0xde, 0xad, 0xbe, 0xef}},
		{name: "int", val: kv.Int(123), expected: []byte("123")},
		{name: "negative int", val: kv.Int(-7), expected: []byte("-7")},
		{name: "float", val: kv.Float(1.5), expected: []byte("1.5")},
	}

	ctx := context.Background()
	s, _ := kvtest.NewStore(t)
	c := newTestCache(t, s)

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			key, err := c.Store(ctx, tc.val)
			require.NoError(t, err)

			_, err = uuid.Parse(key)
			require.NoError(t, err)

			actual, err := c.Get(ctx, key)
			require.NoError(t, err)
			require.Equal(t, tc.expected, actual)
		})
	}
}

func TestStoreGeneratesUniqueKeys(t *testing.T) {
	ctx := context.Background()
	s, _ := kvtest.NewStore(t)
	c := newTestCache(t, s)

	keys := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		key, err := c.Store(ctx, kv.Int(int64(i)))
		require.NoError(t, err)
		keys[key] = struct{}{}
	}
	require.Len(t, keys, 100)
}

func TestGetMissing(t *testing.T) {
	ctx := context.Background()
	s, _ := kvtest.NewStore(t)
	c := newTestCache(t, s)

	raw, err := c.Get(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, raw)

	str, err := c.GetStr(ctx, "nope")
	require.NoError(t, err)
	require.Equal(t, "", str)

	i, err := c.GetInt(ctx, "nope")
	require.NoError(t, err)
	require.Equal(t, int64(0), i)
}

func TestGetStr(t *testing.T) {
	ctx := context.Background()
	s, _ := kvtest.NewStore(t)
	c := newTestCache(t, s)

	key, err := c.Store(ctx, kv.String("héllo"))
	require.NoError(t, err)
	str, err := c.GetStr(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "héllo", str)

	key, err = c.Store(ctx, kv.Bytes([]byte{0xff, 0xfe}))
	require.NoError(t, err)
	str, err = c.GetStr(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "", str)
}

func TestGetInt(t *testing.T) {
	tcs := []struct {
		val      kv.Value
		expected int64
	}{
		{val: kv.Int(42), expected: 42},
		{val: kv.String("-3"), expected: -3},
		{val: kv.String(" 8\n"), expected: 8},
		{val: kv.String("forty-two"), expected: 0},
		{val: kv.Float(1.5), expected: 0},
		{val: kv.String(""), expected: 0},
		{val: kv.Bytes([]byte{0xff}), expected: 0},
	}

	ctx := context.Background()
	s, _ := kvtest.NewStore(t)
	c := newTestCache(t, s)

	for _, tc := range tcs {
		t.Run(tc.val.Repr(), func(t *testing.T) {
			key, err := c.Store(ctx, tc.val)
			require.NoError(t, err)

			actual, err := c.GetInt(ctx, key)
			require.NoError(t, err)
			require.Equal(t, tc.expected, actual)
		})
	}
}

func TestGetWith(t *testing.T) {
	ctx := context.Background()
	s, _ := kvtest.NewStore(t)
	c := newTestCache(t, s)

	key, err := c.Store(ctx, kv.Int(21))
	require.NoError(t, err)

	doubled, err := GetWith(ctx, c, key, func(raw []byte) (int, error) {
		i, err := strconv.Atoi(string(raw))
		return i * 2, err
	})
	require.NoError(t, err)
	require.Equal(t, 42, doubled)

	// the decoder sees the missing sentinel
	var sawNil bool
	_, err = GetWith(ctx, c, "nope", func(raw []byte) (string, error) {
		sawNil = raw == nil
		return "default", nil
	})
	require.NoError(t, err)
	require.True(t, sawNil)

	// decoder errors propagate
	errDecode := errors.New("bad value")
	_, err = GetWith(ctx, c, key, func([]byte) (string, error) { return "", errDecode })
	require.ErrorIs(t, err, errDecode)

	_, err = GetWith(ctx, c, key, DecodeString)
	require.NoError(t, err)
	_, err = GetWith(ctx, c, "nope", DecodeInt)
	require.NoError(t, err)
}

func TestStoreIsInstrumented(t *testing.T) {
	ctx := context.Background()
	s, _ := kvtest.NewStore(t)
	c := newTestCache(t, s)

	var keys []string
	for _, v := range []string{"a", "b", "c"} {
		key, err := c.Store(ctx, kv.String(v))
		require.NoError(t, err)
		keys = append(keys, key)
	}

	n, err := callhistory.Calls(ctx, s, StoreOperation)
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	buf := &bytes.Buffer{}
	require.NoError(t, callhistory.Replay(ctx, s, StoreOperation, buf))
	require.Equal(t, "Cache.Store was called 3 times:\n"+
		`Cache.Store(*("a")) -> `+keys[0]+"\n"+
		`Cache.Store(*("b")) -> `+keys[1]+"\n"+
		`Cache.Store(*("c")) -> `+keys[2]+"\n", buf.String())
}

func TestStoreUnavailable(t *testing.T) {
	ctx := context.Background()
	s, mr := kvtest.NewStore(t)
	c := newTestCache(t, s)

	mr.SetError("ERR down")

	_, err := c.Store(ctx, kv.String("a"))
	require.ErrorIs(t, err, kv.ErrStoreUnavailable)
	_, err = c.GetStr(ctx, "k")
	require.ErrorIs(t, err, kv.ErrStoreUnavailable)
	_, err = c.GetInt(ctx, "k")
	require.ErrorIs(t, err, kv.ErrStoreUnavailable)
}

func TestFlushOnStart(t *testing.T) {
	ctx := context.Background()
	s, mr := kvtest.NewStore(t)
	require.NoError(t, mr.Set("stale", "x"))

	_, err := New(ctx, &Config{}, s, prometheus.NewRegistry(), log.NewNopLogger())
	require.NoError(t, err)
	assert.True(t, mr.Exists("stale"))

	cfg := &Config{}
	cfg.RegisterFlagsAndApplyDefaults("cache", flag.NewFlagSet("test", flag.PanicOnError))
	cfg.FlushOnStart = true
	c, err := New(ctx, cfg, s, prometheus.NewRegistry(), log.NewNopLogger())
	require.NoError(t, err)
	assert.False(t, mr.Exists("stale"))

	_, err = c.Store(ctx, kv.Int(1))
	require.NoError(t, err)
	require.NoError(t, c.Flush(ctx))
	assert.Empty(t, mr.Keys())
}

func TestGetMetrics(t *testing.T) {
	ctx := context.Background()
	s, _ := kvtest.NewStore(t)
	c := newTestCache(t, s)

	key, err := c.Store(ctx, kv.String("a"))
	require.NoError(t, err)
	_, err = c.Get(ctx, key)
	require.NoError(t, err)
	_, err = c.GetStr(ctx, "nope")
	require.NoError(t, err)

	require.Equal(t, 1.0, testutil.ToFloat64(c.metricGets.WithLabelValues("hit")))
	require.Equal(t, 1.0, testutil.ToFloat64(c.metricGets.WithLabelValues("miss")))
}
