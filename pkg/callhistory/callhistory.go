// Package callhistory instruments operations with a call counter and an
// argument/result history kept in a kv.Store, and replays that history.
//
// Counter and history updates are independent store commands. Concurrent
// callers of the same operation can interleave their appends, so the i-th
// input and the i-th output are not guaranteed to come from the same call.
package callhistory

import (
	"context"
	"strconv"

	"github.com/grafana/kvcache/pkg/kv"
)

// Func is an operation that can be instrumented. The receiver, if any, is
// captured by the closure and never recorded.
type Func func(ctx context.Context, args ...kv.Value) (kv.Value, error)

// InputsKey is the list holding the serialized arguments of every call of name.
func InputsKey(name string) string { return name + ":inputs" }

// OutputsKey is the list holding the serialized result of every call of name.
func OutputsKey(name string) string { return name + ":outputs" }

// CountCalls increments the counter stored at name before every call of fn,
// whether or not the call then succeeds.
func CountCalls(store kv.Store, name string, fn Func) Func {
	return func(ctx context.Context, args ...kv.Value) (kv.Value, error) {
		if _, err := store.Incr(ctx, name); err != nil {
			return kv.Value{}, err
		}
		return fn(ctx, args...)
	}
}

// RecordHistory appends the arguments of every call of fn to InputsKey(name)
// and, once fn returns, its result to OutputsKey(name). A failed call leaves
// its inputs recorded without an output.
func RecordHistory(store kv.Store, name string, fn Func) Func {
	return func(ctx context.Context, args ...kv.Value) (kv.Value, error) {
		if err := store.RPush(ctx, InputsKey(name), []byte(kv.ReprArgs(args))); err != nil {
			return kv.Value{}, err
		}

		out, err := fn(ctx, args...)
		if err != nil {
			return out, err
		}

		if err := store.RPush(ctx, OutputsKey(name), []byte(out.String())); err != nil {
			return kv.Value{}, err
		}
		return out, nil
	}
}

// Instrument counts and records calls of fn. Counting wraps recording, so the
// counter moves even when recording fails.
func Instrument(store kv.Store, name string, fn Func) Func {
	return CountCalls(store, name, RecordHistory(store, name, fn))
}

// Calls returns how many times name was called. Absent or unparsable
// counters read as 0.
func Calls(ctx context.Context, store kv.Store, name string) (int64, error) {
	buf, found, err := store.Get(ctx, name)
	if err != nil || !found {
		return 0, err
	}

	n, err := strconv.ParseInt(string(buf), 10, 64)
	if err != nil {
		return 0, nil
	}
	return n, nil
}
