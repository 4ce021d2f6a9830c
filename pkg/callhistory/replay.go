package callhistory

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/grafana/kvcache/pkg/kv"
)

// Call is one recorded (input, output) pair.
type Call struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Record is the recorded history of an operation. Count comes from the call
// counter and may differ from len(Calls).
type Record struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
	Calls []Call `json:"calls"`
}

// History reads the counter and the recorded calls of name.
func History(ctx context.Context, store kv.Store, name string) (*Record, error) {
	count, err := Calls(ctx, store, name)
	if err != nil {
		return nil, err
	}

	inputs, err := store.LRange(ctx, InputsKey(name), 0, -1)
	if err != nil {
		return nil, err
	}
	outputs, err := store.LRange(ctx, OutputsKey(name), 0, -1)
	if err != nil {
		return nil, err
	}

	n := min(len(inputs), len(outputs))
	r := &Record{
		Name:  name,
		Count: count,
		Calls: make([]Call, 0, n),
	}
	for i := 0; i < n; i++ {
		r.Calls = append(r.Calls, Call{
			Input:  decodeText(inputs[i]),
			Output: decodeText(outputs[i]),
		})
	}
	return r, nil
}

// Replay writes the recorded history of name to w:
//
//	Cache.Store was called 2 times:
//	Cache.Store(*("a")) -> 0f0e...
//	Cache.Store(*(1)) -> 5b1c...
//
// It does not modify the store.
func Replay(ctx context.Context, store kv.Store, name string, w io.Writer) error {
	r, err := History(ctx, store, name)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "%s was called %d times:\n", r.Name, r.Count); err != nil {
		return err
	}
	for _, c := range r.Calls {
		if _, err := fmt.Fprintf(w, "%s(*%s) -> %s\n", r.Name, c.Input, c.Output); err != nil {
			return err
		}
	}
	return nil
}

func decodeText(b []byte) string {
	if !utf8.Valid(b) {
		return ""
	}
	return string(b)
}
