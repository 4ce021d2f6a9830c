package kv

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the type of a Value.
type Kind int

const (
	KindString Kind = iota
	KindBytes
	KindInt
	KindFloat
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "str"
	case KindBytes:
		return "bytes"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "str", "string", "":
		return KindString, nil
	case "bytes":
		return KindBytes, nil
	case "int":
		return KindInt, nil
	case "float":
		return KindFloat, nil
	}
	return 0, fmt.Errorf("unknown value kind %q", s)
}

// Value is a value that can be written to the store: text, a binary blob, an
// integer or a floating-point number. The zero Value is the empty string.
type Value struct {
	kind Kind
	str  string
	raw  []byte
	i    int64
	f    float64
}

func String(s string) Value  { return Value{kind: KindString, str: s} }
func Bytes(b []byte) Value   { return Value{kind: KindBytes, raw: b} }
func Int(i int64) Value      { return Value{kind: KindInt, i: i} }
func Float(f float64) Value  { return Value{kind: KindFloat, f: f} }
func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsZero() bool { return v.kind == KindString && v.str == "" }

// Parse builds a Value of the given kind from its text form.
func Parse(kind Kind, s string) (Value, error) {
	switch kind {
	case KindString:
		return String(s), nil
	case KindBytes:
		return Bytes([]byte(s)), nil
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case KindFloat:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Value{}, err
		}
		return Float(f), nil
	}
	return Value{}, fmt.Errorf("unknown value kind %d", kind)
}

// Bytes returns the representation written to the store. Integers are base 10,
// floats use the shortest form that parses back to the same float64.
func (v Value) Bytes() []byte {
	switch v.kind {
	case KindBytes:
		return v.raw
	case KindInt:
		return strconv.AppendInt(nil, v.i, 10)
	case KindFloat:
		return strconv.AppendFloat(nil, v.f, 'g', -1, 64)
	}
	return []byte(v.str)
}

// String returns the stored representation as text.
func (v Value) String() string {
	if v.kind == KindString {
		return v.str
	}
	return string(v.Bytes())
}

// Repr renders the value for call history. Text is quoted and blobs are
// quoted with a b prefix so the two stay distinguishable in a replay.
func (v Value) Repr() string {
	switch v.kind {
	case KindString:
		return strconv.Quote(v.str)
	case KindBytes:
		return "b" + strconv.Quote(string(v.raw))
	}
	return string(v.Bytes())
}

// ReprArgs renders an argument list for call history.
func ReprArgs(args []Value) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, a.Repr())
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
