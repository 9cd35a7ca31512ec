// Package params models the parameters handed to an AI-generation function.
//
// A Value is a closed sum type over the JSON-like kinds the cache can key on:
// null, bool, number, string, ordered list and string-keyed map. Canonical
// encoding is defined recursively over that union so cache keys never depend
// on map iteration order or on a serializer's ordering guarantees.
package params

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"unicode/utf8"
)

// ErrInvalidParameters is returned when parameters cannot be canonicalized.
var ErrInvalidParameters = errors.New("invalid parameters")

// MaxDepth bounds nesting of lists and maps.
const MaxDepth = 64

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindMap:
		return "map"
	default:
		return "unknown"
	}
}

// Value is an immutable parameter value. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	s    string // string payload, or canonical number text
	list []Value
	m    map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// String returns a string value. s must be valid UTF-8 for the value to
// encode.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Int returns a number value.
func Int(i int64) Value {
	return Value{kind: KindNumber, s: strconv.FormatInt(i, 10)}
}

// Uint returns a number value.
func Uint(u uint64) Value {
	return Value{kind: KindNumber, s: strconv.FormatUint(u, 10)}
}

// Float returns a number value. Integral floats encode exactly like the
// equivalent Int, so 42.0 and 42 share a key. NaN and infinities are
// rejected.
func Float(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: non-finite number %v", ErrInvalidParameters, f)
	}
	if f == 0 {
		// Collapse -0.
		return Value{kind: KindNumber, s: "0"}, nil
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return Value{kind: KindNumber, s: strconv.FormatFloat(f, 'f', -1, 64)}, nil
	}
	return Value{kind: KindNumber, s: strconv.FormatFloat(f, 'g', -1, 64)}, nil
}

// Number parses a JSON number literal.
func Number(lit string) (Value, error) {
	if i, err := strconv.ParseInt(lit, 10, 64); err == nil {
		return Int(i), nil
	}
	if u, err := strconv.ParseUint(lit, 10, 64); err == nil {
		return Uint(u), nil
	}
	f, err := strconv.ParseFloat(lit, 64)
	if err != nil {
		return Value{}, fmt.Errorf("%w: bad number %q", ErrInvalidParameters, lit)
	}
	return Float(f)
}

// List returns a list value holding a copy of items.
func List(items ...Value) Value {
	return Value{kind: KindList, list: slices.Clone(items)}
}

// Map returns a map value holding a copy of m.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: maps.Clone(m)}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Len returns the number of items of a list or map, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindMap:
		return len(v.m)
	}
	return 0
}

// Get returns the member of a map value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindMap {
		return Value{}, false
	}
	item, ok := v.m[key]
	return item, ok
}

// Interface converts v back to plain Go values: nil, bool, json.Number,
// string, []any and map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return json.Number(v.s)
	case KindString:
		return v.s
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	}
	return nil
}

// Canonical returns the canonical JSON encoding of v: object keys sorted
// bytewise, no insignificant whitespace, numbers in canonical form.
func (v Value) Canonical() ([]byte, error) {
	return v.AppendCanonical(nil, 0)
}

// AppendCanonical appends the canonical encoding of v to dst.
func (v Value) AppendCanonical(dst []byte, depth int) ([]byte, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", ErrInvalidParameters, MaxDepth)
	}
	switch v.kind {
	case KindNull:
		return append(dst, "null"...), nil
	case KindBool:
		return strconv.AppendBool(dst, v.b), nil
	case KindNumber:
		return append(dst, v.s...), nil
	case KindString:
		return appendString(dst, v.s)
	case KindList:
		var err error
		dst = append(dst, '[')
		for i, item := range v.list {
			if i > 0 {
				dst = append(dst, ',')
			}
			if dst, err = item.AppendCanonical(dst, depth+1); err != nil {
				return nil, err
			}
		}
		return append(dst, ']'), nil
	case KindMap:
		var err error
		dst = append(dst, '{')
		for i, k := range slices.Sorted(maps.Keys(v.m)) {
			if i > 0 {
				dst = append(dst, ',')
			}
			if dst, err = appendString(dst, k); err != nil {
				return nil, err
			}
			dst = append(dst, ':')
			if dst, err = v.m[k].AppendCanonical(dst, depth+1); err != nil {
				return nil, err
			}
		}
		return append(dst, '}'), nil
	}
	return nil, fmt.Errorf("%w: unknown kind %d", ErrInvalidParameters, v.kind)
}

func appendString(dst []byte, s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidParameters)
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	return append(dst, b...), nil
}

// Equal reports whether v and o have the same canonical encoding.
func (v Value) Equal(o Value) bool {
	a, errA := v.Canonical()
	b, errB := o.Canonical()
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

// String returns the canonical encoding, for logs.
func (v Value) String() string {
	b, err := v.Canonical()
	if err != nil {
		return "<invalid>"
	}
	return string(b)
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.Canonical()
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParameters, err)
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
