package params

import (
	"encoding/json"
	"fmt"
	"reflect"
	"unicode/utf8"
)

// FromAny converts decoded JSON/YAML data (or hand-built Go literals) into a
// Value. Supported inputs are nil, bools, strings, every integer and float
// kind, json.Number, slices and arrays, maps with string keys, and Value.
// Anything else, including cycles, fails with ErrInvalidParameters.
func FromAny(x any) (Value, error) {
	c := converter{seen: make(map[visit]bool)}
	return c.convert(x, 0)
}

// MustFromAny is FromAny that panics on error. Intended for literals.
func MustFromAny(x any) Value {
	v, err := FromAny(x)
	if err != nil {
		panic(err)
	}
	return v
}

type visit struct {
	ptr uintptr
	len int
	typ reflect.Type
}

type converter struct {
	seen map[visit]bool
}

func (c *converter) convert(x any, depth int) (Value, error) {
	if depth > MaxDepth {
		return Value{}, fmt.Errorf("%w: nesting deeper than %d", ErrInvalidParameters, MaxDepth)
	}

	switch val := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return val, nil
	case json.Number:
		return Number(string(val))
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	case reflect.String:
		s := rv.String()
		if !utf8.ValidString(s) {
			return Value{}, fmt.Errorf("%w: string is not valid UTF-8", ErrInvalidParameters)
		}
		return String(s), nil
	case reflect.Slice, reflect.Array:
		return c.convertList(rv, depth)
	case reflect.Map:
		return c.convertMap(rv, depth)
	}
	return Value{}, fmt.Errorf("%w: unsupported type %T", ErrInvalidParameters, x)
}

func (c *converter) convertList(rv reflect.Value, depth int) (Value, error) {
	if rv.Kind() == reflect.Slice {
		if rv.IsNil() {
			return Null(), nil
		}
		key := visit{ptr: rv.Pointer(), len: rv.Len(), typ: rv.Type()}
		if c.seen[key] {
			return Value{}, fmt.Errorf("%w: cyclic reference", ErrInvalidParameters)
		}
		c.seen[key] = true
		defer delete(c.seen, key)
	}

	items := make([]Value, rv.Len())
	for i := range items {
		item, err := c.convert(rv.Index(i).Interface(), depth+1)
		if err != nil {
			return Value{}, err
		}
		items[i] = item
	}
	return Value{kind: KindList, list: items}, nil
}

func (c *converter) convertMap(rv reflect.Value, depth int) (Value, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return Value{}, fmt.Errorf("%w: map key type %s is not a string", ErrInvalidParameters, rv.Type().Key())
	}
	if rv.IsNil() {
		return Null(), nil
	}
	key := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if c.seen[key] {
		return Value{}, fmt.Errorf("%w: cyclic reference", ErrInvalidParameters)
	}
	c.seen[key] = true
	defer delete(c.seen, key)

	out := make(map[string]Value, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().String()
		if !utf8.ValidString(k) {
			return Value{}, fmt.Errorf("%w: map key is not valid UTF-8", ErrInvalidParameters)
		}
		item, err := c.convert(iter.Value().Interface(), depth+1)
		if err != nil {
			return Value{}, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = item
	}
	return Value{kind: KindMap, m: out}, nil
}
