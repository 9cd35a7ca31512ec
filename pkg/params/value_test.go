package params

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalSortsKeys(t *testing.T) {
	a := MustFromAny(map[string]any{"teamId": 5, "week": 3, "focus": []any{"passing", "pressing"}})
	b := MustFromAny(map[string]any{"focus": []any{"passing", "pressing"}, "week": 3, "teamId": 5})

	ca, err := a.Canonical()
	require.NoError(t, err)
	cb, err := b.Canonical()
	require.NoError(t, err)

	assert.Equal(t, `{"focus":["passing","pressing"],"teamId":5,"week":3}`, string(ca))
	assert.Equal(t, ca, cb)
}

func TestCanonicalNested(t *testing.T) {
	v := MustFromAny(map[string]any{
		"player": map[string]any{"name": "Ana", "id": 42, "active": true},
		"notes":  nil,
		"ratio":  0.25,
	})
	got, err := v.Canonical()
	require.NoError(t, err)
	assert.Equal(t, `{"notes":null,"player":{"active":true,"id":42,"name":"Ana"},"ratio":0.25}`, string(got))
}

func TestNumbersNormalize(t *testing.T) {
	f, err := Float(42.0)
	require.NoError(t, err)

	for _, v := range []Value{Int(42), Uint(42), f, MustFromAny(uint8(42)), MustFromAny(json.Number("42"))} {
		assert.True(t, v.Equal(Int(42)), "expected %s to equal 42", v)
	}

	negZero, err := Float(math.Copysign(0, -1))
	require.NoError(t, err)
	assert.Equal(t, "0", negZero.String())

	half, err := Float(0.5)
	require.NoError(t, err)
	assert.False(t, half.Equal(Int(0)))
	assert.Equal(t, "0.5", half.String())
}

func TestFloatRejectsNonFinite(t *testing.T) {
	for _, f := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Float(f)
		assert.ErrorIs(t, err, ErrInvalidParameters)
	}
	_, err := FromAny(map[string]any{"x": math.NaN()})
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestFromAnyRejectsUnsupported(t *testing.T) {
	type point struct{ X int }
	n := 3

	cases := map[string]any{
		"func":         func() {},
		"channel":      make(chan int),
		"complex":      complex(1, 2),
		"struct":       point{X: 1},
		"pointer":      &n,
		"int map keys": map[int]string{1: "a"},
		"bad utf8":     string([]byte{0xff, 0xfe}),
		"nested func":  map[string]any{"ok": 1, "cb": func() {}},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromAny(in)
			assert.ErrorIs(t, err, ErrInvalidParameters)
		})
	}
}

func TestFromAnyRejectsCycles(t *testing.T) {
	m := map[string]any{"a": 1}
	m["self"] = m
	_, err := FromAny(m)
	assert.ErrorIs(t, err, ErrInvalidParameters)

	s := make([]any, 1)
	s[0] = s
	_, err = FromAny(s)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestFromAnyAllowsSharedSubtrees(t *testing.T) {
	shared := map[string]any{"id": 1}
	v, err := FromAny(map[string]any{"home": shared, "away": shared})
	require.NoError(t, err)
	assert.Equal(t, `{"away":{"id":1},"home":{"id":1}}`, v.String())
}

func TestFromAnyDepthLimit(t *testing.T) {
	var nested any = "leaf"
	for range MaxDepth + 2 {
		nested = []any{nested}
	}
	_, err := FromAny(nested)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestJSONRoundTrip(t *testing.T) {
	var v Value
	require.NoError(t, json.Unmarshal([]byte(`{"b": [1, 2.5, "x"], "a": {"z": false, "y": null}}`), &v))
	assert.Equal(t, KindMap, v.Kind())
	assert.Equal(t, 2, v.Len())

	out, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `{"a":{"y":null,"z":false},"b":[1,2.5,"x"]}`, string(out))

	b, ok := v.Get("b")
	require.True(t, ok)
	assert.Equal(t, []any{json.Number("1"), json.Number("2.5"), "x"}, b.Interface())
}

func TestZeroValueIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, "null", v.String())
	assert.Nil(t, v.Interface())
}

func TestConstructorsCopyInput(t *testing.T) {
	items := []Value{Int(1), Int(2)}
	l := List(items...)
	items[0] = Int(99)
	assert.Equal(t, "[1,2]", l.String())

	m := map[string]Value{"a": Int(1)}
	mv := Map(m)
	m["b"] = Int(2)
	assert.Equal(t, 1, mv.Len())
}
