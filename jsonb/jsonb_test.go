package jsonb

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []string{
		`{"a":1,"b":"x","c":[1,2,3],"d":{"e":null},"f":true}`,
		`[1,"two",[3],{"four":4},null,false]`,
		`{}`,
		`[]`,
		`"scalar"`,
		`42`,
		`-13.75`,
		`null`,
		`true`,
	}
	for _, src := range tests {
		src := src
		t.Run(src, func(t *testing.T) {
			t.Parallel()
			c, err := Parse([]byte(src))
			require.NoError(t, err)
			got, err := json.Marshal(c.ToGo())
			require.NoError(t, err)
			var want, have any
			require.NoError(t, json.Unmarshal([]byte(src), &want))
			require.NoError(t, json.Unmarshal(got, &have))
			assert.Equal(t, want, have)
		})
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	for _, src := range []string{``, `{`, `[1,]`, `1 2`, `{"a"}`} {
		_, err := Parse([]byte(src))
		assert.Error(t, err, src)
	}
}

func TestContainerKindAndLen(t *testing.T) {
	t.Parallel()

	obj, err := Parse([]byte(`{"a":1,"b":2}`))
	require.NoError(t, err)
	assert.Equal(t, Object, obj.Kind())
	assert.Equal(t, 2, obj.Len())

	arr, err := Parse([]byte(`[1,2,3]`))
	require.NoError(t, err)
	assert.Equal(t, Array, arr.Kind())
	assert.Equal(t, 3, arr.Len())

	scalar, err := Parse([]byte(`"x"`))
	require.NoError(t, err)
	assert.Equal(t, Scalar, scalar.Kind())
	v, ok := scalar.Scalar()
	require.True(t, ok)
	assert.Equal(t, TypeString, v.Type)
	assert.Equal(t, "x", string(v.Str))
}

func TestFindKey(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(`{"bb":2,"a":1,"ccc":[3],"":0}`))
	require.NoError(t, err)

	v, ok := c.FindKey([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, TypeNumber, v.Type)
	assert.Equal(t, "1", v.Num.String())

	v, ok = c.FindKey([]byte("ccc"))
	require.True(t, ok)
	require.Equal(t, TypeArray, v.Type)
	assert.Equal(t, 1, v.Child.Len())

	_, ok = c.FindKey([]byte("missing"))
	assert.False(t, ok)

	v, ok = c.FindKey([]byte(""))
	require.True(t, ok)
	assert.Equal(t, "0", v.Num.String())
}

func TestKeyOrder(t *testing.T) {
	t.Parallel()

	// Keys are sorted by length first, then bytes.
	c, err := Parse([]byte(`{"bb":1,"a":2,"z":3,"aaa":4}`))
	require.NoError(t, err)
	var keys []string
	for i := 0; i < c.Len(); i++ {
		keys = append(keys, string(c.Key(i)))
	}
	assert.Equal(t, []string{"a", "z", "bb", "aaa"}, keys)
}

func TestIndex(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(`[10,"x",[20]]`))
	require.NoError(t, err)

	v, ok := c.Index(0)
	require.True(t, ok)
	assert.Equal(t, "10", v.Num.String())

	v, ok = c.Index(2)
	require.True(t, ok)
	require.Equal(t, TypeArray, v.Type)

	_, ok = c.Index(3)
	assert.False(t, ok)
	_, ok = c.Index(-1)
	assert.False(t, ok)
}

func TestOffsets(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(`{"o":{"x":1},"p":{"y":2}}`))
	require.NoError(t, err)
	assert.Equal(t, 0, c.Offset())

	o, ok := c.FindKey([]byte("o"))
	require.True(t, ok)
	p, ok := c.FindKey([]byte("p"))
	require.True(t, ok)
	assert.Greater(t, o.Child.Offset(), 0)
	assert.Greater(t, p.Child.Offset(), o.Child.Offset())
	assert.True(t, SameDocument(c, o.Child))
	assert.True(t, SameDocument(o.Child, p.Child))
}

func TestIterate(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(`{"a":1,"b":[2]}`))
	require.NoError(t, err)
	it := c.Iterate()

	tok, _, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, TokBeginObject, tok)

	tok, v, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, TokKey, tok)
	assert.Equal(t, "a", string(v.Str))

	tok, v, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, TokValue, tok)
	assert.Equal(t, "1", v.Num.String())

	tok, _, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, TokKey, tok)

	tok, v, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, TokValue, tok)
	assert.Equal(t, TypeArray, v.Type)

	tok, _, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, TokEnd, tok)

	_, _, ok = it.Next()
	assert.False(t, ok)
}

func TestBuildObject(t *testing.T) {
	t.Parallel()

	inner, err := Parse([]byte(`[1,2]`))
	require.NoError(t, err)
	elem, ok := inner.Index(0)
	require.True(t, ok)

	c, err := BuildObject([]Field{
		{Key: "value", Val: Value{Type: TypeArray, Child: inner}},
		{Key: "key", Val: Value{Type: TypeString, Str: []byte("k")}},
		{Key: "id", Val: elem},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"id":1,"key":"k","value":[1,2]}`, c.String())
}

func TestBuildArray(t *testing.T) {
	t.Parallel()

	c, err := BuildArray([]Value{
		{Type: TypeNull},
		{Type: TypeBool, Bool: true},
		{Type: TypeString, Str: []byte("s")},
	})
	require.NoError(t, err)
	assert.Equal(t, `[null,true,"s"]`, c.String())
}

func TestNumberPrecisionPreserved(t *testing.T) {
	t.Parallel()

	c, err := Parse([]byte(`[0.30000000000000000000004,123456789012345678901234567890]`))
	require.NoError(t, err)
	v, ok := c.Index(0)
	require.True(t, ok)
	assert.Equal(t, "0.30000000000000000000004", v.Num.String())
	v, ok = c.Index(1)
	require.True(t, ok)
	assert.Equal(t, "123456789012345678901234567890", v.Num.String())
}
