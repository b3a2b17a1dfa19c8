package jsonpath

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// queryStrings parses and runs a path against a JSON document and returns
// the results as JSON text.
func queryStrings(t *testing.T, path, doc string, opts ...Option) ([]string, error) {
	t.Helper()
	p, err := Parse(path)
	require.NoError(t, err)
	vs, err := p.Query(context.Background(), []byte(doc), opts...)
	if err != nil || len(vs) == 0 {
		return nil, err
	}
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = v.String()
	}
	return out, nil
}

const sampleDoc = `{"a": [1, 2, 3], "b": "xy", "c": null}`

func TestQueryBasics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		doc  string
		want []string
	}{
		{`$`, `1`, []string{`1`}},
		{`$`, `{"a":1}`, []string{`{"a":1}`}},
		{`$.a`, sampleDoc, []string{`[1,2,3]`}},
		{`$.b`, sampleDoc, []string{`"xy"`}},
		{`$.c`, sampleDoc, []string{`null`}},
		{`$.a[*]`, sampleDoc, []string{`1`, `2`, `3`}},
		{`$.a[0]`, sampleDoc, []string{`1`}},
		{`$.a[last]`, sampleDoc, []string{`3`}},
		{`$.a[last - 1]`, sampleDoc, []string{`2`}},
		{`$.a[0, 2]`, sampleDoc, []string{`1`, `3`}},
		{`$.a[0 to 1]`, sampleDoc, []string{`1`, `2`}},
		{`$.a[*] ? (@ > 1)`, sampleDoc, []string{`2`, `3`}},
		{`strict $.a[*] ? (@ > 1)`, sampleDoc, []string{`2`, `3`}},
		{`$.*`, `{"x":1,"y":"s"}`, []string{`1`, `"s"`}},
		{`$[*]`, `[4,5]`, []string{`4`, `5`}},
		// Lax auto-wrap: [*] over a scalar yields the scalar.
		{`$.b[*]`, sampleDoc, []string{`"xy"`}},
		{`$.b[0]`, sampleDoc, []string{`"xy"`}},
		{`$.b[last]`, sampleDoc, []string{`"xy"`}},
		// Lax unwrap: member accessor descends into array elements.
		{`$.a`, `{"a":[{"b":1},{"b":2}]}`, []string{`[{"b":1},{"b":2}]`}},
		{`$.a.b`, `{"a":[{"b":1},{"b":2}]}`, []string{`1`, `2`}},
		{`$.a.b`, `{"a":{"b":7}}`, []string{`7`}},
		// Missing members vanish in lax mode.
		{`$.missing`, sampleDoc, nil},
		{`$.a[*].missing`, sampleDoc, nil},
		// Chained filters and nesting.
		{`$.a[*] ? (@ > 1) ? (@ < 3)`, sampleDoc, []string{`2`}},
		{`$ ? (@.a[*] > 2)`, sampleDoc, []string{`{"a":[1,2,3],"b":"xy","c":null}`}},
		{`$ ? (@.a[*] > 5)`, sampleDoc, nil},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got, err := queryStrings(t, tc.path, tc.doc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestQueryStrictMode(t *testing.T) {
	t.Parallel()

	// Member accessor on an array errors in strict mode.
	_, err := queryStrings(t, `strict $.a.b`, sampleDoc)
	assert.EqualError(t, err, "jsonpath member accessor can only be applied to an object")

	// Missing member errors in strict mode.
	_, err = queryStrings(t, `strict $.missing`, sampleDoc)
	assert.EqualError(t, err, `JSON object does not contain key "missing"`)

	// Out-of-bounds subscript errors in strict mode, clips in lax.
	_, err = queryStrings(t, `strict $.a[1 to 10]`, sampleDoc)
	assert.EqualError(t, err, "jsonpath array subscript is out of bounds")
	got, err := queryStrings(t, `$.a[1 to 10]`, sampleDoc)
	require.NoError(t, err)
	assert.Equal(t, []string{`2`, `3`}, got)

	// Inverted ranges produce nothing in lax mode.
	got, err = queryStrings(t, `$.a[2 to 1]`, sampleDoc)
	require.NoError(t, err)
	assert.Empty(t, got)

	// [*] on a non-array errors in strict mode.
	_, err = queryStrings(t, `strict $.b[*]`, sampleDoc)
	assert.EqualError(t, err, "jsonpath wildcard array accessor can only be applied to an array")

	// Filters suppress structural errors even in strict mode.
	got, err = queryStrings(t, `strict $ ? (exists(@.missing))`, sampleDoc)
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = queryStrings(t, `$ ? (exists(@.missing))`, sampleDoc)
	require.NoError(t, err)
	assert.Empty(t, got)

	// Strict mode does not unwrap.
	_, err = queryStrings(t, `strict $.a.b`, `{"a":[{"b":1}]}`)
	assert.Error(t, err)
}

func TestQuerySize(t *testing.T) {
	t.Parallel()

	got, err := queryStrings(t, `strict $.a.size()`, sampleDoc)
	require.NoError(t, err)
	assert.Equal(t, []string{`3`}, got)

	// Auto-wrap makes .size() of a scalar 1 in lax mode.
	got, err = queryStrings(t, `$.b.size()`, sampleDoc)
	require.NoError(t, err)
	assert.Equal(t, []string{`1`}, got)

	_, err = queryStrings(t, `strict $.b.size()`, sampleDoc)
	assert.EqualError(t, err, "jsonpath item method .size() can only be applied to an array")
}

func TestQueryArithmetic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		doc  string
		want []string
	}{
		{`$.a[0] + 10`, sampleDoc, []string{`11`}},
		{`$.a[1] - 3`, sampleDoc, []string{`-1`}},
		{`2 * $.a[2]`, sampleDoc, []string{`6`}},
		{`$.a[2] / 2`, sampleDoc, []string{`1.5`}},
		{`7 % 4`, `null`, []string{`3`}},
		{`-$.a[1]`, sampleDoc, []string{`-2`}},
		{`+$.a[1]`, sampleDoc, []string{`2`}},
		// Unary minus maps over the unwrapped sequence.
		{`-$.a[*]`, sampleDoc, []string{`-1`, `-2`, `-3`}},
		// Binary arithmetic unwraps singleton arrays in lax mode.
		{`$.a + 0`, `{"a":[5]}`, []string{`5`}},
		{`0.1 + 0.2`, `null`, []string{`0.3`}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got, err := queryStrings(t, tc.path, tc.doc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	// Singleton errors surface in both modes.
	for _, path := range []string{`$.a[0] + "x"`, `strict $.a[0] + "x"`} {
		_, err := queryStrings(t, path, sampleDoc)
		assert.EqualError(t, err,
			"right operand of jsonpath operator + is not a single numeric value", path)
	}
	_, err := queryStrings(t, `$.a + 1`, sampleDoc)
	assert.EqualError(t, err,
		"left operand of jsonpath operator + is not a single numeric value")

	// Division by zero is suppressible.
	_, err = queryStrings(t, `1 / 0`, `null`)
	assert.Error(t, err)
	got, err := queryStrings(t, `1 / 0`, `null`, WithSilent())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryComparisons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path string
		want string
	}{
		// The null comparison rules: null equals null, null against
		// non-null is false except for !=.
		{`$.c == null`, `true`},
		{`$.c != null`, `false`},
		{`$.c == 1`, `false`},
		{`$.c != 1`, `true`},
		{`$.a[0] == 1`, `true`},
		{`$.a[0] >= 1`, `true`},
		{`$.a[0] < 1`, `false`},
		{`$.b == "xy"`, `true`},
		{`$.b < "xz"`, `true`},
		{`$.b <= "xy"`, `true`},
		// Mismatched non-null types are unknown, which surfaces as null.
		{`$.b == 1`, `null`},
		{`$.a[0] == "1"`, `null`},
		// Arrays are not comparable without unwrapping.
		{`strict $.a == $.a`, `null`},
		// With lax unwrapping the same comparison matches elementwise.
		{`$.a == $.a`, `true`},
		// Existence semantics over sequences.
		{`$.a[*] == 2`, `true`},
		{`$.a[*] > 5`, `false`},
		{`$.b starts with "x"`, `true`},
		{`$.b starts with "y"`, `false`},
		{`$.a[0] starts with "x"`, `null`},
		{`$.b like_regex "^x.$"`, `true`},
		{`$.b like_regex "^X" flag "i"`, `true`},
		{`$.b like_regex "^y"`, `false`},
		{`$.b like_regex "X.Y" flag "q"`, `false`},
		{`exists($.a)`, `true`},
		{`exists($.missing)`, `false`},
		{`($.b == 1) is unknown`, `true`},
		{`($.a[0] == 1) is unknown`, `false`},
		{`$.a[0] == 1 && $.b == "xy"`, `true`},
		{`$.a[0] == 2 || $.b == "xy"`, `true`},
		{`!($.a[0] == 2)`, `true`},
		// Unknown && false is false; unknown || true is true.
		{`($.b == 1) && ($.a[0] == 2)`, `false`},
		{`($.b == 1) || ($.a[0] == 1)`, `true`},
		{`($.b == 1) && ($.a[0] == 1)`, `null`},
		{`($.b == 1) || ($.a[0] == 2)`, `null`},
		{`!($.b == 1)`, `null`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got, err := queryStrings(t, tc.path, sampleDoc)
			require.NoError(t, err)
			assert.Equal(t, []string{tc.want}, got)
		})
	}
}

func TestQueryRegexErrors(t *testing.T) {
	t.Parallel()

	// An invalid pattern raises even under WithSilent.
	p := MustParse(`$.b like_regex "("`)
	_, err := p.Query(context.Background(), []byte(sampleDoc), WithSilent())
	assert.Error(t, err)

	// The expanded-syntax flag is not supported.
	p = MustParse(`$.b like_regex "x" flag "x"`)
	_, err = p.Query(context.Background(), []byte(sampleDoc))
	assert.Error(t, err)
}

func TestQueryAnyPath(t *testing.T) {
	t.Parallel()

	doc := `{"a": {"b": {"c": 1}}, "d": [2]}`

	got, err := queryStrings(t, `$.**`, doc)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`{"a":{"b":{"c":1}},"d":[2]}`,
		`{"b":{"c":1}}`,
		`{"c":1}`,
		`1`,
		`[2]`,
		`2`,
	}, got)

	got, err = queryStrings(t, `$.**{1}`, doc)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"b":{"c":1}}`, `[2]`}, got)

	got, err = queryStrings(t, `$.**{2 to 2}`, doc)
	require.NoError(t, err)
	assert.Equal(t, []string{`{"c":1}`, `2`}, got)

	got, err = queryStrings(t, `$.**.c`, doc)
	require.NoError(t, err)
	assert.Equal(t, []string{`1`}, got)
}

func TestQueryTypeMethod(t *testing.T) {
	t.Parallel()

	doc := `{"n": 1, "s": "x", "b": true, "nl": null, "a": [1], "o": {}}`
	tests := []struct {
		path string
		want string
	}{
		{`$.n.type()`, `"number"`},
		{`$.s.type()`, `"string"`},
		{`$.b.type()`, `"boolean"`},
		{`$.nl.type()`, `"null"`},
		{`$.a.type()`, `"array"`},
		{`$.o.type()`, `"object"`},
	}
	for _, tc := range tests {
		got, err := queryStrings(t, tc.path, doc)
		require.NoError(t, err)
		assert.Equal(t, []string{tc.want}, got, tc.path)
	}
}

func TestQueryNumericMethods(t *testing.T) {
	t.Parallel()

	doc := `{"x": -2.7, "y": "314e-2", "z": 10, "s": "12", "big": "9999999999999999999", "a": [1, -2]}`
	tests := []struct {
		path string
		want []string
	}{
		{`$.x.abs()`, []string{`2.7`}},
		{`$.x.floor()`, []string{`-3`}},
		{`$.x.ceiling()`, []string{`-2`}},
		{`$.z.double()`, []string{`10`}},
		{`$.y.double()`, []string{`3.14`}},
		{`$.z.bigint()`, []string{`10`}},
		{`$.s.bigint()`, []string{`12`}},
		{`$.x.integer()`, []string{`-3`}},
		{`$.s.integer()`, []string{`12`}},
		{`$.y.number()`, []string{`3.14`}},
		{`$.x.decimal()`, []string{`-2.7`}},
		{`$.x.decimal(3, 1)`, []string{`-2.7`}},
		{`$.x.decimal(5, 3)`, []string{`-2.700`}},
		{`$.x.decimal(2, 0)`, []string{`-3`}},
		{`$.z.boolean()`, []string{`true`}},
		{`$.z.string()`, []string{`"10"`}},
		{`$.x.string()`, []string{`"-2.7"`}},
		// Methods unwrap arrays in lax mode when reached as target.
		{`$.a.abs()`, []string{`1`, `2`}},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()
			got, err := queryStrings(t, tc.path, doc)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := queryStrings(t, `$.s.abs()`, doc)
	assert.EqualError(t, err, "jsonpath item method .abs() can only be applied to a numeric value")

	_, err = queryStrings(t, `$.big.integer()`, doc)
	assert.Error(t, err)

	// -2.7 fits numeric(2, 1) but overflows numeric(2, 2).
	got, err := queryStrings(t, `$.x.decimal(2, 1)`, doc)
	require.NoError(t, err)
	assert.Equal(t, []string{`-2.7`}, got)
	_, err = queryStrings(t, `$.x.decimal(2, 2)`, doc)
	assert.Error(t, err)
}

func TestQueryBooleanMethod(t *testing.T) {
	t.Parallel()

	doc := `{"t": "yes", "f": "OFF", "n": 0, "m": 5, "b": false, "bad": "maybe", "frac": 1.5}`
	tests := []struct {
		path string
		want string
	}{
		{`$.t.boolean()`, `true`},
		{`$.f.boolean()`, `false`},
		{`$.n.boolean()`, `false`},
		{`$.m.boolean()`, `true`},
		{`$.b.boolean()`, `false`},
	}
	for _, tc := range tests {
		got, err := queryStrings(t, tc.path, doc)
		require.NoError(t, err)
		assert.Equal(t, []string{tc.want}, got, tc.path)
	}

	_, err := queryStrings(t, `$.bad.boolean()`, doc)
	assert.Error(t, err)
	_, err = queryStrings(t, `$.frac.boolean()`, doc)
	assert.Error(t, err)
}

func TestQueryKeyValue(t *testing.T) {
	t.Parallel()

	got, err := queryStrings(t, `$.keyvalue()`, `{"a": 1, "b": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, []string{
		`{"id":0,"key":"a","value":1}`,
		`{"id":0,"key":"b","value":"x"}`,
	}, got)

	// Nested objects carry their byte offset within the base object.
	p := MustParse(`$.o.keyvalue()`)
	vs, err := p.Query(context.Background(), []byte(`{"o": {"x": 1}}`))
	require.NoError(t, err)
	require.Len(t, vs, 1)
	var entry struct {
		ID    int64           `json:"id"`
		Key   string          `json:"key"`
		Value json.RawMessage `json:"value"`
	}
	data, err := vs[0].MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &entry))
	assert.Equal(t, "x", entry.Key)
	assert.Positive(t, entry.ID)
	assert.Less(t, entry.ID, int64(10_000_000_000))

	_, err = queryStrings(t, `strict $.keyvalue()`, `[1]`)
	assert.EqualError(t, err, "jsonpath item method .keyvalue() can only be applied to an object")

	// Empty objects produce no entries.
	got, err = queryStrings(t, `$.keyvalue()`, `{}`)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryKeyValueIDUniqueness(t *testing.T) {
	t.Parallel()

	// With per-variable base objects, ids embed the variable ordinal.
	p := MustParse(`$x.keyvalue().id`)
	vs, err := p.Query(context.Background(), []byte(`null`),
		WithVariables(VarList{{Name: "x", Value: map[string]any{"k": 1}}}))
	require.NoError(t, err)
	require.Len(t, vs, 1)
	assert.Equal(t, "10000000000", vs[0].Numeric().String())
}

func TestQueryVariables(t *testing.T) {
	t.Parallel()

	got, err := queryStrings(t, `$x + 1`, `null`, WithVars(map[string]any{"x": 41}))
	require.NoError(t, err)
	assert.Equal(t, []string{`42`}, got)

	got, err = queryStrings(t, `$.a[*] ? (@ > $min)`, sampleDoc, WithVars(map[string]any{"min": 2}))
	require.NoError(t, err)
	assert.Equal(t, []string{`3`}, got)

	// A missing variable raises even under WithSilent.
	p := MustParse(`$missing`)
	_, err = p.Query(context.Background(), []byte(`null`), WithSilent())
	assert.EqualError(t, err, `could not find jsonpath variable "missing"`)

	// Structured variable values work as containers.
	got, err = queryStrings(t, `$obj.k`, `null`, WithVars(map[string]any{"obj": map[string]any{"k": true}}))
	require.NoError(t, err)
	assert.Equal(t, []string{`true`}, got)
}

func TestQuerySilent(t *testing.T) {
	t.Parallel()

	// Suppressed errors yield an empty result set.
	got, err := queryStrings(t, `strict $.missing`, sampleDoc, WithSilent())
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = queryStrings(t, `$.a[0] + "x"`, sampleDoc, WithSilent())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryStrictDrainsErrors(t *testing.T) {
	t.Parallel()

	// In strict mode a structural error on any item that passed the filter
	// fails the whole query.
	_, err := queryStrings(t, `strict $.a[*] ? (@ > 1).missing`, sampleDoc)
	assert.Error(t, err)
}

func TestExistsMatchesQueryEmptiness(t *testing.T) {
	t.Parallel()

	paths := []string{`$.a[*]`, `$.missing`, `$.a[*] ? (@ > 2)`, `$.b`, `$.**{3}`}
	for _, src := range paths {
		p := MustParse(src)
		vs, err := p.Query(context.Background(), []byte(sampleDoc))
		require.NoError(t, err, src)
		ok, err := p.Exists(context.Background(), []byte(sampleDoc))
		require.NoError(t, err, src)
		assert.Equal(t, len(vs) > 0, ok, src)
	}
}

func TestQueryDeterminism(t *testing.T) {
	t.Parallel()

	p := MustParse(`$.**`)
	doc := []byte(`{"a": {"b": [1, {"c": 2}]}, "d": "x"}`)
	first, err := p.Query(context.Background(), doc)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := p.Query(context.Background(), doc)
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].String(), again[j].String())
		}
	}
}

func TestQueryCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := MustParse(`$.**`)
	_, err := p.Query(ctx, []byte(sampleDoc))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestQueryLaxUnwrapIdempotence(t *testing.T) {
	t.Parallel()

	// Applying an auto-unwrapping step to an array equals flattening the
	// per-element applications.
	doc := `{"a": [{"k": 1}, {"k": 2}, {"k": [3, 4]}]}`
	whole, err := queryStrings(t, `$.a.k`, doc)
	require.NoError(t, err)
	var flat []string
	for _, sub := range []string{`$.a[0].k`, `$.a[1].k`, `$.a[2].k`} {
		got, err := queryStrings(t, sub, doc)
		require.NoError(t, err)
		flat = append(flat, got...)
	}
	assert.Equal(t, flat, whole)
}
