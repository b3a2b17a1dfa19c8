package jsonpath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		src  string
		want string
	}{
		{`$`, `$`},
		{`strict $`, `strict $`},
		{`lax $`, `$`},
		{`$.a`, `$.a`},
		{`$."a b"`, `$."a b"`},
		{`$.a.b.c`, `$.a.b.c`},
		{`$.*`, `$.*`},
		{`$[*]`, `$[*]`},
		{`$.**`, `$.**`},
		{`$.**{2}`, `$.**{2}`},
		{`$.**{2 to 4}`, `$.**{2 to 4}`},
		{`$.**{2 to last}`, `$.**{2 to last}`},
		{`$[0]`, `$[0]`},
		{`$[0, 2 to 3]`, `$[0, 2 to 3]`},
		{`$[last]`, `$[last]`},
		{`$[last - 1]`, `$[(last - 1)]`},
		{`$.a[*] ? (@ > 1)`, `$.a[*]?(@ > 1)`},
		{`$ ? (@.a == 1 && @.b != 2)`, `$?((@.a == 1) && (@.b != 2))`},
		{`$ ? (!(@.a > 1))`, `$?(!(@.a > 1))`},
		{`$ ? ((@.a > 1) is unknown)`, `$?((@.a > 1) is unknown)`},
		{`$ ? (exists(@.a))`, `$?(exists (@.a))`},
		{`$ ? (@.b starts with "x")`, `$?(@.b starts with "x")`},
		{`$ ? (@.b like_regex "^x" flag "i")`, `$?(@.b like_regex "^x" flag "i")`},
		{`1 + 2 * 3`, `(1 + (2 * 3))`},
		{`(1 + 2) * 3`, `((1 + 2) * 3)`},
		{`-$.a`, `-$.a`},
		{`$.a.type()`, `$.a.type()`},
		{`$.a.size()`, `$.a.size()`},
		{`$.a.double()`, `$.a.double()`},
		{`$.a.ceiling()`, `$.a.ceiling()`},
		{`$.a.datetime()`, `$.a.datetime()`},
		{`$.a.datetime("DD-MM-YYYY")`, `$.a.datetime("DD-MM-YYYY")`},
		{`$.a.decimal(5, 2)`, `$.a.decimal(5, 2)`},
		{`$.a.time(3)`, `$.a.time(3)`},
		{`$.a.keyvalue()`, `$.a.keyvalue()`},
		{`$var`, `$var`},
		{`$"v r"`, `$"v r"`},
		{`$.type`, `$.type`},
		{`true`, `true`},
		{`null`, `null`},
		{`"s"`, `"s"`},
		{`$.c == null`, `($.c == null)`},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.src, func(t *testing.T) {
			t.Parallel()
			p, err := Parse(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.want, p.String())

			// The canonical form parses back to itself.
			p2, err := Parse(p.String())
			require.NoError(t, err)
			assert.Equal(t, p.String(), p2.String())
		})
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	assert.True(t, MustParse(`$`).IsLax())
	assert.True(t, MustParse(`lax $`).IsLax())
	assert.False(t, MustParse(`strict $`).IsLax())
}

func TestParseIsPredicate(t *testing.T) {
	t.Parallel()

	assert.False(t, MustParse(`$.a`).IsPredicate())
	assert.True(t, MustParse(`$.a == 1`).IsPredicate())
	assert.True(t, MustParse(`exists($.a)`).IsPredicate())
	assert.True(t, MustParse(`$.a like_regex "x"`).IsPredicate())
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []string{
		``,
		`$.`,
		`$[`,
		`$[1`,
		`@`,             // @ outside filter
		`last`,          // last outside subscript
		`$ ? (@)`,       // filter body must be a predicate
		`$ ? (@.a) + 1`, // filter body is not a predicate
		`$.a == `,
		`$.a like_regex "(" `,         // accepted at parse, fails at exec
		`$.a like_regex "x" flag "z"`, // invalid flag letter
		`$ ? (@.a == 1) && $.b`,
		`$.unknownmethod(`,
		`"unterminated`,
		`$.a ?? 1`,
		`1 &`,
	}
	for _, src := range tests {
		src := src
		t.Run(src, func(t *testing.T) {
			t.Parallel()
			_, err := Parse(src)
			if src == `$.a like_regex "(" ` {
				assert.NoError(t, err)
				return
			}
			assert.Error(t, err)
		})
	}
}

func TestParseErrorOffset(t *testing.T) {
	t.Parallel()

	_, err := Parse(`$.a ==`)
	var pe *ParseError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 6, pe.Offset)
}

func TestParseStringEscapes(t *testing.T) {
	t.Parallel()

	p, err := Parse(`$ ? (@.s == "a\nbAé")`)
	require.NoError(t, err)
	assert.Contains(t, p.String(), `a\nb`)

	p, err = Parse(`$."foo"`)
	require.NoError(t, err)
	assert.Equal(t, `$.foo`, p.String())
}
