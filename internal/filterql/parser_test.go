package filterql_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tierklinik-dobersberg/logfilter-service/internal/filterql"
)

func key(name string, field filterql.Field, value string) *filterql.KeyFilter {
	return &filterql.KeyFilter{Key: name, Field: field, Value: value}
}

func text(s string) *filterql.TopLevelFilter {
	return &filterql.TopLevelFilter{Text: s}
}

func and(l, r filterql.Node) *filterql.AndFilter {
	return &filterql.AndFilter{Left: l, Right: r}
}

func or(l, r filterql.Node) *filterql.OrFilter {
	return &filterql.OrFilter{Left: l, Right: r}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		expected []filterql.Node
	}{
		{
			name:     "single key",
			input:    "tag:foo",
			expected: []filterql.Node{key("tag", filterql.FieldTag, "foo")},
		},
		{
			name:  "juxtaposed filters",
			input: "tag:foo bar",
			expected: []filterql.Node{
				key("tag", filterql.FieldTag, "foo"),
				text("bar"),
			},
		},
		{
			name:  "and binds tighter than or",
			input: "a | b & c",
			expected: []filterql.Node{
				or(text("a"), and(text("b"), text("c"))),
			},
		},
		{
			name:  "and chain is left associative",
			input: "tag:a & tag:b & tag:c",
			expected: []filterql.Node{
				and(
					and(key("tag", filterql.FieldTag, "a"), key("tag", filterql.FieldTag, "b")),
					key("tag", filterql.FieldTag, "c"),
				),
			},
		},
		{
			name:  "parentheses",
			input: "(a | b) & c",
			expected: []filterql.Node{
				and(or(text("a"), text("b")), text("c")),
			},
		},
		{
			name:  "nested parentheses",
			input: "((tag:a))",
			expected: []filterql.Node{
				key("tag", filterql.FieldTag, "a"),
			},
		},
		{
			name:  "or stays inside its sibling",
			input: "tag:a tag:b | tag:c",
			expected: []filterql.Node{
				key("tag", filterql.FieldTag, "a"),
				or(key("tag", filterql.FieldTag, "b"), key("tag", filterql.FieldTag, "c")),
			},
		},
		{
			name:  "free text spans words",
			input: "foo    bar   tag:x",
			expected: []filterql.Node{
				text("foo    bar"),
				key("tag", filterql.FieldTag, "x"),
			},
		},
		{
			name:  "negated regex key",
			input: "-tag~:fo+",
			expected: []filterql.Node{
				&filterql.KeyFilter{Key: "tag", Field: filterql.FieldTag, Value: "fo+", IsNegated: true, IsRegex: true},
			},
		},
		{
			name:  "exact key",
			input: "package=:com.example",
			expected: []filterql.Node{
				&filterql.KeyFilter{Key: "package", Field: filterql.FieldPackage, Value: "com.example", IsExact: true},
			},
		},
		{
			name:     "key alias",
			input:    "app:system_server",
			expected: []filterql.Node{key("app", filterql.FieldProcess, "system_server")},
		},
		{
			name:  "value keys",
			input: "level:W age:5m is:crash",
			expected: []filterql.Node{
				key("level", filterql.FieldLevel, "W"),
				key("age", filterql.FieldAge, "5m"),
				key("is", filterql.FieldIs, "crash"),
			},
		},
		{
			name:     "quoted value",
			input:    "message:'foo bar'",
			expected: []filterql.Node{key("message", filterql.FieldMessage, "foo bar")},
		},
		{
			name:     "double quoted value with apostrophe",
			input:    `message:"it's"`,
			expected: []filterql.Node{key("message", filterql.FieldMessage, "it's")},
		},
		{
			name:     "escaped quote inside quotes",
			input:    `message:'it\'s'`,
			expected: []filterql.Node{key("message", filterql.FieldMessage, "it's")},
		},
		{
			name:     "escaped backslash inside quotes",
			input:    `message:'a\\b\\'`,
			expected: []filterql.Node{key("message", filterql.FieldMessage, `a\b\`)},
		},
		{
			name:  "quoted regex keeps pattern escapes",
			input: `tag~:'\d+ \\'`,
			expected: []filterql.Node{
				&filterql.KeyFilter{Key: "tag", Field: filterql.FieldTag, Value: `\d+ \`, IsRegex: true},
			},
		},
		{
			name:     "escaped space",
			input:    `message:foo\ bar`,
			expected: []filterql.Node{key("message", filterql.FieldMessage, "foo bar")},
		},
		{
			name:     "escaped operator",
			input:    `message:a\(b\)`,
			expected: []filterql.Node{key("message", filterql.FieldMessage, "a(b)")},
		},
		{
			name:  "regex keeps pattern escapes",
			input: `tag~:a\(b\)`,
			expected: []filterql.Node{
				&filterql.KeyFilter{Key: "tag", Field: filterql.FieldTag, Value: `a\(b\)`, IsRegex: true},
			},
		},
		{
			name:     "escaped colon in free text",
			input:    `tag\:foo`,
			expected: []filterql.Node{text("tag:foo")},
		},
		{
			name:     "quoted free text",
			input:    `'tag:foo'`,
			expected: []filterql.Node{text("tag:foo")},
		},
		{
			name:     "negated value key is free text",
			input:    "-level:foo",
			expected: []filterql.Node{text("-level:foo")},
		},
		{
			name:     "unterminated quote",
			input:    "tag:'foo | bar",
			expected: []filterql.Node{key("tag", filterql.FieldTag, "foo | bar")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q, err := filterql.Parse(tt.input)
			require.NoError(t, err)

			assert.Equal(t, tt.input, q.Input)
			assert.Equal(t, tt.expected, q.Filters)
			assert.False(t, q.IsEmpty())
		})
	}
}

func TestParseEmpty(t *testing.T) {
	t.Parallel()

	for _, input := range []string{"", " ", "\t \n"} {
		q, err := filterql.Parse(input)
		require.NoError(t, err)

		assert.True(t, q.IsEmpty())
		assert.Nil(t, q.Filter())
		assert.Equal(t, "", q.String())
	}
}

func TestParseErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		offset  int
		message string
	}{
		{"()", 0, "empty parentheses"},
		{"(a", 0, "unbalanced '(': missing ')'"},
		{"x (tag:a", 2, "unbalanced '(': missing ')'"},
		{"a)", 1, "unbalanced ')'"},
		{"tag:", 4, `missing value for key "tag:"`},
		{"tag: )", 4, `missing value for key "tag:"`},
		{"& a", 0, `missing operand before "&"`},
		{"a & | b", 4, `missing operand before "|"`},
		{"a &", 3, "unexpected end of input"},
		{"a |", 3, "unexpected end of input"},
		{"(tag:a tag:b)", 7, `expected '&', '|' or ')' but found "tag:"`},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			q, err := filterql.Parse(tt.input)
			require.Error(t, err)
			assert.Nil(t, q)

			var perr *filterql.ParseError
			require.True(t, errors.As(err, &perr))

			assert.Equal(t, tt.offset, perr.Offset)
			assert.Equal(t, tt.message, perr.Message)
			assert.Equal(t, tt.input, perr.Input)
		})
	}
}

func TestParseErrorMessage(t *testing.T) {
	t.Parallel()

	_, err := filterql.Parse("a)")
	require.Error(t, err)

	assert.Equal(t, "parse error at offset 1: unbalanced ')'", err.Error())
}

func TestParseWithKeys(t *testing.T) {
	t.Parallel()

	keys := filterql.NewKeySet(
		map[string]filterql.Field{"t": filterql.FieldTag},
		nil,
	)

	q, err := filterql.ParseWithKeys("t:foo tag:bar", keys)
	require.NoError(t, err)

	assert.Equal(t, []filterql.Node{
		key("t", filterql.FieldTag, "foo"),
		text("tag:bar"),
	}, q.Filters)
}

func TestQueryFilter(t *testing.T) {
	t.Parallel()

	q, err := filterql.Parse("a b | c d")
	require.NoError(t, err)

	// "a b" and "c d" are single free text values
	require.Len(t, q.Filters, 1)

	q, err = filterql.Parse("tag:a tag:b tag:c")
	require.NoError(t, err)
	require.Len(t, q.Filters, 3)

	assert.Equal(t, and(
		and(key("tag", filterql.FieldTag, "a"), key("tag", filterql.FieldTag, "b")),
		key("tag", filterql.FieldTag, "c"),
	), q.Filter())
}

func TestParseStringKeys(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"tag", "package", "process", "app", "message", "msg", "line"} {
		field, ok := filterql.DefaultKeySet().Lookup(name)
		require.True(t, ok, name)

		q, err := filterql.Parse(name + ":v")
		require.NoError(t, err, name)
		assert.Equal(t, []filterql.Node{key(name, field, "v")}, q.Filters, name)

		q, err = filterql.Parse("-" + name + ":v")
		require.NoError(t, err, name)
		assert.Equal(t, []filterql.Node{
			&filterql.KeyFilter{Key: name, Field: field, Value: "v", IsNegated: true},
		}, q.Filters, name)
	}
}

func TestParseSpaceAfterKey(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"level", "fromLevel", "toLevel", "age", "is", "tag"} {
		spaced, err := filterql.Parse(name + ": v")
		require.NoError(t, err, name)

		compact, err := filterql.Parse(name + ":v")
		require.NoError(t, err, name)

		assert.Equal(t, compact.Filters, spaced.Filters, name)
	}
}

func TestParseQuoting(t *testing.T) {
	t.Parallel()

	for _, value := range []string{"foo bar", "it's", `say "hi"`, "a & b", "(x)", ""} {
		for _, q := range []byte{'\'', '"'} {
			escaped := strings.ReplaceAll(value, string(q), `\`+string(q))
			input := "message:" + string(q) + escaped + string(q)

			parsed, err := filterql.Parse(input)
			require.NoError(t, err, input)

			assert.Equal(t, []filterql.Node{key("message", filterql.FieldMessage, value)}, parsed.Filters, input)
		}
	}
}

func TestParsePrecedence(t *testing.T) {
	t.Parallel()

	f1 := key("tag", filterql.FieldTag, "f1")
	f2 := key("tag", filterql.FieldTag, "f2")
	f3 := key("tag", filterql.FieldTag, "f3")
	f4 := key("tag", filterql.FieldTag, "f4")

	q, err := filterql.Parse("tag:f1 & tag:f2 | tag:f3 & tag:f4")
	require.NoError(t, err)
	assert.Equal(t, []filterql.Node{or(and(f1, f2), and(f3, f4))}, q.Filters)

	q, err = filterql.Parse("tag:f1 & (tag:f2 | tag:f3) & tag:f4")
	require.NoError(t, err)
	assert.Equal(t, []filterql.Node{and(and(f1, or(f2, f3)), f4)}, q.Filters)
}

func TestParseSiblings(t *testing.T) {
	t.Parallel()

	q, err := filterql.Parse("level: I foo    bar   tag: bar   package: foobar")
	require.NoError(t, err)

	assert.Equal(t, []filterql.Node{
		key("level", filterql.FieldLevel, "I"),
		text("foo    bar"),
		key("tag", filterql.FieldTag, "bar"),
		key("package", filterql.FieldPackage, "foobar"),
	}, q.Filters)

	q, err = filterql.Parse("a")
	require.NoError(t, err)
	assert.Equal(t, []filterql.Node{text("a")}, q.Filters)
}

func TestParseIdempotent(t *testing.T) {
	t.Parallel()

	const input = "tag:a -message~:'x y' | (level:E & is:crash) free text"

	first, err := filterql.Parse(input)
	require.NoError(t, err)

	second, err := filterql.Parse(input)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}
