package filterql

import (
	"strings"
)

// Node is a parsed filter expression. Nodes are immutable once returned
// from the parser.
type Node interface {
	String() string

	node()
}

// KeyFilter matches a single field, e.g. -tag~:foo.
type KeyFilter struct {
	// Key is the key as written without negation, suffix or colon.
	Key   string
	Field Field
	Value string

	IsNegated bool
	IsRegex   bool
	IsExact   bool
}

// TopLevelFilter is free text that is not bound to a key.
type TopLevelFilter struct {
	Text string
}

type AndFilter struct {
	Left  Node
	Right Node
}

type OrFilter struct {
	Left  Node
	Right Node
}

func (*KeyFilter) node()      {}
func (*TopLevelFilter) node() {}
func (*AndFilter) node()      {}
func (*OrFilter) node()       {}

func (f *KeyFilter) String() string {
	var sb strings.Builder

	if f.IsNegated {
		sb.WriteByte('-')
	}
	sb.WriteString(f.Key)

	switch {
	case f.IsRegex:
		sb.WriteByte('~')
	case f.IsExact:
		sb.WriteByte('=')
	}
	sb.WriteByte(':')

	if f.Field.IsString() {
		sb.WriteString(quote(f.Value))
	} else {
		sb.WriteString(f.Value)
	}

	return sb.String()
}

func (f *TopLevelFilter) String() string {
	return quote(f.Text)
}

func (f *AndFilter) String() string {
	return "(" + f.Left.String() + " & " + f.Right.String() + ")"
}

func (f *OrFilter) String() string {
	return "(" + f.Left.String() + " | " + f.Right.String() + ")"
}

// Conjuncts flattens a chain of AndFilters into its operands.
func Conjuncts(n Node) []Node {
	if and, ok := n.(*AndFilter); ok {
		return append(Conjuncts(and.Left), Conjuncts(and.Right)...)
	}

	return []Node{n}
}

// Disjuncts flattens a chain of OrFilters into its operands.
func Disjuncts(n Node) []Node {
	if or, ok := n.(*OrFilter); ok {
		return append(Disjuncts(or.Left), Disjuncts(or.Right)...)
	}

	return []Node{n}
}

// Query is the result of parsing a complete filter. Filters holds the
// juxtaposed top-level expressions in input order.
type Query struct {
	Input   string
	Filters []Node
}

// IsEmpty reports whether the query contained no filter at all.
func (q *Query) IsEmpty() bool {
	return q == nil || len(q.Filters) == 0
}

// Filter combines all top-level expressions into a single node using
// AndFilter. It returns nil for an empty query.
func (q *Query) Filter() Node {
	if q.IsEmpty() {
		return nil
	}

	result := q.Filters[0]
	for _, n := range q.Filters[1:] {
		result = &AndFilter{Left: result, Right: n}
	}

	return result
}

func (q *Query) String() string {
	if q.IsEmpty() {
		return ""
	}

	strs := make([]string, len(q.Filters))
	for idx, n := range q.Filters {
		strs[idx] = n.String()
	}

	return strings.Join(strs, " ")
}

// quote returns s unchanged if it lexes back to the same single word,
// otherwise a quoted form.
func quote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\n\r\f\v'\"\\:&|()") && s[0] != '-' {
		return s
	}

	q := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		q = '"'
	}

	var sb strings.Builder
	sb.WriteByte(q)
	for i := 0; i < len(s); i++ {
		if s[i] == q || s[i] == '\\' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(s[i])
	}
	sb.WriteByte(q)

	return sb.String()
}
