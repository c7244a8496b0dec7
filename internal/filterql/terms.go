package filterql

import (
	"strings"

	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
)

// ToggleTerm adds the term key:value to input or, if input already contains
// it, removes every occurrence. Only a flat list of juxtaposed terms can be
// edited. For anything else, including invalid input and unknown keys, input
// is returned unchanged and ok is false.
func ToggleTerm(input, key, value string) (string, bool) {
	keys := DefaultKeySet()

	field, ok := keys.Lookup(key)
	if !ok {
		return input, false
	}

	term := &KeyFilter{Key: key, Field: field, Value: value}

	if _, err := ParseWithKeys(input, keys); err != nil {
		return input, false
	}

	var (
		terms   []string
		removed bool
	)

	tokens := Tokenize(input, keys)
	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]

		switch {
		case tok.Kind == TokenValue:
			terms = append(terms, input[tok.Start:tok.End])

		case tok.Kind.IsKey() && i+1 < len(tokens) && tokens[i+1].Kind == TokenKValue:
			text := input[tok.Start:tokens[i+1].End]
			i++

			if isSameTerm(text, term, keys) {
				removed = true
				continue
			}

			terms = append(terms, text)

		default:
			return input, false
		}
	}

	if !removed {
		terms = append(terms, term.String())
	}

	return strings.Join(terms, " "), true
}

func isSameTerm(text string, term *KeyFilter, keys *KeySet) bool {
	q, err := ParseWithKeys(text, keys)
	if err != nil || len(q.Filters) != 1 {
		return false
	}

	f, ok := q.Filters[0].(*KeyFilter)
	if !ok || f.Field != term.Field || f.IsNegated || f.IsRegex || f.IsExact {
		return false
	}

	switch f.Field {
	case FieldLevel, FieldFromLevel, FieldToLevel:
		a, aerr := logcat.ParseLevel(f.Value)
		b, berr := logcat.ParseLevel(term.Value)
		if aerr == nil && berr == nil {
			return a == b
		}
	}

	return f.Value == term.Value
}

// TermStats counts the kinds of terms used in a query.
type TermStats struct {
	// ImplicitLineTerms counts free text terms.
	ImplicitLineTerms int

	// PackageProjectTerms counts "package:mine" terms.
	PackageProjectTerms int

	// KeyTerms counts all other key terms by field.
	KeyTerms map[Field]int

	NegatedTerms int
	RegexTerms   int
	ExactTerms   int

	AndOperators int
	OrOperators  int
}

// CountTerms collects the TermStats of q.
func CountTerms(q *Query) TermStats {
	stats := TermStats{
		KeyTerms: make(map[Field]int),
	}

	if q == nil {
		return stats
	}

	for _, n := range q.Filters {
		stats.add(n)
	}

	return stats
}

func (s *TermStats) add(n Node) {
	switch v := n.(type) {
	case *AndFilter:
		s.AndOperators++
		s.add(v.Left)
		s.add(v.Right)

	case *OrFilter:
		s.OrOperators++
		s.add(v.Left)
		s.add(v.Right)

	case *TopLevelFilter:
		s.ImplicitLineTerms++

	case *KeyFilter:
		if v.IsNegated {
			s.NegatedTerms++
		}
		if v.IsRegex {
			s.RegexTerms++
		}
		if v.IsExact {
			s.ExactTerms++
		}

		if v.Field == FieldPackage && v.Value == PackageMine && !v.IsRegex && !v.IsExact {
			s.PackageProjectTerms++
			return
		}

		s.KeyTerms[v.Field]++
	}
}

// Map encodes s into plain values.
func (s TermStats) Map() map[string]any {
	keyTerms := make(map[string]any, len(s.KeyTerms))
	for field, count := range s.KeyTerms {
		keyTerms[string(field)] = count
	}

	return map[string]any{
		"implicitLineTerms":   s.ImplicitLineTerms,
		"packageProjectTerms": s.PackageProjectTerms,
		"keyTerms":            keyTerms,
		"negatedTerms":        s.NegatedTerms,
		"regexTerms":          s.RegexTerms,
		"exactTerms":          s.ExactTerms,
		"andOperators":        s.AndOperators,
		"orOperators":         s.OrOperators,
	}
}
