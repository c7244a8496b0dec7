package filterql

import (
	"context"
	"strings"
	"sync"

	"github.com/tierklinik-dobersberg/logfilter-service/internal/logcat"
)

// ValueProvider returns values already seen for a string field. It is used
// to complete values after keys like "tag:".
type ValueProvider interface {
	DistinctValues(ctx context.Context, field Field) ([]string, error)
}

// Language keeps the state of a filter that is being edited. It is safe for
// concurrent use.
type Language struct {
	keys   *KeySet
	values ValueProvider

	l      sync.Mutex
	input  string
	tokens []Token
	state  State
	query  *Query
}

func New(keys *KeySet, values ValueProvider) *Language {
	if keys == nil {
		keys = DefaultKeySet()
	}

	return &Language{
		keys:   keys,
		values: values,
		state:  StateInitial,
		query:  &Query{},
	}
}

// String returns the canonical form of the last valid query.
func (l *Language) String() string {
	l.l.Lock()
	defer l.l.Unlock()

	return l.query.String()
}

// Process tokenizes and parses input. The tokens are always updated so
// completion keeps working while the user types. The query is only
// replaced if input parses.
func (l *Language) Process(input string) error {
	lexer := NewLexer(l.keys)
	lexer.Reset(input, 0, len(input), StateInitial)

	var tokens []Token
	for lexer.Advance() != TokenEOF {
		tokens = append(tokens, lexer.Token())
	}

	query, err := ParseWithKeys(input, l.keys)

	l.l.Lock()
	defer l.l.Unlock()

	l.input = input
	l.tokens = tokens
	l.state = lexer.State()

	if err != nil {
		return err
	}

	l.query = query

	return nil
}

// Query returns the last successfully parsed query.
func (l *Language) Query() *Query {
	l.l.Lock()
	defer l.l.Unlock()

	return l.query
}

// ExpectedNextToken returns the state at the end of the processed input,
// the key whose value is being typed (if any) and possible completions.
func (l *Language) ExpectedNextToken(ctx context.Context) (State, string, []string, error) {
	l.l.Lock()
	input, tokens, state := l.input, l.tokens, l.state
	l.l.Unlock()

	trailingSpace := input != "" && isSpace(input[len(input)-1])

	// there isn't even a single token
	if len(tokens) == 0 {
		return state, "", l.keyCompletions("", nil), nil
	}

	last := tokens[len(tokens)-1]

	switch {
	case last.Kind.IsKey():
		key := keyName(last.Text)
		values, err := l.getFieldValues(ctx, key, "")

		return state, key, values, err

	case last.Kind == TokenKValue && !trailingSpace && len(tokens) > 1:
		key := keyName(tokens[len(tokens)-2].Text)
		values, err := l.getFieldValues(ctx, key, last.Text)

		return last.State, key, values, err

	case last.Kind == TokenValue && !trailingSpace:
		word := last.Text
		if idx := strings.LastIndexAny(word, " \t"); idx >= 0 {
			word = word[idx+1:]
		}

		// only string keys can be negated
		if prefix, ok := strings.CutPrefix(word, "-"); ok {
			return state, "", l.keyCompletions(prefix, l.keys.IsStringKey), nil
		}

		return state, "", l.keyCompletions(word, nil), nil

	default:
		return state, "", l.keyCompletions("", nil), nil
	}
}

func (l *Language) keyCompletions(prefix string, allowed func(string) bool) []string {
	return mapValues(
		filterValues(l.keys.Names(), func(name string) bool {
			return strings.HasPrefix(name, prefix) && (allowed == nil || allowed(name))
		}),
		func(name string) string {
			return name + ":"
		},
	)
}

func (l *Language) getFieldValues(ctx context.Context, key string, prefix string) ([]string, error) {
	field, ok := l.keys.Lookup(key)
	if !ok {
		return nil, nil
	}

	var values []string

	switch field {
	case FieldLevel, FieldFromLevel, FieldToLevel:
		values = mapValues(logcat.Levels(), logcat.Level.String)

	case FieldIs:
		values = []string{"crash", "stacktrace"}

	case FieldAge:
		values = []string{"30s", "5m", "1h", "1d"}

	case FieldTag, FieldPackage, FieldProcess:
		if field == FieldPackage {
			values = append(values, "mine")
		}

		if l.values != nil {
			stored, err := l.values.DistinctValues(ctx, field)
			if err != nil {
				return nil, err
			}

			values = append(values, stored...)
		}

	default:
		return nil, nil
	}

	return filterValues(values, func(v string) bool {
		return strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix))
	}), nil
}

// keyName strips negation, suffix and colon from a key token.
func keyName(text string) string {
	text = strings.TrimPrefix(text, "-")
	text = strings.TrimSuffix(text, ":")
	text = strings.TrimRight(text, "~=")

	return text
}

func mapValues[T any, E any](list []T, fn func(T) E) []E {
	result := make([]E, len(list))

	for idx, e := range list {
		result[idx] = fn(e)
	}

	return result
}

func filterValues[T any](list []T, fn func(T) bool) []T {
	result := make([]T, 0, len(list))

	for _, e := range list {
		if fn(e) {
			result = append(result, e)
		}
	}

	return result
}
