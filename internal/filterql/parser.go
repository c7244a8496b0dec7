package filterql

import (
	"strings"
)

// Parse parses a filter query using the default key set.
//
//	filterFile := expression*
//	expression := orExpr
//	orExpr     := andExpr ('|' andExpr)*
//	andExpr    := primary ('&' primary)*
//	primary    := '(' expression ')' | KEY KVALUE | VALUE
//
// A blank input yields an empty Query and no error.
func Parse(input string) (*Query, error) {
	return ParseWithKeys(input, nil)
}

func ParseWithKeys(input string, keys *KeySet) (*Query, error) {
	p := &parser{
		input: input,
		keys:  keys,
		lexer: NewLexer(keys),
	}
	if p.keys == nil {
		p.keys = DefaultKeySet()
	}

	p.lexer.Reset(input, 0, len(input), StateInitial)
	p.next()

	filters, err := p.parseFile()
	if err != nil {
		return nil, err
	}

	return &Query{
		Input:   input,
		Filters: filters,
	}, nil
}

type parser struct {
	input string
	keys  *KeySet
	lexer *Lexer
	tok   Token
}

func (p *parser) next() {
	p.lexer.Advance()
	p.tok = p.lexer.Token()
}

func (p *parser) parseFile() ([]Node, error) {
	var nodes []Node

	for p.tok.Kind != TokenEOF {
		n, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		nodes = append(nodes, n)
	}

	return nodes, nil
}

func (p *parser) parseOr() (Node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}

	for p.tok.Kind == TokenOr {
		p.next()

		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}

		left = &OrFilter{Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parseAnd() (Node, error) {
	left, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	for p.tok.Kind == TokenAnd {
		p.next()

		right, err := p.parsePrimary()
		if err != nil {
			return nil, err
		}

		left = &AndFilter{Left: left, Right: right}
	}

	return left, nil
}

func (p *parser) parsePrimary() (Node, error) {
	tok := p.tok

	switch {
	case tok.Kind == TokenLParen:
		p.next()

		if p.tok.Kind == TokenRParen {
			return nil, newParseError(p.input, tok.Start, "empty parentheses")
		}

		expr, err := p.parseOr()
		if err != nil {
			return nil, err
		}

		switch p.tok.Kind {
		case TokenRParen:
			p.next()
			return expr, nil
		case TokenEOF:
			return nil, newParseError(p.input, tok.Start, "unbalanced '(': missing ')'")
		default:
			return nil, newParseError(p.input, p.tok.Start, "expected '&', '|' or ')' but found %q", p.tok.Text)
		}

	case tok.Kind.IsKey():
		p.next()

		if p.tok.Kind != TokenKValue {
			return nil, newParseError(p.input, tok.End, "missing value for key %q", tok.Text)
		}
		value := p.tok
		p.next()

		return p.keyFilter(tok, value)

	case tok.Kind == TokenValue:
		p.next()

		return &TopLevelFilter{Text: unescape(tok.Text, false)}, nil

	case tok.Kind == TokenRParen:
		return nil, newParseError(p.input, tok.Start, "unbalanced ')'")

	case tok.Kind == TokenAnd || tok.Kind == TokenOr:
		return nil, newParseError(p.input, tok.Start, "missing operand before %q", tok.Text)

	case tok.Kind == TokenEOF:
		return nil, newParseError(p.input, tok.Start, "unexpected end of input")

	default:
		return nil, newParseError(p.input, tok.Start, "unexpected %s %q", tok.Kind, tok.Text)
	}
}

func (p *parser) keyFilter(key, value Token) (Node, error) {
	name := strings.TrimSuffix(key.Text, ":")

	f := &KeyFilter{
		IsRegex: key.Kind == TokenRegexKey,
		IsExact: key.Kind == TokenExactKey,
	}

	if strings.HasPrefix(name, "-") {
		f.IsNegated = true
		name = name[1:]
	}
	if f.IsRegex || f.IsExact {
		name = name[:len(name)-1]
	}

	field, ok := p.keys.Lookup(name)
	if !ok {
		return nil, newParseError(p.input, key.Start, "unknown key %q", name)
	}

	f.Key = name
	f.Field = field

	if key.Kind == TokenKey {
		f.Value = value.Text
	} else {
		f.Value = unescape(value.Text, f.IsRegex)
	}

	return f, nil
}

// unescape resolves quoting and backslash escapes of a value. Regex values
// keep escapes that change the meaning of a pattern.
func unescape(s string, regex bool) string {
	var sb strings.Builder
	sb.Grow(len(s))

	wordStart := true
	for i := 0; i < len(s); {
		c := s[i]

		switch {
		case wordStart && isQuote(c):
			i = unquote(&sb, s, i)
			wordStart = false

		case c == '\\' && i+1 < len(s) && isEscapable(s[i+1], regex):
			sb.WriteByte(s[i+1])
			i += 2
			wordStart = false

		default:
			sb.WriteByte(c)
			i++
			wordStart = isSpace(c)
		}
	}

	return sb.String()
}

func unquote(sb *strings.Builder, s string, i int) int {
	q := s[i]
	i++

	for i < len(s) {
		switch {
		case s[i] == '\\' && i+1 < len(s) && (s[i+1] == q || s[i+1] == '\\'):
			sb.WriteByte(s[i+1])
			i += 2
		case s[i] == q:
			return i + 1
		default:
			sb.WriteByte(s[i])
			i++
		}
	}

	return i
}

func isEscapable(c byte, regex bool) bool {
	switch c {
	case ' ', '\t', '\'', '"', ':':
		return true
	case '(', ')', '&', '|', '\\':
		return !regex
	}

	return false
}
