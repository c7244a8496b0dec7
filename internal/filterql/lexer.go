package filterql

// Lexer splits a filter query into tokens. It is restartable at any token
// boundary: Reset takes the buffer window and the state the lexer was in
// at the start of that window.
type Lexer struct {
	keys *KeySet

	buf   string
	end   int
	pos   int
	state State

	kind       TokenKind
	tokenStart int
	tokenEnd   int
	tokenState State
}

func NewLexer(keys *KeySet) *Lexer {
	if keys == nil {
		keys = DefaultKeySet()
	}

	return &Lexer{
		keys:  keys,
		state: StateInitial,
		kind:  TokenEOF,
	}
}

// Reset prepares the lexer to scan buf[start:end] beginning in state
// initial. Out-of-range bounds are clamped.
func (l *Lexer) Reset(buf string, start, end int, initial State) {
	if end < 0 || end > len(buf) {
		end = len(buf)
	}
	if start < 0 {
		start = 0
	}
	if start > end {
		start = end
	}
	if initial == "" {
		initial = StateInitial
	}

	l.buf = buf
	l.pos = start
	l.end = end
	l.state = initial

	l.kind = TokenEOF
	l.tokenStart = start
	l.tokenEnd = start
	l.tokenState = initial
}

// Advance scans the next token and returns its kind. TokenEOF is returned
// once the window is exhausted. Whitespace is never returned as a token.
func (l *Lexer) Advance() TokenKind {
	for l.pos < l.end && isSpace(l.buf[l.pos]) {
		l.pos++
	}

	l.tokenStart = l.pos
	l.tokenState = l.state

	if l.pos >= l.end {
		return l.emit(l.pos, TokenEOF)
	}

	switch l.state {
	case StateValue, StateStringValue:
		// a key directly followed by an operator has no value
		if isOperator(l.buf[l.pos]) {
			l.state = StateInitial
			return l.scanInitial()
		}

		end := l.scanWord(l.pos, l.state == StateStringValue)
		l.state = StateInitial

		return l.emit(end, TokenKValue)

	default:
		return l.scanInitial()
	}
}

func (l *Lexer) TokenStart() int { return l.tokenStart }

func (l *Lexer) TokenEnd() int { return l.tokenEnd }

func (l *Lexer) TokenText() string { return l.buf[l.tokenStart:l.tokenEnd] }

// TokenState returns the state the current token was scanned in.
func (l *Lexer) TokenState() State { return l.tokenState }

// State returns the state the next token will be scanned in.
func (l *Lexer) State() State { return l.state }

func (l *Lexer) Token() Token {
	return Token{
		Kind:  l.kind,
		Text:  l.TokenText(),
		Start: l.tokenStart,
		End:   l.tokenEnd,
		State: l.tokenState,
	}
}

func (l *Lexer) emit(end int, kind TokenKind) TokenKind {
	l.pos = end
	l.tokenEnd = end
	l.kind = kind

	return kind
}

func (l *Lexer) scanInitial() TokenKind {
	switch l.buf[l.pos] {
	case '&':
		return l.emit(l.pos+1, TokenAnd)
	case '|':
		return l.emit(l.pos+1, TokenOr)
	case '(':
		return l.emit(l.pos+1, TokenLParen)
	case ')':
		return l.emit(l.pos+1, TokenRParen)
	}

	if end, kind, next, ok := l.matchKey(l.pos); ok {
		l.state = next
		return l.emit(end, kind)
	}

	return l.emit(l.scanValue(l.pos), TokenValue)
}

// matchKey checks whether a key starts at i. Non-string keys only match in
// their plain form, "-level:" or "level~:" are not keys.
func (l *Lexer) matchKey(i int) (int, TokenKind, State, bool) {
	negated := false
	if i < l.end && l.buf[i] == '-' {
		negated = true
		i++
	}

	nameStart := i
	for i < l.end && isKeyChar(l.buf[i]) {
		i++
	}
	if i == nameStart {
		return 0, "", "", false
	}
	name := l.buf[nameStart:i]

	var suffix byte
	if i < l.end && (l.buf[i] == '~' || l.buf[i] == '=') {
		suffix = l.buf[i]
		i++
	}

	if i >= l.end || l.buf[i] != ':' {
		return 0, "", "", false
	}
	i++

	if l.keys.IsStringKey(name) {
		switch suffix {
		case '~':
			return i, TokenRegexKey, StateStringValue, true
		case '=':
			return i, TokenExactKey, StateStringValue, true
		default:
			return i, TokenStringKey, StateStringValue, true
		}
	}

	if l.keys.IsValueKey(name) && !negated && suffix == 0 {
		return i, TokenKey, StateValue, true
	}

	return 0, "", "", false
}

// scanValue collects free text. The value spans several words and stops
// before an operator, before a word that starts a key, or at the end.
func (l *Lexer) scanValue(i int) int {
	for {
		i = l.scanWord(i, true)
		end := i

		if i >= l.end || !isSpace(l.buf[i]) {
			return end
		}

		next := i
		for next < l.end && isSpace(l.buf[next]) {
			next++
		}

		if next >= l.end || isOperator(l.buf[next]) {
			return end
		}

		if _, _, _, ok := l.matchKey(next); ok {
			return end
		}

		i = next
	}
}

// scanWord consumes one word starting at i. A word ends at unescaped
// whitespace or an operator. If quotes is set, a word starting with a
// quote character runs until the matching quote.
func (l *Lexer) scanWord(i int, quotes bool) int {
	if quotes && i < l.end && isQuote(l.buf[i]) {
		i = l.skipQuoted(i)
	}

	for i < l.end {
		c := l.buf[i]

		switch {
		case c == '\\':
			i = min(i+2, l.end)
		case isSpace(c) || isOperator(c):
			return i
		default:
			i++
		}
	}

	return i
}

func (l *Lexer) skipQuoted(i int) int {
	q := l.buf[i]
	i++

	for i < l.end {
		switch {
		case l.buf[i] == '\\' && i+1 < l.end && (l.buf[i+1] == q || l.buf[i+1] == '\\'):
			i += 2
		case l.buf[i] == q:
			return i + 1
		default:
			i++
		}
	}

	// unterminated, the rest of the window belongs to the value
	return l.end
}

// Tokenize returns all tokens of input, excluding the final EOF.
func Tokenize(input string, keys *KeySet) []Token {
	l := NewLexer(keys)
	l.Reset(input, 0, len(input), StateInitial)

	var tokens []Token
	for l.Advance() != TokenEOF {
		tokens = append(tokens, l.Token())
	}

	return tokens
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}

	return false
}

func isOperator(c byte) bool {
	switch c {
	case '&', '|', '(', ')':
		return true
	}

	return false
}

func isQuote(c byte) bool {
	return c == '\'' || c == '"'
}

func isKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
