package filterql

type TokenKind string

const (
	TokenEOF       = TokenKind("EOF")
	TokenKey       = TokenKind("KEY")
	TokenStringKey = TokenKind("STRING_KEY")
	TokenRegexKey  = TokenKind("REGEX_KEY")
	TokenExactKey  = TokenKind("EXACT_KEY")
	TokenKValue    = TokenKind("KVALUE")
	TokenValue     = TokenKind("VALUE")
	TokenAnd       = TokenKind("AND")
	TokenOr        = TokenKind("OR")
	TokenLParen    = TokenKind("LPAREN")
	TokenRParen    = TokenKind("RPAREN")
)

func (k TokenKind) IsKey() bool {
	switch k {
	case TokenKey, TokenStringKey, TokenRegexKey, TokenExactKey:
		return true
	}

	return false
}

func (k TokenKind) String() string {
	return string(k)
}

// State is the lexer state. Hosts that re-lex incrementally store the state
// at a token boundary and pass it back to Reset.
type State string

const (
	StateInitial     = State("init")
	StateValue       = State("value")
	StateStringValue = State("stringValue")
)

type Token struct {
	Kind  TokenKind
	Text  string
	Start int
	End   int

	// State is the lexer state the token was scanned in.
	State State
}
