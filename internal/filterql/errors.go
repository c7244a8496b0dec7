package filterql

import "fmt"

// ParseError is returned for syntactically invalid queries. Offset is the
// byte offset into Input where the problem was detected.
type ParseError struct {
	Message string
	Offset  int
	Input   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Message)
}

func newParseError(input string, offset int, format string, args ...any) *ParseError {
	return &ParseError{
		Message: fmt.Sprintf(format, args...),
		Offset:  offset,
		Input:   input,
	}
}
