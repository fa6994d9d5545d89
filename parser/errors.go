package parser

import (
	"fmt"
	"strings"

	"github.com/robinvdvleuten/beanledger/ast"
)

// ParseError is a syntax error. Parsing continues after it at the next
// line starting in column 1, so one file can yield several.
type ParseError struct {
	Pos     ast.Position
	Message string
	// Span covers the offending token in the source the error came from.
	Span   ast.Span
	Source []byte
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos.Location(), e.Message)
}

// GetPosition returns the location of the offending token.
func (e *ParseError) GetPosition() ast.Position {
	return e.Pos
}

// Text returns the offending source text.
func (e *ParseError) Text() string {
	return e.Span.Text(e.Source)
}

// ErrorList collects the errors of one parse.
type ErrorList []error

func (l ErrorList) Error() string {
	msgs := make([]string, len(l))
	for i, err := range l {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (l ErrorList) Unwrap() []error {
	return l
}

// Err returns nil for an empty list so callers can compare against nil.
func (l ErrorList) Err() error {
	if len(l) == 0 {
		return nil
	}
	return l
}
