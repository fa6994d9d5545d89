package query

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// CompilationError is returned for a query that cannot be parsed or does
// not type check. Column is the 1-based offset in the query string, or 0
// when unknown.
type CompilationError struct {
	Column  int
	Message string
}

func (e *CompilationError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("column %d: %s", e.Column, e.Message)
	}
	return e.Message
}

func newCompilationError(pos lexer.Position, format string, args ...any) *CompilationError {
	return &CompilationError{Column: pos.Column, Message: fmt.Sprintf(format, args...)}
}

// fromParseError converts a participle error, keeping its position.
func fromParseError(err error) *CompilationError {
	if perr, ok := err.(participle.Error); ok {
		return &CompilationError{Column: perr.Position().Column, Message: perr.Message()}
	}
	return &CompilationError{Message: err.Error()}
}

// ExecutionError is returned when evaluating a compiled query fails, for
// example on division by zero.
type ExecutionError struct {
	Column  int
	Message string
}

func (e *ExecutionError) Error() string {
	if e.Column > 0 {
		return fmt.Sprintf("column %d: %s", e.Column, e.Message)
	}
	return e.Message
}

func newExecutionError(pos lexer.Position, format string, args ...any) *ExecutionError {
	return &ExecutionError{Column: pos.Column, Message: fmt.Sprintf(format, args...)}
}
