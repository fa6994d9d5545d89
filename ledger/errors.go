package ledger

import "fmt"

// NotFoundError is returned when no entry has the requested hash.
type NotFoundError struct {
	Hash string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("No entry found for hash %s", e.Hash)
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(hash string) *NotFoundError {
	return &NotFoundError{Hash: hash}
}

// ShellError is returned for query shell commands that cannot run.
type ShellError struct {
	Message string
}

func (e *ShellError) Error() string {
	return e.Message
}

// NewQueryNotFoundError reports a `run` of an unknown stored query.
func NewQueryNotFoundError(name string) *ShellError {
	return &ShellError{Message: fmt.Sprintf("Query '%s' not found.", name)}
}

// NewTooManyRunArgsError reports a `run` with more than one name.
func NewTooManyRunArgsError(args string) *ShellError {
	return &ShellError{Message: fmt.Sprintf("Too many args to run: '%s'.", args)}
}

// NewNonExportableQueryError reports an export of a text result.
func NewNonExportableQueryError() *ShellError {
	return &ShellError{Message: "Only queries that return a table can be printed to a file."}
}
