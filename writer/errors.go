package writer

import (
	"fmt"

	"github.com/robinvdvleuten/beanledger/ast"
)

// ConcurrentModificationError is returned when a file changed since the
// caller read it.
type ConcurrentModificationError struct {
	Pos       ast.Position
	Message   string
	Directive ast.Directive
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos.Location(), e.Message)
}

func (e *ConcurrentModificationError) GetPosition() ast.Position   { return e.Pos }
func (e *ConcurrentModificationError) GetDirective() ast.Directive { return e.Directive }

// NewConcurrentModificationError creates a ConcurrentModificationError for
// path. d is the entry being edited, or nil for whole-file edits.
func NewConcurrentModificationError(path string, d ast.Directive) *ConcurrentModificationError {
	pos := ast.Position{Filename: path}
	if d != nil {
		pos = d.Position()
	}
	return &ConcurrentModificationError{
		Pos:       pos,
		Message:   fmt.Sprintf("The file %s was changed externally", path),
		Directive: d,
	}
}

// NonSourceFileError is returned when a file outside the ledger's source
// files is read or written.
type NonSourceFileError struct {
	Path string
}

func (e *NonSourceFileError) Error() string {
	return fmt.Sprintf("Trying to read a non-source file at '%s'", e.Path)
}

// NewNonSourceFileError creates a NonSourceFileError.
func NewNonSourceFileError(path string) *NonSourceFileError {
	return &NonSourceFileError{Path: path}
}
