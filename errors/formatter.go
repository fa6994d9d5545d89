// Package errors renders the errors collected while loading a ledger for
// people and programs. The error types themselves live with the stage that
// produces them; this package only deals with presentation:
//   - TextFormatter prints bean-check style messages followed by the
//     offending entry or the source lines around a syntax error.
//   - JSONFormatter emits structured records for tools and editors.
package errors

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/parser"
	"github.com/robinvdvleuten/beanledger/writer"
)

// Formatter formats errors for output in different formats.
type Formatter interface {
	// Format formats a single error.
	Format(err error) string

	// FormatAll formats multiple errors.
	FormatAll(errs []error) string
}

type positioned interface {
	error
	GetPosition() ast.Position
}

type withDirective interface {
	positioned
	GetDirective() ast.Directive
}

// TextFormatter formats errors for command-line output in bean-check style.
type TextFormatter struct {
	writer *writer.Writer
	source []byte
}

// TextFormatterOption is an option for configuring TextFormatter.
type TextFormatterOption func(*TextFormatter)

// WithSource sets the source shown around errors that carry a position but
// no entry.
func WithSource(source []byte) TextFormatterOption {
	return func(tf *TextFormatter) {
		tf.source = source
	}
}

// NewTextFormatter creates a text formatter that renders offending entries
// with w. A nil w renders without indentation of amounts.
func NewTextFormatter(w *writer.Writer, opts ...TextFormatterOption) *TextFormatter {
	if w == nil {
		w = writer.New(writer.WithCurrencyColumn(0))
	}
	tf := &TextFormatter{writer: w}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

// Format formats a single error.
func (tf *TextFormatter) Format(err error) string {
	if perr, ok := err.(*parser.ParseError); ok {
		source := tf.source
		if source == nil {
			source = perr.Source
		}
		if source != nil {
			return formatWithSource(perr.Pos, perr.Error(), source)
		}
		return perr.Error()
	}

	if e, ok := err.(withDirective); ok && e.GetDirective() != nil {
		return tf.formatWithEntry(e.Error(), e.GetDirective())
	}

	if e, ok := err.(positioned); ok && tf.source != nil {
		return formatWithSource(e.GetPosition(), e.Error(), tf.source)
	}

	return err.Error()
}

// FormatAll formats multiple errors, separating them with blank lines.
func (tf *TextFormatter) FormatAll(errs []error) string {
	parts := make([]string, len(errs))
	for i, err := range errs {
		parts[i] = strings.TrimRight(tf.Format(err), "\n")
	}
	return strings.Join(parts, "\n\n")
}

// formatWithSource prints the message, then the lines from two before to
// one after pos with a caret under the column.
func formatWithSource(pos ast.Position, message string, source []byte) string {
	var buf bytes.Buffer
	buf.WriteString(message)
	buf.WriteString("\n\n")

	lines := strings.Split(strings.ReplaceAll(string(source), "\r\n", "\n"), "\n")
	first := max(pos.Line-3, 0)
	last := min(pos.Line, len(lines)-1)
	for i := first; i <= last; i++ {
		buf.WriteString("   ")
		buf.WriteString(lines[i])
		buf.WriteByte('\n')
		if i == pos.Line-1 && pos.Column > 0 {
			buf.WriteString("   ")
			buf.WriteString(strings.Repeat(" ", pos.Column-1))
			buf.WriteString("^\n")
		}
	}
	return buf.String()
}

// formatWithEntry prints the message followed by the entry, indented.
func (tf *TextFormatter) formatWithEntry(message string, d ast.Directive) string {
	var buf bytes.Buffer
	buf.WriteString(message)
	buf.WriteString("\n\n")
	for _, line := range strings.Split(strings.TrimRight(tf.writer.Render(d), "\n"), "\n") {
		buf.WriteString("   ")
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	return buf.String()
}

// JSONFormatter formats errors as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// ErrorJSON represents an error in JSON format.
type ErrorJSON struct {
	Type     string            `json:"type"`
	Message  string            `json:"message"`
	Position *PositionJSON     `json:"position,omitempty"`
	Entry    string            `json:"entry,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}

// PositionJSON represents a file position in JSON format.
type PositionJSON struct {
	Filename string `json:"filename"`
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
}

// Format formats a single error as JSON.
func (jf *JSONFormatter) Format(err error) string {
	data, _ := json.Marshal(jf.ToJSON(err))
	return string(data)
}

// FormatAll formats multiple errors as an indented JSON array.
func (jf *JSONFormatter) FormatAll(errs []error) string {
	records := make([]ErrorJSON, len(errs))
	for i, err := range errs {
		records[i] = jf.ToJSON(err)
	}
	data, _ := json.MarshalIndent(records, "", "  ")
	return string(data)
}

// ToJSON converts an error to its record. Type is the name of the error
// type without package, such as "BalanceError".
func (jf *JSONFormatter) ToJSON(err error) ErrorJSON {
	typ := fmt.Sprintf("%T", err)
	if i := strings.LastIndexByte(typ, '.'); i >= 0 {
		typ = typ[i+1:]
	}
	rec := ErrorJSON{Type: typ, Message: err.Error()}

	if e, ok := err.(positioned); ok {
		pos := e.GetPosition()
		rec.Position = &PositionJSON{Filename: pos.Filename, Line: pos.Line, Column: pos.Column}
	}
	if e, ok := err.(withDirective); ok && e.GetDirective() != nil {
		rec.Entry = ast.Hash(e.GetDirective())
	}

	details := map[string]string{}
	if e, ok := err.(interface{ GetAccount() string }); ok {
		details["account"] = e.GetAccount()
	}
	if e, ok := err.(interface{ GetDate() ast.Date }); ok && !e.GetDate().IsZero() {
		details["date"] = e.GetDate().String()
	}
	if len(details) > 0 {
		rec.Details = details
	}
	return rec
}
