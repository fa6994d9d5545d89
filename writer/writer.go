// Package writer renders directives back to source text and edits source
// files in place.
//
// Edits are line based: an entry occupies its first line plus every
// following indented line. Each edit carries the SHA-256 of the text the
// caller last saw and fails with a ConcurrentModificationError when the file
// no longer matches, so edits never silently overwrite external changes.
// Files are replaced atomically.
package writer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
)

// Writer renders and writes entries. Its file operations are serialized.
type Writer struct {
	// CurrencyColumn is the 1-based column currencies are aligned at.
	CurrencyColumn int

	// Indent is the number of spaces postings and metadata are indented by.
	Indent int

	mu sync.Mutex
}

// Option configures a Writer.
type Option func(*Writer)

// WithCurrencyColumn sets the column currencies are aligned at.
func WithCurrencyColumn(col int) Option {
	return func(w *Writer) {
		w.CurrencyColumn = col
	}
}

// WithIndent sets the indentation of postings and metadata.
func WithIndent(n int) Option {
	return func(w *Writer) {
		w.Indent = n
	}
}

// New creates a Writer.
func New(opts ...Option) *Writer {
	w := &Writer{CurrencyColumn: DefaultCurrencyColumn, Indent: DefaultIndent}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Sum returns the hex SHA-256 of s.
func Sum(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// sourceFile is a file split into lines. Lines keep no line endings; the
// file's own newline sequence is restored on write.
type sourceFile struct {
	path    string
	lines   []string
	newline string
}

func readFile(path string) (*sourceFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	newline := "\n"
	if i := bytes.IndexByte(data, '\n'); i > 0 && data[i-1] == '\r' {
		newline = "\r\n"
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	var lines []string
	if text != "" {
		lines = strings.Split(text, "\n")
	}
	return &sourceFile{path: path, lines: lines, newline: newline}, nil
}

func (f *sourceFile) write() error {
	var buf bytes.Buffer
	for _, line := range f.lines {
		buf.WriteString(line)
		buf.WriteString(f.newline)
	}
	return atomic.WriteFile(f.path, &buf)
}

// entryLines returns the number of lines of the entry starting at index:
// the first line and all following non-blank indented lines.
func (f *sourceFile) entryLines(index int) int {
	n := 1
	for i := index + 1; i < len(f.lines); i++ {
		line := f.lines[i]
		if strings.TrimSpace(line) == "" || !startsIndented(line) {
			break
		}
		n++
	}
	return n
}

func startsIndented(line string) bool {
	return line[0] == ' ' || line[0] == '\t'
}

// slice returns the entry slice starting at the 1-based line and its length.
func (f *sourceFile) slice(d ast.Directive, line int) (string, int, error) {
	index := line - 1
	if index < 0 || index >= len(f.lines) {
		return "", 0, NewConcurrentModificationError(f.path, d)
	}
	n := f.entryLines(index)
	return strings.Join(f.lines[index:index+n], "\n"), n, nil
}

func splitLines(s string) []string {
	s = strings.TrimSuffix(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	return strings.Split(s, "\n")
}

// GetEntrySlice returns the source lines of d and their SHA-256.
func (w *Writer) GetEntrySlice(d ast.Directive) (string, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, err := readFile(d.Position().Filename)
	if err != nil {
		return "", "", err
	}
	slice, _, err := f.slice(d, d.Position().Line)
	if err != nil {
		return "", "", err
	}
	return slice, Sum(slice), nil
}

// SaveEntrySlice replaces the source lines of d with slice. sha256sum must
// be the digest of the lines as last read. It returns the digest of the new
// lines.
func (w *Writer) SaveEntrySlice(d ast.Directive, slice, sha256sum string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, index, n, err := w.openSlice(d, sha256sum)
	if err != nil {
		return "", err
	}
	replacement := splitLines(slice)
	lines := make([]string, 0, len(f.lines)-n+len(replacement))
	lines = append(lines, f.lines[:index]...)
	lines = append(lines, replacement...)
	lines = append(lines, f.lines[index+n:]...)
	f.lines = lines
	if err := f.write(); err != nil {
		return "", err
	}
	return Sum(strings.Join(replacement, "\n")), nil
}

// DeleteEntrySlice removes the source lines of d together with the blank
// lines following it.
func (w *Writer) DeleteEntrySlice(d ast.Directive, sha256sum string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	f, index, n, err := w.openSlice(d, sha256sum)
	if err != nil {
		return err
	}
	end := index + n
	for end < len(f.lines) && strings.TrimSpace(f.lines[end]) == "" {
		end++
	}
	f.lines = append(f.lines[:index], f.lines[end:]...)
	return f.write()
}

func (w *Writer) openSlice(d ast.Directive, sha256sum string) (*sourceFile, int, int, error) {
	f, err := readFile(d.Position().Filename)
	if err != nil {
		return nil, 0, 0, err
	}
	slice, n, err := f.slice(d, d.Position().Line)
	if err != nil {
		return nil, 0, 0, err
	}
	if Sum(slice) != sha256sum {
		return nil, 0, 0, NewConcurrentModificationError(f.path, d)
	}
	return f, d.Position().Line - 1, n, nil
}

// InsertMetadata adds a string metadata line below the first line of d.
// When basekey is taken, the first free key of basekey-2, basekey-3, ... is
// used. It returns the key written.
func (w *Writer) InsertMetadata(d ast.Directive, basekey, value string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	key := d.GetMetadata().NextKey(basekey)
	f, err := readFile(d.Position().Filename)
	if err != nil {
		return "", err
	}
	index := d.Position().Line
	if index < 1 || index > len(f.lines) {
		return "", NewConcurrentModificationError(f.path, d)
	}
	line := strings.Repeat(" ", w.Indent) + key + ": " + quote(value)
	f.lines = append(f.lines[:index], append([]string{line}, f.lines[index:]...)...)
	return key, f.write()
}

// GetSource returns the contents of path and their SHA-256. path must be one
// of sources.
func (w *Writer) GetSource(path string, sources []string) (string, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return getSource(path, sources)
}

func getSource(path string, sources []string) (string, string, error) {
	if !slices.Contains(sources, path) {
		return "", "", NewNonSourceFileError(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	source := string(data)
	return source, Sum(source), nil
}

// SetSource replaces the contents of path. sha256sum must be the digest of
// the contents as last read. It returns the digest of source.
func (w *Writer) SetSource(path, source, sha256sum string, sources []string) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	_, current, err := getSource(path, sources)
	if err != nil {
		return "", err
	}
	if current != sha256sum {
		return "", NewConcurrentModificationError(path, nil)
	}
	if err := atomic.WriteFile(path, strings.NewReader(source)); err != nil {
		return "", err
	}
	return Sum(source), nil
}
