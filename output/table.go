package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Align is the alignment of a column.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Column describes one column of a Table.
type Column struct {
	Title string
	Align Align
	// Style is applied to each cell after padding. Optional.
	Style func(string) string
}

// Table renders rows as aligned columns. Widths are measured in terminal
// cells, so wide characters line up.
type Table struct {
	styles  *Styles
	columns []Column
	rows    [][]string
}

// NewTable creates a table with the given columns. styles may be nil for
// plain output.
func NewTable(styles *Styles, columns ...Column) *Table {
	return &Table{styles: styles, columns: columns}
}

// AddRow appends a row. Missing cells are empty, extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.columns))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

// Len is the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the header, a rule and the rows, with two spaces between
// columns.
func (t *Table) Render(w io.Writer) error {
	widths := make([]int, len(t.columns))
	for i, c := range t.columns {
		widths[i] = runewidth.StringWidth(c.Title)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	header := make([]string, len(t.columns))
	rule := make([]string, len(t.columns))
	for i, c := range t.columns {
		header[i] = t.pad(c.Title, widths[i], c.Align, t.keyword)
		rule[i] = strings.Repeat("─", widths[i])
	}
	if err := t.line(w, header); err != nil {
		return err
	}
	if err := t.line(w, rule); err != nil {
		return err
	}

	cells := make([]string, len(t.columns))
	for _, row := range t.rows {
		for i, c := range t.columns {
			cells[i] = t.pad(row[i], widths[i], c.Align, c.Style)
		}
		if err := t.line(w, cells); err != nil {
			return err
		}
	}
	return nil
}

func (t *Table) keyword(s string) string {
	if t.styles == nil {
		return s
	}
	return t.styles.Keyword(s)
}

func (t *Table) pad(cell string, width int, align Align, style func(string) string) string {
	padding := strings.Repeat(" ", width-runewidth.StringWidth(cell))
	if style != nil && cell != "" {
		cell = style(cell)
	}
	if align == AlignRight {
		return padding + cell
	}
	return cell + padding
}

func (t *Table) line(w io.Writer, cells []string) error {
	_, err := fmt.Fprintln(w, strings.TrimRight(strings.Join(cells, "  "), " "))
	return err
}
