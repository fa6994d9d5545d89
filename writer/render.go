package writer

import (
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
)

const (
	// DefaultCurrencyColumn is the column currencies are aligned at.
	DefaultCurrencyColumn = 61

	// DefaultIndent is the indentation of postings and metadata.
	DefaultIndent = 2

	// MinimumSpacing is the minimum gap between an account and its number.
	MinimumSpacing = 2
)

// Render returns d in source syntax, terminated by a newline. Numbers are
// padded so that currencies start at the configured column.
func (w *Writer) Render(d ast.Directive) string {
	var buf strings.Builder
	date := d.GetDate().String()

	switch e := d.(type) {
	case *ast.Open:
		buf.WriteString(date + " open " + e.Account)
		if len(e.Currencies) > 0 {
			buf.WriteString(" " + strings.Join(e.Currencies, ","))
		}
		if e.BookingMethod != "" {
			buf.WriteString(" " + quote(string(e.BookingMethod)))
		}
		buf.WriteByte('\n')
	case *ast.Close:
		buf.WriteString(date + " close " + e.Account + "\n")
	case *ast.Commodity:
		buf.WriteString(date + " commodity " + e.Currency + "\n")
	case *ast.Balance:
		amount := formatNumber(e.Amount.Number)
		rest := e.Amount.Currency
		if e.Tolerance != nil {
			amount += " ~ " + e.Tolerance.String()
		}
		buf.WriteString(w.align(date+" balance "+e.Account, amount, rest))
	case *ast.Pad:
		buf.WriteString(date + " pad " + e.Account + " " + e.Source + "\n")
	case *ast.Note:
		buf.WriteString(date + " note " + e.Account + " " + quote(e.Comment) + "\n")
	case *ast.Document:
		buf.WriteString(date + " document " + e.Account + " " + quote(e.Filename))
		writeTagsLinks(&buf, e.Tags, e.Links)
		buf.WriteByte('\n')
	case *ast.Event:
		buf.WriteString(date + " event " + quote(e.Type) + " " + quote(e.Description) + "\n")
	case *ast.Query:
		buf.WriteString(date + " query " + quote(e.Name) + " " + quote(e.QueryString) + "\n")
	case *ast.Price:
		buf.WriteString(w.align(date+" price "+e.Currency, formatNumber(e.Amount.Number), e.Amount.Currency))
	case *ast.Custom:
		buf.WriteString(date + " custom " + quote(e.Type))
		for _, v := range e.Values {
			buf.WriteString(" " + metaSource(v))
		}
		buf.WriteByte('\n')
	case *ast.Transaction:
		w.renderTransaction(&buf, e)
		return buf.String()
	}
	w.renderMetadata(&buf, d.GetMetadata(), 1)
	return buf.String()
}

func (w *Writer) renderTransaction(buf *strings.Builder, t *ast.Transaction) {
	buf.WriteString(t.Date.String() + " " + t.Flag)
	if t.Payee != "" {
		buf.WriteString(" " + quote(t.Payee))
	}
	buf.WriteString(" " + quote(t.Narration))
	writeTagsLinks(buf, t.Tags, t.Links)
	buf.WriteByte('\n')
	w.renderMetadata(buf, t.Metadata, 1)

	indent := strings.Repeat(" ", w.Indent)
	for _, p := range t.Postings {
		prefix := indent
		if p.Flag != "" {
			prefix += p.Flag + " "
		}
		prefix += p.Account
		if p.Units == nil {
			buf.WriteString(prefix + "\n")
		} else {
			rest := p.Units.Currency
			switch {
			case p.Lot != nil:
				rest += " " + p.Lot.String()
			case p.Cost != nil:
				rest += " " + p.Cost.String()
			}
			switch {
			case p.TotalPrice != nil:
				rest += " @@ " + formatNumber(p.TotalPrice.Number) + " " + p.TotalPrice.Currency
			case p.Price != nil:
				rest += " @ " + formatNumber(p.Price.Number) + " " + p.Price.Currency
			}
			buf.WriteString(w.align(prefix, formatNumber(p.Units.Number), rest))
		}
		w.renderMetadata(buf, p.Metadata, 2)
	}
}

// align pads prefix so that the currency at the start of rest lands on the
// currency column.
func (w *Writer) align(prefix, number, rest string) string {
	spaces := w.CurrencyColumn - runewidth.StringWidth(prefix) - len(number) - 2 - MinimumSpacing
	if spaces < 0 {
		spaces = 0
	}
	return prefix + strings.Repeat(" ", spaces+MinimumSpacing) + number + " " + rest + "\n"
}

func (w *Writer) renderMetadata(buf *strings.Builder, m ast.Metadata, depth int) {
	indent := strings.Repeat(" ", w.Indent*depth)
	for _, e := range m {
		if e.Key == ast.MetaFilename || e.Key == ast.MetaLineno || strings.HasPrefix(e.Key, "_") {
			continue
		}
		buf.WriteString(indent + e.Key + ": " + metaSource(e.Value) + "\n")
	}
}

func writeTagsLinks(buf *strings.Builder, tags []ast.Tag, links []ast.Link) {
	for _, t := range tags {
		buf.WriteString(" #" + string(t))
	}
	for _, l := range links {
		buf.WriteString(" ^" + string(l))
	}
}

func metaSource(v ast.MetaValue) string {
	switch v.Kind {
	case ast.MetaString:
		return quote(v.Str)
	case ast.MetaNumber:
		return formatNumber(v.Number)
	case ast.MetaAmount:
		return formatNumber(v.Amount.Number) + " " + v.Amount.Currency
	}
	return v.String()
}

// formatNumber keeps the number of fractional digits the number was
// written with.
func formatNumber(d decimal.Decimal) string {
	if exp := d.Exponent(); exp < 0 {
		return d.StringFixed(-exp)
	}
	return d.String()
}

// quote wraps s in double quotes, escaping quotes and backslashes.
func quote(s string) string {
	if !strings.ContainsAny(s, `"\`) {
		return `"` + s + `"`
	}
	var buf strings.Builder
	buf.Grow(len(s) + 4)
	buf.WriteByte('"')
	for _, c := range s {
		switch c {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		default:
			buf.WriteRune(c)
		}
	}
	buf.WriteByte('"')
	return buf.String()
}
