package output

import (
	"bytes"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/muesli/termenv"
)

func TestStylesPlainWriter(t *testing.T) {
	var buf bytes.Buffer
	s := NewStyles(&buf)
	assert.Equal(t, termenv.Ascii, s.Output().Profile)

	styled := map[string]func(string) string{
		"Success":  s.Success,
		"Error":    s.Error,
		"Warning":  s.Warning,
		"FilePath": s.FilePath,
		"Account":  s.Account,
		"Amount":   s.Amount,
		"Number":   s.Number,
		"Date":     s.Date,
		"Flag":     s.Flag,
		"Keyword":  s.Keyword,
		"Dim":      s.Dim,
	}
	for name, fn := range styled {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, "Assets:Cash -1.00 USD", fn("Assets:Cash -1.00 USD"))
		})
	}
	assert.Equal(t, "12ms", s.Timing("12ms", true))
}

func TestStylesColors(t *testing.T) {
	var buf bytes.Buffer
	s := NewStyles(&buf)
	s.Output().Profile = termenv.ANSI

	tests := []struct {
		name  string
		got   string
		plain bool
	}{
		{name: "Negative", got: s.Number("-5.00 USD")},
		{name: "Zero", got: s.Number("0.00")},
		{name: "Positive", got: s.Number("5.00 USD"), plain: true},
		{name: "Pending", got: s.Flag("!")},
		{name: "Slow", got: s.Timing("2.00s", true)},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if test.plain {
				assert.NotContains(t, test.got, "\x1b[")
			} else {
				assert.Contains(t, test.got, "\x1b[")
			}
		})
	}
}

func TestTable(t *testing.T) {
	table := NewTable(nil,
		Column{Title: "Account"},
		Column{Title: "Balance", Align: AlignRight},
	)
	table.AddRow("Assets:Cash", "430.00 USD")
	table.AddRow("Expenses:食品", "70.00 USD")
	table.AddRow("Income:Salary")
	assert.Equal(t, 3, table.Len())

	var buf bytes.Buffer
	assert.NoError(t, table.Render(&buf))
	assert.Equal(t, ""+
		"Account           Balance\n"+
		"─────────────  ──────────\n"+
		"Assets:Cash    430.00 USD\n"+
		"Expenses:食品   70.00 USD\n"+
		"Income:Salary\n", buf.String())
}

func TestTableStyle(t *testing.T) {
	table := NewTable(nil, Column{Title: "Number", Align: AlignRight, Style: func(s string) string {
		return "[" + s + "]"
	}})
	table.AddRow("1")
	table.AddRow("")

	var buf bytes.Buffer
	assert.NoError(t, table.Render(&buf))
	assert.Equal(t, "Number\n──────\n     [1]\n\n", buf.String())
}
