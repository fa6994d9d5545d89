package writer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/sebdah/goldie/v2"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/parser"
)

func TestRender(t *testing.T) {
	result, err := parser.ParseString(context.Background(), `
2024-01-01 open Assets:Cash USD,EUR "FIFO"
2024-01-01 open Assets:Broker
2024-01-02 * "Shop" "Groceries" #food ^inv-1
  invoice: "INV-7"
  Expenses:Food  30.00 USD
  Assets:Cash
2024-01-03 ! "Buy stock"
  Assets:Broker  10 HOOL {518.73 USD}
  ! Assets:Cash  -5187.30 USD
2024-01-04 balance Assets:Cash -5217.30 USD
2024-01-05 price HOOL 520.00 USD
2024-01-06 note Assets:Cash "Counted the cash"
2024-01-07 custom "budget" Expenses:Food "monthly" 310.00 USD
2024-01-08 close Assets:Broker
`)
	assert.NoError(t, err)

	w := New(WithCurrencyColumn(40))
	var out strings.Builder
	for _, d := range result.Directives {
		out.WriteString(w.Render(d))
	}
	goldie.New(t).Assert(t, "render", []byte(out.String()))
}

func TestRenderAlignsByDisplayWidth(t *testing.T) {
	w := New(WithCurrencyColumn(40))
	got := w.Render(ast.NewTransaction(ast.MustDate("2024-01-01"), "Sushi",
		ast.WithPostings(
			ast.NewPosting("Expenses:日本", ast.WithUnits(ast.MustAmount("12", "JPY"))),
			ast.NewPosting("Assets:Cash"),
		),
	))
	lines := strings.Split(got, "\n")
	// "  Expenses:日本" is 15 cells wide.
	assert.Equal(t, "  Expenses:日本"+strings.Repeat(" ", 21)+"12 JPY", lines[1])
}

func TestRenderNarrowColumn(t *testing.T) {
	w := New(WithCurrencyColumn(10), WithIndent(4))
	got := w.Render(ast.NewTransaction(ast.MustDate("2024-01-01"), `Say "hi"`,
		ast.WithPostings(ast.NewPosting("Expenses:Food", ast.WithUnits(ast.MustAmount("1.50", "USD")))),
	))
	assert.Equal(t, "2024-01-01 * \"Say \\\"hi\\\"\"\n    Expenses:Food  1.50 USD\n", got)
}

const source = `2024-01-01 open Assets:Cash
2024-01-01 open Expenses:Food

2024-01-02 * "Shop" "Groceries"
  Expenses:Food  30.00 USD
  Assets:Cash

2024-01-03 * "Cafe" "Coffee"
  invoice: "A"
  Expenses:Food  4.00 USD
  Assets:Cash
`

func setup(t *testing.T, content string) (string, []ast.Directive) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.beancount")
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	result, err := parser.ParseBytesWithFilename(context.Background(), path, []byte(content))
	assert.NoError(t, err)
	return path, result.Directives
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	return string(data)
}

func TestEntrySlice(t *testing.T) {
	path, entries := setup(t, source)
	w := New()

	slice, sum, err := w.GetEntrySlice(entries[2])
	assert.NoError(t, err)
	assert.Equal(t, "2024-01-02 * \"Shop\" \"Groceries\"\n  Expenses:Food  30.00 USD\n  Assets:Cash", slice)
	assert.Equal(t, Sum(slice), sum)

	// Writing the slice back unchanged leaves the file as it was.
	got, err := w.SaveEntrySlice(entries[2], slice, sum)
	assert.NoError(t, err)
	assert.Equal(t, sum, got)
	assert.Equal(t, source, read(t, path))

	changed := strings.Replace(slice, "30.00", "31.00", 1)
	got, err = w.SaveEntrySlice(entries[2], changed, sum)
	assert.NoError(t, err)
	assert.Equal(t, Sum(changed), got)
	assert.Equal(t, strings.Replace(source, "30.00", "31.00", 1), read(t, path))

	_, err = w.SaveEntrySlice(entries[2], slice, sum)
	var target *ConcurrentModificationError
	assert.True(t, errors.As(err, &target), "%v", err)
}

func TestEntrySliceKeepsLineEndings(t *testing.T) {
	crlf := strings.ReplaceAll(source, "\n", "\r\n")
	path, entries := setup(t, crlf)
	w := New()

	slice, sum, err := w.GetEntrySlice(entries[3])
	assert.NoError(t, err)
	assert.False(t, strings.Contains(slice, "\r"))

	_, err = w.SaveEntrySlice(entries[3], strings.Replace(slice, "Coffee", "Tea", 1), sum)
	assert.NoError(t, err)
	assert.Equal(t, strings.Replace(crlf, "Coffee", "Tea", 1), read(t, path))
}

func TestDeleteEntrySlice(t *testing.T) {
	path, entries := setup(t, source)
	w := New()

	_, sum, err := w.GetEntrySlice(entries[2])
	assert.NoError(t, err)
	assert.Error(t, w.DeleteEntrySlice(entries[2], "stale"))

	assert.NoError(t, w.DeleteEntrySlice(entries[2], sum))
	assert.Equal(t, `2024-01-01 open Assets:Cash
2024-01-01 open Expenses:Food

2024-01-03 * "Cafe" "Coffee"
  invoice: "A"
  Expenses:Food  4.00 USD
  Assets:Cash
`, read(t, path))
}

func TestInsertMetadata(t *testing.T) {
	path, entries := setup(t, source)
	w := New()

	key, err := w.InsertMetadata(entries[3], "invoice", "B")
	assert.NoError(t, err)
	assert.Equal(t, "invoice-2", key)
	assert.Equal(t, strings.Replace(source, "\"Coffee\"\n", "\"Coffee\"\n  invoice-2: \"B\"\n", 1), read(t, path))
}

func TestInsertEntries(t *testing.T) {
	dir := t.TempDir()
	main := filepath.Join(dir, "main.beancount")
	food := filepath.Join(dir, "food.beancount")
	assert.NoError(t, os.WriteFile(main, []byte("2024-01-01 open Assets:Cash\n"), 0o644))
	assert.NoError(t, os.WriteFile(food, []byte("; food\n2020-01-01 custom \"fava-option\" \"insert-entry\" \"Expenses:Food\"\n"), 0o644))

	rules := []InsertRule{
		{Date: ast.MustDate("2020-01-01"), Pattern: regexp.MustCompile("Expenses:Food"), Filename: food, Line: 2},
		{Date: ast.MustDate("2030-01-01"), Pattern: regexp.MustCompile("Assets"), Filename: food, Line: 1},
	}
	date := ast.MustDate("2024-02-01")
	entries := []ast.Directive{
		ast.NewTransaction(date, "Bakery", ast.WithPostings(
			ast.NewPosting("Expenses:Food", ast.WithUnits(ast.MustAmount("3.00", "USD"))),
			ast.NewPosting("Assets:Cash"),
		)),
		ast.NewOpen(date, "Assets:Bank"),
	}

	w := New(WithCurrencyColumn(40))
	paths, updated, err := w.InsertEntries(entries, rules, main)
	assert.NoError(t, err)
	assert.Equal(t, []string{main, food}, paths)
	assert.Equal(t, 6, updated[0].Line)
	assert.Equal(t, 1, updated[1].Line)

	assert.Equal(t, "2024-01-01 open Assets:Cash\n\n2024-02-01 open Assets:Bank\n", read(t, main))
	assert.Equal(t, "; food\n"+
		"2024-02-01 * \"Bakery\"\n"+
		"  Expenses:Food"+strings.Repeat(" ", 19)+"3.00 USD\n"+
		"  Assets:Cash\n"+
		"\n"+
		"2020-01-01 custom \"fava-option\" \"insert-entry\" \"Expenses:Food\"\n", read(t, food))
}

func TestFindInsertPosition(t *testing.T) {
	rules := []InsertRule{
		{Date: ast.MustDate("2020-01-01"), Pattern: regexp.MustCompile("Food"), Filename: "a", Line: 5},
		{Date: ast.MustDate("2022-01-01"), Pattern: regexp.MustCompile("Food"), Filename: "b", Line: 9},
		{Date: ast.MustDate("2020-01-01"), Pattern: regexp.MustCompile("Cash"), Filename: "c", Line: 3},
	}
	tests := []struct {
		name  string
		entry ast.Directive
		file  string
		index int
	}{
		{"NewestRuleWins", ast.NewNote(ast.MustDate("2023-01-01"), "Expenses:Food", "x"), "b", 8},
		{"RulesAfterEntryIgnored", ast.NewNote(ast.MustDate("2021-01-01"), "Expenses:Food", "x"), "a", 4},
		{"LastPostingFirst", ast.NewTransaction(ast.MustDate("2023-01-01"), "x", ast.WithPostings(
			ast.NewPosting("Expenses:Food"), ast.NewPosting("Assets:Cash"),
		)), "c", 2},
		{"Default", ast.NewNote(ast.MustDate("2023-01-01"), "Income:Salary", "x"), "main", -1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			file, index := FindInsertPosition(test.entry, rules, "main")
			assert.Equal(t, test.file, file)
			assert.Equal(t, test.index, index)
		})
	}
}

func TestSource(t *testing.T) {
	path, _ := setup(t, source)
	w := New()
	sources := []string{path}

	got, sum, err := w.GetSource(path, sources)
	assert.NoError(t, err)
	assert.Equal(t, source, got)

	_, _, err = w.GetSource("/etc/passwd", sources)
	var nonSource *NonSourceFileError
	assert.True(t, errors.As(err, &nonSource))

	newSum, err := w.SetSource(path, "; empty\n", sum, sources)
	assert.NoError(t, err)
	assert.Equal(t, Sum("; empty\n"), newSum)
	assert.Equal(t, "; empty\n", read(t, path))

	_, err = w.SetSource(path, "; again\n", sum, sources)
	var modified *ConcurrentModificationError
	assert.True(t, errors.As(err, &modified))
}
