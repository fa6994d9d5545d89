package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/dates"
	"github.com/robinvdvleuten/beanledger/parser"
)

func parse(t *testing.T, source string) []ast.Directive {
	t.Helper()
	result, err := parser.ParseBytesWithFilename(context.Background(), "main.beancount", []byte(source))
	assert.NoError(t, err)
	return result.Directives
}

func TestFromEntries(t *testing.T) {
	cfg, errs := FromEntries(parse(t, `
2020-01-01 custom "fava-option" "currency-column" "70"
2020-01-01 custom "fava-option" "indent" "4"
2020-01-01 custom "fava-option" "fiscal-year-end" "03-31"
2020-01-01 custom "fava-option" "default-file"
2020-01-01 custom "fava-option" "insert-entry" "Expenses:Food"
2020-01-01 custom "fava-option" "interval" "week"
2020-01-01 custom "fava-option" "unrealized" "true"
2020-01-01 custom "budget" Expenses:Food "monthly" 10 USD
`))
	assert.Equal(t, 0, len(errs))
	assert.Equal(t, 70, cfg.CurrencyColumn)
	assert.Equal(t, 4, cfg.Indent)
	assert.Equal(t, dates.FiscalYearEnd{Month: 3, Day: 31}, cfg.FiscalYearEnd)
	assert.Equal(t, "main.beancount", cfg.DefaultFile)
	assert.Equal(t, "week", cfg.Interval)
	assert.True(t, cfg.Unrealized)

	assert.Equal(t, 1, len(cfg.InsertEntry))
	rule := cfg.InsertEntry[0]
	assert.Equal(t, "main.beancount", rule.Filename)
	assert.Equal(t, 6, rule.Line)
	assert.Equal(t, ast.MustDate("2020-01-01"), rule.Date)
	assert.True(t, rule.Pattern.MatchString("Expenses:Food:Bakery"))
}

func TestFromEntriesErrors(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"UnknownKey", `2020-01-01 custom "fava-option" "colour" "red"`},
		{"BadNumber", `2020-01-01 custom "fava-option" "currency-column" "wide"`},
		{"BadFiscalYearEnd", `2020-01-01 custom "fava-option" "fiscal-year-end" "13-45"`},
		{"BadPattern", `2020-01-01 custom "fava-option" "insert-entry" "Expenses:("`},
		{"BadInterval", `2020-01-01 custom "fava-option" "interval" "fortnight"`},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, errs := FromEntries(parse(t, test.source))
			assert.Equal(t, 1, len(errs))
			var configErr *ConfigError
			assert.True(t, errors.As(errs[0], &configErr))
			assert.Equal(t, NewConfig().CurrencyColumn, cfg.CurrencyColumn)
		})
	}
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "beanledger.yaml")
	assert.NoError(t, os.WriteFile(path, []byte(`
currency-column: 50
fiscal-year-end: "06-30"
insert-entry:
  - pattern: "Income"
    file: income.beancount
    line: 3
`), 0o644))

	f, err := ReadFile(path)
	assert.NoError(t, err)

	cfg, _ := FromEntries(parse(t, `
2020-01-01 custom "fava-option" "currency-column" "70"
2020-01-01 custom "fava-option" "indent" "4"
2020-01-01 custom "fava-option" "insert-entry" "Expenses"
`))
	assert.NoError(t, f.Apply(cfg))
	assert.Equal(t, 50, cfg.CurrencyColumn)
	assert.Equal(t, 4, cfg.Indent)
	assert.Equal(t, dates.FiscalYearEnd{Month: 6, Day: 30}, cfg.FiscalYearEnd)
	assert.Equal(t, 2, len(cfg.InsertEntry))
	assert.Equal(t, "income.beancount", cfg.InsertEntry[0].Filename)
	assert.True(t, cfg.InsertEntry[0].Date.Before(ast.MustDate("1970-01-01")))
}

func TestFileErrors(t *testing.T) {
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.yaml")
	assert.NoError(t, os.WriteFile(broken, []byte("currency-column: [1"), 0o644))
	_, err := ReadFile(broken)
	assert.Error(t, err)

	interval := "fortnight"
	assert.Error(t, (&File{Interval: &interval}).Apply(NewConfig()))

	var none *File
	assert.NoError(t, none.Apply(NewConfig()))
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	assert.NoError(t, os.WriteFile(path, []byte("BEANLEDGER_TEST_FILE=books.beancount\n"), 0o644))
	t.Setenv("BEANLEDGER_TEST_FILE", "")
	_ = os.Unsetenv("BEANLEDGER_TEST_FILE")

	assert.NoError(t, LoadEnv(path))
	assert.Equal(t, "books.beancount", os.Getenv("BEANLEDGER_TEST_FILE"))
	assert.Error(t, LoadEnv(filepath.Join(t.TempDir(), "missing.env")))
}

func TestContext(t *testing.T) {
	assert.Equal(t, NewConfig(), FromContext(context.Background()))

	cfg := NewConfig()
	cfg.Indent = 8
	assert.Equal(t, 8, FromContext(cfg.WithContext(context.Background())).Indent)
}
