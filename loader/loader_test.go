package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/booking"
	"github.com/robinvdvleuten/beanledger/parser"
	"github.com/robinvdvleuten/beanledger/plugin"
	"github.com/robinvdvleuten/beanledger/validation"
)

// writeFiles creates files under a temporary directory and returns its path.
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		assert.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		assert.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

func TestLoadSingleFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.beancount": `
2024-01-01 open Assets:Cash USD
2024-01-01 open Expenses:Food
2024-01-02 * "Lunch"
  Expenses:Food  10 USD
  Assets:Cash
2024-01-03 balance Assets:Cash  -10 USD
`,
	})
	main := filepath.Join(dir, "main.beancount")

	result, err := New().Load(context.Background(), main)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(result.Errors))
	assert.Equal(t, 4, len(result.Entries))
	assert.Equal(t, []string{main}, result.Files)
	assert.Equal(t, []string{main}, result.Options.Include)

	txn := ast.Filter[*ast.Transaction](result.Entries)[0]
	assert.Equal(t, "-10 USD", txn.Postings[1].Units.String())
}

func TestLoadFollowsIncludes(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.beancount": `
option "title" "Main"
include "accounts.beancount"
include "txns/*.beancount"
`,
		"accounts.beancount": `
option "title" "Ignored"
2024-01-01 open Assets:Cash
2024-01-01 open Expenses:Food
`,
		"txns/2024-01.beancount": `
2024-01-02 * "Lunch"
  Expenses:Food  10 USD
  Assets:Cash
`,
		"txns/2024-02.beancount": `
2024-02-02 * "Lunch"
  Expenses:Food  12 USD
  Assets:Cash
`,
	})

	result, err := New().Load(context.Background(), filepath.Join(dir, "main.beancount"))
	assert.NoError(t, err)
	assert.Equal(t, 0, len(result.Errors))
	assert.Equal(t, "Main", result.Options.Title)
	assert.Equal(t, 4, len(result.Files))
	assert.Equal(t, filepath.Join(dir, "accounts.beancount"), result.Files[1])
	assert.Equal(t, 4, len(result.Entries))

	// Entries from different files end up in canonical order.
	assert.Equal(t, ast.KindOpen, result.Entries[0].Kind())
	assert.Equal(t, "2024-02-02", result.Entries[3].GetDate().String())
	assert.Equal(t, filepath.Join(dir, "txns", "2024-02.beancount"), result.Entries[3].Position().Filename)
}

func TestLoadWithoutIncludes(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.beancount": `
include "other.beancount"
2024-01-01 open Assets:Cash
`,
		"other.beancount": `
2024-01-01 open Assets:Bank
`,
	})

	result, err := New(WithoutIncludes()).Load(context.Background(), filepath.Join(dir, "main.beancount"))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(result.Entries))
	assert.Equal(t, 1, len(result.Includes))
	assert.Equal(t, "other.beancount", result.Includes[0].Filename)
}

func TestLoadIncludeErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name: "missing file",
			files: map[string]string{
				"main.beancount": `include "missing.beancount"`,
			},
			want: "does not match any files",
		},
		{
			name: "cycle",
			files: map[string]string{
				"main.beancount": `include "a.beancount"`,
				"a.beancount":    `include "main.beancount"`,
			},
			want: "Duplicate filename parsed",
		},
		{
			name: "included twice",
			files: map[string]string{
				"main.beancount": "include \"a.beancount\"\ninclude \"a.beancount\"\n",
				"a.beancount":    `2024-01-01 open Assets:Cash`,
			},
			want: "Duplicate filename parsed",
		},
		{
			name: "binary include",
			files: map[string]string{
				"main.beancount": `include "a.bin"`,
				"a.bin":          "\x00\x01\x02",
			},
			want: "binary file",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, tt.files)
			result, err := New().Load(context.Background(), filepath.Join(dir, "main.beancount"))
			assert.NoError(t, err)
			assert.Equal(t, 1, len(result.Errors), "%v", result.Errors)
			var le *LoadError
			assert.True(t, errors.As(result.Errors[0], &le))
			assert.Contains(t, le.Error(), tt.want)
		})
	}
}

func TestLoadIncludedTwiceKeepsEntriesOnce(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.beancount": "include \"a.beancount\"\ninclude \"a.beancount\"\n",
		"a.beancount":    `2024-01-01 open Assets:Cash`,
	})
	result, err := New().Load(context.Background(), filepath.Join(dir, "main.beancount"))
	assert.NoError(t, err)
	assert.Equal(t, 1, len(result.Entries))
}

func TestLoadFatalRoot(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"binary.beancount": "2024\x00",
	})
	_, err := New().Load(context.Background(), filepath.Join(dir, "missing.beancount"))
	assert.Error(t, err)
	_, err = New().Load(context.Background(), filepath.Join(dir, "binary.beancount"))
	assert.Error(t, err)
}

func TestLoadStripsByteOrderMark(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"main.beancount": "\ufeff2024-01-01 open Assets:Cash\n",
	})
	result, err := New().Load(context.Background(), filepath.Join(dir, "main.beancount"))
	assert.NoError(t, err)
	assert.Equal(t, 0, len(result.Errors))
	assert.Equal(t, 1, len(result.Entries))
}

func TestLoadCollectsErrorsFromEveryStage(t *testing.T) {
	result := New().LoadSource(context.Background(), "main.beancount", []byte(`
option "booking_method" "BOGUS"
plugin "nope"
2024-01-01 open Assets:Cash
2024-01-01 open Expenses:Food
2024-01-02 this is not a directive
2024-01-03 * "Unbalanced"
  Expenses:Food  10 USD
  Assets:Cash   -9 USD
2024-01-04 balance Assets:Cash  0 USD
`))

	var (
		parseErr   *parser.ParseError
		optionErr  *ast.OptionError
		pluginErr  *plugin.PluginError
		bookingErr *booking.BookingError
		balanceErr *validation.BalanceError
	)
	kinds := map[string]bool{}
	for _, err := range result.Errors {
		switch {
		case errors.As(err, &parseErr):
			kinds["parse"] = true
		case errors.As(err, &optionErr):
			kinds["option"] = true
		case errors.As(err, &pluginErr):
			kinds["plugin"] = true
		case errors.As(err, &bookingErr):
			kinds["booking"] = true
		case errors.As(err, &balanceErr):
			kinds["balance"] = true
		}
	}
	assert.Equal(t, map[string]bool{
		"parse": true, "option": true, "plugin": true, "booking": true, "balance": true,
	}, kinds)

	// The unbalanced transaction is still part of the result.
	assert.Equal(t, 1, len(ast.Filter[*ast.Transaction](result.Entries)))
}

func TestLoadRunsHostPlugins(t *testing.T) {
	l := New(WithPlugins("auto_accounts"))
	result := l.LoadSource(context.Background(), "main.beancount", []byte(`
2024-01-02 * "Lunch"
  Expenses:Food  10 USD
  Assets:Cash
`))
	assert.Equal(t, 0, len(result.Errors), "%v", result.Errors)
	assert.Equal(t, 2, len(ast.Filter[*ast.Open](result.Entries)))
}

func TestLoadIsDeterministic(t *testing.T) {
	source := []byte(`
2024-01-01 open Assets:Cash
2024-01-01 open Income:Job
2024-01-01 open Equity:Opening
2024-01-05 pad Assets:Cash Equity:Opening
2024-01-10 balance Assets:Cash  500 USD
2024-01-03 * "Pay"
  Assets:Cash  100 USD
  Income:Job
`)
	a := New().LoadSource(context.Background(), "main.beancount", source)
	b := New().LoadSource(context.Background(), "main.beancount", source)
	assert.Equal(t, len(a.Entries), len(b.Entries))
	for i := range a.Entries {
		assert.Equal(t, ast.Hash(a.Entries[i]), ast.Hash(b.Entries[i]))
	}
}
