package ledger

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/query"
)

const shellHelp = `Commands:
  SELECT ...     Run a query
  run <name>     Run a stored query by name
  run            List all stored queries
  help           Show this help message

Example queries:
  SELECT account, sum(position) GROUP BY account
  SELECT date, narration, position WHERE account ~ "Expenses"
`

const noopHelp = "Doesn't do anything in the query shell."

// QueryResult is the outcome of a shell command: a table or some text.
type QueryResult struct {
	Table *query.Result
	Text  string
}

// Query runs a shell command against the filtered entries. Besides SELECT
// queries it understands `run` to list the stored queries, `run NAME` to
// execute one and `help`. With numberify, amount and inventory columns are
// split into one number column per currency.
func (l *Ledger) Query(ctx context.Context, text string, numberify bool) (*QueryResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if !l.loaded {
		return nil, ErrNotLoaded
	}

	res, err := l.runShell(ctx, text)
	if err != nil || res.Table == nil || !numberify {
		return res, err
	}
	res.Table = query.Numberify(res.Table)
	return res, nil
}

func (l *Ledger) runShell(ctx context.Context, text string) (*QueryResult, error) {
	text = strings.TrimSpace(text)
	lower := strings.ToLower(text)
	var command string
	if fields := strings.Fields(lower); len(fields) > 0 {
		command = strings.TrimPrefix(fields[0], ".")
	}

	switch command {
	case "exit", "quit":
		return &QueryResult{Text: noopHelp}, nil
	case "help":
		if strings.Contains(lower, " ") {
			return &QueryResult{Text: noopHelp}, nil
		}
		return &QueryResult{Text: shellHelp}, nil
	case "run":
		return l.runStored(ctx, text)
	}

	table, err := query.Run(ctx, text, l.entries, l.queryEnv())
	if err != nil {
		return nil, err
	}
	return &QueryResult{Table: table}, nil
}

func (l *Ledger) runStored(ctx context.Context, text string) (*QueryResult, error) {
	var stored []*ast.Query
	for _, d := range l.all {
		if q, ok := d.(*ast.Query); ok {
			stored = append(stored, q)
		}
	}

	args := strings.Fields(text)[1:]
	switch {
	case len(args) == 0:
		names := make([]string, len(stored))
		for i, q := range stored {
			names[i] = q.Name
		}
		return &QueryResult{Text: strings.Join(names, "\n")}, nil
	case len(args) > 1:
		return nil, NewTooManyRunArgsError(text)
	}

	name := strings.Trim(strings.TrimRight(args[0], ";"), `"'`)
	for _, q := range stored {
		if q.Name == name {
			table, err := query.Run(ctx, q.QueryString, l.entries, l.queryEnv())
			if err != nil {
				return nil, err
			}
			return &QueryResult{Table: table}, nil
		}
	}
	return nil, NewQueryNotFoundError(name)
}

func (l *Ledger) queryEnv() *query.Env {
	return &query.Env{Options: l.options, Prices: l.prices}
}

// QueryToFile runs text and writes the table it returns to w as "csv" or
// "xlsx". Results are numberified first so that spreadsheets get numbers.
func (l *Ledger) QueryToFile(ctx context.Context, text, format string, w io.Writer) error {
	res, err := l.Query(ctx, text, true)
	if err != nil {
		return err
	}
	if res.Table == nil {
		return NewNonExportableQueryError()
	}
	switch format {
	case "csv":
		return query.ToCSV(w, res.Table)
	case "xlsx":
		return query.ToXLSX(w, res.Table, text)
	}
	return fmt.Errorf("unsupported export format %q", format)
}
