package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/natefinch/atomic"

	"github.com/robinvdvleuten/beanledger/output"
	"github.com/robinvdvleuten/beanledger/query"
)

type QueryCmd struct {
	LedgerArg
	FilterFlags

	Query     string `help:"Query or shell command (run, help)." arg:""`
	Numberify bool   `help:"Split amounts into one number column per currency." short:"n"`
	Output    string `help:"Write the result to this file; .csv and .xlsx are supported." short:"o" type:"path"`
}

func (cmd *QueryCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := withTelemetry(context.Background(), globals, ctx.Stderr)
	defer report()

	runCtx, l, err := openLedger(runCtx, globals, cmd.File)
	if err != nil {
		return err
	}
	defer l.Close()
	if err := l.Filter(runCtx, cmd.filters()); err != nil {
		return err
	}

	if cmd.Output != "" {
		format := strings.TrimPrefix(filepath.Ext(cmd.Output), ".")
		pr, pw := io.Pipe()
		go func() {
			pw.CloseWithError(l.QueryToFile(runCtx, cmd.Query, format, pw))
		}()
		if err := atomic.WriteFile(cmd.Output, pr); err != nil {
			return err
		}
		printSuccess(ctx.Stdout, fmt.Sprintf("Wrote %s", cmd.Output))
		return nil
	}

	res, err := l.Query(runCtx, cmd.Query, cmd.Numberify)
	if err != nil {
		return err
	}
	if res.Table == nil {
		_, _ = fmt.Fprintln(ctx.Stdout, strings.TrimRight(res.Text, "\n"))
		return nil
	}
	return renderResult(ctx.Stdout, res.Table)
}

// renderResult prints a query result as a table with numbers right
// aligned.
func renderResult(w io.Writer, r *query.Result) error {
	styles := output.NewStyles(w)
	columns := make([]output.Column, len(r.Columns))
	for i, c := range r.Columns {
		columns[i] = output.Column{Title: c.Name}
		switch c.Type {
		case query.TypeDecimal, query.TypeInt, query.TypeAmount, query.TypePosition, query.TypeInventory:
			columns[i].Align = output.AlignRight
			columns[i].Style = styles.Number
		case query.TypeDate:
			columns[i].Style = styles.Date
		}
	}
	table := output.NewTable(styles, columns...)
	for _, row := range r.Strings() {
		table.AddRow(row...)
	}
	if err := table.Render(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d row(s)\n", table.Len())
	return err
}
