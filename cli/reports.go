package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/config"
	"github.com/robinvdvleuten/beanledger/conversion"
	"github.com/robinvdvleuten/beanledger/dates"
	"github.com/robinvdvleuten/beanledger/ledger"
	"github.com/robinvdvleuten/beanledger/output"
	"github.com/robinvdvleuten/beanledger/realization"
)

// ReportFlags are shared by the reports.
type ReportFlags struct {
	Conversion string `help:"Conversion of amounts: units, at_cost, at_value or a comma separated list of currencies." short:"c"`
}

// conversion returns the requested conversion or the ledger's default.
func (f ReportFlags) conversion(ctx context.Context) conversion.Conversion {
	if f.Conversion != "" {
		return conversion.Parse(f.Conversion)
	}
	return conversion.Parse(config.FromContext(ctx).Conversion)
}

// openFiltered opens the ledger and applies filters.
func openFiltered(ctx context.Context, globals *Globals, path string, filters ledger.Filters) (context.Context, *ledger.Ledger, error) {
	ctx, l, err := openLedger(ctx, globals, path, ledger.WithWatcher(nil))
	if err != nil {
		return ctx, nil, err
	}
	if err := l.Filter(ctx, filters); err != nil {
		return ctx, nil, err
	}
	return ctx, l, nil
}

type BalancesCmd struct {
	LedgerArg
	FilterFlags
	ReportFlags

	Depth int  `help:"Hide accounts nested deeper than this; 0 shows all." short:"d"`
	Sheet bool `help:"Close income and expenses into equity, as on a balance sheet."`
	Empty bool `help:"Show accounts without a balance."`
}

func (cmd *BalancesCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := withTelemetry(context.Background(), globals, ctx.Stderr)
	defer report()

	runCtx, l, err := openFiltered(runCtx, globals, cmd.File, cmd.filters())
	if err != nil {
		return err
	}

	tree := l.Tree()
	if cmd.Sheet {
		tree = l.BalanceSheet()
	}
	var date ast.Date
	if r := l.TimeRange(); r != nil {
		date = r.EndInclusive()
	}
	conv := cmd.conversion(runCtx)

	styles := output.NewStyles(ctx.Stdout)
	table := output.NewTable(styles,
		output.Column{Title: "Account"},
		output.Column{Title: "Balance", Align: output.AlignRight, Style: styles.Number},
	)
	tree.Walk(tree.Root().ID, func(n *realization.Node) bool {
		if n.ID == tree.Root().ID {
			return true
		}
		depth := strings.Count(n.Name, ":")
		if cmd.Depth > 0 && depth >= cmd.Depth {
			return false
		}
		balance := conversion.Apply(conv, n.BalanceChildren, l.PriceMap(), date)
		if balance.IsEmpty() && !cmd.Empty {
			return true
		}
		name := strings.Repeat("  ", depth) + ast.Leaf(n.Name)
		if l.AccountIsClosed(n.Name) {
			name = styles.Dim(name)
		}
		table.AddRow(name, balance.String())
		return true
	})
	return table.Render(ctx.Stdout)
}

type JournalCmd struct {
	LedgerArg
	ReportFlags

	Account  string `help:"Account to show." arg:""`
	Time     string `help:"Time filter, e.g. 2024 or 2024-Q1." short:"t"`
	Filter   string `help:"Advanced filter over tags, links, payees and metadata." short:"f"`
	Children bool   `help:"Include the entries of sub-accounts." default:"true" negatable:""`
}

func (cmd *JournalCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := withTelemetry(context.Background(), globals, ctx.Stderr)
	defer report()

	runCtx, l, err := openFiltered(runCtx, globals, cmd.File, ledger.Filters{Time: cmd.Time, Advanced: cmd.Filter})
	if err != nil {
		return err
	}

	styles := output.NewStyles(ctx.Stdout)
	table := output.NewTable(styles,
		output.Column{Title: "Date", Style: styles.Date},
		output.Column{Title: "F", Style: styles.Flag},
		output.Column{Title: "Description"},
		output.Column{Title: "Change", Align: output.AlignRight, Style: styles.Number},
		output.Column{Title: "Balance", Align: output.AlignRight, Style: styles.Number},
	)
	for _, row := range l.ConvertedJournal(cmd.Account, cmd.Children, cmd.conversion(runCtx)) {
		flag, description := describe(row.Directive)
		var change string
		if _, ok := row.Directive.(*ast.Transaction); ok {
			change = row.Change.String()
		}
		table.AddRow(row.Directive.GetDate().String(), flag, description, change, row.Balance.String())
	}
	return table.Render(ctx.Stdout)
}

// describe returns the flag column and a one-line description of d.
func describe(d ast.Directive) (string, string) {
	switch e := d.(type) {
	case *ast.Transaction:
		if e.Payee != "" {
			return e.Flag, e.Payee + " | " + e.Narration
		}
		return e.Flag, e.Narration
	case *ast.Balance:
		return "", "Balance " + e.Account + " " + e.Amount.String()
	case *ast.Open:
		return "", "Open " + e.Account
	case *ast.Close:
		return "", "Close " + e.Account
	case *ast.Pad:
		return "P", "Pad " + e.Account + " from " + e.Source
	case *ast.Note:
		return "", e.Comment
	case *ast.Document:
		return "", "Document " + e.Filename
	}
	return "", d.Directive()
}

type PricesCmd struct {
	LedgerArg

	Time string `help:"Only prices within this time filter." short:"t"`
}

func (cmd *PricesCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := withTelemetry(context.Background(), globals, ctx.Stderr)
	defer report()

	_, l, err := openFiltered(runCtx, globals, cmd.File, ledger.Filters{Time: cmd.Time})
	if err != nil {
		return err
	}

	styles := output.NewStyles(ctx.Stdout)
	var printed bool
	for _, pair := range l.CommodityPairs() {
		points := l.Prices(pair.Base, pair.Quote)
		if len(points) == 0 {
			continue
		}
		if printed {
			_, _ = fmt.Fprintln(ctx.Stdout)
		}
		printed = true
		printHeader(ctx.Stdout, pair.String())
		table := output.NewTable(styles,
			output.Column{Title: "Date", Style: styles.Date},
			output.Column{Title: "Rate", Align: output.AlignRight, Style: styles.Amount},
		)
		for _, p := range points {
			table.AddRow(p.Date.String(), p.Rate.String()+" "+pair.Quote)
		}
		if err := table.Render(ctx.Stdout); err != nil {
			return err
		}
	}
	return nil
}

type BudgetCmd struct {
	LedgerArg

	Account  string `help:"Account to compare; budgets of sub-accounts are included." arg:""`
	Time     string `help:"Time filter, e.g. 2024 or 2024-Q1." short:"t"`
	Interval string `help:"Interval of the comparison: year, quarter, month, week or day." short:"i"`
}

func (cmd *BudgetCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := withTelemetry(context.Background(), globals, ctx.Stderr)
	defer report()

	runCtx, l, err := openFiltered(runCtx, globals, cmd.File, ledger.Filters{Time: cmd.Time})
	if err != nil {
		return err
	}

	name := cmd.Interval
	if name == "" {
		name = config.FromContext(runCtx).Interval
	}
	interval, ok := dates.ParseInterval(name)
	if !ok {
		return fmt.Errorf("unknown interval %q", name)
	}

	styles := output.NewStyles(ctx.Stdout)
	table := output.NewTable(styles,
		output.Column{Title: "Period"},
		output.Column{Title: "Budget", Align: output.AlignRight, Style: styles.Amount},
		output.Column{Title: "Actual", Align: output.AlignRight, Style: styles.Number},
	)
	for _, ib := range l.IntervalBalances(runCtx, interval, cmd.Account, false) {
		budget := l.Budget(cmd.Account, ib.Range.Begin, ib.Range.End, true)
		var actual string
		if n, ok := ib.Tree.Get(cmd.Account); ok {
			actual = conversion.Apply(conversion.Units, n.BalanceChildren, nil, ast.Date{}).String()
		}
		table.AddRow(interval.Format(ib.Range.Begin), budget.String(), actual)
	}
	return table.Render(ctx.Stdout)
}
