package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/writer"
)

type InsertCmd struct {
	LedgerArg

	Narration string   `help:"Narration of the transaction." arg:""`
	Postings  []string `help:"Posting as ACCOUNT or ACCOUNT=NUMBER CURRENCY; repeat for each posting." short:"p" required:""`
	Date      string   `help:"Date of the transaction; today when empty." short:"d"`
	Payee     string   `help:"Payee of the transaction."`
	Flag      string   `help:"Flag of the transaction." default:"*" enum:"*,!"`
	Tags      []string `help:"Tags of the transaction, without #." short:"T"`
	Yes       bool     `help:"Insert without asking for confirmation." short:"y"`
}

func (cmd *InsertCmd) Run(ctx *kong.Context, globals *Globals) error {
	runCtx, report := withTelemetry(context.Background(), globals, ctx.Stderr)
	defer report()

	txn, err := cmd.transaction(time.Now())
	if err != nil {
		return err
	}

	runCtx, l, err := openLedger(runCtx, globals, cmd.File)
	if err != nil {
		return err
	}
	defer l.Close()

	w := writer.New(l.Config().WriterOptions()...)
	_, _ = io.WriteString(ctx.Stdout, w.Render(txn))
	_, _ = fmt.Fprintln(ctx.Stdout)

	if !cmd.Yes {
		ok, err := promptYesNo("Insert this transaction?")
		if err != nil {
			return err
		}
		if !ok {
			printInfof(ctx.Stdout, "Nothing written")
			return nil
		}
	}

	paths, err := l.InsertEntries(runCtx, []ast.Directive{txn})
	if err != nil {
		return err
	}
	for _, path := range paths {
		printSuccess(ctx.Stdout, fmt.Sprintf("Inserted into %s", path))
	}
	if errs := l.Errors(); len(errs) > 0 {
		printError(ctx.Stderr, fmt.Sprintf("the ledger now has %d error(s), run check for details", len(errs)))
	}
	return nil
}

// transaction builds the transaction described by the flags.
func (cmd *InsertCmd) transaction(now time.Time) (*ast.Transaction, error) {
	date := ast.NewDateYMD(now.Year(), now.Month(), now.Day())
	if cmd.Date != "" {
		d, err := ast.NewDate(cmd.Date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", cmd.Date, err)
		}
		date = d
	}

	postings := make([]*ast.Posting, 0, len(cmd.Postings))
	var missing int
	for _, spec := range cmd.Postings {
		p, err := parsePosting(spec)
		if err != nil {
			return nil, err
		}
		if p.Units == nil {
			missing++
		}
		postings = append(postings, p)
	}
	if len(postings) < 2 {
		return nil, fmt.Errorf("a transaction needs at least two postings")
	}
	if missing > 1 {
		return nil, fmt.Errorf("only one posting may omit its amount")
	}

	tags := make([]ast.Tag, len(cmd.Tags))
	for i, t := range cmd.Tags {
		tags[i] = ast.Tag(strings.TrimPrefix(t, "#"))
	}
	return ast.NewTransaction(date, cmd.Narration,
		ast.WithFlag(cmd.Flag),
		ast.WithPayee(cmd.Payee),
		ast.WithTags(tags...),
		ast.WithPostings(postings...),
	), nil
}

// parsePosting reads "Expenses:Food=12.50 EUR" or "Assets:Cash".
func parsePosting(spec string) (*ast.Posting, error) {
	account, amount, found := strings.Cut(spec, "=")
	account = strings.TrimSpace(account)
	if ast.Parent(account) == "" {
		return nil, fmt.Errorf("invalid account in posting %q", spec)
	}
	if !found {
		return ast.NewPosting(account), nil
	}

	fields := strings.Fields(amount)
	if len(fields) != 2 {
		return nil, fmt.Errorf("posting %q needs an amount like \"12.50 EUR\"", spec)
	}
	a, err := ast.NewAmount(fields[0], fields[1])
	if err != nil {
		return nil, fmt.Errorf("invalid amount in posting %q: %w", spec, err)
	}
	return ast.NewPosting(account, ast.WithUnits(a)), nil
}
