package cli

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/alecthomas/kong"
	"github.com/alecthomas/repr"

	"github.com/robinvdvleuten/beanledger/ledger"
	"github.com/robinvdvleuten/beanledger/output"
	"github.com/robinvdvleuten/beanledger/parser"
	"github.com/robinvdvleuten/beanledger/telemetry"
)

// DoctorCmd provides doctor utilities for debugging ledger files.
type DoctorCmd struct {
	Lex     LexCmd     `cmd:"" help:"Show lexical tokens of a file."`
	AST     ASTCmd     `cmd:"" name:"ast" help:"Dump the parsed entries of a file."`
	Context ContextCmd `cmd:"" help:"Show an entry with its source and the balances around it."`
	Timings TimingsCmd `cmd:"" help:"Load a ledger and show where the time went."`
}

// LexCmd shows lexical tokens of a file.
type LexCmd struct {
	File string `help:"Beancount file." arg:"" type:"existingfile"`
}

func (cmd *LexCmd) Run(ctx *kong.Context) error {
	content, err := os.ReadFile(cmd.File)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	lexer := parser.NewLexer(content, cmd.File)
	for _, token := range lexer.ScanAll() {
		if token.Type == parser.EOF {
			continue
		}
		_, _ = fmt.Fprintf(ctx.Stdout, "%-10s %d:%d    %q\n",
			token.Type.String(),
			token.Line,
			token.Column,
			token.String(content))
	}
	return nil
}

// ASTCmd dumps the entries of a single file as parsed, before booking.
type ASTCmd struct {
	File string `help:"Beancount file." arg:"" type:"existingfile"`
}

func (cmd *ASTCmd) Run(ctx *kong.Context) error {
	content, err := os.ReadFile(cmd.File)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	tree, err := parser.ParseBytesWithFilename(context.Background(), cmd.File, content)
	if err != nil {
		return err
	}
	repr.New(ctx.Stdout, repr.Indent("  "), repr.OmitEmpty(true)).Println(tree.Directives)
	return nil
}

// ContextCmd shows the context of the entry with a given hash.
type ContextCmd struct {
	LedgerArg

	Hash string `help:"Hash of the entry, as shown in JSON error output." arg:""`
}

func (cmd *ContextCmd) Run(ctx *kong.Context, globals *Globals) error {
	_, l, err := openLedger(context.Background(), globals, cmd.File, ledger.WithWatcher(nil))
	if err != nil {
		return err
	}
	ec, err := l.Context(cmd.Hash)
	if err != nil {
		return err
	}

	styles := output.NewStyles(ctx.Stdout)
	pos := ec.Entry.Position()
	_, _ = fmt.Fprintf(ctx.Stdout, "%s\n\n%s\n\n", styles.FilePath(pos.Location()), ec.Slice)
	_, _ = fmt.Fprintf(ctx.Stdout, "%s %s\n", styles.Dim("sha256"), ec.Sha256)
	if ec.Before == nil {
		return nil
	}

	accounts := make([]string, 0, len(ec.Before))
	for account := range ec.Before {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)

	_, _ = fmt.Fprintln(ctx.Stdout)
	table := output.NewTable(styles,
		output.Column{Title: "Account", Style: styles.Account},
		output.Column{Title: "Before", Align: output.AlignRight, Style: styles.Number},
		output.Column{Title: "After", Align: output.AlignRight, Style: styles.Number},
	)
	for _, account := range accounts {
		var after string
		if ec.After != nil {
			after = inventoryString(ec.After[account].String())
		}
		table.AddRow(account, inventoryString(ec.Before[account].String()), after)
	}
	return table.Render(ctx.Stdout)
}

func inventoryString(s string) string {
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		return s[1 : len(s)-1]
	}
	return s
}

// TimingsCmd loads a ledger with telemetry and sums the time per stage.
type TimingsCmd struct {
	LedgerArg
	FilterFlags
}

func (cmd *TimingsCmd) Run(ctx *kong.Context, globals *Globals) error {
	rec := telemetry.NewRecorder()
	runCtx := telemetry.WithCollector(context.Background(), rec)

	_, l, err := openFiltered(runCtx, globals, cmd.File, cmd.filters())
	if err != nil {
		return err
	}

	styles := output.NewStyles(ctx.Stdout)
	rec.Report(ctx.Stdout, styles)
	_, _ = fmt.Fprintln(ctx.Stdout)

	table := output.NewTable(styles,
		output.Column{Title: "Stage"},
		output.Column{Title: "Calls", Align: output.AlignRight},
		output.Column{Title: "Total", Align: output.AlignRight},
	)
	for _, t := range rec.Totals() {
		table.AddRow(t.Name, fmt.Sprint(t.Count), t.Duration.String())
	}
	if err := table.Render(ctx.Stdout); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(ctx.Stdout, "\n%d entries in %d file(s)\n", len(l.AllEntries()), len(l.Files()))
	return nil
}
