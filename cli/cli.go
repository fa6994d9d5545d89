// Package cli implements the beanledger command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/robinvdvleuten/beanledger/config"
	"github.com/robinvdvleuten/beanledger/ledger"
	"github.com/robinvdvleuten/beanledger/output"
	"github.com/robinvdvleuten/beanledger/telemetry"
)

var (
	successSymbol = "✓"
	errorSymbol   = "✗"
	infoSymbol    = "→"

	successStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#00D787", Dark: "#00D787"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#FF5F87", Dark: "#FF5F87"})
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#5FAFFF", Dark: "#5FAFFF"})
	headerStyle  = lipgloss.NewStyle().Bold(true).Underline(true)
)

func printSuccess(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", successStyle.Render(successSymbol), message)
}

func printError(w io.Writer, message string) {
	_, _ = fmt.Fprintf(w, "%s %s\n", errorStyle.Render(errorSymbol), errorStyle.Render(message))
}

func printInfof(w io.Writer, format string, args ...any) {
	_, _ = fmt.Fprintf(w, "%s %s\n", infoStyle.Render(infoSymbol), fmt.Sprintf(format, args...))
}

func printHeader(w io.Writer, title string) {
	_, _ = fmt.Fprintln(w, headerStyle.Render(title))
}

// promptYesNo asks question on the terminal. Without a terminal the answer
// is no.
func promptYesNo(question string) (bool, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return false, nil
	}

	var confirm bool
	form := huh.NewConfirm().
		Title(question).
		WithButtonAlignment(lipgloss.Left).
		Value(&confirm)
	if err := form.Run(); err != nil {
		return false, fmt.Errorf("failed to read response: %w", err)
	}
	return confirm, nil
}

// LedgerArg is the ledger file shared by most commands.
type LedgerArg struct {
	File string `help:"Beancount ledger file." arg:"" type:"existingfile" env:"BEANLEDGER_FILE"`
}

// FilterFlags select the entries a report is built from.
type FilterFlags struct {
	Time    string `help:"Time filter, e.g. 2024, 2024-Q1, 'month-1' or '2024-01 - 2024-06'." short:"t"`
	Account string `help:"Only entries touching this account or its children." short:"a"`
	Filter  string `help:"Advanced filter over tags, links, payees and metadata." short:"f"`
}

func (f FilterFlags) filters() ledger.Filters {
	return ledger.Filters{Time: f.Time, Account: f.Account, Advanced: f.Filter}
}

// openLedger loads the ledger at path with the settings of globals and
// returns a context carrying its host settings.
func openLedger(ctx context.Context, globals *Globals, path string, opts ...ledger.Option) (context.Context, *ledger.Ledger, error) {
	if globals.Config != "" {
		settings, err := config.ReadFile(globals.Config)
		if err != nil {
			return ctx, nil, err
		}
		opts = append(opts, ledger.WithSettings(settings))
	}

	l := ledger.New(path, opts...)
	if err := l.Load(ctx); err != nil {
		return ctx, nil, err
	}
	return l.Config().WithContext(ctx), l, nil
}

// withTelemetry returns a context recording timings when enabled and a
// function reporting them to w.
func withTelemetry(ctx context.Context, globals *Globals, w io.Writer) (context.Context, func()) {
	if !globals.Telemetry {
		return ctx, func() {}
	}
	rec := telemetry.NewRecorder()
	return telemetry.WithCollector(ctx, rec), func() {
		_, _ = fmt.Fprintln(w)
		rec.Report(w, newStyles(w))
	}
}

func newStyles(w io.Writer) *output.Styles {
	return output.NewStyles(w)
}
