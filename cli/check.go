package cli

import (
	"bytes"
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"

	"github.com/alecthomas/kong"
	"golang.org/x/sync/errgroup"

	"github.com/robinvdvleuten/beanledger/errors"
	"github.com/robinvdvleuten/beanledger/ledger"
	"github.com/robinvdvleuten/beanledger/watcher"
	"github.com/robinvdvleuten/beanledger/writer"
)

// ErrCheckFailed is returned when a checked ledger has errors.
var ErrCheckFailed = stdErrors.New("check failed")

type CheckCmd struct {
	Files  []string `help:"Ledger files to check." arg:"" type:"existingfile" env:"BEANLEDGER_FILE"`
	Format string   `help:"Output format of errors." enum:"text,json" default:"text"`
	Watch  bool     `help:"Check again whenever one of the files changes." short:"w"`
}

func (cmd *CheckCmd) Run(ctx *kong.Context, globals *Globals) error {
	if cmd.Watch {
		if len(cmd.Files) != 1 {
			return fmt.Errorf("--watch checks exactly one ledger, got %d", len(cmd.Files))
		}
		runCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()
		return cmd.watch(runCtx, ctx.Stdout, ctx.Stderr, globals)
	}
	return cmd.check(context.Background(), ctx.Stdout, ctx.Stderr, globals)
}

type checkOutput struct {
	stdout, stderr bytes.Buffer
	errors         int
}

// check loads every ledger concurrently and prints the results in the
// order the files were given.
func (cmd *CheckCmd) check(ctx context.Context, stdout, stderr io.Writer, globals *Globals) error {
	outputs := make([]*checkOutput, len(cmd.Files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, path := range cmd.Files {
		out := &checkOutput{}
		outputs[i] = out
		g.Go(func() error {
			runCtx, report := withTelemetry(gctx, globals, &out.stderr)
			defer report()

			_, l, err := openLedger(runCtx, globals, path, ledger.WithWatcher(nil))
			if err != nil {
				return err
			}
			out.errors = cmd.report(&out.stdout, &out.stderr, l)
			return nil
		})
	}
	err := g.Wait()

	var total int
	for _, out := range outputs {
		_, _ = io.Copy(stdout, &out.stdout)
		_, _ = io.Copy(stderr, &out.stderr)
		total += out.errors
	}
	if err != nil {
		return err
	}
	if total > 0 {
		return ErrCheckFailed
	}
	return nil
}

// watch checks a ledger and checks it again on every change until ctx is
// done.
func (cmd *CheckCmd) watch(ctx context.Context, stdout, stderr io.Writer, globals *Globals) error {
	changes := make(chan struct{}, 1)
	w, err := watcher.NewNotifyWatcher(watcher.WithOnChange(func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	}))
	if err != nil {
		return err
	}

	ctx, l, err := openLedger(ctx, globals, cmd.Files[0], ledger.WithWatcher(w))
	if err != nil {
		_ = w.Close()
		return err
	}
	defer l.Close()

	cmd.report(stdout, stderr, l)
	printInfof(stdout, "Watching %d file(s) for changes", len(l.Files()))
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			changed, err := l.Reload(ctx)
			if err != nil {
				printError(stderr, err.Error())
				continue
			}
			if changed {
				cmd.report(stdout, stderr, l)
			}
		}
	}
}

// report prints the errors of l and returns their number.
func (cmd *CheckCmd) report(stdout, stderr io.Writer, l *ledger.Ledger) int {
	errs := l.Errors()
	if cmd.Format == "json" {
		_, _ = fmt.Fprintln(stdout, errors.NewJSONFormatter().FormatAll(errs))
		return len(errs)
	}

	if len(errs) == 0 {
		printSuccess(stdout, fmt.Sprintf("%s: %d entries, no errors", l.Path(), len(l.AllEntries())))
		return 0
	}
	tf := errors.NewTextFormatter(writer.New(l.Config().WriterOptions()...))
	_, _ = fmt.Fprintln(stderr, tf.FormatAll(errs))
	_, _ = fmt.Fprintln(stderr)
	printError(stderr, fmt.Sprintf("%s: %d error(s) found", l.Path(), len(errs)))
	return len(errs)
}
