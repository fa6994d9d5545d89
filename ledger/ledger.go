// Package ledger is the entry point for hosts. A Ledger owns one loaded
// ledger file and everything derived from it: the entries, options and
// settings, prices, budgets, the active filters and the account tree of the
// filtered entries.
//
// The source files are the only state. Every write goes to disk first and
// is followed by a reload, so what a Ledger reports always matches the
// files.
//
// Example usage:
//
//	l := ledger.New("main.beancount")
//	if err := l.Load(ctx); err != nil {
//		return err // root file unreadable
//	}
//	if err := l.Filter(ctx, ledger.Filters{Time: "2024"}); err != nil {
//		return err
//	}
//	for _, row := range l.AccountJournal("Assets:Cash", true) {
//		fmt.Println(row.Directive.GetDate(), row.Balance)
//	}
//
// A Ledger is safe for concurrent use. Loads, filters and writes take an
// exclusive lock, reports a shared one.
package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/budget"
	"github.com/robinvdvleuten/beanledger/config"
	"github.com/robinvdvleuten/beanledger/dates"
	"github.com/robinvdvleuten/beanledger/loader"
	"github.com/robinvdvleuten/beanledger/prices"
	"github.com/robinvdvleuten/beanledger/realization"
	"github.com/robinvdvleuten/beanledger/telemetry"
	"github.com/robinvdvleuten/beanledger/watcher"
	"github.com/robinvdvleuten/beanledger/writer"
)

// Ledger is a loaded ledger file.
type Ledger struct {
	path     string
	loader   *loader.Loader
	watcher  watcher.Watcher
	settings *config.File
	today    func() ast.Date

	mu      sync.RWMutex
	loaded  bool
	all     []ast.Directive
	errors  []error
	options *ast.Options
	config  *config.Config
	writer  *writer.Writer
	prices  *prices.PriceMap
	budgets budget.Budgets
	files   []string
	attrs   *Attributes

	filters Filters
	entries []ast.Directive
	tree    *realization.Tree
	// timeRange is the range of the time filter, if any. first and last
	// bound the filtered entries; last is exclusive.
	timeRange   *dates.DateRange
	first, last ast.Date
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLoader sets the loader, for instance one with extra plugins.
func WithLoader(l *loader.Loader) Option {
	return func(led *Ledger) {
		led.loader = l
	}
}

// WithWatcher sets how Reload detects changes. The Ledger closes it on
// Close.
func WithWatcher(w watcher.Watcher) Option {
	return func(l *Ledger) {
		l.watcher = w
	}
}

// WithSettings overrides the settings found in the ledger.
func WithSettings(f *config.File) Option {
	return func(l *Ledger) {
		l.settings = f
	}
}

// WithToday sets the date relative time filters such as "month" are read
// against.
func WithToday(fn func() ast.Date) Option {
	return func(l *Ledger) {
		l.today = fn
	}
}

// New creates a Ledger for the file at path. Nothing is read until Load.
func New(path string, opts ...Option) *Ledger {
	l := &Ledger{
		path:    path,
		loader:  loader.New(),
		watcher: watcher.NewPollingWatcher(),
		today: func() ast.Date {
			now := time.Now()
			return ast.NewDateYMD(now.Year(), now.Month(), now.Day())
		},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the ledger and reapplies the active filters. The error is
// non-nil only when the root file cannot be read; everything else is in
// Errors.
func (l *Ledger) Load(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.load(ctx)
}

func (l *Ledger) load(ctx context.Context) error {
	timer := telemetry.FromContext(ctx).Start("ledger.load " + filepath.Base(l.path))
	defer timer.End()

	result, err := l.loader.Load(ctx, l.path)
	if err != nil {
		return err
	}

	cfg, cfgErrs := config.FromEntries(result.Entries)
	if err := l.settings.Apply(cfg); err != nil {
		cfgErrs = append(cfgErrs, err)
	}
	budgets, budgetErrs := budget.Parse(result.Entries)

	l.loaded = true
	l.all = result.Entries
	l.options = result.Options
	l.config = cfg
	l.writer = writer.New(cfg.WriterOptions()...)
	l.files = result.Files
	l.budgets = budgets
	l.errors = make([]error, 0, len(result.Errors)+len(cfgErrs)+len(budgetErrs))
	l.errors = append(l.errors, result.Errors...)
	l.errors = append(l.errors, cfgErrs...)
	l.errors = append(l.errors, budgetErrs...)

	derived := timer.Child("ledger.derive")
	l.prices = prices.Build(result.Entries)
	l.attrs = newAttributes(result.Entries, cfg.FiscalYearEnd)
	derived.End()

	if l.watcher != nil {
		if err := l.watcher.Update(l.files, l.documentFolders()); err != nil {
			l.errors = append(l.errors, err)
		}
	}

	filters := l.filters
	l.filters = Filters{}
	if err := l.applyFilters(ctx, filters); err != nil {
		// Filters that no longer parse, say after a fiscal year change,
		// are dropped.
		l.errors = append(l.errors, err)
		return l.applyFilters(ctx, Filters{})
	}
	return nil
}

// documentFolders lists the folders documents are searched in: every
// root account below every documents option, relative to the root file.
func (l *Ledger) documentFolders() []string {
	base := filepath.Dir(l.path)
	if len(l.files) > 0 {
		base = filepath.Dir(l.files[0])
	}
	var folders []string
	for _, dir := range l.options.Documents {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(base, dir)
		}
		for _, root := range l.options.Roots.All() {
			folders = append(folders, filepath.Join(dir, root))
		}
	}
	return folders
}

// Reload loads the ledger again if its watcher saw a change to one of the
// files or document folders. It reports whether it reloaded.
func (l *Ledger) Reload(ctx context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.loaded {
		return true, l.load(ctx)
	}
	if l.watcher == nil {
		return false, nil
	}
	changed, err := l.watcher.Check()
	if err != nil || !changed {
		return false, err
	}
	return true, l.load(ctx)
}

// Close releases the watcher.
func (l *Ledger) Close() error {
	if l.watcher == nil {
		return nil
	}
	return l.watcher.Close()
}

// Path is the root file as given to New.
func (l *Ledger) Path() string {
	return l.path
}

// Files lists the absolute paths of all source files, root first.
func (l *Ledger) Files() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.files
}

// AllEntries returns every entry, unfiltered, in canonical order.
func (l *Ledger) AllEntries() []ast.Directive {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.all
}

// Errors lists the problems found while loading, followed by those in
// settings and budgets.
func (l *Ledger) Errors() []error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.errors
}

// Err combines Errors into one error, or nil when there are none.
func (l *Ledger) Err() error {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return multierr.Combine(l.errors...)
}

// Options returns the ledger options.
func (l *Ledger) Options() *ast.Options {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.options
}

// Config returns the host settings.
func (l *Ledger) Config() *config.Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.config
}

// PriceMap returns the price map of all entries.
func (l *Ledger) PriceMap() *prices.PriceMap {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.prices
}

// Budgets returns the budgets declared in the ledger.
func (l *Ledger) Budgets() budget.Budgets {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.budgets
}

// Attributes returns the values offered for auto-completion.
func (l *Ledger) Attributes() *Attributes {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.attrs
}

// CommodityPairs lists the commodity pairs with prices. Pairs of operating
// currencies are listed in both directions.
func (l *Ledger) CommodityPairs() []prices.Pair {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.prices.CommodityPairs(l.options.OperatingCurrency)
}
