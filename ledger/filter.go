package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/dates"
	"github.com/robinvdvleuten/beanledger/filter"
	"github.com/robinvdvleuten/beanledger/realization"
	"github.com/robinvdvleuten/beanledger/telemetry"
)

// ErrNotLoaded is returned by operations that need a loaded ledger.
var ErrNotLoaded = errors.New("ledger has not been loaded")

// Filters selects the entries reports are built from. Empty fields select
// everything.
type Filters struct {
	// Time is a date or range such as "2024", "2024-03 - 2024-06" or
	// "month-1".
	Time string
	// Account keeps entries touching a matching account.
	Account string
	// Advanced is an expression over tags, links, payees and metadata.
	Advanced string
}

// Filter sets the active filters. The filtered entries and their account
// tree are only rebuilt when a filter changed. A filter that does not parse
// returns a *filter.FilterError and leaves the active filters alone.
func (l *Ledger) Filter(ctx context.Context, f Filters) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.loaded {
		return ErrNotLoaded
	}
	f = Filters{
		Time:     strings.TrimSpace(f.Time),
		Account:  strings.TrimSpace(f.Account),
		Advanced: strings.TrimSpace(f.Advanced),
	}
	if f == l.filters && l.tree != nil {
		return nil
	}
	return l.applyFilters(ctx, f)
}

// applyFilters narrows all entries by account, then by the advanced
// filter and clamps the result to the time range last, so that the
// summarised opening balances only cover what the other filters kept.
func (l *Ledger) applyFilters(ctx context.Context, f Filters) error {
	timer := telemetry.FromContext(ctx).Start("ledger.filter")
	defer timer.End()

	var chain []filter.Filter
	if f.Account != "" {
		chain = append(chain, filter.NewAccountFilter(f.Account))
	}
	if f.Advanced != "" {
		af, err := filter.NewAdvancedFilter(f.Advanced)
		if err != nil {
			return err
		}
		chain = append(chain, af)
	}
	var timeRange *dates.DateRange
	if f.Time != "" {
		tf, err := filter.NewTimeFilter(f.Time, l.options, l.config.FiscalYearEnd, l.today())
		if err != nil {
			return err
		}
		chain = append(chain, tf)
		r := tf.Range
		timeRange = &r
	}

	entries := l.all
	for _, flt := range chain {
		entries = flt.Apply(entries)
	}

	l.filters = f
	l.entries = entries
	l.tree = realization.Realize(entries)
	l.timeRange = timeRange
	l.first, l.last = entryBounds(entries, timeRange)
	return nil
}

// entryBounds returns the range reports cover: the time filter's, or from
// the first transaction to the day after the last transaction or price.
func entryBounds(entries []ast.Directive, timeRange *dates.DateRange) (ast.Date, ast.Date) {
	if timeRange != nil {
		return timeRange.Begin, timeRange.End
	}
	var first, last ast.Date
	for _, d := range entries {
		if _, ok := d.(*ast.Transaction); ok {
			first = d.GetDate()
			break
		}
	}
	for i := len(entries) - 1; i >= 0; i-- {
		switch entries[i].(type) {
		case *ast.Transaction, *ast.Price:
			last = entries[i].GetDate().AddDays(1)
			return first, last
		}
	}
	return first, last
}

// Filters returns the active filters.
func (l *Ledger) Filters() Filters {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.filters
}

// Entries returns the filtered entries in canonical order.
func (l *Ledger) Entries() []ast.Directive {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries
}

// Tree returns the account tree of the filtered entries.
func (l *Ledger) Tree() *realization.Tree {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree
}

// BalanceSheet returns the account tree of the filtered entries closed for
// a balance sheet: income and expenses moved to earnings, conversions
// booked, and unrealized gains if the settings ask for them.
func (l *Ledger) BalanceSheet() *realization.Tree {
	l.mu.RLock()
	defer l.mu.RUnlock()
	capOpts := realization.CapOptions{
		Unrealized: l.config.Unrealized,
		Prices:     l.prices,
	}
	if l.timeRange != nil {
		capOpts.Date = l.timeRange.EndInclusive()
	}
	return l.tree.Cap(l.options, capOpts)
}

// DateRange returns the range the filtered entries cover, end exclusive.
// ok is false when there is nothing to cover.
func (l *Ledger) DateRange() (begin, end ast.Date, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.first, l.last, !l.first.IsZero() && !l.last.IsZero()
}

// TimeRange returns the range of the time filter, or nil without one.
func (l *Ledger) TimeRange() *dates.DateRange {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.timeRange
}

// IntervalRanges splits the covered range into whole intervals, oldest
// first.
func (l *Ledger) IntervalRanges(interval dates.Interval) []dates.DateRange {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.intervalRanges(interval)
}

func (l *Ledger) intervalRanges(interval dates.Interval) []dates.DateRange {
	if l.first.IsZero() || l.last.IsZero() {
		return nil
	}
	ranges, err := dates.DateRanges(l.first, l.last, interval, true)
	if err != nil {
		return nil
	}
	return ranges
}

// AccountIsClosed reports whether account is closed before the end of the
// time filter, or at all when there is none.
func (l *Ledger) AccountIsClosed(account string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, d := range l.all {
		c, ok := d.(*ast.Close)
		if !ok || c.Account != account {
			continue
		}
		if l.timeRange == nil {
			return true
		}
		return c.Date.Before(l.timeRange.End)
	}
	return false
}
