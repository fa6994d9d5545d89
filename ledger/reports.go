package ledger

import (
	"context"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/conversion"
	"github.com/robinvdvleuten/beanledger/dates"
	"github.com/robinvdvleuten/beanledger/inventory"
	"github.com/robinvdvleuten/beanledger/prices"
	"github.com/robinvdvleuten/beanledger/realization"
	"github.com/robinvdvleuten/beanledger/telemetry"
)

// AccountJournal returns the filtered journal of account: every entry
// touching it with the postings to it, their sum and the running balance.
// With children the postings of all sub-accounts count too.
func (l *Ledger) AccountJournal(account string, withChildren bool) []realization.JournalEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.tree.AccountJournal(account, withChildren)
}

// JournalRow is a journal row with its change and balance converted.
type JournalRow struct {
	Directive ast.Directive
	Change    inventory.SimpleInventory
	Balance   inventory.SimpleInventory
}

// ConvertedJournal returns AccountJournal with amounts converted by c at
// the date of each entry.
func (l *Ledger) ConvertedJournal(account string, withChildren bool, c conversion.Conversion) []JournalRow {
	l.mu.RLock()
	defer l.mu.RUnlock()
	journal := l.tree.AccountJournal(account, withChildren)
	rows := make([]JournalRow, len(journal))
	for i, j := range journal {
		date := j.Directive.GetDate()
		rows[i] = JournalRow{
			Directive: j.Directive,
			Change:    conversion.Apply(c, j.Change, l.prices, date),
			Balance:   conversion.Apply(c, j.Balance, l.prices, date),
		}
	}
	return rows
}

// IntervalBalance is the account tree of one interval.
type IntervalBalance struct {
	Range dates.DateRange
	Tree  *realization.Tree
}

// IntervalBalances builds an account tree per interval of the covered
// range, newest first. With accumulate each tree holds everything up to the
// end of its interval instead of the interval alone. Every account below
// account is present in every tree, empty or not.
func (l *Ledger) IntervalBalances(ctx context.Context, interval dates.Interval, account string, accumulate bool) []IntervalBalance {
	l.mu.RLock()
	defer l.mu.RUnlock()

	timer := telemetry.FromContext(ctx).Start("ledger.interval_balances " + interval.String())
	defer timer.End()

	var accounts []string
	for _, a := range l.tree.Accounts() {
		if account == "" || ast.IsDescendant(a, account) {
			accounts = append(accounts, a)
		}
	}

	ranges := l.intervalRanges(interval)
	out := make([]IntervalBalance, 0, len(ranges))
	for i := len(ranges) - 1; i >= 0; i-- {
		r := ranges[i]
		begin := r.Begin
		if accumulate {
			begin = ast.Date{}
		}
		tree := realization.Realize(entriesBetween(l.entries, begin, r.End))
		for _, a := range accounts {
			tree.Ensure(a)
		}
		out = append(out, IntervalBalance{Range: r, Tree: tree})
	}
	return out
}

// entriesBetween returns the entries dated in [begin, end). entries must be
// in canonical order.
func entriesBetween(entries []ast.Directive, begin, end ast.Date) []ast.Directive {
	var out []ast.Directive
	for _, d := range entries {
		date := d.GetDate()
		if date.Before(begin) {
			continue
		}
		if !date.Before(end) {
			break
		}
		out = append(out, d)
	}
	return out
}

// Prices returns the prices of base in quote within the time filter.
func (l *Ledger) Prices(base, quote string) []prices.Point {
	l.mu.RLock()
	defer l.mu.RUnlock()
	all := l.prices.GetAllPrices(prices.Pair{Base: base, Quote: quote})
	if l.timeRange == nil {
		return all
	}
	var out []prices.Point
	for _, p := range all {
		if l.timeRange.Contains(p.Date) {
			out = append(out, p)
		}
	}
	return out
}

// Budget returns the budget of account for [begin, end). With children the
// budgets of sub-accounts are included.
func (l *Ledger) Budget(account string, begin, end ast.Date, withChildren bool) inventory.SimpleInventory {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if withChildren {
		return l.budgets.CalculateChildren(account, begin, end)
	}
	return l.budgets.Calculate(account, begin, end)
}
