package filter

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/dates"
	"github.com/robinvdvleuten/beanledger/inventory"
)

// TimeFilter restricts entries to a date range.
type TimeFilter struct {
	Value string
	Range dates.DateRange

	opts *ast.Options
}

// NewTimeFilter parses value relative to today.
func NewTimeFilter(value string, opts *ast.Options, fye dates.FiscalYearEnd, today ast.Date) (*TimeFilter, error) {
	begin, end, err := dates.Parse(value, fye, today)
	if err != nil || begin.IsZero() || end.IsZero() {
		return nil, NewFilterError("time", "Failed to parse date: %s", value)
	}
	r, err := dates.NewDateRange(begin, end)
	if err != nil {
		return nil, NewFilterError("time", "Failed to parse date: %s", value)
	}
	return &TimeFilter{Value: value, Range: r, opts: opts}, nil
}

// Apply clamps entries, which must be in canonical order, to the range.
//
// Entries before the begin date are replaced by one summarising transaction
// per account, dated the day before, that books the account's balance
// against the opening balances account. Income and expense balances from
// before the range are moved to the previous earnings account first. Open
// directives before the range are kept for accounts still open at its
// start. Entries on or after the end date are dropped.
func (f *TimeFilter) Apply(entries []ast.Directive) []ast.Directive {
	return Clamp(entries, f.Range.Begin, f.Range.End, f.opts)
}

func (f *TimeFilter) String() string {
	return f.Value
}

// Clamp implements TimeFilter.Apply for an explicit range.
func Clamp(entries []ast.Directive, begin, end ast.Date, opts *ast.Options) []ast.Directive {
	split, _ := slices.BinarySearchFunc(entries, begin, func(d ast.Directive, date ast.Date) int {
		return d.GetDate().Compare(date)
	})

	out := summarize(entries[:split], begin, opts)
	for _, d := range entries[split:] {
		if !d.GetDate().Before(end) {
			break
		}
		out = append(out, d)
	}
	return out
}

func summarize(before []ast.Directive, begin ast.Date, opts *ast.Options) []ast.Directive {
	balances := map[string]*inventory.Inventory{}
	opens := map[string]*ast.Open{}
	var openOrder []string
	for _, d := range before {
		switch e := d.(type) {
		case *ast.Open:
			if _, ok := opens[e.Account]; !ok {
				openOrder = append(openOrder, e.Account)
			}
			opens[e.Account] = e
		case *ast.Close:
			delete(opens, e.Account)
		case *ast.Transaction:
			for _, p := range e.Postings {
				if p.Units == nil {
					continue
				}
				account := p.Account
				if opts.Roots.IsIncomeStatement(account) {
					account = opts.AccountPreviousEarnings
				}
				inv, ok := balances[account]
				if !ok {
					inv = inventory.New()
					balances[account] = inv
				}
				inv.AddPosition(*p.Units, p.Lot)
			}
		}
	}

	var out []ast.Directive
	for _, account := range openOrder {
		if o, ok := opens[account]; ok {
			out = append(out, o)
		}
	}

	accounts := make([]string, 0, len(balances))
	for account, inv := range balances {
		if !inv.IsEmpty() {
			accounts = append(accounts, account)
		}
	}
	slices.Sort(accounts)

	date := begin.AddDays(-1)
	for _, account := range accounts {
		var postings []*ast.Posting
		for _, p := range balances[account].Positions() {
			posting := ast.NewPosting(account, ast.WithUnits(p.Units))
			weight := p.Units
			if p.Cost != nil {
				lot := *p.Cost
				posting.Lot = &lot
				weight = ast.Amount{Number: p.Units.Number.Mul(p.Cost.Number), Currency: p.Cost.Currency}
			}
			postings = append(postings, posting, ast.NewPosting(opts.AccountPreviousBalances, ast.WithUnits(weight.Neg())))
		}
		out = append(out, ast.NewTransaction(date,
			fmt.Sprintf("Opening balance for '%s' (Summarization)", account),
			ast.WithFlag(ast.FlagSummarize),
			ast.WithPostings(postings...),
		))
	}
	ast.SortDirectives(out)
	return out
}
