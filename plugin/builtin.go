package plugin

import (
	"context"

	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
)

// AutoAccounts opens every account that is used but never opened. The
// generated Open is dated at the account's first use.
func AutoAccounts(ctx context.Context, entries []ast.Directive, opts *ast.Options, config string) ([]ast.Directive, []error) {
	sorted := slices.Clone(entries)
	ast.SortDirectives(sorted)

	opened := map[string]bool{}
	for _, d := range sorted {
		if o, ok := d.(*ast.Open); ok {
			opened[o.Account] = true
		}
	}

	var opens []ast.Directive
	for _, d := range sorted {
		if d.Kind() == ast.KindOpen {
			continue
		}
		for _, account := range ast.Accounts(d) {
			if opened[account] {
				continue
			}
			opened[account] = true
			open := ast.NewOpen(d.GetDate(), account)
			open.Pos = ast.Position{Filename: "<auto_accounts>"}
			opens = append(opens, open)
		}
	}
	if len(opens) == 0 {
		return entries, nil
	}
	return append(opens, entries...), nil
}

// ImplicitPrices records the price of every posting that carries a price
// annotation, or failing that a per-unit cost, as a Price directive. A rate
// already recorded for the same day is not repeated.
func ImplicitPrices(ctx context.Context, entries []ast.Directive, opts *ast.Options, config string) ([]ast.Directive, []error) {
	type key struct {
		date     ast.Date
		currency string
		quote    string
		rate     string
	}
	seen := map[key]bool{}
	for _, p := range ast.Filter[*ast.Price](entries) {
		seen[key{p.Date, p.Currency, p.Amount.Currency, p.Amount.Number.String()}] = true
	}

	var added []ast.Directive
	for _, txn := range ast.Filter[*ast.Transaction](entries) {
		for _, p := range txn.Postings {
			if p.Units == nil {
				continue
			}
			var rate *ast.Amount
			switch {
			case p.Price != nil:
				rate = p.Price
			case p.Lot != nil:
				rate = &ast.Amount{Number: p.Lot.Number, Currency: p.Lot.Currency}
			case p.Cost != nil && p.Cost.NumberPer != nil && p.Cost.Currency != "":
				rate = &ast.Amount{Number: *p.Cost.NumberPer, Currency: p.Cost.Currency}
			}
			if rate == nil || rate.Currency == p.Units.Currency {
				continue
			}
			k := key{txn.Date, p.Units.Currency, rate.Currency, rate.Number.String()}
			if seen[k] {
				continue
			}
			seen[k] = true
			price := ast.NewPrice(txn.Date, p.Units.Currency, *rate)
			price.Pos = p.Pos
			if price.Pos.Line == 0 {
				price.Pos = txn.Pos
			}
			added = append(added, price)
		}
	}
	if len(added) == 0 {
		return entries, nil
	}
	return append(slices.Clone(entries), added...), nil
}
