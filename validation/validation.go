// Package validation checks a booked directive stream.
//
// It walks the entries in canonical order and checks, in a single pass:
//
//   - account lifecycle: every reference falls between the account's Open
//     and Close, accounts are opened and closed once, names are well formed;
//   - currency constraints declared on Open;
//   - Balance assertions, evaluated at the start of their date against the
//     account and all its sub-accounts;
//   - Pad directives, which insert a balancing transaction dated the day
//     before the Balance that uses them.
//
// Validation never drops entries. It returns the input plus the synthetic
// padding transactions, sorted, and every problem it found.
package validation

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
	"github.com/robinvdvleuten/beanledger/telemetry"
)

type padState struct {
	pad *ast.Pad
	// currencies checked since the pad; a pad fills each currency once.
	currencies map[string]bool
	applied    bool
}

type validator struct {
	opts   *ast.Options
	opens  map[string]*ast.Open
	closes map[string]*ast.Close
	// units held by an account and all its descendants
	units map[string]inventory.SimpleInventory
	pads  map[string]*padState
	used  []*padState

	inserted []ast.Directive
	errs     []error
}

// Validate checks entries, which must be booked. It returns the entries
// with padding transactions added, in canonical order.
func Validate(ctx context.Context, entries []ast.Directive, opts *ast.Options) ([]ast.Directive, []error) {
	timer := telemetry.FromContext(ctx).Start("validation.validate")
	defer timer.End()

	if opts == nil {
		opts = ast.DefaultOptions()
	}
	v := &validator{
		opts:   opts,
		opens:  make(map[string]*ast.Open),
		closes: make(map[string]*ast.Close),
		units:  make(map[string]inventory.SimpleInventory),
		pads:   make(map[string]*padState),
	}

	sorted := slices.Clone(entries)
	ast.SortDirectives(sorted)

	for _, d := range sorted {
		switch e := d.(type) {
		case *ast.Open:
			v.open(e)
		case *ast.Close:
			v.close(e)
		case *ast.Pad:
			v.checkReferences(e)
			v.padDirective(e)
		case *ast.Balance:
			v.checkReferences(e)
			v.balance(e)
		case *ast.Transaction:
			v.checkReferences(e)
			v.transaction(e)
		case *ast.Note, *ast.Document:
			v.checkReferences(e)
		}
	}

	for _, ps := range v.used {
		if !ps.applied {
			v.errs = append(v.errs, NewPadError(ps.pad, "Unused Pad entry"))
		}
	}

	out := append(sorted, v.inserted...)
	ast.SortDirectives(out)
	return out, v.errs
}

func (v *validator) open(o *ast.Open) {
	if !v.opts.Roots.IsValidAccount(o.Account) {
		v.errs = append(v.errs, NewInvalidAccountNameError(o))
	}
	if prev, ok := v.opens[o.Account]; ok {
		v.errs = append(v.errs, NewAccountAlreadyOpenError(o, prev.Date))
		return
	}
	v.opens[o.Account] = o
}

func (v *validator) close(c *ast.Close) {
	if _, ok := v.opens[c.Account]; !ok {
		v.errs = append(v.errs, NewAccountNotClosedError(c))
		return
	}
	if prev, ok := v.closes[c.Account]; ok {
		v.errs = append(v.errs, NewAccountAlreadyClosedError(c, prev.Date))
		return
	}
	v.closes[c.Account] = c
}

// checkReferences verifies that every account d mentions is open on its
// date. Each account is reported once per directive.
func (v *validator) checkReferences(d ast.Directive) {
	seen := map[string]bool{}
	for _, account := range ast.Accounts(d) {
		if seen[account] {
			continue
		}
		seen[account] = true
		open, ok := v.opens[account]
		if !ok || d.GetDate().Before(open.Date) {
			v.errs = append(v.errs, NewAccountNotOpenError(d, account))
			continue
		}
		if c, ok := v.closes[account]; ok && d.GetDate().After(c.Date) {
			v.errs = append(v.errs, NewAccountClosedError(d, account, c.Date))
		}
	}
}

// allows checks the Open currency list of account.
func (v *validator) allows(d ast.Directive, account, currency string) {
	open, ok := v.opens[account]
	if !ok || len(open.Currencies) == 0 || slices.Contains(open.Currencies, currency) {
		return
	}
	v.errs = append(v.errs, NewCurrencyConstraintError(d, open, currency))
}

// post adds units to account and its ancestors.
func (v *validator) post(account string, units ast.Amount) {
	for _, a := range ast.Ancestors(account) {
		inv, ok := v.units[a]
		if !ok {
			inv = inventory.SimpleInventory{}
			v.units[a] = inv
		}
		inv.Add(units)
	}
}

func (v *validator) balanceOf(account, currency string) decimal.Decimal {
	return v.units[account][currency]
}

func (v *validator) transaction(txn *ast.Transaction) {
	for _, p := range txn.Postings {
		if p.Units == nil {
			continue
		}
		v.allows(txn, p.Account, p.Units.Currency)
		v.post(p.Account, *p.Units)
	}
}

func (v *validator) padDirective(pad *ast.Pad) {
	ps := &padState{pad: pad, currencies: map[string]bool{}}
	v.pads[pad.Account] = ps
	v.used = append(v.used, ps)
}

func (v *validator) balance(b *ast.Balance) {
	v.allows(b, b.Account, b.Amount.Currency)

	currency := b.Amount.Currency
	tolerance := BalanceTolerance(b, v.opts)
	actual := v.balanceOf(b.Account, currency)

	if ps, ok := v.pads[b.Account]; ok && !ps.currencies[currency] {
		ps.currencies[currency] = true
		if diff := b.Amount.Number.Sub(actual); diff.Abs().GreaterThan(tolerance) {
			if v.insertPadding(ps.pad, b, diff) {
				ps.applied = true
				actual = v.balanceOf(b.Account, currency)
			}
		}
	}

	if diff := actual.Sub(b.Amount.Number); diff.Abs().GreaterThan(tolerance) {
		v.errs = append(v.errs, NewBalanceError(b, ast.Amount{Number: actual, Currency: currency}))
	}
}

// insertPadding creates the transaction that brings pad.Account to the
// balance asserted by b.
func (v *validator) insertPadding(pad *ast.Pad, b *ast.Balance, diff decimal.Decimal) bool {
	if !b.Date.After(pad.Date) {
		v.errs = append(v.errs, NewPadError(pad, "Pad entry must precede the balance it pads"))
		return false
	}
	amount := ast.Amount{Number: diff, Currency: b.Amount.Currency}
	txn := ast.NewTransaction(b.Date.AddDays(-1),
		fmt.Sprintf("(Padding inserted for Balance of %s for difference %s)", b.Amount, amount),
		ast.WithFlag(ast.FlagPadding),
		ast.WithPosition(pad.Pos),
		ast.WithPostings(
			ast.NewPosting(pad.Account, ast.WithUnits(amount)),
			ast.NewPosting(pad.Source, ast.WithUnits(amount.Neg())),
		),
	)
	v.inserted = append(v.inserted, txn)
	v.post(pad.Account, amount)
	v.post(pad.Source, amount.Neg())
	return true
}

// BalanceTolerance returns the tolerance of a balance assertion: the
// explicit one if written, otherwise twice the inferred multiplier times
// the precision of the asserted number. Integer assertions must match
// exactly.
func BalanceTolerance(b *ast.Balance, opts *ast.Options) decimal.Decimal {
	if b.Tolerance != nil {
		return *b.Tolerance
	}
	exp := b.Amount.Number.Exponent()
	if exp >= 0 {
		return decimal.Zero
	}
	return decimal.New(1, exp).Mul(opts.InferredToleranceMultiplier).Mul(decimal.NewFromInt(2))
}
