package booking

import (
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
)

// Tolerances maps a currency to the residual a transaction may leave in it.
type Tolerances map[string]decimal.Decimal

// InferTolerances derives per-currency tolerances from the postings written
// with a number. Each fractional number contributes multiplier * 10^exponent
// to its currency and the least precise posting wins. Integers contribute
// nothing; a currency without contributions falls back to the configured
// default.
//
// Example: with multiplier 0.5, "10.25 USD" and "-10.2 USD" give 0.05 USD.
func InferTolerances(postings []*ast.Posting, opts *ast.Options) Tolerances {
	t := Tolerances{}
	for _, p := range postings {
		if p.Units == nil {
			continue
		}
		exp := p.Units.Number.Exponent()
		if exp >= 0 {
			continue
		}
		tol := decimal.New(1, exp).Mul(opts.InferredToleranceMultiplier)
		if cur, ok := t[p.Units.Currency]; !ok || tol.GreaterThan(cur) {
			t[p.Units.Currency] = tol
		}
	}
	return t
}

// Get returns the tolerance for currency.
func (t Tolerances) Get(currency string, opts *ast.Options) decimal.Decimal {
	if tol, ok := t[currency]; ok {
		return tol
	}
	return opts.ToleranceDefault(currency)
}
