package realization

import (
	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/conversion"
	"github.com/robinvdvleuten/beanledger/inventory"
	"github.com/robinvdvleuten/beanledger/prices"
)

// CapOptions controls how a tree is balanced for a balance sheet.
type CapOptions struct {
	// Unrealized books the difference between market value and cost of
	// held lots against the unrealized gains account.
	Unrealized bool
	// Date selects the prices used for unrealized gains; zero means latest.
	Date   ast.Date
	Prices *prices.PriceMap
}

// Cap returns a copy of t balanced for a balance sheet:
//
//   - optionally, every lot whose market value differs from its cost gains
//     the difference in its account, booked against the unrealized gains
//     account; lots without a price are left at cost;
//   - the balances of all income and expense accounts move to the current
//     earnings account;
//   - the current conversions account receives the negated cost of what is
//     left, so that the whole tree sums to zero at cost.
func (t *Tree) Cap(opts *ast.Options, capOpts CapOptions) *Tree {
	c := t.Clone()

	if capOpts.Unrealized && capOpts.Prices != nil {
		c.unrealized(opts, capOpts.Prices, capOpts.Date)
	}

	earnings := inventory.New()
	for i := range c.nodes {
		n := &c.nodes[i]
		if n.ID == 0 || !opts.Roots.IsIncomeStatement(n.Name) {
			continue
		}
		earnings.AddInventory(n.Balance)
		n.Balance = inventory.New()
	}
	if !earnings.IsEmpty() {
		id := c.Ensure(opts.AccountCurrentEarnings)
		c.node(id).Balance.AddInventory(earnings)
	}

	total := inventory.New()
	for _, n := range c.nodes {
		total.AddInventory(n.Balance)
	}
	residual := conversion.Apply(conversion.AtCost, total, nil, ast.Date{})
	if !residual.IsEmpty() {
		id := c.Ensure(opts.AccountCurrentConversions)
		for _, a := range residual.Amounts() {
			c.node(id).Balance.AddAmount(a.Neg())
		}
	}

	c.Recompute()
	return c
}

func (t *Tree) unrealized(opts *ast.Options, pm *prices.PriceMap, date ast.Date) {
	gains := inventory.New()
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.ID == 0 || !opts.Roots.IsBalanceSheet(n.Name) {
			continue
		}
		for _, p := range n.Balance.Positions() {
			if p.Cost == nil {
				continue
			}
			if _, ok := pm.GetPrice(prices.Pair{Base: p.Units.Currency, Quote: p.Cost.Currency}, date); !ok {
				continue
			}
			value := conversion.Value(p, pm, date)
			gain := value.Number.Sub(conversion.Cost(p).Number)
			if gain.IsZero() {
				continue
			}
			a := ast.Amount{Number: gain, Currency: value.Currency}
			n.Balance.AddAmount(a)
			gains.AddAmount(a.Neg())
		}
	}
	if gains.IsEmpty() {
		return
	}
	id := t.Ensure(opts.AccountUnrealizedGains)
	t.node(id).Balance.AddInventory(gains)
}
