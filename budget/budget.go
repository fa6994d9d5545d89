// Package budget reads budgets declared with custom directives and spreads
// them over arbitrary date ranges.
//
//	2024-01-01 custom "budget" Expenses:Food "monthly" 310.00 USD
//
// A budget applies from its date until the next budget for the same account
// and currency. Each day receives the amount divided by the number of days
// of the period containing it, so a monthly budget yields 1/31 per day in
// January and 1/29 per day in February 2024.
package budget

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/dates"
	"github.com/robinvdvleuten/beanledger/inventory"
)

// Budget is one budget declaration.
type Budget struct {
	Account  string
	Start    ast.Date
	Period   dates.Interval
	Number   decimal.Decimal
	Currency string
}

// BudgetError is returned for a budget directive that cannot be read. The
// directive is skipped.
type BudgetError struct {
	Pos       ast.Position
	Message   string
	Directive ast.Directive
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos.Location(), e.Message)
}

func (e *BudgetError) GetPosition() ast.Position   { return e.Pos }
func (e *BudgetError) GetDirective() ast.Directive { return e.Directive }

// NewBudgetError creates a BudgetError for c.
func NewBudgetError(c *ast.Custom, message string) *BudgetError {
	return &BudgetError{Pos: c.Pos, Message: message, Directive: c}
}

var periods = map[string]dates.Interval{
	"daily":     dates.Day,
	"weekly":    dates.Week,
	"monthly":   dates.Month,
	"quarterly": dates.Quarter,
	"yearly":    dates.Year,
}

// Budgets holds the budgets of each account in date order.
type Budgets map[string][]Budget

// Parse collects the budgets declared in entries, which must be in
// canonical order.
func Parse(entries []ast.Directive) (Budgets, []error) {
	budgets := Budgets{}
	var errs []error
	for _, c := range ast.Filter[*ast.Custom](entries) {
		if c.Type != "budget" {
			continue
		}
		if len(c.Values) < 3 ||
			c.Values[0].Kind != ast.MetaAccount ||
			c.Values[1].Kind != ast.MetaString ||
			c.Values[2].Kind != ast.MetaAmount {
			errs = append(errs, NewBudgetError(c, "Failed to parse budget entry"))
			continue
		}
		period, ok := periods[c.Values[1].Str]
		if !ok {
			errs = append(errs, NewBudgetError(c, "Invalid interval for budget entry"))
			continue
		}
		b := Budget{
			Account:  c.Values[0].Str,
			Start:    c.Date,
			Period:   period,
			Number:   c.Values[2].Amount.Number,
			Currency: c.Values[2].Amount.Currency,
		}
		budgets[b.Account] = append(budgets[b.Account], b)
	}
	return budgets, errs
}

// active returns the budget in force on day for each currency.
func active(list []Budget, day ast.Date) map[string]Budget {
	out := map[string]Budget{}
	for _, b := range list {
		if b.Start.After(day) {
			break
		}
		out[b.Currency] = b
	}
	return out
}

// Calculate returns the budget of account over [begin, end), per currency.
func (bs Budgets) Calculate(account string, begin, end ast.Date) inventory.SimpleInventory {
	out := inventory.SimpleInventory{}
	list, ok := bs[account]
	if !ok {
		return out
	}
	for _, day := range dates.DaysIn(begin, end) {
		for _, b := range active(list, day) {
			days := decimal.NewFromInt(int64(b.Period.Days(day)))
			out.Add(ast.Amount{Number: b.Number.Div(days), Currency: b.Currency})
		}
	}
	return out
}

// CalculateChildren is Calculate summed over account and its sub-accounts.
func (bs Budgets) CalculateChildren(account string, begin, end ast.Date) inventory.SimpleInventory {
	out := inventory.SimpleInventory{}
	for name := range bs {
		if ast.IsDescendant(name, account) {
			out.AddSimple(bs.Calculate(name, begin, end))
		}
	}
	return out
}
