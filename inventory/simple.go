package inventory

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
)

// SimpleInventory maps a currency to a number. It is the result of reducing
// an Inventory and, like it, never stores zeros.
type SimpleInventory map[string]decimal.Decimal

// Add adds an amount, removing the currency if the sum is zero.
func (s SimpleInventory) Add(a ast.Amount) {
	n := s[a.Currency].Add(a.Number)
	if n.IsZero() {
		delete(s, a.Currency)
		return
	}
	s[a.Currency] = n
}

// AddSimple adds every entry of other.
func (s SimpleInventory) AddSimple(other SimpleInventory) {
	for currency, n := range other {
		s.Add(ast.Amount{Number: n, Currency: currency})
	}
}

// Neg returns a copy with every number negated.
func (s SimpleInventory) Neg() SimpleInventory {
	out := make(SimpleInventory, len(s))
	for currency, n := range s {
		out[currency] = n.Neg()
	}
	return out
}

// IsEmpty reports whether nothing is held.
func (s SimpleInventory) IsEmpty() bool {
	return len(s) == 0
}

// Currencies returns the held currencies, sorted.
func (s SimpleInventory) Currencies() []string {
	keys := maps.Keys(s)
	slices.Sort(keys)
	return keys
}

// Amounts returns the held amounts sorted by currency.
func (s SimpleInventory) Amounts() []ast.Amount {
	out := make([]ast.Amount, 0, len(s))
	for _, c := range s.Currencies() {
		out = append(out, ast.Amount{Number: s[c], Currency: c})
	}
	return out
}

// Equal compares currencies and numbers.
func (s SimpleInventory) Equal(other SimpleInventory) bool {
	if len(s) != len(other) {
		return false
	}
	for c, n := range s {
		if o, ok := other[c]; !ok || !o.Equal(n) {
			return false
		}
	}
	return true
}

// Inventory converts s into an inventory of uncosted positions.
func (s SimpleInventory) Inventory() *Inventory {
	inv := New()
	for c, n := range s {
		inv.AddAmount(ast.Amount{Number: n, Currency: c})
	}
	return inv
}

func (s SimpleInventory) String() string {
	amounts := s.Amounts()
	parts := make([]string, len(amounts))
	for i, a := range amounts {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}
