// Package inventory implements the multiset of positions an account holds.
//
// An Inventory maps (currency, cost) to a number. Adding a position with the
// opposite sign reduces the entry with the same key and an entry that reaches
// exactly zero is removed, so an inventory never stores zeros. Lookups and
// additions are O(1) amortized regardless of how many lots are held.
package inventory

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
)

// Key identifies one position: the units currency and the lot.
type Key struct {
	Currency string
	Cost     ast.CostKey
}

// Position is units of a commodity, optionally held at a cost.
type Position struct {
	Units ast.Amount
	Cost  *ast.Cost
}

// Key returns the inventory key of p.
func (p Position) Key() Key {
	return Key{Currency: p.Units.Currency, Cost: p.Cost.Key()}
}

// String renders the position as "10 HOOL {518.73 USD, 2014-05-01}".
func (p Position) String() string {
	if p.Cost == nil {
		return p.Units.String()
	}
	return p.Units.String() + " " + p.Cost.String()
}

type entry struct {
	number decimal.Decimal
	cost   *ast.Cost
}

// Inventory is a multiset of positions. The zero value is not usable; call
// New.
type Inventory struct {
	entries map[Key]*entry
}

// New returns an empty inventory.
func New() *Inventory {
	return &Inventory{entries: make(map[Key]*entry)}
}

// FromPositions builds an inventory holding positions.
func FromPositions(positions ...Position) *Inventory {
	inv := New()
	for _, p := range positions {
		inv.AddPosition(p.Units, p.Cost)
	}
	return inv
}

// AddAmount adds units held without cost.
func (inv *Inventory) AddAmount(a ast.Amount) {
	inv.AddPosition(a, nil)
}

// AddPosition adds units held at cost. The entry disappears if the result
// is exactly zero.
func (inv *Inventory) AddPosition(units ast.Amount, cost *ast.Cost) {
	if units.Number.IsZero() {
		return
	}
	key := Key{Currency: units.Currency, Cost: cost.Key()}
	e, ok := inv.entries[key]
	if !ok {
		inv.entries[key] = &entry{number: units.Number, cost: cost}
		return
	}
	e.number = e.number.Add(units.Number)
	if e.number.IsZero() {
		delete(inv.entries, key)
	}
}

// AddInventory adds every position of other.
func (inv *Inventory) AddInventory(other *Inventory) {
	if other == nil {
		return
	}
	for key, e := range other.entries {
		inv.AddPosition(ast.Amount{Number: e.number, Currency: key.Currency}, e.cost)
	}
}

// Neg returns a new inventory with every number negated.
func (inv *Inventory) Neg() *Inventory {
	out := &Inventory{entries: make(map[Key]*entry, len(inv.entries))}
	for key, e := range inv.entries {
		out.entries[key] = &entry{number: e.number.Neg(), cost: e.cost}
	}
	return out
}

// Clone returns an independent copy.
func (inv *Inventory) Clone() *Inventory {
	out := &Inventory{entries: make(map[Key]*entry, len(inv.entries))}
	for key, e := range inv.entries {
		c := *e
		out.entries[key] = &c
	}
	return out
}

// IsEmpty reports whether the inventory holds nothing.
func (inv *Inventory) IsEmpty() bool {
	return inv == nil || len(inv.entries) == 0
}

// Len returns the number of distinct positions.
func (inv *Inventory) Len() int {
	if inv == nil {
		return 0
	}
	return len(inv.entries)
}

// Units returns the total units of currency across all lots.
func (inv *Inventory) Units(currency string) decimal.Decimal {
	total := decimal.Zero
	for key, e := range inv.entries {
		if key.Currency == currency {
			total = total.Add(e.number)
		}
	}
	return total
}

// Currencies returns the sorted set of unit currencies held.
func (inv *Inventory) Currencies() []string {
	seen := map[string]bool{}
	var out []string
	for key := range inv.entries {
		if !seen[key.Currency] {
			seen[key.Currency] = true
			out = append(out, key.Currency)
		}
	}
	slices.Sort(out)
	return out
}

// Positions returns all positions ordered by currency, then lot date,
// number and label, with uncosted positions first.
func (inv *Inventory) Positions() []Position {
	if inv == nil {
		return nil
	}
	out := make([]Position, 0, len(inv.entries))
	for key, e := range inv.entries {
		out = append(out, Position{Units: ast.Amount{Number: e.number, Currency: key.Currency}, Cost: e.cost})
	}
	slices.SortFunc(out, comparePositions)
	return out
}

// Lots returns the positions of currency held at a cost, oldest first.
func (inv *Inventory) Lots(currency string) []Position {
	var out []Position
	for key, e := range inv.entries {
		if key.Currency == currency && e.cost != nil {
			out = append(out, Position{Units: ast.Amount{Number: e.number, Currency: key.Currency}, Cost: e.cost})
		}
	}
	slices.SortFunc(out, comparePositions)
	return out
}

func comparePositions(a, b Position) int {
	if c := strings.Compare(a.Units.Currency, b.Units.Currency); c != 0 {
		return c
	}
	switch {
	case a.Cost == nil && b.Cost == nil:
		return 0
	case a.Cost == nil:
		return -1
	case b.Cost == nil:
		return 1
	}
	if c := a.Cost.Date.Compare(b.Cost.Date); c != 0 {
		return c
	}
	if c := strings.Compare(a.Cost.Currency, b.Cost.Currency); c != 0 {
		return c
	}
	if c := a.Cost.Number.Cmp(b.Cost.Number); c != 0 {
		return c
	}
	return strings.Compare(a.Cost.Label, b.Cost.Label)
}

// Reduce applies f to every position and sums the results by currency.
// It is the hook for unit, cost and value conversion.
func (inv *Inventory) Reduce(f func(Position) ast.Amount) SimpleInventory {
	out := SimpleInventory{}
	if inv == nil {
		return out
	}
	for key, e := range inv.entries {
		out.Add(f(Position{Units: ast.Amount{Number: e.number, Currency: key.Currency}, Cost: e.cost}))
	}
	return out
}

// Equal reports whether both inventories hold the same positions.
func (inv *Inventory) Equal(other *Inventory) bool {
	if inv.Len() != other.Len() {
		return false
	}
	for key, e := range inv.entries {
		o, ok := other.entries[key]
		if !ok || !o.number.Equal(e.number) {
			return false
		}
	}
	return true
}

// String renders the positions separated by commas.
func (inv *Inventory) String() string {
	positions := inv.Positions()
	parts := make([]string, len(positions))
	for i, p := range positions {
		parts[i] = p.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
