// Package conversion reduces inventories to plain per-currency sums.
//
// A Conversion decides what each position is worth: its units, its cost
// basis, its market value, or its value in one of a list of target
// currencies. Arithmetic stays in decimals throughout.
package conversion

import (
	"strings"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
	"github.com/robinvdvleuten/beanledger/prices"
)

// Conversion maps a position to the amount it is worth. date selects the
// prices used; the zero date uses the latest ones.
type Conversion interface {
	Position(p inventory.Position, pm *prices.PriceMap, date ast.Date) ast.Amount
	String() string
}

// Apply reduces inv with c.
func Apply(c Conversion, inv *inventory.Inventory, pm *prices.PriceMap, date ast.Date) inventory.SimpleInventory {
	return inv.Reduce(func(p inventory.Position) ast.Amount {
		return c.Position(p, pm, date)
	})
}

type unitsConversion struct{}

// Units drops the cost of every position.
var Units Conversion = unitsConversion{}

func (unitsConversion) Position(p inventory.Position, _ *prices.PriceMap, _ ast.Date) ast.Amount {
	return p.Units
}

func (unitsConversion) String() string { return "units" }

type costConversion struct{}

// AtCost values positions held at a cost by their cost basis. Positions
// without a cost keep their units.
var AtCost Conversion = costConversion{}

func (costConversion) Position(p inventory.Position, _ *prices.PriceMap, _ ast.Date) ast.Amount {
	return Cost(p)
}

func (costConversion) String() string { return "at_cost" }

type valueConversion struct{}

// AtValue values positions held at a cost at the market price of the
// commodity in the cost currency, falling back to the cost basis when no
// price is known.
var AtValue Conversion = valueConversion{}

func (valueConversion) Position(p inventory.Position, pm *prices.PriceMap, date ast.Date) ast.Amount {
	return Value(p, pm, date)
}

func (valueConversion) String() string { return "at_value" }

// Target converts each position to the first currency in the list that it
// can reach through the price map, directly or over several hops.
// Positions that reach none keep their units.
type Target []string

// Position implements Conversion.
func (t Target) Position(p inventory.Position, pm *prices.PriceMap, date ast.Date) ast.Amount {
	for _, currency := range t {
		if a, ok := Convert(p, currency, pm, date); ok {
			return a
		}
	}
	return p.Units
}

func (t Target) String() string { return strings.Join(t, ",") }

// Parse reads a conversion name: "units", "at_cost", "at_value", or a
// comma separated list of target currencies. The empty string means
// at_cost.
func Parse(s string) Conversion {
	switch s {
	case "", "at_cost", "cost":
		return AtCost
	case "units":
		return Units
	case "at_value", "value", "market":
		return AtValue
	}
	var t Target
	for _, c := range strings.Split(s, ",") {
		if c = strings.TrimSpace(c); c != "" {
			t = append(t, c)
		}
	}
	if len(t) == 0 {
		return AtCost
	}
	return t
}

// Cost returns the cost basis of p, or its units when it has no cost.
func Cost(p inventory.Position) ast.Amount {
	if p.Cost == nil {
		return p.Units
	}
	return ast.Amount{Number: p.Units.Number.Mul(p.Cost.Number), Currency: p.Cost.Currency}
}

// Value returns the market value of p in its cost currency.
func Value(p inventory.Position, pm *prices.PriceMap, date ast.Date) ast.Amount {
	if p.Cost == nil {
		return p.Units
	}
	if pm != nil {
		if rate, ok := pm.GetPrice(prices.Pair{Base: p.Units.Currency, Quote: p.Cost.Currency}, date); ok {
			return ast.Amount{Number: p.Units.Number.Mul(rate), Currency: p.Cost.Currency}
		}
	}
	return Cost(p)
}

// Convert expresses p in currency. It tries the commodity itself first and
// then, for positions held at a cost, the cost value.
func Convert(p inventory.Position, currency string, pm *prices.PriceMap, date ast.Date) (ast.Amount, bool) {
	if p.Units.Currency == currency {
		return p.Units, true
	}
	if pm == nil {
		return ast.Amount{}, false
	}
	if rate, ok := pm.GetNestedPrice(prices.Pair{Base: p.Units.Currency, Quote: currency}, date); ok {
		return ast.Amount{Number: p.Units.Number.Mul(rate), Currency: currency}, true
	}
	if p.Cost != nil {
		cost := Cost(p)
		if cost.Currency == currency {
			return cost, true
		}
		if rate, ok := pm.GetNestedPrice(prices.Pair{Base: cost.Currency, Quote: currency}, date); ok {
			return ast.Amount{Number: cost.Number.Mul(rate), Currency: currency}, true
		}
	}
	return ast.Amount{}, false
}
