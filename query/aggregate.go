package query

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
)

// aggregator accumulates the values of one aggregate over a group.
type aggregator interface {
	update(v any)
	result() any
}

// aggregateSpec returns the result type and state constructor of an
// aggregate applied to an argument of the given type.
type aggregateSpec func(arg Type) (Type, func() aggregator, error)

var aggregates = map[string]aggregateSpec{
	"count": func(Type) (Type, func() aggregator, error) {
		return TypeInt, func() aggregator { return &countAgg{} }, nil
	},
	"sum": func(arg Type) (Type, func() aggregator, error) {
		switch arg {
		case TypeInt:
			return TypeInt, func() aggregator { return &sumIntAgg{} }, nil
		case TypeDecimal:
			return TypeDecimal, func() aggregator { return &sumDecimalAgg{} }, nil
		case TypeAmount, TypePosition, TypeInventory:
			return TypeInventory, func() aggregator { return &sumInventoryAgg{inv: inventory.New()} }, nil
		}
		return 0, nil, fmt.Errorf("sum is not defined for %s", arg)
	},
	"first": func(arg Type) (Type, func() aggregator, error) {
		return arg, func() aggregator { return &firstAgg{} }, nil
	},
	"last": func(arg Type) (Type, func() aggregator, error) {
		return arg, func() aggregator { return &lastAgg{} }, nil
	},
	"min": func(arg Type) (Type, func() aggregator, error) {
		return arg, func() aggregator { return &extremeAgg{sign: -1} }, nil
	},
	"max": func(arg Type) (Type, func() aggregator, error) {
		return arg, func() aggregator { return &extremeAgg{sign: 1} }, nil
	},
}

type countAgg struct{ n int64 }

// count(*) is updated with a non-nil marker for every row.
func (a *countAgg) update(v any) {
	if v != nil {
		a.n++
	}
}
func (a *countAgg) result() any { return a.n }

type sumIntAgg struct{ n int64 }

func (a *sumIntAgg) update(v any) {
	if i, ok := v.(int64); ok {
		a.n += i
	}
}
func (a *sumIntAgg) result() any { return a.n }

type sumDecimalAgg struct{ n decimal.Decimal }

func (a *sumDecimalAgg) update(v any) {
	if d, ok := v.(decimal.Decimal); ok {
		a.n = a.n.Add(d)
	}
}
func (a *sumDecimalAgg) result() any { return a.n }

type sumInventoryAgg struct{ inv *inventory.Inventory }

func (a *sumInventoryAgg) update(v any) {
	switch x := v.(type) {
	case ast.Amount:
		a.inv.AddAmount(x)
	case inventory.Position:
		a.inv.AddPosition(x.Units, x.Cost)
	case *inventory.Inventory:
		a.inv.AddInventory(x)
	}
}
func (a *sumInventoryAgg) result() any { return a.inv }

type firstAgg struct {
	v   any
	set bool
}

func (a *firstAgg) update(v any) {
	if !a.set {
		a.v, a.set = v, true
	}
}
func (a *firstAgg) result() any { return a.v }

type lastAgg struct{ v any }

func (a *lastAgg) update(v any) { a.v = v }
func (a *lastAgg) result() any  { return a.v }

// extremeAgg keeps the smallest (sign -1) or largest (sign 1) non-NULL value.
type extremeAgg struct {
	sign int
	v    any
}

func (a *extremeAgg) update(v any) {
	if v == nil {
		return
	}
	if a.v == nil || compareValues(v, a.v)*a.sign > 0 {
		a.v = v
	}
}
func (a *extremeAgg) result() any { return a.v }
