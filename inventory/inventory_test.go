package inventory

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
)

func lot(number, currency, date string) *ast.Cost {
	return &ast.Cost{Number: decimal.RequireFromString(number), Currency: currency, Date: ast.MustDate(date)}
}

func TestAddRemovesZero(t *testing.T) {
	inv := New()
	inv.AddAmount(ast.MustAmount("10", "USD"))
	inv.AddAmount(ast.MustAmount("-10", "USD"))
	assert.True(t, inv.IsEmpty())

	inv.AddAmount(ast.MustAmount("0", "EUR"))
	assert.Equal(t, 0, inv.Len())
}

func TestLotsAreDistinct(t *testing.T) {
	inv := New()
	inv.AddPosition(ast.MustAmount("10", "HOOL"), lot("500", "USD", "2024-01-01"))
	inv.AddPosition(ast.MustAmount("5", "HOOL"), lot("510", "USD", "2024-02-01"))
	inv.AddAmount(ast.MustAmount("3", "HOOL"))

	assert.Equal(t, 3, inv.Len())
	assert.True(t, inv.Units("HOOL").Equal(decimal.NewFromInt(18)))
	assert.Equal(t, 2, len(inv.Lots("HOOL")))

	inv.AddPosition(ast.MustAmount("-10", "HOOL"), lot("500", "USD", "2024-01-01"))
	assert.Equal(t, 2, inv.Len())
	assert.Equal(t, "(3 HOOL, 5 HOOL {510 USD, 2024-02-01})", inv.String())
}

func TestAddInventoryAndNeg(t *testing.T) {
	a := FromPositions(
		Position{Units: ast.MustAmount("10", "USD")},
		Position{Units: ast.MustAmount("2", "EUR")},
	)
	b := a.Neg()
	assert.True(t, b.Units("USD").Equal(decimal.NewFromInt(-10)))

	a.AddInventory(b)
	assert.True(t, a.IsEmpty())
}

func TestReduce(t *testing.T) {
	inv := New()
	inv.AddPosition(ast.MustAmount("10", "HOOL"), lot("5", "USD", "2024-01-01"))
	inv.AddAmount(ast.MustAmount("7", "USD"))

	atCost := inv.Reduce(func(p Position) ast.Amount {
		if p.Cost == nil {
			return p.Units
		}
		return ast.Amount{Number: p.Units.Number.Mul(p.Cost.Number), Currency: p.Cost.Currency}
	})
	assert.Equal(t, "57 USD", atCost.String())

	units := inv.Reduce(func(p Position) ast.Amount { return p.Units })
	assert.Equal(t, []string{"HOOL", "USD"}, units.Currencies())
}

func TestSimpleInventory(t *testing.T) {
	s := SimpleInventory{}
	s.Add(ast.MustAmount("1.50", "USD"))
	s.Add(ast.MustAmount("-1.5", "USD"))
	assert.True(t, s.IsEmpty())

	s.Add(ast.MustAmount("3", "EUR"))
	other := SimpleInventory{"EUR": decimal.NewFromInt(3)}
	assert.True(t, s.Equal(other))
	assert.True(t, s.Neg().Inventory().Equal(FromPositions(Position{Units: ast.MustAmount("-3", "EUR")})))
}

func TestCloneIsIndependent(t *testing.T) {
	inv := FromPositions(Position{Units: ast.MustAmount("1", "USD")})
	c := inv.Clone()
	c.AddAmount(ast.MustAmount("1", "USD"))
	assert.True(t, inv.Units("USD").Equal(decimal.NewFromInt(1)))
	assert.True(t, c.Units("USD").Equal(decimal.NewFromInt(2)))
}
