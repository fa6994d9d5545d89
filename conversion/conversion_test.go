package conversion

import (
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
	"github.com/robinvdvleuten/beanledger/prices"
)

func priceMap() *prices.PriceMap {
	return prices.Build([]ast.Directive{
		ast.NewPrice(ast.MustDate("2024-01-01"), "HOOL", ast.MustAmount("600", "USD")),
		ast.NewPrice(ast.MustDate("2024-02-01"), "HOOL", ast.MustAmount("650", "USD")),
		ast.NewPrice(ast.MustDate("2024-01-01"), "USD", ast.MustAmount("0.9", "EUR")),
		ast.NewPrice(ast.MustDate("2024-01-01"), "GBP", ast.MustAmount("1.2", "EUR")),
	})
}

func holdings() *inventory.Inventory {
	return inventory.FromPositions(
		inventory.Position{
			Units: ast.MustAmount("10", "HOOL"),
			Cost:  &ast.Cost{Number: ast.MustAmount("500", "USD").Number, Currency: "USD", Date: ast.MustDate("2023-12-01")},
		},
		inventory.Position{Units: ast.MustAmount("100", "USD")},
		inventory.Position{Units: ast.MustAmount("5", "CHF")},
	)
}

func TestApply(t *testing.T) {
	tests := []struct {
		name       string
		conversion Conversion
		date       string
		want       string
	}{
		{"units", Units, "2024-01-15", "(5 CHF, 10 HOOL, 100 USD)"},
		{"at cost", AtCost, "2024-01-15", "(5 CHF, 5100 USD)"},
		{"at value", AtValue, "2024-01-15", "(5 CHF, 6100 USD)"},
		{"at value later", AtValue, "2024-02-15", "(5 CHF, 6600 USD)"},
		{"at value before any price", AtValue, "2023-12-15", "(5 CHF, 5100 USD)"},
		{"at value latest", AtValue, "", "(5 CHF, 6600 USD)"},
		{"target", Target{"USD"}, "2024-01-15", "(5 CHF, 6100 USD)"},
		{"target over two hops", Target{"EUR"}, "2024-01-15", "(5 CHF, 5490 EUR)"},
		{"first reachable target", Target{"JPY", "USD"}, "2024-01-15", "(5 CHF, 6100 USD)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var date ast.Date
			if tt.date != "" {
				date = ast.MustDate(tt.date)
			}
			got := Apply(tt.conversion, holdings(), priceMap(), date)
			assert.Equal(t, tt.want, got.Inventory().String())
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "at_cost"},
		{"at_cost", "at_cost"},
		{"units", "units"},
		{"at_value", "at_value"},
		{"USD", "USD"},
		{"USD, EUR", "USD,EUR"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in).String())
		})
	}
}

func TestConvertFallsBackToCost(t *testing.T) {
	pm := prices.Build([]ast.Directive{
		ast.NewPrice(ast.MustDate("2024-01-01"), "USD", ast.MustAmount("0.9", "EUR")),
	})
	p := inventory.Position{
		Units: ast.MustAmount("2", "XYZ"),
		Cost:  &ast.Cost{Number: ast.MustAmount("50", "USD").Number, Currency: "USD"},
	}
	got, ok := Convert(p, "EUR", pm, ast.MustDate("2024-01-02"))
	assert.True(t, ok)
	assert.Equal(t, "90 EUR", got.String())

	_, ok = Convert(inventory.Position{Units: ast.MustAmount("1", "XYZ")}, "EUR", pm, ast.MustDate("2024-01-02"))
	assert.False(t, ok)
}
