package prices

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
)

func price(date, base, number, quote string) *ast.Price {
	return ast.NewPrice(ast.MustDate(date), base, ast.MustAmount(number, quote))
}

func TestGetPrice(t *testing.T) {
	m := Build([]ast.Directive{
		price("2024-01-01", "HOOL", "500", "USD"),
		price("2024-02-01", "HOOL", "520", "USD"),
		price("2024-03-01", "HOOL", "540", "USD"),
	})

	tests := []struct {
		name  string
		date  string
		want  string
		found bool
	}{
		{"before first", "2023-12-31", "0", false},
		{"exact", "2024-02-01", "520", true},
		{"between", "2024-02-15", "520", true},
		{"after last", "2025-01-01", "540", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ok := m.GetPrice(Pair{"HOOL", "USD"}, ast.MustDate(tt.date))
			assert.Equal(t, tt.found, ok)
			assert.True(t, rate.Equal(decimal.RequireFromString(tt.want)), "got %s", rate)
		})
	}

	rate, ok := m.GetPrice(Pair{"USD", "USD"}, ast.MustDate("1900-01-01"))
	assert.True(t, ok)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))

	latest, ok := m.GetLatestPrice(Pair{"HOOL", "USD"})
	assert.True(t, ok)
	assert.Equal(t, "540", latest.String())
}

func TestInverseIsExact(t *testing.T) {
	m := Build([]ast.Directive{price("2024-01-01", "EUR", "1.25", "USD")})

	fwd, ok := m.GetPrice(Pair{"EUR", "USD"}, ast.MustDate("2024-01-01"))
	assert.True(t, ok)
	inv, ok := m.GetPrice(Pair{"USD", "EUR"}, ast.MustDate("2024-01-01"))
	assert.True(t, ok)
	assert.True(t, inv.Equal(decimal.NewFromInt(1).Div(fwd)))
	assert.Equal(t, "0.8", inv.String())
}

func TestZeroRateHasNoInverse(t *testing.T) {
	m := Build([]ast.Directive{price("2024-01-01", "JUNK", "0", "USD")})

	rate, ok := m.GetPrice(Pair{"JUNK", "USD"}, ast.MustDate("2024-01-02"))
	assert.True(t, ok)
	assert.True(t, rate.IsZero())

	_, ok = m.GetPrice(Pair{"USD", "JUNK"}, ast.MustDate("2024-01-02"))
	assert.False(t, ok)
}

func TestLastRatePerDayWins(t *testing.T) {
	m := Build([]ast.Directive{
		price("2024-01-01", "EUR", "1.10", "USD"),
		price("2024-01-01", "EUR", "1.12", "USD"),
		price("2024-01-02", "EUR", "1.15", "USD"),
	})

	points := m.GetAllPrices(Pair{"EUR", "USD"})
	assert.Equal(t, 2, len(points))
	assert.Equal(t, "1.12", points[0].Rate.String())
	assert.Equal(t, "1.15", points[1].Rate.String())
}

func TestCommodityPairs(t *testing.T) {
	m := Build([]ast.Directive{
		price("2024-01-01", "EUR", "1.1", "USD"),
		price("2024-01-01", "HOOL", "500", "USD"),
		price("2024-01-01", "GBP", "1.2", "EUR"),
	})

	assert.Equal(t, []Pair{{"EUR", "USD"}, {"GBP", "EUR"}, {"HOOL", "USD"}}, m.CommodityPairs(nil))
	assert.Equal(t,
		[]Pair{{"EUR", "USD"}, {"GBP", "EUR"}, {"HOOL", "USD"}, {"USD", "EUR"}},
		m.CommodityPairs([]string{"EUR", "USD"}),
	)
}

func TestGetNestedPrice(t *testing.T) {
	m := Build([]ast.Directive{
		price("2024-01-01", "EUR", "1.1", "USD"),
		price("2024-01-01", "GBP", "1.2", "EUR"),
		price("2024-01-01", "HOOL", "10", "GBP"),
	})
	date := ast.MustDate("2024-01-01")

	tests := []struct {
		name  string
		pair  Pair
		want  string
		found bool
	}{
		{"direct", Pair{"EUR", "USD"}, "1.1", true},
		{"two hops", Pair{"GBP", "USD"}, "1.32", true},
		{"three hops", Pair{"HOOL", "USD"}, "13.2", true},
		{"unknown commodity", Pair{"CHF", "USD"}, "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ok := m.GetNestedPrice(tt.pair, date)
			assert.Equal(t, tt.found, ok)
			assert.True(t, rate.Equal(decimal.RequireFromString(tt.want)), "got %s", rate)
		})
	}

	assert.Equal(t, []string{"HOOL", "GBP", "EUR", "USD"}, m.Path(Pair{"HOOL", "USD"}, date))

	_, ok := m.GetNestedPrice(Pair{"GBP", "USD"}, ast.MustDate("2023-12-31"))
	assert.False(t, ok)
}
