package budget

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/parser"
)

func parse(t *testing.T, source string) (Budgets, []error) {
	t.Helper()
	tree, err := parser.ParseString(context.Background(), source)
	assert.NoError(t, err)
	ast.SortDirectives(tree.Directives)
	return Parse(tree.Directives)
}

func TestCalculate(t *testing.T) {
	budgets, errs := parse(t, `
2024-01-01 custom "budget" Expenses:Food "monthly" 310 USD
`)
	assert.Equal(t, 0, len(errs))

	tests := []struct {
		name  string
		begin string
		end   string
		want  string
	}{
		{"whole month", "2024-01-01", "2024-02-01", "310"},
		{"ten days", "2024-01-01", "2024-01-11", "100"},
		{"before start", "2023-12-01", "2024-01-01", ""},
		{"february", "2024-02-01", "2024-03-01", "310"},
		{"one day in february", "2024-02-10", "2024-02-11", "10.68965517"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := budgets.Calculate("Expenses:Food", ast.MustDate(tt.begin), ast.MustDate(tt.end))
			if tt.want == "" {
				assert.True(t, got.IsEmpty())
				return
			}
			// Daily shares of February are inexact.
			assert.Equal(t, tt.want, got["USD"].Round(8).String())
		})
	}

	assert.True(t, budgets.Calculate("Expenses:Rent", ast.MustDate("2024-01-01"), ast.MustDate("2024-02-01")).IsEmpty())
}

func TestCalculateFollowsLatestBudget(t *testing.T) {
	budgets, _ := parse(t, `
2024-01-01 custom "budget" Expenses:Food "weekly" 70 USD
2024-01-08 custom "budget" Expenses:Food "daily" 20 USD
2024-01-01 custom "budget" Expenses:Food "yearly" 366 EUR
`)
	got := budgets.Calculate("Expenses:Food", ast.MustDate("2024-01-01"), ast.MustDate("2024-01-15"))
	assert.Equal(t, "210", got["USD"].String())
	assert.Equal(t, "14", got["EUR"].String())
}

func TestCalculateChildren(t *testing.T) {
	budgets, _ := parse(t, `
2024-01-01 custom "budget" Expenses "monthly" 100 USD
2024-01-01 custom "budget" Expenses:Food "monthly" 310 USD
2024-01-01 custom "budget" Expenses:Food:Snacks "daily" 1 USD
2024-01-01 custom "budget" Expenses:Foodstuff "daily" 1000 USD
`)
	got := budgets.CalculateChildren("Expenses:Food", ast.MustDate("2024-01-01"), ast.MustDate("2024-02-01"))
	assert.Equal(t, "341", got["USD"].String())

	got = budgets.CalculateChildren("Expenses", ast.MustDate("2024-01-01"), ast.MustDate("2024-01-02"))
	assert.Equal(t, "1014.2258064516129032", got["USD"].String())
}

func TestParseErrors(t *testing.T) {
	budgets, errs := parse(t, `
2024-01-01 custom "budget" Expenses:Food "fortnightly" 10 USD
2024-01-01 custom "budget" Expenses:Food "monthly"
2024-01-01 custom "other" Expenses:Food "monthly" 10 USD
`)
	assert.Equal(t, 0, len(budgets))
	assert.Equal(t, 2, len(errs))

	var berr *BudgetError
	assert.True(t, errors.As(errs[0], &berr))
	assert.Equal(t, "line 2: Invalid interval for budget entry", berr.Error())
	assert.True(t, errors.As(errs[1], &berr))
	assert.Equal(t, "line 3: Failed to parse budget entry", berr.Error())
}
