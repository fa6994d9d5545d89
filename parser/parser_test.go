package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
)

func mustParse(t *testing.T, input string) *ast.AST {
	t.Helper()
	result, err := ParseString(context.Background(), input)
	assert.NoError(t, err)
	return result
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestParseTransaction(t *testing.T) {
	result := mustParse(t, `
2014-05-05 * "Cafe Mogador" "Lamb tagine with wine" #dinner ^receipt-42
  invoice: "INV-1"
  Liabilities:CreditCard:CapitalOne  -37.45 USD
    category: "food"
  Expenses:Restaurant
`)
	assert.Equal(t, 1, len(result.Directives))
	txn := result.Directives[0].(*ast.Transaction)

	assert.Equal(t, ast.MustDate("2014-05-05"), txn.Date)
	assert.Equal(t, "*", txn.Flag)
	assert.Equal(t, "Cafe Mogador", txn.Payee)
	assert.Equal(t, "Lamb tagine with wine", txn.Narration)
	assert.Equal(t, []ast.Tag{"dinner"}, txn.Tags)
	assert.Equal(t, []ast.Link{"receipt-42"}, txn.Links)
	assert.Equal(t, 2, txn.Pos.Line)

	v, ok := txn.Metadata.Get("invoice")
	assert.True(t, ok)
	assert.Equal(t, "INV-1", v.String())

	assert.Equal(t, 2, len(txn.Postings))
	first := txn.Postings[0]
	assert.Equal(t, "Liabilities:CreditCard:CapitalOne", first.Account)
	assert.True(t, first.Units.Number.Equal(dec("-37.45")))
	assert.Equal(t, "USD", first.Units.Currency)
	assert.True(t, first.Metadata.Has("category"))

	assert.Equal(t, "Expenses:Restaurant", txn.Postings[1].Account)
	assert.Zero(t, txn.Postings[1].Units)
}

func TestParseTransactionFlags(t *testing.T) {
	tests := []struct {
		name  string
		input string
		flag  string
	}{
		{"Star", `2024-01-01 * "x"`, "*"},
		{"Bang", `2024-01-01 ! "x"`, "!"},
		{"Txn", `2024-01-01 txn "x"`, "*"},
		{"Letter", `2024-01-01 P "x"`, "P"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := mustParse(t, tt.input+"\n  Assets:A  1 USD\n  Assets:B\n")
			assert.Equal(t, tt.flag, result.Directives[0].(*ast.Transaction).Flag)
		})
	}
}

func TestParseNarrationOnly(t *testing.T) {
	result := mustParse(t, "2024-01-01 * \"Groceries\"\n")
	txn := result.Directives[0].(*ast.Transaction)
	assert.Equal(t, "", txn.Payee)
	assert.Equal(t, "Groceries", txn.Narration)
}

func TestParseCostAndPrice(t *testing.T) {
	result := mustParse(t, `
2014-02-11 * "Buy"
  Assets:Stock   10 HOOL {518.73 USD, 2014-02-11, "lot1"}
  Assets:Cash
2014-03-01 * "Sell"
  Assets:Stock  -5 HOOL {} @ 600 USD
  Assets:Cash
2014-03-02 * "Total"
  Assets:Stock   4 HOOL {{100 USD}} @@ 120 USD
  Assets:Cash
2014-03-03 * "Compound"
  Assets:Stock   2 HOOL {10 # 5 USD, *}
  Assets:Cash
`)
	buy := result.Directives[0].(*ast.Transaction).Postings[0]
	assert.True(t, buy.Cost.NumberPer.Equal(dec("518.73")))
	assert.Equal(t, "USD", buy.Cost.Currency)
	assert.Equal(t, ast.MustDate("2014-02-11"), buy.Cost.Date)
	assert.Equal(t, "lot1", buy.Cost.Label)

	sell := result.Directives[1].(*ast.Transaction).Postings[0]
	assert.True(t, sell.Cost.IsEmpty())
	assert.True(t, sell.Price.Number.Equal(dec("600")))
	assert.Zero(t, sell.TotalPrice)

	total := result.Directives[2].(*ast.Transaction).Postings[0]
	assert.True(t, total.Cost.NumberTotal.Equal(dec("100")))
	assert.Zero(t, total.Cost.NumberPer)
	assert.True(t, total.TotalPrice.Number.Equal(dec("120")))
	assert.True(t, total.Price.Number.Equal(dec("30")))

	compound := result.Directives[3].(*ast.Transaction).Postings[0]
	assert.True(t, compound.Cost.NumberPer.Equal(dec("10")))
	assert.True(t, compound.Cost.NumberTotal.Equal(dec("5")))
	assert.True(t, compound.Cost.Merge)
}

func TestParseExpressions(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"2 + 3 * 4", "14"},
		{"(2 + 3) * 4", "20"},
		{"-5", "-5"},
		{"-(1 + 2)", "-3"},
		{"10 / 4", "2.5"},
		{"1,234.50", "1234.5"},
		{"100 - 1.5", "98.5"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			result := mustParse(t, "2024-01-01 * \"x\"\n  Assets:A  "+tt.expr+" USD\n  Assets:B\n")
			got := result.Directives[0].(*ast.Transaction).Postings[0].Units.Number
			assert.True(t, got.Equal(dec(tt.want)), "got %s", got)
		})
	}
}

func TestParseDivisionByZero(t *testing.T) {
	_, err := ParseString(context.Background(), "2024-01-01 * \"x\"\n  Assets:A  1 / 0 USD\n")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "division by zero")
}

func TestParseDirectives(t *testing.T) {
	result := mustParse(t, `
option "title" "Test"
option "operating_currency" "USD"
include "other.beancount"
plugin "auto_accounts"
plugin "implicit_prices" "config"

2014-01-01 open Assets:Cash USD,EUR "FIFO"
2014-01-01 commodity USD
  name: "US Dollar"
2014-01-02 balance Assets:Cash 100.00 ~ 0.01 USD
2014-01-02 pad Assets:Cash Equity:Opening-Balances
2014-01-03 note Assets:Cash "Called the bank"
2014-01-04 document Assets:Cash "/docs/statement.pdf" #bank
2014-01-05 event "location" "Paris"
2014-01-06 query "cash" "SELECT account"
2014-01-07 price HOOL 579.18 USD
2014-01-08 custom "budget" Expenses:Food "monthly" 310 USD TRUE 2014-01-01
2014-12-31 close Assets:Cash
`)
	assert.Equal(t, 2, len(result.Options))
	assert.Equal(t, "title", result.Options[0].Name)
	assert.Equal(t, "Test", result.Options[0].Value)
	assert.Equal(t, 1, len(result.Includes))
	assert.Equal(t, "other.beancount", result.Includes[0].Filename)
	assert.Equal(t, 2, len(result.Plugins))
	assert.Equal(t, "config", result.Plugins[1].Config)

	kinds := make([]ast.Kind, len(result.Directives))
	for i, d := range result.Directives {
		kinds[i] = d.Kind()
	}
	assert.Equal(t, []ast.Kind{
		ast.KindOpen, ast.KindCommodity, ast.KindBalance, ast.KindPad, ast.KindNote,
		ast.KindDocument, ast.KindEvent, ast.KindQuery, ast.KindPrice, ast.KindCustom, ast.KindClose,
	}, kinds)

	open := result.Directives[0].(*ast.Open)
	assert.Equal(t, []string{"USD", "EUR"}, open.Currencies)
	assert.Equal(t, ast.BookingFIFO, open.BookingMethod)

	balance := result.Directives[2].(*ast.Balance)
	assert.True(t, balance.Tolerance.Equal(dec("0.01")))
	assert.True(t, balance.Amount.Number.Equal(dec("100.00")))

	doc := result.Directives[5].(*ast.Document)
	assert.Equal(t, []ast.Tag{"bank"}, doc.Tags)

	custom := result.Directives[9].(*ast.Custom)
	assert.Equal(t, "budget", custom.Type)
	assert.Equal(t, 5, len(custom.Values))
	assert.Equal(t, ast.MetaAccount, custom.Values[0].Kind)
	assert.Equal(t, ast.MetaString, custom.Values[1].Kind)
	assert.Equal(t, ast.MetaAmount, custom.Values[2].Kind)
	assert.Equal(t, ast.MetaBool, custom.Values[3].Kind)
	assert.Equal(t, ast.MetaDate, custom.Values[4].Kind)

	digits, ok := result.DisplayContext.Precision("USD")
	assert.True(t, ok)
	assert.Equal(t, int32(2), digits)
}

func TestParseMetadataValues(t *testing.T) {
	result := mustParse(t, `
2024-01-01 open Assets:Cash
  str: "hello"
  date: 2024-02-01
  account: Assets:Other
  currency: USD
  number: 42
  amount: 10.5 EUR
  flag: TRUE
  tag: #trip
  price: "keywords are valid keys"
`)
	m := result.Directives[0].GetMetadata()
	tests := []struct {
		key  string
		kind ast.MetaKind
	}{
		{"str", ast.MetaString},
		{"date", ast.MetaDate},
		{"account", ast.MetaAccount},
		{"currency", ast.MetaCurrency},
		{"number", ast.MetaNumber},
		{"amount", ast.MetaAmount},
		{"flag", ast.MetaBool},
		{"tag", ast.MetaTag},
		{"price", ast.MetaString},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, ok := m.Get(tt.key)
			assert.True(t, ok)
			assert.Equal(t, tt.kind, v.Kind)
		})
	}
}

func TestParsePushPop(t *testing.T) {
	result := mustParse(t, `
pushtag #trip
pushmeta location: "Paris"
2024-01-01 * "Dinner"
  Expenses:Food  10 EUR
  Assets:Cash
popmeta location:
poptag #trip
2024-01-02 * "Home"
  Expenses:Food  10 EUR
  Assets:Cash
`)
	first := result.Directives[0].(*ast.Transaction)
	assert.Equal(t, []ast.Tag{"trip"}, first.Tags)
	assert.True(t, first.Metadata.Has("location"))

	second := result.Directives[1].(*ast.Transaction)
	assert.Equal(t, 0, len(second.Tags))
	assert.False(t, second.Metadata.Has("location"))
}

func TestParseUnbalancedPush(t *testing.T) {
	_, err := ParseString(context.Background(), "pushtag #never-popped\n")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unbalanced pushed tag #never-popped")

	_, err = ParseString(context.Background(), "poptag #absent\n")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "absent tag")
}

func TestParseRecoversAfterError(t *testing.T) {
	input := `
2024-01-01 open Assets:Cash
2024-01-02 open lowercase
  meta: "skipped with the broken entry"
2024-01-03 bogus
2024-01-04 open Assets:Bank
  Assets:NotAKey
`
	result, errs := Parse(context.Background(), "main.beancount", []byte(input))
	assert.Equal(t, 3, len(errs))
	assert.Equal(t, 1, len(result.Directives))
	assert.Equal(t, "Assets:Cash", result.Directives[0].(*ast.Open).Account)

	var perr *ParseError
	assert.True(t, errors.As(errs[0], &perr))
	assert.Equal(t, "main.beancount", perr.Pos.Filename)
	assert.Equal(t, 3, perr.Pos.Line)
	assert.Equal(t, "lowercase", perr.Text())
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"InvalidDate", "2024-02-30 open Assets:Cash\n", "invalid date"},
		{"UnterminatedString", "2024-01-01 note Assets:Cash \"oops\n", "unterminated string"},
		{"BadBooking", "2024-01-01 open Assets:Cash USD \"AVERAGE\"\n", "unknown booking method"},
		{"MissingCurrency", "2024-01-01 price HOOL 10\n", "expected currency"},
		{"TrailingToken", "2024-01-01 close Assets:Cash USD\n", "unexpected IDENT"},
		{"IndentedTopLevel", "  2024-01-01 close Assets:Cash\n", "unexpected indented line"},
		{"TooManyStrings", "2024-01-01 * \"a\" \"b\" \"c\"\n", "too many strings"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseString(context.Background(), tt.input)
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestParseIgnoresOutlineAndComments(t *testing.T) {
	result := mustParse(t, `
* Accounts
; a comment
2024-01-01 open Assets:Cash ; trailing comment
** Nested heading
#+TITLE: org header
`)
	assert.Equal(t, 1, len(result.Directives))
}

func TestParseCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, errs := Parse(ctx, "", []byte("2024-01-01 open Assets:Cash\n"))
	assert.Equal(t, 1, len(errs))
	assert.True(t, errors.Is(errs[0], context.Canceled))
}
