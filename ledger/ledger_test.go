package ledger

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/dates"
	"github.com/robinvdvleuten/beanledger/filter"
	"github.com/robinvdvleuten/beanledger/prices"
	"github.com/robinvdvleuten/beanledger/validation"
	"github.com/robinvdvleuten/beanledger/writer"
)

const source = `option "title" "Test"
option "operating_currency" "USD"

2024-01-01 custom "fava-option" "insert-entry" "Expenses:Food"

2024-01-01 open Assets:Cash USD
2024-01-01 open Expenses:Food
2024-01-01 open Expenses:Rent
2024-01-01 open Income:Salary

2024-01-01 custom "budget" Expenses:Food "monthly" 310.00 USD

2024-01-05 * "Employer" "Salary" #work
  Assets:Cash  1000.00 USD
  Income:Salary  -1000.00 USD

2024-01-10 * "Grocer" "Groceries"
  Expenses:Food  50.00 USD
  Assets:Cash  -50.00 USD

2024-01-20 price EUR 1.10 USD

2024-02-01 * "Landlord" "Rent"
  Expenses:Rent  500.00 USD
  Assets:Cash  -500.00 USD

2024-02-15 * "Grocer" "Groceries"
  Expenses:Food  20.00 USD
  Assets:Cash  -20.00 USD

2024-02-20 price EUR 1.20 USD

2024-03-01 balance Assets:Cash 430.00 USD

2024-03-01 query "food" "SELECT account, sum(position) AS total WHERE account ~ 'Food' GROUP BY account"
`

func setup(t *testing.T) (*Ledger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.beancount")
	assert.NoError(t, os.WriteFile(path, []byte(source), 0o644))

	l := New(path, WithToday(func() ast.Date { return ast.MustDate("2024-03-10") }))
	t.Cleanup(func() { _ = l.Close() })
	assert.NoError(t, l.Load(context.Background()))
	assert.Equal(t, 0, len(l.Errors()), "%v", l.Errors())
	return l, path
}

func units(t *testing.T, l *Ledger, account, currency string) decimal.Decimal {
	t.Helper()
	n, ok := l.Tree().Get(account)
	assert.True(t, ok, "missing %s", account)
	return n.BalanceChildren.Units(currency)
}

func transaction(t *testing.T, l *Ledger, date, narration string) *ast.Transaction {
	t.Helper()
	for _, d := range l.AllEntries() {
		if txn, ok := d.(*ast.Transaction); ok && txn.Date.String() == date && txn.Narration == narration {
			return txn
		}
	}
	t.Fatalf("no transaction %q on %s", narration, date)
	return nil
}

func TestLoad(t *testing.T) {
	l, path := setup(t)

	assert.Equal(t, []string{path}, l.Files())
	assert.Equal(t, "Test", l.Options().Title)
	assert.NoError(t, l.Err())
	assert.True(t, units(t, l, "Assets:Cash", "USD").Equal(decimal.NewFromInt(430)))
	assert.Equal(t, []prices.Pair{{Base: "EUR", Quote: "USD"}}, l.CommodityPairs())

	rules := l.Config().InsertEntry
	assert.Equal(t, 1, len(rules))
	assert.Equal(t, 4, rules[0].Line)

	begin, end, ok := l.DateRange()
	assert.True(t, ok)
	assert.Equal(t, ast.MustDate("2024-01-05"), begin)
	assert.Equal(t, ast.MustDate("2024-02-21"), end)
}

func TestLoadMissingFile(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "missing.beancount"))
	assert.Error(t, l.Load(context.Background()))

	err := l.Filter(context.Background(), Filters{Time: "2024"})
	assert.True(t, errors.Is(err, ErrNotLoaded))
}

func TestFilter(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	assert.NoError(t, l.Filter(ctx, Filters{Time: " 2024-02 "}))
	assert.Equal(t, Filters{Time: "2024-02"}, l.Filters())
	assert.Equal(t, &dates.DateRange{Begin: ast.MustDate("2024-02-01"), End: ast.MustDate("2024-03-01")}, l.TimeRange())

	// January's groceries are summarised into previous earnings.
	assert.True(t, units(t, l, "Expenses:Food", "USD").Equal(decimal.NewFromInt(20)))
	assert.True(t, units(t, l, "Expenses:Rent", "USD").Equal(decimal.NewFromInt(500)))
	assert.True(t, units(t, l, "Assets:Cash", "USD").Equal(decimal.NewFromInt(430)))

	tree := l.Tree()
	assert.NoError(t, l.Filter(ctx, Filters{Time: "2024-02"}))
	assert.True(t, tree == l.Tree(), "unchanged filters rebuild the tree")

	t.Run("Invalid", func(t *testing.T) {
		err := l.Filter(ctx, Filters{Time: "not a date"})
		var fe *filter.FilterError
		assert.True(t, errors.As(err, &fe), "%v", err)
		assert.Equal(t, Filters{Time: "2024-02"}, l.Filters())
	})

	t.Run("Account", func(t *testing.T) {
		assert.NoError(t, l.Filter(ctx, Filters{Account: "Expenses:Rent"}))
		var txns int
		for _, d := range l.Entries() {
			if _, ok := d.(*ast.Transaction); ok {
				txns++
			}
		}
		assert.Equal(t, 1, txns)
		assert.Zero(t, l.TimeRange())
	})
}

func TestFilterSurvivesReload(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	assert.NoError(t, l.Filter(ctx, Filters{Time: "2024-02"}))
	assert.NoError(t, l.Load(ctx))
	assert.Equal(t, Filters{Time: "2024-02"}, l.Filters())
	assert.True(t, units(t, l, "Expenses:Food", "USD").Equal(decimal.NewFromInt(20)))
}

func TestAccountJournal(t *testing.T) {
	l, _ := setup(t)

	var balances []string
	for _, row := range l.AccountJournal("Expenses", true) {
		if _, ok := row.Directive.(*ast.Transaction); ok {
			balances = append(balances, row.Balance.Units("USD").String())
		}
	}
	assert.Equal(t, []string{"50", "550", "570"}, balances)
}

func TestIntervalBalances(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	ranges := l.IntervalRanges(dates.Month)
	assert.Equal(t, []dates.DateRange{
		{Begin: ast.MustDate("2024-01-01"), End: ast.MustDate("2024-02-01")},
		{Begin: ast.MustDate("2024-02-01"), End: ast.MustDate("2024-03-01")},
	}, ranges)

	tests := []struct {
		name       string
		accumulate bool
		want       []int64
	}{
		{name: "PerInterval", want: []int64{20, 50}},
		{name: "Accumulated", accumulate: true, want: []int64{70, 50}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			balances := l.IntervalBalances(ctx, dates.Month, "Expenses", test.accumulate)
			assert.Equal(t, len(test.want), len(balances))
			for i, b := range balances {
				n, ok := b.Tree.Get("Expenses:Food")
				assert.True(t, ok)
				assert.True(t, n.Balance.Units("USD").Equal(decimal.NewFromInt(test.want[i])), "%s: %s", b.Range.Begin, n.Balance)
				_, ok = b.Tree.Get("Expenses:Rent")
				assert.True(t, ok, "every account is present")
			}
		})
	}
}

func TestPrices(t *testing.T) {
	l, _ := setup(t)

	assert.Equal(t, 2, len(l.Prices("EUR", "USD")))

	assert.NoError(t, l.Filter(context.Background(), Filters{Time: "2024-02"}))
	points := l.Prices("EUR", "USD")
	assert.Equal(t, 1, len(points))
	assert.Equal(t, ast.MustDate("2024-02-20"), points[0].Date)
	assert.True(t, points[0].Rate.Equal(decimal.RequireFromString("1.20")))
}

func TestBudget(t *testing.T) {
	l, _ := setup(t)

	got := l.Budget("Expenses:Food", ast.MustDate("2024-01-01"), ast.MustDate("2024-02-01"), false)
	assert.True(t, got["USD"].Equal(decimal.NewFromInt(310)), "%s", got)

	got = l.Budget("Expenses", ast.MustDate("2024-01-01"), ast.MustDate("2024-01-11"), true)
	assert.True(t, got["USD"].Equal(decimal.NewFromInt(100)), "%s", got)
}

func TestQuery(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		text      string
		numberify bool
		columns   []string
		rows      [][]string
		output    string
	}{
		{
			name:    "Select",
			text:    `SELECT account, sum(position) AS total WHERE account ~ "Rent" GROUP BY account`,
			columns: []string{"account", "total"},
			rows:    [][]string{{"Expenses:Rent", "500 USD"}},
		},
		{
			name:    "Run",
			text:    "run food",
			columns: []string{"account", "total"},
			rows:    [][]string{{"Expenses:Food", "70 USD"}},
		},
		{
			name:      "Numberify",
			text:      `.run "food";`,
			numberify: true,
			columns:   []string{"account", "total (USD)"},
			rows:      [][]string{{"Expenses:Food", "70"}},
		},
		{name: "List", text: "run", output: "food"},
		{name: "Help", text: "help", output: shellHelp},
		{name: "Exit", text: "exit", output: noopHelp},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			res, err := l.Query(ctx, test.text, test.numberify)
			assert.NoError(t, err)
			if test.columns == nil {
				assert.Zero(t, res.Table)
				assert.Equal(t, test.output, res.Text)
				return
			}
			var columns []string
			for _, c := range res.Table.Columns {
				columns = append(columns, c.Name)
			}
			assert.Equal(t, test.columns, columns)
			assert.Equal(t, test.rows, res.Table.Strings())
		})
	}
}

func TestQueryErrors(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "NotFound", text: "run rent", want: "Query 'rent' not found."},
		{name: "TooManyArgs", text: "run food rent", want: "Too many args to run: 'run food rent'."},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := l.Query(ctx, test.text, false)
			var se *ShellError
			assert.True(t, errors.As(err, &se), "%v", err)
			assert.EqualError(t, err, test.want)
		})
	}

	_, err := l.Query(ctx, "SELECT FROM WHERE", false)
	assert.Error(t, err)
}

func TestQueryToFile(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	var buf bytes.Buffer
	assert.NoError(t, l.QueryToFile(ctx, "run food", "csv", &buf))
	assert.Equal(t, "account,total (USD)\nExpenses:Food,70\n", buf.String())

	buf.Reset()
	assert.NoError(t, l.QueryToFile(ctx, "run food", "xlsx", &buf))
	assert.True(t, buf.Len() > 0)

	err := l.QueryToFile(ctx, "run", "csv", &buf)
	var se *ShellError
	assert.True(t, errors.As(err, &se), "%v", err)

	assert.Error(t, l.QueryToFile(ctx, "run food", "ods", &buf))
}

func TestContext(t *testing.T) {
	l, _ := setup(t)

	_, err := l.Context("nope")
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
	assert.EqualError(t, err, "No entry found for hash nope")

	txn := transaction(t, l, "2024-01-10", "Groceries")
	ec, err := l.Context(ast.Hash(txn))
	assert.NoError(t, err)
	assert.Equal(t, "2024-01-10 * \"Grocer\" \"Groceries\"\n  Expenses:Food  50.00 USD\n  Assets:Cash  -50.00 USD", ec.Slice)
	assert.Equal(t, writer.Sum(ec.Slice), ec.Sha256)

	assert.True(t, ec.Before["Expenses:Food"].Units("USD").IsZero())
	assert.True(t, ec.Before["Assets:Cash"].Units("USD").Equal(decimal.NewFromInt(1000)))
	assert.True(t, ec.After["Expenses:Food"].Units("USD").Equal(decimal.NewFromInt(50)))
	assert.True(t, ec.After["Assets:Cash"].Units("USD").Equal(decimal.NewFromInt(950)))

	t.Run("Price", func(t *testing.T) {
		for _, d := range l.AllEntries() {
			if p, ok := d.(*ast.Price); ok {
				ec, err := l.Context(ast.Hash(p))
				assert.NoError(t, err)
				assert.Zero(t, ec.Before)
				assert.Zero(t, ec.After)
				assert.Equal(t, "2024-01-20 price EUR 1.10 USD", ec.Slice)
				return
			}
		}
		t.Fatal("no price")
	})
}

func TestSaveEntrySlice(t *testing.T) {
	l, _ := setup(t)
	ctx := context.Background()

	txn := transaction(t, l, "2024-01-10", "Groceries")
	ec, err := l.Context(ast.Hash(txn))
	assert.NoError(t, err)

	_, err = l.SaveEntrySlice(ctx, ast.Hash(txn), ec.Slice, "stale")
	var cme *writer.ConcurrentModificationError
	assert.True(t, errors.As(err, &cme), "%v", err)

	slice := strings.ReplaceAll(ec.Slice, "50.00", "60.00")
	sum, err := l.SaveEntrySlice(ctx, ast.Hash(txn), slice, ec.Sha256)
	assert.NoError(t, err)
	assert.Equal(t, writer.Sum(slice), sum)

	// The reload sees the new amount, which breaks the balance assertion.
	assert.True(t, units(t, l, "Expenses:Food", "USD").Equal(decimal.NewFromInt(80)))
	assert.Equal(t, 1, len(l.Errors()))
	var be *validation.BalanceError
	assert.True(t, errors.As(l.Errors()[0], &be), "%v", l.Errors())
}

func TestDeleteEntrySlice(t *testing.T) {
	l, path := setup(t)
	ctx := context.Background()

	var price *ast.Price
	for _, d := range l.AllEntries() {
		if p, ok := d.(*ast.Price); ok {
			price = p
			break
		}
	}
	ec, err := l.Context(ast.Hash(price))
	assert.NoError(t, err)
	assert.NoError(t, l.DeleteEntrySlice(ctx, ast.Hash(price), ec.Sha256))

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	assert.NotContains(t, string(data), "1.10 USD")
	assert.Equal(t, 1, len(l.Prices("EUR", "USD")))
}

func TestInsertMetadata(t *testing.T) {
	l, _ := setup(t)

	txn := transaction(t, l, "2024-02-01", "Rent")
	key, err := l.InsertMetadata(context.Background(), ast.Hash(txn), "receipt", "rent.pdf")
	assert.NoError(t, err)
	assert.Equal(t, "receipt", key)

	txn = transaction(t, l, "2024-02-01", "Rent")
	v, ok := txn.Metadata.Get("receipt")
	assert.True(t, ok)
	assert.Equal(t, "rent.pdf", v.Str)
}

func TestInsertEntries(t *testing.T) {
	l, path := setup(t)

	entry := ast.NewTransaction(ast.MustDate("2024-03-02"), "Bakery",
		ast.WithFlag("*"),
		ast.WithPostings(
			ast.NewPosting("Expenses:Food", ast.WithUnits(ast.MustAmount("5.00", "USD"))),
			ast.NewPosting("Assets:Cash", ast.WithUnits(ast.MustAmount("-5.00", "USD"))),
		),
	)
	paths, err := l.InsertEntries(context.Background(), []ast.Directive{entry})
	assert.NoError(t, err)
	assert.Equal(t, []string{path}, paths)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	lines := strings.Split(string(data), "\n")
	assert.Equal(t, `2024-03-02 * "Bakery"`, lines[3])

	// The rule moved down with the inserted lines.
	assert.True(t, l.Config().InsertEntry[0].Line > 4)
	assert.True(t, units(t, l, "Expenses:Food", "USD").Equal(decimal.NewFromInt(75)))
}

func TestSource(t *testing.T) {
	l, path := setup(t)
	ctx := context.Background()

	got, sum, err := l.GetSource(path)
	assert.NoError(t, err)
	assert.Equal(t, source, got)

	updated := strings.Replace(source, `"Test"`, `"Household"`, 1)
	_, err = l.SetSource(ctx, path, updated, sum)
	assert.NoError(t, err)
	assert.Equal(t, "Household", l.Options().Title)

	_, _, err = l.GetSource(filepath.Join(filepath.Dir(path), "other.beancount"))
	var nsf *writer.NonSourceFileError
	assert.True(t, errors.As(err, &nsf), "%v", err)
}

func TestReload(t *testing.T) {
	l, path := setup(t)
	ctx := context.Background()

	changed, err := l.Reload(ctx)
	assert.NoError(t, err)
	assert.False(t, changed)

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	data = append(data, []byte("\n2024-03-05 open Assets:Bank USD\n")...)
	assert.NoError(t, os.WriteFile(path, data, 0o644))
	later := time.Now().Add(time.Minute)
	assert.NoError(t, os.Chtimes(path, later, later))

	changed, err = l.Reload(ctx)
	assert.NoError(t, err)
	assert.True(t, changed)
	_, ok := l.Tree().Get("Assets:Bank")
	assert.True(t, ok)
}

func TestAccountIsClosed(t *testing.T) {
	l, path := setup(t)
	ctx := context.Background()

	data, err := os.ReadFile(path)
	assert.NoError(t, err)
	data = append(data, []byte("\n2024-03-05 close Expenses:Rent\n")...)
	assert.NoError(t, os.WriteFile(path, data, 0o644))
	assert.NoError(t, l.Load(ctx))

	assert.True(t, l.AccountIsClosed("Expenses:Rent"))
	assert.False(t, l.AccountIsClosed("Expenses:Food"))

	assert.NoError(t, l.Filter(ctx, Filters{Time: "2024-02"}))
	assert.False(t, l.AccountIsClosed("Expenses:Rent"))
}

func TestAttributes(t *testing.T) {
	l, _ := setup(t)
	a := l.Attributes()

	assert.Equal(t, []string{"Assets:Cash", "Expenses:Food", "Expenses:Rent", "Income:Salary"}, a.Accounts)
	assert.Equal(t, []string{"USD"}, a.Currencies)
	assert.Equal(t, []string{"Grocer", "Landlord", "Employer"}, a.Payees)
	assert.Equal(t, []string{"work"}, a.Tags)
	assert.Equal(t, []string{"2024"}, a.Years)

	assert.Equal(t, "Assets:Cash", a.PayeeAccounts("Landlord")[0])
	assert.Equal(t, ast.MustDate("2024-02-15"), a.PayeeTransaction("Grocer").Date)
	assert.Zero(t, a.PayeeTransaction("Nobody"))
}

func TestActiveYears(t *testing.T) {
	entries := []ast.Directive{
		ast.NewOpen(ast.MustDate("2023-02-01"), "Assets:Cash"),
		ast.NewOpen(ast.MustDate("2023-05-01"), "Assets:Bank"),
		ast.NewOpen(ast.MustDate("2024-01-01"), "Assets:Wallet"),
	}
	assert.Equal(t, []string{"2024", "2023"}, activeYears(entries, dates.EndOfYear))

	fye, err := dates.ParseFiscalYearEnd("03-31")
	assert.NoError(t, err)
	assert.Equal(t, []string{"FY2024", "FY2023"}, activeYears(entries, fye))
}
