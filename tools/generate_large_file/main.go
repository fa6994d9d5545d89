// Large ledger generator
//
// This tool generates a large ledger for performance testing and profiling
// of `beanledger doctor timings`. Every generated file loads without errors:
// balance assertions follow the running balance of the checking account and
// all trading accounts are opened up front.
//
// Usage:
//
//	go run ./tools/generate_large_file > large.beancount
//	go run ./tools/generate_large_file 20000000 --seed 42 > large.beancount
package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/writer"
)

const defaultTargetSize = 10 * 1024 * 1024 // 10MB

var (
	accounts = []string{
		"Assets:Bank:Checking",
		"Assets:Bank:Savings",
		"Assets:Brokerage:Cash",
		"Liabilities:CreditCard:Visa",
		"Liabilities:CreditCard:Amex",
		"Income:Salary",
		"Income:Bonus",
		"Income:Investments:Dividends",
		"Expenses:Food:Groceries",
		"Expenses:Food:Restaurant",
		"Expenses:Housing:Rent",
		"Expenses:Housing:Utilities",
		"Expenses:Transport:Gas",
		"Expenses:Transport:Transit",
		"Expenses:Shopping:Clothing",
		"Expenses:Entertainment:Movies",
		"Expenses:Healthcare:Medical",
		"Expenses:Commissions",
		"Equity:Opening-Balances",
	}

	payees = []string{
		"Whole Foods", "Safeway", "Trader Joe's", "Costco",
		"Shell Gas", "BART", "Landlord", "PG&E",
		"Amazon", "Target", "Netflix", "Employer Inc",
	}

	narrations = []string{
		"Grocery shopping", "Fuel purchase", "Rent payment",
		"Utility bill", "Online purchase", "Restaurant dinner",
		"Coffee", "Monthly subscription", "Medical appointment",
	}

	tags       = []ast.Tag{"personal", "business", "vacation", "tax-deductible", "reimbursable"}
	links      = []ast.Link{"invoice-001", "receipt-march", "annual-review", "rebalance-q1"}
	currencies = []string{"EUR", "GBP", "CAD"}
	stocks     = []string{"AAPL", "MSFT", "GOOGL", "VTI", "VXUS"}

	budgets = []struct{ account, monthly string }{
		{"Expenses:Food:Groceries", "400.00"},
		{"Expenses:Food:Restaurant", "150.00"},
		{"Expenses:Transport:Gas", "120.00"},
		{"Expenses:Housing:Utilities", "200.00"},
	}
)

const checking = "Assets:Bank:Checking"

type generator struct {
	rnd     *rand.Rand
	w       *writer.Writer
	date    time.Time
	balance decimal.Decimal // of checking, in USD

	written      int
	transactions int
}

func newGenerator(seed int64, start time.Time) *generator {
	return &generator{
		rnd:  rand.New(rand.NewSource(seed)),
		w:    writer.New(),
		date: start,
	}
}

// generate writes directives to out until at least target bytes were written.
func (g *generator) generate(out io.Writer, target int) error {
	if err := g.emit(out, g.header()); err != nil {
		return err
	}
	for g.written < target {
		var d ast.Directive
		switch g.rnd.Intn(10) {
		case 0, 1, 2:
			d = g.simpleTransaction()
		case 3, 4:
			d = g.transactionWithMetadata()
		case 5:
			d = g.investmentTransaction()
		case 6:
			d = g.exchangeTransaction()
		case 7:
			d = g.complexTransaction()
		case 8:
			d = ast.NewBalance(g.today(), checking, ast.Amount{Number: g.balance, Currency: "USD"})
		case 9:
			d = ast.NewPrice(g.today(), g.pick(stocks), g.usd(50, 500))
		}
		if _, ok := d.(*ast.Transaction); ok {
			g.transactions++
		}
		if err := g.emit(out, g.w.Render(d)+"\n"); err != nil {
			return err
		}
		// one directive per day keeps balance assertions exact
		g.date = g.date.AddDate(0, 0, g.rnd.Intn(5)+1)
	}
	return nil
}

func (g *generator) emit(out io.Writer, s string) error {
	n, err := io.WriteString(out, s)
	g.written += n
	return err
}

func (g *generator) header() string {
	opened := ast.DateOf(g.date)
	src := "; Large ledger for performance testing\n\n" +
		"option \"title\" \"Performance Test Ledger\"\n" +
		"option \"operating_currency\" \"USD\"\n\n"
	for _, account := range accounts {
		src += g.w.Render(ast.NewOpen(opened, account))
	}
	for _, stock := range stocks {
		src += g.w.Render(ast.NewOpen(opened, "Assets:Brokerage:"+stock, stock))
	}
	src += "\n"
	for _, b := range budgets {
		src += g.w.Render(ast.NewCustom(opened, "budget",
			ast.AccountValue(b.account),
			ast.StringValue("monthly"),
			ast.AmountValue(ast.MustAmount(b.monthly, "USD")),
		))
	}
	src += g.w.Render(ast.NewCustom(opened, "fava-option",
		ast.StringValue("insert-entry"),
		ast.StringValue("Expenses:Food:.*"),
	))
	return src + "\n"
}

func (g *generator) today() ast.Date { return ast.DateOf(g.date) }

func (g *generator) pick(values []string) string { return values[g.rnd.Intn(len(values))] }

// usd returns a random amount between lo and hi with two decimals.
func (g *generator) usd(lo, hi int) ast.Amount {
	cents := int64(lo*100) + g.rnd.Int63n(int64((hi-lo)*100))
	return ast.Amount{Number: decimal.New(cents, -2), Currency: "USD"}
}

// transfer moves amount out of from into to, tracking the checking balance.
func (g *generator) transfer(from, to string, amount ast.Amount) []*ast.Posting {
	if from == checking {
		g.balance = g.balance.Sub(amount.Number)
	}
	if to == checking {
		g.balance = g.balance.Add(amount.Number)
	}
	return []*ast.Posting{
		ast.NewPosting(to, ast.WithUnits(amount)),
		ast.NewPosting(from, ast.WithUnits(amount.Neg())),
	}
}

func (g *generator) simpleTransaction() ast.Directive {
	from, to := g.pick(accounts), g.pick(accounts)
	return ast.NewTransaction(g.today(), g.pick(narrations),
		ast.WithPayee(g.pick(payees)),
		ast.WithPostings(g.transfer(from, to, g.usd(10, 500))...),
	)
}

func (g *generator) transactionWithMetadata() ast.Directive {
	postings := g.transfer(checking, "Expenses:Shopping:Clothing", g.usd(50, 1000))
	postings[0].Metadata.Set("note", ast.StringValue("Purchase from vendor"))
	return ast.NewTransaction(g.today(), g.pick(narrations),
		ast.WithPayee(g.pick(payees)),
		ast.WithTransactionMeta("invoice", ast.StringValue(fmt.Sprintf("INV-%d", g.rnd.Intn(10000)))),
		ast.WithTransactionMeta("category", ast.StringValue("shopping")),
		ast.WithPostings(postings...),
	)
}

func (g *generator) investmentTransaction() ast.Directive {
	stock := g.pick(stocks)
	shares := decimal.NewFromInt(int64(g.rnd.Intn(50) + 1))
	per := g.usd(50, 500)
	commission := ast.MustAmount("9.99", "USD")
	total := per.Number.Mul(shares).Add(commission.Number)

	return ast.NewTransaction(g.today(), "Buy "+stock,
		ast.WithPostings(
			ast.NewPosting("Assets:Brokerage:Cash", ast.WithUnits(ast.Amount{Number: total.Neg(), Currency: "USD"})),
			ast.NewPosting("Assets:Brokerage:"+stock,
				ast.WithUnits(ast.Amount{Number: shares, Currency: stock}),
				ast.WithCostSpec(ast.CostSpec{NumberPer: &per.Number, Currency: "USD"}),
			),
			ast.NewPosting("Expenses:Commissions", ast.WithUnits(commission)),
		),
	)
}

func (g *generator) exchangeTransaction() ast.Directive {
	amount := g.usd(100, 2000)
	rate := g.usd(1, 2)
	rate.Currency = g.pick(currencies)
	converted := ast.Amount{Number: amount.Number.Mul(rate.Number), Currency: rate.Currency}

	return ast.NewTransaction(g.today(), "Currency exchange",
		ast.WithPostings(
			ast.NewPosting("Assets:Bank:Savings", ast.WithUnits(amount.Neg()), ast.WithPrice(rate)),
			ast.NewPosting("Assets:Bank:Savings", ast.WithUnits(converted)),
		),
	)
}

func (g *generator) complexTransaction() ast.Directive {
	split := []string{"Expenses:Food:Restaurant", "Expenses:Food:Groceries", "Expenses:Transport:Gas"}
	var postings []*ast.Posting
	total := decimal.Zero
	for _, account := range split {
		amount := g.usd(20, 300)
		total = total.Add(amount.Number)
		postings = append(postings, ast.NewPosting(account, ast.WithUnits(amount)))
	}
	g.balance = g.balance.Sub(total)
	postings = append(postings, ast.NewPosting(checking, ast.WithUnits(ast.Amount{Number: total.Neg(), Currency: "USD"})))

	return ast.NewTransaction(g.today(), g.pick(narrations),
		ast.WithPayee(g.pick(payees)),
		ast.WithTags(tags[g.rnd.Intn(len(tags))]),
		ast.WithLinks(links[g.rnd.Intn(len(links))]),
		ast.WithTransactionMeta("receipt", ast.StringValue(fmt.Sprintf("RCP-%d", g.rnd.Intn(100000)))),
		ast.WithPostings(postings...),
	)
}

var cli struct {
	Size int   `arg:"" optional:"" default:"10485760" help:"Target size in bytes."`
	Seed int64 `help:"Seed for the random generator (defaults to the current time)."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("generate_large_file"),
		kong.Description("Generate a large ledger for performance testing."),
	)
	if cli.Size <= 0 {
		cli.Size = defaultTargetSize
	}
	if cli.Seed == 0 {
		cli.Seed = time.Now().UnixNano()
	}

	g := newGenerator(cli.Seed, time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	if err := g.generate(os.Stdout, cli.Size); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stderr, "\nGenerated %d bytes with %d transactions\n", g.written, g.transactions)
}
