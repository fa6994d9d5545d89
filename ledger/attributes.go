package ledger

import (
	"fmt"
	"math"
	"sort"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/dates"
)

// Attributes are the values a host offers for auto-completion. Accounts,
// currencies and payees are ranked by how recently and often they were
// used.
type Attributes struct {
	Accounts   []string
	Currencies []string
	Payees     []string
	Links      []string
	Tags       []string
	// Years lists the years with entries, newest first, as fiscal years
	// ("FY2024") when the fiscal year is not the calendar year.
	Years []string

	transactions []*ast.Transaction
}

func newAttributes(entries []ast.Directive, fye dates.FiscalYearEnd) *Attributes {
	a := &Attributes{}
	links := map[string]bool{}
	tags := map[string]bool{}
	opened := map[string]bool{}
	for _, d := range entries {
		switch e := d.(type) {
		case *ast.Open:
			opened[e.Account] = true
		case *ast.Transaction:
			a.transactions = append(a.transactions, e)
			for _, l := range e.Links {
				links[string(l)] = true
			}
			for _, t := range e.Tags {
				tags[string(t)] = true
			}
		case *ast.Document:
			for _, l := range e.Links {
				links[string(l)] = true
			}
			for _, t := range e.Tags {
				tags[string(t)] = true
			}
		}
	}
	a.Links = sortedKeys(links)
	a.Tags = sortedKeys(tags)
	a.Years = activeYears(entries, fye)

	accounts := newRanker(sortedKeys(opened))
	currencies := newRanker(nil)
	payees := newRanker(nil)
	for _, txn := range a.transactions {
		if txn.Payee != "" {
			payees.update(txn.Payee, txn.Date)
		}
		for _, p := range txn.Postings {
			accounts.update(p.Account, txn.Date)
			if p.Units != nil {
				currencies.update(p.Units.Currency, txn.Date)
			}
			if p.Lot != nil && p.Lot.Currency != "" {
				currencies.update(p.Lot.Currency, txn.Date)
			}
		}
	}
	a.Accounts = accounts.sort()
	a.Currencies = currencies.sort()
	a.Payees = payees.sort()
	return a
}

func sortedKeys(m map[string]bool) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}

// PayeeAccounts ranks the accounts by their use in transactions with payee.
func (a *Attributes) PayeeAccounts(payee string) []string {
	r := newRanker(a.Accounts)
	for _, txn := range a.transactions {
		if txn.Payee != payee {
			continue
		}
		for _, p := range txn.Postings {
			r.update(p.Account, txn.Date)
		}
	}
	return r.sort()
}

// PayeeTransaction returns the latest transaction with payee, or nil.
func (a *Attributes) PayeeTransaction(payee string) *ast.Transaction {
	for i := len(a.transactions) - 1; i >= 0; i-- {
		if a.transactions[i].Payee == payee {
			return a.transactions[i]
		}
	}
	return nil
}

// activeYears lists the (fiscal) years of entries, which must be in
// canonical order, newest first.
func activeYears(entries []ast.Directive, fye dates.FiscalYearEnd) []string {
	var years []int
	prev := 0
	for _, d := range entries {
		date := d.GetDate()
		year := date.Year()
		if fye != dates.EndOfYear {
			month, day := fye.MonthOfYear(), fye.Day
			if int(date.Month()) > month || (int(date.Month()) == month && date.Day() > day) {
				year++
			}
			year -= fye.YearOffset()
		}
		if year != prev {
			prev = year
			years = append(years, year)
		}
	}

	out := make([]string, 0, len(years))
	for i := len(years) - 1; i >= 0; i-- {
		if fye == dates.EndOfYear {
			out = append(out, fmt.Sprint(years[i]))
		} else {
			out = append(out, fmt.Sprintf("FY%d", years[i]))
		}
	}
	return out
}

// decayRate halves the weight of a use after a year.
var decayRate = math.Log(2) / 365

// ranker ranks items by exponentially decaying use. The score of an item is
// the logarithm of the sum of exp(rate * day) over its uses, which orders
// items like the decayed sum without overflowing.
type ranker struct {
	items  []string
	scores map[string]float64
}

// newRanker ranks items, or every updated item when items is nil.
func newRanker(items []string) *ranker {
	return &ranker{items: items, scores: map[string]float64{}}
}

func (r *ranker) update(item string, date ast.Date) {
	score := r.scores[item]
	t := float64(date.Unix()/86400) * decayRate
	hi, lo := math.Max(score, t), math.Min(score, t)
	r.scores[item] = hi + math.Log1p(math.Exp(lo-hi))
}

func (r *ranker) sort() []string {
	items := r.items
	if items == nil {
		items = maps.Keys(r.scores)
		slices.Sort(items)
	} else {
		items = slices.Clone(items)
	}
	sort.SliceStable(items, func(i, j int) bool {
		return r.scores[items[i]] > r.scores[items[j]]
	})
	return items
}
