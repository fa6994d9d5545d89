// Package prices indexes Price directives into per-pair time series and
// answers rate lookups, directly or across several hops.
//
// Every price adds a forward point and, for non-zero rates, its reciprocal
// on the inverse pair. A pair keeps at most one rate per day: the last one
// seen in entry order.
package prices

import (
	"sort"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
)

// Pair is a directed (base, quote) commodity pair: one unit of Base costs
// the rate in Quote.
type Pair struct {
	Base  string
	Quote string
}

// Inverse returns (quote, base).
func (p Pair) Inverse() Pair { return Pair{Base: p.Quote, Quote: p.Base} }

func (p Pair) String() string { return p.Base + "/" + p.Quote }

// Point is a rate on a date.
type Point struct {
	Date ast.Date
	Rate decimal.Decimal
}

var one = decimal.NewFromInt(1)

// PriceMap holds the rate series of every pair seen in Price directives.
type PriceMap struct {
	series map[Pair][]Point
	// explicit counts how many Price directives were written per direction.
	explicit map[Pair]int
	// adjacency lists the quotes reachable in one hop from a base.
	adjacency map[string][]string
}

// Build indexes the Price directives in entries.
func Build(entries []ast.Directive) *PriceMap {
	m := &PriceMap{
		series:    make(map[Pair][]Point),
		explicit:  make(map[Pair]int),
		adjacency: make(map[string][]string),
	}

	for _, d := range entries {
		price, ok := d.(*ast.Price)
		if !ok || price.Currency == price.Amount.Currency {
			continue
		}
		pair := Pair{Base: price.Currency, Quote: price.Amount.Currency}
		m.explicit[pair]++
		m.series[pair] = append(m.series[pair], Point{Date: price.Date, Rate: price.Amount.Number})
		// A zero rate is kept as data but has no reciprocal.
		if !price.Amount.Number.IsZero() {
			inv := pair.Inverse()
			m.series[inv] = append(m.series[inv], Point{Date: price.Date, Rate: one.Div(price.Amount.Number)})
		}
	}

	for pair, points := range m.series {
		m.series[pair] = lastPerDay(points)
		m.adjacency[pair.Base] = append(m.adjacency[pair.Base], pair.Quote)
	}
	for base := range m.adjacency {
		slices.Sort(m.adjacency[base])
	}
	return m
}

// lastPerDay sorts points by date, keeping insertion order within a day,
// and retains only the last point of each day.
func lastPerDay(points []Point) []Point {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	out := points[:0]
	for i, p := range points {
		if i+1 < len(points) && points[i+1].Date.Equal(p.Date.Time) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// GetPrice returns the rate of pair on date: the latest point not after
// date. The rate of a commodity in itself is 1. A zero date asks for the
// latest rate.
func (m *PriceMap) GetPrice(pair Pair, date ast.Date) (decimal.Decimal, bool) {
	if date.IsZero() {
		return m.GetLatestPrice(pair)
	}
	if pair.Base == pair.Quote {
		return one, true
	}
	points := m.series[pair]
	i := sort.Search(len(points), func(i int) bool { return points[i].Date.After(date) })
	if i == 0 {
		return decimal.Zero, false
	}
	return points[i-1].Rate, true
}

// GetLatestPrice returns the most recent rate of pair.
func (m *PriceMap) GetLatestPrice(pair Pair) (decimal.Decimal, bool) {
	if pair.Base == pair.Quote {
		return one, true
	}
	points := m.series[pair]
	if len(points) == 0 {
		return decimal.Zero, false
	}
	return points[len(points)-1].Rate, true
}

// GetAllPrices returns the series of pair in date order.
func (m *PriceMap) GetAllPrices(pair Pair) []Point {
	return m.series[pair]
}

// Len returns the number of pairs, counting both directions.
func (m *PriceMap) Len() int {
	return len(m.series)
}

// Commodities returns every commodity that appears in a pair.
func (m *PriceMap) Commodities() []string {
	keys := maps.Keys(m.adjacency)
	slices.Sort(keys)
	return keys
}

// forwardPairs returns, for each unordered pair, the direction written more
// often. Ties go to the lexically smaller base.
func (m *PriceMap) forwardPairs() []Pair {
	var out []Pair
	for pair, n := range m.explicit {
		inv := m.explicit[pair.Inverse()]
		if n > inv || (n == inv && pair.Base < pair.Quote) {
			out = append(out, pair)
		}
	}
	return out
}

// CommodityPairs lists the forward pairs, sorted. Pairs between two
// operating currencies are listed in both directions.
func (m *PriceMap) CommodityPairs(operating []string) []Pair {
	pairs := m.forwardPairs()
	for _, p := range pairs {
		if slices.Contains(operating, p.Base) && slices.Contains(operating, p.Quote) {
			pairs = append(pairs, p.Inverse())
		}
	}
	slices.SortFunc(pairs, func(a, b Pair) int {
		if a.Base != b.Base {
			if a.Base < b.Base {
				return -1
			}
			return 1
		}
		switch {
		case a.Quote < b.Quote:
			return -1
		case a.Quote > b.Quote:
			return 1
		}
		return 0
	})
	return slices.Compact(pairs)
}
