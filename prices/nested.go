package prices

import (
	"github.com/shopspring/decimal"

	"github.com/robinvdvleuten/beanledger/ast"
)

type hop struct {
	hops int
	rate decimal.Decimal
	path []string
}

func (h hop) visited(commodity string) bool {
	for _, c := range h.path {
		if c == commodity {
			return true
		}
	}
	return false
}

// GetNestedPrice returns the rate of pair on date, chaining rates through
// intermediate commodities when no direct series exists. The path with the
// fewest hops wins; among equally short paths the lexically first one.
//
// The search relaxes edges for at most |V|-1 rounds and never extends a path
// through a commodity it already visited, so it always terminates.
func (m *PriceMap) GetNestedPrice(pair Pair, date ast.Date) (decimal.Decimal, bool) {
	if rate, ok := m.GetPrice(pair, date); ok {
		return rate, true
	}
	if _, ok := m.adjacency[pair.Base]; !ok {
		return decimal.Zero, false
	}

	nodes := m.Commodities()
	best := map[string]hop{pair.Base: {rate: one, path: []string{pair.Base}}}

	for round := 0; round < len(nodes)-1; round++ {
		changed := false
		for _, u := range nodes {
			from, ok := best[u]
			if !ok {
				continue
			}
			for _, v := range m.adjacency[u] {
				if from.visited(v) {
					continue
				}
				rate, ok := m.GetPrice(Pair{Base: u, Quote: v}, date)
				if !ok {
					continue
				}
				if cur, ok := best[v]; ok && cur.hops <= from.hops+1 {
					continue
				}
				path := make([]string, len(from.path), len(from.path)+1)
				copy(path, from.path)
				best[v] = hop{hops: from.hops + 1, rate: from.rate.Mul(rate), path: append(path, v)}
				changed = true
			}
		}
		if !changed {
			break
		}
	}

	if h, ok := best[pair.Quote]; ok && pair.Quote != pair.Base {
		return h.rate, true
	}
	return decimal.Zero, false
}

// Path returns the commodities GetNestedPrice chains through for pair on
// date, base and quote included. It is nil when no path exists.
func (m *PriceMap) Path(pair Pair, date ast.Date) []string {
	if _, ok := m.GetPrice(pair, date); ok {
		return []string{pair.Base, pair.Quote}
	}
	nodes := m.Commodities()
	best := map[string][]string{pair.Base: {pair.Base}}
	frontier := []string{pair.Base}
	for round := 0; round < len(nodes)-1 && len(frontier) > 0; round++ {
		var next []string
		for _, u := range frontier {
			for _, v := range m.adjacency[u] {
				if _, seen := best[v]; seen {
					continue
				}
				if _, ok := m.GetPrice(Pair{Base: u, Quote: v}, date); !ok {
					continue
				}
				p := append(append([]string(nil), best[u]...), v)
				best[v] = p
				next = append(next, v)
			}
		}
		frontier = next
	}
	return best[pair.Quote]
}
