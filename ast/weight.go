package ast

// Weight returns the amount a posting contributes to its transaction's
// balance: units at cost when a lot is attached, units at price when a price
// annotation is present, otherwise the units themselves. ok is false for
// postings whose number has not been interpolated yet.
func Weight(p *Posting) (w Amount, ok bool) {
	if p.Units == nil {
		return Amount{}, false
	}
	switch {
	case p.Lot != nil:
		return Amount{Number: p.Units.Number.Mul(p.Lot.Number), Currency: p.Lot.Currency}, true
	case p.Price != nil:
		return Amount{Number: p.Units.Number.Mul(p.Price.Number), Currency: p.Price.Currency}, true
	}
	return *p.Units, true
}
