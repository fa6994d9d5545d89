package booking

import (
	"github.com/robinvdvleuten/beanledger/ast"
)

// interpolate fills in the single missing number of txn, if any: either the
// units of a posting written without an amount, or the per-unit cost of a
// lot whose cost spec leaves the number or currency out.
//
// A posting without units absorbs the residual of every currency and is
// split into one posting per currency; it disappears when the other
// postings already balance.
func interpolate(txn *ast.Transaction) error {
	missing := -1
	for i, p := range txn.Postings {
		if p.Units != nil && (p.Cost == nil || p.Lot != nil) {
			continue
		}
		if missing >= 0 {
			return NewBookingError(txn, p.Account, "Too many missing numbers for postings of %s", txn.Date)
		}
		missing = i
	}
	if missing < 0 {
		return nil
	}

	p := txn.Postings[missing]
	residual := Residual(txn.Postings)

	if p.Units != nil {
		currency := p.Cost.Currency
		if currency == "" {
			currencies := residual.Currencies()
			if len(currencies) != 1 {
				return NewBookingError(txn, p.Account, "Cannot infer the cost currency of %s", p.Units)
			}
			currency = currencies[0]
		}
		per := residual[currency].Neg().Div(p.Units.Number)
		if p.Cost.NumberPer != nil {
			per = *p.Cost.NumberPer
		}
		date := p.Cost.Date
		if date.IsZero() {
			date = txn.Date
		}
		p.Lot = &ast.Cost{Number: per, Currency: currency, Date: date, Label: p.Cost.Label}
		return nil
	}

	if p.Cost != nil || p.Price != nil || p.TotalPrice != nil {
		return NewBookingError(txn, p.Account, "Cannot infer the units of a posting with a cost or price")
	}

	filled := make([]*ast.Posting, 0, len(residual))
	for _, a := range residual.Amounts() {
		np := p.Clone()
		units := a.Neg()
		np.Units = &units
		filled = append(filled, np)
	}

	postings := make([]*ast.Posting, 0, len(txn.Postings)-1+len(filled))
	postings = append(postings, txn.Postings[:missing]...)
	postings = append(postings, filled...)
	postings = append(postings, txn.Postings[missing+1:]...)
	txn.Postings = postings
	return nil
}
