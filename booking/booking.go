// Package booking resolves the incomplete postings of transactions.
//
// Booking walks transactions in date order while keeping a running
// inventory per account. For every posting held at cost it decides whether
// the posting augments the account (a new lot) or reduces existing lots, and
// matches reductions according to the account's booking method. It then
// fills in at most one missing number per transaction so that the posting
// weights sum to zero, and checks the remaining residual against the
// inferred tolerance.
//
// A transaction that cannot be booked is kept exactly as written and a
// BookingError is reported; it does not touch the running inventories.
package booking

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
	"github.com/robinvdvleuten/beanledger/telemetry"
)

// Booker books transactions one after another.
type Booker struct {
	opts     *ast.Options
	methods  map[string]ast.BookingMethod
	balances map[string]*inventory.Inventory
}

// NewBooker creates a booker. Booking methods are taken from the Open
// directives in entries, defaulting to the ledger-wide option.
func NewBooker(entries []ast.Directive, opts *ast.Options) *Booker {
	if opts == nil {
		opts = ast.DefaultOptions()
	}
	b := &Booker{
		opts:     opts,
		methods:  make(map[string]ast.BookingMethod),
		balances: make(map[string]*inventory.Inventory),
	}
	for _, open := range ast.Filter[*ast.Open](entries) {
		if open.BookingMethod != "" {
			b.methods[open.Account] = open.BookingMethod
		}
	}
	return b
}

// Book books every transaction in entries and returns them in canonical
// order, booked transactions replacing their source.
func Book(ctx context.Context, entries []ast.Directive, opts *ast.Options) ([]ast.Directive, []error) {
	timer := telemetry.FromContext(ctx).Start("booking.book")
	defer timer.End()

	out := slices.Clone(entries)
	ast.SortDirectives(out)

	b := NewBooker(out, opts)
	var errs []error
	for i, d := range out {
		txn, ok := d.(*ast.Transaction)
		if !ok {
			continue
		}
		booked, err := b.Transaction(txn)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out[i] = booked
	}
	return out, errs
}

// Balance returns the running inventory of account. It is nil for accounts
// nothing was booked to.
func (b *Booker) Balance(account string) *inventory.Inventory {
	return b.balances[account]
}

func (b *Booker) method(account string) ast.BookingMethod {
	if m, ok := b.methods[account]; ok {
		return m
	}
	return b.opts.BookingMethod
}

func (b *Booker) inventory(account string) *inventory.Inventory {
	inv, ok := b.balances[account]
	if !ok {
		inv = inventory.New()
		b.balances[account] = inv
	}
	return inv
}

// Transaction books a single transaction against the running inventories
// and returns the booked copy. On error the inventories are unchanged.
func (b *Booker) Transaction(txn *ast.Transaction) (*ast.Transaction, error) {
	out := txn.Clone()

	postings := make([]*ast.Posting, 0, len(out.Postings))
	for _, p := range out.Postings {
		if p.Units == nil || p.Cost == nil {
			postings = append(postings, p)
			continue
		}
		booked, err := b.bookLot(out, p)
		if err != nil {
			return nil, reattach(err, txn)
		}
		postings = append(postings, booked...)
	}
	out.Postings = postings

	if err := interpolate(out); err != nil {
		return nil, reattach(err, txn)
	}

	tolerances := InferTolerances(txn.Postings, b.opts)
	residual := Residual(out.Postings)
	for _, currency := range residual.Currencies() {
		if residual[currency].Abs().GreaterThan(tolerances.Get(currency, b.opts)) {
			return nil, newUnbalancedError(txn, residual)
		}
	}

	for _, p := range out.Postings {
		if p.Units != nil {
			b.inventory(p.Account).AddPosition(*p.Units, p.Lot)
		}
	}
	return out, nil
}

// reattach points a booking error at the transaction as written rather than
// the working copy.
func reattach(err error, txn *ast.Transaction) error {
	if be, ok := err.(*BookingError); ok {
		be.Directive = txn
	}
	return err
}

// Residual sums the weights of the postings whose number is known.
func Residual(postings []*ast.Posting) inventory.SimpleInventory {
	residual := inventory.SimpleInventory{}
	for _, p := range postings {
		if p.Cost != nil && p.Lot == nil {
			continue
		}
		if w, ok := ast.Weight(p); ok {
			residual.Add(w)
		}
	}
	return residual
}

// bookLot resolves the cost of a posting held at cost. Reductions may be
// split over several lots, hence the slice.
func (b *Booker) bookLot(txn *ast.Transaction, p *ast.Posting) ([]*ast.Posting, error) {
	units := *p.Units
	if units.Number.IsZero() {
		return nil, NewBookingError(txn, p.Account, "Amount is zero: %s", units)
	}

	method := b.method(p.Account)
	lots := b.inventory(p.Account).Lots(units.Currency)
	if method == ast.BookingNone || !opposes(lots, units.Number) {
		lot, err := resolveCost(p.Cost, units, txn.Date)
		if err != nil {
			return nil, NewBookingError(txn, p.Account, "%s", err)
		}
		p.Lot = lot
		return []*ast.Posting{p}, nil
	}

	var matches []inventory.Position
	for _, l := range lots {
		if matchesLot(p.Cost, units, l.Cost) {
			matches = append(matches, l)
		}
	}
	if len(matches) == 0 {
		return nil, NewBookingError(txn, p.Account, "No position matches %q against balance %s",
			units.String()+" "+p.Cost.String(), b.inventory(p.Account))
	}

	switch method {
	case ast.BookingFIFO:
		// Lots are ordered oldest first.
	case ast.BookingLIFO:
		for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
			matches[i], matches[j] = matches[j], matches[i]
		}
	default:
		if len(matches) > 1 && !total(matches).Equal(units.Number.Neg()) {
			return nil, NewBookingError(txn, p.Account, "Ambiguous matches for %q: %s",
				units.String()+" "+p.Cost.String(), inventory.FromPositions(matches...))
		}
	}

	remaining := units.Number.Abs()
	var out []*ast.Posting
	for _, m := range matches {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(remaining, m.Units.Number.Abs())
		remaining = remaining.Sub(take)
		if units.Number.IsNegative() {
			take = take.Neg()
		}
		reduced := p.Clone()
		reduced.Units = &ast.Amount{Number: take, Currency: units.Currency}
		reduced.Lot = m.Cost
		out = append(out, reduced)
	}
	if !remaining.IsZero() {
		return nil, NewBookingError(txn, p.Account, "Not enough lots to reduce %q: %s",
			units.String()+" "+p.Cost.String(), inventory.FromPositions(matches...))
	}
	return out, nil
}

// opposes reports whether number has the opposite sign of the held lots.
func opposes(lots []inventory.Position, number decimal.Decimal) bool {
	for _, l := range lots {
		if l.Units.Number.Sign() != number.Sign() {
			return true
		}
	}
	return false
}

func total(positions []inventory.Position) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range positions {
		sum = sum.Add(p.Units.Number)
	}
	return sum
}

// matchesLot reports whether the attributes given in spec match cost.
func matchesLot(spec *ast.CostSpec, units ast.Amount, cost *ast.Cost) bool {
	if spec.Merge {
		return true
	}
	if spec.NumberPer != nil && !spec.NumberPer.Equal(cost.Number) {
		return false
	}
	if spec.NumberPer == nil && spec.NumberTotal != nil &&
		!spec.NumberTotal.Div(units.Number.Abs()).Equal(cost.Number) {
		return false
	}
	if spec.Currency != "" && spec.Currency != cost.Currency {
		return false
	}
	if !spec.Date.IsZero() && !spec.Date.Equal(cost.Date.Time) {
		return false
	}
	return spec.Label == "" || spec.Label == cost.Label
}

// resolveCost turns the spec of an augmentation into a lot. It returns a nil
// lot when the number or currency is missing and left for interpolation.
func resolveCost(spec *ast.CostSpec, units ast.Amount, date ast.Date) (*ast.Cost, error) {
	if spec.Merge {
		return nil, fmt.Errorf("merging lots with {*} is only valid for reductions")
	}
	var per *decimal.Decimal
	switch {
	case spec.NumberPer != nil && spec.NumberTotal != nil:
		n := spec.NumberPer.Add(spec.NumberTotal.Div(units.Number.Abs()))
		per = &n
	case spec.NumberPer != nil:
		per = spec.NumberPer
	case spec.NumberTotal != nil:
		n := spec.NumberTotal.Div(units.Number.Abs())
		per = &n
	}
	if per == nil || spec.Currency == "" {
		return nil, nil
	}
	lotDate := spec.Date
	if lotDate.IsZero() {
		lotDate = date
	}
	return &ast.Cost{Number: *per, Currency: spec.Currency, Date: lotDate, Label: spec.Label}, nil
}
