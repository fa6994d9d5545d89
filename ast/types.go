package ast

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only date format accepted inside directives.
const DateLayout = "2006-01-02"

// Date represents a calendar date in ISO 8601 format (YYYY-MM-DD). All
// directives carry a date; it is the primary sort key of the entry stream.
// The wrapped time is always midnight UTC so dates compare with ==.
type Date struct {
	time.Time
}

// NewDate parses a date string in YYYY-MM-DD format.
//
// Example:
//
//	date, err := ast.NewDate("2024-01-15")
func NewDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date: %s", s)
	}
	return Date{Time: t}, nil
}

// MustDate is like NewDate but panics on malformed input. Meant for tests and
// constants.
func MustDate(s string) Date {
	d, err := NewDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return Date{Time: time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)}
}

// NewDateYMD builds a date from its components, normalising overflow the way
// time.Date does.
func NewDateYMD(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// String returns the date formatted as YYYY-MM-DD, or "" for the zero date.
func (d Date) String() string {
	if d.Time.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool { return d.Time.Before(other.Time) }

// After reports whether d is strictly after other.
func (d Date) After(other Date) bool { return d.Time.After(other.Time) }

// Compare returns -1, 0 or +1 depending on whether d is before, equal to or
// after other.
func (d Date) Compare(other Date) int { return d.Time.Compare(other.Time) }

// DaysUntil returns the number of days from d to other.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

// Link represents a reference link starting with ^, used to connect related
// transactions together. The caret is not stored.
//
// Example: 2014-05-05 * "Payment" ^trip-to-europe
type Link string

// Tag represents a hashtag starting with #, used to categorize and filter
// transactions. The hash is not stored.
//
// Example: 2014-05-05 * "Dinner" #dining #entertainment
type Tag string

// Amount is a signed arbitrary-precision number paired with a commodity.
// Two amounts are equal iff both number and currency are equal; there is no
// implicit cross-commodity coercion.
type Amount struct {
	Number   decimal.Decimal
	Currency string
}

// IsZero reports whether the number is exactly zero.
func (a Amount) IsZero() bool { return a.Number.IsZero() }

// Neg returns the amount with its sign flipped.
func (a Amount) Neg() Amount { return Amount{Number: a.Number.Neg(), Currency: a.Currency} }

// Equal compares number and currency.
func (a Amount) Equal(other Amount) bool {
	return a.Currency == other.Currency && a.Number.Equal(other.Number)
}

// String renders the amount as "NUMBER CURRENCY".
func (a Amount) String() string {
	return a.Number.String() + " " + a.Currency
}

// BookingMethod selects how reductions are matched against existing lots.
type BookingMethod string

const (
	BookingStrict BookingMethod = "STRICT"
	BookingFIFO   BookingMethod = "FIFO"
	BookingLIFO   BookingMethod = "LIFO"
	BookingNone   BookingMethod = "NONE"
)

// ParseBookingMethod validates a booking method name (case-insensitive).
func ParseBookingMethod(s string) (BookingMethod, error) {
	switch m := BookingMethod(strings.ToUpper(s)); m {
	case BookingStrict, BookingFIFO, BookingLIFO, BookingNone:
		return m, nil
	}
	return "", fmt.Errorf("unknown booking method %q", s)
}

// Cost is a resolved lot: the per-unit cost basis, its currency, the
// acquisition date and an optional label. Two positions with equal units but
// different cost are distinct. Cost is comparable and usable as a map key
// once normalised through Key.
type Cost struct {
	Number   decimal.Decimal
	Currency string
	Date     Date
	Label    string
}

// CostKey is the comparable form of a Cost used as an inventory key.
type CostKey struct {
	Number   string
	Currency string
	Date     Date
	Label    string
}

// Key returns the comparable representation of c. A nil cost maps to the
// zero key.
func (c *Cost) Key() CostKey {
	if c == nil {
		return CostKey{}
	}
	return CostKey{Number: c.Number.String(), Currency: c.Currency, Date: c.Date, Label: c.Label}
}

// Equal compares all lot attributes.
func (c *Cost) Equal(other *Cost) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Key() == other.Key()
}

// String renders the cost in the brace syntax of the source format.
func (c *Cost) String() string {
	if c == nil {
		return ""
	}
	parts := []string{c.Number.String() + " " + c.Currency}
	if !c.Date.IsZero() {
		parts = append(parts, c.Date.String())
	}
	if c.Label != "" {
		parts = append(parts, fmt.Sprintf("%q", c.Label))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// CostSpec is a possibly incomplete cost as written in a posting. It is
// resolved into a Cost during booking.
//
// Example cost specifications:
//
//	10 HOOL {518.73 USD}              ; Per-unit cost
//	10 HOOL {{5187.30 USD}}           ; Total cost
//	10 HOOL {518.73 USD, 2014-05-01}  ; Cost with acquisition date
//	-5 HOOL {502.12 USD, "first-lot"} ; Cost with label for lot selection
//	-5 HOOL {}                        ; Any lot (booking method decides)
type CostSpec struct {
	NumberPer   *decimal.Decimal
	NumberTotal *decimal.Decimal
	Currency    string
	Date        Date
	Label       string
	Merge       bool
}

// IsEmpty reports whether the spec constrains nothing ({}).
func (c *CostSpec) IsEmpty() bool {
	return c != nil && c.NumberPer == nil && c.NumberTotal == nil &&
		c.Currency == "" && c.Date.IsZero() && c.Label == "" && !c.Merge
}

// Flags written on transactions. The synthetic flags mark entries generated by
// the engine rather than the user.
const (
	FlagOkay        = "*"
	FlagWarning     = "!"
	FlagPadding     = "P"
	FlagSummarize   = "S"
	FlagTransfer    = "T"
	FlagConversions = "C"
	FlagUnrealized  = "U"
	FlagReturns     = "R"
	FlagMerging     = "M"
)

// IsSyntheticFlag reports whether flag marks an engine-generated transaction.
func IsSyntheticFlag(flag string) bool {
	switch flag {
	case FlagPadding, FlagSummarize, FlagTransfer, FlagConversions, FlagUnrealized, FlagReturns, FlagMerging:
		return true
	}
	return false
}

// String renders the spec in brace syntax, {{...}} for a total cost.
func (c *CostSpec) String() string {
	if c == nil {
		return ""
	}
	var parts []string
	switch {
	case c.NumberTotal != nil && c.NumberPer == nil:
		parts = append(parts, strings.TrimSpace(c.NumberTotal.String()+" "+c.Currency))
	case c.NumberPer != nil:
		p := c.NumberPer.String()
		if c.NumberTotal != nil {
			p += " # " + c.NumberTotal.String()
		}
		parts = append(parts, strings.TrimSpace(p+" "+c.Currency))
	case c.Currency != "":
		parts = append(parts, c.Currency)
	}
	if !c.Date.IsZero() {
		parts = append(parts, c.Date.String())
	}
	if c.Label != "" {
		parts = append(parts, fmt.Sprintf("%q", c.Label))
	}
	if c.Merge {
		parts = append(parts, "*")
	}
	body := strings.Join(parts, ", ")
	if c.NumberTotal != nil && c.NumberPer == nil {
		return "{{" + body + "}}"
	}
	return "{" + body + "}"
}
