package ast

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DisplayContext learns, per currency, how many fractional digits numbers
// are written with so rendering can pick the commonly used precision.
type DisplayContext struct {
	// fractional digit count -> occurrences, per currency
	counts map[string]map[int32]int
	// widest integer part seen, per currency
	integer map[string]int
	// RenderCommas groups thousands when formatting.
	RenderCommas bool
}

// NewDisplayContext returns an empty context.
func NewDisplayContext() *DisplayContext {
	return &DisplayContext{
		counts:  make(map[string]map[int32]int),
		integer: make(map[string]int),
	}
}

// Update records an observed number for currency.
func (dc *DisplayContext) Update(number decimal.Decimal, currency string) {
	if currency == "" {
		return
	}
	digits := Fractional(number)
	m, ok := dc.counts[currency]
	if !ok {
		m = make(map[int32]int)
		dc.counts[currency] = m
	}
	m[digits]++
	if w := len(number.Abs().Truncate(0).String()); w > dc.integer[currency] {
		dc.integer[currency] = w
	}
}

// Merge folds the observations of other into dc.
func (dc *DisplayContext) Merge(other *DisplayContext) {
	if other == nil {
		return
	}
	for cur, m := range other.counts {
		mine, ok := dc.counts[cur]
		if !ok {
			mine = make(map[int32]int)
			dc.counts[cur] = mine
		}
		for digits, n := range m {
			mine[digits] += n
		}
	}
	for cur, w := range other.integer {
		if w > dc.integer[cur] {
			dc.integer[cur] = w
		}
	}
}

// Precision returns the most common number of fractional digits for
// currency; ties go to the larger precision. ok is false for unseen
// currencies.
func (dc *DisplayContext) Precision(currency string) (digits int32, ok bool) {
	m, ok := dc.counts[currency]
	if !ok || len(m) == 0 {
		return 0, false
	}
	best, bestCount := int32(-1), -1
	for d, n := range m {
		if n > bestCount || (n == bestCount && d > best) {
			best, bestCount = d, n
		}
	}
	return best, true
}

// MaxPrecision returns the largest fractional digit count seen for currency.
func (dc *DisplayContext) MaxPrecision(currency string) int32 {
	var max int32
	for d := range dc.counts[currency] {
		if d > max {
			max = d
		}
	}
	return max
}

// Currencies returns all observed currencies, sorted.
func (dc *DisplayContext) Currencies() []string {
	out := make([]string, 0, len(dc.counts))
	for c := range dc.counts {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Format renders number with the common precision of currency. Numbers of
// unseen currencies are rendered as-is.
func (dc *DisplayContext) Format(number decimal.Decimal, currency string) string {
	var s string
	if digits, ok := dc.Precision(currency); ok {
		s = number.StringFixed(digits)
	} else {
		s = number.String()
	}
	if dc.RenderCommas {
		s = groupThousands(s)
	}
	return s
}

// FormatAmount renders "NUMBER CURRENCY" with Format.
func (dc *DisplayContext) FormatAmount(a Amount) string {
	return dc.Format(a.Number, a.Currency) + " " + a.Currency
}

// Fractional returns the number of digits after the decimal point of d as
// written (trailing zeros count).
func Fractional(d decimal.Decimal) int32 {
	if e := d.Exponent(); e < 0 {
		return -e
	}
	return 0
}

func groupThousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	out := sign + b.String()
	if hasFrac {
		out += "." + frac
	}
	return out
}
