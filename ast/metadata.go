package ast

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// MetaKind discriminates the value held by a MetaValue.
type MetaKind uint8

const (
	MetaString MetaKind = iota
	MetaAccount
	MetaCurrency
	MetaTag
	MetaLink
	MetaNumber
	MetaAmount
	MetaDate
	MetaBool
)

var metaKindNames = [...]string{"string", "account", "currency", "tag", "link", "number", "amount", "date", "bool"}

func (k MetaKind) String() string {
	if int(k) < len(metaKindNames) {
		return metaKindNames[k]
	}
	return "unknown"
}

// MetaValue is a typed value stored in metadata or in the value list of a
// Custom directive. Kind selects which field is meaningful; the string-like
// kinds (string, account, currency, tag, link) all use Str.
//
// Example metadata with different value types:
//
//	invoice: "INV-2024-001"           ; string
//	trip-start: 2024-01-15            ; date
//	linked-account: Assets:Checking   ; account
//	target-currency: USD              ; currency
//	quantity: 42                      ; number
//	budget: 1000.00 USD               ; amount
//	active: TRUE                      ; bool
type MetaValue struct {
	Kind   MetaKind
	Str    string
	Number decimal.Decimal
	Amount Amount
	Date   Date
	Bool   bool
}

// StringValue wraps a plain string.
func StringValue(s string) MetaValue { return MetaValue{Kind: MetaString, Str: s} }

// AccountValue wraps an account name.
func AccountValue(a string) MetaValue { return MetaValue{Kind: MetaAccount, Str: a} }

// NumberValue wraps a decimal.
func NumberValue(d decimal.Decimal) MetaValue { return MetaValue{Kind: MetaNumber, Number: d} }

// AmountValue wraps an amount.
func AmountValue(a Amount) MetaValue { return MetaValue{Kind: MetaAmount, Amount: a} }

// DateValue wraps a date.
func DateValue(d Date) MetaValue { return MetaValue{Kind: MetaDate, Date: d} }

// BoolValue wraps a boolean.
func BoolValue(b bool) MetaValue { return MetaValue{Kind: MetaBool, Bool: b} }

// String renders the value the way it is written in a source file, except
// that strings are returned unquoted.
func (v MetaValue) String() string {
	switch v.Kind {
	case MetaTag:
		return "#" + v.Str
	case MetaLink:
		return "^" + v.Str
	case MetaNumber:
		return v.Number.String()
	case MetaAmount:
		return v.Amount.String()
	case MetaDate:
		return v.Date.String()
	case MetaBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	default:
		return v.Str
	}
}

// Source renders the value in source syntax, quoting strings.
func (v MetaValue) Source() string {
	if v.Kind == MetaString {
		return strconv.Quote(v.Str)
	}
	return v.String()
}

// MetaEntry is a single key/value pair.
type MetaEntry struct {
	Key   string
	Value MetaValue
}

// Metadata is an ordered key/value list. Source order is kept so that entries
// round-trip through the writer; keys appended later go to the end.
type Metadata []MetaEntry

// Get returns the value for key.
func (m Metadata) Get(key string) (MetaValue, bool) {
	for _, e := range m {
		if e.Key == key {
			return e.Value, true
		}
	}
	return MetaValue{}, false
}

// Has reports whether key is present.
func (m Metadata) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// Set replaces the value of key or appends it.
func (m *Metadata) Set(key string, value MetaValue) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, MetaEntry{Key: key, Value: value})
}

// Delete removes key if present.
func (m *Metadata) Delete(key string) {
	out := (*m)[:0]
	for _, e := range *m {
		if e.Key != key {
			out = append(out, e)
		}
	}
	*m = out
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return append(Metadata(nil), m...)
}

// Reserved metadata keys that are derived from the source position instead
// of being stored.
const (
	MetaFilename = "filename"
	MetaLineno   = "lineno"
)

// LookupMeta resolves key on a directive, answering the reserved position
// keys from the directive's source position.
func LookupMeta(d Directive, key string) (MetaValue, bool) {
	switch key {
	case MetaFilename:
		return StringValue(d.Position().Filename), true
	case MetaLineno:
		return NumberValue(decimal.NewFromInt(int64(d.Position().Line))), true
	}
	return d.GetMetadata().Get(key)
}

// NextKey returns key if unused, otherwise the first of key-2, key-3, ...
// that is free.
func (m Metadata) NextKey(key string) string {
	if !m.Has(key) {
		return key
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", key, i)
		if !m.Has(candidate) {
			return candidate
		}
	}
}
