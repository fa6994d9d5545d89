package ast

import "github.com/shopspring/decimal"

// Kind identifies the variant of a directive. The numeric order is the
// canonical order of directives sharing a date: balance assertions apply at
// the start of their day, so they precede transactions, and closes come last.
type Kind uint8

const (
	KindOpen Kind = iota
	KindBalance
	KindNote
	KindDocument
	KindPad
	KindTransaction
	KindQuery
	KindCustom
	KindEvent
	KindPrice
	KindClose
	KindCommodity
)

var kindNames = [...]string{
	"open", "balance", "note", "document", "pad", "transaction",
	"query", "custom", "event", "price", "close", "commodity",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Directive is implemented by the twelve dated entry types.
type Directive interface {
	Position() Position
	GetDate() Date
	Kind() Kind
	// Directive returns the keyword used in source files.
	Directive() string
	GetMetadata() Metadata
}

// withMetadata is embedded in every directive.
type withMetadata struct {
	Metadata Metadata
}

// GetMetadata returns the directive's metadata.
func (w *withMetadata) GetMetadata() Metadata { return w.Metadata }

// AddMetadata appends or replaces metadata entries.
func (w *withMetadata) AddMetadata(entries ...MetaEntry) {
	for _, e := range entries {
		w.Metadata.Set(e.Key, e.Value)
	}
}

// Open declares the opening of an account at a specific date. The optional
// currency list constrains which commodities the account may hold and the
// booking method selects lot matching for reductions.
//
// Example:
//
//	2014-05-01 open Assets:US:BofA:Checking USD
//	2014-05-01 open Assets:Investments:Brokerage USD,EUR "FIFO"
type Open struct {
	Pos           Position
	Date          Date
	Account       string
	Currencies    []string
	BookingMethod BookingMethod

	withMetadata
}

var _ Directive = &Open{}

func (o *Open) Position() Position { return o.Pos }
func (o *Open) GetDate() Date      { return o.Date }
func (o *Open) Kind() Kind         { return KindOpen }
func (o *Open) Directive() string  { return "open" }

// Close declares the end of an account's lifetime. Postings after this date
// are errors; the account node itself remains in the tree.
//
// Example:
//
//	2015-09-23 close Assets:US:BofA:Checking
type Close struct {
	Pos     Position
	Date    Date
	Account string

	withMetadata
}

var _ Directive = &Close{}

func (c *Close) Position() Position { return c.Pos }
func (c *Close) GetDate() Date      { return c.Date }
func (c *Close) Kind() Kind         { return KindClose }
func (c *Close) Directive() string  { return "close" }

// Commodity declares a commodity. It is optional and mostly carries metadata.
//
// Example:
//
//	2014-01-01 commodity USD
//	  name: "US Dollar"
type Commodity struct {
	Pos      Position
	Date     Date
	Currency string

	withMetadata
}

var _ Directive = &Commodity{}

func (c *Commodity) Position() Position { return c.Pos }
func (c *Commodity) GetDate() Date      { return c.Date }
func (c *Commodity) Kind() Kind         { return KindCommodity }
func (c *Commodity) Directive() string  { return "commodity" }

// Balance asserts the balance of one commodity in an account at the
// beginning of the given date. Tolerance, when set, overrides the inferred
// tolerance (written as `100.00 ~ 0.01 USD`).
//
// Example:
//
//	2014-08-09 balance Assets:US:BofA:Checking 562.00 USD
type Balance struct {
	Pos       Position
	Date      Date
	Account   string
	Amount    Amount
	Tolerance *decimal.Decimal

	withMetadata
}

var _ Directive = &Balance{}

func (b *Balance) Position() Position { return b.Pos }
func (b *Balance) GetDate() Date      { return b.Date }
func (b *Balance) Kind() Kind         { return KindBalance }
func (b *Balance) Directive() string  { return "balance" }

// Pad inserts a transaction that brings Account up to the amount asserted by
// its next Balance, drawing the difference from Source.
//
// Example:
//
//	2014-01-01 pad Assets:US:BofA:Checking Equity:Opening-Balances
type Pad struct {
	Pos     Position
	Date    Date
	Account string
	Source  string

	withMetadata
}

var _ Directive = &Pad{}

func (p *Pad) Position() Position { return p.Pos }
func (p *Pad) GetDate() Date      { return p.Date }
func (p *Pad) Kind() Kind         { return KindPad }
func (p *Pad) Directive() string  { return "pad" }

// Note attaches a dated comment to an account.
//
// Example:
//
//	2014-07-09 note Assets:US:BofA:Checking "Called bank about pending deposit"
type Note struct {
	Pos     Position
	Date    Date
	Account string
	Comment string

	withMetadata
}

var _ Directive = &Note{}

func (n *Note) Position() Position { return n.Pos }
func (n *Note) GetDate() Date      { return n.Date }
func (n *Note) Kind() Kind         { return KindNote }
func (n *Note) Directive() string  { return "note" }

// Document links an external file to an account.
//
// Example:
//
//	2014-07-09 document Assets:US:BofA:Checking "/statements/2014-07.pdf"
type Document struct {
	Pos      Position
	Date     Date
	Account  string
	Filename string
	Tags     []Tag
	Links    []Link

	withMetadata
}

var _ Directive = &Document{}

func (d *Document) Position() Position { return d.Pos }
func (d *Document) GetDate() Date      { return d.Date }
func (d *Document) Kind() Kind         { return KindDocument }
func (d *Document) Directive() string  { return "document" }

// Event records the value of a named variable from a date on.
//
// Example:
//
//	2014-07-09 event "location" "Paris, France"
type Event struct {
	Pos         Position
	Date        Date
	Type        string
	Description string

	withMetadata
}

var _ Directive = &Event{}

func (e *Event) Position() Position { return e.Pos }
func (e *Event) GetDate() Date      { return e.Date }
func (e *Event) Kind() Kind         { return KindEvent }
func (e *Event) Directive() string  { return "event" }

// Query stores a named query string.
//
// Example:
//
//	2014-07-09 query "cash" "SELECT account, sum(position) WHERE account ~ 'Cash'"
type Query struct {
	Pos         Position
	Date        Date
	Name        string
	QueryString string

	withMetadata
}

var _ Directive = &Query{}

func (q *Query) Position() Position { return q.Pos }
func (q *Query) GetDate() Date      { return q.Date }
func (q *Query) Kind() Kind         { return KindQuery }
func (q *Query) Directive() string  { return "query" }

// Price declares the rate of Currency in units of Amount.Currency.
//
// Example:
//
//	2014-07-09 price HOOL 579.18 USD
type Price struct {
	Pos      Position
	Date     Date
	Currency string
	Amount   Amount

	withMetadata
}

var _ Directive = &Price{}

func (p *Price) Position() Position { return p.Pos }
func (p *Price) GetDate() Date      { return p.Date }
func (p *Price) Kind() Kind         { return KindPrice }
func (p *Price) Directive() string  { return "price" }

// Custom is an extension point: a type name followed by typed values.
//
// Example:
//
//	2024-01-01 custom "budget" Expenses:Food "monthly" 310 USD
type Custom struct {
	Pos    Position
	Date   Date
	Type   string
	Values []MetaValue

	withMetadata
}

var _ Directive = &Custom{}

func (c *Custom) Position() Position { return c.Pos }
func (c *Custom) GetDate() Date      { return c.Date }
func (c *Custom) Kind() Kind         { return KindCustom }
func (c *Custom) Directive() string  { return "custom" }

// Posting attributes an amount to an account within a transaction. Units is
// nil when the number is left for booking to interpolate. Cost holds the
// spec as written; after booking, Lot holds the resolved cost.
type Posting struct {
	Pos     Position
	Flag    string
	Account string
	Units   *Amount
	Cost    *CostSpec
	Lot     *Cost
	// Price is per-unit. TotalPrice keeps an @@ annotation as written; when
	// units are known at parse time Price is derived from it.
	Price      *Amount
	TotalPrice *Amount
	Metadata   Metadata
}

// HasUnits reports whether the posting carries a number.
func (p *Posting) HasUnits() bool { return p.Units != nil }

// Clone returns a shallow copy whose metadata is independent.
func (p *Posting) Clone() *Posting {
	c := *p
	c.Metadata = p.Metadata.Clone()
	return &c
}

// Transaction records movements between accounts. After booking, the
// weights of its postings sum to zero per currency within tolerance.
//
// Example:
//
//	2014-05-05 * "Cafe Mogador" "Lamb tagine with wine" #dinner ^receipt-42
//	  Liabilities:CreditCard:CapitalOne  -37.45 USD
//	  Expenses:Restaurant
type Transaction struct {
	Pos       Position
	Date      Date
	Flag      string
	Payee     string
	Narration string
	Tags      []Tag
	Links     []Link
	Postings  []*Posting

	withMetadata
}

var _ Directive = &Transaction{}

func (t *Transaction) Position() Position { return t.Pos }
func (t *Transaction) GetDate() Date      { return t.Date }
func (t *Transaction) Kind() Kind         { return KindTransaction }
func (t *Transaction) Directive() string  { return "transaction" }

// HasTag reports whether the transaction carries tag.
func (t *Transaction) HasTag(tag Tag) bool {
	for _, x := range t.Tags {
		if x == tag {
			return true
		}
	}
	return false
}

// HasLink reports whether the transaction carries link.
func (t *Transaction) HasLink(link Link) bool {
	for _, x := range t.Links {
		if x == link {
			return true
		}
	}
	return false
}

// Clone returns a copy with cloned postings so booking can fill in numbers
// without touching the parsed directive.
func (t *Transaction) Clone() *Transaction {
	c := *t
	c.Metadata = t.Metadata.Clone()
	c.Postings = make([]*Posting, len(t.Postings))
	for i, p := range t.Postings {
		c.Postings[i] = p.Clone()
	}
	return &c
}

// Accounts returns the accounts referenced by d in source order. For
// transactions these are the posting accounts.
func Accounts(d Directive) []string {
	switch e := d.(type) {
	case *Open:
		return []string{e.Account}
	case *Close:
		return []string{e.Account}
	case *Balance:
		return []string{e.Account}
	case *Pad:
		return []string{e.Account, e.Source}
	case *Note:
		return []string{e.Account}
	case *Document:
		return []string{e.Account}
	case *Custom:
		var accounts []string
		for _, v := range e.Values {
			if v.Kind == MetaAccount {
				accounts = append(accounts, v.Str)
			}
		}
		return accounts
	case *Transaction:
		accounts := make([]string, 0, len(e.Postings))
		for _, p := range e.Postings {
			accounts = append(accounts, p.Account)
		}
		return accounts
	}
	return nil
}
