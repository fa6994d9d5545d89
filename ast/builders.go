package ast

import (
	"github.com/shopspring/decimal"
)

// The builders below construct directives programmatically, for example for
// the synthetic padding and summarization entries the engine inserts, or for
// entries handed to the writer. Complex types take functional options.

// NewAmount parses value as a decimal and pairs it with currency.
//
// Example:
//
//	amount, err := ast.NewAmount("45.60", "USD")
func NewAmount(value, currency string) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Number: d, Currency: currency}, nil
}

// MustAmount is like NewAmount but panics on malformed input.
func MustAmount(value, currency string) Amount {
	a, err := NewAmount(value, currency)
	if err != nil {
		panic(err)
	}
	return a
}

// NewOpen creates an Open directive.
//
// Example:
//
//	open := ast.NewOpen(date, "Assets:Cash", "USD")
func NewOpen(date Date, account string, currencies ...string) *Open {
	return &Open{Date: date, Account: account, Currencies: currencies}
}

// NewClose creates a Close directive.
func NewClose(date Date, account string) *Close {
	return &Close{Date: date, Account: account}
}

// NewBalance creates a Balance directive.
func NewBalance(date Date, account string, amount Amount) *Balance {
	return &Balance{Date: date, Account: account, Amount: amount}
}

// NewPad creates a Pad directive.
func NewPad(date Date, account, source string) *Pad {
	return &Pad{Date: date, Account: account, Source: source}
}

// NewPrice creates a Price directive.
func NewPrice(date Date, currency string, amount Amount) *Price {
	return &Price{Date: date, Currency: currency, Amount: amount}
}

// NewNote creates a Note directive.
func NewNote(date Date, account, comment string) *Note {
	return &Note{Date: date, Account: account, Comment: comment}
}

// NewCustom creates a Custom directive.
func NewCustom(date Date, typ string, values ...MetaValue) *Custom {
	return &Custom{Date: date, Type: typ, Values: values}
}

// TransactionOption configures a Transaction built by NewTransaction.
type TransactionOption func(*Transaction)

// NewTransaction creates a transaction with flag "*" unless WithFlag says
// otherwise.
//
// Example:
//
//	txn := ast.NewTransaction(date, "Lunch",
//	    ast.WithPayee("Cafe"),
//	    ast.WithPostings(
//	        ast.NewPosting("Expenses:Food", ast.WithUnits(ast.MustAmount("10", "USD"))),
//	        ast.NewPosting("Assets:Cash"),
//	    ),
//	)
func NewTransaction(date Date, narration string, opts ...TransactionOption) *Transaction {
	t := &Transaction{Date: date, Flag: FlagOkay, Narration: narration}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// WithFlag sets the transaction flag.
func WithFlag(flag string) TransactionOption {
	return func(t *Transaction) { t.Flag = flag }
}

// WithPayee sets the payee.
func WithPayee(payee string) TransactionOption {
	return func(t *Transaction) { t.Payee = payee }
}

// WithTags appends tags.
func WithTags(tags ...Tag) TransactionOption {
	return func(t *Transaction) { t.Tags = append(t.Tags, tags...) }
}

// WithLinks appends links.
func WithLinks(links ...Link) TransactionOption {
	return func(t *Transaction) { t.Links = append(t.Links, links...) }
}

// WithPostings appends postings.
func WithPostings(postings ...*Posting) TransactionOption {
	return func(t *Transaction) { t.Postings = append(t.Postings, postings...) }
}

// WithTransactionMeta adds a metadata entry.
func WithTransactionMeta(key string, value MetaValue) TransactionOption {
	return func(t *Transaction) { t.Metadata.Set(key, value) }
}

// WithPosition sets the source position.
func WithPosition(pos Position) TransactionOption {
	return func(t *Transaction) { t.Pos = pos }
}

// PostingOption configures a Posting built by NewPosting.
type PostingOption func(*Posting)

// NewPosting creates a posting on account. Without WithUnits the number is
// left for booking to interpolate.
func NewPosting(account string, opts ...PostingOption) *Posting {
	p := &Posting{Account: account}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithUnits sets the posting units.
func WithUnits(a Amount) PostingOption {
	return func(p *Posting) { p.Units = &a }
}

// WithLot sets a resolved cost.
func WithLot(c Cost) PostingOption {
	return func(p *Posting) { p.Lot = &c }
}

// WithCostSpec sets the cost as written.
func WithCostSpec(c CostSpec) PostingOption {
	return func(p *Posting) { p.Cost = &c }
}

// WithPrice sets a per-unit price annotation.
func WithPrice(a Amount) PostingOption {
	return func(p *Posting) { p.Price = &a }
}

// WithPostingFlag sets the posting flag.
func WithPostingFlag(flag string) PostingOption {
	return func(p *Posting) { p.Flag = flag }
}

// WithPostingMeta adds a metadata entry.
func WithPostingMeta(key string, value MetaValue) PostingOption {
	return func(p *Posting) { p.Metadata.Set(key, value) }
}
