package validation

import (
	"fmt"

	"github.com/robinvdvleuten/beanledger/ast"
)

// Error types for ledger validation errors. Each carries the directive it
// concerns and formats as "file:line: message".

// AccountNotOpenError is returned when a directive references an account
// that is not open on its date.
type AccountNotOpenError struct {
	Account   string
	Date      ast.Date
	Pos       ast.Position
	Directive ast.Directive
}

func (e *AccountNotOpenError) Error() string {
	return fmt.Sprintf("%s: Invalid reference to unknown account '%s'", e.Pos.Location(), e.Account)
}

func (e *AccountNotOpenError) GetPosition() ast.Position   { return e.Pos }
func (e *AccountNotOpenError) GetDirective() ast.Directive { return e.Directive }
func (e *AccountNotOpenError) GetAccount() string          { return e.Account }
func (e *AccountNotOpenError) GetDate() ast.Date           { return e.Date }

// AccountClosedError is returned when a directive references an account
// after its Close date.
type AccountClosedError struct {
	Account    string
	Date       ast.Date
	ClosedDate ast.Date
	Pos        ast.Position
	Directive  ast.Directive
}

func (e *AccountClosedError) Error() string {
	return fmt.Sprintf("%s: Invalid reference to inactive account '%s' (closed on %s)",
		e.Pos.Location(), e.Account, e.ClosedDate)
}

func (e *AccountClosedError) GetPosition() ast.Position   { return e.Pos }
func (e *AccountClosedError) GetDirective() ast.Directive { return e.Directive }
func (e *AccountClosedError) GetAccount() string          { return e.Account }
func (e *AccountClosedError) GetDate() ast.Date           { return e.Date }

// AccountAlreadyOpenError is returned when an account is opened twice.
type AccountAlreadyOpenError struct {
	Account    string
	Date       ast.Date
	OpenedDate ast.Date
	Pos        ast.Position
	Directive  ast.Directive
}

func (e *AccountAlreadyOpenError) Error() string {
	return fmt.Sprintf("%s: Account %s is already open (opened on %s)",
		e.Pos.Location(), e.Account, e.OpenedDate)
}

func (e *AccountAlreadyOpenError) GetPosition() ast.Position   { return e.Pos }
func (e *AccountAlreadyOpenError) GetDirective() ast.Directive { return e.Directive }
func (e *AccountAlreadyOpenError) GetAccount() string          { return e.Account }
func (e *AccountAlreadyOpenError) GetDate() ast.Date           { return e.Date }

// AccountAlreadyClosedError is returned when an account is closed twice.
type AccountAlreadyClosedError struct {
	Account    string
	Date       ast.Date
	ClosedDate ast.Date
	Pos        ast.Position
	Directive  ast.Directive
}

func (e *AccountAlreadyClosedError) Error() string {
	return fmt.Sprintf("%s: Account %s is already closed (closed on %s)",
		e.Pos.Location(), e.Account, e.ClosedDate)
}

func (e *AccountAlreadyClosedError) GetPosition() ast.Position   { return e.Pos }
func (e *AccountAlreadyClosedError) GetDirective() ast.Directive { return e.Directive }
func (e *AccountAlreadyClosedError) GetAccount() string          { return e.Account }
func (e *AccountAlreadyClosedError) GetDate() ast.Date           { return e.Date }

// AccountNotClosedError is returned when closing an account that was never
// opened.
type AccountNotClosedError struct {
	Account   string
	Date      ast.Date
	Pos       ast.Position
	Directive ast.Directive
}

func (e *AccountNotClosedError) Error() string {
	return fmt.Sprintf("%s: Cannot close account %s that was never opened", e.Pos.Location(), e.Account)
}

func (e *AccountNotClosedError) GetPosition() ast.Position   { return e.Pos }
func (e *AccountNotClosedError) GetDirective() ast.Directive { return e.Directive }
func (e *AccountNotClosedError) GetAccount() string          { return e.Account }
func (e *AccountNotClosedError) GetDate() ast.Date           { return e.Date }

// InvalidAccountNameError is returned for an Open whose account does not
// start with a configured root or has a malformed component.
type InvalidAccountNameError struct {
	Account   string
	Date      ast.Date
	Pos       ast.Position
	Directive ast.Directive
}

func (e *InvalidAccountNameError) Error() string {
	return fmt.Sprintf("%s: Invalid account name '%s'", e.Pos.Location(), e.Account)
}

func (e *InvalidAccountNameError) GetPosition() ast.Position   { return e.Pos }
func (e *InvalidAccountNameError) GetDirective() ast.Directive { return e.Directive }
func (e *InvalidAccountNameError) GetAccount() string          { return e.Account }
func (e *InvalidAccountNameError) GetDate() ast.Date           { return e.Date }

// CurrencyConstraintError is returned when an account receives a commodity
// its Open directive does not allow.
type CurrencyConstraintError struct {
	Account   string
	Currency  string
	Allowed   []string
	Date      ast.Date
	Pos       ast.Position
	Directive ast.Directive
}

func (e *CurrencyConstraintError) Error() string {
	return fmt.Sprintf("%s: Invalid currency %s for account '%s' (allowed: %v)",
		e.Pos.Location(), e.Currency, e.Account, e.Allowed)
}

func (e *CurrencyConstraintError) GetPosition() ast.Position   { return e.Pos }
func (e *CurrencyConstraintError) GetDirective() ast.Directive { return e.Directive }
func (e *CurrencyConstraintError) GetAccount() string          { return e.Account }
func (e *CurrencyConstraintError) GetDate() ast.Date           { return e.Date }

// BalanceError is returned when a balance assertion fails. DiffAmount is the
// actual balance minus the asserted one.
type BalanceError struct {
	Account    string
	Date       ast.Date
	Expected   ast.Amount
	Actual     ast.Amount
	DiffAmount ast.Amount
	Pos        ast.Position
	Directive  ast.Directive
}

func (e *BalanceError) Error() string {
	more := "less"
	if e.DiffAmount.Number.IsPositive() {
		more = "more"
	}
	return fmt.Sprintf("%s: Balance failed for '%s': expected %s != accumulated %s (%s %s)",
		e.Pos.Location(), e.Account, e.Expected, e.Actual, e.DiffAmount.Number.Abs(), more)
}

func (e *BalanceError) GetPosition() ast.Position   { return e.Pos }
func (e *BalanceError) GetDirective() ast.Directive { return e.Directive }
func (e *BalanceError) GetAccount() string          { return e.Account }
func (e *BalanceError) GetDate() ast.Date           { return e.Date }

// PadError is returned for a Pad that no Balance assertion used, or that
// could not be applied.
type PadError struct {
	Account   string
	Date      ast.Date
	Message   string
	Pos       ast.Position
	Directive ast.Directive
}

func (e *PadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos.Location(), e.Message)
}

func (e *PadError) GetPosition() ast.Position   { return e.Pos }
func (e *PadError) GetDirective() ast.Directive { return e.Directive }
func (e *PadError) GetAccount() string          { return e.Account }
func (e *PadError) GetDate() ast.Date           { return e.Date }

// Constructor functions. They take the directive at fault so position,
// date and directive stay consistent.

// NewAccountNotOpenError creates an error for a reference to account from d.
func NewAccountNotOpenError(d ast.Directive, account string) *AccountNotOpenError {
	return &AccountNotOpenError{Account: account, Date: d.GetDate(), Pos: d.Position(), Directive: d}
}

// NewAccountClosedError creates an error for a reference after the close.
func NewAccountClosedError(d ast.Directive, account string, closed ast.Date) *AccountClosedError {
	return &AccountClosedError{Account: account, Date: d.GetDate(), ClosedDate: closed, Pos: d.Position(), Directive: d}
}

// NewAccountAlreadyOpenError creates an error for a duplicate open.
func NewAccountAlreadyOpenError(open *ast.Open, opened ast.Date) *AccountAlreadyOpenError {
	return &AccountAlreadyOpenError{Account: open.Account, Date: open.Date, OpenedDate: opened, Pos: open.Pos, Directive: open}
}

// NewAccountAlreadyClosedError creates an error for a duplicate close.
func NewAccountAlreadyClosedError(c *ast.Close, closed ast.Date) *AccountAlreadyClosedError {
	return &AccountAlreadyClosedError{Account: c.Account, Date: c.Date, ClosedDate: closed, Pos: c.Pos, Directive: c}
}

// NewAccountNotClosedError creates an error for closing an unknown account.
func NewAccountNotClosedError(c *ast.Close) *AccountNotClosedError {
	return &AccountNotClosedError{Account: c.Account, Date: c.Date, Pos: c.Pos, Directive: c}
}

// NewInvalidAccountNameError creates an error for a malformed account.
func NewInvalidAccountNameError(open *ast.Open) *InvalidAccountNameError {
	return &InvalidAccountNameError{Account: open.Account, Date: open.Date, Pos: open.Pos, Directive: open}
}

// NewCurrencyConstraintError creates an error for a disallowed commodity.
func NewCurrencyConstraintError(d ast.Directive, open *ast.Open, currency string) *CurrencyConstraintError {
	return &CurrencyConstraintError{
		Account:   open.Account,
		Currency:  currency,
		Allowed:   open.Currencies,
		Date:      d.GetDate(),
		Pos:       d.Position(),
		Directive: d,
	}
}

// NewBalanceError creates an error for a failed assertion.
func NewBalanceError(b *ast.Balance, actual ast.Amount) *BalanceError {
	return &BalanceError{
		Account:    b.Account,
		Date:       b.Date,
		Expected:   b.Amount,
		Actual:     actual,
		DiffAmount: ast.Amount{Number: actual.Number.Sub(b.Amount.Number), Currency: b.Amount.Currency},
		Pos:        b.Pos,
		Directive:  b,
	}
}

// NewPadError creates an error for pad.
func NewPadError(pad *ast.Pad, format string, args ...any) *PadError {
	return &PadError{
		Account:   pad.Account,
		Date:      pad.Date,
		Message:   fmt.Sprintf(format, args...),
		Pos:       pad.Pos,
		Directive: pad,
	}
}
