package booking

import (
	"fmt"
	"strings"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
)

// BookingError is returned when a transaction cannot be booked: too many
// missing numbers, a reduction that matches no lot or several, or a
// residual outside tolerance. The transaction is kept as written.
type BookingError struct {
	Pos       ast.Position
	Date      ast.Date
	Account   string
	Message   string
	Directive ast.Directive
}

func (e *BookingError) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos.Location(), e.Message)
}

func (e *BookingError) GetPosition() ast.Position {
	return e.Pos
}

func (e *BookingError) GetDirective() ast.Directive {
	return e.Directive
}

func (e *BookingError) GetAccount() string {
	return e.Account
}

func (e *BookingError) GetDate() ast.Date {
	return e.Date
}

// NewBookingError creates a BookingError for txn. account is empty when the
// failure concerns the transaction as a whole.
func NewBookingError(txn *ast.Transaction, account, format string, args ...any) *BookingError {
	return &BookingError{
		Pos:       txn.Pos,
		Date:      txn.Date,
		Account:   account,
		Message:   fmt.Sprintf(format, args...),
		Directive: txn,
	}
}

// newUnbalancedError reports the residual left after interpolation.
func newUnbalancedError(txn *ast.Transaction, residual inventory.SimpleInventory) *BookingError {
	amounts := residual.Amounts()
	parts := make([]string, len(amounts))
	for i, a := range amounts {
		parts[i] = a.String()
	}
	return NewBookingError(txn, "", "Transaction does not balance: (%s)", strings.Join(parts, ", "))
}
