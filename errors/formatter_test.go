package errors

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/loader"
	"github.com/robinvdvleuten/beanledger/parser"
	"github.com/robinvdvleuten/beanledger/validation"
)

type positionalError struct {
	pos ast.Position
	msg string
}

func (e positionalError) Error() string             { return fmt.Sprintf("%s: %s", e.pos.Location(), e.msg) }
func (e positionalError) GetPosition() ast.Position { return e.pos }

const source = `2024-01-01 open Assets:Cash USD
2024-01-02 * "Coffee"
  Assets:Cash  -3.50 USD
  Expenses:Coffee  3.50 USD
2024-01-03 balance Assets:Cash 10.00 USD
`

func loadErrors(t *testing.T) []error {
	t.Helper()
	result := loader.New().LoadSource(context.Background(), "main.beancount", []byte(source))
	assert.Equal(t, 2, len(result.Errors), "%v", result.Errors)
	return result.Errors
}

func TestTextFormatter(t *testing.T) {
	errs := loadErrors(t)
	tf := NewTextFormatter(nil)

	var notOpen *validation.AccountNotOpenError
	var balance *validation.BalanceError
	for _, err := range errs {
		switch e := err.(type) {
		case *validation.AccountNotOpenError:
			notOpen = e
		case *validation.BalanceError:
			balance = e
		}
	}
	assert.NotZero(t, notOpen)
	assert.NotZero(t, balance)

	assert.Equal(t, notOpen.Error()+"\n\n"+
		"   2024-01-02 * \"Coffee\"\n"+
		"     Assets:Cash  -3.50 USD\n"+
		"     Expenses:Coffee  3.50 USD\n", tf.Format(notOpen))

	assert.Equal(t, balance.Error()+"\n\n"+
		"   2024-01-03 balance Assets:Cash  10.00 USD\n", tf.Format(balance))

	block := strings.TrimRight(tf.Format(balance), "\n")
	assert.Equal(t, block+"\n\n"+block, tf.FormatAll([]error{balance, balance}))
}

func TestTextFormatterParseError(t *testing.T) {
	src := []byte("2024-01-01 open Assets:Cash\n2024-01-02 * \"Coffee\"\n  Assets:Cash  3.50 USD USD\n")
	err := &parser.ParseError{
		Pos:     ast.Position{Filename: "main.beancount", Line: 3, Column: 25},
		Message: "unexpected token",
		Source:  src,
	}

	assert.Equal(t, "main.beancount:3: unexpected token\n\n"+
		"   2024-01-01 open Assets:Cash\n"+
		"   2024-01-02 * \"Coffee\"\n"+
		"     Assets:Cash  3.50 USD USD\n"+
		"   "+strings.Repeat(" ", 24)+"^\n"+
		"   \n", NewTextFormatter(nil).Format(err))

	err.Source = nil
	assert.Equal(t, "main.beancount:3: unexpected token", NewTextFormatter(nil).Format(err))
}

func TestTextFormatterPositionOnly(t *testing.T) {
	err := positionalError{pos: ast.Position{Filename: "main.beancount", Line: 1}, msg: "something went wrong"}

	assert.Equal(t, "main.beancount:1: something went wrong", NewTextFormatter(nil).Format(err))

	tf := NewTextFormatter(nil, WithSource([]byte("option \"title\" \"Test\"\n")))
	assert.Equal(t, "main.beancount:1: something went wrong\n\n   option \"title\" \"Test\"\n   \n", tf.Format(err))

	assert.Equal(t, "plain", tf.Format(fmt.Errorf("plain")))
}

func TestJSONFormatter(t *testing.T) {
	errs := loadErrors(t)
	jf := NewJSONFormatter()

	var records []ErrorJSON
	assert.NoError(t, json.Unmarshal([]byte(jf.FormatAll(errs)), &records))
	assert.Equal(t, 2, len(records))

	for _, rec := range records {
		switch rec.Type {
		case "AccountNotOpenError":
			assert.Equal(t, 2, rec.Position.Line)
			assert.Equal(t, map[string]string{"account": "Expenses:Coffee", "date": "2024-01-02"}, rec.Details)
			assert.NotEqual(t, "", rec.Entry)
		case "BalanceError":
			assert.Equal(t, 5, rec.Position.Line)
			assert.Equal(t, "Assets:Cash", rec.Details["account"])
		default:
			t.Fatalf("unexpected record %+v", rec)
		}
	}

	plain := jf.Format(fmt.Errorf("plain"))
	assert.Equal(t, `{"type":"errorString","message":"plain"}`, plain)
}
