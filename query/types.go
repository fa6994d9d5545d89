package query

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
)

// Type is the type of a result column. Values of each type are carried as
// the Go type named in its comment; nil is NULL for every type.
type Type int

const (
	TypeObject    Type = iota // any, rendered with fmt
	TypeBool                  // bool
	TypeInt                   // int64
	TypeString                // string
	TypeDate                  // ast.Date
	TypeDecimal               // decimal.Decimal
	TypeAmount                // ast.Amount
	TypePosition              // inventory.Position
	TypeInventory             // *inventory.Inventory
	TypeSet                   // []string, sorted
)

var typeNames = [...]string{"object", "bool", "int", "str", "date", "Decimal", "Amount", "Position", "Inventory", "set"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "unknown"
}

// Column describes one result column.
type Column struct {
	Name string
	Type Type
}

// Result is the table produced by a query.
type Result struct {
	Columns []Column
	Rows    [][]any
}

// Equal reports whether both results have the same column types and rows.
func (r *Result) Equal(other *Result) bool {
	if len(r.Columns) != len(other.Columns) || len(r.Rows) != len(other.Rows) {
		return false
	}
	for i, c := range r.Columns {
		if c.Type != other.Columns[i].Type {
			return false
		}
	}
	for i, row := range r.Rows {
		for j, v := range row {
			if compareValues(v, other.Rows[i][j]) != 0 {
				return false
			}
		}
	}
	return true
}

// Plottable reports whether the result is a series that can be charted:
// exactly two columns, a string or date label and an inventory.
func (r *Result) Plottable() bool {
	if len(r.Columns) != 2 {
		return false
	}
	label := r.Columns[0].Type
	return (label == TypeString || label == TypeDate) && r.Columns[1].Type == TypeInventory
}

// Strings renders every cell with FormatValue.
func (r *Result) Strings() [][]string {
	out := make([][]string, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = make([]string, len(row))
		for j, v := range row {
			out[i][j] = FormatValue(v)
		}
	}
	return out
}

// FormatValue renders a cell value as text. NULL renders as the empty
// string.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case string:
		return x
	case ast.Date:
		return x.String()
	case decimal.Decimal:
		return x.String()
	case ast.Amount:
		return x.String()
	case inventory.Position:
		return x.String()
	case *inventory.Inventory:
		s := x.String()
		return strings.TrimSuffix(strings.TrimPrefix(s, "("), ")")
	case []string:
		return strings.Join(x, ",")
	}
	return fmt.Sprint(v)
}

// compareValues orders two values of the same type. NULL sorts first.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		}
		return 1
	}
	switch x := a.(type) {
	case bool:
		y, _ := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case int64:
		y, _ := b.(int64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
		return 0
	case string:
		return strings.Compare(x, fmt.Sprint(b))
	case ast.Date:
		y, _ := b.(ast.Date)
		return x.Compare(y)
	case decimal.Decimal:
		y, _ := b.(decimal.Decimal)
		return x.Cmp(y)
	case ast.Amount:
		y, _ := b.(ast.Amount)
		if c := strings.Compare(x.Currency, y.Currency); c != 0 {
			return c
		}
		return x.Number.Cmp(y.Number)
	case []string:
		y, _ := b.([]string)
		return slices.Compare(x, y)
	case *inventory.Inventory:
		if y, ok := b.(*inventory.Inventory); ok && x.Equal(y) {
			return 0
		}
	}
	return strings.Compare(FormatValue(a), FormatValue(b))
}

// valueKey identifies a value for grouping and DISTINCT.
func valueKey(v any) string {
	if v == nil {
		return "\x00"
	}
	return fmt.Sprintf("%T:%s", v, FormatValue(v))
}

func rowKey(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = valueKey(v)
	}
	return strings.Join(parts, "\x1f")
}
