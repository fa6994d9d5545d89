package query

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/exp/slices"

	"github.com/robinvdvleuten/beanledger/ast"
	"github.com/robinvdvleuten/beanledger/inventory"
)

// Numberify replaces every Amount, Position and Inventory column with one
// Decimal column per currency observed in it, named "name (CUR)".
func Numberify(r *Result) *Result {
	type source struct {
		index    int
		currency string
	}

	var (
		columns []Column
		sources []source
	)
	for i, c := range r.Columns {
		switch c.Type {
		case TypeAmount, TypePosition, TypeInventory:
			for _, currency := range columnCurrencies(r, i) {
				columns = append(columns, Column{Name: c.Name + " (" + currency + ")", Type: TypeDecimal})
				sources = append(sources, source{index: i, currency: currency})
			}
		default:
			columns = append(columns, c)
			sources = append(sources, source{index: i})
		}
	}

	rows := make([][]any, len(r.Rows))
	for i, row := range r.Rows {
		out := make([]any, len(sources))
		for j, s := range sources {
			if s.currency == "" {
				out[j] = row[s.index]
				continue
			}
			if n, ok := units(row[s.index], s.currency); ok {
				out[j] = n
			}
		}
		rows[i] = out
	}
	return &Result{Columns: columns, Rows: rows}
}

func columnCurrencies(r *Result, index int) []string {
	var out []string
	for _, row := range r.Rows {
		var currencies []string
		switch x := row[index].(type) {
		case ast.Amount:
			currencies = []string{x.Currency}
		case inventory.Position:
			currencies = []string{x.Units.Currency}
		case *inventory.Inventory:
			currencies = x.Currencies()
		}
		for _, c := range currencies {
			if !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
	}
	return out
}

func units(v any, currency string) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case ast.Amount:
		return x.Number, x.Currency == currency
	case inventory.Position:
		return x.Units.Number, x.Units.Currency == currency
	case *inventory.Inventory:
		n := x.Units(currency)
		return n, !n.IsZero()
	}
	return decimal.Zero, false
}

// ToCSV writes the result with a header row.
func ToCSV(w io.Writer, r *Result) error {
	cw := csv.NewWriter(w)
	header := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		header[i] = c.Name
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := cw.WriteAll(r.Strings()); err != nil {
		return err
	}
	return cw.Error()
}

// ToXLSX writes the result as a workbook with a "Results" sheet and a
// "Query" sheet holding the query text.
func ToXLSX(w io.Writer, r *Result, text string) error {
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Results"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	for i, c := range r.Columns {
		if err := setCell(f, sheet, i, 1, c.Name); err != nil {
			return err
		}
	}
	for j, row := range r.Rows {
		for i, v := range row {
			if err := setCell(f, sheet, i, j+2, cellValue(v)); err != nil {
				return err
			}
		}
	}

	if _, err := f.NewSheet("Query"); err != nil {
		return err
	}
	if err := f.SetCellValue("Query", "A1", text); err != nil {
		return err
	}
	_, err := f.WriteTo(w)
	return err
}

func setCell(f *excelize.File, sheet string, col, row int, v any) error {
	cell, err := excelize.CoordinatesToCellName(col+1, row)
	if err != nil {
		return fmt.Errorf("cell %d,%d: %w", col, row, err)
	}
	return f.SetCellValue(sheet, cell, v)
}

// cellValue keeps numbers numeric in the spreadsheet.
func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case int64, bool:
		return x
	case decimal.Decimal:
		f, _ := x.Float64()
		return f
	case ast.Date:
		return x.Time
	}
	return FormatValue(v)
}
