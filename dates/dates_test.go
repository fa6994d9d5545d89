package dates

import (
	"errors"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/robinvdvleuten/beanledger/ast"
)

func TestIntervalBoundaries(t *testing.T) {
	d := ast.MustDate("2024-05-15") // a Wednesday
	tests := []struct {
		interval Interval
		prev     string
		next     string
		format   string
		days     int
	}{
		{Year, "2024-01-01", "2025-01-01", "2024", 366},
		{Quarter, "2024-04-01", "2024-07-01", "2024-Q2", 91},
		{Month, "2024-05-01", "2024-06-01", "2024-05", 31},
		{Week, "2024-05-13", "2024-05-20", "2024-W20", 7},
		{Day, "2024-05-15", "2024-05-16", "2024-05-15", 1},
	}
	for _, tt := range tests {
		t.Run(tt.interval.String(), func(t *testing.T) {
			assert.Equal(t, tt.prev, tt.interval.Prev(d).String())
			assert.Equal(t, tt.next, tt.interval.Next(d).String())
			assert.Equal(t, tt.format, tt.interval.Format(d))
			assert.Equal(t, tt.days, tt.interval.Days(d))
		})
	}
}

func TestParseInterval(t *testing.T) {
	i, ok := ParseInterval("Monthly")
	assert.True(t, ok)
	assert.Equal(t, Month, i)
	_, ok = ParseInterval("fortnight")
	assert.False(t, ok)
}

func TestDateRanges(t *testing.T) {
	begin, end := ast.MustDate("2024-01-15"), ast.MustDate("2024-03-10")

	ranges, err := DateRanges(begin, end, Month, false)
	assert.NoError(t, err)
	var got []string
	for _, r := range ranges {
		got = append(got, r.String())
	}
	assert.Equal(t, []string{
		"2024-01-15 - 2024-01-31",
		"2024-02-01 - 2024-02-29",
		"2024-03-01 - 2024-03-09",
	}, got)

	ranges, err = DateRanges(begin, end, Month, true)
	assert.NoError(t, err)
	assert.Equal(t, "2024-01-01", ranges[0].Begin.String())
	assert.Equal(t, "2024-04-01", ranges[len(ranges)-1].End.String())

	_, err = DateRanges(end, begin, Month, false)
	assert.IsError(t, err, ErrInvalidDateRange)
	_, err = NewDateRange(begin, begin)
	assert.IsError(t, err, ErrInvalidDateRange)
}

func TestFiscalYearEnd(t *testing.T) {
	fye, err := ParseFiscalYearEnd("03-31")
	assert.NoError(t, err)
	assert.True(t, fye.HasQuarters())

	_, err = ParseFiscalYearEnd("13-45")
	assert.Error(t, err)
	_, err = ParseFiscalYearEnd("march")
	assert.Error(t, err)

	odd, err := ParseFiscalYearEnd("06-15")
	assert.NoError(t, err)
	assert.False(t, odd.HasQuarters())
	_, err = FiscalPeriod(2024, odd, 2)
	assert.Error(t, err)

	next, err := ParseFiscalYearEnd("15-31")
	assert.NoError(t, err)
	r, err := FiscalPeriod(2024, next, 0)
	assert.NoError(t, err)
	assert.Equal(t, "2024-04-01 - 2025-03-31", r.String())
}

func TestFiscalPeriod(t *testing.T) {
	tests := []struct {
		name    string
		fye     string
		year    int
		quarter int
		want    string
	}{
		{"calendar year", "12-31", 2024, 0, "2024-01-01 - 2024-12-31"},
		{"april start", "03-31", 2024, 0, "2023-04-01 - 2024-03-31"},
		{"april start q1", "03-31", 2024, 1, "2023-04-01 - 2023-06-30"},
		{"april start q4", "03-31", 2024, 4, "2024-01-01 - 2024-03-31"},
		{"end of february", "02-28", 2024, 0, "2023-03-01 - 2024-02-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fye, err := ParseFiscalYearEnd(tt.fye)
			assert.NoError(t, err)
			r, err := FiscalPeriod(tt.year, fye, tt.quarter)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, r.String())
		})
	}
}

func TestSubstitute(t *testing.T) {
	today := ast.MustDate("2024-01-20")
	april, err := ParseFiscalYearEnd("03-31")
	assert.NoError(t, err)

	tests := []struct {
		in   string
		fye  FiscalYearEnd
		want string
	}{
		{"year", EndOfYear, "2024"},
		{"(year-1)", EndOfYear, "2023"},
		{"year+2", EndOfYear, "2026"},
		{"month", EndOfYear, "2024-01"},
		{"month-1", EndOfYear, "2023-12"},
		{"month+13", EndOfYear, "2025-02"},
		{"quarter", EndOfYear, "2024-Q1"},
		{"quarter-1", EndOfYear, "2023-Q4"},
		{"week", EndOfYear, "2024-W03"},
		{"day-1", EndOfYear, "2024-01-19"},
		{"fiscal_year", EndOfYear, "FY2024"},
		{"fiscal_year", april, "FY2024"},
		{"fiscal_year+1", april, "FY2025"},
		{"fiscal_quarter", april, "FY2024-Q4"},
		{"fiscal_quarter+1", april, "FY2025-Q1"},
		{"year - month", EndOfYear, "2024 - 2024-01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Substitute(tt.in, tt.fye, today)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	odd, _ := ParseFiscalYearEnd("06-15")
	_, err = Substitute("fiscal_quarter", odd, today)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	today := ast.MustDate("2024-05-15")
	tests := []struct {
		in    string
		begin string
		end   string
	}{
		{"2024", "2024-01-01", "2025-01-01"},
		{"2024-03", "2024-03-01", "2024-04-01"},
		{"2024-03-15", "2024-03-15", "2024-03-16"},
		{"2024-Q2", "2024-04-01", "2024-07-01"},
		{"2024-W01", "2024-01-01", "2024-01-08"},
		{"2021-W01", "2021-01-04", "2021-01-11"},
		{"FY2024", "2024-01-01", "2025-01-01"},
		{"FY2024-Q3", "2024-07-01", "2024-10-01"},
		{"2020 - 2022", "2020-01-01", "2023-01-01"},
		{"2024-01 to 2024-03", "2024-01-01", "2024-04-01"},
		{"2024-01-01 - 2024-01-31", "2024-01-01", "2024-02-01"},
		{"year", "2024-01-01", "2025-01-01"},
		{"month-1", "2024-04-01", "2024-05-01"},
		{"this month", "2024-05-01", "2024-06-01"},
		{"ytd", "2024-01-01", "2024-05-16"},
		{"year-1 - year", "2023-01-01", "2025-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			begin, end, err := Parse(tt.in, EndOfYear, today)
			assert.NoError(t, err)
			assert.Equal(t, tt.begin, begin.String())
			assert.Equal(t, tt.end, end.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	today := ast.MustDate("2024-05-15")
	for _, in := range []string{"yesterday", "2024-13", "2024-Q5", "2024-W60", "24"} {
		t.Run(in, func(t *testing.T) {
			_, _, err := Parse(in, EndOfYear, today)
			var perr *ParseError
			assert.True(t, errors.As(err, &perr), "%v", err)
		})
	}

	begin, end, err := Parse("", EndOfYear, today)
	assert.NoError(t, err)
	assert.True(t, begin.IsZero() && end.IsZero())
}
