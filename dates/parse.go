package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/robinvdvleuten/beanledger/ast"
)

// FiscalYearEnd is the last day of the fiscal year. A Month above 12 moves
// the end into the next calendar year, so 15-31 ends a fiscal year on March
// 31 of the year after its label.
type FiscalYearEnd struct {
	Month int
	Day   int
}

// EndOfYear is the calendar year.
var EndOfYear = FiscalYearEnd{Month: 12, Day: 31}

var fyeRe = regexp.MustCompile(`^(\d{2})-(\d{2})$`)

// ParseFiscalYearEnd reads a fiscal year end written as MM-DD.
func ParseFiscalYearEnd(s string) (FiscalYearEnd, error) {
	m := fyeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return FiscalYearEnd{}, fmt.Errorf("invalid fiscal year end %q", s)
	}
	month, _ := strconv.Atoi(m[1])
	day, _ := strconv.Atoi(m[2])
	fye := FiscalYearEnd{Month: month, Day: day}
	moy := fye.MonthOfYear()
	if month < 1 || day < 1 || day > ast.NewDateYMD(2001, time.Month(moy)+1, 0).Day() {
		return FiscalYearEnd{}, fmt.Errorf("invalid fiscal year end %q", s)
	}
	return fye, nil
}

// MonthOfYear is Month folded into 1..12.
func (f FiscalYearEnd) MonthOfYear() int {
	return (f.Month-1)%12 + 1
}

// YearOffset is the number of calendar years the end lies after the label.
func (f FiscalYearEnd) YearOffset() int {
	return (f.Month - 1) / 12
}

// HasQuarters reports whether the fiscal year starts on the first of a
// month, which fiscal quarters require.
func (f FiscalYearEnd) HasQuarters() bool {
	return ast.NewDateYMD(2001, time.Month(f.MonthOfYear()), f.Day).AddDays(1).Day() == 1
}

func (f FiscalYearEnd) String() string {
	return fmt.Sprintf("%02d-%02d", f.Month, f.Day)
}

// FiscalPeriod returns the fiscal year labelled year, or one of its quarters
// when quarter is between 1 and 4.
func FiscalPeriod(year int, fye FiscalYearEnd, quarter int) (DateRange, error) {
	var start ast.Date
	if fye.MonthOfYear() == 2 && fye.Day == 28 {
		start = ast.NewDateYMD(year-1+fye.YearOffset(), time.March, 1)
	} else {
		start = ast.NewDateYMD(year-1+fye.YearOffset(), time.Month(fye.MonthOfYear()), fye.Day).AddDays(1)
	}
	if quarter == 0 {
		return DateRange{Begin: start, End: addMonths(start, 12)}, nil
	}
	if quarter < 1 || quarter > 4 {
		return DateRange{}, fmt.Errorf("invalid quarter %d", quarter)
	}
	if !fye.HasQuarters() {
		return DateRange{}, fmt.Errorf("fiscal year end %s does not allow quarters", fye)
	}
	begin := addMonths(start, (quarter-1)*3)
	return DateRange{Begin: begin, End: addMonths(begin, 3)}, nil
}

func addMonths(d ast.Date, months int) ast.Date {
	return ast.Date{Time: d.AddDate(0, months, 0)}
}

var variableRe = regexp.MustCompile(`\(?(fiscal_year|year|fiscal_quarter|quarter|month|week|day)(?:([-+])(\d+))?\)?`)

// Substitute replaces the date variables in s with their values relative to
// today. Each variable may carry an offset, as in "month-1" or
// "(fiscal_year+2)".
func Substitute(s string, fye FiscalYearEnd, today ast.Date) (string, error) {
	var err error
	out := variableRe.ReplaceAllStringFunc(s, func(match string) string {
		m := variableRe.FindStringSubmatch(match)
		offset := 0
		if m[2] != "" {
			offset, _ = strconv.Atoi(m[3])
			if m[2] == "-" {
				offset = -offset
			}
		}
		v, verr := substituteVariable(m[1], offset, fye, today)
		if verr != nil {
			err = verr
			return match
		}
		return v
	})
	return out, err
}

func substituteVariable(name string, offset int, fye FiscalYearEnd, today ast.Date) (string, error) {
	switch name {
	case "day":
		return today.AddDays(offset).String(), nil
	case "week":
		return Week.Format(today.AddDays(7 * offset)), nil
	case "month":
		m := int(today.Month()) - 1 + offset
		return fmt.Sprintf("%04d-%02d", today.Year()+floorDiv(m, 12), floorMod(m, 12)+1), nil
	case "quarter":
		q := (int(today.Month())-1)/3 + offset
		return fmt.Sprintf("%04d-Q%d", today.Year()+floorDiv(q, 4), floorMod(q, 4)+1), nil
	case "year":
		return fmt.Sprintf("%04d", today.Year()+offset), nil
	case "fiscal_year":
		year := today.Year() + offset
		if int(today.Month()) > fye.MonthOfYear() || (int(today.Month()) == fye.MonthOfYear() && today.Day() > fye.Day) {
			year++
		}
		return fmt.Sprintf("FY%04d", year-fye.YearOffset()), nil
	case "fiscal_quarter":
		if !fye.HasQuarters() {
			return "", fmt.Errorf("cannot use fiscal_quarter with fiscal year end %s", fye)
		}
		target := addMonths(ast.NewDateYMD(today.Year(), today.Month(), 1), offset*3)
		year := target.Year() - fye.YearOffset()
		if int(target.Month()) > fye.MonthOfYear() {
			year++
		}
		quarter := floorMod(floorDiv(int(target.Month())-fye.MonthOfYear()-1, 3), 4) + 1
		return fmt.Sprintf("FY%04d-Q%d", year, quarter), nil
	}
	return "", fmt.Errorf("unknown date variable %q", name)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	return a - floorDiv(a, b)*b
}

var (
	yearRe       = regexp.MustCompile(`^\d{4}$`)
	monthRe      = regexp.MustCompile(`^(\d{4})-(\d{2})$`)
	dayRe        = regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`)
	weekRe       = regexp.MustCompile(`^(\d{4})-w(\d{2})$`)
	quarterRe    = regexp.MustCompile(`^(\d{4})-q(\d)$`)
	fyRe         = regexp.MustCompile(`^fy(\d{4})$`)
	fyQuarterRe  = regexp.MustCompile(`^fy(\d{4})-q(\d)$`)
	rangeRightRe = regexp.MustCompile(`^\s*(?:fy)*\d{4}`)
)

// ParseError reports a date expression that could not be read.
type ParseError struct {
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse date: %q", e.Input)
}

// Parse reads a date expression into the half-open range it denotes.
//
// Accepted forms are years (2024), quarters (2024-Q1), months (2024-01),
// ISO weeks (2024-W05), days (2024-01-15), fiscal years (FY2024) and fiscal
// quarters (FY2024-Q3), the variables understood by Substitute, the
// shorthands "ytd" and "this <interval>", and ranges of any two of these
// joined by "-" or "to". An empty expression yields zero dates.
func Parse(s string, fye FiscalYearEnd, today ast.Date) (ast.Date, ast.Date, error) {
	expr := strings.ToLower(strings.TrimSpace(s))
	if expr == "" {
		return ast.Date{}, ast.Date{}, nil
	}
	expr = expandShorthands(expr, today)

	expr, err := Substitute(expr, fye, today)
	if err != nil {
		return ast.Date{}, ast.Date{}, err
	}
	expr = strings.ToLower(expr)

	if left, right, ok := splitRange(expr); ok {
		begin, _, err := parseSingle(strings.TrimSpace(left), fye)
		if err != nil {
			return ast.Date{}, ast.Date{}, &ParseError{Input: s}
		}
		_, end, err := parseSingle(strings.TrimSpace(right), fye)
		if err != nil {
			return ast.Date{}, ast.Date{}, &ParseError{Input: s}
		}
		return begin, end, nil
	}

	begin, end, err := parseSingle(expr, fye)
	if err != nil {
		return ast.Date{}, ast.Date{}, &ParseError{Input: s}
	}
	return begin, end, nil
}

func expandShorthands(expr string, today ast.Date) string {
	if expr == "ytd" {
		return fmt.Sprintf("%04d-01-01 - day", today.Year())
	}
	if rest, ok := strings.CutPrefix(expr, "this "); ok {
		if _, ok := ParseInterval(rest); ok {
			return rest
		}
	}
	return expr
}

// splitRange finds the first "-" or "to" followed by something that starts
// like a year.
func splitRange(expr string) (string, string, bool) {
	for i := 0; i < len(expr); i++ {
		var rest string
		switch {
		case expr[i] == '-':
			rest = expr[i+1:]
		case strings.HasPrefix(expr[i:], "to"):
			rest = expr[i+2:]
		default:
			continue
		}
		if rangeRightRe.MatchString(rest) {
			return expr[:i], rest, true
		}
	}
	return "", "", false
}

func parseSingle(s string, fye FiscalYearEnd) (ast.Date, ast.Date, error) {
	if m := dayRe.FindStringSubmatch(s); m != nil {
		d, err := ast.NewDate(s)
		if err != nil {
			return ast.Date{}, ast.Date{}, err
		}
		return d, d.AddDays(1), nil
	}
	if m := weekRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		week, _ := strconv.Atoi(m[2])
		if week < 1 || week > 53 {
			return ast.Date{}, ast.Date{}, fmt.Errorf("invalid week %d", week)
		}
		begin := isoWeekStart(year, week)
		return begin, begin.AddDays(7), nil
	}
	if m := quarterRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		q, _ := strconv.Atoi(m[2])
		if q < 1 || q > 4 {
			return ast.Date{}, ast.Date{}, fmt.Errorf("invalid quarter %d", q)
		}
		begin := ast.NewDateYMD(year, time.Month((q-1)*3+1), 1)
		return begin, Quarter.Next(begin), nil
	}
	if m := monthRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month < 1 || month > 12 {
			return ast.Date{}, ast.Date{}, fmt.Errorf("invalid month %d", month)
		}
		begin := ast.NewDateYMD(year, time.Month(month), 1)
		return begin, Month.Next(begin), nil
	}
	if yearRe.MatchString(s) {
		year, _ := strconv.Atoi(s)
		return ast.NewDateYMD(year, time.January, 1), ast.NewDateYMD(year+1, time.January, 1), nil
	}
	if m := fyQuarterRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		q, _ := strconv.Atoi(m[2])
		r, err := FiscalPeriod(year, fye, q)
		return r.Begin, r.End, err
	}
	if m := fyRe.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		r, err := FiscalPeriod(year, fye, 0)
		return r.Begin, r.End, err
	}
	return ast.Date{}, ast.Date{}, fmt.Errorf("unrecognised date %q", s)
}

// isoWeekStart returns the Monday of ISO week w of year.
func isoWeekStart(year, week int) ast.Date {
	jan4 := ast.NewDateYMD(year, time.January, 4)
	return jan4.AddDays(-weekday(jan4) + (week-1)*7)
}
