// Package dates implements the calendar arithmetic behind time filters and
// interval reports: intervals (day to year), half-open date ranges, fiscal
// years and the date expression language of the time filter.
package dates

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robinvdvleuten/beanledger/ast"
)

// Interval is a calendar period used to group entries.
type Interval int

const (
	Year Interval = iota
	Quarter
	Month
	Week
	Day
)

var intervalNames = map[string]Interval{
	"year": Year, "yearly": Year,
	"quarter": Quarter, "quarterly": Quarter,
	"month": Month, "monthly": Month,
	"week": Week, "weekly": Week,
	"day": Day, "daily": Day,
}

// ParseInterval reads an interval name such as "month" or "monthly".
func ParseInterval(s string) (Interval, bool) {
	i, ok := intervalNames[strings.ToLower(strings.TrimSpace(s))]
	return i, ok
}

// String returns the singular name of the interval.
func (i Interval) String() string {
	switch i {
	case Year:
		return "year"
	case Quarter:
		return "quarter"
	case Month:
		return "month"
	case Week:
		return "week"
	case Day:
		return "day"
	}
	return "unknown"
}

// Label is the adjective used in report headings.
func (i Interval) Label() string {
	switch i {
	case Year:
		return "Yearly"
	case Quarter:
		return "Quarterly"
	case Month:
		return "Monthly"
	case Week:
		return "Weekly"
	case Day:
		return "Daily"
	}
	return ""
}

// Format renders d the way the time filter reads it back for this
// interval: "2024", "2024-Q1", "2024-01", "2024-W01" or "2024-01-15".
func (i Interval) Format(d ast.Date) string {
	switch i {
	case Year:
		return fmt.Sprintf("%04d", d.Year())
	case Quarter:
		return fmt.Sprintf("%04d-Q%d", d.Year(), (int(d.Month())-1)/3+1)
	case Month:
		return d.Format("2006-01")
	case Week:
		year, week := d.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	}
	return d.String()
}

// Prev returns the first day of the interval containing d.
func (i Interval) Prev(d ast.Date) ast.Date {
	switch i {
	case Year:
		return ast.NewDateYMD(d.Year(), time.January, 1)
	case Quarter:
		m := (int(d.Month())-1)/3*3 + 1
		return ast.NewDateYMD(d.Year(), time.Month(m), 1)
	case Month:
		return ast.NewDateYMD(d.Year(), d.Month(), 1)
	case Week:
		return d.AddDays(-weekday(d))
	}
	return d
}

// Next returns the first day of the interval following the one containing d.
func (i Interval) Next(d ast.Date) ast.Date {
	switch i {
	case Year:
		return ast.NewDateYMD(d.Year()+1, time.January, 1)
	case Quarter:
		return ast.NewDateYMD(i.Prev(d).Year(), i.Prev(d).Month()+3, 1)
	case Month:
		return ast.NewDateYMD(d.Year(), d.Month()+1, 1)
	case Week:
		return d.AddDays(7 - weekday(d))
	}
	return d.AddDays(1)
}

// Days returns the length in days of the interval containing d.
func (i Interval) Days(d ast.Date) int {
	switch i {
	case Week:
		return 7
	case Day:
		return 1
	}
	start := i.Prev(d)
	return start.DaysUntil(i.Next(start))
}

// weekday counts from Monday = 0.
func weekday(d ast.Date) int {
	return (int(d.Weekday()) + 6) % 7
}

// ErrInvalidDateRange is returned for a range whose end is not after its
// begin.
var ErrInvalidDateRange = errors.New("end date needs to be after begin date")

// DateRange is the half-open range [Begin, End).
type DateRange struct {
	Begin ast.Date
	End   ast.Date
}

// NewDateRange checks that end is after begin.
func NewDateRange(begin, end ast.Date) (DateRange, error) {
	if !end.After(begin) {
		return DateRange{}, ErrInvalidDateRange
	}
	return DateRange{Begin: begin, End: end}, nil
}

// EndInclusive returns the last day of the range.
func (r DateRange) EndInclusive() ast.Date {
	return r.End.AddDays(-1)
}

// Contains reports whether d lies in the range.
func (r DateRange) Contains(d ast.Date) bool {
	return !d.Before(r.Begin) && d.Before(r.End)
}

func (r DateRange) String() string {
	return r.Begin.String() + " - " + r.EndInclusive().String()
}

// DateRanges splits [begin, end) into consecutive intervals. With complete
// the first and last ranges are widened to whole intervals; otherwise they
// are clipped to begin and end.
func DateRanges(begin, end ast.Date, interval Interval, complete bool) ([]DateRange, error) {
	if !end.After(begin) {
		return nil, ErrInvalidDateRange
	}
	current := begin
	if complete {
		current = interval.Prev(begin)
	}
	var out []DateRange
	for current.Before(end) {
		next := interval.Next(current)
		if !complete && next.After(end) {
			next = end
		}
		out = append(out, DateRange{Begin: current, End: next})
		current = next
	}
	return out, nil
}

// DaysIn returns every day of [begin, end).
func DaysIn(begin, end ast.Date) []ast.Date {
	var out []ast.Date
	for d := begin; d.Before(end); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out
}
