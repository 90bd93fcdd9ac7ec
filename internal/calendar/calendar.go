// Package calendar provides pure calendar arithmetic used by the billing and
// summary engines.
//
// Every function takes and returns time.Time values, so callers never observe
// mutation of their inputs. Results are truncated to midnight in the location
// of the input unless stated otherwise.
package calendar

import (
	"fmt"
	"time"
)

// ISOLayout is the canonical date layout used at every API boundary.
const ISOLayout = "2006-01-02"

// FormatISODate renders t as YYYY-MM-DD in t's own location.
func FormatISODate(t time.Time) string {
	return t.Format(ISOLayout)
}

// ParseISODate parses a YYYY-MM-DD string as midnight UTC.
func ParseISODate(s string) (time.Time, error) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WeekStart returns the Monday of the week containing t. Sunday belongs to
// the week that started six days earlier.
func WeekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	offset := 1 - weekday
	if weekday == 0 {
		offset = -6
	}
	return StartOfDay(t).AddDate(0, 0, offset)
}

// WeekDates returns the seven consecutive dates starting at weekStart.
func WeekDates(weekStart time.Time) [7]time.Time {
	var week [7]time.Time
	start := StartOfDay(weekStart)
	for i := range week {
		week[i] = start.AddDate(0, 0, i)
	}
	return week
}

// MonthStart returns the first day of the month containing t.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthEnd returns the last day of the month containing t, computed as day 0
// of the following month.
func MonthEnd(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, t.Location())
}

// DaysInMonth returns the number of days in the given month (28-31).
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddMonths adds n months to t. When the target month is shorter than t's
// day of month the result is clamped to the target month's last day, so
// Jan 31 + 1 month is Feb 28 (or 29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := DaysInMonth(first.Year(), first.Month()); d > last {
		d = last
	}
	hh, mm, ss := t.Clock()
	return time.Date(first.Year(), first.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// SameDay reports whether a and b fall on the same calendar date, each in its
// own location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysBetween returns the whole number of calendar days from start to end.
// Both ends are reduced to their calendar dates first.
func DaysBetween(start, end time.Time) int {
	s := civil(start)
	e := civil(end)
	return int(e.Sub(s).Hours() / 24)
}

// civil maps t's calendar date onto midnight UTC so day arithmetic is not
// disturbed by DST transitions.
func civil(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
