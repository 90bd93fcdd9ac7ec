// Package recurring decides on which calendar dates a recurring expense or
// income definition produces an occurrence.
//
// A definition is active on a date when either
//
//  1. the date is the definition's creation date, or
//  2. the date's day of month equals DayOfMonth and the date is in a month
//     after the creation month, or in the creation month itself when the
//     creation day is not past DayOfMonth and the date is not before the
//     creation date.
//
// Days are never clamped: a DayOfMonth of 31 has no occurrence in shorter
// months.
package recurring

import (
	"time"

	"tally/internal/calendar"
	"tally/internal/core"
)

// Definition is the part of a recurring record that drives its schedule.
type Definition struct {
	CreatedAt  time.Time
	DayOfMonth int
}

// FromExpense returns the schedule of a recurring expense.
func FromExpense(e core.Expense) (Definition, bool) {
	if e.Kind != core.Recurring {
		return Definition{}, false
	}
	return Definition{CreatedAt: e.CreatedAt, DayOfMonth: e.DayOfMonth}, true
}

// IsActiveOn reports whether def has an occurrence on the calendar date of
// target. The creation date is taken in CreatedAt's own location.
func IsActiveOn(def Definition, target time.Time) bool {
	if calendar.SameDay(def.CreatedAt, target) {
		return true
	}
	created := core.DateOf(def.CreatedAt)
	day := core.DateOf(target)

	if day.Day() != def.DayOfMonth {
		return false
	}

	cy, cm := created.Year(), created.Month()
	ty, tm := day.Year(), day.Month()
	switch {
	case ty > cy || (ty == cy && tm > cm):
		return true
	case ty == cy && tm == cm:
		return created.Day() <= def.DayOfMonth && !day.Before(created.Time)
	default:
		return false
	}
}

// Occurrences lists the dates in [from, to] on which def is active, checking
// each date independently.
func Occurrences(def Definition, from, to core.Date) []core.Date {
	var out []core.Date
	for d := from; !d.After(to.Time); d = (core.Date{Time: d.AddDate(0, 0, 1)}) {
		if IsActiveOn(def, d.Time) {
			out = append(out, d)
		}
	}
	return out
}
