// Package billing computes bill periods, payment status, trends and
// deadlines.
//
// Periods are anchored to calendar boundaries, never to a bill's creation
// date. Each frequency has its own PeriodStrategy, looked up in a fixed
// registry.
package billing

import (
	"fmt"
	"time"

	"tally/internal/calendar"
	"tally/internal/core"
)

// Period is one billing cycle. Start and End are inclusive.
type Period struct {
	Start core.Date `json:"start"`
	End   core.Date `json:"end"`
	Label string    `json:"label"`
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d core.Date) bool {
	return d.InRange(p.Start, p.End)
}

// PeriodStrategy computes the period containing a reference date.
type PeriodStrategy interface {
	Period(ref core.Date) Period
}

// monthSpan splits the year into consecutive blocks of months starting in
// January: 1 for monthly, 2 for the Jan-Feb, Mar-Apr pairs, 3 for quarters
// and 12 for the whole year.
type monthSpan struct {
	months int
	label  func(start time.Time) string
}

func (s monthSpan) Period(ref core.Date) Period {
	block := (int(ref.Month()) - 1) / s.months
	start := time.Date(ref.Year(), time.Month(block*s.months+1), 1, 0, 0, 0, 0, time.UTC)
	end := calendar.MonthEnd(calendar.AddMonths(start, s.months-1))
	return Period{
		Start: core.Date{Time: start},
		End:   core.Date{Time: end},
		Label: s.label(start),
	}
}

func monthLabel(start time.Time) string {
	return fmt.Sprintf("%s %d", start.Month(), start.Year())
}

func pairLabel(start time.Time) string {
	next := start.Month() + 1
	return fmt.Sprintf("%s-%s %d", start.Month().String()[:3], next.String()[:3], start.Year())
}

func quarterLabel(start time.Time) string {
	return fmt.Sprintf("Q%d %d", (int(start.Month())-1)/3+1, start.Year())
}

func yearLabel(start time.Time) string {
	return fmt.Sprintf("%d", start.Year())
}

var periodStrategies = map[core.Frequency]PeriodStrategy{
	core.Monthly:   monthSpan{months: 1, label: monthLabel},
	core.Bimonthly: monthSpan{months: 2, label: pairLabel},
	core.Quarterly: monthSpan{months: 3, label: quarterLabel},
	core.Yearly:    monthSpan{months: 12, label: yearLabel},
}

// StrategyFor returns the period strategy for a frequency.
func StrategyFor(freq core.Frequency) (PeriodStrategy, error) {
	s, ok := periodStrategies[freq]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, freq)
	}
	return s, nil
}

// CurrentPeriod returns the period of the given frequency that contains the
// calendar date of ref.
func CurrentPeriod(freq core.Frequency, ref time.Time) (Period, error) {
	s, err := StrategyFor(freq)
	if err != nil {
		return Period{}, err
	}
	return s.Period(core.DateOf(ref)), nil
}

// PeriodLabel renders the label of the period starting at periodStart.
func PeriodLabel(freq core.Frequency, periodStart core.Date) (string, error) {
	p, err := CurrentPeriod(freq, periodStart.Time)
	if err != nil {
		return "", err
	}
	return p.Label, nil
}
