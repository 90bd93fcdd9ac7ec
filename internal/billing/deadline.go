package billing

import (
	"sort"
	"time"

	"tally/internal/calendar"
	"tally/internal/core"
)

// DueBill is an unpaid bill whose reminder window is open.
type DueBill struct {
	Bill              core.Bill `json:"bill"`
	Period            Period    `json:"period"`
	Deadline          core.Date `json:"deadline"`
	DaysUntilDeadline int       `json:"days_until_deadline"`
	Overdue           bool      `json:"overdue"`
}

// BillStatus is a bill with its current period, payment state and history.
type BillStatus struct {
	Bill              core.Bill  `json:"bill"`
	Period            Period     `json:"period"`
	Paid              bool       `json:"paid"`
	Payments          []Payment  `json:"payments"`
	LatestPayment     *Payment   `json:"latest_payment,omitempty"`
	Trend             *Trend     `json:"trend,omitempty"`
	Deadline          *core.Date `json:"deadline,omitempty"`
	DaysUntilDeadline *int       `json:"days_until_deadline,omitempty"`
}

// DeadlineDate places deadlineDay inside the month of periodStart, clamped to
// that month's length.
func DeadlineDate(periodStart core.Date, deadlineDay int) core.Date {
	y, m := periodStart.Year(), periodStart.Time.Month()
	if last := calendar.DaysInMonth(y, m); deadlineDay > last {
		deadlineDay = last
	}
	if deadlineDay < 1 {
		deadlineDay = 1
	}
	return core.Date{Time: time.Date(y, m, deadlineDay, 0, 0, 0, 0, time.UTC)}
}

// DaysUntilDeadline returns the whole days from today's calendar date to the
// deadline. Negative values mean overdue.
func DaysUntilDeadline(deadline core.Date, today time.Time) int {
	return calendar.DaysBetween(today, deadline.Time)
}

// ShouldWarn reports whether a reminder or overdue warning is due.
func ShouldWarn(daysUntil, leadDays int) bool {
	return daysUntil <= leadDays
}

// UpcomingDeadlines lists the active, unpaid bills with a deadline day whose
// warning fires on today. The result is ordered most urgent first. Bills with
// an unknown frequency are returned in skipped.
func UpcomingDeadlines(bills []core.Bill, payments map[string][]Payment, today time.Time) (due []DueBill, skipped []core.Bill) {
	for _, b := range bills {
		if !b.Active || b.DeadlineDay == nil {
			continue
		}
		period, err := CurrentPeriod(b.Frequency, today)
		if err != nil {
			skipped = append(skipped, b)
			continue
		}
		if IsPaidForPeriod(payments[b.ID], period.Start, period.End) {
			continue
		}
		deadline := DeadlineDate(period.Start, *b.DeadlineDay)
		days := DaysUntilDeadline(deadline, today)
		if !ShouldWarn(days, b.ReminderLead()) {
			continue
		}
		due = append(due, DueBill{
			Bill:              b,
			Period:            period,
			Deadline:          deadline,
			DaysUntilDeadline: days,
			Overdue:           days < 0,
		})
	}
	SortByUrgency(due)
	return due, skipped
}

// SortByUrgency orders due bills by days until deadline ascending, then name.
func SortByUrgency(due []DueBill) {
	sort.SliceStable(due, func(i, j int) bool {
		if due[i].DaysUntilDeadline != due[j].DaysUntilDeadline {
			return due[i].DaysUntilDeadline < due[j].DaysUntilDeadline
		}
		return due[i].Bill.Name < due[j].Bill.Name
	})
}

// StatusFor builds the status of every bill for the period containing today.
// Bills with an unknown frequency are left out and returned in skipped.
func StatusFor(bills []core.Bill, payments map[string][]Payment, today time.Time) (out []BillStatus, skipped []core.Bill) {
	out = make([]BillStatus, 0, len(bills))
	for _, b := range bills {
		period, err := CurrentPeriod(b.Frequency, today)
		if err != nil {
			skipped = append(skipped, b)
			continue
		}
		history := SortedByPeriod(payments[b.ID])
		st := BillStatus{
			Bill:     b,
			Period:   period,
			Paid:     IsPaidForPeriod(history, period.Start, period.End),
			Payments: history,
		}
		if len(history) > 0 {
			st.LatestPayment = &history[0]
		}
		if len(history) > 1 {
			st.Trend = ComputeTrend(&history[0], &history[1])
		}
		if b.DeadlineDay != nil {
			deadline := DeadlineDate(period.Start, *b.DeadlineDay)
			days := DaysUntilDeadline(deadline, today)
			st.Deadline = &deadline
			st.DaysUntilDeadline = &days
		}
		out = append(out, st)
	}
	return out, skipped
}
