package billing

import (
	"sort"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Direction of a payment trend.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
	Same Direction = "same"
)

// Payment is the bill-payment view of an expense.
type Payment struct {
	ID          string          `json:"id"`
	BillID      string          `json:"bill_id"`
	Amount      decimal.Decimal `json:"amount"`
	PeriodStart core.Date       `json:"period_start"`
	PeriodEnd   core.Date       `json:"period_end"`
	PaidAt      core.Date       `json:"paid_at"`
}

// Trend is the change between a bill's two most recent payments.
// Indeterminate is set when the previous amount is zero, in which case
// Percentage is 0 and only Direction carries information.
type Trend struct {
	Direction     Direction `json:"direction"`
	Percentage    int64     `json:"percentage"`
	Indeterminate bool      `json:"indeterminate,omitempty"`
}

// PaymentFromExpense returns the payment view of e, if e is a bill payment.
func PaymentFromExpense(e core.Expense) (Payment, bool) {
	if !e.IsBillPayment() {
		return Payment{}, false
	}
	return Payment{
		ID:          e.ID,
		BillID:      e.Payment.BillID,
		Amount:      e.Amount,
		PeriodStart: e.Payment.PeriodStart,
		PeriodEnd:   e.Payment.PeriodEnd,
		PaidAt:      e.Date,
	}, true
}

// PaymentsByBill groups the bill payments found in expenses by bill ID.
func PaymentsByBill(expenses []core.Expense) map[string][]Payment {
	out := make(map[string][]Payment)
	for _, e := range expenses {
		if p, ok := PaymentFromExpense(e); ok {
			out[p.BillID] = append(out[p.BillID], p)
		}
	}
	return out
}

// IsPaidForPeriod reports whether any payment covers exactly [start, end].
func IsPaidForPeriod(payments []Payment, start, end core.Date) bool {
	for _, p := range payments {
		if p.PeriodStart.Equal(start.Time) && p.PeriodEnd.Equal(end.Time) {
			return true
		}
	}
	return false
}

// SortedByPeriod returns a copy of payments ordered by period start,
// most recent first.
func SortedByPeriod(payments []Payment) []Payment {
	out := make([]Payment, len(payments))
	copy(out, payments)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PeriodStart.After(out[j].PeriodStart.Time)
	})
	return out
}

// ComputeTrend compares latest against previous. It returns nil if either is
// missing.
func ComputeTrend(latest, previous *Payment) *Trend {
	if latest == nil || previous == nil {
		return nil
	}
	t := &Trend{Direction: Same}
	switch latest.Amount.Cmp(previous.Amount) {
	case 1:
		t.Direction = Up
	case -1:
		t.Direction = Down
	}
	if previous.Amount.IsZero() {
		t.Indeterminate = true
		return t
	}
	diff := latest.Amount.Sub(previous.Amount).Abs()
	t.Percentage = diff.Div(previous.Amount.Abs()).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	return t
}

// TrendFor computes the trend from the two most recent payments by period
// start.
func TrendFor(payments []Payment) *Trend {
	if len(payments) < 2 {
		return nil
	}
	sorted := SortedByPeriod(payments)
	return ComputeTrend(&sorted[0], &sorted[1])
}
