package summary

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"tally/internal/calendar"
	"tally/internal/core"
	"tally/internal/recurring"
)

// SpendingItem is one entry of a day's spending. It is implemented only by
// ExpenseItem, RecurringOccurrence and LendingOut.
type SpendingItem interface {
	Amount() decimal.Decimal
	isSpendingItem()
}

// ExpenseItem is a one-time expense or bill payment dated on the day.
type ExpenseItem struct {
	Expense core.Expense
}

// RecurringOccurrence is a recurring expense active on the day.
type RecurringOccurrence struct {
	Expense core.Expense
	Date    core.Date
}

// LendingOut is money lent on the day.
type LendingOut struct {
	Record core.LendingRecord
}

func (i ExpenseItem) Amount() decimal.Decimal         { return i.Expense.Amount }
func (i RecurringOccurrence) Amount() decimal.Decimal { return i.Expense.Amount }
func (i LendingOut) Amount() decimal.Decimal          { return i.Record.Amount }

func (ExpenseItem) isSpendingItem()         {}
func (RecurringOccurrence) isSpendingItem() {}
func (LendingOut) isSpendingItem()          {}

func (i ExpenseItem) MarshalJSON() ([]byte, error) {
	kind := "expense"
	if i.Expense.IsBillPayment() {
		kind = "bill_payment"
	}
	return json.Marshal(struct {
		Kind string `json:"kind"`
		core.Expense
	}{kind, i.Expense})
}

func (i RecurringOccurrence) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		core.Expense
		OccursOn core.Date `json:"occurs_on"`
	}{"recurring", i.Expense, i.Date})
}

func (i LendingOut) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind string `json:"kind"`
		core.LendingRecord
	}{"lending", i.Record})
}

// DailyItems lists what was spent on date: one-time expenses and bill
// payments dated that day, recurring expenses active that day and money lent
// that day. Each day is resolved on its own.
func DailyItems(r Records, date core.Date) []SpendingItem {
	idx := r.billIndex()
	var items []SpendingItem
	for _, e := range r.Expenses {
		if e.Kind == core.OneTime && e.Date.Equal(date.Time) && !isDangling(idx, e) {
			items = append(items, ExpenseItem{Expense: e})
		}
	}
	for _, e := range r.Expenses {
		def, ok := recurring.FromExpense(e)
		if ok && recurring.IsActiveOn(def, date.Time) {
			items = append(items, RecurringOccurrence{Expense: e, Date: date})
		}
	}
	for _, l := range r.Lending {
		if l.Amount.IsPositive() && l.Date.Equal(date.Time) {
			items = append(items, LendingOut{Record: l})
		}
	}
	return items
}

// DailyTotal sums DailyItems for date.
func DailyTotal(r Records, date core.Date) decimal.Decimal {
	total := decimal.Zero
	for _, item := range DailyItems(r, date) {
		total = total.Add(item.Amount())
	}
	return total
}

// DayTotal is one calendar cell.
type DayTotal struct {
	Date  core.Date       `json:"date"`
	Total decimal.Decimal `json:"total"`
}

// Week is the Monday-to-Sunday calendar view around a date.
type Week struct {
	Start core.Date       `json:"start"`
	Days  [7]DayTotal     `json:"days"`
	Total decimal.Decimal `json:"total"`
}

// WeekTotals computes the daily totals of the week containing date.
func WeekTotals(r Records, date core.Date) Week {
	dates := calendar.WeekDates(calendar.WeekStart(date.Time))
	w := Week{Start: core.Date{Time: dates[0]}, Total: decimal.Zero}
	for i, d := range dates {
		day := core.Date{Time: d}
		total := DailyTotal(r, day)
		w.Days[i] = DayTotal{Date: day, Total: total}
		w.Total = w.Total.Add(total)
	}
	return w
}
