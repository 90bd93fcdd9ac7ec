// Package summary aggregates an owner's records into spending and income
// breakdowns for a date window, per-day calendar totals and the monthly net
// summary.
//
// Recurring expenses and recurring additional income are steady-state
// monthly figures: they are summed in full regardless of the window. Only
// per-day views resolve individual occurrences.
//
// All functions are pure. Callers load Records once and may call any number
// of aggregations on them concurrently.
package summary

import (
	"fmt"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// Synthetic category buckets.
const (
	SubscriptionsCategory = "Subscriptions"
	LendingCategory       = "Lending"
)

// Records is everything an aggregation reads for one owner.
// When Bills is nil, bill payments are not checked against existing bills.
type Records struct {
	Expenses         []core.Expense
	AdditionalIncome []core.AdditionalIncome
	Lending          []core.LendingRecord
	Income           *core.Income
	Bills            []core.Bill
}

// Warning reports a record that was skipped because of a data-integrity
// problem.
type Warning struct {
	Code      string `json:"code"`
	ExpenseID string `json:"expense_id"`
	BillID    string `json:"bill_id"`
	Message   string `json:"message"`
}

const codeDanglingReference = "dangling_reference"

func danglingWarning(e core.Expense) Warning {
	return Warning{
		Code:      codeDanglingReference,
		ExpenseID: e.ID,
		BillID:    e.Payment.BillID,
		Message:   fmt.Sprintf("%v: expense %s references bill %s", core.ErrDanglingReference, e.ID, e.Payment.BillID),
	}
}

// billIndex returns the set of known bill IDs, or nil when bills were not
// supplied.
func (r Records) billIndex() map[string]struct{} {
	if r.Bills == nil {
		return nil
	}
	idx := make(map[string]struct{}, len(r.Bills))
	for _, b := range r.Bills {
		idx[b.ID] = struct{}{}
	}
	return idx
}

func isDangling(idx map[string]struct{}, e core.Expense) bool {
	if idx == nil || !e.IsBillPayment() {
		return false
	}
	_, ok := idx[e.Payment.BillID]
	return !ok
}

// SpendingTotals holds the four spending sub-totals and their sum.
type SpendingTotals struct {
	OneTime   decimal.Decimal `json:"one_time"`
	Recurring decimal.Decimal `json:"recurring"`
	Bills     decimal.Decimal `json:"bills"`
	Lending   decimal.Decimal `json:"lending"`
	Total     decimal.Decimal `json:"total"`
}

// Spending is the spending breakdown of a window.
type Spending struct {
	OneTime      []core.Expense             `json:"one_time"`
	Recurring    []core.Expense             `json:"recurring"`
	BillPayments []core.Expense             `json:"bill_payments"`
	LendingOut   []core.LendingRecord       `json:"lending_out"`
	Totals       SpendingTotals             `json:"totals"`
	ByCategory   map[string]decimal.Decimal `json:"by_category"`
	Categories   []core.CategoryAmount      `json:"categories"`
	Warnings     []Warning                  `json:"warnings,omitempty"`
}

// IncomeTotals holds the income sub-totals and their sum.
type IncomeTotals struct {
	Salary        decimal.Decimal `json:"salary"`
	Recurring     decimal.Decimal `json:"recurring"`
	OneTime       decimal.Decimal `json:"one_time"`
	LendingRepaid decimal.Decimal `json:"lending_repaid"`
	Total         decimal.Decimal `json:"total"`
}

// IncomeBreakdown is the income side of a window.
type IncomeBreakdown struct {
	BaseSalary        decimal.Decimal         `json:"base_salary"`
	Savings           decimal.Decimal         `json:"savings"`
	Recurring         []core.AdditionalIncome `json:"recurring"`
	OneTime           []core.AdditionalIncome `json:"one_time"`
	LendingRepayments []core.LendingRecord    `json:"lending_repayments"`
	Totals            IncomeTotals            `json:"totals"`
}

// Summary is the net financial picture of a window.
type Summary struct {
	Start      core.Date       `json:"start"`
	End        core.Date       `json:"end"`
	Spending   Spending        `json:"spending"`
	Income     IncomeBreakdown `json:"income"`
	Remaining  decimal.Decimal `json:"remaining"`
	NetBalance decimal.Decimal `json:"net_balance"`
	Warnings   []Warning       `json:"warnings,omitempty"`
}

// SpendingForPeriod classifies expenses and lending into one-time, recurring,
// bill payment and lending-out spending for [start, end].
func SpendingForPeriod(r Records, start, end core.Date) Spending {
	s := Spending{
		OneTime:      []core.Expense{},
		Recurring:    []core.Expense{},
		BillPayments: []core.Expense{},
		LendingOut:   []core.LendingRecord{},
		ByCategory:   make(map[string]decimal.Decimal),
	}
	idx := r.billIndex()
	t := &s.Totals

	for _, e := range r.Expenses {
		switch {
		case e.IsBillPayment():
			if !e.Date.InRange(start, end) {
				continue
			}
			if isDangling(idx, e) {
				s.Warnings = append(s.Warnings, danglingWarning(e))
				continue
			}
			s.BillPayments = append(s.BillPayments, e)
			t.Bills = t.Bills.Add(e.Amount)
			s.ByCategory[e.Category] = s.ByCategory[e.Category].Add(e.Amount)
		case e.Kind == core.Recurring:
			s.Recurring = append(s.Recurring, e)
			t.Recurring = t.Recurring.Add(e.Amount)
			s.ByCategory[SubscriptionsCategory] = s.ByCategory[SubscriptionsCategory].Add(e.Amount)
		case e.Kind == core.OneTime && e.Date.InRange(start, end):
			s.OneTime = append(s.OneTime, e)
			t.OneTime = t.OneTime.Add(e.Amount)
			s.ByCategory[e.Category] = s.ByCategory[e.Category].Add(e.Amount)
		}
	}

	for _, l := range r.Lending {
		if l.Amount.IsPositive() && l.Date.InRange(start, end) {
			s.LendingOut = append(s.LendingOut, l)
			t.Lending = t.Lending.Add(l.Amount)
		}
	}
	if t.Lending.IsPositive() {
		s.ByCategory[LendingCategory] = t.Lending
	}

	t.Total = core.Sum(t.OneTime, t.Recurring, t.Bills, t.Lending)
	s.Categories = core.SortedCategories(s.ByCategory)
	return s
}

// IncomeForPeriod sums salary, recurring and one-time additional income and
// lending repayments for [start, end].
func IncomeForPeriod(r Records, start, end core.Date) IncomeBreakdown {
	in := IncomeBreakdown{
		Recurring:         []core.AdditionalIncome{},
		OneTime:           []core.AdditionalIncome{},
		LendingRepayments: []core.LendingRecord{},
	}
	if r.Income != nil {
		in.BaseSalary = r.Income.Salary
		in.Savings = r.Income.Savings
	}
	t := &in.Totals
	t.Salary = in.BaseSalary

	for _, a := range r.AdditionalIncome {
		switch {
		case a.Kind == core.Recurring:
			in.Recurring = append(in.Recurring, a)
			t.Recurring = t.Recurring.Add(a.Amount)
		case a.Kind == core.OneTime && a.Date.InRange(start, end):
			in.OneTime = append(in.OneTime, a)
			t.OneTime = t.OneTime.Add(a.Amount)
		}
	}

	repaid := decimal.Zero
	for _, l := range r.Lending {
		if l.Amount.IsNegative() && l.Date.InRange(start, end) {
			in.LendingRepayments = append(in.LendingRepayments, l)
			repaid = repaid.Add(l.Amount)
		}
	}
	t.LendingRepaid = repaid.Abs()

	t.Total = core.Sum(t.Salary, t.Recurring, t.OneTime, t.LendingRepaid)
	return in
}

// MonthlyFinancialSummary combines spending and income for [start, end].
// Remaining is income minus spending; NetBalance also subtracts the savings
// goal.
func MonthlyFinancialSummary(r Records, start, end core.Date) Summary {
	spending := SpendingForPeriod(r, start, end)
	income := IncomeForPeriod(r, start, end)
	remaining := income.Totals.Total.Sub(spending.Totals.Total)
	return Summary{
		Start:      start,
		End:        end,
		Spending:   spending,
		Income:     income,
		Remaining:  remaining,
		NetBalance: remaining.Sub(income.Savings),
		Warnings:   spending.Warnings,
	}
}
