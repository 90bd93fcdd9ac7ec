package recurring

import (
	"testing"
	"time"

	"tally/internal/calendar"
	"tally/internal/core"
)

func created(y int, m time.Month, d, hour int) time.Time {
	return time.Date(y, m, d, hour, 30, 0, 0, time.UTC)
}

func activeDays(def Definition, y int, m time.Month) []int {
	start := core.NewDate(y, int(m), 1)
	end := core.Date{Time: calendar.MonthEnd(start.Time)}
	var days []int
	for _, d := range Occurrences(def, start, end) {
		days = append(days, d.Day())
	}
	return days
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFirstOccurrenceAlwaysCounts(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
	}{
		{"day before target day", Definition{CreatedAt: created(2024, 3, 3, 18), DayOfMonth: 10}},
		{"day after target day", Definition{CreatedAt: created(2024, 3, 20, 9), DayOfMonth: 10}},
		{"target day 31 in april", Definition{CreatedAt: created(2024, 4, 2, 0), DayOfMonth: 31}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !IsActiveOn(tt.def, core.DateOf(tt.def.CreatedAt).Time) {
				t.Fatal("creation date must be active")
			}
		})
	}
}

func TestCreationMonth(t *testing.T) {
	tests := []struct {
		name string
		def  Definition
		want []int
	}{
		{"created on target day counts once", Definition{CreatedAt: created(2024, 3, 10, 15), DayOfMonth: 10}, []int{10}},
		{"created before target day shows both", Definition{CreatedAt: created(2024, 3, 3, 15), DayOfMonth: 10}, []int{3, 10}},
		{"created after target day shows creation only", Definition{CreatedAt: created(2024, 3, 20, 15), DayOfMonth: 10}, []int{20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := activeDays(tt.def, 2024, time.March); !equalInts(got, tt.want) {
				t.Fatalf("active days = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLaterMonthsExactlyOnce(t *testing.T) {
	def := Definition{CreatedAt: created(2024, 1, 20, 8), DayOfMonth: 5}
	for m := time.February; m <= time.December; m++ {
		if got := activeDays(def, 2024, m); !equalInts(got, []int{5}) {
			t.Fatalf("%s: active days = %v, want [5]", m, got)
		}
	}
	if got := activeDays(def, 2025, time.January); !equalInts(got, []int{5}) {
		t.Fatalf("next year: active days = %v", got)
	}
}

func TestNeverBeforeCreation(t *testing.T) {
	def := Definition{CreatedAt: created(2024, 6, 15, 8), DayOfMonth: 1}
	if IsActiveOn(def, core.NewDate(2024, 5, 1).Time) {
		t.Error("month before creation must be inactive")
	}
	if IsActiveOn(def, core.NewDate(2023, 12, 1).Time) {
		t.Error("previous year must be inactive")
	}
	if IsActiveOn(def, core.NewDate(2024, 6, 1).Time) {
		t.Error("creation month before creation day must be inactive")
	}
}

func TestDayNotClampedInShortMonths(t *testing.T) {
	def := Definition{CreatedAt: created(2024, 1, 31, 8), DayOfMonth: 31}
	if got := activeDays(def, 2024, time.February); len(got) != 0 {
		t.Fatalf("february = %v, want none", got)
	}
	if got := activeDays(def, 2024, time.March); !equalInts(got, []int{31}) {
		t.Fatalf("march = %v", got)
	}
}

func TestCreationDateInOwnLocation(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 2024-03-05 02:00 in UTC+9 is 2024-03-04 in UTC.
	def := Definition{CreatedAt: time.Date(2024, 3, 5, 2, 0, 0, 0, loc), DayOfMonth: 20}
	if !IsActiveOn(def, core.NewDate(2024, 3, 5).Time) {
		t.Error("creation day in the creation location must be active")
	}
	if IsActiveOn(def, core.NewDate(2024, 3, 4).Time) {
		t.Error("the UTC date of the timestamp is not the creation day")
	}
}

func TestFromRecords(t *testing.T) {
	if _, ok := FromExpense(core.Expense{Kind: core.OneTime}); ok {
		t.Error("one-time expense has no schedule")
	}
	def, ok := FromExpense(core.Expense{Kind: core.Recurring, DayOfMonth: 7, CreatedAt: created(2024, 1, 1, 0)})
	if !ok || def.DayOfMonth != 7 {
		t.Errorf("FromExpense = %+v, %v", def, ok)
	}
}
