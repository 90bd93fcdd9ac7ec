package billing

import (
	"errors"
	"testing"
	"time"

	"tally/internal/core"
)

func ref(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestCurrentPeriod(t *testing.T) {
	tests := []struct {
		name       string
		freq       core.Frequency
		ref        time.Time
		start, end string
		label      string
	}{
		{"monthly leap february", core.Monthly, ref(2024, 2, 10), "2024-02-01", "2024-02-29", "February 2024"},
		{"monthly december", core.Monthly, ref(2024, 12, 31), "2024-12-01", "2024-12-31", "December 2024"},
		{"bimonthly mid march", core.Bimonthly, ref(2024, 3, 15), "2024-03-01", "2024-04-30", "Mar-Apr 2024"},
		{"bimonthly end of april", core.Bimonthly, ref(2024, 4, 30), "2024-03-01", "2024-04-30", "Mar-Apr 2024"},
		{"bimonthly january", core.Bimonthly, ref(2023, 1, 1), "2023-01-01", "2023-02-28", "Jan-Feb 2023"},
		{"bimonthly december", core.Bimonthly, ref(2024, 12, 1), "2024-11-01", "2024-12-31", "Nov-Dec 2024"},
		{"quarterly q1", core.Quarterly, ref(2024, 2, 29), "2024-01-01", "2024-03-31", "Q1 2024"},
		{"quarterly q3 boundary", core.Quarterly, ref(2024, 7, 1), "2024-07-01", "2024-09-30", "Q3 2024"},
		{"quarterly q4", core.Quarterly, ref(2024, 12, 31), "2024-10-01", "2024-12-31", "Q4 2024"},
		{"yearly", core.Yearly, ref(2024, 6, 15), "2024-01-01", "2024-12-31", "2024"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := CurrentPeriod(tt.freq, tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Start.String() != tt.start || p.End.String() != tt.end {
				t.Errorf("period = %s..%s, want %s..%s", p.Start, p.End, tt.start, tt.end)
			}
			if p.Label != tt.label {
				t.Errorf("label = %q, want %q", p.Label, tt.label)
			}
			again, _ := CurrentPeriod(tt.freq, tt.ref)
			if again != p {
				t.Errorf("second call differs: %+v vs %+v", again, p)
			}
		})
	}
}

func TestCurrentPeriodUsesLocalCalendarDate(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	// 2024-04-30 22:00 in UTC-5 is already May 1 in UTC.
	p, err := CurrentPeriod(core.Monthly, time.Date(2024, 4, 30, 22, 0, 0, 0, loc))
	if err != nil {
		t.Fatal(err)
	}
	if p.Start.String() != "2024-04-01" {
		t.Fatalf("start = %s, want 2024-04-01", p.Start)
	}
}

func TestCurrentPeriodInvalidFrequency(t *testing.T) {
	for _, f := range []core.Frequency{"", "weekly", "MONTHLY"} {
		if _, err := CurrentPeriod(f, ref(2024, 1, 1)); !errors.Is(err, core.ErrInvalidFrequency) {
			t.Errorf("CurrentPeriod(%q) = %v, want ErrInvalidFrequency", f, err)
		}
	}
}

func TestPeriodLabel(t *testing.T) {
	label, err := PeriodLabel(core.Quarterly, core.NewDate(2024, 4, 1))
	if err != nil || label != "Q2 2024" {
		t.Fatalf("PeriodLabel = %q, %v", label, err)
	}
	label, err = PeriodLabel(core.Bimonthly, core.NewDate(2024, 5, 1))
	if err != nil || label != "May-Jun 2024" {
		t.Fatalf("PeriodLabel = %q, %v", label, err)
	}
	if _, err := PeriodLabel("weekly", core.NewDate(2024, 4, 1)); err == nil {
		t.Error("unknown frequency must fail")
	}
}
