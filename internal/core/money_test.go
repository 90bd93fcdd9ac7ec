package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{"1.005", "1.01", true}, // half-up rounding
		{" 2.50 ", "2.5", true},
		{"-1", "", false},
		{"0", "", false},
		{"0.001", "", false},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(decimal.RequireFromString(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParseSignedAmount(t *testing.T) {
	got, err := ParseSignedAmount("-12,50")
	if err != nil || !got.Equal(decimal.RequireFromString("-12.5")) {
		t.Fatalf("got %s, %v", got, err)
	}
	if _, err := ParseSignedAmount("0"); err == nil {
		t.Fatal("zero should be rejected")
	}
}

func TestFormatAmountAndSum(t *testing.T) {
	total := Sum(decimal.RequireFromString("1.1"), decimal.RequireFromString("2.2"), decimal.NewFromInt(-1))
	if FormatAmount(total) != "2.30" {
		t.Fatalf("FormatAmount = %s", FormatAmount(total))
	}
}
