package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"tally/internal/core"
	"tally/internal/summary"
)

func sampleSummary() summary.Summary {
	d := decimal.RequireFromString
	s := summary.Summary{
		Start:      core.NewDate(2024, 3, 1),
		End:        core.NewDate(2024, 3, 31),
		Remaining:  d("1500"),
		NetBalance: d("1300"),
	}
	s.Spending.Categories = []core.CategoryAmount{{Name: "Food", Amount: d("320.5")}, {Name: "Subscriptions", Amount: d("29.99")}}
	s.Spending.Totals.Total = d("350.49")
	s.Income.Savings = d("200")
	s.Income.Totals.Salary = d("1850.49")
	s.Income.Totals.Total = d("1850.49")
	return s
}

func TestYearPrefixedName(t *testing.T) {
	tests := []struct {
		base string
		year int
		want string
	}{
		{"Summary", 2024, "2024 Summary"},
		{"  Summary ", 2025, "2025 Summary"},
		{"2023 Summary", 2024, "2023 Summary"},
		{"", 2024, ""},
		{"12345", 2024, "2024 12345"},
	}
	for _, tt := range tests {
		if got := yearPrefixedName(tt.base, tt.year); got != tt.want {
			t.Errorf("yearPrefixedName(%q, %d) = %q, want %q", tt.base, tt.year, got, tt.want)
		}
	}
}

func TestSummaryRows(t *testing.T) {
	rows := summaryRows("u1", sampleSummary())

	if len(rows) != 2+5+5+3 {
		t.Fatalf("got %d rows", len(rows))
	}
	first := rows[0]
	if first[0] != "u1" || first[1] != "2024-03-01" || first[2] != "2024-03-31" || first[4] != "Food" || first[5] != "320.50" {
		t.Errorf("first row = %v", first)
	}
	last := rows[len(rows)-1]
	if last[3] != "net" || last[4] != "Net balance" || last[5] != "1300.00" {
		t.Errorf("last row = %v", last)
	}
}

func TestNewRequiresConfiguration(t *testing.T) {
	if _, err := New(context.Background(), Options{}); err == nil || !strings.Contains(err.Error(), "spreadsheet id") {
		t.Errorf("expected missing spreadsheet id error, got %v", err)
	}
	if _, err := New(context.Background(), Options{SpreadsheetID: "x"}); err == nil || !strings.Contains(err.Error(), "credentials") {
		t.Errorf("expected missing credentials error, got %v", err)
	}
	if _, err := New(context.Background(), Options{SpreadsheetID: "x", CredentialsFile: "/nonexistent/sa.json"}); err == nil {
		t.Error("expected error for unreadable credentials file")
	}
}

func TestAppendSummary(t *testing.T) {
	var got gsheet.ValueRange
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":append") {
			http.Error(w, "unexpected "+r.Method+" "+r.URL.Path, http.StatusBadRequest)
			return
		}
		query = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"updates":{"updatedRange":"'2024 Summary'!A1:F15"}}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	rng, err := NewWithService(svc, "sheet-id", "").AppendSummary(context.Background(), "u1", sampleSummary())
	if err != nil {
		t.Fatalf("AppendSummary() error = %v", err)
	}
	if rng != "'2024 Summary'!A1:F15" {
		t.Errorf("range = %q", rng)
	}
	if !strings.Contains(query, "valueInputOption=USER_ENTERED") {
		t.Errorf("query %q missing USER_ENTERED", query)
	}
	if len(got.Values) != 15 {
		t.Errorf("sent %d rows, want 15", len(got.Values))
	}
}

func TestAppendSummaryWithoutService(t *testing.T) {
	if _, err := (&Exporter{}).AppendSummary(context.Background(), "u1", sampleSummary()); err == nil {
		t.Error("expected error without service")
	}
}
