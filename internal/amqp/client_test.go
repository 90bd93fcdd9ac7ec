package amqp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/billing"
	"tally/internal/core"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := exponentialBackoff(tt.attempt); got != tt.expected {
				t.Errorf("exponentialBackoff(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection refused", errors.New("connection refused"), true},
		{"unexpected EOF", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("broken pipe"), true},
		{"closed network connection", errors.New("use of closed network connection"), true},
		{"other error", errors.New("some other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.expected {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	client := &Client{exchangeName: "tally", reminderQueue: "bill_reminder"}

	if client.isCircuitOpen() {
		t.Fatal("circuit should start closed")
	}

	for i := 0; i < maxFailures; i++ {
		client.recordFailure()
	}
	if !client.isCircuitOpen() {
		t.Fatal("circuit should open after max failures")
	}

	err := client.PublishBillReminder(context.Background(), &BillReminderMessage{BillID: "b1"})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("PublishBillReminder() error = %v, want ErrCircuitOpen", err)
	}

	client.lastFailure = time.Now().Add(-openTimeout - time.Second)
	if client.isCircuitOpen() {
		t.Error("circuit should be half-open after the timeout")
	}
	if atomic.LoadInt32(&client.state) != StateHalfOpen {
		t.Errorf("state = %d, want half-open", client.state)
	}

	client.recordSuccess()
	if atomic.LoadInt32(&client.state) != StateClosed || atomic.LoadInt64(&client.failureCount) != 0 {
		t.Error("success should reset the breaker")
	}
}

func TestClient_PublishRespectsCancelledContext(t *testing.T) {
	client := &Client{exchangeName: "tally", exportQueue: "summary_export"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.PublishSummaryExport(ctx, NewSummaryExportMessage("u1", core.NewDate(2024, 1, 1), core.NewDate(2024, 1, 31)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("PublishSummaryExport() error = %v, want context.Canceled", err)
	}
}

func TestBillReminderMessage_JSON(t *testing.T) {
	expected := decimal.RequireFromString("42.50")
	due := billing.DueBill{
		Bill: core.Bill{ID: "b1", Name: "Power", Category: "Utilities", ExpectedAmount: &expected},
		Period: billing.Period{
			Start: core.NewDate(2024, 3, 1),
			End:   core.NewDate(2024, 3, 31),
			Label: "March 2024",
		},
		Deadline:          core.NewDate(2024, 3, 15),
		DaysUntilDeadline: -2,
		Overdue:           true,
	}

	msg := NewBillReminderMessage("u1", due)
	if msg.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if !msg.Overdue() {
		t.Error("message should be overdue")
	}

	body, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}
	for _, want := range []string{`"deadline_date":"2024-03-15"`, `"period_label":"March 2024"`, `"expected_amount":"42.5"`} {
		if !strings.Contains(string(body), want) {
			t.Errorf("JSON %s missing %s", body, want)
		}
	}

	parsed, err := BillReminderMessageFromJSON(body)
	if err != nil {
		t.Fatalf("BillReminderMessageFromJSON() error = %v", err)
	}
	if parsed.BillID != "b1" || parsed.OwnerID != "u1" || parsed.DaysUntilDeadline != -2 {
		t.Errorf("parsed = %+v", parsed)
	}
	if !parsed.DeadlineDate.Equal(due.Deadline.Time) || !parsed.ExpectedAmount.Equal(expected) {
		t.Errorf("parsed dates/amount = %v %v", parsed.DeadlineDate, parsed.ExpectedAmount)
	}
}

func TestMessagesRejectInvalidJSON(t *testing.T) {
	if _, err := BillReminderMessageFromJSON([]byte(`{"days_until_deadline":"soon"}`)); err == nil {
		t.Error("expected error for mistyped field")
	}
	if _, err := SummaryExportMessageFromJSON([]byte(`{"start_date":"01/02/2024"}`)); err == nil {
		t.Error("expected error for non-ISO date")
	}
}
