package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tally/internal/amqp"
	"tally/internal/billing"
	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/metrics"
)

// ReminderStore reads what a reminder scan needs.
type ReminderStore interface {
	ListOwnerIDs(ctx context.Context) ([]string, error)
	ListBills(ctx context.Context, ownerID string, activeOnly bool) ([]core.Bill, error)
	ListExpenses(ctx context.Context, ownerID string) ([]core.Expense, error)
}

type ReminderPublisher interface {
	PublishBillReminder(ctx context.Context, msg *amqp.BillReminderMessage) error
}

// ReminderProcessor scans every owner's bills and publishes one reminder per
// due bill, period and day.
type ReminderProcessor struct {
	store     ReminderStore
	publisher ReminderPublisher
	sent      cache.Cache[struct{}]
	metrics   *metrics.Metrics
}

// NewReminderProcessor builds a processor. sent remembers published
// reminders; its TTL should cover at least one day.
func NewReminderProcessor(store ReminderStore, publisher ReminderPublisher, sent cache.Cache[struct{}], m *metrics.Metrics) *ReminderProcessor {
	return &ReminderProcessor{store: store, publisher: publisher, sent: sent, metrics: m}
}

func reminderKey(due billing.DueBill, today core.Date) string {
	return due.Bill.ID + "|" + due.Period.Start.String() + "|" + today.String()
}

// ProcessDueBills publishes reminders for every unpaid bill whose warning
// window is open on now. Failures for one owner are logged and do not stop
// the scan. It returns the number of reminders published.
func (p *ReminderProcessor) ProcessDueBills(ctx context.Context, now time.Time) (int, error) {
	if p.store == nil || p.publisher == nil {
		return 0, fmt.Errorf("processor not properly initialized")
	}

	owners, err := p.store.ListOwnerIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list owners: %w", err)
	}

	today := core.DateOf(now)
	slog.InfoContext(ctx, "Scanning bills for reminders",
		"owners", len(owners),
		"date", today.String())

	published := 0
	for _, ownerID := range owners {
		if err := ctx.Err(); err != nil {
			return published, err
		}
		n, err := p.processOwner(ctx, ownerID, now, today)
		published += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process owner reminders", "owner_id", ownerID, "error", err)
		}
	}

	p.metrics.ReminderScan()
	slog.InfoContext(ctx, "Reminder scan complete", "published", published, "owners", len(owners))
	return published, nil
}

func (p *ReminderProcessor) processOwner(ctx context.Context, ownerID string, now time.Time, today core.Date) (int, error) {
	bills, err := p.store.ListBills(ctx, ownerID, true)
	if err != nil {
		return 0, fmt.Errorf("list bills: %w", err)
	}
	expenses, err := p.store.ListExpenses(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("list expenses: %w", err)
	}

	upcoming, skipped := billing.UpcomingDeadlines(bills, billing.PaymentsByBill(expenses), now)
	logSkippedBills(ctx, p.metrics, ownerID, skipped)

	published := 0
	for _, due := range upcoming {
		key := reminderKey(due, today)
		if p.sent != nil {
			if _, ok := p.sent.Get(key); ok {
				p.metrics.Reminder("skipped")
				continue
			}
		}

		if err := p.publisher.PublishBillReminder(ctx, amqp.NewBillReminderMessage(ownerID, due)); err != nil {
			p.metrics.Reminder("failed")
			slog.ErrorContext(ctx, "Failed to publish bill reminder",
				"owner_id", ownerID,
				"bill_id", due.Bill.ID,
				"error", err)
			continue
		}
		if p.sent != nil {
			p.sent.Set(key, struct{}{})
		}
		p.metrics.Reminder("published")
		published++
		slog.InfoContext(ctx, "Bill reminder queued",
			"owner_id", ownerID,
			"bill_id", due.Bill.ID,
			"days_until_deadline", due.DaysUntilDeadline,
			"overdue", due.Overdue)
	}
	return published, nil
}
