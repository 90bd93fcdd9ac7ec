package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/metrics"
	"tally/internal/notify"
	"tally/internal/services"
	"tally/internal/summary"
)

type UserLookup interface {
	GetUser(ctx context.Context, id string) (core.User, error)
}

type ReminderMailer interface {
	SendReminder(to string, msg *amqp.BillReminderMessage) error
}

type SummaryLoader interface {
	MonthlySummary(ctx context.Context, ownerID string, start, end core.Date) (summary.Summary, error)
}

type SummaryAppender interface {
	AppendSummary(ctx context.Context, ownerID string, s summary.Summary) (string, error)
}

// ReminderWorker delivers bill reminders from the queue by email.
type ReminderWorker struct {
	users   UserLookup
	mailer  ReminderMailer
	metrics *metrics.Metrics
}

func NewReminderWorker(users UserLookup, mailer ReminderMailer, m *metrics.Metrics) *ReminderWorker {
	return &ReminderWorker{users: users, mailer: mailer, metrics: m}
}

// HandleBillReminder mails one reminder. Returning an error requeues the
// message, so only transient failures are reported.
func (w *ReminderWorker) HandleBillReminder(ctx context.Context, msg *amqp.BillReminderMessage) error {
	user, err := w.users.GetUser(ctx, msg.OwnerID)
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Dropping reminder for unknown owner", "owner_id", msg.OwnerID, "bill_id", msg.BillID)
		w.metrics.Reminder("dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("look up reminder owner: %w", err)
	}
	if user.Email == "" {
		slog.DebugContext(ctx, "Owner has no email, skipping reminder", "owner_id", msg.OwnerID, "bill_id", msg.BillID)
		w.metrics.Reminder("no_email")
		return nil
	}

	if err := w.mailer.SendReminder(user.Email, msg); err != nil {
		if errors.Is(err, notify.ErrDisabled) {
			slog.WarnContext(ctx, "Mail delivery disabled, dropping reminder", "bill_id", msg.BillID)
			w.metrics.Reminder("dropped")
			return nil
		}
		w.metrics.Reminder("mail_failed")
		return err
	}

	w.metrics.Reminder("mailed")
	slog.InfoContext(ctx, "Bill reminder mailed",
		"owner_id", msg.OwnerID,
		"bill_id", msg.BillID,
		"deadline", msg.DeadlineDate.String(),
		"days_until_deadline", msg.DaysUntilDeadline)
	return nil
}

// ExportWorker appends requested summaries to the spreadsheet.
type ExportWorker struct {
	summaries SummaryLoader
	sheets    SummaryAppender
	metrics   *metrics.Metrics
}

func NewExportWorker(summaries SummaryLoader, sheets SummaryAppender, m *metrics.Metrics) *ExportWorker {
	return &ExportWorker{summaries: summaries, sheets: sheets, metrics: m}
}

// NewStoreExportWorker computes every export straight from store. Writes land
// in the API process and never invalidate anything held here, so summaries
// are not cached.
func NewStoreExportWorker(store services.RecordLoader, sheets SummaryAppender, m *metrics.Metrics) *ExportWorker {
	return NewExportWorker(services.NewSummaryService(store, nil, m), sheets, m)
}

func (w *ExportWorker) HandleSummaryExport(ctx context.Context, msg *amqp.SummaryExportMessage) error {
	s, err := w.summaries.MonthlySummary(ctx, msg.OwnerID, msg.StartDate, msg.EndDate)
	if core.IsValidationError(err) {
		slog.WarnContext(ctx, "Dropping invalid summary export", "owner_id", msg.OwnerID, "error", err)
		w.metrics.Export("sheets", "dropped")
		return nil
	}
	if err != nil {
		return fmt.Errorf("compute summary for export: %w", err)
	}

	rng, err := w.sheets.AppendSummary(ctx, msg.OwnerID, s)
	if err != nil {
		w.metrics.Export("sheets", "failed")
		return err
	}
	w.metrics.Export("sheets", "appended")
	slog.InfoContext(ctx, "Summary exported",
		"owner_id", msg.OwnerID,
		"start", msg.StartDate.String(),
		"end", msg.EndDate.String(),
		"range", rng)
	return nil
}
