package worker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/amqp"
	"tally/internal/core"
	"tally/internal/notify"
	"tally/internal/summary"
)

type fakeUsers map[string]core.User

func (f fakeUsers) GetUser(_ context.Context, id string) (core.User, error) {
	if id == "broken" {
		return core.User{}, errors.New("database is locked")
	}
	u, ok := f[id]
	if !ok {
		return core.User{}, fmt.Errorf("get user: %w", core.ErrNotFound)
	}
	return u, nil
}

type fakeMailer struct {
	to  []string
	err error
}

func (f *fakeMailer) SendReminder(to string, _ *amqp.BillReminderMessage) error {
	if f.err != nil {
		return f.err
	}
	f.to = append(f.to, to)
	return nil
}

func TestReminderWorker(t *testing.T) {
	users := fakeUsers{
		"u1": {ID: "u1", Email: "me@example.com"},
		"u2": {ID: "u2"},
	}
	ctx := context.Background()

	tests := []struct {
		name    string
		owner   string
		mailErr error
		wantErr bool
		wantTo  int
	}{
		{name: "mails owner", owner: "u1", wantTo: 1},
		{name: "owner without email is skipped", owner: "u2"},
		{name: "unknown owner is dropped", owner: "gone"},
		{name: "lookup failure requeues", owner: "broken", wantErr: true},
		{name: "disabled mail is dropped", owner: "u1", mailErr: notify.ErrDisabled},
		{name: "smtp failure requeues", owner: "u1", mailErr: errors.New("dial tcp: refused"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailer := &fakeMailer{err: tt.mailErr}
			w := NewReminderWorker(users, mailer, nil)
			err := w.HandleBillReminder(ctx, &amqp.BillReminderMessage{OwnerID: tt.owner, BillID: "b1"})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Len(t, mailer.to, tt.wantTo)
		})
	}
}

type fakeSummaries struct{ err error }

func (f fakeSummaries) MonthlySummary(_ context.Context, _ string, start, end core.Date) (summary.Summary, error) {
	if f.err != nil {
		return summary.Summary{}, f.err
	}
	return summary.Summary{Start: start, End: end}, nil
}

type fakeSheet struct {
	appended []summary.Summary
	err      error
}

func (f *fakeSheet) AppendSummary(_ context.Context, _ string, s summary.Summary) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.appended = append(f.appended, s)
	return "'2024 Summary'!A1:F15", nil
}

func TestExportWorker(t *testing.T) {
	ctx := context.Background()
	msg := amqp.NewSummaryExportMessage("u1", core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31))

	t.Run("appends summary", func(t *testing.T) {
		sheet := &fakeSheet{}
		require.NoError(t, NewExportWorker(fakeSummaries{}, sheet, nil).HandleSummaryExport(ctx, msg))
		require.Len(t, sheet.appended, 1)
		assert.Equal(t, "2024-03-31", sheet.appended[0].End.String())
	})

	t.Run("invalid range is dropped", func(t *testing.T) {
		sheet := &fakeSheet{}
		invalid := &core.ValidationError{Field: "end", Err: core.ErrInvalidDate}
		assert.NoError(t, NewExportWorker(fakeSummaries{err: invalid}, sheet, nil).HandleSummaryExport(ctx, msg))
		assert.Empty(t, sheet.appended)
	})

	t.Run("load failure requeues", func(t *testing.T) {
		err := NewExportWorker(fakeSummaries{err: errors.New("locked")}, &fakeSheet{}, nil).HandleSummaryExport(ctx, msg)
		assert.Error(t, err)
	})

	t.Run("sheets failure requeues", func(t *testing.T) {
		err := NewExportWorker(fakeSummaries{}, &fakeSheet{err: errors.New("quota")}, nil).HandleSummaryExport(ctx, msg)
		assert.Error(t, err)
	})
}

type countingProcessor struct {
	calls atomic.Int32
	last  atomic.Value
}

func (p *countingProcessor) ProcessDueBills(_ context.Context, now time.Time) (int, error) {
	p.calls.Add(1)
	p.last.Store(now)
	return 1, nil
}

func TestSchedulerLifecycle(t *testing.T) {
	proc := &countingProcessor{}
	s := NewScheduler(proc, 10*time.Millisecond)
	fixed := time.Date(2024, 3, 13, 7, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }
	ctx := context.Background()

	require.NoError(t, s.Start(ctx))
	assert.True(t, s.IsRunning())
	assert.Error(t, s.Start(ctx), "second start must fail")

	assert.Eventually(t, func() bool { return proc.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, fixed, proc.last.Load())

	stopCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.IsRunning())

	after := proc.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, proc.calls.Load(), "no scans after stop")
	assert.NoError(t, s.Stop(stopCtx), "stop is idempotent")
}

func TestSchedulerRejectsZeroInterval(t *testing.T) {
	assert.Error(t, NewScheduler(&countingProcessor{}, 0).Start(context.Background()))
}
