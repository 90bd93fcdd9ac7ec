package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/core"
)

type fakeReminderStore struct {
	bills    map[string][]core.Bill
	expenses map[string][]core.Expense
	failFor  string
}

func (f *fakeReminderStore) ListOwnerIDs(context.Context) ([]string, error) {
	ids := make([]string, 0, len(f.bills))
	for _, id := range []string{"u1", "u2", "u3"} {
		if _, ok := f.bills[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeReminderStore) ListBills(_ context.Context, ownerID string, _ bool) ([]core.Bill, error) {
	if ownerID == f.failFor {
		return nil, errors.New("locked")
	}
	return f.bills[ownerID], nil
}

func (f *fakeReminderStore) ListExpenses(_ context.Context, ownerID string) ([]core.Expense, error) {
	return f.expenses[ownerID], nil
}

type fakeReminders struct {
	msgs []*amqp.BillReminderMessage
	err  error
}

func (f *fakeReminders) PublishBillReminder(_ context.Context, msg *amqp.BillReminderMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func day(d int) *int { return &d }

func reminderFixture() *fakeReminderStore {
	return &fakeReminderStore{
		bills: map[string][]core.Bill{
			"u1": {
				{ID: "power", Name: "Power", Category: "Utilities", Frequency: core.Monthly, DeadlineDay: day(15), Active: true},
				{ID: "rent", Name: "Rent", Category: "Housing", Frequency: core.Monthly, DeadlineDay: day(10), Active: true},
				{ID: "gas", Name: "Gas", Category: "Utilities", Frequency: core.Monthly, DeadlineDay: day(28), Active: true},
				{ID: "paid", Name: "Water", Category: "Utilities", Frequency: core.Monthly, DeadlineDay: day(14), Active: true},
			},
			"u2": {
				{ID: "tax", Name: "Tax", Category: "Tax", Frequency: core.Yearly, DeadlineDay: day(20), ReminderDaysBefore: day(0), Active: true},
			},
		},
		expenses: map[string][]core.Expense{
			"u1": {{
				ID: "x1", Name: "Water", Amount: dec("18"), Category: "Utilities", Kind: core.OneTime, Date: core.NewDate(2024, 3, 2),
				Payment: &core.BillPayment{BillID: "paid", PeriodStart: core.NewDate(2024, 3, 1), PeriodEnd: core.NewDate(2024, 3, 31)},
			}},
		},
	}
}

func TestReminderProcessorPublishesDueBills(t *testing.T) {
	pub := &fakeReminders{}
	p := NewReminderProcessor(reminderFixture(), pub, cache.NewLRUCache[struct{}](100, 48*time.Hour), nil)
	now := time.Date(2024, 3, 13, 7, 30, 0, 0, time.UTC)

	n, err := p.ProcessDueBills(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.Len(t, pub.msgs, 3)

	// per owner, most urgent first: rent is overdue by 3 days, power due in 2
	assert.Equal(t, "rent", pub.msgs[0].BillID)
	assert.Equal(t, -3, pub.msgs[0].DaysUntilDeadline)
	assert.True(t, pub.msgs[0].Overdue())
	assert.Equal(t, "power", pub.msgs[1].BillID)
	assert.Equal(t, "2024-03-15", pub.msgs[1].DeadlineDate.String())
	assert.Equal(t, "March 2024", pub.msgs[1].PeriodLabel)
	assert.Equal(t, "u1", pub.msgs[1].OwnerID)
	assert.Equal(t, "tax", pub.msgs[2].BillID)
	assert.Equal(t, "u2", pub.msgs[2].OwnerID)
}

func TestReminderProcessorDeduplicatesPerDay(t *testing.T) {
	pub := &fakeReminders{}
	p := NewReminderProcessor(reminderFixture(), pub, cache.NewLRUCache[struct{}](100, 48*time.Hour), nil)
	ctx := context.Background()
	morning := time.Date(2024, 3, 13, 7, 0, 0, 0, time.UTC)

	_, err := p.ProcessDueBills(ctx, morning)
	require.NoError(t, err)
	n, err := p.ProcessDueBills(ctx, morning.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = p.ProcessDueBills(ctx, morning.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 3, n, "a new day sends again")
}

func TestReminderProcessorContinuesPastFailures(t *testing.T) {
	store := reminderFixture()
	store.failFor = "u1"
	pub := &fakeReminders{}
	p := NewReminderProcessor(store, pub, nil, nil)

	// u2's yearly tax deadline is 2024-01-20 with no lead: overdue in March
	n, err := p.ProcessDueBills(context.Background(), time.Date(2024, 3, 13, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, "tax", pub.msgs[0].BillID)

	pub.err = errors.New("broker down")
	n, err = p.ProcessDueBills(context.Background(), time.Date(2024, 3, 14, 7, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReminderProcessorRequiresDependencies(t *testing.T) {
	_, err := NewReminderProcessor(nil, nil, nil, nil).ProcessDueBills(context.Background(), time.Now())
	assert.Error(t, err)
}
