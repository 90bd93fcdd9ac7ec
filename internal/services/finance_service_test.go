package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/storage"
)

type fakeExports struct {
	msgs []*amqp.SummaryExportMessage
	err  error
}

func (f *fakeExports) PublishSummaryExport(_ context.Context, msg *amqp.SummaryExportMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func newFinance(t *testing.T, exports ExportPublisher) (*FinanceService, *SummaryService, string) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	summaries := NewSummaryService(repo, cache.NewLRUCache[any](32, time.Hour), nil)
	svc := NewFinanceService(repo, summaries, exports, nil)
	user, err := svc.ResolveOwner(context.Background(), "device-1")
	require.NoError(t, err)
	return svc, summaries, user.ID
}

func TestFinanceServiceWritesInvalidateSummaries(t *testing.T) {
	svc, summaries, owner := newFinance(t, nil)
	ctx := context.Background()
	start, end := march()

	before, err := summaries.MonthlySummary(ctx, owner, start, end)
	require.NoError(t, err)
	assert.True(t, before.Spending.Totals.Total.IsZero())

	_, err = svc.AddExpense(ctx, owner, core.Expense{
		Name: "Groceries", Amount: dec("54.20"), Category: "Food", Kind: core.OneTime, Date: core.NewDate(2024, 3, 9),
	})
	require.NoError(t, err)

	after, err := summaries.MonthlySummary(ctx, owner, start, end)
	require.NoError(t, err)
	assert.True(t, after.Spending.Totals.OneTime.Equal(dec("54.20")))

	salary := dec("1800")
	_, err = svc.SaveIncome(ctx, owner, core.IncomeUpdate{Salary: &salary})
	require.NoError(t, err)
	withIncome, err := summaries.MonthlySummary(ctx, owner, start, end)
	require.NoError(t, err)
	assert.True(t, withIncome.Remaining.Equal(dec("1745.80")))
}

func TestFinanceServiceFailedWriteKeepsCache(t *testing.T) {
	svc, summaries, owner := newFinance(t, nil)
	ctx := context.Background()
	start, end := march()

	_, err := summaries.MonthlySummary(ctx, owner, start, end)
	require.NoError(t, err)
	require.Equal(t, 1, summaries.cache.Size())

	_, err = svc.AddExpense(ctx, owner, core.Expense{Name: "", Amount: dec("1"), Category: "x", Kind: core.OneTime, Date: start})
	require.Error(t, err)
	assert.Equal(t, 1, summaries.cache.Size())
}

func TestFinanceServiceBillPayments(t *testing.T) {
	svc, _, owner := newFinance(t, nil)
	ctx := context.Background()

	bill, err := svc.AddBill(ctx, owner, core.Bill{Name: "Internet", Category: "Utilities", Frequency: core.Quarterly})
	require.NoError(t, err)

	in := core.PaymentInput{BillID: bill.ID, Amount: dec("90"), PaidAt: core.NewDate(2024, 2, 10)}
	payment, err := svc.RecordBillPayment(ctx, owner, in)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", payment.Payment.PeriodStart.String())

	in.PaidAt = core.NewDate(2024, 3, 30)
	_, err = svc.RecordBillPayment(ctx, owner, in)
	assert.ErrorIs(t, err, core.ErrDuplicatePayment)

	payments, err := svc.BillPayments(ctx, owner, bill.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)

	require.NoError(t, svc.RemoveBillPayment(ctx, owner, payment.ID))
	payments, err = svc.BillPayments(ctx, owner, bill.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
}

func TestFinanceServiceExpensesByKind(t *testing.T) {
	svc, _, owner := newFinance(t, nil)
	ctx := context.Background()

	_, err := svc.Expenses(ctx, owner, core.Kind("weekly"))
	assert.ErrorIs(t, err, core.ErrInvalidKind)

	all, err := svc.Expenses(ctx, owner, "")
	require.NoError(t, err)
	assert.Empty(t, all)

	income, err := svc.Income(ctx, owner)
	require.NoError(t, err)
	assert.True(t, income.Salary.IsZero())
}

func TestFinanceServiceSummaryExport(t *testing.T) {
	start, end := march()

	t.Run("not configured", func(t *testing.T) {
		svc, _, owner := newFinance(t, nil)
		err := svc.RequestSummaryExport(context.Background(), owner, start, end)
		assert.ErrorIs(t, err, ErrExportUnavailable)
	})

	t.Run("queued", func(t *testing.T) {
		exports := &fakeExports{}
		svc, _, owner := newFinance(t, exports)
		require.NoError(t, svc.RequestSummaryExport(context.Background(), owner, start, end))
		require.Len(t, exports.msgs, 1)
		assert.Equal(t, owner, exports.msgs[0].OwnerID)
		assert.Equal(t, "2024-03-31", exports.msgs[0].EndDate.String())
	})

	t.Run("publish failure", func(t *testing.T) {
		boom := errors.New("broker down")
		svc, _, owner := newFinance(t, &fakeExports{err: boom})
		assert.ErrorIs(t, svc.RequestSummaryExport(context.Background(), owner, start, end), boom)
	})

	t.Run("invalid range", func(t *testing.T) {
		svc, _, owner := newFinance(t, &fakeExports{})
		err := svc.RequestSummaryExport(context.Background(), owner, end, start)
		assert.True(t, core.IsValidationError(err))
	})
}

func TestFinanceServiceDeleteUser(t *testing.T) {
	svc, _, owner := newFinance(t, nil)
	ctx := context.Background()

	p, err := svc.AddPerson(ctx, owner, core.Person{Name: "Dana"})
	require.NoError(t, err)
	_, err = svc.AddLending(ctx, owner, core.LendingRecord{PersonID: p.ID, Amount: dec("25"), Date: core.NewDate(2024, 3, 2)})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, owner))
	_, err = svc.User(ctx, owner)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteUser(ctx, owner), core.ErrNotFound)
}
