package worker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/amqp"
	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/storage"
)

// The API and the worker run as separate processes sharing one database.
func TestStoreExportWorkerSeesWritesFromAPI(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tally.db")

	apiRepo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { apiRepo.Close() })
	workerRepo, err := storage.NewSQLiteRepository(path)
	require.NoError(t, err)
	t.Cleanup(func() { workerRepo.Close() })

	apiSummaries := services.NewSummaryService(apiRepo, cache.NewLRUCache[any](16, time.Minute), nil)
	finance := services.NewFinanceService(apiRepo, apiSummaries, nil, nil)
	owner, err := finance.ResolveOwner(ctx, "device-1")
	require.NoError(t, err)

	sheet := &fakeSheet{}
	exports := NewStoreExportWorker(workerRepo, sheet, nil)
	msg := amqp.NewSummaryExportMessage(owner.ID, core.NewDate(2024, 3, 1), core.NewDate(2024, 3, 31))

	require.NoError(t, exports.HandleSummaryExport(ctx, msg))

	_, err = finance.AddExpense(ctx, owner.ID, core.Expense{
		Name: "Groceries", Amount: decimal.NewFromInt(40), Category: "Food", Kind: core.OneTime, Date: core.NewDate(2024, 3, 5),
	})
	require.NoError(t, err)

	require.NoError(t, exports.HandleSummaryExport(ctx, msg))
	require.Len(t, sheet.appended, 2)
	assert.True(t, sheet.appended[0].Spending.Totals.Total.IsZero())
	assert.True(t, decimal.NewFromInt(40).Equal(sheet.appended[1].Spending.Totals.Total),
		sheet.appended[1].Spending.Totals.Total.String())
}
