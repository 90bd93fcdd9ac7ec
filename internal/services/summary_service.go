package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"tally/internal/billing"
	"tally/internal/cache"
	"tally/internal/core"
	"tally/internal/metrics"
	"tally/internal/summary"
)

// RecordLoader reads the owner-scoped records the aggregations need.
type RecordLoader interface {
	ListExpenses(ctx context.Context, ownerID string) ([]core.Expense, error)
	ListAdditionalIncome(ctx context.Context, ownerID string) ([]core.AdditionalIncome, error)
	ListLending(ctx context.Context, ownerID, personID string) ([]core.LendingRecord, error)
	GetIncome(ctx context.Context, ownerID string) (*core.Income, error)
	ListBills(ctx context.Context, ownerID string, activeOnly bool) ([]core.Bill, error)
	ListPeople(ctx context.Context, ownerID string) ([]core.Person, error)
}

// DayView is the breakdown of one calendar day.
type DayView struct {
	Date  core.Date              `json:"date"`
	Items []summary.SpendingItem `json:"items"`
	Total decimal.Decimal        `json:"total"`
}

// SummaryService loads an owner's records and runs the aggregations on them.
// Results are cached per owner until Invalidate is called for that owner.
type SummaryService struct {
	loader  RecordLoader
	cache   cache.Cache[any]
	metrics *metrics.Metrics
}

func NewSummaryService(loader RecordLoader, c cache.Cache[any], m *metrics.Metrics) *SummaryService {
	return &SummaryService{loader: loader, cache: c, metrics: m}
}

// Load reads every record kind concurrently. Bills include deactivated ones
// so that only payments of deleted bills count as dangling.
func (s *SummaryService) Load(ctx context.Context, ownerID string) (summary.Records, error) {
	var r summary.Records
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if r.Expenses, err = s.loader.ListExpenses(gctx, ownerID); err != nil {
			return fmt.Errorf("load expenses: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if r.AdditionalIncome, err = s.loader.ListAdditionalIncome(gctx, ownerID); err != nil {
			return fmt.Errorf("load additional income: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if r.Lending, err = s.loader.ListLending(gctx, ownerID, ""); err != nil {
			return fmt.Errorf("load lending: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if r.Income, err = s.loader.GetIncome(gctx, ownerID); err != nil {
			return fmt.Errorf("load income: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if r.Bills, err = s.loader.ListBills(gctx, ownerID, false); err != nil {
			return fmt.Errorf("load bills: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return summary.Records{}, err
	}
	if r.Bills == nil {
		r.Bills = []core.Bill{}
	}
	return r, nil
}

func cacheKey(ownerID, kind string, parts ...string) string {
	return ownerID + "|" + kind + "|" + strings.Join(parts, "|")
}

// cached returns the cached value for key or computes, stores and returns it.
func cached[T any](ctx context.Context, s *SummaryService, ownerID, kind string, key string, compute func(summary.Records) T) (T, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			if t, ok := v.(T); ok {
				s.metrics.SummaryRequest(kind, true)
				return t, nil
			}
		}
	}
	s.metrics.SummaryRequest(kind, false)

	var zero T
	records, err := s.Load(ctx, ownerID)
	if err != nil {
		return zero, err
	}
	v := compute(records)
	if s.cache != nil {
		s.cache.Set(key, v)
	}
	return v, nil
}

func validateRange(start, end core.Date) error {
	if err := start.Validate(); err != nil {
		return &core.ValidationError{Field: "start", Err: err}
	}
	if err := end.Validate(); err != nil {
		return &core.ValidationError{Field: "end", Err: err}
	}
	if end.Before(start.Time) {
		return &core.ValidationError{Field: "end", Err: fmt.Errorf("%w: end before start", core.ErrInvalidDate)}
	}
	return nil
}

func (s *SummaryService) logWarnings(ctx context.Context, ownerID string, warnings []summary.Warning) {
	for _, w := range warnings {
		slog.WarnContext(ctx, "Skipped record during aggregation",
			"owner_id", ownerID,
			"code", w.Code,
			"expense_id", w.ExpenseID,
			"bill_id", w.BillID)
	}
	if len(warnings) > 0 {
		s.metrics.Warnings(warnings[0].Code, len(warnings))
	}
}

const codeInvalidFrequency = "invalid_frequency"

func logSkippedBills(ctx context.Context, m *metrics.Metrics, ownerID string, skipped []core.Bill) {
	for _, b := range skipped {
		slog.WarnContext(ctx, "Skipping bill with invalid frequency",
			"owner_id", ownerID,
			"bill_id", b.ID,
			"frequency", b.Frequency)
	}
	if len(skipped) > 0 {
		m.Warnings(codeInvalidFrequency, len(skipped))
	}
}

func (s *SummaryService) MonthlySummary(ctx context.Context, ownerID string, start, end core.Date) (summary.Summary, error) {
	if err := validateRange(start, end); err != nil {
		return summary.Summary{}, err
	}
	return cached(ctx, s, ownerID, "monthly", cacheKey(ownerID, "monthly", start.String(), end.String()),
		func(r summary.Records) summary.Summary {
			out := summary.MonthlyFinancialSummary(r, start, end)
			s.logWarnings(ctx, ownerID, out.Warnings)
			return out
		})
}

func (s *SummaryService) Spending(ctx context.Context, ownerID string, start, end core.Date) (summary.Spending, error) {
	if err := validateRange(start, end); err != nil {
		return summary.Spending{}, err
	}
	return cached(ctx, s, ownerID, "spending", cacheKey(ownerID, "spending", start.String(), end.String()),
		func(r summary.Records) summary.Spending {
			out := summary.SpendingForPeriod(r, start, end)
			s.logWarnings(ctx, ownerID, out.Warnings)
			return out
		})
}

func (s *SummaryService) Income(ctx context.Context, ownerID string, start, end core.Date) (summary.IncomeBreakdown, error) {
	if err := validateRange(start, end); err != nil {
		return summary.IncomeBreakdown{}, err
	}
	return cached(ctx, s, ownerID, "income", cacheKey(ownerID, "income", start.String(), end.String()),
		func(r summary.Records) summary.IncomeBreakdown {
			return summary.IncomeForPeriod(r, start, end)
		})
}

func (s *SummaryService) Day(ctx context.Context, ownerID string, date core.Date) (DayView, error) {
	if err := date.Validate(); err != nil {
		return DayView{}, &core.ValidationError{Field: "date", Err: err}
	}
	return cached(ctx, s, ownerID, "day", cacheKey(ownerID, "day", date.String()),
		func(r summary.Records) DayView {
			items := summary.DailyItems(r, date)
			if items == nil {
				items = []summary.SpendingItem{}
			}
			total := decimal.Zero
			for _, it := range items {
				total = total.Add(it.Amount())
			}
			return DayView{Date: date, Items: items, Total: total}
		})
}

func (s *SummaryService) Week(ctx context.Context, ownerID string, date core.Date) (summary.Week, error) {
	if err := date.Validate(); err != nil {
		return summary.Week{}, &core.ValidationError{Field: "date", Err: err}
	}
	return cached(ctx, s, ownerID, "week", cacheKey(ownerID, "week", date.String()),
		func(r summary.Records) summary.Week {
			return summary.WeekTotals(r, date)
		})
}

// BillStatuses reports every bill of the owner against the period that
// contains today. Deactivated bills are listed only when includeInactive is
// set.
func (s *SummaryService) BillStatuses(ctx context.Context, ownerID string, today time.Time, includeInactive bool) ([]billing.BillStatus, error) {
	bills, err := s.loader.ListBills(ctx, ownerID, !includeInactive)
	if err != nil {
		return nil, fmt.Errorf("load bills: %w", err)
	}
	expenses, err := s.loader.ListExpenses(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	statuses, skipped := billing.StatusFor(bills, billing.PaymentsByBill(expenses), today)
	logSkippedBills(ctx, s.metrics, ownerID, skipped)
	return statuses, nil
}

// UpcomingDeadlines lists the owner's unpaid bills whose reminder window is
// open on today, most urgent first.
func (s *SummaryService) UpcomingDeadlines(ctx context.Context, ownerID string, today time.Time) ([]billing.DueBill, error) {
	bills, err := s.loader.ListBills(ctx, ownerID, true)
	if err != nil {
		return nil, fmt.Errorf("load bills: %w", err)
	}
	expenses, err := s.loader.ListExpenses(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("load expenses: %w", err)
	}
	due, skipped := billing.UpcomingDeadlines(bills, billing.PaymentsByBill(expenses), today)
	logSkippedBills(ctx, s.metrics, ownerID, skipped)
	if due == nil {
		due = []billing.DueBill{}
	}
	return due, nil
}

func (s *SummaryService) PersonBalances(ctx context.Context, ownerID string) ([]core.PersonBalance, error) {
	var (
		people  []core.Person
		records []core.LendingRecord
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		people, err = s.loader.ListPeople(gctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		records, err = s.loader.ListLending(gctx, ownerID, "")
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load lending balances: %w", err)
	}
	return core.Balances(people, records), nil
}

// Invalidate drops every cached result of the owner.
func (s *SummaryService) Invalidate(ownerID string) {
	if s.cache == nil {
		return
	}
	s.cache.DeletePrefix(ownerID + "|")
}
