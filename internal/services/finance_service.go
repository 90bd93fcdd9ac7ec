package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/billing"
	"tally/internal/core"
	"tally/internal/metrics"
)

// ErrExportUnavailable is returned when no export publisher is configured.
var ErrExportUnavailable = errors.New("summary export is not configured")

// Store is the owner-scoped repository FinanceService writes through.
type Store interface {
	RecordLoader

	EnsureUser(ctx context.Context, deviceID string) (core.User, error)
	GetUser(ctx context.Context, id string) (core.User, error)
	UpdateUser(ctx context.Context, id string, upd core.UserUpdate) (core.User, error)
	DeleteUser(ctx context.Context, id string) error

	ListExpensesByKind(ctx context.Context, ownerID string, kind core.Kind) ([]core.Expense, error)
	ListExpensesInRange(ctx context.Context, ownerID string, start, end core.Date) ([]core.Expense, error)
	GetExpense(ctx context.Context, ownerID, id string) (core.Expense, error)
	InsertExpense(ctx context.Context, ownerID string, e core.Expense) (core.Expense, error)
	UpdateExpense(ctx context.Context, ownerID, id string, upd core.ExpenseUpdate) (core.Expense, error)
	DeleteExpense(ctx context.Context, ownerID, id string) error

	GetBill(ctx context.Context, ownerID, id string) (core.Bill, error)
	InsertBill(ctx context.Context, ownerID string, b core.Bill) (core.Bill, error)
	UpdateBill(ctx context.Context, ownerID, id string, upd core.BillUpdate) (core.Bill, error)
	DeactivateBill(ctx context.Context, ownerID, id string) error
	DeleteBill(ctx context.Context, ownerID, id string) error
	InsertBillPayment(ctx context.Context, ownerID string, in core.PaymentInput) (core.Expense, error)
	ListBillPayments(ctx context.Context, ownerID, billID string) ([]billing.Payment, error)
	DeleteBillPayment(ctx context.Context, ownerID, id string) error

	InsertAdditionalIncome(ctx context.Context, ownerID string, a core.AdditionalIncome) (core.AdditionalIncome, error)
	UpdateAdditionalIncome(ctx context.Context, ownerID, id string, upd core.AdditionalIncomeUpdate) (core.AdditionalIncome, error)
	DeleteAdditionalIncome(ctx context.Context, ownerID, id string) error
	UpsertIncome(ctx context.Context, ownerID string, upd core.IncomeUpdate) (core.Income, error)

	InsertPerson(ctx context.Context, ownerID string, p core.Person) (core.Person, error)
	RenamePerson(ctx context.Context, ownerID, id, name string) (core.Person, error)
	DeletePerson(ctx context.Context, ownerID, id string) error
	InsertLending(ctx context.Context, ownerID string, l core.LendingRecord) (core.LendingRecord, error)
	DeleteLending(ctx context.Context, ownerID, id string) error
}

// ExportPublisher queues summary exports for the worker.
type ExportPublisher interface {
	PublishSummaryExport(ctx context.Context, msg *amqp.SummaryExportMessage) error
}

// FinanceService is the write path of the API. Every successful write drops
// the owner's cached summaries.
type FinanceService struct {
	store     Store
	summaries *SummaryService
	exports   ExportPublisher
	metrics   *metrics.Metrics
}

func NewFinanceService(store Store, summaries *SummaryService, exports ExportPublisher, m *metrics.Metrics) *FinanceService {
	return &FinanceService{store: store, summaries: summaries, exports: exports, metrics: m}
}

func (s *FinanceService) invalidate(ownerID string) {
	if s.summaries != nil {
		s.summaries.Invalidate(ownerID)
	}
}

// after invalidates the owner's summaries when err is nil and passes err on.
func (s *FinanceService) after(ownerID string, err error) error {
	if err == nil {
		s.invalidate(ownerID)
	}
	return err
}

// ResolveOwner maps a device identifier to its user, creating it on first use.
func (s *FinanceService) ResolveOwner(ctx context.Context, deviceID string) (core.User, error) {
	return s.store.EnsureUser(ctx, deviceID)
}

func (s *FinanceService) User(ctx context.Context, ownerID string) (core.User, error) {
	return s.store.GetUser(ctx, ownerID)
}

func (s *FinanceService) UpdateUser(ctx context.Context, ownerID string, upd core.UserUpdate) (core.User, error) {
	return s.store.UpdateUser(ctx, ownerID, upd)
}

// DeleteUser removes the user and every record it owns.
func (s *FinanceService) DeleteUser(ctx context.Context, ownerID string) error {
	if err := s.store.DeleteUser(ctx, ownerID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	s.invalidate(ownerID)
	return nil
}

// Expenses lists the owner's expenses, optionally narrowed to one kind.
func (s *FinanceService) Expenses(ctx context.Context, ownerID string, kind core.Kind) ([]core.Expense, error) {
	if kind == "" {
		return s.store.ListExpenses(ctx, ownerID)
	}
	if kind != core.OneTime && kind != core.Recurring {
		return nil, &core.ValidationError{Field: "type", Err: core.ErrInvalidKind}
	}
	return s.store.ListExpensesByKind(ctx, ownerID, kind)
}

func (s *FinanceService) ExpensesInRange(ctx context.Context, ownerID string, start, end core.Date) ([]core.Expense, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}
	return s.store.ListExpensesInRange(ctx, ownerID, start, end)
}

func (s *FinanceService) Expense(ctx context.Context, ownerID, id string) (core.Expense, error) {
	return s.store.GetExpense(ctx, ownerID, id)
}

func (s *FinanceService) AddExpense(ctx context.Context, ownerID string, e core.Expense) (core.Expense, error) {
	saved, err := s.store.InsertExpense(ctx, ownerID, e)
	if e.Payment != nil {
		s.recordPaymentOutcome(err)
	}
	return saved, s.after(ownerID, err)
}

// UpdateExpense patches an expense. Bill payments keep their bill and period.
func (s *FinanceService) UpdateExpense(ctx context.Context, ownerID, id string, upd core.ExpenseUpdate) (core.Expense, error) {
	saved, err := s.store.UpdateExpense(ctx, ownerID, id, upd)
	return saved, s.after(ownerID, err)
}

func (s *FinanceService) RemoveExpense(ctx context.Context, ownerID, id string) error {
	return s.after(ownerID, s.store.DeleteExpense(ctx, ownerID, id))
}

func (s *FinanceService) Bills(ctx context.Context, ownerID string, activeOnly bool) ([]core.Bill, error) {
	return s.store.ListBills(ctx, ownerID, activeOnly)
}

func (s *FinanceService) Bill(ctx context.Context, ownerID, id string) (core.Bill, error) {
	return s.store.GetBill(ctx, ownerID, id)
}

func (s *FinanceService) AddBill(ctx context.Context, ownerID string, b core.Bill) (core.Bill, error) {
	saved, err := s.store.InsertBill(ctx, ownerID, b)
	return saved, s.after(ownerID, err)
}

func (s *FinanceService) UpdateBill(ctx context.Context, ownerID, id string, upd core.BillUpdate) (core.Bill, error) {
	saved, err := s.store.UpdateBill(ctx, ownerID, id, upd)
	return saved, s.after(ownerID, err)
}

func (s *FinanceService) DeactivateBill(ctx context.Context, ownerID, id string) error {
	return s.after(ownerID, s.store.DeactivateBill(ctx, ownerID, id))
}

// RemoveBill deletes the bill and its payment history.
func (s *FinanceService) RemoveBill(ctx context.Context, ownerID, id string) error {
	return s.after(ownerID, s.store.DeleteBill(ctx, ownerID, id))
}

// RecordBillPayment stores a payment for the bill's period. A second payment
// for the same period fails with core.ErrDuplicatePayment.
func (s *FinanceService) RecordBillPayment(ctx context.Context, ownerID string, in core.PaymentInput) (core.Expense, error) {
	saved, err := s.store.InsertBillPayment(ctx, ownerID, in)
	s.recordPaymentOutcome(err)
	if errors.Is(err, core.ErrDuplicatePayment) {
		slog.InfoContext(ctx, "Rejected duplicate bill payment", "bill_id", in.BillID, "paid_at", in.PaidAt.String())
	}
	return saved, s.after(ownerID, err)
}

func (s *FinanceService) recordPaymentOutcome(err error) {
	switch {
	case err == nil:
		s.metrics.BillPayment("saved")
	case errors.Is(err, core.ErrDuplicatePayment):
		s.metrics.BillPayment("duplicate")
	default:
		s.metrics.BillPayment("error")
	}
}

func (s *FinanceService) BillPayments(ctx context.Context, ownerID, billID string) ([]billing.Payment, error) {
	return s.store.ListBillPayments(ctx, ownerID, billID)
}

func (s *FinanceService) RemoveBillPayment(ctx context.Context, ownerID, id string) error {
	return s.after(ownerID, s.store.DeleteBillPayment(ctx, ownerID, id))
}

func (s *FinanceService) AdditionalIncome(ctx context.Context, ownerID string) ([]core.AdditionalIncome, error) {
	return s.store.ListAdditionalIncome(ctx, ownerID)
}

func (s *FinanceService) AddAdditionalIncome(ctx context.Context, ownerID string, a core.AdditionalIncome) (core.AdditionalIncome, error) {
	saved, err := s.store.InsertAdditionalIncome(ctx, ownerID, a)
	return saved, s.after(ownerID, err)
}

func (s *FinanceService) UpdateAdditionalIncome(ctx context.Context, ownerID, id string, upd core.AdditionalIncomeUpdate) (core.AdditionalIncome, error) {
	saved, err := s.store.UpdateAdditionalIncome(ctx, ownerID, id, upd)
	return saved, s.after(ownerID, err)
}

func (s *FinanceService) RemoveAdditionalIncome(ctx context.Context, ownerID, id string) error {
	return s.after(ownerID, s.store.DeleteAdditionalIncome(ctx, ownerID, id))
}

// Income returns the owner's income record; a zero record when none exists.
func (s *FinanceService) Income(ctx context.Context, ownerID string) (core.Income, error) {
	in, err := s.store.GetIncome(ctx, ownerID)
	if err != nil {
		return core.Income{}, err
	}
	if in == nil {
		return core.Income{OwnerID: ownerID}, nil
	}
	return *in, nil
}

func (s *FinanceService) SaveIncome(ctx context.Context, ownerID string, upd core.IncomeUpdate) (core.Income, error) {
	saved, err := s.store.UpsertIncome(ctx, ownerID, upd)
	return saved, s.after(ownerID, err)
}

func (s *FinanceService) People(ctx context.Context, ownerID string) ([]core.Person, error) {
	return s.store.ListPeople(ctx, ownerID)
}

func (s *FinanceService) AddPerson(ctx context.Context, ownerID string, p core.Person) (core.Person, error) {
	saved, err := s.store.InsertPerson(ctx, ownerID, p)
	return saved, s.after(ownerID, err)
}

func (s *FinanceService) RenamePerson(ctx context.Context, ownerID, id, name string) (core.Person, error) {
	saved, err := s.store.RenamePerson(ctx, ownerID, id, name)
	return saved, s.after(ownerID, err)
}

// RemovePerson deletes the person together with their lending records.
func (s *FinanceService) RemovePerson(ctx context.Context, ownerID, id string) error {
	return s.after(ownerID, s.store.DeletePerson(ctx, ownerID, id))
}

func (s *FinanceService) Lending(ctx context.Context, ownerID, personID string) ([]core.LendingRecord, error) {
	return s.store.ListLending(ctx, ownerID, personID)
}

func (s *FinanceService) AddLending(ctx context.Context, ownerID string, l core.LendingRecord) (core.LendingRecord, error) {
	saved, err := s.store.InsertLending(ctx, ownerID, l)
	return saved, s.after(ownerID, err)
}

func (s *FinanceService) RemoveLending(ctx context.Context, ownerID, id string) error {
	return s.after(ownerID, s.store.DeleteLending(ctx, ownerID, id))
}

// RequestSummaryExport queues a spreadsheet export of the owner's summary.
func (s *FinanceService) RequestSummaryExport(ctx context.Context, ownerID string, start, end core.Date) error {
	if err := validateRange(start, end); err != nil {
		return err
	}
	if s.exports == nil {
		return ErrExportUnavailable
	}
	if err := s.exports.PublishSummaryExport(ctx, amqp.NewSummaryExportMessage(ownerID, start, end)); err != nil {
		s.metrics.Export("sheets", "failed")
		return fmt.Errorf("queue summary export: %w", err)
	}
	s.metrics.Export("sheets", "queued")
	return nil
}

// Close releases the export publisher when it has a Close method.
func (s *FinanceService) Close() error {
	if c, ok := s.exports.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			return fmt.Errorf("close export publisher: %w", err)
		}
	}
	return nil
}
