package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"tally/internal/billing"
	"tally/internal/core"
)

const expenseColumns = "id, owner_id, name, amount, category, type, date, day_of_month, bill_id, period_start, period_end, created_at"

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                          core.Expense
		amount, kind               string
		date, billID, pStart, pEnd sql.NullString
		dayOfMonth                 sql.NullInt64
		created                    int64
	)
	if err := s.Scan(&e.ID, &e.OwnerID, &e.Name, &amount, &e.Category, &kind,
		&date, &dayOfMonth, &billID, &pStart, &pEnd, &created); err != nil {
		return core.Expense{}, err
	}
	var err error
	if e.Amount, err = parseAmount(amount); err != nil {
		return core.Expense{}, err
	}
	if e.Date, err = parseNullDate(date); err != nil {
		return core.Expense{}, err
	}
	e.Kind = core.Kind(kind)
	e.DayOfMonth = int(dayOfMonth.Int64)
	e.CreatedAt = fromStamp(created)
	if billID.Valid && billID.String != "" {
		p := &core.BillPayment{BillID: billID.String}
		if p.PeriodStart, err = parseNullDate(pStart); err != nil {
			return core.Expense{}, err
		}
		if p.PeriodEnd, err = parseNullDate(pEnd); err != nil {
			return core.Expense{}, err
		}
		e.Payment = p
	}
	return e, nil
}

func queryExpenses(ctx context.Context, q querier, query string, args ...any) ([]core.Expense, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

// ListExpenses returns every expense of the owner, bill payments included.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, ownerID string) ([]core.Expense, error) {
	expenses, err := queryExpenses(ctx, r.db,
		"SELECT "+expenseColumns+" FROM expenses WHERE owner_id = ? ORDER BY date DESC, created_at DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

// ListExpensesByKind returns the owner's one-time or recurring expenses.
func (r *SQLiteRepository) ListExpensesByKind(ctx context.Context, ownerID string, kind core.Kind) ([]core.Expense, error) {
	expenses, err := queryExpenses(ctx, r.db,
		"SELECT "+expenseColumns+" FROM expenses WHERE owner_id = ? AND type = ? ORDER BY date DESC, day_of_month, created_at DESC",
		ownerID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list expenses by type: %w", err)
	}
	return expenses, nil
}

// ListExpensesInRange returns one-time expenses dated within [start, end] plus
// every recurring expense.
func (r *SQLiteRepository) ListExpensesInRange(ctx context.Context, ownerID string, start, end core.Date) ([]core.Expense, error) {
	expenses, err := queryExpenses(ctx, r.db,
		"SELECT "+expenseColumns+` FROM expenses
		 WHERE owner_id = ? AND (type = 'recurring' OR (date >= ? AND date <= ?))
		 ORDER BY date DESC, created_at DESC`,
		ownerID, start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("list expenses in range: %w", err)
	}
	return expenses, nil
}

func getExpense(ctx context.Context, q querier, ownerID, id string) (core.Expense, error) {
	if err := checkOwner(ctx, q, "expenses", id, ownerID); err != nil {
		return core.Expense{}, err
	}
	e, err := scanExpense(q.QueryRowContext(ctx, "SELECT "+expenseColumns+" FROM expenses WHERE id = ?", id))
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, ownerID, id string) (core.Expense, error) {
	return getExpense(ctx, r.db, ownerID, id)
}

func insertExpenseRow(ctx context.Context, q querier, e core.Expense) error {
	var billID, pStart, pEnd sql.NullString
	if e.Payment != nil {
		billID = nullString(e.Payment.BillID)
		pStart = nullDate(e.Payment.PeriodStart)
		pEnd = nullDate(e.Payment.PeriodEnd)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO expenses (id, owner_id, name, amount, category, type, date, day_of_month, bill_id, period_start, period_end, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Name, e.Amount.String(), e.Category, string(e.Kind),
		nullDate(e.Date), nullInt(e.DayOfMonth), billID, pStart, pEnd, stamp(e.CreatedAt),
	)
	return err
}

// InsertExpense stores a plain expense. Expenses carrying a bill payment are
// routed through InsertBillPayment so the duplicate-period check applies.
func (r *SQLiteRepository) InsertExpense(ctx context.Context, ownerID string, e core.Expense) (core.Expense, error) {
	if e.Payment != nil {
		return r.InsertBillPayment(ctx, ownerID, core.PaymentInput{
			BillID:      e.Payment.BillID,
			Amount:      e.Amount,
			PaidAt:      e.Date,
			PeriodStart: e.Payment.PeriodStart,
			PeriodEnd:   e.Payment.PeriodEnd,
		})
	}

	e.Name = strings.TrimSpace(e.Name)
	e.Category = strings.TrimSpace(e.Category)
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.ID = newID()
	e.OwnerID = ownerID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = fromStamp(stamp(e.CreatedAt))
	}
	if e.Kind == core.Recurring {
		e.Date = core.Date{}
	} else {
		e.DayOfMonth = 0
	}

	if err := insertExpenseRow(ctx, r.db, e); err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense saved",
		"id", e.ID,
		"type", e.Kind,
		"amount", e.Amount.String(),
		"category", e.Category)
	return e, nil
}

// UpdateExpense applies a partial update and re-validates the result. The
// bill and period columns are never written, so a bill payment keeps its link.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, ownerID, id string, upd core.ExpenseUpdate) (core.Expense, error) {
	var updated core.Expense
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getExpense(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		e := upd.Apply(current)
		if err := e.Validate(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE expenses SET name = ?, amount = ?, category = ?, date = ?, day_of_month = ?
			 WHERE id = ? AND owner_id = ?`,
			e.Name, e.Amount.String(), e.Category, nullDate(e.Date), nullInt(e.DayOfMonth), id, ownerID,
		); err != nil {
			return fmt.Errorf("update expense: %w", err)
		}
		updated = e
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}
	slog.InfoContext(ctx, "Expense updated", "id", id, "amount", updated.Amount.String())
	return updated, nil
}

// resolvePeriod returns the canonical period a payment settles.
func resolvePeriod(freq core.Frequency, in core.PaymentInput) (billing.Period, error) {
	ref := in.PeriodStart
	if ref.IsZero() {
		ref = in.PaidAt
	}
	p, err := billing.CurrentPeriod(freq, ref.Time)
	if err != nil {
		return billing.Period{}, err
	}
	if !in.PeriodStart.IsZero() && !p.Start.Equal(in.PeriodStart.Time) {
		return billing.Period{}, &core.ValidationError{Field: "period_start", Err: core.ErrInvalidDate}
	}
	if !in.PeriodEnd.IsZero() && !p.End.Equal(in.PeriodEnd.Time) {
		return billing.Period{}, &core.ValidationError{Field: "period_end", Err: core.ErrInvalidDate}
	}
	return p, nil
}

// InsertBillPayment records a payment of a bill as an expense carrying the
// bill's name and category. The ownership check, the duplicate-period check
// and the insert run in one transaction.
func (r *SQLiteRepository) InsertBillPayment(ctx context.Context, ownerID string, in core.PaymentInput) (core.Expense, error) {
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	var saved core.Expense
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		bill, err := getBill(ctx, tx, ownerID, in.BillID)
		if err != nil {
			return err
		}
		period, err := resolvePeriod(bill.Frequency, in)
		if err != nil {
			return err
		}

		existing, err := listPayments(ctx, tx, ownerID, bill.ID)
		if err != nil {
			return err
		}
		if billing.IsPaidForPeriod(existing, period.Start, period.End) {
			return fmt.Errorf("bill %s %s: %w", bill.ID, period.Label, core.ErrDuplicatePayment)
		}

		saved = core.Expense{
			ID:       newID(),
			OwnerID:  ownerID,
			Name:     bill.Name,
			Amount:   in.Amount,
			Category: bill.Category,
			Kind:     core.OneTime,
			Date:     in.PaidAt,
			Payment: &core.BillPayment{
				BillID:      bill.ID,
				PeriodStart: period.Start,
				PeriodEnd:   period.End,
			},
		}
		saved.CreatedAt = fromStamp(stamp(saved.CreatedAt))
		if err := insertExpenseRow(ctx, tx, saved); err != nil {
			return fmt.Errorf("insert bill payment: %w", err)
		}
		return nil
	})
	if err != nil {
		return core.Expense{}, err
	}

	slog.InfoContext(ctx, "Bill payment saved",
		"id", saved.ID,
		"bill_id", saved.Payment.BillID,
		"period_start", saved.Payment.PeriodStart.String(),
		"amount", saved.Amount.String())
	return saved, nil
}

func listPayments(ctx context.Context, q querier, ownerID, billID string) ([]billing.Payment, error) {
	expenses, err := queryExpenses(ctx, q,
		"SELECT "+expenseColumns+" FROM expenses WHERE owner_id = ? AND bill_id = ? ORDER BY period_start DESC",
		ownerID, billID)
	if err != nil {
		return nil, fmt.Errorf("list bill payments: %w", err)
	}
	payments := make([]billing.Payment, 0, len(expenses))
	for _, e := range expenses {
		if p, ok := billing.PaymentFromExpense(e); ok {
			payments = append(payments, p)
		}
	}
	return payments, nil
}

// ListBillPayments returns the payments of one bill, most recent period
// first.
func (r *SQLiteRepository) ListBillPayments(ctx context.Context, ownerID, billID string) ([]billing.Payment, error) {
	if err := checkOwner(ctx, r.db, "bills", billID, ownerID); err != nil {
		return nil, err
	}
	return listPayments(ctx, r.db, ownerID, billID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, ownerID, id string) error {
	if err := deleteOwned(ctx, r.db, "expenses", id, ownerID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

// DeleteBillPayment removes a payment. Expenses that are not bill payments
// are rejected with core.ErrNotBillPayment.
func (r *SQLiteRepository) DeleteBillPayment(ctx context.Context, ownerID, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkOwner(ctx, tx, "expenses", id, ownerID); err != nil {
			return err
		}
		var billID sql.NullString
		if err := tx.QueryRowContext(ctx, "SELECT bill_id FROM expenses WHERE id = ?", id).Scan(&billID); err != nil {
			return fmt.Errorf("get expense: %w", err)
		}
		if !billID.Valid || billID.String == "" {
			return fmt.Errorf("expense %s: %w", id, core.ErrNotBillPayment)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete bill payment: %w", err)
		}
		return nil
	})
}
