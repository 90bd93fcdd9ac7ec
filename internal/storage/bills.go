package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

const billColumns = "id, owner_id, name, category, frequency, expected_amount, deadline_day, reminder_days_before, active, created_at"

func scanBill(s scanner) (core.Bill, error) {
	var (
		b                  core.Bill
		frequency          string
		expected           sql.NullString
		deadline, reminder sql.NullInt64
		active             bool
		created            int64
	)
	if err := s.Scan(&b.ID, &b.OwnerID, &b.Name, &b.Category, &frequency,
		&expected, &deadline, &reminder, &active, &created); err != nil {
		return core.Bill{}, err
	}
	b.Frequency = core.Frequency(frequency)
	if expected.Valid {
		amount, err := parseAmount(expected.String)
		if err != nil {
			return core.Bill{}, err
		}
		b.ExpectedAmount = &amount
	}
	b.DeadlineDay = intPtr(deadline)
	b.ReminderDaysBefore = intPtr(reminder)
	b.Active = active
	b.CreatedAt = fromStamp(created)
	return b, nil
}

func nullDecimal(d *decimal.Decimal) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func getBill(ctx context.Context, q querier, ownerID, id string) (core.Bill, error) {
	if err := checkOwner(ctx, q, "bills", id, ownerID); err != nil {
		return core.Bill{}, err
	}
	b, err := scanBill(q.QueryRowContext(ctx, "SELECT "+billColumns+" FROM bills WHERE id = ?", id))
	if err != nil {
		return core.Bill{}, fmt.Errorf("get bill: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetBill(ctx context.Context, ownerID, id string) (core.Bill, error) {
	return getBill(ctx, r.db, ownerID, id)
}

// ListBills returns the owner's bills ordered by name. With activeOnly set,
// deactivated bills are left out.
func (r *SQLiteRepository) ListBills(ctx context.Context, ownerID string, activeOnly bool) ([]core.Bill, error) {
	query := "SELECT " + billColumns + " FROM bills WHERE owner_id = ?"
	if activeOnly {
		query += " AND active = 1"
	}
	query += " ORDER BY name, created_at"

	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	bills := []core.Bill{}
	for rows.Next() {
		b, err := scanBill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (r *SQLiteRepository) InsertBill(ctx context.Context, ownerID string, b core.Bill) (core.Bill, error) {
	b.Name = strings.TrimSpace(b.Name)
	b.Category = strings.TrimSpace(b.Category)
	if err := b.Validate(); err != nil {
		return core.Bill{}, err
	}
	b.ID = newID()
	b.OwnerID = ownerID
	b.Active = true
	b.CreatedAt = fromStamp(stamp(b.CreatedAt))

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO bills (id, owner_id, name, category, frequency, expected_amount, deadline_day, reminder_days_before, active, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		b.ID, b.OwnerID, b.Name, b.Category, string(b.Frequency),
		nullDecimal(b.ExpectedAmount), nullIntPtr(b.DeadlineDay), nullIntPtr(b.ReminderDaysBefore), stamp(b.CreatedAt),
	); err != nil {
		return core.Bill{}, fmt.Errorf("insert bill: %w", err)
	}

	slog.InfoContext(ctx, "Bill saved", "id", b.ID, "name", b.Name, "frequency", b.Frequency)
	return b, nil
}

// UpdateBill applies a partial update and re-validates the result.
func (r *SQLiteRepository) UpdateBill(ctx context.Context, ownerID, id string, upd core.BillUpdate) (core.Bill, error) {
	var updated core.Bill
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getBill(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		b := upd.Apply(current)
		if err := b.Validate(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE bills SET name = ?, category = ?, frequency = ?, expected_amount = ?, deadline_day = ?, reminder_days_before = ?
			 WHERE id = ? AND owner_id = ?`,
			b.Name, b.Category, string(b.Frequency), nullDecimal(b.ExpectedAmount),
			nullIntPtr(b.DeadlineDay), nullIntPtr(b.ReminderDaysBefore), id, ownerID,
		); err != nil {
			return fmt.Errorf("update bill: %w", err)
		}
		updated = b
		return nil
	})
	return updated, err
}

// DeactivateBill hides a bill from active lists while keeping its payments.
func (r *SQLiteRepository) DeactivateBill(ctx context.Context, ownerID, id string) error {
	if err := checkOwner(ctx, r.db, "bills", id, ownerID); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "UPDATE bills SET active = 0 WHERE id = ? AND owner_id = ?", id, ownerID); err != nil {
		return fmt.Errorf("deactivate bill: %w", err)
	}
	slog.InfoContext(ctx, "Bill deactivated", "id", id)
	return nil
}

// DeleteBill removes a bill together with its payment expenses.
func (r *SQLiteRepository) DeleteBill(ctx context.Context, ownerID, id string) error {
	var removed int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkOwner(ctx, tx, "bills", id, ownerID); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE bill_id = ? AND owner_id = ?", id, ownerID)
		if err != nil {
			return fmt.Errorf("delete bill payments: %w", err)
		}
		removed, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx, "DELETE FROM bills WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete bill: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Bill deleted", "id", id, "payments_removed", removed)
	return nil
}
