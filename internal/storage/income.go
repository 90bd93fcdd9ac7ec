package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tally/internal/core"
)

const incomeColumns = "id, owner_id, name, amount, source, type, date, day_of_month, created_at"

func scanAdditionalIncome(s scanner) (core.AdditionalIncome, error) {
	var (
		a            core.AdditionalIncome
		amount, kind string
		date         sql.NullString
		dayOfMonth   sql.NullInt64
		created      int64
	)
	if err := s.Scan(&a.ID, &a.OwnerID, &a.Name, &amount, &a.Source, &kind, &date, &dayOfMonth, &created); err != nil {
		return core.AdditionalIncome{}, err
	}
	var err error
	if a.Amount, err = parseAmount(amount); err != nil {
		return core.AdditionalIncome{}, err
	}
	if a.Date, err = parseNullDate(date); err != nil {
		return core.AdditionalIncome{}, err
	}
	a.Kind = core.Kind(kind)
	a.DayOfMonth = int(dayOfMonth.Int64)
	a.CreatedAt = fromStamp(created)
	return a, nil
}

func getAdditionalIncome(ctx context.Context, q querier, ownerID, id string) (core.AdditionalIncome, error) {
	if err := checkOwner(ctx, q, "additional_income", id, ownerID); err != nil {
		return core.AdditionalIncome{}, err
	}
	a, err := scanAdditionalIncome(q.QueryRowContext(ctx, "SELECT "+incomeColumns+" FROM additional_income WHERE id = ?", id))
	if err != nil {
		return core.AdditionalIncome{}, fmt.Errorf("get additional income: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) ListAdditionalIncome(ctx context.Context, ownerID string) ([]core.AdditionalIncome, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+incomeColumns+" FROM additional_income WHERE owner_id = ? ORDER BY date DESC, created_at DESC", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list additional income: %w", err)
	}
	defer rows.Close()

	out := []core.AdditionalIncome{}
	for rows.Next() {
		a, err := scanAdditionalIncome(rows)
		if err != nil {
			return nil, fmt.Errorf("scan additional income: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) InsertAdditionalIncome(ctx context.Context, ownerID string, a core.AdditionalIncome) (core.AdditionalIncome, error) {
	a.Name = strings.TrimSpace(a.Name)
	a.Source = strings.TrimSpace(a.Source)
	if err := a.Validate(); err != nil {
		return core.AdditionalIncome{}, err
	}
	a.ID = newID()
	a.OwnerID = ownerID
	if a.CreatedAt.IsZero() {
		a.CreatedAt = fromStamp(stamp(a.CreatedAt))
	}
	if a.Kind == core.Recurring {
		a.Date = core.Date{}
	} else {
		a.DayOfMonth = 0
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO additional_income (id, owner_id, name, amount, source, type, date, day_of_month, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerID, a.Name, a.Amount.String(), a.Source, string(a.Kind),
		nullDate(a.Date), nullInt(a.DayOfMonth), stamp(a.CreatedAt),
	); err != nil {
		return core.AdditionalIncome{}, fmt.Errorf("insert additional income: %w", err)
	}

	slog.InfoContext(ctx, "Additional income saved", "id", a.ID, "type", a.Kind, "amount", a.Amount.String())
	return a, nil
}

// UpdateAdditionalIncome applies a partial update and re-validates the result.
func (r *SQLiteRepository) UpdateAdditionalIncome(ctx context.Context, ownerID, id string, upd core.AdditionalIncomeUpdate) (core.AdditionalIncome, error) {
	var updated core.AdditionalIncome
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getAdditionalIncome(ctx, tx, ownerID, id)
		if err != nil {
			return err
		}
		a := upd.Apply(current)
		if err := a.Validate(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE additional_income SET name = ?, amount = ?, source = ?, date = ?, day_of_month = ?
			 WHERE id = ? AND owner_id = ?`,
			a.Name, a.Amount.String(), a.Source, nullDate(a.Date), nullInt(a.DayOfMonth), id, ownerID,
		); err != nil {
			return fmt.Errorf("update additional income: %w", err)
		}
		updated = a
		return nil
	})
	return updated, err
}

func (r *SQLiteRepository) DeleteAdditionalIncome(ctx context.Context, ownerID, id string) error {
	return deleteOwned(ctx, r.db, "additional_income", id, ownerID)
}

func getIncome(ctx context.Context, q querier, ownerID string) (*core.Income, error) {
	var (
		salary, savings string
		updated         int64
	)
	err := q.QueryRowContext(ctx,
		"SELECT salary, savings, updated_at FROM income WHERE owner_id = ?", ownerID,
	).Scan(&salary, &savings, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get income: %w", err)
	}
	in := &core.Income{OwnerID: ownerID, UpdatedAt: fromStamp(updated)}
	if in.Salary, err = parseAmount(salary); err != nil {
		return nil, err
	}
	if in.Savings, err = parseAmount(savings); err != nil {
		return nil, err
	}
	return in, nil
}

// GetIncome returns the owner's income record, or nil when none was saved.
func (r *SQLiteRepository) GetIncome(ctx context.Context, ownerID string) (*core.Income, error) {
	return getIncome(ctx, r.db, ownerID)
}

// UpsertIncome creates or partially updates the owner's income record.
// Fields left nil in upd keep their stored value.
func (r *SQLiteRepository) UpsertIncome(ctx context.Context, ownerID string, upd core.IncomeUpdate) (core.Income, error) {
	var saved core.Income
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		current, err := getIncome(ctx, tx, ownerID)
		if err != nil {
			return err
		}
		base := core.Income{OwnerID: ownerID}
		if current != nil {
			base = *current
		}
		in := upd.Apply(base)
		if err := in.Validate(); err != nil {
			return err
		}
		in.UpdatedAt = fromStamp(stamp(time.Time{}))
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO income (owner_id, salary, savings, updated_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT(owner_id) DO UPDATE SET salary = excluded.salary, savings = excluded.savings, updated_at = excluded.updated_at`,
			ownerID, in.Salary.String(), in.Savings.String(), stamp(in.UpdatedAt),
		); err != nil {
			return fmt.Errorf("upsert income: %w", err)
		}
		saved = in
		return nil
	})
	return saved, err
}
