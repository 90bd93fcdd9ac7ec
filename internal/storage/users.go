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

const userColumns = "id, device_id, currency, sync_code, email, created_at"

func scanUser(s scanner) (core.User, error) {
	var (
		u                         core.User
		currency, syncCode, email sql.NullString
		created                   int64
	)
	if err := s.Scan(&u.ID, &u.DeviceID, &currency, &syncCode, &email, &created); err != nil {
		return core.User{}, err
	}
	u.Currency = currency.String
	u.SyncCode = syncCode.String
	u.Email = email.String
	u.CreatedAt = fromStamp(created)
	return u, nil
}

// EnsureUser returns the user linked to deviceID, creating it on first
// contact.
func (r *SQLiteRepository) EnsureUser(ctx context.Context, deviceID string) (core.User, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return core.User{}, &core.ValidationError{Field: "device_id", Err: core.ErrEmptyName}
	}

	var user core.User
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE device_id = ?", deviceID))
		if err == nil {
			user = u
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("get user by device: %w", err)
		}

		user = core.User{ID: newID(), DeviceID: deviceID, CreatedAt: time.Now()}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, device_id, created_at) VALUES (?, ?, ?)",
			user.ID, user.DeviceID, stamp(user.CreatedAt),
		); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}
		slog.InfoContext(ctx, "User created", "user_id", user.ID)
		return nil
	})
	return user, err
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id string) (core.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdateUser applies the non-nil fields of upd.
func (r *SQLiteRepository) UpdateUser(ctx context.Context, id string, upd core.UserUpdate) (core.User, error) {
	var user core.User
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		u, err := scanUser(tx.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %s: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		if upd.Currency != nil {
			u.Currency = strings.ToUpper(strings.TrimSpace(*upd.Currency))
		}
		if upd.Email != nil {
			u.Email = strings.TrimSpace(*upd.Email)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE users SET currency = ?, email = ? WHERE id = ?",
			nullString(u.Currency), nullString(u.Email), id,
		); err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		user = u
		return nil
	})
	return user, err
}

// ownedTables lists the tables removed with a user, children first.
var ownedTables = []string{"lending", "people", "expenses", "additional_income", "income", "bills"}

// DeleteUser removes the user and everything it owns in one transaction.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, "SELECT 1 FROM users WHERE id = ?", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %s: %w", id, core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get user: %w", err)
		}
		for _, table := range ownedTables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE owner_id = ?", id); err != nil {
				return fmt.Errorf("delete %s: %w", table, err)
			}
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		slog.InfoContext(ctx, "User deleted with owned records", "user_id", id)
		return nil
	})
}

// ListOwnerIDs returns the IDs of every user that has at least one active
// bill.
func (r *SQLiteRepository) ListOwnerIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT DISTINCT owner_id FROM bills WHERE active = 1 ORDER BY owner_id")
	if err != nil {
		return nil, fmt.Errorf("list owners: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan owner: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
