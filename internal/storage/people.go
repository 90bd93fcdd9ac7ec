package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"tally/internal/core"
)

func (r *SQLiteRepository) ListPeople(ctx context.Context, ownerID string) ([]core.Person, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT id, owner_id, name, created_at FROM people WHERE owner_id = ? ORDER BY name", ownerID)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	people := []core.Person{}
	for rows.Next() {
		var (
			p       core.Person
			created int64
		)
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &created); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		p.CreatedAt = fromStamp(created)
		people = append(people, p)
	}
	return people, rows.Err()
}

func (r *SQLiteRepository) InsertPerson(ctx context.Context, ownerID string, p core.Person) (core.Person, error) {
	p.Name = strings.TrimSpace(p.Name)
	if err := p.Validate(); err != nil {
		return core.Person{}, err
	}
	p.ID = newID()
	p.OwnerID = ownerID
	p.CreatedAt = fromStamp(stamp(p.CreatedAt))

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO people (id, owner_id, name, created_at) VALUES (?, ?, ?, ?)",
		p.ID, p.OwnerID, p.Name, stamp(p.CreatedAt),
	); err != nil {
		return core.Person{}, fmt.Errorf("insert person: %w", err)
	}
	return p, nil
}

// RenamePerson changes a person's display name.
func (r *SQLiteRepository) RenamePerson(ctx context.Context, ownerID, id, name string) (core.Person, error) {
	var renamed core.Person
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkOwner(ctx, tx, "people", id, ownerID); err != nil {
			return err
		}
		var created int64
		if err := tx.QueryRowContext(ctx, "SELECT created_at FROM people WHERE id = ?", id).Scan(&created); err != nil {
			return fmt.Errorf("get person: %w", err)
		}
		p := core.Person{ID: id, OwnerID: ownerID, Name: strings.TrimSpace(name), CreatedAt: fromStamp(created)}
		if err := p.Validate(); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE people SET name = ? WHERE id = ? AND owner_id = ?", p.Name, id, ownerID); err != nil {
			return fmt.Errorf("rename person: %w", err)
		}
		renamed = p
		return nil
	})
	return renamed, err
}

// DeletePerson removes a person and their lending records.
func (r *SQLiteRepository) DeletePerson(ctx context.Context, ownerID, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkOwner(ctx, tx, "people", id, ownerID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM lending WHERE person_id = ? AND owner_id = ?", id, ownerID); err != nil {
			return fmt.Errorf("delete lending: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM people WHERE id = ?", id); err != nil {
			return fmt.Errorf("delete person: %w", err)
		}
		slog.InfoContext(ctx, "Person deleted", "id", id)
		return nil
	})
}

func scanLending(s scanner) (core.LendingRecord, error) {
	var (
		l            core.LendingRecord
		amount, date string
		note         sql.NullString
		created      int64
	)
	if err := s.Scan(&l.ID, &l.OwnerID, &l.PersonID, &amount, &note, &date, &created); err != nil {
		return core.LendingRecord{}, err
	}
	var err error
	if l.Amount, err = parseAmount(amount); err != nil {
		return core.LendingRecord{}, err
	}
	if l.Date, err = core.ParseDate(date); err != nil {
		return core.LendingRecord{}, err
	}
	l.Note = note.String
	l.CreatedAt = fromStamp(created)
	return l, nil
}

// ListLending returns the owner's lending records, newest first. A non-empty
// personID narrows the list to one person.
func (r *SQLiteRepository) ListLending(ctx context.Context, ownerID, personID string) ([]core.LendingRecord, error) {
	query := "SELECT id, owner_id, person_id, amount, note, date, created_at FROM lending WHERE owner_id = ?"
	args := []any{ownerID}
	if personID != "" {
		query += " AND person_id = ?"
		args = append(args, personID)
	}
	query += " ORDER BY date DESC, created_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list lending: %w", err)
	}
	defer rows.Close()

	records := []core.LendingRecord{}
	for rows.Next() {
		l, err := scanLending(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lending: %w", err)
		}
		records = append(records, l)
	}
	return records, rows.Err()
}

// InsertLending stores a lending record after checking that the person
// belongs to the owner.
func (r *SQLiteRepository) InsertLending(ctx context.Context, ownerID string, l core.LendingRecord) (core.LendingRecord, error) {
	l.Note = strings.TrimSpace(l.Note)
	if err := l.Validate(); err != nil {
		return core.LendingRecord{}, err
	}
	if err := checkOwner(ctx, r.db, "people", l.PersonID, ownerID); err != nil {
		return core.LendingRecord{}, err
	}
	l.ID = newID()
	l.OwnerID = ownerID
	l.CreatedAt = fromStamp(stamp(l.CreatedAt))

	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO lending (id, owner_id, person_id, amount, note, date, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		l.ID, l.OwnerID, l.PersonID, l.Amount.String(), nullString(l.Note), l.Date.String(), stamp(l.CreatedAt),
	); err != nil {
		return core.LendingRecord{}, fmt.Errorf("insert lending: %w", err)
	}

	slog.InfoContext(ctx, "Lending saved", "id", l.ID, "person_id", l.PersonID, "amount", l.Amount.String())
	return l, nil
}

func (r *SQLiteRepository) DeleteLending(ctx context.Context, ownerID, id string) error {
	return deleteOwned(ctx, r.db, "lending", id, ownerID)
}
