package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"waitline/internal/models"
)

const entryColumns = `id, shop_id, name, phone, status, position, created_at, updated_at`

// entryTokenColumns joins the registered push token (if any) onto each entry.
const entryTokenColumns = `e.id, e.shop_id, e.name, e.phone, e.status, e.position,
    COALESCE(t.token, ''), e.created_at, e.updated_at`

// AdmitEntry creates a new entry for entry.ShopID inside one transaction.
// The entry is seated when fewer than capacity entries are seated for the
// shop, otherwise it joins the waiting list at max(position)+1. The decided
// status and position are written back onto entry.
func (db *DB) AdmitEntry(ctx context.Context, entry *models.Entry, capacity int) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var seated int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE shop_id = ? AND status = ?`,
		entry.ShopID, models.StatusSeated,
	).Scan(&seated)
	if err != nil {
		return fmt.Errorf("failed to count seated entries: %w", err)
	}

	if seated < capacity {
		entry.Status = models.StatusSeated
		entry.Position = nil
	} else {
		var next int64
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(position), 0) + 1 FROM entries WHERE shop_id = ? AND status = ?`,
			entry.ShopID, models.StatusWaiting,
		).Scan(&next)
		if err != nil {
			return fmt.Errorf("failed to compute next position: %w", err)
		}
		entry.Status = models.StatusWaiting
		entry.Position = &next
	}

	now := time.Now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO entries (shop_id, name, phone, status, position, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ShopID, entry.Name, entry.Phone, entry.Status, nullablePosition(entry.Position), now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	entry.ID = id
	entry.CreatedAt = now
	entry.UpdatedAt = now

	return tx.Commit()
}

// CompleteEntry marks the entry done and promotes the lowest-position
// waiting entry of the same shop inside one transaction. It returns the
// promoted entry, or nil when no one was waiting. Positions of the remaining
// waiting entries are renumbered so they stay gapless from 1.
//
// Returns ErrEntryNotFound when id is unknown and ErrAlreadyDone when the
// entry was finished before; neither mutates anything.
func (db *DB) CompleteEntry(ctx context.Context, id int64) (*models.Entry, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	entry, err := scanEntry(tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	if entry.Status == models.StatusDone {
		return nil, ErrAlreadyDone
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE entries SET status = ?, position = NULL, updated_at = ? WHERE id = ?`,
		models.StatusDone, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to mark entry done: %w", err)
	}

	next, err := scanEntry(tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries
         WHERE shop_id = ? AND status = ?
         ORDER BY position ASC LIMIT 1`,
		entry.ShopID, models.StatusWaiting))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Nobody waiting; the seat stays free.
			return nil, tx.Commit()
		}
		return nil, fmt.Errorf("failed to get next waiting entry: %w", err)
	}

	freedPosition := *next.Position
	_, err = tx.ExecContext(ctx,
		`UPDATE entries SET status = ?, position = NULL, updated_at = ? WHERE id = ?`,
		models.StatusSeated, now, next.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to seat entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE entries SET position = position - 1, updated_at = ?
         WHERE shop_id = ? AND status = ? AND position > ?`,
		now, entry.ShopID, models.StatusWaiting, freedPosition,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to renumber positions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	next.Status = models.StatusSeated
	next.Position = nil
	next.UpdatedAt = now
	return next, nil
}

// GetEntry returns the entry by id, or ErrEntryNotFound.
func (db *DB) GetEntry(ctx context.Context, id int64) (*models.Entry, error) {
	entry, err := scanEntry(db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, fmt.Errorf("failed to get entry: %w", err)
	}
	return entry, nil
}

// Snapshot returns the shop's seated entries and its waiting entries ordered
// ascending by position. Each entry carries the push token registered for
// its phone, when there is one.
func (db *DB) Snapshot(ctx context.Context, shopID int64) (*models.QueueSnapshot, error) {
	seated, err := db.queryEntries(ctx,
		`SELECT `+entryTokenColumns+` FROM entries e
         LEFT JOIN tokens t ON t.phone = e.phone
         WHERE e.shop_id = ? AND e.status = ?`,
		shopID, models.StatusSeated)
	if err != nil {
		return nil, fmt.Errorf("failed to get seated entries: %w", err)
	}

	waiting, err := db.queryEntries(ctx,
		`SELECT `+entryTokenColumns+` FROM entries e
         LEFT JOIN tokens t ON t.phone = e.phone
         WHERE e.shop_id = ? AND e.status = ? ORDER BY e.position ASC`,
		shopID, models.StatusWaiting)
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting entries: %w", err)
	}

	return &models.QueueSnapshot{Seated: seated, Waiting: waiting}, nil
}

// ListEntries returns every entry of a shop, done included, newest first,
// each with its registered push token joined on.
func (db *DB) ListEntries(ctx context.Context, shopID int64) ([]*models.Entry, error) {
	entries, err := db.queryEntries(ctx,
		`SELECT `+entryTokenColumns+` FROM entries e
         LEFT JOIN tokens t ON t.phone = e.phone
         WHERE e.shop_id = ? ORDER BY e.created_at DESC, e.id DESC`,
		shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	return entries, nil
}

// CountSeated returns the number of seated entries for a shop.
func (db *DB) CountSeated(ctx context.Context, shopID int64) (int, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entries WHERE shop_id = ? AND status = ?`,
		shopID, models.StatusSeated,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count seated entries: %w", err)
	}
	return count, nil
}

func (db *DB) queryEntries(ctx context.Context, query string, args ...any) ([]*models.Entry, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.Entry
	for rows.Next() {
		entry, err := scanEntryWithToken(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var entry models.Entry
	var position sql.NullInt64
	err := row.Scan(
		&entry.ID, &entry.ShopID, &entry.Name, &entry.Phone,
		&entry.Status, &position, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if position.Valid {
		entry.Position = &position.Int64
	}
	return &entry, nil
}

func scanEntryWithToken(row rowScanner) (*models.Entry, error) {
	var entry models.Entry
	var position sql.NullInt64
	err := row.Scan(
		&entry.ID, &entry.ShopID, &entry.Name, &entry.Phone,
		&entry.Status, &position, &entry.PushToken, &entry.CreatedAt, &entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if position.Valid {
		entry.Position = &position.Int64
	}
	return &entry, nil
}

func nullablePosition(pos *int64) any {
	if pos == nil {
		return nil
	}
	return *pos
}
