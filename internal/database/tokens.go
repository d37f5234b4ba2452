package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SaveToken associates a push token with a phone number, replacing any
// previous token for that phone.
func (db *DB) SaveToken(ctx context.Context, phone, token string) error {
	query := `
        INSERT INTO tokens (phone, token, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(phone) DO UPDATE SET
            token = excluded.token,
            updated_at = excluded.updated_at
    `
	_, err := db.ExecContext(ctx, query, phone, token, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// TokenForPhone returns the push token registered for a phone number, or an
// empty string when none is registered.
func (db *DB) TokenForPhone(ctx context.Context, phone string) (string, error) {
	var token string
	err := db.QueryRowContext(ctx,
		`SELECT token FROM tokens WHERE phone = ?`, phone,
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	return token, nil
}
