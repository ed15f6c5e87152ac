package store

import (
	"context"
	"database/sql"
	"fmt"

	"adminpanel/internal/auth"
)

// GetLockout returns the ledger row for origin, or nil if there is none
func (s *Store) GetLockout(ctx context.Context, origin string) (*auth.LockoutRecord, error) {
	query := `SELECT ip_address, attempts, last_attempt, blocked_until FROM login_attempts WHERE ip_address = ?`

	var rec auth.LockoutRecord
	var lastAttempt int64
	var blockedUntil sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, origin).Scan(&rec.Origin, &rec.Attempts, &lastAttempt, &blockedUntil)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get login attempts: %w", err)
	}

	rec.LastAttempt = fromUnix(lastAttempt)
	rec.BlockedUntil = timePtr(blockedUntil)
	return &rec, nil
}

// UpsertLockout writes the ledger row for record.Origin
func (s *Store) UpsertLockout(ctx context.Context, record auth.LockoutRecord) error {
	query := `
		INSERT INTO login_attempts (ip_address, attempts, last_attempt, blocked_until)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ip_address) DO UPDATE SET
			attempts = excluded.attempts,
			last_attempt = excluded.last_attempt,
			blocked_until = excluded.blocked_until
	`
	_, err := s.db.ExecContext(ctx, query,
		record.Origin, record.Attempts, toUnix(record.LastAttempt), nullableTime(record.BlockedUntil))
	if err != nil {
		return fmt.Errorf("failed to record login attempt: %w", err)
	}
	return nil
}

// DeleteLockout clears the ledger row for origin
func (s *Store) DeleteLockout(ctx context.Context, origin string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM login_attempts WHERE ip_address = ?`, origin); err != nil {
		return fmt.Errorf("failed to clear login attempts: %w", err)
	}
	return nil
}
