package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"adminpanel/internal/auth"
)

// InsertSession persists an issued session
func (s *Store) InsertSession(ctx context.Context, session auth.SessionRecord) error {
	query := `INSERT INTO sessions (token, user_id, issued_at, expires_at) VALUES (?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		session.Token, nullableID(session.UserID), toUnix(session.IssuedAt), toUnix(session.ExpiresAt))
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	return nil
}

// FindValidSession returns the session for token if it expires strictly after now.
// Shared-secret sessions have no user row and resolve to the superadmin role.
func (s *Store) FindValidSession(ctx context.Context, token string, now time.Time) (*auth.SessionRecord, error) {
	query := `
		SELECT s.token, s.user_id, u.username, u.role, s.issued_at, s.expires_at
		FROM sessions s
		LEFT JOIN users u ON u.id = s.user_id
		WHERE s.token = ? AND s.expires_at > ?
	`

	var rec auth.SessionRecord
	var userID sql.NullInt64
	var username, role sql.NullString
	var issuedAt, expiresAt int64

	err := s.db.QueryRowContext(ctx, query, token, toUnix(now)).Scan(
		&rec.Token, &userID, &username, &role, &issuedAt, &expiresAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	rec.UserID = idPtr(userID)
	rec.IssuedAt = fromUnix(issuedAt)
	rec.ExpiresAt = fromUnix(expiresAt)

	if rec.UserID == nil {
		rec.Role = auth.RoleSuperadmin
	} else {
		if !username.Valid {
			// Orphaned by a user delete with foreign keys off
			return nil, nil
		}
		rec.Username = username.String
		rec.Role = auth.Role(role.String)
	}

	return &rec, nil
}

// DeleteSession removes a session token. Deleting an unknown token is not an error.
func (s *Store) DeleteSession(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// PurgeExpiredSessions removes sessions whose expires_at is at or before now
func (s *Store) PurgeExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, toUnix(now))
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired sessions: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}
