package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"adminpanel/internal/auth"
)

// settingAdminPassword is the settings key holding the shared admin secret hash
const settingAdminPassword = "admin_password"

// LookupByUsername returns the account for username, or nil if none exists
func (s *Store) LookupByUsername(ctx context.Context, username string) (*auth.UserRecord, error) {
	query := `SELECT id, username, password_hash, role FROM users WHERE username = ?`
	return s.scanUserRecord(s.db.QueryRowContext(ctx, query, username))
}

// LookupByID returns the account with id, or nil if none exists
func (s *Store) LookupByID(ctx context.Context, userID int64) (*auth.UserRecord, error) {
	query := `SELECT id, username, password_hash, role FROM users WHERE id = ?`
	return s.scanUserRecord(s.db.QueryRowContext(ctx, query, userID))
}

func (s *Store) scanUserRecord(row *sql.Row) (*auth.UserRecord, error) {
	var rec auth.UserRecord
	var role string
	err := row.Scan(&rec.ID, &rec.Username, &rec.PasswordHash, &role)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	rec.Role = auth.Role(role)
	return &rec, nil
}

// LookupSharedSecret returns the shared admin password hash
func (s *Store) LookupSharedSecret(ctx context.Context) (string, bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingAdminPassword).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read admin password: %w", err)
	}
	return hash, hash != "", nil
}

// UpdateUserHash replaces an account's password hash
func (s *Store) UpdateUserHash(ctx context.Context, userID int64, hash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash = ? WHERE id = ?`, hash, userID)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return expectOneRow(result, "user", userID)
}

// UpdateSharedSecret stores the shared admin password hash, creating the setting if absent
func (s *Store) UpdateSharedSecret(ctx context.Context, hash string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := s.db.ExecContext(ctx, query, settingAdminPassword, hash); err != nil {
		return fmt.Errorf("failed to update admin password: %w", err)
	}
	return nil
}

// CreateUser inserts an account with an already-hashed password.
// Returns ErrDuplicate when the username is taken.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, role auth.Role) (*User, error) {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, ?)`,
		username, passwordHash, string(role), toUnix(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("user %q: %w", username, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get user ID: %w", err)
	}

	return &User{ID: id, Username: username, Role: string(role), CreatedAt: now}, nil
}

// ListUsersByRole returns accounts holding role, newest first
func (s *Store) ListUsersByRole(ctx context.Context, role auth.Role) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, role, created_at FROM users WHERE role = ? ORDER BY created_at DESC, id DESC`,
		string(role))
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		var createdAt int64
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.CreatedAt = fromUnix(createdAt)
		users = append(users, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// CountUsersByRole returns how many accounts hold role
func (s *Store) CountUsersByRole(ctx context.Context, role auth.Role) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role = ?`, string(role)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return n, nil
}

// DeleteUserWithRole deletes the account only if it holds role.
// Its sessions are removed by the foreign key cascade.
func (s *Store) DeleteUserWithRole(ctx context.Context, userID int64, role auth.Role) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = ? AND role = ?`, userID, string(role))
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectOneRow(result, "user", userID)
}

func expectOneRow(result sql.Result, what string, id int64) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %d: %w", what, id, ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
