package store

import (
	"context"
	"database/sql"
	"fmt"
)

// runMigrations executes all database migrations in a transaction
func (s *Store) runMigrations(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin migration transaction: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	migrations := []struct {
		name string
		fn   func(context.Context, *sql.Tx) error
	}{
		{"users", createUsersTable},
		{"settings", createSettingsTable},
		{"sessions", createSessionsTable},
		{"login_attempts", createLoginAttemptsTable},
		{"contacts", createContactsTable},
		{"news", createNewsTable},
	}

	for _, m := range migrations {
		if err = m.fn(ctx, tx); err != nil {
			return fmt.Errorf("failed to create %s table: %w", m.name, err)
		}
	}

	if err = createIndexes(ctx, tx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit migration transaction: %w", err)
	}

	return nil
}

func createUsersTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('superadmin', 'editor')),
			created_at INTEGER NOT NULL
		)
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

// createSettingsTable holds singleton values such as the shared admin password hash
func createSettingsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

// createSessionsTable stores issued tokens. user_id is NULL for shared-secret sessions.
func createSessionsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER REFERENCES users(id) ON DELETE CASCADE,
			issued_at INTEGER NOT NULL,
			expires_at INTEGER NOT NULL
		)
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func createLoginAttemptsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE IF NOT EXISTS login_attempts (
			ip_address TEXT PRIMARY KEY,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_attempt INTEGER NOT NULL,
			blocked_until INTEGER
		)
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

// created_by carries no foreign key: deleting an editor leaves their resources in place
func createContactsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE IF NOT EXISTS contacts (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT '',
			telegram TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			order_index INTEGER NOT NULL DEFAULT 0,
			created_by INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func createNewsTable(ctx context.Context, tx *sql.Tx) error {
	query := `
		CREATE TABLE IF NOT EXISTS news (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			date TEXT NOT NULL DEFAULT '',
			order_index INTEGER NOT NULL DEFAULT 0,
			created_by INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)
	`
	_, err := tx.ExecContext(ctx, query)
	return err
}

func createIndexes(ctx context.Context, tx *sql.Tx) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_users_role ON users(role)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_expires ON sessions(expires_at)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_order ON contacts(order_index, id)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_created_by ON contacts(created_by)`,
		`CREATE INDEX IF NOT EXISTS idx_news_order ON news(order_index, id)`,
		`CREATE INDEX IF NOT EXISTS idx_news_created_by ON news(created_by)`,
	}

	for _, indexQuery := range indexes {
		if _, err := tx.ExecContext(ctx, indexQuery); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}
