package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultContactColor is the gradient used when a contact is created without one
const DefaultContactColor = "from-purple-500 to-pink-500"

// Owners resolves created_by for rows of one table
type Owners struct {
	db    *sql.DB
	table string
}

// GetOwner returns created_by for id. found is false when the row does not exist.
func (r Owners) GetOwner(ctx context.Context, id int64) (*int64, bool, error) {
	var createdBy sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT created_by FROM `+r.table+` WHERE id = ?`, id).Scan(&createdBy)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load owner from %s: %w", r.table, err)
	}
	return idPtr(createdBy), true, nil
}

// ContactOwners returns the owner lookup for contacts
func (s *Store) ContactOwners() Owners {
	return Owners{db: s.db, table: "contacts"}
}

// NewsOwners returns the owner lookup for news
func (s *Store) NewsOwners() Owners {
	return Owners{db: s.db, table: "news"}
}

// reorder applies order updates to table in one transaction.
// Ids that no longer exist are skipped.
func (s *Store) reorder(ctx context.Context, table string, updates []OrderUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE `+table+` SET order_index = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare reorder: %w", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.OrderIndex, u.ID); err != nil {
			return fmt.Errorf("failed to reorder %s %d: %w", table, u.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reorder: %w", err)
	}
	return nil
}

// Contacts

const contactColumns = `id, name, role, telegram, color, order_index, created_by, created_at, updated_at`

func scanContact(scan func(dest ...any) error) (*Contact, error) {
	var c Contact
	var createdBy sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(&c.ID, &c.Name, &c.Role, &c.Telegram, &c.Color, &c.OrderIndex, &createdBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.CreatedBy = idPtr(createdBy)
	c.CreatedAt = fromUnix(createdAt)
	c.UpdatedAt = fromUnix(updatedAt)
	return &c, nil
}

// ListContacts returns contacts ordered by order_index, then id
func (s *Store) ListContacts(ctx context.Context) ([]Contact, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contactColumns+` FROM contacts ORDER BY order_index ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contacts: %w", err)
	}
	defer rows.Close()

	contacts := []Contact{}
	for rows.Next() {
		c, err := scanContact(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating contacts: %w", err)
	}

	return contacts, nil
}

// GetContact returns the contact with id or ErrNotFound
func (s *Store) GetContact(ctx context.Context, id int64) (*Contact, error) {
	c, err := scanContact(s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("contact %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

// CreateContact appends a contact after the current last one.
// createdBy is recorded once and never changed.
func (s *Store) CreateContact(ctx context.Context, f ContactFields, createdBy *int64) (*Contact, error) {
	if f.Color == "" {
		f.Color = DefaultContactColor
	}
	now := toUnix(time.Now())

	query := `
		INSERT INTO contacts (name, role, telegram, color, order_index, created_by, created_at, updated_at)
		SELECT ?, ?, ?, ?, COALESCE(MAX(order_index), -1) + 1, ?, ?, ? FROM contacts
	`
	result, err := s.db.ExecContext(ctx, query, f.Name, f.Role, f.Telegram, f.Color, nullableID(createdBy), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get contact ID: %w", err)
	}

	return s.GetContact(ctx, id)
}

// UpdateContact replaces the editable fields of a contact.
// An empty color keeps the stored one.
func (s *Store) UpdateContact(ctx context.Context, id int64, f ContactFields) (*Contact, error) {
	query := `
		UPDATE contacts
		SET name = ?, role = ?, telegram = ?, color = COALESCE(NULLIF(?, ''), color), updated_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query, f.Name, f.Role, f.Telegram, f.Color, toUnix(time.Now()), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update contact: %w", err)
	}
	if err := expectOneRow(result, "contact", id); err != nil {
		return nil, err
	}
	return s.GetContact(ctx, id)
}

// DeleteContact removes a contact
func (s *Store) DeleteContact(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return expectOneRow(result, "contact", id)
}

// ReorderContacts assigns order_index values in bulk
func (s *Store) ReorderContacts(ctx context.Context, updates []OrderUpdate) error {
	return s.reorder(ctx, "contacts", updates)
}

// News

const newsColumns = `id, title, description, date, order_index, created_by, created_at, updated_at`

func scanNews(scan func(dest ...any) error) (*NewsItem, error) {
	var n NewsItem
	var createdBy sql.NullInt64
	var createdAt, updatedAt int64
	if err := scan(&n.ID, &n.Title, &n.Description, &n.Date, &n.OrderIndex, &createdBy, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	n.CreatedBy = idPtr(createdBy)
	n.CreatedAt = fromUnix(createdAt)
	n.UpdatedAt = fromUnix(updatedAt)
	return &n, nil
}

// ListNews returns news ordered by order_index, then id
func (s *Store) ListNews(ctx context.Context) ([]NewsItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+newsColumns+` FROM news ORDER BY order_index ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query news: %w", err)
	}
	defer rows.Close()

	items := []NewsItem{}
	for rows.Next() {
		n, err := scanNews(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news: %w", err)
		}
		items = append(items, *n)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating news: %w", err)
	}

	return items, nil
}

// GetNews returns the news item with id or ErrNotFound
func (s *Store) GetNews(ctx context.Context, id int64) (*NewsItem, error) {
	n, err := scanNews(s.db.QueryRowContext(ctx, `SELECT `+newsColumns+` FROM news WHERE id = ?`, id).Scan)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("news %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get news: %w", err)
	}
	return n, nil
}

// CreateNews appends a news item after the current last one
func (s *Store) CreateNews(ctx context.Context, f NewsFields, createdBy *int64) (*NewsItem, error) {
	now := toUnix(time.Now())

	query := `
		INSERT INTO news (title, description, date, order_index, created_by, created_at, updated_at)
		SELECT ?, ?, ?, COALESCE(MAX(order_index), -1) + 1, ?, ?, ? FROM news
	`
	result, err := s.db.ExecContext(ctx, query, f.Title, f.Description, f.Date, nullableID(createdBy), now, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create news: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get news ID: %w", err)
	}

	return s.GetNews(ctx, id)
}

// UpdateNews replaces the editable fields of a news item
func (s *Store) UpdateNews(ctx context.Context, id int64, f NewsFields) (*NewsItem, error) {
	query := `UPDATE news SET title = ?, description = ?, date = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, f.Title, f.Description, f.Date, toUnix(time.Now()), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update news: %w", err)
	}
	if err := expectOneRow(result, "news", id); err != nil {
		return nil, err
	}
	return s.GetNews(ctx, id)
}

// DeleteNews removes a news item
func (s *Store) DeleteNews(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM news WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete news: %w", err)
	}
	return expectOneRow(result, "news", id)
}

// ReorderNews assigns order_index values in bulk
func (s *Store) ReorderNews(ctx context.Context, updates []OrderUpdate) error {
	return s.reorder(ctx, "news", updates)
}
