package store

import "time"

// User is an account row without its password hash
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact is a team contact card shown on the public page
type Contact struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Role       string    `json:"role"`
	Telegram   string    `json:"telegram"`
	Color      string    `json:"color"`
	OrderIndex int64     `json:"order_index"`
	CreatedBy  *int64    `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ContactFields are the editable columns of a contact
type ContactFields struct {
	Name     string
	Role     string
	Telegram string
	Color    string
}

// NewsItem is a dated announcement
type NewsItem struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	OrderIndex  int64     `json:"order_index"`
	CreatedBy   *int64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewsFields are the editable columns of a news item
type NewsFields struct {
	Title       string
	Description string
	Date        string
}

// OrderUpdate assigns a new order_index to one row
type OrderUpdate struct {
	ID         int64 `json:"id"`
	OrderIndex int64 `json:"order_index"`
}
