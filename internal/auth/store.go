package auth

import (
	"context"
	"time"
)

// UserRecord is a named account as held by the credential store
type UserRecord struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
}

// SessionRecord is a persisted session. UserID is nil for shared-secret sessions.
type SessionRecord struct {
	Token     string
	UserID    *int64
	Username  string
	Role      Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// LockoutRecord is the brute-force ledger row for one network origin
type LockoutRecord struct {
	Origin       string
	Attempts     int
	LastAttempt  time.Time
	BlockedUntil *time.Time
}

// CredentialStore holds per-user hashes and the shared admin secret.
// Lookups return (nil, nil) when nothing matches.
type CredentialStore interface {
	LookupByUsername(ctx context.Context, username string) (*UserRecord, error)
	LookupByID(ctx context.Context, userID int64) (*UserRecord, error)
	LookupSharedSecret(ctx context.Context) (hash string, ok bool, err error)
	UpdateUserHash(ctx context.Context, userID int64, hash string) error
	UpdateSharedSecret(ctx context.Context, hash string) error
}

// SessionStore persists issued sessions
type SessionStore interface {
	InsertSession(ctx context.Context, session SessionRecord) error
	// FindValidSession returns the session for token if expires_at > now, else (nil, nil)
	FindValidSession(ctx context.Context, token string, now time.Time) (*SessionRecord, error)
	DeleteSession(ctx context.Context, token string) error
}

// LockoutStore persists the per-origin lockout ledger.
// GetLockout returns (nil, nil) when the origin has no record.
type LockoutStore interface {
	GetLockout(ctx context.Context, origin string) (*LockoutRecord, error)
	UpsertLockout(ctx context.Context, record LockoutRecord) error
	DeleteLockout(ctx context.Context, origin string) error
}

// Store is everything the auth core needs from persistence
type Store interface {
	CredentialStore
	SessionStore
	LockoutStore
}
