package auth

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"adminpanel/internal/logging"
)

// Config holds the tunables of the auth core
type Config struct {
	SessionTTL        time.Duration
	LockoutThreshold  int
	LockoutWindow     time.Duration
	MinPasswordLength int
	BcryptCost        int

	// AllowNamed enables (username, password) logins
	AllowNamed bool
	// AllowShared enables password-only logins against the shared secret
	AllowShared bool
}

// DefaultConfig returns the stock policy: 7-day sessions, 5 failures, 5-minute block
func DefaultConfig() Config {
	return Config{
		SessionTTL:        7 * 24 * time.Hour,
		LockoutThreshold:  5,
		LockoutWindow:     5 * time.Minute,
		MinPasswordLength: 6,
		AllowNamed:        true,
		AllowShared:       true,
	}
}

// bcrypt ignores input past 72 bytes and GenerateFromPassword rejects it
const maxPasswordBytes = 72

// LoginResult is returned by a successful Login
type LoginResult struct {
	Token     string
	Identity  Identity
	ExpiresAt time.Time
}

// Core verifies credentials, issues and validates sessions, and rotates passwords.
// It keeps no state between calls; every decision re-reads the store.
type Core struct {
	store   Store
	cfg     Config
	lockout LockoutPolicy
	now     func() time.Time
	logger  *logging.Logger

	dummyOnce sync.Once
	dummyHash string
}

// Option customizes a Core
type Option func(*Core)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Core) {
		c.now = now
	}
}

// NewCore creates the auth core over store
func NewCore(store Store, cfg Config, logger *logging.Logger, opts ...Option) *Core {
	if logger == nil {
		logger = logging.Nop()
	}
	c := &Core{
		store:   store,
		cfg:     cfg,
		lockout: LockoutPolicy{Threshold: cfg.LockoutThreshold, Window: cfg.LockoutWindow},
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy exposes the lockout policy in effect
func (c *Core) Policy() LockoutPolicy {
	return c.lockout
}

// HashPassword hashes with the configured bcrypt cost
func (c *Core) HashPassword(password string) (string, error) {
	return HashPassword(password, c.cfg.BcryptCost)
}

// ValidateNewPassword enforces the minimum length on a password about to be stored
func (c *Core) ValidateNewPassword(password string) error {
	if utf8.RuneCountInString(password) < c.cfg.MinPasswordLength {
		return badRequest("new password is too short")
	}
	if len(password) > maxPasswordBytes {
		return badRequest("new password is too long")
	}
	return nil
}

// Login authenticates cred on behalf of the network origin and issues a session.
// The lockout ledger for origin is evaluated before the password is looked at.
func (c *Core) Login(ctx context.Context, cred Credential, origin string) (*LoginResult, error) {
	if err := c.checkCredentialShape(cred); err != nil {
		return nil, err
	}

	log := c.logger.WithContext("origin", origin)
	now := c.now()

	rec, err := c.store.GetLockout(ctx, origin)
	if err != nil {
		return nil, configurationError("failed to read lockout record", err)
	}

	switch c.lockout.State(rec, now) {
	case StateBlocked:
		retry := c.lockout.RetryAfter(*rec, now)
		log.Warn("login rejected: origin blocked for %s", retry.Round(time.Second))
		return nil, tooManyAttempts(retry)
	case StateExpired:
		reset := c.lockout.Reset(*rec)
		if err := c.store.UpsertLockout(ctx, reset); err != nil {
			return nil, configurationError("failed to reset lockout record", err)
		}
		rec = &reset
		log.Debug("lockout expired, record reset")
	}

	identity, ok, err := c.verify(ctx, cred)
	if err != nil {
		return nil, err
	}

	if !ok {
		failed := c.lockout.RecordFailure(rec, origin, now)
		if err := c.store.UpsertLockout(ctx, failed); err != nil {
			return nil, configurationError("failed to record failed login", err)
		}
		remaining := c.lockout.Remaining(failed)
		if failed.BlockedUntil != nil {
			log.Warn("login failed, origin now blocked after %d attempts", failed.Attempts)
		} else {
			log.Info("login failed, %d attempts remaining", remaining)
		}
		return nil, invalidCredentials(remaining)
	}

	if err := c.store.DeleteLockout(ctx, origin); err != nil {
		return nil, configurationError("failed to clear lockout record", err)
	}

	token, err := generateSecureToken(tokenBytes)
	if err != nil {
		return nil, configurationError("failed to generate token", err)
	}

	session := SessionRecord{
		Token:     token,
		UserID:    identity.OwnerID(),
		Username:  identity.Username,
		Role:      identity.Role,
		IssuedAt:  now,
		ExpiresAt: now.Add(c.cfg.SessionTTL),
	}
	if err := c.store.InsertSession(ctx, session); err != nil {
		return nil, configurationError("failed to create session", err)
	}

	log.Info("login succeeded (%s, role %s)", identity.Kind, identity.Role)

	return &LoginResult{
		Token:     token,
		Identity:  identity,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// checkCredentialShape rejects empty fields and disabled variants
func (c *Core) checkCredentialShape(cred Credential) error {
	if cred.Username != "" {
		if !c.cfg.AllowNamed {
			return badRequest("username login is disabled")
		}
		if cred.Password == "" {
			return badRequest("username and password are required")
		}
		return nil
	}

	if !c.cfg.AllowShared {
		return badRequest("username and password are required")
	}
	if cred.Password == "" {
		return badRequest("password is required")
	}
	return nil
}

// verify dispatches on the credential shape. ok is false for an unknown
// username or a wrong password alike.
func (c *Core) verify(ctx context.Context, cred Credential) (Identity, bool, error) {
	if cred.Username == "" {
		hash, found, err := c.store.LookupSharedSecret(ctx)
		if err != nil {
			return Identity{}, false, configurationError("failed to read admin password", err)
		}
		if !found {
			return Identity{}, false, configurationError("admin password is not configured", nil)
		}
		if !checkPasswordHash(cred.Password, hash) {
			return Identity{}, false, nil
		}
		return SharedAdmin(), true, nil
	}

	user, err := c.store.LookupByUsername(ctx, cred.Username)
	if err != nil {
		return Identity{}, false, configurationError("failed to look up user", err)
	}
	if user == nil {
		// Spend the same bcrypt work as a real mismatch
		checkPasswordHash(cred.Password, c.dummy())
		return Identity{}, false, nil
	}
	if !checkPasswordHash(cred.Password, user.PasswordHash) {
		return Identity{}, false, nil
	}
	if !user.Role.Valid() {
		return Identity{}, false, configurationError("user has an unknown role", nil)
	}

	return Identity{
		Kind:     NamedAccount,
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	}, true, nil
}

// dummy returns a hash used to equalize timing for unknown usernames
func (c *Core) dummy() string {
	c.dummyOnce.Do(func() {
		token, err := generateSecureToken(tokenBytes)
		if err != nil {
			token = "placeholder-password"
		}
		hash, err := c.HashPassword(token)
		if err == nil {
			c.dummyHash = hash
		}
	})
	return c.dummyHash
}

// ValidateToken resolves a session token to its identity.
// expires_at is compared strictly: a token expiring exactly now is rejected.
func (c *Core) ValidateToken(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, unauthorized("session token required")
	}

	now := c.now()
	session, err := c.store.FindValidSession(ctx, token, now)
	if err != nil {
		return nil, configurationError("failed to look up session", err)
	}
	if session == nil || !now.Before(session.ExpiresAt) {
		return nil, unauthorized("invalid or expired session")
	}

	if session.UserID == nil {
		id := SharedAdmin()
		return &id, nil
	}
	if !session.Role.Valid() {
		return nil, configurationError("session user has an unknown role", nil)
	}
	return &Identity{
		Kind:     NamedAccount,
		UserID:   *session.UserID,
		Username: session.Username,
		Role:     session.Role,
	}, nil
}

// Logout deletes a session token
func (c *Core) Logout(ctx context.Context, token string) error {
	if token == "" {
		return unauthorized("session token required")
	}
	if err := c.store.DeleteSession(ctx, token); err != nil {
		return configurationError("failed to delete session", err)
	}
	return nil
}

// ChangePassword re-verifies oldPassword against the stored hash and replaces it.
// Other sessions of the identity stay valid.
func (c *Core) ChangePassword(ctx context.Context, id Identity, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return badRequest("old and new password are required")
	}
	if err := c.ValidateNewPassword(newPassword); err != nil {
		return err
	}

	log := c.logger.WithContext("identity", id.Kind.String())

	var current string
	switch id.Kind {
	case NamedAccount:
		user, err := c.store.LookupByID(ctx, id.UserID)
		if err != nil {
			return configurationError("failed to look up user", err)
		}
		if user == nil {
			return unauthorized("account no longer exists")
		}
		current = user.PasswordHash
	case SharedSecret:
		hash, found, err := c.store.LookupSharedSecret(ctx)
		if err != nil {
			return configurationError("failed to read admin password", err)
		}
		if !found {
			return configurationError("admin password is not configured", nil)
		}
		current = hash
	default:
		return unauthorized("unknown identity")
	}

	if !checkPasswordHash(oldPassword, current) {
		log.Info("password change rejected: current password mismatch")
		return &Error{Kind: KindInvalidCredentials, Message: "current password is incorrect"}
	}

	newHash, err := c.HashPassword(newPassword)
	if err != nil {
		return configurationError("failed to hash password", err)
	}

	if id.Kind == NamedAccount {
		err = c.store.UpdateUserHash(ctx, id.UserID, newHash)
	} else {
		err = c.store.UpdateSharedSecret(ctx, newHash)
	}
	if err != nil {
		return configurationError("failed to update password", err)
	}

	log.Info("password changed")
	return nil
}
