package auth

import "context"

// Role is the privilege tier of an authenticated identity
type Role string

const (
	RoleSuperadmin Role = "superadmin"
	RoleEditor     Role = "editor"
)

// Valid reports whether r is one of the stored roles
func (r Role) Valid() bool {
	return r == RoleSuperadmin || r == RoleEditor
}

// IdentityKind tags how an identity was authenticated
type IdentityKind int

const (
	// NamedAccount is a per-user row with username, hash and role
	NamedAccount IdentityKind = iota + 1
	// SharedSecret is the single admin identity behind settings.admin_password
	SharedSecret
)

func (k IdentityKind) String() string {
	switch k {
	case NamedAccount:
		return "named"
	case SharedSecret:
		return "shared"
	default:
		return "unknown"
	}
}

// Identity is the resolved caller of an authenticated request.
// Anonymous callers have no Identity at all.
type Identity struct {
	Kind     IdentityKind
	UserID   int64 // zero for SharedSecret
	Username string
	Role     Role
}

// SharedAdmin returns the identity behind the shared admin secret
func SharedAdmin() Identity {
	return Identity{Kind: SharedSecret, Role: RoleSuperadmin}
}

// OwnerID is the value recorded as created_by for resources this identity creates
func (i Identity) OwnerID() *int64 {
	if i.Kind != NamedAccount {
		return nil
	}
	id := i.UserID
	return &id
}

// IsSuperadmin reports whether the identity holds the top role
func (i Identity) IsSuperadmin() bool {
	return i.Role == RoleSuperadmin
}

// Owns reports whether the identity created a resource with the given created_by
func (i Identity) Owns(createdBy *int64) bool {
	return i.Kind == NamedAccount && createdBy != nil && *createdBy == i.UserID
}

// Credential is what a caller presents at login.
// An empty Username selects the shared-secret variant.
type Credential struct {
	Username string
	Password string
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const identityKey contextKey = "identity"

// WithIdentity stores the caller identity in ctx
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFrom returns the caller identity, or nil for anonymous requests
func IdentityFrom(ctx context.Context) *Identity {
	id, ok := ctx.Value(identityKey).(Identity)
	if !ok {
		return nil
	}
	return &id
}
