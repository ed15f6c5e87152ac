// Package guard decides whether a caller may perform an operation on a
// contact or news item.
package guard

import (
	"context"
	"fmt"

	"adminpanel/internal/auth"
	"adminpanel/internal/logging"
)

// Operation is an action on a resource collection
type Operation int

const (
	OpRead Operation = iota
	OpCreate
	OpUpdate
	OpDelete
	OpReorder
)

func (o Operation) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpCreate:
		return "create"
	case OpUpdate:
		return "update"
	case OpDelete:
		return "delete"
	case OpReorder:
		return "reorder"
	default:
		return "unknown"
	}
}

// Decision is the closed set of guard outcomes
type Decision int

const (
	Allow Decision = iota
	Unauthorized
	Forbidden
	NotFound
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Unauthorized:
		return "unauthorized"
	case Forbidden:
		return "forbidden"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Err converts a denial into an auth error. Allow yields nil.
func (d Decision) Err() error {
	switch d {
	case Allow:
		return nil
	case Unauthorized:
		return auth.NewError(auth.KindUnauthorized, "authentication required")
	case Forbidden:
		return auth.NewError(auth.KindForbidden, "insufficient permissions")
	case NotFound:
		return auth.NewError(auth.KindNotFound, "resource not found")
	default:
		return auth.NewError(auth.KindConfiguration, fmt.Sprintf("unknown decision %d", int(d)))
	}
}

// OwnerLookup loads the created_by of a resource.
// found is false when no row has the id; owner is nil for unowned rows.
type OwnerLookup interface {
	GetOwner(ctx context.Context, id int64) (owner *int64, found bool, err error)
}

// Guard evaluates the role and ownership matrix
type Guard struct {
	logger *logging.Logger
}

// New creates a Guard
func New(logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Guard{logger: logger}
}

// Authorize decides whether caller may perform op. caller is nil for anonymous
// requests. resourceID and owners are only consulted for update and delete.
func (g *Guard) Authorize(ctx context.Context, caller *auth.Identity, op Operation, resourceID int64, owners OwnerLookup) (Decision, error) {
	if op == OpRead {
		return Allow, nil
	}
	if caller == nil {
		return Unauthorized, nil
	}

	switch op {
	case OpCreate:
		return Allow, nil
	case OpReorder:
		if caller.IsSuperadmin() {
			return Allow, nil
		}
		g.deny(caller, op, resourceID, Forbidden)
		return Forbidden, nil
	case OpUpdate, OpDelete:
		owner, found, err := owners.GetOwner(ctx, resourceID)
		if err != nil {
			return Unauthorized, fmt.Errorf("failed to load owner of %d: %w", resourceID, err)
		}
		if !found {
			return NotFound, nil
		}
		if caller.IsSuperadmin() || caller.Owns(owner) {
			return Allow, nil
		}
		g.deny(caller, op, resourceID, Forbidden)
		return Forbidden, nil
	default:
		return Forbidden, fmt.Errorf("unknown operation %d", int(op))
	}
}

// RequireRole allows only callers holding role
func (g *Guard) RequireRole(caller *auth.Identity, role auth.Role) Decision {
	if caller == nil {
		return Unauthorized
	}
	if caller.Role != role {
		g.logger.WithFields(map[string]interface{}{
			"user":     caller.Username,
			"role":     string(caller.Role),
			"required": string(role),
		}).Info("role check denied")
		return Forbidden
	}
	return Allow
}

func (g *Guard) deny(caller *auth.Identity, op Operation, resourceID int64, d Decision) {
	g.logger.WithFields(map[string]interface{}{
		"user":      caller.Username,
		"role":      string(caller.Role),
		"operation": op.String(),
		"resource":  resourceID,
	}).Info("guard decision: %s", d)
}
