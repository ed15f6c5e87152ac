package guard

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"adminpanel/internal/auth"
)

type ownerMap map[int64]*int64

func (m ownerMap) GetOwner(ctx context.Context, id int64) (*int64, bool, error) {
	owner, ok := m[id]
	return owner, ok, nil
}

type failingOwners struct{}

func (failingOwners) GetOwner(ctx context.Context, id int64) (*int64, bool, error) {
	return nil, false, errors.New("database is locked")
}

func ptr(v int64) *int64 { return &v }

func TestAuthorize_Matrix(t *testing.T) {
	editorA := &auth.Identity{Kind: auth.NamedAccount, UserID: 1, Username: "a", Role: auth.RoleEditor}
	editorB := &auth.Identity{Kind: auth.NamedAccount, UserID: 2, Username: "b", Role: auth.RoleEditor}
	named := &auth.Identity{Kind: auth.NamedAccount, UserID: 3, Username: "root", Role: auth.RoleSuperadmin}
	shared := func() *auth.Identity { id := auth.SharedAdmin(); return &id }()

	// 10 is owned by A, 11 has no owner, 12 is owned by B
	owners := ownerMap{10: ptr(1), 11: nil, 12: ptr(2)}

	tests := []struct {
		name   string
		caller *auth.Identity
		op     Operation
		id     int64
		want   Decision
	}{
		{"anonymous read", nil, OpRead, 0, Allow},
		{"anonymous create", nil, OpCreate, 0, Unauthorized},
		{"anonymous update", nil, OpUpdate, 10, Unauthorized},
		{"anonymous delete missing", nil, OpDelete, 99, Unauthorized},
		{"anonymous reorder", nil, OpReorder, 0, Unauthorized},

		{"editor read", editorB, OpRead, 0, Allow},
		{"editor create", editorB, OpCreate, 0, Allow},
		{"editor updates own", editorA, OpUpdate, 10, Allow},
		{"editor deletes own", editorA, OpDelete, 10, Allow},
		{"editor updates other", editorB, OpUpdate, 10, Forbidden},
		{"editor deletes other", editorB, OpDelete, 10, Forbidden},
		{"editor updates unowned", editorA, OpUpdate, 11, Forbidden},
		{"editor reorder", editorA, OpReorder, 0, Forbidden},
		{"editor missing", editorA, OpDelete, 99, NotFound},

		{"superadmin updates any", named, OpUpdate, 12, Allow},
		{"superadmin deletes unowned", named, OpDelete, 11, Allow},
		{"superadmin reorder", named, OpReorder, 0, Allow},
		{"superadmin missing", named, OpUpdate, 99, NotFound},
		{"shared secret deletes", shared, OpDelete, 10, Allow},
		{"shared secret reorder", shared, OpReorder, 0, Allow},
	}

	g := New(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := g.Authorize(context.Background(), tt.caller, tt.op, tt.id, owners)
			require.NoError(t, err)
			require.Equal(t, tt.want, got, "got %s", got)
		})
	}
}

func TestAuthorize_LookupFailure(t *testing.T) {
	editor := &auth.Identity{Kind: auth.NamedAccount, UserID: 1, Role: auth.RoleEditor}

	_, err := New(nil).Authorize(context.Background(), editor, OpUpdate, 10, failingOwners{})
	require.ErrorContains(t, err, "database is locked")
}

func TestRequireRole(t *testing.T) {
	g := New(nil)
	editor := &auth.Identity{Kind: auth.NamedAccount, UserID: 1, Role: auth.RoleEditor}
	shared := auth.SharedAdmin()

	require.Equal(t, Unauthorized, g.RequireRole(nil, auth.RoleSuperadmin))
	require.Equal(t, Forbidden, g.RequireRole(editor, auth.RoleSuperadmin))
	require.Equal(t, Allow, g.RequireRole(&shared, auth.RoleSuperadmin))
}

func TestDecision_Err(t *testing.T) {
	require.NoError(t, Allow.Err())
	require.True(t, auth.IsKind(Unauthorized.Err(), auth.KindUnauthorized))
	require.True(t, auth.IsKind(Forbidden.Err(), auth.KindForbidden))
	require.True(t, auth.IsKind(NotFound.Err(), auth.KindNotFound))
}
