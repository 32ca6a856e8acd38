package access

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/observability"
)

func newTestGuard() *Guard {
	return NewGuard(authz.ContextResolver{}, authz.RoleEvaluator{}, nil, observability.NewAccessMetrics(prometheus.NewRegistry()))
}

func withCaller(role authz.Role, perms ...authz.Permission) context.Context {
	return authz.WithAuthContext(context.Background(), authz.NewAuthContext(uuid.New(), role, nil, perms...))
}

func TestGuardRejectsAnonymousWithoutRunningOperation(t *testing.T) {
	g := newTestGuard()
	called := false
	err := g.Run(context.Background(), Read("leads"), func(context.Context, *authz.AuthContext) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.False(t, called)
}

func TestGuardOrderOfChecks(t *testing.T) {
	g := newTestGuard()
	readLeads := authz.Permission{Resource: "leads", Action: "read"}

	cases := []struct {
		name    string
		ctx     context.Context
		req     Requirement
		wantErr error
	}{
		{
			name:    "role below minimum",
			ctx:     withCaller(authz.RoleEmployee, readLeads),
			req:     Requirement{Permission: readLeads, MinRole: authz.RoleManager},
			wantErr: ErrUnauthorized,
		},
		{
			name:    "missing permission",
			ctx:     withCaller(authz.RoleManager),
			req:     Read("leads"),
			wantErr: ErrUnauthorized,
		},
		{
			name: "custom check refuses",
			ctx:  withCaller(authz.RoleEmployee, readLeads),
			req: Requirement{Permission: readLeads, Check: func(context.Context, *authz.AuthContext) (bool, error) {
				return false, nil
			}},
			wantErr: ErrUnauthorized,
		},
		{
			name: "custom check errors",
			ctx:  withCaller(authz.RoleEmployee, readLeads),
			req: Requirement{Permission: readLeads, Check: func(context.Context, *authz.AuthContext) (bool, error) {
				return true, errors.New("lookup failed")
			}},
			wantErr: ErrUnauthorized,
		},
		{
			name: "superadmin passes admin minimum",
			ctx:  withCaller(authz.RoleSuperAdmin),
			req:  Requirement{Permission: readLeads, MinRole: authz.RoleAdmin},
		},
		{
			name: "employee with permission",
			ctx:  withCaller(authz.RoleEmployee, readLeads),
			req:  Read("leads"),
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			err := g.Run(tc.ctx, tc.req, func(context.Context, *authz.AuthContext) error {
				called = true
				return nil
			})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.False(t, called)
				return
			}
			require.NoError(t, err)
			assert.True(t, called)
		})
	}
}

func TestGuardCustomMessage(t *testing.T) {
	g := newTestGuard()
	req := Requirement{MinRole: authz.RoleAdmin, Message: "only admins may export"}
	_, err := g.Check(withCaller(authz.RoleManager), req)
	require.Error(t, err)
	assert.Equal(t, "only admins may export", PublicMessage(err))
}

func TestGuardResolverFailureFailsClosed(t *testing.T) {
	boom := errors.New("redis down")
	g := NewGuard(authz.ResolverFunc(func(context.Context) (*authz.AuthContext, error) {
		return nil, boom
	}), nil, nil, nil)

	out, err := Guarded(context.Background(), g, Read("leads"), func(context.Context, *authz.AuthContext) (int, error) {
		return 42, nil
	})
	assert.Zero(t, out)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, boom)
	assert.NotContains(t, PublicMessage(err), "redis")
}

func TestGuardedReturnsValue(t *testing.T) {
	g := newTestGuard()
	ctx := withCaller(authz.RoleAdmin)
	out, err := Guarded(ctx, g, Delete("tickets"), func(_ context.Context, ac *authz.AuthContext) (authz.Role, error) {
		return ac.Role(), nil
	})
	require.NoError(t, err)
	assert.Equal(t, authz.RoleAdmin, out)
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New(`pq: relation "crm.leads" does not exist`)
	err := StorageFailure("leads", "list", cause)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrStorage, KindOf(err))
	assert.Contains(t, err.Error(), "leads.list")
	assert.NotContains(t, PublicMessage(err), "relation")

	denied := NotFoundOrDenied("leads", "update")
	assert.Same(t, denied, StorageFailure("leads", "update", denied))
	assert.Equal(t, context.Canceled, StorageFailure("leads", "list", context.Canceled))
	assert.Nil(t, StorageFailure("leads", "list", nil))
	assert.Nil(t, KindOf(errors.New("plain")))
}
