package authz

import (
	"context"
	"fmt"

	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// Resolver produces the AuthContext for the current call. A nil AuthContext
// with a nil error means the caller is anonymous.
type Resolver interface {
	Resolve(ctx context.Context) (*AuthContext, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (*AuthContext, error)

func (f ResolverFunc) Resolve(ctx context.Context) (*AuthContext, error) { return f(ctx) }

// ContextResolver returns the AuthContext placed in the context by
// Middleware or WithAuthContext.
type ContextResolver struct{}

func (ContextResolver) Resolve(ctx context.Context) (*AuthContext, error) {
	return FromContext(ctx), nil
}

type tokenKey struct{}

// WithToken stores a raw bearer token in ctx for SessionResolver.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// SessionResolver turns bearer tokens into AuthContexts: session lookup in
// Redis, profile lookup in core.profiles, role permissions from the
// PermissionStore.
type SessionResolver struct {
	Sessions    *SessionStore
	Store       storage.Store
	Permissions *PermissionStore
}

// Resolve reads the token stored by WithToken.
func (r *SessionResolver) Resolve(ctx context.Context) (*AuthContext, error) {
	token, _ := ctx.Value(tokenKey{}).(string)
	return r.ResolveToken(ctx, token)
}

// ResolveToken builds the AuthContext for token. Unknown tokens, deleted
// profiles and unknown roles resolve to nil.
func (r *SessionResolver) ResolveToken(ctx context.Context, token string) (*AuthContext, error) {
	sess, err := r.Sessions.Lookup(ctx, token)
	if err != nil || sess == nil {
		return nil, err
	}
	rows, err := r.Store.Select(ctx, storage.Select{
		Table: entity.Profiles.Table,
		Where: query.All(
			query.Eq{Column: entity.ColumnID, Value: sess.ProfileID},
			query.IsNull{Column: entity.ColumnDeletedAt},
		),
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("authz: load profile: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	profile, err := entity.Profiles.Decode(rows[0])
	if err != nil {
		return nil, err
	}
	role, err := ParseRole(profile.Role)
	if err != nil {
		return nil, nil
	}
	perms, err := r.Permissions.ForRole(ctx, role)
	if err != nil {
		return nil, err
	}
	return NewAuthContext(profile.ID, role, profile.DepartmentID, perms...), nil
}
