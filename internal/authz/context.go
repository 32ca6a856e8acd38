// Package authz resolves who is calling and what they may do.
package authz

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Role is the coarse organisational role of a profile.
type Role string

// Known roles.
const (
	RoleEmployee   Role = "employee"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// ErrUnknownRole is returned by ParseRole for unrecognised values.
var ErrUnknownRole = errors.New("authz: unknown role")

// Rank orders roles for minimum-role checks. Unknown roles rank 0.
func Rank(r Role) int {
	switch r {
	case RoleEmployee:
		return 1
	case RoleManager:
		return 2
	case RoleAdmin:
		return 3
	case RoleSuperAdmin:
		return 4
	}
	return 0
}

// ParseRole normalises a stored role name.
func ParseRole(raw string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(raw)))
	if Rank(r) == 0 {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, raw)
	}
	return r, nil
}

// Permission is a capability on a resource, written "resource.action".
type Permission struct {
	Resource string
	Action   string
}

// Wildcard grants every action on a resource.
const Wildcard = "*"

func (p Permission) String() string {
	return p.Resource + "." + p.Action
}

// ParsePermission reads the "resource.action" form.
func ParsePermission(raw string) (Permission, error) {
	res, act, ok := strings.Cut(strings.ToLower(strings.TrimSpace(raw)), ".")
	if !ok || res == "" || act == "" {
		return Permission{}, fmt.Errorf("authz: malformed permission %q", raw)
	}
	return Permission{Resource: res, Action: act}, nil
}

// AuthContext identifies the caller of one request. It is immutable once
// built.
type AuthContext struct {
	profileID    uuid.UUID
	role         Role
	departmentID *uuid.UUID
	permissions  map[Permission]struct{}
}

// NewAuthContext builds an AuthContext. departmentID may be nil.
func NewAuthContext(profileID uuid.UUID, role Role, departmentID *uuid.UUID, perms ...Permission) *AuthContext {
	ac := &AuthContext{
		profileID:   profileID,
		role:        role,
		permissions: make(map[Permission]struct{}, len(perms)),
	}
	if departmentID != nil {
		dept := *departmentID
		ac.departmentID = &dept
	}
	for _, p := range perms {
		ac.permissions[p] = struct{}{}
	}
	return ac
}

func (a *AuthContext) ProfileID() uuid.UUID { return a.profileID }

func (a *AuthContext) Role() Role { return a.role }

// DepartmentID returns a copy of the caller's department, or nil.
func (a *AuthContext) DepartmentID() *uuid.UUID {
	if a.departmentID == nil {
		return nil
	}
	dept := *a.departmentID
	return &dept
}

// Has reports whether the exact permission was granted.
func (a *AuthContext) Has(p Permission) bool {
	_, ok := a.permissions[p]
	return ok
}

// Permissions lists granted permissions in textual order.
func (a *AuthContext) Permissions() []Permission {
	out := make([]Permission, 0, len(a.permissions))
	for p := range a.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

type authContextKey struct{}

// WithAuthContext stores ac in ctx.
func WithAuthContext(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext extracts the AuthContext stored by WithAuthContext.
func FromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return ac
}
