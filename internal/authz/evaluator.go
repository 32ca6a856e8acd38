package authz

import "context"

// Evaluator decides whether an AuthContext holds a capability.
type Evaluator interface {
	HasPermission(ctx context.Context, ac *AuthContext, resource, action string) (bool, error)
	IsAdmin(ac *AuthContext) bool
	IsManager(ac *AuthContext) bool
}

// RoleEvaluator grants admins everything and otherwise consults the
// permissions carried by the AuthContext.
type RoleEvaluator struct{}

func (RoleEvaluator) HasPermission(_ context.Context, ac *AuthContext, resource, action string) (bool, error) {
	if ac == nil {
		return false, nil
	}
	if Rank(ac.Role()) >= Rank(RoleAdmin) {
		return true, nil
	}
	if ac.Has(Permission{Resource: resource, Action: action}) {
		return true, nil
	}
	return ac.Has(Permission{Resource: resource, Action: Wildcard}), nil
}

// IsAdmin covers admin and superadmin.
func (RoleEvaluator) IsAdmin(ac *AuthContext) bool {
	return ac != nil && Rank(ac.Role()) >= Rank(RoleAdmin)
}

// IsManager reports a rank of manager or above.
func (RoleEvaluator) IsManager(ac *AuthContext) bool {
	return ac != nil && Rank(ac.Role()) >= Rank(RoleManager)
}
