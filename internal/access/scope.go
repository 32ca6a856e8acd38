package access

import (
	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
)

// Bypass states whether admins skip ownership and department scoping. It has
// no usable zero value: every call site must choose.
type Bypass uint8

const (
	bypassUnset Bypass = iota
	// AdminBypass lets admins and superadmins see every non-deleted row.
	AdminBypass
	// NoAdminBypass scopes admins like managers.
	NoAdminBypass
)

func (b Bypass) String() string {
	switch b {
	case AdminBypass:
		return "admin-bypass"
	case NoAdminBypass:
		return "no-admin-bypass"
	}
	return "unset"
}

// ScopeOptions tunes BuildScope for one call.
type ScopeOptions struct {
	Bypass Bypass
	// OwnerColumn and DepartmentColumn override the descriptor's columns.
	OwnerColumn      string
	DepartmentColumn string
	// Dual applies department and owner scoping together.
	Dual bool
	// SharedWith names profile columns whose referenced profile also sees the
	// row, whatever the department or owner scope says.
	SharedWith []string
}

// BuildScope derives the visibility predicate with the default role
// evaluator.
func BuildScope(ac *authz.AuthContext, d entity.Descriptor, opts ScopeOptions) (query.Predicate, error) {
	return Scoper{}.Build(ac, d, opts)
}

// Scoper builds visibility predicates with a given evaluator.
type Scoper struct {
	Evaluator authz.Evaluator
}

// Build returns the predicate selecting the rows ac may see. A nil predicate
// means no restriction.
func (s Scoper) Build(ac *authz.AuthContext, d entity.Descriptor, opts ScopeOptions) (query.Predicate, error) {
	if ac == nil {
		return nil, &Error{Kind: ErrUnauthenticated, Entity: d.Name, Op: "scope"}
	}
	if opts.Bypass != AdminBypass && opts.Bypass != NoAdminBypass {
		return nil, Unsupported(d.Name, "scope", "admin bypass must be set explicitly")
	}
	ev := s.Evaluator
	if ev == nil {
		ev = authz.RoleEvaluator{}
	}

	ownerCol, err := scopeColumn(d, opts.OwnerColumn, d.OwnerColumn)
	if err != nil {
		return nil, err
	}
	deptCol, err := scopeColumn(d, opts.DepartmentColumn, d.DepartmentColumn)
	if err != nil {
		return nil, err
	}
	for _, col := range opts.SharedWith {
		if !d.HasColumn(col) {
			return nil, Unsupported(d.Name, "scope", "unknown scope column "+col)
		}
	}

	var conds []query.Predicate
	if d.SoftDeleteColumn != "" {
		conds = append(conds, query.IsNull{Column: d.SoftDeleteColumn})
	}
	if ev.IsAdmin(ac) && opts.Bypass == AdminBypass {
		return query.All(conds...), nil
	}

	var tier []query.Predicate
	deptScoped := false
	if dept := ac.DepartmentID(); ev.IsManager(ac) && deptCol != "" && dept != nil {
		tier = append(tier, query.Eq{Column: deptCol, Value: *dept})
		deptScoped = true
	}
	if ownerCol != "" && (!deptScoped || opts.Dual) {
		tier = append(tier, query.Eq{Column: ownerCol, Value: ac.ProfileID()})
	}
	restrict := query.All(tier...)
	if restrict != nil && len(opts.SharedWith) > 0 {
		visible := query.Or{restrict}
		for _, col := range opts.SharedWith {
			visible = append(visible, query.Eq{Column: col, Value: ac.ProfileID()})
		}
		restrict = visible
	}
	return query.All(append(conds, restrict)...), nil
}

func scopeColumn(d entity.Descriptor, override, fallback string) (string, error) {
	if override == "" {
		return fallback, nil
	}
	if !d.HasColumn(override) {
		return "", Unsupported(d.Name, "scope", "unknown scope column "+override)
	}
	return override, nil
}
