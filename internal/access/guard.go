// Package access enforces authorization on every data operation: the Guard
// runs identity, role, permission and custom checks before any storage
// access, and BuildScope derives the row visibility predicate.
package access

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/observability"
)

// Requirement lists the checks a caller must pass. Zero fields are skipped.
type Requirement struct {
	Permission authz.Permission
	MinRole    authz.Role
	Check      func(ctx context.Context, ac *authz.AuthContext) (bool, error)
	// Message replaces the default denial text.
	Message string
}

// Read, Create, Update and Delete build the standard entity requirements.
func Read(entity string) Requirement   { return actionRequirement(entity, "read") }
func Create(entity string) Requirement { return actionRequirement(entity, "create") }
func Update(entity string) Requirement { return actionRequirement(entity, "update") }
func Delete(entity string) Requirement { return actionRequirement(entity, "delete") }

func actionRequirement(entity, action string) Requirement {
	return Requirement{Permission: authz.Permission{Resource: entity, Action: action}}
}

// Guard runs Requirements against the caller's AuthContext.
type Guard struct {
	resolver  authz.Resolver
	evaluator authz.Evaluator
	logger    *slog.Logger
	metrics   *observability.AccessMetrics
}

// NewGuard constructs a Guard. A nil evaluator defaults to
// authz.RoleEvaluator.
func NewGuard(resolver authz.Resolver, evaluator authz.Evaluator, logger *slog.Logger, metrics *observability.AccessMetrics) *Guard {
	if resolver == nil {
		resolver = authz.ContextResolver{}
	}
	if evaluator == nil {
		evaluator = authz.RoleEvaluator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{resolver: resolver, evaluator: evaluator, logger: logger, metrics: metrics}
}

// Evaluator exposes the permission evaluator used by the guard.
func (g *Guard) Evaluator() authz.Evaluator {
	return g.evaluator
}

// Check resolves the caller and applies req in order: identity, minimum
// role, permission, custom predicate. It stops at the first failure.
func (g *Guard) Check(ctx context.Context, req Requirement) (*authz.AuthContext, error) {
	resource, action := req.Permission.Resource, req.Permission.Action

	ac, err := g.resolver.Resolve(ctx)
	if err != nil {
		g.logger.Error("access: resolve caller", slog.String("resource", resource), slog.Any("error", err))
		return nil, &Error{Kind: ErrStorage, Entity: resource, Op: action, Err: err}
	}
	if ac == nil {
		return nil, g.deny(req, "unauthenticated", ErrUnauthenticated, nil, "")
	}

	if req.MinRole != "" && authz.Rank(ac.Role()) < authz.Rank(req.MinRole) {
		return nil, g.deny(req, "role", ErrUnauthorized, ac, fmt.Sprintf("requires role %s", req.MinRole))
	}

	if resource != "" {
		ok, err := g.evaluator.HasPermission(ctx, ac, resource, action)
		if err != nil {
			g.logger.Warn("access: permission check", slog.String("permission", req.Permission.String()), slog.Any("error", err))
		}
		if err != nil || !ok {
			return nil, g.deny(req, "permission", ErrUnauthorized, ac, "missing permission "+req.Permission.String())
		}
	}

	if req.Check != nil {
		ok, err := req.Check(ctx, ac)
		if err != nil {
			g.logger.Warn("access: custom check", slog.String("resource", resource), slog.Any("error", err))
		}
		if err != nil || !ok {
			return nil, g.deny(req, "check", ErrUnauthorized, ac, "access denied")
		}
	}
	return ac, nil
}

// Run invokes op only when req is satisfied.
func (g *Guard) Run(ctx context.Context, req Requirement, op func(context.Context, *authz.AuthContext) error) error {
	ac, err := g.Check(ctx, req)
	if err != nil {
		return err
	}
	return op(ctx, ac)
}

// Guarded is Run for operations returning a value.
func Guarded[T any](ctx context.Context, g *Guard, req Requirement, op func(context.Context, *authz.AuthContext) (T, error)) (T, error) {
	ac, err := g.Check(ctx, req)
	if err != nil {
		var zero T
		return zero, err
	}
	return op(ctx, ac)
}

func (g *Guard) deny(req Requirement, reason string, kind error, ac *authz.AuthContext, fallback string) error {
	g.metrics.ObserveDenial(req.Permission.Resource, req.Permission.Action, reason)
	attrs := []any{
		slog.String("reason", reason),
		slog.String("permission", req.Permission.String()),
	}
	if ac != nil {
		attrs = append(attrs, slog.String("profile_id", ac.ProfileID().String()), slog.String("role", string(ac.Role())))
	}
	g.logger.Debug("access denied", attrs...)

	msg := req.Message
	if msg == "" {
		msg = fallback
	}
	return &Error{Kind: kind, Entity: req.Permission.Resource, Op: req.Permission.Action, Message: msg}
}
