package tickets

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/gateway"
	"github.com/startupsquad-prog/company-os-sub003/internal/notify"
	"github.com/startupsquad-prog/company-os-sub003/internal/platform/validation"
	"github.com/startupsquad-prog/company-os-sub003/internal/stitch"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// OpAssign names the assignment operation in errors and metrics.
const OpAssign = "assign"

// workScope lets assignees read and update the tickets routed to them.
// Assignment and deletion stay with the creator and the department.
var (
	workScope  = access.ScopeOptions{Bypass: access.AdminBypass, SharedWith: []string{"assignee_id"}}
	ownerScope = access.ScopeOptions{Bypass: access.AdminBypass}
)

// assignRequirement gates Assign: managers and above holding tickets.assign.
var assignRequirement = access.Requirement{
	Permission: authz.Permission{Resource: "tickets", Action: "assign"},
	MinRole:    authz.RoleManager,
	Message:    "only managers may assign tickets",
}

// Service implements ticket use cases.
type Service struct {
	repo   *gateway.Repo[entity.Ticket]
	guard  *access.Guard
	store  storage.Store
	logger *slog.Logger
}

// NewService wires the ticket service.
func NewService(gw *gateway.Gateway, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   gateway.For(gw, entity.Tickets),
		guard:  gw.Guard(),
		store:  gw.Store(),
		logger: logger,
	}
}

// List returns visible tickets, newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]entity.Ticket, error) {
	limit := req.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.List(ctx, gateway.ListOptions{
		Scope: workScope,
		Filters: map[string]any{
			"status":      lo.EmptyableToPtr(req.Status),
			"priority":    lo.EmptyableToPtr(req.Priority),
			"assignee_id": req.AssigneeID,
		},
		OrderBy: &storage.Order{Column: entity.ColumnCreatedAt, Desc: true},
		Limit:   limit,
		Offset:  req.Offset,
	})
}

// ListFull lists tickets with client and assignee attached.
func (s *Service) ListFull(ctx context.Context, req ListRequest) ([]TicketFull, error) {
	rows, err := s.List(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, rows)
}

// GetByID returns a visible ticket or ErrNotFoundOrDenied.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*entity.Ticket, error) {
	t, err := s.repo.FindOne(ctx, id, workScope)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, access.NotFoundOrDenied(entity.Tickets.Name, gateway.OpFindOne)
	}
	return t, nil
}

// GetFull returns a visible ticket with client and assignee attached.
func (s *Service) GetFull(ctx context.Context, id uuid.UUID) (*TicketFull, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	full, err := s.enrich(ctx, []entity.Ticket{*t})
	if err != nil {
		return nil, err
	}
	return &full[0], nil
}

// Create opens a ticket in the caller's department.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Ticket, error) {
	if err := validation.Struct(entity.Tickets.Name, gateway.OpCreate, in); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, in.record(), gateway.WriteOptions{
		SetDepartment: true,
		Notify:        &notify.Intent{Template: "ticket_opened"},
	})
}

// Update patches a visible ticket.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*entity.Ticket, error) {
	if err := validation.Struct(entity.Tickets.Name, gateway.OpUpdate, in); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, in.record(), gateway.UpdateOptions{Scope: workScope})
}

// Assign routes a visible ticket to an existing profile and notifies them.
func (s *Service) Assign(ctx context.Context, id uuid.UUID, in AssignInput) (*entity.Ticket, error) {
	if err := validation.Struct(entity.Tickets.Name, OpAssign, in); err != nil {
		return nil, err
	}
	err := s.guard.Run(ctx, assignRequirement, func(ctx context.Context, _ *authz.AuthContext) error {
		profiles, err := stitch.Fetch(ctx, s.store, entity.Profiles, []uuid.UUID{in.AssigneeID})
		if err != nil {
			return access.StorageFailure(entity.Tickets.Name, OpAssign, err)
		}
		if len(profiles) == 0 {
			return access.InvalidInput(entity.Tickets.Name, OpAssign, "assignee does not exist")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	req := assignRequirement
	return s.repo.Update(ctx, id, storage.Record{
		"assignee_id": in.AssigneeID,
		"status":      StatusInProgress,
	}, gateway.UpdateOptions{
		Scope:      ownerScope,
		Permission: &req,
		Notify: &notify.Intent{
			Event:      "tickets.assigned",
			Template:   "ticket_assigned",
			Recipients: []uuid.UUID{in.AssigneeID},
		},
	})
}

// Delete soft deletes a visible ticket.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Delete(ctx, id, gateway.DeleteOptions{Scope: ownerScope})
	if err != nil {
		return err
	}
	if !ok {
		return access.NotFoundOrDenied(entity.Tickets.Name, gateway.OpDelete)
	}
	return nil
}

func (s *Service) enrich(ctx context.Context, rows []entity.Ticket) ([]TicketFull, error) {
	if len(rows) == 0 {
		return []TicketFull{}, nil
	}
	batch := stitch.NewBatch(s.store)
	clients := stitch.Add(batch, entity.Contacts,
		stitch.IDs(rows, func(t entity.Ticket) *uuid.UUID { return t.ClientID }),
		func(c entity.Contact) uuid.UUID { return c.ID })
	assignees := stitch.Add(batch, entity.Profiles,
		stitch.IDs(rows, func(t entity.Ticket) *uuid.UUID { return t.AssigneeID }),
		func(p entity.Profile) uuid.UUID { return p.ID })
	if err := batch.Run(ctx); err != nil {
		return nil, access.StorageFailure(entity.Tickets.Name, "enrich", err)
	}
	return lo.Map(rows, func(t entity.Ticket, _ int) TicketFull {
		return TicketFull{Ticket: t, Client: clients.Get(t.ClientID), Assignee: assignees.Get(t.AssigneeID)}
	}), nil
}
