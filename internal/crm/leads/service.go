package leads

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
	"github.com/startupsquad-prog/company-os-sub003/internal/audit"
	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/gateway"
	"github.com/startupsquad-prog/company-os-sub003/internal/notify"
	"github.com/startupsquad-prog/company-os-sub003/internal/platform/validation"
	"github.com/startupsquad-prog/company-os-sub003/internal/stitch"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

const (
	defaultLimit = 50
	maxLimit     = 200
)

// scope lets admins see every lead, managers their department and employees
// the leads they own.
var scope = access.ScopeOptions{Bypass: access.AdminBypass}

// Service implements lead use cases.
type Service struct {
	repo   *gateway.Repo[entity.Lead]
	store  storage.Store
	stats  InteractionStats
	logger *slog.Logger
}

// NewService wires the lead service. A nil stats falls back to StoreStats
// over the gateway's store.
func NewService(gw *gateway.Gateway, stats InteractionStats, logger *slog.Logger) *Service {
	if stats == nil {
		stats = NewStoreStats(gw.Store())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   gateway.For(gw, entity.Leads),
		store:  gw.Store(),
		stats:  stats,
		logger: logger,
	}
}

// List returns the visible leads matching req, newest first.
func (s *Service) List(ctx context.Context, req ListRequest) ([]entity.Lead, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return s.repo.List(ctx, gateway.ListOptions{
		Scope: scope,
		Filters: map[string]any{
			"status":   lo.EmptyableToPtr(req.Status),
			"source":   lo.EmptyableToPtr(req.Source),
			"owner_id": req.OwnerID,
		},
		OrderBy: &storage.Order{Column: entity.ColumnCreatedAt, Desc: true},
		Limit:   limit,
		Offset:  req.Offset,
	})
}

// GetByID returns a visible lead or ErrNotFoundOrDenied.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*entity.Lead, error) {
	lead, err := s.repo.FindOne(ctx, id, scope)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, access.NotFoundOrDenied(entity.Leads.Name, gateway.OpFindOne)
	}
	return lead, nil
}

// Create validates in and stores a lead owned by the caller.
func (s *Service) Create(ctx context.Context, in CreateInput) (*entity.Lead, error) {
	if err := validation.Struct(entity.Leads.Name, gateway.OpCreate, in); err != nil {
		return nil, err
	}
	return s.repo.Create(ctx, in.record(), gateway.WriteOptions{
		SetOwner:      true,
		SetDepartment: true,
		Notify:        &notify.Intent{Template: "lead_created"},
	})
}

// Update patches a visible lead. Reassigning the owner notifies the new
// owner.
func (s *Service) Update(ctx context.Context, id uuid.UUID, in UpdateInput) (*entity.Lead, error) {
	if err := validation.Struct(entity.Leads.Name, gateway.OpUpdate, in); err != nil {
		return nil, err
	}
	opts := gateway.UpdateOptions{Scope: scope}
	if in.OwnerID != nil {
		opts.Notify = &notify.Intent{
			Event:      "leads.assigned",
			Template:   "lead_assigned",
			Recipients: []uuid.UUID{*in.OwnerID},
		}
	}
	return s.repo.Update(ctx, id, in.record(), opts)
}

// Delete soft deletes a visible lead.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ok, err := s.repo.Delete(ctx, id, gateway.DeleteOptions{Scope: scope})
	if err != nil {
		return err
	}
	if !ok {
		return access.NotFoundOrDenied(entity.Leads.Name, gateway.OpDelete)
	}
	return nil
}

// ListFull lists leads with their related rows.
func (s *Service) ListFull(ctx context.Context, req ListRequest) ([]LeadFull, error) {
	rows, err := s.List(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, rows)
}

// GetFull returns one visible lead with its related rows.
func (s *Service) GetFull(ctx context.Context, id uuid.UUID) (*LeadFull, error) {
	lead, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	full, err := s.enrich(ctx, []entity.Lead{*lead})
	if err != nil {
		return nil, err
	}
	return &full[0], nil
}

// History returns the change history of a visible lead.
func (s *Service) History(ctx context.Context, id uuid.UUID, page, pageSize int) (audit.Result, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return audit.Result{}, err
	}
	res, err := audit.Timeline(ctx, s.store, audit.TimelineFilters{
		Entity:   entity.Leads.Name,
		EntityID: id,
		Page:     page,
		PageSize: pageSize,
	})
	return res, access.StorageFailure(entity.Leads.Name, "history", err)
}

// enrich stitches contacts, companies, owners and interaction summaries onto
// rows with one query per relation.
func (s *Service) enrich(ctx context.Context, rows []entity.Lead) ([]LeadFull, error) {
	if len(rows) == 0 {
		return []LeadFull{}, nil
	}
	batch := stitch.NewBatch(s.store)
	contacts := stitch.Add(batch, entity.Contacts,
		stitch.IDs(rows, func(l entity.Lead) *uuid.UUID { return l.ContactID }),
		func(c entity.Contact) uuid.UUID { return c.ID })
	companies := stitch.Add(batch, entity.Companies,
		stitch.IDs(rows, func(l entity.Lead) *uuid.UUID { return l.CompanyID }),
		func(c entity.Company) uuid.UUID { return c.ID })
	owners := stitch.Add(batch, entity.Profiles,
		stitch.IDs(rows, func(l entity.Lead) *uuid.UUID { return l.OwnerID }),
		func(p entity.Profile) uuid.UUID { return p.ID })

	var summaries map[uuid.UUID]InteractionSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return batch.Run(gctx) })
	g.Go(func() error {
		var err error
		summaries, err = s.stats.Summaries(gctx, lo.Map(rows, func(l entity.Lead, _ int) uuid.UUID { return l.ID }))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, access.StorageFailure(entity.Leads.Name, "enrich", err)
	}

	out := make([]LeadFull, len(rows))
	for i, lead := range rows {
		out[i] = LeadFull{
			Lead:         lead,
			Contact:      contacts.Get(lead.ContactID),
			Company:      companies.Get(lead.CompanyID),
			Owner:        owners.Get(lead.OwnerID),
			Interactions: summaries[lead.ID],
		}
	}
	return out, nil
}
