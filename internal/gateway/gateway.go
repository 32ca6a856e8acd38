// Package gateway is the generic CRUD layer. Every operation runs behind the
// access Guard and the row visibility scope of the entity it serves.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
	"github.com/startupsquad-prog/company-os-sub003/internal/audit"
	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/notify"
	"github.com/startupsquad-prog/company-os-sub003/internal/observability"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// Notifier stages notification intents inside a transaction and dispatches
// them once it committed.
type Notifier interface {
	Stage(ctx context.Context, store storage.Store, in notify.Intent) (uuid.UUID, error)
	Dispatch(ctx context.Context, ids ...uuid.UUID)
}

// Config collects the gateway's collaborators. Store and Guard are required.
type Config struct {
	Store    storage.Store
	Guard    *access.Guard
	History  *audit.History
	Notifier Notifier
	Logger   *slog.Logger
	Metrics  *observability.AccessMetrics
	Clock    func() time.Time
}

// Gateway holds the shared collaborators of every Repo.
type Gateway struct {
	store    storage.Store
	guard    *access.Guard
	scoper   access.Scoper
	history  *audit.History
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.AccessMetrics
	clock    func() time.Time
}

// New validates cfg and builds a Gateway.
func New(cfg Config) (*Gateway, error) {
	if cfg.Store == nil {
		return nil, errors.New("gateway: store required")
	}
	if cfg.Guard == nil {
		return nil, errors.New("gateway: guard required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}
	return &Gateway{
		store:    cfg.Store,
		guard:    cfg.Guard,
		scoper:   access.Scoper{Evaluator: cfg.Guard.Evaluator()},
		history:  cfg.History,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		metrics:  cfg.Metrics,
		clock:    cfg.Clock,
	}, nil
}

// Store exposes the underlying store for read helpers such as the stitcher.
func (g *Gateway) Store() storage.Store {
	return g.store
}

// Guard exposes the access guard.
func (g *Gateway) Guard() *access.Guard {
	return g.guard
}

// Scope builds the visibility predicate for d with the gateway's evaluator.
func (g *Gateway) Scope(ac *authz.AuthContext, d entity.Descriptor, opts access.ScopeOptions) (query.Predicate, error) {
	return g.scoper.Build(ac, d, opts)
}

func (g *Gateway) dispatch(ctx context.Context, ids []uuid.UUID) {
	if g.notifier == nil || len(ids) == 0 {
		return
	}
	g.notifier.Dispatch(ctx, ids...)
}

func (g *Gateway) observe(entityName, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
		kind := access.KindOf(err)
		if kind != nil {
			outcome = kind.Error()
		}
		if kind == nil || errors.Is(kind, access.ErrStorage) {
			g.logger.Error("gateway operation failed",
				slog.String("entity", entityName),
				slog.String("op", op),
				slog.Any("error", err),
			)
		}
	}
	g.metrics.ObserveOperation(entityName, op, outcome)
}
