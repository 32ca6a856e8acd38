package gateway

import (
	"context"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
	"github.com/startupsquad-prog/company-os-sub003/internal/audit"
	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/notify"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// Operation names used in errors, metrics and history rows.
const (
	OpList    = "list"
	OpFindOne = "find_one"
	OpCreate  = "create"
	OpUpdate  = "update"
	OpDelete  = "delete"
)

// ListOptions narrows a List call.
type ListOptions struct {
	Scope access.ScopeOptions
	// Filters are equality conditions. Nil values, typed or not, are ignored.
	Filters map[string]any
	// Where holds extra predicates such as ranges, ANDed with the rest.
	Where   []query.Predicate
	OrderBy *storage.Order
	Limit   int
	Offset  int
}

// WriteOptions tunes Create.
type WriteOptions struct {
	// SetOwner and SetDepartment overwrite caller supplied values with the
	// caller's identity.
	SetOwner      bool
	SetDepartment bool
	// Permission replaces the default requirement.
	Permission *access.Requirement
	// Notify stages a notification; entity, id and actor are filled in.
	Notify *notify.Intent
}

// UpdateOptions tunes Update.
type UpdateOptions struct {
	Scope      access.ScopeOptions
	Permission *access.Requirement
	Notify     *notify.Intent
}

// DeleteOptions tunes Delete. Deletes are soft unless Hard is set.
type DeleteOptions struct {
	Scope      access.ScopeOptions
	Hard       bool
	Permission *access.Requirement
	Notify     *notify.Intent
}

// Repo serves CRUD for one entity.
type Repo[T any] struct {
	gw *Gateway
	e  entity.Entity[T]
}

// For binds the gateway to an entity.
func For[T any](gw *Gateway, e entity.Entity[T]) *Repo[T] {
	return &Repo[T]{gw: gw, e: e}
}

// Entity returns the entity served by the repo.
func (r *Repo[T]) Entity() entity.Entity[T] {
	return r.e
}

// List returns the visible rows matching opts.
func (r *Repo[T]) List(ctx context.Context, opts ListOptions) ([]T, error) {
	name := r.e.Name
	rows, err := access.Guarded(ctx, r.gw.guard, access.Read(name), func(ctx context.Context, ac *authz.AuthContext) ([]T, error) {
		scope, err := r.gw.Scope(ac, r.e.Descriptor, opts.Scope)
		if err != nil {
			return nil, err
		}
		filters, err := r.filters(OpList, opts.Filters, opts.Where)
		if err != nil {
			return nil, err
		}
		if opts.OrderBy != nil && !r.e.HasColumn(opts.OrderBy.Column) {
			return nil, access.InvalidInput(name, OpList, "unknown order column "+opts.OrderBy.Column)
		}
		if opts.Limit < 0 || opts.Offset < 0 {
			return nil, access.InvalidInput(name, OpList, "limit and offset must not be negative")
		}
		recs, err := r.gw.store.Select(ctx, storage.Select{
			Table:   r.e.Table,
			Where:   query.All(scope, filters),
			OrderBy: opts.OrderBy,
			Limit:   opts.Limit,
			Offset:  opts.Offset,
		})
		if err != nil {
			return nil, access.StorageFailure(name, OpList, err)
		}
		out, err := r.e.DecodeAll(recs)
		return out, access.StorageFailure(name, OpList, err)
	})
	r.gw.observe(name, OpList, err)
	return rows, err
}

// FindOne returns the visible row with id, or nil when there is none. A row
// outside the caller's scope is indistinguishable from a missing one.
func (r *Repo[T]) FindOne(ctx context.Context, id uuid.UUID, scope access.ScopeOptions) (*T, error) {
	name := r.e.Name
	row, err := access.Guarded(ctx, r.gw.guard, access.Read(name), func(ctx context.Context, ac *authz.AuthContext) (*T, error) {
		where, err := r.byID(ac, id, scope)
		if err != nil {
			return nil, err
		}
		return r.selectOne(ctx, r.gw.store, OpFindOne, where)
	})
	r.gw.observe(name, OpFindOne, err)
	return row, err
}

// Create inserts a row and returns it as stored. The id, creator and
// timestamps are assigned here.
func (r *Repo[T]) Create(ctx context.Context, data storage.Record, opts WriteOptions) (*T, error) {
	name := r.e.Name
	req := access.Create(name)
	if opts.Permission != nil {
		req = *opts.Permission
	}
	row, err := access.Guarded(ctx, r.gw.guard, req, func(ctx context.Context, ac *authz.AuthContext) (*T, error) {
		values, err := r.insertValues(ac, data, opts)
		if err != nil {
			return nil, err
		}
		id := values[entity.ColumnID].(uuid.UUID)

		var (
			out    *T
			staged []uuid.UUID
		)
		err = r.gw.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
			rec, err := tx.Insert(ctx, r.e.Table, values)
			if err != nil {
				return access.StorageFailure(name, OpCreate, err)
			}
			decoded, err := r.e.Decode(rec)
			if err != nil {
				return access.StorageFailure(name, OpCreate, err)
			}
			out = &decoded
			if err := r.record(ctx, tx, ac, id, audit.ActionCreate, values); err != nil {
				return err
			}
			staged = r.stage(ctx, tx, ac, id, "created", opts.Notify)
			return nil
		})
		if err != nil {
			return nil, err
		}
		r.gw.dispatch(ctx, staged)
		return out, nil
	})
	r.gw.observe(name, OpCreate, err)
	return row, err
}

// Update patches the visible row with id. The row is re-selected and updated
// under the same id and scope predicate in one transaction; when nothing is
// visible the call fails with ErrNotFoundOrDenied.
func (r *Repo[T]) Update(ctx context.Context, id uuid.UUID, data storage.Record, opts UpdateOptions) (*T, error) {
	name := r.e.Name
	req := access.Update(name)
	if opts.Permission != nil {
		req = *opts.Permission
	}
	row, err := access.Guarded(ctx, r.gw.guard, req, func(ctx context.Context, ac *authz.AuthContext) (*T, error) {
		patch, err := r.patchValues(data)
		if err != nil {
			return nil, err
		}
		where, err := r.byID(ac, id, opts.Scope)
		if err != nil {
			return nil, err
		}

		var (
			out    *T
			staged []uuid.UUID
		)
		err = r.gw.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
			current, err := r.selectOne(ctx, tx, OpUpdate, where)
			if err != nil {
				return err
			}
			if current == nil {
				return access.NotFoundOrDenied(name, OpUpdate)
			}
			recs, err := tx.Update(ctx, r.e.Table, patch, where)
			if err != nil {
				return access.StorageFailure(name, OpUpdate, err)
			}
			if len(recs) == 0 {
				return access.NotFoundOrDenied(name, OpUpdate)
			}
			decoded, err := r.e.Decode(recs[0])
			if err != nil {
				return access.StorageFailure(name, OpUpdate, err)
			}
			out = &decoded
			if err := r.record(ctx, tx, ac, id, audit.ActionUpdate, patch); err != nil {
				return err
			}
			staged = r.stage(ctx, tx, ac, id, "updated", opts.Notify)
			return nil
		})
		if err != nil {
			return nil, err
		}
		r.gw.dispatch(ctx, staged)
		return out, nil
	})
	r.gw.observe(name, OpUpdate, err)
	return row, err
}

// Delete removes the visible row with id and reports whether one matched.
func (r *Repo[T]) Delete(ctx context.Context, id uuid.UUID, opts DeleteOptions) (bool, error) {
	name := r.e.Name
	req := access.Delete(name)
	if opts.Permission != nil {
		req = *opts.Permission
	}
	deleted, err := access.Guarded(ctx, r.gw.guard, req, func(ctx context.Context, ac *authz.AuthContext) (bool, error) {
		if !opts.Hard && r.e.SoftDeleteColumn == "" {
			return false, access.Unsupported(name, OpDelete, "soft delete is not available for "+name)
		}
		where, err := r.byID(ac, id, opts.Scope)
		if err != nil {
			return false, err
		}

		var (
			matched bool
			staged  []uuid.UUID
		)
		err = r.gw.store.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
			changes := storage.Record{"hard": opts.Hard}
			if opts.Hard {
				n, err := tx.Delete(ctx, r.e.Table, where)
				if err != nil {
					return access.StorageFailure(name, OpDelete, err)
				}
				matched = n > 0
			} else {
				now := r.gw.clock()
				set := storage.Record{r.e.SoftDeleteColumn: now}
				if r.e.Timestamps {
					set[entity.ColumnUpdatedAt] = now
				}
				recs, err := tx.Update(ctx, r.e.Table, set, where)
				if err != nil {
					return access.StorageFailure(name, OpDelete, err)
				}
				matched = len(recs) > 0
				changes[r.e.SoftDeleteColumn] = now
			}
			if !matched {
				return nil
			}
			if err := r.record(ctx, tx, ac, id, audit.ActionDelete, changes); err != nil {
				return err
			}
			staged = r.stage(ctx, tx, ac, id, "deleted", opts.Notify)
			return nil
		})
		if err != nil {
			return false, err
		}
		r.gw.dispatch(ctx, staged)
		return matched, nil
	})
	r.gw.observe(name, OpDelete, err)
	return deleted, err
}

func (r *Repo[T]) byID(ac *authz.AuthContext, id uuid.UUID, opts access.ScopeOptions) (query.Predicate, error) {
	scope, err := r.gw.Scope(ac, r.e.Descriptor, opts)
	if err != nil {
		return nil, err
	}
	return query.All(query.Eq{Column: entity.ColumnID, Value: id}, scope), nil
}

func (r *Repo[T]) selectOne(ctx context.Context, store storage.Store, op string, where query.Predicate) (*T, error) {
	recs, err := store.Select(ctx, storage.Select{Table: r.e.Table, Where: where, Limit: 1})
	if err != nil {
		return nil, access.StorageFailure(r.e.Name, op, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	row, err := r.e.Decode(recs[0])
	if err != nil {
		return nil, access.StorageFailure(r.e.Name, op, err)
	}
	return &row, nil
}

func (r *Repo[T]) filters(op string, eq map[string]any, extra []query.Predicate) (query.Predicate, error) {
	var preds []query.Predicate
	cols := lo.Keys(eq)
	sort.Strings(cols)
	for _, col := range cols {
		v := eq[col]
		if lo.IsNil(v) {
			continue
		}
		if !r.e.HasColumn(col) {
			return nil, access.InvalidInput(r.e.Name, op, "unknown filter column "+col)
		}
		preds = append(preds, query.Eq{Column: col, Value: v})
	}
	for _, p := range extra {
		for _, col := range query.Columns(p) {
			if !r.e.HasColumn(col) {
				return nil, access.InvalidInput(r.e.Name, op, "unknown filter column "+col)
			}
		}
		preds = append(preds, p)
	}
	return query.All(preds...), nil
}

func (r *Repo[T]) checkColumns(op string, data storage.Record) error {
	for col := range data {
		if !r.e.HasColumn(col) {
			return access.InvalidInput(r.e.Name, op, "unknown column "+col)
		}
	}
	return nil
}

func (r *Repo[T]) insertValues(ac *authz.AuthContext, data storage.Record, opts WriteOptions) (storage.Record, error) {
	if err := r.checkColumns(OpCreate, data); err != nil {
		return nil, err
	}
	values := data.Clone()
	if values == nil {
		values = storage.Record{}
	}
	values[entity.ColumnID] = uuid.New()
	if r.e.CreatedByColumn != "" {
		values[r.e.CreatedByColumn] = ac.ProfileID()
	}
	if r.e.Timestamps {
		now := r.gw.clock()
		values[entity.ColumnCreatedAt] = now
		values[entity.ColumnUpdatedAt] = now
	}
	if r.e.SoftDeleteColumn != "" {
		values[r.e.SoftDeleteColumn] = nil
	}
	if opts.SetOwner && r.e.OwnerColumn != "" {
		values[r.e.OwnerColumn] = ac.ProfileID()
	}
	if opts.SetDepartment && r.e.DepartmentColumn != "" {
		if dept := ac.DepartmentID(); dept != nil {
			values[r.e.DepartmentColumn] = *dept
		} else {
			values[r.e.DepartmentColumn] = nil
		}
	}
	return values, nil
}

func (r *Repo[T]) patchValues(data storage.Record) (storage.Record, error) {
	if err := r.checkColumns(OpUpdate, data); err != nil {
		return nil, err
	}
	patch := data.Clone()
	for _, col := range []string{entity.ColumnID, r.e.CreatedByColumn, entity.ColumnCreatedAt, entity.ColumnUpdatedAt, r.e.SoftDeleteColumn} {
		delete(patch, col)
	}
	if len(patch) == 0 {
		return nil, access.InvalidInput(r.e.Name, OpUpdate, "nothing to update")
	}
	if r.e.Timestamps {
		patch[entity.ColumnUpdatedAt] = r.gw.clock()
	}
	return patch, nil
}

func (r *Repo[T]) record(ctx context.Context, tx storage.Store, ac *authz.AuthContext, id uuid.UUID, action string, changes storage.Record) error {
	if r.gw.history == nil {
		return nil
	}
	err := r.gw.history.Record(ctx, tx, audit.Entry{
		Entity:   r.e.Name,
		EntityID: id,
		Action:   action,
		ActorID:  ac.ProfileID(),
		Changes:  map[string]any(changes),
	})
	return access.StorageFailure(r.e.Name, action, err)
}

// stage writes the notification inside a savepoint so a failing outbox
// insert never rolls back the primary write.
func (r *Repo[T]) stage(ctx context.Context, tx storage.Store, ac *authz.AuthContext, id uuid.UUID, event string, tmpl *notify.Intent) []uuid.UUID {
	if tmpl == nil || r.gw.notifier == nil {
		return nil
	}
	in := *tmpl
	in.EntityType = r.e.Name
	in.EntityID = id
	in.ActorID = ac.ProfileID()
	if in.Event == "" {
		in.Event = r.e.Name + "." + event
	}
	if in.Template == "" {
		in.Template = in.Event
	}
	var staged uuid.UUID
	err := tx.WithTx(ctx, func(ctx context.Context, sp storage.Store) error {
		var err error
		staged, err = r.gw.notifier.Stage(ctx, sp, in)
		return err
	})
	if err != nil {
		r.gw.logger.Warn("notification staging failed",
			slog.String("entity", r.e.Name),
			slog.String("entity_id", id.String()),
			slog.Any("error", &access.Error{Kind: access.ErrNotification, Entity: r.e.Name, Op: "stage", Err: err}),
		)
		return nil
	}
	return []uuid.UUID{staged}
}
