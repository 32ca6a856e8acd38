// Package stitch enriches parent rows with rows that live in another schema.
// Related rows are fetched once per relation with an id IN (...) query and
// joined in memory through an id map; a missing or deleted related row
// becomes nil and never drops its parent.
package stitch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// IDs collects the distinct non-nil foreign ids referenced by parents.
func IDs[P any](parents []P, keys ...func(P) *uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	for _, p := range parents {
		for _, key := range keys {
			if id := key(p); id != nil && *id != uuid.Nil {
				ids = append(ids, *id)
			}
		}
	}
	return lo.Uniq(ids)
}

// Fetch loads the non-deleted rows of e whose id is in ids with a single
// query. An empty id set issues no query.
func Fetch[T any](ctx context.Context, store storage.Store, e entity.Entity[T], ids []uuid.UUID) ([]T, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	where := []query.Predicate{
		query.In{Column: entity.ColumnID, Values: lo.ToAnySlice(ids)},
	}
	if e.SoftDeleteColumn != "" {
		where = append(where, query.IsNull{Column: e.SoftDeleteColumn})
	}
	rows, err := store.Select(ctx, storage.Select{Table: e.Table, Where: query.All(where...)})
	if err != nil {
		return nil, fmt.Errorf("stitch: fetch %s: %w", e.Name, err)
	}
	return e.DecodeAll(rows)
}

// Index maps rows by id.
func Index[T any](rows []T, id func(T) uuid.UUID) map[uuid.UUID]T {
	return lo.KeyBy(rows, id)
}

// Lookup returns the row for id, or nil.
func Lookup[T any](index map[uuid.UUID]T, id *uuid.UUID) *T {
	if id == nil {
		return nil
	}
	row, ok := index[*id]
	if !ok {
		return nil
	}
	return &row
}

// Relation is the id map of one related entity, filled by Batch.Run.
type Relation[T any] struct {
	index map[uuid.UUID]T
}

// Get returns the related row for id, or nil.
func (r *Relation[T]) Get(id *uuid.UUID) *T {
	if r == nil {
		return nil
	}
	return Lookup(r.index, id)
}

// Len reports how many related rows were loaded.
func (r *Relation[T]) Len() int {
	if r == nil {
		return 0
	}
	return len(r.index)
}

// Batch gathers one fetch per relation and runs them concurrently.
type Batch struct {
	store storage.Store
	fetch []func(context.Context) error
}

// NewBatch starts a batch against store.
func NewBatch(store storage.Store) *Batch {
	return &Batch{store: store}
}

// Add registers a relation fetch for ids and returns its Relation, usable
// after Run succeeds.
func Add[T any](b *Batch, e entity.Entity[T], ids []uuid.UUID, id func(T) uuid.UUID) *Relation[T] {
	rel := &Relation[T]{index: map[uuid.UUID]T{}}
	b.fetch = append(b.fetch, func(ctx context.Context) error {
		rows, err := Fetch(ctx, b.store, e, ids)
		if err != nil {
			return err
		}
		rel.index = Index(rows, id)
		return nil
	})
	return rel
}

// Run executes every registered fetch and returns the first error.
func (b *Batch) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, fn := range b.fetch {
		g.Go(func() error { return fn(ctx) })
	}
	return g.Wait()
}
