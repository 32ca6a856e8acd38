// Package storage defines the storage query interface the access layer runs
// on. Backends live in subpackages: postgres for production and memory for
// tests and local development.
package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/startupsquad-prog/company-os-sub003/internal/query"
)

// ErrRawUnsupported is returned by backends that cannot execute raw SQL.
var ErrRawUnsupported = errors.New("storage: raw statements not supported")

// Record is a single row keyed by column name.
type Record map[string]any

// Clone returns a shallow copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table names a table inside a schema.
type Table struct {
	Schema string
	Name   string
}

// String renders the sanitised, schema-qualified identifier.
func (t Table) String() string {
	if t.Schema == "" {
		return pgx.Identifier{t.Name}.Sanitize()
	}
	return pgx.Identifier{t.Schema, t.Name}.Sanitize()
}

// Key is the unquoted "schema.table" form used for maps and logs.
func (t Table) Key() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Order sorts a selection by one column.
type Order struct {
	Column string
	Desc   bool
}

// Select describes a declarative read.
type Select struct {
	Table   Table
	Where   query.Predicate
	OrderBy *Order
	Limit   int
	Offset  int
}

// Store is the storage query interface. Implementations must be safe for
// concurrent use; the Store handed to a WithTx callback is bound to that
// transaction.
type Store interface {
	Select(ctx context.Context, sel Select) ([]Record, error)
	Insert(ctx context.Context, table Table, values Record) (Record, error)
	Update(ctx context.Context, table Table, set Record, where query.Predicate) ([]Record, error)
	Delete(ctx context.Context, table Table, where query.Predicate) (int64, error)
	Query(ctx context.Context, sql string, args ...any) ([]Record, error)
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
}
