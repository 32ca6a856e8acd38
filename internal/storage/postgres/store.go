// Package postgres implements storage.Store on top of pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/startupsquad-prog/company-os-sub003/internal/platform/db"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Store is a storage.Store backed by a pgx pool or transaction.
type Store struct {
	db   dbtx
	pool *pgxpool.Pool
	tx   pgx.Tx
}

// New builds a Store on the given pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{db: pool, pool: pool}
}

var _ storage.Store = (*Store)(nil)

// WithTx runs fn inside a transaction. Nested calls open a savepoint in the
// outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, storage.Store) error) error {
	if s.tx != nil {
		return db.WithSavepoint(ctx, s.tx, func(sp pgx.Tx) error {
			return fn(ctx, &Store{db: sp, pool: s.pool, tx: sp})
		})
	}
	if s.pool == nil {
		return errors.New("postgres: transactions need a pool")
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Store{db: tx, pool: s.pool, tx: tx})
	})
}

// Select runs a declarative read.
func (s *Store) Select(ctx context.Context, sel storage.Select) ([]storage.Record, error) {
	where, args, err := query.Compile(sel.Where, 0)
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT * FROM %s WHERE %s", sel.Table, where)
	if sel.OrderBy != nil {
		col, err := query.QuoteIdent(sel.OrderBy.Column)
		if err != nil {
			return nil, err
		}
		dir := "ASC"
		if sel.OrderBy.Desc {
			dir = "DESC"
		}
		fmt.Fprintf(&b, " ORDER BY %s %s", col, dir)
	}
	if sel.Limit > 0 {
		args = append(args, sel.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if sel.Offset > 0 {
		args = append(args, sel.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return s.Query(ctx, b.String(), args...)
}

// Insert writes one row and returns it as stored.
func (s *Store) Insert(ctx context.Context, table storage.Table, values storage.Record) (storage.Record, error) {
	if len(values) == 0 {
		return nil, errors.New("postgres: insert without values")
	}
	cols := sortedKeys(values)
	quoted := make([]string, len(cols))
	holders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		q, err := query.QuoteIdent(c)
		if err != nil {
			return nil, err
		}
		quoted[i] = q
		holders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = values[c]
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		table, strings.Join(quoted, ", "), strings.Join(holders, ", "))
	rows, err := s.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("postgres: insert into %s returned %d rows", table.Key(), len(rows))
	}
	return rows[0], nil
}

// Update applies set to every row matching where and returns the new rows.
func (s *Store) Update(ctx context.Context, table storage.Table, set storage.Record, where query.Predicate) ([]storage.Record, error) {
	if len(set) == 0 {
		return nil, errors.New("postgres: update without values")
	}
	cols := sortedKeys(set)
	assignments := make([]string, len(cols))
	args := make([]any, 0, len(cols))
	for i, c := range cols {
		q, err := query.QuoteIdent(c)
		if err != nil {
			return nil, err
		}
		args = append(args, set[c])
		assignments[i] = fmt.Sprintf("%s = $%d", q, len(args))
	}
	cond, condArgs, err := query.Compile(where, len(args))
	if err != nil {
		return nil, err
	}
	args = append(args, condArgs...)
	sql := fmt.Sprintf("UPDATE %s SET %s WHERE %s RETURNING *", table, strings.Join(assignments, ", "), cond)
	return s.Query(ctx, sql, args...)
}

// Delete removes every row matching where.
func (s *Store) Delete(ctx context.Context, table storage.Table, where query.Predicate) (int64, error) {
	cond, args, err := query.Compile(where, 0)
	if err != nil {
		return 0, err
	}
	tag, err := s.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s", table, cond), args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Query runs a parameterised raw statement and collects rows by column name.
func (s *Store) Query(ctx context.Context, sql string, args ...any) ([]storage.Record, error) {
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, err
	}
	out := make([]storage.Record, len(maps))
	for i, m := range maps {
		out[i] = storage.Record(m)
	}
	return out, nil
}

func sortedKeys(r storage.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
