// Package memory implements storage.Store in process. It backs tests and the
// STORAGE_DRIVER=memory development mode and counts every storage call so
// tests can assert that nothing touched storage.
package memory

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// Store keeps rows per table in memory.
type Store struct {
	mu       sync.RWMutex
	txMu     sync.Mutex
	tables   map[string][]storage.Record
	failures map[string]error
	calls    atomic.Int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tables:   make(map[string][]storage.Record),
		failures: make(map[string]error),
	}
}

var _ storage.Store = (*Store)(nil)

// Calls reports how many storage operations were executed.
func (s *Store) Calls() int64 {
	return s.calls.Load()
}

// ResetCalls zeroes the call counter.
func (s *Store) ResetCalls() {
	s.calls.Store(0)
}

// Seed inserts rows without counting them as calls.
func (s *Store) Seed(table storage.Table, rows ...storage.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range rows {
		s.tables[table.Key()] = append(s.tables[table.Key()], r.Clone())
	}
}

// Rows returns a copy of every row in table without counting a call.
func (s *Store) Rows(table storage.Table) []storage.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneAll(s.tables[table.Key()])
}

// FailInserts makes every insert into table fail with err until cleared with a
// nil error.
func (s *Store) FailInserts(table storage.Table, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, table.Key())
		return
	}
	s.failures[table.Key()] = err
}

// Select returns matching rows.
func (s *Store) Select(ctx context.Context, sel storage.Select) ([]storage.Record, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	var out []storage.Record
	for _, r := range s.tables[sel.Table.Key()] {
		if query.Match(sel.Where, r) {
			out = append(out, r.Clone())
		}
	}
	s.mu.RUnlock()

	if sel.OrderBy != nil {
		col, desc := sel.OrderBy.Column, sel.OrderBy.Desc
		sort.SliceStable(out, func(i, j int) bool {
			c, ok := query.Compare(out[i][col], out[j][col])
			if !ok {
				return false
			}
			if desc {
				return c > 0
			}
			return c < 0
		})
	}
	if sel.Offset > 0 {
		if sel.Offset >= len(out) {
			return nil, nil
		}
		out = out[sel.Offset:]
	}
	if sel.Limit > 0 && len(out) > sel.Limit {
		out = out[:sel.Limit]
	}
	return out, nil
}

// Insert appends a row.
func (s *Store) Insert(ctx context.Context, table storage.Table, values storage.Record) (storage.Record, error) {
	return s.insert(ctx, nil, table, values)
}

// Update applies set to every matching row.
func (s *Store) Update(ctx context.Context, table storage.Table, set storage.Record, where query.Predicate) ([]storage.Record, error) {
	return s.update(ctx, nil, table, set, where)
}

// Delete removes every matching row.
func (s *Store) Delete(ctx context.Context, table storage.Table, where query.Predicate) (int64, error) {
	return s.delete(ctx, nil, table, where)
}

// Query is not supported in memory.
func (s *Store) Query(ctx context.Context, sql string, args ...any) ([]storage.Record, error) {
	s.calls.Add(1)
	return nil, storage.ErrRawUnsupported
}

// WithTx serialises transactions. When fn fails only the writes made through
// the transaction are undone; writes made meanwhile on s itself survive.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, storage.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	tx := txStore{Store: s, log: &undoLog{}}
	if err := fn(ctx, tx); err != nil {
		s.rollback(tx.log, 0)
		return err
	}
	return nil
}

func (s *Store) insert(ctx context.Context, log *undoLog, table storage.Table, values storage.Record) (storage.Record, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := table.Key()
	if err := s.failures[key]; err != nil {
		return nil, err
	}
	row := values.Clone()
	s.tables[key] = append(s.tables[key], row)
	log.push(func() {
		rows := s.tables[key]
		for i, r := range rows {
			if sameRow(r, row) {
				s.tables[key] = append(rows[:i:i], rows[i+1:]...)
				return
			}
		}
	})
	return row.Clone(), nil
}

func (s *Store) update(ctx context.Context, log *undoLog, table storage.Table, set storage.Record, where query.Predicate) ([]storage.Record, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.Record
	for _, r := range s.tables[table.Key()] {
		if !query.Match(where, r) {
			continue
		}
		before, live := r.Clone(), r
		log.push(func() {
			for k := range live {
				delete(live, k)
			}
			for k, v := range before {
				live[k] = v
			}
		})
		for k, v := range set {
			r[k] = v
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (s *Store) delete(ctx context.Context, log *undoLog, table storage.Table, where query.Predicate) (int64, error) {
	s.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := table.Key()
	rows := s.tables[key]
	kept := make([]storage.Record, 0, len(rows))
	type removal struct {
		at  int
		row storage.Record
	}
	var removed []removal
	for i, r := range rows {
		if query.Match(where, r) {
			removed = append(removed, removal{at: i, row: r})
			continue
		}
		kept = append(kept, r)
	}
	s.tables[key] = kept
	log.push(func() {
		restored := s.tables[key]
		for _, rm := range removed {
			at := min(rm.at, len(restored))
			restored = append(restored[:at], append([]storage.Record{rm.row}, restored[at:]...)...)
		}
		s.tables[key] = restored
	})
	return int64(len(removed)), nil
}

// rollback undoes log entries past mark, newest first.
func (s *Store) rollback(log *undoLog, mark int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(log.undo) - 1; i >= mark; i-- {
		log.undo[i]()
	}
	log.undo = log.undo[:mark]
}

// undoLog records how to revert each write made inside a transaction. A nil
// log records nothing.
type undoLog struct {
	undo []func()
}

func (l *undoLog) push(fn func()) {
	if l != nil {
		l.undo = append(l.undo, fn)
	}
}

// txStore is the view handed to a transaction callback. Nested WithTx calls
// behave like savepoints.
type txStore struct {
	*Store
	log *undoLog
}

func (t txStore) Insert(ctx context.Context, table storage.Table, values storage.Record) (storage.Record, error) {
	return t.insert(ctx, t.log, table, values)
}

func (t txStore) Update(ctx context.Context, table storage.Table, set storage.Record, where query.Predicate) ([]storage.Record, error) {
	return t.update(ctx, t.log, table, set, where)
}

func (t txStore) Delete(ctx context.Context, table storage.Table, where query.Predicate) (int64, error) {
	return t.delete(ctx, t.log, table, where)
}

func (t txStore) WithTx(ctx context.Context, fn func(context.Context, storage.Store) error) error {
	mark := len(t.log.undo)
	if err := fn(ctx, t); err != nil {
		t.rollback(t.log, mark)
		return err
	}
	return nil
}

func sameRow(a, b storage.Record) bool {
	return reflect.ValueOf(a).UnsafePointer() == reflect.ValueOf(b).UnsafePointer()
}

func cloneAll(rows []storage.Record) []storage.Record {
	if rows == nil {
		return nil
	}
	out := make([]storage.Record, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}
