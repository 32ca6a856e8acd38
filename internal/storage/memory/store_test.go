package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

var leads = storage.Table{Schema: "crm", Name: "leads"}

func seedThree(s *Store) {
	s.Seed(leads,
		storage.Record{"id": "a", "rank": 3, "owner_id": "p1", "deleted_at": nil},
		storage.Record{"id": "b", "rank": 1, "owner_id": "p2", "deleted_at": nil},
		storage.Record{"id": "c", "rank": 2, "owner_id": "p1", "deleted_at": "gone"},
	)
}

func ids(rows []storage.Record) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["id"])
	}
	return out
}

func TestSelectFiltersOrdersAndPages(t *testing.T) {
	s := New()
	seedThree(s)
	ctx := context.Background()

	rows, err := s.Select(ctx, storage.Select{Table: leads, Where: query.IsNull{Column: "deleted_at"}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, ids(rows))

	rows, err = s.Select(ctx, storage.Select{Table: leads, OrderBy: &storage.Order{Column: "rank"}, Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, []any{"c"}, ids(rows))

	rows, err = s.Select(ctx, storage.Select{Table: leads, OrderBy: &storage.Order{Column: "rank", Desc: true}})
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "c", "b"}, ids(rows))

	rows, err = s.Select(ctx, storage.Select{Table: leads, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.EqualValues(t, 4, s.Calls())
}

func TestSelectReturnsCopies(t *testing.T) {
	s := New()
	seedThree(s)
	rows, err := s.Select(context.Background(), storage.Select{Table: leads, Where: query.Eq{Column: "id", Value: "a"}})
	require.NoError(t, err)
	rows[0]["owner_id"] = "mutated"
	assert.Equal(t, "p1", s.Rows(leads)[0]["owner_id"])
}

func TestUpdateAndDelete(t *testing.T) {
	s := New()
	seedThree(s)
	ctx := context.Background()

	updated, err := s.Update(ctx, leads, storage.Record{"owner_id": "p3"}, query.Eq{Column: "owner_id", Value: "p1"})
	require.NoError(t, err)
	assert.Len(t, updated, 2)

	n, err := s.Delete(ctx, leads, query.Eq{Column: "owner_id", Value: "p3"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Len(t, s.Rows(leads), 1)
}

func TestFailInsertsAndRawQuery(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	s.FailInserts(leads, boom)
	_, err := s.Insert(context.Background(), leads, storage.Record{"id": "x"})
	assert.ErrorIs(t, err, boom)

	s.FailInserts(leads, nil)
	_, err = s.Insert(context.Background(), leads, storage.Record{"id": "x"})
	assert.NoError(t, err)

	_, err = s.Query(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, storage.ErrRawUnsupported)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := New()
	seedThree(s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if _, err := tx.Insert(ctx, leads, storage.Record{"id": "d"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, s.Rows(leads), 3)
}

func TestRollbackKeepsWritesOutsideTheTransaction(t *testing.T) {
	s := New()
	seedThree(s)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if _, err := tx.Insert(ctx, leads, storage.Record{"id": "tx"}); err != nil {
			return err
		}
		if _, err := tx.Update(ctx, leads, storage.Record{"rank": 9}, query.Eq{Column: "id", Value: "a"}); err != nil {
			return err
		}
		if _, err := tx.Delete(ctx, leads, query.Eq{Column: "id", Value: "b"}); err != nil {
			return err
		}
		if _, err := s.Insert(ctx, leads, storage.Record{"id": "outside"}); err != nil {
			return err
		}
		if _, err := s.Update(ctx, leads, storage.Record{"owner_id": "p9"}, query.Eq{Column: "id", Value: "c"}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows := s.Rows(leads)
	assert.Equal(t, []any{"a", "b", "c", "outside"}, ids(rows))
	assert.Equal(t, 3, rows[0]["rank"])
	assert.Equal(t, "p9", rows[2]["owner_id"])
}

func TestNestedWithTxActsAsSavepoint(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, tx storage.Store) error {
		if _, err := tx.Insert(ctx, leads, storage.Record{"id": "outer"}); err != nil {
			return err
		}
		inner := tx.WithTx(ctx, func(ctx context.Context, sp storage.Store) error {
			if _, err := sp.Insert(ctx, leads, storage.Record{"id": "inner"}); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, inner, boom)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []any{"outer"}, ids(s.Rows(leads)))
}

func TestCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Select(ctx, storage.Select{Table: leads})
	assert.ErrorIs(t, err, context.Canceled)
}
