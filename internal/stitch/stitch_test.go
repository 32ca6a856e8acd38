package stitch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage/memory"
)

func seedProfiles(store *memory.Store, n int) []uuid.UUID {
	ids := make([]uuid.UUID, n)
	for i := range ids {
		ids[i] = uuid.New()
		store.Seed(entity.Profiles.Table, storage.Record{
			"id":         ids[i],
			"email":      fmt.Sprintf("owner%d@company.test", i),
			"full_name":  fmt.Sprintf("Owner %d", i),
			"role":       "employee",
			"created_at": time.Now(),
			"updated_at": time.Now(),
			"deleted_at": nil,
		})
	}
	return ids
}

func profileID(p entity.Profile) uuid.UUID { return p.ID }

func TestIDsDeduplicatesAndSkipsNil(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	leads := []entity.Lead{
		{OwnerID: &a, CompanyID: &b},
		{OwnerID: &a},
		{OwnerID: nil},
		{OwnerID: &uuid.Nil},
	}
	got := IDs(leads,
		func(l entity.Lead) *uuid.UUID { return l.OwnerID },
		func(l entity.Lead) *uuid.UUID { return l.CompanyID },
	)
	assert.Equal(t, []uuid.UUID{a, b}, got)
}

func TestFetchSkipsEmptyIDSet(t *testing.T) {
	store := memory.New()
	rows, err := Fetch(context.Background(), store, entity.Profiles, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, store.Calls())
}

func TestBatchIssuesOneFetchPerRelation(t *testing.T) {
	store := memory.New()
	owners := seedProfiles(store, 10)

	leads := make([]entity.Lead, 50)
	for i := range leads {
		owner := owners[i%len(owners)]
		leads[i] = entity.Lead{ID: uuid.New(), OwnerID: &owner}
	}

	b := NewBatch(store)
	rel := Add(b, entity.Profiles, IDs(leads, func(l entity.Lead) *uuid.UUID { return l.OwnerID }), profileID)
	require.NoError(t, b.Run(context.Background()))

	assert.Equal(t, int64(1), store.Calls())
	assert.Equal(t, 10, rel.Len())
	for _, l := range leads {
		owner := rel.Get(l.OwnerID)
		require.NotNil(t, owner)
		assert.Equal(t, *l.OwnerID, owner.ID)
	}
}

func TestMissingOrDeletedRelatedRowsDegradeToNil(t *testing.T) {
	store := memory.New()
	owners := seedProfiles(store, 2)
	deleted := owners[1]
	_, err := store.Update(context.Background(), entity.Profiles.Table,
		storage.Record{"deleted_at": time.Now()}, query.Eq{Column: "id", Value: deleted})
	require.NoError(t, err)
	unknown := uuid.New()

	b := NewBatch(store)
	rel := Add(b, entity.Profiles, []uuid.UUID{owners[0], deleted, unknown}, profileID)
	require.NoError(t, b.Run(context.Background()))

	assert.NotNil(t, rel.Get(&owners[0]))
	assert.Nil(t, rel.Get(&deleted))
	assert.Nil(t, rel.Get(&unknown))
	assert.Nil(t, rel.Get(nil))
}

type failingStore struct {
	*memory.Store
}

func (failingStore) Select(context.Context, storage.Select) ([]storage.Record, error) {
	return nil, errors.New("connection reset")
}

func TestBatchPropagatesFetchErrors(t *testing.T) {
	b := NewBatch(failingStore{memory.New()})
	Add(b, entity.Profiles, []uuid.UUID{uuid.New()}, profileID)
	err := b.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stitch: fetch profiles")
}
