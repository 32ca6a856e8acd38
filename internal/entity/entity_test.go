package entity

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

func TestRegistryLookup(t *testing.T) {
	d, ok := Lookup("leads")
	require.True(t, ok)
	assert.Equal(t, "crm.leads", d.Table.Key())
	assert.Equal(t, "owner_id", d.OwnerColumn)
	assert.True(t, d.HasColumn("value_cents"))
	assert.False(t, d.HasColumn("password"))

	_, ok = Lookup("unknown")
	assert.False(t, ok)
	assert.Contains(t, Names(), "tickets")
}

func TestDefinePanicsOnUnknownScopeColumn(t *testing.T) {
	assert.Panics(t, func() {
		Define[Article](Descriptor{Name: "broken_articles", OwnerColumn: "owner_id"})
	})
}

func TestDecodeDriverValues(t *testing.T) {
	id := uuid.New()
	owner := uuid.New()
	now := time.Now().UTC()
	rec := storage.Record{
		"id":          [16]byte(id),
		"title":       "Expansion deal",
		"status":      "new",
		"value_cents": int32(125000),
		"owner_id":    owner.String(),
		"contact_id":  nil,
		"created_by":  owner,
		"created_at":  now,
		"updated_at":  now,
		"deleted_at":  nil,
	}
	lead, err := Leads.Decode(rec)
	require.NoError(t, err)
	assert.Equal(t, id, lead.ID)
	assert.Equal(t, int64(125000), lead.ValueCents)
	require.NotNil(t, lead.OwnerID)
	assert.Equal(t, owner, *lead.OwnerID)
	assert.Nil(t, lead.ContactID)
	assert.Nil(t, lead.DeletedAt)
	assert.True(t, now.Equal(lead.CreatedAt))
}

func TestDecodeRejectsMalformedUUID(t *testing.T) {
	_, err := Tasks.Decode(storage.Record{"id": "not-a-uuid"})
	assert.Error(t, err)
}
