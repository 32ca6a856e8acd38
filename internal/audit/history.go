// Package audit records entity history rows in the audit schema.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// HistoryTable stores one row per state change.
var HistoryTable = storage.Table{Schema: "audit", Name: "entity_history"}

// Actions recorded by the gateway.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Entry is a single history row.
type Entry struct {
	ID         uuid.UUID
	Entity     string
	EntityID   uuid.UUID
	Action     string
	ActorID    uuid.UUID
	Changes    map[string]any
	OccurredAt time.Time
}

// History writes entries through the store it is handed, so callers can
// record inside their own transaction.
type History struct {
	clock func() time.Time
}

// NewHistory returns a History using the wall clock.
func NewHistory() *History {
	return &History{clock: func() time.Time { return time.Now().UTC() }}
}

// Record persists the entry.
func (h *History) Record(ctx context.Context, store storage.Store, e Entry) error {
	if h == nil {
		return errors.New("audit: history not initialised")
	}
	if e.Action == "" || e.Entity == "" || e.EntityID == uuid.Nil {
		return errors.New("audit: entry requires action/entity/entity_id")
	}
	changes, err := json.Marshal(e.Changes)
	if err != nil {
		return fmt.Errorf("audit: encode changes: %w", err)
	}
	at := e.OccurredAt
	if at.IsZero() {
		at = h.clock()
	}
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	var actor any
	if e.ActorID != uuid.Nil {
		actor = e.ActorID
	}
	_, err = store.Insert(ctx, HistoryTable, storage.Record{
		"id":          id,
		"entity":      e.Entity,
		"entity_id":   e.EntityID,
		"action":      e.Action,
		"actor_id":    actor,
		"changes":     changes,
		"occurred_at": at,
	})
	if err != nil {
		return fmt.Errorf("audit: record %s %s: %w", e.Entity, e.Action, err)
	}
	return nil
}
