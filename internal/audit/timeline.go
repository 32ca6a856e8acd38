package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// TimelineFilters narrows a history listing.
type TimelineFilters struct {
	Entity   string
	EntityID uuid.UUID
	ActorID  *uuid.UUID
	Action   string
	From     time.Time
	To       time.Time
	Page     int
	PageSize int
}

// PagingInfo carries simple page navigation.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps a timeline page.
type Result struct {
	Rows   []Entry    `json:"rows"`
	Paging PagingInfo `json:"paging"`
}

// Timeline lists history newest first.
func Timeline(ctx context.Context, store storage.Store, filters TimelineFilters) (Result, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 50 {
		pageSize = 50
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}

	var where []query.Predicate
	if filters.Entity != "" {
		where = append(where, query.Eq{Column: "entity", Value: filters.Entity})
	}
	if filters.EntityID != uuid.Nil {
		where = append(where, query.Eq{Column: "entity_id", Value: filters.EntityID})
	}
	if filters.ActorID != nil {
		where = append(where, query.Eq{Column: "actor_id", Value: *filters.ActorID})
	}
	if filters.Action != "" {
		where = append(where, query.Eq{Column: "action", Value: filters.Action})
	}
	if !filters.From.IsZero() {
		where = append(where, query.Cmp{Column: "occurred_at", Op: query.OpGTE, Value: filters.From})
	}
	if !filters.To.IsZero() {
		where = append(where, query.Cmp{Column: "occurred_at", Op: query.OpLT, Value: filters.To})
	}

	rows, err := store.Select(ctx, storage.Select{
		Table:   HistoryTable,
		Where:   query.All(where...),
		OrderBy: &storage.Order{Column: "occurred_at", Desc: true},
		Limit:   pageSize + 1,
		Offset:  (page - 1) * pageSize,
	})
	if err != nil {
		return Result{}, fmt.Errorf("audit: timeline: %w", err)
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	entries := make([]Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, entryFromRecord(row))
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Rows: entries, Paging: paging}, nil
}

func entryFromRecord(row storage.Record) Entry {
	e := Entry{
		ID:       toUUID(row["id"]),
		EntityID: toUUID(row["entity_id"]),
		ActorID:  toUUID(row["actor_id"]),
	}
	e.Entity, _ = row["entity"].(string)
	e.Action, _ = row["action"].(string)
	e.OccurredAt, _ = row["occurred_at"].(time.Time)
	switch v := row["changes"].(type) {
	case map[string]any:
		e.Changes = v
	case []byte:
		_ = json.Unmarshal(v, &e.Changes)
	case string:
		_ = json.Unmarshal([]byte(v), &e.Changes)
	}
	return e
}

func toUUID(v any) uuid.UUID {
	switch x := v.(type) {
	case uuid.UUID:
		return x
	case [16]byte:
		return uuid.UUID(x)
	case string:
		id, _ := uuid.Parse(x)
		return id
	}
	return uuid.Nil
}
