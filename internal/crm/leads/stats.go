package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// InteractionStats summarises the interactions of many leads at once.
type InteractionStats interface {
	Summaries(ctx context.Context, leadIDs []uuid.UUID) (map[uuid.UUID]InteractionSummary, error)
}

const summarySQL = `SELECT lead_id, COUNT(*) AS interaction_count, MAX(occurred_at) AS last_at
FROM crm.interactions
WHERE lead_id = ANY($1::uuid[]) AND deleted_at IS NULL
GROUP BY lead_id`

type summaryRow struct {
	LeadID uuid.UUID  `db:"lead_id"`
	Count  int64      `db:"interaction_count"`
	LastAt *time.Time `db:"last_at"`
}

// StoreStats computes summaries with one grouped query. Stores without raw
// SQL get one batched select aggregated in process.
type StoreStats struct {
	store storage.Store
}

// NewStoreStats builds StoreStats over store.
func NewStoreStats(store storage.Store) *StoreStats {
	return &StoreStats{store: store}
}

// Summaries returns the summary per lead id. Leads without interactions are
// absent from the map.
func (s *StoreStats) Summaries(ctx context.Context, leadIDs []uuid.UUID) (map[uuid.UUID]InteractionSummary, error) {
	out := make(map[uuid.UUID]InteractionSummary, len(leadIDs))
	if len(leadIDs) == 0 {
		return out, nil
	}
	rows, err := s.store.Query(ctx, summarySQL, lo.Map(leadIDs, func(id uuid.UUID, _ int) string { return id.String() }))
	if errors.Is(err, storage.ErrRawUnsupported) {
		return s.aggregate(ctx, leadIDs)
	}
	if err != nil {
		return nil, fmt.Errorf("leads: interaction summaries: %w", err)
	}
	for _, rec := range rows {
		var row summaryRow
		if err := entity.DecodeInto(rec, &row); err != nil {
			return nil, fmt.Errorf("leads: decode summary: %w", err)
		}
		out[row.LeadID] = InteractionSummary{Count: row.Count, LastAt: row.LastAt}
	}
	return out, nil
}

func (s *StoreStats) aggregate(ctx context.Context, leadIDs []uuid.UUID) (map[uuid.UUID]InteractionSummary, error) {
	recs, err := s.store.Select(ctx, storage.Select{
		Table: entity.Interactions.Table,
		Where: query.All(
			query.In{Column: "lead_id", Values: lo.ToAnySlice(leadIDs)},
			query.IsNull{Column: entity.ColumnDeletedAt},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("leads: interaction summaries: %w", err)
	}
	rows, err := entity.Interactions.DecodeAll(recs)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]InteractionSummary, len(leadIDs))
	for _, it := range rows {
		sum := out[it.LeadID]
		sum.Count++
		if sum.LastAt == nil || it.OccurredAt.After(*sum.LastAt) {
			at := it.OccurredAt
			sum.LastAt = &at
		}
		out[it.LeadID] = sum
	}
	return out, nil
}
