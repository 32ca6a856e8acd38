// Package notify stages notification intents in a transactional outbox and
// hands them to the background worker for delivery.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/entity"
	"github.com/startupsquad-prog/company-os-sub003/internal/query"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// OutboxTable holds staged notifications.
var OutboxTable = storage.Table{Schema: "ops", Name: "notification_outbox"}

// Outbox row states.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

// MaxAttempts bounds delivery attempts before a message is marked failed.
const MaxAttempts = 10

// Intent is the trigger contract of a state change: what happened to which
// entity, who did it and who should hear about it.
type Intent struct {
	EntityType string         `json:"entity_type"`
	EntityID   uuid.UUID      `json:"entity_id"`
	Event      string         `json:"event"`
	Template   string         `json:"template"`
	ActorID    uuid.UUID      `json:"actor_id"`
	Recipients []uuid.UUID    `json:"recipients,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Message is a staged intent as stored in the outbox.
type Message struct {
	ID        uuid.UUID
	Intent    Intent
	Status    string
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// Outbox reads and writes outbox rows through a caller supplied store.
type Outbox struct {
	clock func() time.Time
}

// NewOutbox returns an Outbox using the wall clock.
func NewOutbox() *Outbox {
	return &Outbox{clock: func() time.Time { return time.Now().UTC() }}
}

// Stage inserts in as a pending message. Call it with the transaction of the
// primary write.
func (o *Outbox) Stage(ctx context.Context, store storage.Store, in Intent) (uuid.UUID, error) {
	if in.EntityType == "" || in.Event == "" || in.EntityID == uuid.Nil {
		return uuid.Nil, errors.New("notify: intent requires entity_type/entity_id/event")
	}
	payload, err := json.Marshal(in)
	if err != nil {
		return uuid.Nil, fmt.Errorf("notify: encode intent: %w", err)
	}
	id := uuid.New()
	now := o.clock()
	_, err = store.Insert(ctx, OutboxTable, storage.Record{
		"id":          id,
		"entity_type": in.EntityType,
		"entity_id":   in.EntityID,
		"event":       in.Event,
		"payload":     payload,
		"status":      StatusPending,
		"attempts":    0,
		"last_error":  nil,
		"created_at":  now,
		"updated_at":  now,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("notify: stage %s: %w", in.Event, err)
	}
	return id, nil
}

// Load returns the message with id, or nil when it does not exist.
func (o *Outbox) Load(ctx context.Context, store storage.Store, id uuid.UUID) (*Message, error) {
	rows, err := store.Select(ctx, storage.Select{
		Table: OutboxTable,
		Where: query.Eq{Column: "id", Value: id},
		Limit: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("notify: load %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return decodeMessage(rows[0])
}

// MarkDelivered flags the message as delivered.
func (o *Outbox) MarkDelivered(ctx context.Context, store storage.Store, id uuid.UUID) error {
	now := o.clock()
	_, err := store.Update(ctx, OutboxTable, storage.Record{
		"status":       StatusDelivered,
		"delivered_at": now,
		"updated_at":   now,
	}, query.Eq{Column: "id", Value: id})
	return err
}

// MarkAttempt records a failed attempt. The message turns failed once it
// reaches MaxAttempts.
func (o *Outbox) MarkAttempt(ctx context.Context, store storage.Store, msg *Message, cause error) error {
	attempts := msg.Attempts + 1
	status := StatusPending
	if attempts >= MaxAttempts {
		status = StatusFailed
	}
	_, err := store.Update(ctx, OutboxTable, storage.Record{
		"attempts":   attempts,
		"status":     status,
		"last_error": cause.Error(),
		"updated_at": o.clock(),
	}, query.Eq{Column: "id", Value: msg.ID})
	return err
}

// Pending lists ids of pending messages created before cutoff, oldest first.
func (o *Outbox) Pending(ctx context.Context, store storage.Store, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	rows, err := store.Select(ctx, storage.Select{
		Table: OutboxTable,
		Where: query.All(
			query.Eq{Column: "status", Value: StatusPending},
			query.Cmp{Column: "created_at", Op: query.OpLT, Value: cutoff},
		),
		OrderBy: &storage.Order{Column: "created_at"},
		Limit:   limit,
	})
	if err != nil {
		return nil, fmt.Errorf("notify: pending: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		msg, err := decodeMessage(row)
		if err != nil {
			return nil, err
		}
		ids = append(ids, msg.ID)
	}
	return ids, nil
}

type outboxRow struct {
	ID        uuid.UUID `db:"id"`
	Payload   any       `db:"payload"`
	Status    string    `db:"status"`
	Attempts  int       `db:"attempts"`
	LastError *string   `db:"last_error"`
	CreatedAt time.Time `db:"created_at"`
}

func decodeMessage(rec storage.Record) (*Message, error) {
	var row outboxRow
	if err := entity.DecodeInto(rec, &row); err != nil {
		return nil, fmt.Errorf("notify: decode message: %w", err)
	}
	msg := &Message{
		ID:        row.ID,
		Status:    row.Status,
		Attempts:  row.Attempts,
		CreatedAt: row.CreatedAt,
	}
	if row.LastError != nil {
		msg.LastError = *row.LastError
	}

	// jsonb arrives as raw bytes from the wire or already decoded by pgx.
	var raw []byte
	switch v := row.Payload.(type) {
	case nil:
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("notify: decode payload: %w", err)
		}
		raw = b
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &msg.Intent); err != nil {
			return nil, fmt.Errorf("notify: decode payload: %w", err)
		}
	}
	return msg, nil
}
