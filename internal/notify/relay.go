package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// Deliverer is the delivery pipeline (email, in-app, chat).
type Deliverer interface {
	Deliver(ctx context.Context, msg Message) error
}

// Relay moves outbox messages to the Deliverer on the worker side.
type Relay struct {
	store     storage.Store
	outbox    *Outbox
	deliverer Deliverer
	enqueuer  Enqueuer
	logger    *slog.Logger
	clock     func() time.Time
}

// NewRelay constructs a Relay.
func NewRelay(store storage.Store, outbox *Outbox, deliverer Deliverer, enqueuer Enqueuer, logger *slog.Logger) *Relay {
	if outbox == nil {
		outbox = NewOutbox()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		store:     store,
		outbox:    outbox,
		deliverer: deliverer,
		enqueuer:  enqueuer,
		logger:    logger,
		clock:     func() time.Time { return time.Now().UTC() },
	}
}

// Deliver sends one message. Unknown or already settled messages are
// skipped. A delivery error is recorded on the row and returned so the queue
// retries it.
func (r *Relay) Deliver(ctx context.Context, id uuid.UUID) error {
	msg, err := r.outbox.Load(ctx, r.store, id)
	if err != nil {
		return err
	}
	if msg == nil || msg.Status != StatusPending {
		return nil
	}
	if err := r.deliverer.Deliver(ctx, *msg); err != nil {
		if markErr := r.outbox.MarkAttempt(ctx, r.store, msg, err); markErr != nil {
			r.logger.Error("notify: record attempt", slog.String("outbox_id", id.String()), slog.Any("error", markErr))
		}
		return fmt.Errorf("notify: deliver %s: %w", id, err)
	}
	return r.outbox.MarkDelivered(ctx, r.store, id)
}

// Sweep re-enqueues pending messages older than age, covering messages whose
// dispatch was lost between commit and enqueue. It returns how many were
// enqueued.
func (r *Relay) Sweep(ctx context.Context, age time.Duration, limit int) (int, error) {
	if r.enqueuer == nil {
		return 0, nil
	}
	if limit <= 0 {
		limit = 100
	}
	ids, err := r.outbox.Pending(ctx, r.store, r.clock().Add(-age), limit)
	if err != nil {
		return 0, err
	}
	enqueued := 0
	for _, id := range ids {
		if err := r.enqueuer.EnqueueNotification(ctx, id); err != nil {
			r.logger.Warn("notify: sweep enqueue", slog.String("outbox_id", id.String()), slog.Any("error", err))
			continue
		}
		enqueued++
	}
	return enqueued, nil
}

// LogDeliverer writes messages to the log instead of delivering them.
type LogDeliverer struct {
	Logger *slog.Logger
}

func (d LogDeliverer) Deliver(_ context.Context, msg Message) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	recipients := make([]string, 0, len(msg.Intent.Recipients))
	for _, r := range msg.Intent.Recipients {
		recipients = append(recipients, r.String())
	}
	logger.Info("notification",
		slog.String("outbox_id", msg.ID.String()),
		slog.String("event", msg.Intent.Event),
		slog.String("template", msg.Intent.Template),
		slog.String("entity_type", msg.Intent.EntityType),
		slog.String("entity_id", msg.Intent.EntityID.String()),
		slog.Any("recipients", recipients),
	)
	return nil
}
