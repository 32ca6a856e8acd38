package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
)

// Enqueuer hands a staged message to the background worker.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, id uuid.UUID) error
}

// Notifier stages intents and dispatches them after commit.
type Notifier struct {
	outbox   *Outbox
	enqueuer Enqueuer
	logger   *slog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewNotifier constructs a Notifier. Without an enqueuer staged messages are
// only picked up by the sweep.
func NewNotifier(outbox *Outbox, enqueuer Enqueuer, logger *slog.Logger, timeout time.Duration) *Notifier {
	if outbox == nil {
		outbox = NewOutbox()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Notifier{outbox: outbox, enqueuer: enqueuer, logger: logger, timeout: timeout}
}

// Stage writes in to the outbox using store, normally a transaction.
func (n *Notifier) Stage(ctx context.Context, store storage.Store, in Intent) (uuid.UUID, error) {
	return n.outbox.Stage(ctx, store, in)
}

// Dispatch enqueues the staged ids in the background. It returns immediately;
// the work keeps the caller's values but not its cancellation and is bounded
// by the notifier's timeout. Failures are logged and never returned.
func (n *Notifier) Dispatch(ctx context.Context, ids ...uuid.UUID) {
	if n == nil || n.enqueuer == nil || len(ids) == 0 {
		return
	}
	detached := context.WithoutCancel(ctx)
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				n.logFailure(fmt.Errorf("panic: %v", r), uuid.Nil)
			}
		}()
		ctx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()
		for _, id := range ids {
			if err := n.enqueuer.EnqueueNotification(ctx, id); err != nil {
				n.logFailure(err, id)
			}
		}
	}()
}

// Wait blocks until in-flight dispatches finish.
func (n *Notifier) Wait() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

func (n *Notifier) logFailure(err error, id uuid.UUID) {
	n.logger.Warn("notification dispatch failed",
		slog.String("outbox_id", id.String()),
		slog.Any("error", &access.Error{Kind: access.ErrNotification, Entity: "notification", Op: "dispatch", Err: err}),
	)
}
