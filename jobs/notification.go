package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/startupsquad-prog/company-os-sub003/internal/access"
	jobmetrics "github.com/startupsquad-prog/company-os-sub003/internal/jobs"
)

// Relay is the worker side of the notification outbox.
type Relay interface {
	Deliver(ctx context.Context, id uuid.UUID) error
	Sweep(ctx context.Context, age time.Duration, limit int) (int, error)
}

// NotificationJob handles delivery and sweep tasks.
type NotificationJob struct {
	relay    Relay
	logger   *slog.Logger
	metrics  *jobmetrics.Metrics
	sweepAge time.Duration
}

// NewNotificationJob wires the handlers. sweepAge is the default age for
// sweeps whose payload does not set one.
func NewNotificationJob(relay Relay, logger *slog.Logger, metrics *jobmetrics.Metrics, sweepAge time.Duration) *NotificationJob {
	if logger == nil {
		logger = slog.Default()
	}
	if sweepAge <= 0 {
		sweepAge = 2 * time.Minute
	}
	return &NotificationJob{relay: relay, logger: logger, metrics: metrics, sweepAge: sweepAge}
}

// Handlers returns the task handlers for the worker.
func (j *NotificationJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskNotificationDeliver, Handler: j.HandleDeliver},
		{Type: TaskNotificationSweep, Handler: j.HandleSweep},
	}
}

// HandleDeliver delivers one outbox message. Errors make asynq retry.
func (j *NotificationJob) HandleDeliver(ctx context.Context, t *asynq.Task) (err error) {
	var payload DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.OutboxID == uuid.Nil {
		j.logger.Warn("notification deliver: bad payload", slog.String("payload", string(t.Payload())))
		return fmt.Errorf("jobs: deliver payload: %w", asynq.SkipRetry)
	}
	tracker := j.metrics.Track(TaskNotificationDeliver)
	defer func() { err = tracker.End(err) }()

	if err := j.relay.Deliver(ctx, payload.OutboxID); err != nil {
		j.logger.Warn("notification delivery failed",
			slog.String("outbox_id", payload.OutboxID.String()),
			slog.Any("error", &access.Error{Kind: access.ErrNotification, Entity: "notification", Op: "deliver", Err: err}),
		)
		return err
	}
	return nil
}

// HandleSweep re-enqueues pending messages whose dispatch was lost.
func (j *NotificationJob) HandleSweep(ctx context.Context, t *asynq.Task) (err error) {
	var payload SweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("jobs: sweep payload: %w", asynq.SkipRetry)
		}
	}
	age := j.sweepAge
	if payload.OlderThanSeconds > 0 {
		age = time.Duration(payload.OlderThanSeconds) * time.Second
	}
	tracker := j.metrics.Track(TaskNotificationSweep)
	defer func() { err = tracker.End(err) }()

	n, err := j.relay.Sweep(ctx, age, payload.Limit)
	if err != nil {
		j.logger.Error("notification sweep", slog.Any("error", err))
		return err
	}
	j.metrics.AddItems(TaskNotificationSweep, n)
	if n > 0 {
		j.logger.Info("notification sweep re-enqueued messages", slog.Int("count", n), slog.Duration("older_than", age))
	}
	return nil
}
