package jobs

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the queue for housekeeping tasks.
	QueueDefault = "default"
	// QueueNotifications carries outbox deliveries.
	QueueNotifications = "notifications"

	// TaskNotificationDeliver delivers one outbox message.
	TaskNotificationDeliver = "notification:deliver"
	// TaskNotificationSweep re-enqueues stale pending outbox messages.
	TaskNotificationSweep = "notification:sweep"
)

// DeliverPayload identifies the outbox message to deliver.
type DeliverPayload struct {
	OutboxID uuid.UUID `json:"outbox_id"`
}

// SweepPayload bounds a sweep run.
type SweepPayload struct {
	OlderThanSeconds int `json:"older_than_seconds"`
	Limit            int `json:"limit"`
}

// NewDeliverTask builds the delivery task for an outbox message.
func NewDeliverTask(id uuid.UUID) (*asynq.Task, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("jobs: deliver task needs an outbox id")
	}
	data, err := json.Marshal(DeliverPayload{OutboxID: id})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationDeliver, data), nil
}

// NewSweepTask builds the periodic sweep task.
func NewSweepTask(olderThanSeconds, limit int) (*asynq.Task, error) {
	data, err := json.Marshal(SweepPayload{OlderThanSeconds: olderThanSeconds, Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskNotificationSweep, data), nil
}

func deliverTaskID(id uuid.UUID) string {
	return TaskNotificationDeliver + ":" + id.String()
}
