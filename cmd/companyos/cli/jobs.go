package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/startupsquad-prog/company-os-sub003/jobs"
)

// Inspector reports queue state.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
}

// Enqueuer schedules notification tasks.
type Enqueuer interface {
	EnqueueNotification(ctx context.Context, id uuid.UUID) error
	EnqueueSweep(ctx context.Context, olderThanSeconds, limit int) error
}

// JobsCLI wraps manual management helpers for the notification queue.
type JobsCLI struct {
	client    Enqueuer
	inspector Inspector
}

func NewJobsCLI(client Enqueuer, inspector Inspector) *JobsCLI {
	return &JobsCLI{client: client, inspector: inspector}
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string
	Pending   int
	Active    int
	Scheduled int
	Retry     int
	Archived  int
}

// InspectQueues reports the state of every queue the worker consumes.
func (c *JobsCLI) InspectQueues() ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	out := make([]QueueStats, 0, 2)
	for _, queue := range []string{jobs.QueueNotifications, jobs.QueueDefault} {
		info, err := c.inspector.GetQueueInfo(queue)
		if err != nil {
			if errors.Is(err, asynq.ErrQueueNotFound) {
				out = append(out, QueueStats{Queue: queue})
				continue
			}
			return nil, fmt.Errorf("jobs cli: queue %s: %w", queue, err)
		}
		out = append(out, QueueStats{
			Queue:     queue,
			Pending:   info.Pending,
			Active:    info.Active,
			Scheduled: info.Scheduled,
			Retry:     info.Retry,
			Archived:  info.Archived,
		})
	}
	return out, nil
}

// StatsCommand prints queue stats as a table.
func (c *JobsCLI) StatsCommand(stdout, stderr io.Writer) int {
	stdout, stderr = writers(stdout, stderr)
	stats, err := c.InspectQueues()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs stats: %v\n", err)
		return 1
	}
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
	for _, s := range stats {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
	}
	_ = tw.Flush()
	return 0
}

// RedeliverCommand queues delivery of one outbox message.
func (c *JobsCLI) RedeliverCommand(ctx context.Context, rawID string, stderr io.Writer) int {
	_, stderr = writers(nil, stderr)
	id, err := uuid.Parse(rawID)
	if err != nil || id == uuid.Nil {
		_, _ = fmt.Fprintf(stderr, "jobs redeliver: --id must be a uuid, got %q\n", rawID)
		return 1
	}
	if err := c.client.EnqueueNotification(ctx, id); err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs redeliver: %v\n", err)
		return 1
	}
	return 0
}

// SweepCommand queues an immediate outbox sweep.
func (c *JobsCLI) SweepCommand(ctx context.Context, olderThanSeconds, limit int, stderr io.Writer) int {
	_, stderr = writers(nil, stderr)
	if err := c.client.EnqueueSweep(ctx, olderThanSeconds, limit); err != nil {
		_, _ = fmt.Fprintf(stderr, "jobs sweep: %v\n", err)
		return 1
	}
	return 0
}
