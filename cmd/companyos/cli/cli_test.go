package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage"
	"github.com/startupsquad-prog/company-os-sub003/internal/storage/memory"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestIssueCommandJSON(t *testing.T) {
	sessions := authz.NewSessionStore(newRedisClient(t), time.Hour)
	cli := NewSessionCLI(sessions)
	profileID := uuid.New()

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	code := cli.IssueCommand(context.Background(), IssueOptions{
		ProfileID:  profileID.String(),
		JSONOutput: true,
		Stdout:     stdout,
		Stderr:     stderr,
	})
	require.Equal(t, 0, code, stderr.String())

	var summary issueSummary
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &summary))
	assert.Equal(t, profileID.String(), summary.ProfileID)

	sess, err := sessions.Lookup(context.Background(), summary.Token)
	require.NoError(t, err)
	require.NotNil(t, sess)
	assert.Equal(t, profileID, sess.ProfileID)

	require.Equal(t, 0, cli.RevokeCommand(context.Background(), summary.Token, stderr))
	sess, err = sessions.Lookup(context.Background(), summary.Token)
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestIssueCommandRejectsBadProfile(t *testing.T) {
	cli := NewSessionCLI(authz.NewSessionStore(newRedisClient(t), time.Hour))
	stderr := new(bytes.Buffer)
	code := cli.IssueCommand(context.Background(), IssueOptions{ProfileID: "nope", Stdout: new(bytes.Buffer), Stderr: stderr})
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "--profile must be a uuid")

	assert.Equal(t, 1, cli.RevokeCommand(context.Background(), "", stderr))
}

func TestInvalidateCommandReloadsPermissions(t *testing.T) {
	store := memory.New()
	store.Seed(authz.RolePermissionsTable, storage.Record{"role": "manager", "resource": "leads", "action": "read"})
	perms := authz.NewPermissionStore(store, newRedisClient(t), time.Hour, nil)
	cli := NewPermissionsCLI(perms)

	_, err := perms.ForRole(context.Background(), authz.RoleManager)
	require.NoError(t, err)
	store.Seed(authz.RolePermissionsTable, storage.Record{"role": "manager", "resource": "tickets", "action": "assign"})

	stdout, stderr := new(bytes.Buffer), new(bytes.Buffer)
	require.Equal(t, 0, cli.InvalidateCommand(context.Background(), "Manager", stdout, stderr), stderr.String())
	assert.Equal(t, []string{"leads.read", "tickets.assign"}, strings.Fields(stdout.String()))

	assert.Equal(t, 1, cli.InvalidateCommand(context.Background(), "intern", stdout, stderr))
}

type stubInspector map[string]*asynq.QueueInfo

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	info, ok := s[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

type stubEnqueuer struct {
	delivered []uuid.UUID
	sweeps    int
	err       error
}

func (s *stubEnqueuer) EnqueueNotification(_ context.Context, id uuid.UUID) error {
	s.delivered = append(s.delivered, id)
	return s.err
}

func (s *stubEnqueuer) EnqueueSweep(context.Context, int, int) error {
	s.sweeps++
	return s.err
}

func TestStatsCommand(t *testing.T) {
	cli := NewJobsCLI(nil, stubInspector{
		"notifications": {Queue: "notifications", Pending: 3, Retry: 1},
	})
	stdout := new(bytes.Buffer)
	require.Equal(t, 0, cli.StatsCommand(stdout, new(bytes.Buffer)))

	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"notifications", "3", "0", "0", "1", "0"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"default", "0", "0", "0", "0", "0"}, strings.Fields(lines[2]))
}

func TestRedeliverAndSweepCommands(t *testing.T) {
	enq := &stubEnqueuer{}
	cli := NewJobsCLI(enq, nil)
	id := uuid.New()
	stderr := new(bytes.Buffer)

	assert.Equal(t, 0, cli.RedeliverCommand(context.Background(), id.String(), stderr))
	assert.Equal(t, []uuid.UUID{id}, enq.delivered)
	assert.Equal(t, 1, cli.RedeliverCommand(context.Background(), "x", stderr))

	assert.Equal(t, 0, cli.SweepCommand(context.Background(), 60, 10, stderr))
	assert.Equal(t, 1, enq.sweeps)

	enq.err = errors.New("redis down")
	assert.Equal(t, 1, cli.SweepCommand(context.Background(), 60, 10, stderr))
	assert.Contains(t, stderr.String(), "redis down")

	_, err := NewJobsCLI(enq, nil).InspectQueues()
	assert.Error(t, err)
}
