package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
)

// SessionCLI issues and revokes bearer sessions for operators.
type SessionCLI struct {
	sessions *authz.SessionStore
}

// NewSessionCLI wraps a session store.
func NewSessionCLI(sessions *authz.SessionStore) *SessionCLI {
	return &SessionCLI{sessions: sessions}
}

// IssueOptions defines the flags of the session issue command.
type IssueOptions struct {
	ProfileID  string
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

type issueSummary struct {
	Token     string    `json:"token"`
	ProfileID string    `json:"profile_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// IssueCommand creates a session and prints its token. It returns the
// process exit code.
func (c *SessionCLI) IssueCommand(ctx context.Context, opts IssueOptions) int {
	opts.Stdout, opts.Stderr = writers(opts.Stdout, opts.Stderr)
	id, err := uuid.Parse(opts.ProfileID)
	if err != nil || id == uuid.Nil {
		_, _ = fmt.Fprintf(opts.Stderr, "session issue: --profile must be a uuid, got %q\n", opts.ProfileID)
		return 1
	}
	sess, err := c.sessions.Issue(ctx, id)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "session issue: %v\n", err)
		return 1
	}
	if opts.JSONOutput {
		summary := issueSummary{Token: sess.Token, ProfileID: sess.ProfileID.String(), IssuedAt: sess.IssuedAt}
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "session issue: encode json: %v\n", err)
			return 1
		}
		return 0
	}
	_, _ = fmt.Fprintln(opts.Stdout, sess.Token)
	return 0
}

// RevokeCommand deletes the session identified by token.
func (c *SessionCLI) RevokeCommand(ctx context.Context, token string, stderr io.Writer) int {
	_, stderr = writers(nil, stderr)
	if token == "" {
		_, _ = fmt.Fprintln(stderr, "session revoke: --token is required")
		return 1
	}
	if err := c.sessions.Revoke(ctx, token); err != nil {
		_, _ = fmt.Fprintf(stderr, "session revoke: %v\n", err)
		return 1
	}
	return 0
}

func writers(stdout, stderr io.Writer) (io.Writer, io.Writer) {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return stdout, stderr
}
