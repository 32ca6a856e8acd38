package authz

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Session is a bearer token issued to a profile.
type Session struct {
	Token     string
	ProfileID uuid.UUID
	IssuedAt  time.Time
}

type sessionPayload struct {
	ProfileID string    `json:"profile_id"`
	IssuedAt  time.Time `json:"issued_at"`
}

// SessionStore keeps bearer sessions in Redis.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSessionStore constructs a SessionStore.
func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// Issue creates a session for profileID and returns its token.
func (s *SessionStore) Issue(ctx context.Context, profileID uuid.UUID) (*Session, error) {
	sess := &Session{
		Token:     generateToken(),
		ProfileID: profileID,
		IssuedAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(sessionPayload{ProfileID: profileID.String(), IssuedAt: sess.IssuedAt})
	if err != nil {
		return nil, err
	}
	if err := s.client.Set(ctx, sessionKey(sess.Token), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("authz: issue session: %w", err)
	}
	return sess, nil
}

// Lookup returns the session for token, or nil when it is unknown or expired.
func (s *SessionStore) Lookup(ctx context.Context, token string) (*Session, error) {
	if token == "" {
		return nil, nil
	}
	payload, err := s.client.Get(ctx, sessionKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("authz: lookup session: %w", err)
	}
	var stored sessionPayload
	if err := json.Unmarshal(payload, &stored); err != nil {
		return nil, fmt.Errorf("authz: decode session: %w", err)
	}
	id, err := uuid.Parse(stored.ProfileID)
	if err != nil {
		return nil, fmt.Errorf("authz: decode session: %w", err)
	}
	return &Session{Token: token, ProfileID: id, IssuedAt: stored.IssuedAt}, nil
}

// Revoke deletes the session.
func (s *SessionStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, sessionKey(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}

// TTL exposes the configured session lifetime.
func (s *SessionStore) TTL() time.Duration {
	return s.ttl
}

func sessionKey(token string) string {
	return "session:" + token
}

func generateToken() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()
	}
	return base64.RawURLEncoding.EncodeToString(b)
}
