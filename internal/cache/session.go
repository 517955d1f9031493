package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a session ID has no corresponding entry (expired, revoked, or never issued).
var ErrSessionNotFound = errors.New("session not found")

func sessionKey(sessionID string) string { return "adminsession:" + sessionID }

// SessionStore tracks revocable admin sessions. The Admin API only grants a single root-admin credential access, so
// unlike the teacher's per-user, resumable gateway sessions, this store exists purely to let an issued JWT be revoked
// before its expiry — logout, credential rotation, or incident response.
type SessionStore struct {
	client *redis.Client
}

// NewSessionStore creates a new Valkey-backed admin session store.
func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

// Save records an issued session so it can later be revoked, with a TTL matching the token's own expiry.
func (s *SessionStore) Save(ctx context.Context, sessionID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKey(sessionID), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// IsValid reports whether sessionID is still present (neither expired nor revoked).
func (s *SessionStore) IsValid(ctx context.Context, sessionID string) (bool, error) {
	err := s.client.Get(ctx, sessionKey(sessionID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check session: %w", err)
	}
	return true, nil
}

// Revoke deletes a session ahead of its natural TTL expiry, immediately invalidating the associated JWT.
func (s *SessionStore) Revoke(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
