// Package ratelimit implements the Rate Limiter component: a sliding window
// per (room_id, author_id) backed by the Cache's atomic increment primitive.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/uncord-chat/relay/internal/cache"
)

// Decision is the Rate Limiter's verdict for one inbound message.
type Decision struct {
	Allowed         bool
	RetryAfterSeconds int
}

// Limiter wraps the cache-level counter with the accept/reject policy: window = rate_limit_seconds, 0 disables
// limiting entirely. Tie-break for simultaneous submissions is delegated to the Cache's atomic INCR — no additional
// locking here.
type Limiter struct {
	counter *cache.RateLimiter
}

// New creates a new Rate Limiter.
func New(counter *cache.RateLimiter) *Limiter {
	return &Limiter{counter: counter}
}

// Check increments the counter for (room_id, author_id) and returns whether the message is allowed through. A
// windowSeconds of 0 always allows and never touches the cache.
func (l *Limiter) Check(ctx context.Context, roomID int64, authorID string, windowSeconds int) (Decision, error) {
	if windowSeconds <= 0 {
		return Decision{Allowed: true}, nil
	}

	window := time.Duration(windowSeconds) * time.Second
	count, err := l.counter.Incr(ctx, roomID, authorID, window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limiter check: %w", err)
	}

	if count > 1 {
		return Decision{Allowed: false, RetryAfterSeconds: windowSeconds}, nil
	}
	return Decision{Allowed: true}, nil
}
