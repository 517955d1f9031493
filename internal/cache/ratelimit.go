package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const rateLimitPrefix = "ratelimit"

func rateLimitKey(roomID int64, authorID string) string {
	return fmt.Sprintf("%s:%d:%s", rateLimitPrefix, roomID, authorID)
}

// incrScript atomically increments the counter and sets its TTL only on the increment that creates the key, so the
// window is anchored to the first message in it rather than sliding forward on every message. Without this, a
// rejected burst that keeps incrementing the same counter would keep pushing its own expiry back and never let the
// window lapse, per spec.md §4.5's "counter resets by natural TTL expiry."
//
//	KEYS[1] = ratelimit:{room_id}:{author_id}
//	ARGV[1] = window TTL in seconds
var incrScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RateLimiter backs the RateCounter entity: a (room_id, author_id)-keyed sliding count with TTL equal to the room's
// configured rate_limit_seconds. It is derived state — never authoritative, and safe to lose on a cache flush (the
// author simply gets one extra message through).
type RateLimiter struct {
	client *redis.Client
}

// NewRateLimiter creates a new Valkey-backed rate limiter.
func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client}
}

// Incr atomically increments the counter for (room_id, author_id), anchoring its TTL to window on the increment that
// creates the key and leaving it untouched on every later increment within the same window, and returns the
// post-increment count. A window of zero disables rate limiting entirely; callers should not call Incr in that case.
func (l *RateLimiter) Incr(ctx context.Context, roomID int64, authorID string, window time.Duration) (int64, error) {
	key := rateLimitKey(roomID, authorID)

	count, err := incrScript.Run(ctx, l.client, []string{key}, int64(window.Seconds())).Int64()
	if err != nil {
		return 0, fmt.Errorf("rate limiter incr: %w", err)
	}
	return count, nil
}
