// Package cache implements the relay's derived-state layer over Valkey: cached resolutions, rate counters, revocable
// admin sessions, rolling delivery stats, and the pub/sub channels that keep them bounded-stale.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/uncord-chat/relay/internal/room"
)

// TTL is the default time-to-live for a cached resolution. Derived state — never authoritative; a miss always falls
// back to the Store.
const TTL = 300 * time.Second

const roomPrefix = "resolve"

// ResolvedRoom is the cached unit the Resolver reads and writes: a room plus its permission snapshot, keyed by the
// (guild_id, channel_id) pair that resolved to it.
type ResolvedRoom struct {
	Room        room.Room
	Permissions room.Permissions
}

// ResolveKey builds the cache key for a (guild_id, channel_id) resolution, exported so callers invalidating a whole
// room's subscriptions (e.g. main's invalidation subscriber) can build the key list without duplicating the prefix
// scheme.
func ResolveKey(guildID, channelID string) string {
	return roomPrefix + ":" + guildID + ":" + channelID
}

// RoomCache caches Resolver results keyed by (guild_id, channel_id).
type RoomCache struct {
	client *redis.Client
}

// NewRoomCache creates a new Valkey-backed room resolution cache.
func NewRoomCache(client *redis.Client) *RoomCache {
	return &RoomCache{client: client}
}

// Get returns the cached resolution for (guild_id, channel_id), if present.
func (c *RoomCache) Get(ctx context.Context, guildID, channelID string) (*ResolvedRoom, bool, error) {
	val, err := c.client.Get(ctx, ResolveKey(guildID, channelID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("room cache get: %w", err)
	}

	var rr ResolvedRoom
	if err := json.Unmarshal(val, &rr); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached resolution: %w", err)
	}
	return &rr, true, nil
}

// Set writes a resolution to the cache with the standard TTL.
func (c *RoomCache) Set(ctx context.Context, guildID, channelID string, rr ResolvedRoom) error {
	data, err := json.Marshal(rr)
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}
	if err := c.client.Set(ctx, ResolveKey(guildID, channelID), data, TTL).Err(); err != nil {
		return fmt.Errorf("room cache set: %w", err)
	}
	return nil
}

// DeleteExact drops the cached resolution for a single (guild_id, channel_id) pair, used when a subscription is
// deactivated.
func (c *RoomCache) DeleteExact(ctx context.Context, guildID, channelID string) error {
	return c.client.Del(ctx, ResolveKey(guildID, channelID)).Err()
}

// DeleteByRoom drops every cached resolution pointing at a room, used when a room or its permissions change.
func (c *RoomCache) DeleteByRoom(ctx context.Context, allSubscriptionKeys []string) error {
	if len(allSubscriptionKeys) == 0 {
		return nil
	}
	keys := make([]string, len(allSubscriptionKeys))
	copy(keys, allSubscriptionKeys)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("room cache delete by room: %w", err)
	}
	return nil
}
