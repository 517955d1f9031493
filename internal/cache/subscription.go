package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SubscriptionSnapshotTTL is the TTL for a positive chan:{guild_id}:{channel_id} → room_id entry.
const SubscriptionSnapshotTTL = 7200 * time.Second

// TombstoneTTL is the TTL for a negative chan:{guild_id}:{channel_id} entry: a cached "definitely not subscribed"
// answer. Kept short, relative to the snapshot TTL, so a channel that registers a subscription shortly after being
// probed doesn't stay wrongly rejected for hours.
const TombstoneTTL = 300 * time.Second

const subscriptionPrefix = "chan"

// subscriptionEntry is the JSON payload stored under a chan:{guild_id}:{channel_id} key. Tombstone distinguishes
// "probed and confirmed not subscribed" from "not yet looked up" — the zero value of the type is never written.
type subscriptionEntry struct {
	RoomID    int64 `json:"room_id"`
	Tombstone bool  `json:"tombstone"`
}

// SubscriptionKey builds the cache key for a (guild_id, channel_id) subscription lookup.
func SubscriptionKey(guildID, channelID string) string {
	return subscriptionPrefix + ":" + guildID + ":" + channelID
}

// SubscriptionCache is the Resolver's negative-cache layer: it answers "is this channel subscribed at all" without
// touching the Store, so a chatty channel that was never registered to a room doesn't cost a Store read on every
// message it sends.
type SubscriptionCache struct {
	client *redis.Client
}

// NewSubscriptionCache creates a new Valkey-backed subscription cache.
func NewSubscriptionCache(client *redis.Client) *SubscriptionCache {
	return &SubscriptionCache{client: client}
}

// Get returns the cached subscription state for (guild_id, channel_id). found is false when there is no entry at
// all (the Resolver must consult the Store). When found is true and tombstone is true, the channel is known not to
// be subscribed; otherwise roomID names the room it resolves to.
func (c *SubscriptionCache) Get(ctx context.Context, guildID, channelID string) (roomID int64, tombstone bool, found bool, err error) {
	val, err := c.client.Get(ctx, SubscriptionKey(guildID, channelID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("subscription cache get: %w", err)
	}

	var entry subscriptionEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return 0, false, false, fmt.Errorf("unmarshal cached subscription: %w", err)
	}
	return entry.RoomID, entry.Tombstone, true, nil
}

// SetActive records that (guild_id, channel_id) resolves to roomID, with the long snapshot TTL.
func (c *SubscriptionCache) SetActive(ctx context.Context, guildID, channelID string, roomID int64) error {
	return c.write(ctx, guildID, channelID, subscriptionEntry{RoomID: roomID}, SubscriptionSnapshotTTL)
}

// SetTombstone records that (guild_id, channel_id) is known not to be subscribed, with the short tombstone TTL.
func (c *SubscriptionCache) SetTombstone(ctx context.Context, guildID, channelID string) error {
	return c.write(ctx, guildID, channelID, subscriptionEntry{Tombstone: true}, TombstoneTTL)
}

func (c *SubscriptionCache) write(ctx context.Context, guildID, channelID string, entry subscriptionEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal subscription entry: %w", err)
	}
	if err := c.client.Set(ctx, SubscriptionKey(guildID, channelID), data, ttl).Err(); err != nil {
		return fmt.Errorf("subscription cache set: %w", err)
	}
	return nil
}

// DeleteExact drops the cached subscription state for a single (guild_id, channel_id) pair, used on subscribe/
// unsubscribe so a stale tombstone or snapshot never outlives the binding it describes.
func (c *SubscriptionCache) DeleteExact(ctx context.Context, guildID, channelID string) error {
	return c.client.Del(ctx, SubscriptionKey(guildID, channelID)).Err()
}

// DeleteByRoom drops the cached subscription snapshots named by allSubscriptionKeys, used when a room is deactivated or
// every one of its bindings is otherwise invalidated in bulk.
func (c *SubscriptionCache) DeleteByRoom(ctx context.Context, allSubscriptionKeys []string) error {
	if len(allSubscriptionKeys) == 0 {
		return nil
	}
	keys := make([]string, len(allSubscriptionKeys))
	copy(keys, allSubscriptionKeys)
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("subscription cache delete by room: %w", err)
	}
	return nil
}
