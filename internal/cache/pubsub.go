package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Pub/sub channel names. InvalidateChannel carries cache-drop notices from the Admin API to every Resolver instance;
// EventsChannel carries relay domain events (new_message, room_update, channel_update) to the Live Push Hub for
// broadcast to connected dashboards.
const (
	InvalidateChannel = "relay.cache.invalidate"
	EventsChannel      = "relay.events"
)

// InvalidationMessage is published whenever an Admin API write changes data the Resolver may have cached. Either
// RoomID alone is set, invalidating every subscription pointing at that room, or GuildID and ChannelID are set
// together, invalidating a single (guild_id, channel_id) resolution.
type InvalidationMessage struct {
	RoomID    *int64  `json:"room_id,omitempty"`
	GuildID   *string `json:"guild_id,omitempty"`
	ChannelID *string `json:"channel_id,omitempty"`
}

// Event is a relay domain event broadcast to the Live Push Hub's dashboard subscribers.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// PubSub wraps the Valkey client's publish/subscribe operations for cache invalidation and dashboard event fan-out.
type PubSub struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewPubSub creates a new Valkey-backed pub/sub helper.
func NewPubSub(client *redis.Client, logger zerolog.Logger) *PubSub {
	return &PubSub{client: client, log: logger}
}

// PublishInvalidation publishes a cache invalidation notice. Best-effort: a publish failure is logged by the caller,
// never fatal, since the Resolver's own TTL bounds staleness regardless.
func (p *PubSub) PublishInvalidation(ctx context.Context, msg InvalidationMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal invalidation: %w", err)
	}
	return p.client.Publish(ctx, InvalidateChannel, data).Err()
}

// PublishEvent publishes a relay domain event for the Live Push Hub to fan out to connected dashboards.
func (p *PubSub) PublishEvent(ctx context.Context, eventType string, data any) error {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return p.client.Publish(ctx, EventsChannel, payload).Err()
}

// InvalidationHandler processes a decoded invalidation message against the room cache it guards.
type InvalidationHandler func(ctx context.Context, msg InvalidationMessage) error

// SubscribeInvalidation subscribes to the invalidation channel and invokes handle for each message until the context
// is cancelled. It blocks and should be run in its own goroutine.
func (p *PubSub) SubscribeInvalidation(ctx context.Context, handle InvalidationHandler) error {
	sub := p.client.Subscribe(ctx, InvalidateChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var inv InvalidationMessage
			if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
				p.log.Warn().Err(err).Str("payload", msg.Payload).Msg("invalid invalidation message")
				continue
			}
			if err := handle(ctx, inv); err != nil {
				p.log.Warn().Err(err).Msg("cache invalidation failed")
			}
		}
	}
}

// EventHandler processes a decoded relay event for the Live Push Hub.
type EventHandler func(ctx context.Context, event Event)

// SubscribeEvents subscribes to the events channel and invokes handle for each message until the context is
// cancelled. It blocks and should be run in its own goroutine.
func (p *PubSub) SubscribeEvents(ctx context.Context, handle EventHandler) error {
	sub := p.client.Subscribe(ctx, EventsChannel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				p.log.Warn().Err(err).Str("payload", msg.Payload).Msg("invalid relay event")
				continue
			}
			handle(ctx, event)
		}
	}
}
