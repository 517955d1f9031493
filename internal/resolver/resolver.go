// Package resolver implements the Resolver component: cache-then-store
// lookup of (guild_id, channel_id) to the Room and RoomPermissions that
// govern it, with guild-ban and room-inactive short-circuits.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/ban"
	"github.com/uncord-chat/relay/internal/cache"
	"github.com/uncord-chat/relay/internal/room"
	"github.com/uncord-chat/relay/internal/subscription"
)

// Sentinel errors for the resolver package, mirroring spec's resolve() contract.
var (
	ErrNotSubscribed = errors.New("channel is not subscribed to any active room")
	ErrRoomInactive  = errors.New("room is not active")
	ErrGuildBanned   = errors.New("guild is banned")
)

// Resolved is the outcome of a successful resolve.
type Resolved struct {
	Room        room.Room
	Permissions room.Permissions
}

// Resolver looks up the room governing a (guild_id, channel_id) pair, checking the cache first and falling back to
// the Store on a miss. It also enforces the guild-ban and room-active invariants that make a subscription usable.
type Resolver struct {
	subs      subscription.Repository
	rooms     room.Repository
	bans      ban.Repository
	cache     *cache.RoomCache
	subsCache *cache.SubscriptionCache
	log       zerolog.Logger
}

// New creates a new Resolver.
func New(subs subscription.Repository, rooms room.Repository, bans ban.Repository, roomCache *cache.RoomCache, subCache *cache.SubscriptionCache, logger zerolog.Logger) *Resolver {
	return &Resolver{subs: subs, rooms: rooms, bans: bans, cache: roomCache, subsCache: subCache, log: logger}
}

// Resolve returns the Room and RoomPermissions governing (guild_id, channel_id), or one of ErrNotSubscribed,
// ErrRoomInactive, ErrGuildBanned.
func (r *Resolver) Resolve(ctx context.Context, guildID, channelID string) (*Resolved, error) {
	banned, err := r.bans.IsBanned(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("check guild ban: %w", err)
	}
	if banned {
		return nil, ErrGuildBanned
	}

	// Tombstone check before the RoomCache probe: once past the ban check, a chatty channel that was never subscribed
	// never reaches the Store's subscription/room lookups, or even the (more expensive, room+permissions-carrying)
	// RoomCache entry that only exists for actually-subscribed channels.
	if _, tombstone, found, err := r.subsCache.Get(ctx, guildID, channelID); err != nil {
		r.log.Warn().Err(err).Msg("subscription cache read failed, falling back to store")
	} else if found && tombstone {
		return nil, ErrNotSubscribed
	}

	if cached, ok, err := r.cache.Get(ctx, guildID, channelID); err != nil {
		r.log.Warn().Err(err).Msg("room cache read failed, falling back to store")
	} else if ok {
		if !cached.Room.IsActive {
			return nil, ErrRoomInactive
		}
		return &Resolved{Room: cached.Room, Permissions: cached.Permissions}, nil
	}

	return r.resolveFromStore(ctx, guildID, channelID)
}

func (r *Resolver) resolveFromStore(ctx context.Context, guildID, channelID string) (*Resolved, error) {
	sub, err := r.subs.GetActive(ctx, guildID, channelID)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			if err := r.subsCache.SetTombstone(ctx, guildID, channelID); err != nil {
				r.log.Warn().Err(err).Msg("subscription tombstone write failed")
			}
			return nil, ErrNotSubscribed
		}
		return nil, fmt.Errorf("lookup subscription: %w", err)
	}

	rm, err := r.rooms.GetByID(ctx, sub.RoomID)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			if err := r.subsCache.SetTombstone(ctx, guildID, channelID); err != nil {
				r.log.Warn().Err(err).Msg("subscription tombstone write failed")
			}
			return nil, ErrNotSubscribed
		}
		return nil, fmt.Errorf("lookup room: %w", err)
	}

	perms, err := r.rooms.GetPermissions(ctx, sub.RoomID)
	if err != nil {
		return nil, fmt.Errorf("lookup room permissions: %w", err)
	}

	if err := r.cache.Set(ctx, guildID, channelID, cache.ResolvedRoom{Room: *rm, Permissions: *perms}); err != nil {
		r.log.Warn().Err(err).Msg("room cache write failed")
	}
	if err := r.subsCache.SetActive(ctx, guildID, channelID, rm.ID); err != nil {
		r.log.Warn().Err(err).Msg("subscription cache write failed")
	}

	if !rm.IsActive {
		return nil, ErrRoomInactive
	}
	return &Resolved{Room: *rm, Permissions: *perms}, nil
}
