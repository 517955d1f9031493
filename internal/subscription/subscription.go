// Package subscription implements the Channel Binding entity: the binding of
// a specific channel in a specific guild to exactly one room.
package subscription

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the subscription package.
var (
	ErrNotFound      = errors.New("subscription not found")
	ErrAlreadyBound  = errors.New("channel is already bound to an active subscription")
	ErrRoomFull      = errors.New("room has reached its max_servers limit of distinct active guilds")
	ErrRoomInactive  = errors.New("room is not active")
	ErrGuildBanned   = errors.New("guild is banned")
	ErrRoomNotFound  = errors.New("room not found")
)

// Subscription binds one channel in one guild to a room. (guild_id, channel_id) is globally unique among active
// subscriptions.
type Subscription struct {
	RoomID        int64
	GuildID       string
	ChannelID     string
	GuildName     string
	ChannelName   string
	RegisteredBy  string
	RegisteredAt  time.Time
	IsActive      bool
	LastMessageAt *time.Time
}

// RegisterParams groups the inputs for register_channel.
type RegisterParams struct {
	RoomID       int64
	GuildID      string
	ChannelID    string
	GuildName    string
	ChannelName  string
	RegisteredBy string
}

// Repository defines the data-access contract for subscription operations.
type Repository interface {
	// Register creates a new active subscription binding channel_id in guild_id to room_id. Callers verify beforehand
	// that the room is active, the guild not banned, and the room not over max_servers; Register runs in its own
	// transaction and itself only enforces the (guild_id, channel_id) uniqueness constraint at the database level.
	Register(ctx context.Context, params RegisterParams) (*Subscription, error)
	Deactivate(ctx context.Context, guildID, channelID string) error
	GetActive(ctx context.Context, guildID, channelID string) (*Subscription, error)
	ListByRoom(ctx context.Context, roomID int64, activeOnly bool) ([]Subscription, error)
	CountDistinctActiveGuilds(ctx context.Context, roomID int64) (int, error)
	TouchLastMessage(ctx context.Context, guildID, channelID string, at time.Time) error
}
