// Package ban implements the GuildBan entity. A banned guild's subscriptions
// are ignored by the relay path but retained for audit.
package ban

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for the ban package.
var (
	ErrNotFound      = errors.New("guild ban not found")
	ErrAlreadyBanned = errors.New("guild is already banned")
	ErrNotBanned     = errors.New("guild is not currently banned")
)

// GuildBan records a guild-level ban. guild_id is unique: a guild may only have one ban row, re-used across
// ban/unban cycles.
type GuildBan struct {
	GuildID    string
	GuildName  string
	Reason     string
	BannedBy   string
	BannedAt   time.Time
	IsActive   bool
	UnbannedAt *time.Time
	UnbannedBy *string
}

// BanParams groups the inputs for banning a guild.
type BanParams struct {
	GuildID   string
	GuildName string
	Reason    string
	BannedBy  string
}

// Repository defines the data-access contract for guild ban operations.
type Repository interface {
	// Ban inserts a new ban row, or reactivates an existing one for the same guild_id, recording the new reason and
	// actor. Returns ErrAlreadyBanned if the guild already has an active ban.
	Ban(ctx context.Context, params BanParams) (*GuildBan, error)
	Unban(ctx context.Context, guildID, unbannedBy string) error
	IsBanned(ctx context.Context, guildID string) (bool, error)
	Get(ctx context.Context, guildID string) (*GuildBan, error)
	List(ctx context.Context, activeOnly bool) ([]GuildBan, error)
}
