// Package room implements the Store's Room and RoomPermissions entities: the
// named multiplex groups that subscriptions bind channels to.
package room

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Sentinel errors for the room package.
var (
	ErrNotFound         = errors.New("room not found")
	ErrNameTaken        = errors.New("room name already in use by an active room")
	ErrNameLength       = errors.New("room name must be between 1 and 50 characters")
	ErrInvalidMaxGuilds = errors.New("max_servers must be a positive integer")
	ErrInvalidLimits    = errors.New("room permission limits out of range")
)

// Room is a named multiplex group. A message posted into one of its active
// subscriptions is delivered to every other active subscription.
type Room struct {
	ID         int64
	Name       string
	CreatedBy  string
	CreatedAt  time.Time
	MaxServers int
	IsActive   bool
}

// WithCount pairs a Room with the number of active subscriptions (bound channels) it has, for list_rooms.
type WithCount struct {
	Room
	ChannelCount int
}

// Permissions is the one-to-one policy row attached to a Room. It is created with defaults alongside the Room and
// stays in place when Repository.Delete deactivates the Room, since that keeps the rooms row.
type Permissions struct {
	RoomID              int64
	AllowURLs           bool
	AllowFiles          bool
	AllowMentions       bool
	AllowEmojis         bool
	EnableBadWordFilter bool
	BannedWords         []string
	MaxMessageLength    int
	RateLimitSeconds    int
}

// DefaultPermissions returns the permission set applied to a newly created room.
func DefaultPermissions(roomID int64) Permissions {
	return Permissions{
		RoomID:              roomID,
		AllowURLs:           true,
		AllowFiles:          true,
		AllowMentions:       false,
		AllowEmojis:         true,
		EnableBadWordFilter: false,
		BannedWords:         nil,
		MaxMessageLength:    2000,
		RateLimitSeconds:    0,
	}
}

// CreateParams groups the inputs for create_room.
type CreateParams struct {
	Name       string
	CreatedBy  string
	MaxServers int
}

// UpdateParams groups the optional fields for update_room. A nil pointer means "no change."
type UpdateParams struct {
	Name       *string
	MaxServers *int
	IsActive   *bool
}

// PermissionsUpdateParams groups the optional fields for updating RoomPermissions.
type PermissionsUpdateParams struct {
	AllowURLs           *bool
	AllowFiles          *bool
	AllowMentions       *bool
	AllowEmojis         *bool
	EnableBadWordFilter *bool
	BannedWords         []string
	MaxMessageLength    *int
	RateLimitSeconds    *int
}

// ValidateName checks that a room name is between 1 and 50 visible (rune) characters after trimming whitespace. It
// returns the trimmed name on success.
func ValidateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if n := utf8.RuneCountInString(trimmed); n < 1 || n > 50 {
		return "", ErrNameLength
	}
	return trimmed, nil
}

// ValidateMaxServers checks that max_servers is a positive integer.
func ValidateMaxServers(n int) error {
	if n < 1 {
		return ErrInvalidMaxGuilds
	}
	return nil
}

// ValidatePermissionLimits checks max_message_length (1-4000) and rate_limit_seconds (0-60).
func ValidatePermissionLimits(maxMessageLength, rateLimitSeconds int) error {
	if maxMessageLength < 1 || maxMessageLength > 4000 {
		return ErrInvalidLimits
	}
	if rateLimitSeconds < 0 || rateLimitSeconds > 60 {
		return ErrInvalidLimits
	}
	return nil
}

// Repository defines the data-access contract for Room and RoomPermissions operations.
type Repository interface {
	List(ctx context.Context, includeInactive bool) ([]WithCount, error)
	GetByID(ctx context.Context, id int64) (*Room, error)
	GetByName(ctx context.Context, name string) (*Room, error)
	Create(ctx context.Context, params CreateParams) (*Room, *Permissions, error)
	Update(ctx context.Context, id int64, params UpdateParams) (*Room, error)
	Delete(ctx context.Context, id int64) error

	GetPermissions(ctx context.Context, roomID int64) (*Permissions, error)
	UpdatePermissions(ctx context.Context, roomID int64, params PermissionsUpdateParams) (*Permissions, error)
}
