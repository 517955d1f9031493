package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/ban"
	"github.com/uncord-chat/relay/internal/cache"
	"github.com/uncord-chat/relay/internal/httputil"
	"github.com/uncord-chat/relay/internal/relayerr"
	"github.com/uncord-chat/relay/internal/room"
	"github.com/uncord-chat/relay/internal/subscription"
)

// SubscriptionHandler serves channel-binding endpoints: registering and deactivating a room subscription.
type SubscriptionHandler struct {
	subs   subscription.Repository
	rooms  room.Repository
	bans   ban.Repository
	pubsub *cache.PubSub
	log    zerolog.Logger
}

// NewSubscriptionHandler creates a new subscription handler.
func NewSubscriptionHandler(subs subscription.Repository, rooms room.Repository, bans ban.Repository, pubsub *cache.PubSub, logger zerolog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subs: subs, rooms: rooms, bans: bans, pubsub: pubsub, log: logger}
}

type registerRequest struct {
	GuildID     string `json:"guild_id"`
	ChannelID   string `json:"channel_id"`
	GuildName   string `json:"guild_name"`
	ChannelName string `json:"channel_name"`
}

// Register handles POST /api/v1/rooms/:id/subscriptions.
func (h *SubscriptionHandler) Register(c fiber.Ctx) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid room id")
	}

	var body registerRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid request body")
	}
	if body.GuildID == "" || body.ChannelID == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "guild_id and channel_id are required")
	}

	banned, err := h.bans.IsBanned(c, body.GuildID)
	if err != nil {
		h.log.Error().Err(err).Msg("ban check failed during registration")
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "registration failed")
	}
	if banned {
		return httputil.Fail(c, fiber.StatusForbidden, relayerr.GuildBanned, "guild is banned")
	}

	rm, err := h.rooms.GetByID(c, roomID)
	if err != nil {
		if errors.Is(err, room.ErrNotFound) {
			return httputil.Fail(c, fiber.StatusNotFound, relayerr.NotFound, "room not found")
		}
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "registration failed")
	}
	if !rm.IsActive {
		return httputil.Fail(c, fiber.StatusForbidden, relayerr.RoomInactive, "room is not active")
	}

	guildCount, err := h.subs.CountDistinctActiveGuilds(c, roomID)
	if err != nil {
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "registration failed")
	}
	if guildCount >= rm.MaxServers {
		if existing, err := h.subs.ListByRoom(c, roomID, true); err == nil {
			alreadyIn := false
			for _, s := range existing {
				if s.GuildID == body.GuildID {
					alreadyIn = true
					break
				}
			}
			if !alreadyIn {
				return httputil.Fail(c, fiber.StatusForbidden, relayerr.Forbidden, "room has reached its max_servers limit")
			}
		}
	}

	registeredBy, _ := adminUsername(c)
	sub, err := h.subs.Register(c, subscription.RegisterParams{
		RoomID:       roomID,
		GuildID:      body.GuildID,
		ChannelID:    body.ChannelID,
		GuildName:    body.GuildName,
		ChannelName:  body.ChannelName,
		RegisteredBy: registeredBy,
	})
	if err != nil {
		return h.mapError(c, err)
	}

	if h.pubsub != nil {
		if err := h.pubsub.PublishInvalidation(c, cache.InvalidationMessage{GuildID: &body.GuildID, ChannelID: &body.ChannelID}); err != nil {
			h.log.Warn().Err(err).Msg("failed to publish subscription cache invalidation")
		}
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, sub)
}

// Deactivate handles DELETE /api/v1/rooms/:id/subscriptions/:guildID/:channelID.
func (h *SubscriptionHandler) Deactivate(c fiber.Ctx) error {
	guildID := c.Params("guildID")
	channelID := c.Params("channelID")
	if guildID == "" || channelID == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "guild id and channel id are required")
	}

	if err := h.subs.Deactivate(c, guildID, channelID); err != nil {
		return h.mapError(c, err)
	}

	if h.pubsub != nil {
		if err := h.pubsub.PublishInvalidation(c, cache.InvalidationMessage{GuildID: &guildID, ChannelID: &channelID}); err != nil {
			h.log.Warn().Err(err).Msg("failed to publish subscription cache invalidation")
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// List handles GET /api/v1/rooms/:id/subscriptions.
func (h *SubscriptionHandler) List(c fiber.Ctx) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid room id")
	}
	activeOnly := c.Query("include_inactive") != "true"

	subs, err := h.subs.ListByRoom(c, roomID, activeOnly)
	if err != nil {
		h.log.Error().Err(err).Msg("list subscriptions failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "failed to list subscriptions")
	}
	return httputil.Success(c, subs)
}

func (h *SubscriptionHandler) mapError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, subscription.ErrAlreadyBound):
		return httputil.Fail(c, fiber.StatusConflict, relayerr.Conflict, err.Error())
	case errors.Is(err, subscription.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, relayerr.NotFound, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "subscription").Msg("unhandled subscription error")
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "an internal error occurred")
	}
}
