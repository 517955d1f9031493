package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/cache"
	"github.com/uncord-chat/relay/internal/httputil"
	"github.com/uncord-chat/relay/internal/relayerr"
	"github.com/uncord-chat/relay/internal/room"
)

// RoomHandler serves room and room-permissions endpoints.
type RoomHandler struct {
	rooms  room.Repository
	pubsub *cache.PubSub
	log    zerolog.Logger
}

// NewRoomHandler creates a new room handler.
func NewRoomHandler(rooms room.Repository, pubsub *cache.PubSub, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, pubsub: pubsub, log: logger}
}

type createRoomRequest struct {
	Name       string `json:"name"`
	MaxServers int    `json:"max_servers"`
}

type updateRoomRequest struct {
	Name       *string `json:"name"`
	MaxServers *int    `json:"max_servers"`
	IsActive   *bool   `json:"is_active"`
}

type updatePermissionsRequest struct {
	AllowURLs           *bool    `json:"allow_urls"`
	AllowFiles          *bool    `json:"allow_files"`
	AllowMentions       *bool    `json:"allow_mentions"`
	AllowEmojis         *bool    `json:"allow_emojis"`
	EnableBadWordFilter *bool    `json:"enable_bad_word_filter"`
	BannedWords         []string `json:"banned_words"`
	MaxMessageLength    *int     `json:"max_message_length"`
	RateLimitSeconds    *int     `json:"rate_limit_seconds"`
}

// List handles GET /api/v1/rooms.
func (h *RoomHandler) List(c fiber.Ctx) error {
	includeInactive := c.Query("include_inactive") == "true"

	rooms, err := h.rooms.List(c, includeInactive)
	if err != nil {
		h.log.Error().Err(err).Msg("list rooms failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "failed to list rooms")
	}
	return httputil.Success(c, rooms)
}

// Create handles POST /api/v1/rooms.
func (h *RoomHandler) Create(c fiber.Ctx) error {
	var body createRoomRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid request body")
	}

	name, err := room.ValidateName(body.Name)
	if err != nil {
		return h.mapError(c, err)
	}
	if err := room.ValidateMaxServers(body.MaxServers); err != nil {
		return h.mapError(c, err)
	}

	createdBy, _ := adminUsername(c)
	rm, perms, err := h.rooms.Create(c, room.CreateParams{Name: name, MaxServers: body.MaxServers, CreatedBy: createdBy})
	if err != nil {
		return h.mapError(c, err)
	}

	return httputil.SuccessStatus(c, fiber.StatusCreated, fiber.Map{"room": rm, "permissions": perms})
}

// Get handles GET /api/v1/rooms/:id.
func (h *RoomHandler) Get(c fiber.Ctx) error {
	id, err := parseRoomID(c)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid room id")
	}

	rm, err := h.rooms.GetByID(c, id)
	if err != nil {
		return h.mapError(c, err)
	}
	perms, err := h.rooms.GetPermissions(c, id)
	if err != nil {
		return h.mapError(c, err)
	}
	return httputil.Success(c, fiber.Map{"room": rm, "permissions": perms})
}

// Update handles PATCH /api/v1/rooms/:id.
func (h *RoomHandler) Update(c fiber.Ctx) error {
	id, err := parseRoomID(c)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid room id")
	}

	var body updateRoomRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid request body")
	}

	params := room.UpdateParams{Name: body.Name, MaxServers: body.MaxServers, IsActive: body.IsActive}
	if params.Name != nil {
		name, err := room.ValidateName(*params.Name)
		if err != nil {
			return h.mapError(c, err)
		}
		params.Name = &name
	}
	if params.MaxServers != nil {
		if err := room.ValidateMaxServers(*params.MaxServers); err != nil {
			return h.mapError(c, err)
		}
	}

	rm, err := h.rooms.Update(c, id, params)
	if err != nil {
		return h.mapError(c, err)
	}

	h.invalidateRoom(c, id)
	return httputil.Success(c, rm)
}

// Delete handles DELETE /api/v1/rooms/:id (soft-deactivate, per spec — rooms are never hard-deleted while
// message_log rows reference them).
func (h *RoomHandler) Delete(c fiber.Ctx) error {
	id, err := parseRoomID(c)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid room id")
	}

	if err := h.rooms.Delete(c, id); err != nil {
		return h.mapError(c, err)
	}

	h.invalidateRoom(c, id)
	return c.SendStatus(fiber.StatusNoContent)
}

// UpdatePermissions handles PATCH /api/v1/rooms/:id/permissions.
func (h *RoomHandler) UpdatePermissions(c fiber.Ctx) error {
	id, err := parseRoomID(c)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid room id")
	}

	var body updatePermissionsRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid request body")
	}

	maxLen := 2000
	if body.MaxMessageLength != nil {
		maxLen = *body.MaxMessageLength
	}
	rateLimit := 0
	if body.RateLimitSeconds != nil {
		rateLimit = *body.RateLimitSeconds
	}
	if body.MaxMessageLength != nil || body.RateLimitSeconds != nil {
		if err := room.ValidatePermissionLimits(maxLen, rateLimit); err != nil {
			return h.mapError(c, err)
		}
	}

	perms, err := h.rooms.UpdatePermissions(c, id, room.PermissionsUpdateParams{
		AllowURLs:           body.AllowURLs,
		AllowFiles:          body.AllowFiles,
		AllowMentions:       body.AllowMentions,
		AllowEmojis:         body.AllowEmojis,
		EnableBadWordFilter: body.EnableBadWordFilter,
		BannedWords:         body.BannedWords,
		MaxMessageLength:    body.MaxMessageLength,
		RateLimitSeconds:    body.RateLimitSeconds,
	})
	if err != nil {
		return h.mapError(c, err)
	}

	h.invalidateRoom(c, id)
	return httputil.Success(c, perms)
}

func (h *RoomHandler) invalidateRoom(c fiber.Ctx, roomID int64) {
	if h.pubsub == nil {
		return
	}
	if err := h.pubsub.PublishInvalidation(c, cache.InvalidationMessage{RoomID: &roomID}); err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Msg("failed to publish room cache invalidation")
	}
	if err := h.pubsub.PublishEvent(c, "room_update", map[string]int64{"room_id": roomID}); err != nil {
		h.log.Warn().Err(err).Int64("room_id", roomID).Msg("failed to publish room_update event")
	}
}

func (h *RoomHandler) mapError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, room.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, relayerr.NotFound, "room not found")
	case errors.Is(err, room.ErrNameTaken):
		return httputil.Fail(c, fiber.StatusConflict, relayerr.Conflict, err.Error())
	case errors.Is(err, room.ErrNameLength), errors.Is(err, room.ErrInvalidMaxGuilds), errors.Is(err, room.ErrInvalidLimits):
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "room").Msg("unhandled room error")
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "an internal error occurred")
	}
}

func parseRoomID(c fiber.Ctx) (int64, error) {
	return strconv.ParseInt(c.Params("id"), 10, 64)
}

// adminUsername extracts the operator identity stashed on the request context by the admin auth middleware.
func adminUsername(c fiber.Ctx) (string, bool) {
	v, ok := c.Locals("adminUsername").(string)
	return v, ok
}
