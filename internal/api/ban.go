package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/ban"
	"github.com/uncord-chat/relay/internal/httputil"
	"github.com/uncord-chat/relay/internal/relayerr"
)

// BanHandler serves the guild-ban endpoints.
type BanHandler struct {
	bans ban.Repository
	log  zerolog.Logger
}

// NewBanHandler creates a new ban handler.
func NewBanHandler(bans ban.Repository, logger zerolog.Logger) *BanHandler {
	return &BanHandler{bans: bans, log: logger}
}

type banRequest struct {
	GuildID   string `json:"guild_id"`
	GuildName string `json:"guild_name"`
	Reason    string `json:"reason"`
}

// List handles GET /api/v1/bans.
func (h *BanHandler) List(c fiber.Ctx) error {
	activeOnly := c.Query("include_inactive") != "true"
	bans, err := h.bans.List(c, activeOnly)
	if err != nil {
		h.log.Error().Err(err).Msg("list bans failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "failed to list bans")
	}
	return httputil.Success(c, bans)
}

// Ban handles POST /api/v1/bans.
func (h *BanHandler) Ban(c fiber.Ctx) error {
	var body banRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid request body")
	}
	if body.GuildID == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "guild_id is required")
	}

	bannedBy, _ := adminUsername(c)
	result, err := h.bans.Ban(c, ban.BanParams{
		GuildID:   body.GuildID,
		GuildName: body.GuildName,
		Reason:    body.Reason,
		BannedBy:  bannedBy,
	})
	if err != nil {
		return h.mapError(c, err)
	}
	return httputil.SuccessStatus(c, fiber.StatusCreated, result)
}

// Unban handles DELETE /api/v1/bans/:guildID.
func (h *BanHandler) Unban(c fiber.Ctx) error {
	guildID := c.Params("guildID")
	if guildID == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "guild id is required")
	}

	unbannedBy, _ := adminUsername(c)
	if err := h.bans.Unban(c, guildID, unbannedBy); err != nil {
		return h.mapError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *BanHandler) mapError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ban.ErrAlreadyBanned):
		return httputil.Fail(c, fiber.StatusConflict, relayerr.Conflict, err.Error())
	case errors.Is(err, ban.ErrNotBanned), errors.Is(err, ban.ErrNotFound):
		return httputil.Fail(c, fiber.StatusNotFound, relayerr.NotFound, err.Error())
	default:
		h.log.Error().Err(err).Str("handler", "ban").Msg("unhandled ban error")
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "an internal error occurred")
	}
}
