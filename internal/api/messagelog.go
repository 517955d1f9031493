package api

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/httputil"
	"github.com/uncord-chat/relay/internal/messagelog"
	"github.com/uncord-chat/relay/internal/relayerr"
)

// MessageLogHandler serves the message-log query and stats endpoints.
type MessageLogHandler struct {
	logs messagelog.Repository
	log  zerolog.Logger
}

// NewMessageLogHandler creates a new message log handler.
func NewMessageLogHandler(logs messagelog.Repository, logger zerolog.Logger) *MessageLogHandler {
	return &MessageLogHandler{logs: logs, log: logger}
}

// ListByRoom handles GET /api/v1/rooms/:id/messages.
func (h *MessageLogHandler) ListByRoom(c fiber.Ctx) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid room id")
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "limit must be between 1 and 200")
		}
		limit = n
	}

	var before *int64
	if v := c.Query("before"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "before must be an integer cursor")
		}
		before = &n
	}

	entries, err := h.logs.ListByRoom(c, roomID, before, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("list message log failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "failed to list messages")
	}
	return httputil.Success(c, entries)
}

// Stats handles GET /api/v1/stats.
func (h *MessageLogHandler) Stats(c fiber.Ctx) error {
	stats, err := h.logs.Stats(c)
	if err != nil {
		h.log.Error().Err(err).Msg("fetch stats failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "failed to fetch stats")
	}
	return httputil.Success(c, stats)
}

// StatsForRoom handles GET /api/v1/rooms/:id/stats.
func (h *MessageLogHandler) StatsForRoom(c fiber.Ctx) error {
	roomID, err := parseRoomID(c)
	if err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid room id")
	}

	stats, err := h.logs.StatsForRoom(c, roomID)
	if err != nil {
		h.log.Error().Err(err).Msg("fetch room stats failed")
		return httputil.Fail(c, fiber.StatusInternalServerError, relayerr.InternalError, "failed to fetch room stats")
	}
	return httputil.Success(c, stats)
}
