package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/httputil"
	"github.com/uncord-chat/relay/internal/platform"
	"github.com/uncord-chat/relay/internal/relay"
	"github.com/uncord-chat/relay/internal/relayerr"
)

// IngestHandler is the relay's inbound boundary with the chat platform: the webhook callback the platform (or a
// gateway-SDK bridge process sitting in front of it) posts every message event to. The real gateway connection is
// out of scope; this is the narrow, concrete surface that connection would call.
type IngestHandler struct {
	coordinator *relay.Coordinator
	log         zerolog.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(coordinator *relay.Coordinator, logger zerolog.Logger) *IngestHandler {
	return &IngestHandler{coordinator: coordinator, log: logger}
}

type ingestAttachment struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
}

type ingestRequest struct {
	GuildID             string             `json:"guild_id"`
	ChannelID           string             `json:"channel_id"`
	MessageID           string             `json:"message_id"`
	AuthorID            string             `json:"author_id"`
	AuthorDisplay       string             `json:"author_display"`
	Content             string             `json:"content"`
	Attachments         []ingestAttachment `json:"attachments"`
	ReferencedMessageID *string            `json:"referenced_message_id"`
}

// Accept handles POST /api/v1/ingest. It validates the envelope, then hands the event to the Relay Coordinator on a
// detached goroutine so the platform callback is never blocked on the relay pipeline (reply resolution, fan-out, and
// retries can all take longer than an acceptable webhook response time).
func (h *IngestHandler) Accept(c fiber.Ctx) error {
	var body ingestRequest
	if err := c.Bind().Body(&body); err != nil {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "invalid request body")
	}
	if body.GuildID == "" || body.ChannelID == "" || body.MessageID == "" || body.AuthorID == "" {
		return httputil.Fail(c, fiber.StatusBadRequest, relayerr.ValidationError, "guild_id, channel_id, message_id and author_id are required")
	}

	attachments := make([]platform.Attachment, 0, len(body.Attachments))
	for _, a := range body.Attachments {
		attachments = append(attachments, platform.Attachment{URL: a.URL, Filename: a.Filename, ContentType: a.ContentType})
	}

	event := platform.InboundEvent{
		GuildID:             body.GuildID,
		ChannelID:           body.ChannelID,
		MessageID:           body.MessageID,
		AuthorID:            body.AuthorID,
		AuthorDisplay:       body.AuthorDisplay,
		Content:             body.Content,
		Attachments:         attachments,
		ReferencedMessageID: body.ReferencedMessageID,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		outcome, err := h.coordinator.HandleInbound(ctx, event)
		if err != nil {
			h.log.Error().Err(err).Str("guild_id", event.GuildID).Str("channel_id", event.ChannelID).Msg("relay pipeline failed")
			return
		}
		h.log.Debug().Str("outcome", string(outcome)).Str("message_id", event.MessageID).Msg("inbound event handled")
	}()

	return c.SendStatus(fiber.StatusAccepted)
}
