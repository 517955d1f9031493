package api

import (
	gofiberws "github.com/gofiber/contrib/v3/websocket"
	"github.com/gofiber/fiber/v3"

	"github.com/uncord-chat/relay/internal/livepush"
)

// LivePushHandler serves the dashboard WebSocket upgrade endpoint.
type LivePushHandler struct {
	hub *livepush.Hub
}

// NewLivePushHandler creates a new live push handler.
func NewLivePushHandler(hub *livepush.Hub) *LivePushHandler {
	return &LivePushHandler{hub: hub}
}

// Upgrade handles GET /api/v1/live, upgrading the connection to a WebSocket and registering it with the hub for the
// lifetime of the connection.
func (h *LivePushHandler) Upgrade() fiber.Handler {
	return gofiberws.New(func(c *gofiberws.Conn) {
		h.hub.Register(c)
	})
}
