// Package livepush implements the Live Push Hub: a WebSocket broadcast of
// relay domain events (new_message, room_update, channel_update) to
// connected operator dashboards.
//
// Unlike the teacher's gateway.Hub, connections here carry no session state
// and there is no resume/replay protocol (REDESIGN FLAG: dashboards are
// read-only observers, not reconnecting chat clients — a missed event is
// acceptable since the Admin API can always be polled for current state).
package livepush

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	gofiberws "github.com/gofiber/contrib/v3/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/uncord-chat/relay/internal/cache"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// Hub tracks every connected dashboard and broadcasts relay events to all of them.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*connection
	log     zerolog.Logger
}

// connection wraps one dashboard's WebSocket with a buffered send channel, so one slow reader can't block the
// broadcast loop for everyone else.
type connection struct {
	conn *gofiberws.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

// New creates a new, empty Live Push Hub.
func New(logger zerolog.Logger) *Hub {
	return &Hub{clients: make(map[string]*connection), log: logger.With().Str("component", "livepush").Logger()}
}

// Register adds a new dashboard connection and starts its write pump. It blocks until the connection closes, so
// callers should invoke it from the WebSocket upgrade handler's own goroutine.
func (h *Hub) Register(conn *gofiberws.Conn) {
	id := uuid.NewString()
	client := &connection{conn: conn, send: make(chan []byte, sendBuffer), done: make(chan struct{})}

	h.mu.Lock()
	h.clients[id] = client
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
		client.close()
	}()

	h.writePump(client)
}

// Broadcast encodes event as JSON and fans it out to every connected dashboard. A client whose send buffer is full is
// dropped rather than allowed to stall the broadcast (REDESIGN FLAG: no backpressure or replay — see package doc).
func (h *Hub) Broadcast(event cache.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal live push event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.log.Warn().Str("connection_id", id).Msg("dashboard connection send buffer full, dropping event")
		}
	}
}

// ConnectionCount reports how many dashboards are currently connected.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) writePump(client *connection) {
	for {
		select {
		case <-client.done:
			return
		case payload := <-client.send:
			_ = client.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}
}

func (c *connection) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
