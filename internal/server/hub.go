package server

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tessro/ensemble/internal/protocol"
)

const (
	// sendBuffer is the per-connection outbound queue. A client that falls
	// this far behind gets dropped rather than slow everyone else down.
	sendBuffer = 32

	writeTimeout = 10 * time.Second
)

// Hub fans state-change events out to every connected client. Delivery is
// independent per connection: a stalled or closed socket never blocks the
// others, and there is no replay — clients that missed broadcasts catch up
// through the state-fetch endpoint.
type Hub struct {
	logger zerolog.Logger
	now    func() time.Time

	mu    sync.Mutex
	conns map[*Conn]struct{}
}

// Conn is one push-channel subscriber.
type Conn struct {
	DeviceID string

	ws   *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewHub creates a hub stamping messages with the given clock.
func NewHub(logger zerolog.Logger, now func() time.Time) *Hub {
	if now == nil {
		now = time.Now
	}
	return &Hub{
		logger: logger.With().Str("component", "hub").Logger(),
		now:    now,
		conns:  make(map[*Conn]struct{}),
	}
}

// Add registers a websocket connection and starts its writer goroutine.
func (h *Hub) Add(ws *websocket.Conn, deviceID string) *Conn {
	c := &Conn{
		DeviceID: deviceID,
		ws:       ws,
		send:     make(chan []byte, sendBuffer),
	}
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	return c
}

// Remove unregisters a connection and closes its socket.
func (h *Hub) Remove(c *Conn) {
	h.mu.Lock()
	if _, ok := h.conns[c]; ok {
		delete(h.conns, c)
		close(c.send)
	}
	h.mu.Unlock()

	c.once.Do(func() { _ = c.ws.Close() })
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Broadcast sends a message to every connection. The envelope is stamped
// with the server clock and marshaled once. Sends never block: a full
// buffer means the message is dropped for that client and logged, and the
// client's own catch-up path is the recovery mechanism.
func (h *Hub) Broadcast(t protocol.MessageType, data interface{}) {
	env, err := protocol.NewEnvelope(t, data, h.now())
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(t)).Msg("Failed to build envelope")
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(t)).Msg("Failed to marshal envelope")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn().
				Str("device", c.DeviceID).
				Str("type", string(t)).
				Msg("Dropping broadcast for slow client")
		}
	}
}

// Send queues a message for one connection, with the same non-blocking
// semantics as Broadcast.
func (h *Hub) Send(c *Conn, t protocol.MessageType, data interface{}) {
	env, err := protocol.NewEnvelope(t, data, h.now())
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(t)).Msg("Failed to build envelope")
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error().Err(err).Str("type", string(t)).Msg("Failed to marshal envelope")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.conns[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
		h.logger.Warn().
			Str("device", c.DeviceID).
			Str("type", string(t)).
			Msg("Dropping message for slow client")
	}
}

// writePump drains a connection's send queue until it closes or a write
// fails, then detaches the connection.
func (h *Hub) writePump(c *Conn) {
	for msg := range c.send {
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.logger.Debug().
				Str("device", c.DeviceID).
				Err(err).
				Msg("Write failed, detaching client")
			h.Remove(c)
			// Drain whatever is left so Broadcast never blocks.
			for range c.send {
			}
			return
		}
	}
	c.once.Do(func() { _ = c.ws.Close() })
}
