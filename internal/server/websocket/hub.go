// Package websocket pushes table events to WebSocket clients.
package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/lbmap/pkg/constants"
)

// Message is one event as written to a WebSocket peer.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Type      string    `json:"type"`
	Table     string    `json:"table,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Hub fans table events out to the connected clients. Each client sees the
// events of its own table, or of every table when it subscribed to none.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	stopped bool

	messages chan Message
	logger   *zerolog.Logger
}

// NewHub creates a hub. Clients may join before Run is called.
func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		clients:  make(map[*Client]struct{}),
		messages: make(chan Message, constants.ChannelBufferSize),
		logger:   logger,
	}
}

// Run delivers messages until ctx is canceled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.stopped = true
			for c := range h.clients {
				h.drop(c)
			}
			h.mu.Unlock()
			h.logger.Info().Msg("WebSocket hub shut down")
			return

		case msg := <-h.messages:
			h.deliver(msg)
		}
	}
}

// deliver queues msg on every interested client. A client whose queue is
// full is disconnected rather than allowed to stall the hub.
func (h *Hub) deliver(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.wants(msg.Table) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.logger.Warn().Str("client_id", c.id).Msg("WebSocket client too slow, disconnecting")
			h.drop(c)
		}
	}
}

// drop must be called with mu held.
func (h *Hub) drop(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Register adds a client to the hub. A stopped hub closes the client's
// queue instead, which ends its WritePump.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		close(c.send)
		return
	}
	h.clients[c] = struct{}{}
	h.logger.Debug().
		Str("client_id", c.id).
		Str("table", c.table).
		Int("total_clients", len(h.clients)).
		Msg("WebSocket client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.drop(c)
	h.logger.Debug().
		Str("client_id", c.id).
		Int("total_clients", len(h.clients)).
		Msg("WebSocket client disconnected")
}

// Broadcast queues a message for delivery. When the hub is backed up the
// message is dropped.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.messages <- msg:
	default:
		h.logger.Warn().Str("type", msg.Type).Msg("WebSocket queue full, message dropped")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
