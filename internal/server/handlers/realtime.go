package handlers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/agentstation/lbmap/internal/server/events"
	ws "github.com/agentstation/lbmap/internal/server/websocket"
)

// HandleWebSocket handles WebSocket connections at /api/v1/events/ws.
// The table query parameter limits the connection to one table.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	table := r.URL.Query().Get("table")
	client := ws.NewClient(uuid.NewString(), table, h.wsHub, conn)
	client.Greet(ws.Message{
		Type:      string(events.ClientConnected),
		Table:     table,
		Timestamp: time.Now().UTC(),
		Data: map[string]any{
			"message": "Connected to lbmap events",
		},
	})
	h.wsHub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

// HandleSSE handles Server-Sent Events at /api/v1/events/stream.
func (h *Handlers) HandleSSE(w http.ResponseWriter, r *http.Request) {
	h.sseBroadcaster.ServeHTTP(w, r)
}
