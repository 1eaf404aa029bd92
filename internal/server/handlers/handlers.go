// Package handlers provides HTTP request handlers for the lbmap API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/lbmap"
	"github.com/agentstation/lbmap/cmd/application"
	"github.com/agentstation/lbmap/internal/server/cache"
	"github.com/agentstation/lbmap/internal/server/events"
	"github.com/agentstation/lbmap/internal/server/metrics"
	"github.com/agentstation/lbmap/internal/server/response"
	"github.com/agentstation/lbmap/internal/server/sse"
	ws "github.com/agentstation/lbmap/internal/server/websocket"
	"github.com/agentstation/lbmap/pkg/services"
)

// Handlers provides access to all HTTP handlers.
type Handlers struct {
	app            application.Application
	cache          *cache.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	upgrader       websocket.Upgrader
	metrics        *metrics.Metrics
	logger         *zerolog.Logger
	startTime      time.Time
}

// New creates a new Handlers instance.
func New(
	app application.Application,
	cache *cache.Cache,
	broker *events.Broker,
	wsHub *ws.Hub,
	sseBroadcaster *sse.Broadcaster,
	upgrader websocket.Upgrader,
	metrics *metrics.Metrics,
	logger *zerolog.Logger,
) *Handlers {
	return &Handlers{
		app:            app,
		cache:          cache,
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		upgrader:       upgrader,
		metrics:        metrics,
		logger:         logger,
		startTime:      time.Now(),
	}
}

// client resolves the lbmap client or writes a 503.
func (h *Handlers) client(w http.ResponseWriter) (lbmap.Client, bool) {
	client, err := h.app.Client()
	if err != nil || client == nil {
		h.logger.Error().Err(err).Msg("lbmap client unavailable")
		response.ServiceUnavailable(w, "Service store not available")
		return nil, false
	}
	return client, true
}

// table reads and validates the {table} route variable.
func table(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := mux.Vars(r)["table"]
	if err := services.ValidateName("table", name); err != nil {
		response.ErrorFromType(w, r, err)
		return "", false
	}
	return name, true
}
