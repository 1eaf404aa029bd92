// Package server provides the HTTP invocation boundary for lbmap: reconcile
// requests, table browsing, rendered configuration, and real-time change events.
package server

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/agentstation/lbmap/cmd/application"
	"github.com/agentstation/lbmap/internal/server/cache"
	"github.com/agentstation/lbmap/internal/server/events"
	"github.com/agentstation/lbmap/internal/server/events/adapters"
	"github.com/agentstation/lbmap/internal/server/metrics"
	"github.com/agentstation/lbmap/internal/server/sse"
	ws "github.com/agentstation/lbmap/internal/server/websocket"
	"github.com/agentstation/lbmap/pkg/constants"
	"github.com/agentstation/lbmap/pkg/differ"
	"github.com/agentstation/lbmap/pkg/reconciler"
	"github.com/agentstation/lbmap/pkg/services"
)

// Server holds the HTTP server state and dependencies.
type Server struct {
	app            application.Application
	cache          *cache.Cache
	broker         *events.Broker
	wsHub          *ws.Hub
	sseBroadcaster *sse.Broadcaster
	metrics        *metrics.Metrics
	upgrader       websocket.Upgrader
	logger         *zerolog.Logger
	config         Config
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	started        atomic.Bool
}

// New creates a new server instance with the given configuration.
func New(app application.Application, cfg Config) (*Server, error) {
	logger := app.Logger()

	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = constants.CacheTTL
	}

	broker := events.NewBroker(logger)
	wsHub := ws.NewHub(logger)
	sseBroadcaster := sse.NewBroadcaster(logger)

	broker.Subscribe(adapters.NewWebSocketSubscriber(wsHub))
	broker.Subscribe(adapters.NewSSESubscriber(sseBroadcaster))

	ctx, cancel := context.WithCancel(context.Background())

	server := &Server{
		app:            app,
		cache:          cache.New(cfg.CacheTTL, constants.CacheCleanupInterval),
		broker:         broker,
		wsHub:          wsHub,
		sseBroadcaster: sseBroadcaster,
		metrics:        metrics.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		logger: logger,
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	if err := server.connectHooks(); err != nil {
		cancel()
		return nil, err
	}

	logger.Debug().Str("prefix", cfg.PathPrefix).Msg("Server instance created")
	return server, nil
}

// connectHooks publishes client hook events to the broker, keeps the config
// cache coherent, and feeds pass metrics.
func (s *Server) connectHooks() error {
	client, err := s.app.Client()
	if err != nil {
		return err
	}

	client.OnServiceCreated(func(table string, svc services.Service) {
		s.broker.Publish(events.ServiceCreated, table, map[string]any{"service": svc})
	})

	client.OnServiceUpdated(func(table string, update differ.ServiceUpdate) {
		s.broker.Publish(events.ServiceUpdated, table, map[string]any{
			"service": update.New,
			"changes": update.Changes,
		})
	})

	client.OnServiceRemoved(func(table string, svc services.Service) {
		s.cache.Invalidate(table)
		s.broker.Publish(events.ServiceRemoved, table, map[string]any{"service": svc})
	})

	// Passes fire this hook one at a time, in order, so the cached config
	// always comes from the latest pass.
	client.OnReconciled(func(result *reconciler.Result) {
		if !result.Metadata.DryRun {
			s.cache.SetConfig(result.Table, result.Config)
		}
		s.metrics.ObservePass(result)
		s.broker.Publish(events.ReconcileCompleted, result.Table, map[string]any{
			"summary": result.Changeset.Summary,
			"dryRun":  result.Metadata.DryRun,
			"stats":   result.Metadata.Stats,
		})
	})

	s.logger.Debug().Msg("Client hooks connected to event broker")
	return nil
}

// Start starts background services (broker, WebSocket hub, SSE broadcaster).
func (s *Server) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(s.done)
		done := make(chan struct{}, 3)
		run := func(fn func(context.Context)) {
			fn(s.ctx)
			done <- struct{}{}
		}
		go run(s.broker.Run)
		go run(s.wsHub.Run)
		go run(s.sseBroadcaster.Run)
		for range 3 {
			<-done
		}
	}()
	s.logger.Debug().Msg("Background services started")
}

// Handler returns the configured http.Handler with middleware chain applied.
func (s *Server) Handler() http.Handler {
	return s.setupRouter()
}

// Shutdown stops background services, waiting until they exit or ctx ends.
// Shutdown is safe to call when Start never ran.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down server background services")
	s.cancel()
	if !s.started.Load() {
		return nil
	}

	select {
	case <-s.done:
		s.logger.Info().Msg("Background services shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Second):
		s.logger.Warn().Msg("Background services shutdown timed out")
		return nil
	}
}

// Cache returns the server's cache instance.
func (s *Server) Cache() *cache.Cache {
	return s.cache
}

// Broker returns the event broker for publishing events.
func (s *Server) Broker() *events.Broker {
	return s.broker
}

// Metrics returns the server's metrics.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}
