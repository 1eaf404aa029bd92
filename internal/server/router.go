package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/agentstation/lbmap/internal/server/handlers"
	"github.com/agentstation/lbmap/internal/server/middleware"
	"github.com/agentstation/lbmap/internal/server/response"
)

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	router := mux.NewRouter()

	h := handlers.New(
		s.app,
		s.cache,
		s.broker,
		s.wsHub,
		s.sseBroadcaster,
		s.upgrader,
		s.metrics,
		s.logger,
	)

	s.registerRoutes(router, h)
	router.Use(middleware.Metrics(s.metrics))

	return s.applyMiddleware(router)
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes(router *mux.Router, h *handlers.Handlers) {
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, "Not found", r.URL.Path)
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		response.MethodNotAllowed(w, r.Method)
	})

	// Public endpoints (no auth required)
	router.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	if s.config.MetricsEnabled {
		router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	api := router.PathPrefix(s.config.PathPrefix).Subrouter()
	api.HandleFunc("/health", h.HandleHealth).Methods(http.MethodGet)
	api.HandleFunc("/ready", h.HandleReady).Methods(http.MethodGet)
	api.HandleFunc("/stats", h.HandleStats).Methods(http.MethodGet)

	// Reconciliation
	api.HandleFunc("/reconcile", h.HandleReconcile).Methods(http.MethodPost)

	// Tables
	tables := api.PathPrefix("/tables/{table}").Subrouter()
	tables.HandleFunc("/services", h.HandleListServices).Methods(http.MethodGet)
	tables.HandleFunc("/services/{name}", h.HandleGetService).Methods(http.MethodGet)
	tables.HandleFunc("/services/{name}", h.HandleDeleteService).Methods(http.MethodDelete)
	tables.HandleFunc("/config", h.HandleConfig).Methods(http.MethodGet)

	// Real-time endpoints
	api.HandleFunc("/events/ws", h.HandleWebSocket).Methods(http.MethodGet)
	api.HandleFunc("/events/stream", h.HandleSSE).Methods(http.MethodGet)
}

// applyMiddleware wraps handler with the middleware chain. The first entry
// is outermost.
func (s *Server) applyMiddleware(handler http.Handler) http.Handler {
	cfg := s.config

	chain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logger(s.logger),
	}

	if cfg.CORSEnabled {
		corsConfig := middleware.DefaultCORSConfig()
		if len(cfg.CORSOrigins) > 0 {
			corsConfig.AllowedOrigins = cfg.CORSOrigins
		} else {
			corsConfig.AllowAll = true
		}
		chain = append(chain, middleware.CORS(corsConfig))
	}

	if cfg.AuthEnabled {
		authConfig := middleware.DefaultAuthConfig(cfg.PathPrefix)
		authConfig.Enabled = true
		authConfig.APIKey = cfg.APIKey
		if cfg.AuthHeader != "" {
			authConfig.HeaderName = cfg.AuthHeader
		}
		chain = append(chain, middleware.Auth(authConfig, s.logger))
	}

	if cfg.RateLimit > 0 {
		chain = append(chain, middleware.RateLimit(middleware.NewRateLimiter(cfg.RateLimit, s.logger)))
	}

	chain = append(chain, middleware.BodyLimit(cfg.MaxBodySize))

	return middleware.Chain(chain...)(handler)
}
