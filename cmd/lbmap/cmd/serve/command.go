// Package serve provides the HTTP server command.
package serve

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/agentstation/lbmap/cmd/application"
	"github.com/agentstation/lbmap/internal/cmd/emoji"
	"github.com/agentstation/lbmap/internal/server"
	"github.com/agentstation/lbmap/pkg/constants"
	"github.com/agentstation/lbmap/pkg/errors"
)

// NewCommand creates the serve command.
func NewCommand(app application.Application) *cobra.Command {
	defaults := server.DefaultConfig()

	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"server"},
		GroupID: "core",
		Short:   "Start the reconcile API server with WebSocket and SSE events",
		Long: `Start an HTTP server that accepts live reports and serves the
resulting load-balancer configuration.

Endpoints:
  POST /api/v1/reconcile                      reconcile and render a table
  GET  /api/v1/tables/{table}/services        list stored services
  GET  /api/v1/tables/{table}/config          cached rendered config
  GET  /api/v1/events/ws, /api/v1/events/stream  change events
  GET  /health, /api/v1/ready, /metrics`,
		Example: `  # Start on default port 8080
  lbmap serve

  # Durable store with authentication
  LBMAP_API_KEY=secret lbmap serve --store bolt --store-path /var/lib/lbmap --auth

  # Enable CORS for specific origins
  lbmap serve --cors-origins "https://example.com,https://app.example.com"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := parseConfig(cmd)
			if err != nil {
				return err
			}
			return run(cmd.Context(), app, cfg)
		},
	}

	cmd.Flags().Int("port", defaults.Port, "Server port")
	cmd.Flags().String("host", defaults.Host, "Bind address")

	cmd.Flags().Bool("cors", false, "Enable CORS for all origins")
	cmd.Flags().StringSlice("cors-origins", []string{}, "Allowed CORS origins (comma-separated)")

	cmd.Flags().Bool("auth", false, "Enable API key authentication (key from LBMAP_API_KEY)")
	cmd.Flags().String("auth-header", defaults.AuthHeader, "Authentication header name")

	cmd.Flags().Int("rate-limit", defaults.RateLimit, "Requests per minute per IP (0 to disable)")
	cmd.Flags().Duration("cache-ttl", defaults.CacheTTL, "Rendered config cache TTL")
	cmd.Flags().Int64("max-body", defaults.MaxBodySize, "Maximum reconcile request body in bytes")

	cmd.Flags().Duration("read-timeout", defaults.ReadTimeout, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", defaults.WriteTimeout, "HTTP write timeout")
	cmd.Flags().Duration("idle-timeout", defaults.IdleTimeout, "HTTP idle timeout")

	cmd.Flags().Bool("metrics", defaults.MetricsEnabled, "Enable the /metrics endpoint")
	cmd.Flags().String("prefix", defaults.PathPrefix, "API path prefix")

	return cmd
}

// parseConfig parses command flags and the environment into server configuration.
func parseConfig(cmd *cobra.Command) (server.Config, error) {
	flags := cmd.Flags()
	cfg := server.DefaultConfig()

	cfg.Port, _ = flags.GetInt("port")
	cfg.Host, _ = flags.GetString("host")
	cfg.CORSEnabled, _ = flags.GetBool("cors")
	cfg.CORSOrigins, _ = flags.GetStringSlice("cors-origins")
	cfg.AuthEnabled, _ = flags.GetBool("auth")
	cfg.AuthHeader, _ = flags.GetString("auth-header")
	cfg.RateLimit, _ = flags.GetInt("rate-limit")
	cfg.CacheTTL, _ = flags.GetDuration("cache-ttl")
	cfg.MaxBodySize, _ = flags.GetInt64("max-body")
	cfg.ReadTimeout, _ = flags.GetDuration("read-timeout")
	cfg.WriteTimeout, _ = flags.GetDuration("write-timeout")
	cfg.IdleTimeout, _ = flags.GetDuration("idle-timeout")
	cfg.MetricsEnabled, _ = flags.GetBool("metrics")
	cfg.PathPrefix, _ = flags.GetString("prefix")
	cfg.APIKey = os.Getenv("LBMAP_API_KEY")

	// Environment overrides for container deployments, unless the flag was set.
	if envPort := os.Getenv("LBMAP_HTTP_PORT"); envPort != "" && !flags.Changed("port") {
		p, err := parsePort(envPort)
		if err != nil {
			return cfg, err
		}
		cfg.Port = p
	}
	if envHost := os.Getenv("LBMAP_HTTP_HOST"); envHost != "" && !flags.Changed("host") {
		cfg.Host = envHost
	}

	if cfg.AuthEnabled && cfg.APIKey == "" {
		return cfg, errors.NewConfigError("serve", "--auth requires LBMAP_API_KEY", nil)
	}
	return cfg, nil
}

// parsePort safely parses a port string to integer.
func parsePort(portStr string) (int, error) {
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, errors.NewValidationError("port", portStr, "not a number")
	}
	if port < 1 || port > 65535 {
		return 0, errors.NewValidationError("port", port, "out of range")
	}
	return port, nil
}

func run(ctx context.Context, app application.Application, cfg server.Config) error {
	logger := app.Logger()

	logger.Info().
		Int("port", cfg.Port).
		Str("host", cfg.Host).
		Str("prefix", cfg.PathPrefix).
		Bool("cors", cfg.CORSEnabled).
		Bool("auth", cfg.AuthEnabled).
		Int("rate_limit", cfg.RateLimit).
		Dur("cache_ttl", cfg.CacheTTL).
		Msg("Starting API server")

	srv, err := server.New(app, cfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	srv.Start()

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return startWithGracefulShutdown(ctx, httpServer, srv, logger)
}

// startWithGracefulShutdown serves until ctx is canceled (SIGINT/SIGTERM from
// main) and then drains connections and background services.
func startWithGracefulShutdown(ctx context.Context, httpServer *http.Server, srv *server.Server, logger *zerolog.Logger) error {
	serverErr := make(chan error, 1)

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErr <- fmt.Errorf("server failed: %w", err)
		}
	}()

	select {
	case err := <-serverErr:
		_ = srv.Shutdown(context.Background())
		return err
	case <-ctx.Done():
		logger.Info().Msg("Shutdown signal received")
		fmt.Fprintf(os.Stderr, "\n%s Shutting down API server...\n", emoji.Stop)

		// The parent context is already canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Background services shutdown had issues")
		}

		logger.Info().Msg("Server stopped gracefully")
		return nil
	}
}

