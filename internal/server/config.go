package server

import (
	"time"

	"github.com/agentstation/lbmap/pkg/constants"
)

// Config holds server configuration.
type Config struct {
	// Server settings
	Host string
	Port int

	// API settings
	PathPrefix string

	// CORS settings
	CORSEnabled bool
	CORSOrigins []string

	// Authentication settings
	AuthEnabled bool
	AuthHeader  string
	APIKey      string

	// Performance settings
	RateLimit   int // Requests per minute per client (0 to disable)
	CacheTTL    time.Duration
	MaxBodySize int64

	// HTTP timeouts
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Features
	MetricsEnabled bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           8080,
		PathPrefix:     "/api/v1",
		CORSEnabled:    false,
		CORSOrigins:    []string{},
		AuthEnabled:    false,
		AuthHeader:     "X-API-Key",
		RateLimit:      constants.DefaultRateLimit,
		CacheTTL:       constants.CacheTTL,
		MaxBodySize:    constants.MaxRequestBodySize,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   constants.ReconcileTimeout,
		IdleTimeout:    120 * time.Second,
		MetricsEnabled: true,
	}
}
