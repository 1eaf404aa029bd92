// Package constants provides shared constants used throughout lbmap.
// This includes timeouts, limits, file permissions, and the defaults the
// reconciler and renderer fall back to when configuration leaves them unset.
package constants

import "time"

// Reconciliation defaults
const (
	// DefaultTable is the service table used when none is configured
	DefaultTable = "services"

	// DefaultWriteConcurrency bounds concurrent per-service store writes
	DefaultWriteConcurrency = 8

	// ReconcileTimeout bounds a single reconciliation pass started from the CLI
	ReconcileTimeout = 2 * time.Minute
)

// Rendering defaults
const (
	// DefaultBackendPort is the port each container serves on
	DefaultBackendPort = 80

	// DefaultBindPort is the port the load balancer frontend listens on
	DefaultBindPort = 80

	// DefaultMaxConn is the global maxconn written into rendered configs
	DefaultMaxConn = 4096
)

// Timeout constants
const (
	// DefaultTimeout is the standard timeout for general operations
	DefaultTimeout = 10 * time.Second

	// StoreOpenTimeout is how long to wait for a bolt file lock
	StoreOpenTimeout = 1 * time.Second

	// ShutdownTimeout is how long the server waits for in-flight requests
	ShutdownTimeout = 30 * time.Second
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for the bolt database file (rw-------)
	SecureFilePermissions = 0600
)

// Limit constants
const (
	// MaxServiceNameLength is the maximum allowed length for service names
	MaxServiceNameLength = 256

	// MaxRequestBodySize caps reconcile request bodies accepted over HTTP (8 MB)
	MaxRequestBodySize = 8 << 20

	// ChannelBufferSize is the default buffer size for event channels
	ChannelBufferSize = 256
)

// Rate limiting constants
const (
	// DefaultRateLimit is the default requests per minute per client
	DefaultRateLimit = 100
)

// Cache constants
const (
	// CacheTTL is the default time-to-live for cached rendered configs
	CacheTTL = 5 * time.Minute

	// CacheCleanupInterval is how often to clean expired cache entries
	CacheCleanupInterval = 10 * time.Minute
)
