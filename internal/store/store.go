// Package store opens the service store selected by configuration.
package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agentstation/lbmap/internal/store/bolt"
	"github.com/agentstation/lbmap/internal/store/files"
	"github.com/agentstation/lbmap/internal/store/memory"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/reconciler"
	"github.com/agentstation/lbmap/pkg/services"
)

// Store is a reconciler.Store that can also be browsed and closed.
type Store interface {
	reconciler.Store

	// Get returns a single service or an errors.NotFoundError.
	Get(ctx context.Context, table, name string) (services.Service, error)

	// Tables lists the tables that hold at least one write.
	Tables(ctx context.Context) ([]string, error)

	Close() error
}

// Backend names a store implementation.
type Backend string

// Backends.
const (
	BackendMemory Backend = "memory"
	BackendBolt   Backend = "bolt"
	BackendFiles  Backend = "files"
)

// Backends lists the supported backends.
func Backends() []Backend {
	return []Backend{BackendMemory, BackendBolt, BackendFiles}
}

// Config selects and locates a store.
type Config struct {
	Backend Backend
	// Path is the bolt database file or the files directory. Unused by memory.
	Path string
}

// Open opens the configured store.
func Open(cfg Config) (Store, error) {
	switch Backend(strings.ToLower(string(cfg.Backend))) {
	case "", BackendMemory:
		return memory.New(), nil
	case BackendBolt:
		path := cfg.Path
		if path == "" {
			return nil, errors.NewConfigError("store", "bolt backend requires a path", nil)
		}
		if filepath.Ext(path) == "" {
			path = filepath.Join(path, "lbmap.db")
		}
		return bolt.Open(path)
	case BackendFiles:
		if cfg.Path == "" {
			return nil, errors.NewConfigError("store", "files backend requires a directory", nil)
		}
		return files.Open(cfg.Path)
	default:
		return nil, errors.NewConfigError("store", fmt.Sprintf("unknown backend %q", cfg.Backend), nil)
	}
}

var (
	_ Store = (*memory.Store)(nil)
	_ Store = (*bolt.Store)(nil)
	_ Store = (*files.Store)(nil)
)
