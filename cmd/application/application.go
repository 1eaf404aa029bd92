// Package application provides the application interface for lbmap commands.
//
// Commands and the HTTP server accept this interface rather than the concrete
// App type so they can be tested with internal/cmd/application.Mock:
//
//	mock := &application.Mock{
//	    ClientFunc: func() (lbmap.Client, error) {
//	        return lbmap.New(lbmap.WithStore(memory.New()))
//	    },
//	}
//	cmd := services.NewCommand(mock)
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/lbmap"
)

// Application provides what commands need from the running application.
//
// Thread Safety: All methods must be safe for concurrent access.
type Application interface {
	// Client returns the shared lbmap client, opening its store on first use.
	Client() (lbmap.Client, error)

	// ClientWithOptions returns a client over the shared store with extra
	// options applied, e.g. lbmap.WithDryRun. Callers must not Close it.
	ClientWithOptions(opts ...lbmap.Option) (lbmap.Client, error)

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, markdown).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string
}
