// Package app provides the application context and dependency management
// for the lbmap CLI: configuration, logging, and the lazily opened store
// behind the shared lbmap client.
package app

import (
	"context"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/lbmap"
	"github.com/agentstation/lbmap/internal/store"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/render"
)

// App represents the lbmap application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config *Config
	logger *zerolog.Logger

	// Command I/O; nil means the process streams.
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	// Lazily opened on first Client call.
	mu     sync.Mutex
	store  store.Store
	client lbmap.Client
}

// New creates a new App instance with the given version information.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the configured output format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Client returns the shared client, opening the configured store on first use.
func (a *App) Client() (lbmap.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}

	opts, err := a.clientOptions()
	if err != nil {
		return nil, err
	}
	client, err := lbmap.New(opts...)
	if err != nil {
		return nil, errors.WrapResource("create", "client", "", err)
	}
	a.client = client
	return client, nil
}

// ClientWithOptions returns a separate client over the shared store.
// Closing the app closes the store; the returned client must not be closed.
func (a *App) ClientWithOptions(extra ...lbmap.Option) (lbmap.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	opts, err := a.clientOptions()
	if err != nil {
		return nil, err
	}
	client, err := lbmap.New(append(opts, extra...)...)
	if err != nil {
		return nil, errors.WrapResource("create", "client", "with custom options", err)
	}
	return client, nil
}

// clientOptions opens the store if needed and builds the renderer. a.mu must be held.
func (a *App) clientOptions() ([]lbmap.Option, error) {
	if a.store == nil {
		st, err := store.Open(store.Config{
			Backend: store.Backend(a.config.Store),
			Path:    a.config.StorePath,
		})
		if err != nil {
			return nil, errors.WrapResource("open", "store", a.config.Store, err)
		}
		a.store = st
		a.logger.Debug().Str("store", a.config.Store).Str("path", a.config.StorePath).Msg("Store opened")
	}

	renderOpts := []render.Option{
		render.WithBackendPort(a.config.BackendPort),
		render.WithBindPort(a.config.BindPort),
	}
	if a.config.Template != "" {
		renderOpts = append(renderOpts, render.WithTemplateFile(a.config.Template))
	}
	renderer, err := render.New(renderOpts...)
	if err != nil {
		return nil, err
	}

	opts := []lbmap.Option{
		lbmap.WithStore(a.store),
		lbmap.WithRenderer(renderer),
		lbmap.WithConcurrency(a.config.Concurrency),
	}
	if a.config.Table != "" {
		opts = append(opts, lbmap.WithDefaultTable(a.config.Table))
	}
	return opts, nil
}

// Shutdown closes the store if it was opened.
func (a *App) Shutdown(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.store == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	a.client = nil
	return err
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithStore injects an already opened store (useful for testing).
func WithStore(st store.Store) Option {
	return func(a *App) error {
		a.store = st
		return nil
	}
}

// WithIO redirects command input and output (useful for testing).
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(a *App) error {
		a.in, a.out, a.errOut = in, out, errOut
		return nil
	}
}
