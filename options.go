package lbmap

import (
	"github.com/agentstation/lbmap/internal/store/memory"
	"github.com/agentstation/lbmap/pkg/constants"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/reconciler"
	"github.com/agentstation/lbmap/pkg/render"
	"github.com/agentstation/lbmap/pkg/services"
)

// options holds the configuration for a Client.
type options struct {
	store       reconciler.Store
	renderer    reconciler.Renderer
	table       string
	concurrency int
	dryRun      bool
}

// Option is a function that configures a Client.
type Option func(*options) error

func defaults() *options {
	return &options{
		table:       constants.DefaultTable,
		concurrency: constants.DefaultWriteConcurrency,
	}
}

// apply applies the given options and fills in the default store and renderer.
func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	if o.store == nil {
		o.store = memory.New()
	}
	if o.renderer == nil {
		r, err := render.New()
		if err != nil {
			return nil, err
		}
		o.renderer = r
	}
	return o, nil
}

// WithStore sets the store services are read from and written to.
func WithStore(store reconciler.Store) Option {
	return func(o *options) error {
		if store == nil {
			return errors.NewValidationError("store", nil, "cannot be nil")
		}
		o.store = store
		return nil
	}
}

// WithRenderer replaces the default HAProxy renderer.
func WithRenderer(renderer reconciler.Renderer) Option {
	return func(o *options) error {
		if renderer == nil {
			return errors.NewValidationError("renderer", nil, "cannot be nil")
		}
		o.renderer = renderer
		return nil
	}
}

// WithConcurrency bounds concurrent store writes within a stage.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		o.concurrency = n
		return nil
	}
}

// WithDefaultTable sets the table used when a call passes an empty table name.
func WithDefaultTable(table string) Option {
	return func(o *options) error {
		if err := services.ValidateName("table", table); err != nil {
			return err
		}
		o.table = table
		return nil
	}
}

// WithDryRun makes reconciliation passes compute and render without writing.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}
