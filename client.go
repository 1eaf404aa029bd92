// Package lbmap keeps a table of load-balancer services in step with the
// containers that are actually running, and renders the result into
// load-balancer configuration.
//
// A Client wraps a service store, a renderer and a reconciler, and fires
// hooks for every service a pass creates, updates or removes.
//
// Example usage:
//
//	client, err := lbmap.New(lbmap.WithStore(store))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.OnServiceRemoved(func(table string, svc services.Service) {
//	    log.Printf("service %s left %s", svc.Name, table)
//	})
//
//	result, err := client.Reconcile(ctx, "frontends", report)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(result.Config)
package lbmap

import (
	"context"
	"io"
	"sync"

	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/logging"
	"github.com/agentstation/lbmap/pkg/reconciler"
	"github.com/agentstation/lbmap/pkg/services"
)

// Compile-time interface check to ensure proper implementation.
var _ Client = (*client)(nil)

// Client reconciles, browses and renders service tables.
type Client interface {
	// Reconcile runs one reconciliation pass over table.
	Reconcile(ctx context.Context, table string, live services.LiveReport) (*reconciler.Result, error)

	// Services returns the services stored in table, sorted by name.
	Services(ctx context.Context, table string) ([]services.Service, error)

	// Service returns one stored service or an errors.NotFoundError.
	Service(ctx context.Context, table, name string) (services.Service, error)

	// Render renders the services currently stored in table.
	Render(ctx context.Context, table string) (string, error)

	// DeleteService removes one stored service.
	DeleteService(ctx context.Context, table, name string) error

	// DefaultTable is the table used when an empty table name is passed.
	DefaultTable() string

	// Close releases the store if it holds resources.
	Close() error

	// Hooks provides access to event callback registration
	Hooks
}

// client is the internal implementation of the Client interface.
type client struct {
	options    *options
	reconciler reconciler.Reconciler
	hooks      *hooks

	// passes on one client run one at a time
	mu sync.Mutex
}

// New creates a new Client instance with the given options.
func New(opts ...Option) (Client, error) {
	o, err := defaults().apply(opts...)
	if err != nil {
		return nil, err
	}

	rec, err := reconciler.New(o.store, o.renderer,
		reconciler.WithConcurrency(o.concurrency),
		reconciler.WithDryRun(o.dryRun),
	)
	if err != nil {
		return nil, errors.WrapResource("create", "reconciler", "", err)
	}

	return &client{
		options:    o,
		reconciler: rec,
		hooks:      newHooks(),
	}, nil
}

// table resolves the default table and rejects names a store cannot hold.
func (c *client) table(table string) (string, error) {
	if table == "" {
		table = c.options.table
	}
	if err := services.ValidateName("table", table); err != nil {
		return "", err
	}
	return table, nil
}

// DefaultTable returns the table used for empty table names.
func (c *client) DefaultTable() string {
	return c.options.table
}

// Reconcile runs a pass and fires hooks from its changeset.
func (c *client) Reconcile(ctx context.Context, table string, live services.LiveReport) (*reconciler.Result, error) {
	table, err := c.table(table)
	if err != nil {
		return nil, err
	}

	// hooks fire inside the lock so they observe passes in order
	c.mu.Lock()
	defer c.mu.Unlock()
	result, err := c.reconciler.Reconcile(ctx, table, live)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("table", table).Msg("Reconciliation failed")
		return nil, err
	}

	c.hooks.triggerReconciled(table, result)
	return result, nil
}

// Services lists a table.
func (c *client) Services(ctx context.Context, table string) ([]services.Service, error) {
	table, err := c.table(table)
	if err != nil {
		return nil, err
	}
	list, err := c.options.store.Scan(ctx, table)
	if err != nil {
		return nil, errors.WrapStore("scan", table, "", err)
	}
	services.SortByName(list)
	return list, nil
}

// Service finds one service by name.
func (c *client) Service(ctx context.Context, table, name string) (services.Service, error) {
	list, err := c.Services(ctx, table)
	if err != nil {
		return services.Service{}, err
	}
	svc, ok := services.Find(list, name)
	if !ok {
		return services.Service{}, errors.NewNotFoundError("service", name)
	}
	return svc, nil
}

// Render renders the stored table without reconciling it.
func (c *client) Render(ctx context.Context, table string) (string, error) {
	list, err := c.Services(ctx, table)
	if err != nil {
		return "", err
	}
	config, err := c.options.renderer.Render(ctx, list)
	if err != nil {
		if errors.IsRenderFailure(err) {
			return "", err
		}
		return "", errors.NewRenderError("", err.Error(), err)
	}
	return config, nil
}

// DeleteService removes a service and fires the removed hooks.
func (c *client) DeleteService(ctx context.Context, table, name string) error {
	table, err := c.table(table)
	if err != nil {
		return err
	}
	svc, err := c.Service(ctx, table, name)
	if err != nil {
		return err
	}
	if err := c.options.store.Delete(ctx, table, name); err != nil {
		return errors.WrapStore("delete", table, name, err)
	}

	logging.FromContext(ctx).Info().Str("table", table).Str("service", name).Msg("Service deleted")
	c.hooks.triggerRemoved(table, svc)
	return nil
}

// Close closes the store when it implements io.Closer.
func (c *client) Close() error {
	if closer, ok := c.options.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
