// Package reconciler reconciles a table of persisted load-balancer services
// against a live report of running containers and candidate services.
//
// A pass reads the table, drops services that are no longer running, folds
// live container membership into the rest, persists the outcome and renders
// the resulting service list into configuration text.
package reconciler

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/agentstation/lbmap/pkg/differ"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/logging"
	"github.com/agentstation/lbmap/pkg/services"
)

// Reconciler runs reconciliation passes.
type Reconciler interface {
	// Reconcile runs one pass over the table. Any stage failure aborts the
	// remaining stages; writes already made by the failed stage are not undone.
	Reconcile(ctx context.Context, table string, live services.LiveReport) (*Result, error)
}

// reconciler is the default implementation of Reconciler.
type reconciler struct {
	store       Store
	renderer    Renderer
	concurrency int
	dryRun      bool
}

// New creates a Reconciler that reads and writes store and renders with renderer.
func New(store Store, renderer Renderer, opts ...Option) (Reconciler, error) {
	if store == nil {
		return nil, &errors.ValidationError{Field: "store", Message: "cannot be nil"}
	}
	if renderer == nil {
		return nil, &errors.ValidationError{Field: "renderer", Message: "cannot be nil"}
	}

	options, err := newOptions(opts...)
	if err != nil {
		return nil, err
	}

	return &reconciler{
		store:       store,
		renderer:    renderer,
		concurrency: options.concurrency,
		dryRun:      options.dryRun,
	}, nil
}

// reconcileContext holds shared state for one pass.
type reconcileContext struct {
	table  string
	live   services.LiveReport
	result *Result
	logger *zerolog.Logger
}

// Reconcile performs a pass with a clean step-by-step flow.
func (r *reconciler) Reconcile(ctx context.Context, table string, live services.LiveReport) (*Result, error) {
	// Step 1: Validate input
	rctx, err := r.initialize(ctx, table, live)
	if err != nil {
		return nil, err
	}

	// Step 2: Read the persisted snapshot
	if err := r.scan(ctx, rctx); err != nil {
		return nil, err
	}

	// Step 3: Cleanse against running truth
	r.cleanse(rctx)

	// Step 4: Delete unavailable services
	if err := r.deleteUnavailable(ctx, rctx); err != nil {
		return nil, err
	}

	// Step 5: Merge live membership into available services
	r.merge(rctx)

	// Step 6: Persist updated and created services
	if err := r.persist(ctx, rctx); err != nil {
		return nil, err
	}

	// Step 7: Collect the post-persistence service list
	if err := r.collect(ctx, rctx); err != nil {
		return nil, err
	}

	// Step 8: Render
	if err := r.render(ctx, rctx); err != nil {
		return nil, err
	}

	return r.finish(rctx), nil
}

func (r *reconciler) initialize(ctx context.Context, table string, live services.LiveReport) (*reconcileContext, error) {
	if err := services.ValidateName("table", table); err != nil {
		return nil, err
	}
	if err := live.Validate(); err != nil {
		return nil, err
	}

	ctx = logging.WithTable(ctx, table)
	logger := logging.FromContext(ctx)

	logger.Debug().
		Int("running", len(live.Running)).
		Int("candidates", len(live.Candidates)).
		Bool("dry_run", r.dryRun).
		Msg("Starting reconciliation")

	result := NewResult(table)
	result.Metadata.DryRun = r.dryRun

	return &reconcileContext{
		table:  table,
		live:   live,
		result: result,
		logger: logger,
	}, nil
}

func (r *reconciler) scan(ctx context.Context, rctx *reconcileContext) error {
	snapshot, err := r.store.Scan(ctx, rctx.table)
	if err != nil {
		return storeError("scan", rctx.table, "", err)
	}

	rctx.result.Snapshot = snapshot
	rctx.result.Metadata.Stats.ServicesScanned = len(snapshot)
	rctx.logger.Debug().
		Int("services", len(snapshot)).
		Msg("Read persisted snapshot")
	return nil
}

func (r *reconciler) cleanse(rctx *reconcileContext) {
	cleansed := Cleanse(rctx.result.Snapshot, rctx.live)
	rctx.result.Cleanse = cleansed

	names := rctx.live.RunningNames()
	before, after := 0, 0
	for _, svc := range rctx.result.Snapshot {
		if _, ok := names[svc.Name]; ok {
			before += len(svc.Containers)
		}
	}
	for _, svc := range cleansed.Available {
		after += len(svc.Containers)
	}
	rctx.result.Metadata.Stats.ContainersDropped = before - after

	rctx.logger.Debug().
		Int("available", len(cleansed.Available)).
		Int("unavailable", len(cleansed.Unavailable)).
		Int("containers_dropped", before-after).
		Msg("Cleansed snapshot")
}

func (r *reconciler) deleteUnavailable(ctx context.Context, rctx *reconcileContext) error {
	unavailable := rctx.result.Cleanse.Unavailable
	if r.dryRun || len(unavailable) == 0 {
		return nil
	}

	writes := make([]func(context.Context) error, len(unavailable))
	for i, svc := range unavailable {
		writes[i] = func(ctx context.Context) error {
			if err := r.store.Delete(ctx, rctx.table, svc.Name); err != nil {
				return storeError("delete", rctx.table, svc.Name, err)
			}
			return nil
		}
	}

	if err := r.fanOut(ctx, writes); err != nil {
		rctx.logger.Error().Err(err).Msg("Failed to delete unavailable services")
		return err
	}

	rctx.result.Metadata.Stats.ServicesDeleted = len(unavailable)
	rctx.logger.Info().
		Strs("services", services.Names(unavailable)).
		Msg("Deleted unavailable services")
	return nil
}

func (r *reconciler) merge(rctx *reconcileContext) {
	merged := Merge(rctx.result.Cleanse.Available, rctx.live)
	rctx.result.Merge = merged

	rctx.logger.Debug().
		Int("updated", len(merged.Updated)).
		Int("created", len(merged.Created)).
		Msg("Merged live membership")
}

func (r *reconciler) persist(ctx context.Context, rctx *reconcileContext) error {
	merged := rctx.result.Merge
	if r.dryRun {
		return nil
	}

	writes := make([]func(context.Context) error, 0, len(merged.Updated)+1)
	for _, svc := range merged.Updated {
		writes = append(writes, func(ctx context.Context) error {
			if err := r.store.Update(ctx, rctx.table, svc); err != nil {
				return storeError("update", rctx.table, svc.Name, err)
			}
			return nil
		})
	}
	if len(merged.Created) > 0 {
		writes = append(writes, func(ctx context.Context) error {
			if err := r.store.Create(ctx, rctx.table, merged.Created); err != nil {
				return storeError("create", rctx.table, "", err)
			}
			return nil
		})
	}

	if err := r.fanOut(ctx, writes); err != nil {
		rctx.logger.Error().Err(err).Msg("Failed to persist merged services")
		return err
	}

	rctx.result.Metadata.Stats.ServicesUpdated = len(merged.Updated)
	rctx.result.Metadata.Stats.ServicesCreated = len(merged.Created)
	rctx.logger.Debug().
		Int("updated", len(merged.Updated)).
		Int("created", len(merged.Created)).
		Msg("Persisted merged services")
	return nil
}

func (r *reconciler) collect(ctx context.Context, rctx *reconcileContext) error {
	var final []services.Service
	if r.dryRun {
		final = predicted(rctx.result.Merge)
	} else {
		scanned, err := r.store.Scan(ctx, rctx.table)
		if err != nil {
			return storeError("scan", rctx.table, "", err)
		}
		final = scanned
	}

	services.SortByName(final)
	rctx.result.Services = final
	return nil
}

func (r *reconciler) render(ctx context.Context, rctx *reconcileContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	config, err := r.renderer.Render(ctx, services.CopyServices(rctx.result.Services))
	if err != nil {
		if !errors.IsRenderFailure(err) {
			err = errors.NewRenderError("", err.Error(), err)
		}
		rctx.logger.Error().Err(err).Msg("Failed to render configuration")
		return err
	}

	rctx.result.Config = config
	return nil
}

func (r *reconciler) finish(rctx *reconcileContext) *Result {
	result := rctx.result
	result.Changeset = differ.Services(result.Snapshot, result.Services)
	for _, svc := range result.Services {
		result.Metadata.Stats.ContainersFinal += len(svc.Containers)
	}
	result.Finalize()

	rctx.logger.Info().
		Int("services", len(result.Services)).
		Int("deleted", result.Metadata.Stats.ServicesDeleted).
		Int("updated", result.Metadata.Stats.ServicesUpdated).
		Int("created", result.Metadata.Stats.ServicesCreated).
		Dur("duration", result.Metadata.Duration).
		Bool("dry_run", result.Metadata.DryRun).
		Msg("Reconciliation complete")

	return result
}

// fanOut runs every write with at most r.concurrency in flight and waits for
// all of them. Failures are combined rather than cancelling sibling writes.
func (r *reconciler) fanOut(ctx context.Context, writes []func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var (
		mu   sync.Mutex
		errs error
	)

	var g errgroup.Group
	g.SetLimit(r.concurrency)
	for _, write := range writes {
		g.Go(func() error {
			if err := write(ctx); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return errs
}

// predicted is the service list a dry run would have left in the store.
func predicted(merged MergeResult) []services.Service {
	byName := make(map[string]services.Service, len(merged.Updated)+len(merged.Created))
	order := make([]string, 0, len(merged.Updated)+len(merged.Created))

	add := func(svc services.Service) {
		if _, ok := byName[svc.Name]; !ok {
			order = append(order, svc.Name)
		}
		byName[svc.Name] = svc
	}
	for _, svc := range merged.Updated {
		add(svc.Copy())
	}
	for _, c := range merged.Created {
		add(c.Service())
	}

	out := make([]services.Service, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out
}

// storeError wraps a store failure unless it already is one or the caller's
// context ended.
func storeError(op, table, key string, err error) error {
	if errors.IsStorageUnavailable(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return errors.NewStoreError(op, table, key, err)
}
