package reconciler_test

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"pgregory.net/rapid"

	"github.com/agentstation/lbmap/internal/store/memory"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/logging"
	"github.com/agentstation/lbmap/pkg/reconciler"
	"github.com/agentstation/lbmap/pkg/services"
)

const table = "frontends"

func newReconciler(t testing.TB, store reconciler.Store, opts ...reconciler.Option) reconciler.Reconciler {
	t.Helper()
	r, err := reconciler.New(store, listRenderer, opts...)
	require.NoError(t, err)
	return r
}

func TestNew(t *testing.T) {
	_, err := reconciler.New(nil, listRenderer)
	assert.True(t, errors.IsValidationError(err))

	_, err = reconciler.New(memory.New(), nil)
	assert.True(t, errors.IsValidationError(err))

	_, err = reconciler.New(memory.New(), listRenderer, reconciler.WithConcurrency(0))
	var verr *errors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "concurrency", verr.Field)
}

// The two worked examples: one service kept, one service scheduled for deletion.
func TestReconcileWorkedExamples(t *testing.T) {
	ctx := context.Background()

	t.Run("running service is kept", func(t *testing.T) {
		store := memory.New(memory.WithServices(table, svc("app1", ctr("c1", "10.0.0.1"))))
		live := services.LiveReport{Running: []services.RunningContainer{running("app1", "c1", "10.0.0.1")}}

		result, err := newReconciler(t, store).Reconcile(ctx, table, live)
		require.NoError(t, err)

		assert.Equal(t, []services.Service{svc("app1", ctr("c1", "10.0.0.1"))}, result.Cleanse.Available)
		assert.Empty(t, result.Cleanse.Unavailable)
		assert.Equal(t, []services.Service{svc("app1", ctr("c1", "10.0.0.1"))}, result.Merge.Updated)
		assert.Empty(t, result.Merge.Created)
		assert.Equal(t, "app1 c1\n", result.Config)
		assert.False(t, result.HasChanges())
	})

	t.Run("stale service is deleted", func(t *testing.T) {
		store := memory.New(memory.WithServices(table, svc("app2", ctr("x", "1.1.1.1"))))

		result, err := newReconciler(t, store).Reconcile(ctx, table, services.LiveReport{})
		require.NoError(t, err)

		assert.Empty(t, result.Cleanse.Available)
		assert.Equal(t, []services.Service{svc("app2", ctr("x", "1.1.1.1"))}, result.Cleanse.Unavailable)
		assert.Empty(t, result.Services)
		assert.Equal(t, 1, result.Metadata.Stats.ServicesDeleted)

		remaining, err := store.Scan(ctx, table)
		require.NoError(t, err)
		assert.Empty(t, remaining)

		require.Len(t, result.Changeset.Removed, 1)
		assert.Equal(t, "app2", result.Changeset.Removed[0].Name)
	})
}

func TestReconcileFullPass(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.WithServices(table,
		svc("web", ctr("w1", "10.0.0.1"), ctr("w-dead", "10.0.0.2")),
		svc("legacy", ctr("l1", "10.0.1.1")),
	))

	live := services.LiveReport{
		Running: []services.RunningContainer{
			running("web", "w1", "10.0.0.1"),
			running("web", "w2", "10.0.0.3"),
			running("api", "a1", "10.0.2.1"),
		},
		Candidates: []services.CandidateService{
			candidate("web", ctr("w2", "10.0.0.3")),
			candidate("api", ctr("a1", "10.0.2.1")),
		},
	}

	tl := logging.NewTestLogger(t)
	ctx = logging.WithLogger(ctx, tl.Logger)

	result, err := newReconciler(t, store).Reconcile(ctx, table, live)
	require.NoError(t, err)

	assert.Equal(t, table, result.Table)
	assert.Equal(t, []string{"api", "web"}, services.Names(result.Services))
	assert.Equal(t, []string{"w1", "w2"}, result.Services[1].ContainerIDs())
	assert.Equal(t, "api a1\nweb w1,w2\n", result.Config)

	stats := result.Metadata.Stats
	assert.Equal(t, 2, stats.ServicesScanned)
	assert.Equal(t, 1, stats.ServicesDeleted)
	assert.Equal(t, 1, stats.ServicesUpdated)
	assert.Equal(t, 1, stats.ServicesCreated)
	assert.Equal(t, 1, stats.ContainersDropped)
	assert.Equal(t, 3, stats.ContainersFinal)
	assert.False(t, result.Metadata.EndTime.Before(result.Metadata.StartTime))

	cs := result.Changeset
	assert.Equal(t, 1, cs.Summary.Added)
	assert.Equal(t, 1, cs.Summary.Updated)
	assert.Equal(t, 1, cs.Summary.Removed)
	assert.Contains(t, result.Summary(), "Table frontends")

	assert.True(t, tl.ContainsAll(`"table":"frontends"`, "Reconciliation complete", "Deleted unavailable services"), tl.Output())
}

func TestReconcileIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.WithServices(table, svc("web", ctr("w1", "10.0.0.1"))))
	live := services.LiveReport{
		Running: []services.RunningContainer{
			running("web", "w1", "10.0.0.1"),
			running("api", "a1", "10.0.2.1"),
		},
		Candidates: []services.CandidateService{candidate("api", ctr("a1", "10.0.2.1"))},
	}
	r := newReconciler(t, store)

	first, err := r.Reconcile(ctx, table, live)
	require.NoError(t, err)
	assert.True(t, first.HasChanges())

	second, err := r.Reconcile(ctx, table, live)
	require.NoError(t, err)
	assert.False(t, second.HasChanges(), second.Changeset.String())
	assert.Equal(t, first.Services, second.Services)
	assert.Equal(t, first.Config, second.Config)
	assert.Empty(t, second.Merge.Created)
}

// Any report reaches a fixed point: once the services it creates have been
// folded into the table, further passes change nothing.
func TestReconcileFixedPointProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		store := memory.New(memory.WithServices(table, persistedGen.Draw(t, "persisted")...))
		live := liveGen.Draw(t, "live")

		r, err := reconciler.New(store, listRenderer)
		require.NoError(t, err)

		var last *reconciler.Result
		for pass := 1; pass <= 3; pass++ {
			last, err = r.Reconcile(ctx, table, live)
			require.NoError(t, err)
		}
		if last.HasChanges() {
			t.Fatalf("third pass changed the table: %s", last.Changeset.String())
		}
	})
}

// A report whose candidates list exactly the containers running for them is
// settled after a single pass.
func TestReconcileSecondPassProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		store := memory.New(memory.WithServices(table, persistedGen.Draw(t, "persisted")...))
		live := liveGen.Draw(t, "live")

		// make candidates consistent with running truth
		byName := map[string][]services.Container{}
		for _, rc := range live.Running {
			byName[rc.ServiceName] = append(byName[rc.ServiceName], rc.Container())
		}
		seen := map[string]bool{}
		consistent := []services.CandidateService{}
		for _, c := range live.Candidates {
			if seen[c.Name] {
				continue
			}
			seen[c.Name] = true
			if containers, ok := byName[c.Name]; ok {
				c.Containers = reconciler.Dedupe(containers)
				consistent = append(consistent, c)
			}
		}
		live.Candidates = consistent

		r, err := reconciler.New(store, listRenderer)
		require.NoError(t, err)

		first, err := r.Reconcile(ctx, table, live)
		require.NoError(t, err)
		second, err := r.Reconcile(ctx, table, live)
		require.NoError(t, err)

		if second.HasChanges() {
			t.Fatalf("second pass changed the table: %s", second.Changeset.String())
		}
		if diff := cmp.Diff(first.Services, second.Services, sortContainers); diff != "" {
			t.Fatalf("services differ between passes:\n%s", diff)
		}
	})
}

func TestReconcileMalformedReport(t *testing.T) {
	store := newFaultyStore()
	r := newReconciler(t, store)

	_, err := r.Reconcile(context.Background(), table, services.LiveReport{
		Running: []services.RunningContainer{{ServiceName: "web"}},
	})
	require.Error(t, err)
	assert.True(t, errors.IsMalformedReport(err))
	assert.Zero(t, store.scans.Load(), "no stage runs after a validation failure")

	_, err = r.Reconcile(context.Background(), "", services.LiveReport{})
	assert.True(t, errors.IsValidationError(err))
}

func TestReconcileScanFailure(t *testing.T) {
	cause := stderrors.New("connection refused")
	store := newFaultyStore()
	store.failScan = cause

	_, err := newReconciler(t, store).Reconcile(context.Background(), table, services.LiveReport{})
	require.Error(t, err)
	assert.True(t, errors.IsStorageUnavailable(err))
	assert.ErrorIs(t, err, cause)

	var se *errors.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "scan", se.Operation)
	assert.Equal(t, table, se.Table)
}

func TestReconcileDeleteFailureAbortsBeforeMerge(t *testing.T) {
	store := newFaultyStore(memory.WithServices(table, svc("a"), svc("b"), svc("c"), svc("keep")))
	store.failDelete["a"] = stderrors.New("boom a")
	store.failDelete["c"] = stderrors.New("boom c")

	live := services.LiveReport{
		Running:    []services.RunningContainer{running("keep", "k1", "10.0.0.1")},
		Candidates: []services.CandidateService{candidate("new")},
	}

	_, err := newReconciler(t, store).Reconcile(context.Background(), table, live)
	require.Error(t, err)
	assert.True(t, errors.IsStorageUnavailable(err))
	assert.Len(t, multierr.Errors(err), 2, "both failures are reported")

	// every delete of the stage was attempted
	assert.ElementsMatch(t, []string{"a", "b", "c"}, store.deletes)

	// the merge stage never ran
	list, err := store.Store.Scan(context.Background(), table)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "keep"}, services.Names(list))
	_, err = store.Get(context.Background(), table, "new")
	assert.True(t, errors.IsNotFound(err))
}

func TestReconcilePartialWriteFailure(t *testing.T) {
	store := newFaultyStore(memory.WithServices(table, svc("web"), svc("api")))
	store.failUpdate["api"] = stderrors.New("throttled")

	live := services.LiveReport{
		Running: []services.RunningContainer{
			running("web", "w1", "10.0.0.1"),
			running("api", "a1", "10.0.0.2"),
		},
		Candidates: []services.CandidateService{candidate("new")},
	}

	_, err := newReconciler(t, store).Reconcile(context.Background(), table, live)
	require.Error(t, err)

	var se *errors.StoreError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "update", se.Operation)
	assert.Equal(t, "api", se.Key)

	// no rollback of the writes that succeeded
	web, err := store.Get(context.Background(), table, "web")
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, web.ContainerIDs())
	_, err = store.Get(context.Background(), table, "new")
	assert.NoError(t, err)
}

func TestReconcileCreateFailure(t *testing.T) {
	store := newFaultyStore()
	store.failCreate = errors.NewStoreError("create", table, "", stderrors.New("quota exceeded"))

	_, err := newReconciler(t, store).Reconcile(context.Background(), table, services.LiveReport{
		Candidates: []services.CandidateService{candidate("new")},
	})
	require.Error(t, err)
	assert.Equal(t, "store create failed for table frontends: quota exceeded", err.Error(), "store errors are not wrapped twice")
}

func TestReconcileFinalScanFailure(t *testing.T) {
	store := newFaultyStore()
	store.failScan = stderrors.New("timeout")
	store.failScanAt = 2

	_, err := newReconciler(t, store).Reconcile(context.Background(), table, services.LiveReport{})
	require.Error(t, err)
	assert.True(t, errors.IsStorageUnavailable(err))
	assert.EqualValues(t, 2, store.scans.Load())
}

func TestReconcileReadOnlyStore(t *testing.T) {
	store := memory.New(memory.ReadOnly(), memory.WithServices(table, svc("web")))

	_, err := newReconciler(t, store).Reconcile(context.Background(), table, services.LiveReport{
		Running: []services.RunningContainer{running("web", "w1", "10.0.0.1")},
	})
	assert.ErrorIs(t, err, errors.ErrReadOnly)
}

func TestReconcileRenderFailure(t *testing.T) {
	ctx := context.Background()
	store := memory.New()

	t.Run("plain errors become render errors", func(t *testing.T) {
		cause := stderrors.New("template exploded")
		r, err := reconciler.New(store, reconciler.RendererFunc(func(context.Context, []services.Service) (string, error) {
			return "", cause
		}))
		require.NoError(t, err)

		_, err = r.Reconcile(ctx, table, services.LiveReport{})
		assert.True(t, errors.IsRenderFailure(err))
		assert.ErrorIs(t, err, cause)
	})

	t.Run("render errors pass through", func(t *testing.T) {
		want := errors.NewRenderError("web", "unknown config mode \"tcp\"", nil)
		r, err := reconciler.New(store, reconciler.RendererFunc(func(context.Context, []services.Service) (string, error) {
			return "", want
		}))
		require.NoError(t, err)

		_, err = r.Reconcile(ctx, table, services.LiveReport{})
		assert.Same(t, want, err)
	})
}

func TestReconcileDryRun(t *testing.T) {
	ctx := context.Background()
	store := newFaultyStore(memory.WithServices(table, svc("web", ctr("w1", "10.0.0.1")), svc("gone")))
	live := services.LiveReport{
		Running: []services.RunningContainer{
			running("web", "w1", "10.0.0.1"),
			running("web", "w2", "10.0.0.2"),
		},
		Candidates: []services.CandidateService{candidate("api"), candidate("api", ctr("a1", "10.0.0.9"))},
	}

	result, err := newReconciler(t, store, reconciler.WithDryRun(true)).Reconcile(ctx, table, live)
	require.NoError(t, err)

	assert.True(t, result.Metadata.DryRun)
	assert.Empty(t, store.deletes)
	assert.Equal(t, 0, store.maxInFlight, "no writes in a dry run")
	assert.Equal(t, "api a1\nweb w1,w2\n", result.Config)
	assert.True(t, strings.HasPrefix(result.Summary(), "Dry run completed."))
	assert.Equal(t, 1, result.Changeset.Summary.Removed)

	list, err := store.Scan(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, []string{"gone", "web"}, services.Names(list))
}

func TestReconcileConcurrencyLimit(t *testing.T) {
	persisted := []services.Service{}
	run := []services.RunningContainer{}
	for _, name := range []string{"s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8"} {
		persisted = append(persisted, svc(name))
		run = append(run, running(name, name+"-c", "10.0.0.1"))
	}
	store := newFaultyStore(memory.WithServices(table, persisted...))
	store.writeDelay = 5 * time.Millisecond

	_, err := newReconciler(t, store, reconciler.WithConcurrency(2)).
		Reconcile(context.Background(), table, services.LiveReport{Running: run})
	require.NoError(t, err)
	assert.LessOrEqual(t, store.maxInFlight, 2)
	assert.GreaterOrEqual(t, store.maxInFlight, 1)
}

func TestReconcileCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newReconciler(t, memory.New()).Reconcile(ctx, table, services.LiveReport{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.IsStorageUnavailable(err))
}
