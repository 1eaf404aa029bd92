package reconciler_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pgregory.net/rapid"

	"github.com/agentstation/lbmap/internal/store/memory"
	"github.com/agentstation/lbmap/pkg/reconciler"
	"github.com/agentstation/lbmap/pkg/services"
)

func ctr(id, ip string) services.Container {
	return services.Container{ID: id, IP: ip}
}

func running(name, id, ip string) services.RunningContainer {
	return services.RunningContainer{ServiceName: name, ID: id, IP: ip}
}

func svc(name string, containers ...services.Container) services.Service {
	if containers == nil {
		containers = []services.Container{}
	}
	return services.Service{
		Name:       name,
		ConfigMode: services.ConfigModeHost,
		Predicate:  name + ".example.com",
		Containers: containers,
	}
}

func candidate(name string, containers ...services.Container) services.CandidateService {
	return services.CandidateService(svc(name, containers...))
}

// listRenderer renders one line per service with its container ids.
var listRenderer = reconciler.RendererFunc(func(_ context.Context, list []services.Service) (string, error) {
	var sb strings.Builder
	for _, s := range list {
		fmt.Fprintf(&sb, "%s %s\n", s.Name, strings.Join(s.ContainerIDs(), ","))
	}
	return sb.String(), nil
})

// faultyStore wraps a memory store, failing selected writes and tracking how
// many writes run at once.
type faultyStore struct {
	*memory.Store

	failDelete map[string]error
	failUpdate map[string]error
	failCreate error
	failScan   error
	scans      atomic.Int32
	failScanAt int32 // fail the nth scan (1-based); 0 fails every scan when failScan is set

	mu          sync.Mutex
	inFlight    int
	maxInFlight int
	writeDelay  time.Duration
	deletes     []string
}

func newFaultyStore(opts ...memory.Option) *faultyStore {
	return &faultyStore{
		Store:      memory.New(opts...),
		failDelete: map[string]error{},
		failUpdate: map[string]error{},
	}
}

func (f *faultyStore) track() func() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	if f.writeDelay > 0 {
		time.Sleep(f.writeDelay)
	}

	return func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}
}

func (f *faultyStore) Scan(ctx context.Context, table string) ([]services.Service, error) {
	n := f.scans.Add(1)
	if f.failScan != nil && (f.failScanAt == 0 || f.failScanAt == n) {
		return nil, f.failScan
	}
	return f.Store.Scan(ctx, table)
}

func (f *faultyStore) Delete(ctx context.Context, table, name string) error {
	defer f.track()()
	f.mu.Lock()
	f.deletes = append(f.deletes, name)
	f.mu.Unlock()
	if err := f.failDelete[name]; err != nil {
		return err
	}
	return f.Store.Delete(ctx, table, name)
}

func (f *faultyStore) Update(ctx context.Context, table string, s services.Service) error {
	defer f.track()()
	if err := f.failUpdate[s.Name]; err != nil {
		return err
	}
	return f.Store.Update(ctx, table, s)
}

func (f *faultyStore) Create(ctx context.Context, table string, c []services.CandidateService) error {
	defer f.track()()
	if f.failCreate != nil {
		return f.failCreate
	}
	return f.Store.Create(ctx, table, c)
}

// Generators draw from small pools so names and ids collide often.

var (
	nameGen = rapid.SampledFrom([]string{"app1", "app2", "app3", "app4"})
	idGen   = rapid.SampledFrom([]string{"c1", "c2", "c3", "c4", "c5", "c6"})
	ipGen   = rapid.SampledFrom([]string{"10.0.0.1", "10.0.0.2", "10.0.0.3"})
	modeGen = rapid.SampledFrom([]services.ConfigMode{services.ConfigModeHost, services.ConfigModePath, ""})
)

var containerGen = rapid.Custom(func(t *rapid.T) services.Container {
	return services.Container{ID: idGen.Draw(t, "id"), IP: ipGen.Draw(t, "ip")}
})

var containersGen = rapid.SliceOfN(containerGen, 0, 6)

var serviceGen = rapid.Custom(func(t *rapid.T) services.Service {
	return services.Service{
		Name:       nameGen.Draw(t, "name"),
		ConfigMode: modeGen.Draw(t, "mode"),
		Predicate:  rapid.SampledFrom([]string{"/", "/api", "a.example.com"}).Draw(t, "predicate"),
		Cookie:     rapid.SampledFrom([]string{"", "SRV"}).Draw(t, "cookie"),
		Containers: containersGen.Draw(t, "containers"),
	}
})

// persistedGen draws a snapshot with unique service names, as a store holds.
var persistedGen = rapid.Custom(func(t *rapid.T) []services.Service {
	list := rapid.SliceOfN(serviceGen, 0, 4).Draw(t, "services")
	seen := map[string]bool{}
	out := []services.Service{}
	for _, s := range list {
		if !seen[s.Name] {
			seen[s.Name] = true
			out = append(out, s)
		}
	}
	return out
})

var liveGen = rapid.Custom(func(t *rapid.T) services.LiveReport {
	run := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) services.RunningContainer {
		return services.RunningContainer{
			ServiceName: nameGen.Draw(t, "serviceName"),
			ID:          idGen.Draw(t, "id"),
			IP:          ipGen.Draw(t, "ip"),
		}
	}), 0, 8).Draw(t, "running")

	cands := rapid.SliceOfN(rapid.Custom(func(t *rapid.T) services.CandidateService {
		return services.CandidateService(serviceGen.Draw(t, "candidate"))
	}), 0, 4).Draw(t, "candidates")

	return services.LiveReport{Running: run, Candidates: cands}
})
