// Package memory provides an in-memory service store for tests and
// single-process use.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/services"
)

// Store keeps tables in maps guarded by a RWMutex.
type Store struct {
	mu       sync.RWMutex
	tables   map[string]map[string]services.Service
	readOnly bool
}

// Option configures a memory Store.
type Option func(*Store)

// WithServices preloads a table.
func WithServices(table string, list ...services.Service) Option {
	return func(s *Store) {
		t := s.table(table)
		for _, svc := range list {
			t[svc.Name] = svc.Copy()
		}
	}
}

// ReadOnly makes every write fail with errors.ErrReadOnly.
func ReadOnly() Option {
	return func(s *Store) {
		s.readOnly = true
	}
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{tables: make(map[string]map[string]services.Service)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// table returns the named table, creating it. Callers hold the write lock.
func (s *Store) table(name string) map[string]services.Service {
	t, ok := s.tables[name]
	if !ok {
		t = make(map[string]services.Service)
		s.tables[name] = t
	}
	return t
}

// Scan returns the table's services sorted by name.
func (s *Store) Scan(ctx context.Context, table string) ([]services.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	list := make([]services.Service, 0, len(s.tables[table]))
	for _, svc := range s.tables[table] {
		list = append(list, svc.Copy())
	}
	services.SortByName(list)
	return list, nil
}

// Get returns a single service.
func (s *Store) Get(ctx context.Context, table, name string) (services.Service, error) {
	if err := ctx.Err(); err != nil {
		return services.Service{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.tables[table][name]
	if !ok {
		return services.Service{}, errors.NewNotFoundError("service", name)
	}
	return svc.Copy(), nil
}

// Delete removes a service. Deleting a missing service is a no-op.
func (s *Store) Delete(ctx context.Context, table, name string) error {
	if err := s.writable(ctx, "delete", table, name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tables[table], name)
	return nil
}

// Update stores svc under its name, inserting it if absent.
func (s *Store) Update(ctx context.Context, table string, svc services.Service) error {
	if err := s.writable(ctx, "update", table, svc.Name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.table(table)[svc.Name] = svc.Copy()
	return nil
}

// Create inserts a batch of services. A later entry replaces an earlier one
// with the same name.
func (s *Store) Create(ctx context.Context, table string, candidates []services.CandidateService) error {
	if err := s.writable(ctx, "create", table, ""); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.table(table)
	for _, c := range candidates {
		t[c.Name] = c.Service()
	}
	return nil
}

// Tables returns the names of all tables, sorted.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func (s *Store) writable(ctx context.Context, op, table, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.readOnly {
		return errors.NewStoreError(op, table, key, errors.ErrReadOnly)
	}
	return nil
}
