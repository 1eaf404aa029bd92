// Package files provides a service store that keeps one YAML document per
// table in a directory. Documents are replaced atomically on every write, so
// readers never observe a partially written table.
package files

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"
	"github.com/moby/sys/atomicwriter"

	"github.com/agentstation/lbmap/pkg/constants"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/services"
)

const ext = ".yaml"

// document is the on-disk shape of a table.
type document struct {
	Table    string             `yaml:"table"`
	Services []services.Service `yaml:"services"`
}

// Store is a directory of YAML table documents.
type Store struct {
	dir string
	mu  sync.Mutex // serializes read-modify-write of documents
}

// Open returns a store rooted at dir, creating the directory if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(table string) string {
	return filepath.Join(s.dir, table+ext)
}

// read loads a table document. A missing file is an empty table.
func (s *Store) read(table string) (map[string]services.Service, error) {
	if err := services.ValidateName("table", table); err != nil {
		return nil, err
	}
	out := make(map[string]services.Service)

	data, err := os.ReadFile(s.path(table))
	if os.IsNotExist(err) {
		return out, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", s.path(table), err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapParse("yaml", s.path(table), err)
	}
	for _, svc := range doc.Services {
		out[svc.Name] = svc
	}
	return out, nil
}

func (s *Store) write(table string, byName map[string]services.Service) error {
	if err := services.ValidateName("table", table); err != nil {
		return err
	}
	doc := document{Table: table, Services: sorted(byName)}

	data, err := yaml.MarshalWithOptions(doc,
		yaml.Indent(2),
		yaml.IndentSequence(true),
	)
	if err != nil {
		return errors.WrapParse("yaml", s.path(table), err)
	}

	if err := atomicwriter.WriteFile(s.path(table), data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", s.path(table), err)
	}
	return nil
}

// modify applies fn to the table under the store lock and writes the result.
func (s *Store) modify(op, table, key string, fn func(map[string]services.Service)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byName, err := s.read(table)
	if err != nil {
		return errors.NewStoreError(op, table, key, err)
	}
	fn(byName)
	if err := s.write(table, byName); err != nil {
		return errors.NewStoreError(op, table, key, err)
	}
	return nil
}

// Scan returns the table's services in name order.
func (s *Store) Scan(ctx context.Context, table string) ([]services.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byName, err := s.read(table)
	if err != nil {
		return nil, errors.NewStoreError("scan", table, "", err)
	}
	return sorted(byName), nil
}

// Get returns a single service.
func (s *Store) Get(ctx context.Context, table, name string) (services.Service, error) {
	list, err := s.Scan(ctx, table)
	if err != nil {
		return services.Service{}, err
	}
	if svc, ok := services.Find(list, name); ok {
		return svc, nil
	}
	return services.Service{}, errors.NewNotFoundError("service", name)
}

// Delete removes a service. Deleting a missing service leaves the file untouched.
func (s *Store) Delete(ctx context.Context, table, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byName, err := s.read(table)
	if err != nil {
		return errors.NewStoreError("delete", table, name, err)
	}
	if _, ok := byName[name]; !ok {
		return nil
	}
	delete(byName, name)
	if err := s.write(table, byName); err != nil {
		return errors.NewStoreError("delete", table, name, err)
	}
	return nil
}

// Update stores svc under its name, inserting it if absent.
func (s *Store) Update(ctx context.Context, table string, svc services.Service) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.modify("update", table, svc.Name, func(byName map[string]services.Service) {
		byName[svc.Name] = svc.Copy()
	})
}

// Create inserts a batch of services with a single file write.
func (s *Store) Create(ctx context.Context, table string, candidates []services.CandidateService) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.modify("create", table, "", func(byName map[string]services.Service) {
		for _, c := range candidates {
			byName[c.Name] = c.Service()
		}
	})
}

// Tables returns the names of the table documents in the directory, sorted.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, errors.NewStoreError("scan", "", "", errors.WrapIO("read", s.dir, err))
	}

	names := []string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ext))
	}
	slices.Sort(names)
	return names, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func sorted(byName map[string]services.Service) []services.Service {
	list := make([]services.Service, 0, len(byName))
	for _, svc := range byName {
		list = append(list, svc)
	}
	services.SortByName(list)
	return list
}
