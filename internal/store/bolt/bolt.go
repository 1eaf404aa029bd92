// Package bolt provides a durable service store backed by a bbolt database.
// Each table is a bucket; each service is a JSON value keyed by its name.
package bolt

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/agentstation/lbmap/pkg/constants"
	"github.com/agentstation/lbmap/pkg/errors"
	"github.com/agentstation/lbmap/pkg/services"
)

// Store is a bbolt-backed service store.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if needed) the database file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", filepath.Dir(path), err)
	}

	db, err := bolt.Open(path, constants.SecureFilePermissions, &bolt.Options{Timeout: constants.StoreOpenTimeout})
	if err != nil {
		return nil, errors.NewStoreError("open", "", path, err)
	}
	return &Store{db: db}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.db.Path()
}

// Scan returns the table's services in name order.
func (s *Store) Scan(ctx context.Context, table string) ([]services.Service, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	list := []services.Service{}
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var svc services.Service
			if err := json.Unmarshal(v, &svc); err != nil {
				return errors.WrapParse("json", string(k), err)
			}
			list = append(list, svc)
			return nil
		})
	})
	if err != nil {
		return nil, errors.NewStoreError("scan", table, "", err)
	}
	return list, nil
}

// Get returns a single service.
func (s *Store) Get(ctx context.Context, table, name string) (services.Service, error) {
	if err := ctx.Err(); err != nil {
		return services.Service{}, err
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if b := tx.Bucket([]byte(table)); b != nil {
			if v := b.Get([]byte(name)); v != nil {
				data = append([]byte(nil), v...)
			}
		}
		return nil
	})
	if err != nil {
		return services.Service{}, errors.NewStoreError("get", table, name, err)
	}
	if data == nil {
		return services.Service{}, errors.NewNotFoundError("service", name)
	}

	var svc services.Service
	if err := json.Unmarshal(data, &svc); err != nil {
		return services.Service{}, errors.NewStoreError("get", table, name, errors.WrapParse("json", name, err))
	}
	return svc, nil
}

// Delete removes a service. Deleting a missing service is a no-op.
func (s *Store) Delete(ctx context.Context, table, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Batch coalesces the concurrent per-service writes of one stage.
	err := s.db.Batch(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(table))
		if b == nil {
			return nil
		}
		return b.Delete([]byte(name))
	})
	if err != nil {
		return errors.NewStoreError("delete", table, name, err)
	}
	return nil
}

// Update stores svc under its name, inserting it if absent.
func (s *Store) Update(ctx context.Context, table string, svc services.Service) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(svc)
	if err != nil {
		return errors.NewStoreError("update", table, svc.Name, err)
	}

	err = s.db.Batch(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		return b.Put([]byte(svc.Name), data)
	})
	if err != nil {
		return errors.NewStoreError("update", table, svc.Name, err)
	}
	return nil
}

// Create inserts a batch of services in a single transaction.
func (s *Store) Create(ctx context.Context, table string, candidates []services.CandidateService) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(table))
		if err != nil {
			return err
		}
		for _, c := range candidates {
			data, err := json.Marshal(c.Service())
			if err != nil {
				return err
			}
			if err := b.Put([]byte(c.Name), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.NewStoreError("create", table, "", err)
	}
	return nil
}

// Tables returns the names of all tables in key order.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names := []string{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	if err != nil {
		return nil, errors.NewStoreError("scan", "", "", err)
	}
	return names, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
