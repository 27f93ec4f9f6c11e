// Package badger provides a Catalog persisted in BadgerDB so committed
// entries survive restarts of the CLI.
//
// Key layout: "e:<path>" -> JSON-encoded catalog.Entry. Prefix listings are
// a single iterator over "e:<prefix>", which keeps them sorted by path.
package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/pkg/catalog"
)

const prefixEntry = "e:"

// Config holds configuration for the badger catalog.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory keeps the database in RAM. Used by tests.
	InMemory bool
}

// Catalog is a BadgerDB-backed catalog.Catalog.
type Catalog struct {
	db *badgerdb.DB

	closeOnce sync.Once
	closeErr  error
}

// New opens (or creates) the database described by cfg.
func New(cfg Config) (*Catalog, error) {
	if cfg.Path == "" && !cfg.InMemory {
		return nil, errors.New("badger catalog: path is required")
	}

	opts := badgerdb.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger catalog: %w", err)
	}

	logger.Debug("Badger catalog opened", "path", cfg.Path, "in_memory", cfg.InMemory)
	return &Catalog{db: db}, nil
}

func keyEntry(path string) []byte {
	return []byte(prefixEntry + path)
}

func encodeEntry(e catalog.Entry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (catalog.Entry, error) {
	var e catalog.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return catalog.Entry{}, fmt.Errorf("failed to unmarshal entry: %w", err)
	}
	return e, nil
}

func (c *Catalog) Type() string { return catalog.TypeBadger }

func (c *Catalog) Commit(ctx context.Context, entry catalog.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := encodeEntry(entry)
	if err != nil {
		return err
	}

	err = c.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Set(keyEntry(entry.Path), data)
	})
	return mapError(err)
}

func (c *Catalog) Get(ctx context.Context, path string) (*catalog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entry catalog.Entry
	err := c.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyEntry(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			entry, err = decodeEntry(val)
			return err
		})
	})
	if err != nil {
		return nil, mapError(err)
	}
	return &entry, nil
}

func (c *Catalog) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(keyEntry(path))
	})
	return mapError(err)
}

func (c *Catalog) List(ctx context.Context, prefix string) ([]catalog.Entry, error) {
	entries := make([]catalog.Entry, 0)

	err := c.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = keyEntry(prefix)
		opts.PrefetchValues = true

		it := txn.NewIterator(opts)
		defer it.Close()

		n := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if n%100 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			n++

			err := it.Item().Value(func(val []byte) error {
				e, err := decodeEntry(val)
				if err != nil {
					return err
				}
				entries = append(entries, e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return entries, nil
}

// HealthCheck verifies the database can still serve a read transaction.
func (c *Catalog) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", mapError(err))
	}
	return nil
}

func (c *Catalog) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.db.Close()
	})
	return c.closeErr
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badgerdb.ErrKeyNotFound):
		return catalog.ErrNotFound
	case errors.Is(err, badgerdb.ErrDBClosed):
		return catalog.ErrClosed
	default:
		return err
	}
}

var _ catalog.Catalog = (*Catalog)(nil)
