// Package catalog records files whose size-aware writers completed, that is
// files confirmed visible in their store. A path is only ever added after its
// visibility wait succeeded, so the catalog never lists a file readers could
// fail to see.
package catalog

import (
	"context"
	"errors"
	"time"
)

// Catalog types.
const (
	TypeMemory = "memory"
	TypeBadger = "badger"
)

// ErrNotFound is returned by Get for a path with no committed entry.
var ErrNotFound = errors.New("catalog entry not found")

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("catalog closed")

// Entry describes one committed file.
type Entry struct {
	// Path is the normalized store path.
	Path string `json:"path" yaml:"path"`

	// Size is the writer's byte count at close.
	Size int64 `json:"size" yaml:"size"`

	// StoreType names the backend that holds the file.
	StoreType string `json:"store_type" yaml:"store_type"`

	// CommittedAt is when visibility was confirmed.
	CommittedAt time.Time `json:"committed_at" yaml:"committed_at"`
}

// Catalog persists committed entries. Committing an existing path replaces
// its entry. Implementations are safe for concurrent use.
type Catalog interface {
	Commit(ctx context.Context, entry Entry) error
	Get(ctx context.Context, path string) (*Entry, error)

	// Remove deletes the entry for path. Removing a missing path is not an
	// error.
	Remove(ctx context.Context, path string) error

	// List returns entries whose path starts with prefix, sorted by path.
	List(ctx context.Context, prefix string) ([]Entry, error)

	Type() string
	Close() error
}
