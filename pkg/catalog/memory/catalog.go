// Package memory provides an in-process Catalog. Entries are lost when the
// process exits.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/visiblefs/pkg/catalog"
)

// Catalog is a map-backed catalog.Catalog.
type Catalog struct {
	mu      sync.RWMutex
	entries map[string]catalog.Entry
	closed  bool
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{entries: make(map[string]catalog.Entry)}
}

func (c *Catalog) Type() string { return catalog.TypeMemory }

func (c *Catalog) Commit(ctx context.Context, entry catalog.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return catalog.ErrClosed
	}
	c.entries[entry.Path] = entry
	return nil
}

func (c *Catalog) Get(ctx context.Context, path string) (*catalog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, catalog.ErrClosed
	}

	e, ok := c.entries[path]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return &e, nil
}

func (c *Catalog) Remove(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return catalog.ErrClosed
	}
	delete(c.entries, path)
	return nil
}

func (c *Catalog) List(ctx context.Context, prefix string) ([]catalog.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, catalog.ErrClosed
	}

	out := make([]catalog.Entry, 0, len(c.entries))
	for p, e := range c.entries {
		if strings.HasPrefix(p, prefix) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (c *Catalog) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.entries = nil
	return nil
}

var _ catalog.Catalog = (*Catalog)(nil)
