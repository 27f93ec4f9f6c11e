// Package memory provides an in-memory Store with simulated read-after-write
// lag. It backs tests and local dry runs of the commit protocol.
package memory

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/pkg/consistency"
	"github.com/marmos91/visiblefs/pkg/storage"
)

// errHandleClosed is returned by writes on a handle that was already closed.
var errHandleClosed = errors.New("memory handle closed")

// Config holds configuration for the memory store.
type Config struct {
	// VisibilityLag is how long a committed file stays invisible to Exists,
	// Open and List after its handle is closed. Zero means immediate.
	VisibilityLag time.Duration
}

type object struct {
	data      []byte
	visibleAt time.Time
}

// Store is an in-memory implementation of storage.Store.
type Store struct {
	mu      sync.RWMutex
	objects map[string]*object
	lag     time.Duration
	closed  bool
}

// New creates an empty memory store.
func New(cfg Config) *Store {
	return &Store{
		objects: make(map[string]*object),
		lag:     cfg.VisibilityLag,
	}
}

// Type returns storage.TypeMemory.
func (s *Store) Type() string { return storage.TypeMemory }

// Create returns a handle that buffers writes and commits them on Close.
func (s *Store) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	key, err := storage.CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, storage.ErrStoreClosed
	}
	return &handle{store: s, key: key}, nil
}

func (s *Store) commit(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStoreClosed
	}
	s.objects[key] = &object{data: data, visibleAt: time.Now().Add(s.lag)}

	logger.Debug("Memory object committed", logger.Path(key), logger.Size(int64(len(data))), logger.KeyLag, s.lag)
	return nil
}

// lookup returns the object at key if it is visible now.
func (s *Store) lookup(key string) (*object, error) {
	if s.closed {
		return nil, storage.ErrStoreClosed
	}
	obj, ok := s.objects[key]
	if !ok || time.Now().Before(obj.visibleAt) {
		return nil, storage.ErrNotFound
	}
	return obj, nil
}

// Open returns a reader over a copy of a visible file.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	key, err := storage.CleanPath(path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, err := s.lookup(key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(bytes.Clone(obj.data))), nil
}

// Exists reports whether path is committed and past its visibility lag.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	key, err := storage.CleanPath(path)
	if err != nil {
		return false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err = s.lookup(key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Delete removes path.
func (s *Store) Delete(ctx context.Context, path string) error {
	key, err := storage.CleanPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return storage.ErrStoreClosed
	}
	delete(s.objects, key)
	return nil
}

// List returns visible paths with the given prefix, sorted.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, storage.ErrStoreClosed
	}

	now := time.Now()
	paths := make([]string, 0)
	for key, obj := range s.objects {
		if strings.HasPrefix(key, prefix) && !now.Before(obj.visibleAt) {
			paths = append(paths, key)
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// WaitForVisibility blocks until path has outlived the visibility lag or ctx
// expires. The store knows the exact instant a committed file becomes
// visible, so it sleeps once instead of probing.
func (s *Store) WaitForVisibility(ctx context.Context, path string) error {
	key, err := storage.CleanPath(path)
	if err != nil {
		return err
	}

	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return storage.ErrStoreClosed
	}
	obj, ok := s.objects[key]
	s.mu.RUnlock()

	if !ok {
		// Never committed: nothing will make it appear.
		<-ctx.Done()
		return consistency.TimeoutError(key, ctx.Err())
	}

	remaining := time.Until(obj.visibleAt)
	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return consistency.TimeoutError(key, ctx.Err())
	}
}

// HealthCheck reports whether the store is still open.
func (s *Store) HealthCheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return storage.ErrStoreClosed
	}
	return nil
}

// Close marks the store as closed and drops its contents.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.objects = make(map[string]*object)
	return nil
}

// handle buffers writes for a single Create call.
type handle struct {
	store  *Store
	key    string
	mu     sync.Mutex
	buf    bytes.Buffer
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, errHandleClosed
	}
	return h.buf.Write(p)
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errHandleClosed
	}
	h.closed = true
	return h.store.commit(h.key, bytes.Clone(h.buf.Bytes()))
}

// Abort drops the buffered bytes without committing them.
func (h *handle) Abort() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errHandleClosed
	}
	h.closed = true
	h.buf = bytes.Buffer{}
	return nil
}

var (
	_ storage.Store     = (*Store)(nil)
	_ storage.Aborter   = (*handle)(nil)
	_ consistency.Guard = (*Store)(nil)
)
