// Package fs provides a local-filesystem Store. Files are staged under a
// temporary name and renamed into place when their handle is closed, so a
// reader never observes a partially written file.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/pkg/storage"
)

// tmpMarker tags staging files so List can skip them.
const tmpMarker = ".tmp-"

// stagingName returns the hidden staging file name for base.
func stagingName(base string) string {
	return "." + base + tmpMarker + uuid.NewString()
}

// isStagingName reports whether name has the exact shape produced by
// stagingName. A committed file that merely contains tmpMarker is not one.
func isStagingName(name string) bool {
	if !strings.HasPrefix(name, ".") {
		return false
	}
	i := strings.LastIndex(name, tmpMarker)
	if i <= 1 {
		return false
	}
	id := name[i+len(tmpMarker):]
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// Config holds configuration for the filesystem store.
type Config struct {
	// Root is the directory all paths are resolved against.
	Root string

	// CreateDir creates Root if it doesn't exist.
	CreateDir bool

	// DirMode is the permission mode for created directories. Default: 0755
	DirMode os.FileMode

	// FileMode is the permission mode for created files. Default: 0644
	FileMode os.FileMode
}

// DefaultConfig returns the default configuration rooted at root.
func DefaultConfig(root string) Config {
	return Config{
		Root:      root,
		CreateDir: true,
		DirMode:   0755,
		FileMode:  0644,
	}
}

// Store is a filesystem-backed implementation of storage.Store.
type Store struct {
	mu       sync.RWMutex
	root     string
	dirMode  os.FileMode
	fileMode os.FileMode
	closed   bool
}

// New creates a filesystem store with the given configuration.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errors.New("filesystem store: root is required")
	}
	if cfg.DirMode == 0 {
		cfg.DirMode = 0755
	}
	if cfg.FileMode == 0 {
		cfg.FileMode = 0644
	}

	if cfg.CreateDir {
		if err := os.MkdirAll(cfg.Root, cfg.DirMode); err != nil {
			return nil, fmt.Errorf("filesystem store: create root: %w", err)
		}
	}

	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("filesystem store: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("filesystem store: %s is not a directory", cfg.Root)
	}

	return &Store{
		root:     cfg.Root,
		dirMode:  cfg.DirMode,
		fileMode: cfg.FileMode,
	}, nil
}

// Type returns storage.TypeFilesystem.
func (s *Store) Type() string { return storage.TypeFilesystem }

func (s *Store) resolve(path string) (string, error) {
	key, err := storage.CleanPath(path)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return storage.ErrStoreClosed
	}
	return nil
}

// Create opens a staging file next to path; Close renames it onto path.
func (s *Store) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	final, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(final)
	if err := os.MkdirAll(dir, s.dirMode); err != nil {
		return nil, fmt.Errorf("create parent of %s: %w", path, err)
	}

	tmp := filepath.Join(dir, stagingName(filepath.Base(final)))
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, s.fileMode)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}

	logger.Debug("Filesystem staging file created", logger.Path(path), "tmp", tmp)
	return &handle{f: f, tmp: tmp, final: final}, nil
}

// Open returns a reader for path.
func (s *Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// Exists reports whether path is a regular file.
func (s *Store) Exists(ctx context.Context, path string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}

	info, err := os.Stat(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Delete removes path. Missing files are ignored.
func (s *Store) Delete(ctx context.Context, path string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// List walks the root and returns committed files starting with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	paths := make([]string, 0)
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || isStagingName(d.Name()) {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if strings.HasPrefix(rel, prefix) {
			paths = append(paths, rel)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// HealthCheck verifies the root directory is still accessible.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if _, err := os.Stat(s.root); err != nil {
		return fmt.Errorf("filesystem health check failed: %w", err)
	}
	return nil
}

// Close marks the store as closed. Files on disk are left in place.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

// errHandleClosed is returned by a handle that was already closed or aborted.
var errHandleClosed = errors.New("filesystem handle closed")

// handle stages writes in a temporary file.
type handle struct {
	mu     sync.Mutex
	f      *os.File
	tmp    string
	final  string
	closed bool
}

func (h *handle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, errHandleClosed
	}
	return h.f.Write(p)
}

// Close syncs and renames the staging file into place. On any failure the
// staging file is removed.
func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errHandleClosed
	}
	h.closed = true

	err := h.f.Sync()
	if cerr := h.f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(h.tmp, h.final)
	}
	if err != nil {
		_ = os.Remove(h.tmp)
		return err
	}
	return nil
}

// Abort closes and removes the staging file. The target path is untouched.
func (h *handle) Abort() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errHandleClosed
	}
	h.closed = true

	err := h.f.Close()
	if rerr := os.Remove(h.tmp); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) && err == nil {
		err = rerr
	}
	logger.Debug("Filesystem staging file discarded", "tmp", h.tmp)
	return err
}

var (
	_ storage.Store   = (*Store)(nil)
	_ storage.Aborter = (*handle)(nil)
)
