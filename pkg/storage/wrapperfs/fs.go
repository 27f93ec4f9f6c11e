// Package wrapperfs is the owning side of size-aware writers: it hands them
// out over a Store, tracks which paths are still being written, and records
// every file whose visibility was confirmed in a catalog.
package wrapperfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/marmos91/visiblefs/internal/logger"
	"github.com/marmos91/visiblefs/internal/telemetry"
	"github.com/marmos91/visiblefs/pkg/catalog"
	"github.com/marmos91/visiblefs/pkg/consistency"
	"github.com/marmos91/visiblefs/pkg/storage"
	"github.com/marmos91/visiblefs/pkg/storage/sizeaware"
)

// Close outcomes reported to Metrics and spans.
const (
	OutcomeCommitted         = "committed"
	OutcomeIOError           = "io_error"
	OutcomeVisibilityTimeout = "visibility_timeout"
	OutcomeCatalogError      = "catalog_error"
	OutcomeAborted           = "aborted"
)

var (
	// ErrNotOpen is returned by BytesWritten for a path with no open writer.
	ErrNotOpen = errors.New("no open writer for path")

	// ErrNoCatalog is returned by Stat and List when no catalog is configured.
	ErrNoCatalog = errors.New("no catalog configured")
)

// Metrics receives writer observations. A nil Metrics disables collection.
type Metrics interface {
	// RecordBytes adds the size of a committed file.
	RecordBytes(bytes int64)

	// ObserveClose records one finished close sequence.
	ObserveClose(outcome string, duration time.Duration)

	// SetOpenWriters reports the current number of open writers.
	SetOpenWriters(n int)
}

// Option configures a FileSystem.
type Option func(*FileSystem)

// WithCatalog records committed files in c. FileSystem.Close closes it.
func WithCatalog(c catalog.Catalog) Option {
	return func(fs *FileSystem) { fs.catalog = c }
}

// WithMetrics reports writer activity to m.
func WithMetrics(m Metrics) Option {
	return func(fs *FileSystem) { fs.metrics = m }
}

// WithVisibilityTimeout bounds every writer's visibility wait.
func WithVisibilityTimeout(d time.Duration) Option {
	return func(fs *FileSystem) { fs.timeout = d }
}

// FileSystem wraps a Store and allows at most one open writer per path.
type FileSystem struct {
	store   storage.Store
	guard   consistency.Guard
	catalog catalog.Catalog
	metrics Metrics
	timeout time.Duration

	mu      sync.Mutex
	writers map[string]*File
	closed  bool
}

// New creates a FileSystem over store. A nil guard selects
// consistency.ForStore(store).
func New(store storage.Store, guard consistency.Guard, opts ...Option) (*FileSystem, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: nil store", sizeaware.ErrInvalidArgument)
	}
	if guard == nil {
		guard = consistency.ForStore(store)
	}

	fs := &FileSystem{
		store:   store,
		guard:   guard,
		timeout: sizeaware.DefaultVisibilityTimeout,
		writers: make(map[string]*File),
	}
	for _, opt := range opts {
		opt(fs)
	}
	return fs, nil
}

// StoreType returns the wrapped store's type.
func (fs *FileSystem) StoreType() string {
	return fs.store.Type()
}

// Create opens a size-aware writer for path. The returned File must be
// closed; only a successful Close commits the path to the catalog.
func (fs *FileSystem) Create(ctx context.Context, path string) (*File, error) {
	key, err := storage.CleanPath(path)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartWriterSpan(ctx, telemetry.SpanWriterCreate, key,
		telemetry.StoreType(fs.store.Type()))
	defer span.End()

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.closed {
		return nil, storage.ErrStoreClosed
	}
	if _, open := fs.writers[key]; open {
		err := fmt.Errorf("%w: %s", storage.ErrAlreadyOpen, key)
		telemetry.RecordError(ctx, err)
		return nil, err
	}

	out, err := fs.store.Create(ctx, key)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return nil, fmt.Errorf("create %s: %w", key, err)
	}

	lc := logger.NewLogContext("write", key).
		WithStore(fs.store.Type()).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	f := &File{fs: fs, ctx: context.WithoutCancel(ctx)}
	w, err := sizeaware.New(key, out, fs.guard, f.commit,
		sizeaware.WithVisibilityTimeout(fs.timeout),
		sizeaware.WithContext(ctx),
	)
	if err != nil {
		_ = out.Close()
		return nil, err
	}
	f.Writer = w

	fs.writers[key] = f
	fs.reportOpenLocked()

	logger.DebugCtx(ctx, "Writer opened")
	return f, nil
}

// BytesWritten returns the running size of the open writer for path.
func (fs *FileSystem) BytesWritten(path string) (int64, error) {
	key, err := storage.CleanPath(path)
	if err != nil {
		return 0, err
	}

	fs.mu.Lock()
	f, ok := fs.writers[key]
	fs.mu.Unlock()

	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrNotOpen, key)
	}
	return f.BytesWritten(), nil
}

// OpenWriters returns the paths with an open writer, sorted.
func (fs *FileSystem) OpenWriters() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	paths := make([]string, 0, len(fs.writers))
	for p := range fs.writers {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Open returns a reader for a visible path.
func (fs *FileSystem) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreOpen, fs.store.Type(), telemetry.Path(path))
	defer span.End()

	r, err := fs.store.Open(ctx, path)
	telemetry.RecordError(ctx, err)
	return r, err
}

// Exists reports whether path is currently visible in the store.
func (fs *FileSystem) Exists(ctx context.Context, path string) (bool, error) {
	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreExists, fs.store.Type(), telemetry.Path(path))
	defer span.End()

	ok, err := fs.store.Exists(ctx, path)
	telemetry.RecordError(ctx, err)
	return ok, err
}

// Delete removes path from the store and then from the catalog. A path with
// an open writer cannot be deleted.
func (fs *FileSystem) Delete(ctx context.Context, path string) error {
	key, err := storage.CleanPath(path)
	if err != nil {
		return err
	}

	fs.mu.Lock()
	_, open := fs.writers[key]
	fs.mu.Unlock()
	if open {
		return fmt.Errorf("delete %s: %w", key, storage.ErrAlreadyOpen)
	}

	ctx, span := telemetry.StartStoreSpan(ctx, telemetry.SpanStoreDelete, fs.store.Type(), telemetry.Path(key))
	defer span.End()

	if err := fs.store.Delete(ctx, key); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}

	if fs.catalog != nil {
		if err := fs.catalog.Remove(ctx, key); err != nil {
			telemetry.RecordError(ctx, err)
			return fmt.Errorf("delete %s: remove catalog entry: %w", key, err)
		}
	}
	return nil
}

// Stat returns the catalog entry for a committed path.
func (fs *FileSystem) Stat(ctx context.Context, path string) (*catalog.Entry, error) {
	if fs.catalog == nil {
		return nil, ErrNoCatalog
	}
	key, err := storage.CleanPath(path)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartCatalogSpan(ctx, telemetry.SpanCatalogGet,
		telemetry.CatalogType(fs.catalog.Type()), telemetry.Path(key))
	defer span.End()

	e, err := fs.catalog.Get(ctx, key)
	telemetry.RecordError(ctx, err)
	return e, err
}

// List returns committed catalog entries under prefix.
func (fs *FileSystem) List(ctx context.Context, prefix string) ([]catalog.Entry, error) {
	if fs.catalog == nil {
		return nil, ErrNoCatalog
	}

	ctx, span := telemetry.StartCatalogSpan(ctx, telemetry.SpanCatalogList,
		telemetry.CatalogType(fs.catalog.Type()))
	defer span.End()

	entries, err := fs.catalog.List(ctx, prefix)
	telemetry.RecordError(ctx, err)
	return entries, err
}

// Close aborts writers still open, then closes the store and the catalog.
// Aborted paths are never committed.
func (fs *FileSystem) Close() error {
	fs.mu.Lock()
	if fs.closed {
		fs.mu.Unlock()
		return nil
	}
	fs.closed = true
	abandoned := make([]*File, 0, len(fs.writers))
	for _, f := range fs.writers {
		abandoned = append(abandoned, f)
	}
	fs.mu.Unlock()

	var errs []error
	if len(abandoned) > 0 {
		logger.Warn("Closing filesystem with open writers", logger.KeyOpenWriters, len(abandoned))
	}
	for _, f := range abandoned {
		if err := f.Abort(); err != nil && !errors.Is(err, sizeaware.ErrClosed) {
			errs = append(errs, err)
		}
	}

	if err := fs.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	if fs.catalog != nil {
		if err := fs.catalog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close catalog: %w", err))
		}
	}
	return errors.Join(errs...)
}

// release drops f from the open set.
func (fs *FileSystem) release(f *File) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.writers[f.Path()] == f {
		delete(fs.writers, f.Path())
	}
	fs.reportOpenLocked()
}

func (fs *FileSystem) reportOpenLocked() {
	if fs.metrics != nil {
		fs.metrics.SetOpenWriters(len(fs.writers))
	}
}
