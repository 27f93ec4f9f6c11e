package wrapperfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/visiblefs/pkg/catalog"
	catalogmemory "github.com/marmos91/visiblefs/pkg/catalog/memory"
	"github.com/marmos91/visiblefs/pkg/consistency"
	"github.com/marmos91/visiblefs/pkg/storage"
	fsstore "github.com/marmos91/visiblefs/pkg/storage/fs"
	"github.com/marmos91/visiblefs/pkg/storage/memory"
	"github.com/marmos91/visiblefs/pkg/storage/sizeaware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingMetrics captures every observation for assertions.
type recordingMetrics struct {
	mu       sync.Mutex
	bytes    int64
	outcomes []string
	open     []int
}

func (m *recordingMetrics) RecordBytes(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytes += n
}

func (m *recordingMetrics) ObserveClose(outcome string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, outcome)
}

func (m *recordingMetrics) SetOpenWriters(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = append(m.open, n)
}

// failingStore hands out handles whose Close fails.
type failingStore struct {
	*memory.Store
	closeErr error
}

func (s *failingStore) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	w, err := s.Store.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	return &failingHandle{WriteCloser: w, err: s.closeErr}, nil
}

type failingHandle struct {
	io.WriteCloser
	err error
}

func (h *failingHandle) Close() error { return h.err }

// failingCatalog rejects every commit.
type failingCatalog struct {
	*catalogmemory.Catalog
}

func (failingCatalog) Commit(context.Context, catalog.Entry) error {
	return errors.New("disk full")
}

type fixture struct {
	fs      *FileSystem
	store   *memory.Store
	catalog *catalogmemory.Catalog
	metrics *recordingMetrics
}

func newFixture(t *testing.T, guard consistency.Guard, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		store:   memory.New(memory.Config{}),
		catalog: catalogmemory.New(),
		metrics: &recordingMetrics{},
	}
	opts = append([]Option{WithCatalog(f.catalog), WithMetrics(f.metrics)}, opts...)

	fs, err := New(f.store, guard, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fs.Close() })
	f.fs = fs
	return f
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(nil, nil)
	assert.ErrorIs(t, err, sizeaware.ErrInvalidArgument)
}

func TestCreateWriteClose_Commits(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	w, err := f.fs.Create(ctx, "/t1/part-0.parquet")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1/part-0.parquet"}, f.fs.OpenWriters())

	_, err = w.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = w.Write([]byte("de"))
	require.NoError(t, err)

	n, err := f.fs.BytesWritten("t1/part-0.parquet")
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	require.NoError(t, w.Close())
	assert.Equal(t, sizeaware.StateVisible, w.State())
	assert.Empty(t, f.fs.OpenWriters())

	entry, err := f.fs.Stat(ctx, "t1/part-0.parquet")
	require.NoError(t, err)
	assert.Equal(t, int64(5), entry.Size)
	assert.Equal(t, storage.TypeMemory, entry.StoreType)
	assert.False(t, entry.CommittedAt.IsZero())

	ok, err := f.fs.Exists(ctx, "t1/part-0.parquet")
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, int64(5), f.metrics.bytes)
	assert.Equal(t, []string{OutcomeCommitted}, f.metrics.outcomes)
	assert.Equal(t, []int{1, 0}, f.metrics.open)
}

func TestCreateRejectsSecondOpenWriter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	w, err := f.fs.Create(ctx, "a/b")
	require.NoError(t, err)

	_, err = f.fs.Create(ctx, "/a//b")
	assert.ErrorIs(t, err, storage.ErrAlreadyOpen)

	require.NoError(t, w.Close())

	w2, err := f.fs.Create(ctx, "a/b")
	require.NoError(t, err)
	require.NoError(t, w2.Close())
}

func TestCreateInvalidPath(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.fs.Create(context.Background(), "../escape")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)
	assert.Empty(t, f.fs.OpenWriters())
}

func TestCloseWaitsForLaggingStore(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.Config{VisibilityLag: 30 * time.Millisecond})
	cat := catalogmemory.New()

	fs, err := New(store, nil, WithCatalog(cat))
	require.NoError(t, err)
	defer fs.Close()

	w, err := fs.Create(ctx, "lagging")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)

	start := time.Now()
	require.NoError(t, w.Close())
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	// Visible as soon as Close returns.
	ok, err := fs.Exists(ctx, "lagging")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVisibilityTimeout_NotCommitted(t *testing.T) {
	ctx := context.Background()
	guard := consistency.GuardFunc(func(ctx context.Context, path string) error {
		<-ctx.Done()
		return consistency.TimeoutError(path, ctx.Err())
	})
	f := newFixture(t, guard, WithVisibilityTimeout(20*time.Millisecond))

	w, err := f.fs.Create(ctx, "slow")
	require.NoError(t, err)
	_, err = w.Write([]byte("data"))
	require.NoError(t, err)

	err = w.Close()
	assert.ErrorIs(t, err, sizeaware.ErrVisibilityTimeout)
	assert.ErrorIs(t, err, consistency.ErrTimeout)
	assert.Equal(t, sizeaware.StateFailed, w.State())

	assert.Empty(t, f.fs.OpenWriters())
	_, err = f.fs.Stat(ctx, "slow")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	assert.Equal(t, int64(0), f.metrics.bytes)
	assert.Equal(t, []string{OutcomeVisibilityTimeout}, f.metrics.outcomes)
}

func TestHandleCloseFailure_NotCommitted(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{Store: memory.New(memory.Config{}), closeErr: errors.New("connection reset")}
	cat := catalogmemory.New()
	m := &recordingMetrics{}

	guardCalls := 0
	guard := consistency.GuardFunc(func(context.Context, string) error {
		guardCalls++
		return nil
	})

	fs, err := New(store, guard, WithCatalog(cat), WithMetrics(m))
	require.NoError(t, err)
	defer fs.Close()

	w, err := fs.Create(ctx, "broken")
	require.NoError(t, err)

	err = w.Close()
	assert.ErrorIs(t, err, sizeaware.ErrIO)
	assert.Equal(t, 0, guardCalls)
	assert.Empty(t, fs.OpenWriters())

	_, err = cat.Get(ctx, "broken")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
	assert.Equal(t, []string{OutcomeIOError}, m.outcomes)
}

func TestCatalogFailureSurfacesFromClose(t *testing.T) {
	ctx := context.Background()
	m := &recordingMetrics{}

	fs, err := New(memory.New(memory.Config{}), nil,
		WithCatalog(failingCatalog{catalogmemory.New()}), WithMetrics(m))
	require.NoError(t, err)
	defer fs.Close()

	w, err := fs.Create(ctx, "orphan")
	require.NoError(t, err)

	err = w.Close()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	// The file itself is visible; only the catalog lost track of it.
	assert.Equal(t, sizeaware.StateVisible, w.State())
	ok, err := fs.Exists(ctx, "orphan")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, fs.OpenWriters())
	assert.Equal(t, []string{OutcomeCatalogError}, m.outcomes)
}

func TestDoubleClose(t *testing.T) {
	f := newFixture(t, nil)

	w, err := f.fs.Create(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	assert.ErrorIs(t, w.Close(), sizeaware.ErrClosed)
	assert.Equal(t, []string{OutcomeCommitted}, f.metrics.outcomes, "second close is not observed")
}

func TestBytesWrittenNotOpen(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.fs.BytesWritten("ghost")
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestDeleteRejectsOpenWriter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	w, err := f.fs.Create(ctx, "busy")
	require.NoError(t, err)

	assert.ErrorIs(t, f.fs.Delete(ctx, "busy"), storage.ErrAlreadyOpen)

	require.NoError(t, w.Close())
	require.NoError(t, f.fs.Delete(ctx, "busy"))

	ok, err := f.fs.Exists(ctx, "busy")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.fs.Stat(ctx, "busy")
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestOpenReadsCommittedData(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	w, err := f.fs.Create(ctx, "r")
	require.NoError(t, err)
	_, err = io.WriteString(w, "payload")
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := f.fs.Open(ctx, "r")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestListAndStatWithoutCatalog(t *testing.T) {
	fs, err := New(memory.New(memory.Config{}), consistency.NoOp{})
	require.NoError(t, err)
	defer fs.Close()

	_, err = fs.List(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoCatalog)
	_, err = fs.Stat(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoCatalog)
}

func TestConcurrentWritersOnDistinctPaths(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w, err := f.fs.Create(ctx, fmt.Sprintf("p/%02d", i))
			if !assert.NoError(t, err) {
				return
			}
			for range i {
				_, _ = w.Write([]byte("x"))
			}
			assert.NoError(t, w.Close())
		}()
	}
	wg.Wait()

	entries, err := f.fs.List(ctx, "p/")
	require.NoError(t, err)
	require.Len(t, entries, 20)
	for i, e := range entries {
		assert.Equal(t, int64(i), e.Size)
	}
	assert.Empty(t, f.fs.OpenWriters())
}

func TestCloseFileSystem(t *testing.T) {
	ctx := context.Background()
	store := memory.New(memory.Config{})
	cat := catalogmemory.New()

	fs, err := New(store, nil, WithCatalog(cat))
	require.NoError(t, err)

	_, err = fs.Create(ctx, "abandoned")
	require.NoError(t, err)

	require.NoError(t, fs.Close())
	require.NoError(t, fs.Close())

	_, err = fs.Create(ctx, "late")
	assert.ErrorIs(t, err, storage.ErrStoreClosed)

	_, err = cat.Get(ctx, "abandoned")
	assert.ErrorIs(t, err, catalog.ErrClosed)
}

func TestAbortReleasesPathWithoutCommit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, consistency.NoOp{})

	w, err := f.fs.Create(ctx, "reports/a.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	require.NoError(t, w.Abort())
	assert.Equal(t, sizeaware.StateAborted, w.State())
	assert.Empty(t, f.fs.OpenWriters())
	assert.ErrorIs(t, w.Close(), sizeaware.ErrClosed)

	ok, err := f.fs.Exists(ctx, "reports/a.csv")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.catalog.Get(ctx, "reports/a.csv")
	assert.ErrorIs(t, err, catalog.ErrNotFound)

	assert.Equal(t, []string{OutcomeAborted}, f.metrics.outcomes)
	assert.Zero(t, f.metrics.bytes)

	// The path can be written again.
	w, err = f.fs.Create(ctx, "reports/a.csv")
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestCloseFileSystemRemovesStagingFiles(t *testing.T) {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "store")
	store, err := fsstore.New(fsstore.DefaultConfig(root))
	require.NoError(t, err)

	fsys, err := New(store, nil)
	require.NoError(t, err)

	w, err := fsys.Create(ctx, "reports/a.csv")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	require.NoError(t, fsys.Close())

	entries, err := os.ReadDir(filepath.Join(root, "reports"))
	require.NoError(t, err)
	for _, e := range entries {
		t.Errorf("left on disk after Close: %s", e.Name())
	}
	assert.Equal(t, sizeaware.StateAborted, w.State())
	assert.Empty(t, fsys.OpenWriters())
}
