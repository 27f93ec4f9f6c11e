// Package catalogtest provides a conformance suite for catalog.Catalog
// implementations. Every backend runs it from its own package:
//
//	func TestConformance(t *testing.T) {
//	    catalogtest.RunConformanceSuite(t, func(t *testing.T) catalog.Catalog {
//	        return memory.New()
//	    })
//	}
package catalogtest

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/visiblefs/pkg/catalog"
)

// Factory creates a fresh Catalog for each test. It receives *testing.T so
// it can use t.TempDir() and t.Cleanup().
type Factory func(t *testing.T) catalog.Catalog

// RunConformanceSuite runs every catalog behavior test against factory.
func RunConformanceSuite(t *testing.T, factory Factory) {
	t.Helper()

	t.Run("CommitAndGet", func(t *testing.T) { testCommitAndGet(t, factory(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, factory(t)) })
	t.Run("CommitReplaces", func(t *testing.T) { testCommitReplaces(t, factory(t)) })
	t.Run("Remove", func(t *testing.T) { testRemove(t, factory(t)) })
	t.Run("ListPrefix", func(t *testing.T) { testListPrefix(t, factory(t)) })
	t.Run("ConcurrentCommits", func(t *testing.T) { testConcurrentCommits(t, factory(t)) })
	t.Run("Closed", func(t *testing.T) { testClosed(t, factory(t)) })
}

func entry(path string, size int64) catalog.Entry {
	return catalog.Entry{
		Path:        path,
		Size:        size,
		StoreType:   "memory",
		CommittedAt: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func testCommitAndGet(t *testing.T, c catalog.Catalog) {
	ctx := t.Context()

	want := entry("t1/part-0.parquet", 5)
	if err := c.Commit(ctx, want); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	got, err := c.Get(ctx, want.Path)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Path != want.Path || got.Size != want.Size || got.StoreType != want.StoreType {
		t.Fatalf("Get() = %+v, want %+v", *got, want)
	}
	if !got.CommittedAt.Equal(want.CommittedAt) {
		t.Fatalf("CommittedAt = %v, want %v", got.CommittedAt, want.CommittedAt)
	}
}

func testGetMissing(t *testing.T, c catalog.Catalog) {
	_, err := c.Get(t.Context(), "nope")
	if !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}
}

func testCommitReplaces(t *testing.T, c catalog.Catalog) {
	ctx := t.Context()

	if err := c.Commit(ctx, entry("a", 1)); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if err := c.Commit(ctx, entry("a", 2)); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}

	got, err := c.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Size != 2 {
		t.Fatalf("Size = %d, want 2", got.Size)
	}

	all, err := c.List(ctx, "")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("List() returned %d entries, want 1", len(all))
	}
}

func testRemove(t *testing.T, c catalog.Catalog) {
	ctx := t.Context()

	if err := c.Commit(ctx, entry("gone", 1)); err != nil {
		t.Fatalf("Commit() failed: %v", err)
	}
	if err := c.Remove(ctx, "gone"); err != nil {
		t.Fatalf("Remove() failed: %v", err)
	}
	if _, err := c.Get(ctx, "gone"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("Get(removed) error = %v, want ErrNotFound", err)
	}
	if err := c.Remove(ctx, "gone"); err != nil {
		t.Fatalf("Remove(missing) failed: %v", err)
	}
}

func testListPrefix(t *testing.T, c catalog.Catalog) {
	ctx := t.Context()

	for _, p := range []string{"t2/a", "t1/b", "t1/a", "t10/a"} {
		if err := c.Commit(ctx, entry(p, 1)); err != nil {
			t.Fatalf("Commit(%q) failed: %v", p, err)
		}
	}

	got, err := c.List(ctx, "t1/")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(got) != 2 || got[0].Path != "t1/a" || got[1].Path != "t1/b" {
		t.Fatalf("List(t1/) = %v, want [t1/a t1/b]", paths(got))
	}

	all, err := c.List(ctx, "")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	want := []string{"t1/a", "t1/b", "t10/a", "t2/a"}
	if fmt.Sprint(paths(all)) != fmt.Sprint(want) {
		t.Fatalf("List() = %v, want %v", paths(all), want)
	}

	none, err := c.List(ctx, "zzz")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("List(zzz) = %v, want empty", paths(none))
	}
}

func testConcurrentCommits(t *testing.T, c catalog.Catalog) {
	ctx := t.Context()

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Commit(ctx, entry(fmt.Sprintf("c/%02d", i), int64(i)))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent Commit() failed: %v", err)
		}
	}

	all, err := c.List(ctx, "c/")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(all) != 50 {
		t.Fatalf("List() returned %d entries, want 50", len(all))
	}
}

func testClosed(t *testing.T, c catalog.Catalog) {
	ctx := t.Context()

	if err := c.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := c.Commit(ctx, entry("late", 1)); !errors.Is(err, catalog.ErrClosed) {
		t.Fatalf("Commit() after Close error = %v, want ErrClosed", err)
	}
	if _, err := c.Get(ctx, "late"); !errors.Is(err, catalog.ErrClosed) {
		t.Fatalf("Get() after Close error = %v, want ErrClosed", err)
	}
}

func paths(entries []catalog.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Path
	}
	return out
}
