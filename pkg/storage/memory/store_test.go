package memory

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/marmos91/visiblefs/pkg/consistency"
	"github.com/marmos91/visiblefs/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, s *Store, path, data string) {
	t.Helper()
	w, err := s.Create(context.Background(), path)
	require.NoError(t, err)
	_, err = io.WriteString(w, data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
}

func TestStore_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})
	defer s.Close()

	write(t, s, "/tables/t1/part-0.parquet", "hello world")

	r, err := s.Open(ctx, "tables/t1/part-0.parquet")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestStore_UncommittedIsInvisible(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})
	defer s.Close()

	w, err := s.Create(ctx, "a")
	require.NoError(t, err)
	_, err = w.Write([]byte("partial"))
	require.NoError(t, err)

	ok, err := s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, w.Close())
	ok, err = s.Exists(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_VisibilityLag(t *testing.T) {
	ctx := context.Background()
	s := New(Config{VisibilityLag: 50 * time.Millisecond})
	defer s.Close()

	write(t, s, "lagging", "x")

	ok, err := s.Exists(ctx, "lagging")
	require.NoError(t, err)
	assert.False(t, ok, "file should not be visible before the lag elapses")

	_, err = s.Open(ctx, "lagging")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	paths, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, paths)

	require.NoError(t, s.WaitForVisibility(ctx, "lagging"))

	ok, err = s.Exists(ctx, "lagging")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_WaitForVisibilityTimeout(t *testing.T) {
	s := New(Config{VisibilityLag: time.Second})
	defer s.Close()

	write(t, s, "slow", "x")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := s.WaitForVisibility(ctx, "slow")
	assert.ErrorIs(t, err, consistency.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStore_WaitForVisibilityNeverCommitted(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, s.WaitForVisibility(ctx, "ghost"), consistency.ErrTimeout)
}

func TestStore_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})
	defer s.Close()

	write(t, s, "t1/b", "1")
	write(t, s, "t1/a", "2")
	write(t, s, "t2/a", "3")

	paths, err := s.List(ctx, "t1/")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1/a", "t1/b"}, paths)
}

func TestStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})
	defer s.Close()

	write(t, s, "d", "x")
	require.NoError(t, s.Delete(ctx, "d"))
	require.NoError(t, s.Delete(ctx, "d"))

	ok, err := s.Exists(ctx, "d")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_HandleDoubleClose(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	w, err := s.Create(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Error(t, w.Close())

	_, err = w.Write([]byte("late"))
	assert.Error(t, err)
}

func TestStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})

	w, err := s.Create(ctx, "pending")
	require.NoError(t, err)

	require.NoError(t, s.Close())

	assert.ErrorIs(t, w.Close(), storage.ErrStoreClosed)
	_, err = s.Create(ctx, "x")
	assert.ErrorIs(t, err, storage.ErrStoreClosed)
	_, err = s.Exists(ctx, "x")
	assert.ErrorIs(t, err, storage.ErrStoreClosed)
	_, err = s.List(ctx, "")
	assert.ErrorIs(t, err, storage.ErrStoreClosed)
	assert.ErrorIs(t, s.HealthCheck(ctx), storage.ErrStoreClosed)
}

func TestStore_InvalidPath(t *testing.T) {
	s := New(Config{})
	defer s.Close()

	_, err := s.Create(context.Background(), "../escape")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)
}

func TestStore_AbortDiscards(t *testing.T) {
	ctx := context.Background()
	s := New(Config{})
	defer s.Close()

	w, err := s.Create(ctx, "dropped")
	require.NoError(t, err)
	_, err = io.WriteString(w, "partial")
	require.NoError(t, err)

	a, ok := w.(storage.Aborter)
	require.True(t, ok)
	require.NoError(t, a.Abort())

	ok, err = s.Exists(ctx, "dropped")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, w.Close())
	assert.Error(t, a.Abort())
}
