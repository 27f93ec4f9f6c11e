package badger_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/visiblefs/pkg/catalog"
	"github.com/marmos91/visiblefs/pkg/catalog/badger"
	"github.com/marmos91/visiblefs/pkg/catalog/catalogtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConformance(t *testing.T) {
	catalogtest.RunConformanceSuite(t, func(t *testing.T) catalog.Catalog {
		c, err := badger.New(badger.Config{InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { _ = c.Close() })
		return c
	})
}

func TestNewRequiresPath(t *testing.T) {
	_, err := badger.New(badger.Config{})
	assert.Error(t, err)
}

func TestEntriesSurviveReopen(t *testing.T) {
	ctx := t.Context()
	dir := filepath.Join(t.TempDir(), "catalog")

	c, err := badger.New(badger.Config{Path: dir})
	require.NoError(t, err)

	committed := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, c.Commit(ctx, catalog.Entry{
		Path:        "year=2024/data.csv",
		Size:        1234,
		StoreType:   "filesystem",
		CommittedAt: committed,
	}))
	require.NoError(t, c.HealthCheck(ctx))
	require.NoError(t, c.Close())

	c, err = badger.New(badger.Config{Path: dir})
	require.NoError(t, err)
	defer c.Close()

	e, err := c.Get(ctx, "year=2024/data.csv")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), e.Size)
	assert.Equal(t, "filesystem", e.StoreType)
	assert.True(t, committed.Equal(e.CommittedAt))
}

func TestCloseIsIdempotent(t *testing.T) {
	c, err := badger.New(badger.Config{InMemory: true})
	require.NoError(t, err)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.HealthCheck(t.Context()), catalog.ErrClosed)
}
