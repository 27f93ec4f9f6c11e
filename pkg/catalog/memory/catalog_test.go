package memory_test

import (
	"testing"

	"github.com/marmos91/visiblefs/pkg/catalog"
	"github.com/marmos91/visiblefs/pkg/catalog/catalogtest"
	"github.com/marmos91/visiblefs/pkg/catalog/memory"
	"github.com/stretchr/testify/assert"
)

func TestConformance(t *testing.T) {
	catalogtest.RunConformanceSuite(t, func(t *testing.T) catalog.Catalog {
		return memory.New()
	})
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := t.Context()
	c := memory.New()

	assert.NoError(t, c.Commit(ctx, catalog.Entry{Path: "a", Size: 1}))

	e, err := c.Get(ctx, "a")
	assert.NoError(t, err)
	e.Size = 99

	again, err := c.Get(ctx, "a")
	assert.NoError(t, err)
	assert.Equal(t, int64(1), again.Size)
}
