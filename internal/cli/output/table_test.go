package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/visiblefs/pkg/catalog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintTableEntries(t *testing.T) {
	list := EntryList{
		{Path: "t1/part-0.csv", Size: 2048, StoreType: "s3", CommittedAt: time.Now()},
		{Path: "t1/part-1.csv", Size: 5, StoreType: "s3", CommittedAt: time.Now()},
	}

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, list))

	out := buf.String()
	assert.Contains(t, out, "PATH")
	assert.Contains(t, out, "COMMITTED")
	assert.Contains(t, out, "t1/part-0.csv")
	assert.Contains(t, out, "2.0 KiB")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 3)
}

func TestEntryListNumericColumns(t *testing.T) {
	var r TableRenderer = EntryList{}
	nc, ok := r.(NumericColumns)
	require.True(t, ok)

	headers := EntryList{}.Headers()
	for _, col := range nc.NumericColumns() {
		assert.Contains(t, []string{"Size", "Bytes"}, headers[col])
	}
}

func TestPrintTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, EntryList{}))
	assert.Contains(t, buf.String(), "PATH")
}

func TestSimpleTable(t *testing.T) {
	pairs := EntryDetail{Entry: catalog.Entry{Path: "x/y", Size: 3, StoreType: "memory"}}.Pairs()

	var buf bytes.Buffer
	require.NoError(t, SimpleTable(&buf, pairs))

	out := buf.String()
	assert.Contains(t, out, "Path")
	assert.Contains(t, out, "x/y")
	assert.Contains(t, out, "Visible")
	assert.Contains(t, out, "false")
	assert.NotContains(t, out, "PATH", "pair keys keep their case")
}
