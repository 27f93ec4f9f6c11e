package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/marmos91/visiblefs/internal/cli/output"
	"github.com/marmos91/visiblefs/internal/cli/prompt"
	"github.com/marmos91/visiblefs/pkg/catalog"
	"github.com/marmos91/visiblefs/pkg/config"
	fsstore "github.com/marmos91/visiblefs/pkg/storage/fs"
	"github.com/marmos91/visiblefs/pkg/storage/wrapperfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes the root command with args and returns what it printed.
// Flag variables outlive a single execution, so they are reset first.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgFile, outputFormat, verbose = "", "table", false
	putForce, rmForce, versionShort = false, false, false

	var out bytes.Buffer
	root := GetRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

// writeConfig writes a config using a temporary directory store and badger
// catalog, so state survives across command invocations within a test.
func writeConfig(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(`logging:
  level: ERROR
store:
  type: filesystem
  filesystem:
    root: %s
    create_dir: true
catalog:
  type: badger
  badger:
    path: %s
consistency:
  enabled: true
  timeout: 5s
`, filepath.Join(dir, "store"), filepath.Join(dir, "catalog"))

	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func writeLocal(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "local.txt")
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func TestVersionShort(t *testing.T) {
	out, err := run(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, Version+"\n", out)
}

func TestPutListStatRemove(t *testing.T) {
	cfg := writeConfig(t)
	local := writeLocal(t, "hello world")

	out, err := run(t, "--config", cfg, "put", local, "reports/a.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 11 B (11 bytes) to reports/a.txt")

	out, err = run(t, "--config", cfg, "ls", "reports/", "-o", "json")
	require.NoError(t, err)
	var entries []catalog.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "reports/a.txt", entries[0].Path)
	assert.Equal(t, int64(11), entries[0].Size)
	assert.Equal(t, "filesystem", entries[0].StoreType)

	out, err = run(t, "--config", cfg, "stat", "reports/a.txt", "-o", "json")
	require.NoError(t, err)
	var st output.EntryDetail
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.True(t, st.Visible)
	assert.Equal(t, int64(11), st.Size)

	out, err = run(t, "--config", cfg, "stat", "reports/a.txt")
	require.NoError(t, err)
	assert.Contains(t, out, "reports/a.txt")
	assert.Contains(t, out, "true")

	out, err = run(t, "--config", cfg, "rm", "reports/a.txt", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted reports/a.txt")

	out, err = run(t, "--config", cfg, "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "No committed files.")

	_, err = run(t, "--config", cfg, "stat", "reports/a.txt")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not committed")
}

func TestPutOverwriteNeedsForce(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "put", writeLocal(t, "v1"), "f.txt")
	require.NoError(t, err)

	// Test stdin is never a terminal, so the confirmation cannot be asked.
	_, err = run(t, "--config", cfg, "put", writeLocal(t, "version2"), "f.txt")
	assert.ErrorIs(t, err, prompt.ErrNotInteractive)

	out, err := run(t, "--config", cfg, "put", writeLocal(t, "version2"), "f.txt", "--force", "-o", "json")
	require.NoError(t, err)

	var res putResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "f.txt", res.Path)
	assert.Equal(t, int64(8), res.Bytes)
	assert.Equal(t, "filesystem", res.Store)
}

func TestPutMissingLocalFile(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "put", filepath.Join(t.TempDir(), "missing"), "x")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestPutRejectsEscapingPath(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "put", writeLocal(t, "x"), "../outside")
	assert.Error(t, err)
}

func TestRemoveNeedsForce(t *testing.T) {
	_, err := run(t, "rm", "anything")
	assert.ErrorIs(t, err, prompt.ErrNotInteractive)
}

func TestInvalidOutputFormat(t *testing.T) {
	cfg := writeConfig(t)

	_, err := run(t, "--config", cfg, "ls", "-o", "xml")
	assert.Error(t, err)
}

func TestConfigInitValidateShow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visiblefs", "config.yaml")

	out, err := run(t, "config", "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = run(t, "config", "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	out, err = run(t, "config", "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation: OK")
	assert.Contains(t, out, "Store type:      filesystem")

	out, err = run(t, "config", "show", "--config", path, "-o", "json")
	require.NoError(t, err)
	var shown map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Contains(t, shown, "Store")
}

func TestCopyToStoreAbortsOnReadFailure(t *testing.T) {
	root := filepath.Join(t.TempDir(), "store")
	store, err := fsstore.New(fsstore.DefaultConfig(root))
	require.NoError(t, err)
	fsys, err := wrapperfs.New(store, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = fsys.Close() })

	s := &session{cfg: config.GetDefaultConfig(), fs: fsys}
	cause := errors.New("device unplugged")
	src := io.MultiReader(strings.NewReader("partial"), iotest.ErrReader(cause))

	n, err := copyToStore(t.Context(), s, src, "reports/a.csv")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, int64(7), n)
	assert.Empty(t, fsys.OpenWriters())

	entries, err := os.ReadDir(filepath.Join(root, "reports"))
	require.NoError(t, err)
	assert.Empty(t, entries, "a failed copy must not leave a staging file")

	ok, err := fsys.Exists(t.Context(), "reports/a.csv")
	require.NoError(t, err)
	assert.False(t, ok)
}
