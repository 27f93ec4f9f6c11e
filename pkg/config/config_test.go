package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// yamlSafePath converts a filesystem path to a YAML-safe representation.
// On Windows, backslashes in double-quoted YAML strings are interpreted as
// escape sequences (e.g. \U -> Unicode escape), causing parse errors.
func yamlSafePath(p string) string {
	return filepath.ToSlash(p)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_MinimalConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := writeConfig(t, `
logging:
  level: "debug"

store:
  type: filesystem
  filesystem:
    root: "`+yamlSafePath(tmpDir)+`/store"

catalog:
  type: memory
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Store.Filesystem.Root != yamlSafePath(tmpDir)+"/store" {
		t.Errorf("Unexpected filesystem root %q", cfg.Store.Filesystem.Root)
	}
	if cfg.Catalog.Type != "memory" {
		t.Errorf("Expected catalog type 'memory', got %q", cfg.Catalog.Type)
	}
	if !cfg.Consistency.Enabled {
		t.Error("Expected consistency to stay enabled by default")
	}
	if cfg.Consistency.Timeout != 60*time.Second {
		t.Errorf("Expected default consistency timeout 60s, got %v", cfg.Consistency.Timeout)
	}
}

func TestLoad_DurationsAndSizes(t *testing.T) {
	configPath := writeConfig(t, `
store:
  type: memory
  memory:
    visibility_lag: 250ms

consistency:
  timeout: 5s

catalog:
  type: memory

copy:
  buffer_size: 64KiB
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Store.Memory.VisibilityLag != 250*time.Millisecond {
		t.Errorf("Expected visibility lag 250ms, got %v", cfg.Store.Memory.VisibilityLag)
	}
	if cfg.Consistency.Timeout != 5*time.Second {
		t.Errorf("Expected timeout 5s, got %v", cfg.Consistency.Timeout)
	}
	if cfg.Copy.BufferSize != 64*1024 {
		t.Errorf("Expected buffer size 65536, got %d", cfg.Copy.BufferSize)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err != nil {
		t.Fatalf("Expected no error when loading default config, got: %v", err)
	}
	if cfg == nil {
		t.Fatal("Expected default config to be returned")
	}
	if cfg.Store.Type != "filesystem" {
		t.Errorf("Expected default store type 'filesystem', got %q", cfg.Store.Type)
	}
	if cfg.Catalog.Type != "badger" {
		t.Errorf("Expected default catalog type 'badger', got %q", cfg.Catalog.Type)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "logging:\n  level: [unterminated\n")

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	configPath := writeConfig(t, `
store:
  type: ftp
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected validation error for unknown store type")
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[logging]
level = "WARN"
format = "json"

[store]
type = "memory"

[catalog]
type = "memory"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load TOML config: %v", err)
	}
	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json', got %q", cfg.Logging.Format)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("VISIBLEFS_LOGGING_LEVEL", "ERROR")
	t.Setenv("VISIBLEFS_STORE_S3_BUCKET", "from-env")
	t.Setenv("VISIBLEFS_CONSISTENCY_TIMEOUT", "2s")

	configPath := writeConfig(t, `
logging:
  level: "INFO"

store:
  type: s3

catalog:
  type: memory
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "ERROR" {
		t.Errorf("Expected level 'ERROR' from env var, got %q", cfg.Logging.Level)
	}
	// Not present in the file at all.
	if cfg.Store.S3.Bucket != "from-env" {
		t.Errorf("Expected bucket 'from-env' from env var, got %q", cfg.Store.S3.Bucket)
	}
	if cfg.Consistency.Timeout != 2*time.Second {
		t.Errorf("Expected timeout 2s from env var, got %v", cfg.Consistency.Timeout)
	}
}

func TestMustLoad_MissingFile(t *testing.T) {
	_, err := MustLoad(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg := GetDefaultConfig()
	cfg.Store.Type = "memory"
	cfg.Store.Memory.VisibilityLag = 3 * time.Second
	cfg.Copy.BufferSize = 256 * 1024

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}
	if loaded.Store.Memory.VisibilityLag != 3*time.Second {
		t.Errorf("Expected visibility lag 3s, got %v", loaded.Store.Memory.VisibilityLag)
	}
	if loaded.Copy.BufferSize != 256*1024 {
		t.Errorf("Expected buffer size 262144, got %d", loaded.Copy.BufferSize)
	}
}

func TestParseByteSize(t *testing.T) {
	tests := []struct {
		in      string
		want    ByteSize
		wantErr bool
	}{
		{"4096", 4096, false},
		{"64KiB", 64 * 1024, false},
		{"1 MiB", 1 << 20, false},
		{"1MB", 1000 * 1000, false},
		{"lots", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseByteSize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseByteSize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseByteSize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestGetDefaultConfigPath(t *testing.T) {
	path := GetDefaultConfigPath()

	if !filepath.IsAbs(path) {
		t.Errorf("Expected absolute path, got %q", path)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Errorf("Expected filename 'config.yaml', got %q", filepath.Base(path))
	}
}

func TestGetConfigDir(t *testing.T) {
	if filepath.Base(GetConfigDir()) != "visiblefs" {
		t.Errorf("Expected directory name 'visiblefs', got %q", filepath.Base(GetConfigDir()))
	}

	tmp := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", tmp)
	if GetConfigDir() != filepath.Join(tmp, "visiblefs") {
		t.Errorf("Expected XDG_CONFIG_HOME to be honored, got %q", GetConfigDir())
	}
}
