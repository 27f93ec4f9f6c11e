package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/visiblefs/internal/telemetry"
	"github.com/marmos91/visiblefs/pkg/catalog"
	"github.com/marmos91/visiblefs/pkg/storage"
	"github.com/marmos91/visiblefs/pkg/storage/sizeaware"
)

const (
	// DefaultCopyBufferSize is the put command's default copy buffer.
	DefaultCopyBufferSize = ByteSize(1 << 20)

	// MaxCopyBufferSize is the largest copy buffer Validate accepts.
	MaxCopyBufferSize = ByteSize(256 << 20)
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit values
// are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyStoreDefaults(&cfg.Store)
	applyConsistencyDefaults(&cfg.Consistency)
	applyCatalogDefaults(&cfg.Catalog)
	applyCopyDefaults(&cfg.Copy)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	// stdout carries command output
	if cfg.Output == "" {
		cfg.Output = "stderr"
	}
}

func applyTelemetryDefaults(cfg *telemetry.Config) {
	def := telemetry.DefaultConfig()

	if cfg.ServiceName == "" {
		cfg.ServiceName = def.ServiceName
	}
	if cfg.ServiceVersion == "" {
		cfg.ServiceVersion = def.ServiceVersion
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = def.Endpoint
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = def.Profiling.Endpoint
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = def.Profiling.ProfileTypes
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = storage.TypeFilesystem
	}
	if cfg.Filesystem.Root == "" && cfg.Type == storage.TypeFilesystem {
		cfg.Filesystem.Root = filepath.Join(getDataDir(), "store")
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
}

func applyConsistencyDefaults(cfg *ConsistencyConfig) {
	if cfg.Timeout == 0 {
		cfg.Timeout = sizeaware.DefaultVisibilityTimeout
	}
}

func applyCatalogDefaults(cfg *CatalogConfig) {
	if cfg.Type == "" {
		cfg.Type = catalog.TypeBadger
	}
	if cfg.Badger.Path == "" && cfg.Type == catalog.TypeBadger {
		cfg.Badger.Path = filepath.Join(getDataDir(), "catalog")
	}
}

func applyCopyDefaults(cfg *CopyConfig) {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultCopyBufferSize
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// Used to generate sample configuration files and in tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Telemetry: telemetry.DefaultConfig(),
		Store: StoreConfig{
			Type: storage.TypeFilesystem,
			Filesystem: FilesystemStoreConfig{
				CreateDir: true,
			},
			S3: S3StoreConfig{
				MaxRetries:   3,
				WaitMinDelay: 500 * time.Millisecond,
				WaitMaxDelay: 5 * time.Second,
			},
		},
		Consistency: ConsistencyConfig{
			Enabled: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
