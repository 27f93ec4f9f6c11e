package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/marmos91/visiblefs/internal/telemetry"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config represents the visiblefs configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (VISIBLEFS_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry tracing and Pyroscope profiling
	Telemetry telemetry.Config `mapstructure:"telemetry" yaml:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// Store selects and configures the backend files are written to
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Consistency controls the visibility wait performed on close
	Consistency ConsistencyConfig `mapstructure:"consistency" yaml:"consistency"`

	// Catalog selects where committed files are recorded
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`

	// Copy tunes the put command
	Copy CopyConfig `mapstructure:"copy" yaml:"copy"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// StoreConfig selects one backend. Only the section matching Type is used.
type StoreConfig struct {
	// Type is one of: memory, filesystem, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory filesystem s3" yaml:"type"`

	Memory     MemoryStoreConfig     `mapstructure:"memory" yaml:"memory"`
	Filesystem FilesystemStoreConfig `mapstructure:"filesystem" yaml:"filesystem"`
	S3         S3StoreConfig         `mapstructure:"s3" yaml:"s3"`
}

// MemoryStoreConfig configures the in-process store.
type MemoryStoreConfig struct {
	// VisibilityLag delays visibility of every committed file, simulating an
	// eventually-consistent backend.
	VisibilityLag time.Duration `mapstructure:"visibility_lag" validate:"gte=0" yaml:"visibility_lag"`
}

// FilesystemStoreConfig configures the local directory store.
type FilesystemStoreConfig struct {
	Root      string `mapstructure:"root" yaml:"root"`
	CreateDir bool   `mapstructure:"create_dir" yaml:"create_dir"`
}

// S3StoreConfig configures the S3 store. Credentials fall back to the
// default AWS chain when AccessKeyID is empty.
type S3StoreConfig struct {
	Bucket          string        `mapstructure:"bucket" yaml:"bucket"`
	Region          string        `mapstructure:"region" yaml:"region"`
	Endpoint        string        `mapstructure:"endpoint" yaml:"endpoint"`
	KeyPrefix       string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	ForcePathStyle  bool          `mapstructure:"force_path_style" yaml:"force_path_style"`
	AccessKeyID     string        `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string        `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	MaxRetries      int           `mapstructure:"max_retries" validate:"gte=0" yaml:"max_retries"`
	WaitMinDelay    time.Duration `mapstructure:"wait_min_delay" validate:"gte=0" yaml:"wait_min_delay"`
	WaitMaxDelay    time.Duration `mapstructure:"wait_max_delay" validate:"gte=0" yaml:"wait_max_delay"`
}

// ConsistencyConfig controls the visibility wait.
type ConsistencyConfig struct {
	// Enabled selects the store's own guard. When false visibility is
	// assumed as soon as the handle closes.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Timeout bounds each writer's visibility wait.
	// Default: 60s
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0" yaml:"timeout"`
}

// CatalogConfig selects the committed-file catalog.
type CatalogConfig struct {
	// Type is one of: memory, badger
	Type string `mapstructure:"type" validate:"required,oneof=memory badger" yaml:"type"`

	Badger BadgerCatalogConfig `mapstructure:"badger" yaml:"badger"`
}

// BadgerCatalogConfig configures the BadgerDB catalog.
type BadgerCatalogConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// CopyConfig tunes local-to-store copies.
type CopyConfig struct {
	// BufferSize is the copy buffer size. Accepts "64KiB", "1MB", or bytes.
	// Capped at MaxCopyBufferSize (256MiB).
	BufferSize ByteSize `mapstructure:"buffer_size" validate:"gt=0,max=268435456" yaml:"buffer_size"`
}

// ByteSize is a byte count that reads and writes human-readable sizes.
type ByteSize uint64

// ParseByteSize parses sizes like "64KiB", "1MB" or "4096".
func ParseByteSize(s string) (ByteSize, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("invalid byte size %q: %w", s, err)
	}
	return ByteSize(n), nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// MarshalYAML writes the human-readable form.
func (b ByteSize) MarshalYAML() (any, error) {
	return b.String(), nil
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (VISIBLEFS_*)
//  2. Configuration file
//  3. Default values
//
// A missing configuration file is not an error: defaults plus environment
// overrides are returned.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := registerDefaults(v); err != nil {
		return nil, err
	}

	if _, err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages.
// It checks if the config file exists and provides user-friendly instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  visiblefs config init\n\n"+
				"Or specify a custom config file:\n"+
				"  visiblefs <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  visiblefs config init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file may carry S3 credentials.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: VISIBLEFS_STORE_TYPE=s3
	v.SetEnvPrefix("VISIBLEFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/visiblefs/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// registerDefaults declares every known key with its default value. Viper
// only consults the environment for keys it knows about, so without this an
// environment override of a key absent from the file would be ignored.
func registerDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(GetDefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal defaults: %w", err)
	}

	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("failed to unmarshal defaults: %w", err)
	}

	setDefaults(v, "", tree)
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// readConfigFile reads the configuration file if it exists.
// Returns (fileFound, error) where fileFound indicates if a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		// Explicit config file that doesn't exist
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}

	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
// Viper replaces its own hooks when one is supplied, so the string-to-slice
// hook it would normally install is included here.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
		mapstructure.StringToSliceHookFunc(","),
	)
}

// byteSizeDecodeHook converts strings and numbers to ByteSize, so config
// files can say "64KiB", "1MB" or a plain byte count.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return ParseByteSize(v)
		case int:
			return ByteSize(v), nil
		case int64:
			return ByteSize(v), nil
		case uint64:
			return ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Assume nanoseconds for raw integers
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "visiblefs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "visiblefs")
}

// getDataDir returns the directory for local state such as the badger
// catalog: $XDG_DATA_HOME/visiblefs or ~/.local/share/visiblefs.
func getDataDir() string {
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "visiblefs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".local", "share", "visiblefs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists checks if a config file exists at the default location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
