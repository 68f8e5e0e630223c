// Package config loads and validates the execgate configuration.
//
// Configuration sources (in order of precedence):
//  1. Environment variables (EXECGATE_*)
//  2. Configuration file (YAML)
//  3. Default values
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/marmos91/execgate/internal/bytesize"
	"github.com/marmos91/execgate/pkg/api"
	cachepkg "github.com/marmos91/execgate/pkg/cache"
	"github.com/marmos91/execgate/pkg/monitor"
)

// Config represents the execgate node configuration.
//
// It captures the static configuration of the admission service: logging,
// telemetry, the metrics and status HTTP servers, the durable object store,
// the availability cache, and the memory-pressure monitor.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// API contains the status/health HTTP server configuration
	API api.APIConfig `mapstructure:"api" yaml:"api"`

	// Store configures the durable object store backing the cache
	Store StoreConfig `mapstructure:"store" yaml:"store"`

	// Cache configures the in-memory availability cache
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// Monitor configures the memory-pressure monitor driving backpressure
	Monitor MonitorConfig `mapstructure:"monitor" yaml:"monitor"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
// When enabled, trace data is exported to an OTLP-compatible collector.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in)
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	// Default: true (for local development)
	Insecure bool `mapstructure:"insecure" yaml:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	// Default: 1.0 (sample all)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
}

// MetricsConfig configures Prometheus metrics collection.
// When Enabled is false, no metrics are collected (zero overhead).
type MetricsConfig struct {
	// Enabled controls whether metrics collection is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// StoreConfig configures the durable object store.
type StoreConfig struct {
	// Type selects the store backend
	// Valid values: badger, memory
	// Default: badger
	Type string `mapstructure:"type" validate:"required,oneof=badger memory" yaml:"type"`

	// Path is the BadgerDB database directory. Required for the badger
	// backend.
	// Example: /var/lib/execgate/objects
	Path string `mapstructure:"path" yaml:"path"`

	// SyncWrites forces fsync on every commit batch.
	// Default: false
	SyncWrites bool `mapstructure:"sync_writes" yaml:"sync_writes"`
}

// CacheConfig configures the availability cache.
type CacheConfig struct {
	// MaxCachedVersionsPerObject bounds the committed versions kept in
	// memory per object id.
	// Default: 8
	MaxCachedVersionsPerObject int `mapstructure:"max_cached_versions_per_object" yaml:"max_cached_versions_per_object"`

	// CommitInterval is how often dirty entries are flushed to the store.
	// Default: 1s
	CommitInterval time.Duration `mapstructure:"commit_interval" yaml:"commit_interval"`
}

// MonitorConfig configures the memory-pressure monitor.
type MonitorConfig struct {
	// Interval between cache occupancy samples. Default: 1s
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`

	// HighThreshold is the dirty-entry count at which backpressure is
	// asserted. Default: 10000
	HighThreshold int `mapstructure:"high_threshold" yaml:"high_threshold"`

	// LowThreshold is the dirty-entry count below which backpressure is
	// cleared. Default: HighThreshold / 2
	LowThreshold int `mapstructure:"low_threshold" yaml:"low_threshold"`

	// MaxFootprint is an optional ceiling on the cache's in-memory byte
	// footprint. When set, backpressure is asserted whenever the footprint
	// reaches this size regardless of the dirty-entry count. Accepts
	// human-readable sizes like "512Mi" or "2Gi". Zero disables the check.
	MaxFootprint bytesize.ByteSize `mapstructure:"max_footprint" yaml:"max_footprint,omitempty"`
}

// CacheOptions converts the cache section into the cache package's config.
func (c *Config) CacheOptions() cachepkg.Config {
	return cachepkg.Config{
		MaxCachedVersionsPerObject: c.Cache.MaxCachedVersionsPerObject,
	}
}

// MonitorOptions converts the monitor section into the monitor package's
// config.
func (c *Config) MonitorOptions() monitor.Config {
	return monitor.Config{
		Interval:      c.Monitor.Interval,
		HighThreshold: c.Monitor.HighThreshold,
		LowThreshold:  c.Monitor.LowThreshold,
		MaxFootprint:  c.Monitor.MaxFootprint,
	}
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		return GetDefaultConfig(), nil
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

// MustLoad loads configuration with helpful error messages. It checks if
// the config file exists and provides instructions if not.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  execgate init\n\n"+
				"Or specify a custom config file:\n"+
				"  execgate <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found: %s\n\n"+
				"Please create the configuration file:\n"+
				"  execgate init --config %s",
				configPath, configPath)
		}
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

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variables and config file
// settings. Environment variables use the EXECGATE_ prefix with underscores,
// e.g. EXECGATE_LOGGING_LEVEL=DEBUG.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("EXECGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. Returns whether
// a config file was found.
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined decode hook for all custom types.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		durationDecodeHook(),
		byteSizeDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings like "512Mi", "2Gi" and raw integers
// to bytesize.ByteSize. This enables config files to use human-readable
// size values.
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings like "30s", "5m", "1h" to
// time.Duration.
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			// Raw integers are nanoseconds
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			// YAML often deserializes numbers as float64
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "execgate")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "execgate")
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

// GetConfigDir returns the configuration directory path (exposed for the
// init command).
func GetConfigDir() string {
	return getConfigDir()
}
