package config

import (
	"strings"
	"time"

	"github.com/marmos91/execgate/pkg/api"
)

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Zero values (0, "", false, nil) are replaced with defaults; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyAPIDefaults(&cfg.API)
	applyStoreDefaults(&cfg.Store)
	applyCacheDefaults(&cfg.Cache)
	applyMonitorDefaults(&cfg.Monitor)
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
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false; the zero value already says so.

	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
}

func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyAPIDefaults sets status server defaults.
func applyAPIDefaults(cfg *api.APIConfig) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}
}

// applyStoreDefaults sets durable store defaults.
func applyStoreDefaults(cfg *StoreConfig) {
	if cfg.Type == "" {
		cfg.Type = "badger"
	}
	// Path has no default for the badger backend; it must be configured.
}

// applyCacheDefaults sets availability cache defaults.
func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.MaxCachedVersionsPerObject == 0 {
		cfg.MaxCachedVersionsPerObject = 8
	}
	if cfg.CommitInterval == 0 {
		cfg.CommitInterval = time.Second
	}
}

// applyMonitorDefaults sets memory-pressure monitor defaults.
func applyMonitorDefaults(cfg *MonitorConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = time.Second
	}
	if cfg.HighThreshold == 0 {
		cfg.HighThreshold = 10000
	}
	if cfg.LowThreshold == 0 {
		cfg.LowThreshold = cfg.HighThreshold / 2
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// Useful for generating sample configuration files and for tests.
func GetDefaultConfig() *Config {
	cfg := &Config{
		Store: StoreConfig{
			Type: "badger",
			Path: "/var/lib/execgate/objects",
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
