package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "stdout", cfg.Logging.Output)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "badger", cfg.Store.Type)
	assert.Equal(t, 8, cfg.Cache.MaxCachedVersionsPerObject)
	assert.Equal(t, time.Second, cfg.Cache.CommitInterval)
	assert.Equal(t, 10000, cfg.Monitor.HighThreshold)
	assert.Equal(t, 5000, cfg.Monitor.LowThreshold)
	assert.Equal(t, 8080, cfg.API.Port)

	require.NoError(t, Validate(cfg))
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "debug"},
		Monitor: MonitorConfig{HighThreshold: 100},
	}
	ApplyDefaults(cfg)

	// Level is normalized to uppercase, not replaced.
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, 100, cfg.Monitor.HighThreshold)
	assert.Equal(t, 50, cfg.Monitor.LowThreshold)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
logging:
  level: debug
  format: json
store:
  type: memory
cache:
  max_cached_versions_per_object: 4
  commit_interval: 250ms
monitor:
  high_threshold: 500
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, 4, cfg.Cache.MaxCachedVersionsPerObject)
	assert.Equal(t, 250*time.Millisecond, cfg.Cache.CommitInterval)
	assert.Equal(t, 500, cfg.Monitor.HighThreshold)
	assert.Equal(t, 250, cfg.Monitor.LowThreshold)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "INFO", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	t.Run("badger without path", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Store.Path = ""
		assert.Error(t, Validate(cfg))
	})

	t.Run("memory without path is fine", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Store.Type = "memory"
		cfg.Store.Path = ""
		assert.NoError(t, Validate(cfg))
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Logging.Level = "VERBOSE"
		assert.Error(t, Validate(cfg))
	})

	t.Run("inverted monitor thresholds", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Monitor.HighThreshold = 10
		cfg.Monitor.LowThreshold = 20
		assert.Error(t, Validate(cfg))
	})

	t.Run("unknown store type", func(t *testing.T) {
		cfg := GetDefaultConfig()
		cfg.Store.Type = "etcd"
		assert.Error(t, Validate(cfg))
	})
}

func TestSaveConfig_Roundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := GetDefaultConfig()
	cfg.Logging.Level = "WARN"
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "WARN", loaded.Logging.Level)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
