package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration for structural errors beyond what the
// struct tags express.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Store.Type == "badger" && cfg.Store.Path == "" {
		return fmt.Errorf("store.path is required for the badger backend")
	}

	if cfg.Monitor.LowThreshold > cfg.Monitor.HighThreshold {
		return fmt.Errorf("monitor.low_threshold (%d) must not exceed monitor.high_threshold (%d)",
			cfg.Monitor.LowThreshold, cfg.Monitor.HighThreshold)
	}

	return nil
}
