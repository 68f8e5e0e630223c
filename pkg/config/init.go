package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// InitConfig writes a default configuration file to the default location
// and returns the path it was written to.
//
// Returns an error if a configuration file already exists, unless force is
// true, in which case the existing file is overwritten.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to the given path.
//
// Parent directories are created as needed. Returns an error if the file
// already exists and force is false.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return SaveConfig(GetDefaultConfig(), path)
}
