package config

import (
	"os"
	"path/filepath"
)

// ConfigEnvVar overrides the configuration file path.
const ConfigEnvVar = "REACTREE_CONFIG"

// GetConfigPath returns the configuration file path. It first checks the
// REACTREE_CONFIG environment variable, then falls back to
// ~/.reactree/config.
func GetConfigPath() (string, error) {
	if configPath := os.Getenv(ConfigEnvVar); configPath != "" {
		return configPath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".reactree", "config"), nil
}
