package config

import (
	"os"
	"path/filepath"
)

// GetConfigPath returns the configuration file path. The BTE_CONFIG
// environment variable wins, otherwise ~/.bte/config.
func GetConfigPath() (string, error) {
	if configPath := os.Getenv("BTE_CONFIG"); configPath != "" {
		return configPath, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	return filepath.Join(homeDir, ".bte", "config"), nil
}
