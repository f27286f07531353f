package utils

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the project configuration loaded from schemamancer.yaml.
type Config struct {
	StoragePath        string `yaml:"storage_path"`
	DefaultEnvironment string `yaml:"default_environment,omitempty"`
	ShadowRetentionDays int   `yaml:"shadow_retention_days,omitempty"`
}

// FindConfigFile tries to find the schemamancer config file in the
// current directory or any parent directory, falling back to the global
// config if needed.
func FindConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %v", err)
	}
	for {
		configPath := filepath.Join(dir, "schemamancer.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break // Reached root directory
		}
		dir = parent
	}

	// Fall back to global config
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %v", err)
	}

	globalConfig := filepath.Join(homeDir, ".schemamancer", "config.yaml")
	if _, err := os.Stat(globalConfig); err == nil {
		return globalConfig, nil
	}

	return "", fmt.Errorf("no config file found in project or ~/.schemamancer/config.yaml")
}

// ReadConfig reads and parses the schemamancer config file.
func ReadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing config file: %v", err)
	}
	if config.StoragePath == "" {
		config.StoragePath = ".schemamancer"
	}
	if config.DefaultEnvironment == "" {
		config.DefaultEnvironment = "development"
	}

	return &config, nil
}

// StorageRoot resolves the absolute store path for a config file.
func StorageRoot(configPath string, config *Config) string {
	return filepath.Join(filepath.Dir(configPath), config.StoragePath)
}

// ShortHash abbreviates a snapshot hash for display.
func ShortHash(hash string) string {
	if len(hash) <= 12 {
		return hash
	}
	return hash[:12]
}
