// ABOUTME: Configuration loading for agencycrm
// ABOUTME: Reads XDG config.yaml, then .env, then environment variable overrides
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "agencycrm"

// Config holds every runtime setting.
type Config struct {
	APIURL   string  `yaml:"api_url"`
	APIToken string  `yaml:"api_token"`
	DBPath   string  `yaml:"db_path"`
	Listen   string  `yaml:"listen"`
	LogLevel string  `yaml:"log_level"`
	Harvest  Harvest `yaml:"harvest"`
}

// Harvest holds the credentials for the Harvest v2 API.
type Harvest struct {
	AccountID   string `yaml:"account_id"`
	AccessToken string `yaml:"access_token"`
	BaseURL     string `yaml:"base_url"`
}

// Configured reports whether Harvest credentials are present.
func (h Harvest) Configured() bool {
	return h.AccountID != "" && h.AccessToken != ""
}

// Path returns the XDG-compliant config file location.
func Path() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// DefaultDBPath returns the XDG-compliant database location.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, appName, appName+".db")
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		APIURL:   "http://localhost:8080",
		DBPath:   DefaultDBPath(),
		Listen:   ":8080",
		LogLevel: "info",
	}
}

// Load reads the config file at Path, a .env file in the working directory,
// and environment overrides, in that order.
func Load() (*Config, error) {
	return LoadFrom(Path(), ".env")
}

// LoadFrom is Load with explicit file locations. Missing files are skipped.
func LoadFrom(path, envFile string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if envFile != "" {
		// godotenv never overrides variables already set in the environment
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrides := []struct {
		key string
		dst *string
	}{
		{"AGENCYCRM_API_URL", &cfg.APIURL},
		{"AGENCYCRM_API_TOKEN", &cfg.APIToken},
		{"AGENCYCRM_DB_PATH", &cfg.DBPath},
		{"AGENCYCRM_LISTEN", &cfg.Listen},
		{"AGENCYCRM_LOG_LEVEL", &cfg.LogLevel},
		{"HARVEST_ACCOUNT_ID", &cfg.Harvest.AccountID},
		{"HARVEST_ACCESS_TOKEN", &cfg.Harvest.AccessToken},
		{"HARVEST_BASE_URL", &cfg.Harvest.BaseURL},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.key); v != "" {
			*o.dst = v
		}
	}
}

// Save writes cfg to path with owner-only permissions.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
