package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the optional YAML configuration. Every field has a working
// default; a missing config file is not an error since the CLI prompts for
// anything it cannot resolve.
type Config struct {
	API struct {
		Endpoint string `yaml:"endpoint"`
		Key      string `yaml:"key"`
	} `yaml:"api"`
	Launch struct {
		PollIntervalSeconds int    `yaml:"poll_interval_seconds"`
		MaxWaitMinutes      int    `yaml:"max_wait_minutes"`
		SSHKey              string `yaml:"ssh_key"`
		Region              string `yaml:"region"`
	} `yaml:"launch"`
	History struct {
		Path     string `yaml:"path"`
		Disabled bool   `yaml:"disabled"`
	} `yaml:"history"`
}

// configDir resolves $XDG_CONFIG_HOME/gpulaunch or ~/.config/gpulaunch.
func configDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "gpulaunch")
}

// DefaultPath is the config file location used when --config is not given.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

// Load reads YAML configuration from path (DefaultPath when empty) and merges
// the API key from secrets.env and the LAMBDA_API_KEY environment variable,
// in that order of increasing precedence. A missing file yields defaults.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = DefaultPath()
	}
	content, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(content, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if k := apiKeyFromSecrets(""); k != "" {
		cfg.API.Key = k
	}
	if k := os.Getenv("LAMBDA_API_KEY"); k != "" {
		cfg.API.Key = k
	}
	return cfg, nil
}

// PollInterval returns the configured capacity poll interval, or zero when
// unset so the launcher applies its own default.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Launch.PollIntervalSeconds) * time.Second
}

// MaxWait returns the configured retry bound, zero meaning unbounded.
func (c Config) MaxWait() time.Duration {
	return time.Duration(c.Launch.MaxWaitMinutes) * time.Minute
}

// HistoryPath returns the launch history database path.
func (c Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(configDir(), "history.db")
}
