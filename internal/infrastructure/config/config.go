package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Host    HostConfig
	State   StateConfig
	Logging LogConfig
}

// HostConfig identifies the automation host.
type HostConfig struct {
	ProgID      string        `envconfig:"SAFEXL_PROG_ID" default:"Excel.Application"`
	ProcessName string        `envconfig:"SAFEXL_PROCESS_NAME" default:"EXCEL.EXE"`
	KillWait    time.Duration `envconfig:"SAFEXL_KILL_WAIT" default:"5s"`
}

// StateConfig holds on-disk state settings.
type StateConfig struct {
	Dir       string `envconfig:"SAFEXL_STATE_DIR"`
	TrackPIDs bool   `envconfig:"SAFEXL_TRACK_PIDS" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Host: HostConfig{
			ProgID:      "Excel.Application",
			ProcessName: "EXCEL.EXE",
			KillWait:    5 * time.Second,
		},
		State: StateConfig{
			TrackPIDs: true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// StateDir returns the configured state directory, defaulting to
// <user cache dir>/safexl.
func (c *Config) StateDir() (string, error) {
	if c.State.Dir != "" {
		return c.State.Dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("resolve state dir: %w", err)
	}
	return filepath.Join(base, "safexl"), nil
}
