// Package config loads the console settings used by calibr8ctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL = "http://localhost:8000/api"
	DefaultTimeout = 30 * time.Second
)

// Console is the calibr8ctl configuration. Timeout is a Go duration string
// so the YAML stays readable ("30s", "2m").
type Console struct {
	BaseURL    string `yaml:"base_url"`
	Timeout    string `yaml:"timeout"`
	SessionDir string `yaml:"session_dir"`
	LogLevel   string `yaml:"log_level"`
}

func Default() Console {
	dir := ".calibr8"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, ".calibr8")
	}
	return Console{
		BaseURL:    DefaultBaseURL,
		Timeout:    DefaultTimeout.String(),
		SessionDir: filepath.Join(dir, "sessions"),
		LogLevel:   "warn",
	}
}

// DefaultPath is ~/.calibr8/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".calibr8", "config.yaml")
	}
	return filepath.Join(home, ".calibr8", "config.yaml")
}

// Load reads path over the defaults, then applies CALIBR8_* environment
// overrides. A missing file is not an error.
func Load(path string) (Console, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Console{}, fmt.Errorf("failed to read the config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Console{}, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}
	overrideFromEnv(&cfg)
	if _, err := cfg.RequestTimeout(); err != nil {
		return Console{}, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating the directory if needed.
func Save(path string, cfg Console) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c Console) RequestTimeout() (time.Duration, error) {
	if c.Timeout == "" {
		return DefaultTimeout, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid timeout %q: must be positive", c.Timeout)
	}
	return d, nil
}

func overrideFromEnv(c *Console) {
	if v := os.Getenv("CALIBR8_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("CALIBR8_TIMEOUT"); v != "" {
		c.Timeout = v
	}
	if v := os.Getenv("CALIBR8_SESSION_DIR"); v != "" {
		c.SessionDir = v
	}
	if v := os.Getenv("CALIBR8_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}
