// Package config loads the optional harness settings file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultIbazel       = "ibazel"
	defaultPollMS       = 250
	defaultGraceSeconds = 5
)

// Config holds harness-level settings. CLI flags override file values;
// unset fields fall back to the defaults.
type Config struct {
	IbazelPath           string `yaml:"ibazel_path"`
	PollIntervalMS       int    `yaml:"poll_interval_ms"`
	ShutdownGraceSeconds int    `yaml:"shutdown_grace_seconds"`
	ResultsDB            string `yaml:"results_db"`
	Notify               bool   `yaml:"notify"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		IbazelPath:           defaultIbazel,
		PollIntervalMS:       defaultPollMS,
		ShutdownGraceSeconds: defaultGraceSeconds,
	}
}

// Load reads a YAML settings file, filling unset fields with defaults.
// An empty path returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.IbazelPath == "" {
		cfg.IbazelPath = defaultIbazel
	}
	if cfg.PollIntervalMS <= 0 {
		cfg.PollIntervalMS = defaultPollMS
	}
	if cfg.ShutdownGraceSeconds <= 0 {
		cfg.ShutdownGraceSeconds = defaultGraceSeconds
	}
	return cfg, nil
}

// PollInterval returns the scan interval as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// ShutdownGrace returns the graceful-shutdown budget as a duration.
func (c *Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}
