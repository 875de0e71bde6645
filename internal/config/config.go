// Package config holds all aide configuration. Settings load from an
// optional YAML file merged over defaults, with AIDE_* environment
// variables taking precedence for secrets and paths.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the full aide configuration tree.
type Config struct {
	// Core settings
	Name string `yaml:"name"`

	// LLM configuration (text-completion capability)
	LLM LLMConfig `yaml:"llm"`

	// Memory store configuration
	Memory MemoryConfig `yaml:"memory"`

	// Trust ladder thresholds
	Trust TrustConfig `yaml:"trust"`

	// Reflexion cycle settings
	Reflexion ReflexionConfig `yaml:"reflexion"`

	// Proactive suggestion budget
	Proactive ProactiveConfig `yaml:"proactive"`

	// Nightly maintenance scheduling
	Nightly NightlyConfig `yaml:"nightly"`
}

// NightlyConfig configures the maintenance cycle schedule.
type NightlyConfig struct {
	// Schedule is a cron expression (default: 03:00 local time daily).
	Schedule string `yaml:"schedule"`

	// ConsolidateEveryDays controls how often the reflexion
	// consolidation pass runs as part of the cycle (default: 7).
	ConsolidateEveryDays int `yaml:"consolidate_every_days"`
}

// DefaultNightlyConfig returns the default nightly schedule.
func DefaultNightlyConfig() NightlyConfig {
	return NightlyConfig{
		Schedule:             "0 3 * * *",
		ConsolidateEveryDays: 7,
	}
}

// Default returns a Config populated with all defaults.
func Default() *Config {
	return &Config{
		Name:      "aide",
		LLM:       DefaultLLMConfig(),
		Memory:    DefaultMemoryConfig(),
		Trust:     DefaultTrustConfig(),
		Reflexion: DefaultReflexionConfig(),
		Proactive: DefaultProactiveConfig(),
		Nightly:   DefaultNightlyConfig(),
	}
}

// Load reads configuration from path, merging over defaults.
// A missing file is not an error; defaults plus env overrides apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv applies AIDE_* environment overrides. Env always wins over
// file values so deployments can keep secrets out of config files.
func (c *Config) applyEnv() {
	if v := os.Getenv("AIDE_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("AIDE_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("AIDE_DB_PATH"); v != "" {
		c.Memory.Path = v
	}
}

// Validate checks cross-field constraints that YAML parsing cannot.
func (c *Config) Validate() error {
	if err := c.Trust.Validate(); err != nil {
		return fmt.Errorf("trust config: %w", err)
	}
	if err := c.Proactive.Validate(); err != nil {
		return fmt.Errorf("proactive config: %w", err)
	}
	if c.Reflexion.LookbackHours <= 0 {
		return fmt.Errorf("reflexion config: lookback_hours must be positive, got %d", c.Reflexion.LookbackHours)
	}
	return nil
}

// DefaultPath returns the conventional config location (~/.aide/config.yaml).
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".aide", "config.yaml")
}
