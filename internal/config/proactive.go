package config

import (
	"fmt"
	"time"
)

// ProactiveConfig configures the unsolicited-suggestion budget.
type ProactiveConfig struct {
	// DailyCap is the maximum suggestions per calendar day, across
	// all domains (default: 3).
	DailyCap int `yaml:"daily_cap"`

	// Cooldown is the minimum gap after any suggestion, regardless
	// of domain (default: 2h).
	Cooldown time.Duration `yaml:"cooldown"`

	// ConfidenceFloor discards generated suggestions below this
	// confidence (default: 0.70).
	ConfidenceFloor float64 `yaml:"confidence_floor"`

	// Expiry is how long an unanswered suggestion stays actionable
	// (default: 4h).
	Expiry time.Duration `yaml:"expiry"`

	// HistoryLimit is how many recent suggestions are shown to the
	// model to avoid repeats (default: 5).
	HistoryLimit int `yaml:"history_limit"`
}

// DefaultProactiveConfig returns the stock suggestion budget.
func DefaultProactiveConfig() ProactiveConfig {
	return ProactiveConfig{
		DailyCap:        3,
		Cooldown:        2 * time.Hour,
		ConfidenceFloor: 0.70,
		Expiry:          4 * time.Hour,
		HistoryLimit:    5,
	}
}

// Validate rejects budgets that could never produce a suggestion.
func (c ProactiveConfig) Validate() error {
	if c.DailyCap < 0 {
		return fmt.Errorf("daily_cap must be non-negative, got %d", c.DailyCap)
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence_floor must be in [0,1], got %f", c.ConfidenceFloor)
	}
	return nil
}
