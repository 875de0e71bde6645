package config

import (
	"os"
	"path/filepath"
)

// MemoryConfig configures the SQLite knowledge store.
type MemoryConfig struct {
	// Path to the SQLite database file.
	Path string `yaml:"path"`

	// BusyTimeoutMS bounds waits on a lock held by a concurrent
	// writer instead of blocking forever (default: 5000).
	BusyTimeoutMS int `yaml:"busy_timeout_ms"`

	// RecentInteractions is how many recent exchanges feed into a
	// context bundle (default: 5).
	RecentInteractions int `yaml:"recent_interactions"`

	// SearchLimit caps full-text search results (default: 10).
	SearchLimit int `yaml:"search_limit"`
}

// DefaultMemoryConfig returns the default store settings.
func DefaultMemoryConfig() MemoryConfig {
	path := "aide.db"
	if home, err := os.UserHomeDir(); err == nil {
		path = filepath.Join(home, ".aide", "aide.db")
	}
	return MemoryConfig{
		Path:               path,
		BusyTimeoutMS:      5000,
		RecentInteractions: 5,
		SearchLimit:        10,
	}
}
