package config

// ReflexionConfig configures the failure-analysis batch cycle.
type ReflexionConfig struct {
	// LookbackHours is the window scanned for problematic
	// interactions (default: 24).
	LookbackHours int `yaml:"lookback_hours"`

	// MaxInteractions caps the batch size per cycle (default: 10).
	MaxInteractions int `yaml:"max_interactions"`

	// MinLessonLength prunes lessons too vague to be useful during
	// consolidation (default: 20 characters).
	MinLessonLength int `yaml:"min_lesson_length"`

	// DuplicateSimilarity is the token-overlap ratio above which two
	// lessons are considered duplicates (default: 0.6).
	DuplicateSimilarity float64 `yaml:"duplicate_similarity"`
}

// DefaultReflexionConfig returns sensible defaults for the cycle.
func DefaultReflexionConfig() ReflexionConfig {
	return ReflexionConfig{
		LookbackHours:       24,
		MaxInteractions:     10,
		MinLessonLength:     20,
		DuplicateSimilarity: 0.6,
	}
}
