package config

import "fmt"

// PromotionCriteria defines what it takes to reach one trust level.
type PromotionCriteria struct {
	// MinSuccesses is the cumulative success count required.
	MinSuccesses int `yaml:"min_successes"`

	// MaxFailures is the cumulative failure ceiling.
	MaxFailures int `yaml:"max_failures"`

	// MinAccuracy is the required success ratio (0.0-1.0).
	MinAccuracy float64 `yaml:"min_accuracy"`
}

// TrustConfig configures the per-domain trust ladder.
type TrustConfig struct {
	// Promotion maps target level (1-4) to its criteria. Thresholds
	// must be monotonically increasing across levels.
	Promotion map[int]PromotionCriteria `yaml:"promotion"`

	// MomentumSuccesses is the consecutive-success requirement
	// checked on every promotion regardless of level (default: 3).
	MomentumSuccesses int `yaml:"momentum_successes"`

	// DemotionConsecutiveFailures triggers a demotion check
	// (default: 3).
	DemotionConsecutiveFailures int `yaml:"demotion_consecutive_failures"`

	// DemotionAccuracySlack is how far (in accuracy points, 0.0-1.0)
	// a domain may fall below its level's minimum accuracy before
	// demotion (default: 0.15).
	DemotionAccuracySlack float64 `yaml:"demotion_accuracy_slack"`
}

// DefaultTrustConfig returns the stock ladder thresholds.
func DefaultTrustConfig() TrustConfig {
	return TrustConfig{
		Promotion: map[int]PromotionCriteria{
			1: {MinSuccesses: 5, MaxFailures: 2, MinAccuracy: 0.60},
			2: {MinSuccesses: 15, MaxFailures: 3, MinAccuracy: 0.70},
			3: {MinSuccesses: 30, MaxFailures: 5, MinAccuracy: 0.80},
			4: {MinSuccesses: 50, MaxFailures: 5, MinAccuracy: 0.90},
		},
		MomentumSuccesses:           3,
		DemotionConsecutiveFailures: 3,
		DemotionAccuracySlack:       0.15,
	}
}

// Validate rejects missing or non-monotonic promotion thresholds.
func (c TrustConfig) Validate() error {
	prev := PromotionCriteria{}
	for level := 1; level <= 4; level++ {
		crit, ok := c.Promotion[level]
		if !ok {
			return fmt.Errorf("missing promotion criteria for level %d", level)
		}
		if crit.MinSuccesses < prev.MinSuccesses || crit.MinAccuracy < prev.MinAccuracy {
			return fmt.Errorf("promotion thresholds must be monotonically increasing (level %d)", level)
		}
		prev = crit
	}
	if c.MomentumSuccesses < 1 {
		return fmt.Errorf("momentum_successes must be at least 1, got %d", c.MomentumSuccesses)
	}
	return nil
}
