package memory

import "time"

// Entity is a person, project, company or concept the agent has
// learned about. Unique by (Name, Type).
type Entity struct {
	ID         int64
	Name       string
	Type       string // person, project, company, concept
	Attributes map[string]any
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Fact is one piece of knowledge about an entity. Re-asserting the
// same (Entity, Text) pair raises confidence to the max of old/new
// rather than duplicating.
type Fact struct {
	ID         int64
	Entity     string
	Text       string
	Confidence float64
	Source     string
	LearnedAt  time.Time
}

// Reflection is a lesson extracted from a failure.
type Reflection struct {
	ID           int64
	Trigger      string
	WhatHappened string
	WhyFailed    string
	Lesson       string
	NewApproach  string
	Applied      bool
	AppliedCount int
	CreatedAt    time.Time
}

// Prediction is a falsifiable forecast, used to calibrate trust.
// WasCorrect is nil until the prediction is resolved.
type Prediction struct {
	ID         int64
	Text       string
	Confidence float64
	Domain     string
	Deadline   *time.Time
	Outcome    string
	WasCorrect *bool
	CreatedAt  time.Time
	ResolvedAt *time.Time
}

// Feedback tags attachable to an interaction.
const (
	FeedbackPositive = "positive"
	FeedbackNegative = "negative"
	FeedbackConfused = "confused"
	FeedbackRetry    = "retry"
)

// Interaction is one exchange between user and agent.
type Interaction struct {
	ID        int64
	UserInput string
	Response  string
	Feedback  string // empty or one of the Feedback* tags
	SessionID string
	Metadata  map[string]any
	CreatedAt time.Time
}

// Suggestion statuses.
const (
	SuggestionPending   = "pending"
	SuggestionAccepted  = "accepted"
	SuggestionDismissed = "dismissed"
	SuggestionExpired   = "expired"
)

// Suggestion is one proactive nudge offered to the user.
type Suggestion struct {
	ID         string
	Message    string
	Category   string
	Confidence float64
	Action     string // optional follow-up action name
	Domain     string
	Status     string
	CreatedAt  time.Time
	ExpiresAt  time.Time
}

// TrustState is the persisted earned-autonomy record for one domain.
type TrustState struct {
	Domain              string
	Level               int
	Successes           int
	Failures            int
	ConsecutiveSuccess  int
	ConsecutiveFailures int
	LastSuccessAt       *time.Time
	LastFailureAt       *time.Time
	UpdatedAt           time.Time
}

// Accuracy returns the success ratio, or 1.0 with no history.
func (t TrustState) Accuracy() float64 {
	total := t.Successes + t.Failures
	if total == 0 {
		return 1.0
	}
	return float64(t.Successes) / float64(total)
}

// PredictionAccuracy summarizes resolved predictions for trust
// calibration. CalibrationError is |Accuracy - AvgConfidence|.
type PredictionAccuracy struct {
	Count            int
	Correct          int
	Accuracy         float64
	AvgConfidence    float64
	CalibrationError float64
}

// ContextBundle is the material assembled for one response: the facts,
// lessons, entities and recent history most relevant to a query.
type ContextBundle struct {
	Query              string
	Entities           []Entity
	Facts              []Fact
	Reflections        []Reflection
	RecentInteractions []Interaction
}
