// Package action implements the gated action framework: a closed set
// of action categories, each mapped to the trust level that unlocks
// it, and a registry that enforces the gate on every execution.
package action

import (
	"context"
	"fmt"

	"aide/internal/trust"
)

// Category classifies what kind of real-world effect an action has.
// The set is closed: an action that fits no category does not get
// registered.
type Category string

const (
	CategoryRemind   Category = "remind"   // surface a reminder to the user
	CategoryDraft    Category = "draft"    // prepare content for approval
	CategorySchedule Category = "schedule" // tentative calendar changes
	CategorySend     Category = "send"     // communication leaves the machine
	CategoryExecute  Category = "execute"  // irreversible external effects
	CategoryResearch Category = "research" // read-only information gathering
)

// requiredLevels maps each category to the trust level that unlocks
// it. Research is read-only and always available; execute demands the
// top of the ladder.
var requiredLevels = map[Category]trust.Level{
	CategoryRemind:   trust.Acquaintance,
	CategoryDraft:    trust.Colleague,
	CategorySchedule: trust.Colleague,
	CategorySend:     trust.Partner,
	CategoryExecute:  trust.Operator,
	CategoryResearch: trust.Stranger,
}

// RequiredLevel returns the trust level a category demands, or an
// error for categories outside the closed set.
func RequiredLevel(c Category) (trust.Level, error) {
	level, ok := requiredLevels[c]
	if !ok {
		return trust.Operator, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	return level, nil
}

// Params carries the inputs to one execution.
type Params map[string]any

// Result is what an action run produced.
type Result struct {
	Success bool
	Message string
	Output  map[string]any
}

// Action is one registered capability. Execute performs the effect;
// Validate (optional) rejects bad params before anything runs;
// Rollback (optional) undoes a reversible action.
type Action struct {
	Name        string
	Description string
	Category    Category
	Domain      string
	Reversible  bool
	Required    []string // param keys that must be present

	Validate func(Params) error
	Execute  func(ctx context.Context, p Params) (Result, error)
	Rollback func(ctx context.Context, p Params) error
}

// validateParams checks the declared required keys plus the action's
// own validator.
func (a *Action) validateParams(p Params) error {
	for _, key := range a.Required {
		if _, ok := p[key]; !ok {
			return fmt.Errorf("%w: missing %q", ErrInvalidParams, key)
		}
	}
	if a.Validate != nil {
		if err := a.Validate(p); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidParams, err)
		}
	}
	return nil
}
