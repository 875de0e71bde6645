// Package trust implements the earned-autonomy ladder: per-domain
// levels from Stranger to Operator that rise with demonstrated success
// and fall on failure. Every capability gate in the agent checks this
// ladder before acting.
package trust

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"aide/internal/config"
	"aide/internal/memory"
)

// Level is one rung of the autonomy ladder.
type Level int

const (
	Stranger     Level = 0 // observe and answer only
	Acquaintance Level = 1 // may suggest
	Colleague    Level = 2 // may draft and schedule for approval
	Partner      Level = 3 // may act with notification
	Operator     Level = 4 // may act autonomously
)

func (l Level) String() string {
	switch l {
	case Stranger:
		return "stranger"
	case Acquaintance:
		return "acquaintance"
	case Colleague:
		return "colleague"
	case Partner:
		return "partner"
	case Operator:
		return "operator"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// Permission is the outcome of a capability check.
type Permission struct {
	Allowed       bool
	Domain        string
	CurrentLevel  Level
	RequiredLevel Level
	Reason        string
}

// Summary describes one domain's standing for display.
type Summary struct {
	Domain              string
	Level               Level
	Successes           int
	Failures            int
	Accuracy            float64
	ConsecutiveFailures int
	NextLevel           Level
	SuccessesToNext     int
}

// Ladder mediates all trust reads and writes. Outcome recording and
// the promotion/demotion decision happen under one lock so two
// concurrent outcomes cannot both observe the pre-update counters.
type Ladder struct {
	mu    sync.Mutex
	store *memory.Store
	cfg   config.TrustConfig
	log   *zap.Logger
}

// NewLadder builds a ladder over the knowledge store.
func NewLadder(store *memory.Store, cfg config.TrustConfig, log *zap.Logger) *Ladder {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ladder{store: store, cfg: cfg, log: log.Named("trust")}
}

// LevelFor returns the current level for a domain, creating the domain
// at Stranger on first reference.
func (l *Ladder) LevelFor(domain string) (Level, error) {
	st, err := l.store.TrustStateFor(domain)
	if err != nil {
		return Stranger, err
	}
	return Level(st.Level), nil
}

// RecordSuccess records a successful outcome and applies at most one
// promotion.
func (l *Ladder) RecordSuccess(domain string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.store.TrustStateFor(domain)
	if err != nil {
		return err
	}

	now := time.Now()
	st.Successes++
	st.ConsecutiveSuccess++
	st.ConsecutiveFailures = 0
	st.LastSuccessAt = &now

	if next, ok := l.promotionDue(st); ok {
		l.log.Info("trust promoted",
			zap.String("domain", domain),
			zap.Stringer("from", Level(st.Level)),
			zap.Stringer("to", next))
		st.Level = int(next)
	}

	return l.store.SaveTrustState(st)
}

// RecordFailure records a failed outcome. A major failure (irreversible
// harm, safety violation, explicit user correction) demotes
// immediately; ordinary failures demote only when the streak or the
// accuracy floor says the level is no longer earned.
func (l *Ladder) RecordFailure(domain string, major bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.store.TrustStateFor(domain)
	if err != nil {
		return err
	}

	now := time.Now()
	st.Failures++
	st.ConsecutiveFailures++
	st.ConsecutiveSuccess = 0
	st.LastFailureAt = &now

	if reason, due := l.demotionDue(st, major); due {
		from := Level(st.Level)
		st.Level--
		st.ConsecutiveFailures = 0
		l.log.Warn("trust demoted",
			zap.String("domain", domain),
			zap.Stringer("from", from),
			zap.Stringer("to", Level(st.Level)),
			zap.String("reason", reason))
	}

	return l.store.SaveTrustState(st)
}

// promotionDue reports whether the domain has earned the next level.
// Promotion is always a single step.
func (l *Ladder) promotionDue(st memory.TrustState) (Level, bool) {
	next := st.Level + 1
	crit, ok := l.cfg.Promotion[next]
	if !ok {
		return 0, false
	}
	if st.Successes < crit.MinSuccesses {
		return 0, false
	}
	if st.Failures > crit.MaxFailures {
		return 0, false
	}
	if st.Accuracy() < crit.MinAccuracy {
		return 0, false
	}
	if st.ConsecutiveSuccess < l.cfg.MomentumSuccesses {
		return 0, false
	}
	return Level(next), true
}

// demotionDue reports whether the domain should drop one level, and
// why. Level 0 cannot fall further.
func (l *Ladder) demotionDue(st memory.TrustState, major bool) (string, bool) {
	if st.Level <= 0 {
		return "", false
	}
	if major {
		return "major failure", true
	}
	if st.ConsecutiveFailures >= l.cfg.DemotionConsecutiveFailures {
		return fmt.Sprintf("%d consecutive failures", st.ConsecutiveFailures), true
	}
	if crit, ok := l.cfg.Promotion[st.Level]; ok {
		if st.Accuracy() < crit.MinAccuracy-l.cfg.DemotionAccuracySlack {
			return fmt.Sprintf("accuracy %.2f below floor for %s", st.Accuracy(), Level(st.Level)), true
		}
	}
	return "", false
}

// SetLevel is the user's override: trust is ultimately granted, not
// merely earned. The change is logged but never second-guessed.
func (l *Ladder) SetLevel(domain string, level Level) error {
	if level < Stranger || level > Operator {
		return fmt.Errorf("invalid trust level %d", int(level))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.store.TrustStateFor(domain)
	if err != nil {
		return err
	}

	l.log.Info("trust level set by user",
		zap.String("domain", domain),
		zap.Stringer("from", Level(st.Level)),
		zap.Stringer("to", level))

	st.Level = int(level)
	st.ConsecutiveFailures = 0
	return l.store.SaveTrustState(st)
}

// Check reports whether the domain meets a required level.
func (l *Ladder) Check(domain string, required Level) (Permission, error) {
	st, err := l.store.TrustStateFor(domain)
	if err != nil {
		return Permission{}, err
	}

	p := Permission{
		Domain:        domain,
		CurrentLevel:  Level(st.Level),
		RequiredLevel: required,
		Allowed:       Level(st.Level) >= required,
	}
	if p.Allowed {
		p.Reason = fmt.Sprintf("domain %q is at %s", domain, p.CurrentLevel)
	} else {
		p.Reason = fmt.Sprintf("domain %q is at %s; %s required", domain, p.CurrentLevel, required)
	}
	return p, nil
}

// CanSuggest reports whether the agent may offer unsolicited
// suggestions in this domain.
func (l *Ladder) CanSuggest(domain string) (Permission, error) {
	return l.Check(domain, Acquaintance)
}

// CanDraft reports whether the agent may prepare drafts and tentative
// schedules for approval.
func (l *Ladder) CanDraft(domain string) (Permission, error) {
	return l.Check(domain, Colleague)
}

// CanAct reports whether the agent may take real-world actions with
// notification.
func (l *Ladder) CanAct(domain string) (Permission, error) {
	return l.Check(domain, Partner)
}

// CanOperate reports whether the agent may act autonomously.
func (l *Ladder) CanOperate(domain string) (Permission, error) {
	return l.Check(domain, Operator)
}

// SummaryFor describes a domain's standing and progress toward the
// next level.
func (l *Ladder) SummaryFor(domain string) (Summary, error) {
	st, err := l.store.TrustStateFor(domain)
	if err != nil {
		return Summary{}, err
	}
	return l.summarize(st), nil
}

// Summaries describes every known domain.
func (l *Ladder) Summaries() ([]Summary, error) {
	states, err := l.store.AllTrustStates()
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(states))
	for _, st := range states {
		out = append(out, l.summarize(st))
	}
	return out, nil
}

func (l *Ladder) summarize(st memory.TrustState) Summary {
	sum := Summary{
		Domain:              st.Domain,
		Level:               Level(st.Level),
		Successes:           st.Successes,
		Failures:            st.Failures,
		Accuracy:            st.Accuracy(),
		ConsecutiveFailures: st.ConsecutiveFailures,
		NextLevel:           Level(st.Level),
	}
	if crit, ok := l.cfg.Promotion[st.Level+1]; ok {
		sum.NextLevel = Level(st.Level + 1)
		if remaining := crit.MinSuccesses - st.Successes; remaining > 0 {
			sum.SuccessesToNext = remaining
		}
	}
	return sum
}
