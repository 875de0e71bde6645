// Package proactive implements rationed unsolicited help: the agent
// may offer a suggestion only when trust allows it, the daily budget
// and cooldown permit it, and the model is confident the suggestion is
// worth an interruption. Silence is the default.
package proactive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aide/internal/config"
	"aide/internal/llm"
	"aide/internal/memory"
	"aide/internal/trust"
)

// ErrNoSuggestion is returned when a check completes without producing
// a suggestion. Callers treat it as "stay quiet", not as a failure.
var ErrNoSuggestion = errors.New("no suggestion")

// Engine decides when the agent may speak up.
type Engine struct {
	mu     sync.Mutex
	store  *memory.Store
	ladder *trust.Ladder
	client llm.Client
	cfg    config.ProactiveConfig
	log    *zap.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine wires the proactive gate to trust, memory and the model.
func NewEngine(store *memory.Store, ladder *trust.Ladder, client llm.Client, cfg config.ProactiveConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:  store,
		ladder: ladder,
		client: client,
		cfg:    cfg,
		log:    log.Named("proactive"),
		now:    time.Now,
	}
}

// Check runs the full gate for one domain and either returns a
// persisted pending suggestion or ErrNoSuggestion. The budget check
// and the suggestion write happen under one engine lock so concurrent
// checks cannot both spend the last slot of the day.
func (e *Engine) Check(ctx context.Context, domain string) (memory.Suggestion, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	perm, err := e.ladder.CanSuggest(domain)
	if err != nil {
		return memory.Suggestion{}, err
	}
	if !perm.Allowed {
		e.log.Debug("suggestion gate closed by trust", zap.String("domain", domain))
		return memory.Suggestion{}, fmt.Errorf("%w: %s", ErrNoSuggestion, perm.Reason)
	}

	now := e.now()
	state, err := e.store.ProactiveStateNow()
	if err != nil {
		return memory.Suggestion{}, err
	}

	// The daily counter belongs to a local calendar day and resets
	// when the day rolls over.
	today := now.Format("2006-01-02")
	count := state.DailyCount
	if state.CountDate != today {
		count = 0
	}
	if count >= e.cfg.DailyCap {
		e.log.Debug("daily suggestion cap reached", zap.Int("cap", e.cfg.DailyCap))
		return memory.Suggestion{}, fmt.Errorf("%w: daily cap reached", ErrNoSuggestion)
	}

	// The cooldown is global: a suggestion in any domain silences all
	// of them for a while.
	if state.LastSuggestionAt != nil && now.Sub(*state.LastSuggestionAt) < e.cfg.Cooldown {
		return memory.Suggestion{}, fmt.Errorf("%w: in cooldown", ErrNoSuggestion)
	}

	candidate, err := e.generate(ctx, domain)
	if err != nil {
		return memory.Suggestion{}, err
	}
	if candidate.Confidence < e.cfg.ConfidenceFloor {
		e.log.Debug("suggestion below confidence floor",
			zap.Float64("confidence", candidate.Confidence),
			zap.Float64("floor", e.cfg.ConfidenceFloor))
		return memory.Suggestion{}, fmt.Errorf("%w: confidence %.2f below floor", ErrNoSuggestion, candidate.Confidence)
	}

	sg := memory.Suggestion{
		ID:         uuid.NewString(),
		Message:    candidate.Message,
		Category:   candidate.Category,
		Confidence: candidate.Confidence,
		Action:     candidate.Action,
		Domain:     domain,
		Status:     memory.SuggestionPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(e.cfg.Expiry),
	}
	if err := e.store.CreateSuggestion(sg, count+1, today, now); err != nil {
		return memory.Suggestion{}, err
	}

	e.log.Info("suggestion made",
		zap.String("id", sg.ID),
		zap.String("domain", domain),
		zap.Float64("confidence", sg.Confidence))
	return sg, nil
}

// candidate is the model's answer to "is there anything worth saying".
type candidate struct {
	ShouldSuggest bool    `json:"should_suggest"`
	Message       string  `json:"message"`
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
	Action        string  `json:"action"`
}

const suggestSystemPrompt = `You are the proactive module of a personal assistant.
You see the user's recent context and decide whether ONE unsolicited suggestion
is worth an interruption right now. Most of the time the answer is no.
Never repeat a recent suggestion.`

// generate asks the model for at most one suggestion grounded in the
// current context.
func (e *Engine) generate(ctx context.Context, domain string) (candidate, error) {
	bundle := e.store.BuildContext(domain)
	recent, err := e.store.RecentSuggestions(e.cfg.HistoryLimit)
	if err != nil {
		return candidate{}, err
	}

	// Model trouble means silence, not an error the caller must
	// handle: an unavailable provider looks the same as "nothing worth
	// saying".
	raw, err := e.client.CompleteWithSystem(ctx, suggestSystemPrompt, buildSuggestPrompt(domain, bundle, recent))
	if err != nil {
		e.log.Warn("suggestion call failed", zap.Error(err))
		return candidate{}, fmt.Errorf("%w: model unavailable", ErrNoSuggestion)
	}

	c, err := parseCandidate(raw)
	if err != nil {
		e.log.Warn("unparseable suggestion response", zap.Error(err))
		return candidate{}, fmt.Errorf("%w: unparseable response", ErrNoSuggestion)
	}
	if !c.ShouldSuggest || strings.TrimSpace(c.Message) == "" {
		return candidate{}, fmt.Errorf("%w: model declined", ErrNoSuggestion)
	}
	return c, nil
}

func buildSuggestPrompt(domain string, bundle memory.ContextBundle, recent []memory.Suggestion) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\n\n", domain)

	if len(bundle.Facts) > 0 {
		b.WriteString("Known facts:\n")
		for _, f := range bundle.Facts {
			fmt.Fprintf(&b, "- [%s] %s\n", f.Entity, f.Text)
		}
		b.WriteString("\n")
	}
	if len(bundle.RecentInteractions) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, in := range bundle.RecentInteractions {
			fmt.Fprintf(&b, "- User: %s\n", in.UserInput)
		}
		b.WriteString("\n")
	}
	if len(recent) > 0 {
		b.WriteString("Recently suggested (do not repeat):\n")
		for _, s := range recent {
			fmt.Fprintf(&b, "- %s (%s)\n", s.Message, s.Status)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Respond with ONLY a JSON object:
{"should_suggest": true|false, "message": "...", "category": "...", "confidence": 0.0-1.0, "action": ""}
Set should_suggest to false unless a suggestion is clearly valuable right now.`)
	return b.String()
}

func parseCandidate(raw string) (candidate, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	if start := strings.Index(cleaned, "{"); start > 0 {
		if end := strings.LastIndex(cleaned, "}"); end > start {
			cleaned = cleaned[start : end+1]
		}
	}

	var c candidate
	if err := json.Unmarshal([]byte(cleaned), &c); err != nil {
		return candidate{}, fmt.Errorf("invalid suggestion JSON: %w", err)
	}
	return c, nil
}

// RecordOutcome applies the user's response to a suggestion: the
// lifecycle state moves and the trust ladder hears about it. An
// accepted suggestion is a success; a dismissal is an ordinary
// failure, never a major one.
func (e *Engine) RecordOutcome(id string, accepted bool) error {
	sg, err := e.store.GetSuggestion(id)
	if err != nil {
		return err
	}

	status := memory.SuggestionDismissed
	if accepted {
		status = memory.SuggestionAccepted
	}
	if err := e.store.SetSuggestionStatus(id, status); err != nil {
		return err
	}

	if accepted {
		return e.ladder.RecordSuccess(sg.Domain)
	}
	return e.ladder.RecordFailure(sg.Domain, false)
}

// ExpireStale marks pending suggestions past their deadline expired.
// Expiry carries no trust feedback; the user never saw them.
func (e *Engine) ExpireStale() (int, error) {
	return e.store.ExpireSuggestions(e.now())
}
