// Package agent wires the subsystems together: one Orchestrator owns
// the knowledge store, the trust ladder, the action registry, the
// reflexion and proactive engines, and the nightly scheduler. Callers
// (the CLI today, a chat transport tomorrow) only ever talk to this
// type.
package agent

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"aide/internal/action"
	"aide/internal/config"
	"aide/internal/llm"
	"aide/internal/memory"
	"aide/internal/proactive"
	"aide/internal/reflexion"
	"aide/internal/trust"
)

// contextCacheTTL bounds how stale a cached response context may be.
// Interaction writes flush the cache, so the TTL only covers writes
// that bypass the orchestrator. The cache runs without a janitor
// goroutine; expired entries are dropped lazily on read.
const contextCacheTTL = 30 * time.Second

// ResponseContext is everything assembled for answering one query.
type ResponseContext struct {
	Bundle memory.ContextBundle
	Trust  []trust.Summary
}

// Orchestrator is the composition root.
type Orchestrator struct {
	cfg       *config.Config
	store     *memory.Store
	ladder    *trust.Ladder
	registry  *action.Registry
	reflexion *reflexion.Engine
	proactive *proactive.Engine
	client    llm.Client
	cache     *gocache.Cache
	cron      *cron.Cron
	log       *zap.Logger
}

// New builds a fully wired orchestrator. A nil client is constructed
// from config; tests pass their own.
func New(cfg *config.Config, client llm.Client, log *zap.Logger) (*Orchestrator, error) {
	if log == nil {
		log = zap.NewNop()
	}

	if client == nil {
		var err error
		client, err = llm.New(cfg.LLM)
		if err != nil {
			return nil, err
		}
	}

	store, err := memory.Open(cfg.Memory, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge store: %w", err)
	}

	ladder := trust.NewLadder(store, cfg.Trust, log)

	o := &Orchestrator{
		cfg:       cfg,
		store:     store,
		ladder:    ladder,
		registry:  action.NewRegistry(ladder, store, log),
		reflexion: reflexion.NewEngine(store, client, cfg.Reflexion, log),
		proactive: proactive.NewEngine(store, ladder, client, cfg.Proactive, log),
		client:    client,
		cache:     gocache.New(contextCacheTTL, 0),
		log:       log.Named("agent"),
	}
	return o, nil
}

// Close stops the scheduler and releases the store.
func (o *Orchestrator) Close() error {
	o.StopScheduler()
	return o.store.Close()
}

// Store exposes the knowledge store for read-oriented callers like the
// CLI recall command.
func (o *Orchestrator) Store() *memory.Store {
	return o.store
}

// BuildResponseContext assembles the memory and trust standing
// relevant to a query. Identical queries within a short window reuse
// the cached bundle; any interaction write invalidates it.
func (o *Orchestrator) BuildResponseContext(query string) (ResponseContext, error) {
	if cached, ok := o.cache.Get(query); ok {
		return cached.(ResponseContext), nil
	}

	summaries, err := o.ladder.Summaries()
	if err != nil {
		return ResponseContext{}, err
	}
	rc := ResponseContext{
		Bundle: o.store.BuildContext(query),
		Trust:  summaries,
	}
	o.cache.SetDefault(query, rc)
	return rc, nil
}

// RecordInteraction persists one exchange and invalidates cached
// context.
func (o *Orchestrator) RecordInteraction(input, response, sessionID, feedback string) (int64, error) {
	id, err := o.store.StoreInteraction(memory.Interaction{
		UserInput: input,
		Response:  response,
		SessionID: sessionID,
		Feedback:  feedback,
	})
	if err != nil {
		return 0, err
	}
	o.cache.Flush()
	return id, nil
}

// RecordFeedback attaches feedback to a stored interaction.
func (o *Orchestrator) RecordFeedback(id int64, feedback string) error {
	if err := o.store.RecordFeedback(id, feedback); err != nil {
		return err
	}
	o.cache.Flush()
	return nil
}

// RegisterAction adds a capability to the registry.
func (o *Orchestrator) RegisterAction(a *action.Action) error {
	return o.registry.Register(a)
}

// ExecuteAction runs a registered action through the gated protocol.
func (o *Orchestrator) ExecuteAction(ctx context.Context, name string, p action.Params) (action.Result, error) {
	return o.registry.Execute(ctx, name, p)
}

// AvailableActions lists the actions the domain's trust level unlocks.
func (o *Orchestrator) AvailableActions(domain string) ([]*action.Action, error) {
	return o.registry.Available(domain)
}

// TrustLevel returns the current level for a domain.
func (o *Orchestrator) TrustLevel(domain string) (trust.Level, error) {
	return o.ladder.LevelFor(domain)
}

// SetTrustLevel applies a user override.
func (o *Orchestrator) SetTrustLevel(domain string, level trust.Level) error {
	return o.ladder.SetLevel(domain, level)
}

// TrustSummary describes every known domain's standing.
func (o *Orchestrator) TrustSummary() ([]trust.Summary, error) {
	return o.ladder.Summaries()
}

// Suggest runs the proactive gate for one domain.
func (o *Orchestrator) Suggest(ctx context.Context, domain string) (memory.Suggestion, error) {
	return o.proactive.Check(ctx, domain)
}

// RespondToSuggestion records the user's reaction to a suggestion.
func (o *Orchestrator) RespondToSuggestion(id string, accepted bool) error {
	return o.proactive.RecordOutcome(id, accepted)
}

// Health reports per-subsystem readiness.
type Health struct {
	Store     bool
	LLM       bool
	Scheduler bool
}

// HealthCheck probes the subsystems.
func (o *Orchestrator) HealthCheck() Health {
	h := Health{
		LLM:       o.client != nil,
		Scheduler: o.cron != nil,
	}
	if err := o.store.Ping(); err == nil {
		h.Store = true
	} else {
		o.log.Warn("store ping failed", zap.Error(err))
	}
	return h
}
