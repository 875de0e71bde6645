package action

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"aide/internal/memory"
	"aide/internal/trust"
)

// Registry holds the registered actions and enforces the execution
// protocol: permission check, validation, recovered execution, trust
// feedback, and an unconditional audit record. No step is skippable.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]*Action
	ladder  *trust.Ladder
	store   *memory.Store
	log     *zap.Logger
}

// NewRegistry builds an empty registry wired to the trust ladder and
// the audit store.
func NewRegistry(ladder *trust.Ladder, store *memory.Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{
		actions: make(map[string]*Action),
		ladder:  ladder,
		store:   store,
		log:     log.Named("action"),
	}
}

// Register adds an action. Registration fails for unnamed actions,
// categories outside the closed set, duplicates, and actions without
// an Execute func.
func (r *Registry) Register(a *Action) error {
	if a == nil || a.Name == "" {
		return fmt.Errorf("action name is required")
	}
	if a.Execute == nil {
		return fmt.Errorf("action %q has no execute func", a.Name)
	}
	if a.Domain == "" {
		return fmt.Errorf("action %q has no domain", a.Name)
	}
	if _, err := RequiredLevel(a.Category); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.actions[a.Name]; exists {
		return fmt.Errorf("action %q already registered", a.Name)
	}
	r.actions[a.Name] = a

	r.log.Debug("action registered",
		zap.String("name", a.Name),
		zap.String("category", string(a.Category)),
		zap.String("domain", a.Domain))
	return nil
}

// Get returns a registered action by name.
func (r *Registry) Get(name string) (*Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return a, nil
}

// Available returns the actions in a domain the current trust level
// unlocks, sorted by name.
func (r *Registry) Available(domain string) ([]*Action, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Action
	for _, a := range r.actions {
		if a.Domain != domain {
			continue
		}
		required, err := RequiredLevel(a.Category)
		if err != nil {
			continue
		}
		perm, err := r.ladder.Check(domain, required)
		if err != nil {
			return nil, err
		}
		if perm.Allowed {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Execute runs a named action through the full protocol. The returned
// error covers lookup, permission and validation failures as well as
// execution errors; the Result carries the action's own outcome.
func (r *Registry) Execute(ctx context.Context, name string, p Params) (Result, error) {
	a, err := r.Get(name)
	if err != nil {
		return Result{}, err
	}

	required, err := RequiredLevel(a.Category)
	if err != nil {
		return Result{}, err
	}
	perm, err := r.ladder.Check(a.Domain, required)
	if err != nil {
		return Result{}, err
	}
	if !perm.Allowed {
		// A denied attempt is audited but carries no trust feedback:
		// asking is not failing.
		r.audit(a, p, Result{}, ErrPermissionDenied)
		return Result{}, fmt.Errorf("%w: %s", ErrPermissionDenied, perm.Reason)
	}

	if err := a.validateParams(p); err != nil {
		r.audit(a, p, Result{}, err)
		return Result{}, err
	}

	res, err := r.run(ctx, a, p)

	// Trust feedback: a returned error or panic is a major failure, a
	// clean run that reports failure is an ordinary one.
	switch {
	case err != nil:
		if ferr := r.ladder.RecordFailure(a.Domain, true); ferr != nil {
			r.log.Error("failed to record trust failure", zap.Error(ferr))
		}
	case !res.Success:
		if ferr := r.ladder.RecordFailure(a.Domain, false); ferr != nil {
			r.log.Error("failed to record trust failure", zap.Error(ferr))
		}
	default:
		if serr := r.ladder.RecordSuccess(a.Domain); serr != nil {
			r.log.Error("failed to record trust success", zap.Error(serr))
		}
	}

	r.audit(a, p, res, err)
	if err != nil {
		return Result{}, fmt.Errorf("action %q failed: %w", a.Name, err)
	}
	return res, nil
}

// run invokes the action with panic recovery so a misbehaving action
// cannot take down the agent. A panic surfaces as an execution error.
func (r *Registry) run(ctx context.Context, a *Action, p Params) (res Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("action panicked",
				zap.String("name", a.Name),
				zap.Any("panic", rec))
			res = Result{}
			err = fmt.Errorf("action %q panicked: %v", a.Name, rec)
		}
	}()
	return a.Execute(ctx, p)
}

// RollbackAction undoes a previously executed reversible action.
// Irreversible actions fail loudly rather than pretending.
func (r *Registry) RollbackAction(ctx context.Context, name string, p Params) error {
	a, err := r.Get(name)
	if err != nil {
		return err
	}
	if !a.Reversible || a.Rollback == nil {
		return fmt.Errorf("%w: %q", ErrNotReversible, name)
	}
	if err := a.Rollback(ctx, p); err != nil {
		return fmt.Errorf("rollback of %q failed: %w", name, err)
	}
	r.log.Info("action rolled back", zap.String("name", name))
	return nil
}

// audit writes an interaction-shaped record for every execution
// attempt, allowed or not. The reflexion cycle reads these the same
// way it reads conversation history.
func (r *Registry) audit(a *Action, p Params, res Result, execErr error) {
	meta := map[string]any{
		"kind":          "action",
		"invocation_id": uuid.NewString(),
		"action":        a.Name,
		"category":      string(a.Category),
		"domain":        a.Domain,
		"params":        map[string]any(p),
	}

	in := memory.Interaction{
		UserInput: fmt.Sprintf("[action] %s", a.Name),
		Response:  res.Message,
		Metadata:  meta,
	}
	switch {
	case execErr != nil:
		in.Response = execErr.Error()
		in.Feedback = memory.FeedbackNegative
	case !res.Success:
		in.Feedback = memory.FeedbackNegative
	default:
		in.Feedback = memory.FeedbackPositive
	}

	if _, err := r.store.StoreInteraction(in); err != nil {
		r.log.Error("failed to audit action", zap.String("name", a.Name), zap.Error(err))
	}
}
