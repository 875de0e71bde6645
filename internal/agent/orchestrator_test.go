package agent

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"aide/internal/action"
	"aide/internal/config"
	"aide/internal/memory"
	"aide/internal/trust"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	return f.response, f.err
}

func newTestOrchestrator(t *testing.T, client *fakeLLM) *Orchestrator {
	t.Helper()
	cfg := config.Default()
	cfg.Memory.Path = filepath.Join(t.TempDir(), "agent.db")

	o, err := New(cfg, client, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { o.Close() })
	return o
}

func TestSchedulerStartsAndStopsCleanly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))

	cfg := config.Default()
	cfg.Memory.Path = filepath.Join(t.TempDir(), "agent.db")

	o, err := New(cfg, &fakeLLM{response: "[]"}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, o.StartScheduler())
	require.NoError(t, o.StartScheduler(), "second start is a no-op")
	assert.True(t, o.HealthCheck().Scheduler)

	require.NoError(t, o.Close())
	assert.False(t, o.HealthCheck().Scheduler)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	cfg := config.Default()
	cfg.Memory.Path = filepath.Join(t.TempDir(), "agent.db")
	cfg.Nightly.Schedule = "not a cron spec"

	o, err := New(cfg, &fakeLLM{}, zap.NewNop())
	require.NoError(t, err)
	defer o.Close()

	assert.Error(t, o.StartScheduler())
}

func TestBuildResponseContextCachesUntilWrite(t *testing.T) {
	o := newTestOrchestrator(t, &fakeLLM{})

	_, err := o.Store().StoreEntity(memory.Entity{Name: "Sarah", Type: "person"})
	require.NoError(t, err)

	rc, err := o.BuildResponseContext("ping Sarah about the review")
	require.NoError(t, err)
	require.Len(t, rc.Bundle.Entities, 1)
	assert.Empty(t, rc.Bundle.RecentInteractions)

	// A write through the orchestrator invalidates the cached bundle.
	_, err = o.RecordInteraction("ping Sarah about the review", "will do", "s1", "")
	require.NoError(t, err)

	rc, err = o.BuildResponseContext("ping Sarah about the review")
	require.NoError(t, err)
	assert.Len(t, rc.Bundle.RecentInteractions, 1)
}

func TestRecordFeedbackRoundTrip(t *testing.T) {
	o := newTestOrchestrator(t, &fakeLLM{})

	id, err := o.RecordInteraction("summarize my day", "done", "s1", "")
	require.NoError(t, err)
	require.NoError(t, o.RecordFeedback(id, memory.FeedbackNegative))

	probs, err := o.Store().ProblematicInteractions(24, 10)
	require.NoError(t, err)
	assert.Len(t, probs, 1)
}

func TestActionsThroughOrchestrator(t *testing.T) {
	o := newTestOrchestrator(t, &fakeLLM{})

	ran := false
	require.NoError(t, o.RegisterAction(&action.Action{
		Name:     "lookup",
		Category: action.CategoryResearch,
		Domain:   "chat",
		Execute: func(ctx context.Context, p action.Params) (action.Result, error) {
			ran = true
			return action.Result{Success: true}, nil
		},
	}))

	got, err := o.AvailableActions("chat")
	require.NoError(t, err)
	require.Len(t, got, 1)

	res, err := o.ExecuteAction(context.Background(), "lookup", action.Params{})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, ran)

	level, err := o.TrustLevel("chat")
	require.NoError(t, err)
	assert.Equal(t, trust.Stranger, level, "one success does not promote")
}

func TestRunNightlyCycle(t *testing.T) {
	client := &fakeLLM{response: `[{"what_happened": "x", "why_failed": "y",
		"lesson": "always include the ticket link in status updates", "new_approach": "z"}]`}
	o := newTestOrchestrator(t, client)

	// One failure to reflect on, one stale suggestion to expire, one
	// overdue prediction to surface.
	id, err := o.RecordInteraction("status update please", "vague rambling", "s1", "")
	require.NoError(t, err)
	require.NoError(t, o.RecordFeedback(id, memory.FeedbackNegative))

	now := time.Now()
	require.NoError(t, o.Store().CreateSuggestion(memory.Suggestion{
		ID: "sg-stale", Message: "old", Confidence: 0.9, Domain: "chat",
		CreatedAt: now.Add(-6 * time.Hour), ExpiresAt: now.Add(-2 * time.Hour),
	}, 1, now.Format("2006-01-02"), now.Add(-6*time.Hour)))

	deadline := now.Add(-time.Hour)
	_, err = o.Store().StorePrediction(memory.Prediction{
		Text: "user will ask for the report", Confidence: 0.8, Deadline: &deadline,
	})
	require.NoError(t, err)

	summary, err := o.RunNightlyCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Reflexion.LessonsStored)
	assert.Equal(t, 1, summary.SuggestionsExpired)
	assert.Equal(t, 1, summary.OverduePredictions)
	assert.True(t, summary.Consolidated, "first cycle has no consolidation marker, so it runs")
	assert.Greater(t, summary.Duration, time.Duration(0))

	// The next cycle skips consolidation: the marker is fresh.
	summary, err = o.RunNightlyCycle(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Consolidated)
}

func TestSuggestionFlowThroughOrchestrator(t *testing.T) {
	client := &fakeLLM{response: `{"should_suggest": true, "message": "review the open PRs",
		"category": "routine", "confidence": 0.9, "action": ""}`}
	o := newTestOrchestrator(t, client)

	require.NoError(t, o.SetTrustLevel("chat", trust.Acquaintance))

	sg, err := o.Suggest(context.Background(), "chat")
	require.NoError(t, err)

	require.NoError(t, o.RespondToSuggestion(sg.ID, true))
	sums, err := o.TrustSummary()
	require.NoError(t, err)
	require.Len(t, sums, 1)
	assert.Equal(t, 1, sums[0].Successes)
}

func TestHealthCheck(t *testing.T) {
	o := newTestOrchestrator(t, &fakeLLM{})

	h := o.HealthCheck()
	assert.True(t, h.Store)
	assert.True(t, h.LLM)
	assert.False(t, h.Scheduler)
}
