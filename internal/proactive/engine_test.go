package proactive

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

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

func suggestJSON(confidence float64) string {
	return fmt.Sprintf(`{"should_suggest": true, "message": "you usually review PRs now", "category": "routine", "confidence": %.2f, "action": ""}`, confidence)
}

func newTestEngine(t *testing.T, client *fakeLLM) (*Engine, *trust.Ladder, *memory.Store) {
	t.Helper()
	store, err := memory.Open(config.MemoryConfig{
		Path: filepath.Join(t.TempDir(), "proactive.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ladder := trust.NewLadder(store, config.DefaultTrustConfig(), zap.NewNop())
	e := NewEngine(store, ladder, client, config.DefaultProactiveConfig(), zap.NewNop())
	return e, ladder, store
}

func TestCheckRequiresTrust(t *testing.T) {
	e, _, _ := newTestEngine(t, &fakeLLM{response: suggestJSON(0.9)})

	// A fresh domain is a stranger and may not suggest.
	_, err := e.Check(context.Background(), "email")
	assert.ErrorIs(t, err, ErrNoSuggestion)
}

func TestCheckProducesSuggestion(t *testing.T) {
	e, ladder, store := newTestEngine(t, &fakeLLM{response: suggestJSON(0.9)})
	require.NoError(t, ladder.SetLevel("chat", trust.Acquaintance))

	sg, err := e.Check(context.Background(), "chat")
	require.NoError(t, err)
	assert.Equal(t, memory.SuggestionPending, sg.Status)
	assert.Equal(t, "chat", sg.Domain)
	assert.NotEmpty(t, sg.ID)
	assert.True(t, sg.ExpiresAt.After(sg.CreatedAt))

	got, err := store.GetSuggestion(sg.ID)
	require.NoError(t, err)
	assert.Equal(t, sg.Message, got.Message)
}

func TestDailyCapAcrossDomains(t *testing.T) {
	e, ladder, _ := newTestEngine(t, &fakeLLM{response: suggestJSON(0.9)})
	require.NoError(t, ladder.SetLevel("chat", trust.Acquaintance))
	require.NoError(t, ladder.SetLevel("email", trust.Acquaintance))

	// Advance the clock past the cooldown between checks so only the
	// daily cap can refuse. All checks land on the same calendar day.
	base := time.Date(2026, 8, 25, 8, 0, 0, 0, time.Local)
	step := 0
	e.now = func() time.Time { return base.Add(time.Duration(step) * 3 * time.Hour) }

	domains := []string{"chat", "email", "chat", "email"}
	made := 0
	for _, d := range domains {
		_, err := e.Check(context.Background(), d)
		if err == nil {
			made++
		} else {
			assert.ErrorIs(t, err, ErrNoSuggestion)
		}
		step++
	}
	assert.Equal(t, 3, made, "the daily cap is global across domains")
}

func TestDailyCapRollsOver(t *testing.T) {
	e, ladder, _ := newTestEngine(t, &fakeLLM{response: suggestJSON(0.9)})
	require.NoError(t, ladder.SetLevel("chat", trust.Acquaintance))

	base := time.Date(2026, 8, 25, 9, 0, 0, 0, time.Local)
	now := base
	e.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_, err := e.Check(context.Background(), "chat")
		require.NoError(t, err)
		now = now.Add(3 * time.Hour)
	}
	_, err := e.Check(context.Background(), "chat")
	assert.ErrorIs(t, err, ErrNoSuggestion, "fourth suggestion of the day must be refused")

	// Next morning the counter is fresh.
	now = base.AddDate(0, 0, 1)
	_, err = e.Check(context.Background(), "chat")
	require.NoError(t, err)
}

func TestGlobalCooldown(t *testing.T) {
	e, ladder, _ := newTestEngine(t, &fakeLLM{response: suggestJSON(0.9)})
	require.NoError(t, ladder.SetLevel("chat", trust.Acquaintance))
	require.NoError(t, ladder.SetLevel("email", trust.Acquaintance))

	now := time.Now()
	e.now = func() time.Time { return now }

	_, err := e.Check(context.Background(), "chat")
	require.NoError(t, err)

	// A different domain is still silenced inside the cooldown.
	now = now.Add(30 * time.Minute)
	_, err = e.Check(context.Background(), "email")
	assert.ErrorIs(t, err, ErrNoSuggestion)

	now = now.Add(2 * time.Hour)
	_, err = e.Check(context.Background(), "email")
	require.NoError(t, err)
}

func TestConfidenceFloor(t *testing.T) {
	e, ladder, store := newTestEngine(t, &fakeLLM{response: suggestJSON(0.5)})
	require.NoError(t, ladder.SetLevel("chat", trust.Acquaintance))

	_, err := e.Check(context.Background(), "chat")
	assert.ErrorIs(t, err, ErrNoSuggestion)

	// A refused suggestion must not spend the budget.
	st, err := store.ProactiveStateNow()
	require.NoError(t, err)
	assert.Zero(t, st.DailyCount)
	assert.Nil(t, st.LastSuggestionAt)
}

func TestModelFailureMeansSilence(t *testing.T) {
	e, ladder, store := newTestEngine(t, &fakeLLM{err: errors.New("deadline exceeded")})
	require.NoError(t, ladder.SetLevel("chat", trust.Acquaintance))

	_, err := e.Check(context.Background(), "chat")
	assert.ErrorIs(t, err, ErrNoSuggestion)

	st, err := store.ProactiveStateNow()
	require.NoError(t, err)
	assert.Zero(t, st.DailyCount, "a failed model call must not spend the budget")
}

func TestModelDeclines(t *testing.T) {
	e, ladder, _ := newTestEngine(t, &fakeLLM{
		response: `{"should_suggest": false, "message": "", "category": "", "confidence": 0.9, "action": ""}`,
	})
	require.NoError(t, ladder.SetLevel("chat", trust.Acquaintance))

	_, err := e.Check(context.Background(), "chat")
	assert.ErrorIs(t, err, ErrNoSuggestion)
}

func TestRecordOutcomeFeedsTrust(t *testing.T) {
	e, ladder, _ := newTestEngine(t, &fakeLLM{response: suggestJSON(0.9)})
	require.NoError(t, ladder.SetLevel("chat", trust.Acquaintance))

	sg, err := e.Check(context.Background(), "chat")
	require.NoError(t, err)

	require.NoError(t, e.RecordOutcome(sg.ID, true))
	sum, err := ladder.SummaryFor("chat")
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Successes)

	got, err := e.store.GetSuggestion(sg.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.SuggestionAccepted, got.Status)
}

func TestRecordOutcomeDismissalIsOrdinaryFailure(t *testing.T) {
	e, ladder, _ := newTestEngine(t, &fakeLLM{response: suggestJSON(0.9)})
	require.NoError(t, ladder.SetLevel("chat", trust.Colleague))

	sg, err := e.Check(context.Background(), "chat")
	require.NoError(t, err)

	require.NoError(t, e.RecordOutcome(sg.ID, false))

	// One dismissal never demotes on its own.
	level, err := ladder.LevelFor("chat")
	require.NoError(t, err)
	assert.Equal(t, trust.Colleague, level)
}

func TestExpireStale(t *testing.T) {
	e, ladder, store := newTestEngine(t, &fakeLLM{response: suggestJSON(0.9)})
	require.NoError(t, ladder.SetLevel("chat", trust.Acquaintance))

	now := time.Now()
	e.now = func() time.Time { return now }

	sg, err := e.Check(context.Background(), "chat")
	require.NoError(t, err)

	// Nothing is stale yet.
	n, err := e.ExpireStale()
	require.NoError(t, err)
	assert.Zero(t, n)

	now = now.Add(5 * time.Hour)
	n, err = e.ExpireStale()
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetSuggestion(sg.ID)
	require.NoError(t, err)
	assert.Equal(t, memory.SuggestionExpired, got.Status)
}
