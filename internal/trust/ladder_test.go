package trust

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aide/internal/config"
	"aide/internal/memory"
)

func newTestLadder(t *testing.T) *Ladder {
	t.Helper()
	store, err := memory.Open(config.MemoryConfig{
		Path: filepath.Join(t.TempDir(), "trust.db"),
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewLadder(store, config.DefaultTrustConfig(), zap.NewNop())
}

func recordSuccesses(t *testing.T, l *Ladder, domain string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, l.RecordSuccess(domain))
	}
}

func TestNewDomainStartsAsStranger(t *testing.T) {
	l := newTestLadder(t)

	level, err := l.LevelFor("email")
	require.NoError(t, err)
	assert.Equal(t, Stranger, level)

	perm, err := l.CanSuggest("email")
	require.NoError(t, err)
	assert.False(t, perm.Allowed)
	assert.Contains(t, perm.Reason, "acquaintance")
}

func TestPromotionIsSingleStep(t *testing.T) {
	l := newTestLadder(t)

	// Each success can raise the level by at most one, no matter how
	// far the counters are past a higher threshold.
	prev := Stranger
	for i := 0; i < 40; i++ {
		require.NoError(t, l.RecordSuccess("chat"))
		level, err := l.LevelFor("chat")
		require.NoError(t, err)
		assert.LessOrEqual(t, int(level), int(prev)+1, "success %d jumped more than one level", i+1)
		assert.GreaterOrEqual(t, int(level), int(prev), "success must never lower the level")
		prev = level
	}
	assert.Equal(t, Partner, prev, "40 clean successes should reach partner")
}

func TestPromotionRequiresMomentum(t *testing.T) {
	l := newTestLadder(t)

	recordSuccesses(t, l, "email", 4)
	require.NoError(t, l.RecordFailure("email", false))

	// Counters now clear the level-1 bar (5 successes after one more,
	// 1 failure, accuracy 0.83) but the streak restarts at the failure.
	require.NoError(t, l.RecordSuccess("email"))
	level, err := l.LevelFor("email")
	require.NoError(t, err)
	assert.Equal(t, Stranger, level, "promotion without momentum")

	recordSuccesses(t, l, "email", 2)
	level, err = l.LevelFor("email")
	require.NoError(t, err)
	assert.Equal(t, Acquaintance, level, "three consecutive successes restore momentum")
}

func TestMajorFailureDemotesImmediately(t *testing.T) {
	l := newTestLadder(t)

	require.NoError(t, l.SetLevel("calendar", Colleague))
	require.NoError(t, l.RecordFailure("calendar", true))

	level, err := l.LevelFor("calendar")
	require.NoError(t, err)
	assert.Equal(t, Acquaintance, level, "major failure drops exactly one level")
}

func TestConsecutiveFailuresDemoteOnce(t *testing.T) {
	l := newTestLadder(t)

	recordSuccesses(t, l, "email", 20)
	require.NoError(t, l.SetLevel("email", Partner))

	// Two failures are tolerated at a healthy accuracy.
	require.NoError(t, l.RecordFailure("email", false))
	require.NoError(t, l.RecordFailure("email", false))
	level, err := l.LevelFor("email")
	require.NoError(t, err)
	assert.Equal(t, Partner, level)

	// The third completes the streak and drops one level; the streak
	// resets so the next failure does not cascade.
	require.NoError(t, l.RecordFailure("email", false))
	level, err = l.LevelFor("email")
	require.NoError(t, err)
	assert.Equal(t, Colleague, level)

	require.NoError(t, l.RecordFailure("email", false))
	level, err = l.LevelFor("email")
	require.NoError(t, err)
	assert.Equal(t, Colleague, level, "reset streak must not cascade demotions")
}

func TestDemotionStopsAtStranger(t *testing.T) {
	l := newTestLadder(t)

	for i := 0; i < 6; i++ {
		require.NoError(t, l.RecordFailure("risky", i%2 == 0))
	}
	level, err := l.LevelFor("risky")
	require.NoError(t, err)
	assert.Equal(t, Stranger, level)
}

func TestSetLevelOverride(t *testing.T) {
	l := newTestLadder(t)

	require.NoError(t, l.SetLevel("email", Operator))
	perm, err := l.CanOperate("email")
	require.NoError(t, err)
	assert.True(t, perm.Allowed)

	assert.Error(t, l.SetLevel("email", Level(7)))
	assert.Error(t, l.SetLevel("email", Level(-1)))
}

func TestCapabilityGates(t *testing.T) {
	l := newTestLadder(t)
	require.NoError(t, l.SetLevel("email", Colleague))

	for _, tc := range []struct {
		name    string
		check   func(string) (Permission, error)
		allowed bool
	}{
		{"suggest", l.CanSuggest, true},
		{"draft", l.CanDraft, true},
		{"act", l.CanAct, false},
		{"operate", l.CanOperate, false},
	} {
		perm, err := tc.check("email")
		require.NoError(t, err, tc.name)
		assert.Equal(t, tc.allowed, perm.Allowed, tc.name)
	}
}

func TestEarnedAutonomyEndToEnd(t *testing.T) {
	l := newTestLadder(t)

	recordSuccesses(t, l, "chat", 20)

	level, err := l.LevelFor("chat")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, int(level), int(Acquaintance), "sustained success must earn suggestion rights")

	perm, err := l.CanSuggest("chat")
	require.NoError(t, err)
	assert.True(t, perm.Allowed)

	perm, err = l.CanOperate("chat")
	require.NoError(t, err)
	assert.False(t, perm.Allowed, "20 successes is far from operator")

	sum, err := l.SummaryFor("chat")
	require.NoError(t, err)
	assert.Equal(t, 20, sum.Successes)
	assert.InDelta(t, 1.0, sum.Accuracy, 0.001)
	assert.Greater(t, sum.SuccessesToNext, 0)
}
