package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatguard/chatguard/action"
	"github.com/chatguard/chatguard/aggregator"
	"github.com/chatguard/chatguard/eventlog"
	"github.com/chatguard/chatguard/signal"
)

type mockNotifier struct {
	mu    sync.Mutex
	calls []*Decision
}

func (n *mockNotifier) SendDecision(ctx context.Context, msg Message, dec *Decision) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, dec)
	return nil
}

func TestCleanMessageEarnsRedemption(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := EngineTestFixture()

	// default score 50 is below the redemption ceiling, so a confidently
	// clean message earns points back
	dec := fix.Engine.ProcessMessage(ctx, Message{
		Scope: "guild1", UserID: "user1", Text: "hello friends",
	})
	require.NotNil(dec)
	assert.Equal(action.None, dec.Action)
	assert.Equal("none", dec.Source)
	require.NotNil(dec.Redemption)
	assert.True(dec.Redemption.Granted)
	assert.Equal(2.0, dec.Redemption.Points)

	rec, err := fix.Store.GetScore(ctx, "user1", "guild1")
	require.NoError(err)
	assert.Equal(52.0, rec.Score)
}

func TestMediumThreatAdjustsReputation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := EngineTestFixture()

	fix.Fast.Result = &signal.Result{
		Layer:          signal.LayerPattern,
		Classification: signal.CategorySuspicious,
		Confidence:     0.5,
	}

	// base 8*0.5*10 = 40, neutral reputation adds nothing: medium, warn
	dec := fix.Engine.ProcessMessage(ctx, Message{
		Scope: "guild1", UserID: "user1", Text: "dm me for free stuff",
	})
	assert.Equal(action.Warn, dec.Action)
	assert.Equal("threat", dec.Source)
	assert.Equal(aggregator.LevelMedium, dec.Threat.Level)

	rec, err := fix.Store.GetScore(ctx, "user1", "guild1")
	require.NoError(err)
	assert.Equal(45.0, rec.Score)

	// medium threats never touch the global ledger
	global, err := fix.Ledger.GlobalScore(ctx, "user1")
	require.NoError(err)
	assert.Equal(100.0, global)
}

// a user with prior toxicity history hits the policy ladder: the fifth
// violation inside the window escalates past the aggregator's recommendation
func TestPolicyLadderOverridesAggregator(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := EngineTestFixture()

	// user already at score 25 with four recent toxicity violations
	_, err := fix.Store.ApplyDelta(ctx, "user1", "guild1", -25, "history")
	require.NoError(err)
	now := time.Now()
	for i := 0; i < 4; i++ {
		require.NoError(fix.Events.Add(ctx, eventlog.ViolationEvent{
			UserID: "user1", PolicyID: "anti-toxicity", Category: signal.CategoryToxic,
			Scope: "guild1", Time: now.Add(-time.Duration(i+1) * time.Minute),
		}))
	}

	notifier := &mockNotifier{}
	fix.Engine.Notifier = notifier

	fix.Fast.Result = &signal.Result{
		Layer:          signal.LayerPattern,
		Classification: signal.CategoryToxic,
		Confidence:     0.95,
	}

	dec := fix.Engine.ProcessMessage(ctx, Message{
		Scope: "guild1", UserID: "user1", Text: "you are all worthless",
	})

	// severe short-circuit assessed critical; the 5th occurrence walks the
	// ladder to the one-hour timeout rung
	assert.Equal(aggregator.LevelCritical, dec.Threat.Level)
	require.NotNil(dec.Policy)
	assert.Equal(5, dec.Policy.ViolationCount)
	assert.Equal(action.Timeout, dec.Action)
	assert.Equal(time.Hour, dec.Duration)
	assert.Equal("policy", dec.Source)

	// critical: -15 reputation and 10 core penalty points
	rec, err := fix.Store.GetScore(ctx, "user1", "guild1")
	require.NoError(err)
	assert.Equal(10.0, rec.Score)
	global, err := fix.Ledger.GlobalScore(ctx, "user1")
	require.NoError(err)
	assert.Equal(90.0, global)

	require.Len(notifier.calls, 1)
	assert.Equal(action.Timeout, notifier.calls[0].Action)
}

func TestConfirmedScamPermanentZero(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	fix := EngineTestFixture()

	fix.Fast.Result = &signal.Result{
		Layer:          signal.LayerPattern,
		Classification: signal.CategoryScam,
		Confidence:     0.9,
	}

	dec := fix.Engine.ProcessMessage(ctx, Message{
		Scope: "guild1", UserID: "scammer", Text: "send 0.1 BTC to double it",
	})
	assert.Equal(action.Ban, dec.Action)
	assert.Equal("policy", dec.Source)

	rec, err := fix.Store.GetScore(ctx, "scammer", "guild1")
	require.NoError(err)
	assert.True(rec.PermanentZero)
	assert.Equal(0.0, rec.Score)

	// and no later clean streak can redeem them
	fix.Fast.Result = signal.CleanResult(signal.LayerPattern, 0.9)
	dec = fix.Engine.ProcessMessage(ctx, Message{
		Scope: "guild1", UserID: "scammer", Text: "sorry about that",
	})
	require.NotNil(dec.Redemption)
	assert.False(dec.Redemption.Granted)
	rec, err = fix.Store.GetScore(ctx, "scammer", "guild1")
	require.NoError(err)
	assert.Equal(0.0, rec.Score)
}

func TestPipelinePanicTakesNoAction(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := EngineTestFixture()

	// nil store panics mid-pipeline; the engine must still decide
	fix.Engine.Reputation = nil
	dec := fix.Engine.ProcessMessage(ctx, Message{
		Scope: "guild1", UserID: "user1", Text: "anything",
	})
	assert.Equal(action.None, dec.Action)
	assert.Equal("none", dec.Source)
	assert.Equal("processing unavailable", dec.Reason)
}

func TestClassifierOutageFailsOpen(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	fix := EngineTestFixture()

	fix.Fast.Err = context.DeadlineExceeded

	dec := fix.Engine.ProcessMessage(ctx, Message{
		Scope: "guild1", UserID: "user1", Text: "hello",
	})
	assert.Equal(action.None, dec.Action)
	assert.Equal(aggregator.LevelNone, dec.Threat.Level)
}
