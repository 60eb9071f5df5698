package reputation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatguard/chatguard/eventlog"
	"github.com/chatguard/chatguard/signal"
)

func cleanSignals() []*signal.Result {
	return []*signal.Result{
		signal.CleanResult(signal.LayerPattern, 0.9),
		{
			Layer:          signal.LayerIntent,
			Classification: signal.CategoryClean,
			Confidence:     0.8,
			Intent:         &signal.IntentDetails{Manipulative: false},
		},
	}
}

func TestRedemptionGranted(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()
	events := eventlog.NewMemEventLog()

	_, err := s.ApplyDelta(ctx, "user1", "guild1", -5, "toxicity")
	require.NoError(t, err)

	res, err := CheckRedemption(ctx, s, events, "user1", "guild1", cleanSignals())
	assert.NoError(err)
	assert.True(res.Granted)
	// clean pattern (2) + clean manipulation check (1)
	assert.Equal(3.0, res.Points)
}

func TestRedemptionHelpfulTier(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()
	events := eventlog.NewMemEventLog()

	_, err := s.ApplyDelta(ctx, "user1", "guild1", -20, "spam")
	require.NoError(t, err)

	signals := []*signal.Result{
		{Layer: signal.LayerPattern, Classification: signal.CategoryHelpful, Confidence: 0.9},
	}
	res, err := CheckRedemption(ctx, s, events, "user1", "guild1", signals)
	assert.NoError(err)
	assert.True(res.Granted)
	assert.Equal(3.0, res.Points)
}

func TestRedemptionScamHistoryVeto(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()
	events := eventlog.NewMemEventLog()

	_, err := s.ApplyDelta(ctx, "user1", "guild1", -5, "toxicity")
	require.NoError(t, err)
	// scam violation in another community still vetoes here
	require.NoError(t, events.Add(ctx, eventlog.ViolationEvent{
		UserID: "user1", PolicyID: "anti-scam", Category: signal.CategoryScam,
		Scope: "guild2", Time: time.Now(),
	}))

	res, err := CheckRedemption(ctx, s, events, "user1", "guild1", cleanSignals())
	assert.NoError(err)
	assert.False(res.Granted)
	assert.Equal(0.0, res.Points)
	assert.Contains(res.Reason, "scam")
}

func TestRedemptionCeilingExclusive(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()
	events := eventlog.NewMemEventLog()

	// exactly at the ceiling: redemption disabled
	_, err := s.ApplyDelta(ctx, "user1", "guild1", 10, "setup")
	require.NoError(t, err)
	res, err := CheckRedemption(ctx, s, events, "user1", "guild1", cleanSignals())
	assert.NoError(err)
	assert.False(res.Granted)
	assert.Contains(res.Reason, "ceiling")

	// just below: enabled
	_, err = s.ApplyDelta(ctx, "user1", "guild1", -0.5, "setup")
	require.NoError(t, err)
	res, err = CheckRedemption(ctx, s, events, "user1", "guild1", cleanSignals())
	assert.NoError(err)
	assert.True(res.Granted)
}

func TestRedemptionPermanentZero(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	s := NewMemStore()
	events := eventlog.NewMemEventLog()

	require.NoError(t, s.SetPermanentZero(ctx, "user1", "guild1", "confirmed"))
	res, err := CheckRedemption(ctx, s, events, "user1", "guild1", cleanSignals())
	assert.NoError(err)
	assert.False(res.Granted)
	assert.Equal(0.0, res.Points)
}
