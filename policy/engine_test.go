package policy

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatguard/chatguard/action"
	"github.com/chatguard/chatguard/eventlog"
	"github.com/chatguard/chatguard/signal"
)

func testEngine(t *testing.T) (*Engine, *eventlog.MemEventLog) {
	t.Helper()
	events := eventlog.NewMemEventLog()
	store := NewMemDefinitionStore()
	require.NoError(t, SeedDefaults(context.Background(), store, "guild1"))
	eng := NewEngine(slog.Default(), store, events)
	return eng, events
}

// walks the anti-toxicity ladder: warn at 3, timeout at 5, ban at 10
func TestEscalationLadder(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, _ := testEngine(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	check := func(i int) *Decision {
		d, err := eng.CheckPolicies(ctx, Check{
			Scope:    "guild1",
			UserID:   "user1",
			Category: signal.CategoryToxic,
			Time:     now.Add(time.Duration(i) * time.Second),
		})
		require.NoError(err)
		return d
	}

	// first two checks are below the threshold: recorded, but no decision
	assert.Nil(check(1))
	assert.Nil(check(2))

	d := check(3)
	require.NotNil(d)
	assert.Equal(action.Warn, d.Action.Type)
	assert.Equal(3, d.ViolationCount)
	assert.Equal("anti-toxicity", d.Policy.ID)

	d = check(4)
	require.NotNil(d)
	assert.Equal(action.Warn, d.Action.Type)
	assert.Equal(4, d.ViolationCount)

	d = check(5)
	require.NotNil(d)
	assert.Equal(action.Timeout, d.Action.Type)
	assert.Equal(time.Hour, d.Action.Duration)
	assert.Equal(5, d.ViolationCount)

	for i := 6; i <= 9; i++ {
		d = check(i)
		require.NotNil(d)
		assert.Equal(action.Timeout, d.Action.Type, "count %d stays on the timeout rung", i)
	}

	d = check(10)
	require.NotNil(d)
	assert.Equal(action.Ban, d.Action.Type)
	assert.Equal(10, d.ViolationCount)
}

func TestWindowExpiry(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, events := testEngine(t)

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	// two old violations, just outside the 10 minute anti-toxicity window
	for i := 0; i < 2; i++ {
		require.NoError(events.Add(ctx, eventlog.ViolationEvent{
			UserID: "user1", PolicyID: "anti-toxicity", Category: signal.CategoryToxic,
			Scope: "guild1", Time: now.Add(-11 * time.Minute),
		}))
	}

	// current check alone does not reach 3 occurrences
	d, err := eng.CheckPolicies(ctx, Check{
		Scope: "guild1", UserID: "user1", Category: signal.CategoryToxic, Time: now,
	})
	require.NoError(err)
	assert.Nil(d)

	// the same history inside the window does trigger
	for i := 0; i < 2; i++ {
		require.NoError(events.Add(ctx, eventlog.ViolationEvent{
			UserID: "user2", PolicyID: "anti-toxicity", Category: signal.CategoryToxic,
			Scope: "guild1", Time: now.Add(-9 * time.Minute),
		}))
	}
	d, err = eng.CheckPolicies(ctx, Check{
		Scope: "guild1", UserID: "user2", Category: signal.CategoryToxic, Time: now,
	})
	require.NoError(err)
	require.NotNil(d)
	assert.Equal(action.Warn, d.Action.Type)
}

func TestScamZeroTolerance(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, _ := testEngine(t)

	d, err := eng.CheckPolicies(ctx, Check{
		Scope: "guild1", UserID: "user1", Category: signal.CategoryScam,
		Time: time.Now(),
	})
	require.NoError(err)
	require.NotNil(d)
	assert.Equal(action.Ban, d.Action.Type)
	assert.Equal(1, d.ViolationCount)
	assert.Equal("anti-scam", d.Policy.ID)
}

// overlapping policies on the same category record one event per check and
// return the most severe resolved action
func TestOverlappingPoliciesSingleEvent(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	events := eventlog.NewMemEventLog()
	store := NewMemDefinitionStore()
	require.NoError(store.Create(ctx, &Definition{
		ID: "spam-soft", Scope: "g", Name: "Soft",
		Condition:     Condition{Category: signal.CategorySpam, Occurrences: 1, TimeWindow: time.Hour},
		InitialAction: Action{Type: action.Warn, Reason: "spam"},
		Enabled:       true,
	}))
	require.NoError(store.Create(ctx, &Definition{
		ID: "spam-hard", Scope: "g", Name: "Hard",
		Condition:     Condition{Category: signal.CategorySpam, Occurrences: 1, TimeWindow: time.Hour},
		InitialAction: Action{Type: action.Timeout, Duration: 10 * time.Minute, Reason: "spam"},
		Enabled:       true,
	}))
	eng := NewEngine(slog.Default(), store, events)

	now := time.Now()
	d, err := eng.CheckPolicies(ctx, Check{
		Scope: "g", UserID: "user1", Category: signal.CategorySpam, Time: now,
	})
	require.NoError(err)
	require.NotNil(d)
	assert.Equal(action.Timeout, d.Action.Type)

	c, err := events.CountSince(ctx, "g", "user1", signal.CategorySpam, now.Add(-time.Minute))
	require.NoError(err)
	assert.Equal(1, c)

	// the shared stream advances both ladders together
	d, err = eng.CheckPolicies(ctx, Check{
		Scope: "g", UserID: "user1", Category: signal.CategorySpam, Time: now.Add(time.Second),
	})
	require.NoError(err)
	require.NotNil(d)
	assert.Equal(2, d.ViolationCount)
}

func TestDisabledAndChannelFilters(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	events := eventlog.NewMemEventLog()
	store := NewMemDefinitionStore()
	require.NoError(store.Create(ctx, &Definition{
		ID: "disabled", Scope: "g", Name: "Disabled",
		Condition:     Condition{Category: signal.CategoryToxic, Occurrences: 1, TimeWindow: time.Hour},
		InitialAction: Action{Type: action.Ban},
		Enabled:       false,
	}))
	require.NoError(store.Create(ctx, &Definition{
		ID: "chan-only", Scope: "g", Name: "ChannelOnly",
		Condition: Condition{
			Category: signal.CategoryToxic, Occurrences: 1, TimeWindow: time.Hour,
			Channels: []string{"general"},
		},
		InitialAction: Action{Type: action.Warn, Reason: "toxic"},
		Enabled:       true,
	}))
	eng := NewEngine(slog.Default(), store, events)

	// disabled policy never fires, channel filter excludes other channels
	d, err := eng.CheckPolicies(ctx, Check{
		Scope: "g", ChannelID: "offtopic", UserID: "user1",
		Category: signal.CategoryToxic, Time: time.Now(),
	})
	require.NoError(err)
	assert.Nil(d)

	d, err = eng.CheckPolicies(ctx, Check{
		Scope: "g", ChannelID: "general", UserID: "user1",
		Category: signal.CategoryToxic, Time: time.Now(),
	})
	require.NoError(err)
	require.NotNil(d)
	assert.Equal(action.Warn, d.Action.Type)
}

func TestNoMatchingCategory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	eng, events := testEngine(t)

	now := time.Now()
	d, err := eng.CheckPolicies(ctx, Check{
		Scope: "guild1", UserID: "user1", Category: signal.CategoryClean, Time: now,
	})
	require.NoError(err)
	assert.Nil(d)

	c, err := events.CountSince(ctx, "guild1", "user1", signal.CategoryClean, now.Add(-time.Minute))
	require.NoError(err)
	assert.Equal(0, c)
}

func TestResolveAction(t *testing.T) {
	assert := assert.New(t)
	def := DefaultDefinitions("g")[0] // anti-toxicity

	assert.Equal(action.Warn, def.ResolveAction(3).Type)
	assert.Equal(action.Warn, def.ResolveAction(4).Type)
	assert.Equal(action.Timeout, def.ResolveAction(5).Type)
	assert.Equal(action.Timeout, def.ResolveAction(9).Type)
	assert.Equal(action.Ban, def.ResolveAction(10).Type)
	assert.Equal(action.Ban, def.ResolveAction(50).Type)
}

func TestDefinitionStoreCRUD(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	store := NewMemDefinitionStore()

	def := &Definition{
		ID: "p1", Scope: "g", Name: "P1",
		Condition:     Condition{Category: signal.CategorySpam, Occurrences: 2, TimeWindow: time.Minute},
		InitialAction: Action{Type: action.Delete},
		Enabled:       true,
	}
	require.NoError(store.Create(ctx, def))
	assert.Error(store.Create(ctx, def))

	got, err := store.Get(ctx, "g", "p1")
	require.NoError(err)
	assert.Equal("P1", got.Name)

	got.Name = "P1 renamed"
	require.NoError(store.Update(ctx, got))
	got, err = store.Get(ctx, "g", "p1")
	require.NoError(err)
	assert.Equal("P1 renamed", got.Name)

	defs, err := store.List(ctx, "g")
	require.NoError(err)
	assert.Len(defs, 1)

	require.NoError(store.Delete(ctx, "g", "p1"))
	_, err = store.Get(ctx, "g", "p1")
	assert.ErrorIs(err, ErrNotFound)
	assert.ErrorIs(store.Delete(ctx, "g", "p1"), ErrNotFound)
}
