package eventlog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemEventLogBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	log := NewMemEventLog()

	c, err := log.CountSince(ctx, "guild1", "user1", "toxic", now.Add(-time.Hour))
	assert.NoError(err)
	assert.Equal(0, c)

	for i := 0; i < 3; i++ {
		assert.NoError(log.Add(ctx, ViolationEvent{
			UserID:   "user1",
			PolicyID: "anti-tox",
			Category: "toxic",
			Scope:    "guild1",
			Time:     now.Add(time.Duration(i) * time.Minute),
		}))
	}

	c, err = log.CountSince(ctx, "guild1", "user1", "toxic", now.Add(-time.Hour))
	assert.NoError(err)
	assert.Equal(3, c)

	// other category and other scope are isolated
	c, err = log.CountSince(ctx, "guild1", "user1", "spam", now.Add(-time.Hour))
	assert.NoError(err)
	assert.Equal(0, c)
	c, err = log.CountSince(ctx, "guild2", "user1", "toxic", now.Add(-time.Hour))
	assert.NoError(err)
	assert.Equal(0, c)
}

func TestMemEventLogWindowEdge(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	window := 10 * time.Minute

	log := NewMemEventLog()

	// exactly at the window edge: included
	assert.NoError(log.Add(ctx, ViolationEvent{
		UserID: "user1", PolicyID: "p", Category: "toxic", Scope: "g",
		Time: now.Add(-window),
	}))
	// one millisecond older: excluded
	assert.NoError(log.Add(ctx, ViolationEvent{
		UserID: "user1", PolicyID: "p", Category: "toxic", Scope: "g",
		Time: now.Add(-window - time.Millisecond),
	}))

	c, err := log.CountSince(ctx, "g", "user1", "toxic", now.Add(-window))
	assert.NoError(err)
	assert.Equal(1, c)
}

func TestMemEventLogCategories(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := time.Now()

	log := NewMemEventLog()
	ok, err := log.HasCategory(ctx, "user1", "scam")
	assert.NoError(err)
	assert.False(ok)

	assert.NoError(log.Add(ctx, ViolationEvent{
		UserID: "user1", PolicyID: "anti-scam", Category: "scam", Scope: "guild1", Time: now,
	}))

	// category lookups are cross-scope
	ok, err = log.HasCategory(ctx, "user1", "scam")
	assert.NoError(err)
	assert.True(ok)
	ok, err = log.HasCategory(ctx, "user2", "scam")
	assert.NoError(err)
	assert.False(ok)
}

func TestRedisEventMemberUnique(t *testing.T) {
	assert := assert.New(t)

	// two events with the same timestamp and policy must not collapse into
	// one sorted-set member
	ev := ViolationEvent{
		UserID: "user1", PolicyID: "anti-tox", Category: "toxic", Scope: "g",
		Time: time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC),
	}
	m1 := eventMember(ev)
	m2 := eventMember(ev)
	assert.NotEqual(m1, m2)
	assert.Contains(m1, "anti-tox")
}

func TestMemEventLogConcurrent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := time.Now()

	log := NewMemEventLog()

	var wg sync.WaitGroup
	add := func(user string, n int) {
		defer wg.Done()
		for i := 0; i < n; i++ {
			assert.NoError(log.Add(ctx, ViolationEvent{
				UserID: user, PolicyID: "p", Category: "spam", Scope: "g", Time: now,
			}))
		}
	}
	wg.Add(3)
	go add("user1", 10)
	go add("user1", 10)
	go add("user2", 5)
	wg.Wait()

	c, err := log.CountSince(ctx, "g", "user1", "spam", now.Add(-time.Minute))
	assert.NoError(err)
	assert.Equal(20, c)
	c, err = log.CountSince(ctx, "g", "user2", "spam", now.Add(-time.Minute))
	assert.NoError(err)
	assert.Equal(5, c)
}
