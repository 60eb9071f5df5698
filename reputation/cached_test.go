package reputation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chatguard/chatguard/cachestore"
)

func TestCachedStoreReadThrough(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	inner := NewMemStore()
	cache := cachestore.NewMemCacheStore(100, time.Hour)
	s := NewCachedStore(inner, cache, slog.Default())

	rec, err := s.GetScore(ctx, "user1", "guild1")
	assert.NoError(err)
	assert.Equal(50.0, rec.Score)

	// second read is served from cache and still correct
	rec, err = s.GetScore(ctx, "user1", "guild1")
	assert.NoError(err)
	assert.Equal(50.0, rec.Score)
}

func TestCachedStoreInvalidatesOnWrite(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	inner := NewMemStore()
	cache := cachestore.NewMemCacheStore(100, time.Hour)
	s := NewCachedStore(inner, cache, slog.Default())

	// warm the cache
	_, err := s.GetScore(ctx, "user1", "guild1")
	require.NoError(t, err)

	_, err = s.ApplyDelta(ctx, "user1", "guild1", -10, "toxicity")
	require.NoError(t, err)

	rec, err := s.GetScore(ctx, "user1", "guild1")
	assert.NoError(err)
	assert.Equal(40.0, rec.Score)

	require.NoError(t, s.SetPermanentZero(ctx, "user1", "guild1", "confirmed"))
	rec, err = s.GetScore(ctx, "user1", "guild1")
	assert.NoError(err)
	assert.Equal(0.0, rec.Score)
	assert.True(rec.PermanentZero)
}
