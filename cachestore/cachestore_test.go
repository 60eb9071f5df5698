package cachestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemCacheStoreBasics(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	s := NewMemCacheStore(100, time.Hour)

	// a miss is reported as absent, not as an empty value
	val, ok, err := s.Get(ctx, "reputation", "guild1/user1")
	require.NoError(err)
	assert.False(ok)
	assert.Equal("", val)

	require.NoError(s.Set(ctx, "reputation", "guild1/user1", `{"score":50}`))
	val, ok, err = s.Get(ctx, "reputation", "guild1/user1")
	require.NoError(err)
	assert.True(ok)
	assert.Equal(`{"score":50}`, val)

	// the empty string is a legitimate cached value
	require.NoError(s.Set(ctx, "reputation", "guild1/user2", ""))
	val, ok, err = s.Get(ctx, "reputation", "guild1/user2")
	require.NoError(err)
	assert.True(ok)
	assert.Equal("", val)

	require.NoError(s.Purge(ctx, "reputation", "guild1/user1"))
	_, ok, err = s.Get(ctx, "reputation", "guild1/user1")
	require.NoError(err)
	assert.False(ok)
}

func TestMemCacheStoreViewIsolation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	s := NewMemCacheStore(100, time.Hour)
	require.NoError(s.Set(ctx, "reputation", "k", "a"))
	require.NoError(s.Set(ctx, "profiles", "k", "b"))

	val, ok, err := s.Get(ctx, "reputation", "k")
	require.NoError(err)
	assert.True(ok)
	assert.Equal("a", val)

	// purging one view's key leaves the same key in other views alone
	require.NoError(s.Purge(ctx, "reputation", "k"))
	_, ok, err = s.Get(ctx, "reputation", "k")
	require.NoError(err)
	assert.False(ok)
	val, ok, err = s.Get(ctx, "profiles", "k")
	require.NoError(err)
	assert.True(ok)
	assert.Equal("b", val)
}

func TestMemCacheStoreViewTTL(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()

	s := NewMemCacheStore(100, time.Hour)
	s.SetViewTTL("ephemeral", 20*time.Millisecond)

	require.NoError(s.Set(ctx, "ephemeral", "k", "v"))
	require.NoError(s.Set(ctx, "durable", "k", "v"))

	time.Sleep(60 * time.Millisecond)

	_, ok, err := s.Get(ctx, "ephemeral", "k")
	require.NoError(err)
	assert.False(ok)

	// the default-TTL view is unaffected by the override
	_, ok, err = s.Get(ctx, "durable", "k")
	require.NoError(err)
	assert.True(ok)
}
