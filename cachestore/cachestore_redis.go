package cachestore

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
)

// RedisCacheStore backs the view cache with redis plus a small in-process
// TinyLFU layer for hot keys. Key layout is "chatguard/views/<view>/<key>";
// per-view TTL overrides apply at write time.
type RedisCacheStore struct {
	Data *cache.Cache

	mu         sync.RWMutex
	defaultTTL time.Duration
	viewTTL    map[string]time.Duration
}

var _ CacheStore = (*RedisCacheStore)(nil)

func NewRedisCacheStore(redisURL string, defaultTTL time.Duration) (*RedisCacheStore, error) {
	ctx := context.Background()
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opt)
	// check redis connection
	_, err = rdb.Ping(ctx).Result()
	if err != nil {
		return nil, err
	}
	data := cache.New(&cache.Options{
		Redis:      rdb,
		LocalCache: cache.NewTinyLFU(10_000, defaultTTL),
	})
	return &RedisCacheStore{
		Data:       data,
		defaultTTL: defaultTTL,
		viewTTL:    make(map[string]time.Duration),
	}, nil
}

// SetViewTTL overrides the expiry for one view's writes.
func (s *RedisCacheStore) SetViewTTL(view string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewTTL[view] = ttl
}

func (s *RedisCacheStore) ttlFor(view string) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if override, ok := s.viewTTL[view]; ok {
		return override
	}
	return s.defaultTTL
}

func redisViewKey(view, key string) string {
	return "chatguard/views/" + view + "/" + key
}

func (s *RedisCacheStore) Get(ctx context.Context, view, key string) (string, bool, error) {
	var val string
	err := s.Data.Get(ctx, redisViewKey(view, key), &val)
	if err == cache.ErrCacheMiss {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisCacheStore) Set(ctx context.Context, view, key string, val string) error {
	return s.Data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   redisViewKey(view, key),
		Value: val,
		TTL:   s.ttlFor(view),
	})
}

func (s *RedisCacheStore) Purge(ctx context.Context, view, key string) error {
	err := s.Data.Delete(ctx, redisViewKey(view, key))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}
