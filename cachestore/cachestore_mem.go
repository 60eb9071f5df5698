package cachestore

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemCacheStore keeps one expirable LRU per view, created on first use. All
// views share the same per-view capacity; TTL defaults can be overridden per
// view before the view's first write.
type MemCacheStore struct {
	mu       sync.Mutex
	views    map[string]*expirable.LRU[string, string]
	capacity int

	defaultTTL time.Duration
	viewTTL    map[string]time.Duration
}

var _ CacheStore = (*MemCacheStore)(nil)

func NewMemCacheStore(capacity int, defaultTTL time.Duration) *MemCacheStore {
	return &MemCacheStore{
		views:      make(map[string]*expirable.LRU[string, string]),
		capacity:   capacity,
		defaultTTL: defaultTTL,
		viewTTL:    make(map[string]time.Duration),
	}
}

// SetViewTTL overrides the expiry for one view. Takes effect when the view
// is first written to; calling it after that is a no-op.
func (s *MemCacheStore) SetViewTTL(view string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewTTL[view] = ttl
}

func (s *MemCacheStore) viewData(view string) *expirable.LRU[string, string] {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.views[view]
	if !ok {
		ttl := s.defaultTTL
		if override, ok := s.viewTTL[view]; ok {
			ttl = override
		}
		data = expirable.NewLRU[string, string](s.capacity, nil, ttl)
		s.views[view] = data
	}
	return data
}

func (s *MemCacheStore) Get(ctx context.Context, view, key string) (string, bool, error) {
	val, ok := s.viewData(view).Get(key)
	return val, ok, nil
}

func (s *MemCacheStore) Set(ctx context.Context, view, key string, val string) error {
	s.viewData(view).Add(key, val)
	return nil
}

func (s *MemCacheStore) Purge(ctx context.Context, view, key string) error {
	s.viewData(view).Remove(key)
	return nil
}
