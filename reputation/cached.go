package reputation

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/chatguard/chatguard/cachestore"
)

var cacheName = "reputation"

// CachedStore layers a TTL cache over any Store. Reads are served from the
// cache when possible; every write path purges the cached view before
// delegating, so a stale score is bounded by the cache TTL only for
// out-of-process writers.
type CachedStore struct {
	Inner  Store
	Cache  cachestore.CacheStore
	Logger *slog.Logger
}

var _ Store = (*CachedStore)(nil)

func NewCachedStore(inner Store, cache cachestore.CacheStore, logger *slog.Logger) *CachedStore {
	if logger == nil {
		logger = slog.Default().With("system", "reputation")
	}
	return &CachedStore{Inner: inner, Cache: cache, Logger: logger}
}

func (s *CachedStore) GetScore(ctx context.Context, user, scope string) (*Record, error) {
	key := recordKey(user, scope)
	if raw, ok, err := s.Cache.Get(ctx, cacheName, key); err == nil && ok {
		var rec Record
		if err := json.Unmarshal([]byte(raw), &rec); err == nil {
			cacheHitCount.Inc()
			return &rec, nil
		}
		// unparseable entry, fall through to the store
		_ = s.Cache.Purge(ctx, cacheName, key)
	}
	cacheMissCount.Inc()
	rec, err := s.Inner.GetScore(ctx, user, scope)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, rec)
	return rec, nil
}

func (s *CachedStore) fill(ctx context.Context, key string, rec *Record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.Cache.Set(ctx, cacheName, key, string(raw)); err != nil {
		s.Logger.Warn("reputation cache set failed", "err", err)
	}
}

func (s *CachedStore) ApplyDelta(ctx context.Context, user, scope string, delta float64, reason string) (*Record, error) {
	key := recordKey(user, scope)
	if err := s.Cache.Purge(ctx, cacheName, key); err != nil {
		s.Logger.Warn("reputation cache purge failed", "err", err)
	}
	rec, err := s.Inner.ApplyDelta(ctx, user, scope, delta, reason)
	if err != nil {
		return nil, err
	}
	s.fill(ctx, key, rec)
	return rec, nil
}

func (s *CachedStore) SetPermanentZero(ctx context.Context, user, scope, reason string) error {
	if err := s.Cache.Purge(ctx, cacheName, recordKey(user, scope)); err != nil {
		s.Logger.Warn("reputation cache purge failed", "err", err)
	}
	return s.Inner.SetPermanentZero(ctx, user, scope, reason)
}

func (s *CachedStore) ForEach(ctx context.Context, fn func(rec *Record) error) error {
	return s.Inner.ForEach(ctx, fn)
}

func (s *CachedStore) Subscribe(fn ChangeFunc) {
	s.Inner.Subscribe(fn)
}
