package cachestore

import (
	"context"
)

// CacheStore is a TTL'd view cache. Values are grouped into named views
// (eg "reputation") so each view can carry its own expiry and be reasoned
// about independently.
type CacheStore interface {
	// Get returns the cached value for (view, key) and whether an entry was
	// present. An expired or missing entry is not an error.
	Get(ctx context.Context, view, key string) (string, bool, error)
	Set(ctx context.Context, view, key string, val string) error
	Purge(ctx context.Context, view, key string) error
}
