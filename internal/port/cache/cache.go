// Package cache defines the key-value cache port. The decision service keeps
// per-tenant policy thresholds behind it so classification does not hit the
// database on every action.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented cache with per-entry TTLs. Implementations may
// evict entries at any time; callers must treat a miss as authoritative.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
