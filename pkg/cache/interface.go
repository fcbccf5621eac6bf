package cache

import (
	"context"
	"time"
)

// Cache stores JSON-encoded values with a per-entry lifetime. Get reports a
// missing key with an error wrapping ErrCacheMiss.
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Close() error
}
