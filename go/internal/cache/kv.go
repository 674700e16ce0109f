package cache

import (
	"context"
	"time"
)

// KV is the generic key-value cache the timer service consumes.
// Implementations must be safe for concurrent use.
type KV interface {
	// Get returns the value for key. The boolean is false when the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
