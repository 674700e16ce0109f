package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countdown/go/internal/models"
)

// DefaultStateTTL is how long a cached state stays servable without a write.
const DefaultStateTTL = 30 * time.Second

// Entry is a cached timer state with its validator.
type Entry struct {
	State     models.TimerState `json:"state"`
	ETag      string            `json:"etag"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// ReadCache stores (state, etag) pairs per group code on top of a KV.
type ReadCache struct {
	kv    KV
	ttl   time.Duration
	clock clockwork.Clock
}

// NewReadCache creates a read cache with the given entry TTL.
func NewReadCache(kv KV, ttl time.Duration, clock clockwork.Clock) *ReadCache {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ReadCache{kv: kv, ttl: ttl, clock: clock}
}

// StateKey returns the KV key for a group's cached state.
func StateKey(code string) string {
	return "timer.state." + code
}

// Get returns the cached entry for code, if present and unexpired.
func (c *ReadCache) Get(ctx context.Context, code string) (*Entry, bool, error) {
	data, ok, err := c.kv.Get(ctx, StateKey(code))
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached state: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached state: %w", err)
	}
	if !c.clock.Now().Before(entry.ExpiresAt) {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Put replaces the cached entry for code.
func (c *ReadCache) Put(ctx context.Context, code string, state models.TimerState, etag string) error {
	entry := Entry{
		State:     state,
		ETag:      etag,
		ExpiresAt: c.clock.Now().Add(c.ttl),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cached state: %w", err)
	}
	if err := c.kv.Set(ctx, StateKey(code), data, c.ttl); err != nil {
		return fmt.Errorf("failed to write cached state: %w", err)
	}
	return nil
}

// Invalidate drops the cached entry for code.
func (c *ReadCache) Invalidate(ctx context.Context, code string) error {
	if err := c.kv.Delete(ctx, StateKey(code)); err != nil {
		return fmt.Errorf("failed to invalidate cached state: %w", err)
	}
	return nil
}
