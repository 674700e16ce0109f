package cache

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryKV is an in-process KV with per-key expiry.
// Expired entries are dropped lazily on read and by Sweep.
type MemoryKV struct {
	entries *xsync.MapOf[string, memoryEntry]
	clock   clockwork.Clock
}

// NewMemoryKV creates an empty in-memory KV.
func NewMemoryKV(clock clockwork.Clock) *MemoryKV {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryKV{
		entries: xsync.NewMapOf[string, memoryEntry](),
		clock:   clock,
	}
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, bool, error) {
	entry, ok := m.entries.Load(key)
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && !m.clock.Now().Before(entry.expiresAt) {
		m.dropIfUnchanged(key, entry.expiresAt)
		return nil, false, nil
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, true, nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	entry := memoryEntry{value: stored}
	if ttl > 0 {
		entry.expiresAt = m.clock.Now().Add(ttl)
	}
	m.entries.Store(key, entry)
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}

// Sweep removes every expired entry and returns how many were removed.
func (m *MemoryKV) Sweep() int {
	now := m.clock.Now()
	removed := 0
	m.entries.Range(func(key string, entry memoryEntry) bool {
		if entry.expiresAt.IsZero() || now.Before(entry.expiresAt) {
			return true
		}
		if m.dropIfUnchanged(key, entry.expiresAt) {
			removed++
		}
		return true
	})
	return removed
}

// dropIfUnchanged deletes key only while it still carries the expiry the caller
// observed. A concurrent Set in between keeps the refreshed entry.
func (m *MemoryKV) dropIfUnchanged(key string, seen time.Time) bool {
	dropped := false
	m.entries.Compute(key, func(old memoryEntry, loaded bool) (memoryEntry, bool) {
		dropped = loaded && old.expiresAt.Equal(seen)
		return old, !loaded || dropped
	})
	return dropped
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryKV) Len() int {
	return m.entries.Size()
}
