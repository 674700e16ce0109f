package syncagent

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElector_SingleHolder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	storage := NewMemoryStorage()
	a := newElector(storage, "ABC234", "tab-a", 6*time.Second, clock)
	b := newElector(storage, "ABC234", "tab-b", 6*time.Second, clock)

	assert.True(t, a.tryAcquire())
	assert.False(t, b.tryAcquire())

	lease, ok := a.current()
	require.True(t, ok)
	assert.Equal(t, "tab-a", lease.TabID)
	assert.True(t, lease.ExpiresAt.Equal(clock.Now().Add(6*time.Second)))
}

func TestElector_RenewExtendsLease(t *testing.T) {
	clock := clockwork.NewFakeClock()
	storage := NewMemoryStorage()
	a := newElector(storage, "ABC234", "tab-a", 6*time.Second, clock)
	b := newElector(storage, "ABC234", "tab-b", 6*time.Second, clock)

	require.True(t, a.tryAcquire())
	for i := 0; i < 5; i++ {
		clock.Advance(2 * time.Second)
		require.True(t, a.tryAcquire())
		assert.False(t, b.tryAcquire())
	}
}

func TestElector_TakeoverAfterExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	storage := NewMemoryStorage()
	a := newElector(storage, "ABC234", "tab-a", 6*time.Second, clock)
	b := newElector(storage, "ABC234", "tab-b", 6*time.Second, clock)

	require.True(t, a.tryAcquire())
	clock.Advance(5 * time.Second)
	assert.False(t, b.tryAcquire())

	clock.Advance(time.Second)
	assert.True(t, b.tryAcquire())
	assert.False(t, a.tryAcquire(), "a stale leader must not steal back a live lease")
}

func TestElector_Release(t *testing.T) {
	clock := clockwork.NewFakeClock()
	storage := NewMemoryStorage()
	a := newElector(storage, "ABC234", "tab-a", 6*time.Second, clock)
	b := newElector(storage, "ABC234", "tab-b", 6*time.Second, clock)

	require.True(t, a.tryAcquire())
	b.release()
	_, ok := storage.Get(LeaseKey("ABC234"))
	assert.True(t, ok, "only the holder can release")

	a.release()
	_, ok = storage.Get(LeaseKey("ABC234"))
	assert.False(t, ok)
	assert.True(t, b.tryAcquire())
}

func TestElector_UnreadableLeaseIsReplaced(t *testing.T) {
	clock := clockwork.NewFakeClock()
	storage := NewMemoryStorage()
	storage.Set(LeaseKey("ABC234"), []byte("not json"))

	a := newElector(storage, "ABC234", "tab-a", 6*time.Second, clock)
	assert.True(t, a.tryAcquire())
}

func TestElector_LeasesAreScopedByCode(t *testing.T) {
	clock := clockwork.NewFakeClock()
	storage := NewMemoryStorage()

	assert.True(t, newElector(storage, "ABC234", "tab-a", time.Second, clock).tryAcquire())
	assert.True(t, newElector(storage, "XYZ789", "tab-b", time.Second, clock).tryAcquire())
}
