package syncagent

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLeaseTTL      = 6 * time.Second
	DefaultRenewInterval = 2 * time.Second
)

// Lease is the leadership record a tab keeps alive in shared storage
type Lease struct {
	TabID     string    `json:"tabId"`
	Nonce     string    `json:"nonce"`
	ExpiresAt time.Time `json:"expiresAt"`
	RenewedAt time.Time `json:"renewedAt"`
}

// LeaseKey returns the storage key holding the lease for a group
func LeaseKey(code string) string { return "timer-leader:" + code }

// elector runs the optimistic lease protocol for one tab
type elector struct {
	storage Storage
	key     string
	tabID   string
	ttl     time.Duration
	clock   clockwork.Clock
}

func newElector(storage Storage, code, tabID string, ttl time.Duration, clock clockwork.Clock) *elector {
	return &elector{
		storage: storage,
		key:     LeaseKey(code),
		tabID:   tabID,
		ttl:     ttl,
		clock:   clock,
	}
}

// current returns the stored lease, if any and decodable
func (e *elector) current() (*Lease, bool) {
	data, ok := e.storage.Get(e.key)
	if !ok {
		return nil, false
	}
	var lease Lease
	if err := json.Unmarshal(data, &lease); err != nil {
		log.Warn().Err(err).Str("key", e.key).Msg("discarding unreadable lease")
		return nil, false
	}
	return &lease, true
}

// tryAcquire takes or renews the lease. It writes only when the lease is absent,
// expired or already ours, then reads back to check no other tab overwrote it.
func (e *elector) tryAcquire() bool {
	now := e.clock.Now()
	if lease, ok := e.current(); ok && lease.TabID != e.tabID && now.Before(lease.ExpiresAt) {
		return false
	}

	nonce := uuid.NewString()
	data, err := json.Marshal(Lease{
		TabID:     e.tabID,
		Nonce:     nonce,
		ExpiresAt: now.Add(e.ttl),
		RenewedAt: now,
	})
	if err != nil {
		return false
	}
	e.storage.Set(e.key, data)

	confirmed, ok := e.current()
	return ok && confirmed.TabID == e.tabID && confirmed.Nonce == nonce
}

// release drops the lease if this tab still holds it
func (e *elector) release() {
	if lease, ok := e.current(); ok && lease.TabID == e.tabID {
		e.storage.Delete(e.key)
	}
}
