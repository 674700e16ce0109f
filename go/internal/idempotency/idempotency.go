package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countdown/go/internal/cache"
	"github.com/rs/zerolog/log"
)

// DefaultWindow is how long a stored response can be replayed.
const DefaultWindow = 15 * time.Second

// Key identifies one logical mutation attempt.
type Key struct {
	Code    string
	ActorID string
	Token   string
}

// Enabled reports whether the client supplied a token. Without one no dedup is attempted.
func (k Key) Enabled() bool {
	return k.Token != ""
}

// String returns the KV key. The tuple is hashed so arbitrary tokens stay within the KV key alphabet.
func (k Key) String() string {
	sum := sha256.Sum256([]byte(k.Code + "\x00" + k.ActorID + "\x00" + k.Token))
	return "idem." + hex.EncodeToString(sum[:])
}

// Response is the stored result of a mutation, replayed verbatim.
type Response struct {
	Status int    `json:"status"`
	ETag   string `json:"etag"`
	Body   []byte `json:"body"`
}

// Record is what the cache keeps per key.
type Record struct {
	Key       string    `json:"key"`
	CreatedAt time.Time `json:"createdAt"`
	Response  Response  `json:"response"`
}

// Cache stores mutation responses for a short fixed window.
type Cache struct {
	kv     cache.KV
	window time.Duration
	clock  clockwork.Clock
}

// NewCache creates an idempotency cache on top of kv.
func NewCache(kv cache.KV, window time.Duration, clock clockwork.Clock) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cache{kv: kv, window: window, clock: clock}
}

// Lookup returns a live record for key.
func (c *Cache) Lookup(ctx context.Context, key Key) (*Record, bool, error) {
	data, ok, err := c.kv.Get(ctx, key.String())
	if err != nil {
		return nil, false, fmt.Errorf("failed to look up idempotency record: %w", err)
	}
	if !ok {
		return nil, false, nil
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, fmt.Errorf("failed to decode idempotency record: %w", err)
	}
	if c.clock.Since(rec.CreatedAt) >= c.window {
		return nil, false, nil
	}
	return &rec, true, nil
}

// Store records resp under key for the dedup window.
func (c *Cache) Store(ctx context.Context, key Key, resp Response) error {
	rec := Record{
		Key:       key.String(),
		CreatedAt: c.clock.Now(),
		Response:  resp,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode idempotency record: %w", err)
	}
	if err := c.kv.Set(ctx, rec.Key, data, c.window); err != nil {
		return fmt.Errorf("failed to store idempotency record: %w", err)
	}
	return nil
}

// Do runs fn at most once per live key and returns the stored response on replays.
// Only responses with a 2xx status are recorded. Lookup and store failures are logged
// and never block the call; they only forfeit dedup for that key.
//
// Two concurrent calls with the same key that both miss the lookup will both run fn.
func (c *Cache) Do(ctx context.Context, key Key, fn func() (Response, error)) (Response, bool, error) {
	if !key.Enabled() {
		resp, err := fn()
		return resp, false, err
	}

	rec, ok, err := c.Lookup(ctx, key)
	if err != nil {
		log.Warn().Err(err).Str("code", key.Code).Msg("idempotency lookup failed, executing without dedup")
	} else if ok {
		log.Debug().
			Str("code", key.Code).
			Str("actor_id", key.ActorID).
			Msg("replaying stored response")
		return rec.Response, true, nil
	}

	resp, err := fn()
	if err != nil {
		return resp, false, err
	}

	if resp.Status >= 200 && resp.Status < 300 {
		if err := c.Store(ctx, key, resp); err != nil {
			log.Warn().Err(err).Str("code", key.Code).Msg("failed to record idempotent response")
		}
	}
	return resp, false, nil
}
