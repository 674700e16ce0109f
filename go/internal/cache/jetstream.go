package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// JetStreamKVConfig holds configuration for the JetStream KeyValue bucket
type JetStreamKVConfig struct {
	Bucket   string
	MaxTTL   time.Duration // Bucket-wide upper bound, per-key expiry is enforced on read
	Replicas int
}

// DefaultJetStreamKVConfig returns default bucket configuration
func DefaultJetStreamKVConfig() JetStreamKVConfig {
	return JetStreamKVConfig{
		Bucket:   "TIMER_CACHE",
		MaxTTL:   5 * time.Minute,
		Replicas: 1,
	}
}

// kvEnvelope carries the per-key expiry that a bucket-wide TTL cannot express.
type kvEnvelope struct {
	ExpiresAt time.Time `json:"expiresAt"`
	Value     []byte    `json:"value"`
}

// JetStreamKV implements KV on a NATS JetStream KeyValue bucket so every
// server replica shares one cache.
type JetStreamKV struct {
	kv    jetstream.KeyValue
	clock clockwork.Clock
}

// NewJetStreamKV creates or updates the bucket and returns a KV backed by it.
func NewJetStreamKV(ctx context.Context, js jetstream.JetStream, cfg JetStreamKVConfig, clock clockwork.Clock) (*JetStreamKV, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "Timer read cache and idempotency records",
		TTL:         cfg.MaxTTL,
		History:     1,
		Storage:     jetstream.MemoryStorage,
		Replicas:    cfg.Replicas,
	})
	if err != nil {
		return nil, fmt.Errorf("create key value bucket: %w", err)
	}

	log.Info().
		Str("bucket", cfg.Bucket).
		Dur("max_ttl", cfg.MaxTTL).
		Msg("using JetStream key value bucket")

	return &JetStreamKV{kv: kv, clock: clock}, nil
}

func (j *JetStreamKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := j.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get key %s: %w", key, err)
	}

	var env kvEnvelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return nil, false, fmt.Errorf("unmarshal envelope for key %s: %w", key, err)
	}
	if !env.ExpiresAt.IsZero() && !j.clock.Now().Before(env.ExpiresAt) {
		return nil, false, nil
	}
	return env.Value, true, nil
}

func (j *JetStreamKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	env := kvEnvelope{Value: value}
	if ttl > 0 {
		env.ExpiresAt = j.clock.Now().Add(ttl)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if _, err := j.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put key %s: %w", key, err)
	}
	return nil
}

func (j *JetStreamKV) Delete(ctx context.Context, key string) error {
	if err := j.kv.Delete(ctx, key); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("delete key %s: %w", key, err)
	}
	return nil
}
