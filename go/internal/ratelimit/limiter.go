package ratelimit

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Config holds token bucket sizing.
type Config struct {
	PerSecond     float64       // Refill rate
	Burst         int           // Bucket capacity
	IdleTTL       time.Duration // Buckets untouched this long are dropped
	SweepInterval time.Duration
}

// DefaultConfig allows roughly one mutation per second with a small burst.
func DefaultConfig() Config {
	return Config{
		PerSecond:     1,
		Burst:         5,
		IdleTTL:       10 * time.Minute,
		SweepInterval: time.Minute,
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// Limiter is a token bucket per (actor, ip, route).
type Limiter struct {
	cfg     Config
	clock   clockwork.Clock
	buckets *xsync.MapOf[string, *bucket]
}

// NewLimiter creates a limiter. Zero config fields fall back to DefaultConfig.
func NewLimiter(cfg Config, clock clockwork.Clock) *Limiter {
	def := DefaultConfig()
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = def.PerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = def.IdleTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{
		cfg:     cfg,
		clock:   clock,
		buckets: xsync.NewMapOf[string, *bucket](),
	}
}

// BucketKey joins the bucket dimensions.
func BucketKey(actorID, ip, route string) string {
	return actorID + "|" + ip + "|" + route
}

// Allow takes one token from the bucket for (actorID, ip, route).
// It never blocks and never queues: a false return means the caller must back off.
func (l *Limiter) Allow(actorID, ip, route string) bool {
	now := l.clock.Now()
	b, _ := l.buckets.LoadOrCompute(BucketKey(actorID, ip, route), func() *bucket {
		return &bucket{lim: rate.NewLimiter(rate.Limit(l.cfg.PerSecond), l.cfg.Burst)}
	})
	b.lastSeen.Store(now.UnixNano())
	return b.lim.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than IdleTTL and returns how many were dropped.
// An idle bucket has refilled completely, so dropping it loses nothing.
func (l *Limiter) Sweep() int {
	cutoff := l.clock.Now().Add(-l.cfg.IdleTTL).UnixNano()
	removed := 0
	l.buckets.Range(func(key string, b *bucket) bool {
		if b.lastSeen.Load() < cutoff {
			l.buckets.Delete(key)
			removed++
		}
		return true
	})
	return removed
}

// Size returns the number of live buckets.
func (l *Limiter) Size() int {
	return l.buckets.Size()
}

// Start sweeps idle buckets until ctx is cancelled.
func (l *Limiter) Start(ctx context.Context) {
	ticker := l.clock.NewTicker(l.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if n := l.Sweep(); n > 0 {
				log.Debug().Int("removed", n).Int("remaining", l.Size()).Msg("swept idle rate buckets")
			}
		}
	}
}
