package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countdown/go/internal/cache"
	"github.com/mcdev12/countdown/go/internal/identity"
	"github.com/mcdev12/countdown/go/internal/idempotency"
	"github.com/mcdev12/countdown/go/internal/metrics"
	"github.com/mcdev12/countdown/go/internal/ratelimit"
	"github.com/mcdev12/countdown/go/internal/timergroup"
	"github.com/mcdev12/countdown/go/internal/timergroup/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

type Services struct {
	TimerGroups *timergroup.Service
	Limiter     *ratelimit.Limiter
	Metrics     *metrics.VictoriaCollector

	memoryKV      *cache.MemoryKV
	sweepInterval time.Duration
}

// setupServices wires Store → App → Service. database is nil with the memory
// store and nc is nil when NATS is disabled.
func setupServices(ctx context.Context, cfg *Config, database *sql.DB, nc *nats.Conn) (*Services, error) {
	clock := clockwork.NewRealClock()
	collector := metrics.NewVictoriaCollector()

	var repo timergroup.TimerGroupRepository
	switch cfg.Store.Driver {
	case "postgres":
		repo = timergroup.NewRepository(database)
	default:
		repo = timergroup.NewMemoryRepository()
	}

	var js jetstream.JetStream
	if nc != nil {
		var err error
		if js, err = jetstream.New(nc); err != nil {
			return nil, fmt.Errorf("create JetStream context: %w", err)
		}
	}

	services := &Services{
		Metrics:       collector,
		sweepInterval: cfg.Cache.SweepInterval,
	}

	var kv cache.KV
	switch cfg.Cache.Driver {
	case "jetstream":
		kvCfg := cache.DefaultJetStreamKVConfig()
		kvCfg.Bucket = cfg.Cache.Bucket
		jsKV, err := cache.NewJetStreamKV(ctx, js, kvCfg, clock)
		if err != nil {
			return nil, err
		}
		kv = jsKV
	default:
		services.memoryKV = cache.NewMemoryKV(clock)
		kv = services.memoryKV
	}

	var publisher timergroup.EventPublisher = events.NoOpPublisher{}
	var presence timergroup.PresenceRecorder = events.NoOpPresence{}
	if nc != nil {
		streamCfg := events.DefaultStreamConfig()
		streamCfg.StreamName = cfg.NATS.EventsStream
		streamCfg.SubjectPrefix = cfg.NATS.EventsSubject
		jsPublisher, err := events.NewJetStreamPublisher(ctx, js, streamCfg, clock)
		if err != nil {
			return nil, err
		}
		publisher = jsPublisher
		presence = events.NewNATSPresence(nc, cfg.NATS.PresenceSubject, clock)
	}

	app := timergroup.NewApp(
		repo,
		cache.NewReadCache(kv, cfg.Cache.StateTTL, clock),
		publisher,
		collector,
		clock,
		timergroup.Config{MaxDuration: cfg.Timer.MaxDuration},
	)

	services.Limiter = ratelimit.NewLimiter(ratelimit.Config{
		PerSecond:     cfg.RateLimit.PerSecond,
		Burst:         cfg.RateLimit.Burst,
		IdleTTL:       cfg.RateLimit.IdleTTL,
		SweepInterval: cfg.RateLimit.SweepInterval,
	}, clock)

	services.TimerGroups = timergroup.NewService(
		app,
		identity.NewHeaderResolver(cfg.Identity.Header),
		services.Limiter,
		idempotency.NewCache(kv, cfg.Idempotency.Window, clock),
		presence,
		collector,
	)

	log.Info().
		Str("store", cfg.Store.Driver).
		Str("cache", cfg.Cache.Driver).
		Bool("nats", nc != nil).
		Msg("services configured")

	return services, nil
}

// Start runs background sweeps until ctx is done
func (s *Services) Start(ctx context.Context) {
	go s.Limiter.Start(ctx)

	if s.memoryKV == nil {
		return
	}
	interval := s.sweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.memoryKV.Sweep(); n > 0 {
					log.Debug().Int("removed", n).Msg("swept expired cache entries")
				}
			}
		}
	}()
}
