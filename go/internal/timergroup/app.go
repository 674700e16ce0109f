package timergroup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countdown/go/internal/cache"
	"github.com/mcdev12/countdown/go/internal/metrics"
	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/mcdev12/countdown/go/internal/timergroup/events"
	"github.com/rs/zerolog/log"
)

// TimerGroupRepository defines what the app layer needs from the repository
type TimerGroupRepository interface {
	GetByCode(ctx context.Context, code string) (*models.TimerGroup, error)
	Create(ctx context.Context, group models.TimerGroup) (*models.TimerGroup, error)
	UpdateState(ctx context.Context, code string, mutate StateMutator) (*models.TimerGroup, error)
}

// EventPublisher publishes state changes to other consumers
type EventPublisher interface {
	PublishStateChanged(ctx context.Context, payload events.StateChangedPayload) error
}

// Config tunes the state machine
type Config struct {
	MaxDuration    time.Duration
	CreateAttempts int
}

// DefaultConfig returns the default state machine settings
func DefaultConfig() Config {
	return Config{
		MaxDuration:    DefaultMaxDuration,
		CreateAttempts: 5,
	}
}

// App handles timer group business logic
type App struct {
	repo      TimerGroupRepository
	cache     *cache.ReadCache
	publisher EventPublisher
	metrics   metrics.Collector
	clock     clockwork.Clock
	config    Config
	newCode   CodeGenerator
}

// NewApp creates a new timer group App. publisher and collector may be nil.
func NewApp(repo TimerGroupRepository, readCache *cache.ReadCache, publisher EventPublisher, collector metrics.Collector, clock clockwork.Clock, cfg Config) *App {
	if publisher == nil {
		publisher = events.NoOpPublisher{}
	}
	if collector == nil {
		collector = &metrics.NoOpCollector{}
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	def := DefaultConfig()
	if cfg.MaxDuration <= 0 {
		cfg.MaxDuration = def.MaxDuration
	}
	if cfg.CreateAttempts <= 0 {
		cfg.CreateAttempts = def.CreateAttempts
	}

	return &App{
		repo:      repo,
		cache:     readCache,
		publisher: publisher,
		metrics:   collector,
		clock:     clock,
		config:    cfg,
		newCode:   GenerateCode,
	}
}

// Create makes a new idle timer group owned by ownerID
func (a *App) Create(ctx context.Context, ownerID string) (*models.TimerGroup, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrBadRequest)
	}

	now := models.TruncateTime(a.clock.Now())
	for attempt := 1; attempt <= a.config.CreateAttempts; attempt++ {
		code, err := a.newCode()
		if err != nil {
			return nil, err
		}

		group, err := a.repo.Create(ctx, models.TimerGroup{
			Code:      code,
			OwnerID:   ownerID,
			State:     NewIdleState(now),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if errors.Is(err, ErrCodeTaken) {
			log.Debug().Str("code", code).Int("attempt", attempt).Msg("group code collision, retrying")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create timer group: %w", err)
		}

		a.refreshCache(ctx, group.Code, group.State, ComputeETag(group.State))

		log.Info().
			Str("code", group.Code).
			Str("owner_id", ownerID).
			Msg("created timer group")
		return group, nil
	}

	return nil, fmt.Errorf("failed to create timer group after %d attempts: %w", a.config.CreateAttempts, ErrCodeTaken)
}

// Apply runs an owner action against a group and returns the new row and its ETag.
// All validation happens before anything is written.
func (a *App) Apply(ctx context.Context, code, actorID string, req ApplyRequest) (*models.TimerGroup, string, error) {
	if err := req.Validate(); err != nil {
		a.metrics.RecordTransition(string(req.Action), false)
		return nil, "", err
	}

	group, err := a.repo.UpdateState(ctx, code, func(current models.TimerGroup) (models.TimerState, error) {
		if current.OwnerID != actorID {
			return models.TimerState{}, ErrForbidden
		}
		return Transition(current.State, req, a.clock.Now(), a.config.MaxDuration)
	})
	if err != nil {
		a.metrics.RecordTransition(string(req.Action), false)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden) || errors.Is(err, ErrBadRequest) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("failed to apply %s: %w", req.Action, err)
	}
	a.metrics.RecordTransition(string(req.Action), true)

	etag := ComputeETag(group.State)
	a.refreshCache(ctx, code, group.State, etag)

	if err := a.publisher.PublishStateChanged(ctx, events.StateChangedPayload{
		Code:      code,
		Action:    string(req.Action),
		ActorID:   actorID,
		State:     group.State,
		ETag:      etag,
		ChangedAt: group.State.UpdatedAt,
	}); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to publish state change")
	}

	log.Info().
		Str("code", code).
		Str("action", string(req.Action)).
		Str("mode", string(group.State.Mode)).
		Msg("applied timer action")

	return group, etag, nil
}

// Read serves the current state, from cache when possible. When ifNoneMatch
// matches the current ETag the result is marked NotModified.
func (a *App) Read(ctx context.Context, code, ifNoneMatch string) (*ReadResult, error) {
	if a.cache != nil {
		entry, ok, err := a.cache.Get(ctx, code)
		if err != nil {
			log.Warn().Err(err).Str("code", code).Msg("read cache lookup failed, falling back to store")
		}
		a.metrics.RecordCacheLookup(ok)
		if ok {
			return a.readResult(entry.State, entry.ETag, ifNoneMatch), nil
		}
	}

	group, err := a.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to load timer group: %w", err)
	}

	etag := ComputeETag(group.State)
	a.refreshCache(ctx, code, group.State, etag)
	return a.readResult(group.State, etag, ifNoneMatch), nil
}

func (a *App) readResult(state models.TimerState, etag, ifNoneMatch string) *ReadResult {
	notModified := MatchesETag(ifNoneMatch, etag)
	if notModified {
		a.metrics.RecordNotModified()
	}
	return &ReadResult{State: state, ETag: etag, NotModified: notModified}
}

// refreshCache overwrites the cached entry. On failure the entry is dropped so
// readers fall back to the store instead of a stale value.
func (a *App) refreshCache(ctx context.Context, code string, state models.TimerState, etag string) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Put(ctx, code, state, etag); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to refresh read cache")
		if err := a.cache.Invalidate(ctx, code); err != nil {
			log.Warn().Err(err).Str("code", code).Msg("failed to invalidate read cache")
		}
	}
}
