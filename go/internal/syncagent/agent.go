package syncagent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ErrAlreadyJoined is returned when Join is called twice on one agent
var ErrAlreadyJoined = errors.New("agent already joined")

// Fetcher performs a conditional GET for a group. A nil state with a nil error
// means the server answered 304 for ifNoneMatch.
type Fetcher interface {
	FetchState(ctx context.Context, code, ifNoneMatch string) (*models.TimerState, string, error)
}

// retryAfterError is implemented by fetch errors that carry a server backoff hint
type retryAfterError interface {
	RetryAfter() time.Duration
}

// Config holds per-tab agent settings
type Config struct {
	Code          string
	TabID         string // Generated when empty
	LeaseTTL      time.Duration
	RenewInterval time.Duration
	FetchTimeout  time.Duration
	Cadence       Cadence
	Clock         clockwork.Clock
}

func (c Config) withDefaults() Config {
	if c.TabID == "" {
		c.TabID = uuid.NewString()
	}
	if c.LeaseTTL <= 0 {
		c.LeaseTTL = DefaultLeaseTTL
	}
	if c.RenewInterval <= 0 {
		c.RenewInterval = DefaultRenewInterval
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 5 * time.Second
	}
	def := DefaultCadence()
	if c.Cadence.Running <= 0 {
		c.Cadence.Running = def.Running
	}
	if c.Cadence.Paused <= 0 {
		c.Cadence.Paused = def.Paused
	}
	if c.Cadence.Expired <= 0 {
		c.Cadence.Expired = def.Expired
	}
	if c.Cadence.Hidden <= 0 {
		c.Cadence.Hidden = def.Hidden
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
	return c
}

// Snapshot is what a tab renders
type Snapshot struct {
	Code       string
	TabID      string
	State      *models.TimerState
	ETag       string
	Leader     bool
	ReceivedAt time.Time
}

// Agent keeps one tab's view of a group in sync. Only the tab holding the
// lease polls; it republishes fresh state to the other tabs over the hub.
type Agent struct {
	cfg     Config
	hub     *Hub
	fetcher Fetcher
	elector *elector
	clock   clockwork.Clock
	channel string

	mu         sync.Mutex
	state      *models.TimerState
	etag       string
	receivedAt time.Time
	visible    bool

	leader  atomic.Bool
	polls   atomic.Int64
	updates chan Snapshot
	wake    chan struct{}

	sub    *Subscription
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an agent for one tab. Call Join to start it.
func New(cfg Config, storage Storage, hub *Hub, fetcher Fetcher) *Agent {
	cfg = cfg.withDefaults()
	return &Agent{
		cfg:     cfg,
		hub:     hub,
		fetcher: fetcher,
		elector: newElector(storage, cfg.Code, cfg.TabID, cfg.LeaseTTL, cfg.Clock),
		clock:   cfg.Clock,
		channel: ChannelName(cfg.Code),
		visible: true,
		updates: make(chan Snapshot, 1),
		wake:    make(chan struct{}, 1),
	}
}

// TabID returns this tab's id
func (a *Agent) TabID() string { return a.cfg.TabID }

// Join subscribes to the group channel and starts the election and poll loop
func (a *Agent) Join(ctx context.Context) error {
	a.mu.Lock()
	if a.done != nil {
		a.mu.Unlock()
		return ErrAlreadyJoined
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan struct{})
	a.sub = a.hub.Subscribe(a.channel, a.cfg.TabID)
	a.mu.Unlock()

	go a.run(ctx)
	return nil
}

// Close stops the loop and gives up the lease. Other tabs take over on their next renewal.
func (a *Agent) Close() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Updates delivers the latest snapshot whenever the displayed state changes.
// Slow readers only miss intermediate snapshots.
func (a *Agent) Updates() <-chan Snapshot { return a.updates }

// Snapshot returns the current view
func (a *Agent) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Remaining returns the time to display at now, without touching the network
func (a *Agent) Remaining(now time.Time) time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == nil {
		return 0
	}
	return a.state.RemainingAt(now)
}

// IsLeader reports whether this tab currently holds the lease
func (a *Agent) IsLeader() bool { return a.leader.Load() }

// Polls returns how many fetches this tab has made
func (a *Agent) Polls() int64 { return a.polls.Load() }

// SetVisible records tab visibility. Regaining visibility makes a leader poll at once.
func (a *Agent) SetVisible(visible bool) {
	a.mu.Lock()
	wasVisible := a.visible
	a.visible = visible
	a.mu.Unlock()

	if visible && !wasVisible {
		select {
		case a.wake <- struct{}{}:
		default:
		}
	}
}

func (a *Agent) run(ctx context.Context) {
	defer close(a.done)
	defer a.sub.Close()
	defer a.stepDown()

	renew := a.clock.NewTicker(a.cfg.RenewInterval)
	defer renew.Stop()

	var (
		pollTimer clockwork.Timer
		pollC     <-chan time.Time
	)
	schedule := func(d time.Duration) {
		if pollTimer != nil {
			pollTimer.Stop()
		}
		pollTimer = a.clock.NewTimer(d)
		pollC = pollTimer.Chan()
	}
	stopPolling := func() {
		if pollTimer != nil {
			pollTimer.Stop()
		}
		pollTimer, pollC = nil, nil
	}
	defer stopPolling()

	if a.elect() {
		schedule(a.pollOnce(ctx))
	} else {
		a.hub.Publish(a.channel, Message{
			Kind:    MessageSyncRequest,
			Code:    a.cfg.Code,
			FromTab: a.cfg.TabID,
			SentAt:  a.clock.Now(),
		})
	}

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-a.sub.C:
			if !ok {
				return
			}
			a.handleMessage(msg)

		case <-renew.Chan():
			wasLeader := a.IsLeader()
			isLeader := a.elect()
			switch {
			case isLeader && !wasLeader:
				schedule(a.pollOnce(ctx))
			case !isLeader && wasLeader:
				stopPolling()
			}

		case <-pollC:
			schedule(a.pollOnce(ctx))

		case <-a.wake:
			if a.IsLeader() {
				schedule(a.pollOnce(ctx))
			}
		}
	}
}

// elect runs one acquire or renew round and records the outcome
func (a *Agent) elect() bool {
	isLeader := a.elector.tryAcquire()
	wasLeader := a.leader.Swap(isLeader)

	if isLeader != wasLeader {
		if isLeader {
			log.Info().Str("code", a.cfg.Code).Str("tab_id", a.cfg.TabID).Msg("tab became leader")
		} else {
			log.Info().Str("code", a.cfg.Code).Str("tab_id", a.cfg.TabID).Msg("tab lost leadership")
		}
		a.emit()
	}
	return isLeader
}

func (a *Agent) stepDown() {
	if a.leader.Swap(false) {
		a.elector.release()
		log.Info().Str("code", a.cfg.Code).Str("tab_id", a.cfg.TabID).Msg("tab released leadership")
	}
}

// pollOnce fetches the group once and returns the delay before the next poll
func (a *Agent) pollOnce(ctx context.Context) time.Duration {
	a.polls.Add(1)

	fetchCtx, cancel := context.WithTimeout(ctx, a.cfg.FetchTimeout)
	defer cancel()

	state, etag, err := a.fetcher.FetchState(fetchCtx, a.cfg.Code, a.currentETag())
	if err != nil {
		next := a.nextInterval()
		var ra retryAfterError
		if errors.As(err, &ra) && ra.RetryAfter() > next {
			next = ra.RetryAfter()
		}
		log.Debug().
			Err(err).
			Str("code", a.cfg.Code).
			Dur("retry_in", next).
			Msg("poll failed")
		return next
	}

	if state != nil && a.apply(*state, etag) {
		a.broadcast()
	}
	return a.nextInterval()
}

func (a *Agent) handleMessage(msg Message) {
	if msg.Code != a.cfg.Code {
		return
	}
	switch msg.Kind {
	case MessageState:
		if msg.State != nil {
			a.apply(*msg.State, msg.ETag)
		}
	case MessageSyncRequest:
		if a.IsLeader() {
			a.broadcast()
		}
	}
}

// apply adopts state unless it is a duplicate or older than what we have
func (a *Agent) apply(state models.TimerState, etag string) bool {
	a.mu.Lock()
	if etag != "" && etag == a.etag {
		a.mu.Unlock()
		return false
	}
	if a.state != nil && state.UpdatedAt.Before(a.state.UpdatedAt) {
		a.mu.Unlock()
		return false
	}
	normalized := state.Normalize()
	a.state = &normalized
	a.etag = etag
	a.receivedAt = a.clock.Now()
	a.mu.Unlock()

	a.emit()
	return true
}

func (a *Agent) broadcast() {
	a.mu.Lock()
	if a.state == nil {
		a.mu.Unlock()
		return
	}
	state := a.state.Normalize()
	msg := Message{
		Kind:    MessageState,
		Code:    a.cfg.Code,
		FromTab: a.cfg.TabID,
		State:   &state,
		ETag:    a.etag,
		SentAt:  a.clock.Now(),
	}
	a.mu.Unlock()

	a.hub.Publish(a.channel, msg)
}

// emit offers the latest snapshot, replacing one the reader has not taken yet
func (a *Agent) emit() {
	snap := a.Snapshot()
	select {
	case a.updates <- snap:
		return
	default:
	}
	select {
	case <-a.updates:
	default:
	}
	select {
	case a.updates <- snap:
	default:
	}
}

func (a *Agent) currentETag() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.etag
}

func (a *Agent) nextInterval() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg.Cadence.Next(a.state, a.visible, a.clock.Now())
}

func (a *Agent) snapshotLocked() Snapshot {
	snap := Snapshot{
		Code:       a.cfg.Code,
		TabID:      a.cfg.TabID,
		ETag:       a.etag,
		Leader:     a.leader.Load(),
		ReceivedAt: a.receivedAt,
	}
	if a.state != nil {
		s := a.state.Normalize()
		snap.State = &s
	}
	return snap
}
