package timergroup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countdown/go/internal/cache"
	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/mcdev12/countdown/go/internal/timergroup/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	payloads []events.StateChangedPayload
	err      error
}

func (p *recordingPublisher) PublishStateChanged(ctx context.Context, payload events.StateChangedPayload) error {
	p.payloads = append(p.payloads, payload)
	return p.err
}

// countingRepository counts store round trips around a MemoryRepository
type countingRepository struct {
	*MemoryRepository
	gets    int
	updates int
}

func (r *countingRepository) GetByCode(ctx context.Context, code string) (*models.TimerGroup, error) {
	r.gets++
	return r.MemoryRepository.GetByCode(ctx, code)
}

func (r *countingRepository) UpdateState(ctx context.Context, code string, mutate StateMutator) (*models.TimerGroup, error) {
	r.updates++
	return r.MemoryRepository.UpdateState(ctx, code, mutate)
}

type testApp struct {
	app       *App
	repo      *countingRepository
	clock     *clockwork.FakeClock
	publisher *recordingPublisher
}

// unavailableKV fails every call, like a cache backend that is down
type unavailableKV struct {
	gets, sets, deletes int
}

func (k *unavailableKV) Get(context.Context, string) ([]byte, bool, error) {
	k.gets++
	return nil, false, errors.New("connection refused")
}

func (k *unavailableKV) Set(context.Context, string, []byte, time.Duration) error {
	k.sets++
	return errors.New("connection refused")
}

func (k *unavailableKV) Delete(context.Context, string) error {
	k.deletes++
	return errors.New("connection refused")
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	return newTestAppWithKV(t, nil)
}

// newTestAppWithKV backs the read cache with kv, or a MemoryKV when kv is nil
func newTestAppWithKV(t *testing.T, kv cache.KV) *testApp {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	repo := &countingRepository{MemoryRepository: NewMemoryRepository()}
	publisher := &recordingPublisher{}
	if kv == nil {
		kv = cache.NewMemoryKV(clock)
	}
	readCache := cache.NewReadCache(kv, 30*time.Second, clock)

	return &testApp{
		app:       NewApp(repo, readCache, publisher, nil, clock, DefaultConfig()),
		repo:      repo,
		clock:     clock,
		publisher: publisher,
	}
}

func TestApp_CreateAndStart(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	group, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)
	assert.Len(t, group.Code, CodeLength)
	assert.Equal(t, "owner", group.OwnerID)
	assert.True(t, group.State.IsIdle())

	updated, etag, err := ta.app.Apply(ctx, group.Code, "owner", ApplyRequest{Action: ActionStart, DurationMs: int64Ptr(1_500_000)})
	require.NoError(t, err)
	assert.Equal(t, models.TimerModeRunning, updated.State.Mode)
	assert.Equal(t, 25*time.Minute, updated.State.EndAt.Sub(ta.clock.Now()))
	assert.Equal(t, ComputeETag(updated.State), etag)

	result, err := ta.app.Read(ctx, group.Code, "")
	require.NoError(t, err)
	assert.False(t, result.NotModified)
	assert.Equal(t, etag, result.ETag)
	assert.True(t, result.State.EndAt.Equal(*updated.State.EndAt))

	require.Len(t, ta.publisher.payloads, 1)
	assert.Equal(t, "start", ta.publisher.payloads[0].Action)
	assert.Equal(t, etag, ta.publisher.payloads[0].ETag)
}

func TestApp_ReadServedFromCacheAfterWrite(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	group, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)
	_, _, err = ta.app.Apply(ctx, group.Code, "owner", ApplyRequest{Action: ActionStart, DurationMs: int64Ptr(60_000)})
	require.NoError(t, err)

	_, err = ta.app.Read(ctx, group.Code, "")
	require.NoError(t, err)
	_, err = ta.app.Read(ctx, group.Code, "")
	require.NoError(t, err)

	assert.Equal(t, 0, ta.repo.gets, "reads should be served by the write-refreshed cache")
}

func TestApp_NonOwnerIsForbidden(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	group, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)
	_, etag, err := ta.app.Apply(ctx, group.Code, "owner", ApplyRequest{Action: ActionStart, DurationMs: int64Ptr(60_000)})
	require.NoError(t, err)

	_, _, err = ta.app.Apply(ctx, group.Code, "intruder", ApplyRequest{Action: ActionPause})
	assert.ErrorIs(t, err, ErrForbidden)

	result, err := ta.app.Read(ctx, group.Code, "")
	require.NoError(t, err)
	assert.Equal(t, models.TimerModeRunning, result.State.Mode)
	assert.Equal(t, etag, result.ETag)
	assert.Len(t, ta.publisher.payloads, 1)
}

func TestApp_ValidationHappensBeforeStore(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	group, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)

	_, _, err = ta.app.Apply(ctx, group.Code, "owner", ApplyRequest{Action: ActionStart})
	assert.ErrorIs(t, err, ErrBadRequest)
	assert.Equal(t, 0, ta.repo.updates)

	_, _, err = ta.app.Apply(ctx, group.Code, "owner", ApplyRequest{Action: ActionExtend, DurationMs: int64Ptr(1000)})
	assert.ErrorIs(t, err, ErrBadRequest)

	stored, err := ta.repo.MemoryRepository.GetByCode(ctx, group.Code)
	require.NoError(t, err)
	assert.True(t, stored.State.IsIdle())
}

func TestApp_UnknownCode(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	_, _, err := ta.app.Apply(ctx, "NOPE22", "owner", ApplyRequest{Action: ActionPause})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = ta.app.Read(ctx, "NOPE22", "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApp_ConditionalReadAfterCacheExpiry(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	group, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)
	_, _, err = ta.app.Apply(ctx, group.Code, "owner", ApplyRequest{Action: ActionStart, DurationMs: int64Ptr(600_000)})
	require.NoError(t, err)

	first, err := ta.app.Read(ctx, group.Code, "")
	require.NoError(t, err)

	ta.clock.Advance(60 * time.Second)

	second, err := ta.app.Read(ctx, group.Code, first.ETag)
	require.NoError(t, err)
	assert.True(t, second.NotModified)
	assert.Equal(t, first.ETag, second.ETag)
	assert.Equal(t, 1, ta.repo.gets, "expired cache entry should be reloaded from the store")
}

func TestApp_StaleETagGetsFreshState(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	group, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)
	before, err := ta.app.Read(ctx, group.Code, "")
	require.NoError(t, err)

	ta.clock.Advance(time.Second)
	_, _, err = ta.app.Apply(ctx, group.Code, "owner", ApplyRequest{Action: ActionStart, DurationMs: int64Ptr(60_000)})
	require.NoError(t, err)

	after, err := ta.app.Read(ctx, group.Code, before.ETag)
	require.NoError(t, err)
	assert.False(t, after.NotModified)
	assert.NotEqual(t, before.ETag, after.ETag)
}

func TestApp_CreateRetriesOnCodeCollision(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()

	codes := []string{"AAAAAA", "AAAAAA", "BBBBBB"}
	ta.app.newCode = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}

	first, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, "AAAAAA", first.Code)

	second, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)
	assert.Equal(t, "BBBBBB", second.Code)
}

func TestApp_CreateGivesUpAfterAttempts(t *testing.T) {
	ta := newTestApp(t)
	ctx := context.Background()
	ta.app.newCode = func() (string, error) { return "AAAAAA", nil }

	_, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)

	_, err = ta.app.Create(ctx, "owner")
	assert.ErrorIs(t, err, ErrCodeTaken)
}

func TestApp_PublishFailureIsSoft(t *testing.T) {
	ta := newTestApp(t)
	ta.publisher.err = errors.New("nats down")
	ctx := context.Background()

	group, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)

	_, _, err = ta.app.Apply(ctx, group.Code, "owner", ApplyRequest{Action: ActionStart, DurationMs: int64Ptr(60_000)})
	assert.NoError(t, err)
}

func TestApp_ReadFallsBackToStoreWhenCacheFails(t *testing.T) {
	kv := &unavailableKV{}
	ta := newTestAppWithKV(t, kv)
	ctx := context.Background()

	group, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)

	result, err := ta.app.Read(ctx, group.Code, "")
	require.NoError(t, err)
	assert.False(t, result.NotModified)
	assert.Equal(t, group.State, result.State)
	assert.Equal(t, ComputeETag(group.State), result.ETag)
	assert.Equal(t, 1, ta.repo.gets)
	assert.Equal(t, 1, kv.gets)

	again, err := ta.app.Read(ctx, group.Code, result.ETag)
	require.NoError(t, err)
	assert.True(t, again.NotModified)
	assert.Equal(t, 2, ta.repo.gets)
}

func TestApp_ApplySucceedsWhenCacheWritesFail(t *testing.T) {
	kv := &unavailableKV{}
	ta := newTestAppWithKV(t, kv)
	ctx := context.Background()

	group, err := ta.app.Create(ctx, "owner")
	require.NoError(t, err)
	setsAfterCreate, deletesAfterCreate := kv.sets, kv.deletes

	updated, etag, err := ta.app.Apply(ctx, group.Code, "owner", ApplyRequest{Action: ActionStart, DurationMs: int64Ptr(60_000)})
	require.NoError(t, err)
	assert.Equal(t, models.TimerModeRunning, updated.State.Mode)
	assert.Equal(t, ComputeETag(updated.State), etag)

	// the failed Put is followed by an Invalidate attempt
	assert.Equal(t, setsAfterCreate+1, kv.sets)
	assert.Equal(t, deletesAfterCreate+1, kv.deletes)
	require.Len(t, ta.publisher.payloads, 1)

	stored, err := ta.repo.MemoryRepository.GetByCode(ctx, group.Code)
	require.NoError(t, err)
	assert.Equal(t, updated.State, stored.State)

	result, err := ta.app.Read(ctx, group.Code, "")
	require.NoError(t, err)
	assert.Equal(t, etag, result.ETag)
}
