package timergroup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroup(code string, at time.Time) models.TimerGroup {
	return models.TimerGroup{
		Code:      code,
		OwnerID:   "owner",
		State:     NewIdleState(at),
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func TestMemoryRepository_CreateGet(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	created, err := repo.Create(ctx, newGroup("ABC234", at))
	require.NoError(t, err)
	assert.Equal(t, "ABC234", created.Code)

	_, err = repo.Create(ctx, newGroup("ABC234", at))
	assert.ErrorIs(t, err, ErrCodeTaken)

	got, err := repo.GetByCode(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, "owner", got.OwnerID)

	_, err = repo.GetByCode(ctx, "ZZZ999")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryRepository_UpdateState(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := repo.Create(ctx, newGroup("ABC234", at))
	require.NoError(t, err)

	updated, err := repo.UpdateState(ctx, "ABC234", func(current models.TimerGroup) (models.TimerState, error) {
		return Transition(current.State, ApplyRequest{Action: ActionStart, DurationMs: int64Ptr(60_000)}, at.Add(time.Second), time.Hour)
	})
	require.NoError(t, err)
	assert.Equal(t, models.TimerModeRunning, updated.State.Mode)
	assert.True(t, updated.UpdatedAt.Equal(at.Add(time.Second)))

	_, err = repo.UpdateState(ctx, "ABC234", func(current models.TimerGroup) (models.TimerState, error) {
		return models.TimerState{}, ErrForbidden
	})
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := repo.GetByCode(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, models.TimerModeRunning, got.State.Mode)

	_, err = repo.UpdateState(ctx, "ZZZ999", func(current models.TimerGroup) (models.TimerState, error) {
		t.Fatal("mutate must not run for a missing group")
		return current.State, nil
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, repo.Len())
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := repo.Create(ctx, newGroup("ABC234", at))
	require.NoError(t, err)

	got, err := repo.GetByCode(ctx, "ABC234")
	require.NoError(t, err)
	got.State.DurationMs = int64Ptr(5)

	again, err := repo.GetByCode(ctx, "ABC234")
	require.NoError(t, err)
	assert.Nil(t, again.State.DurationMs)
}

func TestMemoryRepository_ConcurrentExtends(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := repo.Create(ctx, newGroup("ABC234", at))
	require.NoError(t, err)
	_, err = repo.UpdateState(ctx, "ABC234", func(current models.TimerGroup) (models.TimerState, error) {
		return Transition(current.State, ApplyRequest{Action: ActionStart, DurationMs: int64Ptr(1000)}, at, time.Hour)
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateState(ctx, "ABC234", func(current models.TimerGroup) (models.TimerState, error) {
				return Transition(current.State, ApplyRequest{Action: ActionExtend, DurationMs: int64Ptr(1000)}, at, time.Hour)
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := repo.GetByCode(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, 21*time.Second, got.State.EndAt.Sub(at))
}
