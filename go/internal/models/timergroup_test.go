package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerState_RemainingAt(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	end := now.Add(10 * time.Minute)
	pausedAt := now.Add(-2 * time.Minute)
	duration := int64(15 * 60 * 1000)

	tests := []struct {
		name     string
		state    TimerState
		expected time.Duration
	}{
		{
			name:     "idle",
			state:    TimerState{Mode: TimerModePaused, UpdatedAt: now},
			expected: 0,
		},
		{
			name:     "running",
			state:    TimerState{Mode: TimerModeRunning, EndAt: &end, DurationMs: &duration},
			expected: 10 * time.Minute,
		},
		{
			name:     "paused shows frozen remaining",
			state:    TimerState{Mode: TimerModePaused, EndAt: &end, DurationMs: &duration, PausedAt: &pausedAt},
			expected: 12 * time.Minute,
		},
		{
			name:     "expired clamps at zero",
			state:    TimerState{Mode: TimerModeRunning, EndAt: &pausedAt, DurationMs: &duration},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.state.RemainingAt(now))
		})
	}
}

func TestTimerState_IsExpired(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Second)

	assert.True(t, TimerState{Mode: TimerModeRunning, EndAt: &past}.IsExpired(now))
	assert.True(t, TimerState{Mode: TimerModeRunning, EndAt: &now}.IsExpired(now))
	assert.False(t, TimerState{Mode: TimerModeRunning, EndAt: &future}.IsExpired(now))
	assert.False(t, TimerState{Mode: TimerModePaused, EndAt: &past}.IsExpired(now))
}

func TestTimerState_Normalize(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2026, 10, 16, 14, 0, 0, 123456789, loc)

	s := TimerState{Mode: TimerModePaused, PausedAt: &ts, UpdatedAt: ts}.Normalize()

	assert.Equal(t, time.UTC, s.UpdatedAt.Location())
	assert.Equal(t, 123000000, s.UpdatedAt.Nanosecond())
	assert.Equal(t, 12, s.PausedAt.Hour())
	assert.Nil(t, s.EndAt)
}
