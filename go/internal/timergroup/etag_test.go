package timergroup

import (
	"testing"
	"time"

	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/stretchr/testify/assert"
)

func int64Ptr(v int64) *int64 { return &v }

func timePtr(t time.Time) *time.Time { return &t }

func runningState(base time.Time) models.TimerState {
	return models.TimerState{
		Mode:       models.TimerModeRunning,
		EndAt:      timePtr(base.Add(25 * time.Minute)),
		DurationMs: int64Ptr(1_500_000),
		UpdatedAt:  base,
	}
}

func TestComputeETag_Deterministic(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	a := ComputeETag(runningState(base))
	b := ComputeETag(runningState(base))

	assert.Equal(t, a, b)
	assert.True(t, len(a) == 34, "expected quoted 32 hex chars, got %s", a)
	assert.Equal(t, byte('"'), a[0])
}

func TestComputeETag_IgnoresLocation(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	local := base.In(time.FixedZone("UTC+2", 2*60*60))

	assert.Equal(t, ComputeETag(runningState(base)), ComputeETag(runningState(local)))
}

func TestComputeETag_FieldChanges(t *testing.T) {
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	original := ComputeETag(runningState(base))

	tests := []struct {
		name   string
		mutate func(s *models.TimerState)
	}{
		{"mode", func(s *models.TimerState) { s.Mode = models.TimerModePaused }},
		{"endAt", func(s *models.TimerState) { s.EndAt = timePtr(s.EndAt.Add(time.Millisecond)) }},
		{"endAt cleared", func(s *models.TimerState) { s.EndAt = nil }},
		{"durationMs", func(s *models.TimerState) { s.DurationMs = int64Ptr(1_500_001) }},
		{"durationMs cleared", func(s *models.TimerState) { s.DurationMs = nil }},
		{"pausedAt", func(s *models.TimerState) { s.PausedAt = timePtr(base) }},
		{"updatedAt", func(s *models.TimerState) { s.UpdatedAt = base.Add(time.Millisecond) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := runningState(base)
			tt.mutate(&state)
			assert.NotEqual(t, original, ComputeETag(state))
		})
	}
}

func TestMatchesETag(t *testing.T) {
	etag := `"abc123"`

	tests := []struct {
		name        string
		ifNoneMatch string
		want        bool
	}{
		{"empty", "", false},
		{"exact", `"abc123"`, true},
		{"different", `"def456"`, false},
		{"wildcard", "*", true},
		{"list", `"def456", "abc123"`, true},
		{"weak", `W/"abc123"`, true},
		{"unquoted", "abc123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchesETag(tt.ifNoneMatch, etag))
		})
	}
}
