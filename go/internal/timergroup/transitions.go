package timergroup

import (
	"fmt"
	"time"

	"github.com/mcdev12/countdown/go/internal/models"
)

// StateMutator computes the next state of a group from its current row.
type StateMutator func(current models.TimerGroup) (models.TimerState, error)

// NewIdleState is the state of a freshly created or reset timer.
func NewIdleState(now time.Time) models.TimerState {
	return models.TimerState{
		Mode:      models.TimerModePaused,
		UpdatedAt: models.TruncateTime(now),
	}
}

// Validate checks the request shape without looking at the current state.
func (r ApplyRequest) Validate() error {
	switch r.Action {
	case ActionStart, ActionExtend:
		if r.DurationMs == nil || *r.DurationMs <= 0 {
			return fmt.Errorf("%w: %s requires a positive durationMs", ErrBadRequest, r.Action)
		}
	case ActionPause, ActionReset:
	case "":
		return fmt.Errorf("%w: action is required", ErrBadRequest)
	default:
		return fmt.Errorf("%w: unknown action %q", ErrBadRequest, r.Action)
	}
	return nil
}

// Transition returns the state after applying req to current at now.
// current is never modified.
func Transition(current models.TimerState, req ApplyRequest, now time.Time, maxDuration time.Duration) (models.TimerState, error) {
	if err := req.Validate(); err != nil {
		return models.TimerState{}, err
	}

	now = models.TruncateTime(now)
	maxMs := maxDuration.Milliseconds()
	next := current.Normalize()
	next.UpdatedAt = now

	switch req.Action {
	case ActionStart:
		clamped := clampMs(*req.DurationMs, maxMs)
		endAt := now.Add(time.Duration(clamped) * time.Millisecond)
		next.Mode = models.TimerModeRunning
		next.EndAt = &endAt
		next.DurationMs = &clamped
		next.PausedAt = nil

	case ActionPause:
		// a repeated pause keeps the first stamp so the frozen display does not move
		if current.Mode != models.TimerModePaused || current.PausedAt == nil {
			next.PausedAt = &now
		}
		next.Mode = models.TimerModePaused

	case ActionReset:
		next.Mode = models.TimerModePaused
		next.EndAt = nil
		next.DurationMs = nil
		next.PausedAt = &now

	case ActionExtend:
		if current.Mode != models.TimerModeRunning || current.EndAt == nil {
			return models.TimerState{}, fmt.Errorf("%w: extend requires a running timer", ErrBadRequest)
		}
		remaining := current.EndAt.Sub(now).Milliseconds()
		if remaining < 0 {
			remaining = 0
		}
		total := maxMs
		if remaining < maxMs && *req.DurationMs < maxMs-remaining {
			total = remaining + *req.DurationMs
		}
		endAt := now.Add(time.Duration(total) * time.Millisecond)
		next.EndAt = &endAt
	}

	return next, nil
}

func clampMs(ms, maxMs int64) int64 {
	if ms > maxMs {
		return maxMs
	}
	return ms
}
