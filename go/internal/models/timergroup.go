package models

import (
	"time"
)

// TimerMode defines whether a timer is counting down.
type TimerMode string

const (
	TimerModeRunning TimerMode = "running"
	TimerModePaused  TimerMode = "paused"
)

// TimerState is the unit shared verbatim by storage, cache and wire.
type TimerState struct {
	Mode       TimerMode  `json:"mode"`
	EndAt      *time.Time `json:"endAt"`
	DurationMs *int64     `json:"durationMs"`
	PausedAt   *time.Time `json:"pausedAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

// TimerGroup represents one shared timer and its single owner.
type TimerGroup struct {
	Code      string     `json:"code"`
	OwnerID   string     `json:"owner_id"`
	State     TimerState `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// IsIdle reports whether the timer was never started or has been reset.
func (s TimerState) IsIdle() bool {
	return s.Mode == TimerModePaused && s.DurationMs == nil
}

// IsExpired reports whether a running timer has reached its end.
func (s TimerState) IsExpired(now time.Time) bool {
	return s.Mode == TimerModeRunning && s.EndAt != nil && !s.EndAt.After(now)
}

// RemainingAt returns the time left on the timer as seen at now.
// A paused timer shows the value frozen at the moment it was paused.
func (s TimerState) RemainingAt(now time.Time) time.Duration {
	if s.EndAt == nil {
		return 0
	}

	var remaining time.Duration
	switch s.Mode {
	case TimerModeRunning:
		remaining = s.EndAt.Sub(now)
	case TimerModePaused:
		if s.PausedAt == nil {
			return 0
		}
		remaining = s.EndAt.Sub(*s.PausedAt)
	}

	if remaining < 0 {
		return 0
	}
	return remaining
}

// Normalize returns a copy with every timestamp in UTC at millisecond precision.
func (s TimerState) Normalize() TimerState {
	out := s
	out.UpdatedAt = TruncateTime(s.UpdatedAt)
	if s.EndAt != nil {
		t := TruncateTime(*s.EndAt)
		out.EndAt = &t
	}
	if s.PausedAt != nil {
		t := TruncateTime(*s.PausedAt)
		out.PausedAt = &t
	}
	if s.DurationMs != nil {
		d := *s.DurationMs
		out.DurationMs = &d
	}
	return out
}

// TruncateTime converts t to UTC at millisecond precision.
func TruncateTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}
