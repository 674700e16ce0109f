package syncagent

import (
	"time"

	"github.com/mcdev12/countdown/go/internal/models"
)

// Cadence holds the leader's poll intervals
type Cadence struct {
	Running time.Duration
	Paused  time.Duration
	Expired time.Duration
	Hidden  time.Duration
}

// DefaultCadence returns the default poll intervals
func DefaultCadence() Cadence {
	return Cadence{
		Running: time.Second,
		Paused:  5 * time.Second,
		Expired: 15 * time.Second,
		Hidden:  30 * time.Second,
	}
}

// Next picks the delay before the next poll
func (c Cadence) Next(state *models.TimerState, visible bool, now time.Time) time.Duration {
	switch {
	case !visible:
		return c.Hidden
	case state == nil:
		return c.Running
	case state.IsExpired(now):
		return c.Expired
	case state.Mode == models.TimerModeRunning:
		return c.Running
	default:
		return c.Paused
	}
}
