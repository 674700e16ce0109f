package events

import (
	"time"

	"github.com/mcdev12/countdown/go/internal/models"
)

// Event type names, used as the last subject token and the Event-Type header
const (
	EventTypeStateChanged = "state_changed"
	EventTypePresence     = "presence"
)

// StateChangedPayload is published after every successful owner action
type StateChangedPayload struct {
	Code      string            `json:"code"`
	Action    string            `json:"action"`
	ActorID   string            `json:"actor_id"`
	State     models.TimerState `json:"state"`
	ETag      string            `json:"etag"`
	ChangedAt time.Time         `json:"changed_at"`
}

// PresencePayload records that an actor read a group
type PresencePayload struct {
	Code     string    `json:"code"`
	ActorID  string    `json:"actor_id"`
	LastSeen time.Time `json:"last_seen"`
}
