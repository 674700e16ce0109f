package timergroup

import (
	"time"

	"github.com/mcdev12/countdown/go/internal/models"
)

// Action is an owner command on a timer group.
type Action string

const (
	ActionStart  Action = "start"
	ActionPause  Action = "pause"
	ActionReset  Action = "reset"
	ActionExtend Action = "extend"
)

// DefaultMaxDuration bounds how much time can ever remain on a timer.
const DefaultMaxDuration = 2 * time.Hour

// ApplyRequest represents an owner action on a timer group
type ApplyRequest struct {
	Action     Action `json:"action"`
	DurationMs *int64 `json:"durationMs,omitempty"`
}

// ReadResult is the outcome of a conditional read.
type ReadResult struct {
	State       models.TimerState
	ETag        string
	NotModified bool
}

// StateResponse is the GET and PATCH response body
type StateResponse struct {
	Code  string            `json:"code"`
	State models.TimerState `json:"state"`
}

// CreateResponse is the POST response body
type CreateResponse struct {
	Code string `json:"code"`
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
