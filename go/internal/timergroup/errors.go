package timergroup

import "errors"

var (
	// ErrNotFound is returned when no timer group has the requested code
	ErrNotFound = errors.New("timer group not found")
	// ErrForbidden is returned when a non-owner tries to mutate a timer group
	ErrForbidden = errors.New("only the owner can manage this timer")
	// ErrBadRequest is returned for unknown actions, bad durations and invalid transitions
	ErrBadRequest = errors.New("bad request")
	// ErrRateLimited is returned when the caller's token bucket is empty
	ErrRateLimited = errors.New("rate limited")
	// ErrCodeTaken is returned by repositories when a generated code already exists
	ErrCodeTaken = errors.New("timer group code already taken")
)
