package timer_client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/mcdev12/countdown/go/clients"
	"github.com/mcdev12/countdown/go/internal/models"
)

// TimerClient talks to the timer group HTTP API as one actor
type TimerClient struct {
	*clients.BaseClient
}

// NewTimerClient creates a client sending actorID on every request
func NewTimerClient(baseURL, actorID string) *TimerClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &TimerClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}
	if actorID != "" {
		client.SetHeader(ActorHeader, actorID)
	}
	return client
}

// StateResponse is the GET and PATCH body
type StateResponse struct {
	Code  string            `json:"code"`
	State models.TimerState `json:"state"`
}

// PatchRequest is an owner action
type PatchRequest struct {
	Action     string `json:"action"`
	DurationMs *int64 `json:"durationMs,omitempty"`
}

// PatchResult is a successful PATCH
type PatchResult struct {
	State    models.TimerState
	ETag     string
	Replayed bool
}

// Create makes a new group owned by the client's actor and returns its code
func (c *TimerClient) Create(ctx context.Context) (string, error) {
	resp, err := c.Post(ctx, TimerGroupsEndpoint, http.NoBody, nil)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusCreated {
		return "", newAPIError(resp)
	}

	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("failed to decode create response: %w", err)
	}
	return body.Code, nil
}

// FetchState performs a conditional GET. It returns a nil state when the
// server answers 304 for ifNoneMatch.
func (c *TimerClient) FetchState(ctx context.Context, code, ifNoneMatch string) (*models.TimerState, string, error) {
	var headers map[string]string
	if ifNoneMatch != "" {
		headers = map[string]string{"If-None-Match": ifNoneMatch}
	}

	resp, err := c.Get(ctx, timerGroupEndpoint(code), headers)
	if err != nil {
		return nil, "", err
	}

	etag := resp.Header.Get("ETag")
	switch resp.StatusCode {
	case http.StatusNotModified:
		return nil, etag, nil
	case http.StatusOK:
		var body StateResponse
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return nil, "", fmt.Errorf("failed to decode timer state: %w", err)
		}
		return &body.State, etag, nil
	default:
		return nil, "", newAPIError(resp)
	}
}

// GetState returns the current state unconditionally
func (c *TimerClient) GetState(ctx context.Context, code string) (*models.TimerState, string, error) {
	return c.FetchState(ctx, code, "")
}

// Patch applies an action. An empty idempotencyKey gets a fresh random token;
// reuse a key to retry the same attempt safely.
func (c *TimerClient) Patch(ctx context.Context, code string, req PatchRequest, idempotencyKey string) (*PatchResult, error) {
	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch request: %w", err)
	}

	resp, err := c.BaseClient.Patch(ctx, timerGroupEndpoint(code), bytes.NewReader(payload), map[string]string{
		IdempotencyKeyHeader: idempotencyKey,
	})
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newAPIError(resp)
	}

	var body StateResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("failed to decode patch response: %w", err)
	}
	return &PatchResult{
		State:    body.State,
		ETag:     resp.Header.Get("ETag"),
		Replayed: resp.Header.Get(ReplayedHeader) == "true",
	}, nil
}
