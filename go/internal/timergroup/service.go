package timergroup

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/mcdev12/countdown/go/internal/identity"
	"github.com/mcdev12/countdown/go/internal/idempotency"
	"github.com/mcdev12/countdown/go/internal/metrics"
	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// IdempotencyKeyHeader carries the client's retry token on PATCH
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayedHeader is set on responses served from the idempotency cache
	IdempotentReplayedHeader = "Idempotent-Replayed"

	routeCreate = "create"
	routePatch  = "patch"

	maxBodyBytes = 4 << 10
)

// TimerGroupApp defines what the service layer needs from the application
type TimerGroupApp interface {
	Create(ctx context.Context, ownerID string) (*models.TimerGroup, error)
	Apply(ctx context.Context, code, actorID string, req ApplyRequest) (*models.TimerGroup, string, error)
	Read(ctx context.Context, code, ifNoneMatch string) (*ReadResult, error)
}

// RateLimiter guards mutation frequency per caller
type RateLimiter interface {
	Allow(actorID, ip, route string) bool
}

// PresenceRecorder notes that an actor is viewing a group
type PresenceRecorder interface {
	RecordPresence(code, actorID string)
}

// Service exposes timer groups over HTTP
type Service struct {
	app         TimerGroupApp
	identity    identity.Resolver
	limiter     RateLimiter
	idempotency *idempotency.Cache
	presence    PresenceRecorder
	metrics     metrics.Collector
}

// NewService creates a new timer group HTTP service. presence and collector may be nil.
func NewService(app TimerGroupApp, resolver identity.Resolver, limiter RateLimiter, idem *idempotency.Cache, presence PresenceRecorder, collector metrics.Collector) *Service {
	if collector == nil {
		collector = &metrics.NoOpCollector{}
	}
	return &Service{
		app:         app,
		identity:    resolver,
		limiter:     limiter,
		idempotency: idem,
		presence:    presence,
		metrics:     collector,
	}
}

// RegisterRoutes registers the timer group routes with an HTTP mux
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /timer-groups", s.HandleCreate)
	mux.HandleFunc("GET /timer-groups/{code}", s.HandleGet)
	mux.HandleFunc("PATCH /timer-groups/{code}", s.HandlePatch)
}

// HandleCreate creates a new group owned by the caller
func (s *Service) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actorID, err := s.identity.Resolve(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in to create a timer")
		return
	}

	if !s.allow(w, actorID, clientIP(r), routeCreate) {
		return
	}

	group, err := s.app.Create(r.Context(), actorID)
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateResponse{Code: group.Code})
}

// HandleGet serves the current state with conditional GET support
func (s *Service) HandleGet(w http.ResponseWriter, r *http.Request) {
	code := NormalizeCode(r.PathValue("code"))
	w.Header().Set("Cache-Control", "no-store")

	result, err := s.app.Read(r.Context(), code, r.Header.Get("If-None-Match"))
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	if s.presence != nil {
		if actorID, err := s.identity.Resolve(r); err == nil {
			s.presence.RecordPresence(code, actorID)
		}
	}

	w.Header().Set("ETag", result.ETag)
	if result.NotModified {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{Code: code, State: result.State})
}

// HandlePatch applies an owner action. Requests carrying the same Idempotency-Key
// within the dedup window get the first response back byte for byte.
func (s *Service) HandlePatch(w http.ResponseWriter, r *http.Request) {
	code := NormalizeCode(r.PathValue("code"))
	w.Header().Set("Cache-Control", "no-store")

	actorID, err := s.identity.Resolve(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated", "sign in to manage this timer")
		return
	}

	if !s.allow(w, actorID, clientIP(r), routePatch) {
		return
	}

	var req ApplyRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be a JSON object")
		return
	}

	key := idempotency.Key{
		Code:    code,
		ActorID: actorID,
		Token:   r.Header.Get(IdempotencyKeyHeader),
	}
	resp, replayed, err := s.idempotency.Do(r.Context(), key, func() (idempotency.Response, error) {
		group, etag, err := s.app.Apply(r.Context(), code, actorID, req)
		if err != nil {
			return idempotency.Response{}, err
		}
		body, err := json.Marshal(StateResponse{Code: group.Code, State: group.State})
		if err != nil {
			return idempotency.Response{}, err
		}
		return idempotency.Response{Status: http.StatusOK, ETag: etag, Body: body}, nil
	})
	if err != nil {
		s.writeAppError(w, err)
		return
	}

	if replayed {
		s.metrics.RecordIdempotentReplay()
		w.Header().Set(IdempotentReplayedHeader, "true")
	}
	if resp.ETag != "" {
		w.Header().Set("ETag", resp.ETag)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		log.Debug().Err(err).Str("code", code).Msg("failed to write response")
	}
}

func (s *Service) allow(w http.ResponseWriter, actorID, ip, route string) bool {
	if s.limiter == nil || s.limiter.Allow(actorID, ip, route) {
		return true
	}
	s.metrics.RecordRateLimited(route)
	w.Header().Set("Retry-After", "1")
	writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
	return false
}

func (s *Service) writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "timer group not found")
	case errors.Is(err, ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", ErrForbidden.Error())
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, ErrRateLimited):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, slow down")
	default:
		log.Error().Err(err).Msg("timer group request failed")
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, ErrorResponse{Error: kind, Message: message})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
