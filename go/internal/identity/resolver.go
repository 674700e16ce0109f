package identity

import (
	"errors"
	"net/http"
	"strings"
)

// DefaultHeader carries the stable actor id set by the session layer in front of this service.
const DefaultHeader = "X-Actor-ID"

// ErrNoActor is returned when a request carries no resolvable identity
var ErrNoActor = errors.New("no actor on request")

// Resolver maps a request to a stable actor id.
type Resolver interface {
	Resolve(r *http.Request) (string, error)
}

// HeaderResolver trusts an actor id header written by an upstream session proxy.
type HeaderResolver struct {
	Header string
}

// NewHeaderResolver creates a resolver reading header, or DefaultHeader when empty.
func NewHeaderResolver(header string) *HeaderResolver {
	if header == "" {
		header = DefaultHeader
	}
	return &HeaderResolver{Header: header}
}

func (h *HeaderResolver) Resolve(r *http.Request) (string, error) {
	actorID := strings.TrimSpace(r.Header.Get(h.Header))
	if actorID == "" {
		return "", ErrNoActor
	}
	return actorID, nil
}
