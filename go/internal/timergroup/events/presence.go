package events

import (
	"encoding/json"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultPresencePrefix is the subject prefix for presence updates
const DefaultPresencePrefix = "timer.presence"

// CorePublisher is satisfied by *nats.Conn
type CorePublisher interface {
	Publish(subject string, data []byte) error
}

// NATSPresence records reader presence with fire-and-forget core NATS publishes.
type NATSPresence struct {
	nc     CorePublisher
	prefix string
	clock  clockwork.Clock
}

// NewNATSPresence creates a presence recorder publishing under prefix
func NewNATSPresence(nc CorePublisher, prefix string, clock clockwork.Clock) *NATSPresence {
	if prefix == "" {
		prefix = DefaultPresencePrefix
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NATSPresence{nc: nc, prefix: prefix, clock: clock}
}

// RecordPresence publishes last-seen for actorID on code. Core publish only buffers
// locally, so this never waits on the network. Failures are logged.
func (p *NATSPresence) RecordPresence(code, actorID string) {
	data, err := json.Marshal(PresencePayload{
		Code:     code,
		ActorID:  actorID,
		LastSeen: p.clock.Now().UTC(),
	})
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to encode presence")
		return
	}

	subject := fmt.Sprintf("%s.%s", p.prefix, code)
	if err := p.nc.Publish(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("failed to publish presence")
	}
}

// NoOpPresence ignores presence updates
type NoOpPresence struct{}

func (NoOpPresence) RecordPresence(code, actorID string) {}
