package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// StreamConfig describes the timer event stream
type StreamConfig struct {
	StreamName      string
	SubjectPrefix   string
	MaxAge          time.Duration // How long to keep messages
	MaxMsgs         int64         // Max number of messages to keep
	Replicas        int
	DuplicateWindow time.Duration
}

// DefaultStreamConfig returns default stream settings
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		StreamName:      "TIMER_EVENTS",
		SubjectPrefix:   "timer.events",
		MaxAge:          24 * time.Hour,
		MaxMsgs:         -1, // No limit
		Replicas:        1,
		DuplicateWindow: 2 * time.Minute,
	}
}

// StreamPublisher is the slice of jetstream.JetStream the publisher needs
type StreamPublisher interface {
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// JetStreamPublisher publishes timer state changes to a JetStream stream
type JetStreamPublisher struct {
	js     StreamPublisher
	config StreamConfig
	clock  clockwork.Clock
}

// NewJetStreamPublisher ensures the stream exists and returns a publisher for it
func NewJetStreamPublisher(ctx context.Context, js jetstream.JetStream, cfg StreamConfig, clock clockwork.Clock) (*JetStreamPublisher, error) {
	if err := ensureStream(ctx, js, cfg); err != nil {
		return nil, fmt.Errorf("ensure stream: %w", err)
	}
	return newPublisher(js, cfg, clock), nil
}

func newPublisher(js StreamPublisher, cfg StreamConfig, clock clockwork.Clock) *JetStreamPublisher {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &JetStreamPublisher{js: js, config: cfg, clock: clock}
}

func ensureStream(ctx context.Context, js jetstream.JetStream, cfg StreamConfig) error {
	sc := jetstream.StreamConfig{
		Name:        cfg.StreamName,
		Description: "Timer group state change events",
		Subjects:    []string{fmt.Sprintf("%s.>", cfg.SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      cfg.MaxAge,
		MaxMsgs:     cfg.MaxMsgs,
		Storage:     jetstream.FileStorage,
		Replicas:    cfg.Replicas,
		Duplicates:  cfg.DuplicateWindow,
	}

	stream, err := js.Stream(ctx, cfg.StreamName)
	if err != nil {
		if _, err = js.CreateStream(ctx, sc); err != nil {
			return fmt.Errorf("create stream: %w", err)
		}
		log.Info().
			Str("stream", cfg.StreamName).
			Msg("created JetStream stream")
		return nil
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("get stream info: %w", err)
	}
	if !isStreamConfigEqual(info.Config, sc) {
		if _, err = js.UpdateStream(ctx, sc); err != nil {
			return fmt.Errorf("update stream: %w", err)
		}
		log.Info().
			Str("stream", cfg.StreamName).
			Msg("updated JetStream stream")
	}
	return nil
}

// Subject returns the subject a group's state changes are published on
func (p *JetStreamPublisher) Subject(code string) string {
	return fmt.Sprintf("%s.%s", p.config.SubjectPrefix, code)
}

// PublishStateChanged publishes one state change. Each call gets a fresh event id,
// which is also the JetStream dedup id.
func (p *JetStreamPublisher) PublishStateChanged(ctx context.Context, payload StateChangedPayload) error {
	eventID := uuid.New().String()
	subject := p.Subject(payload.Code)

	env := map[string]interface{}{
		"eventId":   eventID,
		"eventType": EventTypeStateChanged,
		"code":      payload.Code,
		"timestamp": p.clock.Now().UTC(),
		"payload":   payload,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ack, err := p.js.PublishMsg(ctx, &nats.Msg{
		Subject: subject,
		Data:    data,
		Header: nats.Header{
			"Event-Type": []string{EventTypeStateChanged},
			"Group-Code": []string{payload.Code},
			"Event-ID":   []string{eventID},
		},
	},
		jetstream.WithMsgID(eventID),
		jetstream.WithExpectStream(p.config.StreamName),
	)
	if err != nil {
		return fmt.Errorf("publish to JetStream: %w", err)
	}

	log.Debug().
		Str("subject", subject).
		Str("event_id", eventID).
		Uint64("sequence", ack.Sequence).
		Str("stream", ack.Stream).
		Msg("published to JetStream")

	return nil
}

func isStreamConfigEqual(a, b jetstream.StreamConfig) bool {
	return a.Name == b.Name &&
		a.MaxAge == b.MaxAge &&
		a.MaxMsgs == b.MaxMsgs &&
		a.Replicas == b.Replicas &&
		a.Duplicates == b.Duplicates
}

// NoOpPublisher drops every event
type NoOpPublisher struct{}

func (NoOpPublisher) PublishStateChanged(ctx context.Context, payload StateChangedPayload) error {
	return nil
}
