package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeStream) PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.msgs = append(f.msgs, msg)
	return &jetstream.PubAck{Stream: "TIMER_EVENTS", Sequence: uint64(len(f.msgs))}, nil
}

type fakeCore struct {
	subjects []string
	data     [][]byte
	err      error
}

func (f *fakeCore) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.data = append(f.data, data)
	return nil
}

func TestJetStreamPublisher_PublishStateChanged(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	stream := &fakeStream{}
	p := newPublisher(stream, DefaultStreamConfig(), clock)

	err := p.PublishStateChanged(context.Background(), StateChangedPayload{
		Code:      "ABC234",
		Action:    "start",
		ActorID:   "owner",
		State:     models.TimerState{Mode: models.TimerModeRunning, UpdatedAt: clock.Now()},
		ETag:      `"abc"`,
		ChangedAt: clock.Now(),
	})
	require.NoError(t, err)
	require.Len(t, stream.msgs, 1)

	msg := stream.msgs[0]
	assert.Equal(t, "timer.events.ABC234", msg.Subject)
	assert.Equal(t, EventTypeStateChanged, msg.Header.Get("Event-Type"))
	assert.Equal(t, "ABC234", msg.Header.Get("Group-Code"))
	assert.NotEmpty(t, msg.Header.Get("Event-ID"))

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Contains(t, env, "payload")
	assert.JSONEq(t, `"ABC234"`, string(env["code"]))
}

func TestJetStreamPublisher_UniqueEventIDs(t *testing.T) {
	stream := &fakeStream{}
	p := newPublisher(stream, DefaultStreamConfig(), clockwork.NewFakeClock())

	for i := 0; i < 2; i++ {
		require.NoError(t, p.PublishStateChanged(context.Background(), StateChangedPayload{Code: "ABC234"}))
	}
	require.Len(t, stream.msgs, 2)
	assert.NotEqual(t, stream.msgs[0].Header.Get("Event-ID"), stream.msgs[1].Header.Get("Event-ID"))
}

func TestJetStreamPublisher_PublishError(t *testing.T) {
	stream := &fakeStream{err: errors.New("no responders")}
	p := newPublisher(stream, DefaultStreamConfig(), nil)

	err := p.PublishStateChanged(context.Background(), StateChangedPayload{Code: "ABC234"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish to JetStream")
}

func TestNATSPresence_RecordPresence(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	core := &fakeCore{}
	p := NewNATSPresence(core, "", clock)

	p.RecordPresence("ABC234", "viewer-1")

	require.Len(t, core.subjects, 1)
	assert.Equal(t, "timer.presence.ABC234", core.subjects[0])

	var payload PresencePayload
	require.NoError(t, json.Unmarshal(core.data[0], &payload))
	assert.Equal(t, "viewer-1", payload.ActorID)
	assert.True(t, payload.LastSeen.Equal(clock.Now()))
}

func TestNATSPresence_PublishFailureIsSwallowed(t *testing.T) {
	core := &fakeCore{err: nats.ErrConnectionClosed}
	p := NewNATSPresence(core, "custom.presence", nil)

	assert.NotPanics(t, func() { p.RecordPresence("ABC234", "viewer-1") })
	assert.Empty(t, core.subjects)
}
