package syncagent

import (
	"sync"
	"time"

	"github.com/mcdev12/countdown/go/internal/models"
	"github.com/rs/zerolog/log"
)

// MessageKind distinguishes state pushes from join-time sync requests
type MessageKind string

const (
	MessageState       MessageKind = "state"
	MessageSyncRequest MessageKind = "sync_request"
)

// Message is what tabs exchange on a group's channel
type Message struct {
	Kind    MessageKind        `json:"kind"`
	Code    string             `json:"code"`
	FromTab string             `json:"fromTab"`
	State   *models.TimerState `json:"state,omitempty"`
	ETag    string             `json:"etag,omitempty"`
	SentAt  time.Time          `json:"sentAt"`
}

// ChannelName returns the broadcast channel for a group
func ChannelName(code string) string { return "timer-group:" + code }

const subscriptionBuffer = 16

// Subscription receives messages published on one channel by other tabs
type Subscription struct {
	C       <-chan Message
	send    chan Message
	tabID   string
	channel string
	hub     *Hub
}

// Close stops delivery to this subscription
func (s *Subscription) Close() {
	s.hub.unsubscribe(s)
}

// Hub fans messages out to every subscriber of a channel except the sender
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Subscription]bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*Subscription]bool)}
}

// Subscribe registers tabID on channel
func (h *Hub) Subscribe(channel, tabID string) *Subscription {
	send := make(chan Message, subscriptionBuffer)
	sub := &Subscription{C: send, send: send, tabID: tabID, channel: channel, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Subscription]bool)
	}
	h.channels[channel][sub] = true
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[sub.channel]
	if !ok || !subs[sub] {
		return
	}
	delete(subs, sub)
	close(sub.send)
	if len(subs) == 0 {
		delete(h.channels, sub.channel)
	}
}

// Publish delivers msg to every other subscriber on channel. Subscribers with a
// full buffer miss the message.
func (h *Hub) Publish(channel string, msg Message) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for sub := range h.channels[channel] {
		if sub.tabID == msg.FromTab {
			continue
		}
		select {
		case sub.send <- msg:
			delivered++
		default:
			log.Warn().
				Str("channel", channel).
				Str("tab_id", sub.tabID).
				Msg("subscriber buffer full, dropping message")
		}
	}
	return delivered
}

// Subscribers returns how many subscriptions channel has
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}
