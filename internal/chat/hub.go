// Package chat fans mailbox events out to connected subscribers.
package chat

import (
	"sync"

	"brokerdesk-go/internal/metrics"
	"brokerdesk-go/internal/models"

	"go.uber.org/zap"
)

type EventType string

const (
	EventMessage EventType = "message"
	EventRead    EventType = "read"
)

// Event is pushed to every subscriber watching the mailbox.
type Event struct {
	Type    EventType           `json:"type"`
	UserId  string              `json:"userId"`
	Message *models.ChatMessage `json:"message,omitempty"`
	Reader  models.Sender       `json:"reader,omitempty"`
	Count   int                 `json:"count,omitempty"`
}

type subscriber struct {
	userId  string
	ch      chan Event
	dropped int
}

// Hub is an in-process publisher. Slow subscribers lose events rather than block publishers.
type Hub struct {
	mu      sync.Mutex
	subs    map[uint64]*subscriber
	nextId  uint64
	buffer  int
	closed  bool
	metrics *metrics.Metrics
}

func NewHub(buffer int, m *metrics.Metrics) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{subs: map[uint64]*subscriber{}, buffer: buffer, metrics: m}
}

// Subscription delivers events on C until Close is called or the hub shuts down.
type Subscription struct {
	C    <-chan Event
	id   uint64
	hub  *Hub
	once sync.Once
}

// Subscribe watches one mailbox; an empty userId watches all of them.
func (h *Hub) Subscribe(userId string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan Event, h.buffer)
	if h.closed {
		close(ch)
		return &Subscription{C: ch, hub: h}
	}
	h.nextId++
	id := h.nextId
	h.subs[id] = &subscriber{userId: userId, ch: ch}
	if h.metrics != nil {
		h.metrics.HubSubscribers.Inc()
	}
	return &Subscription{C: ch, id: id, hub: h}
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.remove(s.id)
	})
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	sub, ok := h.subs[id]
	if !ok {
		return
	}
	delete(h.subs, id)
	close(sub.ch)
	if h.metrics != nil {
		h.metrics.HubSubscribers.Dec()
	}
}

// Publish delivers ev to every matching subscriber without blocking.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subs {
		if sub.userId != "" && sub.userId != ev.UserId {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			sub.dropped++
			zap.L().Warn("Dropping chat event for slow subscriber",
				zap.Uint64("subscriber_id", id),
				zap.String("user_id", ev.UserId),
				zap.Int("dropped", sub.dropped))
		}
	}
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, sub := range h.subs {
		close(sub.ch)
		delete(h.subs, id)
		if h.metrics != nil {
			h.metrics.HubSubscribers.Dec()
		}
	}
}
