package notify

import (
	"context"
	"errors"
	"sync"

	"hailo/internal/domain/ride"
	"hailo/internal/general/logger"
	"hailo/internal/ports"
)

// DefaultBuffer is the per-subscription queue length.
const DefaultBuffer = 16

var ErrHubClosed = errors.New("notifier hub closed")

// Hub is an in-process Notifier. Each subscription owns a buffered channel; a publish that
// finds the buffer full drops the update for that subscriber.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]map[*subscription]struct{}
	closed bool
	buffer int
	log    *logger.Logger
}

// NewHub constructs a hub with DefaultBuffer-sized subscriptions.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		topics: make(map[string]map[*subscription]struct{}),
		buffer: DefaultBuffer,
		log:    log,
	}
}

var _ ports.Notifier = (*Hub)(nil)

// Publish delivers update to every subscriber of its topics without blocking.
func (h *Hub) Publish(ctx context.Context, update ride.Update) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrHubClosed
	}

	for _, topic := range update.Topics() {
		for sub := range h.topics[topic] {
			select {
			case sub.ch <- update:
			default:
				h.log.Debug(ctx, "notify_dropped", "subscriber buffer full, update dropped", map[string]any{
					"topic":   topic,
					"ride_id": update.RideID,
					"status":  update.Status,
				})
			}
		}
	}
	return nil
}

// Subscribe registers a subscription on topic.
func (h *Hub) Subscribe(ctx context.Context, topic string) (ports.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &subscription{hub: h, topic: topic, ch: make(chan ride.Update, h.buffer)}
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[*subscription]struct{})
	}
	h.topics[topic][sub] = struct{}{}
	return sub, nil
}

// Subscribers returns the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Close releases every subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	for topic, subs := range h.topics {
		for sub := range subs {
			sub.closeLocked()
		}
		delete(h.topics, topic)
	}
	return nil
}

func (h *Hub) remove(sub *subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subs, ok := h.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.topics, sub.topic)
		}
	}
	sub.closeLocked()
}

type subscription struct {
	hub    *Hub
	topic  string
	ch     chan ride.Update
	closed bool // guarded by hub.mu
}

func (s *subscription) Updates() <-chan ride.Update {
	return s.ch
}

func (s *subscription) Close() error {
	s.hub.remove(s)
	return nil
}

func (s *subscription) closeLocked() {
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
