package memory

import (
	"context"
	"sync"

	"watchparty-quiz/internal/domain"
)

const subscriberBuffer = 16

// Hub fans invalidations out to in-process subscribers, per room. It is the
// notifier for single-instance deployments and the local delivery end of the
// Redis, Postgres and RabbitMQ notifiers.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[chan domain.Invalidation]struct{}
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[chan domain.Invalidation]struct{})}
}

// Invalidate implements app.Notifier.
func (h *Hub) Invalidate(_ context.Context, roomID string, topic domain.Topic) error {
	h.Publish(domain.Invalidation{RoomID: roomID, Topic: topic})
	return nil
}

// Publish delivers inv to every subscriber of its room without blocking.
func (h *Hub) Publish(inv domain.Invalidation) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.rooms[inv.RoomID] {
		select {
		case ch <- inv:
		default:
			// Slow subscriber: drop its oldest pending signal to make room.
			select {
			case <-ch:
			default:
			}
			ch <- inv
		}
	}
}

// Subscribe registers a buffered channel for roomID. The caller must invoke
// the returned cancel function to avoid leaks.
func (h *Hub) Subscribe(roomID string) (<-chan domain.Invalidation, func()) {
	ch := make(chan domain.Invalidation, subscriberBuffer)

	h.mu.Lock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[chan domain.Invalidation]struct{})
	}
	h.rooms[roomID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		subs := h.rooms[roomID]
		if _, ok := subs[ch]; !ok {
			return
		}
		delete(subs, ch)
		close(ch)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
	return ch, cancel
}

// Subscribers reports how many channels listen on roomID.
func (h *Hub) Subscribers(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}
