package changefeed

import (
	"context"
	"strings"
	"sync"

	"github.com/vidfriends/videosync/internal/models"
)

// Hub fans change events out to in-process subscribers of the same owner.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]Handler
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]Handler)}
}

// Subscribe registers handler for ownerID's events.
func (h *Hub) Subscribe(_ context.Context, ownerID string, handler Handler) (Subscription, error) {
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if handler == nil {
		handler = func(models.ChangeEvent) {}
	}

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[ownerID] == nil {
		h.subs[ownerID] = make(map[uint64]Handler)
	}
	h.subs[ownerID][id] = handler
	h.mu.Unlock()

	return &hubSubscription{hub: h, owner: ownerID, id: id, done: make(chan struct{})}, nil
}

// Publish delivers ev to every subscriber of ev.OwnerID and returns the number
// of deliveries. Handlers run on the caller's goroutine, so each subscriber
// sees events in Publish order.
func (h *Hub) Publish(ev models.ChangeEvent) int {
	h.mu.RLock()
	handlers := make([]Handler, 0, len(h.subs[ev.OwnerID]))
	for _, handler := range h.subs[ev.OwnerID] {
		handlers = append(handlers, handler)
	}
	h.mu.RUnlock()

	for _, handler := range handlers {
		handler(ev)
	}
	return len(handlers)
}

// Subscribers returns the number of live subscriptions for ownerID.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ownerID])
}

func (h *Hub) remove(ownerID string, id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[ownerID], id)
	if len(h.subs[ownerID]) == 0 {
		delete(h.subs, ownerID)
	}
}

type hubSubscription struct {
	hub   *Hub
	owner string
	id    uint64
	once  sync.Once
	done  chan struct{}
}

func (s *hubSubscription) Close() error {
	s.once.Do(func() {
		s.hub.remove(s.owner, s.id)
		close(s.done)
	})
	return nil
}

func (s *hubSubscription) Done() <-chan struct{} {
	return s.done
}
