package realtimesvc

import (
	"context"
	"sync"

	"github.com/trezcool/darasa/core"
)

const subscriberBuffer = 16

// Bus carries Events between API instances.
type Bus interface {
	Publish(ctx context.Context, evt core.Event) error
	StartForwarder(ctx context.Context, onEvent func(core.Event)) error
}

type subscriber struct {
	userID string
	events chan core.Event
}

// Hub fans Events out to the subscribers of this process.
// With a Bus, published Events take a round trip through it so every instance sees them.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscriber]struct{}
	bus    Bus
	logger core.Logger
}

var _ core.EventPublisher = (*Hub)(nil)

func NewHub(logger core.Logger) *Hub {
	return &Hub{subs: make(map[*subscriber]struct{}), logger: logger}
}

// NewBusHub returns a Hub publishing through bus. Call Start before publishing.
func NewBusHub(bus Bus, logger core.Logger) *Hub {
	h := NewHub(logger)
	h.bus = bus
	return h
}

// Start forwards Events received from the bus to local subscribers.
func (h *Hub) Start(ctx context.Context) error {
	if h.bus == nil {
		return nil
	}
	return h.bus.StartForwarder(ctx, h.broadcast)
}

func (h *Hub) Publish(ctx context.Context, evt core.Event) error {
	if h.bus != nil {
		return h.bus.Publish(ctx, evt)
	}
	h.broadcast(evt)
	return nil
}

// Subscribe returns the Events addressed to userID (or public), until ctx is done.
func (h *Hub) Subscribe(ctx context.Context, userID string) <-chan core.Event {
	sub := &subscriber{userID: userID, events: make(chan core.Event, subscriberBuffer)}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs, sub)
		close(sub.events)
		h.mu.Unlock()
	}()
	return sub.events
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) broadcast(evt core.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !evt.Addressed(sub.userID) {
			continue
		}
		select {
		case sub.events <- evt:
		default:
			h.logger.Warn("dropping realtime event; subscriber buffer full", map[string]interface{}{
				"table":   evt.Table,
				"type":    evt.Type,
				"user_id": sub.userID,
			})
		}
	}
}
