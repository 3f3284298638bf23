package services

import (
	"sync"

	"github.com/google/uuid"
	"github.com/username/aegisnode/backend/src/logger"
	"github.com/username/aegisnode/backend/src/models"
)

// subscriberBuffer bounds how far a slow dashboard client may lag before it
// is dropped.
const subscriberBuffer = 256

// DashboardHub fans the simulation event stream out to passively subscribed
// dashboard observers. Delivery is best-effort per observer: a subscriber
// that can't keep up is deregistered without affecting the others or the
// run's progress. Per-subscriber ordering follows broadcast order (FIFO
// channels, single broadcasting run at a time).
type DashboardHub struct {
	mu   sync.Mutex
	subs map[uuid.UUID]chan models.Event
}

func NewDashboardHub() *DashboardHub {
	return &DashboardHub{subs: make(map[uuid.UUID]chan models.Event)}
}

// Subscribe registers a new observer and returns its id and event channel.
// The channel is closed when the observer is dropped or unsubscribes.
func (h *DashboardHub) Subscribe() (uuid.UUID, <-chan models.Event) {
	id := uuid.New()
	ch := make(chan models.Event, subscriberBuffer)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	logger.L.Debug("Dashboard subscriber connected", "subscriberId", id, "subscribers", h.Count())
	return id, ch
}

// Unsubscribe removes an observer. Safe to call for an already-dropped id.
func (h *DashboardHub) Unsubscribe(id uuid.UUID) {
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
	h.mu.Unlock()
}

// Count returns the number of active subscribers.
func (h *DashboardHub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Broadcast delivers an event to every subscriber with a non-blocking
// bounded send. Observers whose buffer is full are pruned after iteration,
// never mid-loop.
func (h *DashboardHub) Broadcast(ev models.Event) {
	h.mu.Lock()
	var dead []uuid.UUID
	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			dead = append(dead, id)
		}
	}
	for _, id := range dead {
		close(h.subs[id])
		delete(h.subs, id)
	}
	h.mu.Unlock()
	for _, id := range dead {
		logger.L.Warn("Dropped slow dashboard subscriber", "subscriberId", id)
	}
}
