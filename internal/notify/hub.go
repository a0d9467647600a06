// Package notify fans derived statuses out to live subscribers. The hub is
// deliberately lossy: a slow subscriber drops updates instead of ever blocking
// the engine's mutation path.
package notify

import (
	"sync"

	"go.uber.org/zap"

	"github.com/udo-labs/udo-engine/internal/model"
)

const subscriberBuffer = 16

// Subscription is one listener's feed of status updates. Close it via the
// cancel function returned by Subscribe.
type Subscription struct {
	// C delivers statuses. Closed when the subscription is cancelled.
	C <-chan model.Status

	// ProjectID filters the feed to one project; empty means all projects.
	ProjectID string

	id uint64
	ch chan model.Status
}

// Hub broadcasts statuses to all active subscriptions.
type Hub struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*Subscription
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscription)}
}

// Subscribe registers a listener. An empty projectID receives every project.
// The returned cancel function is idempotent and closes the channel.
func (h *Hub) Subscribe(projectID string) (*Subscription, func()) {
	ch := make(chan model.Status, subscriberBuffer)

	h.mu.Lock()
	h.nextID++
	sub := &Subscription{C: ch, ProjectID: projectID, id: h.nextID, ch: ch}
	h.subs[sub.id] = sub
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, sub.id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return sub, cancel
}

// Publish delivers st to every matching subscription without blocking. Full
// subscriber buffers drop the update.
func (h *Hub) Publish(st model.Status) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sub := range h.subs {
		if sub.ProjectID != "" && sub.ProjectID != st.ProjectID {
			continue
		}
		select {
		case sub.ch <- st:
		default:
			zap.L().Warn("dropping status update for slow subscriber",
				zap.String("project_id", st.ProjectID),
				zap.Uint64("subscriber", sub.id))
		}
	}
}

// Subscribers reports the number of active subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
