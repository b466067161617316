package engine

import (
	"log/slog"
	"sync"
	"time"

	"github.com/chartglass/overlay/internal/lineset"
	"github.com/chartglass/overlay/internal/winsys"
)

// EventKind discriminates engine notifications.
type EventKind string

const (
	// EventDrawingState fires on every transition of frame production:
	// start, stop, pause, resume, and target loss.
	EventDrawingState EventKind = "drawing_state_changed"
	// EventFollowingState fires when window-following is toggled or the
	// session is re-targeted.
	EventFollowingState EventKind = "window_following_state_changed"
	// EventLinesUpdated fires once per line-set mutation.
	EventLinesUpdated EventKind = "prediction_lines_updated"
)

// Event is one outbound notification. Fields beyond Kind/Timestamp/
// Description are populated per kind.
type Event struct {
	Kind        EventKind `json:"kind"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`

	Running bool `json:"running,omitempty"`

	FollowingEnabled bool          `json:"following_enabled,omitempty"`
	TargetHandle     winsys.Handle `json:"target_handle,omitempty"`

	PreviousCount int                `json:"previous_count,omitempty"`
	CurrentCount  int                `json:"current_count,omitempty"`
	UpdateKind    lineset.UpdateKind `json:"update_kind,omitempty"`
}

// Hub multicasts events to any number of subscribers. Publication never
// blocks; a subscriber that stops draining loses events rather than stalling
// the engine.
type Hub struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener. The returned cancel func is idempotent.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish fans the event out to all current subscribers.
func (h *Hub) Publish(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	h.mu.Lock()
	subs := make([]chan Event, 0, len(h.subs))
	for _, ch := range h.subs {
		subs = append(subs, ch)
	}
	h.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			slog.Debug("engine event dropped, subscriber lagging", "kind", ev.Kind)
		}
	}
}
