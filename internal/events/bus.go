// Package events is a small in-process publish/subscribe channel scoped per
// user, used by the sidebar components to talk to each other.
package events

import (
	"sync"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
)

// EventKind represents the type of sidebar event.
type EventKind string

const (
	// EventThreadInserted carries a provisional thread for the live view.
	EventThreadInserted EventKind = "thread_inserted"
	// EventThreadRemoved drops a thread from the live view.
	EventThreadRemoved EventKind = "thread_removed"
	// EventInvalidated means the user's cache facets were cleared.
	EventInvalidated EventKind = "invalidated"
	// EventRevalidated means a background fetch replaced the cached data.
	EventRevalidated EventKind = "revalidated"
)

// Event is delivered to subscribers of UserID.
type Event struct {
	Kind     EventKind
	UserID   string
	Thread   *model.Thread      // EventThreadInserted
	ThreadID string             // EventThreadRemoved
	Data     *model.SidebarData // EventRevalidated
	Key      string             // EventRevalidated: the cache key that was replaced
}

// Bus fans events out to per-user subscribers over buffered channels.
type Bus struct {
	mu     sync.Mutex
	buffer int
	subs   map[string]map[*subscription]struct{}
}

type subscription struct {
	ch     chan Event
	closed bool
}

// NewBus creates a bus whose subscriber channels hold up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 16
	}
	return &Bus{buffer: buffer, subs: make(map[string]map[*subscription]struct{})}
}

// Publish delivers evt to every subscriber of evt.UserID without blocking.
// It returns how many subscribers accepted the event; a full subscriber drops it.
func (b *Bus) Publish(evt Event) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for s := range b.subs[evt.UserID] {
		select {
		case s.ch <- evt:
			n++
		default:
		}
	}
	return n
}

// Subscribe returns a channel of events for userID and a cancel func that
// unsubscribes and closes the channel. Cancel is safe to call more than once.
func (b *Bus) Subscribe(userID string) (<-chan Event, func()) {
	s := &subscription{ch: make(chan Event, b.buffer)}
	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[*subscription]struct{})
	}
	b.subs[userID][s] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if s.closed {
			return
		}
		s.closed = true
		delete(b.subs[userID], s)
		if len(b.subs[userID]) == 0 {
			delete(b.subs, userID)
		}
		close(s.ch)
	}
	return s.ch, cancel
}

// Subscribers returns the number of live subscriptions for userID.
func (b *Bus) Subscribers(userID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[userID])
}
