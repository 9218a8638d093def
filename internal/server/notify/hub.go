// Package notify fans out per-user change notifications to live subscribers
// such as websocket connections.
package notify

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/mindnote/internal/logging"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 8

// Event tells a subscriber that the user's data reached Version.
type Event struct {
	Version int64 `json:"version"`
}

type subscriber struct {
	ch chan Event
}

// Hub delivers events to every subscriber of a user. Publish never blocks:
// when a subscriber's buffer is full the event is dropped for that
// subscriber only. Versions are monotonic, so a later event supersedes it.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[*subscriber]struct{}
	buffer int
	logger logging.Logger
	closed bool
}

func NewHub(buffer int, logger logging.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	return &Hub{
		subs:   make(map[string]map[*subscriber]struct{}),
		buffer: buffer,
		logger: logger.With("module", "notify"),
	}
}

// Subscribe registers a listener for userID. The returned cancel func
// unregisters it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(userID string) (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := &subscriber{ch: make(chan Event, h.buffer)}
	if h.closed {
		close(s.ch)
		return s.ch, func() {}
	}
	set, ok := h.subs[userID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[userID] = set
	}
	set[s] = struct{}{}

	var once sync.Once
	return s.ch, func() {
		once.Do(func() { h.remove(userID, s) })
	}
}

func (h *Hub) remove(userID string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[userID]
	if !ok {
		return
	}
	if _, ok := set[s]; !ok {
		return
	}
	delete(set, s)
	close(s.ch)
	if len(set) == 0 {
		delete(h.subs, userID)
	}
}

// Publish sends version to all of userID's subscribers.
func (h *Hub) Publish(userID string, version int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs[userID] {
		select {
		case s.ch <- Event{Version: version}:
		default:
			h.logger.Warn(context.Background(), "dropping change event for slow subscriber", "user", userID, "version", version)
		}
	}
}

// Subscribers reports how many listeners userID has.
func (h *Hub) Subscribers(userID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[userID])
}

// Close disconnects every subscriber. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for user, set := range h.subs {
		for s := range set {
			close(s.ch)
		}
		delete(h.subs, user)
	}
}
