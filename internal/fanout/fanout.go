package fanout

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wisko/chess-arena/internal/obslog"
)

// In-process pub/sub used for every server→client push. Delivery is
// best-effort and at-most-once: a subscriber not registered at publish time
// never sees the event, and a subscriber whose buffer is full drops it.

const (
	GroupGlobal = "global"

	defaultBuffer = 32
)

// GameGroup returns the group key for a game's broadcast group.
func GameGroup(gameID string) string { return "game:" + gameID }

// UserGroup returns the group key for a user's connections.
func UserGroup(userID string) string { return "user:" + userID }

// Subscriber is one live connection's delivery queue. The owning connection
// drains C and writes frames to the socket.
type Subscriber struct {
	C chan any

	mu     sync.Mutex
	closed bool
}

func NewSubscriber() *Subscriber {
	return &Subscriber{C: make(chan any, defaultBuffer)}
}

// deliver enqueues without blocking. Returns false when the buffer is full
// or the subscriber is closed.
func (s *Subscriber) deliver(event any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.C <- event:
		return true
	default:
		return false
	}
}

// Offer enqueues an event addressed to this subscriber alone, bypassing the
// groups. Used for sender-only error frames; same non-blocking contract as
// group delivery.
func (s *Subscriber) Offer(event any) bool { return s.deliver(event) }

// Close stops delivery and closes C. Safe to call once the subscriber has
// been removed from all groups.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.C)
}

type Hub struct {
	mu     sync.RWMutex
	groups map[string]map[*Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{groups: make(map[string]map[*Subscriber]struct{})}
}

func (h *Hub) Subscribe(key string, sub *Subscriber) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[key]
	if !ok {
		g = make(map[*Subscriber]struct{})
		h.groups[key] = g
	}
	g[sub] = struct{}{}
}

func (h *Hub) Unsubscribe(key string, sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[key]
	if !ok {
		return
	}
	delete(g, sub)
	if len(g) == 0 {
		delete(h.groups, key)
	}
}

// Publish fans the event out to every subscriber currently in the group.
func (h *Hub) Publish(key string, event any) {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.groups[key]))
	for s := range h.groups[key] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	dropped := 0
	for _, s := range subs {
		if !s.deliver(event) {
			dropped++
		}
	}
	if dropped > 0 {
		obslog.L().Warn("fanout_drop", zap.String("group", key), zap.Int("dropped", dropped))
	}
}

// GroupSize reports current membership, for tests and the stats endpoint.
func (h *Hub) GroupSize(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[key])
}
