package presence

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wisko/chess-arena/internal/fanout"
	"github.com/wisko/chess-arena/internal/obslog"
	"github.com/wisko/chess-arena/pkg/arenadto"
)

// Registry tracks which users hold live connections. It is process-local
// state: on restart it is rebuilt from whatever connections re-establish.
// Online/offline transitions fan out on the global group only.

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

type entry struct {
	userID        string
	username      string
	connCount     int
	lastHeartbeat time.Time
	online        bool
	offlineTimer  *time.Timer
}

type Registry struct {
	mu      sync.Mutex
	entries map[string]*entry

	hub     *fanout.Hub
	timeout time.Duration // heartbeat staleness bound
	grace   time.Duration // reconnect debounce before declaring offline

	now func() time.Time
}

func NewRegistry(hub *fanout.Hub, timeout, grace time.Duration) *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		hub:     hub,
		timeout: timeout,
		grace:   grace,
		now:     time.Now,
	}
}

// Register records one more live connection for the user. The first
// connection of an offline user announces the online transition; a register
// landing inside the grace window cancels the pending offline transition
// without re-announcing.
func (r *Registry) Register(userID, username string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		e = &entry{userID: userID, username: username}
		r.entries[userID] = e
	}
	if username != "" {
		e.username = username
	}
	e.connCount++
	e.lastHeartbeat = r.now()
	if e.offlineTimer != nil {
		e.offlineTimer.Stop()
		e.offlineTimer = nil
	}
	if !e.online {
		e.online = true
		r.announce(e.userID, e.username, StatusOnline)
	}
}

// Deregister drops one connection. When the count reaches zero the offline
// transition is debounced by the grace window.
func (r *Registry) Deregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok {
		return
	}
	if e.connCount > 0 {
		e.connCount--
	}
	if e.connCount > 0 || !e.online {
		return
	}
	if e.offlineTimer != nil {
		e.offlineTimer.Stop()
	}
	e.offlineTimer = time.AfterFunc(r.grace, func() { r.expireGrace(userID) })
}

func (r *Registry) expireGrace(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[userID]
	if !ok || e.connCount > 0 {
		return
	}
	delete(r.entries, userID)
	if e.online {
		r.announce(e.userID, e.username, StatusOffline)
	}
}

// Heartbeat refreshes the staleness clock for a user.
func (r *Registry) Heartbeat(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[userID]; ok {
		e.lastHeartbeat = r.now()
	}
}

// UserStatus is one online user as reported by ListOnline.
type UserStatus struct {
	UserID   string
	Username string
}

// ListOnline sweeps stale entries, then returns users currently online,
// excluding excludeUserID.
func (r *Registry) ListOnline(excludeUserID string) []UserStatus {
	r.sweep()

	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UserStatus, 0, len(r.entries))
	for _, e := range r.entries {
		if e.userID == excludeUserID {
			continue
		}
		if e.connCount > 0 && e.online {
			out = append(out, UserStatus{UserID: e.userID, Username: e.username})
		}
	}
	return out
}

// Sweep evicts entries whose heartbeat expired even when no deregister ever
// arrived (ungraceful disconnects).
func (r *Registry) Sweep() { r.sweep() }

func (r *Registry) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-r.timeout)
	for id, e := range r.entries {
		if e.lastHeartbeat.After(cutoff) {
			continue
		}
		if e.offlineTimer != nil {
			e.offlineTimer.Stop()
		}
		delete(r.entries, id)
		if e.online {
			obslog.L().Info("presence_evict_stale", zap.String("user_id", id))
			r.announce(e.userID, e.username, StatusOffline)
		}
	}
}

// RunSweeper evicts stale entries on a ticker until stop is closed.
func (r *Registry) RunSweeper(interval time.Duration, stop <-chan struct{}) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			r.sweep()
		}
	}
}

func (r *Registry) announce(userID, username, status string) {
	obslog.L().Info("presence_changed",
		zap.String("user_id", userID),
		zap.String("status", status),
	)
	r.hub.Publish(fanout.GroupGlobal, arenadto.UserStatus{
		Type:     arenadto.EventUserStatus,
		UserID:   userID,
		Username: username,
		Status:   status,
	})
}
