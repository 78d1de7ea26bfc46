// Package presence tracks which users currently hold a live realtime
// connection. Each user has at most one handle; the most recent
// registration wins.
package presence

import (
	"sort"
	"sync"

	"github.com/eldtechnologies/chatterbox/internal/metrics"
)

// Handle is a live connection that can receive named events.
type Handle interface {
	Send(event string, payload any) error
}

// Registry maps user IDs to their current handle.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]Handle)}
}

// Register binds h to userID and returns the handle it replaced, if any.
// The replaced handle is not closed.
func (r *Registry) Register(userID string, h Handle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev := r.handles[userID]
	r.handles[userID] = h
	r.publish()
	return prev
}

// Unregister removes userID regardless of which handle is bound.
func (r *Registry) Unregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handles, userID)
	r.publish()
}

// Release removes userID only while it is still bound to h, so a
// connection closing late cannot evict its replacement.
func (r *Registry) Release(userID string, h Handle) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.handles[userID]
	if !ok || cur != h {
		return false
	}
	delete(r.handles, userID)
	r.publish()
	return true
}

// publish updates the online gauge. Callers hold mu so updates land in
// mutation order.
func (r *Registry) publish() {
	metrics.OnlineUsers.Set(float64(len(r.handles)))
}

// Lookup returns the handle bound to userID.
func (r *Registry) Lookup(userID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[userID]
	return h, ok
}

// Online returns the sorted IDs of every registered user.
func (r *Registry) Online() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.handles))
	for id := range r.handles {
		ids = append(ids, id)
	}
	r.mu.RUnlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
