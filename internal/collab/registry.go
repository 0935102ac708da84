package collab

import "sync"

// Registry is the single source of truth for which users are online. At most
// one connection is tracked per user id; a later login for the same id
// supersedes the earlier mapping.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Client)}
}

// Register binds a connection to a user id, overwriting any prior handle.
// The superseded connection is not closed here; its own teardown handles it.
func (r *Registry) Register(userID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = c
}

// Unregister removes the mapping, but only if it still points at the given
// client. A stale disconnect from a superseded connection must not evict the
// connection that replaced it. Idempotent.
func (r *Registry) Unregister(userID string, c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.sessions[userID]; ok && current == c {
		delete(r.sessions, userID)
	}
}

func (r *Registry) Lookup(userID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[userID]
}

// Username resolves a display name through the registered session. Falls
// back to the user id when the user is not connected.
func (r *Registry) Username(userID string) string {
	r.mu.RLock()
	c := r.sessions[userID]
	r.mu.RUnlock()
	if c != nil {
		if s := c.Session(); s != nil {
			return s.Username
		}
	}
	return userID
}

// All returns a snapshot of every online (userID, client) pair.
func (r *Registry) All() map[string]*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snapshot := make(map[string]*Client, len(r.sessions))
	for id, c := range r.sessions {
		snapshot[id] = c
	}
	return snapshot
}
