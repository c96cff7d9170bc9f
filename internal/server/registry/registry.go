// Package registry tracks which identities currently have an open session.
// It is the duplicate-login guard: an identity can be inserted at most once,
// and stays present exactly as long as its originating session is open.
package registry

import (
	"net"
	"sync"
)

type entry struct {
	conn net.Conn
	addr string
}

// Registry is a single map behind one mutex. The raw map is never exposed;
// callers interact only through atomic operations so no handle can outlive
// its session.
type Registry struct {
	mu               sync.Mutex
	sessions         map[string]entry
	totalConnections int
}

func New() *Registry {
	return &Registry{sessions: make(map[string]entry)}
}

// TryInsert claims the identity for a session. It returns false when the
// identity already has an open session; the caller must then refuse the
// login rather than evict the existing session.
func (r *Registry) TryInsert(identity string, conn net.Conn, addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[identity]; exists {
		return false
	}
	r.sessions[identity] = entry{conn: conn, addr: addr}
	return true
}

// Remove releases the identity. Removing an absent identity is a no-op so
// every teardown path can call it unconditionally.
func (r *Registry) Remove(identity string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, identity)
}

// Count returns the number of open sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot returns a copy of the connected identities. Connection handles
// are deliberately not exposed: the copy is taken under the lock and the
// lock released before any caller I/O, so a session closing concurrently
// cannot race a snapshot consumer into a dead handle.
func (r *Registry) Snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	identities := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		identities = append(identities, id)
	}
	return identities
}

// NoteConnection counts an accepted connection, authenticated or not.
func (r *Registry) NoteConnection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.totalConnections++
}

// TotalConnections returns the number of connections accepted since start.
func (r *Registry) TotalConnections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totalConnections
}
