package registry

import (
	"errors"
	"sync"
)

var (
	// ErrNotFound is returned by Unsubscribe when no entry has the given identity.
	ErrNotFound = errors.New("registry: subscriber not found")

	// ErrConnClosed is returned by Conn.Send when the underlying transport is gone.
	// Callers treat it as a close notification for that entry.
	ErrConnClosed = errors.New("connection closed")
)

// Conn is the non-owning handle the registry keeps for each subscriber.
// Send must not block on network I/O.
type Conn interface {
	Send(data []byte) error
}

// Entry is one subscribed connection and its assigned identity.
type Entry struct {
	ID   int64
	Conn Conn
}

// Registry is a thread-safe, insertion-ordered set of subscribers.
type Registry struct {
	mu      sync.RWMutex
	next    int64
	entries []Entry
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{}
}

// Subscribe appends c and returns the identity assigned to it.
func (r *Registry) Subscribe(c Conn) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	r.entries = append(r.entries, Entry{ID: id, Conn: c})
	return id
}

// Unsubscribe removes the entry with the given identity.
func (r *Registry) Unsubscribe(id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.ID == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// Lookup returns the connection registered under id.
func (r *Registry) Lookup(id int64) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.ID == id {
			return e.Conn, true
		}
	}
	return nil, false
}

// Snapshot returns a copy of the current entries in subscription order. The
// returned slice is safe to iterate while other goroutines mutate the registry.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// IDs returns the identities of all current entries in subscription order.
func (r *Registry) IDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int64, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.ID)
	}
	return out
}

// Len returns the number of current subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Clear drops every entry and returns how many were removed. The identity
// counter is not reset.
func (r *Registry) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = nil
	return n
}
