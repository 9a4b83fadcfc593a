// Package game holds the shared mutable state of a quiz server: the
// display-name registry, the global game-state machine and the
// scoreboard. Each component guards its state with its own mutex and
// never holds a lock across network I/O.
package game

import (
	"sort"
	"sync"
)

// Conn is the write side of a registered player connection, used for
// broadcasts. Implementations must be safe for concurrent use.
type Conn interface {
	WriteLine(line string) error
	Close() error
}

// NameRegistry is a thread-safe bijection from unique display name to
// the player's active connection.
//
// Multiple goroutines may invoke methods on a NameRegistry
// simultaneously.
type NameRegistry struct {
	mu    sync.Mutex
	conns map[string]Conn
}

// NewNameRegistry returns an empty registry.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{conns: map[string]Conn{}}
}

// Exists reports whether a name is currently registered.
func (r *NameRegistry) Exists(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.conns[name]
	return ok
}

// Add registers a connection under a name, overwriting any previous
// association.
func (r *NameRegistry) Add(name string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[name] = conn
}

// Reserve atomically registers a connection under a name only if the
// name is free. Concurrent handshakes for the same name see exactly
// one winner.
func (r *NameRegistry) Reserve(name string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.conns[name]; ok {
		return false
	}
	r.conns[name] = conn
	return true
}

// Remove drops a name's registration if present.
func (r *NameRegistry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, name)
}

// Names returns the registered names in sorted order.
func (r *NameRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.conns))
	for name := range r.conns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllConnections snapshots every registered connection, for
// broadcasts performed outside the registry lock.
func (r *NameRegistry) AllConnections() []Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := make([]Conn, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	return conns
}

// ClearAll frees every name for reuse.
func (r *NameRegistry) ClearAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns = map[string]Conn{}
}
