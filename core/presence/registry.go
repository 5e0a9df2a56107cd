package presence

import "sync"

// Conn is a live bidirectional connection to one employee's client.
type Conn interface {
	// Send queues payload for delivery. It must not block on the network:
	// a client that cannot keep up gets an error instead.
	Send(payload []byte) error
	Close() error
}

// Registry maps an employee id to zero or one live connection.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]Conn)}
}

// Register binds conn to id. A connection previously bound to id is closed first and returned.
func (r *Registry) Register(id string, conn Conn) (superseded Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[id]; ok && old != conn {
		_ = old.Close()
		superseded = old
	}
	r.conns[id] = conn
	return superseded
}

// Unregister removes the binding for id only if conn is the one currently registered,
// so that a stale close cannot evict a fresh reconnect. It reports whether it removed anything.
func (r *Registry) Unregister(id string, conn Conn) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.conns[id]; ok && cur == conn {
		delete(r.conns, id)
		return true
	}
	return false
}

func (r *Registry) Lookup(id string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Connections returns a copy of the current bindings.
func (r *Registry) Connections() map[string]Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conns := make(map[string]Conn, len(r.conns))
	for id, c := range r.conns {
		conns[id] = c
	}
	return conns
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
