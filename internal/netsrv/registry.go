package netsrv

import (
	"net"
	"sync"
	"sync/atomic"

	"github.com/bravecorp/pwo-login-server/internal/logging"
)

// Registry tracks every live connection, assigns each a monotonically
// increasing id, and can force them all closed on shutdown. Mirrors
// ConnectionManager, with its mutex-guarded set replaced by a Go map and
// its global counter by an atomic one.
type Registry struct {
	mu          sync.Mutex
	connections map[uint64]*Connection
	nextID      atomic.Uint64
	log         logging.Logger
}

// NewRegistry returns an empty Registry.
func NewRegistry(log logging.Logger) *Registry {
	if log == nil {
		log = logging.Nop()
	}
	return &Registry{
		connections: make(map[uint64]*Connection),
		log:         log,
	}
}

// Create wraps conn in a Connection with a freshly assigned id and tracks
// it, mirroring ConnectionManager::createConnection.
func (r *Registry) Create(conn net.Conn) *Connection {
	id := r.nextID.Add(1)
	c := newConnection(id, conn, r, r.log)

	r.mu.Lock()
	r.connections[id] = c
	r.mu.Unlock()

	return c
}

func (r *Registry) release(c *Connection) {
	r.mu.Lock()
	delete(r.connections, c.id)
	r.mu.Unlock()
}

// CloseAll force-closes every tracked connection, mirroring
// ConnectionManager::closeAll.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	connections := make([]*Connection, 0, len(r.connections))
	for _, c := range r.connections {
		connections = append(connections, c)
	}
	r.connections = make(map[uint64]*Connection)
	r.mu.Unlock()

	for _, c := range connections {
		c.Close()
	}
}

// Count returns the number of currently tracked connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.connections)
}

// GetByID returns the connection with the given id, or nil.
func (r *Registry) GetByID(id uint64) *Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connections[id]
}
