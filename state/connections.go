package state

import (
	"net"
	"sync"

	"github.com/google/uuid"
)

// Connection is a write-side handle on an established TCP link to a peer.
// Writes are serialized by mu so frames are never interleaved on the wire;
// the read side is driven by a separate goroutine that holds no lock here.
type Connection struct {
	mu   sync.Mutex
	conn net.Conn
}

// NewConnection wraps an established net.Conn.
func NewConnection(conn net.Conn) *Connection {
	return &Connection{conn: conn}
}

// WriteLine writes data followed by a newline, under the write mutex.
func (c *Connection) WriteLine(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, 0, len(data)+1)
	buf = append(buf, data...)
	buf = append(buf, '\n')
	_, err := c.conn.Write(buf)
	return err
}

// Close closes the underlying socket.
func (c *Connection) Close() error {
	return c.conn.Close()
}

// ConnTable is the PeerID -> Connection table. At most one entry exists per
// peer at a time; registering a new handle for an already-present peer
// overwrites it ("freshest wins") without closing the displaced handle —
// that handle's reader goroutine will observe EOF or an error on its own.
type ConnTable struct {
	mu    sync.Mutex
	conns map[uuid.UUID]*Connection
}

// NewConnTable creates an empty connection table.
func NewConnTable() *ConnTable {
	return &ConnTable{conns: make(map[uuid.UUID]*Connection)}
}

// Get returns the current connection for a peer, if any.
func (t *ConnTable) Get(id uuid.UUID) (*Connection, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.conns[id]
	return c, ok
}

// Set registers conn as the current handle for id, replacing any previous
// entry. The previous handle, if any, is returned but not closed — closing
// a handle still in use by another goroutine is the caller's decision.
func (t *ConnTable) Set(id uuid.UUID, conn *Connection) *Connection {
	t.mu.Lock()
	defer t.mu.Unlock()
	old := t.conns[id]
	t.conns[id] = conn
	return old
}

// RemoveIfSame deletes the entry for id only if it still points at handle.
// This guards against a racing new connection's entry being evicted by a
// stale reader goroutine that is only now noticing its own EOF.
func (t *ConnTable) RemoveIfSame(id uuid.UUID, handle *Connection) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cur, ok := t.conns[id]; ok && cur == handle {
		delete(t.conns, id)
		return true
	}
	return false
}

// Remove deletes the entry for id unconditionally. Used by the delivery
// engine when it knows a handle is dead regardless of identity.
func (t *ConnTable) Remove(id uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.conns, id)
}

// Count returns the number of live connections.
func (t *ConnTable) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}
