// Package state holds the tables shared across the discovery, connection,
// and delivery goroutines: the live peer table and the active connection
// table. Both are guarded by their own mutex, and lookups always clone
// values out before the lock is released, so callers never hold a lock
// across network I/O.
package state

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// PeerRecord is a live, in-memory record of a discovered peer. The record
// itself is not persisted; the store keeps its own last-known copy of each
// announcing peer's username and address (store.UpsertPeer).
type PeerRecord struct {
	PeerID   uuid.UUID
	Username string
	IP       string
	TCPPort  uint16
	LastSeen time.Time
}

// PeerTable is the set of currently-live peers, keyed by PeerID.
type PeerTable struct {
	mu    sync.RWMutex
	peers map[uuid.UUID]PeerRecord
}

// NewPeerTable creates an empty peer table.
func NewPeerTable() *PeerTable {
	return &PeerTable{peers: make(map[uuid.UUID]PeerRecord)}
}

// Upsert inserts or refreshes a peer record.
func (t *PeerTable) Upsert(rec PeerRecord) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.peers[rec.PeerID] = rec
}

// Remove deletes a peer record, reporting whether it existed.
func (t *PeerTable) Remove(id uuid.UUID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.peers[id]
	delete(t.peers, id)
	return ok
}

// Get returns a clone of the peer record for id, if present.
func (t *PeerTable) Get(id uuid.UUID) (PeerRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.peers[id]
	return rec, ok
}

// List returns a snapshot of all live peer records.
func (t *PeerTable) List() []PeerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]PeerRecord, 0, len(t.peers))
	for _, rec := range t.peers {
		out = append(out, rec)
	}
	return out
}

// EvictStale removes every peer whose LastSeen is older than timeout,
// reporting whether the set changed.
func (t *PeerTable) EvictStale(timeout time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	changed := false
	now := time.Now()
	for id, rec := range t.peers {
		if now.Sub(rec.LastSeen) > timeout {
			delete(t.peers, id)
			changed = true
		}
	}
	return changed
}
