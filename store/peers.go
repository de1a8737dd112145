package store

import (
	"database/sql"
	"errors"
	"time"
)

// UpsertPeer records or refreshes the last-known address for a peer, so
// that history and group membership referencing a peer_id remain
// resolvable to a username across restarts even after the peer goes
// quiet and ages out of the in-memory table.
func (s *Store) UpsertPeer(peerID, username, lastIP string, lastSeen time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT INTO peers (peer_id, username, last_ip, last_seen) VALUES (?, ?, ?, ?)
		 ON CONFLICT(peer_id) DO UPDATE SET
		   username = excluded.username,
		   last_ip = excluded.last_ip,
		   last_seen = excluded.last_seen`,
		peerID, username, lastIP, lastSeen.UTC().Format(time.RFC3339),
	)
	return err
}

// KnownPeerRow is a peer record as recalled from disk, independent of
// whether that peer is currently reachable.
type KnownPeerRow struct {
	PeerID   string
	Username string
	LastIP   string
	LastSeen string
}

// KnownPeer looks up the last-recorded identity for peerID.
func (s *Store) KnownPeer(peerID string) (KnownPeerRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row KnownPeerRow
	err := s.db.QueryRow(
		`SELECT peer_id, username, last_ip, last_seen FROM peers WHERE peer_id = ?`, peerID,
	).Scan(&row.PeerID, &row.Username, &row.LastIP, &row.LastSeen)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return KnownPeerRow{}, false, nil
		}
		return KnownPeerRow{}, false, err
	}
	return row, true, nil
}
