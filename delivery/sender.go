// Package delivery implements send-with-retry: the algorithm that turns a
// possibly-stale connection table entry into a successful write, or a
// clean failure, evicting a handle whose first write fails before the
// single retry.
package delivery

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/tiago-bitten/gustavio/connmgr"
	"github.com/tiago-bitten/gustavio/protocol"
	"github.com/tiago-bitten/gustavio/state"
)

// ErrUnknownPeer is returned when the target is not present in the peer
// table, so there is no address to dial.
var ErrUnknownPeer = errors.New("delivery: unknown peer")

// Sender is the single path through which every outbound frame travels.
// It holds no connection state of its own; state.ConnTable and the peer
// table remain the source of truth, shared with connmgr and discovery.
type Sender struct {
	peers   *state.PeerTable
	conns   *state.ConnTable
	connmgr *connmgr.Manager
}

// New builds a Sender over the shared peer and connection tables.
func New(peers *state.PeerTable, conns *state.ConnTable, mgr *connmgr.Manager) *Sender {
	return &Sender{peers: peers, conns: conns, connmgr: mgr}
}

// ensureConnected dials target if there is no live connection for it yet.
func (s *Sender) ensureConnected(ctx context.Context, target uuid.UUID) error {
	if _, ok := s.conns.Get(target); ok {
		return nil
	}
	rec, ok := s.peers.Get(target)
	if !ok {
		return ErrUnknownPeer
	}
	_, err := s.connmgr.Connect(ctx, rec.IP, rec.TCPPort)
	return err
}

// SendWithRetry delivers frame to target: ensure a connection exists,
// attempt one write, and on failure evict the stale handle unconditionally
// and retry exactly once before surfacing the final outcome. A second
// failure is returned as-is; callers do not loop further.
func (s *Sender) SendWithRetry(ctx context.Context, target uuid.UUID, frame protocol.Frame) error {
	if s == nil {
		return errors.New("delivery: networking not started")
	}
	if err := s.ensureConnected(ctx, target); err != nil {
		return err
	}
	if err := s.connmgr.Send(target, frame); err == nil {
		return nil
	}

	s.conns.Remove(target)
	if err := s.ensureConnected(ctx, target); err != nil {
		return err
	}
	return s.connmgr.Send(target, frame)
}
