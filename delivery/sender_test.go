package delivery

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tiago-bitten/gustavio/connmgr"
	"github.com/tiago-bitten/gustavio/protocol"
	"github.com/tiago-bitten/gustavio/state"
	"github.com/tiago-bitten/gustavio/store"
)

type noopEvents struct{}

func (noopEvents) IncomingMessage(store.MessageRow) {}
func (noopEvents) MessageAck(string, string)        {}
func (noopEvents) GroupListChanged()                {}

// newListeningManager builds a Manager bound to an ephemeral loopback port,
// backed by its own in-memory store, and returns it alongside that port.
func newListeningManager(t *testing.T, id uuid.UUID, conns *state.ConnTable) (*connmgr.Manager, uint16) {
	t.Helper()
	db, err := store.Open("file:" + id.String() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	mgr := connmgr.New(id, func() string { return "peer" }, conns, db, noopEvents{})
	if err := mgr.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { mgr.Close() })
	return mgr, uint16(mgr.Addr().(*net.TCPAddr).Port)
}

func TestSendWithRetryConnectsOnDemandAndDelivers(t *testing.T) {
	aliceID, bobID := uuid.New(), uuid.New()
	aliceConns := state.NewConnTable()
	aliceMgr, _ := newListeningManager(t, aliceID, aliceConns)
	_, bobPort := newListeningManager(t, bobID, state.NewConnTable())

	peers := state.NewPeerTable()
	peers.Upsert(state.PeerRecord{PeerID: bobID, Username: "Bob", IP: "127.0.0.1", TCPPort: bobPort})

	sender := New(peers, aliceConns, aliceMgr)

	msg := protocol.NewDirectMessage("m1", aliceID.String(), "Alice", "hi", time.Now().Format(time.RFC3339Nano))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := sender.SendWithRetry(ctx, bobID, msg); err != nil {
		t.Fatalf("send with retry: %v", err)
	}
	if _, ok := aliceConns.Get(bobID); !ok {
		t.Fatalf("expected a connection to bob to have been established")
	}
}

func TestSendWithRetryUnknownPeer(t *testing.T) {
	aliceID := uuid.New()
	aliceConns := state.NewConnTable()
	aliceMgr, _ := newListeningManager(t, aliceID, aliceConns)
	sender := New(state.NewPeerTable(), aliceConns, aliceMgr)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := sender.SendWithRetry(ctx, uuid.New(), protocol.NewAck("m1", "sent"))
	if err != ErrUnknownPeer {
		t.Fatalf("expected ErrUnknownPeer, got %v", err)
	}
}

func TestSendWithRetryRecoversFromStaleConnection(t *testing.T) {
	aliceID, bobID := uuid.New(), uuid.New()
	aliceConns := state.NewConnTable()
	aliceMgr, _ := newListeningManager(t, aliceID, aliceConns)
	bobMgr, bobPort := newListeningManager(t, bobID, state.NewConnTable())

	peers := state.NewPeerTable()
	peers.Upsert(state.PeerRecord{PeerID: bobID, Username: "Bob", IP: "127.0.0.1", TCPPort: bobPort})
	sender := New(peers, aliceConns, aliceMgr)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	first := protocol.NewDirectMessage("m1", aliceID.String(), "Alice", "first", time.Now().Format(time.RFC3339Nano))
	if err := sender.SendWithRetry(ctx, bobID, first); err != nil {
		t.Fatalf("first send: %v", err)
	}

	// Simulate the registered handle having gone stale (e.g. bob restarted
	// without alice noticing yet) by closing bob's listener and severing
	// the live socket from alice's side without updating alice's table.
	handle, _ := aliceConns.Get(bobID)
	handle.Close()
	bobMgr.Close()

	// Bring bob back up on a fresh listener so the retry has somewhere to land.
	_, newPort := newListeningManager(t, bobID, state.NewConnTable())
	peers.Upsert(state.PeerRecord{PeerID: bobID, Username: "Bob", IP: "127.0.0.1", TCPPort: newPort})

	second := protocol.NewDirectMessage("m2", aliceID.String(), "Alice", "second", time.Now().Format(time.RFC3339Nano))
	if err := sender.SendWithRetry(ctx, bobID, second); err != nil {
		t.Fatalf("retried send: %v", err)
	}
}
