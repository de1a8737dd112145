package state

import (
	"net"
	"testing"

	"github.com/google/uuid"
)

func pipeConnection(t *testing.T) (*Connection, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return NewConnection(client), server
}

func TestConnTableSetOverwritesFreshestWins(t *testing.T) {
	tbl := NewConnTable()
	id := uuid.New()
	first, _ := pipeConnection(t)
	second, _ := pipeConnection(t)

	if old := tbl.Set(id, first); old != nil {
		t.Fatalf("expected no previous entry, got one")
	}
	old := tbl.Set(id, second)
	if old != first {
		t.Fatalf("expected Set to return the displaced first handle")
	}

	cur, ok := tbl.Get(id)
	if !ok || cur != second {
		t.Fatalf("expected current entry to be the second handle")
	}
}

func TestConnTableRemoveIfSameGuardsAgainstStaleEviction(t *testing.T) {
	tbl := NewConnTable()
	id := uuid.New()
	first, _ := pipeConnection(t)
	second, _ := pipeConnection(t)

	tbl.Set(id, first)
	tbl.Set(id, second) // second supersedes first; first's reader hasn't noticed yet

	if tbl.RemoveIfSame(id, first) {
		t.Fatalf("stale handle must not evict the surviving connection")
	}
	if _, ok := tbl.Get(id); !ok {
		t.Fatalf("surviving connection should remain registered")
	}
	if !tbl.RemoveIfSame(id, second) {
		t.Fatalf("RemoveIfSame should succeed for the current handle")
	}
	if _, ok := tbl.Get(id); ok {
		t.Fatalf("entry should be gone after removing the current handle")
	}
}

func TestConnTableRemoveUnconditional(t *testing.T) {
	tbl := NewConnTable()
	id := uuid.New()
	conn, _ := pipeConnection(t)
	tbl.Set(id, conn)

	tbl.Remove(id)
	if _, ok := tbl.Get(id); ok {
		t.Fatalf("expected Remove to clear the entry regardless of identity")
	}
	if tbl.Count() != 0 {
		t.Errorf("expected empty table, got count %d", tbl.Count())
	}
}
