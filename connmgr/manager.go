// Package connmgr owns TCP connection lifecycle: accepting inbound peers,
// dialing outbound ones, the Hello handshake both directions perform, and
// dispatching every subsequent frame to persistence and the event stream.
// It plays the same structural role zeromq-gyre's node.go plays for ZRE
// peer connections, but over plain TCP framed with newline-delimited JSON.
package connmgr

import (
	"bufio"
	"context"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/tiago-bitten/gustavio/protocol"
	"github.com/tiago-bitten/gustavio/state"
	"github.com/tiago-bitten/gustavio/store"
)

const DefaultPort = 9999

// Events receives side effects of inbound frame processing. The root
// engine implements this to translate connection-layer activity into its
// outward event stream; connmgr itself knows nothing about IPC or UI.
type Events interface {
	IncomingMessage(row store.MessageRow)
	MessageAck(messageID, status string)
	GroupListChanged()
}

// Manager accepts and dials TCP connections, performs the Hello handshake,
// and serves each connection's read loop until it closes.
type Manager struct {
	selfID   uuid.UUID
	username func() string
	conns    *state.ConnTable
	db       *store.Store
	events   Events

	listener net.Listener
}

// New builds a Manager. username is read lazily so a rename takes effect
// on the next handshake without reconstructing the manager.
func New(selfID uuid.UUID, username func() string, conns *state.ConnTable, db *store.Store, events Events) *Manager {
	return &Manager{selfID: selfID, username: username, conns: conns, db: db, events: events}
}

// Listen starts accepting inbound connections on addr (e.g. "0.0.0.0:9999").
// It returns once the listener is bound; accepting happens in the
// background until Close is called.
func (m *Manager) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("connmgr: listen: %w", err)
	}
	m.listener = ln
	go m.acceptLoop()
	return nil
}

// Addr returns the listener's bound address. It panics if Listen has not
// been called; it exists mainly so tests can discover an ephemeral port.
func (m *Manager) Addr() net.Addr {
	return m.listener.Addr()
}

// Close stops accepting new connections. Connections already established
// keep running until their sockets close; neither Close nor a superseding
// registration closes them.
func (m *Manager) Close() error {
	if m.listener == nil {
		return nil
	}
	return m.listener.Close()
}

func (m *Manager) acceptLoop() {
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			return // listener closed
		}
		go m.handleAccepted(conn)
	}
}

// handleAccepted performs the responder side of the handshake: send our
// Hello first, then read the peer's Hello to learn its identity.
func (m *Manager) handleAccepted(conn net.Conn) {
	handle := state.NewConnection(conn)
	helloOut, _ := protocol.EncodeFrame(protocol.NewHello(m.selfID.String(), m.username()))
	if err := handle.WriteLine(helloOut); err != nil {
		conn.Close()
		return
	}

	reader := bufio.NewReader(conn)
	remoteID, ok := m.readHello(reader)
	if !ok {
		conn.Close()
		return
	}

	m.conns.Set(remoteID, handle) // freshest wins, even over a still-live prior handle
	m.readLoop(reader, remoteID, handle)
}

// Connect dials a peer's TCP listener, performs the initiator side of the
// handshake, and starts its read loop. It returns the peer's identity as
// claimed in its Hello response.
func (m *Manager) Connect(ctx context.Context, ip string, port uint16) (uuid.UUID, error) {
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", ip, port))
	if err != nil {
		return uuid.Nil, fmt.Errorf("connmgr: dial %s:%d: %w", ip, port, err)
	}

	handle := state.NewConnection(conn)
	helloOut, _ := protocol.EncodeFrame(protocol.NewHello(m.selfID.String(), m.username()))
	if err := handle.WriteLine(helloOut); err != nil {
		conn.Close()
		return uuid.Nil, fmt.Errorf("connmgr: send hello: %w", err)
	}

	reader := bufio.NewReader(conn)
	remoteID, ok := m.readHello(reader)
	if !ok {
		conn.Close()
		return uuid.Nil, fmt.Errorf("connmgr: bad hello response from %s:%d", ip, port)
	}

	m.conns.Set(remoteID, handle)
	go m.readLoop(reader, remoteID, handle)
	return remoteID, nil
}

func (m *Manager) readHello(reader *bufio.Reader) (uuid.UUID, bool) {
	line, err := reader.ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return uuid.Nil, false
	}
	frame, err := protocol.DecodeFrame(trimNewline(line))
	if err != nil {
		return uuid.Nil, false
	}
	hello, ok := frame.(protocol.Hello)
	if !ok {
		return uuid.Nil, false
	}
	remoteID, err := uuid.Parse(hello.PeerID)
	if err != nil {
		return uuid.Nil, false
	}
	return remoteID, true
}

// readLoop consumes frames until the connection closes, then removes the
// connection table entry only if it is still the handle this loop owns —
// a connection superseded by a fresher one must not be evicted when the
// stale one eventually closes.
func (m *Manager) readLoop(reader *bufio.Reader, remoteID uuid.UUID, handle *state.Connection) {
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			trimmed := trimNewline(line)
			if len(trimmed) > 0 {
				if frame, decErr := protocol.DecodeFrame(trimmed); decErr == nil {
					m.dispatch(remoteID, frame, handle)
				}
			}
		}
		if err != nil {
			break
		}
	}
	m.conns.RemoveIfSame(remoteID, handle)
}

func trimNewline(line []byte) []byte {
	if n := len(line); n > 0 && line[n-1] == '\n' {
		line = line[:n-1]
	}
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}

// Send writes a single frame to an already-established connection. It
// returns an error if there is no live connection to target; callers that
// want connect-on-demand and retry semantics use the delivery package.
func (m *Manager) Send(target uuid.UUID, frame protocol.Frame) error {
	handle, ok := m.conns.Get(target)
	if !ok {
		return fmt.Errorf("connmgr: no connection to %s", target)
	}
	data, err := protocol.EncodeFrame(frame)
	if err != nil {
		return fmt.Errorf("connmgr: encode frame: %w", err)
	}
	return handle.WriteLine(data)
}
