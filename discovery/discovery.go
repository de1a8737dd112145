// Package discovery implements presence: a UDP broadcast beacon that
// announces this peer's identity and listens for announcements from
// others, maintaining the shared peer table and reaping entries that go
// quiet. It plays the same role zeromq-gyre's beacon package plays, but
// speaks plain broadcast UDP and JSON instead of multicast and a raw
// binary beacon frame.
package discovery

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tiago-bitten/gustavio/protocol"
	"github.com/tiago-bitten/gustavio/state"
)

const (
	DefaultPort             = 5555
	DefaultAnnounceInterval = 3 * time.Second
	DefaultPeerTimeout      = 10 * time.Second
	DefaultReapInterval     = 5 * time.Second
)

// Config tunes the timing of the discovery loops. The zero value is not
// usable; build one with DefaultConfig and override fields as needed.
type Config struct {
	Port             int
	AnnounceInterval time.Duration
	PeerTimeout      time.Duration
	ReapInterval     time.Duration
}

// DefaultConfig returns the timing used by the reference client.
func DefaultConfig() Config {
	return Config{
		Port:             DefaultPort,
		AnnounceInterval: DefaultAnnounceInterval,
		PeerTimeout:      DefaultPeerTimeout,
		ReapInterval:     DefaultReapInterval,
	}
}

// Discovery owns the UDP socket used for presence broadcast and listening.
// It shares a *state.PeerTable with the rest of the engine rather than
// keeping its own: the peer table is the single source of truth for who
// is currently reachable.
type Discovery struct {
	cfg        Config
	selfID     uuid.UUID
	username   func() string
	tcpPort    func() uint16
	peers      *state.PeerTable
	onChange   func()
	onAnnounce func(peerID, username, ip string, lastSeen time.Time)

	mu         sync.Mutex
	conn       *net.UDPConn
	terminated bool
	wg         sync.WaitGroup
}

// New builds a Discovery. username and tcpPort are read lazily on each
// announce so that a later rename or listener rebind is picked up without
// reconstructing the beacon. onChange is invoked (from a background
// goroutine, so it must not block) after every announce accepted from
// another peer (new or repeat), after a goodbye that removed a known
// peer, and after a reap sweep that evicted someone.
// onAnnounce, if non-nil, is invoked on every Announce received from
// another peer (including repeat announces from an already-known peer) so
// the caller can mirror the announce into durable storage; it may be nil,
// in which case announces only update the in-memory peer table.
func New(cfg Config, selfID uuid.UUID, username func() string, tcpPort func() uint16, peers *state.PeerTable, onChange func(), onAnnounce func(peerID, username, ip string, lastSeen time.Time)) *Discovery {
	return &Discovery{
		cfg:        cfg,
		selfID:     selfID,
		username:   username,
		tcpPort:    tcpPort,
		peers:      peers,
		onChange:   onChange,
		onAnnounce: onAnnounce,
	}
}

// Run opens the broadcast socket and starts the announce, listen, and
// reap goroutines. It returns as soon as the goroutines are started, or
// with the bind error if the socket cannot be opened.
func (d *Discovery) Run() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: d.cfg.Port})
	if err != nil {
		return err
	}
	d.mu.Lock()
	d.conn = conn
	d.mu.Unlock()

	d.wg.Add(3)
	go d.announceLoop()
	go d.listenLoop()
	go d.reapLoop()
	return nil
}

// Close sends a best-effort goodbye, stops all loops, and releases the
// socket. It blocks until every goroutine has exited.
func (d *Discovery) Close() {
	d.mu.Lock()
	if d.terminated {
		d.mu.Unlock()
		return
	}
	d.terminated = true
	conn := d.conn
	d.mu.Unlock()

	if conn != nil {
		goodbye, _ := protocol.EncodeUDP(protocol.NewGoodbye(d.selfID.String()))
		conn.WriteToUDP(goodbye, d.broadcastAddr())
		conn.Close()
	}
	d.wg.Wait()
}

func (d *Discovery) broadcastAddr() *net.UDPAddr {
	return &net.UDPAddr{IP: net.IPv4bcast, Port: d.cfg.Port}
}

func (d *Discovery) announceLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.AnnounceInterval)
	defer ticker.Stop()

	d.sendAnnounce()
	for range ticker.C {
		d.mu.Lock()
		done := d.terminated
		d.mu.Unlock()
		if done {
			return
		}
		d.sendAnnounce()
	}
}

func (d *Discovery) sendAnnounce() {
	pkt := protocol.NewAnnounce(d.selfID.String(), d.username(), d.tcpPort())
	data, err := protocol.EncodeUDP(pkt)
	if err != nil {
		return
	}
	d.mu.Lock()
	conn := d.conn
	d.mu.Unlock()
	if conn != nil {
		conn.WriteToUDP(data, d.broadcastAddr())
	}
}

func (d *Discovery) listenLoop() {
	defer d.wg.Done()
	buf := make([]byte, 2048)
	for {
		d.mu.Lock()
		conn := d.conn
		done := d.terminated
		d.mu.Unlock()
		if done || conn == nil {
			return
		}

		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			return // socket closed by Close()
		}
		pkt, err := protocol.DecodeUDP(buf[:n])
		if err != nil {
			continue
		}
		if d.handlePacket(pkt, addr) {
			d.notify()
		}
	}
}

// handlePacket applies a decoded packet to the peer table and reports
// whether the peer list should be republished: true for every accepted
// announce from another peer (including a refresh of a known one) and
// for a goodbye that removed a known peer.
func (d *Discovery) handlePacket(pkt protocol.UDPPacket, addr *net.UDPAddr) bool {
	switch p := pkt.(type) {
	case protocol.Announce:
		if p.PeerID == d.selfID.String() {
			return false
		}
		peerID, err := uuid.Parse(p.PeerID)
		if err != nil {
			return false
		}
		lastSeen := time.Now()
		d.peers.Upsert(state.PeerRecord{
			PeerID:   peerID,
			Username: p.Username,
			IP:       addr.IP.String(),
			TCPPort:  p.TCPPort,
			LastSeen: lastSeen,
		})
		if d.onAnnounce != nil {
			d.onAnnounce(p.PeerID, p.Username, addr.IP.String(), lastSeen)
		}
		return true
	case protocol.Goodbye:
		peerID, err := uuid.Parse(p.PeerID)
		if err != nil {
			return false
		}
		return d.peers.Remove(peerID)
	default:
		return false
	}
}

func (d *Discovery) reapLoop() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.cfg.ReapInterval)
	defer ticker.Stop()

	for range ticker.C {
		d.mu.Lock()
		done := d.terminated
		d.mu.Unlock()
		if done {
			return
		}
		if d.peers.EvictStale(d.cfg.PeerTimeout) {
			d.notify()
		}
	}
}

func (d *Discovery) notify() {
	if d.onChange != nil {
		d.onChange()
	}
}
