// Package gustavio is a serverless LAN chat engine: peers discover each
// other by UDP broadcast, exchange messages over direct TCP connections,
// and persist history locally, with no server or central directory.
//
// Engine is the facade: a frontend calls Dispatch with a JSON command and
// reads results from Events(). Internally it plays the same role Gyre
// plays for zeromq-gyre — a single actor goroutine handles every
// frontend command, driven through a channel. The peer table, connection
// table, and database are shared with the discovery and per-connection
// reader goroutines, which use them directly through their own mutexes.
package gustavio

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tiago-bitten/gustavio/connmgr"
	"github.com/tiago-bitten/gustavio/delivery"
	"github.com/tiago-bitten/gustavio/discovery"
	"github.com/tiago-bitten/gustavio/protocol"
	"github.com/tiago-bitten/gustavio/state"
	"github.com/tiago-bitten/gustavio/store"
)

// Engine is the public handle on a running chat node.
type Engine struct {
	cmds   chan string
	events chan *Event
}

// Open bootstraps persistence at the default per-user data path for
// appName, mints a peer id on first run, and starts the actor. It returns
// as soon as the engine is ready to accept Dispatch calls; networking
// only starts once a username is known, exactly as the reference client
// defers discovery and listening until SetUsername (or a prior run's
// stored username) supplies one.
func Open(appName string) (*Engine, error) {
	return openAt(store.DefaultPath(appName))
}

// openAt opens the engine against an explicit database path, bypassing
// the per-user data directory resolution; it exists so tests can point
// at an isolated temporary file instead of the real user data directory.
func openAt(dbPath string) (*Engine, error) {
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("gustavio: open store: %w", err)
	}

	e := &Engine{
		cmds:   make(chan string, 1000),
		events: make(chan *Event, 1000),
	}
	go e.run(db)
	return e, nil
}

// Events returns the channel notifications are delivered on. The channel
// is never closed during normal operation.
func (e *Engine) Events() <-chan *Event {
	return e.events
}

// Dispatch hands a raw JSON command to the actor. Decode errors are
// reported as an EventError on the event stream rather than returned
// here, matching the fire-and-forget shape of the underlying channel.
func (e *Engine) Dispatch(raw string) {
	e.cmds <- raw
}

func (e *Engine) emit(name string, payload interface{}) {
	select {
	case e.events <- &Event{Name: name, Payload: payload}:
	default:
		// Event channel full means nobody is reading; drop rather than
		// block the actor, same trade-off zeromq-gyre makes with its
		// buffered events channel.
	}
}

type actor struct {
	db       *store.Store
	peers    *state.PeerTable
	conns    *state.ConnTable
	selfID   uuid.UUID
	username string // empty until set

	disc    *discovery.Discovery
	connmgr *connmgr.Manager
	sender  *delivery.Sender

	networkingStarted bool
	engine            *Engine
}

// eventBridge adapts connmgr's Events interface to the engine's own event
// stream, translating connection-layer activity into outward events.
type eventBridge struct{ a *actor }

func (b eventBridge) IncomingMessage(row store.MessageRow) {
	b.a.engine.emit(EventIncomingMessage, row)
	b.a.engine.emit(SignalRequestAttention, nil)
}

func (b eventBridge) MessageAck(messageID, status string) {
	b.a.engine.emit(EventMessageAck, MessageAckPayload{MessageID: messageID, Status: status})
}

func (b eventBridge) GroupListChanged() {
	groups, err := b.a.db.Groups()
	if err != nil {
		return
	}
	b.a.engine.emit(EventGroupList, groups)
}

// run is the actor's entry point: load or mint identity, optionally start
// networking, then service commands until the process exits. There is no
// explicit shutdown command; the engine lives for the process lifetime,
// same as the reference client's background thread.
func (e *Engine) run(db *store.Store) {
	a := &actor{db: db, peers: state.NewPeerTable(), conns: state.NewConnTable(), engine: e}

	peerID, err := a.loadOrMintPeerID()
	if err != nil {
		e.emit(EventError, err.Error())
		return
	}
	a.selfID = peerID

	username, _, _ := db.GetConfig("username")
	a.username = username

	e.emit(EventConfigLoaded, ConfigLoadedPayload{PeerID: a.selfID.String(), Username: a.username})

	if a.username != "" {
		a.startNetworking()
		a.emitGroupList()
	}

	for raw := range e.cmds {
		a.handle(raw)
	}
}

func (a *actor) loadOrMintPeerID() (uuid.UUID, error) {
	if raw, ok, err := a.db.GetConfig("peer_id"); err != nil {
		return uuid.Nil, err
	} else if ok {
		id, err := uuid.Parse(raw)
		if err == nil {
			return id, nil
		}
	}
	id := uuid.New()
	if err := a.db.SetConfig("peer_id", id.String()); err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

func (a *actor) startNetworking() {
	if a.networkingStarted {
		return
	}
	a.connmgr = connmgr.New(a.selfID, func() string { return a.username }, a.conns, a.db, eventBridge{a})
	if err := a.connmgr.Listen(fmt.Sprintf("0.0.0.0:%d", connmgr.DefaultPort)); err != nil {
		a.engine.emit(EventError, err.Error())
		return
	}
	a.sender = delivery.New(a.peers, a.conns, a.connmgr)

	a.disc = discovery.New(
		discovery.DefaultConfig(), a.selfID,
		func() string { return a.username }, func() uint16 { return connmgr.DefaultPort },
		a.peers, a.emitPeerList,
		func(peerID, username, ip string, lastSeen time.Time) {
			a.db.UpsertPeer(peerID, username, ip, lastSeen)
		},
	)
	if err := a.disc.Run(); err != nil {
		a.engine.emit(EventError, err.Error())
		return
	}
	a.networkingStarted = true
}

func (a *actor) emitPeerList() {
	recs := a.peers.List()
	items := make([]PeerListItem, 0, len(recs))
	for _, r := range recs {
		items = append(items, PeerListItem{PeerID: r.PeerID.String(), Username: r.Username, IP: r.IP})
	}
	a.engine.emit(EventPeerList, items)
}

func (a *actor) emitGroupList() {
	groups, err := a.db.Groups()
	if err != nil {
		return
	}
	a.engine.emit(EventGroupList, groups)
}

func (a *actor) handle(raw string) {
	cmd, err := decodeCommand(raw)
	if err != nil {
		a.engine.emit(EventError, err.Error())
		return
	}

	switch c := cmd.(type) {
	case setUsernameCmd:
		a.handleSetUsername(c)
	case sendMessageCmd:
		a.handleSendMessage(c)
	case sendGroupMessageCmd:
		a.handleSendGroupMessage(c)
	case loadHistoryCmd:
		a.handleLoadHistory(c)
	case createGroupCmd:
		a.handleCreateGroup(c)
	case getPeersCmd:
		a.emitPeerList()
	case getGroupsCmd:
		a.emitGroupList()
	case markReadCmd:
		// No read-receipt tracking; accepted for wire compatibility.
	case setAlwaysOnTopCmd:
		a.engine.emit(SignalSetAlwaysOnTop, c.Enabled)
	}
}

func (a *actor) handleSetUsername(c setUsernameCmd) {
	if err := a.db.SetConfig("username", c.Username); err != nil {
		a.engine.emit(EventError, err.Error())
		return
	}
	a.username = c.Username
	a.startNetworking()
	a.engine.emit(EventConfigLoaded, ConfigLoadedPayload{PeerID: a.selfID.String(), Username: a.username})
}

func (a *actor) handleSendMessage(c sendMessageCmd) {
	target, err := uuid.Parse(c.PeerID)
	if err != nil {
		a.engine.emit(EventError, "invalid peer id")
		return
	}

	msgID := uuid.New().String()
	timestamp := time.Now().UTC()
	frame := protocol.NewDirectMessage(msgID, a.selfID.String(), a.username, c.Content, timestamp.Format(time.RFC3339Nano))

	status := store.StatusSent
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.sender.SendWithRetry(ctx, target, frame); err != nil {
		a.engine.emit(EventError, fmt.Sprintf("send failed: %v", err))
		status = store.StatusFailed
	}

	row := store.MessageRow{
		ID: msgID, ConversationID: c.PeerID, FromID: a.selfID.String(), FromName: a.username,
		Content: c.Content, Timestamp: timestamp, Status: status,
	}
	a.db.InsertMessage(row)
	a.engine.emit(EventIncomingMessage, row)
}

func (a *actor) handleSendGroupMessage(c sendGroupMessageCmd) {
	members, err := a.db.GroupMembers(c.GroupID)
	if err != nil {
		a.engine.emit(EventError, err.Error())
		return
	}

	msgID := uuid.New().String()
	timestamp := time.Now().UTC()
	frame := protocol.NewGroupMessage(msgID, c.GroupID, a.selfID.String(), a.username, c.Content, timestamp.Format(time.RFC3339Nano))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, memberID := range members {
		if memberID == a.selfID.String() {
			continue
		}
		target, err := uuid.Parse(memberID)
		if err != nil {
			continue
		}
		a.sender.SendWithRetry(ctx, target, frame)
	}

	row := store.MessageRow{
		ID: msgID, ConversationID: c.GroupID, FromID: a.selfID.String(), FromName: a.username,
		Content: c.Content, Timestamp: timestamp, IsGroup: true, Status: store.StatusSent,
	}
	a.db.InsertMessage(row)
	a.engine.emit(EventIncomingMessage, row)
}

func (a *actor) handleLoadHistory(c loadHistoryCmd) {
	limit := c.Limit
	if limit <= 0 {
		limit = store.DefaultHistoryLimit
	}
	history, err := a.db.LoadHistory(c.ConversationID, limit)
	if err != nil {
		a.engine.emit(EventError, err.Error())
		return
	}
	a.engine.emit(EventHistory, history)
}

func (a *actor) handleCreateGroup(c createGroupCmd) {
	groupID := uuid.New().String()
	allMembers := append(append([]string{}, c.Members...), a.selfID.String())
	if err := a.db.CreateGroup(store.GroupRow{GroupID: groupID, Name: c.Name, CreatorID: a.selfID.String()}, allMembers); err != nil {
		a.engine.emit(EventError, err.Error())
		return
	}

	frame := protocol.NewGroupCreate(groupID, c.Name, a.selfID.String(), allMembers)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, memberID := range c.Members {
		target, err := uuid.Parse(memberID)
		if err != nil {
			continue
		}
		a.sender.SendWithRetry(ctx, target, frame)
	}

	a.emitGroupList()
	a.engine.emit(EventGroupCreated, groupID)
}
