package connmgr

import (
	"time"

	"github.com/google/uuid"

	"github.com/tiago-bitten/gustavio/protocol"
	"github.com/tiago-bitten/gustavio/state"
	"github.com/tiago-bitten/gustavio/store"
)

// dispatch applies a decoded frame's side effects: persistence, an Ack
// reply for direct and group messages, and an event emitted toward the
// frontend. Hello frames arriving mid-stream (never expected, but
// tolerated) are silently ignored here; the handshake already consumed
// the first line.
func (m *Manager) dispatch(remoteID uuid.UUID, frame protocol.Frame, handle *state.Connection) {
	switch f := frame.(type) {
	case protocol.DirectMessage:
		row := store.MessageRow{
			ID: f.ID, ConversationID: f.FromID, FromID: f.FromID, FromName: f.FromName,
			Content: f.Content, Timestamp: parseTimestamp(f.Timestamp), Status: store.StatusDelivered,
		}
		m.db.InsertMessage(row)
		m.events.IncomingMessage(row)
		m.reply(handle, protocol.NewAck(f.ID, store.StatusDelivered))

	case protocol.GroupMessage:
		row := store.MessageRow{
			ID: f.ID, ConversationID: f.GroupID, FromID: f.FromID, FromName: f.FromName,
			Content: f.Content, Timestamp: parseTimestamp(f.Timestamp), IsGroup: true, Status: store.StatusDelivered,
		}
		m.db.InsertMessage(row)
		m.events.IncomingMessage(row)
		m.reply(handle, protocol.NewAck(f.ID, store.StatusDelivered))

	case protocol.Ack:
		m.db.UpdateMessageStatus(f.MessageID, f.Status)
		m.events.MessageAck(f.MessageID, f.Status)

	case protocol.GroupCreate:
		m.db.CreateGroup(store.GroupRow{GroupID: f.GroupID, Name: f.Name, CreatorID: f.CreatorID}, f.Members)
		m.events.GroupListChanged()

	case protocol.GroupMemberAdd:
		m.db.AddGroupMember(f.GroupID, f.PeerID)
		m.events.GroupListChanged()

	case protocol.GroupMemberRemove:
		m.db.RemoveGroupMember(f.GroupID, f.PeerID)
		m.events.GroupListChanged()

	case protocol.Hello:
		// Handshake already completed; a stray Hello is ignored.
	}
}

func (m *Manager) reply(handle *state.Connection, ack protocol.Ack) {
	data, err := protocol.EncodeFrame(ack)
	if err != nil {
		return
	}
	handle.WriteLine(data)
}

func parseTimestamp(s string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now()
}
