package gustavio

// Event names pushed out over Engine.Events(). These mirror the frontend
// notifications the reference client drives a WebView with, translated
// into a plain Go event stream instead of a JS-eval string.
const (
	EventConfigLoaded    = "config_loaded"
	EventPeerList        = "peer_list"
	EventGroupList       = "group_list"
	EventIncomingMessage = "incoming_message"
	EventMessageAck      = "message_ack"
	EventHistory         = "history"
	EventGroupCreated    = "group_created"
	EventError           = "error"

	// Host signals are not data notifications; they ask the embedding
	// application to change window behavior rather than render something.
	SignalRequestAttention = "request_attention"
	SignalSetAlwaysOnTop   = "set_always_on_top"
)

// Event is a single notification delivered to whatever is consuming
// Engine.Events(). Payload's concrete type depends on Name:
// ConfigLoadedPayload for config_loaded, []PeerListItem for peer_list,
// []store.GroupRow for group_list, store.MessageRow for incoming_message,
// MessageAckPayload for message_ack, []store.MessageRow for history,
// string for group_created and error, bool for set_always_on_top, and nil
// for request_attention.
type Event struct {
	Name    string
	Payload interface{}
}

// ConfigLoadedPayload accompanies EventConfigLoaded.
type ConfigLoadedPayload struct {
	PeerID   string
	Username string // empty if not yet set
}

// PeerListItem is one entry of the EventPeerList payload.
type PeerListItem struct {
	PeerID   string
	Username string
	IP       string
}

// MessageAckPayload accompanies EventMessageAck.
type MessageAckPayload struct {
	MessageID string
	Status    string
}
