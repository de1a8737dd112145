// Package protocol implements the two tagged-union wire formats the
// networking layer speaks: UDP presence packets for discovery, and
// newline-delimited TCP frames for messaging. Both are plain JSON with a
// "type" discriminant field, decoded tolerantly — a frame that doesn't
// parse, or whose type is unrecognized, is reported as an error so the
// caller can drop it and keep the connection or socket alive.
package protocol

import (
	"encoding/json"
	"errors"
)

// ErrMalformed is returned when a packet or frame isn't valid JSON, or a
// field holds a value of the wrong JSON type.
var ErrMalformed = errors.New("protocol: malformed packet")

// ErrUnrecognized is returned when the "type" field is missing or doesn't
// match any known packet or frame kind.
var ErrUnrecognized = errors.New("protocol: unrecognized type")

const (
	UDPTypeAnnounce = "announce"
	UDPTypeGoodbye  = "goodbye"
)

// UDPPacket is satisfied by every discovery packet kind.
type UDPPacket interface {
	udpType() string
}

// Announce is broadcast periodically by a live peer to advertise its
// identity and TCP listening port.
type Announce struct {
	Type     string `json:"type"`
	PeerID   string `json:"peer_id"`
	Username string `json:"username"`
	TCPPort  uint16 `json:"tcp_port"`
}

func (Announce) udpType() string { return UDPTypeAnnounce }

// NewAnnounce builds an Announce packet with the type tag set.
func NewAnnounce(peerID, username string, tcpPort uint16) Announce {
	return Announce{Type: UDPTypeAnnounce, PeerID: peerID, Username: username, TCPPort: tcpPort}
}

// Goodbye is a best-effort voluntary departure signal.
type Goodbye struct {
	Type   string `json:"type"`
	PeerID string `json:"peer_id"`
}

func (Goodbye) udpType() string { return UDPTypeGoodbye }

// NewGoodbye builds a Goodbye packet with the type tag set.
func NewGoodbye(peerID string) Goodbye {
	return Goodbye{Type: UDPTypeGoodbye, PeerID: peerID}
}

type udpEnvelope struct {
	Type string `json:"type"`
}

// EncodeUDP serializes a packet to its JSON wire form.
func EncodeUDP(pkt UDPPacket) ([]byte, error) {
	return json.Marshal(pkt)
}

// DecodeUDP parses a raw UDP datagram into a concrete packet. Unknown or
// malformed data is reported as an error, never panics.
func DecodeUDP(data []byte) (UDPPacket, error) {
	var env udpEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, ErrMalformed
	}
	switch env.Type {
	case UDPTypeAnnounce:
		var a Announce
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, ErrMalformed
		}
		return a, nil
	case UDPTypeGoodbye:
		var g Goodbye
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, ErrMalformed
		}
		return g, nil
	default:
		return nil, ErrUnrecognized
	}
}
