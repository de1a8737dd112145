package protocol

import "testing"

func TestAnnounceRoundTrip(t *testing.T) {
	a := NewAnnounce("peer-1", "Alice", 9999)
	data, err := EncodeUDP(a)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeUDP(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	got, ok := decoded.(Announce)
	if !ok {
		t.Fatalf("expected Announce, got %T", decoded)
	}
	if got.PeerID != "peer-1" || got.Username != "Alice" || got.TCPPort != 9999 {
		t.Fatalf("unexpected round trip result: %+v", got)
	}
}

func TestGoodbyeRoundTrip(t *testing.T) {
	data, err := EncodeUDP(NewGoodbye("peer-1"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeUDP(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(Goodbye)
	if !ok {
		t.Fatalf("expected Goodbye, got %T", decoded)
	}
	if got.PeerID != "peer-1" {
		t.Fatalf("expected peer-1, got %s", got.PeerID)
	}
}

func TestDecodeUDPMalformed(t *testing.T) {
	if _, err := DecodeUDP([]byte("not json")); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestDecodeUDPUnrecognized(t *testing.T) {
	if _, err := DecodeUDP([]byte(`{"type":"mystery"}`)); err != ErrUnrecognized {
		t.Fatalf("expected ErrUnrecognized, got %v", err)
	}
}
