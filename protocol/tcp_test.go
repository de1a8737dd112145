package protocol

import "testing"

func TestDirectMessageRoundTrip(t *testing.T) {
	dm := NewDirectMessage("m1", "a", "Alice", "hi", "2026-01-01T00:00:00Z")
	data, err := EncodeFrame(dm)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(DirectMessage)
	if !ok {
		t.Fatalf("expected DirectMessage, got %T", decoded)
	}
	if got.ID != "m1" || got.Content != "hi" || got.FromName != "Alice" {
		t.Fatalf("unexpected round trip result: %+v", got)
	}
}

func TestGroupCreateRoundTrip(t *testing.T) {
	gc := NewGroupCreate("g1", "dev", "a", []string{"a", "b", "c"})
	data, err := EncodeFrame(gc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(GroupCreate)
	if !ok {
		t.Fatalf("expected GroupCreate, got %T", decoded)
	}
	if len(got.Members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(got.Members))
	}
}

func TestAckRoundTrip(t *testing.T) {
	data, err := EncodeFrame(NewAck("m1", "delivered"))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(Ack)
	if !ok {
		t.Fatalf("expected Ack, got %T", decoded)
	}
	if got.Status != "delivered" {
		t.Fatalf("expected delivered, got %s", got.Status)
	}
}

func TestDecodeFrameDropsMalformedAndUnrecognized(t *testing.T) {
	if _, err := DecodeFrame([]byte("{")); err != ErrMalformed {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := DecodeFrame([]byte(`{"type":"Mystery"}`)); err != ErrUnrecognized {
		t.Fatalf("expected ErrUnrecognized, got %v", err)
	}
}

func TestHelloMidStreamIsJustAnotherFrame(t *testing.T) {
	// Hello received after the handshake is a valid, decodable frame;
	// it's the connection handler's job to ignore it, not the codec's.
	data, _ := EncodeFrame(NewHello("peer-1", "Alice"))
	decoded, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := decoded.(Hello); !ok {
		t.Fatalf("expected Hello, got %T", decoded)
	}
}
