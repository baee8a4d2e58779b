package messages

import (
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	cases := []Message{
		NewConnection(7),
		NewDisconnection(7),
		NewZero(),
		NewDetection(42, 1234, 1_700_000_000, 500_000),
	}

	for _, m := range cases {
		enc, err := Encode(m)
		if err != nil {
			t.Fatalf("Encode(%v): %v", m.Kind, err)
		}
		dec, err := Decode(m.Topic(), enc)
		if err != nil {
			t.Fatalf("Decode(%v): %v", m.Kind, err)
		}
		if dec != m {
			t.Errorf("round trip mismatch: got %+v, want %+v", dec, m)
		}
	}
}

func TestDecodeUnknownTopic(t *testing.T) {
	m, err := Decode("/something/else", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if m.Kind != KindUnknown || m.UnknownTopic != "/something/else" {
		t.Errorf("got %+v", m)
	}
}

func TestEncodeUnknownFails(t *testing.T) {
	_, err := Encode(Message{Kind: KindUnknown, UnknownTopic: "/x"})
	if !errors.Is(err, ErrNonConvertible) {
		t.Fatalf("expected ErrNonConvertible, got %v", err)
	}
}

func TestDecodeShortPayload(t *testing.T) {
	if _, err := Decode(TopicConnection, []byte{1}); !errors.Is(err, ErrShortPayload) {
		t.Errorf("expected ErrShortPayload, got %v", err)
	}
	if _, err := Decode(TopicDetection, []byte{1, 2, 3}); !errors.Is(err, ErrShortPayload) {
		t.Errorf("expected ErrShortPayload, got %v", err)
	}
}

func TestDetectionFieldOrder(t *testing.T) {
	m := NewDetection(0x0102, 0x04030201, 0x0807060504030201, 0x0a090807)
	enc, err := Encode(m)
	if err != nil {
		t.Fatal(err)
	}
	if len(enc) != 2+4+8+4 {
		t.Fatalf("unexpected length %d", len(enc))
	}
	// node_id little-endian first two bytes
	if enc[0] != 0x02 || enc[1] != 0x01 {
		t.Errorf("node_id not little-endian-first: % x", enc[:2])
	}
}
