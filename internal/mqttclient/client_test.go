package mqttclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timebay/timebay/internal/messages"
)

// fakeMessage is a minimal mqtt.Message test double; paho.mqtt.golang
// doesn't ship one.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (f fakeMessage) Duplicate() bool     { return false }
func (f fakeMessage) Qos() byte           { return 0 }
func (f fakeMessage) Retained() bool      { return false }
func (f fakeMessage) Topic() string       { return f.topic }
func (f fakeMessage) MessageID() uint16   { return 0 }
func (f fakeMessage) Payload() []byte     { return f.payload }
func (f fakeMessage) Ack()                {}

func TestOnMessageBridgesDecodedMessage(t *testing.T) {
	c := &Client{inboundCh: make(chan inbound, 1)}
	want := messages.NewConnection(7)
	payload, err := messages.Encode(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	c.onMessage(nil, fakeMessage{topic: messages.TopicConnection, payload: payload})

	select {
	case in := <-c.inboundCh:
		if in.err != nil {
			t.Fatalf("unexpected error: %v", in.err)
		}
		if in.msg != want {
			t.Errorf("msg = %+v, want %+v", in.msg, want)
		}
	default:
		t.Fatal("no message bridged to channel")
	}
}

func TestOnMessageBridgesDecodeFailure(t *testing.T) {
	c := &Client{inboundCh: make(chan inbound, 1)}

	c.onMessage(nil, fakeMessage{topic: messages.TopicDetection, payload: []byte{1, 2}})

	select {
	case in := <-c.inboundCh:
		if !errors.Is(in.err, ErrSerialization) {
			t.Errorf("err = %v, want wrapping ErrSerialization", in.err)
		}
	default:
		t.Fatal("no result bridged to channel")
	}
}

func TestRecvReturnsBridgedMessage(t *testing.T) {
	c := &Client{inboundCh: make(chan inbound, 1)}
	want := messages.NewZero()
	c.inboundCh <- inbound{msg: want}

	got, err := c.Recv(context.Background())
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got != want {
		t.Errorf("Recv = %+v, want %+v", got, want)
	}
}

func TestRecvRespectsContextCancellation(t *testing.T) {
	c := &Client{inboundCh: make(chan inbound)}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Recv(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

func TestTopicForKnownKinds(t *testing.T) {
	cases := []struct {
		kind      messages.Kind
		wantTopic string
		wantQoS   byte
	}{
		{messages.KindConnection, messages.TopicConnection, messages.QoSConnection},
		{messages.KindDisconnection, messages.TopicDisconnection, messages.QoSDisconnection},
		{messages.KindZero, messages.TopicZero, messages.QoSZero},
		{messages.KindDetection, messages.TopicDetection, messages.QoSDetection},
	}
	for _, c := range cases {
		topic, qos := topicFor(c.kind)
		if topic != c.wantTopic || qos != c.wantQoS {
			t.Errorf("topicFor(%v) = (%q,%d), want (%q,%d)", c.kind, topic, qos, c.wantTopic, c.wantQoS)
		}
	}
}
