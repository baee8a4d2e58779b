package messages

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrNonConvertible is returned by Encode when asked to publish a Message
// that has no wire representation (currently only KindUnknown).
var ErrNonConvertible = errors.New("messages: variant has no wire encoding")

// ErrShortPayload is returned by Decode when a recognized topic's payload is
// too short for its fixed-width fields.
var ErrShortPayload = errors.New("messages: payload too short for topic")

// Encode serializes m into the exact little-endian fixed-width payload bytes
// for its topic, per spec §4.C. The topic itself is carried out of band (the
// MQTT publish call), not in the payload.
func Encode(m Message) ([]byte, error) {
	var buf bytes.Buffer

	switch m.Kind {
	case KindConnection:
		if err := binary.Write(&buf, binary.LittleEndian, m.NodeID); err != nil {
			return nil, err
		}
	case KindDisconnection:
		if err := binary.Write(&buf, binary.LittleEndian, m.NodeID); err != nil {
			return nil, err
		}
	case KindZero:
		// Empty payload.
	case KindDetection:
		d := m.Detection
		for _, v := range []any{d.NodeID, d.DistMM, d.StampS, d.StampNs} {
			if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrNonConvertible, m.Kind)
	}

	return buf.Bytes(), nil
}

// Decode maps a received topic and payload to a typed Message. An
// unrecognized topic decodes to KindUnknown rather than failing.
func Decode(topic string, payload []byte) (Message, error) {
	switch topic {
	case TopicConnection:
		id, err := readU16(payload)
		if err != nil {
			return Message{}, err
		}
		return NewConnection(id), nil
	case TopicDisconnection:
		id, err := readU16(payload)
		if err != nil {
			return Message{}, err
		}
		return NewDisconnection(id), nil
	case TopicZero:
		return NewZero(), nil
	case TopicDetection:
		if len(payload) < 2+4+8+4 {
			return Message{}, ErrShortPayload
		}
		r := bytes.NewReader(payload)
		var nodeID uint16
		var distMM uint32
		var stampS uint64
		var stampNs uint32
		for _, v := range []any{&nodeID, &distMM, &stampS, &stampNs} {
			if err := binary.Read(r, binary.LittleEndian, v); err != nil {
				return Message{}, err
			}
		}
		return NewDetection(nodeID, distMM, stampS, stampNs), nil
	default:
		return Message{Kind: KindUnknown, UnknownTopic: topic}, nil
	}
}

func readU16(payload []byte) (uint16, error) {
	if len(payload) < 2 {
		return 0, ErrShortPayload
	}
	return binary.LittleEndian.Uint16(payload), nil
}
