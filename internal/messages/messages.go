// Package messages defines the wire message variants shared by sensor nodes
// and the aggregator, and the topic/QoS table that binds each variant to its
// MQTT topic.
package messages

import "fmt"

// Kind identifies a Message variant.
type Kind int

const (
	// KindConnection announces that a sensor node is present on the broker.
	KindConnection Kind = iota
	// KindDisconnection announces that a sensor node has dropped off the broker.
	KindDisconnection
	// KindDetection carries a single debounced vehicle-pass event.
	KindDetection
	// KindZero requests that every sensor node re-establish its baseline.
	KindZero
	// KindUnknown wraps a message received on a topic this codec does not
	// recognize. It can only be produced by Decode; Encode always fails on it.
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "Connection"
	case KindDisconnection:
		return "Disconnection"
	case KindDetection:
		return "Detection"
	case KindZero:
		return "Zero"
	case KindUnknown:
		return "Unknown"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Topic and QoS for each publishable variant, per spec §4.C.
const (
	TopicConnection    = "/connect"
	TopicDisconnection = "/disconnect"
	TopicZero          = "/zero"
	TopicDetection     = "/sensors/detection"

	QoSConnection    byte = 2
	QoSDisconnection byte = 2
	QoSZero          byte = 1
	QoSDetection     byte = 2
)

// Detection is the payload of a KindDetection message: a single debounced
// vehicle-pass event reported by a sensor node.
type Detection struct {
	NodeID  uint16
	DistMM  uint32
	StampS  uint64
	StampNs uint32
}

// Message is the closed sum type of everything that crosses the broker.
// Only one of the fields below is meaningful, selected by Kind.
type Message struct {
	Kind Kind

	// NodeID is valid for KindConnection and KindDisconnection.
	NodeID uint16

	// Detection is valid for KindDetection.
	Detection Detection

	// UnknownTopic is valid for KindUnknown.
	UnknownTopic string
}

// NewConnection builds a Connection announcement for nodeID.
func NewConnection(nodeID uint16) Message {
	return Message{Kind: KindConnection, NodeID: nodeID}
}

// NewDisconnection builds a Disconnection announcement for nodeID.
func NewDisconnection(nodeID uint16) Message {
	return Message{Kind: KindDisconnection, NodeID: nodeID}
}

// NewZero builds an empty-payload Zero broadcast request.
func NewZero() Message {
	return Message{Kind: KindZero}
}

// NewDetection builds a Detection event from a publishing node's wall clock.
func NewDetection(nodeID uint16, distMM uint32, stampS uint64, stampNs uint32) Message {
	return Message{
		Kind: KindDetection,
		Detection: Detection{
			NodeID:  nodeID,
			DistMM:  distMM,
			StampS:  stampS,
			StampNs: stampNs,
		},
	}
}

// Topic returns the MQTT topic this message publishes to. Unknown messages
// have no publish topic and return their original receive topic for
// diagnostics only; attempting to publish them fails in the codec.
func (m Message) Topic() string {
	switch m.Kind {
	case KindConnection:
		return TopicConnection
	case KindDisconnection:
		return TopicDisconnection
	case KindZero:
		return TopicZero
	case KindDetection:
		return TopicDetection
	default:
		return m.UnknownTopic
	}
}

// QoS returns the publish QoS for this message's topic.
func (m Message) QoS() byte {
	switch m.Kind {
	case KindConnection:
		return QoSConnection
	case KindDisconnection:
		return QoSDisconnection
	case KindZero:
		return QoSZero
	case KindDetection:
		return QoSDetection
	default:
		return 0
	}
}
