package aggregator

import (
	"fmt"
	"log"
	"sync"

	"github.com/timebay/timebay/internal/messages"
	"github.com/timebay/timebay/internal/splits"
)

// LinkState is the closed tagged variant of the broker connection's state,
// per spec §4.G.
type LinkState struct{ kind linkKind }

type linkKind int

const (
	linkConnecting linkKind = iota
	linkConnected
	linkReconnecting
)

func Connecting() LinkState   { return LinkState{kind: linkConnecting} }
func Connected() LinkState    { return LinkState{kind: linkConnected} }
func Reconnecting() LinkState { return LinkState{kind: linkReconnecting} }

func (s LinkState) IsConnecting() bool   { return s.kind == linkConnecting }
func (s LinkState) IsConnected() bool    { return s.kind == linkConnected }
func (s LinkState) IsReconnecting() bool { return s.kind == linkReconnecting }

func (s LinkState) String() string {
	switch s.kind {
	case linkConnecting:
		return "Connecting"
	case linkConnected:
		return "Connected"
	case linkReconnecting:
		return "Reconnecting"
	default:
		return fmt.Sprintf("LinkState(%d)", s.kind)
	}
}

// AppMessageKind identifies an AppMessage variant.
type AppMessageKind int

const (
	MsgStateChange AppMessageKind = iota
	MsgConnectNode
	MsgDisconnectNode
	MsgDetection
	MsgSendZero
	MsgZeroAck
)

// AppMessage is the aggregator's single inbound message sum type, merging
// broker events and local UI commands, per spec §4.G and §5.
type AppMessage struct {
	Kind      AppMessageKind
	NodeID    uint16
	Detection messages.Detection
	Link      LinkState
}

func NewStateChange(l LinkState) AppMessage     { return AppMessage{Kind: MsgStateChange, Link: l} }
func NewConnectNode(id uint16) AppMessage       { return AppMessage{Kind: MsgConnectNode, NodeID: id} }
func NewDisconnectNode(id uint16) AppMessage    { return AppMessage{Kind: MsgDisconnectNode, NodeID: id} }
func NewDetectionMsg(d messages.Detection) AppMessage {
	return AppMessage{Kind: MsgDetection, Detection: d}
}
func NewSendZero() AppMessage { return AppMessage{Kind: MsgSendZero} }
func NewZeroAck() AppMessage  { return AppMessage{Kind: MsgZeroAck} }

// LapCompletion is handed back from Update when a Detection completes the
// current lap, so a caller (the stand-in UI, or a test) can observe it.
type LapCompletion struct {
	Lap *splits.Splits
}

// State is the aggregator's single shared app state, guarded by one mutex
// held only across synchronous Update calls, per spec §4.G/§9's design
// note: never across a channel receive or network await.
type State struct {
	mu sync.Mutex

	link        LinkState
	roster      Roster
	current     *splits.Splits
	lastLap     *splits.Splits
	lastLastLap *splits.Splits
}

// NewState creates an aggregator state with an empty roster and an empty
// (no-node) current lap; nodes join as Connection announcements arrive.
func NewState() *State {
	return &State{
		link:    Connecting(),
		current: splits.New(nil),
	}
}

// Link returns the current broker link state.
func (s *State) Link() LinkState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.link
}

// Roster returns the current live-node roster.
func (s *State) Roster() []uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roster.Nodes()
}

// CurrentLap, LastLap, LastLastLap expose the three lap slots spec §4.G
// tracks. CurrentLap is never nil; LastLap and LastLastLap are nil until
// the first and second lap completions.
func (s *State) CurrentLap() *splits.Splits     { s.mu.Lock(); defer s.mu.Unlock(); return s.current }
func (s *State) LastLap() *splits.Splits        { s.mu.Lock(); defer s.mu.Unlock(); return s.lastLap }
func (s *State) LastLastLap() *splits.Splits    { s.mu.Lock(); defer s.mu.Unlock(); return s.lastLastLap }

// Update applies msg synchronously and returns a non-nil LapCompletion if
// this message completed the current lap.
func (s *State) Update(msg AppMessage) *LapCompletion {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Kind {
	case MsgStateChange:
		s.link = msg.Link

	case MsgConnectNode:
		isNew := s.roster.Insert(msg.NodeID)
		if isNew {
			log.Printf("aggregator: sensor node %d connected", msg.NodeID)
		} else {
			log.Printf("aggregator: heartbeat connection from node %d", msg.NodeID)
		}
		s.current.ConnectNode(msg.NodeID)

	case MsgDisconnectNode:
		if !s.roster.Remove(msg.NodeID) {
			log.Printf("aggregator: disconnected a non-connected sensor node! (id=%d)", msg.NodeID)
		}
		s.current.DisconnectNode(msg.NodeID)

	case MsgDetection:
		state := s.current.HandleTrigger(msg.Detection)
		if _, _, ok := state.IsCompleted(); ok {
			return s.archiveAndRoll(msg.Detection)
		}

	case MsgSendZero, MsgZeroAck:
		// Side-effecting (publish) or purely informational; no state to mutate.
		// The runtime's merger loop performs the actual publish for SendZero.

	default:
		log.Printf("aggregator: unhandled app message kind %v", msg.Kind)
	}

	return nil
}

// archiveAndRoll implements spec §4.F's aggregator-integration steps 1-3:
// archive the completed lap, start a fresh one over the current roster, and
// re-feed the completing detection so a shared start/finish line begins the
// next lap immediately. Called with s.mu held.
func (s *State) archiveAndRoll(completing messages.Detection) *LapCompletion {
	s.lastLastLap = s.lastLap
	s.lastLap = s.current
	s.current = splits.New(s.roster.Nodes())
	s.current.HandleTrigger(completing)
	return &LapCompletion{Lap: s.lastLap}
}
