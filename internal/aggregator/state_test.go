package aggregator

import (
	"testing"
	"time"

	"github.com/timebay/timebay/internal/messages"
)

func det(node uint16, distMM uint32, stampS uint64) messages.Detection {
	return messages.Detection{NodeID: node, DistMM: distMM, StampS: stampS}
}

func TestConnectNodeGrowsRosterAndCurrentLap(t *testing.T) {
	s := NewState()

	if c := s.Update(NewConnectNode(1)); c != nil {
		t.Fatalf("connect should not complete a lap")
	}
	s.Update(NewConnectNode(2))

	if got := s.Roster(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("roster = %v, want [1 2]", got)
	}
	if got := s.CurrentLap().Nodes(); len(got) != 2 {
		t.Errorf("current lap nodes = %v, want [1 2]", got)
	}
}

func TestConnectNodeAfterStartDoesNotGrowCurrentLap(t *testing.T) {
	s := NewState()
	s.Update(NewConnectNode(1))
	s.Update(NewConnectNode(2))
	s.Update(NewDetectionMsg(det(1, 0, 1))) // starts the lap

	s.Update(NewConnectNode(3))

	if got := s.Roster(); len(got) != 3 {
		t.Errorf("roster should still grow: %v", got)
	}
	if got := s.CurrentLap().Nodes(); len(got) != 2 {
		t.Errorf("current lap nodes should be frozen at 2, got %v", got)
	}
}

func TestDisconnectUnknownNodeIsLoggedNotFatal(t *testing.T) {
	s := NewState()
	// Must not panic; the aggregator just logs an error per spec §4.G.
	if c := s.Update(NewDisconnectNode(99)); c != nil {
		t.Fatalf("disconnect of unknown node should not complete a lap")
	}
}

func TestDetectionCompletesLapAndRolls(t *testing.T) {
	s := NewState()
	s.Update(NewConnectNode(1))

	s.Update(NewDetectionMsg(det(1, 0, 1))) // start on singleton roster
	completion := s.Update(NewDetectionMsg(det(1, 0, 2)))
	if completion == nil {
		t.Fatalf("second trigger on the only node should complete the lap")
	}
	if total := completion.Lap.TotalTime(); total == nil || *total != time.Second {
		t.Errorf("archived lap total = %v, want 1s", total)
	}

	// Re-feed means the new lap is already Running from the same detection.
	if _, running := s.CurrentLap().State().IsRunning(); !running {
		t.Fatalf("new current lap should already be running from the re-fed detection")
	}

	if s.LastLap() == nil {
		t.Errorf("lastLap should be set after a completion")
	}
}

func TestStateChangeUpdatesLink(t *testing.T) {
	s := NewState()
	if !s.Link().IsConnecting() {
		t.Fatalf("new state should start Connecting")
	}
	s.Update(NewStateChange(Connected()))
	if !s.Link().IsConnected() {
		t.Fatalf("link should be Connected after StateChange")
	}
}
