// Package splits implements the lap timing state machine: sector
// generation, the out-of-order-tolerant trigger policy, and the derived
// sector-time / total-time / diff views. Per spec §4.F, the hardest and
// densest part of the system.
package splits

import (
	"sort"
	"time"

	"github.com/timebay/timebay/internal/messages"
)

// SplitState is the closed tagged variant of a lap's progress.
type SplitState struct {
	kind  splitKind
	start time.Time
	end   time.Time
}

type splitKind int

const (
	splitNotStarted splitKind = iota
	splitRunning
	splitCompleted
)

// NotStarted is the initial state of every lap.
func NotStarted() SplitState { return SplitState{kind: splitNotStarted} }

// Running marks a lap in progress, anchored at start.
func Running(start time.Time) SplitState { return SplitState{kind: splitRunning, start: start} }

// Completed marks a finished lap bounded by [start, end].
func Completed(start, end time.Time) SplitState {
	return SplitState{kind: splitCompleted, start: start, end: end}
}

// IsNotStarted reports whether the state is NotStarted.
func (s SplitState) IsNotStarted() bool { return s.kind == splitNotStarted }

// IsRunning reports whether the state is Running, returning its start stamp.
func (s SplitState) IsRunning() (time.Time, bool) {
	return s.start, s.kind == splitRunning
}

// IsCompleted reports whether the state is Completed, returning its bounds.
func (s SplitState) IsCompleted() (start, end time.Time, ok bool) {
	return s.start, s.end, s.kind == splitCompleted
}

// Splits is a single lap's state machine: the node set it was started with
// (or is still accepting, before start), the derived sectors, and the
// current progress through them.
type Splits struct {
	nodes         []uint16 // ascending, deduplicated
	sectors       []Sector
	state         SplitState
	currentSector int
}

// New creates a lap over the given node set, which may be empty and may
// arrive unsorted/duplicated. Nodes may still be added or removed with
// ConnectNode/DisconnectNode until the lap starts.
func New(nodes []uint16) *Splits {
	s := &Splits{state: NotStarted()}
	s.nodes = dedupSorted(nodes)
	s.sectors = generateSectors(s.nodes)
	return s
}

func dedupSorted(nodes []uint16) []uint16 {
	cp := append([]uint16(nil), nodes...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	out := cp[:0]
	for i, n := range cp {
		if i == 0 || n != cp[i-1] {
			out = append(out, n)
		}
	}
	return out
}

// Nodes returns the current (or frozen, once started) node set in ascending order.
func (s *Splits) Nodes() []uint16 {
	return append([]uint16(nil), s.nodes...)
}

// Sectors returns a copy of the current sector list.
func (s *Splits) Sectors() []Sector {
	return append([]Sector(nil), s.sectors...)
}

// State returns the lap's current state.
func (s *Splits) State() SplitState { return s.state }

// ConnectNode registers a new node, regenerating sectors. Only effective
// while NotStarted; returns false (no-op) otherwise.
func (s *Splits) ConnectNode(node uint16) bool {
	if !s.state.IsNotStarted() {
		return false
	}
	for _, n := range s.nodes {
		if n == node {
			return true // already present, nothing to regenerate
		}
	}
	s.nodes = dedupSorted(append(s.nodes, node))
	s.sectors = generateSectors(s.nodes)
	return true
}

// DisconnectNode removes a node, regenerating sectors. Only effective while
// NotStarted; returns false (no-op) otherwise.
func (s *Splits) DisconnectNode(node uint16) bool {
	if !s.state.IsNotStarted() {
		return false
	}
	idx := -1
	for i, n := range s.nodes {
		if n == node {
			idx = i
			break
		}
	}
	if idx < 0 {
		return true // already absent
	}
	s.nodes = append(s.nodes[:idx], s.nodes[idx+1:]...)
	s.sectors = generateSectors(s.nodes)
	return true
}

func stampToTime(d messages.Detection) time.Time {
	return time.Unix(int64(d.StampS), int64(d.StampNs))
}

// HandleTrigger feeds a detection event into the lap state machine and
// returns the resulting state, per spec §4.F's 6-step policy.
func (s *Splits) HandleTrigger(msg messages.Detection) SplitState {
	// 1. Already completed: state is frozen.
	if s.state.kind == splitCompleted {
		return s.state
	}

	// 2. Ignore triggers from nodes outside the (possibly frozen) node set.
	if !s.contains(msg.NodeID) {
		return s.state
	}

	stamp := stampToTime(msg)

	// 3. Not started: only the first sector's `from` node can start the lap.
	if s.state.IsNotStarted() {
		if len(s.sectors) > 0 && s.sectors[0].From == msg.NodeID {
			s.state = Running(stamp)
		}
		return s.state
	}

	cur := s.sectors[s.currentSector]
	isWrap := s.currentSector == len(s.sectors)-1

	switch {
	case cur.To == msg.NodeID:
		// (a) Exact match.
		s.sectors[s.currentSector].State = Complete(stamp)
	case cur.To < msg.NodeID && !isWrap:
		// (b) Forward skip: invalidate every sector up to and including the
		// one ending at msg.NodeID.
		end := s.sectorContaining(msg.NodeID)
		for i := s.currentSector; i <= end; i++ {
			s.sectors[i].State = Invalidated()
		}
	default:
		// (c) Backward retrigger, or a higher id arriving during the wrap
		// sector (whose To is the smallest node id): stale, ignore.
		return s.state
	}

	// 5. Advance to the next incomplete sector, or complete the lap.
	next := s.nextIncompleteSector()
	if next < 0 {
		start, _ := s.state.IsRunning()
		s.state = Completed(start, stamp)
	} else {
		s.currentSector = next
	}

	return s.state
}

func (s *Splits) contains(node uint16) bool {
	for _, n := range s.nodes {
		if n == node {
			return true
		}
	}
	return false
}

// sectorContaining returns the index of the unique sector whose To equals node.
func (s *Splits) sectorContaining(node uint16) int {
	for i, sec := range s.sectors {
		if sec.To == node {
			return i
		}
	}
	return -1
}

// nextIncompleteSector returns the index of the first Incomplete sector
// after currentSector, or -1 if none remain.
func (s *Splits) nextIncompleteSector() int {
	for i := s.currentSector + 1; i < len(s.sectors); i++ {
		if s.sectors[i].State.IsIncomplete() {
			return i
		}
	}
	return -1
}

// SectorTimes scans sectors from the lap's start stamp, returning the
// duration of each Complete sector relative to the previous valid anchor.
// Incomplete and Invalidated sectors yield nil and do not advance the
// anchor. A Complete sector whose stamp precedes its anchor (clock
// rollback) also yields nil for that entry, but the anchor still advances
// to that sector's stamp.
func (s *Splits) SectorTimes() []*time.Duration {
	out := make([]*time.Duration, len(s.sectors))

	start, running := s.state.IsRunning()
	if !running {
		if cstart, _, ok := s.state.IsCompleted(); ok {
			start, running = cstart, true
		}
	}
	if !running {
		return out
	}

	anchor := start
	for i, sec := range s.sectors {
		stamp, ok := sec.State.IsComplete()
		if !ok {
			continue
		}
		if !stamp.Before(anchor) {
			d := stamp.Sub(anchor)
			out[i] = &d
		}
		anchor = stamp
	}
	return out
}

// TotalTime returns the lap's total duration if Completed and the clock
// didn't roll back between start and end.
func (s *Splits) TotalTime() *time.Duration {
	start, end, ok := s.state.IsCompleted()
	if !ok || end.Before(start) {
		return nil
	}
	d := end.Sub(start)
	return &d
}

// Diffs returns, per sector of this lap, the millisecond difference
// (ours - theirs) against previous's corresponding sector, padded with nil
// to this lap's sector count.
func (s *Splits) Diffs(previous *Splits) []*int32 {
	ours := s.SectorTimes()
	out := make([]*int32, len(s.sectors))
	if previous == nil {
		return out
	}
	theirs := previous.SectorTimes()

	n := len(ours)
	if len(theirs) < n {
		n = len(theirs)
	}
	for i := 0; i < n; i++ {
		if ours[i] == nil || theirs[i] == nil {
			continue
		}
		diff := int32(ours[i].Milliseconds() - theirs[i].Milliseconds())
		out[i] = &diff
	}
	return out
}
