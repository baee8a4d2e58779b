// Package aggregator implements the aggregator-side runtime of spec §4.G:
// the broker-link state machine, roster of live sensor nodes, and the
// single-mutex app state that stitches detections into laps via the splits
// engine.
package aggregator

import "sort"

// Roster is an ascending, deduplicated set of live node ids. Go has no
// built-in ordered set; the original's BTreeSet<u16> is grounded here as a
// small sorted slice rather than pulling in a tree/set library for 16-bit
// integers, which the rest of the corpus never reaches for in comparable
// spots either.
type Roster struct {
	nodes []uint16
}

// Insert adds node if absent, keeping the roster sorted. Returns true if the
// node was newly added.
func (r *Roster) Insert(node uint16) bool {
	i := sort.Search(len(r.nodes), func(i int) bool { return r.nodes[i] >= node })
	if i < len(r.nodes) && r.nodes[i] == node {
		return false
	}
	r.nodes = append(r.nodes, 0)
	copy(r.nodes[i+1:], r.nodes[i:])
	r.nodes[i] = node
	return true
}

// Remove deletes node if present. Returns true if it was present.
func (r *Roster) Remove(node uint16) bool {
	i := sort.Search(len(r.nodes), func(i int) bool { return r.nodes[i] >= node })
	if i >= len(r.nodes) || r.nodes[i] != node {
		return false
	}
	r.nodes = append(r.nodes[:i], r.nodes[i+1:]...)
	return true
}

// Contains reports whether node is currently in the roster.
func (r *Roster) Contains(node uint16) bool {
	i := sort.Search(len(r.nodes), func(i int) bool { return r.nodes[i] >= node })
	return i < len(r.nodes) && r.nodes[i] == node
}

// Nodes returns a copy of the roster in ascending order.
func (r *Roster) Nodes() []uint16 {
	return append([]uint16(nil), r.nodes...)
}
