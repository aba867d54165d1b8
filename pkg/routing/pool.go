package routing

import (
	"math"

	"geopath/pkg/graph"
)

// Unreached is the distance of a node no edge has reached yet.
var Unreached = math.Inf(1)

// NodeState is the per-query search record of one node.
type NodeState struct {
	Node      uint32
	Distance  float64
	Heuristic float64
	Score     float64 // Distance + Heuristic

	// Parent and Via are nil for the start node and unreached nodes.
	Parent *NodeState
	Via    *graph.Edge

	Visited bool
	Opened  bool

	heapIndex int
}

func (s *NodeState) HeapIndex() int      { return s.heapIndex }
func (s *NodeState) SetHeapIndex(i int) { s.heapIndex = i }

// NodeStatePool hands out NodeState records for one query at a time and
// recycles them across queries. Reset is O(1): the cursor rewinds and the
// node lookup is invalidated by bumping an epoch instead of clearing it.
//
// A pool belongs to a single Finder and is not safe for concurrent use.
type NodeStatePool struct {
	states []*NodeState
	cursor int

	// slot[n] is valid only when stamp[n] == epoch.
	slot  []uint32
	stamp []uint32
	epoch uint32
}

// NewNodeStatePool creates a pool sized for a graph of n nodes.
func NewNodeStatePool(n int) *NodeStatePool {
	return &NodeStatePool{
		slot:  make([]uint32, n),
		stamp: make([]uint32, n),
		epoch: 1,
	}
}

// Reset makes every issued record available again. Records handed out
// before the reset must not be used afterwards.
func (p *NodeStatePool) Reset() {
	p.cursor = 0
	p.epoch++
	if p.epoch == 0 {
		// Stamps from 2^32 queries ago could look current again.
		clear(p.stamp)
		p.epoch = 1
	}
}

// Create issues the record for node with every field reinitialized. The
// pool grows only when all existing records are in use by this query.
func (p *NodeStatePool) Create(node uint32, distance, heuristic float64) *NodeState {
	var s *NodeState
	if p.cursor < len(p.states) {
		s = p.states[p.cursor]
	} else {
		s = &NodeState{}
		p.states = append(p.states, s)
	}
	*s = NodeState{
		Node:      node,
		Distance:  distance,
		Heuristic: heuristic,
		Score:     distance + heuristic,
		heapIndex: -1,
	}

	p.grow(node)
	p.slot[node] = uint32(p.cursor)
	p.stamp[node] = p.epoch
	p.cursor++
	return s
}

// Get returns the record issued for node in the current query, or nil.
func (p *NodeStatePool) Get(node uint32) *NodeState {
	if int(node) >= len(p.stamp) || p.stamp[node] != p.epoch {
		return nil
	}
	return p.states[p.slot[node]]
}

// Issued returns the number of records handed out since the last Reset.
func (p *NodeStatePool) Issued() int { return p.cursor }

// Allocated returns the number of records the pool owns.
func (p *NodeStatePool) Allocated() int { return len(p.states) }

// grow extends the node lookup when the graph gained nodes after the pool was made.
func (p *NodeStatePool) grow(node uint32) {
	if int(node) < len(p.stamp) {
		return
	}
	n := max(int(node)+1, 2*len(p.stamp))
	p.slot = append(p.slot, make([]uint32, n-len(p.slot))...)
	p.stamp = append(p.stamp, make([]uint32, n-len(p.stamp))...)
}
