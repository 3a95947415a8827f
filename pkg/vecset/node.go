package vecset

import "sync"

// NodeID identifies a vector within an Index. IDs are assigned sequentially
// starting at 0 and are never reused, even after deletion.
type NodeID uint32

const noNode NodeID = ^NodeID(0)

// node is one vector's entry in the graph: its stored representation (in
// whichever form the index's quantization mode dictates), its per-layer
// neighbor lists, and the bookkeeping needed for epoch-based visited
// tracking and deletion-safe iteration.
type node struct {
	id      NodeID
	value   any
	deleted bool

	vectorF32 []float32 // populated when Quantize == QuantNone
	vectorQ8  []int8    // populated when Quantize == QuantScalar8
	rangeQ8   float32
	vectorBin []uint64 // populated when Quantize == QuantBinary
	magnitude float32  // pre-normalization L2 length, for approximate reconstruction (GetNodeVector)

	// links[level] holds the neighbor IDs at that layer, nearest-known
	// ordering not guaranteed; worst[level] caches the index of the
	// farthest neighbor so admission checks are O(1) instead of O(M).
	links [][]NodeID
	worst []int

	// growth[level] is how many slots beyond the layer's normal budget
	// (2*M_LINKS at layer 0, M_LINKS above) pass 3 of neighbor selection
	// has granted this node, bounded by the layer's growth ceiling
	// (3*M_LINKS at layer 0, 2*M_LINKS above). Zero for a node that has
	// never needed forced reconnection.
	growth []int

	// visitedEpoch[s] is compared against the search-local epoch counter
	// for reader slot s; a match means this node was already visited
	// during the in-flight scan on that slot. Mutating an entry requires
	// holding idx.slots[s].mu (or, for the writer, the exclusive index lock).
	visitedEpoch []uint64

	mu sync.Mutex // not locked by the engine; links/worst/deleted are guarded by Index.mu
}

func newNode(id NodeID, value any, maxLevel, slotCount int) *node {
	n := &node{
		id:           id,
		value:        value,
		links:        make([][]NodeID, maxLevel+1),
		worst:        make([]int, maxLevel+1),
		growth:       make([]int, maxLevel+1),
		visitedEpoch: make([]uint64, slotCount),
	}
	for l := range n.worst {
		n.worst[l] = -1
	}
	return n
}

// topLevel returns the highest layer this node participates in.
func (n *node) topLevel() int {
	return len(n.links) - 1
}

// addLink appends neighbor to level l and updates the worst-neighbor cache
// if neighbor is farther than the current worst (or the cache is empty).
// dist is the distance from n to neighbor, supplied by the caller so this
// method never itself computes distance.
func (n *node) addLink(l int, neighbor NodeID, dist float32, neighborDist func(NodeID) float32) {
	n.links[l] = append(n.links[l], neighbor)
	if n.worst[l] == -1 {
		n.worst[l] = len(n.links[l]) - 1
		return
	}
	if dist > neighborDist(n.links[l][n.worst[l]]) {
		n.worst[l] = len(n.links[l]) - 1
	}
}

// removeLink deletes neighbor from level l if present and rescans for the
// new worst neighbor using neighborDist to evaluate each survivor.
func (n *node) removeLink(l int, neighbor NodeID, neighborDist func(NodeID) float32) {
	ns := n.links[l]
	idx := -1
	for i, id := range ns {
		if id == neighbor {
			idx = i
			break
		}
	}
	if idx == -1 {
		return
	}
	last := len(ns) - 1
	ns[idx] = ns[last]
	n.links[l] = ns[:last]

	if len(n.links[l]) == 0 {
		n.worst[l] = -1
		return
	}
	n.rescanWorst(l, neighborDist)
}

// rescanWorst recomputes the worst-neighbor cache for level l from scratch.
// Called when an incremental update can't cheaply tell which survivor is
// now farthest (removeLink, or after a neighbor-set replacement in Insert).
func (n *node) rescanWorst(l int, neighborDist func(NodeID) float32) {
	ns := n.links[l]
	if len(ns) == 0 {
		n.worst[l] = -1
		return
	}
	worstIdx := 0
	worstDist := neighborDist(ns[0])
	for i := 1; i < len(ns); i++ {
		if d := neighborDist(ns[i]); d > worstDist {
			worstDist = d
			worstIdx = i
		}
	}
	n.worst[l] = worstIdx
}

// worstNeighbor returns the cached farthest neighbor at level l and its
// distance (recomputed via neighborDist), or (noNode, 0, false) if the
// level has no neighbors.
func (n *node) worstNeighbor(l int, neighborDist func(NodeID) float32) (NodeID, float32, bool) {
	if l >= len(n.links) || n.worst[l] == -1 {
		return noNode, 0, false
	}
	id := n.links[l][n.worst[l]]
	return id, neighborDist(id), true
}
