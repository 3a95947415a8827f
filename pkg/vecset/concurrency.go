package vecset

import "sync"

// slot is one reader's epoch-tracking lane. Acquiring a slot hands a
// caller exclusive use of slots[s].epoch and every node's
// visitedEpoch[s] entry until ReleaseReadSlot; a scan marks a node
// visited by writing the slot's current epoch into node.visitedEpoch[s],
// and "is this node visited" is just an equality check against that
// epoch — no allocation, no reset walk over the graph.
type slot struct {
	mu    sync.Mutex
	epoch uint64
	inUse bool
}

// acquireReadSlot performs a non-blocking round-robin scan for a free
// slot starting at rr, locking the first free one it finds and bumping
// its epoch so any stale visited marks from a prior user of this slot
// are invalidated. If every slot is in use it falls back to blocking on
// the next slot in rotation.
func (idx *Index) acquireReadSlot() int {
	n := len(idx.slots)
	start := int(idx.rrCounter.Add(1)) % n

	for i := 0; i < n; i++ {
		s := (start + i) % n
		if idx.slots[s].mu.TryLock() {
			idx.slots[s].inUse = true
			idx.slots[s].epoch++
			return s
		}
	}

	s := start
	idx.slots[s].mu.Lock()
	idx.slots[s].inUse = true
	idx.slots[s].epoch++
	return s
}

// AcquireReadSlot reserves an epoch-tracking lane for a sequence of
// searches. Callers must pair every AcquireReadSlot with exactly one
// ReleaseReadSlot; a slot may be held across multiple Search calls (each
// scan advances the slot's epoch itself), but that prevents other readers
// from using that lane until released.
func (idx *Index) AcquireReadSlot() int {
	return idx.acquireReadSlot()
}

// ReleaseReadSlot returns a slot acquired via AcquireReadSlot.
func (idx *Index) ReleaseReadSlot(s int) {
	idx.slots[s].inUse = false
	idx.slots[s].mu.Unlock()
}

// markVisited records that node n has been seen during the scan owned by
// slot s. Caller must hold idx.slots[s].mu (guaranteed by having acquired
// the slot and not yet released it).
func markVisited(n *node, s int, epoch uint64) {
	n.visitedEpoch[s] = epoch
}

// isVisited reports whether node n was already seen during the scan
// owned by slot s.
func isVisited(n *node, s int, epoch uint64) bool {
	return n.visitedEpoch[s] == epoch
}
