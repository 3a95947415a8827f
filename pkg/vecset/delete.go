package vecset

// Delete removes id from the graph. It unlinks id from every neighbor at
// every level, then attempts to reconnect each orphaned former neighbor
// to the best remaining partner among the other orphans, so deletion
// doesn't silently fragment the graph around popular hub nodes. Deleting
// an already-deleted or unknown id is a no-op error.
func (idx *Index) Delete(id NodeID) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	n := idx.nodeAt(id)
	if n == nil || n.deleted {
		return wrapErr("delete", ErrNodeNotFound)
	}

	if idx.entry == id {
		idx.reassignEntry(id)
	}

	orphans := idx.unlink(n)
	n.deleted = true
	idx.notifyCursorsDeleted(id)

	idx.reconnectOrphans(orphans)

	idx.version++
	idx.params.Logger.Debug("deleted", "id", id)
	return nil
}

// unlink removes every link between n and its neighbors at every level n
// participates in, returning the set of distinct neighbors that lost a
// connection to n (candidates for reconnection).
func (idx *Index) unlink(n *node) map[NodeID]struct{} {
	orphans := make(map[NodeID]struct{})
	for l := 0; l < len(n.links); l++ {
		for _, nbID := range n.links[l] {
			orphans[nbID] = struct{}{}
			nb := idx.nodeAt(nbID)
			if nb == nil {
				continue
			}
			nb.removeLink(l, n.id, func(id NodeID) float32 { return idx.distBetween(nb.id, id) })
		}
		n.links[l] = nil
		n.worst[l] = -1
	}
	return orphans
}

// reassignEntry picks a replacement entry point after deleting the
// current one: the first surviving former neighbor found scanning from
// the deleted node's top level downward, falling back to a linear scan
// of all nodes if the deleted node had no surviving neighbors (e.g. it
// was the only node in the graph).
func (idx *Index) reassignEntry(deleted NodeID) {
	n := idx.nodeAt(deleted)
	for l := len(n.links) - 1; l >= 0; l-- {
		for _, nbID := range n.links[l] {
			nb := idx.nodeAt(nbID)
			if nb != nil && !nb.deleted {
				idx.entry = nbID
				idx.maxLvl = nb.topLevel()
				return
			}
		}
	}
	for _, nd := range idx.nodes {
		if !nd.deleted && nd.id != deleted {
			idx.entry = nd.id
			idx.maxLvl = nd.topLevel()
			return
		}
	}
	idx.entry = noNode
	idx.maxLvl = 0
}

// reconnectOrphans greedily pairs up former neighbors of a deleted node
// at layer 0 using a score matrix: score(a,b) = 0.7*similarity(a,b) +
// 0.3*avgPotential(a,b), where avgPotential rewards pairing two nodes
// that are each, on average, similar to the other orphans (a proxy for
// how well-connected the pair would keep the local neighborhood). A pair
// that already shares a link, or where either side has no free capacity,
// is invalid and never considered, per spec.md §4.G step 2. Nodes left
// unpaired after the greedy pass first try pairing among the remaining
// orphans at relaxed (aggressiveness 1) admission, then fall back to a
// full graph re-entry so they don't end up under-linked.
func (idx *Index) reconnectOrphans(orphans map[NodeID]struct{}) {
	ids := make([]NodeID, 0, len(orphans))
	for id := range orphans {
		if n := idx.nodeAt(id); n != nil && !n.deleted {
			ids = append(ids, id)
		}
	}
	if len(ids) < 2 {
		idx.reentrySearch(ids)
		return
	}

	sim := make(map[[2]NodeID]float32, len(ids)*len(ids)/2)
	simOf := func(a, b NodeID) float32 {
		if a == b {
			return 0
		}
		key := [2]NodeID{a, b}
		if a > b {
			key = [2]NodeID{b, a}
		}
		if v, ok := sim[key]; ok {
			return v
		}
		v := 2 - idx.distBetween(a, b) // higher is more similar
		sim[key] = v
		return v
	}

	avgPotential := func(a, b NodeID) float32 {
		var sum float32
		count := 0
		for _, c := range ids {
			if c == a || c == b {
				continue
			}
			sum += simOf(a, c) + simOf(b, c)
			count += 2
		}
		if count == 0 {
			return 0
		}
		return sum / float32(count)
	}

	validPair := func(a, b NodeID) bool {
		na, nb := idx.nodeAt(a), idx.nodeAt(b)
		if na == nil || nb == nil {
			return false
		}
		if !idx.hasFreeCapacity(na, 0) || !idx.hasFreeCapacity(nb, 0) {
			return false
		}
		return !containsLink(na.links[0], b)
	}

	paired := make(map[NodeID]bool, len(ids))
	var unpaired []NodeID

	for len(paired) < len(ids) {
		var bestA, bestB NodeID
		bestScore := float32(-1)
		found := false
		for _, a := range ids {
			if paired[a] {
				continue
			}
			for _, b := range ids {
				if b <= a || paired[b] || !validPair(a, b) {
					continue // invalid pair: existing link or full endpoint, score -1
				}
				score := 0.7*simOf(a, b) + 0.3*avgPotential(a, b)
				if score > bestScore {
					bestScore = score
					bestA, bestB = a, b
					found = true
				}
			}
		}
		if !found {
			for _, a := range ids {
				if !paired[a] {
					unpaired = append(unpaired, a)
				}
			}
			break
		}
		idx.reconnectPair(bestA, bestB)
		paired[bestA] = true
		paired[bestB] = true
	}

	idx.reentrySearch(idx.reconnectWithinOrphans(unpaired))
}

// reconnectPair wires a bidirectional link between a and b at level 0.
// Callers must have already verified both sides have free capacity and
// no existing link between them (validPair in reconnectOrphans).
func (idx *Index) reconnectPair(a, b NodeID) {
	na, nb := idx.nodeAt(a), idx.nodeAt(b)
	if na == nil || nb == nil {
		return
	}
	idx.linkPair(na, nb, 0, idx.distBetween(a, b))
}

// reconnectWithinOrphans is the still-unpaired fallback from spec.md
// §4.G step 2: for each orphan short of M_LINKS links, it runs a
// relaxed (aggressiveness 1) admission pass using only the other
// still-unpaired orphans as candidates, before the caller escalates to a
// full graph re-entry. It returns the orphans still short afterward.
func (idx *Index) reconnectWithinOrphans(ids []NodeID) []NodeID {
	required := idx.params.M
	var stillShort []NodeID
	for _, u := range ids {
		un := idx.nodeAt(u)
		if un == nil || un.deleted {
			continue
		}
		if len(un.links[0]) >= required {
			continue
		}

		q := newBoundedQueue(len(ids))
		for _, v := range ids {
			if v == u {
				continue
			}
			vn := idx.nodeAt(v)
			if vn == nil || vn.deleted {
				continue
			}
			q.Push(candidate{v, idx.distBetween(u, v)})
		}
		idx.admitPass(un, q.ToSlice(), 0, required, required/4, false)

		if len(un.links[0]) < required {
			stillShort = append(stillShort, u)
		}
	}
	return stillShort
}

// reentrySearch reinserts each node in ids into the graph via the normal
// search-and-link walk at its existing level, giving nodes that couldn't
// be paired directly a path back to a well-connected neighborhood.
func (idx *Index) reentrySearch(ids []NodeID) {
	for _, id := range ids {
		n := idx.nodeAt(id)
		if n == nil || n.deleted || idx.entry == noNode || idx.entry == id {
			continue
		}
		idx.linkNewNode(n, n.topLevel(), 0)
	}
}
