package vecset

// Result is one scored hit returned by Search.
type Result struct {
	ID    NodeID
	Value any
	Dist  float32
}

// FilterFunc decides whether a node's associated value should be
// considered a candidate result. It is evaluated during the layer-0
// ef-search expansion, not as a post-filter, so a restrictive predicate
// does not silently shrink below k the way post-filtering a fixed-size
// result set would; while fewer than ef matches have been found, the
// search keeps expanding the frontier until it empties (or the
// maxCandidates budget of SearchFiltered runs out).
type FilterFunc func(value any) bool

// distTo returns the distance from a query vector (already normalized,
// and already in whatever representation the index's quantize mode
// expects) to node n. query must be produced by prepareQuery.
func (idx *Index) distTo(query preparedQuery, n *node) float32 {
	switch idx.params.Quantize {
	case QuantScalar8:
		return scalar8Distance(query.q8, query.q8Range, n.vectorQ8, n.rangeQ8)
	case QuantBinary:
		return hammingDistance(query.bin, n.vectorBin, idx.params.effectiveDim())
	default:
		return cosineDistance(query.f32, n.vectorF32)
	}
}

// preparedQuery holds a query vector pre-normalized, pre-projected, and
// pre-quantized to match the index's storage mode, so per-candidate
// distance evaluation never repeats that work.
type preparedQuery struct {
	f32     []float32
	q8      []int8
	q8Range float32
	bin     []uint64
}

func (idx *Index) prepareQuery(v []float32) (preparedQuery, error) {
	if len(v) != idx.params.Dim {
		return preparedQuery{}, wrapErr("search", ErrDimensionMismatch)
	}
	work := make([]float32, len(v))
	copy(work, v)
	normalizeL2(work)

	if idx.projection != nil {
		work = idx.projection.project(work)
	}

	switch idx.params.Quantize {
	case QuantScalar8:
		q, r := quantizeScalar8(work)
		return preparedQuery{q8: q, q8Range: r}, nil
	case QuantBinary:
		return preparedQuery{bin: quantizeBinary(work)}, nil
	default:
		return preparedQuery{f32: work}, nil
	}
}

// searchLayerGreedy descends from cur, moving to the neighbor strictly
// closest to query whenever one beats cur's own distance, until no
// neighbor improves on it. Because each step strictly decreases distance
// along a finite graph, this terminates without a visited set. Used for
// the upper-layer descent, where only the single best entry point for
// the next layer down is needed.
func (idx *Index) searchLayerGreedy(query preparedQuery, entry NodeID, level int) NodeID {
	cur := entry
	curDist := idx.distTo(query, idx.nodeAt(cur))

	for {
		improved := false
		cn := idx.nodeAt(cur)
		if level >= len(cn.links) {
			break
		}
		for _, nbID := range cn.links[level] {
			nb := idx.nodeAt(nbID)
			if nb == nil || nb.deleted {
				continue
			}
			d := idx.distTo(query, nb)
			if d < curDist {
				curDist = d
				cur = nbID
				improved = true
			}
		}
		if !improved {
			break
		}
	}
	return cur
}

// searchLayerEf expands the candidate frontier at level starting from
// entry, best-first, until the frontier empties or its nearest candidate
// is farther than the worst entry of a full result set, returning the ef
// nearest live nodes found (fewer if the graph has fewer live nodes at
// this level). Each call advances the slot's epoch, so every scan starts
// with no node marked visited. filter, if non-nil, excludes non-matching nodes from the result
// set while still letting the search traverse through them to reach
// matching neighbors.
// maxCandidates, when > 0, bounds the number of candidates the expansion
// is allowed to pop off the frontier before it gives up — the evaluation
// budget B from spec §4.E, used by filtered search so a predicate that
// rejects almost everything cannot force an unbounded graph walk. Zero
// means unlimited.
func (idx *Index) searchLayerEf(query preparedQuery, entry NodeID, level, ef int, slotIdx int, filter FilterFunc, maxCandidates int) *boundedQueue {
	idx.slots[slotIdx].epoch++
	epoch := idx.slots[slotIdx].epoch

	results := newBoundedQueue(ef)
	frontier := newBoundedQueue(ef)

	entryNode := idx.nodeAt(entry)
	entryDist := idx.distTo(query, entryNode)
	markVisited(entryNode, slotIdx, epoch)
	frontier.Push(candidate{entry, entryDist})
	if filter == nil || filter(entryNode.value) {
		if !entryNode.deleted {
			results.Push(candidate{entry, entryDist})
		}
	}

	evaluated := 0
	for frontier.Len() > 0 {
		if maxCandidates > 0 && evaluated >= maxCandidates {
			break
		}
		c := frontier.Nearest()
		frontier.items = frontier.items[1:]
		evaluated++

		if results.Full() && c.dist > results.Farthest().dist {
			break
		}

		cn := idx.nodeAt(c.id)
		if level >= len(cn.links) {
			continue
		}
		for _, nbID := range cn.links[level] {
			nb := idx.nodeAt(nbID)
			if nb == nil {
				continue
			}
			if isVisited(nb, slotIdx, epoch) {
				continue
			}
			markVisited(nb, slotIdx, epoch)

			d := idx.distTo(query, nb)
			admitted := !results.Full() || d < results.Farthest().dist
			if admitted {
				frontier.Push(candidate{nbID, d})
				if !nb.deleted && (filter == nil || filter(nb.value)) {
					results.Push(candidate{nbID, d})
				}
			}
		}
	}
	return results
}

// Search returns up to k nearest neighbors of query. slotIdx must come
// from a currently-held AcquireReadSlot. If useGroundTruth is true, the
// graph is bypassed entirely in favor of an exhaustive linear scan,
// intended for offline recall measurement rather than production queries.
func (idx *Index) Search(query []float32, k int, slotIdx int, useGroundTruth bool) ([]Result, error) {
	return idx.searchFiltered(query, k, slotIdx, useGroundTruth, nil, 0)
}

// SearchFiltered is Search with a predicate over each candidate's
// associated value. maxCandidates bounds the number of candidates the
// layer-0 expansion will evaluate before giving up on finding k matches
// (0 means unlimited); it exists so a predicate that rejects nearly
// everything cannot turn a filtered search into a full graph traversal.
func (idx *Index) SearchFiltered(query []float32, k int, slotIdx int, filter FilterFunc, maxCandidates int) ([]Result, error) {
	return idx.searchFiltered(query, k, slotIdx, false, filter, maxCandidates)
}

func (idx *Index) searchFiltered(query []float32, k int, slotIdx int, useGroundTruth bool, filter FilterFunc, maxCandidates int) ([]Result, error) {
	if k <= 0 {
		return nil, wrapErr("search", ErrInvalidParams)
	}
	pq, err := idx.prepareQuery(query)
	if err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.entry == noNode {
		return nil, nil
	}

	if useGroundTruth {
		return idx.groundTruth(pq, k, filter), nil
	}

	ef := k
	if idx.params.EfSearch > ef {
		ef = idx.params.EfSearch
	}

	cur := idx.entry
	for level := idx.maxLvl; level > 0; level-- {
		cur = idx.searchLayerGreedy(pq, cur, level)
	}

	results := idx.searchLayerEf(pq, cur, 0, ef, slotIdx, filter, maxCandidates)
	out := make([]Result, 0, k)
	for i, c := range results.ToSlice() {
		if i >= k {
			break
		}
		n := idx.nodeAt(c.id)
		out = append(out, Result{ID: c.id, Value: n.value, Dist: c.dist})
	}
	return out, nil
}

// groundTruth scans every live node directly, bypassing the graph
// entirely. Used by recall benchmarks to establish the true top-k against
// which the approximate graph search is scored.
func (idx *Index) groundTruth(query preparedQuery, k int, filter FilterFunc) []Result {
	top := newBoundedQueue(k)
	for _, n := range idx.nodes {
		if n.deleted {
			continue
		}
		if filter != nil && !filter(n.value) {
			continue
		}
		d := idx.distTo(query, n)
		top.Push(candidate{n.id, d})
	}
	out := make([]Result, 0, top.Len())
	for _, c := range top.ToSlice() {
		n := idx.nodeAt(c.id)
		out = append(out, Result{ID: c.id, Value: n.value, Dist: c.dist})
	}
	return out
}
