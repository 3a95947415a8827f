package vecset

// Cursor iterates live nodes in ID order. It is deletion-safe: if a node
// the cursor hasn't yet reached is deleted mid-iteration, the cursor
// skips it instead of returning a stale value, because Index notifies
// every live cursor's deleted-set on every Delete.
type Cursor struct {
	idx     *Index
	next    NodeID
	deleted map[NodeID]struct{}
}

// NewCursor opens a cursor over idx starting at the first live node.
func (idx *Index) NewCursor() *Cursor {
	c := &Cursor{idx: idx, deleted: make(map[NodeID]struct{})}
	idx.cursorsMu.Lock()
	if idx.cursors == nil {
		idx.cursors = make(map[*Cursor]struct{})
	}
	idx.cursors[c] = struct{}{}
	idx.cursorsMu.Unlock()
	return c
}

// Close releases the cursor's registration. A closed cursor must not be
// used again.
func (c *Cursor) Close() {
	c.idx.cursorsMu.Lock()
	delete(c.idx.cursors, c)
	c.idx.cursorsMu.Unlock()
}

// Next advances the cursor and returns the next live node, or ok=false
// once every node has been visited.
func (c *Cursor) Next() (Result, bool) {
	c.idx.mu.RLock()
	defer c.idx.mu.RUnlock()

	for int(c.next) < len(c.idx.nodes) {
		id := c.next
		c.next++
		if _, wasDeleted := c.deleted[id]; wasDeleted {
			continue
		}
		n := c.idx.nodes[id]
		if n.deleted {
			continue
		}
		return Result{ID: n.id, Value: n.value}, true
	}
	return Result{}, false
}

// notifyCursorsDeleted marks id as deleted in every live cursor so a
// cursor that hasn't reached it yet will skip it rather than surface a
// tombstoned node.
func (idx *Index) notifyCursorsDeleted(id NodeID) {
	idx.cursorsMu.Lock()
	defer idx.cursorsMu.Unlock()
	for c := range idx.cursors {
		c.deleted[id] = struct{}{}
	}
}
