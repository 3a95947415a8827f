package vecset

import (
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
)

// Index is an HNSW vector set. The zero value is not usable; construct one
// with Create or Load.
//
// Index is safe for one writer and many concurrent readers: Insert and
// Delete take the exclusive lock, while Search, RandomNode, and the
// optimistic Prepare phase take the shared lock plus an acquired reader
// slot. See AcquireReadSlot for the slot-based epoch tracking that lets
// concurrent readers skip per-scan visited-set allocation.
type Index struct {
	params Params

	mu      sync.RWMutex
	nodes   []*node // index i holds NodeID(i); never shrinks, tombstoned on delete
	entry   NodeID
	maxLvl  int
	version uint64 // bumped on every structural mutation; backs optimistic insert's contention check

	slots     []slot
	rrCounter atomic.Int64

	rng *rand.Rand // writer-path-only level sampler; always called under mu (write-locked)

	projection *projectionMatrix // nil unless Params.ProjectionDim enables it

	cursors   map[*Cursor]struct{}
	cursorsMu sync.Mutex
}

// Create builds an empty Index from Params.
func Create(params Params) (*Index, error) {
	if err := params.validate(); err != nil {
		return nil, wrapErr("create", err)
	}
	params.normalize()

	idx := &Index{
		params: params,
		entry:  noNode,
		slots:  make([]slot, params.SlotCount),
		rng:    newWriterRNG(params.Seed),
	}

	if params.ProjectionDim > 0 && params.ProjectionDim < params.Dim {
		idx.projection = newProjectionMatrix(params.Dim, params.ProjectionDim, params.Seed)
	}

	idx.params.Logger.Info("index created", "dim", params.Dim, "quantize", params.Quantize.String(), "m", params.M)
	return idx, nil
}

// Size returns the number of live (non-deleted) nodes.
func (idx *Index) Size() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n := 0
	for _, nd := range idx.nodes {
		if !nd.deleted {
			n++
		}
	}
	return n
}

// Dim returns the index's configured vector dimensionality.
func (idx *Index) Dim() int { return idx.params.Dim }

// Stats summarizes the current graph shape.
type Stats struct {
	Live     int
	Deleted  int
	MaxLevel int
	EntrySet bool
	Quantize Quantization
}

// Stats returns a snapshot of the index's current shape.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	s := Stats{MaxLevel: idx.maxLvl, EntrySet: idx.entry != noNode, Quantize: idx.params.Quantize}
	for _, nd := range idx.nodes {
		if nd.deleted {
			s.Deleted++
		} else {
			s.Live++
		}
	}
	return s
}

// newWriterRNG constructs the writer-path level-sampling generator from a
// persisted seed, used by Load to reproduce the same rng state an Insert
// immediately following a reload would have started from.
func newWriterRNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = -0x61C8864680B583EB // bit pattern 0x9E3779B97F4A7C15 as int64
	}
	return rand.New(rand.NewSource(seed))
}

func (idx *Index) nodeAt(id NodeID) *node {
	if int(id) >= len(idx.nodes) {
		return nil
	}
	return idx.nodes[id]
}

// selectLevel samples the layer a newly-inserted node is promoted to,
// using the configured exponential distribution and capping at MaxLevel.
// Must be called with idx.mu held for writing: it consumes the shared
// writer-path rng.
func (idx *Index) selectLevel() int {
	lvl := int(-math.Log(idx.rng.Float64()) * idx.params.LevelMultiplier)
	if lvl > idx.params.MaxLevel {
		lvl = idx.params.MaxLevel
	}
	if lvl < 0 {
		lvl = 0
	}
	return lvl
}
