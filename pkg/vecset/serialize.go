package vecset

import (
	"bufio"
	"encoding/binary"
	"io"
	"math"
)

const fileMagic uint32 = 0x76435345 // "vCSE"
const fileVersion uint16 = 1

// mixEdge produces a symmetric hash of an undirected edge (a,b): the
// same value regardless of which endpoint is "from". XOR-accumulating
// mixEdge(a,b) once for every directed link in the graph therefore
// cancels to zero if and only if every link has a matching reverse
// link, since a truly reciprocal pair contributes the identical value
// twice. Load uses this as a cheap whole-graph reciprocity audit without
// needing an O(E log E) pass over sorted edges.
func mixEdge(a, b NodeID) uint64 {
	lo, hi := uint64(a), uint64(b)
	if lo > hi {
		lo, hi = hi, lo
	}
	h := lo*0x9E3779B97F4A7C15 + hi
	h ^= h >> 33
	h *= 0xFF51AFD7ED558CCD
	h ^= h >> 33
	return h
}

// Save writes the full graph, vectors, and (if an AttributeCodec is
// configured) per-node values to w in a compact binary format.
func (idx *Index) Save(w io.Writer) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	bw := bufio.NewWriter(w)

	if err := writeU32(bw, fileMagic); err != nil {
		return wrapErr("save", err)
	}
	if err := writeU16(bw, fileVersion); err != nil {
		return wrapErr("save", err)
	}
	if err := writeU32(bw, uint32(idx.params.Dim)); err != nil {
		return wrapErr("save", err)
	}
	if err := writeU16(bw, uint16(idx.params.Quantize)); err != nil {
		return wrapErr("save", err)
	}
	if err := writeU32(bw, uint32(idx.params.M)); err != nil {
		return wrapErr("save", err)
	}
	if err := writeU32(bw, uint32(idx.params.MaxM0)); err != nil {
		return wrapErr("save", err)
	}
	if err := writeU32(bw, uint32(idx.params.ProjectionDim)); err != nil {
		return wrapErr("save", err)
	}
	if err := writeU64(bw, uint64(idx.params.Seed)); err != nil {
		return wrapErr("save", err)
	}
	if err := writeU32(bw, uint32(idx.entry)); err != nil { // noNode is written as math.MaxUint32
		return wrapErr("save", err)
	}
	if err := writeU32(bw, uint32(idx.maxLvl)); err != nil {
		return wrapErr("save", err)
	}
	if err := writeU32(bw, uint32(len(idx.nodes))); err != nil {
		return wrapErr("save", err)
	}

	for _, n := range idx.nodes {
		if err := idx.saveNode(bw, n); err != nil {
			return wrapErr("save", err)
		}
	}

	return wrapErr("save", bw.Flush())
}

func (idx *Index) saveNode(w *bufio.Writer, n *node) error {
	deletedByte := byte(0)
	if n.deleted {
		deletedByte = 1
	}
	if err := w.WriteByte(deletedByte); err != nil {
		return err
	}
	if err := writeF32(w, n.magnitude); err != nil {
		return err
	}

	switch idx.params.Quantize {
	case QuantScalar8:
		if err := writeF32(w, n.rangeQ8); err != nil {
			return err
		}
		for _, c := range n.vectorQ8 {
			if err := w.WriteByte(byte(c)); err != nil {
				return err
			}
		}
	case QuantBinary:
		for _, word := range n.vectorBin {
			if err := writeU64(w, word); err != nil {
				return err
			}
		}
	default:
		for _, c := range n.vectorF32 {
			if err := writeF32(w, c); err != nil {
				return err
			}
		}
	}

	if err := writeU32(w, uint32(len(n.links))); err != nil {
		return err
	}
	for _, level := range n.links {
		if err := writeU32(w, uint32(len(level))); err != nil {
			return err
		}
		for _, nb := range level {
			if err := writeU32(w, uint32(nb)); err != nil {
				return err
			}
		}
	}

	if idx.params.AttributeCodec != nil {
		data, err := idx.params.AttributeCodec.EncodeAttribute(n.value)
		if err != nil {
			return err
		}
		if err := writeU32(w, uint32(len(data))); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
	}

	return nil
}

// Load reads a graph previously written by Save. The supplied Params
// must agree with the file on Dim, Quantize, and ProjectionDim;
// disagreement returns ErrQuantizationMismatch. After the graph is
// reconstructed, Load runs a reciprocity audit (every directed link must
// have a matching reverse link) and fails with ErrCorruptGraph if it
// doesn't balance.
func Load(r io.Reader, params Params) (*Index, error) {
	if err := params.validate(); err != nil {
		return nil, wrapErr("load", err)
	}
	params.normalize()

	br := bufio.NewReader(r)

	magic, err := readU32(br)
	if err != nil || magic != fileMagic {
		return nil, wrapErr("load", ErrCorruptGraph)
	}
	if _, err := readU16(br); err != nil {
		return nil, wrapErr("load", ErrCorruptGraph)
	}

	dim, err := readU32(br)
	if err != nil {
		return nil, wrapErr("load", ErrCorruptGraph)
	}
	if int(dim) != params.Dim {
		return nil, wrapErr("load", ErrQuantizationMismatch)
	}

	quant, err := readU16(br)
	if err != nil {
		return nil, wrapErr("load", ErrCorruptGraph)
	}
	if Quantization(quant) != params.Quantize {
		return nil, wrapErr("load", ErrQuantizationMismatch)
	}

	m, _ := readU32(br)
	maxM0, _ := readU32(br)
	projDim, err := readU32(br)
	if err != nil {
		return nil, wrapErr("load", ErrCorruptGraph)
	}
	if int(projDim) != params.ProjectionDim {
		return nil, wrapErr("load", ErrQuantizationMismatch)
	}
	seed, err := readU64(br)
	if err != nil {
		return nil, wrapErr("load", ErrCorruptGraph)
	}

	entryRaw, err := readU32(br)
	if err != nil {
		return nil, wrapErr("load", ErrCorruptGraph)
	}
	entry := NodeID(entryRaw)
	if entryRaw == math.MaxUint32 {
		entry = noNode
	}
	maxLvl, err := readU32(br)
	if err != nil {
		return nil, wrapErr("load", ErrCorruptGraph)
	}
	count, err := readU32(br)
	if err != nil {
		return nil, wrapErr("load", ErrCorruptGraph)
	}

	params.M = int(m)
	params.MaxM0 = int(maxM0)

	idx := &Index{
		params: params,
		entry:  entry,
		maxLvl: int(maxLvl),
		slots:  make([]slot, params.SlotCount),
	}
	idx.rng = newWriterRNG(int64(seed))
	if params.ProjectionDim > 0 && params.ProjectionDim < params.Dim {
		idx.projection = newProjectionMatrix(params.Dim, params.ProjectionDim, int64(seed))
	}

	idx.nodes = make([]*node, count)
	for i := uint32(0); i < count; i++ {
		n, err := idx.loadNode(br, NodeID(i))
		if err != nil {
			return nil, wrapErr("load", err)
		}
		idx.nodes[i] = n
	}

	if err := idx.auditReciprocity(); err != nil {
		return nil, wrapErr("load", err)
	}
	idx.rebuildWorstCaches()

	return idx, nil
}

func (idx *Index) loadNode(r *bufio.Reader, id NodeID) (*node, error) {
	deletedByte, err := r.ReadByte()
	if err != nil {
		return nil, ErrCorruptGraph
	}

	magnitude, err := readF32(r)
	if err != nil {
		return nil, ErrCorruptGraph
	}
	n := &node{id: id, deleted: deletedByte != 0, magnitude: magnitude, visitedEpoch: make([]uint64, idx.params.SlotCount)}

	dim := idx.params.effectiveDim()
	switch idx.params.Quantize {
	case QuantScalar8:
		rangeVal, err := readF32(r)
		if err != nil {
			return nil, ErrCorruptGraph
		}
		n.rangeQ8 = rangeVal
		n.vectorQ8 = make([]int8, dim)
		for i := 0; i < dim; i++ {
			b, err := r.ReadByte()
			if err != nil {
				return nil, ErrCorruptGraph
			}
			n.vectorQ8[i] = int8(b)
		}
	case QuantBinary:
		words := (dim + 63) / 64
		n.vectorBin = make([]uint64, words)
		for i := 0; i < words; i++ {
			v, err := readU64(r)
			if err != nil {
				return nil, ErrCorruptGraph
			}
			n.vectorBin[i] = v
		}
	default:
		n.vectorF32 = make([]float32, dim)
		for i := 0; i < dim; i++ {
			v, err := readF32(r)
			if err != nil {
				return nil, ErrCorruptGraph
			}
			n.vectorF32[i] = v
		}
	}

	levelCount, err := readU32(r)
	if err != nil {
		return nil, ErrCorruptGraph
	}
	n.links = make([][]NodeID, levelCount)
	n.worst = make([]int, levelCount)
	n.growth = make([]int, levelCount)
	for l := uint32(0); l < levelCount; l++ {
		neighborCount, err := readU32(r)
		if err != nil {
			return nil, ErrCorruptGraph
		}
		n.links[l] = make([]NodeID, neighborCount)
		for i := uint32(0); i < neighborCount; i++ {
			nb, err := readU32(r)
			if err != nil {
				return nil, ErrCorruptGraph
			}
			n.links[l][i] = NodeID(nb)
		}
		n.worst[l] = -1
		// growth isn't persisted; reconstruct it from whatever the
		// neighbor count already exceeds the normal per-layer budget, so
		// a node pass 3 grew before Save doesn't appear over-capacity
		// after Load.
		if extra := int(neighborCount) - idx.layerBudget(int(l)); extra > 0 {
			n.growth[l] = extra
		}
	}

	if idx.params.AttributeCodec != nil {
		length, err := readU32(r)
		if err != nil {
			return nil, ErrCorruptGraph
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, ErrCorruptGraph
		}
		value, err := idx.params.AttributeCodec.DecodeAttribute(data)
		if err != nil {
			return nil, ErrCorruptGraph
		}
		n.value = value
	}

	return n, nil
}

// auditReciprocity XOR-accumulates mixEdge(from,to) over every directed
// link in the graph; the total must be zero, since each genuinely
// bidirectional link contributes the same value from both directions and
// XOR is self-cancelling.
func (idx *Index) auditReciprocity() error {
	var acc uint64
	for _, n := range idx.nodes {
		for l, level := range n.links {
			for _, nb := range level {
				if int(nb) >= len(idx.nodes) {
					return ErrCorruptGraph
				}
				acc ^= mixEdge(n.id, nb)
				_ = l
			}
		}
	}
	if acc != 0 {
		return ErrCorruptGraph
	}
	return nil
}

// rebuildWorstCaches recomputes every node's per-level worst-neighbor
// cache after a load, since the cache itself isn't persisted.
func (idx *Index) rebuildWorstCaches() {
	for _, n := range idx.nodes {
		for l := range n.links {
			n.rescanWorst(l, func(id NodeID) float32 { return idx.distBetween(n.id, id) })
		}
	}
}

func writeU16(w io.Writer, v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU32(w io.Writer, v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeU64(w io.Writer, v uint64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, err := w.Write(buf[:])
	return err
}

func writeF32(w io.Writer, v float32) error {
	return writeU32(w, math.Float32bits(v))
}

func readU16(r io.Reader) (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func readU32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func readU64(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func readF32(r io.Reader) (float32, error) {
	bits, err := readU32(r)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}
