package vecset

import (
	"math"
	"math/bits"
)

// logM returns ln(m) guarding against m<=1, used to derive the default
// level-sampling multiplier 1/ln(M).
func logM(m int) float64 {
	if m <= 1 {
		return 1
	}
	return math.Log(float64(m))
}

// normalizeL2 scales v in place to unit length and returns the
// pre-normalization magnitude, so the caller can stash it on the node and
// approximately reconstruct the original vector later (GetNodeVector). A
// zero vector is left unchanged (its dot product with anything is 0, so
// cosineDistance gives it distance 1) and reports a magnitude of zero.
func normalizeL2(v []float32) float32 {
	var sumSq float64
	for _, c := range v {
		sumSq += float64(c) * float64(c)
	}
	if sumSq == 0 {
		return 0
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range v {
		v[i] /= norm
	}
	return norm
}

// cosineDistance returns 1 - dot(a,b) clamped to [0,2]. Both vectors are
// assumed already L2-normalized, making this equivalent to cosine distance.
func cosineDistance(a, b []float32) float32 {
	var dot float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
	}
	d := 1 - dot
	if d < 0 {
		d = 0
	}
	if d > 2 {
		d = 2
	}
	return d
}

// scalar8Distance reconstructs two Q8-encoded vectors against their stored
// per-vector ranges and returns the cosine distance between the
// reconstructions.
func scalar8Distance(a []int8, ra float32, b []int8, rb float32) float32 {
	var dot float32
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		fa := float32(a[i]) / 127 * ra
		fb := float32(b[i]) / 127 * rb
		dot += fa * fb
	}
	d := 1 - dot
	if d < 0 {
		d = 0
	}
	if d > 2 {
		d = 2
	}
	return d
}

// hammingDistance returns the number of differing sign bits between two
// equal-length packed-bit vectors, normalized to the [0,2] cosine-distance
// range so it composes with the bounded queue's ordering regardless of
// quantization mode: 0 bits differing maps to 0, all bits differing maps
// to 2.
func hammingDistance(a, b []uint64, dim int) float32 {
	var diff int
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		diff += bits.OnesCount64(a[i] ^ b[i])
	}
	if dim == 0 {
		return 0
	}
	return 2 * float32(diff) / float32(dim)
}
