// Package vecset implements an in-memory vector set backed by a Hierarchical
// Navigable Small World (HNSW) proximity graph.
//
// The graph supports insertion with bidirectional-link discipline, deletion
// with neighborhood reconnection, k-nearest-neighbor search (optionally
// predicate-filtered, with a linear-scan ground truth variant for recall
// testing), optional per-vector scalar (Q8) or binary quantization, an
// optional random projection for dimensionality reduction, a one-writer /
// many-readers concurrency model with per-reader epoch slots, an optimistic
// (prepare/commit) insertion path, a deletion-safe iteration cursor, and a
// serialization format that stores links by node ID and audits reciprocity
// on load. GetNodeVector reconstructs an approximate copy of a stored
// vector from its (possibly quantized) representation, RandomNode samples
// a live node by graph-biased layered descent, and ValidateGraph runs an
// independent reachability/reciprocity check over the whole structure.
//
// vecset only supports cosine/dot-product ranking: vectors are L2-normalized
// on insert, so Euclidean distance is not meaningful here. Updates are not
// supported in place — reinserting a vector creates a new node.
//
//	idx, err := vecset.Create(vecset.DefaultParams(128))
//	id, err := idx.Insert(vector, "my-value", 0)
//	slot := idx.AcquireReadSlot()
//	results, err := idx.Search(query, 10, slot, false)
//	idx.ReleaseReadSlot(slot)
package vecset
