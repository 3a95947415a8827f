package vecset

import (
	"math"
	"math/rand"
	"testing"
)

func cosineSim(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestGetNodeVectorExactForUnquantized(t *testing.T) {
	idx, _ := Create(DefaultParams(8))
	original := []float32{3, -1, 2, 0, 4, -2, 1, 1}
	id, err := idx.Insert(original, "v", 0)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := idx.GetNodeVector(id)
	if err != nil {
		t.Fatalf("get node vector: %v", err)
	}
	if sim := cosineSim(got, original); sim < 0.999 {
		t.Errorf("expected near-exact reconstruction, cosine similarity %.4f", sim)
	}
}

func TestGetNodeVectorScalar8Recall(t *testing.T) {
	params := DefaultParams(64)
	params.Quantize = QuantScalar8
	idx, _ := Create(params)
	r := rand.New(rand.NewSource(21))

	original := randVector(64, r)
	id, _ := idx.Insert(original, nil, 0)

	got, err := idx.GetNodeVector(id)
	if err != nil {
		t.Fatalf("get node vector: %v", err)
	}
	if sim := cosineSim(got, original); sim < 0.95 {
		t.Errorf("expected cosine similarity >= 0.95 for Q8 reconstruction, got %.4f", sim)
	}
}

func TestGetNodeVectorBinaryRecall(t *testing.T) {
	params := DefaultParams(64)
	params.Quantize = QuantBinary
	idx, _ := Create(params)
	r := rand.New(rand.NewSource(22))

	original := randVector(64, r)
	id, _ := idx.Insert(original, nil, 0)

	got, err := idx.GetNodeVector(id)
	if err != nil {
		t.Fatalf("get node vector: %v", err)
	}
	if sim := cosineSim(got, original); sim < 0.6 {
		t.Errorf("expected cosine similarity >= 0.6 for binary reconstruction, got %.4f", sim)
	}
}

func TestGetNodeVectorUnknownNode(t *testing.T) {
	idx, _ := Create(DefaultParams(8))
	if _, err := idx.GetNodeVector(42); err == nil {
		t.Fatalf("expected error for unknown node")
	}
}

func TestGetNodeVectorDeletedNode(t *testing.T) {
	idx, _ := Create(DefaultParams(8))
	r := rand.New(rand.NewSource(23))
	id, _ := idx.Insert(randVector(8, r), nil, 0)
	if err := idx.Delete(id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := idx.GetNodeVector(id); err == nil {
		t.Fatalf("expected error reconstructing a deleted node's vector")
	}
}
