package vecset

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	idx, _ := Create(DefaultParams(16))
	r := rand.New(rand.NewSource(5))
	for i := 0; i < 150; i++ {
		idx.Insert(randVector(16, r), nil, 0)
	}
	idx.Delete(NodeID(50))

	var buf bytes.Buffer
	if err := idx.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := Load(&buf, DefaultParams(16))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Size() != idx.Size() {
		t.Errorf("size mismatch: got %d, want %d", loaded.Size(), idx.Size())
	}
	if loaded.entry != idx.entry {
		t.Errorf("entry mismatch: got %d, want %d", loaded.entry, idx.entry)
	}
	if loaded.maxLvl != idx.maxLvl {
		t.Errorf("maxLvl mismatch: got %d, want %d", loaded.maxLvl, idx.maxLvl)
	}

	slot := loaded.AcquireReadSlot()
	defer loaded.ReleaseReadSlot(slot)
	n := loaded.nodeAt(0)
	results, err := loaded.Search(n.vectorF32, 1, slot, false)
	if err != nil {
		t.Fatalf("search after load: %v", err)
	}
	if len(results) == 0 || results[0].ID != 0 {
		t.Errorf("expected node 0 to be its own neighbor after reload, got %+v", results)
	}
}

func TestLoadRejectsDimensionMismatch(t *testing.T) {
	idx, _ := Create(DefaultParams(16))
	r := rand.New(rand.NewSource(1))
	idx.Insert(randVector(16, r), nil, 0)

	var buf bytes.Buffer
	idx.Save(&buf)

	if _, err := Load(&buf, DefaultParams(8)); err == nil {
		t.Fatalf("expected dimension mismatch error")
	}
}

func TestLoadRejectsCorruptMagic(t *testing.T) {
	buf := bytes.NewBufferString("not a vecset file, just junk bytes")
	if _, err := Load(buf, DefaultParams(8)); err == nil {
		t.Fatalf("expected corrupt graph error for bad magic")
	}
}

func TestMixEdgeSymmetric(t *testing.T) {
	a, b := NodeID(3), NodeID(9)
	if mixEdge(a, b) != mixEdge(b, a) {
		t.Errorf("mixEdge should be symmetric regardless of argument order")
	}
}

func TestReciprocityAuditDetectsOneSidedLink(t *testing.T) {
	idx, _ := Create(DefaultParams(8))
	r := rand.New(rand.NewSource(2))
	for i := 0; i < 20; i++ {
		idx.Insert(randVector(8, r), nil, 0)
	}

	idx.nodes[0].links[0] = append(idx.nodes[0].links[0], idx.nodes[1].id)

	if err := idx.auditReciprocity(); err == nil {
		t.Fatalf("expected reciprocity audit to fail on a one-sided link")
	}
}
