package vecset

import (
	"math/rand"
	"testing"
)

func TestRandomNodeOnEmptyIndex(t *testing.T) {
	idx, _ := Create(DefaultParams(8))
	slot := idx.AcquireReadSlot()
	defer idx.ReleaseReadSlot(slot)

	if _, ok := idx.RandomNode(slot); ok {
		t.Fatalf("expected no random node from an empty index")
	}
}

func TestRandomNodeReturnsLiveNode(t *testing.T) {
	idx, _ := Create(DefaultParams(8))
	r := rand.New(rand.NewSource(31))

	ids := make(map[NodeID]bool)
	for i := 0; i < 50; i++ {
		id, _ := idx.Insert(randVector(8, r), i, 0)
		ids[id] = true
	}

	slot := idx.AcquireReadSlot()
	defer idx.ReleaseReadSlot(slot)

	for i := 0; i < 20; i++ {
		id, ok := idx.RandomNode(slot)
		if !ok {
			t.Fatalf("expected a random node, got none")
		}
		if !ids[id] {
			t.Fatalf("random node %d is not a known live node", id)
		}
	}
}

func TestRandomNodeSkipsDeletedEntry(t *testing.T) {
	idx, _ := Create(DefaultParams(8))
	r := rand.New(rand.NewSource(32))

	var ids []NodeID
	for i := 0; i < 30; i++ {
		id, _ := idx.Insert(randVector(8, r), i, 0)
		ids = append(ids, id)
	}

	for i := 0; i < 29; i++ {
		if err := idx.Delete(ids[i]); err != nil {
			t.Fatalf("delete %d: %v", ids[i], err)
		}
	}

	slot := idx.AcquireReadSlot()
	defer idx.ReleaseReadSlot(slot)

	id, ok := idx.RandomNode(slot)
	if !ok {
		t.Fatalf("expected the one remaining live node")
	}
	if id != ids[29] {
		t.Errorf("expected the surviving node %d, got %d", ids[29], id)
	}
}
