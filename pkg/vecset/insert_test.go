package vecset

import (
	"math/rand"
	"testing"
)

func TestPrepareAndCommitInsert(t *testing.T) {
	idx, _ := Create(DefaultParams(16))
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 50; i++ {
		idx.Insert(randVector(16, r), i, 0)
	}

	ctx, err := idx.PrepareInsert(randVector(16, r), "prepared")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	id, err := idx.TryCommitInsert(ctx)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if int(id) != 50 {
		t.Errorf("expected node id 50, got %d", id)
	}
}

func TestTryCommitInsertDetectsContention(t *testing.T) {
	idx, _ := Create(DefaultParams(16))
	r := rand.New(rand.NewSource(12))
	for i := 0; i < 20; i++ {
		idx.Insert(randVector(16, r), i, 0)
	}

	ctx, err := idx.PrepareInsert(randVector(16, r), "stale")
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}

	// A blocking insert races ahead and bumps the version fence.
	idx.Insert(randVector(16, r), "concurrent", 0)

	if _, err := idx.TryCommitInsert(ctx); err == nil {
		t.Fatalf("expected contention error after concurrent insert advanced version")
	}
}

func TestTryCommitInsertRejectsDoubleCommit(t *testing.T) {
	idx, _ := Create(DefaultParams(8))
	r := rand.New(rand.NewSource(13))
	ctx, _ := idx.PrepareInsert(randVector(8, r), "v")
	if _, err := idx.TryCommitInsert(ctx); err != nil {
		t.Fatalf("first commit: %v", err)
	}
	if _, err := idx.TryCommitInsert(ctx); err == nil {
		t.Fatalf("expected error on double commit")
	}
}

func TestAdmitPassRespectsRequiredBudget(t *testing.T) {
	idx, _ := Create(DefaultParams(8))
	r := rand.New(rand.NewSource(14))
	for i := 0; i < 30; i++ {
		idx.Insert(randVector(8, r), i, 0)
	}

	target := newNode(NodeID(len(idx.nodes)), "target", 0, idx.params.SlotCount)
	idx.applyStored(target, idx.storeVector(randVector(8, r)))
	idx.nodes = append(idx.nodes, target)

	cands := make([]candidate, 0, 30)
	for i := 0; i < 30; i++ {
		cands = append(cands, candidate{NodeID(i), idx.distBetween(target.id, NodeID(i))})
	}

	idx.admitPass(target, cands, 0, 5, 2, true)
	if len(target.links[0]) > 5 {
		t.Errorf("expected at most 5 neighbors admitted, got %d", len(target.links[0]))
	}
}

func TestInsertGrowsCapacityUnderForcedReconnection(t *testing.T) {
	params := DefaultParams(4)
	params.M = 4
	idx, _ := Create(params)
	r := rand.New(rand.NewSource(15))

	// A small, tightly clustered graph forces layer 0 into pass 3: every
	// candidate is already near its own budget, so some node's capacity
	// must grow past its normal 2*M budget to admit the new node.
	base := []float32{1, 0, 0, 0}
	for i := 0; i < 40; i++ {
		v := make([]float32, 4)
		copy(v, base)
		for j := range v {
			v[j] += r.Float32() * 0.01
		}
		if _, err := idx.Insert(v, i, 0); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	grown := false
	for _, n := range idx.nodes {
		for _, g := range n.growth {
			if g > 0 {
				grown = true
			}
		}
	}
	if !grown {
		t.Skip("clustered insert pattern did not force capacity growth under this seed")
	}
}
