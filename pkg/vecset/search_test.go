package vecset

import (
	"math/rand"
	"testing"
)

func TestSearchFilteredRespectsMaxCandidates(t *testing.T) {
	idx, _ := Create(DefaultParams(16))
	r := rand.New(rand.NewSource(41))

	for i := 0; i < 300; i++ {
		idx.Insert(randVector(16, r), i, 0)
	}

	slot := idx.AcquireReadSlot()
	defer idx.ReleaseReadSlot(slot)

	// An always-false predicate combined with a tiny evaluation budget
	// must not force the search to keep expanding the frontier until it
	// exhausts the graph looking for a match; it should give up quietly.
	matchesNone := func(value any) bool { return false }

	results, err := idx.SearchFiltered(randVector(16, r), 5, slot, matchesNone, 1)
	if err != nil {
		t.Fatalf("search filtered: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected no matches from an always-false predicate, got %d", len(results))
	}
}

func TestSearchFilteredFindsMatchWithoutBudget(t *testing.T) {
	idx, _ := Create(DefaultParams(16))
	r := rand.New(rand.NewSource(43))

	var ids []NodeID
	for i := 0; i < 100; i++ {
		id, _ := idx.Insert(randVector(16, r), i, 0)
		ids = append(ids, id)
	}

	slot := idx.AcquireReadSlot()
	defer idx.ReleaseReadSlot(slot)

	matchFirst := func(value any) bool {
		v, ok := value.(int)
		return ok && v == 0
	}

	results, err := idx.SearchFiltered(randVector(16, r), 1, slot, matchFirst, 0)
	if err != nil {
		t.Fatalf("search filtered: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one match for a single-value predicate, got %d", len(results))
	}
	if results[0].ID != ids[0] {
		t.Errorf("expected match to be node %d, got %d", ids[0], results[0].ID)
	}
}
