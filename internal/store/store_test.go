package store

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/liliang-cn/vecset/pkg/vecset"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), path, vecset.DefaultParams(8))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close(context.Background()) })
	return s
}

func randVec8(r *rand.Rand) []float32 {
	v := make([]float32, 8)
	for i := range v {
		v[i] = r.Float32()*2 - 1
	}
	return v
}

func TestStoreInsertAssignsUUIDWhenEmpty(t *testing.T) {
	s := openTestStore(t)
	r := rand.New(rand.NewSource(1))
	id, err := s.Insert(context.Background(), randVec8(r), "hello", "")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id == "" {
		t.Fatalf("expected a generated id")
	}
}

func TestStoreInsertRejectsDuplicateID(t *testing.T) {
	s := openTestStore(t)
	r := rand.New(rand.NewSource(2))
	if _, err := s.Insert(context.Background(), randVec8(r), "v1", "dup"); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if _, err := s.Insert(context.Background(), randVec8(r), "v2", "dup"); err == nil {
		t.Fatalf("expected error inserting duplicate id")
	}
}

func TestStoreSearchReturnsExternalIDs(t *testing.T) {
	s := openTestStore(t)
	r := rand.New(rand.NewSource(3))

	var vecs [][]float32
	for i := 0; i < 20; i++ {
		v := randVec8(r)
		vecs = append(vecs, v)
		if _, err := s.Insert(context.Background(), v, i, ""); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	results, err := s.Search(vecs[5], 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected at least one result")
	}
	if results[0].ID == "" {
		t.Errorf("expected a non-empty external id on the closest match")
	}
}

func TestStoreDeleteThenSearchExcludesMember(t *testing.T) {
	s := openTestStore(t)
	r := rand.New(rand.NewSource(4))

	var ids []string
	var vecs [][]float32
	for i := 0; i < 15; i++ {
		v := randVec8(r)
		vecs = append(vecs, v)
		id, err := s.Insert(context.Background(), v, i, "")
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, id)
	}

	target := ids[3]
	if err := s.Delete(context.Background(), target); err != nil {
		t.Fatalf("delete: %v", err)
	}

	results, err := s.Search(vecs[3], 15)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, res := range results {
		if res.ID == target {
			t.Fatalf("deleted member %s appeared in search results", target)
		}
	}
}

func TestStoreVectorReconstructsInsertedMember(t *testing.T) {
	s := openTestStore(t)
	r := rand.New(rand.NewSource(6))
	v := randVec8(r)

	id, err := s.Insert(context.Background(), v, nil, "")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := s.Vector(id)
	if err != nil {
		t.Fatalf("vector: %v", err)
	}
	if len(got) != len(v) {
		t.Fatalf("expected a %d-dim vector, got %d", len(v), len(got))
	}
}

func TestStoreVectorUnknownIDFails(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.Vector("does-not-exist"); err == nil {
		t.Fatalf("expected error for unknown external id")
	}
}

func TestStoreValidateOnPopulatedGraph(t *testing.T) {
	s := openTestStore(t)
	r := rand.New(rand.NewSource(7))

	var ids []string
	for i := 0; i < 40; i++ {
		id, err := s.Insert(context.Background(), randVec8(r), i, "")
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids[:10] {
		if err := s.Delete(context.Background(), id); err != nil {
			t.Fatalf("delete: %v", err)
		}
	}

	reachable, reciprocal := s.Validate()
	if !reciprocal {
		t.Errorf("expected a reciprocal graph")
	}
	if reachable != 30 {
		t.Errorf("expected 30 reachable live members, got %d", reachable)
	}
}

func TestStoreCloseAndReopenPersistsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persist.db")
	ctx := context.Background()

	s, err := Open(ctx, path, vecset.DefaultParams(8))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	r := rand.New(rand.NewSource(5))
	var firstVec []float32
	for i := 0; i < 10; i++ {
		v := randVec8(r)
		if i == 0 {
			firstVec = v
		}
		if _, err := s.Insert(ctx, v, i, ""); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := s.Close(ctx); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(ctx, path, vecset.DefaultParams(8))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close(ctx)

	if reopened.Info().Stats.Live != 10 {
		t.Errorf("expected 10 live members after reopen, got %d", reopened.Info().Stats.Live)
	}
	results, err := reopened.Search(firstVec, 1)
	if err != nil {
		t.Fatalf("search after reopen: %v", err)
	}
	if len(results) == 0 {
		t.Fatalf("expected a result after reopen")
	}
}
