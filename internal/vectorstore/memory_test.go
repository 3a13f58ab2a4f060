package vectorstore

import (
	"context"
	"testing"
)

func intPtr(v int) *int { return &v }

func TestInMemoryStoreUpsertAndQuery(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if err := s.Upsert(ctx, "v1", []float32{1, 0, 0}, map[string]any{"kind": "message"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(ctx, "v2", []float32{0, 1, 0}, map[string]any{"kind": "message"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 5, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("len(matches) = %d, want 2", len(matches))
	}
	if matches[0].ID != "v1" {
		t.Errorf("closest match = %q, want v1", matches[0].ID)
	}
	if matches[0].Similarity <= matches[1].Similarity {
		t.Errorf("expected v1 to be strictly more similar than v2: %+v", matches)
	}
}

func TestInMemoryStoreQueryRespectsK(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		id := string(rune('a' + i))
		_ = s.Upsert(ctx, id, []float32{1, float32(i), 0}, nil)
	}

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 2, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 2 {
		t.Errorf("len(matches) = %d, want 2", len(matches))
	}
}

func TestInMemoryStoreQueryAppliesFilter(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Upsert(ctx, "v1", []float32{1, 0, 0}, map[string]any{"conversation_id": "c1", "importance_score": 8})
	_ = s.Upsert(ctx, "v2", []float32{1, 0, 0}, map[string]any{"conversation_id": "c2", "importance_score": 2})

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 10, Filter{ConversationID: "c1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "v1" {
		t.Errorf("matches = %+v, want only v1", matches)
	}

	matches, err = s.Query(ctx, []float32{1, 0, 0}, 10, Filter{ImportanceMin: intPtr(5)})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "v1" {
		t.Errorf("matches = %+v, want only v1 (importance >= 5)", matches)
	}
}

func TestInMemoryStoreDelete(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Upsert(ctx, "v1", []float32{1, 0, 0}, nil)

	if err := s.Delete(ctx, "v1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	matches, err := s.Query(ctx, []float32{1, 0, 0}, 10, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("matches = %+v, want none after delete", matches)
	}
}

func TestInMemoryStoreDeleteWhere(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Upsert(ctx, "v1", []float32{1, 0, 0}, map[string]any{"conversation_id": "c1"})
	_ = s.Upsert(ctx, "v2", []float32{1, 0, 0}, map[string]any{"conversation_id": "c2"})

	if err := s.DeleteWhere(ctx, Filter{ConversationID: "c1"}); err != nil {
		t.Fatalf("delete where: %v", err)
	}

	matches, err := s.Query(ctx, []float32{1, 0, 0}, 10, Filter{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(matches) != 1 || matches[0].ID != "v2" {
		t.Errorf("matches = %+v, want only v2 remaining", matches)
	}
}

func TestDistanceToSimilarityClampsRange(t *testing.T) {
	if got := DistanceToSimilarity(-1); got != 1 {
		t.Errorf("DistanceToSimilarity(-1) = %v, want 1", got)
	}
	if got := DistanceToSimilarity(3); got != 0 {
		t.Errorf("DistanceToSimilarity(3) = %v, want 0", got)
	}
	if got := DistanceToSimilarity(1); got != 0.5 {
		t.Errorf("DistanceToSimilarity(1) = %v, want 0.5", got)
	}
}
