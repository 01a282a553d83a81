package vectorstore

import (
	"context"
	"math"
	"testing"

	"github.com/Eriayomide/vreg-chatbot/faq"
)

func seedPoints(t *testing.T, store *MemoryStore) {
	t.Helper()

	points := []Point{
		{
			ID:     "reg",
			Vector: []float32{1, 0},
			Entry:  faq.Entry{Question: "How do I register?", Answer: "On the portal.", Category: "registration"},
		},
		{
			ID:     "pay",
			Vector: []float32{0.9, 0.1},
			Entry:  faq.Entry{Question: "How do I pay?", Answer: "Through Remita.", Category: "payment"},
		},
		{
			ID:     "vin",
			Vector: []float32{0, 1},
			Entry:  faq.Entry{Question: "What is a VIN?", Answer: "The chassis number.", Category: "vin_validation"},
		},
	}
	if err := store.Upsert(context.Background(), points); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
}

func TestMemoryStoreSearchRanking(t *testing.T) {
	store := NewMemoryStore()
	seedPoints(t, store)

	results, err := store.Search(context.Background(), []float32{1, 0}, Filter{}, 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want 2", len(results))
	}
	if results[0].ID != "reg" || results[1].ID != "pay" {
		t.Errorf("Search() order = [%s %s], want [reg pay]", results[0].ID, results[1].ID)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestMemoryStoreSearchNoLimit(t *testing.T) {
	store := NewMemoryStore()
	seedPoints(t, store)

	results, err := store.Search(context.Background(), []float32{1, 0}, Filter{}, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Errorf("Search() with no limit returned %d results, want all 3", len(results))
	}
}

func TestMemoryStoreSearchCategoryFilter(t *testing.T) {
	store := NewMemoryStore()
	seedPoints(t, store)

	results, err := store.Search(context.Background(), []float32{1, 0}, Filter{Category: "payment"}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want 1", len(results))
	}
	if results[0].Entry.Category != "payment" {
		t.Errorf("result category = %q, want payment", results[0].Entry.Category)
	}
}

func TestMemoryStoreSearchMinScore(t *testing.T) {
	store := NewMemoryStore()
	seedPoints(t, store)

	results, err := store.Search(context.Background(), []float32{1, 0}, Filter{MinScore: 0.5}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("Search() returned %d results, want the orthogonal point dropped", len(results))
	}
	for _, r := range results {
		if r.Score < 0.5 {
			t.Errorf("result %s score %v below threshold", r.ID, r.Score)
		}
	}
}

func TestMemoryStoreSearchZeroMinScoreKeepsNegativeMatches(t *testing.T) {
	store := NewMemoryStore()
	err := store.Upsert(context.Background(), []Point{
		{ID: "opposite", Vector: []float32{-1, 0}, Entry: faq.Entry{Question: "q", Answer: "a"}},
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	results, err := store.Search(context.Background(), []float32{1, 0}, Filter{}, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Search() returned %d results, want the negative-score point kept", len(results))
	}
	if results[0].Score >= 0 {
		t.Errorf("score = %v, want negative", results[0].Score)
	}
}

func TestMemoryStoreUpsertReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first := Point{ID: "p1", Vector: []float32{1, 0}, Entry: faq.Entry{Question: "old"}}
	second := Point{ID: "p1", Vector: []float32{1, 0}, Entry: faq.Entry{Question: "new"}}

	if err := store.Upsert(ctx, []Point{first}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := store.Upsert(ctx, []Point{second}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 1 {
		t.Errorf("Count() = %d, want 1 after re-upsert", count)
	}

	results, err := store.Search(ctx, []float32{1, 0}, Filter{}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].Entry.Question != "new" {
		t.Errorf("Search() returned question %q, want the replaced entry", results[0].Entry.Question)
	}
}

func TestMemoryStoreReset(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	seedPoints(t, store)

	if err := store.Reset(ctx); err != nil {
		t.Fatalf("Reset() error = %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if count != 0 {
		t.Errorf("Count() = %d after reset, want 0", count)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1, 0}, []float32{1}, 0},
		{"empty", nil, nil, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("cosineSimilarity(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
