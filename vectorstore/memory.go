package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore keeps points in process memory and scores them with cosine
// similarity. It is the default driver; the FAQ knowledge base is small
// enough that a full scan per query is fine.
type MemoryStore struct {
	mu     sync.RWMutex
	points map[string]Point
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		points: make(map[string]Point),
	}
}

// Upsert inserts or replaces points by ID.
func (s *MemoryStore) Upsert(ctx context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		s.points[p.ID] = p
	}
	return nil
}

// Search scores every stored point against the query vector and returns the
// top matches in descending score order.
func (s *MemoryStore) Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, p := range s.points {
		if filter.Category != "" && p.Entry.Category != filter.Category {
			continue
		}

		score := float32(cosineSimilarity(vector, p.Vector))
		if filter.MinScore > 0 && score < filter.MinScore {
			continue
		}

		results = append(results, SearchResult{
			ID:    p.ID,
			Score: score,
			Entry: p.Entry,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// Count reports how many points the store holds.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.points), nil
}

// Reset drops all indexed points.
func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.points = make(map[string]Point)
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
