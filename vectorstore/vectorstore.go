// Package vectorstore provides similarity search over embedded FAQ entries.
// Two drivers are available: an in-memory store that needs no external
// services, and a qdrant-backed store for deployments that already run one.
package vectorstore

import (
	"context"

	"github.com/Eriayomide/vreg-chatbot/faq"
)

// Point is an embedded FAQ entry ready for indexing.
type Point struct {
	ID     string
	Vector []float32
	Entry  faq.Entry
}

// SearchResult pairs a stored entry with its similarity score.
type SearchResult struct {
	ID    string
	Score float32
	Entry faq.Entry
}

// Filter narrows a search. The zero value matches everything.
type Filter struct {
	Category string
	MinScore float32
}

// Store indexes embedded FAQ entries and answers similarity queries.
type Store interface {
	// Upsert inserts or replaces points by ID.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to limit results ordered by descending similarity.
	Search(ctx context.Context, vector []float32, filter Filter, limit int) ([]SearchResult, error)

	// Count reports how many points the store holds.
	Count(ctx context.Context) (int, error)

	// Reset drops all indexed points.
	Reset(ctx context.Context) error

	// Close releases any underlying connections.
	Close() error
}
