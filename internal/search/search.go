package search

import (
	"context"

	"github.com/google/uuid"
)

// Match is one scored reference candidate from a search backend. Score is
// raw similarity, before any trust adjustment.
type Match struct {
	ReferenceID uuid.UUID
	Score       float64
}

// VectorSearcher queries a dense-vector backend. It may fail Unavailable;
// the matcher owns the fallback for that case.
type VectorSearcher interface {
	Query(ctx context.Context, vector []float32, topK int) ([]Match, error)
}

// LexicalSearcher is the degraded-quality fallback: same result shape,
// always available once prepared over the corpus.
type LexicalSearcher interface {
	Search(ctx context.Context, text string, topK int) ([]Match, error)
}
