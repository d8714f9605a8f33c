package matching

import (
	"context"
	"encoding/json"
	"math"

	"github.com/notelens/notelens-backend/internal/cache"
)

// Embedder turns text into fixed-dimension vectors. The dimension is fixed
// per deployment and must match across all stored and incoming vectors.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

// Cosine returns the cosine similarity of two vectors in [-1, 1]. A
// dimension mismatch or zero vector scores 0 rather than erroring; the
// ranking treats it as a non-match.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// EmbedCached is the read-through path for a single text: unedited text
// never triggers a recomputation because the key includes the content hash.
func EmbedCached(ctx context.Context, cm *cache.Manager, embedder Embedder, entityID, text string) ([]float32, error) {
	if raw, ok := cm.Get(ctx, cache.ServiceEmbedding, entityID, text); ok {
		var vec []float32
		if err := json.Unmarshal(raw, &vec); err == nil {
			return vec, nil
		}
	}

	vecs, err := embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, nil
	}

	if raw, err := json.Marshal(vecs[0]); err == nil {
		cm.Set(ctx, cache.ServiceEmbedding, entityID, text, raw)
	}
	return vecs[0], nil
}
