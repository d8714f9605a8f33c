package ingestion

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/notelens/notelens-backend/internal/cache"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/types"
)

type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	out := make([][]float32, len(inputs))
	for i := range inputs {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

type recordingVectorIndex struct {
	mu      sync.Mutex
	upserts map[uuid.UUID][]int
	deleted []uuid.UUID
	err     error
}

func (r *recordingVectorIndex) Upsert(ctx context.Context, referenceID uuid.UUID, chunkIndex int, vector []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.upserts == nil {
		r.upserts = make(map[uuid.UUID][]int)
	}
	r.upserts[referenceID] = append(r.upserts[referenceID], chunkIndex)
	return nil
}

func (r *recordingVectorIndex) Delete(ctx context.Context, referenceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, referenceID)
	return nil
}

func newTestIndexer(vector VectorIndex) *Indexer {
	cm := cache.NewManager(logger.NewNop(), nil, 0)
	return NewIndexer(logger.NewNop(), cm, constEmbedder{}, vector, nil)
}

func TestIndexReferencesChunksLongDocuments(t *testing.T) {
	vector := &recordingVectorIndex{}
	ix := newTestIndexer(vector)

	longRef := types.ReferenceDocument{ID: uuid.New(), Text: strings.Repeat("a", 6000)}
	shortRef := types.ReferenceDocument{ID: uuid.New(), Text: "short text"}

	indexed := ix.IndexReferences(context.Background(), []types.ReferenceDocument{longRef, shortRef})
	if indexed != 2 {
		t.Fatalf("indexed = %d, want 2", indexed)
	}
	if got := len(vector.upserts[longRef.ID]); got != 2 {
		t.Fatalf("long document should upsert 2 windows, got %d", got)
	}
	if got := len(vector.upserts[shortRef.ID]); got != 1 {
		t.Fatalf("short document should upsert 1 window, got %d", got)
	}
}

func TestIndexReferencesSkipsFailingDocument(t *testing.T) {
	vector := &recordingVectorIndex{err: errors.New("collection missing")}
	ix := newTestIndexer(vector)

	refs := []types.ReferenceDocument{{ID: uuid.New(), Text: "doc"}}
	if indexed := ix.IndexReferences(context.Background(), refs); indexed != 0 {
		t.Fatalf("indexed = %d, want 0", indexed)
	}
}

func TestRemoveReferenceInvalidatesTopics(t *testing.T) {
	vector := &recordingVectorIndex{}
	cm := cache.NewManager(logger.NewNop(), nil, 0)
	ix := NewIndexer(logger.NewNop(), cm, constEmbedder{}, vector, nil)
	ctx := context.Background()

	refID := uuid.New()
	topicID := uuid.New()
	cm.Set(ctx, cache.ServiceValidation, topicID.String(), "content", []byte("v"))

	if err := ix.RemoveReference(ctx, refID, []uuid.UUID{topicID}); err != nil {
		t.Fatal(err)
	}
	if len(vector.deleted) != 1 || vector.deleted[0] != refID {
		t.Fatalf("vector delete not issued: %v", vector.deleted)
	}
	if _, ok := cm.Get(ctx, cache.ServiceValidation, topicID.String(), "content"); ok {
		t.Fatal("affected topic's validation entry should be invalidated")
	}
}
