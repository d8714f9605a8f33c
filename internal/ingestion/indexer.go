package ingestion

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/notelens/notelens-backend/internal/cache"
	"github.com/notelens/notelens-backend/internal/matching"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/repos"
	"github.com/notelens/notelens-backend/internal/types"
)

// VectorIndex is the write side of the vector backend. Satisfied by
// platform/qdrant.VectorStore; nil when vector search is disabled.
type VectorIndex interface {
	Upsert(ctx context.Context, referenceID uuid.UUID, chunkIndex int, vector []float32) error
	Delete(ctx context.Context, referenceID uuid.UUID) error
}

// Indexer prepares reference documents for retrieval: windows long texts,
// embeds each window through the cache, pushes vectors to the backend and
// persists the chunk set.
type Indexer struct {
	log      *logger.Logger
	cache    *cache.Manager
	embedder matching.Embedder
	vector   VectorIndex
	refs     repos.ReferenceRepo
}

func NewIndexer(log *logger.Logger, cm *cache.Manager, embedder matching.Embedder, vector VectorIndex, refs repos.ReferenceRepo) *Indexer {
	return &Indexer{
		log:      log.With("service", "ReferenceIndexer"),
		cache:    cm,
		embedder: embedder,
		vector:   vector,
		refs:     refs,
	}
}

// IndexReferences processes each document independently; one failing
// reference is logged and skipped so the rest of the corpus still indexes.
// Returns the number of documents fully indexed.
func (ix *Indexer) IndexReferences(ctx context.Context, refs []types.ReferenceDocument) int {
	indexed := 0
	for i := range refs {
		if err := ix.indexOne(ctx, &refs[i]); err != nil {
			ix.log.Warn("reference indexing failed", "reference_id", refs[i].ID, "error", err)
			continue
		}
		indexed++
	}
	return indexed
}

func (ix *Indexer) indexOne(ctx context.Context, ref *types.ReferenceDocument) error {
	windows := matching.Chunk(ref.Text, matching.DefaultChunkThreshold, matching.DefaultChunkWindow, matching.DefaultChunkOverlap)

	chunks := make([]*types.ReferenceChunk, 0, len(windows))
	for idx, window := range windows {
		vec, err := matching.EmbedCached(ctx, ix.cache, ix.embedder, ref.ID.String(), window)
		if err != nil {
			return err
		}
		if ix.vector != nil {
			if err := ix.vector.Upsert(ctx, ref.ID, idx, vec); err != nil {
				return err
			}
		}
		raw, err := json.Marshal(vec)
		if err != nil {
			return err
		}
		chunks = append(chunks, &types.ReferenceChunk{
			ReferenceID: ref.ID,
			Index:       idx,
			Text:        window,
			Embedding:   datatypes.JSON(raw),
		})
	}

	if ix.refs != nil {
		if err := ix.refs.ReplaceChunks(ctx, ref.ID, chunks); err != nil {
			return err
		}
	}
	return nil
}

// RemoveReference drops a document from the vector backend and expires the
// validation entries of the topics that depended on it.
func (ix *Indexer) RemoveReference(ctx context.Context, referenceID uuid.UUID, affectedTopics []uuid.UUID) error {
	if ix.vector != nil {
		if err := ix.vector.Delete(ctx, referenceID); err != nil {
			return err
		}
	}
	ix.cache.InvalidateReference(ctx, referenceID, affectedTopics)
	return nil
}
