package keyword

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/notelens/notelens-backend/internal/cache"
	"github.com/notelens/notelens-backend/internal/matching"
	"github.com/notelens/notelens-backend/internal/platform/apperr"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/types"
)

const (
	DefaultTopK      = 5
	MaxTopK          = 50
	DefaultThreshold = 0.7
)

// Extractor pulls candidate keywords out of reference text. It is expected
// to preserve multi-token technical terms and filter stopwords.
type Extractor interface {
	Extract(text, domain string) ([]string, error)
}

type entryKey struct {
	keyword string
	source  uuid.UUID
}

// Index is a flat collection of keyword embeddings answering top-k
// similarity queries with a linear scan. Embeddings live in an arena-style
// parallel slice so a future approximate-nearest-neighbor structure can
// replace the scan without changing the query contract.
type Index struct {
	log       *logger.Logger
	cache     *cache.Manager
	embedder  matching.Embedder
	extractor Extractor

	mu      sync.RWMutex
	vectors [][]float32
	entries []types.KeywordEntry
	byKey   map[entryKey]int
	loaded  bool

	loadGroup singleflight.Group
}

func NewIndex(log *logger.Logger, cm *cache.Manager, embedder matching.Embedder, extractor Extractor) *Index {
	return &Index{
		log:       log.With("service", "KeywordIndex"),
		cache:     cm,
		embedder:  embedder,
		extractor: extractor,
		byKey:     make(map[entryKey]int),
	}
}

// Add inserts or updates the entry for (keyword, source). The same keyword
// from a different source stays an independent entry; FindSimilar folds
// duplicates back together at query time.
func (x *Index) Add(keyword string, embedding []float32, sourceID uuid.UUID) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.add(keyword, embedding, sourceID)
}

// add must be called with the lock held.
func (x *Index) add(keyword string, embedding []float32, sourceID uuid.UUID) {
	key := entryKey{keyword: keyword, source: sourceID}
	if i, ok := x.byKey[key]; ok {
		x.vectors[i] = embedding
		return
	}
	x.byKey[key] = len(x.entries)
	x.entries = append(x.entries, types.KeywordEntry{Keyword: keyword, SourceID: sourceID})
	x.vectors = append(x.vectors, embedding)
}

// Len reports the number of indexed entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// FindSimilar scans every indexed embedding, keeps entries at or above the
// threshold, and returns the topK best sorted by similarity descending with
// keyword-string tie-breaks. Each keyword appears once; when the same
// keyword is indexed from several sources the best-scoring entry wins.
func (x *Index) FindSimilar(query []float32, topK int, threshold float64) ([]types.KeywordMatch, error) {
	if topK == 0 {
		topK = DefaultTopK
	}
	fields := map[string]string{}
	if topK < 1 || topK > MaxTopK {
		fields["top_k"] = fmt.Sprintf("must be between 1 and %d, got %d", MaxTopK, topK)
	}
	if threshold < 0 || threshold > 1 {
		fields["similarity_threshold"] = fmt.Sprintf("must be between 0.0 and 1.0, got %g", threshold)
	}
	if len(fields) > 0 {
		return nil, apperr.InvalidInput("invalid keyword query", fields)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	bestByKeyword := make(map[string]types.KeywordMatch, len(x.entries))
	for i, vec := range x.vectors {
		sim := matching.Cosine(query, vec)
		if sim < threshold {
			continue
		}
		entry := x.entries[i]
		if prev, ok := bestByKeyword[entry.Keyword]; ok && prev.Similarity >= sim {
			continue
		}
		bestByKeyword[entry.Keyword] = types.KeywordMatch{
			Keyword:    entry.Keyword,
			SourceID:   entry.SourceID,
			Similarity: sim,
		}
	}

	matches := make([]types.KeywordMatch, 0, len(bestByKeyword))
	for _, match := range bestByKeyword {
		matches = append(matches, match)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].Keyword < matches[j].Keyword
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// EnsureLoaded performs the one-time bulk load: extract keywords from every
// reference, embed them through the cache, and populate the index.
// Concurrent callers block on the same in-flight load instead of triggering
// duplicates, and a completed load makes later calls no-ops.
func (x *Index) EnsureLoaded(ctx context.Context, refs []types.ReferenceDocument) error {
	x.mu.RLock()
	loaded := x.loaded
	x.mu.RUnlock()
	if loaded {
		return nil
	}

	_, err, _ := x.loadGroup.Do("bulk-load", func() (interface{}, error) {
		x.mu.RLock()
		loaded := x.loaded
		x.mu.RUnlock()
		if loaded {
			return nil, nil
		}
		if err := x.bulkLoad(ctx, refs); err != nil {
			return nil, err
		}
		x.mu.Lock()
		x.loaded = true
		x.mu.Unlock()
		return nil, nil
	})
	return err
}

func (x *Index) bulkLoad(ctx context.Context, refs []types.ReferenceDocument) error {
	total := 0
	for i := range refs {
		ref := &refs[i]
		keywords, err := x.extractor.Extract(ref.Text, ref.Domain)
		if err != nil {
			x.log.Warn("keyword extraction failed, skipping reference", "reference_id", ref.ID, "error", err)
			continue
		}
		for _, kw := range keywords {
			vec, err := matching.EmbedCached(ctx, x.cache, x.embedder, ref.ID.String(), kw)
			if err != nil {
				return apperr.Unavailable("embedding backend failed during keyword load", err)
			}
			x.mu.Lock()
			x.add(kw, vec, ref.ID)
			x.mu.Unlock()
			total++
		}
	}
	x.log.Info("keyword index loaded", "references", len(refs), "entries", total)
	return nil
}
