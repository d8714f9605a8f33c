package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/notelens/notelens-backend/internal/cache"
	"github.com/notelens/notelens-backend/internal/platform/apperr"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/search"
	"github.com/notelens/notelens-backend/internal/types"
)

const (
	DefaultTopK      = 5
	MaxTopK          = 50
	DefaultThreshold = 0.7
)

type Options struct {
	// TopK bounds the result list; zero means DefaultTopK.
	TopK int
	// Threshold is the minimum trust-adjusted score; zero means
	// DefaultThreshold.
	Threshold float64
}

func (o Options) withDefaults() Options {
	if o.TopK == 0 {
		o.TopK = DefaultTopK
	}
	if o.Threshold == 0 {
		o.Threshold = DefaultThreshold
	}
	return o
}

func (o Options) validate() error {
	fields := map[string]string{}
	if o.TopK < 1 || o.TopK > MaxTopK {
		fields["top_k"] = fmt.Sprintf("must be between 1 and %d, got %d", MaxTopK, o.TopK)
	}
	if o.Threshold < 0 || o.Threshold > 1 {
		fields["similarity_threshold"] = fmt.Sprintf("must be between 0.0 and 1.0, got %g", o.Threshold)
	}
	if len(fields) > 0 {
		return apperr.InvalidInput("invalid match options", fields)
	}
	return nil
}

// TrustAdjust scales a raw similarity by source trust. The multiplier stays
// in [0.7, 1.0], so the adjusted score never exceeds the raw one and trust
// alone cannot push a near-zero similarity over a threshold.
func TrustAdjust(raw, trustWeight float64) float64 {
	return raw * (0.7 + 0.3*trustWeight)
}

// MatchSet is the ranked outcome of one retrieval, annotated with which
// provider served it. A lexical-served set is degraded but structurally
// identical to a normal one.
type MatchSet struct {
	Matches     []types.MatchResult
	TopicVector []float32
	ServedBy    string
	Degraded    bool
	Events      []types.DegradationEvent
}

// Matcher builds the field-weighted topic embedding and ranks references by
// trust-adjusted similarity. Retrieval runs through an ordered provider
// ladder; the first provider that answers wins and anything after the first
// marks the result degraded.
type Matcher struct {
	log      *logger.Logger
	cache    *cache.Manager
	embedder Embedder
	vector   search.VectorSearcher
	lexical  search.LexicalSearcher

	chunkThreshold int
	chunkWindow    int
	chunkOverlap   int
}

func NewMatcher(log *logger.Logger, cm *cache.Manager, embedder Embedder, vector search.VectorSearcher, lexical search.LexicalSearcher) *Matcher {
	return &Matcher{
		log:            log.With("service", "SimilarityMatcher"),
		cache:          cm,
		embedder:       embedder,
		vector:         vector,
		lexical:        lexical,
		chunkThreshold: DefaultChunkThreshold,
		chunkWindow:    DefaultChunkWindow,
		chunkOverlap:   DefaultChunkOverlap,
	}
}

type provider struct {
	name string
	run  func(ctx context.Context, topic *types.Topic, composite string, refs []types.ReferenceDocument, out *MatchSet) ([]search.Match, error)
}

// Rank returns the top-k references whose trust-adjusted score meets the
// threshold. An empty list is a valid, non-error result. It fails only when
// every provider in the ladder is unavailable, or on invalid options.
func (m *Matcher) Rank(ctx context.Context, topic *types.Topic, refs []types.ReferenceDocument, opts Options) (*MatchSet, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}

	composite := CompositeText(topic)
	trustByID := make(map[uuid.UUID]float64, len(refs))
	for _, ref := range refs {
		trustByID[ref.ID] = ref.SourceType.TrustWeight()
	}

	out := &MatchSet{}
	var raw []search.Match
	var lastErr error
	for i, p := range m.providers() {
		matches, err := p.run(ctx, topic, composite, refs, out)
		if err != nil {
			lastErr = err
			m.log.Warn("match provider failed, trying next", "provider", p.name, "error", err)
			out.Events = append(out.Events, types.DegradationEvent{
				At:     time.Now().UTC(),
				Stage:  "matching:" + p.name,
				Reason: err.Error(),
			})
			continue
		}
		raw = matches
		out.ServedBy = p.name
		out.Degraded = i > 0
		lastErr = nil
		break
	}
	if out.ServedBy == "" {
		return nil, apperr.Unavailable("no search provider available", lastErr)
	}

	out.Matches = rank(raw, trustByID, opts)
	return out, nil
}

func (m *Matcher) providers() []provider {
	ladder := make([]provider, 0, 3)
	if m.vector != nil {
		ladder = append(ladder, provider{name: "vector", run: m.runVector})
	}
	if m.embedder != nil {
		ladder = append(ladder, provider{name: "semantic", run: m.runSemantic})
	}
	if m.lexical != nil {
		ladder = append(ladder, provider{name: "lexical", run: m.runLexical})
	}
	return ladder
}

func (m *Matcher) runVector(ctx context.Context, topic *types.Topic, composite string, _ []types.ReferenceDocument, out *MatchSet) ([]search.Match, error) {
	vec, err := m.topicVector(ctx, topic, composite, out)
	if err != nil {
		return nil, err
	}
	return m.vector.Query(ctx, vec, MaxTopK)
}

// runSemantic ranks the supplied references locally: each long reference is
// split into overlapping windows and scored by its best window.
func (m *Matcher) runSemantic(ctx context.Context, topic *types.Topic, composite string, refs []types.ReferenceDocument, out *MatchSet) ([]search.Match, error) {
	vec, err := m.topicVector(ctx, topic, composite, out)
	if err != nil {
		return nil, err
	}

	matches := make([]search.Match, 0, len(refs))
	for i := range refs {
		ref := &refs[i]
		best := 0.0
		for _, window := range Chunk(ref.Text, m.chunkThreshold, m.chunkWindow, m.chunkOverlap) {
			chunkVec, err := EmbedCached(ctx, m.cache, m.embedder, ref.ID.String(), window)
			if err != nil {
				return nil, apperr.Unavailable("embedding backend failed", err)
			}
			if sim := Cosine(vec, chunkVec); sim > best {
				best = sim
			}
		}
		matches = append(matches, search.Match{ReferenceID: ref.ID, Score: best})
	}
	return matches, nil
}

func (m *Matcher) runLexical(ctx context.Context, _ *types.Topic, composite string, _ []types.ReferenceDocument, _ *MatchSet) ([]search.Match, error) {
	return m.lexical.Search(ctx, composite, MaxTopK)
}

func (m *Matcher) topicVector(ctx context.Context, topic *types.Topic, composite string, out *MatchSet) ([]float32, error) {
	if out.TopicVector != nil {
		return out.TopicVector, nil
	}
	vec, err := EmbedCached(ctx, m.cache, m.embedder, topic.ID.String(), composite)
	if err != nil {
		return nil, apperr.Unavailable("embedding backend failed", err)
	}
	out.TopicVector = vec
	return vec, nil
}

// rank applies trust adjustment, the threshold, and deterministic ordering:
// adjusted score descending, then trust weight, then reference id.
func rank(raw []search.Match, trustByID map[uuid.UUID]float64, opts Options) []types.MatchResult {
	results := make([]types.MatchResult, 0, len(raw))
	for _, match := range raw {
		trust, ok := trustByID[match.ReferenceID]
		if !ok {
			// A backend hit outside the candidate set has no trust
			// attribution and cannot be ranked.
			continue
		}
		adjusted := TrustAdjust(match.Score, trust)
		if adjusted < opts.Threshold {
			continue
		}
		results = append(results, types.MatchResult{
			ReferenceID: match.ReferenceID,
			RawScore:    match.Score,
			Adjusted:    adjusted,
			TrustWeight: trust,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Adjusted != results[j].Adjusted {
			return results[i].Adjusted > results[j].Adjusted
		}
		if results[i].TrustWeight != results[j].TrustWeight {
			return results[i].TrustWeight > results[j].TrustWeight
		}
		return results[i].ReferenceID.String() < results[j].ReferenceID.String()
	})

	if len(results) > opts.TopK {
		results = results[:opts.TopK]
	}
	return results
}
