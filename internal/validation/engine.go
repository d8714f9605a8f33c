package validation

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/notelens/notelens-backend/internal/cache"
	"github.com/notelens/notelens-backend/internal/matching"
	"github.com/notelens/notelens-backend/internal/platform/apperr"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/proposal"
	"github.com/notelens/notelens-backend/internal/types"
)

const DefaultBatchConcurrency = 4

// TopicStore is the persistence contract the engine needs for topics. The
// core treats loaded topics as already validated and deserialized.
type TopicStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*types.Topic, error)
	SaveDerived(ctx context.Context, id uuid.UUID, embedding []float32, score float64) error
}

// ResultStore persists validation results. Optional: a nil store keeps the
// engine cache-only.
type ResultStore interface {
	Create(ctx context.Context, result *types.ValidationResult) error
}

// ProposalStore persists generated proposals. Optional.
type ProposalStore interface {
	CreateBatch(ctx context.Context, proposals []*types.EnhancementProposal) error
}

// Result is one validation outcome. A degraded result has the same shape as
// a normal one; only the flag and ServedBy differ.
type Result struct {
	TopicID    uuid.UUID                   `json:"topic_id"`
	Score      float64                     `json:"score"`
	Gaps       []types.ContentGap          `json:"gaps"`
	MatchedIDs []uuid.UUID                 `json:"matched_ids"`
	Proposals  []types.EnhancementProposal `json:"proposals"`
	State      types.ValidationState       `json:"state"`
	Degraded   bool                        `json:"degraded"`
	ServedBy   string                      `json:"served_by"`
	Events     []types.DegradationEvent    `json:"events,omitempty"`
	CreatedAt  time.Time                   `json:"created_at"`
	FromCache  bool                        `json:"-"`
}

// Engine orchestrates one topic's validation: match, detect gaps, score,
// propose, cache. Stages run sequentially within a request; independent
// requests run concurrently.
type Engine struct {
	log       *logger.Logger
	cache     *cache.Manager
	matcher   *matching.Matcher
	generator *proposal.Generator
	topics    TopicStore
	results   ResultStore
	proposals ProposalStore
	rules     Rules

	concurrency int
}

func NewEngine(log *logger.Logger, cm *cache.Manager, matcher *matching.Matcher, generator *proposal.Generator, topics TopicStore, rules Rules) *Engine {
	return &Engine{
		log:         log.With("service", "ValidationEngine"),
		cache:       cm,
		matcher:     matcher,
		generator:   generator,
		topics:      topics,
		rules:       rules,
		concurrency: DefaultBatchConcurrency,
	}
}

// WithStores attaches the optional persistence sinks.
func (e *Engine) WithStores(results ResultStore, proposals ProposalStore) *Engine {
	e.results = results
	e.proposals = proposals
	return e
}

// WithConcurrency bounds batch fan-out; values under 1 keep the default.
func (e *Engine) WithConcurrency(n int) *Engine {
	if n >= 1 {
		e.concurrency = n
	}
	return e
}

// Validate runs the pipeline for one topic. Unknown topic ids fail NotFound
// and bad options fail InvalidInput; everything else degrades rather than
// fails, as long as some provider in the ladder can answer.
func (e *Engine) Validate(ctx context.Context, topicID uuid.UUID, refs []types.ReferenceDocument, opts matching.Options) (*Result, error) {
	topic, err := e.topics.GetByID(ctx, topicID)
	if err != nil {
		return nil, err
	}
	if topic == nil {
		return nil, apperr.NotFound("topic %s not found", topicID)
	}

	cacheContent := matching.CompositeText(topic) + "|" + referenceFingerprint(refs)
	if raw, ok := e.cache.Get(ctx, cache.ServiceValidation, topicID.String(), cacheContent); ok {
		var cached Result
		if err := json.Unmarshal(raw, &cached); err == nil {
			cached.FromCache = true
			return &cached, nil
		}
	}

	// Matching.
	matchSet, err := e.matcher.Rank(ctx, topic, refs, opts)
	if err != nil {
		return nil, err
	}

	// Gap detection and scoring: synchronous, in-memory.
	gaps := DetectGaps(topic, matchSet.Matches, refs, e.rules)
	score := Score(topic, gaps)

	// Proposals.
	outcome := e.generator.Generate(ctx, topic, gaps, matchSet.Matches, refs, matchSet.TopicVector)

	result := &Result{
		TopicID:    topicID,
		Score:      score,
		Gaps:       gaps,
		MatchedIDs: matchedIDs(matchSet.Matches),
		Proposals:  outcome.Proposals,
		State:      types.StateDone,
		Degraded:   matchSet.Degraded || len(outcome.Events) > 0,
		ServedBy:   matchSet.ServedBy,
		Events:     append(matchSet.Events, outcome.Events...),
		CreatedAt:  time.Now().UTC(),
	}

	e.persist(ctx, topic, matchSet, result)

	if raw, err := json.Marshal(result); err == nil {
		e.cache.Set(ctx, cache.ServiceValidation, topicID.String(), cacheContent, raw)
	}

	if result.Degraded {
		e.log.Warn("validation completed degraded", "topic_id", topicID, "served_by", result.ServedBy, "events", len(result.Events))
	}
	return result, nil
}

// BatchOutcome is one topic's result within a batch; failures stay local to
// their topic.
type BatchOutcome struct {
	TopicID uuid.UUID
	Result  *Result
	Err     error
}

// ValidateBatch fans per-topic work out to a bounded pool so provider rate
// limits hold. A failing topic never aborts its siblings.
func (e *Engine) ValidateBatch(ctx context.Context, topicIDs []uuid.UUID, refs []types.ReferenceDocument, opts matching.Options) []BatchOutcome {
	outcomes := make([]BatchOutcome, len(topicIDs))

	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.concurrency)
	for i, topicID := range topicIDs {
		i, topicID := i, topicID
		eg.Go(func() error {
			result, err := e.Validate(egctx, topicID, refs, opts)
			outcomes[i] = BatchOutcome{TopicID: topicID, Result: result, Err: err}
			return nil
		})
	}
	_ = eg.Wait()
	return outcomes
}

func (e *Engine) persist(ctx context.Context, topic *types.Topic, matchSet *matching.MatchSet, result *Result) {
	if e.topics != nil && matchSet.TopicVector != nil {
		if err := e.topics.SaveDerived(ctx, topic.ID, matchSet.TopicVector, result.Score); err != nil {
			e.log.Warn("failed to save derived topic state", "topic_id", topic.ID, "error", err)
		}
	}
	if e.results != nil {
		stored := &types.ValidationResult{
			TopicID:   result.TopicID,
			Score:     result.Score,
			Degraded:  result.Degraded,
			ServedBy:  result.ServedBy,
			CreatedAt: result.CreatedAt,
		}
		if raw, err := json.Marshal(result.Gaps); err == nil {
			stored.Gaps = raw
		}
		if raw, err := json.Marshal(result.MatchedIDs); err == nil {
			stored.MatchedIDs = raw
		}
		if err := e.results.Create(ctx, stored); err != nil {
			e.log.Warn("failed to persist validation result", "topic_id", result.TopicID, "error", err)
		}
	}
	if e.proposals != nil && len(result.Proposals) > 0 {
		batch := make([]*types.EnhancementProposal, 0, len(result.Proposals))
		for i := range result.Proposals {
			batch = append(batch, &result.Proposals[i])
		}
		if err := e.proposals.CreateBatch(ctx, batch); err != nil {
			e.log.Warn("failed to persist proposals", "topic_id", result.TopicID, "error", err)
		}
	}
}

// referenceFingerprint keys the cache on the exact reference set and its
// content, so an edited reference misses without explicit invalidation.
func referenceFingerprint(refs []types.ReferenceDocument) string {
	parts := make([]string, 0, len(refs))
	for i := range refs {
		parts = append(parts, refs[i].ID.String()+":"+cache.ContentHash(refs[i].Text))
	}
	sort.Strings(parts)
	return cache.ContentHash(strings.Join(parts, ","))
}

func matchedIDs(matches []types.MatchResult) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.ReferenceID)
	}
	return ids
}
