package proposal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/notelens/notelens-backend/internal/cache"
	"github.com/notelens/notelens-backend/internal/keyword"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/types"
)

// LLM is the completion backend for high-priority gaps. It may time out or
// return malformed output; the generator owns the template fallback.
type LLM interface {
	GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error)
}

// Generator produces one EnhancementProposal per gap. Critical and high
// severity gaps go to the LLM; medium and low always use deterministic
// templates. That split is a cost decision, not a failure fallback.
type Generator struct {
	log      *logger.Logger
	cache    *cache.Manager
	llm      LLM
	keywords *keyword.Index
}

func NewGenerator(log *logger.Logger, cm *cache.Manager, llm LLM, keywords *keyword.Index) *Generator {
	return &Generator{
		log:      log.With("service", "ProposalGenerator"),
		cache:    cm,
		llm:      llm,
		keywords: keywords,
	}
}

// Outcome carries the proposals plus any fallback activations that happened
// while producing them.
type Outcome struct {
	Proposals []types.EnhancementProposal
	Events    []types.DegradationEvent
}

// Generate never fails a whole request: an LLM failure falls back to the
// template for that gap, and only a gap with no usable text from either
// path is omitted.
func (g *Generator) Generate(ctx context.Context, topic *types.Topic, gaps []types.ContentGap, matches []types.MatchResult, refs []types.ReferenceDocument, topicVector []float32) Outcome {
	out := Outcome{}
	refSetHash := referenceSetHash(matches)
	refByID := make(map[uuid.UUID]*types.ReferenceDocument, len(refs))
	for i := range refs {
		refByID[refs[i].ID] = &refs[i]
	}

	for _, gap := range gaps {
		candidates := g.keywordCandidates(gap, topicVector)

		var proposal *types.EnhancementProposal
		if g.llm != nil && (gap.Severity == types.SeverityCritical || gap.Severity == types.SeverityHigh) {
			p, err := g.llmProposal(ctx, topic, gap, matches, refByID, refSetHash, candidates)
			if err != nil {
				g.log.Warn("llm proposal failed, using template", "gap_kind", gap.Kind, "error", err)
				out.Events = append(out.Events, types.DegradationEvent{
					At:     time.Now().UTC(),
					Stage:  "proposal:llm",
					GapID:  gapID(gap),
					Reason: err.Error(),
				})
			} else {
				proposal = p
			}
		}
		if proposal == nil {
			proposal = g.templateProposal(topic, gap, candidates)
		}
		if proposal == nil || strings.TrimSpace(proposal.SuggestedText) == "" {
			out.Events = append(out.Events, types.DegradationEvent{
				At:     time.Now().UTC(),
				Stage:  "proposal:omitted",
				GapID:  gapID(gap),
				Reason: "no provider produced a usable proposal",
			})
			continue
		}

		proposal.TopicID = topic.ID
		proposal.GapKind = gap.Kind
		proposal.Field = gap.Field
		proposal.Priority = gap.Severity
		proposal.Status = types.ProposalPending
		if raw, err := json.Marshal(matchedIDs(matches)); err == nil {
			proposal.Sources = datatypes.JSON(raw)
		}
		out.Proposals = append(out.Proposals, *proposal)
	}
	return out
}

func (g *Generator) keywordCandidates(gap types.ContentGap, topicVector []float32) []string {
	if gap.Kind != types.GapMissingKeywords || g.keywords == nil || len(topicVector) == 0 {
		return nil
	}
	found, err := g.keywords.FindSimilar(topicVector, keyword.DefaultTopK, keyword.DefaultThreshold)
	if err != nil {
		return nil
	}
	candidates := make([]string, 0, len(found))
	for _, match := range found {
		candidates = append(candidates, match.Keyword)
	}
	return candidates
}

func (g *Generator) llmProposal(ctx context.Context, topic *types.Topic, gap types.ContentGap, matches []types.MatchResult, refByID map[uuid.UUID]*types.ReferenceDocument, refSetHash string, candidates []string) (*types.EnhancementProposal, error) {
	cacheContent := fmt.Sprintf("%s:%s:%s", gap.Kind, gap.Field, refSetHash)
	if raw, ok := g.cache.Get(ctx, cache.ServiceLLM, topic.ID.String(), cacheContent); ok {
		var cached llmPayload
		if err := json.Unmarshal(raw, &cached); err == nil && cached.SuggestedText != "" {
			return cached.toProposal(), nil
		}
	}

	system := "You are a study-note reviewer. Improve the given topic using only the supplied reference excerpts. Answer in the language of the topic."
	user := buildPrompt(topic, gap, matches, refByID, candidates)

	resp, err := g.llm.GenerateJSON(ctx, system, user, "enhancement_proposal", proposalSchema())
	if err != nil {
		return nil, err
	}

	payload, err := parsePayload(resp)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(payload); err == nil {
		g.cache.Set(ctx, cache.ServiceLLM, topic.ID.String(), cacheContent, raw)
	}
	return payload.toProposal(), nil
}

type llmPayload struct {
	SuggestedText string  `json:"suggested_text"`
	Reasoning     string  `json:"reasoning"`
	Confidence    float64 `json:"confidence"`
	Effort        string  `json:"effort"`
}

func (p llmPayload) toProposal() *types.EnhancementProposal {
	return &types.EnhancementProposal{
		SuggestedText: p.SuggestedText,
		Reasoning:     p.Reasoning,
		Confidence:    p.Confidence,
		Effort:        p.Effort,
		GeneratedBy:   "llm",
	}
}

func parsePayload(resp map[string]any) (llmPayload, error) {
	raw, err := json.Marshal(resp)
	if err != nil {
		return llmPayload{}, err
	}
	var payload llmPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return llmPayload{}, fmt.Errorf("malformed llm response: %w", err)
	}
	if strings.TrimSpace(payload.SuggestedText) == "" {
		return llmPayload{}, fmt.Errorf("llm response missing suggested_text")
	}
	if payload.Confidence <= 0 || payload.Confidence > 1 {
		payload.Confidence = 0.7
	}
	if payload.Effort == "" {
		payload.Effort = "medium"
	}
	return payload, nil
}

func proposalSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"suggested_text": map[string]any{"type": "string"},
			"reasoning":      map[string]any{"type": "string"},
			"confidence":     map[string]any{"type": "number"},
			"effort":         map[string]any{"type": "string", "enum": []string{"low", "medium", "high"}},
		},
		"required":             []string{"suggested_text", "reasoning", "confidence", "effort"},
		"additionalProperties": false,
	}
}

func buildPrompt(topic *types.Topic, gap types.ContentGap, matches []types.MatchResult, refByID map[uuid.UUID]*types.ReferenceDocument, candidates []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", topic.Title)
	fmt.Fprintf(&b, "Gap: %s (field: %s, severity: %s)\n", gap.Kind, gap.Field, gap.Severity)
	if gap.Detail != "" {
		fmt.Fprintf(&b, "Detail: %s\n", gap.Detail)
	}
	b.WriteString("\nCurrent content:\n")
	fmt.Fprintf(&b, "- lead: %s\n", topic.Lead)
	fmt.Fprintf(&b, "- definition: %s\n", topic.Definition)
	fmt.Fprintf(&b, "- keywords: %s\n", strings.Join(topic.KeywordList(), ", "))
	if len(candidates) > 0 {
		fmt.Fprintf(&b, "\nCandidate keywords from references: %s\n", strings.Join(candidates, ", "))
	}
	b.WriteString("\nReference excerpts:\n")
	for _, match := range matches {
		ref, ok := refByID[match.ReferenceID]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "--- %s (%s, score %.2f)\n%s\n", ref.Title, ref.SourceType, match.Adjusted, excerpt(ref.Text, 400))
	}
	b.WriteString("\nPropose the improvement for this gap.")
	return b.String()
}

func excerpt(text string, maxRunes int) string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= maxRunes {
		return string(runes)
	}
	return string(runes[:maxRunes]) + "…"
}

// referenceSetHash fingerprints the matched reference set so LLM responses
// are reused only while the evidence is the same.
func referenceSetHash(matches []types.MatchResult) string {
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.ReferenceID.String())
	}
	sort.Strings(ids)
	return cache.ContentHash(strings.Join(ids, ","))
}

func matchedIDs(matches []types.MatchResult) []string {
	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, match.ReferenceID.String())
	}
	return ids
}

func gapID(gap types.ContentGap) string {
	return fmt.Sprintf("%s/%s", gap.Kind, gap.Field)
}
