package proposal

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/notelens/notelens-backend/internal/cache"
	"github.com/notelens/notelens-backend/internal/keyword"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/types"
)

type stubLLM struct {
	resp  map[string]any
	err   error
	calls int
}

func (s *stubLLM) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func goodLLMResponse() map[string]any {
	return map[string]any{
		"suggested_text": "A process is an instance of a program in execution, owning its address space.",
		"reasoning":      "The definition lacked the isolation property.",
		"confidence":     0.85,
		"effort":         "medium",
	}
}

func newTestGenerator(llm LLM, keywords *keyword.Index) *Generator {
	cm := cache.NewManager(logger.NewNop(), nil, 0)
	return NewGenerator(logger.NewNop(), cm, llm, keywords)
}

func proposalTopic() *types.Topic {
	return &types.Topic{ID: uuid.New(), Title: "Process", Definition: "short"}
}

func TestGenerateSeverityRouting(t *testing.T) {
	llm := &stubLLM{resp: goodLLMResponse()}
	g := newTestGenerator(llm, nil)
	topic := proposalTopic()

	gaps := []types.ContentGap{
		{Kind: types.GapMissingField, Field: "definition", Severity: types.SeverityCritical},
		{Kind: types.GapInsufficientDepth, Field: "definition", Severity: types.SeverityMedium},
	}
	out := g.Generate(context.Background(), topic, gaps, nil, nil, nil)

	if len(out.Proposals) != 2 {
		t.Fatalf("expected 2 proposals, got %d", len(out.Proposals))
	}
	if llm.calls != 1 {
		t.Fatalf("llm called %d times, want 1 (critical only)", llm.calls)
	}
	if out.Proposals[0].GeneratedBy != "llm" {
		t.Fatalf("critical gap should be llm-served, got %q", out.Proposals[0].GeneratedBy)
	}
	if out.Proposals[1].GeneratedBy != "template" {
		t.Fatalf("medium gap should be template-served, got %q", out.Proposals[1].GeneratedBy)
	}
	if len(out.Events) != 0 {
		t.Fatalf("template use for medium gaps is policy, not degradation: %+v", out.Events)
	}
	for _, p := range out.Proposals {
		if p.TopicID != topic.ID || p.Status != types.ProposalPending {
			t.Fatalf("proposal not stamped correctly: %+v", p)
		}
	}
}

func TestGenerateLLMFailureFallsBackToTemplate(t *testing.T) {
	llm := &stubLLM{err: errors.New("model timeout")}
	g := newTestGenerator(llm, nil)
	topic := proposalTopic()

	gaps := []types.ContentGap{
		{Kind: types.GapIncompleteDefinition, Field: "definition", Severity: types.SeverityHigh},
	}
	out := g.Generate(context.Background(), topic, gaps, nil, nil, nil)

	if len(out.Proposals) != 1 {
		t.Fatalf("expected the template fallback proposal, got %d", len(out.Proposals))
	}
	if out.Proposals[0].GeneratedBy != "template" {
		t.Fatalf("fallback proposal should be template-served, got %q", out.Proposals[0].GeneratedBy)
	}
	if len(out.Events) != 1 || out.Events[0].Stage != "proposal:llm" {
		t.Fatalf("llm failure must record a degradation event, got %+v", out.Events)
	}
	if out.Events[0].Reason == "" || out.Events[0].GapID == "" {
		t.Fatalf("event missing detail: %+v", out.Events[0])
	}
}

func TestGenerateMalformedLLMResponseFallsBack(t *testing.T) {
	llm := &stubLLM{resp: map[string]any{"unexpected": "shape"}}
	g := newTestGenerator(llm, nil)
	topic := proposalTopic()

	gaps := []types.ContentGap{
		{Kind: types.GapMissingField, Field: "lead", Severity: types.SeverityHigh},
	}
	out := g.Generate(context.Background(), topic, gaps, nil, nil, nil)

	if len(out.Proposals) != 1 || out.Proposals[0].GeneratedBy != "template" {
		t.Fatalf("malformed llm output should fall back to template, got %+v", out.Proposals)
	}
	if len(out.Events) != 1 {
		t.Fatalf("expected one degradation event, got %+v", out.Events)
	}
}

func TestGenerateLLMResponseCached(t *testing.T) {
	llm := &stubLLM{resp: goodLLMResponse()}
	g := newTestGenerator(llm, nil)
	topic := proposalTopic()

	gaps := []types.ContentGap{
		{Kind: types.GapMissingField, Field: "definition", Severity: types.SeverityCritical},
	}
	first := g.Generate(context.Background(), topic, gaps, nil, nil, nil)
	if len(first.Proposals) != 1 || llm.calls != 1 {
		t.Fatalf("setup failed: proposals=%d calls=%d", len(first.Proposals), llm.calls)
	}

	// Same topic, gap, and reference set: the cached response answers and
	// the backend stays idle.
	second := g.Generate(context.Background(), topic, gaps, nil, nil, nil)
	if llm.calls != 1 {
		t.Fatalf("llm called %d times, want 1 (second served from cache)", llm.calls)
	}
	if len(second.Proposals) != 1 || second.Proposals[0].GeneratedBy != "llm" {
		t.Fatalf("cached proposal should still be llm-attributed, got %+v", second.Proposals)
	}
}

func TestGenerateMissingKeywordsUsesCandidates(t *testing.T) {
	cm := cache.NewManager(logger.NewNop(), nil, 0)
	index := keyword.NewIndex(logger.NewNop(), cm, nil, nil)
	source := uuid.New()
	index.Add("캡슐화", []float32{1, 0}, source)
	index.Add("상속", []float32{0.95, 0.3122}, source)

	g := NewGenerator(logger.NewNop(), cm, nil, index)
	topic := proposalTopic()

	gaps := []types.ContentGap{
		{Kind: types.GapMissingKeywords, Field: "keywords", Severity: types.SeverityMedium},
	}
	out := g.Generate(context.Background(), topic, gaps, nil, nil, []float32{1, 0})

	if len(out.Proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(out.Proposals))
	}
	text := out.Proposals[0].SuggestedText
	if !strings.Contains(text, "캡슐화") || !strings.Contains(text, "상속") {
		t.Fatalf("candidate keywords missing from proposal text: %q", text)
	}
}

func TestGenerateStampsSources(t *testing.T) {
	g := newTestGenerator(nil, nil)
	topic := proposalTopic()
	refID := uuid.New()
	matches := []types.MatchResult{{ReferenceID: refID, Adjusted: 0.9}}

	gaps := []types.ContentGap{
		{Kind: types.GapInsufficientDepth, Field: "definition", Severity: types.SeverityMedium},
	}
	out := g.Generate(context.Background(), topic, gaps, matches, nil, nil)

	if len(out.Proposals) != 1 {
		t.Fatalf("expected 1 proposal, got %d", len(out.Proposals))
	}
	if !strings.Contains(string(out.Proposals[0].Sources), refID.String()) {
		t.Fatalf("sources should carry the matched reference ids: %s", out.Proposals[0].Sources)
	}
}
