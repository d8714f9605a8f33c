package matching

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/notelens/notelens-backend/internal/cache"
	"github.com/notelens/notelens-backend/internal/platform/apperr"
	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/search"
	"github.com/notelens/notelens-backend/internal/types"
)

type stubEmbedder struct {
	fn    func(text string) []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := make([][]float32, len(inputs))
	for i, input := range inputs {
		out[i] = s.fn(input)
	}
	return out, nil
}

type stubVectorSearcher struct {
	matches []search.Match
	err     error
}

func (s *stubVectorSearcher) Query(ctx context.Context, vector []float32, topK int) ([]search.Match, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.matches, nil
}

func newTestCache() *cache.Manager {
	return cache.NewManager(logger.NewNop(), nil, 0)
}

func TestTrustAdjustNeverExceedsRaw(t *testing.T) {
	cases := []struct {
		trust float64
		want  float64
	}{
		{1.0, 0.80},
		{0.8, 0.752},
		{0.6, 0.704},
	}
	for _, tc := range cases {
		got := TrustAdjust(0.8, tc.trust)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("TrustAdjust(0.8, %g) = %g, want %g", tc.trust, got, tc.want)
		}
		if got > 0.8 {
			t.Fatalf("adjusted %g exceeds raw 0.8", got)
		}
	}
}

func TestRankOptionsValidation(t *testing.T) {
	m := NewMatcher(logger.NewNop(), newTestCache(), nil, nil, nil)
	topic := &types.Topic{ID: uuid.New(), Definition: "q"}

	_, err := m.Rank(context.Background(), topic, nil, Options{TopK: 100, Threshold: 1.5})
	if !apperr.IsKind(err, apperr.KindInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected *apperr.Error, got %T", err)
	}
	if _, ok := appErr.Fields["top_k"]; !ok {
		t.Fatalf("missing top_k field detail: %v", appErr.Fields)
	}
	if _, ok := appErr.Fields["similarity_threshold"]; !ok {
		t.Fatalf("missing similarity_threshold field detail: %v", appErr.Fields)
	}
}

func TestRankNoProvidersUnavailable(t *testing.T) {
	m := NewMatcher(logger.NewNop(), newTestCache(), nil, nil, nil)
	topic := &types.Topic{ID: uuid.New(), Definition: "q"}

	_, err := m.Rank(context.Background(), topic, nil, Options{})
	if !apperr.IsKind(err, apperr.KindUnavailable) {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

func TestSemanticScoreIsMaxOverWindows(t *testing.T) {
	// 6000-rune reference splits into two windows; the second window aligns
	// with the query, the first only partially.
	embedder := &stubEmbedder{fn: func(text string) []float32 {
		switch []rune(text)[0] {
		case 'a':
			return []float32{1, 1}
		default:
			return []float32{1, 0}
		}
	}}
	m := NewMatcher(logger.NewNop(), newTestCache(), embedder, nil, nil)

	topic := &types.Topic{ID: uuid.New(), Definition: "query text"}
	ref := types.ReferenceDocument{
		ID:         uuid.New(),
		Title:      "OS book",
		SourceType: types.SourceBook,
		Text:       strings.Repeat("a", 3500) + strings.Repeat("b", 2500),
	}

	got, err := m.Rank(context.Background(), topic, []types.ReferenceDocument{ref}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got.ServedBy != "semantic" {
		t.Fatalf("served by %q, want semantic", got.ServedBy)
	}
	if got.Degraded {
		t.Fatal("first-provider success must not be degraded")
	}
	if len(got.Matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(got.Matches))
	}
	if math.Abs(got.Matches[0].RawScore-1.0) > 1e-6 {
		t.Fatalf("raw score = %g, want max-over-windows 1.0", got.Matches[0].RawScore)
	}
}

func TestRankThresholdAppliesToAdjustedScore(t *testing.T) {
	bookID := uuid.New()
	noteID := uuid.New()
	raw := []search.Match{
		{ReferenceID: bookID, Score: 0.75},
		{ReferenceID: noteID, Score: 0.75},
	}
	trust := map[uuid.UUID]float64{bookID: 1.0, noteID: 0.6}

	got := rank(raw, trust, Options{TopK: 5, Threshold: 0.7})
	if len(got) != 1 {
		t.Fatalf("expected only the book to pass, got %d matches", len(got))
	}
	if got[0].ReferenceID != bookID {
		t.Fatal("book should be the surviving match")
	}
	// The note's raw score cleared the threshold; trust adjustment pushed
	// it under.
	if adjusted := TrustAdjust(0.75, 0.6); adjusted >= 0.7 {
		t.Fatalf("test premise broken: note adjusted %g", adjusted)
	}
}

func TestRankDeterministicTieBreaks(t *testing.T) {
	idA := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	idB := uuid.MustParse("00000000-0000-0000-0000-00000000000b")
	raw := []search.Match{
		{ReferenceID: idB, Score: 0.9},
		{ReferenceID: idA, Score: 0.9},
	}
	trust := map[uuid.UUID]float64{idA: 1.0, idB: 1.0}

	for i := 0; i < 5; i++ {
		got := rank(raw, trust, Options{TopK: 5, Threshold: 0.7})
		if len(got) != 2 {
			t.Fatalf("expected 2 matches, got %d", len(got))
		}
		if got[0].ReferenceID != idA || got[1].ReferenceID != idB {
			t.Fatalf("run %d: tie not broken by reference id: %v, %v", i, got[0].ReferenceID, got[1].ReferenceID)
		}
	}
}

func TestRankSkipsUnknownReferences(t *testing.T) {
	known := uuid.New()
	raw := []search.Match{
		{ReferenceID: uuid.New(), Score: 0.99},
		{ReferenceID: known, Score: 0.9},
	}
	got := rank(raw, map[uuid.UUID]float64{known: 1.0}, Options{TopK: 5, Threshold: 0.7})
	if len(got) != 1 || got[0].ReferenceID != known {
		t.Fatalf("hits outside the candidate set must be dropped, got %v", got)
	}
}

func TestRankVectorFailureFallsBackDegraded(t *testing.T) {
	refID := uuid.New()
	embedder := &stubEmbedder{fn: func(string) []float32 { return []float32{1, 0} }}
	vector := &stubVectorSearcher{err: apperr.Unavailable("qdrant down", errors.New("connection refused"))}
	m := NewMatcher(logger.NewNop(), newTestCache(), embedder, vector, nil)

	topic := &types.Topic{ID: uuid.New(), Definition: "query"}
	refs := []types.ReferenceDocument{{ID: refID, SourceType: types.SourceBook, Text: "short reference"}}

	got, err := m.Rank(context.Background(), topic, refs, Options{})
	if err != nil {
		t.Fatalf("fallback should succeed, got %v", err)
	}
	if got.ServedBy != "semantic" {
		t.Fatalf("served by %q, want semantic", got.ServedBy)
	}
	if !got.Degraded {
		t.Fatal("second-provider success must be degraded")
	}
	if len(got.Events) != 1 || got.Events[0].Stage != "matching:vector" {
		t.Fatalf("expected one matching:vector event, got %+v", got.Events)
	}
}

func TestRankAllProvidersFailUnavailable(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("embedding backend down")}
	vector := &stubVectorSearcher{err: errors.New("qdrant down")}
	m := NewMatcher(logger.NewNop(), newTestCache(), embedder, vector, nil)

	topic := &types.Topic{ID: uuid.New(), Definition: "query"}
	_, err := m.Rank(context.Background(), topic, nil, Options{})
	if !apperr.IsKind(err, apperr.KindUnavailable) {
		t.Fatalf("expected Unavailable, got %v", err)
	}
}

func TestEmbedCachedReadThrough(t *testing.T) {
	embedder := &stubEmbedder{fn: func(string) []float32 { return []float32{1, 2, 3} }}
	cm := newTestCache()
	ctx := context.Background()

	first, err := EmbedCached(ctx, cm, embedder, "entity", "text")
	if err != nil {
		t.Fatal(err)
	}
	second, err := EmbedCached(ctx, cm, embedder, "entity", "text")
	if err != nil {
		t.Fatal(err)
	}
	if embedder.calls != 1 {
		t.Fatalf("embedder called %d times, want 1 (second call cached)", embedder.calls)
	}
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("unexpected vectors: %v, %v", first, second)
	}
}

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tc := range cases {
		if got := Cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: Cosine = %g, want %g", tc.name, got, tc.want)
		}
	}
}
