package search

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/notelens/notelens-backend/internal/platform/logger"
	"github.com/notelens/notelens-backend/internal/types"
)

func corpus() []types.ReferenceDocument {
	return []types.ReferenceDocument{
		{ID: uuid.New(), Title: "OS", Text: "process scheduling and context switching in the kernel scheduler"},
		{ID: uuid.New(), Title: "Networking", Text: "tcp handshake packets routing congestion window"},
		{ID: uuid.New(), Title: "Databases", Text: "btree index transaction isolation levels locking"},
	}
}

func TestLexicalRanksRelevantDocumentFirst(t *testing.T) {
	l := NewLexical(logger.NewNop())
	refs := corpus()
	if err := l.Prepare(refs); err != nil {
		t.Fatal(err)
	}

	got, err := l.Search(context.Background(), "kernel process scheduling", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 {
		t.Fatal("expected at least one match")
	}
	if got[0].ReferenceID != refs[0].ID {
		t.Fatalf("expected the OS document first, got %v", got[0].ReferenceID)
	}
}

func TestLexicalFiltersZeroScores(t *testing.T) {
	l := NewLexical(logger.NewNop())
	refs := corpus()
	if err := l.Prepare(refs); err != nil {
		t.Fatal(err)
	}

	got, err := l.Search(context.Background(), "quantum entanglement", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("query sharing no vocabulary should match nothing, got %v", got)
	}
}

func TestLexicalUnpreparedReturnsEmpty(t *testing.T) {
	l := NewLexical(logger.NewNop())
	got, err := l.Search(context.Background(), "anything", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("unprepared searcher should return nothing, got %v", got)
	}
}

func TestLexicalTopKTruncation(t *testing.T) {
	l := NewLexical(logger.NewNop())
	refs := []types.ReferenceDocument{
		{ID: uuid.New(), Text: "stack heap memory"},
		{ID: uuid.New(), Text: "stack frames memory"},
		{ID: uuid.New(), Text: "stack overflow memory"},
	}
	if err := l.Prepare(refs); err != nil {
		t.Fatal(err)
	}
	got, err := l.Search(context.Background(), "stack memory", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected topK=2 truncation, got %d", len(got))
	}
}

func TestLexicalHandlesHangul(t *testing.T) {
	l := NewLexical(logger.NewNop())
	refs := []types.ReferenceDocument{
		{ID: uuid.New(), Title: "OOP", Text: "캡슐화 상속 다형성 객체지향 설계"},
		{ID: uuid.New(), Title: "Net", Text: "라우팅 패킷 혼잡 제어"},
	}
	if err := l.Prepare(refs); err != nil {
		t.Fatal(err)
	}
	got, err := l.Search(context.Background(), "캡슐화 다형성", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0].ReferenceID != refs[0].ID {
		t.Fatalf("expected the OOP document first, got %v", got)
	}
}

func TestLexicalReprepareReplacesState(t *testing.T) {
	l := NewLexical(logger.NewNop())
	oldRef := types.ReferenceDocument{ID: uuid.New(), Text: "legacy corpus about compilers"}
	if err := l.Prepare([]types.ReferenceDocument{oldRef}); err != nil {
		t.Fatal(err)
	}

	newRef := types.ReferenceDocument{ID: uuid.New(), Text: "garbage collection heap generations"}
	if err := l.Prepare([]types.ReferenceDocument{newRef}); err != nil {
		t.Fatal(err)
	}

	got, err := l.Search(context.Background(), "compilers", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("old corpus should be gone after re-prepare, got %v", got)
	}
}
