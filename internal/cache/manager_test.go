package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/notelens/notelens-backend/internal/platform/logger"
)

func newTestManager() *Manager {
	return NewManager(logger.NewNop(), nil, 0)
}

func TestKeyFormat(t *testing.T) {
	key := Key("embedding", "topic-1", "some content")
	parts := strings.Split(key, ":")
	if len(parts) != 3 {
		t.Fatalf("expected 3 key segments, got %d (%q)", len(parts), key)
	}
	if parts[0] != "embedding" || parts[1] != "topic-1" {
		t.Fatalf("unexpected key prefix: %q", key)
	}
	if len(parts[2]) != 16 {
		t.Fatalf("content hash should be 16 hex chars, got %d (%q)", len(parts[2]), parts[2])
	}
	if again := Key("embedding", "topic-1", "some content"); again != key {
		t.Fatalf("key not stable: %q vs %q", key, again)
	}
}

func TestContentHashChangesWithContent(t *testing.T) {
	if ContentHash("a") == ContentHash("b") {
		t.Fatal("different content must hash differently")
	}
}

func TestGetSetRoundTrip(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	if _, ok := m.Get(ctx, ServiceEmbedding, "e1", "text"); ok {
		t.Fatal("expected miss before set")
	}
	m.Set(ctx, ServiceEmbedding, "e1", "text", []byte("value"))

	got, ok := m.Get(ctx, ServiceEmbedding, "e1", "text")
	if !ok {
		t.Fatal("expected hit after set")
	}
	if string(got) != "value" {
		t.Fatalf("got %q, want %q", got, "value")
	}

	// Repeated gets are idempotent.
	got2, ok := m.Get(ctx, ServiceEmbedding, "e1", "text")
	if !ok || string(got2) != "value" {
		t.Fatalf("second get differed: ok=%v value=%q", ok, got2)
	}
}

func TestChangedContentMisses(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	m.Set(ctx, ServiceEmbedding, "e1", "original", []byte("v"))
	if _, ok := m.Get(ctx, ServiceEmbedding, "e1", "edited"); ok {
		t.Fatal("edited content must not hit the original entry")
	}
}

func TestZeroTTLExpiresImmediately(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	m.Set(ctx, ServiceValidation, "e1", "text", []byte("v"), 0)
	if _, ok := m.Get(ctx, ServiceValidation, "e1", "text"); ok {
		t.Fatal("ttl=0 entry must read as a miss")
	}
}

func TestInvalidateTopic(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	topicID := uuid.New()
	otherID := uuid.New()

	for _, service := range []string{ServiceEmbedding, ServiceValidation, ServiceLLM} {
		m.Set(ctx, service, topicID.String(), "content", []byte("v"))
	}
	m.Set(ctx, ServiceValidation, otherID.String(), "content", []byte("other"))

	m.InvalidateTopic(ctx, topicID)

	for _, service := range []string{ServiceEmbedding, ServiceValidation, ServiceLLM} {
		if _, ok := m.Get(ctx, service, topicID.String(), "content"); ok {
			t.Fatalf("service %s entry for invalidated topic still present", service)
		}
	}
	if _, ok := m.Get(ctx, ServiceValidation, otherID.String(), "content"); !ok {
		t.Fatal("unrelated topic entry was dropped")
	}
}

func TestInvalidateReference(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()
	refID := uuid.New()
	affected := uuid.New()
	unaffected := uuid.New()

	m.Set(ctx, ServiceValidation, affected.String(), "content", []byte("v"))
	m.Set(ctx, ServiceEmbedding, affected.String(), "content", []byte("vec"))
	m.Set(ctx, ServiceValidation, unaffected.String(), "content", []byte("v"))

	m.InvalidateReference(ctx, refID, []uuid.UUID{affected})

	if _, ok := m.Get(ctx, ServiceValidation, affected.String(), "content"); ok {
		t.Fatal("validation entry for affected topic should be gone")
	}
	if _, ok := m.Get(ctx, ServiceEmbedding, affected.String(), "content"); !ok {
		t.Fatal("topic embedding must survive a reference invalidation")
	}
	if _, ok := m.Get(ctx, ServiceValidation, unaffected.String(), "content"); !ok {
		t.Fatal("unaffected topic entry was dropped")
	}
}

func TestFlushAll(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		m.Set(ctx, ServiceEmbedding, fmt.Sprintf("e%d", i), "c", []byte("v"))
	}
	m.FlushAll(ctx)
	for i := 0; i < 5; i++ {
		if _, ok := m.Get(ctx, ServiceEmbedding, fmt.Sprintf("e%d", i), "c"); ok {
			t.Fatalf("entry e%d survived FlushAll", i)
		}
	}
}

// failingStore simulates a dead redis backend: every call errors.
type failingStore struct{}

func (failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (failingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("connection refused")
}
func (failingStore) Delete(ctx context.Context, key string) error {
	return errors.New("connection refused")
}
func (failingStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	return errors.New("connection refused")
}

func TestFailingPrimaryFallsBackToMemory(t *testing.T) {
	m := NewManager(logger.NewNop(), failingStore{}, 0)
	ctx := context.Background()

	m.Set(ctx, ServiceValidation, "e1", "text", []byte("v"))
	got, ok := m.Get(ctx, ServiceValidation, "e1", "text")
	if !ok {
		t.Fatal("expected hit served by the in-process fallback")
	}
	if string(got) != "v" {
		t.Fatalf("got %q, want %q", got, "v")
	}
}

func TestTTLDefaultsPerService(t *testing.T) {
	m := newTestManager()
	cases := []struct {
		service string
		want    time.Duration
	}{
		{ServiceEmbedding, TTLEmbedding},
		{ServiceValidation, TTLValidation},
		{ServiceLLM, TTLLLM},
		{"unknown", TTLValidation},
	}
	for _, tc := range cases {
		if got := m.ttlFor(tc.service); got != tc.want {
			t.Fatalf("ttlFor(%s) = %v, want %v", tc.service, got, tc.want)
		}
	}
}
