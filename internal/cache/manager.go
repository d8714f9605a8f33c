package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/notelens/notelens-backend/internal/platform/logger"
)

// Service names partition the key space. The key format
// {service}:{entityId}:{contentHash} is a public contract for debugging
// tooling; changing it breaks external observers.
const (
	ServiceEmbedding  = "embedding"
	ServiceValidation = "validation"
	ServiceLLM        = "llm"
)

const (
	TTLEmbedding  = 7 * 24 * time.Hour
	TTLValidation = time.Hour
	TTLLLM        = 24 * time.Hour
)

// Store is the minimal capability set a cache backend must provide. Two
// variants exist: redis (preferred) and the in-process LRU store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// Manager keys entries by content hash, applies per-service TTL defaults,
// and falls back to the in-process store when the primary backend fails a
// call. The fallback is logged once, not per call.
type Manager struct {
	log      *logger.Logger
	primary  Store
	fallback *memoryStore

	degradeOnce sync.Once
	ttls        map[string]time.Duration
}

// NewManager builds a manager on the given primary store. A nil primary
// means the in-process store serves everything (standalone mode).
func NewManager(log *logger.Logger, primary Store, memoryCapacity int) *Manager {
	return &Manager{
		log:      log.With("service", "CacheManager"),
		primary:  primary,
		fallback: newMemoryStore(memoryCapacity),
		ttls: map[string]time.Duration{
			ServiceEmbedding:  TTLEmbedding,
			ServiceValidation: TTLValidation,
			ServiceLLM:        TTLLLM,
		},
	}
}

// ContentHash is the stable short hash used in cache keys: any change to
// the underlying text changes the key and bypasses stale data without an
// explicit invalidation.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])[:16]
}

func Key(service, entityID, content string) string {
	return fmt.Sprintf("%s:%s:%s", service, entityID, ContentHash(content))
}

func (m *Manager) Get(ctx context.Context, service, entityID, content string) ([]byte, bool) {
	key := Key(service, entityID, content)
	if m.primary != nil {
		value, ok, err := m.primary.Get(ctx, key)
		if err == nil {
			return value, ok
		}
		m.logDegradation(err)
	}
	value, ok, _ := m.fallback.Get(ctx, key)
	return value, ok
}

// Set writes through with the per-service default TTL unless the caller
// overrides it.
func (m *Manager) Set(ctx context.Context, service, entityID, content string, value []byte, ttlOverride ...time.Duration) {
	ttl := m.ttlFor(service)
	if len(ttlOverride) > 0 {
		ttl = ttlOverride[0]
	}
	key := Key(service, entityID, content)
	if m.primary != nil {
		if err := m.primary.Set(ctx, key, value, ttl); err == nil {
			return
		} else {
			m.logDegradation(err)
		}
	}
	_ = m.fallback.Set(ctx, key, value, ttl)
}

func (m *Manager) Delete(ctx context.Context, key string) {
	if m.primary != nil {
		if err := m.primary.Delete(ctx, key); err != nil {
			m.logDegradation(err)
		}
	}
	_ = m.fallback.Delete(ctx, key)
}

// InvalidateTopic removes every entry keyed by the topic id across the
// services that key on topics (embedding and validation).
func (m *Manager) InvalidateTopic(ctx context.Context, topicID uuid.UUID) {
	for _, service := range []string{ServiceEmbedding, ServiceValidation, ServiceLLM} {
		m.deleteByPrefix(ctx, fmt.Sprintf("%s:%s:", service, topicID))
	}
}

// InvalidateReference expires the validation entries of every topic that
// used the edited reference. The cache keeps no reverse index from
// reference to topic, so the caller supplies the affected set; topic
// embeddings are left alone since the topics themselves did not change.
func (m *Manager) InvalidateReference(ctx context.Context, referenceID uuid.UUID, affectedTopics []uuid.UUID) {
	m.log.Debug("invalidating reference", "reference_id", referenceID, "affected_topics", len(affectedTopics))
	for _, topicID := range affectedTopics {
		m.deleteByPrefix(ctx, fmt.Sprintf("%s:%s:", ServiceValidation, topicID))
	}
}

func (m *Manager) FlushAll(ctx context.Context) {
	m.deleteByPrefix(ctx, "")
}

func (m *Manager) deleteByPrefix(ctx context.Context, prefix string) {
	if m.primary != nil {
		if err := m.primary.DeleteByPrefix(ctx, prefix); err != nil {
			m.logDegradation(err)
		}
	}
	_ = m.fallback.DeleteByPrefix(ctx, prefix)
}

func (m *Manager) ttlFor(service string) time.Duration {
	if ttl, ok := m.ttls[service]; ok {
		return ttl
	}
	return TTLValidation
}

func (m *Manager) logDegradation(err error) {
	m.degradeOnce.Do(func() {
		m.log.Warn("primary cache backend failing; serving from in-process store", "error", err)
	})
}
