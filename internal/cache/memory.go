package cache

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"
)

const DefaultMemoryCapacity = 1000

// memoryStore is the in-process fallback backend: LRU-capped, with TTL
// checked lazily on read. Expired-but-unread entries are only reclaimed by
// the LRU cap, not by a sweeper.
type memoryStore struct {
	mu       sync.Mutex
	items    map[string]*memoryItem
	lru      *list.List
	capacity int
}

type memoryItem struct {
	key     string
	value   []byte
	expiry  time.Time
	element *list.Element
}

func newMemoryStore(capacity int) *memoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &memoryStore{
		items:    make(map[string]*memoryItem),
		lru:      list.New(),
		capacity: capacity,
	}
}

func (s *memoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if !item.expiry.IsZero() && !time.Now().Before(item.expiry) {
		s.remove(item)
		return nil, false, nil
	}
	s.lru.MoveToFront(item.element)

	value := make([]byte, len(item.value))
	copy(value, item.value)
	return value, true, nil
}

func (s *memoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.items[key]; ok {
		s.remove(existing)
	}
	for len(s.items) >= s.capacity && s.lru.Len() > 0 {
		oldest := s.lru.Back()
		if oldest == nil {
			break
		}
		s.remove(oldest.Value.(*memoryItem))
	}

	item := &memoryItem{
		key:    key,
		value:  make([]byte, len(value)),
		expiry: time.Now().Add(ttl),
	}
	copy(item.value, value)
	item.element = s.lru.PushFront(item)
	s.items[key] = item
	return nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item, ok := s.items[key]; ok {
		s.remove(item)
	}
	return nil
}

func (s *memoryStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	toRemove := make([]*memoryItem, 0)
	for key, item := range s.items {
		if strings.HasPrefix(key, prefix) {
			toRemove = append(toRemove, item)
		}
	}
	for _, item := range toRemove {
		s.remove(item)
	}
	return nil
}

func (s *memoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// remove must be called with the lock held.
func (s *memoryStore) remove(item *memoryItem) {
	if item.element != nil {
		s.lru.Remove(item.element)
	}
	delete(s.items, item.key)
}
