package singleuse

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a thread-safe in-memory Store. Entries are lost on
// restart, which is acceptable for ceremony state: a half-completed
// ceremony simply starts over.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]memoryEntry),
	}
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = memoryEntry{
		value:     append([]byte(nil), value...),
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) TakeOnce(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.data, key)
	if time.Now().After(e.expiresAt) {
		return nil, ErrExpired
	}
	return e.value, nil
}

// Len reports the number of live entries, expired ones included until
// they are consumed. Used by tests and by callers that want to cap the
// number of concurrent ceremonies.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}
