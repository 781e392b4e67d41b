// Package revocation provides the durable side-channel that records
// session identifiers which must be treated as invalid even while their
// sealed cookie still validates. Sealed-cookie sessions cannot be recalled
// once issued; revocation is the escape hatch for logout-everywhere and
// compromised-session response.
package revocation

import (
	"context"
	"sync"
	"time"
)

// Store records revoked session identifiers.
type Store interface {
	// Revoke marks id as revoked as of the given time.
	Revoke(ctx context.Context, id string, at time.Time) error

	// IsRevoked reports whether id has been revoked. An error means the
	// store could not be consulted; translating that into a policy
	// decision (fail open vs. fail closed) is the caller's job.
	IsRevoked(ctx context.Context, id string) (bool, error)

	// Cleanup removes entries revoked before olderThan and returns how
	// many were removed. Entries older than the maximum session lifetime
	// are safe to drop: their sealed cookies have expired on their own.
	Cleanup(ctx context.Context, olderThan time.Time) (int, error)
}

// MemoryStore is a thread-safe in-memory Store for tests and
// single-process deployments.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Revoke(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	s.data[id] = at
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) IsRevoked(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	_, ok := s.data[id]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryStore) Cleanup(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, at := range s.data {
		if at.Before(olderThan) {
			delete(s.data, id)
			removed++
		}
	}
	return removed, nil
}
