// Package redis provides a redis-backed revocation store for multi-node
// deployments, where every instance must observe a logout immediately.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmcleod/authseal/revocation"
)

const defaultKeyPrefix = "authseal:revoked:"

// Store implements revocation.Store over a redis client. Entries expire
// automatically after maxAge, making Cleanup a fallback for entries
// written with a longer lifetime.
type Store struct {
	client *redis.Client
	prefix string
	maxAge time.Duration
}

var _ revocation.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix overrides the redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a Store. maxAge bounds how long a revocation entry is kept;
// it should be at least the maximum session lifetime.
func New(client *redis.Client, maxAge time.Duration, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultKeyPrefix,
		maxAge: maxAge,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Revoke(ctx context.Context, id string, at time.Time) error {
	value := at.UTC().Format(time.RFC3339Nano)
	if err := s.client.Set(ctx, s.prefix+id, value, s.maxAge).Err(); err != nil {
		return fmt.Errorf("revocation redis: revoke: %w", err)
	}
	return nil
}

func (s *Store) IsRevoked(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("revocation redis: lookup: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	removed := 0
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return removed, fmt.Errorf("revocation redis: scan: %w", err)
		}
		for _, key := range keys {
			value, err := s.client.Get(ctx, key).Result()
			if err != nil {
				continue
			}
			at, err := time.Parse(time.RFC3339Nano, value)
			if err != nil || at.Before(olderThan) {
				if s.client.Del(ctx, key).Err() == nil {
					removed++
				}
			}
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
