// Package redis provides a redis-backed consume-once store. GETDEL gives
// the atomicity the cookie transport cannot: of two racing consumers,
// exactly one receives the value.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jmcleod/authseal/singleuse"
)

const defaultKeyPrefix = "authseal:ceremony:"

// expiredGrace keeps consumed-but-expired entries around long enough for
// TakeOnce to report ErrExpired instead of ErrNotFound. After the grace
// window redis evicts the key and an expired entry becomes
// indistinguishable from a missing one, which is acceptable: both fail
// the ceremony.
const expiredGrace = 5 * time.Minute

// Store implements singleuse.Store over a redis client.
type Store struct {
	client *redis.Client
	prefix string
}

var _ singleuse.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithKeyPrefix overrides the redis key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

func New(client *redis.Client, opts ...Option) *Store {
	s := &Store{
		client: client,
		prefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type record struct {
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"exp"` // unix milliseconds
}

func (s *Store) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	raw, err := json.Marshal(record{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl).UnixMilli(),
	})
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.prefix+key, raw, ttl+expiredGrace).Err(); err != nil {
		return fmt.Errorf("singleuse redis: put: %w", err)
	}
	return nil
}

func (s *Store) TakeOnce(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.client.GetDel(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, singleuse.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("singleuse redis: take: %w", err)
	}
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, singleuse.ErrNotFound
	}
	if time.Now().UnixMilli() > rec.ExpiresAt {
		return nil, singleuse.ErrExpired
	}
	return rec.Value, nil
}
