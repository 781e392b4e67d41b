// Package singleuse provides a short-TTL, consume-once key/value store.
//
// A value written with Put can be read back exactly once with TakeOnce,
// which atomically removes it. The store holds the ephemeral halves of a
// two-leg ceremony: the OAuth state parameter, the PKCE code verifier, and
// the WebAuthn challenge. The consume-once contract is what makes a racing
// duplicate callback lose cleanly: the second TakeOnce observes an empty
// store instead of replaying the ceremony.
package singleuse

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when the key does not exist or has already
	// been consumed.
	ErrNotFound = errors.New("singleuse: entry not found")

	// ErrExpired is returned when the entry existed but its TTL elapsed.
	// Kept distinct from ErrNotFound so ceremony engines can report
	// "expired" rather than "mismatch".
	ErrExpired = errors.New("singleuse: entry expired")
)

// Store is a consume-once key/value store with per-entry TTL.
type Store interface {
	// Put stores value under key for at most ttl. Overwrites any
	// previous entry for the same key.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// TakeOnce returns the value for key and removes it, atomically from
	// the caller's perspective. Returns ErrNotFound or ErrExpired.
	TakeOnce(ctx context.Context, key string) ([]byte, error)
}

// entry is the serialized form shared by implementations. Carrying the
// expiry inside the stored payload keeps expiry tamper-proof in transports
// the client can see (cookies) and lets backends with coarse TTL handling
// (redis) still distinguish expired from missing.
type entry struct {
	Value     []byte `json:"v"`
	ExpiresAt int64  `json:"exp"` // unix milliseconds
}

func encodeEntry(value []byte, ttl time.Duration) ([]byte, error) {
	return json.Marshal(entry{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl).UnixMilli(),
	})
}

func decodeEntry(raw []byte) ([]byte, error) {
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, ErrNotFound
	}
	if time.Now().UnixMilli() > e.ExpiresAt {
		return nil, ErrExpired
	}
	return e.Value, nil
}
