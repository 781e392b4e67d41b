// Package bbolt provides a BBolt-backed revocation store.
package bbolt

import (
	"context"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/authseal/revocation"
)

var bucketName = []byte("revoked_sessions")

// Store implements revocation.Store backed by a BBolt database.
type Store struct {
	db *bbolt.DB
}

var _ revocation.Store = (*Store)(nil)

// NewStore returns a Store backed by the given BBolt database.
func NewStore(db *bbolt.DB) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating revocation bucket: %w", err)
	}
	return &Store{db: db}, nil
}

// NewStoreFromFile opens a BBolt database at the given path and returns a
// new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db)
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Revoke(_ context.Context, id string, at time.Time) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		return b.Put([]byte(id), []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

func (s *Store) IsRevoked(_ context.Context, id string) (bool, error) {
	var revoked bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		revoked = tx.Bucket(bucketName).Get([]byte(id)) != nil
		return nil
	})
	return revoked, err
}

func (s *Store) Cleanup(_ context.Context, olderThan time.Time) (int, error) {
	removed := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		c := b.Cursor()
		var stale [][]byte
		for k, v := c.First(); k != nil; k, v = c.Next() {
			at, err := time.Parse(time.RFC3339Nano, string(v))
			if err != nil || at.Before(olderThan) {
				stale = append(stale, append([]byte(nil), k...))
			}
		}
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
