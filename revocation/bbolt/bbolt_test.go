package bbolt

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStoreFromFile(filepath.Join(t.TempDir(), "revoked.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRevokeAndLookup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	revoked, err := s.IsRevoked(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "session-1", time.Now()))

	revoked, err = s.IsRevoked(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRevokeSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "revoked.db")

	s1, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, s1.Revoke(ctx, "session-1", time.Now()))
	require.NoError(t, s1.Close())

	s2, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	defer s2.Close()

	revoked, err := s2.IsRevoked(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	now := time.Now()
	require.NoError(t, s.Revoke(ctx, "old", now.Add(-48*time.Hour)))
	require.NoError(t, s.Revoke(ctx, "recent", now))

	removed, err := s.Cleanup(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	revoked, err := s.IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = s.IsRevoked(ctx, "recent")
	require.NoError(t, err)
	assert.True(t, revoked)
}
