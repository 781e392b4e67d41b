package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client, 7*24*time.Hour), mr
}

func TestRevokeAndLookup(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	revoked, err := s.IsRevoked(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, s.Revoke(ctx, "session-1", time.Now()))

	revoked, err = s.IsRevoked(ctx, "session-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestEntriesExpireWithMaxAge(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	require.NoError(t, s.Revoke(ctx, "session-1", time.Now()))
	mr.FastForward(7*24*time.Hour + time.Minute)

	revoked, err := s.IsRevoked(ctx, "session-1")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation entries expire with the session max age")
}

func TestCleanup(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	now := time.Now()
	require.NoError(t, s.Revoke(ctx, "old", now.Add(-48*time.Hour)))
	require.NoError(t, s.Revoke(ctx, "recent", now))

	removed, err := s.Cleanup(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	revoked, err := s.IsRevoked(ctx, "old")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestLookupErrorWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	s := New(client, time.Hour)

	mr.Close()

	_, err := s.IsRevoked(ctx, "session-1")
	assert.Error(t, err, "an unreachable store must surface an error, not a silent false")
}
