package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/authseal/singleuse"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client), mr
}

func TestTakeOnceConsumes(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Put(ctx, "state", []byte("abc"), time.Minute))

	v, err := s.TakeOnce(ctx, "state")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v)

	_, err = s.TakeOnce(ctx, "state")
	assert.ErrorIs(t, err, singleuse.ErrNotFound)
}

func TestMissingKey(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.TakeOnce(context.Background(), "never-put")
	assert.ErrorIs(t, err, singleuse.ErrNotFound)
}

func TestExpiredWithinGrace(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	// Entry TTL already elapsed but the key is still inside the redis
	// grace window, so the store can report "expired" rather than
	// "missing".
	require.NoError(t, s.Put(ctx, "challenge", []byte("c"), -time.Second))

	_, err := s.TakeOnce(ctx, "challenge")
	assert.ErrorIs(t, err, singleuse.ErrExpired)
}

func TestExpiredBeyondGrace(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestStore(t)

	require.NoError(t, s.Put(ctx, "challenge", []byte("c"), time.Second))
	mr.FastForward(time.Second + expiredGrace + time.Second)

	_, err := s.TakeOnce(ctx, "challenge")
	assert.ErrorIs(t, err, singleuse.ErrNotFound)
}

func TestKeyPrefix(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	s := New(client, WithKeyPrefix("custom:"))
	require.NoError(t, s.Put(ctx, "state", []byte("v"), time.Minute))

	assert.True(t, mr.Exists("custom:state"))
}
