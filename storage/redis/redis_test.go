package redis

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/studydeck/storage"
	"github.com/jmcleod/studydeck/storage/storagetest"
)

func newTestStore(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client, "studydeck:test:", ttl), mr
}

func TestRedisStore(t *testing.T) {
	s, _ := newTestStore(t, 0)
	storagetest.RunKVTests(t, s)
}

func TestRedisStoreKeyPrefix(t *testing.T) {
	s, mr := newTestStore(t, 0)
	require.NoError(t, s.Set("pkce", []byte("v")))
	assert.True(t, mr.Exists("studydeck:test:pkce"))
}

func TestRedisStoreTTL(t *testing.T) {
	s, mr := newTestStore(t, 10*time.Minute)
	require.NoError(t, s.Set("pkce", []byte("v")))
	assert.Equal(t, 10*time.Minute, mr.TTL("studydeck:test:pkce"))

	mr.FastForward(11 * time.Minute)
	_, err := s.Get("pkce")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNewStoreFromURL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewStoreFromURL(t.Context(), "redis://"+mr.Addr(), "p:", time.Minute)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set("k", []byte("v")))
	got, err := s.Take("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestNewStoreFromURLInvalid(t *testing.T) {
	_, err := NewStoreFromURL(t.Context(), "not a url", "p:", time.Minute)
	assert.Error(t, err)
}
