// Package storagetest provides a conformance suite for storage.KV
// implementations.
package storagetest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/studydeck/storage"
)

// RunKVTests runs the common suite against any storage.KV implementation.
// The store must start empty.
func RunKVTests(t *testing.T, kv storage.KV) {
	t.Helper()

	t.Run("SetAndGet", func(t *testing.T) {
		require.NoError(t, kv.Set("k1", []byte("v1")))
		got, err := kv.Get("k1")
		require.NoError(t, err)
		assert.Equal(t, []byte("v1"), got)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := kv.Get("no-such-key")
		assert.True(t, errors.Is(err, storage.ErrNotFound), "got %v", err)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, kv.Set("k-ow", []byte("first")))
		require.NoError(t, kv.Set("k-ow", []byte("second")))
		got, err := kv.Get("k-ow")
		require.NoError(t, err)
		assert.Equal(t, []byte("second"), got)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, kv.Set("k-del", []byte("v")))
		require.NoError(t, kv.Delete("k-del"))
		_, err := kv.Get("k-del")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("DeleteMissing", func(t *testing.T) {
		err := kv.Delete("never-existed")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("ValueIsolation", func(t *testing.T) {
		value := []byte("isolated")
		require.NoError(t, kv.Set("k-iso", value))
		value[0] = 'X'
		got, err := kv.Get("k-iso")
		require.NoError(t, err)
		assert.Equal(t, []byte("isolated"), got)
	})

	t.Run("TakeOnce", func(t *testing.T) {
		require.NoError(t, kv.Set("k-take", []byte("once")))
		got, err := storage.Take(kv, "k-take")
		require.NoError(t, err)
		assert.Equal(t, []byte("once"), got)

		_, err = storage.Take(kv, "k-take")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		_, err = kv.Get("k-take")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("TakeMissing", func(t *testing.T) {
		_, err := storage.Take(kv, "k-take-missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}
