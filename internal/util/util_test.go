package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealOpenAESGCM(t *testing.T) {
	key := make([]byte, AESKeySize)
	aad := []byte("studydeck:kv:session")

	nonce, ct, err := SealAESGCM(key, []byte("hello"), aad)
	require.NoError(t, err)
	assert.NotContains(t, string(ct), "hello")

	pt, err := OpenAESGCM(key, nonce, ct, aad)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(pt))

	t.Run("WrongAAD", func(t *testing.T) {
		_, err := OpenAESGCM(key, nonce, ct, []byte("other"))
		assert.Error(t, err)
	})

	t.Run("WrongKey", func(t *testing.T) {
		other := make([]byte, AESKeySize)
		other[0] = 1
		_, err := OpenAESGCM(other, nonce, ct, aad)
		assert.Error(t, err)
	})

	t.Run("BadNonce", func(t *testing.T) {
		_, err := OpenAESGCM(key, nonce[:4], ct, aad)
		assert.Error(t, err)
	})

	t.Run("ShortKey", func(t *testing.T) {
		_, _, err := SealAESGCM([]byte("too short"), []byte("x"), nil)
		assert.Error(t, err)
	})

	t.Run("FreshNonce", func(t *testing.T) {
		n2, _, err := SealAESGCM(key, []byte("hello"), aad)
		require.NoError(t, err)
		assert.NotEqual(t, nonce, n2)
	})
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey([]byte("secret"), []byte("info-a"))
	require.NoError(t, err)
	assert.Len(t, k1, AESKeySize)

	again, err := DeriveKey([]byte("secret"), []byte("info-a"))
	require.NoError(t, err)
	assert.Equal(t, k1, again)

	k2, err := DeriveKey([]byte("secret"), []byte("info-b"))
	require.NoError(t, err)
	assert.NotEqual(t, k1, k2)

	_, err = DeriveKey(nil, []byte("info"))
	assert.Error(t, err)
}

func TestRandomToken(t *testing.T) {
	tok, err := RandomToken(32)
	require.NoError(t, err)
	assert.Len(t, tok, 32)
	for _, c := range tok {
		assert.True(t, strings.ContainsRune(tokenAlphabet, c), "unexpected char %q", c)
	}

	other, err := RandomToken(32)
	require.NoError(t, err)
	assert.NotEqual(t, tok, other)

	empty, err := RandomToken(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
