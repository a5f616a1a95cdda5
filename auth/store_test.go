package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/studydeck/storage"
	"github.com/jmcleod/studydeck/storage/memory"
)

var testNow = time.UnixMilli(1_700_000_000_000)

func newTestStore() (*Store, *memory.KV, *memory.KV) {
	durable := memory.New()
	ephemeral := memory.New()
	store := NewStore(durable, ephemeral, WithStoreClock(func() time.Time { return testNow }))
	return store, durable, ephemeral
}

func TestStoreSessionRoundTrip(t *testing.T) {
	store, _, _ := newTestStore()
	want := Session{AccessToken: "a", IDToken: "b", RefreshToken: "r", ExpiresAt: testNow.UnixMilli() + 1000}

	require.NoError(t, store.SaveSession(want))
	got, ok := store.LoadSession()
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestStoreLoadSessionMissing(t *testing.T) {
	store, _, _ := newTestStore()
	_, ok := store.LoadSession()
	assert.False(t, ok)
}

func TestStoreLoadSessionMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"NotJSON", "{"},
		{"MissingAccessToken", `{"idToken":"b","expiresAt":1}`},
		{"MissingIDToken", `{"accessToken":"a","expiresAt":1}`},
		{"MissingExpiresAt", `{"accessToken":"a","idToken":"b"}`},
		{"NumericAccessToken", `{"accessToken":1,"idToken":"b","expiresAt":1}`},
		{"StringExpiresAt", `{"accessToken":"a","idToken":"b","expiresAt":"soon"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, durable, _ := newTestStore()
			require.NoError(t, durable.Set(SessionKey, []byte(tt.raw)))

			_, ok := store.LoadSession()
			assert.False(t, ok)

			// Malformed records are left for the caller to delete.
			_, err := durable.Get(SessionKey)
			assert.NoError(t, err)
		})
	}
}

func TestStoreLoadSessionNullRefreshToken(t *testing.T) {
	store, durable, _ := newTestStore()
	require.NoError(t, durable.Set(SessionKey, []byte(`{"accessToken":"a","idToken":"b","refreshToken":null,"expiresAt":5}`)))

	got, ok := store.LoadSession()
	require.True(t, ok)
	assert.Equal(t, Session{AccessToken: "a", IDToken: "b", ExpiresAt: 5}, got)
}

func TestStoreClearSessionIdempotent(t *testing.T) {
	store, _, _ := newTestStore()
	require.NoError(t, store.SaveSession(Session{AccessToken: "a", IDToken: "b", ExpiresAt: 1}))

	store.ClearSession()
	store.ClearSession()
	_, ok := store.LoadSession()
	assert.False(t, ok)
}

func TestStoreLoadAccessToken(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		store, _, _ := newTestStore()
		require.NoError(t, store.SaveSession(Session{AccessToken: "a", IDToken: "b", ExpiresAt: testNow.UnixMilli() + 1}))
		token, ok := store.LoadAccessToken()
		assert.True(t, ok)
		assert.Equal(t, "a", token)
	})

	t.Run("ExpiredIsDeleted", func(t *testing.T) {
		store, durable, _ := newTestStore()
		require.NoError(t, store.SaveSession(Session{AccessToken: "a", IDToken: "b", ExpiresAt: testNow.UnixMilli()}))
		_, ok := store.LoadAccessToken()
		assert.False(t, ok)

		_, err := durable.Get(SessionKey)
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestStoreConsumePendingRequestOnce(t *testing.T) {
	store, _, _ := newTestStore()
	req := PendingAuthorizationRequest{CodeVerifier: "v", State: "s", ReturnTo: "/study"}
	require.NoError(t, store.SavePendingRequest(req))

	got, ok := store.ConsumePendingRequest()
	require.True(t, ok)
	assert.Equal(t, req, got)

	_, ok = store.ConsumePendingRequest()
	assert.False(t, ok)
}

func TestStoreConsumePendingRequestRemovesUnparseable(t *testing.T) {
	store, _, ephemeral := newTestStore()
	require.NoError(t, ephemeral.Set(PendingRequestKey, []byte("garbage")))

	_, ok := store.ConsumePendingRequest()
	assert.False(t, ok)

	_, err := ephemeral.Get(PendingRequestKey)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStoreSavePendingRequestReplaces(t *testing.T) {
	store, _, _ := newTestStore()
	require.NoError(t, store.SavePendingRequest(PendingAuthorizationRequest{State: "first"}))
	require.NoError(t, store.SavePendingRequest(PendingAuthorizationRequest{State: "second"}))

	got, ok := store.ConsumePendingRequest()
	require.True(t, ok)
	assert.Equal(t, "second", got.State)
}

func TestStoreWithoutStorage(t *testing.T) {
	store := NewStore(nil, nil)

	assert.NoError(t, store.SaveSession(Session{AccessToken: "a", IDToken: "b", ExpiresAt: 1}))
	_, ok := store.LoadSession()
	assert.False(t, ok)
	store.ClearSession()
	_, ok = store.LoadAccessToken()
	assert.False(t, ok)

	assert.NoError(t, store.SavePendingRequest(PendingAuthorizationRequest{State: "s"}))
	_, ok = store.ConsumePendingRequest()
	assert.False(t, ok)
}
