package bbolt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/jmcleod/studydeck/storage"
	"github.com/jmcleod/studydeck/storage/storagetest"
)

func newTestDB(t *testing.T) (*bbolt.DB, func()) {
	t.Helper()
	f, err := os.CreateTemp("", "studydeck-test-*.db")
	if err != nil {
		t.Fatalf("could not create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		os.Remove(path)
		t.Fatalf("could not open db: %v", err)
	}
	return db, func() {
		db.Close()
		os.Remove(path)
	}
}

func TestBBoltStore(t *testing.T) {
	db, cleanup := newTestDB(t)
	defer cleanup()

	storagetest.RunKVTests(t, NewStore(db, ""))
}

func TestBBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	s, err := NewStoreFromFile(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set("session", []byte(`{"accessToken":"a"}`)))
	require.NoError(t, s.Close())

	s, err = NewStoreFromFile(path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get("session")
	require.NoError(t, err)
	assert.Equal(t, `{"accessToken":"a"}`, string(got))
}

func TestBBoltStoreBucketsAreIsolated(t *testing.T) {
	db, cleanup := newTestDB(t)
	defer cleanup()

	durable := NewStore(db, "durable")
	other := NewStore(db, "other")

	require.NoError(t, durable.Set("k", []byte("v")))
	_, err := other.Get("k")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
