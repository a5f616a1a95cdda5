// Package bbolt provides a BBolt-backed storage.KV.
package bbolt

import (
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/studydeck/storage"
)

// DefaultBucket is the bucket used when none is specified.
const DefaultBucket = "studydeck"

// Store implements storage.KV backed by a single BBolt bucket.
type Store struct {
	db     *bbolt.DB
	bucket []byte
}

var (
	_ storage.KV    = (*Store)(nil)
	_ storage.Taker = (*Store)(nil)
)

// NewStore returns a Store backed by the given BBolt database and bucket.
// An empty bucket name selects DefaultBucket.
func NewStore(db *bbolt.DB, bucket string) *Store {
	if bucket == "" {
		bucket = DefaultBucket
	}
	return &Store{db: db, bucket: []byte(bucket)}
}

// NewStoreFromFile opens a BBolt database at the given path and returns a new Store.
func NewStoreFromFile(path string, options *bbolt.Options) (*Store, error) {
	db, err := bbolt.Open(path, 0600, options)
	if err != nil {
		return nil, fmt.Errorf("opening bbolt db: %w", err)
	}
	return NewStore(db, DefaultBucket), nil
}

// Close closes the underlying BBolt database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		// data is only valid for the life of the transaction.
		value = append([]byte(nil), data...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Store) Set(key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), value)
	})
}

func (s *Store) Delete(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return deleteInTx(tx, s.bucket, key)
	})
}

// Take reads and deletes key inside one read-write transaction.
func (s *Store) Take(key string) ([]byte, error) {
	var value []byte
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		data := b.Get([]byte(key))
		if data == nil {
			return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
		}
		value = append([]byte(nil), data...)
		return b.Delete([]byte(key))
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func deleteInTx(tx *bbolt.Tx, bucket []byte, key string) error {
	b := tx.Bucket(bucket)
	if b == nil || b.Get([]byte(key)) == nil {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return b.Delete([]byte(key))
}
