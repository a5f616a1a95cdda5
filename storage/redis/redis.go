// Package redis provides a Redis-backed storage.KV, used for short-lived
// records that must be visible to every instance serving the same client.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/jmcleod/studydeck/storage"
)

// Default timeout applied to each Redis command.
const DefaultTimeout = 3 * time.Second

// Store implements storage.KV on top of a Redis client. Every key is
// namespaced with a prefix and written with the configured TTL.
type Store struct {
	client    goredis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	timeout   time.Duration
}

var (
	_ storage.KV    = (*Store)(nil)
	_ storage.Taker = (*Store)(nil)
)

// NewStore wraps an existing client. A ttl of 0 stores values without expiry.
func NewStore(client goredis.UniversalClient, keyPrefix string, ttl time.Duration) *Store {
	return &Store{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		timeout:   DefaultTimeout,
	}
}

// NewStoreFromURL parses a redis:// URL, verifies connectivity and returns a Store.
func NewStoreFromURL(ctx context.Context, rawURL, keyPrefix string, ttl time.Duration) (*Store, error) {
	opts, err := goredis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewStore(client, keyPrefix, ttl), nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(key string) string {
	return s.keyPrefix + key
}

func (s *Store) Get(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	value, err := s.client.Get(ctx, s.key(key)).Bytes()
	return value, mapErr(key, err)
}

func (s *Store) Set(key string, value []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Set(ctx, s.key(key), value, s.ttl).Err()
}

func (s *Store) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	n, err := s.client.Del(ctx, s.key(key)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return nil
}

// Take uses GETDEL so that concurrent callers never observe the same value.
func (s *Store) Take(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	value, err := s.client.GetDel(ctx, s.key(key)).Bytes()
	return value, mapErr(key, err)
}

func mapErr(key string, err error) error {
	if errors.Is(err, goredis.Nil) {
		return fmt.Errorf("%s: %w", key, storage.ErrNotFound)
	}
	return err
}
