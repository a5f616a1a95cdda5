// Package memory provides a thread-safe in-memory implementation of storage.KV.
package memory

import (
	"sync"
	"time"

	"github.com/jmcleod/studydeck/storage"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// KV is a thread-safe in-memory implementation of storage.KV.
// Suitable for testing, demos, and values that only need to outlive a
// redirect within a single process.
type KV struct {
	mu   sync.Mutex
	data map[string]entry
	ttl  time.Duration
	now  func() time.Time
}

var (
	_ storage.KV    = (*KV)(nil)
	_ storage.Taker = (*KV)(nil)
)

// Option configures a KV.
type Option func(*KV)

// WithTTL expires every value ttl after it was last written.
// A ttl of 0 disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(kv *KV) {
		kv.ttl = ttl
	}
}

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(kv *KV) {
		kv.now = now
	}
}

// New creates a new empty in-memory KV.
func New(opts ...Option) *KV {
	kv := &KV{
		data: make(map[string]entry),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(kv)
	}
	return kv
}

func (kv *KV) Get(key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	e, ok := kv.getLocked(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), e.value...), nil
}

func (kv *KV) getLocked(key string) (entry, bool) {
	e, ok := kv.data[key]
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !kv.now().Before(e.expiresAt) {
		delete(kv.data, key)
		return entry{}, false
	}
	return e, true
}

func (kv *KV) Set(key string, value []byte) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	e := entry{value: append([]byte(nil), value...)}
	if kv.ttl > 0 {
		e.expiresAt = kv.now().Add(kv.ttl)
	}
	kv.data[key] = e
	return nil
}

func (kv *KV) Delete(key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.getLocked(key); !ok {
		return storage.ErrNotFound
	}
	delete(kv.data, key)
	return nil
}

// Take returns and removes the value under key in one locked step.
func (kv *KV) Take(key string) ([]byte, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	e, ok := kv.getLocked(key)
	if !ok {
		return nil, storage.ErrNotFound
	}
	delete(kv.data, key)
	return e.value, nil
}
