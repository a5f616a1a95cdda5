// Package storage provides the key-value abstraction used to persist client
// session state.
package storage

import "errors"

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("record not found")

// KV is a minimal key-value store. Implementations must be safe for
// concurrent use.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key string) ([]byte, error)
	// Set creates or overwrites the value stored under key.
	Set(key string, value []byte) error
	// Delete removes key. It returns ErrNotFound if the key is absent.
	Delete(key string) error
}

// Taker is implemented by stores that can read and remove a key in a single
// atomic step.
type Taker interface {
	Take(key string) ([]byte, error)
}

// Take reads and removes key. Stores implementing Taker do this atomically.
// For other stores the delete is issued immediately after the read, and is
// attempted even when the read fails.
func Take(kv KV, key string) ([]byte, error) {
	if t, ok := kv.(Taker); ok {
		return t.Take(key)
	}
	value, err := kv.Get(key)
	delErr := kv.Delete(key)
	if err != nil {
		return nil, err
	}
	if delErr != nil && !errors.Is(delErr, ErrNotFound) {
		return nil, delErr
	}
	return value, nil
}
