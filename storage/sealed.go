package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/jmcleod/studydeck/internal/util"
)

const (
	sealedKeyInfo   = "studydeck:storage:v1"
	sealedAADPrefix = "studydeck:kv:"
	sealedVersion   = 1
)

// sealedRecord is the stored form of a value written through Sealed.
type sealedRecord struct {
	Ver        int    `json:"ver"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Sealed is a KV decorator that encrypts every value with AES-256-GCM before
// handing it to the wrapped store. The key is bound to the record key through
// the AAD, so a value copied to another key fails to open.
type Sealed struct {
	inner KV
	key   *memguard.Enclave
}

var (
	_ KV    = (*Sealed)(nil)
	_ Taker = (*Sealed)(nil)
)

// NewSealed derives a 32-byte sealing key from secret and wraps inner.
// The derived key lives in a memguard enclave; secret is not retained.
func NewSealed(inner KV, secret []byte) (*Sealed, error) {
	if len(secret) == 0 {
		return nil, errors.New("sealing secret is required")
	}
	key, err := util.DeriveKey(secret, []byte(sealedKeyInfo))
	if err != nil {
		return nil, fmt.Errorf("deriving storage key: %w", err)
	}
	// NewEnclave wipes key.
	return &Sealed{inner: inner, key: memguard.NewEnclave(key)}, nil
}

func (s *Sealed) Get(key string) ([]byte, error) {
	data, err := s.inner.Get(key)
	if err != nil {
		return nil, err
	}
	return s.open(key, data)
}

func (s *Sealed) Set(key string, value []byte) error {
	buf, err := s.key.Open()
	if err != nil {
		return fmt.Errorf("opening storage key: %w", err)
	}
	defer buf.Destroy()

	nonce, ct, err := util.SealAESGCM(buf.Bytes(), value, []byte(sealedAADPrefix+key))
	if err != nil {
		return err
	}
	data, err := json.Marshal(sealedRecord{Ver: sealedVersion, Nonce: nonce, Ciphertext: ct})
	if err != nil {
		return err
	}
	return s.inner.Set(key, data)
}

func (s *Sealed) Delete(key string) error {
	return s.inner.Delete(key)
}

func (s *Sealed) Take(key string) ([]byte, error) {
	data, err := Take(s.inner, key)
	if err != nil {
		return nil, err
	}
	return s.open(key, data)
}

func (s *Sealed) open(key string, data []byte) ([]byte, error) {
	var rec sealedRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding sealed value: %w", err)
	}
	if rec.Ver != sealedVersion {
		return nil, fmt.Errorf("unsupported sealed value version: %d", rec.Ver)
	}
	buf, err := s.key.Open()
	if err != nil {
		return nil, fmt.Errorf("opening storage key: %w", err)
	}
	defer buf.Destroy()
	return util.OpenAESGCM(buf.Bytes(), rec.Nonce, rec.Ciphertext, []byte(sealedAADPrefix+key))
}
