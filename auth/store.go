package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jmcleod/studydeck/storage"
)

// Storage keys for the two persisted records.
const (
	SessionKey        = "studydeck.auth.session"
	PendingRequestKey = "studydeck.auth.pkce"
)

// Store persists the session record in durable storage and the pending
// authorization request in ephemeral storage. Either backend may be nil when
// no storage context is available; every operation then degrades to a no-op
// or an absent result.
type Store struct {
	durable   storage.KV
	ephemeral storage.KV
	now       func() time.Time
	logger    *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreClock overrides the time source used for expiry checks.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// WithStoreLogger sets the logger used to report storage failures.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates a Store over the given durable and ephemeral backends.
func NewStore(durable, ephemeral storage.KV, opts ...StoreOption) *Store {
	s := &Store{
		durable:   durable,
		ephemeral: ephemeral,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "session_store")
	return s
}

// storedSession mirrors Session with pointer fields so that missing or
// mistyped required fields can be told apart from zero values.
type storedSession struct {
	AccessToken  *string `json:"accessToken"`
	IDToken      *string `json:"idToken"`
	RefreshToken *string `json:"refreshToken"`
	ExpiresAt    *int64  `json:"expiresAt"`
}

// LoadSession returns the persisted session. It reports false when the record
// is missing, unparseable or lacks a required field. Malformed and expired
// records are left in place.
func (s *Store) LoadSession() (Session, bool) {
	if s.durable == nil {
		return Session{}, false
	}
	raw, err := s.durable.Get(SessionKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("reading session record failed", "error", err)
		}
		return Session{}, false
	}
	var rec storedSession
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Session{}, false
	}
	if rec.AccessToken == nil || rec.IDToken == nil || rec.ExpiresAt == nil {
		return Session{}, false
	}
	session := Session{
		AccessToken: *rec.AccessToken,
		IDToken:     *rec.IDToken,
		ExpiresAt:   *rec.ExpiresAt,
	}
	if rec.RefreshToken != nil {
		session.RefreshToken = *rec.RefreshToken
	}
	return session, true
}

// SaveSession overwrites the persisted session with a single write.
func (s *Store) SaveSession(session Session) error {
	if s.durable == nil {
		return nil
	}
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.durable.Set(SessionKey, data)
}

// ClearSession removes the persisted session. It is idempotent.
func (s *Store) ClearSession() {
	if s.durable == nil {
		return
	}
	if err := s.durable.Delete(SessionKey); err != nil && !errors.Is(err, storage.ErrNotFound) {
		s.logger.Warn("clearing session record failed", "error", err)
	}
}

// LoadAccessToken returns the access token of a non-expired session. An
// expired session is deleted as a side effect.
func (s *Store) LoadAccessToken() (string, bool) {
	session, ok := s.LoadSession()
	if !ok {
		return "", false
	}
	if !session.ValidAt(s.now()) {
		s.ClearSession()
		return "", false
	}
	return session.AccessToken, true
}

// SavePendingRequest stores req as the single in-flight login attempt,
// replacing any previous one.
func (s *Store) SavePendingRequest(req PendingAuthorizationRequest) error {
	if s.ephemeral == nil {
		return nil
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.ephemeral.Set(PendingRequestKey, data)
}

// ConsumePendingRequest returns the pending request and removes it in the
// same step. The record is removed even if it cannot be parsed, so a second
// call always reports false.
func (s *Store) ConsumePendingRequest() (PendingAuthorizationRequest, bool) {
	if s.ephemeral == nil {
		return PendingAuthorizationRequest{}, false
	}
	raw, err := storage.Take(s.ephemeral, PendingRequestKey)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("consuming pending authorization request failed", "error", err)
		}
		return PendingAuthorizationRequest{}, false
	}
	var req PendingAuthorizationRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return PendingAuthorizationRequest{}, false
	}
	return req, true
}
