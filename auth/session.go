// Package auth implements the client-side authentication and session
// lifecycle: the PKCE authorization-code flow against a hosted identity
// provider, session persistence, role extraction from token claims, and the
// session state machine consumed by route gates and the API gateway.
package auth

import "time"

// Session is the credential set of an authenticated principal.
// ExpiresAt is the absolute expiry of the access token in epoch milliseconds.
type Session struct {
	AccessToken  string `json:"accessToken"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresAt    int64  `json:"expiresAt"`
}

// ValidAt reports whether the session can still be used at now.
func (s Session) ValidAt(now time.Time) bool {
	return now.UnixMilli() < s.ExpiresAt
}

// Expiry returns ExpiresAt as a time.Time.
func (s Session) Expiry() time.Time {
	return time.UnixMilli(s.ExpiresAt)
}

// PendingAuthorizationRequest is the one in-flight login attempt, stored
// between the authorize redirect and the callback.
type PendingAuthorizationRequest struct {
	CodeVerifier string `json:"codeVerifier"`
	State        string `json:"state"`
	ReturnTo     string `json:"returnTo"`
}

// Status is the tag of the controller's AuthState.
type Status int

const (
	// StatusLoading is the initial state, before storage has been read.
	StatusLoading Status = iota
	// StatusUnauthenticated means no usable session exists.
	StatusUnauthenticated
	// StatusAuthenticated means a non-expired session is held.
	StatusAuthenticated
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusUnauthenticated:
		return "unauthenticated"
	case StatusAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// AuthState is a snapshot of the controller state. Session is only set when
// Status is StatusAuthenticated.
type AuthState struct {
	Status  Status
	Session *Session
}

// Navigation is a full-page redirect the host must perform.
type Navigation struct {
	URL string
}
