package auth

import "errors"

var (
	// ErrConfigurationMissing indicates required provider configuration
	// (domain or client id) is absent.
	ErrConfigurationMissing = errors.New("identity provider configuration missing")
	// ErrMissingLoginState indicates no pending authorization request was
	// found at callback time.
	ErrMissingLoginState = errors.New("login state missing, please start the login again")
	// ErrStateMismatch indicates the callback state does not match the
	// stored anti-forgery token.
	ErrStateMismatch = errors.New("invalid login state (state mismatch)")
	// ErrTokenExchangeFailed indicates the provider rejected the
	// authorization code exchange.
	ErrTokenExchangeFailed = errors.New("token exchange with identity provider failed")
)
