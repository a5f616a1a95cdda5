package apiclient

import (
	"log/slog"
	"net/http"
)

// TokenSource is the part of the session store the gateway needs.
type TokenSource interface {
	// LoadAccessToken returns a non-expired access token.
	LoadAccessToken() (string, bool)
	// ClearSession removes the stored session.
	ClearSession()
}

// Transport is an http.RoundTripper that attaches the stored access token as
// a bearer credential and reacts to 401 responses by clearing the stored
// session and publishing Unauthorized. It never retries.
type Transport struct {
	// Base performs the request. nil means http.DefaultTransport.
	Base http.RoundTripper
	// Tokens supplies the bearer credential.
	Tokens TokenSource
	// Unauthorized is published after a 401 response. May be nil.
	Unauthorized *Signal
	// Logger receives a warning for each 401. nil means slog.Default().
	Logger *slog.Logger
}

var _ http.RoundTripper = (*Transport)(nil)

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.Tokens != nil {
		if token, ok := t.Tokens.LoadAccessToken(); ok {
			req = req.Clone(req.Context())
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.logger().Warn("backend rejected credentials",
			"component", "api_gateway",
			"method", req.Method,
			"path", req.URL.Path,
		)
		if t.Tokens != nil {
			t.Tokens.ClearSession()
		}
		if t.Unauthorized != nil {
			t.Unauthorized.Publish()
		}
	}
	return resp, nil
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}
