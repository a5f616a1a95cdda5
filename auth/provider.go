package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/jmcleod/studydeck/internal/util"
)

const (
	// DefaultScopes is requested when no scopes are configured.
	DefaultScopes = "openid email profile"
	// DefaultReturnTo is where a completed login lands when nothing else
	// was recorded.
	DefaultReturnTo = "/study"
	// CallbackPath is the route that receives the authorization response.
	CallbackPath = "/auth/callback"

	stateLength   = 32
	authorizePath = "/oauth2/authorize"
	tokenPath     = "/oauth2/token"
	logoutPath    = "/logout"
)

// ProviderConfig describes the hosted identity provider. Domain and ClientID
// are required. RedirectURI and LogoutURI default to values derived from
// Origin, the public origin of this client.
type ProviderConfig struct {
	Domain      string
	ClientID    string
	RedirectURI string
	LogoutURI   string
	Scopes      string
	Origin      string
}

type resolvedConfig struct {
	domain      string
	clientID    string
	redirectURI string
	logoutURI   string
	scopes      []string
}

func (c ProviderConfig) resolve() (resolvedConfig, error) {
	if c.Domain == "" || c.ClientID == "" {
		return resolvedConfig{}, fmt.Errorf("%w: provider domain and client id are required", ErrConfigurationMissing)
	}
	origin := strings.TrimRight(c.Origin, "/")
	redirectURI := c.RedirectURI
	if redirectURI == "" {
		if origin == "" {
			return resolvedConfig{}, fmt.Errorf("%w: redirect uri or public origin is required", ErrConfigurationMissing)
		}
		redirectURI = origin + CallbackPath
	}
	logoutURI := c.LogoutURI
	if logoutURI == "" {
		if origin == "" {
			return resolvedConfig{}, fmt.Errorf("%w: logout uri or public origin is required", ErrConfigurationMissing)
		}
		logoutURI = origin
	}
	scopes := c.Scopes
	if scopes == "" {
		scopes = DefaultScopes
	}
	return resolvedConfig{
		domain:      strings.TrimRight(c.Domain, "/"),
		clientID:    c.ClientID,
		redirectURI: redirectURI,
		logoutURI:   logoutURI,
		scopes:      strings.Fields(scopes),
	}, nil
}

func (c resolvedConfig) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:    c.clientID,
		RedirectURL: c.redirectURI,
		Scopes:      c.scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.domain + authorizePath,
			TokenURL:  c.domain + tokenPath,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// LoginResult is the outcome of a completed authorization-code exchange.
type LoginResult struct {
	Session  Session
	ReturnTo string
}

// Provider builds authorize and logout redirects and exchanges authorization
// codes for tokens using PKCE (RFC 7636, S256).
type Provider struct {
	cfg        ProviderConfig
	store      *Store
	httpClient *http.Client
	now        func() time.Time
	logger     *slog.Logger
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithHTTPClient sets the client used for the token endpoint.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithProviderClock overrides the time source used to compute expiry.
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.now = now
	}
}

// WithProviderLogger sets the structured logger.
func WithProviderLogger(logger *slog.Logger) ProviderOption {
	return func(p *Provider) {
		p.logger = logger
	}
}

// NewProvider creates a Provider. Configuration is validated on every
// operation rather than here, so a misconfigured provider still allows the
// rest of the client to run.
func NewProvider(cfg ProviderConfig, store *Store, opts ...ProviderOption) *Provider {
	p := &Provider{
		cfg:        cfg,
		store:      store,
		httpClient: http.DefaultClient,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With("component", "identity_provider")
	return p
}

// BeginLogin records a new pending authorization request and returns the
// authorize redirect. returnTo falls back to currentPath, then to
// DefaultReturnTo.
func (p *Provider) BeginLogin(returnTo, currentPath string) (Navigation, error) {
	cfg, err := p.cfg.resolve()
	if err != nil {
		return Navigation{}, err
	}

	verifier := oauth2.GenerateVerifier()
	state, err := util.RandomToken(stateLength)
	if err != nil {
		return Navigation{}, fmt.Errorf("generating login state: %w", err)
	}
	req := PendingAuthorizationRequest{
		CodeVerifier: verifier,
		State:        state,
		ReturnTo:     firstNonEmpty(returnTo, currentPath, DefaultReturnTo),
	}
	if err := p.store.SavePendingRequest(req); err != nil {
		return Navigation{}, fmt.Errorf("saving login state: %w", err)
	}

	p.logger.Debug("building authorization URL", "return_to", req.ReturnTo)
	authURL := cfg.oauth2Config().AuthCodeURL(state, oauth2.S256ChallengeOption(verifier))
	return Navigation{URL: authURL}, nil
}

// BeginLogout returns the provider logout redirect.
func (p *Provider) BeginLogout() (Navigation, error) {
	cfg, err := p.cfg.resolve()
	if err != nil {
		return Navigation{}, err
	}
	params := url.Values{
		"client_id":  {cfg.clientID},
		"logout_uri": {cfg.logoutURI},
	}
	return Navigation{URL: cfg.domain + logoutPath + "?" + params.Encode()}, nil
}

// CompleteLogin consumes the pending authorization request, checks the
// callback state against it and exchanges code for tokens. The pending
// request is consumed before anything else, so a replayed callback fails with
// ErrMissingLoginState without reaching the network.
func (p *Provider) CompleteLogin(ctx context.Context, code, state string) (LoginResult, error) {
	pending, ok := p.store.ConsumePendingRequest()
	if !ok {
		return LoginResult{}, ErrMissingLoginState
	}
	if state == "" || subtle.ConstantTimeCompare([]byte(state), []byte(pending.State)) != 1 {
		return LoginResult{}, ErrStateMismatch
	}
	cfg, err := p.cfg.resolve()
	if err != nil {
		return LoginResult{}, err
	}

	p.logger.Info("exchanging authorization code for tokens")
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	tok, err := cfg.oauth2Config().Exchange(ctx, code, oauth2.VerifierOption(pending.CodeVerifier))
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			p.logger.Warn("token endpoint rejected exchange",
				"status", re.Response.StatusCode,
				"error_code", re.ErrorCode,
			)
			return LoginResult{}, fmt.Errorf("%w (status %d)", ErrTokenExchangeFailed, re.Response.StatusCode)
		}
		p.logger.Warn("token exchange failed", "error", err)
		return LoginResult{}, fmt.Errorf("%w: %w", ErrTokenExchangeFailed, err)
	}

	now := p.now()
	expiresIn := tok.ExpiresIn
	if expiresIn == 0 && !tok.Expiry.IsZero() {
		expiresIn = int64(tok.Expiry.Sub(now).Seconds())
	}
	idToken, _ := tok.Extra("id_token").(string)
	session := Session{
		AccessToken:  tok.AccessToken,
		IDToken:      idToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    now.UnixMilli() + expiresIn*1000,
	}

	p.logger.Info("authorization code exchange successful",
		"has_refresh_token", session.RefreshToken != "",
		"expires_at", session.Expiry().UTC().Format(time.RFC3339),
	)
	return LoginResult{
		Session:  session,
		ReturnTo: firstNonEmpty(pending.ReturnTo, DefaultReturnTo),
	}, nil
}
