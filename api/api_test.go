package api_test

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmcleod/studydeck/api"
	"github.com/jmcleod/studydeck/apiclient"
	"github.com/jmcleod/studydeck/auth"
	"github.com/jmcleod/studydeck/storage/memory"
	"github.com/jmcleod/studydeck/web"
)

func unsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	body, err := json.Marshal(claims)
	require.NoError(t, err)
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	return header + "." + base64.RawURLEncoding.EncodeToString(body) + ".sig"
}

type harness struct {
	host       *httptest.Server
	idp        *httptest.Server
	backend    *httptest.Server
	controller *auth.Controller
	store      *auth.Store
	client     *http.Client

	profileComplete atomic.Bool
	backendStatus   atomic.Int32
	tokenCalls      atomic.Int32
	clockSkew       atomic.Int64
	accessToken     string
}

func newHarness(t *testing.T, cfg auth.ProviderConfig) *harness {
	t.Helper()
	h := &harness{}
	h.profileComplete.Store(true)
	h.backendStatus.Store(http.StatusOK)
	h.accessToken = unsignedToken(t, map[string]any{
		"sub":            "user-1",
		"email":          "skipper@example.com",
		"cognito:groups": []string{"premium"},
	})

	h.idp = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oauth2/token" {
			http.NotFound(w, r)
			return
		}
		h.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": h.accessToken,
			"id_token":     h.accessToken,
			"expires_in":   3600,
			"token_type":   "Bearer",
		})
	}))
	t.Cleanup(h.idp.Close)

	h.backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status := int(h.backendStatus.Load()); status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/me":
			json.NewEncoder(w).Encode(apiclient.Me{UserID: "user-1", ProfileComplete: h.profileComplete.Load()})
		case "/study/due":
			json.NewEncoder(w).Encode([]apiclient.StudyCard{{Card: apiclient.Card{CardID: "c1"}}})
		case "/study/review":
			json.NewEncoder(w).Encode(apiclient.StudyCard{Card: apiclient.Card{CardID: "c1"}})
		default:
			json.NewEncoder(w).Encode([]any{})
		}
	}))
	t.Cleanup(h.backend.Close)

	if cfg.Domain == "set" {
		cfg.Domain = h.idp.URL
	}

	h.store = auth.NewStore(memory.New(), memory.New())
	signal := apiclient.NewSignal()
	provider := auth.NewProvider(cfg, h.store)
	reg := prometheus.NewRegistry()
	h.controller = auth.NewController(h.store, provider,
		auth.WithMetrics(auth.NewMetrics(reg)),
		auth.WithClock(func() time.Time { return time.Now().Add(time.Duration(h.clockSkew.Load())) }))
	h.controller.Observe(signal)
	t.Cleanup(h.controller.Close)
	h.controller.Hydrate(t.Context())

	pages, err := web.New()
	require.NoError(t, err)
	backend := apiclient.New(h.backend.URL, h.store, signal)
	a := api.New(h.controller, backend, pages, api.WithGatherer(reg))
	h.host = httptest.NewServer(a.Handler())
	t.Cleanup(h.host.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	h.client = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return h
}

func configured() auth.ProviderConfig {
	return auth.ProviderConfig{Domain: "set", ClientID: "client-1", Origin: "http://studydeck.test"}
}

func (h *harness) get(t *testing.T, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, h.host.URL+path, nil)
	require.NoError(t, err)
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, h.host.URL+path, strings.NewReader(form.Encode()))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := h.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) csrfToken(t *testing.T) string {
	t.Helper()
	u, err := url.Parse(h.host.URL)
	require.NoError(t, err)
	for _, c := range h.client.Jar.Cookies(u) {
		if c.Name == "studydeck_csrf" {
			return c.Value
		}
	}
	t.Fatal("no CSRF cookie issued")
	return ""
}

// login runs the full authorize redirect and callback against the mocked
// provider.
func (h *harness) login(t *testing.T, returnTo string) *http.Response {
	t.Helper()
	resp := h.get(t, "/auth/login?returnTo="+url.QueryEscape(returnTo))
	require.Equal(t, http.StatusFound, resp.StatusCode)
	authorize, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	state := authorize.Query().Get("state")
	require.NotEmpty(t, state)
	return h.get(t, "/auth/callback?code=abc&state="+url.QueryEscape(state))
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestHealth(t *testing.T) {
	h := newHarness(t, configured())
	resp := h.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body(t, resp))
}

func TestSecurityHeadersOnEveryResponse(t *testing.T) {
	h := newHarness(t, configured())
	resp := h.get(t, "/study")
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Contains(t, resp.Header.Get("Content-Security-Policy"), "frame-ancestors 'none'")
}

func TestHomeRedirectsToStudy(t *testing.T) {
	h := newHarness(t, configured())
	resp := h.get(t, "/")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/study", resp.Header.Get("Location"))
}

func TestLoginRedirectsToProvider(t *testing.T) {
	h := newHarness(t, configured())
	resp := h.get(t, "/auth/login?returnTo=%2Fdashboard")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	u, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/oauth2/authorize", u.Path)
	assert.Equal(t, "S256", u.Query().Get("code_challenge_method"))
	assert.Equal(t, "http://studydeck.test/auth/callback", u.Query().Get("redirect_uri"))
	assert.Equal(t, auth.StatusUnauthenticated, h.controller.State().Status)
}

func TestLoginWithoutConfigurationShowsError(t *testing.T) {
	h := newHarness(t, auth.ProviderConfig{Origin: "http://studydeck.test"})
	resp := h.get(t, "/auth/login")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body(t, resp), "nicht konfiguriert")
}

func TestCallbackCompletesLogin(t *testing.T) {
	h := newHarness(t, configured())

	resp := h.login(t, "/dashboard?tab=week")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard?tab=week", resp.Header.Get("Location"))
	assert.Equal(t, int32(1), h.tokenCalls.Load())

	assert.Equal(t, auth.StatusAuthenticated, h.controller.State().Status)
	stored, ok := h.store.LoadSession()
	require.True(t, ok)
	assert.Equal(t, h.accessToken, stored.AccessToken)

	resp = h.get(t, "/api/v1/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess api.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.Equal(t, "authenticated", sess.Status)
	assert.Equal(t, "user-1", sess.Subject)
	assert.Equal(t, "skipper@example.com", sess.Email)
	assert.Equal(t, []string{"freemium", "premium"}, sess.Roles)
	assert.NotEmpty(t, sess.ExpiresAt)
}

func TestCallbackErrors(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		status   int
		contains string
	}{
		{"provider error", "?error=access_denied", http.StatusBadRequest, "Login fehlgeschlagen: access_denied"},
		{"missing code", "?state=x", http.StatusBadRequest, "Kein Authorization Code"},
		{"no pending request", "?code=abc&state=x", http.StatusBadRequest, "bereits verwendet"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, configured())
			resp := h.get(t, "/auth/callback"+tt.query)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Contains(t, body(t, resp), tt.contains)
			assert.Equal(t, auth.StatusUnauthenticated, h.controller.State().Status)
			assert.Zero(t, h.tokenCalls.Load())
		})
	}
}

func TestCallbackStateMismatchDoesNotExchange(t *testing.T) {
	h := newHarness(t, configured())
	resp := h.get(t, "/auth/login")
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp = h.get(t, "/auth/callback?code=abc&state=forged")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body(t, resp), "nicht verifiziert")
	assert.Zero(t, h.tokenCalls.Load())
	assert.Equal(t, auth.StatusUnauthenticated, h.controller.State().Status)
}

func TestCallbackReplayFails(t *testing.T) {
	h := newHarness(t, configured())
	resp := h.get(t, "/auth/login")
	authorize, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	callback := "/auth/callback?code=abc&state=" + url.QueryEscape(authorize.Query().Get("state"))

	require.Equal(t, http.StatusFound, h.get(t, callback).StatusCode)
	resp = h.get(t, callback)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), h.tokenCalls.Load())
}

func TestPageShowsLoginPromptWhenUnauthenticated(t *testing.T) {
	h := newHarness(t, configured())
	resp := h.get(t, "/dashboard?tab=week")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := body(t, resp)
	assert.Contains(t, html, "Bitte melde dich an")
	assert.Contains(t, html, "/auth/login?returnTo=%2Fdashboard%3Ftab%3Dweek")
}

func TestPageRendersForAuthenticatedUser(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")

	resp := h.get(t, "/study")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html := body(t, resp)
	assert.Contains(t, html, "skipper@example.com")
	assert.Contains(t, html, `name="csrf_token"`)
}

func TestPageRedirectsToOnboardingWhenProfileIncomplete(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")
	h.profileComplete.Store(false)

	resp := h.get(t, "/study?topic=navigation")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/onboarding/profile?returnTo=%2Fstudy%3Ftopic%3Dnavigation", resp.Header.Get("Location"))

	resp = h.get(t, "/onboarding/profile?returnTo=%2Fstudy")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestOnboardingRedirectsBackWhenProfileComplete(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")

	resp := h.get(t, "/onboarding/profile?returnTo=%2Fdashboard")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/dashboard", resp.Header.Get("Location"))
}

func TestLogoutRequiresCSRFToken(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")

	resp := h.postForm(t, "/auth/logout", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, auth.StatusAuthenticated, h.controller.State().Status)

	h.get(t, "/study")
	resp = h.postForm(t, "/auth/logout", url.Values{"csrf_token": {"wrong"}})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, auth.StatusAuthenticated, h.controller.State().Status)
}

func TestLogoutClearsSessionAndRedirectsToProvider(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")
	h.get(t, "/study")

	resp := h.postForm(t, "/auth/logout", url.Values{"csrf_token": {h.csrfToken(t)}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	u, err := url.Parse(resp.Header.Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "/logout", u.Path)
	assert.Equal(t, "client-1", u.Query().Get("client_id"))
	assert.Equal(t, "http://studydeck.test", u.Query().Get("logout_uri"))

	assert.Equal(t, auth.StatusUnauthenticated, h.controller.State().Status)
	_, ok := h.store.LoadSession()
	assert.False(t, ok)
}

func TestLogoutWithoutConfigurationRedirectsHome(t *testing.T) {
	h := newHarness(t, auth.ProviderConfig{})
	h.get(t, "/study")

	resp := h.postForm(t, "/auth/logout", url.Values{"csrf_token": {h.csrfToken(t)}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestAPIRequiresSession(t *testing.T) {
	h := newHarness(t, configured())

	resp := h.get(t, "/api/v1/study/due")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.get(t, "/api/v1/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess api.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.Equal(t, "unauthenticated", sess.Status)
	assert.Empty(t, sess.Roles)
}

func TestSessionExpiresWhileServing(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")
	require.Equal(t, auth.StatusAuthenticated, h.controller.State().Status)

	h.clockSkew.Store(int64(2 * time.Hour))

	resp := h.get(t, "/api/v1/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sess api.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sess))
	assert.Equal(t, "unauthenticated", sess.Status)
	assert.Empty(t, sess.ExpiresAt)

	resp = h.get(t, "/api/v1/study/due")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	_, ok := h.store.LoadSession()
	assert.False(t, ok)
}

func TestAPIProxiesBackend(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")

	resp := h.get(t, "/api/v1/study/due?topic=navigation")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cards []apiclient.StudyCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&cards))
	require.Len(t, cards, 1)
	assert.Equal(t, "c1", cards[0].Card.CardID)

	resp = h.get(t, "/api/v1/topics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", body(t, resp))
}

func TestBackendUnauthorizedEndsSession(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")
	h.backendStatus.Store(http.StatusUnauthorized)

	resp := h.get(t, "/api/v1/study/due")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, auth.StatusUnauthenticated, h.controller.State().Status)
	_, ok := h.store.LoadSession()
	assert.False(t, ok)

	resp = h.get(t, "/study")
	assert.Contains(t, body(t, resp), "Bitte melde dich an")
}

func TestBackendFailureKeepsSession(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")
	h.backendStatus.Store(http.StatusInternalServerError)

	resp := h.get(t, "/api/v1/dashboard/summary")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, auth.StatusAuthenticated, h.controller.State().Status)
}

func TestReviewValidatesBody(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")
	h.get(t, "/study")

	post := func(payload string) *http.Response {
		req, err := http.NewRequestWithContext(t.Context(), http.MethodPost, h.host.URL+"/api/v1/study/review", strings.NewReader(payload))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-CSRF-Token", h.csrfToken(t))
		resp, err := h.client.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	assert.Equal(t, http.StatusBadRequest, post("{").StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(`{"rating":3}`).StatusCode)
	assert.Equal(t, http.StatusBadRequest, post(`{"card_id":"c1","rating":7}`).StatusCode)
	assert.Equal(t, http.StatusOK, post(`{"card_id":"c1","rating":3}`).StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t, configured())
	h.login(t, "/study")

	resp := h.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := body(t, resp)
	assert.Contains(t, text, "studydeck_auth_authenticated 1")
	assert.Contains(t, text, `studydeck_auth_events_total{event="login_completed"} 1`)
}

func TestOpenAPIServed(t *testing.T) {
	h := newHarness(t, configured())
	resp := h.get(t, "/api/v1/openapi.yaml")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body(t, resp), "openapi: 3.0.3")
}
