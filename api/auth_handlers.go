package api

import (
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/jmcleod/studydeck/auth"
	"github.com/jmcleod/studydeck/web"
)

// Login starts the authorization-code flow and redirects to the provider.
// The return target is the returnTo query parameter, else the referring
// page.
func (a *API) Login(w http.ResponseWriter, r *http.Request) {
	returnTo := localPath(r.URL.Query().Get("returnTo"))
	nav, err := a.controller.Login(r.Context(), returnTo, refererPath(r))
	if err != nil {
		status, msg := loginErrorMessage(err)
		if !errors.Is(err, auth.ErrConfigurationMissing) {
			a.logger.Error("starting login failed", "error", err)
		}
		a.render(w, r, status, web.PageError, web.Page{Title: "Login", Message: msg})
		return
	}
	http.Redirect(w, r, nav.URL, http.StatusFound)
}

// Callback completes the login with the code and state returned by the
// provider. A failed attempt is shown, never retried.
func (a *API) Callback(w http.ResponseWriter, r *http.Request) {
	ip := a.extractClientIP(r)
	if blocked, retryAfter := a.callbackLimit.check(ip); blocked {
		w.Header().Set("Retry-After", retryAfterString(retryAfter))
		a.render(w, r, http.StatusTooManyRequests, web.PageCallbackError, web.Page{
			Title:   "Login",
			Message: "Zu viele fehlgeschlagene Anmeldeversuche. Bitte später erneut versuchen.",
		})
		return
	}

	q := r.URL.Query()
	if providerErr := q.Get("error"); providerErr != "" {
		a.render(w, r, http.StatusBadRequest, web.PageCallbackError, web.Page{
			Title:   "Login",
			Message: "Login fehlgeschlagen: " + providerErr,
		})
		return
	}
	code := q.Get("code")
	if code == "" {
		a.render(w, r, http.StatusBadRequest, web.PageCallbackError, web.Page{
			Title:   "Login",
			Message: "Kein Authorization Code in der Callback-URL gefunden.",
		})
		return
	}

	returnTo, err := a.controller.CompleteLogin(r.Context(), code, q.Get("state"))
	if r.Context().Err() != nil {
		// The browser went away; nobody is left to show the result to.
		return
	}
	if err != nil {
		a.callbackLimit.recordFailure(ip)
		status, msg := loginErrorMessage(err)
		a.render(w, r, status, web.PageCallbackError, web.Page{Title: "Login", Message: msg})
		return
	}
	a.callbackLimit.recordSuccess(ip)

	target := localPath(returnTo)
	if target == "" {
		target = auth.DefaultReturnTo
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// Logout tears down the local session and then redirects to the provider
// logout endpoint, or to "/" when it is not configured.
func (a *API) Logout(w http.ResponseWriter, r *http.Request) {
	nav, err := a.controller.Logout(r.Context())
	clearCSRFCookie(w, r)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, nav.URL, http.StatusSeeOther)
}

// GetSession reports the session state and the claims derived from it.
func (a *API) GetSession(w http.ResponseWriter, r *http.Request) {
	state := a.controller.State()
	resp := SessionResponse{Status: state.Status.String(), Roles: []string{}}
	if claims := a.controller.Claims(); claims != nil {
		resp.Subject = claims.Subject
		resp.Email = claims.Email
		resp.Roles = claims.Roles.Strings()
	}
	if state.Session != nil {
		resp.ExpiresAt = state.Session.Expiry().UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, resp)
}

func loginURL(returnTo string) string {
	return "/auth/login?" + url.Values{"returnTo": {returnTo}}.Encode()
}
