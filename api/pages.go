package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/jmcleod/studydeck/auth"
	"github.com/jmcleod/studydeck/gate"
	"github.com/jmcleod/studydeck/web"
)

type section struct {
	path  string
	name  string
	title string
}

// sections are the gated app areas.
var sections = []section{
	{path: "/study", name: "study", title: "Lernen"},
	{path: "/dashboard", name: "dashboard", title: "Dashboard"},
	{path: "/account", name: "account", title: "Konto"},
	{path: gate.OnboardingPath, name: "onboarding", title: "Profil vervollständigen"},
}

func sectionFor(p string) section {
	for _, s := range sections {
		if p == s.path || strings.HasPrefix(p, s.path+"/") {
			return s
		}
	}
	return sections[0]
}

// Home sends visitors to the default landing page.
func (a *API) Home(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, auth.DefaultReturnTo, http.StatusFound)
}

// Page renders an app area behind the auth guard and the
// profile-completion gate.
func (a *API) Page(w http.ResponseWriter, r *http.Request) {
	sec := sectionFor(r.URL.Path)
	state := a.controller.State()

	decision := gate.Guard(state, r.URL.RequestURI())
	switch decision.View {
	case gate.ViewLoading:
		a.render(w, r, http.StatusOK, web.PageLoading, web.Page{Title: sec.title, Path: r.URL.Path})
		return
	case gate.ViewLoginPrompt:
		a.render(w, r, http.StatusOK, web.PageLogin, web.Page{
			Title:    sec.title,
			Path:     r.URL.Path,
			LoginURL: loginURL(decision.LoginReturnTo),
		})
		return
	}

	target, err := a.profileGate.Check(r.Context(), state.Status, r.URL)
	if errors.Is(err, gate.ErrStale) {
		return
	}
	if target != "" {
		http.Redirect(w, r, target, http.StatusFound)
		return
	}

	page := web.Page{Title: sec.title, Path: r.URL.Path, Section: sec.name}
	if claims := a.controller.Claims(); claims != nil {
		page.Subject = claims.Subject
		page.Email = claims.Email
		page.Roles = claims.Roles.Strings()
	}
	a.render(w, r, http.StatusOK, web.PageApp, page)
}

// render fills in the CSRF token and writes the page.
func (a *API) render(w http.ResponseWriter, r *http.Request, status int, name string, page web.Page) {
	page.CSRFToken = ensureCSRFCookie(w, r)
	if err := a.pages.Render(w, status, name, page); err != nil {
		a.logger.Error("rendering page failed", "page", name, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
