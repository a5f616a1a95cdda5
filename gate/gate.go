// Package gate decides what a route renders given the session state: the
// auth guard for signed-out visitors and the profile-completion gate that
// sends new users through onboarding.
package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jmcleod/studydeck/apiclient"
	"github.com/jmcleod/studydeck/auth"
)

// OnboardingPath is the profile onboarding route.
const OnboardingPath = "/onboarding/profile"

// ErrStale is returned when the request that started a check went away
// before its result arrived. The result must not be applied.
var ErrStale = errors.New("gate: check superseded by navigation")

// View is what the auth guard renders.
type View int

const (
	ViewLoading View = iota
	ViewLoginPrompt
	ViewContent
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewLoginPrompt:
		return "login_prompt"
	case ViewContent:
		return "content"
	default:
		return "unknown"
	}
}

// Decision is the outcome of the auth guard. LoginReturnTo is set with
// ViewLoginPrompt and is the target to pass to Login.
type Decision struct {
	View          View
	LoginReturnTo string
}

// Guard maps the session state to a view for currentPath.
func Guard(state auth.AuthState, currentPath string) Decision {
	switch state.Status {
	case auth.StatusLoading:
		return Decision{View: ViewLoading}
	case auth.StatusAuthenticated:
		return Decision{View: ViewContent}
	default:
		returnTo := currentPath
		if returnTo == "" {
			returnTo = auth.DefaultReturnTo
		}
		return Decision{View: ViewLoginPrompt, LoginReturnTo: returnTo}
	}
}

// IsOnboarding reports whether path is on the onboarding route.
func IsOnboarding(path string) bool {
	return strings.HasPrefix(path, OnboardingPath)
}

// ResolveReturnTo sanitizes a return target taken from a query string. Only
// local absolute paths outside onboarding are kept; anything else becomes
// the default landing page.
func ResolveReturnTo(path string) string {
	if !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return auth.DefaultReturnTo
	}
	if IsOnboarding(path) {
		return auth.DefaultReturnTo
	}
	return path
}

// ProfileSource reports the account summary of the current user.
type ProfileSource interface {
	GetMe(ctx context.Context) (*apiclient.Me, error)
}

var _ ProfileSource = (*apiclient.Client)(nil)

// ProfileGate redirects authenticated users with an incomplete profile to
// onboarding, and users who finished onboarding back to where they came
// from. A failed profile lookup lets the request through.
type ProfileGate struct {
	profiles ProfileSource
	logger   *slog.Logger
}

// NewProfileGate creates a ProfileGate. A nil logger uses slog.Default().
func NewProfileGate(profiles ProfileSource, logger *slog.Logger) *ProfileGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileGate{
		profiles: profiles,
		logger:   logger.With("component", "profile_gate"),
	}
}

// Check returns the redirect target for a request to u, or "" when the page
// should render. It only queries the profile while authenticated. ErrStale
// is returned when ctx ended during the lookup.
func (g *ProfileGate) Check(ctx context.Context, status auth.Status, u *url.URL) (string, error) {
	if status != auth.StatusAuthenticated {
		return "", nil
	}

	me, err := g.profiles.GetMe(ctx)
	if ctx.Err() != nil {
		return "", ErrStale
	}
	if err != nil {
		g.logger.Warn("profile lookup failed, allowing request", "error", err)
		return "", nil
	}

	onboarding := IsOnboarding(u.Path)
	switch {
	case !me.ProfileComplete && !onboarding:
		returnTo := u.Path
		if u.RawQuery != "" {
			returnTo += "?" + u.RawQuery
		}
		return OnboardingPath + "?" + url.Values{"returnTo": {returnTo}}.Encode(), nil
	case me.ProfileComplete && onboarding:
		return ResolveReturnTo(u.Query().Get("returnTo")), nil
	default:
		return "", nil
	}
}
