// Package api is the local client host: the login routes, the gated HTML
// pages and a JSON API that forwards study calls to the backend with the
// stored bearer credential.
package api

import (
	"context"
	_ "embed"
	"log/slog"
	"net/http"
	"net/netip"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	openapimw "github.com/go-openapi/runtime/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmcleod/studydeck/apiclient"
	"github.com/jmcleod/studydeck/auth"
	"github.com/jmcleod/studydeck/gate"
	"github.com/jmcleod/studydeck/web"
)

//go:embed openapi.yaml
var openapiSpec []byte

// Backend is the part of the backend client the host forwards to.
type Backend interface {
	gate.ProfileSource
	GetDueCards(ctx context.Context, topic string) ([]apiclient.StudyCard, error)
	GetPracticeCards(ctx context.Context, topic string) ([]apiclient.StudyCard, error)
	ReviewCard(ctx context.Context, cardID string, rating apiclient.Rating) (*apiclient.StudyCard, error)
	GetDashboardSummary(ctx context.Context) (*apiclient.DashboardSummary, error)
	GetTopics(ctx context.Context) ([]apiclient.Topic, error)
}

var _ Backend = (*apiclient.Client)(nil)

// API holds the dependencies needed by the handlers.
type API struct {
	controller     *auth.Controller
	backend        Backend
	profileGate    *gate.ProfileGate
	pages          *web.Renderer
	logger         *slog.Logger
	gatherer       prometheus.Gatherer
	callbackLimit  *ipRateLimiter
	trustedProxies []netip.Prefix
}

// Option configures the API instance.
type Option func(*API)

// WithLogger sets the structured logger.
// If not set, a default JSON logger writing to stderr is used.
func WithLogger(logger *slog.Logger) Option {
	return func(a *API) {
		a.logger = logger
	}
}

// WithGatherer exposes the given registry on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(a *API) {
		a.gatherer = g
	}
}

// WithTrustedProxies sets the CIDR ranges whose forwarding headers are
// honored when identifying the client for rate limiting.
func WithTrustedProxies(prefixes []netip.Prefix) Option {
	return func(a *API) {
		a.trustedProxies = prefixes
	}
}

// New creates a new API instance.
func New(controller *auth.Controller, backend Backend, pages *web.Renderer, opts ...Option) *API {
	a := &API{
		controller:    controller,
		backend:       backend,
		pages:         pages,
		callbackLimit: newIPRateLimiter(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	a.logger = a.logger.With("component", "api")
	a.profileGate = gate.NewProfileGate(backend, a.logger)
	return a
}

// Handler returns the complete host: auth routes, pages, metrics and the
// JSON API under /api/v1.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(a.CSRFMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Get("/auth/login", a.Login)
	r.Get(auth.CallbackPath, a.Callback)
	r.Post("/auth/logout", a.Logout)

	if a.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/", a.Home)
	for _, p := range sections {
		r.Get(p.path, a.Page)
		r.Get(p.path+"/*", a.Page)
	}

	r.Mount("/api/v1", a.Router())
	return r
}

// Router returns a chi.Router with the JSON API routes.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(openapiSpec)
	})

	r.Handle("/docs*", openapimw.SwaggerUI(openapimw.SwaggerUIOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/docs",
	}, nil))

	r.Handle("/redoc*", openapimw.Redoc(openapimw.RedocOpts{
		SpecURL: "/api/v1/openapi.yaml",
		Path:    "api/v1/redoc",
	}, nil))

	r.Get("/session", a.GetSession)

	r.Group(func(r chi.Router) {
		r.Use(a.RequireSession)
		r.Get("/me", a.GetMe)
		r.Get("/study/due", a.GetDueCards)
		r.Get("/study/practice", a.GetPracticeCards)
		r.Post("/study/review", a.ReviewCard)
		r.Get("/dashboard/summary", a.GetDashboardSummary)
		r.Get("/topics", a.GetTopics)
	})

	return r
}
