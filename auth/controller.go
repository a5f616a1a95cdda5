package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// IdentityProvider is the part of Provider the controller drives.
type IdentityProvider interface {
	BeginLogin(returnTo, currentPath string) (Navigation, error)
	BeginLogout() (Navigation, error)
	CompleteLogin(ctx context.Context, code, state string) (LoginResult, error)
}

var _ IdentityProvider = (*Provider)(nil)

// UnauthorizedSource delivers the process-wide unauthorized signal.
// Subscribe returns a function that cancels the subscription.
type UnauthorizedSource interface {
	Subscribe(fn func()) (unsubscribe func())
}

// Controller owns the AuthState of one application instance. It starts in
// StatusLoading and moves to StatusAuthenticated or StatusUnauthenticated on
// Hydrate. It is safe for concurrent use; when a login completion and an
// unauthorized signal race, the later transition wins.
type Controller struct {
	mu    sync.RWMutex
	state AuthState

	store    *Store
	provider IdentityProvider
	resolver *Resolver
	audit    *auditLogger
	metrics  *Metrics
	alertFn  AlertFunc
	now      func() time.Time
	logger   *slog.Logger

	subMu        sync.Mutex
	unsubscribes []func()
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithResolver sets the resolver used to derive claims.
func WithResolver(r *Resolver) ControllerOption {
	return func(c *Controller) {
		c.resolver = r
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.now = now
	}
}

// WithLogger sets the structured logger for the controller and its audit
// trail.
func WithLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithMetrics records lifecycle events in Prometheus collectors.
func WithMetrics(m *Metrics) ControllerOption {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithAlertFunc sets a callback for anomaly alerts such as a spike in
// failed logins.
func WithAlertFunc(fn AlertFunc) ControllerOption {
	return func(c *Controller) {
		c.alertFn = fn
	}
}

// NewController creates a Controller in StatusLoading.
func NewController(store *Store, provider IdentityProvider, opts ...ControllerOption) *Controller {
	c := &Controller{
		state:    AuthState{Status: StatusLoading},
		store:    store,
		provider: provider,
		resolver: NewResolver(""),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.audit = newAuditLogger(c.logger)
	c.audit.metrics = c.metrics
	c.audit.now = c.now
	if c.alertFn != nil {
		c.audit.alerts = newAlertCollector(c.alertFn)
		c.audit.alerts.now = c.now
	}
	c.logger = c.logger.With("component", "session_controller")
	return c
}

// Observe subscribes the controller to src. Every signal clears the stored
// session and forces StatusUnauthenticated.
func (c *Controller) Observe(src UnauthorizedSource) {
	unsubscribe := src.Subscribe(c.HandleUnauthorized)
	c.subMu.Lock()
	c.unsubscribes = append(c.unsubscribes, unsubscribe)
	c.subMu.Unlock()
}

// Close cancels all subscriptions made with Observe.
func (c *Controller) Close() {
	c.subMu.Lock()
	unsubscribes := c.unsubscribes
	c.unsubscribes = nil
	c.subMu.Unlock()
	for _, unsubscribe := range unsubscribes {
		unsubscribe()
	}
}

// Hydrate derives the state from the stored session. An expired session is
// cleared. Calling it again re-derives the same result.
func (c *Controller) Hydrate(ctx context.Context) AuthState {
	session, ok := c.store.LoadSession()
	switch {
	case !ok:
		c.setState(AuthState{Status: StatusUnauthenticated})
	case !session.ValidAt(c.now()):
		c.mu.Lock()
		c.store.ClearSession()
		c.setStateLocked(AuthState{Status: StatusUnauthenticated})
		c.mu.Unlock()
		c.auditExpired(ctx, session)
	default:
		c.setState(AuthState{Status: StatusAuthenticated, Session: &session})
		c.audit.logSubject(ctx, AuditSessionRestored, c.resolver.Resolve(session).Subject)
	}
	return c.State()
}

// State returns a snapshot of the current state. A session that has passed
// its expiry is cleared from storage first and reported as
// StatusUnauthenticated.
func (c *Controller) State() AuthState {
	c.mu.RLock()
	st := AuthState{Status: c.state.Status}
	if c.state.Session != nil {
		s := *c.state.Session
		st.Session = &s
	}
	c.mu.RUnlock()

	if st.Status == StatusAuthenticated && st.Session != nil && !st.Session.ValidAt(c.now()) {
		c.expire(*st.Session)
		return c.State()
	}
	return st
}

// expire drops session if it is still the current one. Only the caller that
// performs the transition records it.
func (c *Controller) expire(session Session) {
	c.mu.Lock()
	cur := c.state.Session
	if c.state.Status != StatusAuthenticated || cur == nil ||
		cur.AccessToken != session.AccessToken || cur.ExpiresAt != session.ExpiresAt {
		c.mu.Unlock()
		return
	}
	c.store.ClearSession()
	c.setStateLocked(AuthState{Status: StatusUnauthenticated})
	c.mu.Unlock()
	c.auditExpired(context.Background(), session)
}

func (c *Controller) auditExpired(ctx context.Context, session Session) {
	c.audit.log(ctx, AuditSessionExpired,
		slog.String("expired_at", session.Expiry().UTC().Format(time.RFC3339)))
}

// Session returns the current session when authenticated.
func (c *Controller) Session() (Session, bool) {
	st := c.State()
	if st.Status != StatusAuthenticated || st.Session == nil {
		return Session{}, false
	}
	return *st.Session, true
}

// Claims resolves claims from the current session on every call. It returns
// nil unless authenticated.
func (c *Controller) Claims() *Claims {
	session, ok := c.Session()
	if !ok {
		return nil
	}
	claims := c.resolver.Resolve(session)
	return &claims
}

// HasRole reports whether the current principal holds role. It is false
// while loading or unauthenticated.
func (c *Controller) HasRole(role Role) bool {
	return HasRole(c.Claims(), role)
}

// Login starts a new login attempt and returns the authorize redirect. The
// state does not change.
func (c *Controller) Login(ctx context.Context, returnTo, currentPath string) (Navigation, error) {
	nav, err := c.provider.BeginLogin(returnTo, currentPath)
	if err != nil {
		c.audit.logFailure(ctx, AuditLoginFailed, failureReason(err))
		return Navigation{}, err
	}
	c.audit.log(ctx, AuditLoginStarted)
	return nav, nil
}

// CompleteLogin exchanges the callback code, persists the session and moves
// to StatusAuthenticated. It returns the recorded return target. On failure
// the state is left unchanged.
func (c *Controller) CompleteLogin(ctx context.Context, code, state string) (string, error) {
	result, err := c.provider.CompleteLogin(ctx, code, state)
	if err != nil {
		c.audit.logFailure(ctx, AuditLoginFailed, failureReason(err))
		return "", err
	}
	session := result.Session
	c.mu.Lock()
	if err := c.store.SaveSession(session); err != nil {
		c.mu.Unlock()
		c.audit.logFailure(ctx, AuditLoginFailed, "storage")
		return "", fmt.Errorf("persisting session: %w", err)
	}
	c.setStateLocked(AuthState{Status: StatusAuthenticated, Session: &session})
	c.mu.Unlock()
	c.audit.logSubject(ctx, AuditLoginCompleted, c.resolver.Resolve(session).Subject,
		slog.String("return_to", result.ReturnTo))
	return result.ReturnTo, nil
}

// Logout clears the stored session and moves to StatusUnauthenticated, then
// builds the provider logout redirect. The local teardown happens even when
// the redirect cannot be built; in that case the error is returned with an
// empty Navigation.
func (c *Controller) Logout(ctx context.Context) (Navigation, error) {
	subject := ""
	if claims := c.Claims(); claims != nil {
		subject = claims.Subject
	}
	c.mu.Lock()
	c.store.ClearSession()
	c.setStateLocked(AuthState{Status: StatusUnauthenticated})
	c.mu.Unlock()
	c.audit.logSubject(ctx, AuditLogout, subject)

	nav, err := c.provider.BeginLogout()
	if err != nil {
		c.logger.Warn("provider logout redirect unavailable", "error", err)
		return Navigation{}, err
	}
	return nav, nil
}

// HandleUnauthorized clears the stored session and forces
// StatusUnauthenticated from any state.
func (c *Controller) HandleUnauthorized() {
	c.mu.Lock()
	prev := c.state.Status
	c.store.ClearSession()
	c.setStateLocked(AuthState{Status: StatusUnauthenticated})
	c.mu.Unlock()
	c.audit.log(context.Background(), AuditUnauthorized, slog.String("previous_status", prev.String()))
}

func (c *Controller) setState(st AuthState) {
	c.mu.Lock()
	c.setStateLocked(st)
	c.mu.Unlock()
}

// setStateLocked must be called with c.mu held so the status gauge always
// matches the final state.
func (c *Controller) setStateLocked(st AuthState) {
	c.state = st
	c.metrics.setStatus(st.Status)
}

// failureReason maps a login error to a short audit reason.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		return "configuration_missing"
	case errors.Is(err, ErrMissingLoginState):
		return "missing_login_state"
	case errors.Is(err, ErrStateMismatch):
		return "state_mismatch"
	case errors.Is(err, ErrTokenExchangeFailed):
		return "token_exchange_failed"
	default:
		return "internal"
	}
}
