package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmcleod/studydeck/internal/uuid"
)

// AuditEvent identifies the type of session lifecycle action being logged.
type AuditEvent string

const (
	AuditLoginStarted    AuditEvent = "login_started"
	AuditLoginCompleted  AuditEvent = "login_completed"
	AuditLoginFailed     AuditEvent = "login_failed"
	AuditLogout          AuditEvent = "logout"
	AuditUnauthorized    AuditEvent = "unauthorized"
	AuditSessionExpired  AuditEvent = "session_expired"
	AuditSessionRestored AuditEvent = "session_restored"
)

// auditLogger wraps slog.Logger for structured session audit logging.
// Token values never reach it; events carry the subject at most.
type auditLogger struct {
	logger  *slog.Logger
	alerts  *alertCollector
	metrics *Metrics
	now     func() time.Time
}

func newAuditLogger(logger *slog.Logger) *auditLogger {
	return &auditLogger{
		logger: logger.With("component", "audit"),
		now:    time.Now,
	}
}

// log writes a structured audit log entry and feeds the counters.
func (al *auditLogger) log(ctx context.Context, event AuditEvent, attrs ...slog.Attr) {
	baseAttrs := []slog.Attr{
		slog.String("event", string(event)),
		slog.String("event_id", uuid.New()),
		slog.String("timestamp", al.now().UTC().Format(time.RFC3339)),
	}
	baseAttrs = append(baseAttrs, attrs...)

	al.logger.LogAttrs(ctx, slog.LevelInfo, "audit", baseAttrs...)
	al.alerts.recordEvent(event)
	al.metrics.recordEvent(event)
}

// logSubject is a convenience for events tied to a known user.
func (al *auditLogger) logSubject(ctx context.Context, event AuditEvent, subject string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("subject", subject),
	}
	attrs = append(attrs, extra...)
	al.log(ctx, event, attrs...)
}

// logFailure logs a failed step of the login flow.
func (al *auditLogger) logFailure(ctx context.Context, event AuditEvent, reason string, extra ...slog.Attr) {
	attrs := []slog.Attr{
		slog.String("reason", reason),
	}
	attrs = append(attrs, extra...)
	al.log(ctx, event, attrs...)
}
