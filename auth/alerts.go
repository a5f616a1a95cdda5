package auth

import (
	"sync"
	"time"
)

// AlertType identifies the kind of anomaly detected.
type AlertType string

const (
	AlertLoginFailureSpike AlertType = "login_failure_spike"
	AlertUnauthorizedSpike AlertType = "unauthorized_spike"
)

// AlertEvent describes an anomaly that triggered an alert.
type AlertEvent struct {
	Type      AlertType `json:"type"`
	Message   string    `json:"message"`
	Count     int       `json:"count"`
	Threshold int       `json:"threshold"`
	Timestamp time.Time `json:"timestamp"`
}

// AlertFunc is the callback invoked when an anomaly is detected.
type AlertFunc func(AlertEvent)

// alertCollector tracks sliding window counters for anomaly detection.
type alertCollector struct {
	mu  sync.Mutex
	now func() time.Time

	// Sliding window for failed logins.
	loginFailures  []time.Time
	loginWindow    time.Duration
	loginThreshold int

	// Sliding window for backend 401 responses.
	unauthorized          []time.Time
	unauthorizedWindow    time.Duration
	unauthorizedThreshold int

	alertFn AlertFunc
}

const (
	defaultLoginFailureWindow    = 1 * time.Minute
	defaultLoginFailureThreshold = 5
	defaultUnauthorizedWindow    = 1 * time.Minute
	defaultUnauthorizedThreshold = 10
)

func newAlertCollector(alertFn AlertFunc) *alertCollector {
	return &alertCollector{
		now:                   time.Now,
		loginWindow:           defaultLoginFailureWindow,
		loginThreshold:        defaultLoginFailureThreshold,
		unauthorizedWindow:    defaultUnauthorizedWindow,
		unauthorizedThreshold: defaultUnauthorizedThreshold,
		alertFn:               alertFn,
	}
}

// recordEvent inspects an audit event and updates the relevant counters.
func (m *alertCollector) recordEvent(event AuditEvent) {
	if m == nil || m.alertFn == nil {
		return
	}
	switch event {
	case AuditLoginFailed:
		m.record(&m.loginFailures, m.loginWindow, m.loginThreshold,
			AlertLoginFailureSpike, "login failure rate exceeds threshold")
	case AuditUnauthorized:
		m.record(&m.unauthorized, m.unauthorizedWindow, m.unauthorizedThreshold,
			AlertUnauthorizedSpike, "unauthorized response rate exceeds threshold")
	}
}

func (m *alertCollector) record(times *[]time.Time, window time.Duration, threshold int, typ AlertType, msg string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	*times = append(*times, now)
	*times = trimWindow(*times, now, window)

	if len(*times) >= threshold {
		m.alertFn(AlertEvent{
			Type:      typ,
			Message:   msg,
			Count:     len(*times),
			Threshold: threshold,
			Timestamp: now,
		})
		// Reset to avoid repeated alerts within the same spike.
		*times = (*times)[:0]
	}
}

// trimWindow removes entries older than (now - window) from the sorted slice.
func trimWindow(times []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	start := 0
	for start < len(times) && times[start].Before(cutoff) {
		start++
	}
	return times[start:]
}
