package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the session lifecycle.
type Metrics struct {
	eventsTotal   *prometheus.CounterVec
	authenticated prometheus.Gauge
}

// NewMetrics registers the session collectors with reg. A nil reg uses
// prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "studydeck",
			Subsystem: "auth",
			Name:      "events_total",
			Help:      "Session lifecycle events by type",
		}, []string{"event"}),
		authenticated: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "studydeck",
			Subsystem: "auth",
			Name:      "authenticated",
			Help:      "1 while a session is active, 0 otherwise",
		}),
	}
}

func (m *Metrics) recordEvent(event AuditEvent) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(event)).Inc()
}

func (m *Metrics) setStatus(status Status) {
	if m == nil {
		return
	}
	if status == StatusAuthenticated {
		m.authenticated.Set(1)
	} else {
		m.authenticated.Set(0)
	}
}
