package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/jmcleod/studydeck/auth"
)

// alertQueueSize is the bounded channel capacity for outbound alerts.
const alertQueueSize = 256

// alertPayload is the JSON body POSTed to the webhook.
type alertPayload struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Count     int    `json:"count"`
	Threshold int    `json:"threshold"`
	Timestamp string `json:"timestamp"`
}

// AlertWebhook delivers session anomaly alerts to an external HTTP endpoint.
// Alerts are queued without blocking and sent by a background goroutine;
// when the queue is full they are dropped.
type AlertWebhook struct {
	url        string
	authHeader string // "Header: Value", e.g. "Authorization: Bearer xxx"
	client     *http.Client
	logger     *slog.Logger
	retryDelay time.Duration
	events     chan alertPayload
	wg         sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewAlertWebhook creates a dispatcher and starts its background loop.
func NewAlertWebhook(url, authHeader string, logger *slog.Logger) *AlertWebhook {
	if logger == nil {
		logger = slog.Default()
	}
	w := &AlertWebhook{
		url:        url,
		authHeader: authHeader,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger.With("component", "alert_webhook"),
		retryDelay: time.Second,
		events:     make(chan alertPayload, alertQueueSize),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

// Notify queues e for delivery. It never blocks and can be passed to
// auth.WithAlertFunc. Alerts raised after Close are dropped.
func (w *AlertWebhook) Notify(e auth.AlertEvent) {
	evt := alertPayload{
		Type:      string(e.Type),
		Message:   e.Message,
		Count:     e.Count,
		Threshold: e.Threshold,
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		w.logger.Warn("dispatcher closed, dropping alert", "type", evt.Type)
		return
	}
	select {
	case w.events <- evt:
	default:
		w.logger.Warn("queue full, dropping alert", "type", evt.Type)
	}
}

// Close stops the dispatcher after draining queued alerts. It is safe to
// call more than once.
func (w *AlertWebhook) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.events)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

func (w *AlertWebhook) loop() {
	defer w.wg.Done()
	for evt := range w.events {
		w.send(evt)
	}
}

// send POSTs the alert with one retry on 5xx or transport errors.
func (w *AlertWebhook) send(evt alertPayload) {
	body, err := json.Marshal(evt)
	if err != nil {
		w.logger.Warn("marshal failed", "error", err)
		return
	}

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			time.Sleep(w.retryDelay)
		}

		req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			w.logger.Warn("request creation failed", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "StudyDeck-Alert-Webhook/1.0")
		if w.authHeader != "" {
			if name, value, ok := strings.Cut(w.authHeader, ":"); ok {
				req.Header.Set(strings.TrimSpace(name), strings.TrimSpace(value))
			}
		}

		resp, err := w.client.Do(req)
		if err != nil {
			w.logger.Warn("request failed", "error", err, "attempt", attempt+1)
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return
		case resp.StatusCode >= 500:
			w.logger.Warn("server error", "status", resp.StatusCode, "attempt", attempt+1)
			continue
		default:
			w.logger.Warn("client error", "status", resp.StatusCode)
			return
		}
	}
}
