// Package apiclient is the authenticated gateway to the study backend. Every
// request carries the stored bearer credential, and a 401 response clears the
// stored session and publishes an unauthorized signal.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is used when no backend URL is configured.
const DefaultBaseURL = "http://localhost:8000"

const maxErrorBody = 64 << 10

// Client calls the study backend through a Transport.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	base    http.RoundTripper
	timeout time.Duration
	logger  *slog.Logger
}

// WithBaseTransport sets the transport wrapped by the gateway.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(c *clientConfig) {
		c.base = rt
	}
}

// WithTimeout bounds each request. Zero means no timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = logger
	}
}

// New creates a Client for baseURL. tokens supplies the bearer credential and
// unauthorized, if non-nil, is published on every 401.
func New(baseURL string, tokens TokenSource, unauthorized *Signal, opts ...Option) *Client {
	cfg := clientConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logger := cfg.logger.With("component", "api_client")
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.timeout,
			Transport: &Transport{
				Base:         cfg.base,
				Tokens:       tokens,
				Unauthorized: unauthorized,
				Logger:       cfg.logger,
			},
		},
		logger: logger,
	}
}

// GetMe returns the account summary of the current user.
func (c *Client) GetMe(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.do(ctx, http.MethodGet, "/me", nil, nil, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// GetDueCards returns cards due for review, optionally filtered by topic.
func (c *Client) GetDueCards(ctx context.Context, topic string) ([]StudyCard, error) {
	var cards []StudyCard
	if err := c.do(ctx, http.MethodGet, "/study/due", topicQuery(topic), nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// GetPracticeCards returns the practice queue: due cards first, then
// scheduled ones.
func (c *Client) GetPracticeCards(ctx context.Context, topic string) ([]StudyCard, error) {
	var cards []StudyCard
	if err := c.do(ctx, http.MethodGet, "/study/practice", topicQuery(topic), nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// ReviewCard records a review grade and returns the rescheduled card.
func (c *Client) ReviewCard(ctx context.Context, cardID string, rating Rating) (*StudyCard, error) {
	if !rating.Valid() {
		return nil, ErrInvalidRating
	}
	var card StudyCard
	body := ReviewRequest{CardID: cardID, Rating: rating}
	if err := c.do(ctx, http.MethodPost, "/study/review", nil, body, &card); err != nil {
		return nil, err
	}
	return &card, nil
}

// GetDashboardSummary returns aggregate study progress.
func (c *Client) GetDashboardSummary(ctx context.Context) (*DashboardSummary, error) {
	var summary DashboardSummary
	if err := c.do(ctx, http.MethodGet, "/dashboard/summary", nil, nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

// GetTopics lists the study topics.
func (c *Client) GetTopics(ctx context.Context) ([]Topic, error) {
	var topics []Topic
	if err := c.do(ctx, http.MethodGet, "/topics", nil, nil, &topics); err != nil {
		return nil, err
	}
	return topics, nil
}

func topicQuery(topic string) url.Values {
	if topic == "" {
		return nil
	}
	return url.Values{"topic": {topic}}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Detail: readDetail(resp.Body)}
		c.logger.Debug("backend returned error", "method", method, "path", path, "status", resp.StatusCode)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// readDetail extracts a string "detail" field from an error body.
func readDetail(r io.Reader) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.NewDecoder(io.LimitReader(r, maxErrorBody)).Decode(&payload); err != nil {
		return ""
	}
	var detail string
	if err := json.Unmarshal(payload.Detail, &detail); err != nil {
		return ""
	}
	return detail
}
