// Package reporting fetches reports from the Google Analytics Core Reporting
// API (v3) and hands them back decoded and validated.
package reporting

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"

	"gadevtools/internal/report"
	"gadevtools/pkg/contracts"
	"gadevtools/pkg/contracts/domain"
)

// DefaultEndpoint is the Core Reporting API data endpoint.
const DefaultEndpoint = "https://www.googleapis.com/analytics/v3/data/ga"

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// UpstreamError is returned when the API answers with a non-2xx status.
type UpstreamError struct {
	StatusCode int
	Message    string
	Reason     string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("core reporting api returned %d", e.StatusCode)
	}
	return fmt.Sprintf("core reporting api returned %d: %s", e.StatusCode, e.Message)
}

// ClientFactory builds an HTTP client authorized by ts.
type ClientFactory func(ctx context.Context, ts oauth2.TokenSource) (*http.Client, error)

// Client queries the Core Reporting API.
type Client struct {
	endpoint  string
	newClient ClientFactory
	timeout   time.Duration
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithEndpoint overrides the API endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

// WithTimeout bounds each fetch.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithClientFactory replaces the authorized HTTP client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(c *Client) {
		c.newClient = f
	}
}

// NewClient creates a Core Reporting API client.
func NewClient(logger *slog.Logger, opts ...Option) *Client {
	c := &Client{
		endpoint:  DefaultEndpoint,
		newClient: GoogleClientFactory,
		timeout:   30 * time.Second,
		logger:    logger.With(slog.String("component", "reporting_client")),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GoogleClientFactory builds the client through the Google API transport,
// which adds the bearer token and the library's user agent.
func GoogleClientFactory(ctx context.Context, ts oauth2.TokenSource) (*http.Client, error) {
	client, _, err := htransport.NewClient(ctx,
		option.WithTokenSource(ts),
		option.WithUserAgent("gadevtools/"+contracts.Version),
	)
	if err != nil {
		return nil, fmt.Errorf("creating api client: %w", err)
	}
	return client, nil
}

// Fetch runs query against the API with the tokens from ts and returns the
// validated report.
func (c *Client) Fetch(ctx context.Context, query url.Values, ts oauth2.TokenSource) (*domain.AnalyticsReport, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	client, err := c.newClient(ctx, ts)
	if err != nil {
		return nil, err
	}

	target := c.endpoint
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "core reporting request failed",
			slog.String("error", err.Error()),
			slog.String("ids", query.Get("ids")),
		)
		return nil, fmt.Errorf("querying core reporting api: %w", err)
	}
	defer resp.Body.Close()

	c.logger.DebugContext(ctx, "core reporting response",
		slog.Int("status", resp.StatusCode),
		slog.String("ids", query.Get("ids")),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, upstreamError(resp)
	}

	rep, err := report.Parse(resp.Body)
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// apiError is the JSON error envelope of Google APIs.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason  string `json:"reason"`
			Message string `json:"message"`
		} `json:"errors"`
	} `json:"error"`
}

func upstreamError(resp *http.Response) *UpstreamError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	upErr := &UpstreamError{StatusCode: resp.StatusCode}
	var envelope apiError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		upErr.Message = envelope.Error.Message
		if len(envelope.Error.Errors) > 0 {
			upErr.Reason = envelope.Error.Errors[0].Reason
		}
		return upErr
	}
	upErr.Message = strings.TrimSpace(string(body))
	return upErr
}
