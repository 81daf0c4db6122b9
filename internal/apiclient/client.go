// Package apiclient talks to the ITP backend REST API.
//
// Every call carries Accept: application/json, Accept-Language and, for
// authenticated calls, a bearer token taken from the browser session. Staff
// calls that fail with 401 trigger one token refresh shared by all
// concurrent callers of the same session, then replay once. Customer calls
// never refresh: a 401 clears the customer session.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/JonMunkholm/itp-portal/internal/config"
	"github.com/JonMunkholm/itp-portal/internal/logging"
	"github.com/JonMunkholm/itp-portal/internal/metrics"
)

// maxBodyBytes caps how much of a backend response is read.
const maxBodyBytes = 8 << 20

// Client is safe for concurrent use.
type Client struct {
	base     string
	language string
	http     *http.Client
	metrics  *metrics.Metrics
	now      func() time.Time

	// refreshes deduplicates staff token refreshes per session id.
	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records per-call metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock overrides time.Now, used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the backend described by cfg.
func New(cfg config.APIConfig, opts ...Option) *Client {
	return NewWithBaseURL(cfg.BaseURL(), cfg.Language, append([]Option{
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}, opts...)...)
}

// NewWithBaseURL creates a client for an explicit base URL.
func NewWithBaseURL(base, language string, opts ...Option) *Client {
	if language == "" {
		language = "ro"
	}
	c := &Client{
		base:     strings.TrimSuffix(base, "/"),
		language: language,
		http:     &http.Client{Timeout: 15 * time.Second},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.base
}

// Caller performs one JSON call. StaffAPI and CustomerAPI implement it, as
// does the anonymous Public caller.
type Caller interface {
	Call(ctx context.Context, method, path string, query url.Values, body, out any) error
}

// response is a fully read backend response.
type response struct {
	status int
	body   []byte
}

// send performs a single HTTP round trip. Non-2xx statuses are not errors
// at this level.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any, token string) (response, error) {
	u := c.base + "/" + strings.TrimPrefix(path, "/")
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return response{}, fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", c.language)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	endpoint := endpointLabel(path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(endpoint, method, "error", time.Since(start))
		return response{}, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	elapsed := time.Since(start)
	c.observe(endpoint, method, strconv.Itoa(resp.StatusCode), elapsed)
	if err != nil {
		return response{}, fmt.Errorf("read %s %s: %w", method, path, err)
	}

	logging.FromContext(ctx).Debug("backend call",
		"method", method,
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"duration_ms", elapsed.Milliseconds(),
	)
	return response{status: resp.StatusCode, body: data}, nil
}

func (c *Client) observe(endpoint, method, status string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveBackend(endpoint, method, status, d)
	}
}

// decode maps a response onto out or an *APIError.
func decode(path string, r response, out any) error {
	if r.status < 200 || r.status > 299 {
		return parseAPIError(endpointLabel(path), r.status, r.body)
	}
	if out == nil || len(bytes.TrimSpace(r.body)) == 0 || r.status == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(unwrapData(r.body), out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// unwrapData strips a {"data": ...} envelope from single-object responses.
// List envelopes are left alone; decodePage handles them.
func unwrapData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return body
	}
	data, ok := env["data"]
	if !ok {
		return body
	}
	if _, hasMeta := env["meta"]; hasMeta {
		return body
	}
	return data
}

var idSegment = regexp.MustCompile(`^([0-9]+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)

// endpointLabel collapses ids so metric cardinality stays bounded.
func endpointLabel(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if idSegment.MatchString(p) {
			parts[i] = ":id"
		}
	}
	return "/" + strings.Join(parts, "/")
}

// Public is the unauthenticated caller, used for login and OTP.
type Public struct {
	c *Client
}

// Public returns the anonymous caller.
func (c *Client) Public() Public {
	return Public{c: c}
}

func (p Public) Call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	r, err := p.c.send(ctx, method, path, query, body, "")
	if err != nil {
		return err
	}
	return decode(path, r, out)
}
