package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/minime/inspirations/internal/metrics"
)

// Default API endpoints.
const (
	DefaultBaseURL   = "https://generativelanguage.googleapis.com/v1beta"
	DefaultUploadURL = "https://generativelanguage.googleapis.com/upload/v1beta/files"
)

// Client talks to the Gemini REST API.
type Client struct {
	apiKey     string
	baseURL    string
	uploadURL  string
	httpClient *http.Client
	collector  *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root (tests point this at a local server).
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(url, "/") }
}

// WithUploadURL overrides the resumable-upload root.
func WithUploadURL(url string) Option {
	return func(c *Client) { c.uploadURL = strings.TrimSuffix(url, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCollector records per-operation timing and token usage.
func WithCollector(col *metrics.Collector) Option {
	return func(c *Client) { c.collector = col }
}

// NewClient creates a Gemini API client. Per-call deadlines come from the
// caller's context; the underlying client carries no timeout of its own.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		baseURL:    DefaultBaseURL,
		uploadURL:  DefaultUploadURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) record(op string, start time.Time) {
	if c.collector != nil {
		c.collector.RecordTiming(op, time.Since(start))
	}
}

func (c *Client) recordUsage(op string, start time.Time, in, out int64) {
	if c.collector != nil {
		c.collector.RecordUsage(op, time.Since(start), in, out)
	}
}

// HTTPError is a non-2xx response from the remote API. Its message starts
// with "Gemini HTTP" so stored error rows classify as remote HTTP failures.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("Gemini HTTP %d: %s", e.StatusCode, e.Body)
}

// retryableBadRequest reports whether the error is the API rejecting a
// request field that newer revisions accept; callers fall back to an older
// request shape.
func retryableBadRequest(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "Unknown name") || strings.Contains(msg, "Invalid JSON payload")
}

// doJSON performs one JSON request and decodes the body into out (out may
// be nil). Returns the response headers for callers that need them.
func (c *Client) doJSON(ctx context.Context, method, url string, payload, out any, headers map[string]string) (http.Header, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.Header, &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.Header, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.Header, nil
}

// downloadTo streams a GET response body to w.
func (c *Client) downloadTo(ctx context.Context, url string, withKey bool, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if withKey {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &HTTPError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("stream download: %w", err)
	}
	return nil
}
