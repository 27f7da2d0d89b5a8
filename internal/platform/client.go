// Package platform is the HTTP client for the AgriConnect REST backend.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"

	agerrors "github.com/felixgeelhaar/agriconnect/internal/errors"
	"github.com/felixgeelhaar/agriconnect/internal/telemetry"
)

// DefaultBaseURL is where the development backend listens.
const DefaultBaseURL = "http://localhost:5000/api"

// Observer receives one call per completed HTTP exchange.
// status is 0 when the request failed before a response arrived.
type Observer interface {
	ObserveRequest(method, path string, status int, elapsed time.Duration)
}

// Client is the AgriConnect backend API client
type Client struct {
	BaseURL    string
	HTTPClient *http.Client

	tokens    TokenSource
	observer  Observer
	requestID func() string
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource sets where the bearer token is read from before each request.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.HTTPClient = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.HTTPClient.Timeout = d
		}
	}
}

// WithObserver reports request outcomes, typically to metrics.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a new API client. Without WithTokenSource requests are anonymous.
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens:    NoToken,
		requestID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// doRequest performs a JSON request authenticated with the bound token.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	return c.doRequestAs(ctx, c.tokens, method, path, body)
}

// doRequestAs performs a JSON request authenticated by ts instead of the
// client's token source.
func (c *Client) doRequestAs(ctx context.Context, ts TokenSource, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, agerrors.Wrap(agerrors.ErrCodeAPIRequest, "failed to marshal request body", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}
	return c.send(ctx, ts, method, path, "application/json", reqBody)
}

// doForm performs a form-encoded request with authentication
func (c *Client) doForm(ctx context.Context, method, path string, form url.Values) (*http.Response, error) {
	return c.send(ctx, c.tokens, method, path, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
}

func (c *Client) send(ctx context.Context, ts TokenSource, method, path, contentType string, body io.Reader) (*http.Response, error) {
	ctx, span := telemetry.StartAPISpan(ctx, method, path)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, agerrors.Wrap(agerrors.ErrCodeAPIRequest, "failed to create request", err)
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", c.requestID())
	if token := ts.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	start := time.Now()
	resp, err := c.HTTPClient.Do(req)
	if c.observer != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		c.observer.ObserveRequest(method, path, status, time.Since(start))
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, agerrors.NewAPIUnreachableError(c.BaseURL, err)
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	return resp, nil
}

// ErrorResponse represents an API error response. Route handlers answer
// with error or message; the JWT layer rejects tokens with msg.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Msg     string `json:"msg"`
}

// APIError is a non-2xx response from the backend.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// parseResponse parses the response body into the target struct
func parseResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return agerrors.Wrap(agerrors.ErrCodeAPIDecode, "failed to decode response", err)
		}
	}

	return nil
}

func errorMessage(status int, body []byte) string {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Error != "" {
			return errResp.Error
		}
		if errResp.Message != "" {
			return errResp.Message
		}
		if errResp.Msg != "" {
			return errResp.Msg
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("request failed with status %d", status)
}
