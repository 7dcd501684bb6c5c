package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/educonnect/educonnect-client/internal/session"
	"github.com/educonnect/educonnect-client/pkg/httpclient"
	"github.com/educonnect/educonnect-client/pkg/logger"
	"github.com/educonnect/educonnect-client/pkg/metrics"
	"github.com/educonnect/educonnect-client/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// maxAuthRetries bounds the refresh-and-retry path: one retry per logical
// call, which caps the damage of a fully expired or invalid session.
const maxAuthRetries = 1

const refreshPath = "/auth/refresh"

// Client executes authenticated calls against the EduConnect API. It owns
// credential attachment and 401 recovery; everything else about a response
// is the caller's problem.
type Client struct {
	baseURL string
	http    httpclient.Client
	store   session.Store
	limiter *rate.Limiter
	refresh singleflight.Group
}

// Option configures optional client behavior.
type Option func(*Client)

// WithRateLimit throttles outgoing requests to rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// NewClient builds a request client over the given HTTP transport and
// session store.
func NewClient(baseURL string, httpClient httpclient.Client, store session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    httpClient,
		store:   store,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues an authenticated GET and decodes the envelope for T.
func Get[T any](ctx context.Context, c *Client, path string, extraHeaders map[string]string) (Envelope[T], error) {
	return do[T](ctx, c, requestSpec{
		method:  http.MethodGet,
		path:    path,
		headers: extraHeaders,
	})
}

// Post issues an authenticated POST with a JSON body and decodes the
// envelope for T.
func Post[T any](ctx context.Context, c *Client, path string, body any, extraHeaders map[string]string) (Envelope[T], error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			var zero Envelope[T]
			return zero, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	return do[T](ctx, c, requestSpec{
		method:  http.MethodPost,
		path:    path,
		headers: extraHeaders,
		makeBody: func() (io.Reader, string) {
			if payload == nil {
				return nil, ""
			}
			return bytes.NewReader(payload), ""
		},
	})
}

// Logout best-effort notifies the API and unconditionally drops the local
// session.
func (c *Client) Logout(ctx context.Context) error {
	if _, err := Post[struct{}](ctx, c, "/auth/logout", nil, nil); err != nil {
		logger.Warn("Logout call failed, clearing local session anyway", zap.Error(err))
	}
	return c.store.Clear()
}

// requestSpec describes one logical request. makeBody is re-invoked for the
// retried attempt so the body reader is always fresh; it may return a
// content type that replaces the JSON default (multipart uploads do).
type requestSpec struct {
	method   string
	path     string
	headers  map[string]string
	makeBody func() (io.Reader, string)
}

// do runs the logical call: attach credentials, send, and on a 401 refresh
// the token and re-issue the request exactly once. An explicit attempt
// counter keeps the bound obvious.
func do[T any](ctx context.Context, c *Client, spec requestSpec) (Envelope[T], error) {
	ctx, span := tracing.StartSpan(ctx, fmt.Sprintf("api.%s %s", spec.method, spec.path))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", spec.method),
		attribute.String("url.path", spec.path),
	)

	var env Envelope[T]
	for attempt := 0; ; attempt++ {
		var err error
		var status int

		env, status, err = send[T](ctx, c, spec)
		if err != nil {
			return env, err
		}

		if status != http.StatusUnauthorized || attempt >= maxAuthRetries {
			return env, nil
		}

		if refreshErr := c.RefreshAccessToken(ctx); refreshErr != nil {
			// Recovery failed: surface the original envelope unchanged.
			logger.Debug("Token refresh failed, returning original response",
				zap.String("path", spec.path),
				zap.Error(refreshErr))
			return env, nil
		}

		metrics.APIRequestRetries.WithLabelValues(spec.path).Inc()
	}
}

// send performs a single network attempt and decodes the envelope from the
// body regardless of HTTP status.
func send[T any](ctx context.Context, c *Client, spec requestSpec) (Envelope[T], int, error) {
	var env Envelope[T]

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return env, 0, err
		}
	}

	var body io.Reader
	var contentType string
	if spec.makeBody != nil {
		body, contentType = spec.makeBody()
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, c.baseURL+spec.path, body)
	if err != nil {
		return env, 0, fmt.Errorf("failed to build request: %w", err)
	}

	// Header precedence: content-type default, then derived auth, then
	// caller-supplied headers. Callers win so admin/impersonation flows can
	// override Authorization explicitly.
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	} else {
		req.Header.Set("Content-Type", "application/json")
	}
	if rec := c.store.Get(); rec != nil && rec.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+rec.AccessToken)
	}
	for k, v := range spec.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		duration := metrics.MeasureDuration(start)
		metrics.APIRequestTotal.WithLabelValues(spec.method, spec.path, "error").Inc()
		logger.LogAPICall("request", spec.method, spec.path, "error", duration, zap.Error(err))
		return env, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return env, 0, fmt.Errorf("failed to read response body: %w", err)
	}

	duration := metrics.MeasureDuration(start)
	statusLabel := fmt.Sprintf("%d", resp.StatusCode)
	metrics.APIRequestDuration.WithLabelValues(spec.method, spec.path, statusLabel).Observe(duration)
	metrics.APIRequestTotal.WithLabelValues(spec.method, spec.path, statusLabel).Inc()
	logger.LogAPICall("request", spec.method, spec.path, statusLabel, duration)

	// The API returns a structured envelope on every status, including
	// errors; a body that fails to decode is a protocol violation.
	if err := json.Unmarshal(raw, &env); err != nil {
		return env, 0, fmt.Errorf("failed to decode response envelope: %w", err)
	}

	return env, resp.StatusCode, nil
}
