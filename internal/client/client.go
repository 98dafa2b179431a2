// Package client provides the HTTP client used for every backend service call.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"admin-bff/internal/config"
	"admin-bff/internal/metrics"
	"admin-bff/internal/model"
	"admin-bff/internal/tracing"
)

const (
	userAgent = "admin-bff/1.0"

	// maxResponseBytes bounds how much of a backend body is buffered.
	maxResponseBytes = 10 << 20
)

// forwardableResponseHeaders are the backend response headers returned to the browser.
// X-Request-Id is owned by the BFF request and never taken from a backend.
var forwardableResponseHeaders = []string{
	"Location",
	"Retry-After",
	"X-Total-Count",
}

// ErrCircuitOpen is returned without a network call while a service's breaker is open.
var ErrCircuitOpen = errors.New("circuit open")

// ErrResponseTooLarge is returned when a backend body exceeds maxResponseBytes.
var ErrResponseTooLarge = errors.New("upstream response too large")

// UpstreamError reports a backend call that produced no HTTP response.
type UpstreamError struct {
	Service string
	Timeout bool
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("upstream %s: timed out: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("upstream %s: %v", e.Service, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Call describes one backend request.
type Call struct {
	Service string
	Method  string
	BaseURL string
	// Path is the already-expanded upstream path, starting with "/".
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
	// Timeout overrides the configured default when positive.
	Timeout time.Duration
}

// Result is a backend response. Body is always valid JSON or nil.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       json.RawMessage
	// ParseFailed is set when a 2xx body was not JSON and was replaced.
	ParseFailed bool
}

// BackendClient sends requests to backend services.
type BackendClient struct {
	httpClient *http.Client
	timeout    time.Duration
	breakers   *Breakers
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewBackendClient creates a BackendClient with connection pooling and timeouts.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewBackendClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *BackendClient {
	transport := &http.Transport{
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	timeout := cfg.Upstream.Timeout()
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &BackendClient{
		httpClient: &http.Client{
			Transport: transport,
			// Redirects are returned to the caller, never followed.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
		breakers: NewBreakers(
			cfg.Upstream.BreakerFailures,
			time.Duration(cfg.Upstream.BreakerCooldownSeconds)*time.Second,
			m,
		),
		logger:  logger.With("component", "backend_client"),
		metrics: m,
	}
}

// Breakers exposes the per-service circuit breakers.
func (c *BackendClient) Breakers() *Breakers {
	return c.breakers
}

// Do executes exactly one request against a backend. Non-2xx responses are
// not errors: their status and body are returned as-is. The inbound
// request's cancellation does not reach the backend; only call.Timeout does.
func (c *BackendClient) Do(ctx context.Context, call Call) (*Result, error) {
	if !c.breakers.Allow(call.Service) {
		c.recordFailure(call.Service, "circuit_open")
		return nil, &UpstreamError{Service: call.Service, Err: ErrCircuitOpen}
	}

	timeout := call.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	ctx, span := tracing.StartSpan(ctx, call.Service+" "+call.Method, trace.SpanKindClient,
		attribute.String("peer.service", call.Service),
		attribute.String("http.request.method", call.Method),
		attribute.String("url.path", call.Path),
	)
	defer span.End()

	req, err := c.buildRequest(ctx, call)
	if err != nil {
		c.breakers.Record(call.Service, false)
		tracing.SetError(span, err)
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	c.logger.Debug("upstream request",
		"service", call.Service,
		"method", call.Method,
		"path", call.Path,
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	method := metrics.NormalizeMethod(call.Method)
	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(call.Service, method).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		c.breakers.Record(call.Service, false)
		uerr := &UpstreamError{Service: call.Service, Timeout: isTimeout(err), Err: err}
		reason := "transport"
		if uerr.Timeout {
			reason = "timeout"
		}
		c.recordFailure(call.Service, reason)
		tracing.SetError(span, uerr)
		return nil, uerr
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		c.breakers.Record(call.Service, false)
		uerr := &UpstreamError{Service: call.Service, Timeout: isTimeout(err), Err: fmt.Errorf("read body: %w", err)}
		c.recordFailure(call.Service, "transport")
		tracing.SetError(span, uerr)
		return nil, uerr
	}
	if len(raw) > maxResponseBytes {
		c.breakers.Record(call.Service, true)
		c.recordFailure(call.Service, "too_large")
		return nil, &UpstreamError{Service: call.Service, Err: ErrResponseTooLarge}
	}

	c.breakers.Record(call.Service, resp.StatusCode < http.StatusInternalServerError)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(call.Service, method, strconv.Itoa(resp.StatusCode)).Inc()
	}

	result := toResult(resp.StatusCode, raw)
	result.Header = filterResponseHeaders(resp.Header)
	if result.ParseFailed {
		c.logger.Warn("upstream returned non-JSON success body",
			"service", call.Service,
			"path", call.Path,
			"status", resp.StatusCode,
		)
	}
	return result, nil
}

// Ping issues a bare GET to rawURL outside the breaker and returns the status code.
func (c *BackendClient) Ping(ctx context.Context, rawURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("build ping request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *BackendClient) buildRequest(ctx context.Context, call Call) (*http.Request, error) {
	u, err := url.Parse(strings.TrimRight(call.BaseURL, "/") + call.Path)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if len(call.Query) > 0 {
		u.RawQuery = call.Query.Encode()
	}

	var body io.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, u.String(), body)
	if err != nil {
		return nil, err
	}

	if call.Header != nil {
		req.Header = call.Header.Clone()
	}
	if len(call.Body) > 0 && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("User-Agent", userAgent)
	tracing.Inject(ctx, req.Header)
	return req, nil
}

func (c *BackendClient) recordFailure(service, reason string) {
	if c.metrics != nil {
		c.metrics.UpstreamFailures.WithLabelValues(service, reason).Inc()
	}
}

// toResult turns a raw backend body into a Result whose body is JSON.
func toResult(status int, raw []byte) *Result {
	if len(bytes.TrimSpace(raw)) == 0 {
		return &Result{StatusCode: status}
	}
	if json.Valid(raw) {
		return &Result{StatusCode: status, Body: raw}
	}
	if status >= 200 && status < 300 {
		return &Result{
			StatusCode:  http.StatusBadGateway,
			Body:        model.FailureJSON(model.CodeParse, "upstream returned an invalid response"),
			ParseFailed: true,
		}
	}
	return &Result{
		StatusCode: status,
		Body:       model.FailureJSON(model.CodeUpstream, http.StatusText(status)),
	}
}

func filterResponseHeaders(src http.Header) http.Header {
	dst := make(http.Header)
	for _, key := range forwardableResponseHeaders {
		if vals := src.Values(key); len(vals) > 0 {
			dst[http.CanonicalHeaderKey(key)] = append([]string(nil), vals...)
		}
	}
	return dst
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
