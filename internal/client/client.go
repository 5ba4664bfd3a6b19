// Package client talks to the resume analysis and report service.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"rjdctl/internal/config"
	rjdctlErrors "rjdctl/internal/errors"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const (
	opAnalyze  = "analyze"
	opReport   = "report"
	opUpload   = "upload_resume"
	opSkills   = "extract_skills"
	opParseJD  = "parse_job_description"
	opDownload = "download"

	maxResponseSize = 32 << 20
	maxBodyExcerpt  = 512

	defaultUserAgent = "rjdctl"
)

// response is a fully read service reply
type response struct {
	status int
	header http.Header
	body   []byte
}

// Client implements Service over HTTP
type Client struct {
	baseURL    string
	origin     string
	apiKey     string
	keyHosts   map[string]bool
	userAgent  string
	maxRetries int
	timeouts   map[string]time.Duration

	httpClient *http.Client
	limiter    *rate.Limiter
	breakers   map[string]*Breaker
	tracer     trace.Tracer
	recorder   Recorder
	logger     *rjdctlErrors.Logger
}

// Option customizes a Client
type Option func(*Client)

// WithHTTPClient replaces the instrumented default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRecorder sends request measurements to r
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithTracer overrides the global tracer
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// New creates a client for the configured service
func New(cfg config.ServiceConfig, logger *rjdctlErrors.Logger, opts ...Option) (*Client, error) {
	// the API key is only sent to the hosts the service is configured on
	keyHosts := map[string]bool{}
	for _, raw := range []string{cfg.BaseURL, cfg.Origin} {
		u, err := url.Parse(raw)
		if err != nil || !u.IsAbs() {
			return nil, rjdctlErrors.NewConfigError(rjdctlErrors.ErrCodeInvalidConfig,
				fmt.Sprintf("service URL %q must be absolute", raw), err)
		}
		keyHosts[strings.ToLower(u.Host)] = true
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		origin:     strings.TrimRight(cfg.Origin, "/"),
		apiKey:     cfg.APIKey,
		keyHosts:   keyHosts,
		userAgent:  userAgent,
		maxRetries: cfg.MaxRetries,
		timeouts: map[string]time.Duration{
			opAnalyze:  cfg.AnalyzeTimeout,
			opReport:   cfg.ReportTimeout,
			opUpload:   cfg.AnalyzeTimeout,
			opSkills:   cfg.AnalyzeTimeout,
			opParseJD:  cfg.AnalyzeTimeout,
			opDownload: cfg.DownloadTimeout,
		},
		httpClient: &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		breakers:   map[string]*Breaker{},
		tracer:     otel.Tracer("rjdctl.client"),
		recorder:   nopRecorder{},
		logger:     logger,
	}

	for _, op := range []string{opAnalyze, opReport, opUpload, opSkills, opParseJD} {
		c.breakers[op] = NewBreaker(op, cfg.CircuitBreaker, logger)
	}

	if cfg.RateLimit.Enabled && cfg.RateLimit.RequestsPerMin > 0 {
		burst := max(cfg.RateLimit.BurstCapacity, 1)
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimit.RequestsPerMin)/60.0), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Origin returns the origin report locators are resolved against
func (c *Client) Origin() string {
	return c.origin
}

// Stats reports breaker state per operation
func (c *Client) Stats() map[string]any {
	stats := make(map[string]any, len(c.breakers))
	for op, b := range c.breakers {
		stats[op] = b.Stats()
	}
	return stats
}

func (c *Client) endpoint(path string) string {
	return c.baseURL + path
}

// withTimeout bounds ctx by the per-operation timeout
func (c *Client) withTimeout(ctx context.Context, op string) (context.Context, context.CancelFunc) {
	if d := c.timeouts[op]; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

// requestBuilder creates a fresh request for every attempt
type requestBuilder func(ctx context.Context) (*http.Request, error)

func newRequest(method, target, contentType string, body []byte) requestBuilder {
	return func(ctx context.Context) (*http.Request, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, rjdctlErrors.NewInternalError(rjdctlErrors.ErrCodeInvalidRequest,
				fmt.Sprintf("cannot build request for %s", target), err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		return req, nil
	}
}

// do sends one logical request through the limiter, breaker and retry loop
func (c *Client) do(ctx context.Context, op string, build requestBuilder) (*response, error) {
	requestID := uuid.NewString()
	ctx, span := c.tracer.Start(ctx, "service."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("service.operation", op),
		attribute.String("request.id", requestID),
	)

	start := time.Now()
	c.logger.Debug("Service request started", "operation", op, "request_id", requestID)

	send := func() (*response, error) {
		return c.executeWithRetry(ctx, op, func() (*response, error) {
			req, err := build(ctx)
			if err != nil {
				return nil, err
			}
			c.setHeaders(req, requestID)
			return c.send(req)
		})
	}

	var resp *response
	err := c.wait(ctx)
	if err == nil {
		resp, err = c.breakers[op].Execute(send)
	}

	err = classify(op, err)
	duration := time.Since(start)
	c.recorder.RecordRequest(ctx, op, duration, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.LogError(err, "Service request failed",
			"operation", op,
			"request_id", requestID,
			"duration", duration.String())
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.status))
	c.logger.Info("Service request finished",
		"operation", op,
		"request_id", requestID,
		"status", resp.status,
		"duration", duration.String())
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request, requestID string) {
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}
	req.Header.Set("X-Request-ID", requestID)
	if c.apiKey != "" && c.keyHosts[strings.ToLower(req.URL.Host)] {
		req.Header.Set("X-API-Key", c.apiKey)
	}
}

func (c *Client) send(req *http.Request) (*response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &statusError{status: resp.StatusCode, body: body}
	}
	return &response{status: resp.StatusCode, header: resp.Header, body: body}, nil
}

// wait blocks until the client-side rate limiter admits a request
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}

	r := c.limiter.Reserve()
	if !r.OK() {
		return rjdctlErrors.NewServiceError(rjdctlErrors.ErrCodeRateLimited,
			"request exceeds the client rate limit burst", nil)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	c.recorder.RecordRateLimitHit(ctx, "client")
	c.logger.Debug("Waiting for client rate limiter", "delay", delay.String())

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// classify maps transport, breaker and status failures onto AppErrors
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := rjdctlErrors.As(err); ok {
		return err
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return rjdctlErrors.NewServiceError(rjdctlErrors.ErrCodeCircuitOpen,
			fmt.Sprintf("%s is temporarily disabled after repeated failures", op), err)
	case errors.Is(err, context.DeadlineExceeded):
		return rjdctlErrors.NewNetworkError(rjdctlErrors.ErrCodeNetworkTimeout,
			fmt.Sprintf("%s timed out", op), err)
	case errors.Is(err, context.Canceled):
		return rjdctlErrors.NewNetworkError(rjdctlErrors.ErrCodeRequestCanceled,
			fmt.Sprintf("%s was canceled", op), err)
	}

	var se *statusError
	if errors.As(err, &se) {
		return rjdctlErrors.NewServiceError(rjdctlErrors.ErrCodeServiceError,
			fmt.Sprintf("%s failed with status %d", op, se.status), err).
			WithContext("status", se.status).
			WithContext("body", excerpt(se.body))
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return rjdctlErrors.NewNetworkError(rjdctlErrors.ErrCodeNetworkTimeout,
			fmt.Sprintf("%s timed out", op), err)
	}

	return rjdctlErrors.NewNetworkError(rjdctlErrors.ErrCodeNetworkFailure,
		fmt.Sprintf("%s could not reach the service", op), err)
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyExcerpt {
		return s[:maxBodyExcerpt] + "..."
	}
	return s
}
