// Package apiclient is the authenticated HTTP client of the inventory API.
// It attaches the bearer token of the current session, refreshes it once on a
// 401 and clears the session when the refresh is impossible.
package apiclient

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
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/erp/chemstock/internal/infrastructure/config"
	"github.com/erp/chemstock/internal/infrastructure/logger"
	"github.com/erp/chemstock/internal/infrastructure/telemetry"
)

// TokenStore is the part of the session the client needs.
// session.Store satisfies it.
type TokenStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetTokens(ctx context.Context, access, refresh string) error
	Logout(ctx context.Context) error
}

// Scope selects the URL prefix a path is resolved under
type Scope int

const (
	// ScopeAPI resolves paths under <base>/api
	ScopeAPI Scope = iota
	// ScopeAuth resolves paths under <base>/auth
	ScopeAuth
)

func (s Scope) prefix() string {
	if s == ScopeAuth {
		return "/auth"
	}
	return "/api"
}

// RefreshPath is the djoser endpoint exchanging a refresh token for a new pair
const RefreshPath = "/jwt/refresh/"

// Client is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	tokens     TokenStore
	log        *zap.Logger
	metrics    *telemetry.Metrics
	limiter    *rate.Limiter
	coalesce   bool
	refreshes  singleflight.Group
	onExpired  func(ctx context.Context, err error)
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used when ctx carries none
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithMetrics records every request into m
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithRateLimit limits outgoing requests per second. A zero limit disables it.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithCoalescedRefresh makes concurrent 401s share a single refresh call
func WithCoalescedRefresh(enabled bool) Option {
	return func(c *Client) { c.coalesce = enabled }
}

// WithSessionExpiredHook registers fn to run after the session was cleared
func WithSessionExpiredHook(fn func(ctx context.Context, err error)) Option {
	return func(c *Client) { c.onExpired = fn }
}

// WithUserAgent overrides the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for the API at cfg.BaseURL
func New(cfg config.APIConfig, tokens TokenStore, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if tokens == nil {
		return nil, fmt.Errorf("token store is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		tokens:     tokens,
		log:        zap.NewNop(),
		coalesce:   cfg.CoalesceRefresh,
	}
	WithRateLimit(cfg.RateLimit, cfg.RateBurst)(c)

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API origin without the /api suffix
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Request describes one API call
type Request struct {
	Method  string
	Path    string // relative to the scope prefix, e.g. /requisitions/15/
	Scope   Scope
	Query   url.Values
	Body    any   // encoded as JSON when Form is nil
	Form    *Form // multipart body
	Headers map[string]string
	NoAuth  bool // no bearer header and no refresh on 401 (login, refresh)
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// IsSuccess reports a 2xx status
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

type encodedBody struct {
	data        []byte
	contentType string
}

// Do executes req. A 401 triggers one token refresh and one resubmission;
// the resubmitted request is never refreshed again. Non-2xx responses are
// returned together with an *APIError.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u, err := c.buildURL(req)
	if err != nil {
		return nil, fmt.Errorf("building URL: %w", err)
	}

	body, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	ctx, log := logger.WithRequestID(ctx, c.logger(ctx), uuid.NewString())

	token := ""
	if !req.NoAuth {
		if token, err = c.tokens.AccessToken(ctx); err != nil {
			return nil, fmt.Errorf("reading access token: %w", err)
		}
	}

	resp, err := c.send(ctx, req, u, body, token, false)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !req.NoAuth {
		log.Info("access token rejected, refreshing", zap.String("path", req.Path))
		token, err = c.handleUnauthorized(ctx, newAPIError(req.Method, u, resp))
		if err != nil {
			return resp, err
		}
		resp, err = c.send(ctx, req, u, body, token, true)
		if err != nil {
			return nil, err
		}
	}

	if !resp.IsSuccess() {
		return resp, newAPIError(req.Method, u, resp)
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req Request, u *url.URL, body *encodedBody, token string, retry bool) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	ctx, span := telemetry.StartSpan(ctx, "api "+req.Method+" "+telemetry.EndpointLabel(u.Path),
		telemetry.WithSpanKind(trace.SpanKindClient),
		telemetry.WithAttribute(telemetry.SpanAttrHTTPMethod, req.Method),
		telemetry.WithAttribute(telemetry.SpanAttrURLPath, u.Path),
		telemetry.WithAttribute(telemetry.SpanAttrRetry, retry),
	)
	defer span.End()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body.data)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("creating HTTP request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		httpReq.Header.Set("User-Agent", c.userAgent)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", body.contentType)
	}
	if id := logger.GetRequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	log := logger.L(ctx)

	if err != nil {
		c.observe(req.Method, u.Path, 0, duration)
		telemetry.RecordError(span, err)
		log.Debug("api request failed",
			zap.String("method", req.Method),
			zap.String("path", u.Path),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", req.Method, u.Path, err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.observe(req.Method, u.Path, httpResp.StatusCode, duration)
	telemetry.SetAttributes(span, telemetry.SpanAttrHTTPStatus, httpResp.StatusCode)
	log.Debug("api request",
		zap.String("method", req.Method),
		zap.String("path", u.Path),
		zap.Int("status", httpResp.StatusCode),
		zap.Duration("duration", duration),
		zap.Bool("retry", retry),
	)

	return &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       data,
		Duration:   duration,
	}, nil
}

func (c *Client) buildURL(req Request) (*url.URL, error) {
	path := req.Path
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u, err := url.Parse(c.baseURL + req.Scope.prefix() + path)
	if err != nil {
		return nil, err
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u, nil
}

func encodeBody(req Request) (*encodedBody, error) {
	switch {
	case req.Form != nil:
		data, contentType, err := req.Form.Encode()
		if err != nil {
			return nil, fmt.Errorf("encoding multipart body: %w", err)
		}
		return &encodedBody{data: data, contentType: contentType}, nil
	case req.Body != nil:
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		return &encodedBody{data: data, contentType: "application/json"}, nil
	default:
		return nil, nil
	}
}

func (c *Client) logger(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(logger.LoggerKey).(*zap.Logger); ok {
		return l
	}
	return c.log
}

func (c *Client) observe(method, path string, status int, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveRequest(method, path, status, d)
	}
}

// call runs req and decodes a successful body into out
func (c *Client) call(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// Get fetches path under /api into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.call(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post sends body as JSON and decodes the answer into out
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPost, Path: path, Body: body}, out)
}

// Put replaces the resource at path
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPut, Path: path, Body: body}, out)
}

// Patch partially updates the resource at path
func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.call(ctx, Request{Method: http.MethodPatch, Path: path, Body: body}, out)
}

// Delete removes the resource at path
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.call(ctx, Request{Method: http.MethodDelete, Path: path}, nil)
}

// DeleteWithBody sends a DELETE carrying a JSON body
func (c *Client) DeleteWithBody(ctx context.Context, path string, body any) error {
	return c.call(ctx, Request{Method: http.MethodDelete, Path: path, Body: body}, nil)
}

// PostForm sends a multipart form
func (c *Client) PostForm(ctx context.Context, path string, form *Form, out any) error {
	return c.call(ctx, Request{Method: http.MethodPost, Path: path, Form: form}, out)
}

// Auth runs req under /auth
func (c *Client) Auth(ctx context.Context, req Request, out any) error {
	req.Scope = ScopeAuth
	return c.call(ctx, req, out)
}
