// Package api is the HTTP client for the fintrack backend.
package api

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

	"fintrack/internal/cache"
	"fintrack/internal/log"
	"fintrack/internal/middleware/trace"
)

// DefaultBaseURL is where the backend listens in development.
const DefaultBaseURL = "http://localhost:8080/api"

const maxBodyBytes = 4 << 20

// Cache tags. A write to a resource drops every cached read carrying its tag.
const (
	TagAccounts      = "accounts"
	TagTransactions  = "transactions"
	TagCategories    = "categories"
	TagBudgets       = "budgets"
	TagNotifications = "notifications"
)

// TokenSource supplies the credential for authenticated requests.
// An empty token means the request goes out without Authorization.
type TokenSource interface {
	AccessToken() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) AccessToken() string { return f() }

type Client struct {
	baseURL        *url.URL
	http           *http.Client
	tokens         TokenSource
	cache          cache.Cache[[]byte]
	onUnauthorized func(ctx context.Context)
	logger         *log.Logger
	timeout        time.Duration
	transport      *trace.Transport
}

type Option func(*Client)

// WithHTTPClient replaces the underlying client. Its transport is wrapped for tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithCache enables response caching for GET requests.
func WithCache(rc cache.Cache[[]byte]) Option {
	return func(c *Client) { c.cache = rc }
}

func WithLogger(l *log.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l.WithComponent(log.ComponentAPI)
		}
	}
}

// OnUnauthorized registers fn to run whenever the backend answers 401 or 403.
func OnUnauthorized(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// NewClient builds a client rooted at baseURL, e.g. "http://localhost:8080/api".
func NewClient(baseURL string, tokens TokenSource, opts ...Option) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if tokens == nil {
		tokens = TokenFunc(func() string { return "" })
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
		logger:  log.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}

	traced := *c.http
	c.transport = trace.NewTransport(c.http.Transport, c.logger)
	traced.Transport = c.transport
	if c.timeout > 0 {
		traced.Timeout = c.timeout
	}
	c.http = &traced
	return c, nil
}

// Stats reports the requests sent to the backend so far.
func (c *Client) Stats() trace.Metrics {
	return c.transport.GetMetrics()
}

// Purge drops every cached response, e.g. when the user changes.
func (c *Client) Purge() {
	if c.cache != nil {
		c.cache.Purge()
	}
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = u.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// get decodes the JSON answer to a GET into out, serving from cache when possible.
func (c *Client) get(ctx context.Context, path string, query url.Values, tag string, out any) error {
	target := c.endpoint(path, query)

	if c.cache != nil {
		if body, ok := c.cache.Get(target); ok {
			c.logger.DebugContext(ctx, "Serving cached response", log.FieldPath, path, log.FieldCacheHit, true)
			return decode(path, body, out)
		}
	}

	body, err := c.do(ctx, http.MethodGet, target, path, nil)
	if err != nil {
		return err
	}
	if c.cache != nil {
		c.cache.Set(target, []string{tag}, body)
	}
	return decode(path, body, out)
}

// send posts in as JSON and decodes the answer into out when out is non-nil.
// tag, when set, is invalidated after a successful write.
func (c *Client) send(ctx context.Context, path, tag string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	body, err := c.do(ctx, http.MethodPost, c.endpoint(path, nil), path, payload)
	if err != nil {
		return err
	}
	if c.cache != nil && tag != "" {
		if n := c.cache.InvalidateTag(tag); n > 0 {
			c.logger.DebugContext(ctx, "Invalidated cached responses", log.FieldPath, path, log.FieldCount, n)
		}
	}
	// Some write endpoints answer with plain text; the write still succeeded.
	body = bytes.TrimSpace(body)
	if out == nil || len(body) == 0 || (body[0] != '{' && body[0] != '[') {
		return nil
	}
	return decode(path, body, out)
}

func (c *Client) do(ctx context.Context, method, target, path string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{
			StatusCode: resp.StatusCode,
			Method:     method,
			Path:       path,
			Message:    errorMessage(body),
		}
		if apiErr.Unauthorized() && c.onUnauthorized != nil {
			c.logger.WarnContext(ctx, "Backend rejected credential", log.FieldPath, path, log.FieldStatusCode, resp.StatusCode)
			c.onUnauthorized(ctx)
		}
		return nil, apiErr
	}
	return body, nil
}

func decode(path string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
