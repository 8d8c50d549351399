// Package apiclient is the HTTP client for the petflix REST API: bearer
// injection, JSON envelopes and retries.
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

	"go.uber.org/zap"

	"github.com/and161185/petflix/internal/reqctx"
	"github.com/and161185/petflix/internal/retry"
	"github.com/and161185/petflix/internal/tokenstore"
)

const (
	headerRequestID = "X-Request-ID"
	maxBodyBytes    = 8 << 20
)

// Client issues JSON requests against a base URL.
type Client struct {
	base      string
	http      *http.Client
	tokens    tokenstore.Store
	retry     retry.Options
	log       *zap.Logger
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithLogger sets the logger used for retries and transport logging.
func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

// WithRetryOptions sets the default retry policy.
func WithRetryOptions(o retry.Options) Option { return func(c *Client) { c.retry = o } }

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option { return func(c *Client) { c.userAgent = ua } }

// New constructs a client. tokens may be nil for anonymous use.
func New(baseURL string, tokens tokenstore.Store, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("apiclient: base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: base url %q: scheme must be http or https", baseURL)
	}
	c := &Client{
		base:      strings.TrimRight(baseURL, "/"),
		tokens:    tokens,
		retry:     retry.DefaultOptions(),
		log:       zap.NewNop(),
		userAgent: "petflix-go",
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{Transport: &LoggingTransport{Log: c.log}}
	}
	return c, nil
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string { return c.base }

type callConfig struct {
	retry     bool
	retryOpts *retry.Options
	header    http.Header
}

// CallOption adjusts a single call.
type CallOption func(*callConfig)

// NoRetry disables retries for the call.
func NoRetry() CallOption { return func(cc *callConfig) { cc.retry = false } }

// RetryOptions overrides the retry policy for the call.
func RetryOptions(o retry.Options) CallOption {
	return func(cc *callConfig) { cc.retry = true; cc.retryOpts = &o }
}

// Header adds a request header.
func Header(key, value string) CallOption {
	return func(cc *callConfig) { cc.header.Add(key, value) }
}

// Get issues a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPost, path, body, out, opts...)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodPut, path, body, out, opts...)
}

// Delete issues a DELETE. A 204 response yields an empty result.
func (c *Client) Delete(ctx context.Context, path string, out any, opts ...CallOption) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out, opts...)
}

// Do issues a request. body is JSON-encoded when non-nil; out receives the
// decoded 2xx body when non-nil. Non-2xx responses return *APIError.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, opts ...CallOption) error {
	cc := callConfig{retry: true, header: http.Header{}}
	for _, o := range opts {
		o(&cc)
	}

	target, err := c.resolve(path)
	if err != nil {
		return err
	}
	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("apiclient: encode body: %w", err)
		}
	}
	ctx, _ = reqctx.EnsureRequestID(ctx)

	attempt := func(ctx context.Context) error {
		return c.once(ctx, method, target, payload, out, cc.header)
	}
	if !cc.retry {
		return attempt(ctx)
	}

	ro := c.retry
	if cc.retryOpts != nil {
		ro = *cc.retryOpts
	}
	if ro.OnRetry == nil {
		ro.OnRetry = func(n int, err error) {
			c.log.Warn("retrying request",
				zap.String("method", method),
				zap.String("url", target),
				zap.Int("attempt", n),
				zap.Error(err),
			)
		}
	}
	return retry.Do(ctx, ro, attempt)
}

func (c *Client) resolve(path string) (string, error) {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if _, err := url.Parse(path); err != nil {
			return "", fmt.Errorf("apiclient: url: %w", err)
		}
		return path, nil
	}
	return c.base + "/" + strings.TrimLeft(path, "/"), nil
}

func (c *Client) once(ctx context.Context, method, target string, payload []byte, out any, extra http.Header) error {
	var rdr io.Reader
	if payload != nil {
		rdr = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if id, ok := reqctx.RequestIDFromCtx(ctx); ok {
		req.Header.Set(headerRequestID, id)
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.tokens != nil {
		tok, err := c.tokens.Load(ctx)
		if err != nil {
			return fmt.Errorf("apiclient: load token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(method, target, resp.StatusCode, raw)
	}
	if resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(raw)) == 0 {
		setEmpty(out)
		return nil
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("apiclient: decode %s %s: %w", method, target, err)
	}
	return nil
}

// setEmpty gives map-typed results an empty, non-nil value.
func setEmpty(out any) {
	switch v := out.(type) {
	case *map[string]any:
		*v = map[string]any{}
	case *json.RawMessage:
		*v = json.RawMessage("{}")
	}
}
