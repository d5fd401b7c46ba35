// Package client performs authenticated API requests. It attaches the bearer
// token, always carries cookies, and on a 401 refreshes the token once
// (shared by all concurrent callers) before replaying the request a single
// time.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/sync/singleflight"

	"pft/internal/apperr"
	"pft/internal/log"
	"pft/internal/metrics"
	"pft/internal/middleware/trace"
	"pft/internal/tokenstore"
)

// RefreshPath is the cookie-authenticated endpoint minting a new access token.
const RefreshPath = "/auth/refresh"

type Config struct {
	// BaseURL is prefixed to relative request paths, e.g. http://localhost:8000/api/v1.
	BaseURL string
	// Timeout bounds each HTTP exchange. Zero leaves the transport default.
	Timeout time.Duration
	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
	// Cookies persists the refresh cookie across restarts when set.
	Cookies tokenstore.Durable
	Logger  *log.Logger
	Metrics *metrics.Metrics
}

// Client is safe for concurrent use. One instance per application.
type Client struct {
	base      string
	http      *http.Client
	tokens    *tokenstore.Store
	refreshes singleflight.Group
	logger    *log.Logger
	metrics   *metrics.Metrics
}

// Request describes one API call. Body is held as bytes so it can be replayed.
type Request struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

func New(cfg Config, tokens *tokenstore.Store) (*Client, error) {
	if tokens == nil {
		return nil, fmt.Errorf("new client: token store is required")
	}
	logger := log.OrNop(cfg.Logger).WithComponent(log.ComponentClient)

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	var cookies http.CookieJar = jar
	if cfg.Cookies != nil {
		cookies = newPersistentJar(jar, cfg.Cookies, logger)
	}

	return &Client{
		base: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Transport: trace.NewTransport(cfg.Transport, logger),
			Jar:       cookies,
			Timeout:   cfg.Timeout,
		},
		tokens:  tokens,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// Tokens returns the token store the client reads from.
func (c *Client) Tokens() *tokenstore.Store { return c.tokens }

// URL resolves path against the base URL. Absolute URLs are used verbatim.
func (c *Client) URL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.base + path
}

// Do sends req with the current bearer token. On 401 it refreshes and retries
// exactly once; when the refresh yields no token the original 401 response is
// returned. Transport failures are returned as apperr network errors. The
// caller closes the response body.
func (c *Client) Do(ctx context.Context, req Request) (*http.Response, error) {
	url := c.URL(req.Path)
	token, _ := c.tokens.Token()

	resp, err := c.send(ctx, req, url, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	unauthorized := buffer(resp)
	newToken, ok := c.Refresh(ctx)
	if !ok {
		return unauthorized, nil
	}
	unauthorized.Body.Close()

	c.metrics.Retry()
	c.logger.DebugContext(ctx, "Retrying request with refreshed token", log.FieldMethod, req.Method, log.FieldPath, req.Path)
	return c.send(ctx, req, url, newToken)
}

func (c *Client) send(ctx context.Context, req Request, url, token string) (*http.Response, error) {
	op := opName(req.Method, req.Path)
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, &apperr.Error{Kind: apperr.KindInternal, Op: op, Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.Request(method, 0)
		if ctx.Err() != nil {
			return nil, &apperr.Error{Kind: apperr.KindCanceled, Op: op, Err: ctx.Err()}
		}
		return nil, apperr.Network(op, err)
	}
	c.metrics.Request(method, resp.StatusCode)
	return resp, nil
}

// buffer reads resp's body into memory so it can be returned after the
// connection is released.
func buffer(resp *http.Response) *http.Response {
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		data = nil
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp
}

func opName(method, path string) string {
	if method == "" {
		method = http.MethodGet
	}
	return method + " " + path
}
