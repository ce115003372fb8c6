package libraryapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
)

// TokenStore is the credential storage the client reads tokens from and
// clears on 401. *store.Credentials satisfies it.
type TokenStore interface {
	// Token returns the stored token, or "" when there is none.
	Token(ctx context.Context) (string, error)
	// Clear removes the stored credential record.
	Clear(ctx context.Context) error
}

// Client is the single shared request pipeline for the library backend.
type Client struct {
	httpClient *http.Client
	config     Config
	tokens     TokenStore
	logger     *slog.Logger
	requestID  atomic.Int64

	mu             sync.Mutex
	onUnauthorized []func()
}

// Option configures optional Client dependencies.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a library API client. tokens may be nil, in which case
// every request is sent unauthenticated.
func NewClient(config Config, tokens TokenStore, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if config.AuthScheme == "" {
		config.AuthScheme = DefaultAuthScheme
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		config: config,
		tokens: tokens,
		logger: logger.With("component", "api-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// OnUnauthorized registers fn to run after a 401 response has cleared the
// stored credentials. Hooks run synchronously, before the error is returned,
// and must not call back into the client.
func (c *Client) OnUnauthorized(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = append(c.onUnauthorized, fn)
}

// request describes one API call.
type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
}

// do executes req and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, req request, out any) error {
	data, err := c.doRaw(ctx, req)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{Op: req.op, Kind: KindUnknown, Message: "unexpected response from server", Err: fmt.Errorf("unmarshaling response: %w", err)}
	}
	return nil
}

// doRaw executes req and returns the raw 2xx response body.
func (c *Client) doRaw(ctx context.Context, req request) ([]byte, error) {
	id := c.requestID.Add(1)
	target := c.config.endpoint(req.path)
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}
	logger := c.logger.With("op", req.op, "method", req.method, "url", target, "request_id", id)

	var bodyReader io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		if err != nil {
			return nil, &Error{Op: req.op, Kind: KindUnknown, Err: fmt.Errorf("marshaling request: %w", err)}
		}
		bodyReader = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, bodyReader)
	if err != nil {
		return nil, &Error{Op: req.op, Kind: KindUnknown, Err: fmt.Errorf("creating HTTP request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.config.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.config.UserAgent)
	}
	if err := c.authorize(ctx, httpReq); err != nil {
		logger.Warn("token lookup failed, sending unauthenticated", "error", err)
	}

	logger.Debug("sending request")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logger.Debug("no response", "error", err)
		return nil, networkError(req.op, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, networkError(req.op, fmt.Errorf("reading response: %w", err))
	}

	logger.Debug("response", "status", httpResp.StatusCode)

	if httpResp.StatusCode == http.StatusUnauthorized {
		c.forceLogout(logger)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, statusError(req.op, httpResp.StatusCode, respBody)
	}
	return respBody, nil
}

// authorize attaches the stored token, if any.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", c.config.AuthScheme+" "+token)
	}
	return nil
}

// forceLogout clears stored credentials and runs the unauthorized hooks.
// It uses a background context so a cancelled request still cleans up.
func (c *Client) forceLogout(logger *slog.Logger) {
	logger.Warn("unauthorized response, clearing stored credentials")
	if c.tokens != nil {
		if err := c.tokens.Clear(context.Background()); err != nil {
			logger.Error("clear credentials after 401", "error", err)
		}
	}

	c.mu.Lock()
	hooks := make([]func(), len(c.onUnauthorized))
	copy(hooks, c.onUnauthorized)
	c.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
