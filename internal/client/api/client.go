// Package api is the HTTP client for feedtrackd. It attaches the bearer
// token, normalises error responses and evicts the session on 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrUnauthorized means the server rejected the session. The token has
	// already been cleared and the unauthorized handler invoked.
	ErrUnauthorized = errors.New("api: unauthorized")
	// ErrInvalidResponse means a 2xx body did not match the endpoint schema.
	ErrInvalidResponse = errors.New("api: invalid response")
	// ErrNoSuchUser means a username lookup matched no account.
	ErrNoSuchUser = errors.New("api: no such user")
)

// RequestError is a non-2xx, non-401 response.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

// Is lets errors.Is(err, ErrUnauthorized) match a 401 returned by calls that
// do not evict the session (login, identity check).
func (e *RequestError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TokenSource is the slice of the credential store the client needs.
type TokenSource interface {
	Get(ctx context.Context) (string, bool)
	ClearIf(ctx context.Context, expected string) (bool, error)
}

const maxBodyBytes = 4 << 20

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	tokens  TokenSource
	logger  *zap.Logger

	mu             sync.Mutex
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTimeout bounds each request. It applies to a client given through
// WithHTTPClient as well, without mutating the caller's value.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.timeout = timeout }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.http
		hc.Timeout = c.timeout
		c.http = &hc
	}
	return c
}

// SetUnauthorizedHandler installs the global reaction to a 401, typically
// forcing navigation to the login view.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

type request struct {
	method string
	path   string
	body   any
	// token overrides the stored token when set.
	token string
	// noEvict turns a 401 into a RequestError instead of ending the session.
	noEvict bool
}

type response struct {
	status int
	body   []byte
}

func (c *Client) send(ctx context.Context, r request) (*response, error) {
	var reader io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s %s: %w", r.method, r.path, err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reader)
	if err != nil {
		return nil, fmt.Errorf("api: build %s %s: %w", r.method, r.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token := r.token
	if token == "" && c.tokens != nil {
		token, _ = c.tokens.Get(ctx)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api: %s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("api: read %s %s: %w", r.method, r.path, err)
	}

	c.logger.Debug("api response",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
	)

	if resp.StatusCode == http.StatusUnauthorized && !r.noEvict {
		c.evict(ctx, token)
		return nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RequestError{Status: resp.StatusCode, Message: errorMessage(data, resp.StatusCode)}
	}
	return &response{status: resp.StatusCode, body: data}, nil
}

// evict clears the token the rejected request carried. A token that was
// replaced while the request was in flight belongs to a newer session and is
// left alone.
func (c *Client) evict(ctx context.Context, token string) {
	ctx = context.WithoutCancel(ctx)
	if token != "" && c.tokens != nil {
		cleared, err := c.tokens.ClearIf(ctx, token)
		if err != nil {
			c.logger.Warn("token eviction failed", zap.Error(err))
		}
		if !cleared {
			c.logger.Debug("ignoring 401 for superseded token")
			return
		}
	}
	c.mu.Lock()
	hook := c.onUnauthorized
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// errorMessage prefers the body's "message", then "error", then the status
// text.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("HTTP %d", status)
}

func isEmpty(body []byte) bool {
	return len(bytes.TrimSpace(body)) == 0
}

// Raw performs a request and returns the untyped result: nil for an empty
// body, the decoded JSON value, or the body text when it is not JSON.
func (c *Client) Raw(ctx context.Context, method, path string, body any) (any, error) {
	res, err := c.send(ctx, request{method: method, path: path, body: body})
	if err != nil {
		return nil, err
	}
	if isEmpty(res.body) {
		return nil, nil
	}
	var value any
	if err := json.Unmarshal(res.body, &value); err != nil {
		return string(res.body), nil
	}
	return value, nil
}

// Do performs a request and decodes a JSON body into out. An empty body
// leaves out untouched. A non-JSON body is only accepted when out is a
// *string.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	res, err := c.send(ctx, request{method: method, path: path, body: body})
	if err != nil {
		return err
	}
	return decodeBody(res.body, out)
}

func decodeBody(body []byte, out any) error {
	if out == nil || isEmpty(body) {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		if text, ok := out.(*string); ok {
			*text = string(body)
			return nil
		}
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if v, ok := out.(validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
	}
	return nil
}

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// call is the typed path: the body must be present and satisfy the schema.
func (c *Client) call(ctx context.Context, r request, out validator) error {
	res, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if isEmpty(res.body) {
		return fmt.Errorf("%w: empty body from %s %s", ErrInvalidResponse, r.method, r.path)
	}
	return decodeBody(res.body, out)
}
