// Package api is the typed client of the remote invoice REST API.
//
// Every call takes a context; the bearer token of the signed-in user
// travels in that context (see ContextWithToken) so one Client serves all
// sessions.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "http://localhost:5000"
	DefaultTimeout = 15 * time.Second

	// maxBodyBytes bounds JSON and download bodies read from the API.
	maxBodyBytes = 64 << 20
)

// Observer receives one call per API round trip. status is 0 on transport errors.
type Observer interface {
	ObserveAPICall(op string, status int, elapsed time.Duration)
}

// Client talks to the invoice API.
type Client struct {
	baseURL  string
	http     *http.Client
	logger   *slog.Logger
	observer Observer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient builds a client for baseURL. A zero timeout uses DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

type tokenKey struct{}

// ContextWithToken attaches a bearer token to ctx.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFromContext returns the bearer token attached to ctx, if any.
func TokenFromContext(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}

type request struct {
	op          Op
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func (c *Client) jsonRequest(op Op, method, path string, payload any) (request, error) {
	req := request{op: op, method: method, path: path, contentType: "application/json"}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return req, fmt.Errorf("%s: encode body: %w", op, err)
		}
		req.body = bytes.NewReader(b)
	}
	return req, nil
}

// send performs the round trip and returns the response for 2xx statuses.
// The caller closes the body.
func (c *Client) send(ctx context.Context, r request) (*http.Response, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, r.body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", r.op, err)
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if tok := TokenFromContext(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe(r.op, 0, start)
		return nil, &StatusError{Op: r.op, Message: r.op.Message(), Err: err}
	}
	c.observe(r.op, resp.StatusCode, start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		serr := newStatusError(r.op, resp)
		c.logger.Debug("API call failed",
			"op", string(r.op),
			"status", resp.StatusCode,
			"detail", serr.Detail)
		return nil, serr
	}
	return resp, nil
}

// do performs a request and decodes a JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, r request, out any) error {
	resp, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", r.op, err)
	}
	return nil
}

func (c *Client) observe(op Op, status int, start time.Time) {
	if c.observer != nil {
		c.observer.ObserveAPICall(string(op), status, time.Since(start))
	}
}
