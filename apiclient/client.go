// Package apiclient is the typed REST client the cart store, address book and
// checkout machine talk to the marketplace API through.
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

	"go.uber.org/zap"

	"go-marketplace/apperr"
)

// Client calls the marketplace API on behalf of one session.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
	log     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// New returns a client for baseURL authenticating with the bearer token.
//
// baseURL example: http://localhost:8000
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// SetToken swaps the bearer token, e.g. after a session refresh.
func (c *Client) SetToken(token string) {
	c.token = token
}

type errorBody struct {
	Message string `json:"message"`
	Field   string `json:"field"`
}

// do sends one request. Non-2xx responses come back as *apperr.Error with
// the server's message; transport failures are Transient.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperr.Internal("encode request", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return apperr.Internal("build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return apperr.Transient("Network error, please try again", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return apperr.Transient("Network error, please try again", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		c.log.Debug("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", res.StatusCode),
			zap.String("message", eb.Message))
		return apperr.FromHTTPStatus(res.StatusCode, eb.Field, eb.Message)
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apperr.Internal(fmt.Sprintf("decode %s %s response", method, path), err)
	}
	return nil
}
