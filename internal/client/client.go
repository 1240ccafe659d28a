// Package client talks to a running backdrop control plane. Its Client
// satisfies the editor's Bridge so the terminal panel can edit remotely.
// Every request after Login carries: Authorization: Bearer <jwt>
package client

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

	"github.com/vesaa/backdrop/internal/models"
	"github.com/vesaa/backdrop/internal/store/common"
)

// ErrUnauthorized is returned when the server rejects the credentials.
var ErrUnauthorized = errors.New("server rejected credentials (401)")

// APIError is a non-2xx answer from the control plane.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// RemoteReadError reports that the server answered but its own store read
// failed; the server served defaults instead.
type RemoteReadError struct{ Message string }

func (e *RemoteReadError) Error() string { return "remote read failed: " + e.Message }

// Client is an HTTP bridge to the control plane.
type Client struct {
	base string
	user string
	pass string
	http *http.Client

	mu    sync.Mutex
	token string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// New creates a Client for the control plane at baseURL.
func New(baseURL, user, pass string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		user: user,
		pass: pass,
		http: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Login exchanges the credentials for a token.
func (c *Client) Login(ctx context.Context) error {
	var out struct {
		Token string `json:"token"`
	}
	body := map[string]string{"username": c.user, "password": c.pass}
	if err := c.do(ctx, http.MethodPost, "/api/login", "", body, &out); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("login: %w", err)
	}
	c.mu.Lock()
	c.token = out.Token
	c.mu.Unlock()
	return nil
}

// ReadConfig fetches the record through the control plane. An absent
// record maps to common.ErrNotFound.
func (c *Client) ReadConfig(ctx context.Context) (*models.BackgroundConfig, error) {
	var out struct {
		Data   models.BackgroundConfig `json:"data"`
		Exists bool                    `json:"exists"`
		Error  string                  `json:"error"`
	}
	if err := c.authed(ctx, http.MethodGet, "/api/config", nil, &out); err != nil {
		return nil, err
	}
	if out.Error != "" {
		return nil, &RemoteReadError{Message: out.Error}
	}
	if !out.Exists {
		return nil, common.ErrNotFound
	}
	return &out.Data, nil
}

// WriteConfig overwrites the record through the control plane.
func (c *Client) WriteConfig(ctx context.Context, cfg models.BackgroundConfig) error {
	return c.authed(ctx, http.MethodPut, "/api/config", cfg, nil)
}

// authed logs in lazily and retries once when the token expired.
func (c *Client) authed(ctx context.Context, method, path string, in, out any) error {
	token := c.currentToken()
	if token == "" {
		if err := c.Login(ctx); err != nil {
			return err
		}
		token = c.currentToken()
	}

	err := c.do(ctx, method, path, token, in, out)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		if err := c.Login(ctx); err != nil {
			return err
		}
		return c.do(ctx, method, path, c.currentToken(), in, out)
	}
	return err
}

func (c *Client) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
