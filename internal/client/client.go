// Package client talks to a billsync sync endpoint.
//
// Push sends the full local payload with action=sync, Pull fetches the whole
// authoritative store with action=export, and Ping checks reachability.
// Transport failures come back as *schema.NetworkError; a reply with
// success=false comes back as *schema.SyncError carrying the server message.
package client

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

	"github.com/sirupsen/logrus"

	"github.com/retailbill/billsync/internal/schema"
)

// DefaultTimeout bounds one request, including reading the reply.
const DefaultTimeout = 30 * time.Second

// Config holds client configuration
type Config struct {
	// URL of the sync endpoint, e.g. http://localhost:8080/api
	URL string

	// Timeout per request (default: 30s)
	Timeout time.Duration

	// HTTPClient overrides the transport; Timeout is ignored when set
	HTTPClient *http.Client

	// Logger (default: logrus standard logger)
	Logger logrus.FieldLogger
}

// Client is a sync endpoint client. It is safe for concurrent use.
type Client struct {
	endpoint *url.URL
	http     *http.Client
	log      logrus.FieldLogger
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// New validates cfg and returns a client.
func New(cfg Config) (*Client, error) {
	raw := strings.TrimSpace(cfg.URL)
	if raw == "" {
		return nil, fmt.Errorf("sync endpoint url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid sync endpoint url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid sync endpoint url %q: scheme must be http or https", raw)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		endpoint: u,
		http:     hc,
		log:      logger.WithField("component", "client"),
	}, nil
}

// URL returns the configured endpoint.
func (c *Client) URL() string {
	return c.endpoint.String()
}

func (c *Client) actionURL(action string) string {
	u := *c.endpoint
	q := u.Query()
	q.Set("action", action)
	u.RawQuery = q.Encode()
	return u.String()
}

// Push sends p to the authoritative store, which applies it atomically.
func (c *Client) Push(ctx context.Context, p *schema.Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	target := c.actionURL("sync")
	env, err := c.do(ctx, "push", http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	if !env.Success {
		return &schema.SyncError{Message: env.Message}
	}

	c.log.WithFields(logrus.Fields{
		"records": p.Total(),
		"bytes":   len(body),
	}).Debug("payload pushed")
	return nil
}

// Pull fetches the whole authoritative store.
func (c *Client) Pull(ctx context.Context) (*schema.Payload, error) {
	target := c.actionURL("export")
	env, err := c.do(ctx, "pull", http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &schema.SyncError{Message: env.Message}
	}

	var p *schema.Payload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return nil, &schema.SyncError{Message: "invalid export data", Err: err}
	}
	if p == nil {
		return nil, &schema.SyncError{Message: "export returned no data"}
	}

	c.log.WithField("records", p.Total()).Debug("payload pulled")
	return p, nil
}

// Ping reports whether the sync host answers at all. Any HTTP reply below 500
// counts; servers without a /health route still prove the network is up.
func (c *Client) Ping(ctx context.Context) error {
	u := *c.endpoint
	u.Path = "/health"
	u.RawQuery = ""
	target := u.String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &schema.NetworkError{Op: "ping", URL: target, Err: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return &schema.NetworkError{Op: "ping", URL: target, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return &schema.NetworkError{Op: "ping", URL: target, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, target string, body io.Reader) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, &schema.NetworkError{Op: op, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &schema.NetworkError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &schema.NetworkError{Op: op, URL: target, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &schema.NetworkError{Op: op, URL: target, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
		}
		return nil, &schema.NetworkError{Op: op, URL: target, Err: fmt.Errorf("invalid response: %w", err)}
	}
	return &env, nil
}
