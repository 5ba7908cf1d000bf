package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client talks to an ansup daemon over HTTP.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// Config holds client configuration.
type Config struct {
	BaseURL  string
	Timeout  time.Duration
	Logger   *slog.Logger // optional logger for client operations
	Insecure bool         // skip TLS verification
}

// DefaultConfig returns default client configuration.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:8080/api",
		Timeout: 10 * time.Second,
	}
}

// New creates an ansup API client.
func New(config Config) *Client {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:8080/api"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	transport := &http.Transport{}
	if config.Insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL: config.BaseURL,
		logger:  config.Logger,
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

// IsReachable checks whether the daemon answers on the status endpoint.
func (c *Client) IsReachable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("daemon unreachable", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode != http.StatusNotFound
}

// Register registers a new analysis and returns its assigned ID.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	c.logger.Debug("registering analysis", "name", req.Name, "kind", req.Kind)
	data, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	var resp registerResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+"/register", data, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Unregister removes an analysis, stopping it first if needed.
func (c *Client) Unregister(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, c.idURL("/unregister", id), nil, nil)
}

// Start launches the analysis and marks it enabled.
func (c *Client) Start(ctx context.Context, id string) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodPost, c.idURL("/start", id), nil, &st)
	return st, err
}

// Stop terminates the analysis and marks it disabled.
func (c *Client) Stop(ctx context.Context, id string) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodPost, c.idURL("/stop", id), nil, &st)
	return st, err
}

// Restart stops and relaunches the analysis.
func (c *Client) Restart(ctx context.Context, id string) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodPost, c.idURL("/restart", id), nil, &st)
	return st, err
}

// Status fetches the state of one analysis.
func (c *Client) Status(ctx context.Context, id string) (Status, error) {
	var st Status
	err := c.do(ctx, http.MethodGet, c.idURL("/status", id), nil, &st)
	return st, err
}

// StatusAll fetches the state of every registered analysis, sorted by name.
func (c *Client) StatusAll(ctx context.Context) ([]Status, error) {
	var all []Status
	err := c.do(ctx, http.MethodGet, c.baseURL+"/status", nil, &all)
	return all, err
}

// Logs fetches captured output lines, most recent first. A limit of zero
// returns everything the server buffers.
func (c *Client) Logs(ctx context.Context, id string, limit int) ([]LogEntry, error) {
	u := c.idURL("/logs", id)
	if limit > 0 {
		u += "&limit=" + strconv.Itoa(limit)
	}
	var lines []LogEntry
	err := c.do(ctx, http.MethodGet, u, nil, &lines)
	return lines, err
}

// Rename changes the display name of an analysis.
func (c *Client) Rename(ctx context.Context, id, name string) (Status, error) {
	u := c.idURL("/rename", id) + "&name=" + url.QueryEscape(name)
	var st Status
	err := c.do(ctx, http.MethodPost, u, nil, &st)
	return st, err
}

// ClearLogs drops the in-memory log buffer; truncate also removes the
// on-disk log file.
func (c *Client) ClearLogs(ctx context.Context, id string, truncate bool) error {
	u := c.idURL("/clear-logs", id)
	if truncate {
		u += "&truncate=1"
	}
	return c.do(ctx, http.MethodPost, u, nil, nil)
}

func (c *Client) idURL(path, id string) string {
	return c.baseURL + path + "?id=" + url.QueryEscape(id)
}

// do performs the request and decodes a JSON response into out when out is
// non-nil. Non-200 responses are turned into errors using the server's
// error payload.
func (c *Client) do(ctx context.Context, method, u string, body []byte, out any) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Debug("request failed", "method", method, "url", u, "error", err)
		return fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var er errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
			return fmt.Errorf("HTTP %d", resp.StatusCode)
		}
		return fmt.Errorf("api error: %s", er.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
