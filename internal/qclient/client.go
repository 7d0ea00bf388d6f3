// Package qclient is a typed HTTP client for the mock queue server.
package qclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zjrosen/skywidgets/internal/docs"
	"github.com/zjrosen/skywidgets/internal/log"
	"github.com/zjrosen/skywidgets/internal/qserver"
)

// APIError is a non-2xx reply.
type APIError struct {
	StatusCode int
	Body       qserver.ErrorResponse
}

func (e *APIError) Error() string {
	if e.Body.Error == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s (%s)", e.StatusCode, e.Body.Error, e.Body.Code)
}

// Client talks to one server.
type Client struct {
	base       *url.URL
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client, e.g. to add a transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", baseURL)
	}
	c := &Client{base: u, httpClient: &http.Client{Timeout: 30 * time.Second}}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server url.
func (c *Client) BaseURL() string { return c.base.String() }

func (c *Client) url(path string) string {
	return c.base.String() + path
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&apiErr.Body)
		return fmt.Errorf("%s %s: %w", method, path, apiErr)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode reply: %w", method, path, err)
	}
	return nil
}

// Status calls GET /status.
func (c *Client) Status(ctx context.Context) (qserver.Status, error) {
	var out qserver.Status
	err := c.do(ctx, http.MethodGet, "/status", nil, &out)
	return out, err
}

// QueueStatus calls GET /queue/status.
func (c *Client) QueueStatus(ctx context.Context) (qserver.QueueStatus, error) {
	var out qserver.QueueStatus
	err := c.do(ctx, http.MethodGet, "/queue/status", nil, &out)
	return out, err
}

// Add queues a plan.
func (c *Client) Add(ctx context.Context, req qserver.AddRequest) (qserver.Item, error) {
	var out qserver.AddResponse
	err := c.do(ctx, http.MethodPost, "/queue/add", req, &out)
	return out.Item, err
}

// Clear empties the queue.
func (c *Client) Clear(ctx context.Context) (string, error) {
	return c.result(ctx, "/queue/clear")
}

// Start runs the next queued item. The result is "no-op" when nothing
// started.
func (c *Client) Start(ctx context.Context) (string, error) {
	return c.result(ctx, "/queue/start")
}

// Stop aborts the running item.
func (c *Client) Stop(ctx context.Context) (string, error) {
	return c.result(ctx, "/queue/stop")
}

func (c *Client) result(ctx context.Context, path string) (string, error) {
	var out qserver.ResultResponse
	err := c.do(ctx, http.MethodPost, path, nil, &out)
	return out.Result, err
}

// DestroyEnvironment toggles the environment flag and returns its new value.
func (c *Client) DestroyEnvironment(ctx context.Context) (bool, error) {
	var out qserver.EnvironmentResponse
	err := c.do(ctx, http.MethodPost, "/environment/destroy", nil, &out)
	return out.EnvironmentDestroy, err
}

// Plans lists saved plan names.
func (c *Client) Plans(ctx context.Context) ([]string, error) {
	var out qserver.PlansResponse
	err := c.do(ctx, http.MethodGet, "/plans", nil, &out)
	return out.Plans, err
}

// SavePlan stores a plan and returns the name it was saved under.
func (c *Client) SavePlan(ctx context.Context, req qserver.SavePlanRequest) (string, error) {
	var out qserver.SavePlanResponse
	err := c.do(ctx, http.MethodPost, "/plans", req, &out)
	return out.Name, err
}

// Runs lists run uids, the running one first.
func (c *Client) Runs(ctx context.Context) ([]string, error) {
	var out qserver.RunsResponse
	err := c.do(ctx, http.MethodGet, "/runs", nil, &out)
	return out.Runs, err
}

// Documents fetches the stored documents of a run.
func (c *Client) Documents(ctx context.Context, uid string) ([]docs.Document, error) {
	var out qserver.DocumentsResponse
	err := c.do(ctx, http.MethodGet, "/runs/"+url.PathEscape(uid)+"/documents", nil, &out)
	return out.Documents, err
}

// ErrStreamClosed is returned by Stream when the server ends the stream.
var ErrStreamClosed = errors.New("document stream closed by server")

// Stream follows GET /events and calls fn for every document until ctx is
// done, fn fails or the server hangs up. Heartbeats and the connected event
// are skipped.
func (c *Client) Stream(ctx context.Context, fn func(docs.Document) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/events"), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	// The stream has no deadline of its own.
	hc := *c.httpClient
	hc.Timeout = 0
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("GET /events: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET /events: %w", &APIError{StatusCode: resp.StatusCode})
	}
	log.Info(log.CatClient, "Following document stream", "url", c.url("/events"))

	scanner := NewSSEScanner(resp.Body)
	for scanner.Next() {
		ev := scanner.Event()
		if ev.Type == "connected" || ev.Data == "" {
			continue
		}
		var doc docs.Document
		if err := json.Unmarshal([]byte(ev.Data), &doc); err != nil {
			log.Warn(log.CatClient, "Skipping undecodable event", "type", ev.Type, "error", err)
			continue
		}
		if err := fn(doc); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read document stream: %w", err)
	}
	return ErrStreamClosed
}
