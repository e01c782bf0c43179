//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

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

	"github.com/oshokin/fire-watch/internal/config"
	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/service/orchestrator"
	"github.com/oshokin/fire-watch/internal/version"
)

// actorHeader must match the header read by the API.
const actorHeader = "X-Actor"

var (
	// errAddressRequired is returned when the server URL is missing.
	errAddressRequired = errors.New("server url must be provided")
	// errActorRequired is returned when an audited call has no actor.
	errActorRequired = errors.New("actor must be provided")
)

// APIError is a non-2xx answer of the server.
type APIError struct {
	StatusCode int
	Detail     string
}

// Error implements error.
func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server answered %d", e.StatusCode)
	}

	return fmt.Sprintf("server answered %d: %s", e.StatusCode, e.Detail)
}

// ResetResult is the answer to a fire-state reset.
type ResetResult struct {
	Reset     bool          `json:"reset"`
	FireState fire.Snapshot `json:"fire_state"`
}

// Client talks to the fire-watch HTTP API.
type Client struct {
	// base is the server root URL.
	base *url.URL
	// http performs the requests.
	http *http.Client
	// actor is sent with audited calls.
	actor string

	// callTimeout is the default timeout for individual calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for service calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sets the identity sent with threshold updates and resets.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.http = client
		}
	}
}

// NewClient returns a client for the server at serverURL.
func NewClient(serverURL string, opts ...Option) (*Client, error) {
	if serverURL == "" {
		return nil, errAddressRequired
	}

	base, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}

	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", base.Scheme)
	}

	client := &Client{
		base:        base,
		http:        http.DefaultClient,
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// PostReading submits one sensor reading.
func (c *Client) PostReading(ctx context.Context, reading fire.SensorReading) (*orchestrator.IngestResult, error) {
	var result orchestrator.IngestResult
	if err := c.do(ctx, http.MethodPost, "/sensors", reading, &result); err != nil {
		return nil, fmt.Errorf("post reading: %w", err)
	}

	return &result, nil
}

// Status returns the current fire status.
func (c *Client) Status(ctx context.Context) (fire.Status, error) {
	var body struct {
		Status fire.Status `json:"status"`
	}

	if err := c.do(ctx, http.MethodGet, "/status", nil, &body); err != nil {
		return fire.StatusNormal, fmt.Errorf("get status: %w", err)
	}

	return body.Status, nil
}

// Thresholds returns the active thresholds.
func (c *Client) Thresholds(ctx context.Context) (fire.Thresholds, error) {
	var thresholds fire.Thresholds
	if err := c.do(ctx, http.MethodGet, "/thresholds", nil, &thresholds); err != nil {
		return fire.Thresholds{}, fmt.Errorf("get thresholds: %w", err)
	}

	return thresholds, nil
}

// UpdateThresholds applies a partial threshold update.
func (c *Client) UpdateThresholds(ctx context.Context, patch fire.ThresholdsPatch) (fire.Thresholds, error) {
	if c.actor == "" {
		return fire.Thresholds{}, errActorRequired
	}

	var thresholds fire.Thresholds
	if err := c.do(ctx, http.MethodPost, "/thresholds", patch, &thresholds); err != nil {
		return fire.Thresholds{}, fmt.Errorf("update thresholds: %w", err)
	}

	return thresholds, nil
}

// FireState returns the latch snapshot.
func (c *Client) FireState(ctx context.Context) (fire.Snapshot, error) {
	var snapshot fire.Snapshot
	if err := c.do(ctx, http.MethodGet, "/fire-state", nil, &snapshot); err != nil {
		return fire.Snapshot{}, fmt.Errorf("get fire state: %w", err)
	}

	return snapshot, nil
}

// ResetFireState clears the fire latch.
func (c *Client) ResetFireState(ctx context.Context) (*ResetResult, error) {
	if c.actor == "" {
		return nil, errActorRequired
	}

	var result ResetResult
	if err := c.do(ctx, http.MethodDelete, "/fire-state", nil, &result); err != nil {
		return nil, fmt.Errorf("reset fire state: %w", err)
	}

	return &result, nil
}

// SubscriptionURL returns the websocket URL of group.
func (c *Client) SubscriptionURL(group alert.Group) string {
	u := *c.base

	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/" + string(group)

	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	var body io.Reader

	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		body = bytes.NewReader(payload)
	}

	endpoint := c.base.JoinPath(path)

	req, err := http.NewRequestWithContext(callCtx, method, endpoint.String(), body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.actor != "" {
		req.Header.Set(actorHeader, c.actor)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}

	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode}

		var problem struct {
			Detail string `json:"detail"`
		}

		if json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&problem) == nil {
			apiErr.Detail = problem.Detail
		}

		return apiErr
	}

	if out == nil {
		return nil
	}

	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

// callContext derives a context with the configured call timeout.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
