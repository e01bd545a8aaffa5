package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Config holds the connection settings for the notification API.
type Config struct {
	BaseURL      string
	SessionToken string
	UserID       string
	Timeout      time.Duration
}

// Client talks to the notification (confirm) API. It starts not ready;
// Warm flips it once the backend answers a status probe, and consumers
// gate invitation fetches on Ready.
type Client struct {
	base   string
	token  string
	userID string
	trace  string
	client *http.Client
	ready  atomic.Bool
}

// NewClient creates a notification API client.
func NewClient(cfg Config) *Client {
	return &Client{
		base:   cfg.BaseURL,
		token:  cfg.SessionToken,
		userID: cfg.UserID,
		trace:  uuid.NewString(),
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Ready reports whether the notification backend has been reached at
// least once.
func (c *Client) Ready() bool {
	return c.ready.Load()
}

// Warm probes the backend status endpoint and marks the client ready on
// success. Safe to call repeatedly.
func (c *Client) Warm(ctx context.Context) error {
	if err := c.do(ctx, http.MethodGet, "/status", nil, nil); err != nil {
		return fmt.Errorf("probing notification backend: %w", err)
	}
	c.ready.Store(true)
	return nil
}

// SentInvitations lists the invitations the session user has sent and
// that are still pending.
func (c *Client) SentInvitations(ctx context.Context) ([]Invitation, error) {
	var out []Invitation
	if err := c.do(ctx, http.MethodGet, "/confirm/invite/"+c.userID, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CancelInvitation cancels a pending invitation by identifier.
func (c *Client) CancelInvitation(ctx context.Context, id string) error {
	body := struct {
		Key string `json:"key"`
	}{Key: id}
	return c.do(ctx, http.MethodPost, "/confirm/cancel/invite", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Careloop-Session-Token", c.token)
	req.Header.Set("X-Careloop-Trace-Session", c.trace)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
