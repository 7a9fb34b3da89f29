// Package adkclient is the HTTP transport to the agent server: it creates
// per-scenario sessions and runs single turns, returning the ordered event
// sequence each turn produced.
package adkclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/convocheck/convocheck/pkg/events"
)

const (
	createSessionTimeout = 10 * time.Second
	runTurnTimeout       = 90 * time.Second
)

type Client struct {
	apiBase    string
	httpClient *http.Client
}

func NewClient(apiBase string) *Client {
	return &Client{
		apiBase:    strings.TrimRight(apiBase, "/"),
		httpClient: http.DefaultClient,
	}
}

type runRequest struct {
	AppName    string  `json:"appName"`
	UserID     string  `json:"userId"`
	SessionID  string  `json:"sessionId"`
	NewMessage message `json:"newMessage"`
}

type message struct {
	Role  string        `json:"role"`
	Parts []messagePart `json:"parts"`
}

type messagePart struct {
	Text string `json:"text"`
}

// CreateSession registers a new session on the agent server. The call is
// idempotent per session id; a refusal from the server is an error.
func (c *Client) CreateSession(ctx context.Context, s Session) error {
	url := fmt.Sprintf("%s/apps/%s/users/%s/sessions/%s", c.apiBase, s.AppName, s.UserID, s.SessionID)

	ctx, cancel := context.WithTimeout(ctx, createSessionTimeout)
	defer cancel()

	if err := c.post(ctx, url, []byte("{}"), nil); err != nil {
		return fmt.Errorf("failed to create session %s: %w", s.SessionID, err)
	}

	return nil
}

// RunTurn sends one user message to the session and blocks for the full
// ordered event sequence of the turn. There are no retries: a timeout or a
// non-success status is fatal to the caller's scenario.
func (c *Client) RunTurn(ctx context.Context, s Session, text string) ([]events.Event, error) {
	body, err := json.Marshal(runRequest{
		AppName:   s.AppName,
		UserID:    s.UserID,
		SessionID: s.SessionID,
		NewMessage: message{
			Role:  "user",
			Parts: []messagePart{{Text: text}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, runTurnTimeout)
	defer cancel()

	var evs []events.Event
	if err := c.post(ctx, c.apiBase+"/run", body, &evs); err != nil {
		return nil, fmt.Errorf("failed to run turn on session %s: %w", s.SessionID, err)
	}

	return evs, nil
}

func (c *Client) post(ctx context.Context, url string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, url, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", url, err)
	}

	return nil
}
