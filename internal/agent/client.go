// Package agent talks to the remote conversational-agent webhook.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// Request is the webhook wire contract. SessionID is empty on the first
// message of a conversation.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// Response carries the agent's reply and the session token to persist.
type Response struct {
	AgentMessage string `json:"agentMessage"`
	SessionID    string `json:"sessionId"`
}

// wireResponse tolerates the legacy "sessionID" field name some webhook
// versions emit. Normalization happens here so the rest of the code only
// ever sees SessionID.
type wireResponse struct {
	AgentMessage    string `json:"agentMessage"`
	SessionID       string `json:"sessionId"`
	LegacySessionID string `json:"sessionID"`
}

// Gateway sends messages to a conversational agent.
type Gateway interface {
	Send(ctx context.Context, req Request) (*Response, error)
}

// Client implements Gateway over a fixed webhook URL.
type Client struct {
	url    string
	client *http.Client
}

// NewClient creates a webhook client. A zero timeout falls back to 15s.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the message and decodes the agent's reply. Any transport error,
// timeout or non-2xx status is a single failure class for the caller.
func (c *Client) Send(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	var wire wireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	out := &Response{
		AgentMessage: wire.AgentMessage,
		SessionID:    wire.SessionID,
	}
	if out.SessionID == "" {
		out.SessionID = wire.LegacySessionID
	}
	return out, nil
}
