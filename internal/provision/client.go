package provision

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Client is the call-process side of provisioning: it asks the server for
// the credentials and URLs a call needs, never holding long-lived keys
// itself.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a provisioning client against the server's base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type sessionResponse struct {
	SessionURL string `json:"sessionURL"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// GetSessionURL exchanges an assistant ID for a one-call agent socket URL.
// A failure is fatal to the call attempt; there is no automatic retry. The
// URL is single use, so the caller must dial it promptly.
func (c *Client) GetSessionURL(ctx context.Context, assistantID string) (string, error) {
	if assistantID == "" {
		return "", fmt.Errorf("assistant ID is required")
	}

	var out sessionResponse
	endpoint := c.baseURL + "/api/agent/session/" + url.PathEscape(assistantID)
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return "", fmt.Errorf("failed to provision agent session: %w", err)
	}
	if out.SessionURL == "" {
		return "", fmt.Errorf("provisioning response missing sessionURL")
	}
	return out.SessionURL, nil
}

// GetRecognitionToken fetches a credential for the recognition channels.
func (c *Client) GetRecognitionToken(ctx context.Context) (string, error) {
	var out tokenResponse
	endpoint := c.baseURL + "/api/recognition/token"
	if err := c.getJSON(ctx, endpoint, &out); err != nil {
		return "", fmt.Errorf("failed to fetch recognition token: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("provisioning response missing token")
	}
	return out.Token, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provisioning returned %d: %s", resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
