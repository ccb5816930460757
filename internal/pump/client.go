// Package pump is the outbound client for the pump controller (the
// field-deployed microcontroller driving the physical dispenser).
package pump

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client sends activation commands to the pump controller.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a pump controller client with a bounded timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type activateRequest struct {
	PumpID   string `json:"pump_id"`
	Duration int    `json:"duration"`
	Command  string `json:"command"`
}

type activateResponse struct {
	Accepted bool   `json:"accepted"`
	Message  string `json:"message"`
}

// Activate asks the controller to run the given pump for durationSeconds.
// The caller treats a failure as an audit-trail fact, not a pipeline
// abort: water control problems never roll back a settled payment record.
func (c *Client) Activate(ctx context.Context, pumpID string, durationSeconds int) (bool, error) {
	body, err := json.Marshal(activateRequest{
		PumpID:   pumpID,
		Duration: durationSeconds,
		Command:  "ACTIVATE",
	})
	if err != nil {
		return false, fmt.Errorf("marshal activate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/activate", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("create activate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("activate %s: %w", pumpID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("activate %s: controller responded %d", pumpID, resp.StatusCode)
	}

	var out activateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("decode activate response: %w", err)
	}
	return out.Accepted, nil
}
