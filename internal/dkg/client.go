// Package dkg is the HTTP client for the distributed knowledge-graph
// node that stores published dispense records. The node deduplicates
// assets by event id and hands back a UAL (Universal Asset Locator) plus
// a token reference for its own accounting.
package dkg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/majisafe/bridge/internal/asset"
	"github.com/majisafe/bridge/internal/domain"
)

// Client talks to a DKG node's asset API.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a DKG client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// PublishResult is the locator pair returned for a stored asset.
type PublishResult struct {
	UAL      string `json:"ual"`
	TokenRef string `json:"token_ref"`
}

type publishRequest struct {
	Public  asset.KnowledgeAsset `json:"public"`
	Options publishOptions       `json:"options"`
}

type publishOptions struct {
	EpochsNum          int `json:"epochsNum"`
	MaxNumberOfRetries int `json:"maxNumberOfRetries"`
	Frequency          int `json:"frequency"`
}

type publishResponse struct {
	UAL               string `json:"UAL"`
	PublicAssertionID string `json:"publicAssertionId"`
}

// Publish submits a dispense record's knowledge asset to the node.
//
// Failures are classified per the caller's retry contract: network
// errors, timeouts and 5xx responses come back as RegistryUnavailable
// (retry with backoff, same event id); 4xx responses mean the payload
// itself was rejected and come back as RegistryRejected with the node's
// raw error text.
func (c *Client) Publish(ctx context.Context, rec *domain.DispenseRecord) (*PublishResult, error) {
	payload := publishRequest{
		Public: asset.Envelope(rec),
		Options: publishOptions{
			EpochsNum:          5,
			MaxNumberOfRetries: 3,
			Frequency:          1,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal publish request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/assets", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &domain.RegistryError{
			Kind:   domain.RegistryUnavailable,
			Detail: err.Error(),
		}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.RegistryError{
			Kind:   domain.RegistryUnavailable,
			Detail: "read response: " + err.Error(),
		}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// fall through to decode
	case resp.StatusCode >= 500:
		return nil, &domain.RegistryError{
			Kind:   domain.RegistryUnavailable,
			Status: resp.StatusCode,
			Detail: string(raw),
		}
	default:
		return nil, &domain.RegistryError{
			Kind:   domain.RegistryRejected,
			Status: resp.StatusCode,
			Detail: string(raw),
		}
	}

	var out publishResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &domain.RegistryError{
			Kind:   domain.RegistryRejected,
			Status: resp.StatusCode,
			Detail: "undecodable success response: " + err.Error(),
		}
	}
	if out.UAL == "" {
		return nil, &domain.RegistryError{
			Kind:   domain.RegistryRejected,
			Status: resp.StatusCode,
			Detail: "response missing UAL",
		}
	}

	return &PublishResult{UAL: out.UAL, TokenRef: out.PublicAssertionID}, nil
}

// GetAsset fetches a published knowledge asset by UAL. Returns
// domain.ErrNotFound for a 404.
func (c *Client) GetAsset(ctx context.Context, ual string) (*asset.KnowledgeAsset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.BaseURL+"/assets/"+url.PathEscape(ual), nil)
	if err != nil {
		return nil, fmt.Errorf("create asset request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &domain.RegistryError{
			Kind:   domain.RegistryUnavailable,
			Detail: err.Error(),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		return nil, &domain.RegistryError{
			Kind:   domain.RegistryUnavailable,
			Status: resp.StatusCode,
			Detail: string(raw),
		}
	}

	var ka asset.KnowledgeAsset
	if err := json.NewDecoder(resp.Body).Decode(&ka); err != nil {
		return nil, fmt.Errorf("decode asset: %w", err)
	}
	return &ka, nil
}

// IsUnavailable reports whether err is a transient registry failure.
func IsUnavailable(err error) bool {
	var re *domain.RegistryError
	return errors.As(err, &re) && re.Retryable()
}
