// Package anchor binds published registry locators to external ledger
// transactions. The fingerprint derivation is pure; the optional on-chain
// submission is a network call with a bounded timeout whose failure never
// invalidates the already-published record.
package anchor

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/majisafe/bridge/internal/domain"
)

// Fingerprint derives the anchor digest: sha256 over the locator
// concatenated with the settlement transaction reference.
func Fingerprint(ual, settlementTxRef string) string {
	sum := sha256.Sum256([]byte(ual + settlementTxRef))
	return fmt.Sprintf("%x", sum)
}

// Build computes the anchor record for a published locator, stamped with
// the current time. No network involved.
func Build(ual, settlementTxRef string) domain.AnchorRecord {
	return domain.AnchorRecord{
		UAL:             ual,
		SettlementTxRef: settlementTxRef,
		Fingerprint:     Fingerprint(ual, settlementTxRef),
		AnchoredAt:      time.Now().UTC(),
	}
}

// ChainClient submits anchor records to the external ledger collaborator.
type ChainClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewChainClient creates a chain submitter with a bounded timeout.
func NewChainClient(baseURL string, timeout time.Duration) *ChainClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ChainClient{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type submitResponse struct {
	ChainRef string `json:"chain_ref"`
}

// Submit posts the anchor record on-chain and returns the resulting
// chain transaction reference. Timeouts and transport failures surface
// as domain.ErrAnchorTimeout: the record stays published-but-unanchored
// and anchoring can be retried independently later.
func (c *ChainClient) Submit(ctx context.Context, rec domain.AnchorRecord) (string, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal anchor record: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/anchors", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create anchor request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", domain.ErrAnchorTimeout
		}
		// Transport-level failures degrade the same way as timeouts.
		return "", fmt.Errorf("%w: %v", domain.ErrAnchorTimeout, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: chain responded %d: %s",
			domain.ErrAnchorTimeout, resp.StatusCode, string(raw))
	}

	var out submitResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode anchor response: %w", err)
	}
	return out.ChainRef, nil
}
