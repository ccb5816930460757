package anchor

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majisafe/bridge/internal/domain"
)

func TestFingerprint(t *testing.T) {
	ual := "did:dkg:otp:2043/0xdeadbeef"
	txRef := "0xabc123"

	want := fmt.Sprintf("%x", sha256.Sum256([]byte(ual+txRef)))
	assert.Equal(t, want, Fingerprint(ual, txRef))

	// Pure and deterministic.
	assert.Equal(t, Fingerprint(ual, txRef), Fingerprint(ual, txRef))
	assert.NotEqual(t, Fingerprint(ual, txRef), Fingerprint(ual, "0xother"))
}

func TestBuild(t *testing.T) {
	rec := Build("did:dkg:otp:2043/0xdeadbeef", "0xabc123")
	assert.Equal(t, "did:dkg:otp:2043/0xdeadbeef", rec.UAL)
	assert.Equal(t, "0xabc123", rec.SettlementTxRef)
	assert.Equal(t, Fingerprint(rec.UAL, rec.SettlementTxRef), rec.Fingerprint)
	assert.False(t, rec.AnchoredAt.IsZero())
}

func TestChainSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/anchors", r.URL.Path)
		var rec domain.AnchorRecord
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		assert.NotEmpty(t, rec.Fingerprint)
		json.NewEncoder(w).Encode(map[string]string{"chain_ref": "0xchain42"})
	}))
	defer srv.Close()

	c := NewChainClient(srv.URL, 5*time.Second)
	ref, err := c.Submit(context.Background(), Build("did:dkg:otp:2043/0x1", "0xabc"))
	require.NoError(t, err)
	assert.Equal(t, "0xchain42", ref)
}

func TestChainSubmitTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewChainClient(srv.URL, 20*time.Millisecond)
	_, err := c.Submit(context.Background(), Build("did:dkg:otp:2043/0x1", "0xabc"))
	assert.ErrorIs(t, err, domain.ErrAnchorTimeout)
}

func TestChainSubmitErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rpc unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewChainClient(srv.URL, 5*time.Second)
	_, err := c.Submit(context.Background(), Build("did:dkg:otp:2043/0x1", "0xabc"))
	assert.ErrorIs(t, err, domain.ErrAnchorTimeout)
}
