package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majisafe/bridge/internal/asset"
	"github.com/majisafe/bridge/internal/dkg"
	"github.com/majisafe/bridge/internal/domain"
	"github.com/majisafe/bridge/internal/pipeline"
	"github.com/majisafe/bridge/internal/repository"
	"github.com/majisafe/bridge/internal/session"
	"github.com/majisafe/bridge/internal/verify"
)

type stubPublisher struct {
	published int
}

func (p *stubPublisher) Publish(_ context.Context, rec *domain.DispenseRecord) (*dkg.PublishResult, error) {
	p.published++
	return &dkg.PublishResult{
		UAL:      fmt.Sprintf("did:dkg:otp:2043/0xabc/%d", p.published),
		TokenRef: "0xfeed",
	}, nil
}

type stubPump struct{}

func (stubPump) Activate(_ context.Context, _ string, _ int) (bool, error) {
	return true, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *repository.EventRepo) {
	t.Helper()

	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eventRepo := repository.NewEventRepo(db)
	tracker := session.NewTracker(10 * time.Minute)

	svc := pipeline.NewService(
		tracker,
		asset.NewBuilder(),
		&stubPublisher{},
		nil,
		stubPump{},
		eventRepo,
		pipeline.Options{MinSettlementValue: 0.001, DispenseLiters: 10, DispenseSeconds: 1, PublishRetries: 1},
	)

	verifier, err := verify.New(eventRepo, nil, 16)
	require.NoError(t, err)

	router := NewRouter(svc, eventRepo, verifier, "http://localhost:8900", []string{"*"})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, eventRepo
}

func postJSON(t *testing.T, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(buf))
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func getJSON(t *testing.T, url string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestFullFlowOverHTTP(t *testing.T) {
	srv, _ := newTestServer(t)

	// Intake.
	resp, body := postJSON(t, srv.URL+"/api/v1/sms", map[string]string{
		"phone":   "+25779000001",
		"message": "PAY 5000 BIF PUMP001",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "accepted", body["status"])
	assert.Equal(t, "BIF", body["currency"])

	// Session poll shows an awaiting payment.
	resp, body = getJSON(t, srv.URL+"/api/v1/session")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "awaiting_confirmation", body["state"])
	assert.Equal(t, "+25779000001", body["sender_id"])

	// Confirmation drives the publish path.
	resp, body = postJSON(t, srv.URL+"/api/v1/confirmations", map[string]string{
		"tx_hash": "0xdeadbeef",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ual, _ := body["ual"].(string)
	assert.NotEmpty(t, ual)
	assert.NotEmpty(t, body["event_id"])
	assert.NotEmpty(t, body["integrity_hash"])
	assert.Equal(t, true, body["pump_activated"])
	assert.Equal(t, false, body["anchored"]) // no chain client wired

	// Session slot is consumed.
	_, body = getJSON(t, srv.URL+"/api/v1/session")
	assert.Equal(t, "idle", body["state"])

	// Event listing.
	resp, body = getJSON(t, srv.URL+"/api/v1/events?limit=10")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(1), body["count"])

	// Verification against the stored record.
	resp, body = getJSON(t, srv.URL+"/api/v1/verify?ual="+ual)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["verified"])

	// Status.
	resp, body = getJSON(t, srv.URL+"/api/v1/status")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "majisafe-bridge", body["service"])
	assert.Equal(t, float64(1), body["events_stored"])
}

func TestReceiveSMSParseError(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/api/v1/sms", map[string]string{
		"phone":   "+25779000001",
		"message": "HELLO WORLD",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "parse_error", body["status"])
}

func TestReceiveSMSUnsupportedCurrency(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := postJSON(t, srv.URL+"/api/v1/sms", map[string]string{
		"phone":   "+25779000001",
		"message": "PAY 5000 RWF PUMP001",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "validation_error", body["status"])
	assert.Equal(t, "unsupported_currency", body["kind"])
}

func TestConfirmWithoutPendingSession(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/api/v1/confirmations", map[string]string{
		"tx_hash": "0xdeadbeef",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestVerifyRequiresUAL(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := getJSON(t, srv.URL+"/api/v1/verify")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSMSRequiresFields(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := postJSON(t, srv.URL+"/api/v1/sms", map[string]string{"phone": "+257"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
