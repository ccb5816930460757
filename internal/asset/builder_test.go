package asset

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majisafe/bridge/internal/domain"
)

func TestCanonicalStringFixedOrdering(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	got := CanonicalString("PUMP001", 5000, "BIF", at)
	assert.Equal(t, "PUMP001|5000|BIF|2025-06-01T12:30:00Z", got)

	// Non-UTC input normalizes to the same canonical form.
	lagos := time.FixedZone("WAT", 3600)
	same := CanonicalString("PUMP001", 5000, "BIF", at.In(lagos))
	assert.Equal(t, got, same)
}

func TestIntegrityHashDeterministic(t *testing.T) {
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	h1 := IntegrityHash("PUMP001", 5000, "BIF", at)
	h2 := IntegrityHash("PUMP001", 5000, "BIF", at)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)

	// Any field change changes the digest.
	assert.NotEqual(t, h1, IntegrityHash("PUMP002", 5000, "BIF", at))
	assert.NotEqual(t, h1, IntegrityHash("PUMP001", 5001, "BIF", at))
	assert.NotEqual(t, h1, IntegrityHash("PUMP001", 5000, "USD", at))
	assert.NotEqual(t, h1, IntegrityHash("PUMP001", 5000, "BIF", at.Add(time.Second)))
}

func TestEventID(t *testing.T) {
	at := time.Unix(1748780000, 0)
	assert.Equal(t, "water-PUMP001-1748780000", EventID("PUMP001", at))
}

func TestBuildRecord(t *testing.T) {
	b := NewBuilder()
	fixed := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	vp := domain.ValidatedPayment{
		PaymentRequest: domain.PaymentRequest{
			SenderID: "+257001", Amount: 5000, Currency: "BIF", PumpID: "PUMP001",
		},
		SettlementValue: 0.001735,
	}
	trail := []domain.AuditEntry{NewAuditEntry("payment_validated", "5000 BIF")}

	rec := b.Build(vp, 10, "0xabc", trail)
	require.NotNil(t, rec)
	assert.Equal(t, "water-PUMP001-1748781000", rec.EventID)
	assert.Equal(t, 10.0, rec.Liters)
	assert.Equal(t, "0xabc", rec.Payment.SettlementTxRef)
	assert.Equal(t, trail, rec.AuditTrail)
	assert.Equal(t, IntegrityHash("PUMP001", 5000, "BIF", fixed), rec.IntegrityHash)
	assert.True(t, rec.CreatedAt.Equal(fixed))
}

func TestNewAuditEntry(t *testing.T) {
	e := NewAuditEntry("pump_activated", "PUMP001 for 10s")
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "pump_activated", e.Step)
	assert.Len(t, e.Hash, 64)
	assert.False(t, e.At.IsZero())
}

func TestEnvelopeShape(t *testing.T) {
	b := NewBuilder()
	vp := domain.ValidatedPayment{
		PaymentRequest: domain.PaymentRequest{
			SenderID: "+257001", Amount: 5000, Currency: "BIF", PumpID: "PUMP001",
		},
	}
	rec := b.Build(vp, 10, "0xabc", nil)

	env := Envelope(rec)
	assert.Equal(t, "WaterDispenseEvent", env.Type)
	assert.Equal(t, rec.EventID, env.ID)
	assert.Equal(t, rec.IntegrityHash, env.IntegrityHash)
	assert.Equal(t, HashScheme, env.HashScheme)
	assert.Equal(t, "LTR", env.Dispensed.UnitCode)
}
