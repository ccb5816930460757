package domain

import "time"

// AuditEntry is one step of the tamper-evident trail attached to a
// dispense record. Hash is a sha256 digest over the detail and timestamp,
// computed when the entry is appended.
type AuditEntry struct {
	ID     string    `json:"id"`
	Step   string    `json:"step"`
	Detail string    `json:"detail"`
	Hash   string    `json:"hash"`
	At     time.Time `json:"at"`
}

// PaymentDetail is the payment portion of a dispense record.
type PaymentDetail struct {
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
	SettlementTxRef string  `json:"settlement_tx_ref,omitempty"`
}

// DispenseRecord is the hashable record of one water dispensing event.
// IntegrityHash is recomputable from PumpID, Amount, Currency and
// CreatedAt alone; the Verifier relies on that.
type DispenseRecord struct {
	EventID       string        `json:"event_id"`
	PumpID        string        `json:"pump_id"`
	Liters        float64       `json:"liters"`
	Payment       PaymentDetail `json:"payment"`
	AuditTrail    []AuditEntry  `json:"audit_trail"`
	IntegrityHash string        `json:"integrity_hash"`
	CreatedAt     time.Time     `json:"created_at"`
}

// AnchorRecord binds a published record's locator to an external ledger
// transaction via a derived fingerprint. Created once, never mutated.
type AnchorRecord struct {
	UAL             string    `json:"ual"`
	SettlementTxRef string    `json:"settlement_tx_ref"`
	Fingerprint     string    `json:"fingerprint"`
	AnchoredAt      time.Time `json:"anchored_at"`
}

// StoredEvent is the durable row shape: the dispense record together with
// its registry locator and anchor state.
type StoredEvent struct {
	DispenseRecord
	UAL      string `json:"ual"`
	TokenRef string `json:"token_ref"`
	// Anchor fields. Fingerprint is always present once published;
	// ChainRef stays empty while the event is published-but-unanchored.
	Fingerprint string     `json:"fingerprint"`
	ChainRef    string     `json:"chain_ref,omitempty"`
	AnchoredAt  *time.Time `json:"anchored_at,omitempty"`
}

// EventSummary is the trimmed listing shape for the events endpoint.
type EventSummary struct {
	EventID       string    `json:"event_id"`
	PumpID        string    `json:"pump_id"`
	Liters        float64   `json:"liters"`
	Amount        float64   `json:"amount"`
	Currency      string    `json:"currency"`
	UAL           string    `json:"ual"`
	IntegrityHash string    `json:"integrity_hash"`
	Anchored      bool      `json:"anchored"`
	CreatedAt     time.Time `json:"created_at"`
}

// Summary trims a stored event for list responses.
func (e *StoredEvent) Summary() EventSummary {
	return EventSummary{
		EventID:       e.EventID,
		PumpID:        e.PumpID,
		Liters:        e.Liters,
		Amount:        e.Payment.Amount,
		Currency:      e.Payment.Currency,
		UAL:           e.UAL,
		IntegrityHash: e.IntegrityHash,
		Anchored:      e.ChainRef != "",
		CreatedAt:     e.CreatedAt,
	}
}
