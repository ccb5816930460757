package domain

import "time"

// PaymentRequest is a parsed SMS payment command. Immutable once parsed.
type PaymentRequest struct {
	SenderID string  `json:"sender_id"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	PumpID   string  `json:"pump_id"`
}

// ValidatedPayment is a PaymentRequest that passed currency-support and
// minimum-value checks, plus its value converted into the settlement unit.
type ValidatedPayment struct {
	PaymentRequest
	SettlementValue float64 `json:"settlement_value"`
}

// SessionState is the lifecycle state of the single pending-payment slot.
type SessionState string

const (
	SessionIdle      SessionState = "idle"
	SessionAwaiting  SessionState = "awaiting_confirmation"
	SessionConfirmed SessionState = "confirmed"
)

// SessionSnapshot is a non-blocking read of the pending-payment slot,
// shaped for the wallet UI polling endpoint.
type SessionSnapshot struct {
	State           SessionState `json:"state"`
	SenderID        string       `json:"sender_id,omitempty"`
	DisplayAmount   string       `json:"display_amount,omitempty"`
	ReceivedAt      time.Time    `json:"received_at,omitempty"`
	SettlementTxRef string       `json:"settlement_tx_ref,omitempty"`
}
