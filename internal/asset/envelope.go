package asset

import "github.com/majisafe/bridge/internal/domain"

// KnowledgeAsset is the JSON-LD envelope published to the distributed
// record registry.
type KnowledgeAsset struct {
	Context       []string            `json:"@context"`
	Type          string              `json:"@type"`
	ID            string              `json:"@id"`
	Name          string              `json:"name"`
	Location      Place               `json:"location"`
	Dispensed     Quantity            `json:"waterDispensed"`
	Payment       PaymentEvent        `json:"payment"`
	AuditTrail    []domain.AuditEntry `json:"auditTrail"`
	IntegrityHash string              `json:"verificationHash"`
	HashScheme    string              `json:"verificationScheme"`
	Timestamp     string              `json:"timestamp"`
}

type Place struct {
	Type string `json:"@type"`
	Name string `json:"name"`
}

type Quantity struct {
	Type     string  `json:"@type"`
	Value    float64 `json:"value"`
	UnitCode string  `json:"unitCode"`
}

type PaymentEvent struct {
	Type     string  `json:"@type"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
	TxHash   string  `json:"txHash,omitempty"`
}

// Envelope wraps a dispense record in its registry publication shape.
func Envelope(rec *domain.DispenseRecord) KnowledgeAsset {
	return KnowledgeAsset{
		Context: []string{"https://schema.org/", "https://www.w3.org/ns/dkg#"},
		Type:    "WaterDispenseEvent",
		ID:      rec.EventID,
		Name:    "Water Dispensed at " + rec.PumpID,
		Location: Place{
			Type: "Place",
			Name: "Water Pump " + rec.PumpID,
		},
		Dispensed: Quantity{
			Type:     "QuantitativeValue",
			Value:    rec.Liters,
			UnitCode: "LTR",
		},
		Payment: PaymentEvent{
			Type:     "PaymentEvent",
			Amount:   rec.Payment.Amount,
			Currency: rec.Payment.Currency,
			TxHash:   rec.Payment.SettlementTxRef,
		},
		AuditTrail:    rec.AuditTrail,
		IntegrityHash: rec.IntegrityHash,
		HashScheme:    HashScheme,
		Timestamp:     rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
