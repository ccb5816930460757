package asset

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/majisafe/bridge/internal/domain"
)

// HashScheme identifies the canonical serialization the integrity hash is
// computed over. Stored records carry hashes under this scheme; a future
// field-ordering change must bump it so verifiers pick the right one.
const HashScheme = "v1"

// CanonicalString renders the hashable fields of a dispense record in the
// fixed v1 ordering: pumpID | amount | currency | createdAt (RFC3339 UTC).
// Amount uses the shortest exact float form so the string is reproducible
// from the stored numeric value alone.
func CanonicalString(pumpID string, amount float64, currencyCode string, createdAt time.Time) string {
	return strings.Join([]string{
		pumpID,
		strconv.FormatFloat(amount, 'f', -1, 64),
		currencyCode,
		createdAt.UTC().Format(time.RFC3339),
	}, "|")
}

// IntegrityHash computes the sha256 digest over the canonical v1 string.
func IntegrityHash(pumpID string, amount float64, currencyCode string, createdAt time.Time) string {
	sum := sha256.Sum256([]byte(CanonicalString(pumpID, amount, currencyCode, createdAt)))
	return fmt.Sprintf("%x", sum)
}

// EventID derives the unique event key from the pump and creation time.
// Two records for the same pump within the same second collide; the event
// store's unique constraint turns that into a DuplicateEvent failure.
func EventID(pumpID string, createdAt time.Time) string {
	return fmt.Sprintf("water-%s-%d", pumpID, createdAt.Unix())
}

// NewAuditEntry appends-one-step material for the record's audit trail,
// stamping the detail with a timestamped hash.
func NewAuditEntry(step, detail string) domain.AuditEntry {
	at := time.Now().UTC()
	sum := sha256.Sum256([]byte(step + "|" + detail + "|" + at.Format(time.RFC3339Nano)))
	return domain.AuditEntry{
		ID:     uuid.NewString(),
		Step:   step,
		Detail: detail,
		Hash:   fmt.Sprintf("%x", sum),
		At:     at,
	}
}

// Builder assembles dispense records from validated payments.
type Builder struct {
	now func() time.Time
}

// NewBuilder creates a Builder using wall-clock time.
func NewBuilder() *Builder {
	return &Builder{now: time.Now}
}

// Build assembles the hashable record of a dispensing event.
func (b *Builder) Build(vp domain.ValidatedPayment, liters float64, txRef string, trail []domain.AuditEntry) *domain.DispenseRecord {
	createdAt := b.now().UTC()
	return &domain.DispenseRecord{
		EventID: EventID(vp.PumpID, createdAt),
		PumpID:  vp.PumpID,
		Liters:  liters,
		Payment: domain.PaymentDetail{
			Amount:          vp.Amount,
			Currency:        vp.Currency,
			SettlementTxRef: txRef,
		},
		AuditTrail:    trail,
		IntegrityHash: IntegrityHash(vp.PumpID, vp.Amount, vp.Currency, createdAt),
		CreatedAt:     createdAt,
	}
}
