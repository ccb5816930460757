package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/majisafe/bridge/internal/domain"
)

// EventRepo is the append-only store of completed dispense events, keyed
// by event_id.
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// Insert appends a completed event. The event_id primary key makes the
// insert atomic under concurrency: when two pipeline runs derive the same
// id, exactly one insert succeeds and the other fails with
// domain.ErrDuplicateEvent, with no partial row visible to readers.
func (r *EventRepo) Insert(ev *domain.StoredEvent) error {
	trail, err := json.Marshal(ev.AuditTrail)
	if err != nil {
		return fmt.Errorf("marshal audit trail: %w", err)
	}

	_, err = r.db.Exec(
		`INSERT INTO water_events
		(event_id, pump_id, liters, payment_amount, payment_currency,
		 settlement_tx_ref, audit_trail, integrity_hash, ual, token_ref,
		 fingerprint, chain_ref, anchored_at, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		ev.EventID, ev.PumpID, ev.Liters, ev.Payment.Amount, ev.Payment.Currency,
		ev.Payment.SettlementTxRef, string(trail), ev.IntegrityHash, ev.UAL,
		ev.TokenRef, ev.Fingerprint, nullableString(ev.ChainRef),
		formatNullableTime(ev.AnchoredAt), ev.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateEvent
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// GetByEventID returns the event with the given id, or domain.ErrNotFound.
func (r *EventRepo) GetByEventID(eventID string) (*domain.StoredEvent, error) {
	row := r.db.QueryRow(selectColumns+" FROM water_events WHERE event_id = ?", eventID)
	return scanEvent(row.Scan)
}

// GetByUAL returns the event published under the given locator, or
// domain.ErrNotFound.
func (r *EventRepo) GetByUAL(ual string) (*domain.StoredEvent, error) {
	row := r.db.QueryRow(selectColumns+" FROM water_events WHERE ual = ?", ual)
	return scanEvent(row.Scan)
}

// ListRecent returns up to limit events, most recent first.
func (r *EventRepo) ListRecent(limit int) ([]domain.StoredEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		selectColumns+" FROM water_events ORDER BY created_at DESC, event_id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var events []domain.StoredEvent
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

// MarkAnchored records a later successful chain submission for an event
// stored published-but-unanchored.
func (r *EventRepo) MarkAnchored(eventID, chainRef string, anchoredAt time.Time) error {
	res, err := r.db.Exec(
		"UPDATE water_events SET chain_ref = ?, anchored_at = ? WHERE event_id = ?",
		chainRef, anchoredAt.UTC().Format(time.RFC3339), eventID,
	)
	if err != nil {
		return fmt.Errorf("mark anchored: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Count returns the total number of stored events.
func (r *EventRepo) Count() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM water_events").Scan(&count)
	return count, err
}

// --- helpers ---

const selectColumns = `SELECT event_id, pump_id, liters, payment_amount,
	payment_currency, settlement_tx_ref, audit_trail, integrity_hash, ual,
	token_ref, fingerprint, chain_ref, anchored_at, created_at`

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces SQLITE_CONSTRAINT_UNIQUE / _PRIMARYKEY
	// only through the message text.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func scanEvent(scan func(dest ...any) error) (*domain.StoredEvent, error) {
	var ev domain.StoredEvent
	var trail, createdAt string
	var txRef, tokenRef, chainRef, anchoredAt sql.NullString

	err := scan(
		&ev.EventID, &ev.PumpID, &ev.Liters, &ev.Payment.Amount,
		&ev.Payment.Currency, &txRef, &trail, &ev.IntegrityHash, &ev.UAL,
		&tokenRef, &ev.Fingerprint, &chainRef, &anchoredAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	ev.Payment.SettlementTxRef = txRef.String
	ev.TokenRef = tokenRef.String
	ev.ChainRef = chainRef.String
	ev.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)

	if anchoredAt.Valid {
		t, _ := time.Parse(time.RFC3339, anchoredAt.String)
		ev.AnchoredAt = &t
	}

	if err := json.Unmarshal([]byte(trail), &ev.AuditTrail); err != nil {
		return nil, fmt.Errorf("unmarshal audit trail: %w", err)
	}

	return &ev, nil
}
