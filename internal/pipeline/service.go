// Package pipeline orchestrates the payment intake and the
// confirmation-driven publish flow. Intake (parse, validate, hold the
// session) returns immediately so the SMS round-trip stays fast; the
// slow registry and ledger work runs when the wallet collaborator
// reports settlement confirmation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/majisafe/bridge/internal/anchor"
	"github.com/majisafe/bridge/internal/asset"
	"github.com/majisafe/bridge/internal/dkg"
	"github.com/majisafe/bridge/internal/domain"
	"github.com/majisafe/bridge/internal/ingestion"
	"github.com/majisafe/bridge/internal/session"
)

// Publisher submits dispense records to the record registry.
type Publisher interface {
	Publish(ctx context.Context, rec *domain.DispenseRecord) (*dkg.PublishResult, error)
}

// ChainSubmitter anchors records on the external ledger.
type ChainSubmitter interface {
	Submit(ctx context.Context, rec domain.AnchorRecord) (string, error)
}

// PumpController drives the physical dispenser.
type PumpController interface {
	Activate(ctx context.Context, pumpID string, durationSeconds int) (bool, error)
}

// EventStore is the durable side of the pipeline.
type EventStore interface {
	Insert(ev *domain.StoredEvent) error
	GetByEventID(eventID string) (*domain.StoredEvent, error)
	MarkAnchored(eventID, chainRef string, anchoredAt time.Time) error
}

// Options are the tunables the pipeline runs with.
type Options struct {
	MinSettlementValue float64
	DispenseLiters     float64
	DispenseSeconds    int
	PublishRetries     int
	PublishBackoff     time.Duration
}

// Service wires the pipeline stages together.
type Service struct {
	tracker   *session.Tracker
	builder   *asset.Builder
	publisher Publisher
	chain     ChainSubmitter // nil disables on-chain submission
	pump      PumpController
	store     EventStore
	opts      Options
}

// NewService creates the pipeline service.
func NewService(
	tracker *session.Tracker,
	builder *asset.Builder,
	publisher Publisher,
	chain ChainSubmitter,
	pump PumpController,
	store EventStore,
	opts Options,
) *Service {
	if opts.PublishRetries < 1 {
		opts.PublishRetries = 1
	}
	if opts.DispenseSeconds <= 0 {
		opts.DispenseSeconds = 10
	}
	if opts.DispenseLiters <= 0 {
		opts.DispenseLiters = 10
	}
	return &Service{
		tracker:   tracker,
		builder:   builder,
		publisher: publisher,
		chain:     chain,
		pump:      pump,
		store:     store,
		opts:      opts,
	}
}

// Accepted is the fast-path intake response.
type Accepted struct {
	DisplayAmount string `json:"display_amount"`
	Currency      string `json:"currency"`
}

// HandleCommand parses and validates an inbound SMS payment command. On
// success the payment is parked in the session tracker awaiting external
// confirmation and the caller gets an immediate acknowledgement.
//
// Failures are *domain.ParseError or *domain.ValidationError; the detail
// text is safe to relay back to the sender.
func (s *Service) HandleCommand(senderID, text string) (*Accepted, error) {
	req, err := ingestion.ParseCommand(senderID, text)
	if err != nil {
		log.Printf("[pipeline] rejected command from %s: %v", senderID, err)
		return nil, err
	}

	vp, err := ingestion.Validate(req, s.opts.MinSettlementValue)
	if err != nil {
		log.Printf("[pipeline] rejected payment from %s: %v", senderID, err)
		return nil, err
	}

	s.tracker.Begin(*vp)
	log.Printf("[pipeline] payment from %s parked awaiting confirmation: %g %s -> %s (settlement %.6f)",
		senderID, vp.Amount, vp.Currency, vp.PumpID, vp.SettlementValue)

	return &Accepted{
		DisplayAmount: fmt.Sprintf("%g %s", vp.Amount, vp.Currency),
		Currency:      vp.Currency,
	}, nil
}

// ConfirmResult is the outcome of a completed confirmation flow.
type ConfirmResult struct {
	EventID       string `json:"event_id"`
	UAL           string `json:"ual"`
	TokenRef      string `json:"token_ref"`
	IntegrityHash string `json:"integrity_hash"`
	Anchored      bool   `json:"anchored"`
	PumpActivated bool   `json:"pump_activated"`
}

// HandleConfirmation consumes the pending session once the wallet
// collaborator reports a settlement transaction, then runs the remaining
// stages: pump activation, record build, registry publish (with retry on
// transient failures), ledger anchoring and durable storage.
//
// An anchor timeout degrades gracefully: the record stays published and
// stored unanchored, and anchoring can be retried via RetryAnchor.
func (s *Service) HandleConfirmation(ctx context.Context, settlementTxRef string) (*ConfirmResult, error) {
	vp, err := s.tracker.Confirm(settlementTxRef)
	if err != nil {
		return nil, err
	}
	// The session is consumed whether or not the rest succeeds; a failed
	// publish is surfaced to the caller, not silently retried later.
	defer s.tracker.Reset()

	log.Printf("[pipeline] settlement confirmed for %s: %s", vp.SenderID, settlementTxRef)

	trail := []domain.AuditEntry{
		asset.NewAuditEntry("sms_received",
			fmt.Sprintf("PAY %g %s %s from %s", vp.Amount, vp.Currency, vp.PumpID, vp.SenderID)),
		asset.NewAuditEntry("payment_validated",
			fmt.Sprintf("settlement value %.6f", vp.SettlementValue)),
		asset.NewAuditEntry("settlement_confirmed", settlementTxRef),
	}

	liters := s.opts.DispenseLiters
	activated, err := s.pump.Activate(ctx, vp.PumpID, s.opts.DispenseSeconds)
	if err != nil || !activated {
		// Actuation problems are recorded, never fatal: the payment is
		// already settled and the record must still be produced.
		detail := fmt.Sprintf("pump %s did not accept activation", vp.PumpID)
		if err != nil {
			detail = fmt.Sprintf("pump %s activation failed: %v", vp.PumpID, err)
		}
		log.Printf("[pipeline] %s", detail)
		trail = append(trail, asset.NewAuditEntry("pump_activation_failed", detail))
		activated = false
		liters = 0
	} else {
		trail = append(trail, asset.NewAuditEntry("pump_activated",
			fmt.Sprintf("pump %s running for %ds", vp.PumpID, s.opts.DispenseSeconds)))
	}

	rec := s.builder.Build(vp, liters, settlementTxRef, trail)

	pub, err := s.publishWithRetry(ctx, rec)
	if err != nil {
		return nil, err
	}

	anchorRec := anchor.Build(pub.UAL, settlementTxRef)
	chainRef := ""
	anchored := false
	if s.chain != nil {
		chainRef, err = s.chain.Submit(ctx, anchorRec)
		if err != nil {
			log.Printf("[pipeline] anchor submission for %s degraded: %v", rec.EventID, err)
			rec.AuditTrail = append(rec.AuditTrail,
				asset.NewAuditEntry("anchor_timeout", err.Error()))
		} else {
			anchored = true
			rec.AuditTrail = append(rec.AuditTrail,
				asset.NewAuditEntry("anchor_submitted", chainRef))
		}
	}

	stored := &domain.StoredEvent{
		DispenseRecord: *rec,
		UAL:            pub.UAL,
		TokenRef:       pub.TokenRef,
		Fingerprint:    anchorRec.Fingerprint,
		ChainRef:       chainRef,
	}
	if anchored {
		at := anchorRec.AnchoredAt
		stored.AnchoredAt = &at
	}

	if err := s.store.Insert(stored); err != nil {
		if errors.Is(err, domain.ErrDuplicateEvent) {
			s.reportDuplicate(rec.EventID, pub.UAL)
			return nil, domain.ErrDuplicateEvent
		}
		return nil, fmt.Errorf("store event: %w", err)
	}

	log.Printf("[pipeline] event %s stored: ual=%s anchored=%t", rec.EventID, pub.UAL, anchored)

	return &ConfirmResult{
		EventID:       rec.EventID,
		UAL:           pub.UAL,
		TokenRef:      pub.TokenRef,
		IntegrityHash: rec.IntegrityHash,
		Anchored:      anchored,
		PumpActivated: activated,
	}, nil
}

// publishWithRetry retries transient registry failures with linear
// backoff, reusing the same event id so the registry can deduplicate.
func (s *Service) publishWithRetry(ctx context.Context, rec *domain.DispenseRecord) (*dkg.PublishResult, error) {
	var lastErr error
	for attempt := 1; attempt <= s.opts.PublishRetries; attempt++ {
		pub, err := s.publisher.Publish(ctx, rec)
		if err == nil {
			return pub, nil
		}
		lastErr = err
		if !dkg.IsUnavailable(err) {
			return nil, err
		}
		log.Printf("[pipeline] publish attempt %d/%d for %s failed: %v",
			attempt, s.opts.PublishRetries, rec.EventID, err)
		if attempt < s.opts.PublishRetries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * s.opts.PublishBackoff):
			}
		}
	}
	return nil, lastErr
}

// reportDuplicate checks whether a duplicate event id also disagrees on
// its locator, which would mean the registry handed out two locators for
// the same event. That inconsistency is logged, never silently accepted.
func (s *Service) reportDuplicate(eventID, newUAL string) {
	existing, err := s.store.GetByEventID(eventID)
	if err != nil {
		log.Printf("[pipeline] duplicate event %s (could not load existing row: %v)", eventID, err)
		return
	}
	if existing.UAL != newUAL {
		log.Printf("[pipeline] INCONSISTENCY: event %s has locator %s stored but registry returned %s",
			eventID, existing.UAL, newUAL)
		return
	}
	log.Printf("[pipeline] duplicate event %s (same locator, request replayed)", eventID)
}

// RetryAnchor re-submits the ledger anchor for a stored event that is
// published but unanchored.
func (s *Service) RetryAnchor(ctx context.Context, eventID string) (*domain.StoredEvent, error) {
	ev, err := s.store.GetByEventID(eventID)
	if err != nil {
		return nil, err
	}
	if ev.ChainRef != "" {
		return ev, nil
	}
	if s.chain == nil {
		return nil, domain.ErrAnchorTimeout
	}

	anchorRec := anchor.Build(ev.UAL, ev.Payment.SettlementTxRef)
	chainRef, err := s.chain.Submit(ctx, anchorRec)
	if err != nil {
		return nil, err
	}

	if err := s.store.MarkAnchored(eventID, chainRef, anchorRec.AnchoredAt); err != nil {
		return nil, err
	}

	ev.ChainRef = chainRef
	at := anchorRec.AnchoredAt
	ev.AnchoredAt = &at
	log.Printf("[pipeline] event %s anchored on retry: %s", eventID, chainRef)
	return ev, nil
}

// Session exposes the tracker snapshot for the status-poll endpoint.
func (s *Service) Session() domain.SessionSnapshot {
	return s.tracker.Snapshot()
}
