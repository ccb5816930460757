// Package verify re-derives integrity hashes for stored dispense records.
package verify

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/majisafe/bridge/internal/asset"
	"github.com/majisafe/bridge/internal/domain"
)

// Failure reasons reported alongside verified=false.
const (
	ReasonNotFound     = "not_found"
	ReasonHashMismatch = "hash_mismatch"
)

// Result is the outcome of a verification. Reason is empty on success.
type Result struct {
	Verified bool   `json:"verified"`
	UAL      string `json:"ual"`
	EventID  string `json:"event_id,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Store is the read side of the event store the verifier consumes.
type Store interface {
	GetByUAL(ual string) (*domain.StoredEvent, error)
}

// Registry is the fallback fetch against the record registry itself,
// used when the local store has no copy of the locator.
type Registry interface {
	GetAsset(ctx context.Context, ual string) (*asset.KnowledgeAsset, error)
}

// Verifier checks stored records against their recomputed integrity
// hashes. It never mutates state; clean results are cached by locator.
type Verifier struct {
	store    Store
	registry Registry
	cache    *lru.Cache[string, Result]
}

// New creates a Verifier. registry may be nil to disable the fallback.
func New(store Store, registry Registry, cacheSize int) (*Verifier, error) {
	if cacheSize <= 0 {
		cacheSize = 128
	}
	cache, err := lru.New[string, Result](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Verifier{store: store, registry: registry, cache: cache}, nil
}

// Verify fetches the record published under ual and recomputes its
// integrity hash from the canonical fields. verified=true only when the
// record exists and the recomputed hash matches the stored one.
func (v *Verifier) Verify(ctx context.Context, ual string) (Result, error) {
	if res, ok := v.cache.Get(ual); ok {
		return res, nil
	}

	ev, err := v.store.GetByUAL(ual)
	switch {
	case err == nil:
		res := v.check(ual, ev.EventID, ev.IntegrityHash,
			asset.IntegrityHash(ev.PumpID, ev.Payment.Amount, ev.Payment.Currency, ev.CreatedAt))
		return res, nil
	case errors.Is(err, domain.ErrNotFound):
		return v.verifyFromRegistry(ctx, ual)
	default:
		return Result{}, err
	}
}

// verifyFromRegistry handles locators the local store never saw, such as
// records published by another bridge against the same node.
func (v *Verifier) verifyFromRegistry(ctx context.Context, ual string) (Result, error) {
	if v.registry == nil {
		return Result{Verified: false, UAL: ual, Reason: ReasonNotFound}, nil
	}

	ka, err := v.registry.GetAsset(ctx, ual)
	if errors.Is(err, domain.ErrNotFound) {
		return Result{Verified: false, UAL: ual, Reason: ReasonNotFound}, nil
	}
	if err != nil {
		return Result{}, err
	}

	createdAt, perr := parseAssetTimestamp(ka.Timestamp)
	if perr != nil {
		log.Printf("[verify] asset %s carries unparsable timestamp %q", ka.ID, ka.Timestamp)
		return Result{Verified: false, UAL: ual, EventID: ka.ID, Reason: ReasonHashMismatch}, nil
	}

	pumpID := strings.TrimPrefix(ka.Location.Name, "Water Pump ")
	res := v.check(ual, ka.ID, ka.IntegrityHash,
		asset.IntegrityHash(pumpID, ka.Payment.Amount, ka.Payment.Currency, createdAt))
	return res, nil
}

func parseAssetTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func (v *Verifier) check(ual, eventID, stored, recomputed string) Result {
	if stored != recomputed {
		log.Printf("[verify] hash mismatch for %s: stored=%s recomputed=%s", eventID, stored, recomputed)
		return Result{Verified: false, UAL: ual, EventID: eventID, Reason: ReasonHashMismatch}
	}
	res := Result{Verified: true, UAL: ual, EventID: eventID}
	v.cache.Add(ual, res)
	return res
}
