package session

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/majisafe/bridge/internal/domain"
)

// Tracker holds the single in-flight payment awaiting external wallet
// confirmation. It is a deliberate single-slot design: the deployment
// serves one physical pump per bridge, so one transaction is in flight
// at a time. Concurrent validated payments race for the slot and the
// last writer wins; keying sessions by sender is a known scaling
// follow-up, not something this tracker attempts.
type Tracker struct {
	mu         sync.Mutex
	state      domain.SessionState
	payment    domain.ValidatedPayment
	receivedAt time.Time
	txRef      string
	idleExpiry time.Duration

	now func() time.Time // test seam
}

// NewTracker creates an idle tracker. idleExpiry bounds how long an
// unconfirmed payment may block the slot; zero disables expiry.
func NewTracker(idleExpiry time.Duration) *Tracker {
	return &Tracker{
		state:      domain.SessionIdle,
		idleExpiry: idleExpiry,
		now:        time.Now,
	}
}

// Begin records a validated payment and moves the slot to
// awaiting_confirmation. An existing session in any state is overwritten.
func (t *Tracker) Begin(vp domain.ValidatedPayment) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != domain.SessionIdle {
		log.Printf("[session] overwriting %s session from %s (last writer wins)",
			t.state, t.payment.SenderID)
	}

	t.state = domain.SessionAwaiting
	t.payment = vp
	t.receivedAt = t.now()
	t.txRef = ""
}

// Confirm transitions awaiting_confirmation to confirmed and returns the
// held payment so the caller can run the remaining pipeline stages.
// Confirming an idle or expired slot fails with ErrNoPending.
func (t *Tracker) Confirm(txRef string) (domain.ValidatedPayment, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked()
	if t.state != domain.SessionAwaiting {
		return domain.ValidatedPayment{}, domain.ErrNoPending
	}

	t.state = domain.SessionConfirmed
	t.txRef = txRef
	return t.payment, nil
}

// Reset clears the slot back to idle. Called once the confirmed payment
// has been consumed by the pipeline.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = domain.SessionIdle
	t.payment = domain.ValidatedPayment{}
	t.txRef = ""
}

// Snapshot returns the current session without blocking on anything but
// the tracker's own mutex. Expiry is applied lazily here so stale
// awaiting sessions do not block new requests indefinitely.
func (t *Tracker) Snapshot() domain.SessionSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.expireLocked()
	snap := domain.SessionSnapshot{State: t.state}
	if t.state == domain.SessionIdle {
		return snap
	}

	snap.SenderID = t.payment.SenderID
	snap.DisplayAmount = fmt.Sprintf("%g %s", t.payment.Amount, t.payment.Currency)
	snap.ReceivedAt = t.receivedAt
	snap.SettlementTxRef = t.txRef
	return snap
}

// expireLocked drops an awaiting session that outlived the idle expiry.
// Caller must hold t.mu.
func (t *Tracker) expireLocked() {
	if t.idleExpiry <= 0 || t.state != domain.SessionAwaiting {
		return
	}
	if t.now().Sub(t.receivedAt) > t.idleExpiry {
		log.Printf("[session] expiring stale session from %s after %s",
			t.payment.SenderID, t.idleExpiry)
		t.state = domain.SessionIdle
		t.payment = domain.ValidatedPayment{}
		t.txRef = ""
	}
}
