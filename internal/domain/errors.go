package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline stages.
var (
	ErrDuplicateEvent = errors.New("duplicate event id")
	ErrNotFound       = errors.New("not found")
	ErrNoPending      = errors.New("no pending payment awaiting confirmation")
	ErrAnchorTimeout  = errors.New("ledger anchor submission timed out")
)

// ParseError reports a malformed SMS command. It is user-correctable and
// distinct from a validation failure.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse error: " + e.Reason
}

// ValidationKind classifies why a well-formed command was rejected.
type ValidationKind string

const (
	UnsupportedCurrency ValidationKind = "unsupported_currency"
	InsufficientAmount  ValidationKind = "insufficient_amount"
	InvalidPump         ValidationKind = "invalid_pump"
)

// ValidationError reports a rejected payment with an actionable detail
// message for the sender.
type ValidationError struct {
	Kind   ValidationKind
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Kind, e.Detail)
}

// RegistryErrorKind separates transient registry failures (retryable with
// backoff) from payload rejections (not retryable without modification).
type RegistryErrorKind string

const (
	RegistryUnavailable RegistryErrorKind = "registry_unavailable"
	RegistryRejected    RegistryErrorKind = "registry_rejected"
)

// RegistryError carries the registry's raw error text along with its
// retry classification.
type RegistryError struct {
	Kind   RegistryErrorKind
	Status int
	Detail string
}

func (e *RegistryError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// Retryable reports whether the caller may retry the publish unchanged.
func (e *RegistryError) Retryable() bool {
	return e.Kind == RegistryUnavailable
}
