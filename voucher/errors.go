/*
errors.go - Centralized error taxonomy for the voucher engine

PURPOSE:
  All domain error types in one place. Packages higher in the stack (the
  lifecycle controller, the HTTP layer) match on these with errors.Is /
  errors.As instead of string comparison.

ERROR CATEGORIES:
  1. Lookup errors      - unknown voucher or station ids
  2. Validation errors  - out-of-range price/discount/amount, bad columns
  3. Transition errors  - status policy violations
  4. Approval errors    - missing inputs or failed asset generation
  5. Storage errors     - file/DB I/O failures

RETRIABILITY:
  ErrComputation and ErrAssetGeneration leave the voucher in its
  pre-transition status, so the approval step is safe to retry.
*/
package voucher

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned for unknown voucher or station ids.
	ErrNotFound = errors.New("not found")

	// ErrInvalidValue is returned for out-of-range prices, negative
	// discounts, and other rejected inputs.
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidTransition is returned when a status change violates the
	// active redemption policy.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrComputation is returned when approval cannot proceed because the
	// voucher lacks a usable amount or price after the compute step.
	ErrComputation = errors.New("missing amount or price after compute")

	// ErrAssetGeneration is returned when the external asset generator
	// fails. The voucher keeps its previous status.
	ErrAssetGeneration = errors.New("asset generation failed")

	// ErrStorageIO wraps file or database failures. The atomic-replace
	// write pattern guarantees the previous state survives these.
	ErrStorageIO = errors.New("storage I/O failure")

	// ErrUnknownColumn is returned by partial updates naming a column
	// outside the shared schema.
	ErrUnknownColumn = errors.New("unknown voucher column")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies what was looked up and missed.
type NotFoundError struct {
	Kind string // "voucher", "station", "discount"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InvalidValueError reports the offending value back to the caller.
type InvalidValueError struct {
	Field  string
	Value  string
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *InvalidValueError) Unwrap() error { return ErrInvalidValue }

// InvalidTransitionError reports a rejected status change and which policy
// mode was active at the time.
type InvalidTransitionError struct {
	VoucherID string
	From      Status
	To        Status
	Strict    bool
}

func (e *InvalidTransitionError) Error() string {
	mode := "lenient"
	if e.Strict {
		mode = "strict"
	}
	return fmt.Sprintf("voucher %s: cannot move %s -> %s (%s mode)", e.VoucherID, e.From, e.To, mode)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// StorageError wraps an underlying I/O failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return ErrStorageIO }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsClientError returns true if the error is due to invalid caller input
// rather than an engine or storage failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidValue) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnknownColumn)
}

// IsRetryable returns true when the failed operation may succeed on retry
// without operator intervention.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrAssetGeneration) || errors.Is(err, ErrStorageIO)
}
