/*
errors.go - Centralized error taxonomy for the faucet engine

PURPOSE:
  Every rejection the engine can produce, in one place. Each public
  operation either commits completely or fails with one of these named
  conditions and no state change, so integrators can branch on cause.

ERROR CATEGORIES:
  1. Claim rejections  - precondition failures on the claim path
  2. Admin rejections  - privilege and commitment validation failures
  3. Transfer failures - the external value-transfer primitive reported
     failure and the operation was rolled back

USAGE:
  Structured errors unwrap to their sentinels:

    if errors.Is(err, faucet.ErrAlreadyClaimedToday) { ... }

SEE ALSO:
  - engine.go: Where these are produced
  - api/handlers.go: HTTP status and code mapping
*/
package faucet

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRootNotSet is returned when a claim arrives before any commitment
	// has been published.
	ErrRootNotSet = errors.New("commitment root not set")

	// ErrInvalidProofLength is returned when a proof's sibling count differs
	// from the published tree depth. The check is exact, not "at most", so
	// stale proofs from before a rotation are caught here.
	ErrInvalidProofLength = errors.New("invalid proof length")

	// ErrInvalidAmount is returned for zero, negative, or over-limit amounts.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds is returned when the pool cannot cover the claim.
	ErrInsufficientFunds = errors.New("insufficient funds in pool")

	// ErrNotWhitelisted is returned when the proof does not reconstruct the
	// current root from the claimant's leaf.
	ErrNotWhitelisted = errors.New("identity not whitelisted")

	// ErrAlreadyClaimedToday is returned when a claim would push the
	// identity's drawn total past the daily limit.
	ErrAlreadyClaimedToday = errors.New("daily limit already reached")

	// ErrDispenseFailed is returned when the value-transfer primitive fails
	// during a claim. The claim is fully rolled back.
	ErrDispenseFailed = errors.New("dispense transfer failed")

	// ErrInvalidCommitment is returned when rotating to a zero root. An
	// all-zero root would trivially verify a degenerate proof and can never
	// be legitimate.
	ErrInvalidCommitment = errors.New("invalid commitment")

	// ErrNoFundsAvailable is returned when withdrawing from an empty pool.
	ErrNoFundsAvailable = errors.New("no funds available")

	// ErrWithdrawalFailed is returned when the value-transfer primitive
	// fails during a withdrawal. The withdrawal is fully rolled back.
	ErrWithdrawalFailed = errors.New("withdrawal transfer failed")

	// ErrUnauthorized is returned when a non-controller invokes a
	// privileged operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrClaimInProgress is returned when a claim re-enters the engine while
	// another claim is suspended at the transfer boundary. The guard is
	// global, not per-identity.
	ErrClaimInProgress = errors.New("claim already in progress")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidProofLengthError reports the expected and supplied sibling counts.
type InvalidProofLengthError struct {
	Got  int
	Want uint
}

func (e *InvalidProofLengthError) Error() string {
	return fmt.Sprintf("invalid proof length: got %d siblings, want %d", e.Got, e.Want)
}

func (e *InvalidProofLengthError) Unwrap() error { return ErrInvalidProofLength }

// InvalidAmountError reports why an amount was rejected.
type InvalidAmountError struct {
	Amount Amount
	Limit  Amount
	Reason string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid amount %s: %s (daily limit %s)", e.Amount, e.Reason, e.Limit)
}

func (e *InvalidAmountError) Unwrap() error { return ErrInvalidAmount }

// InsufficientFundsError reports the pool shortfall.
type InsufficientFundsError struct {
	Available Amount
	Requested Amount
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds: pool holds %s, requested %s", e.Available, e.Requested)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// QuotaExceededError reports how a claim would overrun the daily limit.
type QuotaExceededError struct {
	Identity  Identity
	Claimed   Amount
	Requested Amount
	Limit     Amount
	Day       DayIndex
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily limit reached for %s on day %d: claimed %s, requested %s, limit %s",
		e.Identity, e.Day, e.Claimed, e.Requested, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrAlreadyClaimedToday }

// TransferError wraps a failure reported by the value-transfer primitive.
// Sentinel is ErrDispenseFailed for claims, ErrWithdrawalFailed for
// withdrawals.
type TransferError struct {
	Recipient Identity
	Amount    Amount
	Sentinel  error
	Cause     error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("%v: %s to %s: %v", e.Sentinel, e.Amount, e.Recipient, e.Cause)
}

func (e *TransferError) Unwrap() error { return e.Sentinel }

// UnauthorizedError reports which actor attempted which privileged operation.
type UnauthorizedError struct {
	Actor     Identity
	Operation string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %s may not %s", e.Actor, e.Operation)
}

func (e *UnauthorizedError) Unwrap() error { return ErrUnauthorized }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to the caller's input or
// timing rather than an engine fault.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidProofLength) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrNotWhitelisted) ||
		errors.Is(err, ErrAlreadyClaimedToday) ||
		errors.Is(err, ErrInvalidCommitment) ||
		errors.Is(err, ErrUnauthorized)
}

// IsRetryable returns true if the same call might succeed later without any
// caller-side change (after a deposit, the next day, or once the
// outstanding claim finishes).
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInsufficientFunds) ||
		errors.Is(err, ErrAlreadyClaimedToday) ||
		errors.Is(err, ErrClaimInProgress) ||
		errors.Is(err, ErrNoFundsAvailable)
}
