/*
engine.go - The claim-authorization engine

PURPOSE:
  One Engine owns one pooled balance, one commitment, one global daily
  limit, and the per-identity quota records. All public operations execute
  as indivisible, fully-ordered transactions: the engine mutex serializes
  them, and the store transaction makes the durable writes all-or-nothing.

CLAIM ORDERING (the reentrancy defense):
  1. Validate every precondition and compute the post-claim state.
  2. Commit quota + balance to the store, mark a claim in progress,
     RELEASE the engine mutex.
  3. Invoke the external transfer primitive. Any re-entrant claim now
     observes committed state and a set claim-in-progress flag, so it is
     rejected - it can never double-draw against the pre-transfer snapshot.
  4. Re-acquire the mutex. On transfer failure, write a compensating
     transaction restoring the exact prior quota record and crediting the
     amount back to the pool.

DAY ROLLOVER:
  Lazy. The effective quota record is computed in memory; the reset is only
  persisted together with a successful claim, so a failed claim leaves
  lastClaimDay and claimedSoFar byte-for-byte unchanged.

SEE ALSO:
  - errors.go: The rejection taxonomy
  - store.go: The persistence contract
  - transfer.go: The adversarial boundary
*/
package faucet

import (
	"context"
	"sync"

	"github.com/warp/faucet-engine/merkle"
)

// Engine is the claim-authorization engine. Construct with NewEngine.
type Engine struct {
	store      TxStore
	events     EventLog
	clock      Clock
	transfer   Transferer
	controller Identity

	mu       sync.Mutex
	claiming bool
}

// NewEngine wires an engine. The controller is the single privileged
// identity allowed to rotate commitments, change the limit, and withdraw.
func NewEngine(store TxStore, events EventLog, clock Clock, transfer Transferer, controller Identity) *Engine {
	return &Engine{
		store:      store,
		events:     events,
		clock:      clock,
		transfer:   transfer,
		controller: controller.Canonical(),
	}
}

// =============================================================================
// COMMITMENT REGISTRY
// =============================================================================

// Rotate publishes a new commitment, replacing root and depth atomically.
// Controller only. A zero root is rejected: it would trivially verify a
// degenerate proof.
func (e *Engine) Rotate(ctx context.Context, actor Identity, root merkle.Digest, depth uint) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(actor, "rotate commitment"); err != nil {
		return err
	}
	if root.IsZero() {
		return ErrInvalidCommitment
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		return s.SetCommitment(ctx, Commitment{Root: root, Depth: depth})
	})
	if err != nil {
		return err
	}

	e.emit(ctx, Event{Type: EventCommitmentRotated, Root: root, Depth: depth})
	return nil
}

// Commitment returns the current (root, depth).
func (e *Engine) Commitment(ctx context.Context) (Commitment, error) {
	return e.store.Commitment(ctx)
}

// =============================================================================
// DAILY LIMIT
// =============================================================================

// SetDailyLimit replaces the global per-identity daily maximum. Controller
// only. Zero is accepted (global freeze). Lowering the limit below an
// identity's accrued claimedSoFar simply blocks further claims that day;
// past state is never reconciled.
func (e *Engine) SetDailyLimit(ctx context.Context, actor Identity, limit Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.authorize(actor, "set daily limit"); err != nil {
		return err
	}
	if limit.IsNegative() {
		return &InvalidAmountError{Amount: limit, Reason: "limit must not be negative"}
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		return s.SetDailyLimit(ctx, limit)
	})
	if err != nil {
		return err
	}

	e.emit(ctx, Event{Type: EventDailyLimitChanged, Amount: limit})
	return nil
}

// DailyLimit returns the current daily limit.
func (e *Engine) DailyLimit(ctx context.Context) (Amount, error) {
	return e.store.DailyLimit(ctx)
}

// =============================================================================
// CLAIM - The state machine
// =============================================================================

// Claim verifies membership and quota for the claimant and, if every
// precondition passes, debits the pool and dispenses the amount through the
// transfer primitive. Preconditions are checked in a fixed order and the
// first failure aborts with no state change.
func (e *Engine) Claim(ctx context.Context, claimant Identity, amount Amount, proof []merkle.Digest) error {
	claimant = claimant.Canonical()

	e.mu.Lock()
	if e.claiming {
		e.mu.Unlock()
		return ErrClaimInProgress
	}

	prior, err := e.checkAndDebit(ctx, claimant, amount, proof)
	if err != nil {
		e.mu.Unlock()
		return err
	}

	// State is committed. Mark the claim outstanding and release the lock
	// before handing control to the transfer primitive so a re-entrant
	// claim reaches the guard instead of deadlocking.
	e.claiming = true
	e.mu.Unlock()

	transferErr := e.transfer.Transfer(ctx, claimant, amount)

	e.mu.Lock()
	e.claiming = false
	if transferErr != nil {
		rollbackErr := e.store.WithTx(ctx, func(s Store) error {
			if err := s.SetQuota(ctx, claimant, prior); err != nil {
				return err
			}
			balance, err := s.PoolBalance(ctx)
			if err != nil {
				return err
			}
			return s.SetPoolBalance(ctx, balance.Add(amount))
		})
		e.mu.Unlock()
		if rollbackErr != nil {
			// The debit is stranded until the store recovers. Surface the
			// store failure; the transfer failure is still the sentinel.
			return &TransferError{Recipient: claimant, Amount: amount, Sentinel: ErrDispenseFailed, Cause: rollbackErr}
		}
		return &TransferError{Recipient: claimant, Amount: amount, Sentinel: ErrDispenseFailed, Cause: transferErr}
	}
	e.mu.Unlock()

	e.emit(ctx, Event{Type: EventDispensed, Identity: claimant, Amount: amount})
	return nil
}

// checkAndDebit runs the ordered precondition checks and, on success,
// commits the quota increment and pool debit in one store transaction.
// It returns the claimant's quota record as stored before the claim, for
// use in a compensating rollback. Caller holds e.mu.
func (e *Engine) checkAndDebit(ctx context.Context, claimant Identity, amount Amount, proof []merkle.Digest) (QuotaRecord, error) {
	var prior QuotaRecord

	err := e.store.WithTx(ctx, func(s Store) error {
		// 1. A commitment must be published.
		commitment, err := s.Commitment(ctx)
		if err != nil {
			return err
		}
		if commitment.IsZero() {
			return ErrRootNotSet
		}

		// 2. Exact proof length.
		if uint(len(proof)) != commitment.Depth {
			return &InvalidProofLengthError{Got: len(proof), Want: commitment.Depth}
		}

		// 3. Amount is positive and within the daily limit.
		limit, err := s.DailyLimit(ctx)
		if err != nil {
			return err
		}
		if !amount.IsPositive() {
			return &InvalidAmountError{Amount: amount, Limit: limit, Reason: "amount must be positive"}
		}
		if amount.GreaterThan(limit) {
			return &InvalidAmountError{Amount: amount, Limit: limit, Reason: "amount exceeds daily limit"}
		}

		// 4. The pool can cover it.
		balance, err := s.PoolBalance(ctx)
		if err != nil {
			return err
		}
		if balance.LessThan(amount) {
			return &InsufficientFundsError{Available: balance, Requested: amount}
		}

		// 5. Membership.
		if !merkle.Verify(claimant.Leaf(), proof, commitment.Root) {
			return ErrNotWhitelisted
		}

		// 6+7. Lazy day rollover and quota headroom. The rollover is
		// computed in memory so a failure here persists nothing.
		prior, err = s.Quota(ctx, claimant)
		if err != nil {
			return err
		}
		today := DayOf(e.clock.Now())
		effective := prior.EffectiveAt(today)
		drawn := effective.ClaimedSoFar.Add(amount)
		if drawn.GreaterThan(limit) {
			return &QuotaExceededError{
				Identity:  claimant,
				Claimed:   effective.ClaimedSoFar,
				Requested: amount,
				Limit:     limit,
				Day:       today,
			}
		}

		// Commit.
		if err := s.SetQuota(ctx, claimant, QuotaRecord{LastClaimDay: today, ClaimedSoFar: drawn}); err != nil {
			return err
		}
		return s.SetPoolBalance(ctx, balance.Sub(amount))
	})
	if err != nil {
		return QuotaRecord{}, err
	}
	return prior, nil
}

// =============================================================================
// DEPOSIT / WITHDRAWAL
// =============================================================================

// Deposit credits the pool. Any caller. Zero-value deposits are accepted
// but emit no notification.
func (e *Engine) Deposit(ctx context.Context, sender Identity, amount Amount) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount.IsNegative() {
		return &InvalidAmountError{Amount: amount, Reason: "deposit must not be negative"}
	}
	if amount.IsZero() {
		return nil
	}

	err := e.store.WithTx(ctx, func(s Store) error {
		balance, err := s.PoolBalance(ctx)
		if err != nil {
			return err
		}
		return s.SetPoolBalance(ctx, balance.Add(amount))
	})
	if err != nil {
		return err
	}

	e.emit(ctx, Event{Type: EventDeposited, Identity: sender.Canonical(), Amount: amount})
	return nil
}

// WithdrawAll moves the entire pool balance to recipient. Controller only.
// Follows the same commit-before-transfer ordering as Claim: the pool is
// zeroed first, and restored with a compensating transaction if the
// transfer fails.
func (e *Engine) WithdrawAll(ctx context.Context, actor Identity, recipient Identity) (Amount, error) {
	recipient = recipient.Canonical()

	e.mu.Lock()
	if err := e.authorize(actor, "withdraw"); err != nil {
		e.mu.Unlock()
		return Amount{}, err
	}

	var withdrawn Amount
	err := e.store.WithTx(ctx, func(s Store) error {
		balance, err := s.PoolBalance(ctx)
		if err != nil {
			return err
		}
		if balance.IsZero() {
			return ErrNoFundsAvailable
		}
		withdrawn = balance
		return s.SetPoolBalance(ctx, ZeroAmount())
	})
	if err != nil {
		e.mu.Unlock()
		return Amount{}, err
	}
	e.mu.Unlock()

	transferErr := e.transfer.Transfer(ctx, recipient, withdrawn)
	if transferErr != nil {
		e.mu.Lock()
		rollbackErr := e.store.WithTx(ctx, func(s Store) error {
			balance, err := s.PoolBalance(ctx)
			if err != nil {
				return err
			}
			return s.SetPoolBalance(ctx, balance.Add(withdrawn))
		})
		e.mu.Unlock()
		if rollbackErr != nil {
			return Amount{}, &TransferError{Recipient: recipient, Amount: withdrawn, Sentinel: ErrWithdrawalFailed, Cause: rollbackErr}
		}
		return Amount{}, &TransferError{Recipient: recipient, Amount: withdrawn, Sentinel: ErrWithdrawalFailed, Cause: transferErr}
	}

	e.emit(ctx, Event{Type: EventWithdrawn, Identity: recipient, Amount: withdrawn})
	return withdrawn, nil
}

// =============================================================================
// READ-ONLY STATE
// =============================================================================

// PoolBalance returns the aggregate custodied balance.
func (e *Engine) PoolBalance(ctx context.Context) (Amount, error) {
	return e.store.PoolBalance(ctx)
}

// QuotaOf returns the stored quota record for an identity. The record is
// returned as persisted; it is NOT lazily reset for the current day.
func (e *Engine) QuotaOf(ctx context.Context, id Identity) (QuotaRecord, error) {
	return e.store.Quota(ctx, id.Canonical())
}

// Controller returns the privileged identity.
func (e *Engine) Controller() Identity {
	return e.controller
}

// =============================================================================
// INTERNAL
// =============================================================================

func (e *Engine) authorize(actor Identity, operation string) error {
	if actor.Canonical() != e.controller {
		return &UnauthorizedError{Actor: actor, Operation: operation}
	}
	return nil
}

// emit appends a notification. Best-effort: the state change it describes
// has already committed.
func (e *Engine) emit(ctx context.Context, ev Event) {
	if e.events == nil {
		return
	}
	ev.At = e.clock.Now()
	_ = e.events.Append(ctx, ev)
}
