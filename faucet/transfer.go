/*
transfer.go - External value-transfer primitive

PURPOSE:
  The engine does not move value itself; it delegates to a Transferer after
  committing its own state. The transfer boundary is adversarial: the callee
  may fail, hang on the context, or attempt to re-enter the engine. The
  engine guards against re-entry with a global claim-in-progress flag and
  rolls its state back if the transfer reports failure.

IMPLEMENTATIONS HERE:
  - TransferFunc: adapter for closures (used heavily in tests)
  - Recorder: records successful transfers for assertions

SEE ALSO:
  - engine.go: Commit-before-transfer ordering and rollback
*/
package faucet

import (
	"context"
	"sync"
)

// Transferer moves value out of the pool to a recipient. A nil error means
// the value definitively left the pool; an error means nothing moved.
type Transferer interface {
	Transfer(ctx context.Context, recipient Identity, amount Amount) error
}

// TransferFunc adapts a function to the Transferer interface.
type TransferFunc func(ctx context.Context, recipient Identity, amount Amount) error

func (f TransferFunc) Transfer(ctx context.Context, recipient Identity, amount Amount) error {
	return f(ctx, recipient, amount)
}

// TransferRecord is one completed transfer.
type TransferRecord struct {
	Recipient Identity
	Amount    Amount
}

// Recorder is a Transferer that records every transfer it is asked to make.
// If Err is set, transfers fail with it and are not recorded.
type Recorder struct {
	mu      sync.Mutex
	Err     error
	records []TransferRecord
}

func (r *Recorder) Transfer(_ context.Context, recipient Identity, amount Amount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.records = append(r.records, TransferRecord{Recipient: recipient, Amount: amount})
	return nil
}

// Records returns a copy of the completed transfers.
func (r *Recorder) Records() []TransferRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]TransferRecord, len(r.records))
	copy(out, r.records)
	return out
}

// Received sums the amounts transferred to a recipient.
func (r *Recorder) Received(recipient Identity) Amount {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := ZeroAmount()
	for _, rec := range r.records {
		if rec.Recipient == recipient.Canonical() || rec.Recipient == recipient {
			total = total.Add(rec.Amount)
		}
	}
	return total
}
