/*
store.go - Persistence interface for engine state

PURPOSE:
  Defines the interface between the engine and the durable state substrate.
  The persisted layout is four scalar slots (commitment root+depth, daily
  limit, pool balance) plus one mapping keyed by identity (quota records).
  All of it must survive restarts without reinitialization.

ATOMICITY CONTRACT:
  Every public engine operation mutates state through WithTx, so multi-field
  changes (root+depth, balance+quota) commit as one transaction. A store
  handed to the WithTx callback is only valid for the duration of the
  callback.

DEFAULTS:
  A fresh store reads as: zero commitment, zero daily limit, zero pool
  balance, and an implicit zero quota record for every identity.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite
  - faucet/store/memory.go: In-memory for testing

SEE ALSO:
  - engine.go: The only writer
  - events.go: The notification log, persisted alongside
*/
package faucet

import "context"

// Store reads and writes the engine's persisted state.
type Store interface {
	// Commitment returns the current (root, depth). Zero root = unset.
	Commitment(ctx context.Context) (Commitment, error)

	// SetCommitment replaces root and depth together.
	SetCommitment(ctx context.Context, c Commitment) error

	// DailyLimit returns the global per-identity daily maximum.
	DailyLimit(ctx context.Context) (Amount, error)

	// SetDailyLimit replaces the daily limit.
	SetDailyLimit(ctx context.Context, limit Amount) error

	// PoolBalance returns the aggregate custodied balance.
	PoolBalance(ctx context.Context) (Amount, error)

	// SetPoolBalance replaces the pool balance.
	SetPoolBalance(ctx context.Context, balance Amount) error

	// Quota returns the identity's quota record, or the zero record if the
	// identity has never claimed.
	Quota(ctx context.Context, id Identity) (QuotaRecord, error)

	// SetQuota upserts the identity's quota record.
	SetQuota(ctx context.Context, id Identity, q QuotaRecord) error
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error, all
	// writes are rolled back; otherwise they commit together.
	WithTx(ctx context.Context, fn func(Store) error) error
}
