// Package store provides in-memory implementations of the faucet
// persistence interfaces, for testing and development.
package store

import (
	"context"
	"sync"

	"github.com/warp/faucet-engine/faucet"
)

// =============================================================================
// MEMORY STORE - In-memory TxStore + EventLog (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	commitment  faucet.Commitment
	dailyLimit  faucet.Amount
	poolBalance faucet.Amount
	quotas      map[faucet.Identity]faucet.QuotaRecord
	events      []faucet.Event
	nextEventID int64
}

func NewMemory() *Memory {
	return &Memory{
		quotas:      make(map[faucet.Identity]faucet.QuotaRecord),
		dailyLimit:  faucet.ZeroAmount(),
		poolBalance: faucet.ZeroAmount(),
		nextEventID: 1,
	}
}

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

func (m *Memory) Commitment(_ context.Context) (faucet.Commitment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.commitment, nil
}

func (m *Memory) SetCommitment(_ context.Context, c faucet.Commitment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commitment = c
	return nil
}

func (m *Memory) DailyLimit(_ context.Context) (faucet.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dailyLimit, nil
}

func (m *Memory) SetDailyLimit(_ context.Context, limit faucet.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dailyLimit = limit
	return nil
}

func (m *Memory) PoolBalance(_ context.Context) (faucet.Amount, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.poolBalance, nil
}

func (m *Memory) SetPoolBalance(_ context.Context, balance faucet.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.poolBalance = balance
	return nil
}

func (m *Memory) Quota(_ context.Context, id faucet.Identity) (faucet.QuotaRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quotas[id.Canonical()]
	if !ok {
		return faucet.ZeroQuota(), nil
	}
	return q, nil
}

func (m *Memory) SetQuota(_ context.Context, id faucet.Identity, q faucet.QuotaRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quotas[id.Canonical()] = q
	return nil
}

// -----------------------------------------------------------------------------
// TxStore
// -----------------------------------------------------------------------------

type snapshot struct {
	commitment  faucet.Commitment
	dailyLimit  faucet.Amount
	poolBalance faucet.Amount
	quotas      map[faucet.Identity]faucet.QuotaRecord
}

// WithTx snapshots the state, runs fn against the store itself, and
// restores the snapshot if fn fails. The engine serializes its operations,
// so snapshot/restore is a faithful stand-in for a database transaction.
func (m *Memory) WithTx(_ context.Context, fn func(faucet.Store) error) error {
	m.mu.Lock()
	snap := snapshot{
		commitment:  m.commitment,
		dailyLimit:  m.dailyLimit,
		poolBalance: m.poolBalance,
		quotas:      make(map[faucet.Identity]faucet.QuotaRecord, len(m.quotas)),
	}
	for id, q := range m.quotas {
		snap.quotas[id] = q
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.commitment = snap.commitment
		m.dailyLimit = snap.dailyLimit
		m.poolBalance = snap.poolBalance
		m.quotas = snap.quotas
		m.mu.Unlock()
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// EventLog
// -----------------------------------------------------------------------------

func (m *Memory) Append(_ context.Context, ev faucet.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	ev.ID = m.nextEventID
	m.nextEventID++
	m.events = append(m.events, ev)
	return nil
}

// Query returns matching events, newest first.
func (m *Memory) Query(_ context.Context, filter faucet.EventFilter) ([]faucet.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []faucet.Event
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		if !filter.Matches(ev) {
			continue
		}
		out = append(out, ev)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}
