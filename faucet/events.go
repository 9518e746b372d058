/*
events.go - Observable notification log

PURPOSE:
  Every externally observable state change emits a notification. The log is
  the only observability surface the engine has - there is no separate
  logging inside the engine itself.

EVENT TYPES:
  commitment_rotated (root, depth)
  deposited          (sender, amount)
  dispensed          (recipient, amount)
  withdrawn          (recipient, amount)
  daily_limit_changed(new limit)

DELIVERY:
  Events are appended after the state transaction commits. Append failures
  do not undo the state change; the notification log is an observer, not a
  participant, of the ledger.

SEE ALSO:
  - engine.go: The emitter
  - api/handlers.go: GET /api/events
*/
package faucet

import (
	"context"
	"time"

	"github.com/warp/faucet-engine/merkle"
)

// EventType names a notification kind.
type EventType string

const (
	EventCommitmentRotated EventType = "commitment_rotated"
	EventDeposited         EventType = "deposited"
	EventDispensed         EventType = "dispensed"
	EventWithdrawn         EventType = "withdrawn"
	EventDailyLimitChanged EventType = "daily_limit_changed"
)

// Event is one notification. ID is assigned by the log on append.
// Identity carries the sender for deposits and the recipient for dispenses
// and withdrawals; it is empty for commitment and limit changes.
type Event struct {
	ID       int64
	Type     EventType
	At       time.Time
	Identity Identity
	Amount   Amount
	Root     merkle.Digest
	Depth    uint
}

// EventFilter selects events on query. Zero-value filter matches everything.
type EventFilter struct {
	Types    []EventType
	Identity *Identity
	Limit    int
}

// EventLog stores notifications. Append-only.
type EventLog interface {
	Append(ctx context.Context, ev Event) error
	Query(ctx context.Context, filter EventFilter) ([]Event, error)
}

// Matches reports whether ev passes the filter by type and identity.
func (f EventFilter) Matches(ev Event) bool {
	if len(f.Types) > 0 {
		ok := false
		for _, t := range f.Types {
			if ev.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if f.Identity != nil && ev.Identity != f.Identity.Canonical() {
		return false
	}
	return true
}
