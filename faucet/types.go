/*
Package faucet provides the claim-authorization engine for a custodial
value-dispensing service.

PURPOSE:
  The engine holds one pooled balance of a fungible asset and releases
  bounded amounts to members of a pre-committed allowlist. Membership is
  proven with a Merkle inclusion proof against a compact commitment, so the
  allowlist never has to be stored explicitly. Each identity is limited by a
  single global daily quota.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount:      A non-negative decimal quantity of the pooled asset
  - Identity:    A claimant address, hashed into a Merkle leaf
  - Commitment:  The published (root, depth) pair membership is proven against
  - QuotaRecord: How much an identity has drawn during its last claim day
  - DayIndex:    Wall-clock time divided by seconds-per-day

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal to avoid floating-point errors
  2. Atomicity: Every public operation commits completely or not at all
  3. Injectability: Store, clock, transfer primitive, and event log are
     all interfaces threaded through the Engine - no hidden singletons

SEE ALSO:
  - engine.go: The claim state machine
  - errors.go: The error taxonomy
  - store.go: Persistence interfaces
*/
package faucet

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/faucet-engine/merkle"
)

// =============================================================================
// AMOUNT - Non-negative decimal quantity of the pooled asset
// =============================================================================

type Amount struct {
	Value decimal.Decimal
}

func NewAmount(value float64) Amount {
	return Amount{Value: decimal.NewFromFloat(value)}
}

func NewAmountFromInt(value int64) Amount {
	return Amount{Value: decimal.NewFromInt(value)}
}

func ZeroAmount() Amount {
	return Amount{Value: decimal.Zero}
}

// ParseAmount parses a decimal string like "0.7".
func ParseAmount(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d}, nil
}

func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value)} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value)} }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) Equal(b Amount) bool       { return a.Value.Equal(b.Value) }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) String() string            { return a.Value.String() }

// =============================================================================
// IDENTITY - Claimant address
// =============================================================================

// Identity is the canonical address of a claimant. Identities are compared
// and hashed in canonical form: trimmed and lowercased.
type Identity string

// Canonical returns the normalized identity.
func (id Identity) Canonical() Identity {
	return Identity(strings.ToLower(strings.TrimSpace(string(id))))
}

// CanonicalBytes returns the bytes that are hashed into the Merkle leaf.
func (id Identity) CanonicalBytes() []byte {
	return []byte(id.Canonical())
}

// Leaf returns the identity's Merkle leaf digest.
func (id Identity) Leaf() merkle.Digest {
	return merkle.HashLeaf(id.CanonicalBytes())
}

// =============================================================================
// COMMITMENT - Published allowlist summary
// =============================================================================

// Commitment is the (root, depth) pair the registry holds. Root and depth
// always change together; a zero root means no commitment is published.
type Commitment struct {
	Root  merkle.Digest
	Depth uint
}

// IsZero reports whether no commitment has been published.
func (c Commitment) IsZero() bool {
	return c.Root.IsZero()
}

// =============================================================================
// QUOTA RECORD - Per-identity daily accounting
// =============================================================================

// QuotaRecord tracks how much an identity has drawn during the day
// identified by LastClaimDay. ClaimedSoFar is only meaningful relative to
// LastClaimDay: once the current day index passes it, the record is
// logically zero again. Records are created implicitly on first claim and
// never destroyed.
type QuotaRecord struct {
	LastClaimDay DayIndex
	ClaimedSoFar Amount
}

// ZeroQuota is the implicit state of an identity that has never claimed.
func ZeroQuota() QuotaRecord {
	return QuotaRecord{LastClaimDay: 0, ClaimedSoFar: ZeroAmount()}
}

// EffectiveAt returns the record as observed on the given day: reset to
// zero if the day has advanced past LastClaimDay, unchanged otherwise.
func (q QuotaRecord) EffectiveAt(today DayIndex) QuotaRecord {
	if q.LastClaimDay < today {
		return QuotaRecord{LastClaimDay: today, ClaimedSoFar: ZeroAmount()}
	}
	return q
}
