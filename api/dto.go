/*
dto.go - Request/response data structures for the HTTP API

PURPOSE:
  JSON shapes exchanged with clients, plus the conversions between wire
  format (hex digests, decimal strings) and engine types.

CONVENTIONS:
  - Digests travel as 0x-prefixed hex strings
  - Amounts travel as decimal strings ("0.7"), never floats
  - Errors carry a stable machine-readable "code" so integrators can
    branch on cause without parsing messages

SEE ALSO:
  - handlers.go: Where these are produced and consumed
*/
package api

import (
	"fmt"
	"time"

	"github.com/warp/faucet-engine/faucet"
	"github.com/warp/faucet-engine/merkle"
)

// =============================================================================
// REQUESTS
// =============================================================================

// ClaimRequestDTO is the body of POST /api/claims.
type ClaimRequestDTO struct {
	Identity string   `json:"identity"`
	Amount   string   `json:"amount"`
	Proof    []string `json:"proof"`
}

// DepositRequestDTO is the body of POST /api/deposits.
type DepositRequestDTO struct {
	Sender string `json:"sender"`
	Amount string `json:"amount"`
}

// RotateRequestDTO is the body of POST /api/admin/commitment.
type RotateRequestDTO struct {
	Actor string `json:"actor"`
	Root  string `json:"root"`
	Depth uint   `json:"depth"`
}

// LimitRequestDTO is the body of POST /api/admin/limit.
type LimitRequestDTO struct {
	Actor string `json:"actor"`
	Limit string `json:"limit"`
}

// WithdrawRequestDTO is the body of POST /api/admin/withdrawals.
type WithdrawRequestDTO struct {
	Actor     string `json:"actor"`
	Recipient string `json:"recipient"`
}

// ScenarioLoadRequestDTO is the body of POST /api/scenarios/load.
type ScenarioLoadRequestDTO struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// StateDTO is the read-only engine state.
type StateDTO struct {
	Root        string `json:"root"`
	Depth       uint   `json:"depth"`
	DailyLimit  string `json:"daily_limit"`
	PoolBalance string `json:"pool_balance"`
}

// QuotaDTO is one identity's quota record.
type QuotaDTO struct {
	Identity     string `json:"identity"`
	LastClaimDay int64  `json:"last_claim_day"`
	ClaimedSoFar string `json:"claimed_so_far"`
}

// ClaimResponseDTO acknowledges a successful claim.
type ClaimResponseDTO struct {
	Identity string `json:"identity"`
	Amount   string `json:"amount"`
	Status   string `json:"status"`
}

// WithdrawResponseDTO acknowledges a successful withdrawal.
type WithdrawResponseDTO struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// EventDTO is one notification.
type EventDTO struct {
	ID       int64     `json:"id"`
	Type     string    `json:"type"`
	At       time.Time `json:"at"`
	Identity string    `json:"identity,omitempty"`
	Amount   string    `json:"amount,omitempty"`
	Root     string    `json:"root,omitempty"`
	Depth    uint      `json:"depth,omitempty"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEventDTO(ev faucet.Event) EventDTO {
	dto := EventDTO{
		ID:       ev.ID,
		Type:     string(ev.Type),
		At:       ev.At,
		Identity: string(ev.Identity),
	}
	if !ev.Amount.IsZero() {
		dto.Amount = ev.Amount.String()
	}
	if !ev.Root.IsZero() {
		dto.Root = ev.Root.String()
		dto.Depth = ev.Depth
	}
	return dto
}

func parseProof(hexes []string) ([]merkle.Digest, error) {
	proof := make([]merkle.Digest, len(hexes))
	for i, h := range hexes {
		d, err := merkle.ParseDigest(h)
		if err != nil {
			return nil, fmt.Errorf("proof sibling %d: %w", i, err)
		}
		proof[i] = d
	}
	return proof, nil
}
