/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Pre-built scenarios that put the engine into a realistic state for demos:
  publish a commitment over a small allowlist, fund the pool, and set a
  daily limit. Members' proofs are returned so a demo client can claim
  immediately.

AVAILABLE SCENARIOS:
  small-faucet:  Three-member allowlist, 10-unit pool, 1-unit daily limit
  frozen-faucet: Commitment published but daily limit zero (global freeze)

NOTE:
  Scenarios mutate live engine state through the normal controller
  operations. Only use in development/demo environments.

SEE ALSO:
  - factory/allowlist.go: Allowlist -> commitment conversion
  - handlers.go: Route wiring
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/faucet-engine/factory"
	"github.com/warp/faucet-engine/faucet"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "small-faucet",
		Name:        "Small Faucet",
		Description: "Three-member allowlist, funded pool, 1-unit daily limit",
	},
	{
		ID:          "frozen-faucet",
		Name:        "Frozen Faucet",
		Description: "Commitment published but daily limit zero",
	},
}

var demoAllowlistJSON = `{
	"name": "demo",
	"identities": ["0xaaa1", "0xbbb2", "0xccc3"]
}`

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": scenarios,
		"current":   h.currentScenario,
	})
}

// LoadScenario loads a demo scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req ScenarioLoadRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var limit faucet.Amount
	switch req.ScenarioID {
	case "small-faucet":
		limit = faucet.NewAmount(1)
	case "frozen-faucet":
		limit = faucet.ZeroAmount()
	default:
		writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown scenario: %s", req.ScenarioID), nil)
		return
	}

	proofs, err := h.loadDemoFaucet(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]any{
		"scenario": req.ScenarioID,
		"state":    StateDTOFrom(r, h),
		"proofs":   proofs,
	})
}

// loadDemoFaucet publishes the demo commitment, funds the pool, and sets
// the limit through the normal controller operations.
func (h *Handler) loadDemoFaucet(ctx context.Context, limit faucet.Amount) (map[string][]string, error) {
	list, err := factory.NewAllowlistFactory().ParseAllowlist(demoAllowlistJSON)
	if err != nil {
		return nil, err
	}

	controller := h.Engine.Controller()
	commitment := list.Commitment()
	if err := h.Engine.Rotate(ctx, controller, commitment.Root, commitment.Depth); err != nil {
		return nil, err
	}
	if err := h.Engine.SetDailyLimit(ctx, controller, limit); err != nil {
		return nil, err
	}
	if err := h.Engine.Deposit(ctx, "scenario-funder", faucet.NewAmount(10)); err != nil {
		return nil, err
	}

	proofs := make(map[string][]string, len(list.Members))
	for _, member := range list.Members {
		proof, err := list.ProofFor(member)
		if err != nil {
			return nil, err
		}
		hexes := make([]string, len(proof))
		for i, d := range proof {
			hexes[i] = d.String()
		}
		proofs[string(member)] = hexes
	}
	return proofs, nil
}
