/*
handlers.go - HTTP API handlers for the faucet engine

PURPOSE:
  Exposes the claim-authorization engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to the engine.

ENDPOINTS:
  Claims:
    POST   /api/claims               Claim an amount with a membership proof
    POST   /api/deposits             Credit the pool

  Admin (controller only):
    POST   /api/admin/commitment     Rotate the allowlist commitment
    POST   /api/admin/limit          Change the global daily limit
    POST   /api/admin/withdrawals    Withdraw the entire pool

  Read-only:
    GET    /api/state                Root, depth, daily limit, pool balance
    GET    /api/quotas/{identity}    Per-identity quota record
    GET    /api/events               Notification log (filterable)

  Scenarios:
    GET    /api/scenarios            List demo scenarios
    POST   /api/scenarios/load       Load a demo scenario

ERROR HANDLING:
  Engine rejections map to a stable machine-readable code and an
  appropriate HTTP status (see errorStatus/errorCode). The engine
  guarantees no state change on any rejection, so clients may simply
  retry when the cause clears.

SECURITY NOTE:
  The actor is taken from the request body and verified against the
  configured controller identity by the engine. There is no caller
  authentication here; production deployments must front this API with
  an authenticating proxy.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - faucet/errors.go: The taxonomy being mapped
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/faucet-engine/faucet"
	"github.com/warp/faucet-engine/logger"
	"github.com/warp/faucet-engine/merkle"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *faucet.Engine
	Events faucet.EventLog

	// Track currently loaded scenario (dev/demo only)
	currentScenario string
}

// NewHandler creates a new handler around an engine.
func NewHandler(engine *faucet.Engine, events faucet.EventLog) *Handler {
	return &Handler{Engine: engine, Events: events}
}

// =============================================================================
// CLAIM HANDLERS
// =============================================================================

// SubmitClaim verifies a membership proof and dispenses the amount.
// POST /api/claims
func (h *Handler) SubmitClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Identity == "" {
		writeError(w, http.StatusBadRequest, "Identity is required", nil)
		return
	}

	amount, err := faucet.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	proof, err := parseProof(req.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid proof", err)
		return
	}

	claimant := faucet.Identity(req.Identity)
	if err := h.Engine.Claim(r.Context(), claimant, amount, proof); err != nil {
		writeEngineError(w, err)
		return
	}

	log := logger.Logger()
	log.Info().
		Str("identity", string(claimant.Canonical())).
		Str("amount", amount.String()).
		Msg("claim dispensed")

	writeJSON(w, http.StatusOK, ClaimResponseDTO{
		Identity: string(claimant.Canonical()),
		Amount:   amount.String(),
		Status:   "dispensed",
	})
}

// SubmitDeposit credits the pool.
// POST /api/deposits
func (h *Handler) SubmitDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	amount, err := faucet.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	if err := h.Engine.Deposit(r.Context(), faucet.Identity(req.Sender), amount); err != nil {
		writeEngineError(w, err)
		return
	}

	balance, err := h.Engine.PoolBalance(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read pool balance", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pool_balance": balance.String()})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RotateCommitment publishes a new allowlist commitment.
// POST /api/admin/commitment
func (h *Handler) RotateCommitment(w http.ResponseWriter, r *http.Request) {
	var req RotateRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	root, err := merkle.ParseDigest(req.Root)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid root digest", err)
		return
	}

	if err := h.Engine.Rotate(r.Context(), faucet.Identity(req.Actor), root, req.Depth); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StateDTOFrom(r, h))
}

// SetDailyLimit changes the global daily limit.
// POST /api/admin/limit
func (h *Handler) SetDailyLimit(w http.ResponseWriter, r *http.Request) {
	var req LimitRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	limit, err := faucet.ParseAmount(req.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid limit", err)
		return
	}

	if err := h.Engine.SetDailyLimit(r.Context(), faucet.Identity(req.Actor), limit); err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StateDTOFrom(r, h))
}

// Withdraw moves the entire pool balance to a recipient.
// POST /api/admin/withdrawals
func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req WithdrawRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Recipient == "" {
		writeError(w, http.StatusBadRequest, "Recipient is required", nil)
		return
	}

	amount, err := h.Engine.WithdrawAll(r.Context(), faucet.Identity(req.Actor), faucet.Identity(req.Recipient))
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, WithdrawResponseDTO{
		Recipient: string(faucet.Identity(req.Recipient).Canonical()),
		Amount:    amount.String(),
	})
}

// =============================================================================
// READ-ONLY HANDLERS
// =============================================================================

// GetState returns the four state slots.
// GET /api/state
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateDTOFrom(r, h))
}

// StateDTOFrom assembles the current state. Read errors degrade to zero
// values; the slots all default to zero on a fresh store anyway.
func StateDTOFrom(r *http.Request, h *Handler) StateDTO {
	ctx := r.Context()
	commitment, _ := h.Engine.Commitment(ctx)
	limit, _ := h.Engine.DailyLimit(ctx)
	balance, _ := h.Engine.PoolBalance(ctx)

	root := ""
	if !commitment.IsZero() {
		root = commitment.Root.String()
	}
	return StateDTO{
		Root:        root,
		Depth:       commitment.Depth,
		DailyLimit:  limit.String(),
		PoolBalance: balance.String(),
	}
}

// GetQuota returns an identity's stored quota record.
// GET /api/quotas/{identity}
func (h *Handler) GetQuota(w http.ResponseWriter, r *http.Request) {
	identity := faucet.Identity(chi.URLParam(r, "identity"))
	if identity == "" {
		writeError(w, http.StatusBadRequest, "Identity is required", nil)
		return
	}

	quota, err := h.Engine.QuotaOf(r.Context(), identity)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read quota", err)
		return
	}

	writeJSON(w, http.StatusOK, QuotaDTO{
		Identity:     string(identity.Canonical()),
		LastClaimDay: int64(quota.LastClaimDay),
		ClaimedSoFar: quota.ClaimedSoFar.String(),
	})
}

// ListEvents returns notifications, newest first.
// GET /api/events?type=dispensed&identity=0x...&limit=50
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter := faucet.EventFilter{Limit: 100}
	if t := r.URL.Query().Get("type"); t != "" {
		filter.Types = []faucet.EventType{faucet.EventType(t)}
	}
	if id := r.URL.Query().Get("identity"); id != "" {
		identity := faucet.Identity(id)
		filter.Identity = &identity
	}

	events, err := h.Events.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query events", err)
		return
	}

	dtos := make([]EventDTO, len(events))
	for i, ev := range events {
		dtos[i] = toEventDTO(ev)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeEngineError maps a taxonomy error to a stable code and HTTP status.
func writeEngineError(w http.ResponseWriter, err error) {
	code, status := errorCode(err)
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    code,
		Details: err.Error(),
	})
}

func errorCode(err error) (string, int) {
	switch {
	case errors.Is(err, faucet.ErrUnauthorized):
		return "unauthorized", http.StatusForbidden
	case errors.Is(err, faucet.ErrRootNotSet):
		return "root_not_set", http.StatusConflict
	case errors.Is(err, faucet.ErrInvalidProofLength):
		return "invalid_proof_length", http.StatusBadRequest
	case errors.Is(err, faucet.ErrInvalidAmount):
		return "invalid_amount", http.StatusBadRequest
	case errors.Is(err, faucet.ErrInsufficientFunds):
		return "insufficient_funds", http.StatusConflict
	case errors.Is(err, faucet.ErrNotWhitelisted):
		return "not_whitelisted", http.StatusForbidden
	case errors.Is(err, faucet.ErrAlreadyClaimedToday):
		return "already_claimed_today", http.StatusConflict
	case errors.Is(err, faucet.ErrClaimInProgress):
		return "claim_in_progress", http.StatusConflict
	case errors.Is(err, faucet.ErrDispenseFailed):
		return "dispense_failed", http.StatusBadGateway
	case errors.Is(err, faucet.ErrInvalidCommitment):
		return "invalid_commitment", http.StatusBadRequest
	case errors.Is(err, faucet.ErrNoFundsAvailable):
		return "no_funds_available", http.StatusConflict
	case errors.Is(err, faucet.ErrWithdrawalFailed):
		return "withdrawal_failed", http.StatusBadGateway
	default:
		return "internal", http.StatusInternalServerError
	}
}
