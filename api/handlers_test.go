package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/faucet-engine/factory"
	"github.com/warp/faucet-engine/faucet"
	"github.com/warp/faucet-engine/faucet/store"
)

const testController = "0xc0ffee"

// testServer bundles the router with handles on the engine collaborators.
type testServer struct {
	router    http.Handler
	engine    *faucet.Engine
	recorder  *faucet.Recorder
	allowlist *factory.Allowlist
}

// newTestServer spins up a fully wired API over an in-memory store: a
// three-member allowlist published, daily limit 1, pool funded with 5.
func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	list, err := factory.NewAllowlistFactory().ParseAllowlist(`{
		"name": "api-test",
		"identities": ["0xaaa1", "0xbbb2", "0xccc3"]
	}`)
	require.NoError(t, err)

	mem := store.NewMemory()
	recorder := &faucet.Recorder{}
	engine := faucet.NewEngine(mem, mem, faucet.SystemClock{}, recorder, testController)

	commitment := list.Commitment()
	require.NoError(t, engine.Rotate(ctx, testController, commitment.Root, commitment.Depth))
	require.NoError(t, engine.SetDailyLimit(ctx, testController, faucet.NewAmount(1)))
	require.NoError(t, engine.Deposit(ctx, "funder", faucet.NewAmount(5)))

	handler := NewHandler(engine, mem)
	return &testServer{
		router:    NewRouter(handler),
		engine:    engine,
		recorder:  recorder,
		allowlist: list,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) proofHex(t *testing.T, id faucet.Identity) []string {
	t.Helper()
	proof, err := ts.allowlist.ProofFor(id)
	require.NoError(t, err)
	hexes := make([]string, len(proof))
	for i, d := range proof {
		hexes[i] = d.String()
	}
	return hexes
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// =============================================================================
// CLAIMS
// =============================================================================

func TestSubmitClaim_Success(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/claims", ClaimRequestDTO{
		Identity: "0xaaa1",
		Amount:   "0.7",
		Proof:    ts.proofHex(t, "0xaaa1"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ClaimResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "0xaaa1", resp.Identity)
	assert.Equal(t, "0.7", resp.Amount)
	assert.Equal(t, "dispensed", resp.Status)

	assert.True(t, ts.recorder.Received("0xaaa1").Equal(faucet.NewAmount(0.7)))
}

func TestSubmitClaim_SecondClaimSameDay_Conflict(t *testing.T) {
	ts := newTestServer(t)
	proof := ts.proofHex(t, "0xaaa1")

	w := ts.do(t, "POST", "/api/claims", ClaimRequestDTO{Identity: "0xaaa1", Amount: "1", Proof: proof})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, "POST", "/api/claims", ClaimRequestDTO{Identity: "0xaaa1", Amount: "0.1", Proof: proof})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_claimed_today", decodeError(t, w).Code)
}

func TestSubmitClaim_NonMember_Forbidden(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/claims", ClaimRequestDTO{
		Identity: "0xdddd",
		Amount:   "1",
		Proof:    ts.proofHex(t, "0xaaa1"),
	})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "not_whitelisted", decodeError(t, w).Code)
}

func TestSubmitClaim_WrongProofLength_BadRequest(t *testing.T) {
	ts := newTestServer(t)

	proof := ts.proofHex(t, "0xaaa1")
	w := ts.do(t, "POST", "/api/claims", ClaimRequestDTO{
		Identity: "0xaaa1",
		Amount:   "1",
		Proof:    proof[:len(proof)-1],
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_proof_length", decodeError(t, w).Code)
}

func TestSubmitClaim_OverLimit_BadRequest(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/claims", ClaimRequestDTO{
		Identity: "0xaaa1",
		Amount:   "1.5",
		Proof:    ts.proofHex(t, "0xaaa1"),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_amount", decodeError(t, w).Code)
}

func TestSubmitClaim_MalformedInput(t *testing.T) {
	ts := newTestServer(t)

	// Unparseable amount.
	w := ts.do(t, "POST", "/api/claims", ClaimRequestDTO{Identity: "0xaaa1", Amount: "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unparseable proof sibling.
	w = ts.do(t, "POST", "/api/claims", ClaimRequestDTO{Identity: "0xaaa1", Amount: "1", Proof: []string{"0xnothex"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Missing identity.
	w = ts.do(t, "POST", "/api/claims", ClaimRequestDTO{Amount: "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// =============================================================================
// DEPOSITS
// =============================================================================

func TestSubmitDeposit_ReturnsNewBalance(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/deposits", DepositRequestDTO{Sender: "0xfunder", Amount: "2.5"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "7.5", resp["pool_balance"])
}

func TestSubmitDeposit_NegativeAmount_BadRequest(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/deposits", DepositRequestDTO{Sender: "0xfunder", Amount: "-1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_amount", decodeError(t, w).Code)
}

// =============================================================================
// ADMIN
// =============================================================================

func TestAdmin_NonController_Forbidden(t *testing.T) {
	ts := newTestServer(t)

	list, err := factory.NewAllowlistFactory().ParseAllowlist(`{"identities": ["0xeee5"]}`)
	require.NoError(t, err)
	commitment := list.Commitment()

	cases := []struct {
		name string
		path string
		body any
	}{
		{"rotate", "/api/admin/commitment", RotateRequestDTO{Actor: "0xbad", Root: commitment.Root.String(), Depth: commitment.Depth}},
		{"limit", "/api/admin/limit", LimitRequestDTO{Actor: "0xbad", Limit: "100"}},
		{"withdraw", "/api/admin/withdrawals", WithdrawRequestDTO{Actor: "0xbad", Recipient: "0xbad"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.do(t, "POST", tc.path, tc.body)
			assert.Equal(t, http.StatusForbidden, w.Code)
			assert.Equal(t, "unauthorized", decodeError(t, w).Code)
		})
	}
}

func TestRotateCommitment_InvalidatesOldProofs(t *testing.T) {
	ts := newTestServer(t)
	oldProof := ts.proofHex(t, "0xaaa1")

	list, err := factory.NewAllowlistFactory().ParseAllowlist(`{"identities": ["0xeee5", "0xfff6"]}`)
	require.NoError(t, err)
	commitment := list.Commitment()

	w := ts.do(t, "POST", "/api/admin/commitment", RotateRequestDTO{
		Actor: testController,
		Root:  commitment.Root.String(),
		Depth: commitment.Depth,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var state StateDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, commitment.Root.String(), state.Root)
	assert.Equal(t, commitment.Depth, state.Depth)

	w = ts.do(t, "POST", "/api/claims", ClaimRequestDTO{Identity: "0xaaa1", Amount: "1", Proof: oldProof})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_proof_length", decodeError(t, w).Code)
}

func TestRotateCommitment_ZeroRoot_BadRequest(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/admin/commitment", RotateRequestDTO{
		Actor: testController,
		Root:  "0x" + fmt.Sprintf("%064d", 0),
		Depth: 4,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_commitment", decodeError(t, w).Code)
}

func TestSetDailyLimit_FreezesAtZero(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/admin/limit", LimitRequestDTO{Actor: testController, Limit: "0"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, "POST", "/api/claims", ClaimRequestDTO{
		Identity: "0xaaa1",
		Amount:   "0.1",
		Proof:    ts.proofHex(t, "0xaaa1"),
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_amount", decodeError(t, w).Code)
}

func TestWithdraw_DrainsPool(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/admin/withdrawals", WithdrawRequestDTO{Actor: testController, Recipient: "0xtreasury"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp WithdrawResponseDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "0xtreasury", resp.Recipient)
	assert.Equal(t, "5", resp.Amount)

	// A second withdrawal finds nothing.
	w = ts.do(t, "POST", "/api/admin/withdrawals", WithdrawRequestDTO{Actor: testController, Recipient: "0xtreasury"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "no_funds_available", decodeError(t, w).Code)
}

// =============================================================================
// READ-ONLY
// =============================================================================

func TestGetState(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "GET", "/api/state", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var state StateDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &state))
	assert.Equal(t, ts.allowlist.Commitment().Root.String(), state.Root)
	assert.Equal(t, "1", state.DailyLimit)
	assert.Equal(t, "5", state.PoolBalance)
}

func TestGetQuota(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/claims", ClaimRequestDTO{
		Identity: "0xAAA1",
		Amount:   "0.7",
		Proof:    ts.proofHex(t, "0xaaa1"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, "GET", "/api/quotas/0xAAA1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var quota QuotaDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quota))
	assert.Equal(t, "0xaaa1", quota.Identity)
	assert.Equal(t, "0.7", quota.ClaimedSoFar)
	assert.NotZero(t, quota.LastClaimDay)
}

func TestGetQuota_NeverClaimed_ZeroRecord(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "GET", "/api/quotas/0xbbb2", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var quota QuotaDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &quota))
	assert.EqualValues(t, 0, quota.LastClaimDay)
	assert.Equal(t, "0", quota.ClaimedSoFar)
}

func TestListEvents_FilterByType(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/claims", ClaimRequestDTO{
		Identity: "0xaaa1",
		Amount:   "1",
		Proof:    ts.proofHex(t, "0xaaa1"),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(t, "GET", "/api/events?type=dispensed", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var events []EventDTO
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "dispensed", events[0].Type)
	assert.Equal(t, "0xaaa1", events[0].Identity)
	assert.Equal(t, "1", events[0].Amount)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLoadScenario_ProofsAreClaimable(t *testing.T) {
	// GIVEN: The small-faucet scenario loaded through the API
	// WHEN: A member claims with the returned proof
	// THEN: The claim succeeds end to end

	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/scenarios/load", ScenarioLoadRequestDTO{ScenarioID: "small-faucet"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Scenario string              `json:"scenario"`
		Proofs   map[string][]string `json:"proofs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "small-faucet", resp.Scenario)
	require.Contains(t, resp.Proofs, "0xaaa1")

	w = ts.do(t, "POST", "/api/claims", ClaimRequestDTO{
		Identity: "0xaaa1",
		Amount:   "1",
		Proof:    resp.Proofs["0xaaa1"],
	})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestLoadScenario_Frozen_BlocksClaims(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/scenarios/load", ScenarioLoadRequestDTO{ScenarioID: "frozen-faucet"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Proofs map[string][]string `json:"proofs"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = ts.do(t, "POST", "/api/claims", ClaimRequestDTO{
		Identity: "0xaaa1",
		Amount:   "0.1",
		Proof:    resp.Proofs["0xaaa1"],
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_amount", decodeError(t, w).Code)
}

func TestLoadScenario_Unknown_NotFound(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, "POST", "/api/scenarios/load", ScenarioLoadRequestDTO{ScenarioID: "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
