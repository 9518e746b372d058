/*
Package factory provides JSON to commitment conversion for allowlists.

PURPOSE:
  Converts a JSON allowlist document into a Merkle tree, ready-to-publish
  commitment, and per-member proofs. This is the off-chain side of the
  commitment scheme: operators edit a JSON file, the factory turns it into
  the (root, depth) pair the engine verifies claims against.

WHY JSON?
  - Non-developers can maintain the member list
  - Version control for allowlist revisions
  - Easy integration with admin tooling

JSON SCHEMA:
  {
    "name": "beta-cohort-3",
    "identities": [
      "0xaaaa...",
      "0xbbbb..."
    ]
  }

USAGE:
  f := factory.NewAllowlistFactory()
  list, err := f.ParseAllowlist(jsonStr)

  commitment := list.Commitment()
  engine.Rotate(ctx, controller, commitment.Root, commitment.Depth)

  proof, err := list.ProofFor("0xaaaa...")
  engine.Claim(ctx, "0xaaaa...", amount, proof)

SEE ALSO:
  - merkle/tree.go: The underlying tree builder
  - api/scenarios.go: Demo scenarios built from inline allowlists
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/faucet-engine/faucet"
	"github.com/warp/faucet-engine/merkle"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// AllowlistJSON is the JSON representation of an allowlist.
type AllowlistJSON struct {
	Name       string   `json:"name,omitempty"`
	Identities []string `json:"identities"`
}

// =============================================================================
// ALLOWLIST FACTORY
// =============================================================================

// AllowlistFactory converts JSON allowlists into commitments and proofs.
type AllowlistFactory struct{}

// NewAllowlistFactory creates a new allowlist factory.
func NewAllowlistFactory() *AllowlistFactory {
	return &AllowlistFactory{}
}

// ParseAllowlist parses a JSON string and builds the Merkle tree over it.
func (f *AllowlistFactory) ParseAllowlist(jsonStr string) (*Allowlist, error) {
	var aj AllowlistJSON
	if err := json.Unmarshal([]byte(jsonStr), &aj); err != nil {
		return nil, fmt.Errorf("failed to parse allowlist JSON: %w", err)
	}
	return f.FromJSON(aj)
}

// FromJSON builds an Allowlist from the decoded document. Identities are
// canonicalized and deduplicated; order is preserved for the survivors.
func (f *AllowlistFactory) FromJSON(aj AllowlistJSON) (*Allowlist, error) {
	if len(aj.Identities) == 0 {
		return nil, fmt.Errorf("allowlist %q has no identities", aj.Name)
	}

	seen := make(map[faucet.Identity]bool, len(aj.Identities))
	var members []faucet.Identity
	for _, raw := range aj.Identities {
		id := faucet.Identity(raw).Canonical()
		if id == "" {
			return nil, fmt.Errorf("allowlist %q contains an empty identity", aj.Name)
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		members = append(members, id)
	}

	leaves := make([]merkle.Digest, len(members))
	for i, id := range members {
		leaves[i] = id.Leaf()
	}

	tree, err := merkle.NewTree(leaves)
	if err != nil {
		return nil, err
	}

	return &Allowlist{Name: aj.Name, Members: members, tree: tree}, nil
}

// =============================================================================
// ALLOWLIST
// =============================================================================

// Allowlist is a parsed member list with its Merkle tree.
type Allowlist struct {
	Name    string
	Members []faucet.Identity
	tree    *merkle.Tree
}

// Commitment returns the (root, depth) pair to publish.
func (a *Allowlist) Commitment() faucet.Commitment {
	return faucet.Commitment{Root: a.tree.Root(), Depth: uint(a.tree.Depth())}
}

// ProofFor returns the membership proof for an identity.
func (a *Allowlist) ProofFor(id faucet.Identity) ([]merkle.Digest, error) {
	return a.tree.ProofFor(id.Leaf())
}

// Contains reports whether the identity is a member.
func (a *Allowlist) Contains(id faucet.Identity) bool {
	_, err := a.tree.ProofFor(id.Leaf())
	return err == nil
}
