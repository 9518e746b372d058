/*
Package merkle provides the commitment primitives for allowlist membership:
32-byte digests, keccak-256 leaf/node hashing, and inclusion-proof
verification against a published root.

PURPOSE:
  A faucet allowlist can hold an unbounded number of identities, but the
  engine only stores a single root digest plus the tree depth. Membership is
  proven with an ordered list of sibling digests that reconstructs the root
  from the claimant's leaf.

HASHING SCHEME:
  Leaf  = keccak256(canonical identity bytes)
  Node  = keccak256(min(a,b) || max(a,b))

  Siblings are combined in sorted byte order, so a proof does not need to
  carry left/right position bits. Verification is a pure fold over the
  sibling list - deterministic, allocation-light, and collision-resistant
  as long as keccak-256 is.

SEE ALSO:
  - tree.go: Off-chain tree builder and proof generator
  - faucet/engine.go: The claim path calling Verify
*/
package merkle

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// DigestSize is the byte length of every leaf, node, and root digest.
const DigestSize = 32

// Digest is a 32-byte keccak-256 output.
type Digest [DigestSize]byte

// ZeroDigest is the all-zero digest. A zero root means "no commitment
// published" and is never a legitimate tree root.
var ZeroDigest = Digest{}

// IsZero reports whether d is the all-zero digest.
func (d Digest) IsZero() bool {
	return d == ZeroDigest
}

// String returns the digest as lowercase hex with a 0x prefix.
func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

// ParseDigest decodes a hex string (with or without 0x prefix) into a Digest.
func ParseDigest(s string) (Digest, error) {
	if len(s) >= 2 && (s[:2] == "0x" || s[:2] == "0X") {
		s = s[2:]
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest %q: %w", s, err)
	}
	if len(raw) != DigestSize {
		return Digest{}, fmt.Errorf("invalid digest %q: got %d bytes, want %d", s, len(raw), DigestSize)
	}
	var d Digest
	copy(d[:], raw)
	return d, nil
}

// HashLeaf hashes canonical identity bytes into a leaf digest.
func HashLeaf(data []byte) Digest {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// HashNode combines two child digests into their parent, sorting the
// operands first so the scheme is independent of left/right position.
func HashNode(a, b Digest) Digest {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	h := sha3.NewLegacyKeccak256()
	h.Write(a[:])
	h.Write(b[:])
	var d Digest
	copy(d[:], h.Sum(nil))
	return d
}

// Verify folds the proof siblings over the leaf and reports whether the
// result equals root. The caller is responsible for checking the proof
// length against the published tree depth; Verify accepts any length.
func Verify(leaf Digest, proof []Digest, root Digest) bool {
	current := leaf
	for _, sibling := range proof {
		current = HashNode(current, sibling)
	}
	return current == root
}
