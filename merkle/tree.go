/*
tree.go - Off-chain Merkle tree builder and proof generator

PURPOSE:
  Builds the full tree the engine only ever sees the root of. Operators run
  this ahead of time over the allowlist, publish (root, depth) through the
  commitment registry, and hand each member their sibling path.

SHAPE:
  Leaves are padded with the zero digest up to the next power of two, so
  every proof has exactly Depth siblings. A single-leaf tree has depth 0 and
  an empty proof: the leaf IS the root.

SEE ALSO:
  - merkle.go: Hashing and verification
  - factory/allowlist.go: JSON allowlist -> Tree
*/
package merkle

import (
	"errors"
	"fmt"
)

// ErrNoLeaves is returned when building a tree from an empty leaf set.
var ErrNoLeaves = errors.New("merkle: tree requires at least one leaf")

// Tree is a complete binary Merkle tree over a fixed leaf set.
// levels[0] holds the (padded) leaves; levels[depth] holds the root.
type Tree struct {
	depth  int
	levels [][]Digest
	index  map[Digest]int
}

// NewTree builds a tree over the given leaves. Leaves are padded to the
// next power of two with the zero digest.
func NewTree(leaves []Digest) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, ErrNoLeaves
	}

	depth := 0
	width := 1
	for width < len(leaves) {
		width *= 2
		depth++
	}

	padded := make([]Digest, width)
	copy(padded, leaves)

	index := make(map[Digest]int, len(leaves))
	for i, leaf := range leaves {
		if _, dup := index[leaf]; !dup {
			index[leaf] = i
		}
	}

	levels := make([][]Digest, depth+1)
	levels[0] = padded
	for lvl := 1; lvl <= depth; lvl++ {
		prev := levels[lvl-1]
		next := make([]Digest, len(prev)/2)
		for i := range next {
			next[i] = HashNode(prev[2*i], prev[2*i+1])
		}
		levels[lvl] = next
	}

	return &Tree{depth: depth, levels: levels, index: index}, nil
}

// Root returns the tree root.
func (t *Tree) Root() Digest {
	return t.levels[t.depth][0]
}

// Depth returns the tree depth, i.e. the exact sibling count of every proof.
func (t *Tree) Depth() int {
	return t.depth
}

// Proof returns the sibling path for the leaf at index i, ordered from the
// leaf level upward.
func (t *Tree) Proof(i int) ([]Digest, error) {
	if i < 0 || i >= len(t.levels[0]) {
		return nil, fmt.Errorf("merkle: leaf index %d out of range [0,%d)", i, len(t.levels[0]))
	}
	proof := make([]Digest, 0, t.depth)
	for lvl := 0; lvl < t.depth; lvl++ {
		proof = append(proof, t.levels[lvl][i^1])
		i /= 2
	}
	return proof, nil
}

// ProofFor returns the sibling path for a specific leaf digest.
func (t *Tree) ProofFor(leaf Digest) ([]Digest, error) {
	i, ok := t.index[leaf]
	if !ok {
		return nil, fmt.Errorf("merkle: leaf %s not in tree", leaf)
	}
	return t.Proof(i)
}
