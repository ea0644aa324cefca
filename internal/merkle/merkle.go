// Package merkle implements the content-addressed binary Merkle tree used to
// compute a block's transaction root. The tree shape (binary, built
// breadth-up from sorted leaves, duplicate-last-on-odd-count) follows
// original_source/iroha/src/merkle.rs; the internal node hash function is a
// deliberate departure from that original (see DESIGN.md): instead of
// byte-wise summing the two child hashes before hashing, this tree hashes
// the straight concatenation left||right, and duplicates the left child
// itself (not a zero hash) when a right sibling is missing.
package merkle

import (
	"sort"

	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
)

// Hash returns the Merkle root of leaves. An empty input yields the
// all-zero hash. Leaves are sorted by byte value before the tree is built,
// so the root is independent of leaf insertion order.
func Hash(leaves []cryptofacade.Hash) cryptofacade.Hash {
	if len(leaves) == 0 {
		return cryptofacade.Hash{}
	}

	level := make([]cryptofacade.Hash, len(leaves))
	copy(level, leaves)
	sort.Slice(level, func(i, j int) bool {
		return lessHash(level[i], level[j])
	})

	for len(level) > 1 {
		next := make([]cryptofacade.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, cryptofacade.SumAll(left[:], right[:]))
		}
		level = next
	}
	return level[0]
}

func lessHash(a, b cryptofacade.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Proof is an inclusion proof for a single leaf: the sibling hashes
// encountered on the path from the leaf to the root, in bottom-up order,
// plus which side the sibling sits on.
type Proof struct {
	Leaf     cryptofacade.Hash
	Siblings []ProofStep
}

// ProofStep is one sibling hash and whether it sits to the right of the
// accumulated hash at that level.
type ProofStep struct {
	Sibling cryptofacade.Hash
	OnRight bool
}

// BuildProof constructs an inclusion proof for leaves[index] within the tree
// over leaves (after leaves are sorted, matching Hash's canonicalization).
func BuildProof(leaves []cryptofacade.Hash, index int) (Proof, bool) {
	if index < 0 || index >= len(leaves) {
		return Proof{}, false
	}
	level := make([]cryptofacade.Hash, len(leaves))
	copy(level, leaves)
	sort.Slice(level, func(i, j int) bool { return lessHash(level[i], level[j]) })

	target := level[index]
	proof := Proof{Leaf: target}
	pos := index

	for len(level) > 1 {
		next := make([]cryptofacade.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := left
			hasRight := i+1 < len(level)
			if hasRight {
				right = level[i+1]
			}
			parent := cryptofacade.SumAll(left[:], right[:])
			if i == pos || i+1 == pos {
				if i == pos {
					if hasRight {
						proof.Siblings = append(proof.Siblings, ProofStep{Sibling: right, OnRight: true})
					} else {
						// odd node at this level: Hash duplicates it against itself,
						// so the proof must replay that same self-concatenation.
						proof.Siblings = append(proof.Siblings, ProofStep{Sibling: left, OnRight: true})
					}
				} else {
					proof.Siblings = append(proof.Siblings, ProofStep{Sibling: left, OnRight: false})
				}
				pos = len(next)
			}
			next = append(next, parent)
		}
		level = next
	}
	return proof, true
}

// Verify recomputes the root implied by proof and compares it to root.
func Verify(proof Proof, root cryptofacade.Hash) bool {
	acc := proof.Leaf
	for _, step := range proof.Siblings {
		if step.OnRight {
			acc = cryptofacade.SumAll(acc[:], step.Sibling[:])
		} else {
			acc = cryptofacade.SumAll(step.Sibling[:], acc[:])
		}
	}
	return acc == root
}
