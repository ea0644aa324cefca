package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
)

func leafHash(s string) cryptofacade.Hash {
	return cryptofacade.Sum([]byte(s))
}

func TestHashEmpty(t *testing.T) {
	var zero cryptofacade.Hash
	assert.Equal(t, zero, Hash(nil))
}

func TestHashSingleLeaf(t *testing.T) {
	l := leafHash("a")
	assert.Equal(t, l, Hash([]cryptofacade.Hash{l}))
}

func TestHashOrderIndependent(t *testing.T) {
	a, b, c := leafHash("a"), leafHash("b"), leafHash("c")
	r1 := Hash([]cryptofacade.Hash{a, b, c})
	r2 := Hash([]cryptofacade.Hash{c, a, b})
	assert.Equal(t, r1, r2)
}

func TestHashOddCountDuplicatesLastLeaf(t *testing.T) {
	a, b, c := leafHash("a"), leafHash("b"), leafHash("c")
	level := []cryptofacade.Hash{a, b, c}
	// sort to match internal canonicalization
	got := Hash(level)

	// Manually recompute expected value using the documented algorithm.
	sorted := append([]cryptofacade.Hash{}, a, b, c)
	// simple insertion sort mirroring lessHash
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && lessHash(sorted[j], sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	left := cryptofacade.SumAll(sorted[0][:], sorted[1][:])
	right := cryptofacade.SumAll(sorted[2][:], sorted[2][:])
	want := cryptofacade.SumAll(left[:], right[:])
	assert.Equal(t, want, got)
}

func TestBuildProofAndVerify(t *testing.T) {
	leaves := []cryptofacade.Hash{leafHash("a"), leafHash("b"), leafHash("c"), leafHash("d")}
	root := Hash(leaves)
	for i := range leaves {
		proof, ok := BuildProof(leaves, i)
		assert.True(t, ok)
		assert.True(t, Verify(proof, root))
	}
}

func TestBuildProofAndVerifyOddCount(t *testing.T) {
	leaves := []cryptofacade.Hash{leafHash("a"), leafHash("b"), leafHash("c")}
	root := Hash(leaves)
	for i := range leaves {
		proof, ok := BuildProof(leaves, i)
		assert.True(t, ok)
		assert.True(t, Verify(proof, root), "proof for leaf %d must verify against the odd-count root", i)
	}
}

func TestVerifyRejectsWrongRoot(t *testing.T) {
	leaves := []cryptofacade.Hash{leafHash("a"), leafHash("b")}
	proof, ok := BuildProof(leaves, 0)
	assert.True(t, ok)
	assert.False(t, Verify(proof, leafHash("not the root")))
}
