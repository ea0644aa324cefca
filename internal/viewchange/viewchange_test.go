package viewchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
)

func fourPeers(t *testing.T) ([]cryptofacade.KeyPair, []ids.PeerId) {
	t.Helper()
	var kps []cryptofacade.KeyPair
	var peers []ids.PeerId
	for i := 0; i < 4; i++ {
		kp, err := cryptofacade.GenerateKeyPair()
		require.NoError(t, err)
		kps = append(kps, kp)
		var pk [32]byte
		copy(pk[:], kp.Public)
		peers = append(peers, ids.PeerId{PublicKey: pk})
	}
	return kps, peers
}

func TestProofVerifyRequiresMaxFaultsPlusOne(t *testing.T) {
	kps, peers := fourPeers(t)
	peerSet := PeerSet(peers)
	latest := cryptofacade.Sum([]byte("block-0"))

	proof := Proof{LatestBlockHash: latest, ViewChangeIndex: 0}
	maxFaults := 1 // f=1 for n=4

	proof.Sign(kps[0])
	assert.False(t, proof.Verify(peerSet, maxFaults), "one signature must not satisfy f+1=2")

	proof.Sign(kps[1])
	assert.True(t, proof.Verify(peerSet, maxFaults))
}

func TestChainInsertProofMergesAtSameIndex(t *testing.T) {
	kps, peers := fourPeers(t)
	peerSet := PeerSet(peers)
	latest := cryptofacade.Sum([]byte("block-0"))
	maxFaults := 1

	var chain Chain
	p1 := Proof{LatestBlockHash: latest, ViewChangeIndex: 0}
	p1.Sign(kps[0])
	require.NoError(t, chain.InsertProof(peerSet, maxFaults, latest, p1))
	assert.Len(t, chain, 1)

	p2 := Proof{LatestBlockHash: latest, ViewChangeIndex: 0}
	p2.Sign(kps[1])
	require.NoError(t, chain.InsertProof(peerSet, maxFaults, latest, p2))
	assert.Len(t, chain, 1, "same-index proof should merge, not append")
	assert.Len(t, chain[0].Signatures, 2)

	assert.Equal(t, 1, chain.VerifyWithState(peerSet, maxFaults, latest))
}

func TestChainInsertProofRejectsWrongIndex(t *testing.T) {
	kps, peers := fourPeers(t)
	peerSet := PeerSet(peers)
	latest := cryptofacade.Sum([]byte("block-0"))

	var chain Chain
	badProof := Proof{LatestBlockHash: latest, ViewChangeIndex: 3}
	badProof.Sign(kps[0])
	err := chain.InsertProof(peerSet, 1, latest, badProof)
	assert.Error(t, err)
}

func TestChainPruneDropsStaleProofs(t *testing.T) {
	kps, peers := fourPeers(t)
	peerSet := PeerSet(peers)
	oldLatest := cryptofacade.Sum([]byte("block-0"))
	newLatest := cryptofacade.Sum([]byte("block-1"))

	var chain Chain
	p1 := Proof{LatestBlockHash: oldLatest, ViewChangeIndex: 0}
	p1.Sign(kps[0])
	require.NoError(t, chain.InsertProof(peerSet, 1, oldLatest, p1))

	chain.Prune(newLatest)
	assert.Len(t, chain, 0)
}
