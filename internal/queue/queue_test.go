package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
)

func makeSignedTx(t *testing.T, kp cryptofacade.KeyPair, nonce uint32) core.SignedTransaction {
	t.Helper()
	payload := core.TransactionPayload{
		Authority: ids.AccountId{Name: "alice", Domain: "wonderland"},
		Instructions: []core.Instruction{
			{Kind: core.InstructionMint, AssetId: ids.AssetId{
				Definition: ids.AssetDefinitionId{Name: "rose", Domain: "wonderland"},
				Account:    ids.AccountId{Name: "alice", Domain: "wonderland"},
			}, Amount: core.NewQuantity(1)},
		},
		CreationTime: time.Now(),
		TimeToLiveMs: 60_000,
		Nonce:        nonce,
	}
	h := payload.Hash()
	return core.SignedTransaction{
		Payload:    payload,
		Signatures: []core.Signature{{PublicKey: kp.Public, Bytes: kp.Sign(h[:])}},
	}
}

func TestPushAndPopForProposal(t *testing.T) {
	q := New(10, nil, nil)
	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	tx := makeSignedTx(t, kp, 1)

	res := q.Push(time.Now(), tx)
	assert.True(t, res.Accepted)
	assert.True(t, res.Final)

	popped := q.PopForProposal(10, time.Now(), nil)
	require.Len(t, popped, 1)
	assert.Equal(t, tx.Hash(), popped[0].Hash())
}

func TestPushRejectsExpired(t *testing.T) {
	q := New(10, nil, nil)
	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	tx := makeSignedTx(t, kp, 1)
	tx.Payload.TimeToLiveMs = 1
	tx.Payload.CreationTime = time.Now().Add(-time.Hour)
	h := tx.Payload.Hash()
	tx.Signatures = []core.Signature{{PublicKey: kp.Public, Bytes: kp.Sign(h[:])}}

	res := q.Push(time.Now(), tx)
	assert.False(t, res.Accepted)
	assert.Equal(t, ReasonExpired, res.Reason)
}

func TestPushRejectsWhenFull(t *testing.T) {
	q := New(1, nil, nil)
	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)

	tx1 := makeSignedTx(t, kp, 1)
	res1 := q.Push(time.Now(), tx1)
	require.True(t, res1.Accepted)

	kp2, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	tx2 := makeSignedTx(t, kp2, 2)
	res2 := q.Push(time.Now(), tx2)
	assert.Equal(t, ReasonFull, res2.Reason)
}

func TestRemoveCommitted(t *testing.T) {
	q := New(10, nil, nil)
	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	tx := makeSignedTx(t, kp, 1)
	q.Push(time.Now(), tx)
	require.Equal(t, 1, q.Len())

	q.RemoveCommitted([]cryptofacade.Hash{tx.Hash()})
	assert.Equal(t, 0, q.Len())
}

type alwaysMissingAuthority struct{}

func (alwaysMissingAuthority) SignatureThreshold(core.SignedTransaction) (int, bool) { return 0, false }

func TestPushRejectsUnknownAuthority(t *testing.T) {
	q := New(10, alwaysMissingAuthority{}, nil)
	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	tx := makeSignedTx(t, kp, 1)

	res := q.Push(time.Now(), tx)
	assert.Equal(t, ReasonAuthorityNotFound, res.Reason)
}

type multisigAuthority struct{ threshold int }

func (m multisigAuthority) SignatureThreshold(core.SignedTransaction) (int, bool) { return m.threshold, true }

func TestPushMultisigMergeBecomesFinal(t *testing.T) {
	q := New(10, multisigAuthority{threshold: 2}, nil)
	kp1, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	kp2, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)

	payload := core.TransactionPayload{
		Authority: ids.AccountId{Name: "alice", Domain: "wonderland"},
		Instructions: []core.Instruction{
			{Kind: core.InstructionMint, AssetId: ids.AssetId{
				Definition: ids.AssetDefinitionId{Name: "rose", Domain: "wonderland"},
				Account:    ids.AccountId{Name: "alice", Domain: "wonderland"},
			}, Amount: core.NewQuantity(1)},
		},
		CreationTime: time.Now(),
		TimeToLiveMs: 60_000,
	}
	h := payload.Hash()
	tx1 := core.SignedTransaction{Payload: payload, Signatures: []core.Signature{{PublicKey: kp1.Public, Bytes: kp1.Sign(h[:])}}}
	tx2 := core.SignedTransaction{Payload: payload, Signatures: []core.Signature{{PublicKey: kp2.Public, Bytes: kp2.Sign(h[:])}}}

	res1 := q.Push(time.Now(), tx1)
	require.True(t, res1.Accepted)
	assert.False(t, res1.Final, "single signature must not satisfy a threshold-2 account")

	res2 := q.Push(time.Now(), tx2)
	require.True(t, res2.Accepted)
	assert.True(t, res2.Final, "second distinct signature must satisfy the threshold")

	popped := q.PopForProposal(10, time.Now(), nil)
	require.Len(t, popped, 1)
	assert.Len(t, popped[0].Signatures, 2)
}
