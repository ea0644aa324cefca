package wsv

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/ids"
)

func setupWonderland(t *testing.T) *WSV {
	t.Helper()
	w := New()
	require.NoError(t, w.RegisterDomain("wonderland"))
	require.NoError(t, w.RegisterAccount(ids.AccountId{Name: "alice", Domain: "wonderland"}, nil))
	require.NoError(t, w.RegisterAccount(ids.AccountId{Name: "bob", Domain: "wonderland"}, nil))
	require.NoError(t, w.RegisterAssetDefinition(ids.AssetDefinitionId{Name: "rose", Domain: "wonderland"}, true))
	return w
}

func TestMintAndTransfer(t *testing.T) {
	w := setupWonderland(t)
	alice := ids.AccountId{Name: "alice", Domain: "wonderland"}
	bob := ids.AccountId{Name: "bob", Domain: "wonderland"}
	rose := ids.AssetDefinitionId{Name: "rose", Domain: "wonderland"}

	require.NoError(t, w.Mint(ids.AssetId{Definition: rose, Account: alice}, core.NewQuantity(100)))
	require.NoError(t, w.Transfer(alice, bob, rose, core.NewQuantity(40)))

	aliceAcc, err := w.Account(alice)
	require.NoError(t, err)
	assert.Equal(t, uint32(60), aliceAcc.Assets[ids.AssetId{Definition: rose, Account: alice}.String()].Value.Quantity)

	bobAcc, err := w.Account(bob)
	require.NoError(t, err)
	assert.Equal(t, uint32(40), bobAcc.Assets[ids.AssetId{Definition: rose, Account: bob}.String()].Value.Quantity)
}

func TestTransferInsufficientFunds(t *testing.T) {
	w := setupWonderland(t)
	alice := ids.AccountId{Name: "alice", Domain: "wonderland"}
	bob := ids.AccountId{Name: "bob", Domain: "wonderland"}
	rose := ids.AssetDefinitionId{Name: "rose", Domain: "wonderland"}

	err := w.Transfer(alice, bob, rose, core.NewQuantity(1))
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestApplyRollsBackFailingTransaction(t *testing.T) {
	w := setupWonderland(t)
	alice := ids.AccountId{Name: "alice", Domain: "wonderland"}
	rose := ids.AssetDefinitionId{Name: "rose", Domain: "wonderland"}
	require.NoError(t, w.Mint(ids.AssetId{Definition: rose, Account: alice}, core.NewQuantity(10)))

	badTx := core.SignedTransaction{
		Payload: core.TransactionPayload{
			Authority: alice,
			Instructions: []core.Instruction{
				{Kind: core.InstructionBurn, AssetId: ids.AssetId{Definition: rose, Account: alice}, Amount: core.NewQuantity(5)},
				{Kind: core.InstructionRegisterDomain, DomainId: "wonderland"},
			},
		},
	}
	block := core.SignedBlock{
		Payload: core.BlockPayload{
			Header:       core.BlockHeader{Height: 1, Timestamp: time.Now()},
			Transactions: []core.SignedTransaction{badTx},
		},
	}
	err := w.Apply(block)
	assert.ErrorIs(t, err, ErrRolledBack)

	acc, rerr := w.Account(alice)
	require.NoError(t, rerr)
	assert.Equal(t, uint32(10), acc.Assets[ids.AssetId{Definition: rose, Account: alice}.String()].Value.Quantity)
}

func TestDomainIdsSorted(t *testing.T) {
	w := New()
	require.NoError(t, w.RegisterDomain("zeta"))
	require.NoError(t, w.RegisterDomain("alpha"))
	assert.Equal(t, []ids.DomainId{"alpha", "zeta"}, w.DomainIds())
}

func TestTriggerFiresAndDecrementsRepeats(t *testing.T) {
	w := setupWonderland(t)
	alice := ids.AccountId{Name: "alice", Domain: "wonderland"}
	rose := ids.AssetDefinitionId{Name: "rose", Domain: "wonderland"}

	trig := &Trigger{
		Id:     "mint-once",
		Filter: FilterPipeline,
		Owner:  alice,
		Action: []core.Instruction{
			{Kind: core.InstructionMint, AssetId: ids.AssetId{Definition: rose, Account: alice}, Amount: core.NewQuantity(1)},
		},
		Repeats: Repeats{Kind: RepeatExactly, Remaining: 1},
	}
	require.NoError(t, w.RegisterTrigger(trig))

	block := core.SignedBlock{Payload: core.BlockPayload{Header: core.BlockHeader{Height: 1, Timestamp: time.Now()}}}
	require.NoError(t, w.Apply(block))

	acc, err := w.Account(alice)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), acc.Assets[ids.AssetId{Definition: rose, Account: alice}.String()].Value.Quantity)

	block2 := core.SignedBlock{Payload: core.BlockPayload{Header: core.BlockHeader{Height: 2, PreviousBlockHash: block.Hash(), Timestamp: time.Now()}}}
	require.NoError(t, w.Apply(block2))

	acc, err = w.Account(alice)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), acc.Assets[ids.AssetId{Definition: rose, Account: alice}.String()].Value.Quantity, "repeat-exactly trigger must not fire a second time")
}
