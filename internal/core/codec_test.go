package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wire"
)

func TestEncodeDecodeTransactionRoundTrips(t *testing.T) {
	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	tx := signedPayload(t, kp, ids.AccountId{Name: "alice", Domain: "wonderland"})
	tx.Payload.Metadata = map[string][]byte{"memo": []byte("hello")}

	e := wire.NewEncoder()
	EncodeTransaction(e, tx)

	decoded, err := DecodeTransaction(wire.NewDecoder(e.Bytes()))
	require.NoError(t, err)

	assert.Equal(t, tx.Payload.Authority, decoded.Payload.Authority)
	assert.Equal(t, tx.Payload.Instructions, decoded.Payload.Instructions)
	assert.Equal(t, tx.Payload.Metadata, decoded.Payload.Metadata)
	assert.Equal(t, tx.Hash(), decoded.Hash())
	require.Len(t, decoded.Signatures, 1)
	assert.Equal(t, tx.Signatures[0].Bytes, decoded.Signatures[0].Bytes)
}

func TestEncodeDecodeInstructionRoundTripsEveryFieldKind(t *testing.T) {
	ins := Instruction{
		Kind:        InstructionTransfer,
		AssetId:     ids.AssetId{Definition: ids.AssetDefinitionId{Name: "rose", Domain: "wonderland"}, Account: ids.AccountId{Name: "alice", Domain: "wonderland"}},
		Destination: ids.AccountId{Name: "bob", Domain: "wonderland"},
		Amount:      NewQuantity(42),
	}

	e := wire.NewEncoder()
	EncodeInstruction(e, ins)

	decoded, err := DecodeInstruction(wire.NewDecoder(e.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, ins, decoded)
}

func TestDecodeTransactionRejectsTruncatedInput(t *testing.T) {
	_, err := DecodeTransaction(wire.NewDecoder([]byte{0, 0, 0}))
	assert.Error(t, err)
}
