package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
)

func genesisPayload() BlockPayload {
	header := BlockHeader{
		Height:    0,
		Timestamp: time.Unix(1700000000, 0),
	}
	payload := BlockPayload{Header: header}
	header.TransactionsHash = payload.ComputeTransactionsHash()
	payload.Header = header
	return payload
}

func TestBlockHeaderGenesisRequiresZeroPrevHash(t *testing.T) {
	h := BlockHeader{Height: 0, Timestamp: time.Now()}
	require.NoError(t, h.Validate())

	h.PreviousBlockHash = cryptofacade.Sum([]byte("not zero"))
	assert.ErrorIs(t, h.Validate(), ErrInvalidPreviousBlockHash)
}

func TestBlockHeaderNonGenesisRequiresNonZeroPrevHash(t *testing.T) {
	h := BlockHeader{Height: 1, Timestamp: time.Now()}
	assert.ErrorIs(t, h.Validate(), ErrInvalidPreviousBlockHash)
}

func TestBlockPayloadValidateChecksTransactionsHash(t *testing.T) {
	p := genesisPayload()
	require.NoError(t, p.Validate())

	p.Header.TransactionsHash = cryptofacade.Sum([]byte("wrong"))
	assert.ErrorIs(t, p.Validate(), ErrInvalidTransactionsHash)
}

func TestSignedBlockValidate(t *testing.T) {
	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	payload := genesisPayload()
	h := payload.Header.Hash()
	block := SignedBlock{
		Payload:    payload,
		Signatures: []Signature{{PublicKey: kp.Public, Bytes: kp.Sign(h[:])}},
	}
	require.NoError(t, block.Validate())
}
