package kura

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
)

func genesisBlock(t *testing.T, kp cryptofacade.KeyPair) core.SignedBlock {
	t.Helper()
	header := core.BlockHeader{Height: 0, Timestamp: time.Unix(1700000000, 0).UTC()}
	payload := core.BlockPayload{Header: header}
	header.TransactionsHash = payload.ComputeTransactionsHash()
	payload.Header = header
	h := header.Hash()
	return core.SignedBlock{
		Payload:    payload,
		Signatures: []core.Signature{{PublicKey: kp.Public, Bytes: kp.Sign(h[:])}},
	}
}

func nextBlock(t *testing.T, kp cryptofacade.KeyPair, prev core.SignedBlock) core.SignedBlock {
	t.Helper()
	header := core.BlockHeader{
		Height:            prev.Payload.Header.Height + 1,
		PreviousBlockHash: prev.Hash(),
		Timestamp:         prev.Payload.Header.Timestamp.Add(time.Second),
	}
	payload := core.BlockPayload{Header: header}
	header.TransactionsHash = payload.ComputeTransactionsHash()
	payload.Header = header
	h := header.Hash()
	return core.SignedBlock{
		Payload:    payload,
		Signatures: []core.Signature{{PublicKey: kp.Public, Bytes: kp.Sign(h[:])}},
	}
}

func TestAppendAndGetByHeight(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)

	g := genesisBlock(t, kp)
	require.NoError(t, store.Append(g))
	assert.Equal(t, int64(0), store.Height())

	b1 := nextBlock(t, kp, g)
	require.NoError(t, store.Append(b1))
	assert.Equal(t, int64(1), store.Height())

	got, err := store.GetByHeight(0)
	require.NoError(t, err)
	assert.Equal(t, g.Hash(), got.Hash())

	got1, err := store.GetByHeight(1)
	require.NoError(t, err)
	assert.Equal(t, b1.Hash(), got1.Hash())
}

func TestAppendRejectsHeightGap(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	g := genesisBlock(t, kp)
	b1 := nextBlock(t, kp, g)

	err = store.Append(b1)
	assert.ErrorIs(t, err, ErrHeightGap)
}

func TestGetByHashAndReopenRebuildsIndex(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)

	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	g := genesisBlock(t, kp)
	require.NoError(t, store.Append(g))
	require.NoError(t, store.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, int64(0), reopened.Height())
	got, err := reopened.GetByHash(g.Hash())
	require.NoError(t, err)
	assert.Equal(t, g.Hash(), got.Hash())
}

func TestGetByHeightNotFound(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.GetByHeight(5)
	assert.ErrorIs(t, err, ErrNotFound)
}
