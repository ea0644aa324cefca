package network

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/kura"
	"github.com/hyperledger/iroha-sub010/internal/sumeragi"
)

func genesisBlock(t *testing.T, kp cryptofacade.KeyPair) core.SignedBlock {
	t.Helper()
	payload := core.BlockPayload{Header: core.BlockHeader{Height: 0, Timestamp: time.Now()}}
	payload.Header.TransactionsHash = payload.ComputeTransactionsHash()
	h := payload.Header.Hash()
	return core.SignedBlock{Payload: payload, Signatures: []core.Signature{{PublicKey: kp.Public, Bytes: kp.Sign(h[:])}}}
}

func newPeers(t *testing.T, n int) []ids.PeerId {
	t.Helper()
	var peers []ids.PeerId
	for i := 0; i < n; i++ {
		kp, err := cryptofacade.GenerateKeyPair()
		require.NoError(t, err)
		var pk [32]byte
		copy(pk[:], kp.Public)
		peers = append(peers, ids.PeerId{PublicKey: pk, Address: "in-process"})
	}
	return peers
}

func TestBroadcastReachesEveryOtherPeerNotSelf(t *testing.T) {
	peers := newPeers(t, 3)
	hub := NewHub()
	logger := logrus.NewEntry(logrus.New())

	transports := make([]*Transport, 3)
	for i, p := range peers {
		transports[i] = hub.Join(p, peers, logger)
	}

	transports[0].BroadcastBlockCreated(sumeragi.BlockCreated{})

	select {
	case msg := <-transports[1].Inbox():
		assert.Equal(t, sumeragi.InboundBlockCreated, msg.Kind)
		assert.Equal(t, peers[0], msg.From)
	case <-time.After(time.Second):
		t.Fatal("peer 1 never received the broadcast")
	}
	select {
	case <-transports[0].Inbox():
		t.Fatal("broadcaster must not receive its own message")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestSendBlockSignedDeliversToOneRecipientOnly(t *testing.T) {
	peers := newPeers(t, 3)
	hub := NewHub()
	logger := logrus.NewEntry(logrus.New())

	transports := make([]*Transport, 3)
	for i, p := range peers {
		transports[i] = hub.Join(p, peers, logger)
	}

	transports[0].SendBlockSigned(peers[2], sumeragi.BlockSigned{})

	select {
	case msg := <-transports[2].Inbox():
		assert.Equal(t, sumeragi.InboundBlockSigned, msg.Kind)
	case <-time.After(time.Second):
		t.Fatal("peer 2 never received the direct send")
	}
	select {
	case <-transports[1].Inbox():
		t.Fatal("peer 1 must not receive a message addressed only to peer 2")
	case <-time.After(30 * time.Millisecond):
	}
}

func TestFetchBlocksReadsFromRegisteredStore(t *testing.T) {
	peers := newPeers(t, 2)
	hub := NewHub()

	store, err := kura.Open(t.TempDir())
	require.NoError(t, err)
	kp, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	genesis := genesisBlock(t, kp)
	require.NoError(t, store.Append(genesis))
	hub.RegisterBlockStore(peers[0], store)

	blocks, err := hub.FetchBlocks(context.Background(), peers[0], 0, 0)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, genesis.Hash(), blocks[0].Hash())
}

func TestFetchBlocksErrorsForUnregisteredPeer(t *testing.T) {
	peers := newPeers(t, 2)
	hub := NewHub()

	_, err := hub.FetchBlocks(context.Background(), peers[1], 0, 0)
	assert.Error(t, err)
}
