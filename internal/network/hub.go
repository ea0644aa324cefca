// Package network provides the peer-to-peer transport Sumeragi and block
// sync run over. Hub/Transport replace the teacher's string-keyed
// SimulatedNetwork/Peer pair (internal/network/simulation.go) with a typed,
// in-process message bus addressed by ids.PeerId and carrying
// sumeragi.InboundMessage directly instead of a generic NetworkMessage{Type,
// Data []byte} envelope — there is no wire codec to go through in-process,
// so the type-erasure the teacher's simulation relied on has no job to do
// here. internal/node wires a real Transport per peer from the same Hub in
// tests and local multi-peer runs; a genuine network transport (TCP/QUIC)
// would implement the same sumeragi.Transport and blocksync.Provider
// interfaces behind this package's boundary without touching callers.
package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/kura"
	"github.com/hyperledger/iroha-sub010/internal/sumeragi"
	"github.com/hyperledger/iroha-sub010/internal/viewchange"
)

const inboxCapacity = 256

// Hub is the shared in-process bus every peer's Transport is attached to.
// It never holds consensus logic of its own: it only routes messages by
// public key and, for block sync, exposes the store a peer registered so
// another peer can catch up against it.
type Hub struct {
	mu          sync.RWMutex
	transports  map[string]*Transport
	blockStores map[string]*kura.Store
}

// NewHub creates an empty, unattached bus.
func NewHub() *Hub {
	return &Hub{
		transports:  make(map[string]*Transport),
		blockStores: make(map[string]*kura.Store),
	}
}

// Join attaches a new peer to the hub and returns its Transport. peers is
// the full fixed peer set (including self) that sumeragi.DeriveTopology
// needs; logger is tagged with a fresh session id for this join, following
// the teacher's "SIMNET [%s]: ..." per-connection log-line idiom.
func (h *Hub) Join(self ids.PeerId, peers []ids.PeerId, logger *logrus.Entry) *Transport {
	t := &Transport{
		hub:       h,
		self:      self,
		peers:     peers,
		sessionID: uuid.New(),
		inbox:     make(chan sumeragi.InboundMessage, inboxCapacity),
		logger:    logger.WithField("component", "network").WithField("peer", self.String()),
	}

	h.mu.Lock()
	h.transports[peerKey(self)] = t
	h.mu.Unlock()

	t.logger.WithField("session", t.sessionID).Info("joined hub")
	return t
}

// RegisterBlockStore lets peer's block store be read by others during block
// sync (FetchBlocks); without a registration, a peer has nothing to serve.
func (h *Hub) RegisterBlockStore(peer ids.PeerId, store *kura.Store) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.blockStores[peerKey(peer)] = store
}

// FetchBlocks implements blocksync.Provider by reading directly from the
// source peer's registered store: the in-process hub has no wire transfer
// to perform, so this is the in-memory equivalent of a block-range RPC.
func (h *Hub) FetchBlocks(_ context.Context, peer ids.PeerId, from, to uint64) ([]core.SignedBlock, error) {
	h.mu.RLock()
	store, ok := h.blockStores[peerKey(peer)]
	h.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("network: no block store registered for peer %s", peer)
	}

	var out []core.SignedBlock
	for height := from; height <= to; height++ {
		block, err := store.GetByHeight(height)
		if err != nil {
			return nil, fmt.Errorf("network: fetching block %d from %s: %w", height, peer, err)
		}
		out = append(out, block)
	}
	return out, nil
}

func (h *Hub) lookup(peer ids.PeerId) (*Transport, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t, ok := h.transports[peerKey(peer)]
	return t, ok
}

func (h *Hub) others(self ids.PeerId) []*Transport {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Transport, 0, len(h.transports))
	selfKey := peerKey(self)
	for key, t := range h.transports {
		if key == selfKey {
			continue
		}
		out = append(out, t)
	}
	return out
}

func peerKey(p ids.PeerId) string {
	return fmt.Sprintf("%x", p.PublicKey[:])
}

// Transport is one peer's view of the Hub: it implements
// sumeragi.Transport, addressing every send/broadcast by ids.PeerId rather
// than the raw byte-slice NetworkMessage envelope the teacher's
// SimulatedNetwork used.
type Transport struct {
	hub       *Hub
	self      ids.PeerId
	peers     []ids.PeerId
	sessionID uuid.UUID
	inbox     chan sumeragi.InboundMessage
	logger    *logrus.Entry
}

func (t *Transport) Peers() []ids.PeerId                   { return t.peers }
func (t *Transport) Self() ids.PeerId                      { return t.self }
func (t *Transport) Inbox() <-chan sumeragi.InboundMessage { return t.inbox }

// SendBlockSigned delivers msg to exactly one peer (the ProxyTail), per
// sumeragi's aggregation step.
func (t *Transport) SendBlockSigned(to ids.PeerId, msg sumeragi.BlockSigned) {
	t.deliver(to, sumeragi.InboundMessage{Kind: sumeragi.InboundBlockSigned, From: t.self, BlockSigned: &msg})
}

// BroadcastBlockCreated fans msg out to every other peer.
func (t *Transport) BroadcastBlockCreated(msg sumeragi.BlockCreated) {
	t.broadcast(sumeragi.InboundMessage{Kind: sumeragi.InboundBlockCreated, From: t.self, BlockCreated: &msg})
}

// BroadcastBlockCommitted fans msg out to every other peer.
func (t *Transport) BroadcastBlockCommitted(msg sumeragi.BlockCommitted) {
	t.broadcast(sumeragi.InboundMessage{Kind: sumeragi.InboundBlockCommitted, From: t.self, BlockCommitted: &msg})
}

// BroadcastViewChangeProof fans p out to every other peer.
func (t *Transport) BroadcastViewChangeProof(p viewchange.Proof) {
	t.broadcast(sumeragi.InboundMessage{Kind: sumeragi.InboundViewChangeProof, From: t.self, ViewChangeProof: &p})
}

// BroadcastEquivocationProof fans p out to every other peer.
func (t *Transport) BroadcastEquivocationProof(p sumeragi.EquivocationProof) {
	t.broadcast(sumeragi.InboundMessage{Kind: sumeragi.InboundEquivocationProof, From: t.self, EquivocationProof: &p})
}

func (t *Transport) deliver(to ids.PeerId, msg sumeragi.InboundMessage) {
	target, ok := t.hub.lookup(to)
	if !ok {
		t.logger.WithField("to", to.String()).Warn("send to unknown peer dropped")
		return
	}
	select {
	case target.inbox <- msg:
	default:
		t.logger.WithField("to", to.String()).Warn("peer inbox full, message dropped")
	}
}

func (t *Transport) broadcast(msg sumeragi.InboundMessage) {
	for _, target := range t.hub.others(t.self) {
		select {
		case target.inbox <- msg:
		default:
			t.logger.WithField("to", target.self.String()).Warn("peer inbox full, message dropped")
		}
	}
}
