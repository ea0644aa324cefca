// Package sumeragi implements the BFT round state machine: per-round
// topology derivation, the Idle/LeaderProposing/Validating/AwaitingCommit/
// Committing/ViewChanging state machine, and the view-change escalation path
// built on internal/viewchange. It generalizes the teacher's
// internal/consensus package (a simple stake-weighted round-robin proposer
// with no Byzantine tolerance) into spec.md §4.6's leader/validator/
// proxy-tail/observer topology, keeping the teacher's single-task,
// select-loop-over-a-ticker-and-channels engine shape
// (internal/consensus/engine.go).
package sumeragi

import (
	"sort"

	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wire"
)

// Topology is the role assignment for one round, derived deterministically
// from the latest committed block hash and the round's view change index so
// every peer computes the same assignment without communicating.
type Topology struct {
	ViewChangeIndex uint64
	Leader          ids.PeerId
	ValidatingPeers []ids.PeerId
	ProxyTail       ids.PeerId
	ObservingPeers  []ids.PeerId
}

// AllPeers returns every peer in the topology in role order:
// Leader, ValidatingPeers..., ProxyTail, ObservingPeers....
func (t Topology) AllPeers() []ids.PeerId {
	out := make([]ids.PeerId, 0, 2+len(t.ValidatingPeers)+len(t.ObservingPeers))
	out = append(out, t.Leader)
	out = append(out, t.ValidatingPeers...)
	out = append(out, t.ProxyTail)
	out = append(out, t.ObservingPeers...)
	return out
}

// IsValidator reports whether peer is Leader, a ValidatingPeer, or the
// ProxyTail — i.e. required to sign BlockCreated for the round to commit.
func (t Topology) IsValidator(peer ids.PeerId) bool {
	if peer == t.Leader || peer == t.ProxyTail {
		return true
	}
	for _, p := range t.ValidatingPeers {
		if p == peer {
			return true
		}
	}
	return false
}

// DeriveTopology computes the role assignment for a round. peers must be the
// same static, sorted set on every honest node; f is the tolerated number of
// faulty peers (n must be >= 3f+1 for the round to make progress, but
// DeriveTopology itself does not enforce that — callers validate n/f before
// starting a round).
func DeriveTopology(peers []ids.PeerId, latestBlockHash cryptofacade.Hash, viewChangeIndex uint64, f int) Topology {
	ordered := orderPeers(peers, latestBlockHash, viewChangeIndex)

	t := Topology{ViewChangeIndex: viewChangeIndex}
	if len(ordered) == 0 {
		return t
	}
	t.Leader = ordered[0]
	pos := 1
	for i := 0; i < f && pos < len(ordered); i++ {
		t.ValidatingPeers = append(t.ValidatingPeers, ordered[pos])
		pos++
	}
	if pos < len(ordered) {
		t.ProxyTail = ordered[pos]
		pos++
	}
	t.ObservingPeers = append(t.ObservingPeers, ordered[pos:]...)
	return t
}

// orderPeers permutes peers deterministically, keyed by
// hash(latest_block_hash || view_change_index || peer_public_key) — every
// peer computes the identical ordering from identical inputs, and the
// ordering changes unpredictably (from an external observer's standpoint)
// with either input, preventing a static leader.
func orderPeers(peers []ids.PeerId, latestBlockHash cryptofacade.Hash, viewChangeIndex uint64) []ids.PeerId {
	type keyed struct {
		peer ids.PeerId
		key  cryptofacade.Hash
	}
	out := make([]keyed, len(peers))
	for i, p := range peers {
		e := wire.NewEncoder()
		e.FixedBytes(latestBlockHash[:])
		e.U64(viewChangeIndex)
		e.FixedBytes(p.PublicKey[:])
		out[i] = keyed{peer: p, key: cryptofacade.Sum(e.Bytes())}
	}
	sort.Slice(out, func(i, j int) bool {
		return string(out[i].key[:]) < string(out[j].key[:])
	})
	result := make([]ids.PeerId, len(out))
	for i, k := range out {
		result[i] = k.peer
	}
	return result
}
