// Package viewchange implements the per-round proof chain that peers use to
// agree a leader has stalled and the topology should rotate. It is a close
// translation of original_source/core/src/sumeragi/view_change.rs's
// Proof/ProofChain into Go, trading the Rust trait-on-Vec<Proof> pattern for
// a named ProofChain type with the same method set.
package viewchange

import (
	"fmt"

	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wire"
)

// Proof is one peer's vote to advance the view change index for the current
// round. It becomes valid for a view change once at least max_faults+1
// distinct peers have signed it.
type Proof struct {
	LatestBlockHash cryptofacade.Hash
	ViewChangeIndex uint64
	Signatures      []Signature
}

// Signature pairs a public key with a signature over SignaturePayload.
type Signature struct {
	PublicKey []byte
	Bytes     []byte
}

// SignaturePayload returns the hash every peer signs: a function of both
// the latest committed block hash and the view change index, so proofs for
// different rounds or different indices within a round never collide.
func (p Proof) SignaturePayload() cryptofacade.Hash {
	e := wire.NewEncoder()
	e.FixedBytes(p.LatestBlockHash[:])
	e.U64(p.ViewChangeIndex)
	return cryptofacade.Sum(e.Bytes())
}

// Sign appends kp's signature over the proof's payload.
func (p *Proof) Sign(kp cryptofacade.KeyPair) {
	payload := p.SignaturePayload()
	p.Signatures = append(p.Signatures, Signature{PublicKey: kp.Public, Bytes: kp.Sign(payload[:])})
}

// MergeSignatures verifies each signature in other against the proof's
// payload and appends the ones that verify and are not already present.
func (p *Proof) MergeSignatures(other []Signature) {
	payload := p.SignaturePayload()
	for _, sig := range other {
		if err := cryptofacade.Verify(sig.PublicKey, payload[:], sig.Bytes); err != nil {
			continue
		}
		if !p.hasSignature(sig) {
			p.Signatures = append(p.Signatures, sig)
		}
	}
}

func (p Proof) hasSignature(sig Signature) bool {
	for _, existing := range p.Signatures {
		if string(existing.PublicKey) == string(sig.PublicKey) && string(existing.Bytes) == string(sig.Bytes) {
			return true
		}
	}
	return false
}

// Verify reports whether the proof carries at least max_faults+1 valid
// signatures from distinct peers in the given topology.
func (p Proof) Verify(peers map[string]ids.PeerId, maxFaults int) bool {
	payload := p.SignaturePayload()
	valid := 0
	seen := make(map[string]struct{})
	for _, sig := range p.Signatures {
		key := string(sig.PublicKey)
		if _, ok := peers[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if err := cryptofacade.Verify(sig.PublicKey, payload[:], sig.Bytes); err != nil {
			continue
		}
		seen[key] = struct{}{}
		valid++
	}
	return valid >= maxFaults+1
}

// PeerSet builds the lookup map Verify expects, keyed by raw public key bytes.
func PeerSet(peers []ids.PeerId) map[string]ids.PeerId {
	out := make(map[string]ids.PeerId, len(peers))
	for _, p := range peers {
		out[string(p.PublicKey[:])] = p
	}
	return out
}

// Chain is the ordered sequence of proofs accumulated for the current
// round, indexed by view change index (proof i proves the transition to
// view change index i).
type Chain []Proof

// VerifyWithState returns how many proofs, starting from index 0, form an
// unbroken, valid prefix for latestBlock — i.e. how many view changes have
// actually been proven so far this round.
func (c Chain) VerifyWithState(peers map[string]ids.PeerId, maxFaults int, latestBlock cryptofacade.Hash) int {
	count := 0
	for i, proof := range c {
		if proof.LatestBlockHash != latestBlock {
			break
		}
		if proof.ViewChangeIndex != uint64(i) {
			break
		}
		if !proof.Verify(peers, maxFaults) {
			break
		}
		count++
	}
	return count
}

// Prune truncates the chain to the valid prefix for latestBlock, dropping
// proofs left over from a round that has since committed a new block.
func (c *Chain) Prune(latestBlock cryptofacade.Hash) {
	valid := 0
	for i, proof := range *c {
		if proof.LatestBlockHash != latestBlock || proof.ViewChangeIndex != uint64(i) {
			break
		}
		valid++
	}
	*c = (*c)[:valid]
}

// InsertProof attempts to fold newProof into the chain: if it proves the
// next unfinished view change index, its signatures are merged into the
// existing proof at that index (or it is appended, if none exists yet).
func (c *Chain) InsertProof(peers map[string]ids.PeerId, maxFaults int, latestBlock cryptofacade.Hash, newProof Proof) error {
	if newProof.LatestBlockHash != latestBlock {
		return fmt.Errorf("viewchange: block hash mismatch")
	}
	next := c.VerifyWithState(peers, maxFaults, latestBlock)
	if newProof.ViewChangeIndex != uint64(next) {
		return fmt.Errorf("viewchange: wrong view change index: want %d, got %d", next, newProof.ViewChangeIndex)
	}

	*c = (*c)[:minInt(len(*c), next+1)]
	if len(*c) == next+1 {
		(*c)[next].MergeSignatures(newProof.Signatures)
	} else {
		*c = append(*c, newProof)
	}
	return nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
