package core

import (
	"fmt"
	"time"

	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/merkle"
	"github.com/hyperledger/iroha-sub010/internal/wire"
)

// RejectedTransaction records a transaction that was included in a block's
// proposal but failed execution; it is kept so clients can look up its
// rejection reason without having to trust the proposer out-of-band.
type RejectedTransaction struct {
	Transaction SignedTransaction
	Reason      string
}

// BlockHeader carries the metadata a peer needs to verify a block links
// correctly onto its parent and commits to its transaction set, generalizing
// the teacher's BlockHeader (internal/core/types/types.go) from a
// PoW-oriented (Nonce/Difficulty) header to Sumeragi's height+view-change
// header.
type BlockHeader struct {
	Height                uint64
	PreviousBlockHash     cryptofacade.Hash
	TransactionsHash      cryptofacade.Hash
	Timestamp             time.Time
	ViewChangeIndex       uint32
	ConsensusEstimationMs uint64
}

// Hash returns the content hash of the header, which is what peers sign as
// their commit vote for the block.
func (h BlockHeader) Hash() cryptofacade.Hash {
	e := wire.NewEncoder()
	e.U64(h.Height)
	e.FixedBytes(h.PreviousBlockHash[:])
	e.FixedBytes(h.TransactionsHash[:])
	e.U64(uint64(h.Timestamp.UnixMilli()))
	e.U32(h.ViewChangeIndex)
	e.U64(h.ConsensusEstimationMs)
	return cryptofacade.Sum(e.Bytes())
}

// Validate checks structural validity only.
func (h BlockHeader) Validate() error {
	var zero cryptofacade.Hash
	if h.Height == 0 {
		if h.PreviousBlockHash != zero {
			return fmt.Errorf("%w: genesis block must have a zero previous hash", ErrInvalidPreviousBlockHash)
		}
	} else if h.PreviousBlockHash == zero {
		return ErrInvalidPreviousBlockHash
	}
	if h.Timestamp.IsZero() {
		return ErrZeroTimestamp
	}
	return nil
}

// BlockPayload is the signed content of a block: its header, the
// transactions the proposer included, and the ones it rejected.
type BlockPayload struct {
	Header       BlockHeader
	Transactions []SignedTransaction
	Rejected     []RejectedTransaction
}

// ComputeTransactionsHash recomputes the Merkle root over every committed
// and rejected transaction's hash, each leaf identified by its payload hash.
// merkle.Hash sorts the leaves, so the root does not depend on the order in
// which committed and rejected transactions are listed.
func (p BlockPayload) ComputeTransactionsHash() cryptofacade.Hash {
	leaves := make([]cryptofacade.Hash, 0, len(p.Transactions)+len(p.Rejected))
	for _, tx := range p.Transactions {
		leaves = append(leaves, tx.Hash())
	}
	for _, rej := range p.Rejected {
		leaves = append(leaves, rej.Transaction.Hash())
	}
	return merkle.Hash(leaves)
}

// Validate checks structural validity, including that the header's
// TransactionsHash matches the recomputed Merkle root.
func (p BlockPayload) Validate() error {
	if err := p.Header.Validate(); err != nil {
		return err
	}
	for i, tx := range p.Transactions {
		if err := tx.Validate(); err != nil {
			return fmt.Errorf("core: committed transaction %d invalid: %w", i, err)
		}
	}
	for i, rej := range p.Rejected {
		if err := rej.Transaction.Validate(); err != nil {
			return fmt.Errorf("core: rejected transaction %d invalid: %w", i, err)
		}
	}
	if p.ComputeTransactionsHash() != p.Header.TransactionsHash {
		return ErrInvalidTransactionsHash
	}
	return nil
}

// SignedBlock is a block payload plus the commit signatures of the peers
// that validated it.
type SignedBlock struct {
	Payload    BlockPayload
	Signatures []Signature
}

// Hash returns the header hash, which is what the block store indexes by
// and what the next block's PreviousBlockHash must equal.
func (b SignedBlock) Hash() cryptofacade.Hash { return b.Payload.Header.Hash() }

// Validate checks the payload and every commit signature against the
// header hash. It does not check that the signer set meets the 2f+1
// threshold (a world-state/topology concern, see internal/sumeragi).
func (b SignedBlock) Validate() error {
	if err := b.Payload.Validate(); err != nil {
		return err
	}
	if len(b.Signatures) == 0 {
		return ErrMissingSignature
	}
	headerHash := b.Hash()
	for i, sig := range b.Signatures {
		if err := cryptofacade.Verify(sig.PublicKey, headerHash[:], sig.Bytes); err != nil {
			return fmt.Errorf("core: block signature %d: %w", i, ErrInvalidSignature)
		}
	}
	return nil
}
