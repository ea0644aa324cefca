package sumeragi

import (
	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/viewchange"
)

// BlockCreated is the leader's candidate block for the round, signed with
// its own commit signature (step 2 of spec.md §4.6's happy path).
type BlockCreated struct {
	Block core.SignedBlock
}

// BlockSigned is one validator's commit vote, sent to the ProxyTail once it
// has re-executed the candidate against its own shadow WSV and found the
// rejection set consistent (step 3).
type BlockSigned struct {
	BlockHash cryptofacade.Hash
	Height    uint64
	Signature core.Signature
}

// BlockCommitted is the ProxyTail's aggregate of 2f+1 distinct signatures,
// broadcast once collected (step 4); every peer re-verifies and applies it
// on receipt (step 5).
type BlockCommitted struct {
	Block core.SignedBlock
}

// EquivocationProof is gossiped when a Byzantine leader sends two different
// candidate blocks for the same height and view change index; both are
// rejected and a view change proceeds (spec.md §4.6's tie-break rule).
type EquivocationProof struct {
	Height          uint64
	ViewChangeIndex uint64
	First           core.SignedBlock
	Second          core.SignedBlock
}

// InboundKind tags the variant carried by an InboundMessage.
type InboundKind int

const (
	InboundBlockCreated InboundKind = iota
	InboundBlockSigned
	InboundBlockCommitted
	InboundViewChangeProof
	InboundEquivocationProof
)

// InboundMessage is one message arriving from the network, tagged by kind.
type InboundMessage struct {
	Kind InboundKind

	From ids.PeerId

	BlockCreated      *BlockCreated
	BlockSigned       *BlockSigned
	BlockCommitted    *BlockCommitted
	ViewChangeProof   *viewchange.Proof
	EquivocationProof *EquivocationProof
}
