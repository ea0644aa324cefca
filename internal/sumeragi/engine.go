package sumeragi

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/kura"
	"github.com/hyperledger/iroha-sub010/internal/queue"
	"github.com/hyperledger/iroha-sub010/internal/viewchange"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// State is one node of the round state machine (spec.md §4.6).
type State int

const (
	StateIdle State = iota
	StateLeaderProposing
	StateValidating
	StateAwaitingCommit
	StateCommitting
	StateViewChanging
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLeaderProposing:
		return "LeaderProposing"
	case StateValidating:
		return "Validating"
	case StateAwaitingCommit:
		return "AwaitingCommit"
	case StateCommitting:
		return "Committing"
	case StateViewChanging:
		return "ViewChanging"
	default:
		return "Unknown"
	}
}

// Config holds the round timers and per-block limits spec.md §4.6 names.
type Config struct {
	TxReceiptTimeoutMs uint64
	BlockTimeMs        uint64
	CommitTimeMs       uint64
	MaxTxsPerBlock     int
	MaxFaults          int
}

// Transport is the network boundary a round engine needs: a fixed peer set,
// this node's own identity within it, an inbound message stream, and
// broadcast/send primitives. internal/network provides the real
// implementation; tests substitute an in-process fake.
type Transport interface {
	Peers() []ids.PeerId
	Self() ids.PeerId
	Inbox() <-chan InboundMessage
	SendBlockSigned(to ids.PeerId, msg BlockSigned)
	BroadcastBlockCreated(msg BlockCreated)
	BroadcastBlockCommitted(msg BlockCommitted)
	BroadcastViewChangeProof(p viewchange.Proof)
	BroadcastEquivocationProof(p EquivocationProof)
}

// Engine owns one round at a time. Its Run loop is meant to execute on a
// single goroutine (spec.md §5's "round state machine is single-threaded"),
// matching the teacher's internal/consensus/engine.go select-loop shape; the
// exported Propose/Validate/Collect/Commit methods below are also safe to
// call directly (as tests do) since a round only ever progresses forwards.
type Engine struct {
	mu sync.Mutex

	cfg     Config
	keypair cryptofacade.KeyPair
	self    ids.PeerId
	peers   []ids.PeerId

	store *kura.Store
	world *wsv.WSV
	q     *queue.Queue
	exec  wsv.Policy

	transport Transport
	logger    *logrus.Entry

	state           State
	viewChangeIndex uint64
	topology        Topology
	chain           viewchange.Chain
	candidate       *core.SignedBlock
	collected       map[string]core.Signature // proxy-tail aggregation, keyed by hex public key
	roundStart      time.Time
}

// NewEngine wires an Engine from its collaborators. world, store and q are
// expected to already be open/initialized; Engine never owns their
// lifecycle. exec, if non-nil, is installed onto world as its permission
// and upgrade policy (spec.md §4.5) — every subsequent Apply/ApplyTransaction
// against world or any of its clones (ProposeBlock's and ShadowValidate's
// shadow copies included) consults it per instruction.
func NewEngine(cfg Config, keypair cryptofacade.KeyPair, peers []ids.PeerId, store *kura.Store, world *wsv.WSV, q *queue.Queue, exec wsv.Policy, transport Transport, logger *logrus.Entry) *Engine {
	self := transport.Self()
	if exec != nil {
		world.SetPolicy(exec)
	}
	return &Engine{
		cfg:       cfg,
		keypair:   keypair,
		self:      self,
		peers:     peers,
		store:     store,
		world:     world,
		q:         q,
		exec:      exec,
		transport: transport,
		logger:    logger.WithField("component", "sumeragi"),
		collected: make(map[string]core.Signature),
	}
}

// Status reports the engine's current round state, for telemetry.
func (e *Engine) Status() (State, uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state, e.viewChangeIndex
}

// StartRound derives this round's topology from the current chain tip and
// enters LeaderProposing (if this node is leader) or Idle.
func (e *Engine) StartRound() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.topology = DeriveTopology(e.peers, e.world.TopHash(), e.viewChangeIndex, e.cfg.MaxFaults)
	e.candidate = nil
	e.collected = make(map[string]core.Signature)
	e.roundStart = time.Now()
	if e.self == e.topology.Leader {
		e.state = StateLeaderProposing
	} else {
		e.state = StateIdle
	}
}

// ProposeBlock drains the queue, classifies each transaction against a
// shadow clone of world, and returns a signed candidate block. Leader-only;
// callers are expected to have already confirmed e.self == e.topology.Leader.
func (e *Engine) ProposeBlock(now time.Time) (core.SignedBlock, error) {
	popped := e.q.PopForProposal(e.cfg.MaxTxsPerBlock, now, e.world)

	shadow := e.world.Clone()
	var committed []core.SignedTransaction
	var rejected []core.RejectedTransaction
	for _, tx := range popped {
		if err := shadow.ApplyTransaction(now, tx); err != nil {
			rejected = append(rejected, core.RejectedTransaction{Transaction: tx, Reason: err.Error()})
			continue
		}
		committed = append(committed, tx)
	}

	payload := core.BlockPayload{
		Header: core.BlockHeader{
			Height:            e.world.Height() + 1,
			PreviousBlockHash: e.world.TopHash(),
			Timestamp:         now,
			ViewChangeIndex:   uint32(e.viewChangeIndex),
		},
		Transactions: committed,
		Rejected:     rejected,
	}
	payload.Header.TransactionsHash = payload.ComputeTransactionsHash()

	headerHash := payload.Header.Hash()
	block := core.SignedBlock{
		Payload:    payload,
		Signatures: []core.Signature{{PublicKey: e.keypair.Public, Bytes: e.keypair.Sign(headerHash[:])}},
	}

	e.mu.Lock()
	e.candidate = &block
	e.state = StateValidating
	e.mu.Unlock()
	return block, nil
}

// ValidateCandidate checks a leader's BlockCreated message structurally,
// against this round's expected height/parent/topology, and by shadow
// execution, returning this node's commit signature if everything holds.
func (e *Engine) ValidateCandidate(msg BlockCreated) (core.Signature, error) {
	block := msg.Block
	if err := block.Validate(); err != nil {
		return core.Signature{}, fmt.Errorf("sumeragi: candidate structurally invalid: %w", err)
	}

	e.mu.Lock()
	topology := e.topology
	viewChangeIndex := e.viewChangeIndex
	e.mu.Unlock()

	if block.Payload.Header.Height != e.world.Height()+1 {
		return core.Signature{}, fmt.Errorf("sumeragi: candidate height %d, expected %d", block.Payload.Header.Height, e.world.Height()+1)
	}
	if block.Payload.Header.PreviousBlockHash != e.world.TopHash() {
		return core.Signature{}, fmt.Errorf("sumeragi: candidate parent hash mismatch")
	}
	if uint64(block.Payload.Header.ViewChangeIndex) != viewChangeIndex {
		return core.Signature{}, fmt.Errorf("sumeragi: candidate view change index %d, expected %d", block.Payload.Header.ViewChangeIndex, viewChangeIndex)
	}

	leaderSigned := false
	headerHash := block.Hash()
	for _, sig := range block.Signatures {
		if string(sig.PublicKey) == string(topology.Leader.PublicKey[:]) {
			if err := cryptofacade.Verify(sig.PublicKey, headerHash[:], sig.Bytes); err != nil {
				return core.Signature{}, fmt.Errorf("sumeragi: leader signature invalid: %w", err)
			}
			leaderSigned = true
		}
	}
	if !leaderSigned {
		return core.Signature{}, fmt.Errorf("sumeragi: candidate missing leader signature")
	}

	if err := ShadowValidate(e.world, block); err != nil {
		return core.Signature{}, err
	}

	e.mu.Lock()
	e.candidate = &block
	e.state = StateAwaitingCommit
	e.mu.Unlock()

	return core.Signature{PublicKey: e.keypair.Public, Bytes: e.keypair.Sign(headerHash[:])}, nil
}

// CollectSignature is the ProxyTail's aggregation step: fold in one
// validator's BlockSigned vote and report whether a quorum of 2f+1 distinct,
// valid signatures (including the ProxyTail's own) has now been reached.
func (e *Engine) CollectSignature(msg BlockSigned) (core.SignedBlock, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.candidate == nil || e.candidate.Hash() != msg.BlockHash {
		return core.SignedBlock{}, false, fmt.Errorf("sumeragi: signature for unknown candidate %s", msg.BlockHash)
	}
	headerHash := e.candidate.Hash()
	if err := cryptofacade.Verify(msg.Signature.PublicKey, headerHash[:], msg.Signature.Bytes); err != nil {
		return core.SignedBlock{}, false, fmt.Errorf("sumeragi: invalid signature in BlockSigned: %w", err)
	}

	key := fmt.Sprintf("%x", msg.Signature.PublicKey)
	e.collected[key] = msg.Signature

	quorum := 2*e.cfg.MaxFaults + 1
	if len(e.collected) < quorum {
		return core.SignedBlock{}, false, nil
	}

	sigs := make([]core.Signature, 0, len(e.collected))
	for _, sig := range e.collected {
		sigs = append(sigs, sig)
	}
	out := core.SignedBlock{Payload: e.candidate.Payload, Signatures: sigs}
	e.state = StateCommitting
	return out, true, nil
}

// Commit applies a BlockCommitted message: re-verifies the aggregate
// signature count, applies it to world, appends it to store, clears the
// queue of its transactions and resets the view change index. It does not
// start the next round; dispatch calls StartRound after a successful
// Commit. A commit for a height this node has already
// stored, carrying a different hash, is a disjoint-signer-set conflict and
// is surfaced as a FatalHaltError rather than silently ignored.
func (e *Engine) Commit(msg BlockCommitted) error {
	block := msg.Block
	if err := block.Validate(); err != nil {
		return fmt.Errorf("sumeragi: committed block structurally invalid: %w", err)
	}

	e.mu.Lock()
	maxFaults := e.cfg.MaxFaults
	e.mu.Unlock()

	quorum := 2*maxFaults + 1
	seen := make(map[string]struct{}, len(block.Signatures))
	valid := 0
	headerHash := block.Hash()
	for _, sig := range block.Signatures {
		key := string(sig.PublicKey)
		if _, dup := seen[key]; dup {
			continue
		}
		if err := cryptofacade.Verify(sig.PublicKey, headerHash[:], sig.Bytes); err != nil {
			continue
		}
		seen[key] = struct{}{}
		valid++
	}
	if valid < quorum {
		return fmt.Errorf("sumeragi: committed block carries only %d valid signatures, need %d", valid, quorum)
	}

	if existing, err := e.store.GetByHeight(block.Payload.Header.Height); err == nil {
		if existing.Hash() != block.Hash() {
			return FatalHaltError{Reason: fmt.Sprintf("conflicting commits at height %d", block.Payload.Header.Height)}
		}
		return nil // already committed, idempotent replay
	}

	if err := e.world.Apply(block); err != nil {
		return fmt.Errorf("sumeragi: applying committed block: %w", err)
	}
	if err := e.store.Append(block); err != nil {
		return fmt.Errorf("sumeragi: appending committed block to store: %w", err)
	}

	hashes := make([]cryptofacade.Hash, 0, len(block.Payload.Transactions))
	for _, tx := range block.Payload.Transactions {
		hashes = append(hashes, tx.Hash())
	}
	e.q.RemoveCommitted(hashes)

	e.mu.Lock()
	e.viewChangeIndex = 0
	e.chain = nil
	e.mu.Unlock()

	return nil
}

// Run drives the round state machine from the network and timers until ctx
// is cancelled. It is the production entrypoint; unit tests instead drive
// StartRound/ProposeBlock/ValidateCandidate/CollectSignature/Commit
// directly to avoid depending on wall-clock timing.
func (e *Engine) Run(ctx context.Context) error {
	e.StartRound()
	if st, _ := e.Status(); st == StateLeaderProposing {
		block, err := e.ProposeBlock(time.Now())
		if err != nil {
			e.logger.WithError(err).Error("propose block")
		} else {
			e.transport.BroadcastBlockCreated(BlockCreated{Block: block})
		}
	}

	txTimer := time.NewTimer(time.Duration(e.cfg.TxReceiptTimeoutMs) * time.Millisecond)
	defer txTimer.Stop()
	commitTimer := time.NewTimer(time.Duration(e.cfg.CommitTimeMs) * time.Millisecond)
	defer commitTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-e.transport.Inbox():
			if !ok {
				return nil
			}
			if err := e.dispatch(msg); err != nil {
				return err
			}
		case <-txTimer.C:
			e.logger.Warn("tx receipt timeout, initiating view change")
			e.beginViewChange()
		case <-commitTimer.C:
			e.logger.Warn("commit timeout, initiating view change")
			e.beginViewChange()
		}
	}
}

// dispatch handles one inbound message. It returns a non-nil error only for
// FatalHaltError conditions, which Run propagates to its caller so
// internal/node can map them to spec.md §6's exit code 3 rather than
// terminating the process here.
func (e *Engine) dispatch(msg InboundMessage) error {
	switch msg.Kind {
	case InboundBlockCreated:
		sig, err := e.ValidateCandidate(*msg.BlockCreated)
		if err != nil {
			e.logger.WithError(err).Warn("candidate rejected, initiating view change")
			e.beginViewChange()
			return nil
		}
		e.transport.SendBlockSigned(e.topologyProxyTail(), BlockSigned{BlockHash: msg.BlockCreated.Block.Hash(), Height: msg.BlockCreated.Block.Payload.Header.Height, Signature: sig})
	case InboundBlockSigned:
		block, ready, err := e.CollectSignature(*msg.BlockSigned)
		if err != nil {
			e.logger.WithError(err).Warn("signature rejected")
			return nil
		}
		if ready {
			e.transport.BroadcastBlockCommitted(BlockCommitted{Block: block})
		}
	case InboundBlockCommitted:
		if err := e.Commit(*msg.BlockCommitted); err != nil {
			if _, fatal := err.(FatalHaltError); fatal {
				e.logger.WithError(err).Error("halting: disjoint-signer commit conflict")
				return err
			}
			e.logger.WithError(err).Warn("commit rejected")
			return nil
		}
		e.StartRound()
	case InboundViewChangeProof:
		e.handleViewChangeProof(*msg.ViewChangeProof)
	case InboundEquivocationProof:
		e.logger.WithField("height", msg.EquivocationProof.Height).Warn("equivocation proof received, initiating view change")
		e.beginViewChange()
	}
	return nil
}

func (e *Engine) topologyProxyTail() ids.PeerId {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.topology.ProxyTail
}

func (e *Engine) beginViewChange() {
	e.mu.Lock()
	e.state = StateViewChanging
	proof := viewchange.Proof{LatestBlockHash: e.world.TopHash(), ViewChangeIndex: e.viewChangeIndex}
	proof.Sign(e.keypair)
	e.mu.Unlock()
	e.transport.BroadcastViewChangeProof(proof)
}

func (e *Engine) handleViewChangeProof(p viewchange.Proof) {
	e.mu.Lock()
	peerSet := viewchange.PeerSet(e.peers)
	if err := e.chain.InsertProof(peerSet, e.cfg.MaxFaults, e.world.TopHash(), p); err != nil {
		e.logger.WithError(err).Debug("view change proof not inserted")
		e.mu.Unlock()
		return
	}
	advanced := e.chain.VerifyWithState(peerSet, e.cfg.MaxFaults, e.world.TopHash()) > int(e.viewChangeIndex)
	if advanced {
		e.viewChangeIndex++
		e.logger.WithField("view_change_index", e.viewChangeIndex).Info("view change committed, advancing round")
	}
	e.mu.Unlock()

	if advanced {
		e.StartRound()
	}
}
