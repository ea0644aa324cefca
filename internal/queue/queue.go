// Package queue is the bounded pending-transaction pool that sits between
// client submission and block proposal. It generalizes the teacher's
// internal/mempool/mempool.go (a bare map keyed by hex tx id, with a single
// ErrTxExists sentinel) into spec.md §4.4's full admission-control contract:
// a bounded capacity, an explicit rejection-reason taxonomy, and multisig
// merge-on-push semantics (SPEC_FULL.md §10).
package queue

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// Reason enumerates why Push rejected a transaction, matching spec.md §4.4's
// failure taxonomy.
type Reason int

const (
	ReasonNone Reason = iota
	ReasonFull
	ReasonExpired
	ReasonFuture
	ReasonDuplicateInQueue
	ReasonAlreadyCommitted
	ReasonSignatureCheckFailed
	ReasonAuthorityNotFound
)

func (r Reason) Error() string {
	switch r {
	case ReasonFull:
		return "queue: full"
	case ReasonExpired:
		return "queue: transaction expired"
	case ReasonFuture:
		return "queue: creation time too far in the future"
	case ReasonDuplicateInQueue:
		return "queue: duplicate transaction"
	case ReasonAlreadyCommitted:
		return "queue: already committed"
	case ReasonSignatureCheckFailed:
		return "queue: signature check failed"
	case ReasonAuthorityNotFound:
		return "queue: authority not found"
	default:
		return "queue: no error"
	}
}

// ErrFull is a sentinel carrying ReasonFull's message, kept for
// errors.Is-style callers that don't care about the full taxonomy,
// following the teacher's one-sentinel-per-family convention. Push does not
// return it: a full queue is reported as ReasonFull in the PushResult.
var ErrFull = errors.New(ReasonFull.Error())

// MaxFutureSkew bounds how far into the future a transaction's creation
// time may be before it is rejected as ReasonFuture.
const MaxFutureSkew = 5 * time.Second

// AuthorityChecker reports whether authority exists in world state and, if
// so, how many distinct signatures its signature-check condition requires.
// internal/wsv.WSV satisfies this via a thin adapter in internal/node.
type AuthorityChecker interface {
	SignatureThreshold(authority core.SignedTransaction) (int, bool)
}

// CommittedChecker reports whether a payload hash has already been
// committed to the chain, so a resubmission is rejected rather than queued.
type CommittedChecker interface {
	IsCommitted(hash cryptofacade.Hash) bool
}

// entry is one queued transaction, plus whatever signatures have
// accumulated for it across repeated Push calls with the same payload hash.
type entry struct {
	payload    core.TransactionPayload
	signatures map[string]core.Signature // keyed by hex public key, deduplicated
	queuedAt   time.Time
	threshold  int
}

// Queue is the bounded pending-transaction pool.
type Queue struct {
	mu       sync.Mutex
	capacity int
	entries  map[cryptofacade.Hash]*entry
	order    []cryptofacade.Hash // FIFO order for pop_for_proposal

	authority AuthorityChecker
	committed CommittedChecker
}

// New returns an empty Queue bounded at capacity.
func New(capacity int, authority AuthorityChecker, committed CommittedChecker) *Queue {
	return &Queue{
		capacity:  capacity,
		entries:   make(map[cryptofacade.Hash]*entry),
		authority: authority,
		committed: committed,
	}
}

// PushResult reports the outcome of a Push call.
type PushResult struct {
	Accepted bool
	Final    bool // true once the signature_check_condition is satisfied
	Reason   Reason
}

// Push admits a transaction, merging its signatures into any existing queue
// entry for the same payload hash (SPEC_FULL.md §10's multisig merge).
func (q *Queue) Push(now time.Time, tx core.SignedTransaction) PushResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := tx.Validate(); err != nil {
		return PushResult{Reason: ReasonSignatureCheckFailed}
	}

	hash := tx.Hash()
	if q.committed != nil && q.committed.IsCommitted(hash) {
		return PushResult{Reason: ReasonAlreadyCommitted}
	}
	if now.After(tx.Payload.ExpiresAt()) {
		return PushResult{Reason: ReasonExpired}
	}
	if tx.Payload.CreationTime.After(now.Add(MaxFutureSkew)) {
		return PushResult{Reason: ReasonFuture}
	}

	threshold := 1
	if q.authority != nil {
		t, ok := q.authority.SignatureThreshold(tx)
		if !ok {
			return PushResult{Reason: ReasonAuthorityNotFound}
		}
		threshold = t
	}

	e, exists := q.entries[hash]
	if !exists {
		if len(q.entries) >= q.capacity {
			return PushResult{Reason: ReasonFull}
		}
		e = &entry{payload: tx.Payload, signatures: make(map[string]core.Signature), queuedAt: now, threshold: threshold}
		q.entries[hash] = e
		q.order = append(q.order, hash)
	}

	added := false
	for _, sig := range tx.Signatures {
		key := fmt.Sprintf("%x", sig.PublicKey)
		if _, dup := e.signatures[key]; !dup {
			e.signatures[key] = sig
			added = true
		}
	}
	if !exists && !added {
		// First push for this hash always contributes at least its own signatures.
	}
	if exists && !added {
		return PushResult{Accepted: true, Final: len(e.signatures) >= threshold, Reason: ReasonDuplicateInQueue}
	}

	return PushResult{Accepted: true, Final: len(e.signatures) >= threshold}
}

// PopForProposal returns up to limit transactions that have reached their
// signature threshold, in FIFO order, without removing them from the queue
// (removal happens only via RemoveCommitted once a block commits them).
// Two classes of entry are skipped rather than proposed, per spec.md §4.4's
// pop_for_proposal(n, wsv): those whose TTL has elapsed as of now (and are
// evicted from the queue in the same pass, same as EvictExpired), and those
// whose authority currently lacks the funds or permissions to execute them,
// judged by a shadow run against w. w may be nil (e.g. in tests with no
// world wired up), in which case only the TTL and signature-threshold
// checks apply.
func (q *Queue) PopForProposal(limit int, now time.Time, w *wsv.WSV) []core.SignedTransaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]core.SignedTransaction, 0, limit)
	var expired []cryptofacade.Hash
	for _, hash := range q.order {
		if len(out) >= limit {
			break
		}
		e, ok := q.entries[hash]
		if !ok {
			continue
		}
		if now.After(e.payload.ExpiresAt()) {
			expired = append(expired, hash)
			continue
		}
		if len(e.signatures) < e.threshold {
			continue
		}
		tx := entryToTransaction(e)
		if w != nil && !canAfford(w, now, tx) {
			continue
		}
		out = append(out, tx)
	}
	for _, h := range expired {
		delete(q.entries, h)
	}
	if len(expired) > 0 {
		q.compact()
	}
	return out
}

// canAfford shadow-runs tx against a clone of w, reusing WSV's own
// funds-insufficiency and policy-denial errors instead of duplicating that
// logic in the queue: a transaction pop_for_proposal would only have to
// reject again at ShadowValidate time is better skipped here.
func canAfford(w *wsv.WSV, now time.Time, tx core.SignedTransaction) bool {
	shadow := w.Clone()
	return shadow.ApplyTransaction(now, tx) == nil
}

// GossipBatch returns up to n queued transactions, regardless of whether
// they have reached their signature threshold, for peer-to-peer
// propagation (spec.md §4.4's gossip_batch(n)): a receiving peer merges the
// signatures it doesn't already have via its own Push, letting
// multisignature accounts collect co-signatures without every signatory
// submitting to every node.
func (q *Queue) GossipBatch(n int) []core.SignedTransaction {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]core.SignedTransaction, 0, n)
	for _, hash := range q.order {
		if len(out) >= n {
			break
		}
		e, ok := q.entries[hash]
		if !ok {
			continue
		}
		out = append(out, entryToTransaction(e))
	}
	return out
}

// RemoveCommitted drops every entry whose hash appears in hashes, called
// once a block containing them commits.
func (q *Queue) RemoveCommitted(hashes []cryptofacade.Hash) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, h := range hashes {
		delete(q.entries, h)
	}
	q.compact()
}

func (q *Queue) compact() {
	next := q.order[:0]
	for _, h := range q.order {
		if _, ok := q.entries[h]; ok {
			next = append(next, h)
		}
	}
	q.order = next
}

// EvictExpired removes every entry whose TTL has elapsed by instant now,
// returning how many were removed.
func (q *Queue) EvictExpired(now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for h, e := range q.entries {
		if now.After(e.payload.ExpiresAt()) {
			delete(q.entries, h)
			removed++
		}
	}
	if removed > 0 {
		q.compact()
	}
	return removed
}

// Len returns the number of distinct payloads currently queued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

func entryToTransaction(e *entry) core.SignedTransaction {
	sigs := make([]core.Signature, 0, len(e.signatures))
	keys := make([]string, 0, len(e.signatures))
	for k := range e.signatures {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sigs = append(sigs, e.signatures[k])
	}
	return core.SignedTransaction{Payload: e.payload, Signatures: sigs}
}
