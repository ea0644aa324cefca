package node

import (
	"context"
	"sync"
	"time"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/kura"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// authorityAdapter satisfies queue.AuthorityChecker against a live World
// State View: a transaction's signature threshold is its authority
// account's SignatureCheckThreshold, and an unknown authority is rejected
// rather than defaulted.
type authorityAdapter struct {
	world *wsv.WSV
}

func (a *authorityAdapter) SignatureThreshold(tx core.SignedTransaction) (int, bool) {
	acc, err := a.world.Account(tx.Payload.Authority)
	if err != nil {
		return 0, false
	}
	return acc.SignatureCheckThreshold, true
}

// committedPollInterval bounds how stale committedIndex's view of the
// store can get, mirroring internal/api/events.go's drain-ticker idiom for
// the same reason: polling a plain value is simpler than threading a
// notification channel through Sumeragi's commit path.
const committedPollInterval = 200 * time.Millisecond

// committedIndex implements queue.CommittedChecker by tracking every
// transaction hash that has ever appeared in a committed block, so a
// resubmission of an already-committed transaction is rejected instead of
// silently re-queued once Sumeragi's own RemoveCommitted call has dropped
// it from the live queue. internal/kura.Store keeps blocks indexed by
// height and hash only, not by transaction hash, so this index is built by
// polling Height() and reading any newly committed blocks.
type committedIndex struct {
	mu         sync.RWMutex
	store      *kura.Store
	hashes     map[cryptofacade.Hash]struct{}
	lastHeight int64
}

func newCommittedIndex(store *kura.Store) *committedIndex {
	return &committedIndex{store: store, hashes: make(map[cryptofacade.Hash]struct{}), lastHeight: -1}
}

// IsCommitted reports whether hash belongs to a transaction this index has
// observed in a committed block.
func (c *committedIndex) IsCommitted(hash cryptofacade.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.hashes[hash]
	return ok
}

// poll runs until ctx is cancelled, syncing against the store every
// interval.
func (c *committedIndex) poll(ctx context.Context, interval time.Duration) {
	c.sync()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sync()
		}
	}
}

func (c *committedIndex) sync() {
	top := c.store.Height()
	c.mu.RLock()
	from := c.lastHeight + 1
	c.mu.RUnlock()

	for h := from; h <= top; h++ {
		block, err := c.store.GetByHeight(uint64(h))
		if err != nil {
			return
		}
		c.mu.Lock()
		for _, tx := range block.Payload.Transactions {
			c.hashes[tx.Hash()] = struct{}{}
		}
		c.lastHeight = h
		c.mu.Unlock()
	}
}
