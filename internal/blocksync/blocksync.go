// Package blocksync implements the catch-up pathway a peer uses to close a
// height gap against the rest of the network: request blocks in ascending,
// bounded batches, fully validate each before committing it, and blacklist a
// source that ever serves a bad block (spec.md §4.8). It is new code — the
// teacher carries no synchronizer of its own — grounded on spec.md §4.8's
// contract and on internal/kura and internal/sumeragi for the validation and
// commit steps a synced block must pass.
package blocksync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/kura"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// ErrBlacklisted is returned when Sync is asked to pull from a peer still
// serving its cooldown for a previous bad block.
var ErrBlacklisted = errors.New("blocksync: peer blacklisted")

// Provider fetches a contiguous range of committed blocks from a remote
// peer. internal/network supplies the real implementation; tests substitute
// an in-memory one.
type Provider interface {
	FetchBlocks(ctx context.Context, peer ids.PeerId, from, to uint64) ([]core.SignedBlock, error)
}

// Config holds the knobs spec.md §4.8 names.
type Config struct {
	MaxSyncBatchSize int
	MaxFaults        int
	BlacklistCooldown time.Duration
}

// Synchronizer drives one node's catch-up against its peers. It owns no
// goroutine of its own; internal/node calls Sync whenever a peer's
// advertised top height exceeds the local one.
type Synchronizer struct {
	mu sync.Mutex

	cfg      Config
	store    *kura.Store
	world    *wsv.WSV
	provider Provider
	logger   *logrus.Entry

	blacklist map[string]time.Time // hex pubkey -> cooldown expiry
}

// NewSynchronizer wires a Synchronizer. store and world are expected to
// already be open; Synchronizer never owns their lifecycle.
func NewSynchronizer(cfg Config, store *kura.Store, world *wsv.WSV, provider Provider, logger *logrus.Entry) *Synchronizer {
	return &Synchronizer{
		cfg:       cfg,
		store:     store,
		world:     world,
		provider:  provider,
		logger:    logger.WithField("component", "blocksync"),
		blacklist: make(map[string]time.Time),
	}
}

// IsBlacklisted reports whether peer is still serving a cooldown.
func (s *Synchronizer) IsBlacklisted(peer ids.PeerId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isBlacklistedInternal(peer, time.Now())
}

func (s *Synchronizer) isBlacklistedInternal(peer ids.PeerId, now time.Time) bool {
	key := peerKey(peer)
	until, blocked := s.blacklist[key]
	if !blocked {
		return false
	}
	if now.After(until) {
		delete(s.blacklist, key)
		return false
	}
	return true
}

func (s *Synchronizer) blacklistInternal(peer ids.PeerId, now time.Time) {
	s.blacklist[peerKey(peer)] = now.Add(s.cfg.BlacklistCooldown)
}

func peerKey(peer ids.PeerId) string {
	return fmt.Sprintf("%x", peer.PublicKey[:])
}

// Sync pulls and commits every block between the local height and peerTop
// from peer, in ascending batches no larger than MaxSyncBatchSize. The first
// block that fails validation aborts the whole session: no partial batch is
// committed past it, and peer is blacklisted for BlacklistCooldown.
func (s *Synchronizer) Sync(ctx context.Context, peer ids.PeerId, peerTop uint64) error {
	now := time.Now()
	s.mu.Lock()
	blocked := s.isBlacklistedInternal(peer, now)
	s.mu.Unlock()
	if blocked {
		return fmt.Errorf("%w: %s", ErrBlacklisted, peer)
	}

	for {
		local := s.store.Height()
		want := uint64(local + 1)
		if want > peerTop {
			return nil
		}

		batchEnd := want + uint64(s.cfg.MaxSyncBatchSize) - 1
		if batchEnd > peerTop {
			batchEnd = peerTop
		}

		blocks, err := s.provider.FetchBlocks(ctx, peer, want, batchEnd)
		if err != nil {
			return fmt.Errorf("blocksync: fetching %d..%d from %s: %w", want, batchEnd, peer, err)
		}

		for _, block := range blocks {
			if err := s.validateAndCommit(block); err != nil {
				s.mu.Lock()
				s.blacklistInternal(peer, time.Now())
				s.mu.Unlock()
				s.logger.WithFields(logrus.Fields{"peer": peer.String(), "height": block.Payload.Header.Height}).WithError(err).Warn("bad block during sync, blacklisting source")
				return fmt.Errorf("blocksync: block %d from %s: %w", block.Payload.Header.Height, peer, err)
			}
		}
	}
}

// validateAndCommit subjects one synced block to the same checks a
// live-consensus commit would apply (spec.md §4.8: "full header+signature+
// execution validation before commit") before appending it to store and
// applying it to world.
func (s *Synchronizer) validateAndCommit(block core.SignedBlock) error {
	if err := block.Validate(); err != nil {
		return fmt.Errorf("structurally invalid: %w", err)
	}

	wantHeight := uint64(s.store.Height() + 1)
	if block.Payload.Header.Height != wantHeight {
		return fmt.Errorf("out of order: got height %d, want %d", block.Payload.Header.Height, wantHeight)
	}
	if block.Payload.Header.PreviousBlockHash != s.store.TopHash() {
		return fmt.Errorf("parent hash mismatch")
	}

	quorum := 2*s.cfg.MaxFaults + 1
	if quorum > 1 {
		if err := verifyQuorum(block, quorum); err != nil {
			return err
		}
	}

	if err := s.world.Apply(block); err != nil {
		return fmt.Errorf("applying to world state view: %w", err)
	}
	if err := s.store.Append(block); err != nil {
		return fmt.Errorf("appending to store: %w", err)
	}
	return nil
}

func verifyQuorum(block core.SignedBlock, quorum int) error {
	headerHash := block.Hash()
	seen := make(map[string]struct{}, len(block.Signatures))
	valid := 0
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
		return fmt.Errorf("only %d valid signatures, need %d", valid, quorum)
	}
	return nil
}
