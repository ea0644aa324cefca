// Package kura is the append-only block store. Committed blocks are written
// as length-prefixed, canonically wire-encoded flat files named by
// zero-padded height; a bbolt side index accelerates height/hash lookups and
// is fully rebuildable from the flat log, following the pairing
// 2tbmz9y2xt-lang-rubin-protocol's node/store package uses (bolt index next
// to flat data) and the append/replay contract of
// original_source/iroha/src/kura.rs. Generalizes the teacher's in-memory
// internal/blockchain/blockchain.go into a durable, crash-recoverable store.
package kura

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/wire"
)

var (
	// ErrHeightGap is returned when Append is called for a height other than
	// the current height + 1.
	ErrHeightGap = errors.New("kura: height gap")
	// ErrNotFound is returned when a requested height or hash is unknown.
	ErrNotFound = errors.New("kura: block not found")
	// ErrCorruption is returned when a stored block fails to decode or its
	// length prefix does not match the bytes actually on disk.
	ErrCorruption = errors.New("kura: storage corruption")
)

var (
	bucketHeightToHash = []byte("height_to_hash")
	bucketHashToHeight = []byte("hash_to_height")
	bucketManifest     = []byte("manifest")
	manifestTopHeight  = []byte("top_height")
)

const heightFileWidth = 20

// Store is the append-only, durable block log.
type Store struct {
	mu      sync.RWMutex
	dir     string
	db      *bolt.DB
	height  int64 // -1 when empty
	topHash cryptofacade.Hash
}

// Open opens (creating if necessary) a Store rooted at dir. On startup it
// always clears and rebuilds the bbolt index from the flat-file log — the
// flat files are always the source of truth.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("kura: mkdir %s: %w", dir, err)
	}
	db, err := bolt.Open(filepath.Join(dir, "index.db"), 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("kura: open index: %w", err)
	}
	s := &Store{dir: dir, db: db, height: -1}
	if err := s.rebuildIndex(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying index database.
func (s *Store) Close() error {
	return s.db.Close()
}

func heightFileName(height uint64) string {
	return fmt.Sprintf("%0*d", heightFileWidth, height)
}

// rebuildIndex reads the flat-file log sequentially from height 0 until the
// first gap and rewrites the bbolt index to match, per spec.md §4.2's
// "sequential read until first gap defines current height" contract.
func (s *Store) rebuildIndex() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketHeightToHash, bucketHashToHeight, bucketManifest} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		ht := tx.Bucket(bucketHeightToHash)
		hh := tx.Bucket(bucketHashToHeight)
		if err := ht.ForEach(func(k, v []byte) error { return ht.Delete(append([]byte{}, k...)) }); err != nil {
			return err
		}
		if err := hh.ForEach(func(k, v []byte) error { return hh.Delete(append([]byte{}, k...)) }); err != nil {
			return err
		}

		var height uint64
		var lastHash cryptofacade.Hash
		for {
			block, err := s.readFile(height)
			if errors.Is(err, os.ErrNotExist) {
				break
			}
			if err != nil {
				return err
			}
			hash := block.Hash()
			if height > 0 && block.Payload.Header.PreviousBlockHash != lastHash {
				// unreachable unless a flat file was tampered with; report corruption.
				return fmt.Errorf("%w: block %d does not link to block %d", ErrCorruption, height, height-1)
			}
			var hb [8]byte
			binary.BigEndian.PutUint64(hb[:], height)
			if err := ht.Put(hb[:], hash[:]); err != nil {
				return err
			}
			if err := hh.Put(hash[:], hb[:]); err != nil {
				return err
			}
			lastHash = hash
			height++
		}
		mb := tx.Bucket(bucketManifest)
		if height == 0 {
			s.height = -1
		} else {
			s.height = int64(height - 1)
			s.topHash = lastHash
		}
		var hb [8]byte
		binary.BigEndian.PutUint64(hb[:], uint64(s.height))
		return mb.Put(manifestTopHeight, hb[:])
	})
}

func (s *Store) readFile(height uint64) (core.SignedBlock, error) {
	path := filepath.Join(s.dir, heightFileName(height))
	data, err := os.ReadFile(path)
	if err != nil {
		return core.SignedBlock{}, err
	}
	return decodeBlockFile(data)
}

// Height returns the current top height, or -1 if the store is empty.
func (s *Store) Height() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// TopHash returns the hash of the latest committed block, or the zero hash
// if the store is empty.
func (s *Store) TopHash() cryptofacade.Hash {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.topHash
}

// Append durably writes block as the next height. height must equal the
// current height + 1 (0 for the first block).
func (s *Store) Append(block core.SignedBlock) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wantHeight := uint64(s.height + 1)
	if block.Payload.Header.Height != wantHeight {
		return fmt.Errorf("%w: expected height %d, got %d", ErrHeightGap, wantHeight, block.Payload.Header.Height)
	}

	data := encodeBlockFile(block)
	path := filepath.Join(s.dir, heightFileName(wantHeight))
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("kura: create %s: %w", tmp, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("kura: write %s: %w", tmp, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("kura: fsync %s: %w", tmp, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("kura: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("kura: rename %s: %w", tmp, err)
	}

	hash := block.Hash()
	err = s.db.Update(func(tx *bolt.Tx) error {
		var hb [8]byte
		binary.BigEndian.PutUint64(hb[:], wantHeight)
		if err := tx.Bucket(bucketHeightToHash).Put(hb[:], hash[:]); err != nil {
			return err
		}
		if err := tx.Bucket(bucketHashToHeight).Put(hash[:], hb[:]); err != nil {
			return err
		}
		return tx.Bucket(bucketManifest).Put(manifestTopHeight, hb[:])
	})
	if err != nil {
		return fmt.Errorf("kura: index update: %w", err)
	}

	s.height = int64(wantHeight)
	s.topHash = hash
	return nil
}

// GetByHeight reads the block stored at height.
func (s *Store) GetByHeight(height uint64) (core.SignedBlock, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int64(height) > s.height {
		return core.SignedBlock{}, ErrNotFound
	}
	block, err := s.readFile(height)
	if errors.Is(err, os.ErrNotExist) {
		return core.SignedBlock{}, ErrNotFound
	}
	if err != nil {
		return core.SignedBlock{}, fmt.Errorf("%w: %v", ErrCorruption, err)
	}
	return block, nil
}

// GetByHash resolves hash to a height via the index, then reads the block.
func (s *Store) GetByHash(hash cryptofacade.Hash) (core.SignedBlock, error) {
	s.mu.RLock()
	var height uint64
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHashToHeight).Get(hash[:])
		if v == nil {
			return nil
		}
		height = binary.BigEndian.Uint64(v)
		found = true
		return nil
	})
	s.mu.RUnlock()
	if err != nil {
		return core.SignedBlock{}, err
	}
	if !found {
		return core.SignedBlock{}, ErrNotFound
	}
	return s.GetByHeight(height)
}

func encodeBlockFile(block core.SignedBlock) []byte {
	body := encodeBlock(block)
	e := wire.NewEncoder()
	e.U32(uint32(len(body)))
	e.FixedBytes(body)
	return e.Bytes()
}

func decodeBlockFile(data []byte) (core.SignedBlock, error) {
	d := wire.NewDecoder(data)
	n, err := d.U32()
	if err != nil {
		return core.SignedBlock{}, fmt.Errorf("%w: %v", ErrCorruption, err)
	}
	body, err := d.FixedBytes(int(n))
	if err != nil {
		return core.SignedBlock{}, fmt.Errorf("%w: %v", ErrCorruption, err)
	}
	if d.Remaining() != 0 {
		return core.SignedBlock{}, fmt.Errorf("%w: trailing bytes after block record", ErrCorruption)
	}
	return decodeBlock(body)
}
