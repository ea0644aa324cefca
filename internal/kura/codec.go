package kura

import (
	"fmt"
	"time"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/wire"
)

// schemaVersion is the leading byte of every on-disk block record, per
// spec.md §6's "leading schema-tag byte" wire convention.
const schemaVersion = 1

// encodeBlock/decodeBlock handle only the block envelope; the transaction,
// instruction and signature wire shapes live on internal/core so
// internal/api can decode a submitted transaction without importing this
// storage-layer package.
func encodeBlock(block core.SignedBlock) []byte {
	e := wire.NewEncoder()
	e.U8(schemaVersion)
	encodeHeader(e, block.Payload.Header)
	e.CompactLen(len(block.Payload.Transactions))
	for _, tx := range block.Payload.Transactions {
		core.EncodeTransaction(e, tx)
	}
	e.CompactLen(len(block.Payload.Rejected))
	for _, rej := range block.Payload.Rejected {
		core.EncodeTransaction(e, rej.Transaction)
		e.String(rej.Reason)
	}
	e.CompactLen(len(block.Signatures))
	for _, sig := range block.Signatures {
		core.EncodeSignature(e, sig)
	}
	return e.Bytes()
}

func decodeBlock(data []byte) (core.SignedBlock, error) {
	d := wire.NewDecoder(data)
	ver, err := d.U8()
	if err != nil {
		return core.SignedBlock{}, err
	}
	if ver != schemaVersion {
		return core.SignedBlock{}, fmt.Errorf("%w: unsupported schema version %d", ErrCorruption, ver)
	}
	header, err := decodeHeader(d)
	if err != nil {
		return core.SignedBlock{}, err
	}
	txCount, err := d.CompactLen()
	if err != nil {
		return core.SignedBlock{}, err
	}
	txs := make([]core.SignedTransaction, 0, txCount)
	for i := 0; i < txCount; i++ {
		tx, err := core.DecodeTransaction(d)
		if err != nil {
			return core.SignedBlock{}, err
		}
		txs = append(txs, tx)
	}
	rejCount, err := d.CompactLen()
	if err != nil {
		return core.SignedBlock{}, err
	}
	rejected := make([]core.RejectedTransaction, 0, rejCount)
	for i := 0; i < rejCount; i++ {
		tx, err := core.DecodeTransaction(d)
		if err != nil {
			return core.SignedBlock{}, err
		}
		reason, err := d.String()
		if err != nil {
			return core.SignedBlock{}, err
		}
		rejected = append(rejected, core.RejectedTransaction{Transaction: tx, Reason: reason})
	}
	sigCount, err := d.CompactLen()
	if err != nil {
		return core.SignedBlock{}, err
	}
	sigs := make([]core.Signature, 0, sigCount)
	for i := 0; i < sigCount; i++ {
		sig, err := core.DecodeSignature(d)
		if err != nil {
			return core.SignedBlock{}, err
		}
		sigs = append(sigs, sig)
	}
	return core.SignedBlock{
		Payload: core.BlockPayload{
			Header:       header,
			Transactions: txs,
			Rejected:     rejected,
		},
		Signatures: sigs,
	}, nil
}

func encodeHeader(e *wire.Encoder, h core.BlockHeader) {
	e.U64(h.Height)
	e.FixedBytes(h.PreviousBlockHash[:])
	e.FixedBytes(h.TransactionsHash[:])
	e.U64(uint64(h.Timestamp.UnixMilli()))
	e.U32(h.ViewChangeIndex)
	e.U64(h.ConsensusEstimationMs)
}

func decodeHeader(d *wire.Decoder) (core.BlockHeader, error) {
	height, err := d.U64()
	if err != nil {
		return core.BlockHeader{}, err
	}
	prev, err := decodeHash(d)
	if err != nil {
		return core.BlockHeader{}, err
	}
	txHash, err := decodeHash(d)
	if err != nil {
		return core.BlockHeader{}, err
	}
	tsMillis, err := d.U64()
	if err != nil {
		return core.BlockHeader{}, err
	}
	vci, err := d.U32()
	if err != nil {
		return core.BlockHeader{}, err
	}
	estimate, err := d.U64()
	if err != nil {
		return core.BlockHeader{}, err
	}
	return core.BlockHeader{
		Height:                height,
		PreviousBlockHash:     prev,
		TransactionsHash:      txHash,
		Timestamp:             time.UnixMilli(int64(tsMillis)).UTC(),
		ViewChangeIndex:       vci,
		ConsensusEstimationMs: estimate,
	}, nil
}

func decodeHash(d *wire.Decoder) (cryptofacade.Hash, error) {
	b, err := d.FixedBytes(cryptofacade.HashSize)
	if err != nil {
		return cryptofacade.Hash{}, err
	}
	var h cryptofacade.Hash
	copy(h[:], b)
	return h, nil
}
