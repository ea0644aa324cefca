// Package core defines the wire-level domain types shared by every other
// component: instructions, signed transactions and signed blocks. It
// generalizes the teacher's internal/core/{core,block,transaction}.go and
// internal/core/types/types.go, keeping their validate-then-sentinel-error
// shape while replacing the UTXO/account value-transfer model with the
// domain's register/mint/transfer instruction model.
package core

import "errors"

var (
	// ErrEmptyInstructions is returned when a transaction carries no instructions.
	ErrEmptyInstructions = errors.New("core: transaction has no instructions")
	// ErrTooManyInstructions is returned when a transaction exceeds the per-transaction instruction cap.
	ErrTooManyInstructions = errors.New("core: transaction exceeds maximum instruction count")
	// ErrMissingSignature is returned when a transaction or block carries no signatures.
	ErrMissingSignature = errors.New("core: missing signature")
	// ErrInvalidSignature is returned when a signature does not verify against its claimed signatory.
	ErrInvalidSignature = errors.New("core: invalid signature")
	// ErrZeroTimestamp is returned when CreationTime is unset.
	ErrZeroTimestamp = errors.New("core: creation time is zero")
	// ErrInvalidTimeToLive is returned when TimeToLiveMs is zero or exceeds the protocol maximum.
	ErrInvalidTimeToLive = errors.New("core: invalid time-to-live")
	// ErrExpired is returned by IsExpired-aware callers when a transaction's TTL has elapsed.
	ErrExpired = errors.New("core: transaction expired")
	// ErrInvalidAuthority is returned when the authority account id fails validation.
	ErrInvalidAuthority = errors.New("core: invalid authority")
	// ErrInvalidPreviousBlockHash is returned when a non-genesis block's PreviousBlockHash is zero,
	// or a genesis block's is not.
	ErrInvalidPreviousBlockHash = errors.New("core: invalid previous block hash")
	// ErrInvalidTransactionsHash is returned when a block's recorded transactions hash does not
	// match the Merkle root recomputed from its transactions and rejections.
	ErrInvalidTransactionsHash = errors.New("core: transactions hash mismatch")
	// ErrEmptyMetadataKey is returned when a metadata key is the empty string.
	ErrEmptyMetadataKey = errors.New("core: empty metadata key")
)

// MaxInstructionsPerTransaction bounds the number of instructions a single
// transaction may carry, mirroring the teacher's MaxTransactionsPerBlock cap
// (internal/core/types/types.go) applied one level down.
const MaxInstructionsPerTransaction = 4096

// MaxTimeToLive is the largest TimeToLiveMs a transaction may declare.
const MaxTimeToLive = uint64(24 * 60 * 60 * 1000) // 24h, in milliseconds
