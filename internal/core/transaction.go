package core

import (
	"fmt"
	"time"

	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wire"
)

// Signature pairs a public key with the signature it produced over a
// payload hash. Unlike the teacher's Transaction (one Signature+PublicKey
// field pair per transaction), a SignedTransaction carries a slice of these
// to support multisignature accounts (see SPEC_FULL.md §10 and spec.md's
// signature_check_condition note in §4.4).
type Signature struct {
	PublicKey []byte
	Bytes     []byte
}

// TransactionPayload is the signed part of a transaction.
type TransactionPayload struct {
	Authority    ids.AccountId
	Instructions []Instruction
	CreationTime time.Time
	TimeToLiveMs uint64
	Nonce        uint32
	Metadata     map[string][]byte
}

// Hash returns the content hash of the payload, used both as the
// transaction's identity and as the bytes each Signature signs over.
func (p TransactionPayload) Hash() cryptofacade.Hash {
	e := wire.NewEncoder()
	e.String(p.Authority.String())
	e.CompactLen(len(p.Instructions))
	for _, ins := range p.Instructions {
		e.U8(uint8(ins.Kind))
		e.String(string(ins.DomainId))
		e.String(ins.AccountId.String())
		e.String(ins.AssetDefinitionId.String())
		e.String(ins.AssetId.String())
		e.String(string(ins.RoleId))
		e.String(ins.Destination.String())
		EncodeAssetValue(e, ins.Amount)
		e.String(ins.Key)
		e.RawBytes(ins.Value)
		e.String(ins.TriggerId)
		e.RawBytes(ins.ExecutorWasm)
	}
	e.U64(uint64(p.CreationTime.UnixMilli()))
	e.U64(p.TimeToLiveMs)
	e.U32(p.Nonce)
	keys := make([]string, 0, len(p.Metadata))
	for k := range p.Metadata {
		keys = append(keys, k)
	}
	sortStrings(keys)
	e.CompactLen(len(keys))
	for _, k := range keys {
		e.String(k)
		e.RawBytes(p.Metadata[k])
	}
	return cryptofacade.Sum(e.Bytes())
}

// Validate checks the payload's structural validity, never world state.
func (p TransactionPayload) Validate() error {
	if err := p.Authority.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAuthority, err)
	}
	if len(p.Instructions) == 0 {
		return ErrEmptyInstructions
	}
	if len(p.Instructions) > MaxInstructionsPerTransaction {
		return ErrTooManyInstructions
	}
	for i, ins := range p.Instructions {
		if err := ins.Validate(); err != nil {
			return fmt.Errorf("core: instruction %d invalid: %w", i, err)
		}
	}
	if p.CreationTime.IsZero() {
		return ErrZeroTimestamp
	}
	if p.TimeToLiveMs == 0 || p.TimeToLiveMs > MaxTimeToLive {
		return ErrInvalidTimeToLive
	}
	for k := range p.Metadata {
		if k == "" {
			return ErrEmptyMetadataKey
		}
	}
	return nil
}

// ExpiresAt returns the instant after which the transaction is no longer
// admissible to the queue (spec.md §4.4 Expired reason).
func (p TransactionPayload) ExpiresAt() time.Time {
	return p.CreationTime.Add(time.Duration(p.TimeToLiveMs) * time.Millisecond)
}

// SignedTransaction is a transaction payload plus the signatures of its
// authority (and, for multisig accounts, co-signatories).
type SignedTransaction struct {
	Payload    TransactionPayload
	Signatures []Signature
}

// Hash returns the payload hash; two SignedTransactions with the same
// payload but different signature sets share an identity, matching
// spec.md's "duplicate-in-queue is keyed on payload hash" rule.
func (tx SignedTransaction) Hash() cryptofacade.Hash { return tx.Payload.Hash() }

// Validate checks structural validity and that every signature verifies
// against the payload hash, but does not check authority permissions or
// the signature_check_condition (world-state concerns, see internal/queue
// and internal/executor).
func (tx SignedTransaction) Validate() error {
	if err := tx.Payload.Validate(); err != nil {
		return err
	}
	if len(tx.Signatures) == 0 {
		return ErrMissingSignature
	}
	payloadHash := tx.Payload.Hash()
	for i, sig := range tx.Signatures {
		if err := cryptofacade.Verify(sig.PublicKey, payloadHash[:], sig.Bytes); err != nil {
			return fmt.Errorf("core: signature %d: %w", i, ErrInvalidSignature)
		}
	}
	return nil
}

// IsExpiredAt reports whether the transaction's TTL has elapsed by instant now.
func (tx SignedTransaction) IsExpiredAt(now time.Time) bool {
	return now.After(tx.Payload.ExpiresAt())
}

func sortStrings(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && s[j] < s[j-1]; j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}
