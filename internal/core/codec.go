package core

import (
	"fmt"
	"math/big"
	"time"

	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wire"
)

// EncodeTransaction writes tx in the canonical wire form spec.md §6
// describes for transaction submission; internal/kura reuses it to encode
// the transactions embedded in a block, and internal/api decodes the same
// form from an HTTP POST body.
func EncodeTransaction(e *wire.Encoder, tx SignedTransaction) {
	p := tx.Payload
	e.String(p.Authority.String())
	e.CompactLen(len(p.Instructions))
	for _, ins := range p.Instructions {
		EncodeInstruction(e, ins)
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
	e.CompactLen(len(tx.Signatures))
	for _, sig := range tx.Signatures {
		EncodeSignature(e, sig)
	}
}

// DecodeTransaction is EncodeTransaction's inverse.
func DecodeTransaction(d *wire.Decoder) (SignedTransaction, error) {
	authorityStr, err := d.String()
	if err != nil {
		return SignedTransaction{}, err
	}
	authority, err := ids.ParseAccountId(authorityStr)
	if err != nil {
		return SignedTransaction{}, err
	}
	insCount, err := d.CompactLen()
	if err != nil {
		return SignedTransaction{}, err
	}
	instructions := make([]Instruction, 0, insCount)
	for i := 0; i < insCount; i++ {
		ins, err := DecodeInstruction(d)
		if err != nil {
			return SignedTransaction{}, err
		}
		instructions = append(instructions, ins)
	}
	createdMillis, err := d.U64()
	if err != nil {
		return SignedTransaction{}, err
	}
	ttl, err := d.U64()
	if err != nil {
		return SignedTransaction{}, err
	}
	nonce, err := d.U32()
	if err != nil {
		return SignedTransaction{}, err
	}
	metaCount, err := d.CompactLen()
	if err != nil {
		return SignedTransaction{}, err
	}
	metadata := make(map[string][]byte, metaCount)
	for i := 0; i < metaCount; i++ {
		k, err := d.String()
		if err != nil {
			return SignedTransaction{}, err
		}
		v, err := d.RawBytes()
		if err != nil {
			return SignedTransaction{}, err
		}
		metadata[k] = v
	}
	sigCount, err := d.CompactLen()
	if err != nil {
		return SignedTransaction{}, err
	}
	sigs := make([]Signature, 0, sigCount)
	for i := 0; i < sigCount; i++ {
		sig, err := DecodeSignature(d)
		if err != nil {
			return SignedTransaction{}, err
		}
		sigs = append(sigs, sig)
	}
	return SignedTransaction{
		Payload: TransactionPayload{
			Authority:    authority,
			Instructions: instructions,
			CreationTime: time.UnixMilli(int64(createdMillis)).UTC(),
			TimeToLiveMs: ttl,
			Nonce:        nonce,
			Metadata:     metadata,
		},
		Signatures: sigs,
	}, nil
}

// EncodeSignature writes a signature as its raw public key and signature
// bytes, each length-prefixed.
func EncodeSignature(e *wire.Encoder, sig Signature) {
	e.RawBytes(sig.PublicKey)
	e.RawBytes(sig.Bytes)
}

// DecodeSignature is EncodeSignature's inverse.
func DecodeSignature(d *wire.Decoder) (Signature, error) {
	pub, err := d.RawBytes()
	if err != nil {
		return Signature{}, err
	}
	sig, err := d.RawBytes()
	if err != nil {
		return Signature{}, err
	}
	return Signature{PublicKey: pub, Bytes: sig}, nil
}

// EncodeInstruction writes ins as a tag byte followed by every field its
// kind might use; unused fields encode as empty strings/slices, matching
// spec.md §6's tag-byte enum convention.
func EncodeInstruction(e *wire.Encoder, ins Instruction) {
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

// DecodeInstruction is EncodeInstruction's inverse.
func DecodeInstruction(d *wire.Decoder) (Instruction, error) {
	kind, err := d.U8()
	if err != nil {
		return Instruction{}, err
	}
	domainStr, err := d.String()
	if err != nil {
		return Instruction{}, err
	}
	accountStr, err := d.String()
	if err != nil {
		return Instruction{}, err
	}
	defStr, err := d.String()
	if err != nil {
		return Instruction{}, err
	}
	assetStr, err := d.String()
	if err != nil {
		return Instruction{}, err
	}
	roleStr, err := d.String()
	if err != nil {
		return Instruction{}, err
	}
	destStr, err := d.String()
	if err != nil {
		return Instruction{}, err
	}
	amount, err := DecodeAssetValue(d)
	if err != nil {
		return Instruction{}, err
	}
	key, err := d.String()
	if err != nil {
		return Instruction{}, err
	}
	value, err := d.RawBytes()
	if err != nil {
		return Instruction{}, err
	}
	trigger, err := d.String()
	if err != nil {
		return Instruction{}, err
	}
	wasm, err := d.RawBytes()
	if err != nil {
		return Instruction{}, err
	}

	ins := Instruction{
		Kind:         InstructionKind(kind),
		DomainId:     ids.DomainId(domainStr),
		RoleId:       ids.RoleId(roleStr),
		Amount:       amount,
		Key:          key,
		Value:        value,
		TriggerId:    trigger,
		ExecutorWasm: wasm,
	}
	if accountStr != "" {
		if ins.AccountId, err = ids.ParseAccountId(accountStr); err != nil {
			return Instruction{}, err
		}
	}
	if defStr != "" {
		if ins.AssetDefinitionId, err = ids.ParseAssetDefinitionId(defStr); err != nil {
			return Instruction{}, err
		}
	}
	if assetStr != "" {
		parts, err := parseAssetIdString(assetStr)
		if err != nil {
			return Instruction{}, err
		}
		ins.AssetId = parts
	}
	if destStr != "" {
		if ins.Destination, err = ids.ParseAccountId(destStr); err != nil {
			return Instruction{}, err
		}
	}
	return ins, nil
}

// EncodeAssetValue writes v as a tag byte followed by its kind's payload:
// a u32 for Quantity, a length-prefixed big-endian magnitude for
// BigQuantity, a u64 scaled amount for Fixed, or a sorted key/value list
// for Store.
func EncodeAssetValue(e *wire.Encoder, v AssetValue) {
	e.U8(uint8(v.Kind))
	switch v.Kind {
	case AssetValueQuantity:
		e.U32(v.Quantity)
	case AssetValueBigQuantity:
		e.RawBytes(bigOf(v).Bytes())
	case AssetValueFixed:
		e.U64(uint64(v.Fixed))
	case AssetValueStore:
		keys := make([]string, 0, len(v.Store))
		for k := range v.Store {
			keys = append(keys, k)
		}
		sortStrings(keys)
		e.CompactLen(len(keys))
		for _, k := range keys {
			e.String(k)
			e.RawBytes(v.Store[k])
		}
	}
}

// DecodeAssetValue is EncodeAssetValue's inverse.
func DecodeAssetValue(d *wire.Decoder) (AssetValue, error) {
	kind, err := d.U8()
	if err != nil {
		return AssetValue{}, err
	}
	switch AssetValueKind(kind) {
	case AssetValueQuantity:
		q, err := d.U32()
		if err != nil {
			return AssetValue{}, err
		}
		return NewQuantity(q), nil
	case AssetValueBigQuantity:
		raw, err := d.RawBytes()
		if err != nil {
			return AssetValue{}, err
		}
		return NewBigQuantity(new(big.Int).SetBytes(raw)), nil
	case AssetValueFixed:
		scaled, err := d.U64()
		if err != nil {
			return AssetValue{}, err
		}
		return NewFixed(int64(scaled)), nil
	case AssetValueStore:
		n, err := d.CompactLen()
		if err != nil {
			return AssetValue{}, err
		}
		store := make(map[string][]byte, n)
		for i := 0; i < n; i++ {
			k, err := d.String()
			if err != nil {
				return AssetValue{}, err
			}
			val, err := d.RawBytes()
			if err != nil {
				return AssetValue{}, err
			}
			store[k] = val
		}
		return NewStore(store), nil
	default:
		return AssetValue{}, fmt.Errorf("core: asset value: %w", wire.ErrUnknownTag)
	}
}

// parseAssetIdString parses the "definition#domain@owner_name@owner_domain"
// form produced by AssetId.String.
func parseAssetIdString(s string) (ids.AssetId, error) {
	defPart, rest, ok := cut(s, "@")
	if !ok {
		return ids.AssetId{}, fmt.Errorf("core: malformed asset id %q", s)
	}
	def, err := ids.ParseAssetDefinitionId(defPart)
	if err != nil {
		return ids.AssetId{}, err
	}
	account, err := ids.ParseAccountId(rest)
	if err != nil {
		return ids.AssetId{}, err
	}
	return ids.AssetId{Definition: def, Account: account}, nil
}

func cut(s, sep string) (before, after string, found bool) {
	for i := 0; i+len(sep) <= len(s); i++ {
		if s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}
