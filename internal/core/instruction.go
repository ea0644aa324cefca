package core

import (
	"fmt"

	"github.com/hyperledger/iroha-sub010/internal/ids"
)

// InstructionKind tags the variant of an Instruction, written as a single
// byte on the wire (see internal/wire). This is the tagged-variant
// translation of what would be an enum-with-payload in a language with sum
// types, following the dynamic-dispatch-as-tagged-variant note in
// SPEC_FULL.md §4.5 / spec.md §9.
type InstructionKind uint8

const (
	InstructionRegisterDomain InstructionKind = iota
	InstructionRegisterAccount
	InstructionRegisterAssetDefinition
	InstructionUnregister
	InstructionUnregisterDomain
	InstructionMint
	InstructionBurn
	InstructionTransfer
	InstructionGrant
	InstructionRevoke
	InstructionSetKeyValue
	InstructionRemoveKeyValue
	InstructionExecuteTrigger
	InstructionUpgrade
)

func (k InstructionKind) String() string {
	switch k {
	case InstructionRegisterDomain:
		return "RegisterDomain"
	case InstructionRegisterAccount:
		return "RegisterAccount"
	case InstructionRegisterAssetDefinition:
		return "RegisterAssetDefinition"
	case InstructionUnregister:
		return "Unregister"
	case InstructionUnregisterDomain:
		return "UnregisterDomain"
	case InstructionMint:
		return "Mint"
	case InstructionBurn:
		return "Burn"
	case InstructionTransfer:
		return "Transfer"
	case InstructionGrant:
		return "Grant"
	case InstructionRevoke:
		return "Revoke"
	case InstructionSetKeyValue:
		return "SetKeyValue"
	case InstructionRemoveKeyValue:
		return "RemoveKeyValue"
	case InstructionExecuteTrigger:
		return "ExecuteTrigger"
	case InstructionUpgrade:
		return "Upgrade"
	default:
		return "Unknown"
	}
}

// Instruction is one step of a transaction's payload. Exactly one of the
// typed fields is populated, matching Kind; this is the Go-idiomatic
// stand-in for a tagged union, chosen over an interface-per-variant because
// instructions are pure data with no per-kind behavior beyond validation and
// (in internal/wsv) application.
type Instruction struct {
	Kind InstructionKind

	DomainId         ids.DomainId
	AccountId        ids.AccountId
	AssetDefinitionId ids.AssetDefinitionId
	AssetId          ids.AssetId
	RoleId           ids.RoleId

	Destination ids.AccountId // Transfer target / Grant-Revoke recipient
	Amount      AssetValue    // Mint / Burn / Transfer amount
	Key         string        // SetKeyValue / RemoveKeyValue key
	Value       []byte        // SetKeyValue value

	TriggerId string // ExecuteTrigger target

	ExecutorWasm []byte // Upgrade payload
}

// Validate checks structural validity only; it never consults world state.
func (ins Instruction) Validate() error {
	switch ins.Kind {
	case InstructionRegisterDomain:
		return ins.DomainId.Validate()
	case InstructionRegisterAccount, InstructionUnregister:
		return ins.AccountId.Validate()
	case InstructionUnregisterDomain:
		return ins.DomainId.Validate()
	case InstructionRegisterAssetDefinition:
		return ins.AssetDefinitionId.Validate()
	case InstructionMint, InstructionBurn:
		if ins.Amount.IsZero() {
			return fmt.Errorf("core: %s with zero quantity", ins.Kind)
		}
		return ins.AssetId.Validate()
	case InstructionTransfer:
		if ins.Amount.IsZero() {
			return fmt.Errorf("core: transfer with zero quantity")
		}
		if err := ins.AssetId.Validate(); err != nil {
			return err
		}
		return ins.Destination.Validate()
	case InstructionGrant, InstructionRevoke:
		if err := ins.RoleId.Validate(); err != nil {
			return err
		}
		return ins.Destination.Validate()
	case InstructionSetKeyValue:
		if ins.Key == "" {
			return ErrEmptyMetadataKey
		}
		return nil
	case InstructionRemoveKeyValue:
		if ins.Key == "" {
			return ErrEmptyMetadataKey
		}
		return nil
	case InstructionExecuteTrigger:
		if ins.TriggerId == "" {
			return fmt.Errorf("core: execute trigger with empty trigger id")
		}
		return nil
	case InstructionUpgrade:
		if len(ins.ExecutorWasm) == 0 {
			return fmt.Errorf("core: upgrade with empty executor payload")
		}
		return nil
	default:
		return fmt.Errorf("core: unknown instruction kind %d", ins.Kind)
	}
}
