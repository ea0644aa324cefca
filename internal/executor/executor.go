// Package executor is the upgradable permission and validation policy that
// sits between a proposed operation and the World State View. The real
// system loads this policy from a WASM module supplied on-chain
// (original_source/core/src/validator.rs's Validator, which wraps a
// wasmtime::Module and exposes validate(wsv, authority, operation)); the
// WASM engine itself is out of scope here (SPEC_FULL.md §4.5), so this
// package defines the host-side contract — Evaluate, and an Upgrade path
// with atomic migration — plus a DefaultExecutor that implements enough of
// a built-in permission policy to drive the domain-lifecycle scenarios in
// spec.md §8.
package executor

import (
	"fmt"
	"sync"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// OperationKind tags what Evaluate is being asked to judge, mirroring the
// three entrypoints (validate_transaction/validate_instruction/
// validate_query) spec.md §4.5 lists for the WASM module.
type OperationKind int

const (
	OperationInstruction OperationKind = iota
	OperationTransaction
	OperationQuery
)

// Operation is one unit of work submitted for policy evaluation.
type Operation struct {
	Kind        OperationKind
	Authority   ids.AccountId
	Instruction core.Instruction        // set when Kind == OperationInstruction
	Transaction core.SignedTransaction  // set when Kind == OperationTransaction
	Query       string                  // set when Kind == OperationQuery; opaque query name
}

// Verdict is the result of evaluating an Operation: Pass, or Deny with a
// human-readable reason (spec.md §4.5's "Pass | Deny(reason)").
type Verdict struct {
	Pass   bool
	Reason string
}

func Pass() Verdict            { return Verdict{Pass: true} }
func Deny(reason string) Verdict { return Verdict{Pass: false, Reason: reason} }

// Evaluator is the policy contract every executor version must satisfy.
type Evaluator interface {
	Evaluate(op Operation, w *wsv.WSV) Verdict
}

// DefaultExecutor is the built-in policy: domain registration is open to
// everyone until a migration closes it to holders of a designated
// domain-lifecycle permission token, and domain unregistration always
// requires that token. Permission tokens are represented as roles granted
// directly to the holder account (internal/wsv's existing Grant/Revoke
// mechanism), rather than a parallel token store, since that is how
// original_source/permission_validators model a "token holder" — grant of
// a role that carries exactly one permission.
type DefaultExecutor struct {
	mu sync.RWMutex

	domainLifecycleToken ids.RoleId
	registrationOpen     bool
}

// NewDefaultExecutor returns the genesis policy: anyone may register a
// domain, and CanUnregisterDomain token holders may unregister one.
func NewDefaultExecutor() *DefaultExecutor {
	return &DefaultExecutor{
		domainLifecycleToken: PermissionCanUnregisterDomain,
		registrationOpen:     true,
	}
}

// Evaluate judges a single operation against the current policy.
func (e *DefaultExecutor) Evaluate(op Operation, w *wsv.WSV) Verdict {
	switch op.Kind {
	case OperationTransaction:
		for _, ins := range op.Transaction.Payload.Instructions {
			v := e.evaluateInstruction(op.Transaction.Payload.Authority, ins, w)
			if !v.Pass {
				return v
			}
		}
		return Pass()
	case OperationInstruction:
		return e.evaluateInstruction(op.Authority, op.Instruction, w)
	case OperationQuery:
		return Pass()
	default:
		return Deny(fmt.Sprintf("executor: unknown operation kind %d", op.Kind))
	}
}

func (e *DefaultExecutor) evaluateInstruction(authority ids.AccountId, ins core.Instruction, w *wsv.WSV) Verdict {
	e.mu.RLock()
	token, registrationOpen := e.domainLifecycleToken, e.registrationOpen
	e.mu.RUnlock()

	switch ins.Kind {
	case core.InstructionRegisterDomain:
		if registrationOpen {
			return Pass()
		}
		if !hasToken(w, authority, token) {
			return Deny(fmt.Sprintf("account %s does not hold %s", authority, token))
		}
		return Pass()
	case core.InstructionUnregisterDomain:
		if !hasToken(w, authority, token) {
			return Deny(fmt.Sprintf("account %s does not hold %s", authority, token))
		}
		return Pass()
	default:
		return Pass()
	}
}

// CheckInstruction is wsv.Policy's permission gate: the same verdict
// Evaluate would reach for a lone instruction, surfaced as a plain error so
// WSV's instruction pipeline can treat a denial exactly like any other
// instruction failure (spec.md §4.5's Pass|Deny(NotPermitted)).
func (e *DefaultExecutor) CheckInstruction(authority ids.AccountId, ins core.Instruction, w *wsv.WSV) error {
	if v := e.evaluateInstruction(authority, ins, w); !v.Pass {
		return fmt.Errorf("executor: %s", v.Reason)
	}
	return nil
}

func hasToken(w *wsv.WSV, account ids.AccountId, token ids.RoleId) bool {
	return w.HasRole(account, token)
}

// Clone returns an independent copy of the executor's mutable policy state,
// used to build a scratch executor for a candidate migration.
func (e *DefaultExecutor) Clone() *DefaultExecutor {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &DefaultExecutor{domainLifecycleToken: e.domainLifecycleToken, registrationOpen: e.registrationOpen}
}

func (e *DefaultExecutor) replaceState(other *DefaultExecutor) {
	other.mu.RLock()
	token, open := other.domainLifecycleToken, other.registrationOpen
	other.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.domainLifecycleToken = token
	e.registrationOpen = open
}
