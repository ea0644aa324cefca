package wsv

import (
	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/ids"
)

// Clone returns a deep, independent copy of the WSV's state, used by
// internal/executor to build a scratch world against which a proposed
// Upgrade<Executor> migration can run without risk to the live state: the
// migration either succeeds entirely, and ReplaceState folds the scratch
// copy back in, or it fails and the scratch copy is discarded.
func (w *WSV) Clone() *WSV {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cloneLocked()
}

// cloneLocked is Clone's body without the lock, for callers that already
// hold w.mu (directly or transitively) — notably ApplyUpgrade, invoked from
// inside Apply's already-locked call chain, where taking w.mu.RLock() again
// on the same goroutine would deadlock since sync.RWMutex is not reentrant.
func (w *WSV) cloneLocked() *WSV {
	out := New()
	out.domains = w.snapshot()
	out.roles = make(map[ids.RoleId]*Role, len(w.roles))
	for id, role := range w.roles {
		permissions := make([]string, len(role.Permissions))
		copy(permissions, role.Permissions)
		out.roles[id] = &Role{Id: role.Id, Permissions: permissions}
	}
	out.triggers = make(map[string]*Trigger, len(w.triggers))
	for id, t := range w.triggers {
		clone := *t
		clone.Action = append([]core.Instruction(nil), t.Action...)
		out.triggers[id] = &clone
	}
	out.height = w.height
	out.topHash = w.topHash
	out.policy = w.policy
	return out
}

// ReplaceState atomically swaps w's entire state with other's, discarding
// w's previous contents. other is expected to be a scratch WSV (e.g. from
// Clone) not shared with any other goroutine.
func (w *WSV) ReplaceState(other *WSV) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.replaceStateLocked(other)
}

// replaceStateLocked is ReplaceState's body without taking w.mu, for the
// same already-locked-caller reason as cloneLocked.
func (w *WSV) replaceStateLocked(other *WSV) {
	other.mu.RLock()
	domains, roles, triggers, height, topHash := other.domains, other.roles, other.triggers, other.height, other.topHash
	other.mu.RUnlock()

	w.domains = domains
	w.roles = roles
	w.triggers = triggers
	w.height = height
	w.topHash = topHash
}

// ApplyUpgrade runs migrate against a scratch clone of w's state and, only
// on success, folds the scratch state back into w directly — without
// taking w's own lock, since every call site (InstructionUpgrade, dispatched
// from applyInstructionInternal) is already inside Apply's locked section.
// On failure the scratch copy is discarded and w is untouched, giving
// Upgrade<Executor> the same atomic-migration/rollback-on-error contract as
// any other instruction (spec.md §4.5).
func (w *WSV) ApplyUpgrade(migrate func(scratch *WSV) error) error {
	scratch := w.cloneLocked()
	if err := migrate(scratch); err != nil {
		return err
	}
	w.replaceStateLocked(scratch)
	return nil
}
