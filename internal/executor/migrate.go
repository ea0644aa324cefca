package executor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// MigrationFunc is the host-side stand-in for an Upgrade<Executor> payload's
// migrate(block_height) WASM entrypoint: arbitrary mutation of a scratch WSV
// and a scratch executor, run once per upgrade attempt.
type MigrationFunc func(w *wsv.WSV, e *DefaultExecutor, height uint64) error

// Upgrade runs migrate against independent scratch copies of w and e and,
// only if it succeeds, folds the scratch state back into the live w and e.
// A failing migrate leaves both untouched: spec.md §4.5's "all side effects
// are rolled back atomically and the upgrade is rejected".
func Upgrade(w *wsv.WSV, e *DefaultExecutor, height uint64, migrate MigrationFunc) error {
	scratchWSV := w.Clone()
	scratchExec := e.Clone()

	if err := migrate(scratchWSV, scratchExec, height); err != nil {
		return fmt.Errorf("executor: migration failed, upgrade rejected: %w", err)
	}

	w.ReplaceState(scratchWSV)
	e.replaceState(scratchExec)
	return nil
}

// Upgrade is wsv.Policy's migration entrypoint, reached from
// InstructionUpgrade during block application instead of only from
// standalone calls to the Upgrade function above (spec.md §4.5). payload
// selects which MigrationFunc to run against a scratch WSV built from w's
// own state via ApplyUpgrade, which folds the scratch copy back into w only
// on success and leaves w untouched on failure.
func (e *DefaultExecutor) Upgrade(w *wsv.WSV, payload []byte, height uint64) error {
	migrate, err := parseMigration(payload)
	if err != nil {
		return err
	}
	scratchExec := e.Clone()
	if err := w.ApplyUpgrade(func(scratch *wsv.WSV) error {
		return migrate(scratch, scratchExec, height)
	}); err != nil {
		return fmt.Errorf("executor: migration failed, upgrade rejected: %w", err)
	}
	e.replaceState(scratchExec)
	return nil
}

// parseMigration decodes an InstructionUpgrade payload into a MigrationFunc.
// The real system's WASM module would carry arbitrary migration logic; this
// host interface recognizes one migration directive, a domain-lifecycle
// token rename encoded as "rename_domain_lifecycle_token:<old>:<new>".
func parseMigration(payload []byte) (MigrationFunc, error) {
	parts := strings.Split(string(payload), ":")
	if len(parts) == 3 && parts[0] == "rename_domain_lifecycle_token" {
		return RenameDomainLifecycleToken(ids.RoleId(parts[1]), ids.RoleId(parts[2])), nil
	}
	return nil, fmt.Errorf("executor: unrecognized migration payload %q", payload)
}

// RenameDomainLifecycleToken builds the migration for spec.md §8 scenario 5:
// every current holder of oldToken is regranted newToken instead, and
// future domain registration is restricted to newToken holders.
func RenameDomainLifecycleToken(oldToken, newToken ids.RoleId) MigrationFunc {
	return func(w *wsv.WSV, e *DefaultExecutor, height uint64) error {
		if err := w.RegisterRole(newToken, []string{string(newToken)}); err != nil && !errors.Is(err, wsv.ErrAlreadyExists) {
			return err
		}

		for _, domainId := range w.DomainIds() {
			accountIds, err := w.AccountIds(domainId)
			if err != nil {
				return err
			}
			for _, accId := range accountIds {
				acc, err := w.Account(accId)
				if err != nil {
					return err
				}
				if _, holds := acc.Roles[oldToken]; !holds {
					continue
				}
				if err := w.RevokeRole(accId, oldToken); err != nil {
					return err
				}
				if err := w.GrantRole(accId, newToken); err != nil {
					return err
				}
			}
		}

		e.mu.Lock()
		e.domainLifecycleToken = newToken
		e.registrationOpen = false
		e.mu.Unlock()
		return nil
	}
}
