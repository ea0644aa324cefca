package executor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

func newWorld(t *testing.T) (*wsv.WSV, ids.AccountId) {
	t.Helper()
	w := wsv.New()
	require.NoError(t, w.RegisterDomain("wonderland"))
	alice := ids.AccountId{Name: "alice", Domain: "wonderland"}
	require.NoError(t, w.RegisterAccount(alice, nil))
	return w, alice
}

func TestDefaultExecutorAllowsOpenRegistrationBeforeMigration(t *testing.T) {
	w, _ := newWorld(t)
	e := NewDefaultExecutor()

	v := e.Evaluate(Operation{
		Kind:        OperationInstruction,
		Authority:   ids.AccountId{Name: "nobody", Domain: "wonderland"},
		Instruction: core.Instruction{Kind: core.InstructionRegisterDomain, DomainId: "newdom"},
	}, w)
	assert.True(t, v.Pass)
}

func TestDefaultExecutorRequiresTokenToUnregisterDomain(t *testing.T) {
	w, alice := newWorld(t)
	e := NewDefaultExecutor()

	denied := e.Evaluate(Operation{
		Kind:        OperationInstruction,
		Authority:   alice,
		Instruction: core.Instruction{Kind: core.InstructionUnregisterDomain, DomainId: "wonderland"},
	}, w)
	assert.False(t, denied.Pass)

	require.NoError(t, w.RegisterRole(PermissionCanUnregisterDomain, []string{string(PermissionCanUnregisterDomain)}))
	require.NoError(t, w.GrantRole(alice, PermissionCanUnregisterDomain))

	allowed := e.Evaluate(Operation{
		Kind:        OperationInstruction,
		Authority:   alice,
		Instruction: core.Instruction{Kind: core.InstructionUnregisterDomain, DomainId: "wonderland"},
	}, w)
	assert.True(t, allowed.Pass)
}

func TestUpgradeRenamesDomainLifecycleToken(t *testing.T) {
	w, alice := newWorld(t)
	e := NewDefaultExecutor()
	require.NoError(t, w.RegisterRole(PermissionCanUnregisterDomain, []string{string(PermissionCanUnregisterDomain)}))
	require.NoError(t, w.GrantRole(alice, PermissionCanUnregisterDomain))

	err := Upgrade(w, e, 42, RenameDomainLifecycleToken(PermissionCanUnregisterDomain, PermissionCanControlDomainLives))
	require.NoError(t, err)

	acc, err := w.Account(alice)
	require.NoError(t, err)
	_, oldHeld := acc.Roles[PermissionCanUnregisterDomain]
	_, newHeld := acc.Roles[PermissionCanControlDomainLives]
	assert.False(t, oldHeld, "old token must be revoked")
	assert.True(t, newHeld, "new token must be granted in its place")

	bob := ids.AccountId{Name: "bob", Domain: "wonderland"}
	require.NoError(t, w.RegisterAccount(bob, nil))
	denied := e.Evaluate(Operation{
		Kind:        OperationInstruction,
		Authority:   bob,
		Instruction: core.Instruction{Kind: core.InstructionRegisterDomain, DomainId: "latecomer"},
	}, w)
	assert.False(t, denied.Pass, "registration must now require the new token")

	allowed := e.Evaluate(Operation{
		Kind:        OperationInstruction,
		Authority:   alice,
		Instruction: core.Instruction{Kind: core.InstructionRegisterDomain, DomainId: "latecomer"},
	}, w)
	assert.True(t, allowed.Pass)
}

func TestUpgradeRollsBackFailedMigration(t *testing.T) {
	w, _ := newWorld(t)
	e := NewDefaultExecutor()

	failing := func(scratch *wsv.WSV, scratchExec *DefaultExecutor, height uint64) error {
		if err := scratch.RegisterDomain("sentinel"); err != nil {
			return err
		}
		return errors.New("boom")
	}

	err := Upgrade(w, e, 7, failing)
	require.Error(t, err)

	found := false
	for _, id := range w.DomainIds() {
		if id == "sentinel" {
			found = true
		}
	}
	assert.False(t, found, "failed migration must not leave side effects on the live WSV")

	v := e.Evaluate(Operation{
		Kind:        OperationInstruction,
		Authority:   ids.AccountId{Name: "anyone", Domain: "wonderland"},
		Instruction: core.Instruction{Kind: core.InstructionRegisterDomain, DomainId: "stillopen"},
	}, w)
	assert.True(t, v.Pass, "previous executor policy must remain active")
}
