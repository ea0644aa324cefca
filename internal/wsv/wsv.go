// Package wsv is the World State View: the single in-memory source of truth
// for domains, accounts, asset definitions, assets, roles and triggers.
// It generalizes the teacher's internal/state package (manager.go/state.go),
// which held a UTXO set and an account map, into the nested
// domain->account->asset ownership model spec.md §3/§4.3 describes, while
// keeping the same sync.RWMutex-guarded-manager-with-unexported-internal-
// helpers shape.
package wsv

import (
	"fmt"
	"sort"
	"sync"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
)

// Domain groups accounts and asset definitions under a single namespace.
type Domain struct {
	Id       ids.DomainId
	Accounts map[string]*Account // keyed by AccountId.String()
	Assets   map[string]*AssetDefinition
	Metadata map[string][]byte
}

// AssetDefinition describes an asset type registered within a domain.
type AssetDefinition struct {
	Id       ids.AssetDefinitionId
	Mintable bool
}

// Account holds one signatory's role grants, permission tokens and metadata,
// plus the assets it owns (indexed by AssetId.String() for O(1) lookup).
type Account struct {
	Id          ids.AccountId
	PublicKeys  [][]byte
	Roles       map[ids.RoleId]struct{}
	Assets      map[string]*Asset
	Metadata    map[string][]byte
	SignatureCheckThreshold int // number of distinct signatures required; 1 for single-sig accounts
}

// Asset is a quantity of an AssetDefinition held by an Account.
type Asset struct {
	Id    ids.AssetId
	Value core.AssetValue
}

// Role is a named bundle of permission tokens grantable to accounts.
type Role struct {
	Id         ids.RoleId
	Permissions []string
}

// WSV is the mutated-only-on-commit world state.
type WSV struct {
	mu sync.RWMutex

	domains map[ids.DomainId]*Domain
	roles   map[ids.RoleId]*Role
	triggers map[string]*Trigger

	height  uint64
	topHash cryptofacade.Hash

	policy Policy // nil until SetPolicy is called; instructions are ungated until then

	events []Event // pending events fired by the in-progress apply, drained by Apply's caller
}

// Policy is the permission/upgrade boundary internal/executor implements.
// It is declared here, rather than imported, because internal/executor
// already imports internal/wsv for *WSV parameters; a consumer-side
// interface is how Go expresses this dependency without a cycle.
// CheckInstruction gates an instruction against the executor's current
// policy before WSV mutates any state for it (spec.md §4.5's
// Pass|Deny(NotPermitted) verdict). Upgrade runs an InstructionUpgrade's
// payload as an atomic migration against w, on behalf of the executor.
type Policy interface {
	CheckInstruction(authority ids.AccountId, ins core.Instruction, w *WSV) error
	Upgrade(w *WSV, payload []byte, height uint64) error
}

// SetPolicy installs the permission/upgrade policy every instruction is
// checked against during Apply/ApplyTransaction. internal/node wires this
// once at startup with the node's internal/executor.DefaultExecutor.
func (w *WSV) SetPolicy(p Policy) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.policy = p
}

// New returns an empty WSV.
func New() *WSV {
	return &WSV{
		domains:  make(map[ids.DomainId]*Domain),
		roles:    make(map[ids.RoleId]*Role),
		triggers: make(map[string]*Trigger),
	}
}

// Height returns the height of the last block applied.
func (w *WSV) Height() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.height
}

// TopHash returns the hash of the last block applied.
func (w *WSV) TopHash() cryptofacade.Hash {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.topHash
}

// RegisterRole defines a new role with a fixed permission token set.
func (w *WSV) RegisterRole(id ids.RoleId, permissions []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, exists := w.roles[id]; exists {
		return fmt.Errorf("%w: role %s", ErrAlreadyExists, id)
	}
	w.roles[id] = &Role{Id: id, Permissions: permissions}
	return nil
}

// RegisterDomain adds a new, empty domain.
func (w *WSV) RegisterDomain(id ids.DomainId) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registerDomainInternal(id)
}

func (w *WSV) registerDomainInternal(id ids.DomainId) error {
	if _, exists := w.domains[id]; exists {
		return fmt.Errorf("%w: domain %s", ErrAlreadyExists, id)
	}
	w.domains[id] = &Domain{
		Id:       id,
		Accounts: make(map[string]*Account),
		Assets:   make(map[string]*AssetDefinition),
		Metadata: make(map[string][]byte),
	}
	return nil
}

// RegisterAccount adds a new account with no roles, assets or keys to an
// existing domain.
func (w *WSV) RegisterAccount(id ids.AccountId, publicKeys [][]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registerAccountInternal(id, publicKeys)
}

func (w *WSV) registerAccountInternal(id ids.AccountId, publicKeys [][]byte) error {
	dom, ok := w.domains[id.Domain]
	if !ok {
		return fmt.Errorf("%w: domain %s", ErrNotFound, id.Domain)
	}
	key := id.String()
	if _, exists := dom.Accounts[key]; exists {
		return fmt.Errorf("%w: account %s", ErrAlreadyExists, id)
	}
	dom.Accounts[key] = &Account{
		Id:                      id,
		PublicKeys:              publicKeys,
		Roles:                   make(map[ids.RoleId]struct{}),
		Assets:                  make(map[string]*Asset),
		Metadata:                make(map[string][]byte),
		SignatureCheckThreshold: 1,
	}
	return nil
}

// Account looks up an account by id.
func (w *WSV) Account(id ids.AccountId) (*Account, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.accountInternal(id)
}

func (w *WSV) accountInternal(id ids.AccountId) (*Account, error) {
	dom, ok := w.domains[id.Domain]
	if !ok {
		return nil, fmt.Errorf("%w: domain %s", ErrNotFound, id.Domain)
	}
	acc, ok := dom.Accounts[id.String()]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", ErrNotFound, id)
	}
	return acc, nil
}

// HasRole reports whether account holds role. Unlike Account, it does not
// take w's lock: it is called by internal/executor's policy checks from
// inside applyInstructionInternal, which already holds it, and standalone
// from executor's own tests against an unshared WSV, where no lock is
// needed either way.
func (w *WSV) HasRole(account ids.AccountId, role ids.RoleId) bool {
	acc, err := w.accountInternal(account)
	if err != nil {
		return false
	}
	_, ok := acc.Roles[role]
	return ok
}

// RegisterAssetDefinition adds a new asset definition to a domain.
func (w *WSV) RegisterAssetDefinition(id ids.AssetDefinitionId, mintable bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registerAssetDefinitionInternal(id, mintable)
}

func (w *WSV) registerAssetDefinitionInternal(id ids.AssetDefinitionId, mintable bool) error {
	dom, ok := w.domains[id.Domain]
	if !ok {
		return fmt.Errorf("%w: domain %s", ErrNotFound, id.Domain)
	}
	key := id.String()
	if _, exists := dom.Assets[key]; exists {
		return fmt.Errorf("%w: asset definition %s", ErrAlreadyExists, id)
	}
	dom.Assets[key] = &AssetDefinition{Id: id, Mintable: mintable}
	return nil
}

// Mint increases an account's holding of an asset, registering the holding
// at the amount's zero value first if the account has never held this asset
// before. Mint fails rather than wraps on overflow (spec.md §8).
func (w *WSV) Mint(assetId ids.AssetId, amount core.AssetValue) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mintInternal(assetId, amount)
}

func (w *WSV) mintInternal(assetId ids.AssetId, amount core.AssetValue) error {
	acc, err := w.accountInternal(assetId.Account)
	if err != nil {
		return err
	}
	key := assetId.String()
	asset, ok := acc.Assets[key]
	if !ok {
		asset = &Asset{Id: assetId, Value: zeroOf(amount)}
		acc.Assets[key] = asset
	}
	sum, err := asset.Value.Add(amount)
	if err != nil {
		return fmt.Errorf("wsv: mint %s into %s: %w", amount.Kind, assetId, err)
	}
	asset.Value = sum
	return nil
}

// Burn decreases an account's holding of an asset, saturating at zero
// instead of failing when amount exceeds the balance (spec.md §3).
func (w *WSV) Burn(assetId ids.AssetId, amount core.AssetValue) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.burnInternal(assetId, amount)
}

func (w *WSV) burnInternal(assetId ids.AssetId, amount core.AssetValue) error {
	acc, err := w.accountInternal(assetId.Account)
	if err != nil {
		return err
	}
	key := assetId.String()
	asset, ok := acc.Assets[key]
	if !ok {
		return nil // nothing held, burn saturates at zero
	}
	diff, err := asset.Value.Sub(amount)
	if err != nil {
		return fmt.Errorf("wsv: burn %s of %s: %w", amount.Kind, assetId, err)
	}
	asset.Value = diff
	return nil
}

// Transfer moves amount of an asset definition from one account to another.
// Unlike Burn, the debit side does not saturate: a transfer larger than the
// sender's balance fails with ErrInsufficientFunds. The credit side fails on
// overflow like Mint.
func (w *WSV) Transfer(from, to ids.AccountId, def ids.AssetDefinitionId, amount core.AssetValue) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.transferInternal(from, to, def, amount)
}

func (w *WSV) transferInternal(from, to ids.AccountId, def ids.AssetDefinitionId, amount core.AssetValue) error {
	fromAcc, err := w.accountInternal(from)
	if err != nil {
		return err
	}
	toAcc, err := w.accountInternal(to)
	if err != nil {
		return err
	}

	fromAssetId := ids.AssetId{Definition: def, Account: from}
	toAssetId := ids.AssetId{Definition: def, Account: to}

	fromKey := fromAssetId.String()
	fromAsset, ok := fromAcc.Assets[fromKey]
	if !ok || fromAsset.Value.Less(amount) {
		return fmt.Errorf("%w: transfer %v of %s", ErrInsufficientFunds, amount, fromAssetId)
	}

	toKey := toAssetId.String()
	toAsset, ok := toAcc.Assets[toKey]
	if !ok {
		toAsset = &Asset{Id: toAssetId, Value: zeroOf(amount)}
		toAcc.Assets[toKey] = toAsset
	}

	debited, err := fromAsset.Value.Sub(amount)
	if err != nil {
		return fmt.Errorf("wsv: transfer %s from %s: %w", amount.Kind, fromAssetId, err)
	}
	credited, err := toAsset.Value.Add(amount)
	if err != nil {
		return fmt.Errorf("wsv: transfer %s to %s: %w", amount.Kind, toAssetId, err)
	}
	fromAsset.Value = debited
	toAsset.Value = credited
	return nil
}

// zeroOf returns the zero value of amount's kind, used to seed a
// never-before-held asset before Add/Sub are applied.
func zeroOf(amount core.AssetValue) core.AssetValue {
	switch amount.Kind {
	case core.AssetValueBigQuantity:
		return core.NewBigQuantity(nil)
	case core.AssetValueFixed:
		return core.NewFixed(0)
	case core.AssetValueStore:
		return core.NewStore(nil)
	default:
		return core.NewQuantity(0)
	}
}

// GrantRole grants a role to an account. The role must already be defined.
func (w *WSV) GrantRole(account ids.AccountId, role ids.RoleId) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.grantRoleInternal(account, role)
}

func (w *WSV) grantRoleInternal(account ids.AccountId, role ids.RoleId) error {
	if _, ok := w.roles[role]; !ok {
		return fmt.Errorf("%w: role %s", ErrNotFound, role)
	}
	acc, err := w.accountInternal(account)
	if err != nil {
		return err
	}
	acc.Roles[role] = struct{}{}
	return nil
}

// RevokeRole removes a role grant from an account.
func (w *WSV) RevokeRole(account ids.AccountId, role ids.RoleId) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.revokeRoleInternal(account, role)
}

func (w *WSV) revokeRoleInternal(account ids.AccountId, role ids.RoleId) error {
	acc, err := w.accountInternal(account)
	if err != nil {
		return err
	}
	delete(acc.Roles, role)
	return nil
}

// SetKeyValue sets a metadata key on an account.
func (w *WSV) SetKeyValue(account ids.AccountId, key string, value []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setKeyValueInternal(account, key, value)
}

func (w *WSV) setKeyValueInternal(account ids.AccountId, key string, value []byte) error {
	acc, err := w.accountInternal(account)
	if err != nil {
		return err
	}
	acc.Metadata[key] = value
	return nil
}

// RemoveKeyValue removes a metadata key from an account.
func (w *WSV) RemoveKeyValue(account ids.AccountId, key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removeKeyValueInternal(account, key)
}

func (w *WSV) removeKeyValueInternal(account ids.AccountId, key string) error {
	acc, err := w.accountInternal(account)
	if err != nil {
		return err
	}
	delete(acc.Metadata, key)
	return nil
}

// Unregister cascades an account removal: its assets go with it.
// UnregisterDomain follows the same cascade shape, grounded on
// original_source/core/src/smartcontracts/isi/domain.rs. There is no
// standalone asset-definition unregistration.
func (w *WSV) Unregister(account ids.AccountId) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unregisterInternal(account)
}

func (w *WSV) unregisterInternal(account ids.AccountId) error {
	dom, ok := w.domains[account.Domain]
	if !ok {
		return fmt.Errorf("%w: domain %s", ErrNotFound, account.Domain)
	}
	key := account.String()
	if _, ok := dom.Accounts[key]; !ok {
		return fmt.Errorf("%w: account %s", ErrNotFound, account)
	}
	delete(dom.Accounts, key)
	return nil
}

// UnregisterDomain removes a domain and everything nested under it: its
// accounts (and their assets) and its asset definitions, in that order.
func (w *WSV) UnregisterDomain(id ids.DomainId) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.unregisterDomainInternal(id)
}

func (w *WSV) unregisterDomainInternal(id ids.DomainId) error {
	if _, ok := w.domains[id]; !ok {
		return fmt.Errorf("%w: domain %s", ErrNotFound, id)
	}
	delete(w.domains, id)
	return nil
}

// DomainIds returns every registered domain id in lexicographic order,
// satisfying spec.md §4.3's deterministic-iteration-order invariant.
func (w *WSV) DomainIds() []ids.DomainId {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]ids.DomainId, 0, len(w.domains))
	for id := range w.domains {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// AccountIds returns every account id in a domain in lexicographic order.
func (w *WSV) AccountIds(domain ids.DomainId) ([]ids.AccountId, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	dom, ok := w.domains[domain]
	if !ok {
		return nil, fmt.Errorf("%w: domain %s", ErrNotFound, domain)
	}
	out := make([]ids.AccountId, 0, len(dom.Accounts))
	for _, acc := range dom.Accounts {
		out = append(out, acc.Id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}
