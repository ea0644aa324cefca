// Package ids defines the structured identifiers used throughout the node:
// domains, accounts, asset definitions, assets, roles and peers. All of them
// are plain, comparable value types so they can be used directly as map keys.
package ids

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// minNameLength and maxNameLength bound every user-supplied name identifier
// (domain, account, asset definition, role), configurable via
// SetLengthLimits to match spec.md's "default ident_length_limits = (1,
// 128)". Stored as atomics since Validate is called concurrently from
// request-handling goroutines while internal/node applies the configured
// limits once at startup.
var (
	minNameLength atomic.Int64
	maxNameLength atomic.Int64
)

func init() {
	minNameLength.Store(1)
	maxNameLength.Store(128)
}

// SetLengthLimits overrides the [min, max] name-length bounds every
// subsequent Validate call enforces.
func SetLengthLimits(min, max int) {
	minNameLength.Store(int64(min))
	maxNameLength.Store(int64(max))
}

func checkNameLength(kind, name string) error {
	min, max := minNameLength.Load(), maxNameLength.Load()
	if n := int64(len(name)); n < min || n > max {
		return fmt.Errorf("%w: %s %q length %d outside [%d, %d]", ErrInvalidId, kind, name, n, min, max)
	}
	return nil
}

// DomainId names a domain, e.g. "wonderland".
type DomainId string

// Validate checks that a DomainId is non-empty and contains no separator
// characters reserved for composite identifiers ('@', '#').
func (d DomainId) Validate() error {
	if err := checkNameLength("domain id", string(d)); err != nil {
		return err
	}
	if strings.ContainsAny(string(d), "@#") {
		return fmt.Errorf("%w: domain id %q contains a reserved character", ErrInvalidId, d)
	}
	return nil
}

func (d DomainId) String() string { return string(d) }

// AccountId identifies an account as "signatory@domain".
type AccountId struct {
	Name   string
	Domain DomainId
}

func (a AccountId) String() string { return a.Name + "@" + string(a.Domain) }

// Validate checks that both components are well-formed.
func (a AccountId) Validate() error {
	if err := checkNameLength("account name", a.Name); err != nil {
		return err
	}
	if strings.ContainsAny(a.Name, "@#") {
		return fmt.Errorf("%w: account name %q contains a reserved character", ErrInvalidId, a.Name)
	}
	return a.Domain.Validate()
}

// ParseAccountId parses "name@domain" into an AccountId.
func ParseAccountId(s string) (AccountId, error) {
	name, domain, ok := strings.Cut(s, "@")
	if !ok {
		return AccountId{}, fmt.Errorf("%w: %q is missing '@'", ErrInvalidId, s)
	}
	id := AccountId{Name: name, Domain: DomainId(domain)}
	return id, id.Validate()
}

// AssetDefinitionId identifies an asset definition as "name#domain".
type AssetDefinitionId struct {
	Name   string
	Domain DomainId
}

func (a AssetDefinitionId) String() string { return a.Name + "#" + string(a.Domain) }

func (a AssetDefinitionId) Validate() error {
	if err := checkNameLength("asset definition name", a.Name); err != nil {
		return err
	}
	return a.Domain.Validate()
}

// ParseAssetDefinitionId parses "name#domain".
func ParseAssetDefinitionId(s string) (AssetDefinitionId, error) {
	name, domain, ok := strings.Cut(s, "#")
	if !ok {
		return AssetDefinitionId{}, fmt.Errorf("%w: %q is missing '#'", ErrInvalidId, s)
	}
	id := AssetDefinitionId{Name: name, Domain: DomainId(domain)}
	return id, id.Validate()
}

// AssetId identifies a specific asset held by an account: "definition#domain@owner".
type AssetId struct {
	Definition AssetDefinitionId
	Account    AccountId
}

func (a AssetId) String() string {
	return a.Definition.String() + "@" + a.Account.Name + "@" + string(a.Account.Domain)
}

func (a AssetId) Validate() error {
	if err := a.Definition.Validate(); err != nil {
		return err
	}
	return a.Account.Validate()
}

// RoleId names a role definition, e.g. "admin".
type RoleId string

func (r RoleId) Validate() error {
	return checkNameLength("role id", string(r))
}

func (r RoleId) String() string { return string(r) }

// PeerId identifies a peer by its public key and network address.
// Address is informational only; two PeerIds with the same PublicKey are the
// same peer regardless of Address, matching the teacher's original treatment
// of validator identity as key-derived rather than address-derived.
type PeerId struct {
	PublicKey [32]byte
	Address   string
}

func (p PeerId) String() string {
	return fmt.Sprintf("%x@%s", p.PublicKey[:8], p.Address)
}
