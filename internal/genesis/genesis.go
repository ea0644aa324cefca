// Package genesis loads and builds the height-0 block spec.md §4.6 and §9
// require every peer to load identically: "all peers must load an
// identical genesis and reject any peer whose genesis hash differs." The
// declarative Spec format (domains/roles/accounts, plus the genesis
// signing key) is this repo's own, since neither spec.md nor the teacher
// defines a wire format for it; original_source's genesis.json (a
// signed-transaction list under a single genesis key) grounds the shape of
// "one key authors the whole initial world state."
package genesis

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/hyperledger/iroha-sub010/internal/core"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// RoleSpec declares one role and the permission tokens it grants.
type RoleSpec struct {
	Id          string   `json:"id"`
	Permissions []string `json:"permissions"`
}

// AccountSpec declares one account and the roles it starts with.
type AccountSpec struct {
	Name       string   `json:"name"`
	Domain     string   `json:"domain"`
	PublicKeys [][]byte `json:"public_keys"`
	Roles      []string `json:"roles"`
}

// AssetDefinitionSpec declares one asset type registered within a domain.
type AssetDefinitionSpec struct {
	Name     string `json:"name"`
	Domain   string `json:"domain"`
	Mintable bool   `json:"mintable"`
}

// Spec is the full declarative genesis document: the signing key plus the
// initial world state it authors.
type Spec struct {
	ChainID          string                `json:"chain_id"`
	PublicKey        []byte                `json:"public_key"`
	PrivateKey       []byte                `json:"private_key"`
	Domains          []string              `json:"domains"`
	Roles            []RoleSpec            `json:"roles"`
	Accounts         []AccountSpec         `json:"accounts"`
	AssetDefinitions []AssetDefinitionSpec `json:"asset_definitions"`
}

// Generate returns a fresh Spec with a newly generated genesis keypair and
// an empty world state, for the `generate-genesis` CLI command to write out
// and the operator to extend by hand.
func Generate(chainID string) (Spec, error) {
	kp, err := cryptofacade.GenerateKeyPair()
	if err != nil {
		return Spec{}, fmt.Errorf("genesis: generating signing key: %w", err)
	}
	return Spec{
		ChainID:    chainID,
		PublicKey:  kp.Public,
		PrivateKey: kp.Private,
	}, nil
}

// Load reads a Spec from a JSON file at path.
func Load(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("genesis: reading %s: %w", path, err)
	}
	var spec Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		return Spec{}, fmt.Errorf("genesis: parsing %s: %w", path, err)
	}
	return spec, nil
}

// Save writes spec to path as indented JSON.
func Save(path string, spec Spec) error {
	data, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return fmt.Errorf("genesis: encoding spec: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("genesis: writing %s: %w", path, err)
	}
	return nil
}

// Apply seeds world with every domain, role, account and asset definition
// spec names, in dependency order (domains before accounts, roles before
// role grants). It is meant to run exactly once, against a freshly created
// WSV, before the genesis block itself is applied.
func Apply(spec Spec, world *wsv.WSV) error {
	for _, d := range spec.Domains {
		if err := world.RegisterDomain(ids.DomainId(d)); err != nil {
			return fmt.Errorf("genesis: registering domain %s: %w", d, err)
		}
	}
	for _, r := range spec.Roles {
		if err := world.RegisterRole(ids.RoleId(r.Id), r.Permissions); err != nil {
			return fmt.Errorf("genesis: registering role %s: %w", r.Id, err)
		}
	}
	for _, a := range spec.Accounts {
		id := ids.AccountId{Name: a.Name, Domain: ids.DomainId(a.Domain)}
		if err := world.RegisterAccount(id, a.PublicKeys); err != nil {
			return fmt.Errorf("genesis: registering account %s: %w", id, err)
		}
		for _, role := range a.Roles {
			if err := world.GrantRole(id, ids.RoleId(role)); err != nil {
				return fmt.Errorf("genesis: granting role %s to %s: %w", role, id, err)
			}
		}
	}
	for _, ad := range spec.AssetDefinitions {
		id := ids.AssetDefinitionId{Name: ad.Name, Domain: ids.DomainId(ad.Domain)}
		if err := world.RegisterAssetDefinition(id, ad.Mintable); err != nil {
			return fmt.Errorf("genesis: registering asset definition %s: %w", id, err)
		}
	}
	return nil
}

// Block builds the signed, transaction-empty height-0 block every peer
// anchors its chain on. World state at genesis comes from Apply, not from
// instructions in this block — spec.md never gives Sumeragi a path for
// height 0 to go through the normal propose/vote/commit cycle, so the
// genesis block carries no transactions, only the signature that commits
// peers to a shared starting hash.
func Block(spec Spec, now time.Time) (core.SignedBlock, error) {
	kp := cryptofacade.KeyPair{Public: spec.PublicKey, Private: spec.PrivateKey}
	payload := core.BlockPayload{Header: core.BlockHeader{Height: 0, Timestamp: now}}
	payload.Header.TransactionsHash = payload.ComputeTransactionsHash()
	headerHash := payload.Header.Hash()
	return core.SignedBlock{
		Payload:    payload,
		Signatures: []core.Signature{{PublicKey: kp.Public, Bytes: kp.Sign(headerHash[:])}},
	}, nil
}
