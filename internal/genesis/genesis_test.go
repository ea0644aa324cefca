package genesis

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

func sampleSpec(t *testing.T) Spec {
	t.Helper()
	spec, err := Generate("test-chain")
	require.NoError(t, err)
	spec.Domains = []string{"wonderland"}
	spec.Roles = []RoleSpec{{Id: "admin", Permissions: []string{"can_unregister_domain"}}}
	spec.Accounts = []AccountSpec{{Name: "alice", Domain: "wonderland", Roles: []string{"admin"}}}
	spec.AssetDefinitions = []AssetDefinitionSpec{{Name: "rose", Domain: "wonderland", Mintable: true}}
	return spec
}

func TestSaveLoadRoundTrips(t *testing.T) {
	spec := sampleSpec(t)
	path := filepath.Join(t.TempDir(), "genesis.json")

	require.NoError(t, Save(path, spec))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, spec.ChainID, loaded.ChainID)
	assert.Equal(t, spec.Domains, loaded.Domains)
	assert.Equal(t, spec.Accounts, loaded.Accounts)
}

func TestApplySeedsWorldState(t *testing.T) {
	spec := sampleSpec(t)
	world := wsv.New()

	require.NoError(t, Apply(spec, world))

	account, err := world.Account(ids.AccountId{Name: "alice", Domain: "wonderland"})
	require.NoError(t, err)
	_, hasRole := account.Roles["admin"]
	assert.True(t, hasRole)
}

func TestBlockProducesValidGenesisBlock(t *testing.T) {
	spec := sampleSpec(t)

	block, err := Block(spec, time.Now())
	require.NoError(t, err)
	require.NoError(t, block.Validate())
	assert.Equal(t, uint64(0), block.Payload.Header.Height)
}
