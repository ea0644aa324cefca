package node

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/config"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/genesis"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/network"
	"github.com/hyperledger/iroha-sub010/internal/sumeragi"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Kura.BlockStoreDir = filepath.Join(t.TempDir(), "blocks")
	cfg.Genesis.Path = filepath.Join(t.TempDir(), "genesis.json")
	cfg.API.ListenAddress = "127.0.0.1:0"
	cfg.Sumeragi.MaxFaults = 0
	cfg.Sumeragi.TxReceiptTimeoutMs = 50
	cfg.Sumeragi.CommitTimeMs = 50

	spec, err := genesis.Generate(cfg.ChainID)
	require.NoError(t, err)
	spec.Domains = []string{"wonderland"}
	spec.Roles = []genesis.RoleSpec{{Id: "admin", Permissions: []string{"can_unregister_domain"}}}
	spec.Accounts = []genesis.AccountSpec{{Name: "alice", Domain: "wonderland", Roles: []string{"admin"}}}
	spec.AssetDefinitions = []genesis.AssetDefinitionSpec{{Name: "rose", Domain: "wonderland", Mintable: true}}
	require.NoError(t, genesis.Save(cfg.Genesis.Path, spec))

	return cfg
}

func buildTestNode(t *testing.T, cfg config.Config) *Node {
	t.Helper()
	keypair, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)

	var pub [32]byte
	copy(pub[:], keypair.Public)
	self := ids.PeerId{PublicKey: pub, Address: "127.0.0.1:0"}
	peers := []ids.PeerId{self}

	logger := logrus.NewEntry(logrus.New())
	hub := network.NewHub()
	transport := hub.Join(self, peers, logger)

	n, err := Build(cfg, keypair, peers, transport, hub, logger)
	require.NoError(t, err)
	hub.RegisterBlockStore(self, n.Store())
	return n
}

func TestBuildSeedsGenesisOnEmptyStore(t *testing.T) {
	cfg := testConfig(t)
	n := buildTestNode(t, cfg)

	account, err := n.World().Account(ids.AccountId{Name: "alice", Domain: "wonderland"})
	require.NoError(t, err)
	_, hasRole := account.Roles["admin"]
	assert.True(t, hasRole)
	assert.EqualValues(t, 0, n.World().Height())
	assert.EqualValues(t, 0, n.Store().Height())
}

func TestBuildReplaysExistingStore(t *testing.T) {
	cfg := testConfig(t)
	first := buildTestNode(t, cfg)
	firstHeight := first.Store().Height()
	require.NoError(t, first.Store().Close())

	keypair, err := cryptofacade.GenerateKeyPair()
	require.NoError(t, err)
	var pub [32]byte
	copy(pub[:], keypair.Public)
	self := ids.PeerId{PublicKey: pub, Address: "127.0.0.1:0"}
	peers := []ids.PeerId{self}
	logger := logrus.NewEntry(logrus.New())
	hub := network.NewHub()
	transport := hub.Join(self, peers, logger)

	second, err := Build(cfg, keypair, peers, transport, hub, logger)
	require.NoError(t, err)
	defer second.Store().Close()

	assert.Equal(t, firstHeight, second.Store().Height())
	account, err := second.World().Account(ids.AccountId{Name: "alice", Domain: "wonderland"})
	require.NoError(t, err)
	_, hasRole := account.Roles["admin"]
	assert.True(t, hasRole)
}

func TestRunShutsDownCleanlyOnContextCancel(t *testing.T) {
	cfg := testConfig(t)
	n := buildTestNode(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not shut down in time")
	}
}

func TestExitCodeMapsFatalHaltToThree(t *testing.T) {
	assert.Equal(t, 3, ExitCode(sumeragi.FatalHaltError{Reason: "conflict"}))
}

func TestExitCodeMapsCleanShutdownToZero(t *testing.T) {
	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 0, ExitCode(context.Canceled))
}

func TestExitCodeMapsOtherErrorsToOne(t *testing.T) {
	assert.Equal(t, 1, ExitCode(assertError{}))
}

type assertError struct{}

func (assertError) Error() string { return "boom" }
