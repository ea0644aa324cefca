package main

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperledger/iroha-sub010/internal/config"
	"github.com/hyperledger/iroha-sub010/internal/ids"
)

func TestParsePeersAppendsSelfWhenAbsent(t *testing.T) {
	self := ids.PeerId{PublicKey: [32]byte{1}, Address: "self:1337"}

	peers, err := parsePeers(nil, self)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, self, peers[0])
}

func TestParsePeersDoesNotDuplicateSelf(t *testing.T) {
	self := ids.PeerId{PublicKey: [32]byte{1}, Address: "self:1337"}
	configured := []config.PeerConfig{{PublicKeyHex: hex.EncodeToString(self.PublicKey[:]), Address: self.Address}}

	peers, err := parsePeers(configured, self)
	require.NoError(t, err)
	assert.Len(t, peers, 1)
}

func TestParsePeersRejectsBadHex(t *testing.T) {
	self := ids.PeerId{PublicKey: [32]byte{1}}
	_, err := parsePeers([]config.PeerConfig{{PublicKeyHex: "not-hex", Address: "x"}}, self)
	assert.Error(t, err)
}

func TestResolveConfigPathPrefersFlag(t *testing.T) {
	assert.Equal(t, "custom.toml", resolveConfigPath("custom.toml"))
}

func TestResolveConfigPathFallsBackToDefault(t *testing.T) {
	t.Setenv(config.EnvPrefix+"CONFIG", "")
	assert.Equal(t, "irohad.toml", resolveConfigPath(""))
}
