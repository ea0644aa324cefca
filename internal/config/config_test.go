package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "iroha.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadParsesTOMLOverDefaults(t *testing.T) {
	path := writeTOML(t, `
chain_id = "test-chain"

[sumeragi]
max_faults = 2
max_txs_per_block = 10

[kura]
block_store_dir = "/tmp/blocks"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "test-chain", cfg.ChainID)
	assert.Equal(t, 2, cfg.Sumeragi.MaxFaults)
	assert.Equal(t, 10, cfg.Sumeragi.MaxTxsPerBlock)
	assert.Equal(t, "/tmp/blocks", cfg.Kura.BlockStoreDir)
	// fields absent from the file fall back to Default()
	assert.Equal(t, 65536, cfg.Queue.MaxSize)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestEnvOverrideWinsOverTOML(t *testing.T) {
	path := writeTOML(t, `
[logger]
level = "warn"
`)

	t.Setenv("IROHA_LOGGER_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestEnvOverrideRejectsUnparsableInt(t *testing.T) {
	path := writeTOML(t, `chain_id = "x"`)
	t.Setenv("IROHA_SUMERAGI_MAX_FAULTS", "not-a-number")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadErrorsOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
