// Package config loads the node's static configuration from TOML (spec.md
// §6: "TOML and env overrides merged (env wins)") and exposes typed structs
// for every long-lived task internal/node wires up. There is no teacher
// equivalent — cmd/empower1d/main.go hardcodes every value it needs inline
// — so this package is grounded directly on spec.md §6's CLI/config section
// and the component configs named throughout SPEC_FULL.md §4.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix is prepended to every environment variable this package
// recognizes, per spec.md §6: "Environment variable IROHA_CONFIG=path.toml".
const EnvPrefix = "IROHA_"

// Config is the full static configuration surface. Every nested struct
// corresponds to one long-lived task in internal/node's supervision tree.
type Config struct {
	ChainID  string         `toml:"chain_id"`
	Genesis  GenesisConfig  `toml:"genesis"`
	Sumeragi SumeragiConfig `toml:"sumeragi"`
	Queue    QueueConfig    `toml:"queue"`
	Kura     KuraConfig     `toml:"kura"`
	Sync     SyncConfig     `toml:"block_sync"`
	Network  NetworkConfig  `toml:"network"`
	API      APIConfig      `toml:"api"`
	Logger   LoggerConfig   `toml:"logger"`
	Node     NodeConfig     `toml:"node"`
	Ident    IdentConfig    `toml:"ident"`
}

// IdentConfig bounds the length of every user-supplied name identifier
// (domain, account, asset definition, role) accepted by internal/ids,
// spec.md's "default ident_length_limits = (1, 128)".
type IdentConfig struct {
	MinLength int `toml:"min_length"`
	MaxLength int `toml:"max_length"`
}

// NodeConfig names this peer's own signing identity on disk, separate from
// the genesis signer: generated on first run if absent.
type NodeConfig struct {
	KeyPath string `toml:"key_path"`
}

// PeerConfig names one member of the fixed validator set Sumeragi derives
// topology over (spec.md §4.6), by its hex-encoded Ed25519 public key and
// its advertised address.
type PeerConfig struct {
	PublicKeyHex string `toml:"public_key"`
	Address      string `toml:"address"`
}

// GenesisConfig points at the genesis block file every peer must load
// identically (spec.md §4.6: "all peers must load an identical genesis").
type GenesisConfig struct {
	Path string `toml:"path"`
}

// SumeragiConfig mirrors sumeragi.Config's round timers and per-block
// limits (spec.md §4.6).
type SumeragiConfig struct {
	TxReceiptTimeoutMs uint64 `toml:"tx_receipt_timeout_ms"`
	BlockTimeMs        uint64 `toml:"block_time_ms"`
	CommitTimeMs       uint64 `toml:"commit_time_ms"`
	MaxTxsPerBlock     int    `toml:"max_txs_per_block"`
	MaxFaults          int    `toml:"max_faults"`
}

// QueueConfig mirrors the submission queue's admission limits (spec.md
// §4.4).
type QueueConfig struct {
	MaxSize int `toml:"max_size"`
}

// KuraConfig points at the block store directory (spec.md §4.2).
type KuraConfig struct {
	BlockStoreDir string `toml:"block_store_dir"`
}

// SyncConfig mirrors blocksync.Config (spec.md §4.8).
type SyncConfig struct {
	MaxSyncBatchSize    int   `toml:"max_sync_batch_size"`
	BlacklistCooldownMs int64 `toml:"blacklist_cooldown_ms"`
}

// NetworkConfig names this peer's listen address; peer discovery/dialing
// itself is out of scope (spec.md §9 Non-goals: "P2P transport/discovery").
type NetworkConfig struct {
	ListenAddress string       `toml:"listen_address"`
	Peers         []PeerConfig `toml:"peers"`
}

// APIConfig names the HTTP front door's listen address (spec.md §6).
type APIConfig struct {
	ListenAddress string `toml:"listen_address"`
}

// LoggerConfig holds the only field KISO treats as live-updatable
// (spec.md §4.7).
type LoggerConfig struct {
	Level string `toml:"level"`
}

// Default returns the baseline configuration a fresh `generate-config-docs`
// or test fixture starts from.
func Default() Config {
	return Config{
		ChainID: "00000000-0000-0000-0000-000000000000",
		Genesis: GenesisConfig{Path: "genesis.json"},
		Sumeragi: SumeragiConfig{
			TxReceiptTimeoutMs: 2000,
			BlockTimeMs:        2000,
			CommitTimeMs:       4000,
			MaxTxsPerBlock:     500,
			MaxFaults:          1,
		},
		Queue:   QueueConfig{MaxSize: 65536},
		Kura:    KuraConfig{BlockStoreDir: "./storage"},
		Sync:    SyncConfig{MaxSyncBatchSize: 16, BlacklistCooldownMs: int64(5 * time.Minute / time.Millisecond)},
		Network: NetworkConfig{ListenAddress: "0.0.0.0:1337"},
		API:     APIConfig{ListenAddress: "0.0.0.0:8080"},
		Logger:  LoggerConfig{Level: "info"},
		Node:    NodeConfig{KeyPath: "node.key"},
		Ident:   IdentConfig{MinLength: 1, MaxLength: 128},
	}
}

// Load reads path as TOML over the default configuration, then applies any
// recognized IROHA_-prefixed environment variables on top (env wins),
// matching spec.md §6's merge rule.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: applying environment overrides: %w", err)
	}
	return cfg, nil
}

// envOverride pairs an environment variable suffix (appended to EnvPrefix)
// with a setter that parses its string value into cfg.
type envOverride struct {
	suffix string
	set    func(cfg *Config, value string) error
}

var envOverrides = []envOverride{
	{"CHAIN_ID", func(c *Config, v string) error { c.ChainID = v; return nil }},
	{"GENESIS_PATH", func(c *Config, v string) error { c.Genesis.Path = v; return nil }},
	{"KURA_BLOCK_STORE_DIR", func(c *Config, v string) error { c.Kura.BlockStoreDir = v; return nil }},
	{"NETWORK_LISTEN_ADDRESS", func(c *Config, v string) error { c.Network.ListenAddress = v; return nil }},
	{"API_LISTEN_ADDRESS", func(c *Config, v string) error { c.API.ListenAddress = v; return nil }},
	{"LOGGER_LEVEL", func(c *Config, v string) error { c.Logger.Level = v; return nil }},
	{"SUMERAGI_MAX_FAULTS", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Sumeragi.MaxFaults = n
		return nil
	}},
	{"SUMERAGI_MAX_TXS_PER_BLOCK", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Sumeragi.MaxTxsPerBlock = n
		return nil
	}},
	{"QUEUE_MAX_SIZE", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Queue.MaxSize = n
		return nil
	}},
	{"SYNC_MAX_BATCH_SIZE", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Sync.MaxSyncBatchSize = n
		return nil
	}},
	{"IDENT_MIN_LENGTH", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Ident.MinLength = n
		return nil
	}},
	{"IDENT_MAX_LENGTH", func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.Ident.MaxLength = n
		return nil
	}},
}

func applyEnvOverrides(cfg *Config) error {
	for _, o := range envOverrides {
		value, ok := os.LookupEnv(EnvPrefix + o.suffix)
		if !ok {
			continue
		}
		if err := o.set(cfg, value); err != nil {
			return fmt.Errorf("%s%s=%q: %w", EnvPrefix, o.suffix, value, err)
		}
	}
	return nil
}
