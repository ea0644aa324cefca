package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hyperledger/iroha-sub010/internal/config"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/network"
	"github.com/hyperledger/iroha-sub010/internal/node"
)

func newRunCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the node and block until shutdown",
		RunE: func(cmd *cobra.Command, args []string) error {
			os.Exit(runNode(resolveConfigPath(*configPath)))
			return nil
		},
	}
}

// runNode loads config, wires a Node via internal/node.Build, and drives it
// until os.Interrupt/SIGTERM or a fatal error, returning the process exit
// code spec.md §6 specifies.
func runNode(configPath string) int {
	logger := logrus.New()
	entry := logrus.NewEntry(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		entry.WithError(err).Error("loading configuration")
		return 1
	}
	if level, parseErr := logrus.ParseLevel(cfg.Logger.Level); parseErr == nil {
		logger.SetLevel(level)
	}

	keypair, err := node.LoadOrCreateKeyPair(cfg.Node.KeyPath)
	if err != nil {
		entry.WithError(err).Error("loading node identity")
		return 1
	}

	var selfPubKey [32]byte
	copy(selfPubKey[:], keypair.Public)
	self := ids.PeerId{PublicKey: selfPubKey, Address: cfg.Network.ListenAddress}

	peers, err := parsePeers(cfg.Network.Peers, self)
	if err != nil {
		entry.WithError(err).Error("parsing network.peers")
		return 1
	}

	hub := network.NewHub()
	transport := hub.Join(self, peers, entry)

	n, err := node.Build(cfg, keypair, peers, transport, hub, entry)
	if err != nil {
		entry.WithError(err).Error("building node")
		return node.ExitCode(err)
	}
	hub.RegisterBlockStore(self, n.Store())

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		entry.WithField("signal", sig.String()).Info("caught signal, shutting down")
		cancel()
	}()

	runErr := n.Run(ctx)
	cancel()
	if runErr != nil {
		entry.WithError(runErr).Error("node exited")
	} else {
		entry.Info("node shut down gracefully")
	}
	return node.ExitCode(runErr)
}

// parsePeers turns the configured peer list into ids.PeerId values, adding
// self if it is not already present — a config with no peers at all is a
// valid single-validator deployment.
func parsePeers(configured []config.PeerConfig, self ids.PeerId) ([]ids.PeerId, error) {
	peers := make([]ids.PeerId, 0, len(configured)+1)
	sawSelf := false
	for _, p := range configured {
		raw, err := hex.DecodeString(p.PublicKeyHex)
		if err != nil {
			return nil, fmt.Errorf("peer %s: decoding public_key: %w", p.Address, err)
		}
		if len(raw) != 32 {
			return nil, fmt.Errorf("peer %s: public_key must be 32 bytes, got %d", p.Address, len(raw))
		}
		var pub [32]byte
		copy(pub[:], raw)
		peer := ids.PeerId{PublicKey: pub, Address: p.Address}
		if peer.PublicKey == self.PublicKey {
			sawSelf = true
		}
		peers = append(peers, peer)
	}
	if !sawSelf {
		peers = append(peers, self)
	}
	return peers, nil
}
