// Package node is the top-level supervisor: it wires every long-lived
// component (Kura, the World State View, the queue, the executor, KISO,
// telemetry, Sumeragi and the HTTP front door) from a single config.Config
// and keeps them running together under one golang.org/x/sync/errgroup,
// following the teacher's cmd/empower1d/main.go sequential-wiring shape
// (internal/state -> internal/blockchain -> internal/consensus ->
// internal/network, one log line per stage) generalized into a reusable,
// testable constructor instead of inline main() code. Peer-to-peer
// transport and the block-sync trigger protocol are injected, not owned
// here (spec.md's Non-goals: "Peer-to-peer transport (treated as
// authenticated message channels between known peer identities)") —
// internal/network.Hub is the in-process implementation today.
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hyperledger/iroha-sub010/internal/api"
	"github.com/hyperledger/iroha-sub010/internal/blocksync"
	"github.com/hyperledger/iroha-sub010/internal/config"
	"github.com/hyperledger/iroha-sub010/internal/cryptofacade"
	"github.com/hyperledger/iroha-sub010/internal/executor"
	"github.com/hyperledger/iroha-sub010/internal/genesis"
	"github.com/hyperledger/iroha-sub010/internal/ids"
	"github.com/hyperledger/iroha-sub010/internal/kiso"
	"github.com/hyperledger/iroha-sub010/internal/kura"
	"github.com/hyperledger/iroha-sub010/internal/queue"
	"github.com/hyperledger/iroha-sub010/internal/sumeragi"
	"github.com/hyperledger/iroha-sub010/internal/telemetry"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// shutdownGrace bounds how long the HTTP front door is given to drain
// in-flight requests once Run's context is cancelled.
const shutdownGrace = 5 * time.Second

// Node owns every component's lifecycle for one peer process.
type Node struct {
	cfg    config.Config
	logger *logrus.Entry

	store     *kura.Store
	world     *wsv.WSV
	queue     *queue.Queue
	exec      *executor.DefaultExecutor
	metrics   *telemetry.Metrics
	kisoActor *kiso.Actor
	engine    *sumeragi.Engine
	sync      *blocksync.Synchronizer
	committed *committedIndex
	apiServer *http.Server
}

// Build opens the block store, loads and (if necessary) seeds genesis,
// replays any existing chain into a fresh World State View, and wires
// every other component against that state. transport and provider are
// the network boundary Sumeragi and blocksync need; internal/network.Hub
// supplies both in a single process.
func Build(cfg config.Config, keypair cryptofacade.KeyPair, peers []ids.PeerId, transport sumeragi.Transport, provider blocksync.Provider, logger *logrus.Entry) (*Node, error) {
	logger = logger.WithField("component", "node")

	if cfg.Ident.MaxLength > 0 {
		ids.SetLengthLimits(cfg.Ident.MinLength, cfg.Ident.MaxLength)
	}

	store, err := kura.Open(cfg.Kura.BlockStoreDir)
	if err != nil {
		return nil, fmt.Errorf("node: opening block store: %w", err)
	}

	spec, err := genesis.Load(cfg.Genesis.Path)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("node: loading genesis: %w", err)
	}

	world := wsv.New()
	if err := genesis.Apply(spec, world); err != nil {
		store.Close()
		return nil, fmt.Errorf("node: seeding genesis world state: %w", err)
	}

	if store.Height() == -1 {
		logger.Info("block store empty, generating genesis block")
		block, err := genesis.Block(spec, time.Now())
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("node: building genesis block: %w", err)
		}
		if err := store.Append(block); err != nil {
			store.Close()
			return nil, fmt.Errorf("node: appending genesis block: %w", err)
		}
		if err := world.Apply(block); err != nil {
			store.Close()
			return nil, fmt.Errorf("node: applying genesis block: %w", err)
		}
	} else {
		logger.WithField("height", store.Height()).Info("replaying block store")
		for h := uint64(0); h <= uint64(store.Height()); h++ {
			block, err := store.GetByHeight(h)
			if err != nil {
				store.Close()
				return nil, fmt.Errorf("node: reading block %d during replay: %w", h, err)
			}
			if err := world.Apply(block); err != nil {
				store.Close()
				return nil, fmt.Errorf("node: applying block %d during replay: %w", h, err)
			}
		}
	}

	metrics := telemetry.New()
	kisoActor, kisoHandle := kiso.New(kiso.ConfigDTO{LogLevel: cfg.Logger.Level})

	committed := newCommittedIndex(store)
	q := queue.New(cfg.Queue.MaxSize, &authorityAdapter{world: world}, committed)

	exec := executor.NewDefaultExecutor()

	sumeragiCfg := sumeragi.Config{
		TxReceiptTimeoutMs: cfg.Sumeragi.TxReceiptTimeoutMs,
		BlockTimeMs:        cfg.Sumeragi.BlockTimeMs,
		CommitTimeMs:       cfg.Sumeragi.CommitTimeMs,
		MaxTxsPerBlock:     cfg.Sumeragi.MaxTxsPerBlock,
		MaxFaults:          cfg.Sumeragi.MaxFaults,
	}
	engine := sumeragi.NewEngine(sumeragiCfg, keypair, peers, store, world, q, exec, transport, logger)

	syncCfg := blocksync.Config{
		MaxSyncBatchSize:  cfg.Sync.MaxSyncBatchSize,
		MaxFaults:         cfg.Sumeragi.MaxFaults,
		BlacklistCooldown: time.Duration(cfg.Sync.BlacklistCooldownMs) * time.Millisecond,
	}
	synchronizer := blocksync.NewSynchronizer(syncCfg, store, world, provider, logger)

	apiHandler := api.NewServer(q, world, kisoHandle, logger, metrics)
	apiServer := &http.Server{Addr: cfg.API.ListenAddress, Handler: apiHandler}

	return &Node{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		world:     world,
		queue:     q,
		exec:      exec,
		metrics:   metrics,
		kisoActor: kisoActor,
		engine:    engine,
		sync:      synchronizer,
		committed: committed,
		apiServer: apiServer,
	}, nil
}

// World exposes the World State View for callers that need read access
// outside of Run (tests, the CLI's introspection subcommands).
func (n *Node) World() *wsv.WSV { return n.world }

// Store exposes the block store so a caller can register it with a
// transport (internal/network.Hub.RegisterBlockStore) once Build returns.
func (n *Node) Store() *kura.Store { return n.store }

// Synchronizer exposes the catch-up pathway for a peer-height-exchange
// protocol, or a test, to trigger explicitly; Run does not call it on its
// own since advertising/observing peer heights is the P2P transport
// layer's job, out of scope here.
func (n *Node) Synchronizer() *blocksync.Synchronizer { return n.sync }

// Run starts every supervised task and blocks until ctx is cancelled or one
// of them exits unexpectedly, at which point the rest are cancelled too
// (spec.md §5: "a task's unexpected exit cancels the group's context and
// the others shut down cooperatively"). It always closes the block store
// before returning.
func (n *Node) Run(ctx context.Context) error {
	defer n.store.Close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return n.kisoRun(gctx)
	})

	g.Go(func() error {
		n.committed.poll(gctx, committedPollInterval)
		return nil
	})

	g.Go(func() error {
		return n.engine.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return n.apiServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		if err := n.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("node: api server: %w", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (n *Node) kisoRun(ctx context.Context) error {
	n.kisoActor.Run(ctx)
	return nil
}
