package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goran-ethernal/IndexSync/internal/chainstate"
	"github.com/goran-ethernal/IndexSync/internal/common"
	"github.com/goran-ethernal/IndexSync/internal/config"
	"github.com/goran-ethernal/IndexSync/internal/follower"
	"github.com/goran-ethernal/IndexSync/internal/kvdb"
	"github.com/goran-ethernal/IndexSync/internal/logger"
	"github.com/goran-ethernal/IndexSync/internal/metrics"
	"github.com/goran-ethernal/IndexSync/internal/rpc"
	"github.com/goran-ethernal/IndexSync/pkg/api"
	pkgconfig "github.com/goran-ethernal/IndexSync/pkg/config"
	"github.com/goran-ethernal/IndexSync/pkg/index"
	pkgkvdb "github.com/goran-ethernal/IndexSync/pkg/kvdb"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	// Built-in index types register themselves with the factory.
	_ "github.com/goran-ethernal/IndexSync/internal/indexes/filterindex"
	_ "github.com/goran-ethernal/IndexSync/internal/indexes/statsindex"
	_ "github.com/goran-ethernal/IndexSync/internal/indexes/txindex"
)

const (
	version = "1.0.0"
	banner  = `
╔═══════════════════════════════════════════╗
║            IndexSync v%s                ║
║    Derived block index synchronization    ║
╚═══════════════════════════════════════════╝
`

	// shutdownTimeout bounds delivery of the final flush and server shutdown.
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "indexsync",
		Short: "IndexSync - keeps derived block indexes in sync with a chain",
		Long: `IndexSync follows an Ethereum node and keeps a set of derived indexes
(transactions, log filters, chain statistics) consistent with the active chain.
Each index catches up in the background, then follows new blocks and reorgs live,
and persists a checkpoint it resumes from after a restart.`,
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")

	root.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available index types",
			Long:  `List all registered index types that can be used in the configuration file.`,
			Run: func(cmd *cobra.Command, _ []string) {
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Available index types:")
				types := index.ListRegistered()
				if len(types) == 0 {
					fmt.Fprintln(out, "  (no indexes registered)")
					return
				}
				for _, t := range types {
					fmt.Fprintf(out, "  - %s\n", t)
				}
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the JSON schema of the configuration file",
			RunE: func(cmd *cobra.Command, _ []string) error {
				schema, err := config.Schema()
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
				return err
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "indexsync %s\n", version)
			},
		},
	)

	return root
}

// openIndexes opens the store of every enabled index and wraps the index in an engine.
// The returned stores must be closed by the caller, also when an error is returned.
func openIndexes(
	ctx context.Context,
	cfg *pkgconfig.Config,
	chain index.Chain,
	fatal index.FatalHandler,
) (*index.Registry, []pkgkvdb.Store, error) {
	registry := index.NewRegistry(logger.NewComponentLoggerFromConfig(common.ComponentRegistry, cfg.Logging))
	var stores []pkgkvdb.Store

	for i, idxCfg := range cfg.Indexes {
		if idxCfg.Disabled {
			continue
		}
		if idxCfg.Type == "" {
			return nil, stores, fmt.Errorf("index #%d (%s) is missing 'type' field in configuration", i+1, idxCfg.Name)
		}

		log := logger.NewComponentLoggerFromConfig(common.ComponentIndex, cfg.Logging).WithIndex(idxCfg.Name)

		store, err := kvdb.Open(ctx, idxCfg.DB, log)
		if err != nil {
			return nil, stores, fmt.Errorf("failed to open store of index %s: %w", idxCfg.Name, err)
		}
		stores = append(stores, store)

		idx, err := index.Create(idxCfg.Type, idxCfg, index.Deps{Store: store, Chain: chain, Log: log})
		if err != nil {
			return nil, stores, fmt.Errorf("failed to create index %s: %w", idxCfg.Name, err)
		}

		engine := index.NewEngine(idx, store, chain, log, index.Config{
			LogInterval:        cfg.Sync.LogInterval.Duration,
			CheckpointInterval: cfg.Sync.CheckpointInterval.Duration,
			Fatal:              fatal,
		})
		if err := registry.Add(engine); err != nil {
			return nil, stores, err
		}
	}

	return registry, stores, nil
}

func run(configPath string) error {
	fmt.Printf(banner, version)

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Println("\n\nShutting down gracefully...")
			cancel()
		case <-ctx.Done():
		}
	}()

	log := logger.NewComponentLoggerFromConfig(common.ComponentChainState, cfg.Logging)
	logger.SetDefaultLogger(log)
	defer log.Close() //nolint:errcheck

	metrics.BuildInfoSet(version)
	if cfg.Metrics != nil {
		metricsServer := metrics.NewServer(cfg.Metrics, log)
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			if err := metricsServer.Stop(stopCtx); err != nil {
				log.Warnf("Failed to stop metrics server: %v", err)
			}
		}()
	}

	chainDB, err := kvdb.Open(ctx, *cfg.Chain.DB, log)
	if err != nil {
		return fmt.Errorf("failed to open chain state store: %w", err)
	}
	blockStore := chainstate.NewBlockStore(chainDB)
	defer func() {
		if err := blockStore.Close(); err != nil {
			log.Warnf("Failed to close chain state store: %v", err)
		}
	}()

	signals := chainstate.NewSignals(log)
	signals.Start()
	defer signals.Stop()

	pruneMode := cfg.Chain.Prune != nil && cfg.Chain.Prune.Enabled
	manager := chainstate.NewManager(blockStore, signals, pruneMode, log)
	// Indexes resolve their checkpoints against the loaded block tree.
	if err := manager.Load(); err != nil {
		return fmt.Errorf("failed to load chain state: %w", err)
	}

	log.Info("Connecting to Ethereum node...")
	client, err := rpc.NewClient(ctx, cfg.Chain.RPCURL, cfg.Chain.Retry,
		logger.NewComponentLoggerFromConfig(common.ComponentRPC, cfg.Logging))
	if err != nil {
		return fmt.Errorf("failed to create RPC client: %w", err)
	}
	defer client.Close()
	client.WithRateLimit(cfg.Chain.RateLimit, cfg.Chain.RateBurst)
	log.Infof("Connected to Ethereum node: %s", cfg.Chain.RPCURL)

	fatal := func(err error) {
		log.Errorf("Index failed, shutting down: %v", err)
		cancel()
	}

	registry, stores, err := openIndexes(ctx, cfg, manager, fatal)
	defer func() {
		for _, s := range stores {
			if err := s.Close(); err != nil {
				log.Warnf("Failed to close index store: %v", err)
			}
		}
	}()
	if err != nil {
		return err
	}
	if len(registry.List()) == 0 {
		log.Warn("No indexes configured. Exiting.")
		return nil
	}

	log.Infof("Starting %d index(es)...", len(registry.List()))
	if err := registry.Start(); err != nil {
		return fmt.Errorf("failed to start indexes: %w", err)
	}
	defer func() {
		registry.Interrupt()
		registry.Stop()
	}()

	if cfg.Chain.Prune != nil {
		pruner := chainstate.NewPruner(manager, *cfg.Chain.Prune,
			logger.NewComponentLoggerFromConfig(common.ComponentPruner, cfg.Logging))
		pruner.Start(ctx)
		defer pruner.Stop()
	}

	f, err := follower.New(cfg.Chain, client, manager,
		logger.NewComponentLoggerFromConfig(common.ComponentFollower, cfg.Logging), nil)
	if err != nil {
		return fmt.Errorf("failed to create follower: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return f.Run(gctx)
	})

	if cfg.API != nil {
		apiServer := api.NewServer(cfg.API, registry, manager,
			logger.NewComponentLoggerFromConfig(common.ComponentAPI, cfg.Logging))
		g.Go(func() error {
			return apiServer.Start(gctx)
		})
	}

	log.Info("Starting IndexSync...")
	runErr := g.Wait()

	// The follower flushed on exit; let the indexes see it before they stop.
	syncCtx, syncCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer syncCancel()
	if err := manager.SyncWithQueue(syncCtx); err != nil {
		log.Warnf("Failed to deliver final flush: %v", err)
	}

	if runErr != nil {
		return fmt.Errorf("indexsync failed: %w", runErr)
	}

	log.Info("IndexSync stopped successfully")
	return nil
}
