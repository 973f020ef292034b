package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cuemby/beacon/internal/config"
	"github.com/cuemby/beacon/internal/httpapi"
	"github.com/cuemby/beacon/internal/logging"
	"github.com/cuemby/beacon/internal/snapshotstore"
	"github.com/cuemby/beacon/pkg/engine"
	"github.com/cuemby/beacon/pkg/nodeapi"
	"github.com/cuemby/beacon/pkg/notifier"
	"github.com/cuemby/beacon/pkg/orchestrator"
	"github.com/cuemby/beacon/pkg/probe"
	"github.com/cuemby/beacon/pkg/sshrunner"
	"github.com/cuemby/beacon/pkg/stalltracker"

	beaconmonitor "github.com/cuemby/beacon/pkg/monitor"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

var (
	configPath string
	daemon     bool
	once       bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Cluster health monitor and automated recovery controller",
	Long: `beacon watches a fixed-size cluster of blockchain-like nodes,
classifies forks, stalls, and unreachable nodes, and drives a remote
restart sequence when a condition warrants one.`,
	Version: Version,
	RunE:    run,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("beacon version %s\nCommit: %s\nBuilt: %s\n", Version, Commit, BuildTime))
	rootCmd.Flags().StringVar(&configPath, "config", "/etc/beacon/beacon.yaml", "path to the cluster config file")
	rootCmd.Flags().BoolVar(&daemon, "daemon", false, "run continuously, ticking on the configured interval")
	rootCmd.Flags().BoolVar(&once, "once", false, "run a single check and exit (default)")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		logging.Init(logging.Config{Level: logging.InfoLevel, JSONOutput: false})
		logging.Logger.Error().Err(err).Msg("fatal: could not load configuration")
		os.Exit(1)
	}

	logging.Init(logging.Config{Level: logging.InfoLevel, JSONOutput: true})
	logging.Logger.Info().Str("version", Version).Msg("starting beacon")

	nodes := cfg.ToNodes()
	client := nodeapi.New(probe.NewProber())

	eng := &engine.Engine{
		Nodes:          nodes,
		Client:         client,
		Tracker:        stalltracker.New(),
		StallThreshold: time.Duration(cfg.SnapshotStallMinutes) * time.Minute,
		NewID:          uuid.NewString,
	}

	var runner orchestrator.CommandRunner
	sshImpl := sshrunner.New(cfg.SSHKeyPath, cfg.SSHUser)
	if cfg.DryRun {
		runner = &sshrunner.DryRunRunner{Inner: sshImpl}
	} else {
		runner = sshImpl
	}

	orch := orchestrator.New(nodes, runner, orchestrator.Config{
		CooldownMinutes:    cfg.RestartCooldownMinutes,
		MaxRestartsPerHour: cfg.MaxRestartsPerHour,
	}, uuid.NewString)

	var notif notifier.Notifier
	if cfg.WebhookURL != "" {
		notif = notifier.New(cfg.WebhookURL)
	}

	var hg *engine.HypergraphDetector
	if cfg.Hypergraph.Enabled {
		hg = engine.NewHypergraphDetector(client, engine.HypergraphConfig{
			Enabled:                 cfg.Hypergraph.Enabled,
			L0URLs:                  cfg.Hypergraph.L0URLs,
			CheckIntervalMultiplier: cfg.Hypergraph.CheckIntervalMultiplier,
		}, len(nodes), uuid.NewString)
	}

	mon := beaconmonitor.New(eng, orch, notif, beaconmonitor.Config{
		Interval:             time.Duration(cfg.HealthCheckIntervalSeconds) * time.Second,
		HypergraphMultiplier: cfg.Hypergraph.CheckIntervalMultiplier,
	})

	if store, err := snapshotstore.Open(cfg.DataDir); err != nil {
		logging.Logger.Warn().Err(err).Msg("could not open snapshot store, continuing without a warm baseline")
	} else {
		mon.Snapshots = store
		defer store.Close()
	}
	mon.Hypergraph = hg

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.New(mon, 3*time.Duration(cfg.HealthCheckIntervalSeconds)*time.Second).Handler(),
	}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Error().Err(err).Msg("httpapi server stopped unexpectedly")
		}
	}()

	runDaemon := daemon && !once
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() { errCh <- mon.Run(ctx, runDaemon) }()

	select {
	case <-sigCh:
		logging.Logger.Info().Msg("shutdown signal received")
		mon.Stop()
		cancel()
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			logging.Logger.Error().Err(err).Msg("monitor loop exited with error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	return nil
}
