// Command openmatchd runs a single OpenMatch matching node: the Security
// Envelope, MatchCore, and Finality Plane wired together behind
// internal/core.Core and driven epoch-by-epoch by internal/epoch.Controller.
package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/openibank/openmatch/internal/api"
	"github.com/openibank/openmatch/internal/config"
	"github.com/openibank/openmatch/internal/core"
	"github.com/openibank/openmatch/internal/epoch"
	"github.com/openibank/openmatch/internal/persistence"
	"github.com/openibank/openmatch/internal/security"
	"github.com/openibank/openmatch/pkg/helpers"
	"github.com/openibank/openmatch/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "openmatchd",
	Short:   "OpenMatch - deterministic epoch-based batch-auction matching engine",
	Version: version,
}

func main() {
	rootCmd.AddCommand(runCmd, keygenCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	dataDir      string
	apiAddr      string
	epochLength  time.Duration
	testnet      bool
	logLevel     string
	issuerKeyHex string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the matching node",
	RunE:  runNode,
}

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a fresh ed25519 reservation-issuer key and print its seed and public node id",
	RunE:  runKeygen,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and exit",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("openmatchd %s (commit %s)\n", version, commit)
	},
}

func init() {
	runCmd.Flags().StringVar(&dataDir, "data-dir", "~/.openmatch", "data directory")
	runCmd.Flags().StringVar(&apiAddr, "api", "127.0.0.1:8090", "websocket notification API listen address")
	runCmd.Flags().DurationVar(&epochLength, "epoch-length", 1*time.Second, "duration of one COLLECT window")
	runCmd.Flags().BoolVar(&testnet, "testnet", false, "run with the testnet network type")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&issuerKeyHex, "issuer-seed", "", "hex-encoded ed25519 seed for this node's own reservation issuer key (required)")
}

func runNode(cmd *cobra.Command, args []string) error {
	log := logging.New(&logging.Config{Level: logLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if issuerKeyHex == "" {
		return fmt.Errorf("openmatchd: --issuer-seed is required (generate one with 'openmatchd keygen')")
	}
	seed, err := helpers.HexToBytes(issuerKeyHex)
	if err != nil {
		return fmt.Errorf("openmatchd: decoding --issuer-seed: %w", err)
	}
	issuer, err := security.IssuerKeyFromSeed(seed)
	if err != nil {
		return fmt.Errorf("openmatchd: loading issuer key: %w", err)
	}

	network := config.Mainnet
	if testnet {
		network = config.Testnet
	}
	cfg := config.NewCoreConfig(network)

	c, err := core.New(issuer.Public, cfg, issuer.Public)
	if err != nil {
		return fmt.Errorf("openmatchd: constructing core: %w", err)
	}

	store, err := persistence.New(&persistence.Config{DataDir: expandPath(dataDir)})
	if err != nil {
		return fmt.Errorf("openmatchd: opening store: %w", err)
	}
	defer store.Close()
	c.Bus.Subscribe(persistence.NewEventSink(store))

	hub := api.NewHub()
	go hub.Run()
	c.Bus.Subscribe(hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	httpServer := &http.Server{Addr: apiAddr, Handler: mux}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("api server stopped", "err", err)
		}
	}()
	log.Info("notification API listening", "addr", apiAddr)

	ctrl := epoch.New(c, epochLength)
	ctx, cancel := context.WithCancel(context.Background())

	log.Info("starting node", "node", issuer.Public.String(), "network", network, "epoch_length", epochLength)

	done := make(chan error, 1)
	go func() { done <- ctrl.Run(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down")
	case err := <-done:
		if err != nil && err != context.Canceled {
			log.Error("epoch controller stopped unexpectedly", "err", err)
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping api server", "err", err)
	}
	log.Info("goodbye")
	return nil
}

func runKeygen(cmd *cobra.Command, args []string) error {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("openmatchd: generating key: %w", err)
	}
	issuer, err := security.IssuerKeyFromSeed(priv.Seed())
	if err != nil {
		return err
	}
	fmt.Printf("seed:     %s\n", helpers.BytesToHex(priv.Seed()))
	fmt.Printf("node_id:  %s\n", issuer.Public.String())
	return nil
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
