// Command ledgerd runs a single node of the permissioned ledger chain: it
// wires together the chain, mempool, transport, and RPC dispatch loop, and
// optionally runs the validator (block producer) loop when started with a
// private key.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/empower1/ledgerchain/internal/blockchain"
	"github.com/empower1/ledgerchain/internal/config"
	"github.com/empower1/ledgerchain/internal/core"
	"github.com/empower1/ledgerchain/internal/cryptoutil"
	"github.com/empower1/ledgerchain/internal/mempool"
	"github.com/empower1/ledgerchain/internal/metrics"
	"github.com/empower1/ledgerchain/internal/server"
	"github.com/empower1/ledgerchain/internal/transport"
)

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return cfg.Build()
}

func loadPrivateKey(hexKey string) (*cryptoutil.PrivateKey, error) {
	if hexKey == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding private key: %w", err)
	}
	priv, err := cryptoutil.PrivateKeyFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return &priv, nil
}

func run(cfg *config.NodeConfig) error {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()
	log := logger.Sugar()

	priv, err := loadPrivateKey(cfg.PrivateKeyHex)
	if err != nil {
		return err
	}

	genesis := core.Genesis(0)
	chain := blockchain.New(cfg.ID, genesis)
	mp := mempool.New(cfg.MempoolCapacity)

	self := transport.NewLocalTransport(cfg.ListenAddr)
	for _, peerAddr := range cfg.PeerAddrs {
		self.Connect(transport.NewLocalTransport(peerAddr))
	}

	metricsHandle, registry := metrics.New()

	srv := server.New(server.Config{
		ID:         cfg.ID,
		Self:       self,
		Transports: []transport.Transport{self},
		PrivateKey: priv,
		BlockTime:  cfg.BlockTime,
		Logger:     log,
		Metrics:    metricsHandle,
	}, chain, mp)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Infow("caught signal, shutting down", "signal", sig)
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	if cfg.MetricsAddr != "" {
		g.Go(func() error { return metrics.Serve(ctx, cfg.MetricsAddr, registry) })
	}
	g.Go(func() error { return srv.Start(ctx) })

	log.Infow("node started",
		"id", cfg.ID,
		"listen_addr", cfg.ListenAddr,
		"is_leader", cfg.IsLeader(),
		"block_time", cfg.BlockTime,
	)

	return g.Wait()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledgerd",
		Short: "Run a ledgerchain node",
	}
	cfg := config.BindFlags(cmd.Flags())
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		config.ApplyEnv(cfg)
		return run(cfg)
	}
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
