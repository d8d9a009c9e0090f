// Command synknode runs a single SynkNode: the TCP text protocol and the
// HTTP API over a snapshot-persisted key-value store.
//
// Configuration comes from SYNK_* environment variables and an optional
// YAML file named by SYNK_CONFIG.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/synknodes/synknode/internal/config"
	"github.com/synknodes/synknode/internal/logging"
	"github.com/synknodes/synknode/internal/node"
	"github.com/synknodes/synknode/pkg/engine"
)

func main() {
	if err := run(); err != nil {
		slog.Error("SynkNode exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.NodeID); err != nil {
		return err
	}

	opts := engine.DefaultOptions(cfg.DataDir)
	opts.Fsync = cfg.SnapshotFsync
	eng, err := engine.Open(opts)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting SynkNode", "tcp", cfg.TCPAddr(), "http", cfg.HTTPAddr(), "data_dir", cfg.DataDir)
	return node.New(cfg, eng).Run(ctx)
}
