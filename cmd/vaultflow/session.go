package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultflow/internal/chain"
	"vaultflow/internal/config"
	"vaultflow/internal/history"
	"vaultflow/internal/wallet"
)

// session carries the explicit per-connection state the flows share:
// wallet, registry, dialed clients, and the history store. Created when
// a command starts, torn down when it ends; nothing here is ambient.
type session struct {
	cfg      config.Config
	logger   *zap.Logger
	registry *chain.Registry
	pool     *chain.Pool
	wallet   *wallet.PrivateKeyWallet
	history  history.Store

	pgStore *history.PostgresStore
}

// newSession loads config and builds the shared state. The wallet is
// only constructed when the command performs writes.
func newSession(ctx context.Context, cmd *cobra.Command, needsWallet bool) (*session, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	registry, err := chain.NewRegistry(cfg.Networks)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		pool:     chain.NewPool(registry),
	}

	if needsWallet {
		if cfg.PrivateKey == "" {
			return nil, fmt.Errorf("private key is required (set VAULTFLOW_PRIVATE_KEY)")
		}
		w, err := wallet.NewPrivateKeyWallet(cfg.PrivateKey)
		if err != nil {
			return nil, err
		}
		s.wallet = w
	}

	if cfg.PGDSN != "" {
		store, err := history.NewPostgresStore(ctx, cfg.PGDSN, cfg.HistoryHorizon, cfg.HistoryMax)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		s.pgStore = store
		s.history = store
	} else {
		s.history = history.NewJSONLStore(cfg.HistoryPath, cfg.HistoryHorizon, cfg.HistoryMax)
	}

	return s, nil
}

// close tears the session down.
func (s *session) close() {
	if s.pgStore != nil {
		s.pgStore.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.logger != nil {
		s.logger.Sync()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
