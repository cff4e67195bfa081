package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultflow/internal/oracle"
	"vaultflow/internal/orchestrator"
	"vaultflow/internal/vault"
)

func runDeposit(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := newSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.close()

	amount, _ := cmd.Flags().GetString("amount")
	if amount == "" {
		return fmt.Errorf("amount is required")
	}
	if s.cfg.OracleURL == "" {
		return fmt.Errorf("oracle url is required")
	}
	if s.cfg.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}

	network, err := s.registry.Resolve(s.cfg.ChainID)
	if err != nil {
		return err
	}
	client, err := s.pool.ClientFor(ctx, network.ChainID)
	if err != nil {
		return err
	}

	svc := vault.NewService(client, network, s.wallet, s.logger)
	oracleClient := oracle.NewHTTPClient(s.cfg.OracleURL)
	flow := orchestrator.NewDepositOrchestrator(
		svc,
		oracleClient,
		s.history,
		s.wallet.Address(),
		s.logger,
		orchestrator.WithPostCheckDelay(s.cfg.PostCheckDelay),
	)

	s.logger.Info("deposit start",
		zap.Uint64("chain_id", network.ChainID),
		zap.String("amount", amount),
		zap.String("depositor", s.wallet.Address().Hex()),
		zap.String("pg_dsn", redactDSN(s.cfg.PGDSN)),
	)

	position, err := flow.ConfirmDeposit(ctx, amount)
	if err != nil {
		return err
	}

	fmt.Printf("deposit confirmed on chain %d\n", network.ChainID)
	fmt.Printf("deposited value: %s (share price %s)\n",
		orchestrator.FromSmallestUnit(position.DepositedValue), position.SharePrice)
	return nil
}

func runWithdraw(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := newSession(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer s.close()

	amount, _ := cmd.Flags().GetString("amount")
	if amount == "" {
		return fmt.Errorf("amount is required")
	}
	if s.cfg.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}

	network, err := s.registry.Resolve(s.cfg.ChainID)
	if err != nil {
		return err
	}
	client, err := s.pool.ClientFor(ctx, network.ChainID)
	if err != nil {
		return err
	}

	svc := vault.NewService(client, network, s.wallet, s.logger)
	flow := orchestrator.NewWithdrawOrchestrator(svc, s.history, s.wallet.Address(), s.logger)

	s.logger.Info("withdraw start",
		zap.Uint64("chain_id", network.ChainID),
		zap.String("amount", amount),
		zap.String("owner", s.wallet.Address().Hex()),
	)

	position, err := flow.ConfirmWithdraw(ctx, amount)
	if err != nil {
		return err
	}

	fmt.Printf("withdraw confirmed on chain %d\n", network.ChainID)
	fmt.Printf("remaining deposited value: %s (share price %s)\n",
		orchestrator.FromSmallestUnit(position.DepositedValue), position.SharePrice)
	return nil
}
