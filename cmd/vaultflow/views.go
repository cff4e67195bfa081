package main

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"vaultflow/internal/allocation"
	"vaultflow/internal/analytics"
	"vaultflow/internal/orchestrator"
	"vaultflow/internal/vault"
)

func runAllocation(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := newSession(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer s.close()

	reader := allocation.NewChainBalanceReader(s.pool, s.cfg.MaxRetries, s.cfg.RetryBackoff)
	aggregator := allocation.NewAggregator(reader, s.registry.Networks(), s.logger)

	watch, _ := cmd.Flags().GetBool("watch")
	if watch {
		var cache *allocation.RedisCache
		if s.cfg.RedisAddr != "" {
			cache, err = allocation.NewRedisCache(ctx, s.cfg.RedisAddr, 2*s.cfg.RefreshInterval)
			if err != nil {
				return err
			}
			defer cache.Close()
		}
		runner := allocation.NewRunner(aggregator, cache, s.cfg.RefreshInterval, s.logger)
		s.logger.Info("allocation watch start",
			zap.Duration("interval", s.cfg.RefreshInterval),
			zap.Int("networks", len(s.registry.Networks())),
		)
		return runner.Run(ctx)
	}

	entries, total, err := aggregator.Aggregate(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("total managed assets: %s\n", orchestrator.FromSmallestUnit(total))
	for _, entry := range entries {
		fmt.Printf("%-12s chain %-8d %3d%%  %s\n",
			entry.Name, entry.ChainID, entry.Percentage, orchestrator.FromSmallestUnit(entry.RawBalance))
	}
	return nil
}

func runPosition(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := newSession(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer s.close()

	if s.cfg.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}

	addressInput, _ := cmd.Flags().GetString("address")
	if addressInput == "" {
		return fmt.Errorf("holder address is required")
	}
	if !common.IsHexAddress(addressInput) {
		return fmt.Errorf("invalid address: %s", addressInput)
	}
	holder := common.HexToAddress(addressInput)

	network, err := s.registry.Resolve(s.cfg.ChainID)
	if err != nil {
		return err
	}
	client, err := s.pool.ClientFor(ctx, network.ChainID)
	if err != nil {
		return err
	}

	position, err := vault.NewReader(client, network).Position(ctx, holder)
	if err != nil {
		return err
	}

	var reconciler orchestrator.Reconciler
	reconciled := reconciler.Reconcile(position)

	fmt.Printf("deposited value: %s (share price %s)\n",
		orchestrator.FromSmallestUnit(reconciled.DepositedValue), reconciled.SharePrice)

	apyBps := s.cfg.APYBasisPoints
	if s.cfg.AnalyticsURL != "" {
		feed := analytics.NewClient(s.cfg.AnalyticsURL, s.cfg.AnalyticsAPIKey)
		if published, err := feed.LatestAPYBasisPoints(ctx); err == nil {
			apyBps = published
		} else {
			s.logger.Warn("analytics feed unavailable", zap.Error(err))
		}
	}

	sinceInput, _ := cmd.Flags().GetString("since")
	if apyBps > 0 && sinceInput != "" {
		since, err := time.Parse(time.RFC3339, sinceInput)
		if err != nil {
			return fmt.Errorf("parse since: %w", err)
		}
		yield := reconciler.EstimateYield(reconciled.DepositedValue, apyBps, time.Since(since))
		fmt.Printf("estimated yield: %s (%.2f%% APY over %s)\n",
			orchestrator.FromSmallestUnit(yield), float64(apyBps)/100, time.Since(since).Round(time.Hour))
	}
	return nil
}

func runHistory(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext()
	defer stop()

	s, err := newSession(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer s.close()

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := s.history.List(limit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("no transactions recorded")
		return nil
	}
	for _, record := range records {
		fmt.Printf("%s  chain %-8d %-22s %-18s %s\n",
			record.Timestamp.Format(time.RFC3339), record.ChainID, record.Kind, record.Status, record.TxHash)
	}
	return nil
}
