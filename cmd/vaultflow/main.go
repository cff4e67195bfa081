package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "vaultflow",
		Short:        "Cross-chain yield vault client",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	depositCmd := &cobra.Command{
		Use:   "deposit",
		Short: "Deposit into the vault on one chain",
		RunE:  runDeposit,
	}
	depositCmd.Flags().Uint64("chain-id", 0, "target chain id")
	depositCmd.Flags().String("amount", "", "amount of the underlying asset")
	depositCmd.Flags().String("oracle-url", "", "balance attestation service URL")
	depositCmd.Flags().String("pg-dsn", "", "Postgres DSN for the history log (optional)")
	depositCmd.Flags().String("history-path", "./data/history.jsonl", "history log path")
	depositCmd.Flags().Duration("post-check-delay", 5*time.Second, "delay before the false-negative state re-read")
	depositCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(depositCmd)

	withdrawCmd := &cobra.Command{
		Use:   "withdraw",
		Short: "Withdraw from the vault on one chain",
		RunE:  runWithdraw,
	}
	withdrawCmd.Flags().Uint64("chain-id", 0, "target chain id")
	withdrawCmd.Flags().String("amount", "", "amount of the underlying asset")
	withdrawCmd.Flags().String("pg-dsn", "", "Postgres DSN for the history log (optional)")
	withdrawCmd.Flags().String("history-path", "./data/history.jsonl", "history log path")
	withdrawCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(withdrawCmd)

	allocationCmd := &cobra.Command{
		Use:   "allocation",
		Short: "Show the cross-chain allocation of managed assets",
		RunE:  runAllocation,
	}
	allocationCmd.Flags().Bool("watch", false, "refresh continuously on an interval")
	allocationCmd.Flags().Duration("refresh-interval", time.Minute, "refresh interval for watch mode")
	allocationCmd.Flags().String("redis-addr", "", "Redis address for snapshot caching (optional)")
	allocationCmd.Flags().Int("max-retries", 5, "balance read retry budget")
	allocationCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial balance read retry delay")
	allocationCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(allocationCmd)

	positionCmd := &cobra.Command{
		Use:   "position",
		Short: "Show the reconciled position and yield estimate",
		RunE:  runPosition,
	}
	positionCmd.Flags().Uint64("chain-id", 0, "target chain id")
	positionCmd.Flags().String("address", "", "holder address")
	positionCmd.Flags().String("analytics-url", "", "analytics GraphQL endpoint (optional)")
	positionCmd.Flags().String("analytics-api-key", "", "analytics API key")
	positionCmd.Flags().Int64("apy-bps", 0, "fallback annualized rate in basis points")
	positionCmd.Flags().String("since", "", "position open time (RFC3339) for the yield estimate")
	positionCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(positionCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the local transaction history log",
		RunE:  runHistory,
	}
	historyCmd.Flags().Int("limit", 20, "max entries to show")
	historyCmd.Flags().String("pg-dsn", "", "Postgres DSN for the history log (optional)")
	historyCmd.Flags().String("history-path", "./data/history.jsonl", "history log path")
	historyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(historyCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
