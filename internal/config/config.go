package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"vaultflow/internal/model"
)

// Config holds configuration values loaded from flags, env, or config
// file.
type Config struct {
	Networks []model.Network

	ChainID    uint64
	PrivateKey string

	OracleURL       string
	AnalyticsURL    string
	AnalyticsAPIKey string

	HistoryPath    string
	PGDSN          string
	HistoryHorizon time.Duration
	HistoryMax     int

	RedisAddr       string
	RefreshInterval time.Duration
	PostCheckDelay  time.Duration

	MaxRetries   int
	RetryBackoff time.Duration

	APYBasisPoints int64
	LogLevel       string
}

// Load merges config file, environment variables, and flags into Config.
// Networks come from the config file only; flags and env cover scalar
// settings. The private key is expected through VAULTFLOW_PRIVATE_KEY.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VAULTFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("history-path", "./data/history.jsonl")
	v.SetDefault("history-horizon", 30*24*time.Hour)
	v.SetDefault("history-max", 200)
	v.SetDefault("refresh-interval", time.Minute)
	v.SetDefault("post-check-delay", 5*time.Second)
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("apy-bps", 0)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var networks []model.Network
	if err := v.UnmarshalKey("networks", &networks); err != nil {
		return Config{}, fmt.Errorf("parse networks: %w", err)
	}

	cfg := Config{
		Networks:        networks,
		ChainID:         v.GetUint64("chain-id"),
		PrivateKey:      v.GetString("private-key"),
		OracleURL:       v.GetString("oracle-url"),
		AnalyticsURL:    v.GetString("analytics-url"),
		AnalyticsAPIKey: v.GetString("analytics-api-key"),
		HistoryPath:     v.GetString("history-path"),
		PGDSN:           v.GetString("pg-dsn"),
		HistoryHorizon:  v.GetDuration("history-horizon"),
		HistoryMax:      v.GetInt("history-max"),
		RedisAddr:       v.GetString("redis-addr"),
		RefreshInterval: v.GetDuration("refresh-interval"),
		PostCheckDelay:  v.GetDuration("post-check-delay"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		APYBasisPoints:  v.GetInt64("apy-bps"),
		LogLevel:        v.GetString("log-level"),
	}

	if len(cfg.Networks) == 0 {
		return Config{}, fmt.Errorf("at least one network must be configured")
	}

	return cfg, nil
}
