package config

import (
	"fmt"
	"strings"

	"github.com/GoPolymarket/tradegate/internal/pkg/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Market   MarketConfig   `mapstructure:"market"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
	Rate     RateConfig     `mapstructure:"rate"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Stream   StreamConfig   `mapstructure:"stream"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	Mode     string `mapstructure:"mode"` // gin mode: debug, release, test
	ReadOnly bool   `mapstructure:"read_only"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	AdminKey string `mapstructure:"admin_key"`
	// Account-signed requests older than this are rejected.
	MaxAgeSeconds int `mapstructure:"max_age_seconds"`
}

type ChainConfig struct {
	ChainID int64  `mapstructure:"chain_id"`
	Market  string `mapstructure:"market"`
	// RPCURL enables chain-backed trait and royalty oracles.
	RPCURL          string `mapstructure:"rpc_url"`
	OracleTimeoutMs int    `mapstructure:"oracle_timeout_ms"`
	OracleRetries   int    `mapstructure:"oracle_retries"`
}

type MarketConfig struct {
	Currency          string   `mapstructure:"currency"`
	Decimals          int32    `mapstructure:"decimals"`
	Collections       []string `mapstructure:"collections"`
	Treasury          string   `mapstructure:"treasury"`
	RoyaltyCapMicros  uint32   `mapstructure:"royalty_cap_micros"`
	RoyaltyMicros     uint32   `mapstructure:"royalty_micros"`
	TraitOracle       string   `mapstructure:"trait_oracle"`
	SignedTraitOracle string   `mapstructure:"signed_trait_oracle"`
	OracleSigner      string   `mapstructure:"oracle_signer"`
}

type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	DSN             string `mapstructure:"dsn"`
	TradeBufferSize int    `mapstructure:"trade_buffer_size"`
}

type RateConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type StreamConfig struct {
	Enabled   bool `mapstructure:"enabled"`
	QueueSize int  `mapstructure:"queue_size"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// e.g. TRADEGATE_AUTH_ADMIN_KEY
	v.SetEnvPrefix("tradegate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			logger.Info("no config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("auth.admin_key", "")
	v.SetDefault("auth.max_age_seconds", 300)
	v.SetDefault("chain.chain_id", 1337)
	v.SetDefault("chain.market", "0x000000000000000000000000000000000000e0e0")
	v.SetDefault("chain.rpc_url", "")
	v.SetDefault("chain.oracle_timeout_ms", 5000)
	v.SetDefault("chain.oracle_retries", 1)
	v.SetDefault("market.currency", "0x00000000000000000000000000000000000000e7")
	v.SetDefault("market.decimals", 18)
	v.SetDefault("market.collections", []string{"0x0000000000000000000000000000000000000721"})
	v.SetDefault("market.royalty_cap_micros", 50_000)
	v.SetDefault("market.royalty_micros", 0)
	v.SetDefault("market.trait_oracle", "0x00000000000000000000000000000000000007a1")
	v.SetDefault("market.signed_trait_oracle", "")
	v.SetDefault("redis.key_prefix", "tradegate")
	v.SetDefault("database.trade_buffer_size", 1000)
	v.SetDefault("rate.rps", 20)
	v.SetDefault("rate.burst", 40)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("stream.enabled", true)
	v.SetDefault("stream.queue_size", 1024)
}

// Validate checks every configured address.
func (c *Config) Validate() error {
	check := func(name, value string, required bool) error {
		if value == "" {
			if required {
				return fmt.Errorf("config: %s is required", name)
			}
			return nil
		}
		if !common.IsHexAddress(value) {
			return fmt.Errorf("config: %s %q is not an address", name, value)
		}
		return nil
	}
	if err := check("chain.market", c.Chain.Market, true); err != nil {
		return err
	}
	if err := check("market.currency", c.Market.Currency, true); err != nil {
		return err
	}
	for _, col := range c.Market.Collections {
		if err := check("market.collections", col, true); err != nil {
			return err
		}
	}
	for name, value := range map[string]string{
		"market.treasury":            c.Market.Treasury,
		"market.trait_oracle":        c.Market.TraitOracle,
		"market.signed_trait_oracle": c.Market.SignedTraitOracle,
		"market.oracle_signer":       c.Market.OracleSigner,
	} {
		if err := check(name, value, false); err != nil {
			return err
		}
	}
	if c.Chain.ChainID <= 0 {
		return fmt.Errorf("config: chain.chain_id must be positive")
	}
	return nil
}

// Address parses a validated address field; empty yields the zero address.
func Address(value string) common.Address {
	if value == "" {
		return common.Address{}
	}
	return common.HexToAddress(value)
}
