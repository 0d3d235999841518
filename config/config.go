package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"cellroute/pkg/quote"
	"cellroute/pkg/status"
)

// Config holds the application configuration
type Config struct {
	RegistryPath string `mapstructure:"registry_path"`
	HistoryPath  string `mapstructure:"history_path"`
	LogLevel     string `mapstructure:"log_level"`

	// Quoting
	SlippageBips           uint64 `mapstructure:"slippage_bips"`
	Confirmations          int    `mapstructure:"confirmations"`
	RequiredGasBuffer      uint64 `mapstructure:"required_gas_buffer"`
	RecipientGasBuffer     uint64 `mapstructure:"recipient_gas_buffer"`
	RollbackFee            string `mapstructure:"rollback_fee"`
	RollbackGasLimit       uint64 `mapstructure:"rollback_gas_limit"`
	TeleporterFee          string `mapstructure:"teleporter_fee"`
	SecondaryTeleporterFee string `mapstructure:"secondary_teleporter_fee"`

	// Tracking
	MaxPendingBlocks uint64        `mapstructure:"max_pending_blocks"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	TrackerWorkers   int           `mapstructure:"tracker_workers"`
	MetricsAddr      string        `mapstructure:"metrics_addr"`
}

var globalConfig *Config

func setDefaults(v *viper.Viper) {
	v.SetDefault("registry_path", "registry.toml")
	v.SetDefault("history_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("slippage_bips", 100)
	v.SetDefault("confirmations", 1)
	v.SetDefault("required_gas_buffer", 200_000)
	v.SetDefault("recipient_gas_buffer", 100_000)
	v.SetDefault("rollback_fee", "0")
	v.SetDefault("rollback_gas_limit", 500_000)
	v.SetDefault("teleporter_fee", "0")
	v.SetDefault("secondary_teleporter_fee", "0")
	v.SetDefault("max_pending_blocks", 0)
	v.SetDefault("poll_interval", status.DefaultPollInterval)
	v.SetDefault("tracker_workers", 4)
	v.SetDefault("metrics_addr", ":9464")
}

// Load reads configuration from environment variables and config file. An
// empty path searches for .cellroute.yaml in $HOME and the working directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(".cellroute")
		v.SetConfigType("yaml")
		v.AddConfigPath("$HOME")
		v.AddConfigPath(".")
	}

	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("CELLROUTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	globalConfig = cfg
	return cfg, nil
}

// Validate checks ranges and that fee amounts are whole wei values.
func (c *Config) Validate() error {
	if c.SlippageBips > 10_000 {
		return fmt.Errorf("slippage_bips must be at most 10000, got %d", c.SlippageBips)
	}
	if c.Confirmations <= 0 {
		return fmt.Errorf("confirmations must be positive, got %d", c.Confirmations)
	}
	if c.TrackerWorkers <= 0 {
		return fmt.Errorf("tracker_workers must be positive, got %d", c.TrackerWorkers)
	}
	if c.PollInterval < status.MinPollInterval {
		return fmt.Errorf("poll_interval must be at least %s, got %s", status.MinPollInterval, c.PollInterval)
	}
	for key, value := range map[string]string{
		"rollback_fee":             c.RollbackFee,
		"teleporter_fee":           c.TeleporterFee,
		"secondary_teleporter_fee": c.SecondaryTeleporterFee,
	} {
		if _, err := parseWei(value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	return nil
}

// InstructionParams converts the fee and gas settings for instruction
// encoding. Validate must have passed.
func (c *Config) InstructionParams() quote.InstructionParams {
	rollbackFee, _ := parseWei(c.RollbackFee)
	teleporterFee, _ := parseWei(c.TeleporterFee)
	secondaryFee, _ := parseWei(c.SecondaryTeleporterFee)
	return quote.InstructionParams{
		RollbackTeleporterFee:  rollbackFee,
		RollbackGasLimit:       new(big.Int).SetUint64(c.RollbackGasLimit),
		RequiredGasBuffer:      c.RequiredGasBuffer,
		RecipientGasBuffer:     c.RecipientGasBuffer,
		TeleporterFee:          teleporterFee,
		SecondaryTeleporterFee: secondaryFee,
	}
}

// ResolverConfig returns the resolver settings.
func (c *Config) ResolverConfig() quote.ResolverConfig {
	return quote.ResolverConfig{
		SlippageBips:  c.SlippageBips,
		Confirmations: c.Confirmations,
		Parallel:      c.TrackerWorkers,
	}
}

// TrackerConfig returns the tracker settings.
func (c *Config) TrackerConfig() status.Config {
	return status.Config{
		MaxPendingBlocks: c.MaxPendingBlocks,
		Workers:          c.TrackerWorkers,
	}
}

func parseWei(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if d.IsNegative() || !d.Equal(d.Truncate(0)) {
		return nil, fmt.Errorf("amount %q must be a non-negative whole number of wei", s)
	}
	return d.BigInt(), nil
}

// Get returns the global configuration, loading the defaults on first use.
func Get() (*Config, error) {
	if globalConfig == nil {
		return Load("")
	}
	return globalConfig, nil
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
