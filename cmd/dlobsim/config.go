package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the dlobsim demo's top-level configuration, loaded from a YAML
// file with DLOBSIM_* environment variable overrides.
type Config struct {
	FixturePath  string        `mapstructure:"fixture_path"`
	PollInterval time.Duration `mapstructure:"poll_interval"`

	QuerySlot   uint64 `mapstructure:"query_slot"`
	MarketIndex uint16 `mapstructure:"market_index"`
	MarketType  string `mapstructure:"market_type"`
	TickSize    string `mapstructure:"tick_size"`
	OraclePrice string `mapstructure:"oracle_price"`

	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

func loadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("DLOBSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("poll_interval", 5*time.Second)
	v.SetDefault("market_type", "perp")
	v.SetDefault("tick_size", "0")
	v.SetDefault("oracle_price", "0")
	v.SetDefault("logging.level", "info")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.FixturePath == "" {
		return nil, fmt.Errorf("fixture_path is required")
	}

	return &cfg, nil
}
