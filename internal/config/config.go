// Package config loads process configuration from environment variables
// and an optional YAML file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CabinetConfig is one seller account entry.
type CabinetConfig struct {
	Name   string `mapstructure:"name"`
	ID     string `mapstructure:"id"`
	APIKey string `mapstructure:"api_key"`
}

// Config holds all process settings.
type Config struct {
	LogLevel  string `mapstructure:"log_level"`
	LogPretty bool   `mapstructure:"log_pretty"`
	LogsDir   string `mapstructure:"logs_dir"`

	// RequestDelay is the fixed pause after every API call.
	RequestDelay time.Duration `mapstructure:"request_delay"`

	// ArticlesFile points at the identifier spreadsheet. Empty means
	// discover it in conventional locations.
	ArticlesFile string `mapstructure:"articles_file"`

	// OutputDir is where the export spreadsheet is written.
	OutputDir string `mapstructure:"output_dir"`

	// RedisAddr enables the shared rate-window store when set.
	RedisAddr string `mapstructure:"redis_addr"`

	// MetricsAddr serves Prometheus metrics during the run when set.
	MetricsAddr string `mapstructure:"metrics_addr"`

	Cabinets []CabinetConfig `mapstructure:"cabinets"`
}

// Load reads configuration. path may be empty; environment variables
// (prefix WB_) override file values either way.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("logs_dir", "logs")
	v.SetDefault("request_delay", 500*time.Millisecond)
	v.SetDefault("output_dir", "output")

	v.SetEnvPrefix("WB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Unmarshal only sees keys viper already knows about. Keys without a
	// default need an explicit binding or their environment values are
	// silently dropped.
	for _, key := range []string{"articles_file", "redis_addr", "metrics_addr"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env for %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Single-cabinet setups can skip the file entirely and configure
	// through WB_CABINET_NAME / WB_CABINET_ID / WB_API_KEY.
	if len(cfg.Cabinets) == 0 {
		name := v.GetString("cabinet_name")
		if name != "" {
			cfg.Cabinets = append(cfg.Cabinets, CabinetConfig{
				Name:   name,
				ID:     v.GetString("cabinet_id"),
				APIKey: v.GetString("api_key"),
			})
		}
	}

	if len(cfg.Cabinets) == 0 {
		return nil, fmt.Errorf("no cabinets configured")
	}

	return &cfg, nil
}
