// Package config loads the platform configuration from YAML or JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete platform configuration.
type Config struct {
	Server  ServerConfig  `json:"server" yaml:"server"`
	Storage StorageConfig `json:"storage" yaml:"storage"`
	Trading TradingConfig `json:"trading" yaml:"trading"`
	Quotes  QuotesConfig  `json:"quotes" yaml:"quotes"`
	Log     LogConfig     `json:"log" yaml:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

// StorageConfig selects the storage backend.
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "sqlite" or "memory"
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
}

// TradingConfig holds the settlement engine parameters.
type TradingConfig struct {
	FeePerLot    float64       `json:"fee_per_lot" yaml:"fee_per_lot"`
	StopOutLevel float64       `json:"stop_out_level" yaml:"stop_out_level"` // margin level percent
	QuoteTimeout time.Duration `json:"quote_timeout" yaml:"quote_timeout"`
	MarkInterval time.Duration `json:"mark_interval" yaml:"mark_interval"`
}

// QuotesConfig configures the simulated quote feed.
type QuotesConfig struct {
	Interval time.Duration `json:"interval" yaml:"interval"`
	Seed     int64         `json:"seed" yaml:"seed"` // 0 means time-based
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level string `json:"level" yaml:"level"` // debug, info, warn, error
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Server:  ServerConfig{Addr: ":8080"},
		Storage: StorageConfig{Driver: "sqlite", Path: "./propdesk.db"},
		Trading: TradingConfig{
			FeePerLot:    7,
			StopOutLevel: 50,
			QuoteTimeout: 2 * time.Second,
			MarkInterval: 2 * time.Second,
		},
		Quotes: QuotesConfig{Interval: 2 * time.Second},
		Log:    LogConfig{Level: "info"},
	}
}

// LoadFromFile loads configuration from a file, YAML first with a JSON
// fallback, and validates it. Missing fields keep their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	switch c.Storage.Driver {
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path required for sqlite driver")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.driver must be 'sqlite' or 'memory'")
	}
	if c.Trading.FeePerLot < 0 {
		return fmt.Errorf("trading.fee_per_lot must not be negative")
	}
	if c.Trading.StopOutLevel <= 0 || c.Trading.StopOutLevel >= 100 {
		return fmt.Errorf("trading.stop_out_level must be between 0 and 100")
	}
	if c.Trading.QuoteTimeout <= 0 {
		return fmt.Errorf("trading.quote_timeout must be positive")
	}
	if c.Trading.MarkInterval <= 0 {
		return fmt.Errorf("trading.mark_interval must be positive")
	}
	if c.Quotes.Interval <= 0 {
		return fmt.Errorf("quotes.interval must be positive")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn, or error")
	}
	return nil
}
