package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Ledger.Endpoint == "" {
		return nil, fmt.Errorf("ledger.endpoint is required")
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Ledger.RequestTimeout == 0 {
		cfg.Ledger.RequestTimeout = Duration(30 * time.Second)
	}
	if cfg.Refresh.BalanceInterval == 0 {
		cfg.Refresh.BalanceInterval = Duration(15 * time.Second)
	}
	if cfg.Refresh.PriceInterval == 0 {
		cfg.Refresh.PriceInterval = Duration(time.Minute)
	}
	if cfg.Refresh.SwapPollIntvl == 0 {
		cfg.Refresh.SwapPollIntvl = Duration(10 * time.Second)
	}
	if cfg.Refresh.LookbackBlocks == 0 {
		cfg.Refresh.LookbackBlocks = 50000
	}
	if cfg.Refresh.SeriesCapacity == 0 {
		cfg.Refresh.SeriesCapacity = 500
	}

	return &cfg, nil
}
