package config

import (
	redisclient "github.com/vietddude/ticketdash/internal/infra/redis"
	"github.com/vietddude/ticketdash/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Ledger   LedgerConfig       `yaml:"ledger"`
	Refresh  RefreshConfig      `yaml:"refresh"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// LedgerConfig holds node connection settings.
type LedgerConfig struct {
	Endpoint       string   `yaml:"endpoint"`
	Account        string   `yaml:"account"`         // watched account address
	RequestTimeout Duration `yaml:"request_timeout"` // per-RPC timeout
}

// RefreshConfig tunes the derived-state layer. The cycle unit is NOT
// here on purpose: it is a protocol constant resolved from the ledger.
type RefreshConfig struct {
	BalanceInterval Duration `yaml:"balance_interval"` // short timer
	PriceInterval   Duration `yaml:"price_interval"`   // longer timer
	SwapPollIntvl   Duration `yaml:"swap_poll_interval"`
	LookbackBlocks  uint64   `yaml:"lookback_blocks"` // bounded history window
	SeriesCapacity  int      `yaml:"series_capacity"` // price points kept
}
