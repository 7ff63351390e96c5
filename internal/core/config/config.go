package config

import (
	"time"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	redisclient "github.com/gemwalletcom/gem-android-sub002/internal/infra/redis"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Chains   []ChainConfig      `yaml:"chains"`
	Tracker  TrackerConfig      `yaml:"tracker"`
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
	Level string `yaml:"level"` // debug, info, warn, error
}

// TrackerConfig tunes confirmation tracking.
type TrackerConfig struct {
	RescanInterval time.Duration `yaml:"rescan_interval"`
	BroadcastDelay time.Duration `yaml:"broadcast_delay"`
	ChangeBuffer   int           `yaml:"change_buffer"`
}

// ChainConfig holds settings for a specific blockchain.
type ChainConfig struct {
	ChainID            domain.Chain     `yaml:"id"`
	Type               domain.ChainType `yaml:"type"` // defaults to the chain's known type
	BlockTime          time.Duration    `yaml:"block_time"`
	TransactionTimeout time.Duration    `yaml:"transaction_timeout"`
	Providers          []ProviderConfig `yaml:"providers"`

	// Cosmos fee and transport options
	GasPrice  int64  `yaml:"gas_price"`
	FlatFee   int64  `yaml:"flat_fee"`
	Denom     string `yaml:"denom"`
	Transport string `yaml:"transport"` // rest, grpc
}

// ProviderConfig holds settings for an RPC provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	URL     string        `yaml:"url"`
	Type    string        `yaml:"type"` // http, grpc
	Timeout time.Duration `yaml:"timeout"`
}
