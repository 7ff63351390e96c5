package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *AppConfig) applyDefaults() error {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Tracker.RescanInterval == 0 {
		cfg.Tracker.RescanInterval = 30 * time.Second
	}
	if cfg.Tracker.BroadcastDelay == 0 {
		cfg.Tracker.BroadcastDelay = 500 * time.Millisecond
	}
	if cfg.Tracker.ChangeBuffer == 0 {
		cfg.Tracker.ChangeBuffer = 64
	}

	seen := make(map[domain.Chain]bool, len(cfg.Chains))
	for i := range cfg.Chains {
		c := &cfg.Chains[i]
		if seen[c.ChainID] {
			return fmt.Errorf("chain %q configured twice", c.ChainID)
		}
		seen[c.ChainID] = true

		info, known := c.ChainID.Info()
		if c.Type == "" {
			if !known {
				return fmt.Errorf("chain %q: type is required for unknown chains", c.ChainID)
			}
			c.Type = info.Type
		}
		if c.BlockTime == 0 && known {
			c.BlockTime = info.BlockTime
		}
		if c.TransactionTimeout == 0 && known {
			c.TransactionTimeout = info.TransactionTimeout
		}
		if len(c.Providers) == 0 {
			return fmt.Errorf("chain %q: at least one provider is required", c.ChainID)
		}
		for j := range c.Providers {
			p := &c.Providers[j]
			if p.Type == "" {
				p.Type = "http"
			}
			if p.Timeout == 0 {
				p.Timeout = 30 * time.Second
			}
			if p.Name == "" {
				p.Name = fmt.Sprintf("%s-%d", c.ChainID, j)
			}
		}
	}
	return nil
}
