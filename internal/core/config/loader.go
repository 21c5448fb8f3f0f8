package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file. Environment variables in the
// file content are expanded before parsing.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Solana.RPCURL == "" {
		cfg.Solana.RPCURL = "https://api.devnet.solana.com"
	}
	if cfg.Solana.WSURL == "" {
		cfg.Solana.WSURL = "wss://api.devnet.solana.com"
	}
	if cfg.Solana.Commitment == "" {
		cfg.Solana.Commitment = "confirmed"
	}

	// Batch bounds are conservative by default: large pages trip payload
	// limits on shared RPC providers.
	if cfg.Indexer.BatchSize == 0 {
		cfg.Indexer.BatchSize = 25
	}
	if cfg.Indexer.MaxBatchSize == 0 {
		cfg.Indexer.MaxBatchSize = 50
	}
	if cfg.Indexer.MinBatchSize == 0 {
		cfg.Indexer.MinBatchSize = 1
	}
	if cfg.Indexer.PollInterval == 0 {
		cfg.Indexer.PollInterval = time.Second
	}
	if cfg.Indexer.ReconnectDelay == 0 {
		cfg.Indexer.ReconnectDelay = 5 * time.Second
	}
	if cfg.Indexer.SeenTTL == 0 {
		cfg.Indexer.SeenTTL = 10 * time.Minute
	}
}

func validate(cfg *AppConfig) error {
	for i, p := range cfg.Programs {
		if p.Address == "" {
			return fmt.Errorf("programs[%d]: address is required", i)
		}
		if p.Name == "" {
			cfg.Programs[i].Name = p.Address
		}
	}
	if cfg.Indexer.MinBatchSize > cfg.Indexer.BatchSize {
		return fmt.Errorf("indexer: min_batch_size %d exceeds batch_size %d",
			cfg.Indexer.MinBatchSize, cfg.Indexer.BatchSize)
	}
	if cfg.Indexer.BatchSize > cfg.Indexer.MaxBatchSize {
		return fmt.Errorf("indexer: batch_size %d exceeds max_batch_size %d",
			cfg.Indexer.BatchSize, cfg.Indexer.MaxBatchSize)
	}
	return nil
}
