package config

import (
	"time"

	"github.com/stakescope/stakescope/internal/core/domain"
	redisclient "github.com/stakescope/stakescope/internal/infra/redis"
	"github.com/stakescope/stakescope/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
	Redis    redisclient.Config `yaml:"redis"`
	Solana   SolanaConfig       `yaml:"solana"`
	Indexer  IndexerConfig      `yaml:"indexer"`
	Programs []ProgramConfig    `yaml:"programs"`
}

// ServerConfig holds health/metrics HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SolanaConfig holds chain RPC endpoint settings.
type SolanaConfig struct {
	RPCURL     string `yaml:"rpc_url"`
	WSURL      string `yaml:"ws_url"`
	Commitment string `yaml:"commitment"` // processed, confirmed, finalized
}

// IndexerConfig holds shared pacing and batching settings for the
// indexing loops.
type IndexerConfig struct {
	BatchSize      int           `yaml:"batch_size"`
	MaxBatchSize   int           `yaml:"max_batch_size"`
	MinBatchSize   int           `yaml:"min_batch_size"`
	PollInterval   time.Duration `yaml:"poll_interval"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	SeenTTL        time.Duration `yaml:"seen_ttl"`
}

// ProgramConfig holds settings for one monitored program.
type ProgramConfig struct {
	Address    string `yaml:"address"`
	Name       string `yaml:"name"`
	StartSlot  uint64 `yaml:"start_slot"`
	Historical bool   `yaml:"historical"`
	Realtime   bool   `yaml:"realtime"`
}

// ToDomain converts the config entry into the immutable domain value.
func (p ProgramConfig) ToDomain() domain.Program {
	return domain.Program{
		Address:    p.Address,
		Name:       p.Name,
		StartSlot:  p.StartSlot,
		Historical: p.Historical,
		Realtime:   p.Realtime,
	}
}
