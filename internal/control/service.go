// Package control wires the application together: storage, chain RPC,
// decoder, and one historical and/or realtime indexer per configured
// program. The indexer instances share no in-process mutable state; all
// cross-loop coordination goes through the store.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/stakescope/stakescope/internal/core/config"
	"github.com/stakescope/stakescope/internal/indexing/decoder"
	"github.com/stakescope/stakescope/internal/indexing/health"
	"github.com/stakescope/stakescope/internal/indexing/historical"
	"github.com/stakescope/stakescope/internal/indexing/indexer"
	"github.com/stakescope/stakescope/internal/indexing/realtime"
	redisclient "github.com/stakescope/stakescope/internal/infra/redis"
	"github.com/stakescope/stakescope/internal/infra/rpc"
	"github.com/stakescope/stakescope/internal/infra/storage"
	"github.com/stakescope/stakescope/internal/infra/storage/memory"
	"github.com/stakescope/stakescope/internal/infra/storage/postgres"
)

// Config holds the application configuration handed down from the CLI.
type Config struct {
	Port          int
	Solana        config.SolanaConfig
	Indexer       config.IndexerConfig
	Database      postgres.Config
	Redis         redisclient.Config
	Programs      []config.ProgramConfig
	MigrationsDir string
}

// Service is the indexer coordinator: it owns one indexer instance per
// configured (program, mode) pair plus the shared infrastructure.
type Service struct {
	cfg          Config
	indexers     []indexer.Indexer
	db           *postgres.DB
	redisClient  *redisclient.Client
	healthServer *health.Server
	log          *slog.Logger
}

// NewService creates the service with all dependencies initialized.
func NewService(cfg Config) (*Service, error) {
	log := slog.Default()

	// 1. Storage: Postgres when configured, in-memory otherwise.
	var repo storage.IngestionRepository
	var db *postgres.DB
	if cfg.Database.URL != "" {
		var err error
		db, err = postgres.NewDB(context.Background(), cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to init db: %w", err)
		}
		migrations := cfg.MigrationsDir
		if migrations == "" {
			migrations = "migrations"
		}
		if err := db.Migrate(migrations); err != nil {
			return nil, err
		}
		repo = postgres.NewIngestionRepo(db)
		log.Info("Using PostgreSQL storage")
	} else {
		repo = memory.NewRepository()
		log.Info("Using memory storage")
	}

	// 2. Optional Redis seen-cache for the realtime debounce fast path.
	var redisClient *redisclient.Client
	var seen realtime.SeenCache
	if cfg.Redis.URL != "" {
		var err error
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			log.Warn("Failed to connect to Redis, seen-cache disabled", "error", err)
		} else {
			seen = redisClient
			log.Info("Redis seen-cache enabled")
		}
	}

	// 3. Chain RPC client and log streamer.
	chainClient := rpc.NewSolanaClient(cfg.Solana.RPCURL, cfg.Solana.Commitment, log)
	streamer := rpc.NewSolanaStreamer(cfg.Solana.WSURL, cfg.Solana.Commitment, log)
	dec := decoder.New(log)

	// 4. One indexer per (program, mode) pair.
	var indexers []indexer.Indexer
	for _, programCfg := range cfg.Programs {
		program := programCfg.ToDomain()

		if program.Historical {
			indexers = append(indexers, historical.New(historical.Config{
				Program:        program,
				BatchSize:      cfg.Indexer.BatchSize,
				MaxBatchSize:   cfg.Indexer.MaxBatchSize,
				MinBatchSize:   cfg.Indexer.MinBatchSize,
				PollInterval:   cfg.Indexer.PollInterval,
				TxDelay:        historical.DefaultTxDelay,
				TxErrorDelay:   historical.DefaultTxErrorDelay,
				LoopErrorDelay: historical.DefaultLoopErrorDelay,
				Retry:          rpc.DefaultRetryConfig,
			}, chainClient, repo, dec, log))
		}

		if program.Realtime {
			indexers = append(indexers, realtime.New(realtime.Config{
				Program:        program,
				ReconnectDelay: cfg.Indexer.ReconnectDelay,
				SeenTTL:        cfg.Indexer.SeenTTL,
				Retry:          rpc.DefaultRetryConfig,
			}, streamer, chainClient, repo, dec, seen, log))
		}

		log.Info("Configured program", "name", program.Name, "address", program.Address,
			"historical", program.Historical, "realtime", program.Realtime)
	}

	monitor := health.NewMonitor(repo, indexers)
	history, _ := repo.(storage.HistoryReader)
	healthServer := health.NewServer(monitor, history, cfg.Port)

	return &Service{
		cfg:          cfg,
		indexers:     indexers,
		db:           db,
		redisClient:  redisClient,
		healthServer: healthServer,
		log:          log,
	}, nil
}

// Start launches every indexer loop and the health server in the
// background. It does not wait for any loop to reach steady state.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Health server failed", "error", err)
		}
	}()

	for _, ix := range s.indexers {
		status := ix.Status()
		s.log.Info("Starting indexer", "program", status.Name, "mode", status.Mode)
		go func(ix indexer.Indexer) {
			if err := ix.Start(ctx); err != nil {
				st := ix.Status()
				s.log.Error("Indexer failed", "program", st.Name, "mode", st.Mode, "error", err)
			}
		}(ix)
	}
	return nil
}

// Stop signals every indexer to terminate at its next checkpoint and
// shuts down shared infrastructure. In-flight fetches are allowed to
// complete.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	for _, ix := range s.indexers {
		if err := ix.Stop(); err != nil {
			st := ix.Status()
			s.log.Warn("Failed to stop indexer", "program", st.Name, "mode", st.Mode, "error", err)
		}
	}

	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.log.Warn("Failed to close database", "error", err)
		}
	}

	return s.healthServer.Stop(ctx)
}
