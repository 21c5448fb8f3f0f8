// Package historical implements the backfill half of the ingestion
// pipeline: a backward-paginating loop over the chain's signature listing
// with adaptive batch sizing and one-at-a-time persistence.
package historical

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stakescope/stakescope/internal/core/domain"
	"github.com/stakescope/stakescope/internal/indexing/decoder"
	"github.com/stakescope/stakescope/internal/indexing/indexer"
	"github.com/stakescope/stakescope/internal/indexing/metrics"
	"github.com/stakescope/stakescope/internal/infra/rpc"
	"github.com/stakescope/stakescope/internal/infra/storage"
)

// Inter-request pacing defaults. Public Solana RPC providers rate-limit
// aggressively, so each transaction fetch is followed by a short pause.
const (
	DefaultTxDelay        = 500 * time.Millisecond
	DefaultTxErrorDelay   = 2 * time.Second
	DefaultLoopErrorDelay = 5 * time.Second
)

// Config holds historical indexer settings.
type Config struct {
	Program domain.Program

	// Adaptive batch sizing bounds for the listing call.
	BatchSize    int
	MaxBatchSize int
	MinBatchSize int

	// PollInterval paces successful iterations; the caught-up cool-down is
	// five times this.
	PollInterval time.Duration

	// TxDelay follows each persisted transaction (politeness against the
	// provider); TxErrorDelay follows a per-transaction failure;
	// LoopErrorDelay follows a loop-level failure.
	TxDelay        time.Duration
	TxErrorDelay   time.Duration
	LoopErrorDelay time.Duration

	Retry rpc.RetryConfig
}

// Indexer backfills one program's history, newest to oldest, and keeps
// re-scanning from the newest end once it has drained the listing.
type Indexer struct {
	cfg   Config
	chain rpc.ChainClient
	repo  storage.IngestionRepository
	dec   *decoder.Decoder
	log   *slog.Logger

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	mu    sync.RWMutex
	state string
}

// New creates a historical indexer for one program.
func New(cfg Config, chain rpc.ChainClient, repo storage.IngestionRepository, dec *decoder.Decoder, log *slog.Logger) *Indexer {
	return &Indexer{
		cfg:   cfg,
		chain: chain,
		repo:  repo,
		dec:   dec,
		log:   log.With("program", cfg.Program.Name, "mode", indexer.ModeHistorical),
		stop:  make(chan struct{}),
		state: indexer.StateIdle,
	}
}

// Start runs the backfill loop until stopped.
func (ix *Indexer) Start(ctx context.Context) error {
	if !ix.running.CompareAndSwap(false, true) {
		return fmt.Errorf("historical indexer already running")
	}
	defer func() {
		ix.running.Store(false)
		ix.setState(indexer.StateStopped)
	}()

	ix.setState(indexer.StateResuming)

	// Resume hint only: pagination is driven by signature cursors, not by
	// slot, because the listing API paginates by signature. Dedup
	// correctness comes from FilterNew.
	lastSlot, ok, err := ix.repo.LastIndexedSlot(ctx, ix.cfg.Program.Address)
	switch {
	case err != nil:
		ix.log.Warn("Failed to read last indexed slot", "error", err)
	case ok && lastSlot > ix.cfg.Program.StartSlot:
		ix.log.Info("Resuming backfill", "last_indexed_slot", lastSlot)
	default:
		ix.log.Info("Starting fresh backfill", "start_slot", ix.cfg.Program.StartSlot)
	}

	ix.loop(ctx)
	return nil
}

// Stop signals the loop to terminate at the next checkpoint.
func (ix *Indexer) Stop() error {
	ix.stopOnce.Do(func() { close(ix.stop) })
	return nil
}

// Status reports the loop's current state.
func (ix *Indexer) Status() indexer.Status {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return indexer.Status{
		Program: ix.cfg.Program.Address,
		Name:    ix.cfg.Program.Name,
		Mode:    indexer.ModeHistorical,
		State:   ix.state,
	}
}

func (ix *Indexer) setState(state string) {
	ix.mu.Lock()
	ix.state = state
	ix.mu.Unlock()
}

func (ix *Indexer) stopped(ctx context.Context) bool {
	select {
	case <-ix.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// sleep pauses without starving cancellation.
func (ix *Indexer) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ix.stop:
	case <-ctx.Done():
	case <-time.After(d):
	}
}

type pageState struct {
	// before is the pagination cursor: the oldest signature seen so far.
	// Empty means start from the newest end.
	before    string
	batchSize int
}

func (ix *Indexer) loop(ctx context.Context) {
	state := &pageState{batchSize: ix.cfg.BatchSize}

	for !ix.stopped(ctx) {
		if err := ix.iterate(ctx, state); err != nil {
			ix.log.Error("Backfill loop error", "error", err)
			metrics.RPCErrors.WithLabelValues(ix.cfg.Program.Name, "backfill").Inc()

			// Congestion or rate limits: trade throughput for resilience.
			if state.batchSize > ix.cfg.MinBatchSize {
				state.batchSize = state.batchSize / 2
				if state.batchSize < ix.cfg.MinBatchSize {
					state.batchSize = ix.cfg.MinBatchSize
				}
				ix.log.Warn("Reduced batch size after error", "batch_size", state.batchSize)
			}
			ix.sleep(ctx, ix.cfg.LoopErrorDelay)
		}
	}
}

// iterate runs one page of the backfill: list, filter, fetch+decode+save
// each new transaction, then advance the cursor backward in time.
func (ix *Indexer) iterate(ctx context.Context, state *pageState) error {
	refs, err := rpc.WithRetry(ctx, ix.cfg.Retry, func(ctx context.Context) ([]domain.SignatureRef, error) {
		return ix.chain.ListSignatures(ctx, ix.cfg.Program.Address, rpc.ListOptions{
			Limit:  state.batchSize,
			Before: state.before,
		})
	})
	if err != nil {
		return fmt.Errorf("list signatures: %w", err)
	}

	if len(refs) == 0 {
		// Caught up with the oldest retained history. Cool down, then
		// reset to the newest end so newly finalized history is picked up.
		ix.setState(indexer.StateDraining)
		ix.log.Info("No more historical signatures, rescanning from the top shortly")
		ix.sleep(ctx, ix.cfg.PollInterval*5)
		state.before = ""
		return nil
	}

	ix.setState(indexer.StatePaging)
	metrics.SignaturesFetched.WithLabelValues(ix.cfg.Program.Name).Add(float64(len(refs)))

	signatures := make([]string, len(refs))
	for i, ref := range refs {
		signatures[i] = ref.Signature
	}

	fresh, err := ix.repo.FilterNew(ctx, ix.cfg.Program.Address, signatures)
	if err != nil {
		return fmt.Errorf("filter signatures: %w", err)
	}

	if len(fresh) > 0 {
		ix.log.Info("Processing backfill page", "fetched", len(refs), "new", len(fresh))
		ix.processSignatures(ctx, fresh)
	} else {
		ix.log.Debug("Page already indexed", "fetched", len(refs))
	}

	// Listings are newest-first; continuing backward means paginating
	// before the oldest signature just seen.
	state.before = refs[len(refs)-1].Signature

	if state.batchSize < ix.cfg.MaxBatchSize {
		state.batchSize *= 2
		if state.batchSize > ix.cfg.MaxBatchSize {
			state.batchSize = ix.cfg.MaxBatchSize
		}
	}
	metrics.BackfillBatchSize.WithLabelValues(ix.cfg.Program.Name).Set(float64(state.batchSize))

	ix.sleep(ctx, ix.cfg.PollInterval)
	return nil
}

// processSignatures fetches, decodes and persists transactions one at a
// time, so a mid-page crash loses at most one unsaved transaction. A
// failed item is logged and skipped, never aborting the page.
func (ix *Indexer) processSignatures(ctx context.Context, signatures []string) {
	for _, sig := range signatures {
		if ix.stopped(ctx) {
			return
		}

		rec, err := rpc.WithRetry(ctx, ix.cfg.Retry, func(ctx context.Context) (*rpc.TransactionRecord, error) {
			return ix.chain.GetTransaction(ctx, sig)
		})
		if err != nil {
			ix.log.Warn("Failed to fetch transaction", "signature", sig, "error", err)
			metrics.RPCErrors.WithLabelValues(ix.cfg.Program.Name, "get_transaction").Inc()
			ix.sleep(ctx, ix.cfg.TxErrorDelay)
			continue
		}
		if rec == nil {
			ix.log.Warn("Transaction not found, skipping", "signature", sig)
			continue
		}

		indexed := ix.dec.Decode(sig, ix.cfg.Program.Address, rec)
		if indexed == nil {
			// Mentions the address without invoking the program.
			continue
		}
		indexed.Source = domain.SourceBackfill

		saved, err := ix.repo.SaveBatch(ctx, []*domain.IndexedTransaction{indexed})
		if err != nil {
			ix.log.Warn("Failed to save transaction", "signature", sig, "error", err)
			ix.sleep(ctx, ix.cfg.TxErrorDelay)
			continue
		}
		if saved > 0 {
			ix.log.Info("Indexed historical transaction", "signature", sig, "slot", indexed.Slot, "events", len(indexed.Events))
			metrics.TransactionsIndexed.WithLabelValues(ix.cfg.Program.Name, string(domain.SourceBackfill)).Inc()
			for _, ev := range indexed.Events {
				metrics.EventsDecoded.WithLabelValues(ix.cfg.Program.Name, string(ev.Kind)).Inc()
			}
			metrics.LastIndexedSlot.WithLabelValues(ix.cfg.Program.Name).Set(float64(indexed.Slot))
		}

		ix.sleep(ctx, ix.cfg.TxDelay)
	}
}
