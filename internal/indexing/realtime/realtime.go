// Package realtime implements the push half of the ingestion pipeline: a
// log subscription keyed on "any transaction mentioning the program",
// with reconnect logic and a permanent capability fallback when the
// provider rejects the mentions filter.
package realtime

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

// SeenCache is an optional fast-path duplicate filter in front of the
// repository check. The repository's FilterNew remains the source of
// truth; the cache only saves round trips on duplicate pushes.
type SeenCache interface {
	MarkSeen(ctx context.Context, programID, signature string, ttl time.Duration) (bool, error)
}

// Config holds realtime indexer settings.
type Config struct {
	Program        domain.Program
	ReconnectDelay time.Duration
	// SeenTTL bounds the seen-cache entries; zero disables the cache even
	// when one is provided.
	SeenTTL time.Duration
	Retry   rpc.RetryConfig
}

// Indexer consumes a log subscription for one program and persists each
// notified transaction through the shared repository contract.
type Indexer struct {
	cfg      Config
	streamer rpc.LogStreamer
	chain    rpc.ChainClient
	repo     storage.IngestionRepository
	dec      *decoder.Decoder
	seen     SeenCache
	log      *slog.Logger

	running  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	mu    sync.RWMutex
	state string
}

// New creates a realtime indexer for one program. seen may be nil.
func New(cfg Config, streamer rpc.LogStreamer, chain rpc.ChainClient, repo storage.IngestionRepository, dec *decoder.Decoder, seen SeenCache, log *slog.Logger) *Indexer {
	return &Indexer{
		cfg:      cfg,
		streamer: streamer,
		chain:    chain,
		repo:     repo,
		dec:      dec,
		seen:     seen,
		log:      log.With("program", cfg.Program.Name, "mode", indexer.ModeRealtime),
		stop:     make(chan struct{}),
		state:    indexer.StateIdle,
	}
}

// Start runs the subscription loop until stopped or permanently disabled.
func (ix *Indexer) Start(ctx context.Context) error {
	if !ix.running.CompareAndSwap(false, true) {
		return fmt.Errorf("realtime indexer already running")
	}
	defer ix.running.Store(false)

	// Recv blocks on the context, so cancel it when Stop is called.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-ix.stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for !ix.stopped(ctx) {
		sub, err := ix.streamer.SubscribeLogs(ctx, ix.cfg.Program.Address)
		if err != nil {
			if rpc.IsUnsupportedFilter(err) {
				// Degraded but correct: historical polling remains the
				// sole source of truth for this program.
				ix.setState(indexer.StateDisabled)
				ix.log.Error("Mentions filter not supported by provider, disabling realtime indexing", "error", err)
				return nil
			}
			ix.log.Error("Subscription failed, reconnecting", "error", err, "delay", ix.cfg.ReconnectDelay)
			metrics.SubscriptionReconnects.WithLabelValues(ix.cfg.Program.Name).Inc()
			ix.sleep(ctx, ix.cfg.ReconnectDelay)
			continue
		}

		ix.setState(indexer.StateSubscribed)
		ix.log.Info("Subscribed to program logs")

		ix.consume(ctx, sub)
		sub.Unsubscribe()

		if !ix.stopped(ctx) {
			metrics.SubscriptionReconnects.WithLabelValues(ix.cfg.Program.Name).Inc()
			ix.sleep(ctx, ix.cfg.ReconnectDelay)
		}
	}

	ix.setState(indexer.StateStopped)
	return nil
}

// Stop signals the loop to terminate and releases the subscription.
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
		Mode:    indexer.ModeRealtime,
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

// consume drains notifications until the subscription errors or the
// indexer is stopped.
func (ix *Indexer) consume(ctx context.Context, sub rpc.Subscription) {
	for {
		if ix.stopped(ctx) {
			return
		}
		notification, err := sub.Recv(ctx)
		if err != nil {
			if !ix.stopped(ctx) {
				ix.log.Warn("Subscription receive failed", "error", err)
			}
			return
		}
		ix.handle(ctx, notification.Signature)
	}
}

// handle processes one pushed signature: debounce, fetch, decode, save.
func (ix *Indexer) handle(ctx context.Context, signature string) {
	program := ix.cfg.Program.Address

	if ix.seen != nil && ix.cfg.SeenTTL > 0 {
		first, err := ix.seen.MarkSeen(ctx, program, signature, ix.cfg.SeenTTL)
		if err != nil {
			ix.log.Debug("Seen cache unavailable", "error", err)
		} else if !first {
			return
		}
	}

	// Debounce against duplicate pushes and against the historical loop
	// racing over the same transaction.
	fresh, err := ix.repo.FilterNew(ctx, program, []string{signature})
	if err != nil {
		ix.log.Warn("Failed to check signature", "signature", signature, "error", err)
		return
	}
	if len(fresh) == 0 {
		ix.log.Debug("Signature already indexed, dropping notification", "signature", signature)
		return
	}

	rec, err := rpc.WithRetry(ctx, ix.cfg.Retry, func(ctx context.Context) (*rpc.TransactionRecord, error) {
		return ix.chain.GetTransaction(ctx, signature)
	})
	if err != nil {
		ix.log.Warn("Failed to fetch realtime transaction", "signature", signature, "error", err)
		metrics.RPCErrors.WithLabelValues(ix.cfg.Program.Name, "get_transaction").Inc()
		return
	}
	if rec == nil {
		ix.log.Warn("Realtime transaction not found", "signature", signature)
		return
	}

	indexed := ix.dec.Decode(signature, program, rec)
	if indexed == nil {
		return
	}
	indexed.Source = domain.SourceRealtime

	saved, err := ix.repo.SaveBatch(ctx, []*domain.IndexedTransaction{indexed})
	if err != nil {
		ix.log.Warn("Failed to save realtime transaction", "signature", signature, "error", err)
		return
	}
	if saved > 0 {
		ix.log.Info("Indexed realtime transaction", "signature", signature, "slot", indexed.Slot, "events", len(indexed.Events))
		metrics.TransactionsIndexed.WithLabelValues(ix.cfg.Program.Name, string(domain.SourceRealtime)).Inc()
		for _, ev := range indexed.Events {
			metrics.EventsDecoded.WithLabelValues(ix.cfg.Program.Name, string(ev.Kind)).Inc()
		}
		metrics.LastIndexedSlot.WithLabelValues(ix.cfg.Program.Name).Set(float64(indexed.Slot))
	}
}
