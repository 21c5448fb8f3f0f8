// Package storage defines the persistence contracts shared by both
// indexing modes. The store is the only shared mutable resource in the
// pipeline: the historical and realtime loops never talk to each other,
// they coordinate solely through these contracts' read-your-writes
// behavior and the store-enforced (program, signature) uniqueness.
package storage

import (
	"context"

	"github.com/stakescope/stakescope/internal/core/domain"
)

// IngestionRepository is the idempotent persistence contract consumed by
// both indexers.
type IngestionRepository interface {
	// FilterNew returns the subset of signatures not already persisted for
	// the program, preserving input order. An empty input returns empty
	// without a round trip.
	FilterNew(ctx context.Context, programID string, signatures []string) ([]string, error)

	// SaveBatch inserts records insert-if-absent and returns the number of
	// newly stored transactions. A duplicate (program, signature) is
	// silently absorbed, not an error, so a save is safe to retry
	// wholesale after a partial failure.
	SaveBatch(ctx context.Context, records []*domain.IndexedTransaction) (int, error)

	// LastIndexedSlot returns the maximum slot persisted for the program,
	// or ok=false when nothing is indexed yet.
	LastIndexedSlot(ctx context.Context, programID string) (slot uint64, ok bool, err error)
}

// HistoryEntry is one row of the participant-history read surface.
type HistoryEntry struct {
	Signature string           `json:"signature"`
	BlockTime *int64           `json:"block_time"`
	Kind      domain.EventKind `json:"kind"`
	Amount    string           `json:"amount"`
	Failed    bool             `json:"failed"`
}

// HistoryReader is the read surface exposed to the query API: paginated
// decoded-event lookup by participant address, most recent first.
type HistoryReader interface {
	HistoryByStaker(ctx context.Context, staker string, page, limit int) (entries []HistoryEntry, total int, err error)
}
