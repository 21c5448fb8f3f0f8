// Package memory provides an in-memory implementation of the storage
// contracts. Used when no database URL is configured and as the test
// double for the indexer loops.
package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/stakescope/stakescope/internal/core/domain"
	"github.com/stakescope/stakescope/internal/infra/storage"
)

// Repository implements storage.IngestionRepository and
// storage.HistoryReader over process memory. Uniqueness of
// (program, signature) and (signature, kind, log index) is enforced under
// one lock, mirroring the unique indexes the Postgres store carries.
type Repository struct {
	mu     sync.RWMutex
	txs    map[string]*domain.IndexedTransaction // program|signature
	events map[string]*domain.Event              // signature|kind|logIndex
}

// NewRepository creates an empty in-memory repository.
func NewRepository() *Repository {
	return &Repository{
		txs:    make(map[string]*domain.IndexedTransaction),
		events: make(map[string]*domain.Event),
	}
}

func txKey(programID, signature string) string {
	return programID + "|" + signature
}

func eventKey(ev *domain.Event) string {
	return ev.Signature + "|" + string(ev.Kind) + "|" + strconv.Itoa(ev.LogIndex)
}

// FilterNew returns the signatures not yet stored for the program.
func (r *Repository) FilterNew(ctx context.Context, programID string, signatures []string) ([]string, error) {
	if len(signatures) == 0 {
		return nil, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	fresh := make([]string, 0, len(signatures))
	for _, s := range signatures {
		if _, ok := r.txs[txKey(programID, s)]; !ok {
			fresh = append(fresh, s)
		}
	}
	return fresh, nil
}

// SaveBatch stores records insert-if-absent and returns the newly added
// transaction count.
func (r *Repository) SaveBatch(ctx context.Context, records []*domain.IndexedTransaction) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	saved := 0
	for _, rec := range records {
		key := txKey(rec.ProgramID, rec.Signature)
		if _, exists := r.txs[key]; exists {
			continue
		}
		r.txs[key] = rec
		saved++

		for _, ev := range rec.Events {
			ek := eventKey(ev)
			if _, exists := r.events[ek]; !exists {
				r.events[ek] = ev
			}
		}
	}
	return saved, nil
}

// LastIndexedSlot returns the max stored slot for the program.
func (r *Repository) LastIndexedSlot(ctx context.Context, programID string) (uint64, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var max uint64
	found := false
	for _, tx := range r.txs {
		if tx.ProgramID == programID && (!found || tx.Slot > max) {
			max = tx.Slot
			found = true
		}
	}
	return max, found, nil
}

// HistoryByStaker returns decoded events involving the staker, most
// recent first.
func (r *Repository) HistoryByStaker(ctx context.Context, staker string, page, limit int) ([]storage.HistoryEntry, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*domain.Event
	for _, ev := range r.events {
		if ev.Staker == staker {
			matched = append(matched, ev)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		ti, tj := int64(0), int64(0)
		if matched[i].BlockTime != nil {
			ti = *matched[i].BlockTime
		}
		if matched[j].BlockTime != nil {
			tj = *matched[j].BlockTime
		}
		if ti != tj {
			return ti > tj
		}
		return matched[i].LogIndex < matched[j].LogIndex
	})

	total := len(matched)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	entries := make([]storage.HistoryEntry, 0, end-start)
	for _, ev := range matched[start:end] {
		failed := false
		if tx, ok := r.txs[txKey(ev.ProgramID, ev.Signature)]; ok {
			failed = tx.Failed()
		}
		entries = append(entries, storage.HistoryEntry{
			Signature: ev.Signature,
			BlockTime: ev.BlockTime,
			Kind:      ev.Kind,
			Amount:    ev.Amount,
			Failed:    failed,
		})
	}
	return entries, total, nil
}

// TransactionCount reports the number of stored transactions for the
// program. Used by the status surfaces.
func (r *Repository) TransactionCount(ctx context.Context, programID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, tx := range r.txs {
		if tx.ProgramID == programID {
			n++
		}
	}
	return n, nil
}
