package memory

import (
	"context"
	"testing"

	"github.com/stakescope/stakescope/internal/core/domain"
)

func record(programID, signature string, slot uint64, events ...*domain.Event) *domain.IndexedTransaction {
	bt := int64(1700000000 + slot)
	for _, ev := range events {
		ev.ProgramID = programID
		ev.Signature = signature
		ev.Slot = slot
		ev.BlockTime = &bt
	}
	return &domain.IndexedTransaction{
		ProgramID: programID,
		Signature: signature,
		Slot:      slot,
		BlockTime: &bt,
		Events:    events,
	}
}

func TestSaveBatch_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	recs := []*domain.IndexedTransaction{
		record("prog", "sig-a", 10, &domain.Event{Kind: domain.EventDeposit, LogIndex: 0, Staker: "alice", Amount: "100"}),
		record("prog", "sig-b", 11),
	}

	saved, err := repo.SaveBatch(ctx, recs)
	if err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}
	if saved != 2 {
		t.Errorf("first save = %d, want 2", saved)
	}

	// Replay of the same batch must be a no-op.
	saved, err = repo.SaveBatch(ctx, recs)
	if err != nil {
		t.Fatalf("SaveBatch replay failed: %v", err)
	}
	if saved != 0 {
		t.Errorf("replay save = %d, want 0", saved)
	}

	n, err := repo.TransactionCount(ctx, "prog")
	if err != nil {
		t.Fatalf("TransactionCount failed: %v", err)
	}
	if n != 2 {
		t.Errorf("count = %d, want 2", n)
	}
}

func TestFilterNew(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	if _, err := repo.SaveBatch(ctx, []*domain.IndexedTransaction{record("prog", "sig-a", 1)}); err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	fresh, err := repo.FilterNew(ctx, "prog", []string{"sig-a", "sig-b", "sig-c"})
	if err != nil {
		t.Fatalf("FilterNew failed: %v", err)
	}
	if len(fresh) != 2 || fresh[0] != "sig-b" || fresh[1] != "sig-c" {
		t.Errorf("fresh = %v, want [sig-b sig-c]", fresh)
	}

	// Same signature under a different program counts as new.
	fresh, err = repo.FilterNew(ctx, "other", []string{"sig-a"})
	if err != nil {
		t.Fatalf("FilterNew failed: %v", err)
	}
	if len(fresh) != 1 {
		t.Errorf("fresh = %v, want [sig-a]", fresh)
	}

	fresh, err = repo.FilterNew(ctx, "prog", nil)
	if err != nil {
		t.Fatalf("FilterNew failed: %v", err)
	}
	if len(fresh) != 0 {
		t.Errorf("empty input should yield empty output, got %v", fresh)
	}
}

func TestLastIndexedSlot(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	_, found, err := repo.LastIndexedSlot(ctx, "prog")
	if err != nil {
		t.Fatalf("LastIndexedSlot failed: %v", err)
	}
	if found {
		t.Error("empty repo should report no slot")
	}

	_, err = repo.SaveBatch(ctx, []*domain.IndexedTransaction{
		record("prog", "sig-a", 100),
		record("prog", "sig-b", 50),
		record("other", "sig-c", 999),
	})
	if err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	slot, found, err := repo.LastIndexedSlot(ctx, "prog")
	if err != nil {
		t.Fatalf("LastIndexedSlot failed: %v", err)
	}
	if !found || slot != 100 {
		t.Errorf("slot = %d found = %v, want 100 true", slot, found)
	}
}

func TestHistoryByStaker(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository()

	_, err := repo.SaveBatch(ctx, []*domain.IndexedTransaction{
		record("prog", "sig-a", 10, &domain.Event{Kind: domain.EventDeposit, LogIndex: 0, Staker: "alice", Amount: "100"}),
		record("prog", "sig-b", 20, &domain.Event{Kind: domain.EventWithdraw, LogIndex: 0, Staker: "alice", Amount: "40"}),
		record("prog", "sig-c", 30, &domain.Event{Kind: domain.EventDeposit, LogIndex: 0, Staker: "bob", Amount: "7"}),
	})
	if err != nil {
		t.Fatalf("SaveBatch failed: %v", err)
	}

	entries, total, err := repo.HistoryByStaker(ctx, "alice", 1, 10)
	if err != nil {
		t.Fatalf("HistoryByStaker failed: %v", err)
	}
	if total != 2 {
		t.Errorf("total = %d, want 2", total)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	// Most recent first.
	if entries[0].Signature != "sig-b" || entries[1].Signature != "sig-a" {
		t.Errorf("order = [%s %s], want [sig-b sig-a]", entries[0].Signature, entries[1].Signature)
	}

	// Pagination past the end is empty, not an error.
	entries, total, err = repo.HistoryByStaker(ctx, "alice", 5, 10)
	if err != nil {
		t.Fatalf("HistoryByStaker failed: %v", err)
	}
	if total != 2 || len(entries) != 0 {
		t.Errorf("page 5: total = %d entries = %d, want 2 and 0", total, len(entries))
	}
}
