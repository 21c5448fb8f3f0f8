package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stakescope/stakescope/internal/core/domain"
	"github.com/stakescope/stakescope/internal/indexing/indexer"
	"github.com/stakescope/stakescope/internal/infra/storage/memory"
)

type staticIndexer struct {
	status indexer.Status
}

func (s *staticIndexer) Start(ctx context.Context) error { return nil }
func (s *staticIndexer) Stop() error                     { return nil }
func (s *staticIndexer) Status() indexer.Status          { return s.status }

func TestCheckHealth_GroupsByProgram(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	bt := int64(1700000000)
	_, err := repo.SaveBatch(ctx, []*domain.IndexedTransaction{
		{ProgramID: "prog-a", Signature: "sig-1", Slot: 42, BlockTime: &bt},
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	monitor := NewMonitor(repo, []indexer.Indexer{
		&staticIndexer{indexer.Status{Program: "prog-a", Name: "alpha", Mode: indexer.ModeHistorical, State: indexer.StatePaging}},
		&staticIndexer{indexer.Status{Program: "prog-a", Name: "alpha", Mode: indexer.ModeRealtime, State: indexer.StateSubscribed}},
		&staticIndexer{indexer.Status{Program: "prog-b", Name: "beta", Mode: indexer.ModeHistorical, State: indexer.StateIdle}},
	})

	report := monitor.CheckHealth(ctx)
	if len(report) != 2 {
		t.Fatalf("report entries = %d, want 2", len(report))
	}

	alpha := report[0]
	if alpha.Program != "prog-a" || len(alpha.Modes) != 2 {
		t.Errorf("prog-a: %+v", alpha)
	}
	if !alpha.Indexed || alpha.LastIndexedSlot != 42 {
		t.Errorf("prog-a position = %d indexed = %v, want 42 true", alpha.LastIndexedSlot, alpha.Indexed)
	}
	if alpha.Transactions != 1 {
		t.Errorf("prog-a transactions = %d, want 1", alpha.Transactions)
	}

	beta := report[1]
	if beta.Program != "prog-b" || len(beta.Modes) != 1 {
		t.Errorf("prog-b: %+v", beta)
	}
	if beta.Indexed {
		t.Error("prog-b has no rows, should not report indexed")
	}
}

func TestCheckHealth_NoIndexers(t *testing.T) {
	monitor := NewMonitor(memory.NewRepository(), nil)
	if report := monitor.CheckHealth(context.Background()); len(report) != 0 {
		t.Errorf("empty monitor produced %d entries", len(report))
	}
}

func TestHandleHistory(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewRepository()
	bt := int64(1700000000)
	_, err := repo.SaveBatch(ctx, []*domain.IndexedTransaction{{
		ProgramID: "prog",
		Signature: "sig-1",
		Slot:      10,
		BlockTime: &bt,
		Events: []*domain.Event{{
			ProgramID: "prog", Signature: "sig-1", Slot: 10, BlockTime: &bt,
			Kind: domain.EventDeposit, LogIndex: 0, Staker: "alice", Amount: "100",
		}},
	}})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	srv := NewServer(NewMonitor(repo, nil), repo, 0)

	rec := httptest.NewRecorder()
	srv.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/history?staker=alice", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body struct {
		Total   int `json:"total"`
		History []struct {
			Signature string `json:"signature"`
			Amount    string `json:"amount"`
		} `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if body.Total != 1 || len(body.History) != 1 || body.History[0].Signature != "sig-1" {
		t.Errorf("body = %+v", body)
	}

	rec = httptest.NewRecorder()
	srv.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing staker: status = %d, want 400", rec.Code)
	}
}
