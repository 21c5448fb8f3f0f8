// Package health exposes the observability surface: per-program indexer
// state plus the Prometheus metrics endpoint.
package health

import (
	"context"

	"github.com/stakescope/stakescope/internal/indexing/indexer"
	"github.com/stakescope/stakescope/internal/infra/storage"
)

// ProgramHealth is the detailed health view for one monitored program.
type ProgramHealth struct {
	Program         string           `json:"program"`
	Name            string           `json:"name"`
	Modes           []indexer.Status `json:"modes"`
	LastIndexedSlot uint64           `json:"last_indexed_slot"`
	Indexed         bool             `json:"indexed"`
	Transactions    int              `json:"transactions,omitempty"`
}

// transactionCounter is implemented by repositories that can report row
// counts cheaply.
type transactionCounter interface {
	TransactionCount(ctx context.Context, programID string) (int, error)
}

// Monitor aggregates indexer status and store position per program.
type Monitor struct {
	repo     storage.IngestionRepository
	indexers []indexer.Indexer
}

// NewMonitor creates a monitor over the given indexer instances.
func NewMonitor(repo storage.IngestionRepository, indexers []indexer.Indexer) *Monitor {
	return &Monitor{repo: repo, indexers: indexers}
}

// CheckHealth builds the per-program report. Store errors degrade the
// report instead of failing it; health must stay cheap and available.
func (m *Monitor) CheckHealth(ctx context.Context) []ProgramHealth {
	byProgram := make(map[string]*ProgramHealth)
	var order []string

	for _, ix := range m.indexers {
		status := ix.Status()
		ph, ok := byProgram[status.Program]
		if !ok {
			ph = &ProgramHealth{Program: status.Program, Name: status.Name}
			byProgram[status.Program] = ph
			order = append(order, status.Program)
		}
		ph.Modes = append(ph.Modes, status)
	}

	counter, _ := m.repo.(transactionCounter)
	for _, program := range order {
		ph := byProgram[program]
		if slot, ok, err := m.repo.LastIndexedSlot(ctx, program); err == nil {
			ph.LastIndexedSlot = slot
			ph.Indexed = ok
		}
		if counter != nil {
			if n, err := counter.TransactionCount(ctx, program); err == nil {
				ph.Transactions = n
			}
		}
	}

	report := make([]ProgramHealth, 0, len(order))
	for _, program := range order {
		report = append(report, *byProgram[program])
	}
	return report
}
